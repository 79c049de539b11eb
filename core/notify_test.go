package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// memQueue collects enqueued payloads in memory.
type memQueue struct {
	items []string
	fail  bool
}

func (q *memQueue) Enqueue(ctx context.Context, pendingKey, value string) error {
	if q.fail {
		return errors.New("redis down")
	}
	q.items = append(q.items, value)
	return nil
}

func TestNotificationServiceRendersAtEnqueue(t *testing.T) {
	q := &memQueue{}
	s := NewNotificationService(q)
	ctx := context.Background()

	s.EventCreated(ctx, 42, "Garden Party")
	s.FeedbackReceived(ctx, 42, "Garden Party", "", "Lovely!")
	s.OfferingLead(ctx, &OfferingRequest{
		Name: "Dana", Contact: "dana@example.com", Message: "Pricing?",
		OfferingID: 7, OfferingTitle: "Balloon Arch",
	})

	if len(q.items) != 3 {
		t.Fatalf("enqueued %d items, want 3", len(q.items))
	}

	var created Notification
	if err := json.Unmarshal([]byte(q.items[0]), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Kind != NotifyEventCreated {
		t.Fatalf("kind = %q", created.Kind)
	}
	if created.ID == "" {
		t.Fatal("missing id")
	}
	if !strings.Contains(created.Subject, "Garden Party") || !strings.Contains(created.Body, "42") {
		t.Fatalf("unexpected content: %+v", created)
	}
	if created.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0", created.Attempts)
	}

	var feedback Notification
	if err := json.Unmarshal([]byte(q.items[1]), &feedback); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// Empty author is reported as Anonymous.
	if !strings.Contains(feedback.Body, "Anonymous") {
		t.Fatalf("feedback body: %s", feedback.Body)
	}

	var lead Notification
	if err := json.Unmarshal([]byte(q.items[2]), &lead); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(lead.Body, "Balloon Arch") || !strings.Contains(lead.WhatsApp, "Dana") {
		t.Fatalf("lead content: %+v", lead)
	}
}

func TestNotificationServiceSwallowsEnqueueFailure(t *testing.T) {
	s := NewNotificationService(&memQueue{fail: true})
	// Must not panic or propagate; the caller's write already succeeded.
	s.EventUpdated(context.Background(), 1, "Title")
}

type recordingSender struct {
	emails   []string
	messages []string
	err      error
}

func (s *recordingSender) SendEmail(to, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.emails = append(s.emails, subject)
	return nil
}

func (s *recordingSender) SendMessage(to, body string) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, body)
	return nil
}

func testNotificationPayload(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(Notification{
		ID: "n-1", Kind: NotifyEventCreated,
		Subject: "New event", Body: "body", WhatsApp: "wa body",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestProcessorDeliversBothChannels(t *testing.T) {
	sender := &recordingSender{}
	p := NewNotificationProcessor(sender, sender, Config{
		AdminEmail: "admin@example.com",
		AdminPhone: "+1000000",
	})

	if err := p.Process(context.Background(), testNotificationPayload(t)); err != nil {
		t.Fatalf("process error: %v", err)
	}
	if len(sender.emails) != 1 || len(sender.messages) != 1 {
		t.Fatalf("emails=%d messages=%d, want 1/1", len(sender.emails), len(sender.messages))
	}
}

func TestProcessorFailsOnlyWhenAllChannelsFail(t *testing.T) {
	okSender := &recordingSender{}
	badSender := &recordingSender{err: errors.New("smtp down")}

	// One channel failing is still a success overall.
	p := NewNotificationProcessor(badSender, okSender, Config{
		AdminEmail: "admin@example.com",
		AdminPhone: "+1000000",
	})
	if err := p.Process(context.Background(), testNotificationPayload(t)); err != nil {
		t.Fatalf("process error with one good channel: %v", err)
	}

	// Both failing makes the job retryable.
	p = NewNotificationProcessor(badSender, badSender, Config{
		AdminEmail: "admin@example.com",
		AdminPhone: "+1000000",
	})
	if err := p.Process(context.Background(), testNotificationPayload(t)); err == nil {
		t.Fatal("expected error when every channel fails")
	}
}

func TestProcessorDropsMalformedPayload(t *testing.T) {
	p := NewNotificationProcessor(&recordingSender{}, &recordingSender{}, Config{AdminEmail: "a@b.c"})
	if err := p.Process(context.Background(), "not-json"); err != nil {
		t.Fatalf("malformed payload should be dropped, got %v", err)
	}
}

func TestWithAttempt(t *testing.T) {
	payload := testNotificationPayload(t)

	next, attempts, err := WithAttempt(payload)
	if err != nil {
		t.Fatalf("WithAttempt error: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
	next, attempts, err = WithAttempt(next)
	if err != nil {
		t.Fatalf("WithAttempt error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}

	var n Notification
	if err := json.Unmarshal([]byte(next), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.ID != "n-1" || n.Subject != "New event" {
		t.Fatalf("payload mutated beyond attempts: %+v", n)
	}
}
