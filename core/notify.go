package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Notification is one admin alert queued for delivery. Subject/Body are
// rendered at enqueue time so the worker needs no database access; the
// same body goes to email and (trimmed) to WhatsApp. Attempts travels
// with the job so retries survive worker restarts.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	WhatsApp  string    `json:"whatsapp"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification kinds.
const (
	NotifyEventCreated     = "event_created"
	NotifyEventUpdated     = "event_updated"
	NotifyEventFeatured    = "event_featured"
	NotifyFeedbackReceived = "feedback_received"
	NotifyOfferingLead     = "offering_lead"
	NotifyEventLead        = "event_lead"
)

// NotificationQueue is the enqueue-only slice of the Redis queue the
// API needs.
type NotificationQueue interface {
	Enqueue(ctx context.Context, pendingKey string, value string) error
}

// NotificationService renders admin alerts and pushes them onto the
// Redis queue. Enqueue failures are logged and swallowed: a lead that
// reached the database must never be lost because Redis was down.
type NotificationService struct {
	queue NotificationQueue
}

func NewNotificationService(queue NotificationQueue) *NotificationService {
	return &NotificationService{queue: queue}
}

func (s *NotificationService) EventCreated(ctx context.Context, eventID int64, title string) {
	body := fmt.Sprintf("New event created.\n\nEvent ID: %d\nTitle: %s\n\nReview it in the admin dashboard.", eventID, title)
	wa := fmt.Sprintf("*NEW EVENT*\nID: %d\nTitle: %s", eventID, title)
	s.enqueue(ctx, NotifyEventCreated, "New event created: "+title, body, wa)
}

func (s *NotificationService) EventUpdated(ctx context.Context, eventID int64, title string) {
	body := fmt.Sprintf("Event updated.\n\nEvent ID: %d\nTitle: %s\n\nReview the changes in the admin dashboard.", eventID, title)
	wa := fmt.Sprintf("*EVENT UPDATED*\nID: %d\nTitle: %s", eventID, title)
	s.enqueue(ctx, NotifyEventUpdated, "Event updated: "+title, body, wa)
}

func (s *NotificationService) EventFeatured(ctx context.Context, eventID int64, title string, featured bool) {
	action := "featured"
	if !featured {
		action = "unfeatured"
	}
	body := fmt.Sprintf("Event %s.\n\nEvent ID: %d\nTitle: %s", action, eventID, title)
	wa := fmt.Sprintf("*EVENT %s*\nID: %d\nTitle: %s", action, eventID, title)
	s.enqueue(ctx, NotifyEventFeatured, fmt.Sprintf("Event %s: %s", action, title), body, wa)
}

func (s *NotificationService) FeedbackReceived(ctx context.Context, eventID int64, eventTitle, author, message string) {
	if author == "" {
		author = "Anonymous"
	}
	body := fmt.Sprintf("New feedback received.\n\nEvent ID: %d\nEvent: %s\nFrom: %s\n\n%s", eventID, eventTitle, author, message)
	wa := fmt.Sprintf("*NEW FEEDBACK*\nEvent: %s\nFrom: %s\n%s", eventTitle, author, truncate(message, 100))
	s.enqueue(ctx, NotifyFeedbackReceived, "New feedback on "+eventTitle, body, wa)
}

func (s *NotificationService) OfferingLead(ctx context.Context, req *OfferingRequest) {
	body := fmt.Sprintf("New offering inquiry.\n\nOffering: %s (ID %d)\nName: %s\nContact: %s\n\n%s",
		req.OfferingTitle, req.OfferingID, req.Name, req.Contact, req.Message)
	wa := fmt.Sprintf("*NEW INQUIRY*\nOffering: %s\nName: %s\nContact: %s", req.OfferingTitle, req.Name, req.Contact)
	s.enqueue(ctx, NotifyOfferingLead, "New inquiry for "+req.OfferingTitle, body, wa)
}

func (s *NotificationService) EventLead(ctx context.Context, req *EventRequest) {
	subjectTitle := req.EventTitle
	if subjectTitle == "" {
		subjectTitle = "general inquiry"
	}
	body := fmt.Sprintf("New event request (%s).\n\nEvent: %s\nName: %s\nEmail: %s\nPhone: %s\n\n%s",
		req.RequestType, subjectTitle, req.Name, req.Email, req.Phone, req.Message)
	wa := fmt.Sprintf("*NEW EVENT REQUEST*\nEvent: %s\nName: %s\nPhone: %s", subjectTitle, req.Name, req.Phone)
	s.enqueue(ctx, NotifyEventLead, "New event request: "+subjectTitle, body, wa)
}

func (s *NotificationService) enqueue(ctx context.Context, kind, subject, body, whatsapp string) {
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   subject,
		Body:      body,
		WhatsApp:  whatsapp,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(n)
	if err != nil {
		log.Printf("notify: marshal %s: %v", kind, err)
		return
	}
	if err := s.queue.Enqueue(ctx, PendingQueueKey, string(data)); err != nil {
		log.Printf("notify: enqueue %s failed: %v", kind, err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
