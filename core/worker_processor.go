package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// NotificationProcessor delivers queued notifications to the configured
// admin channels. Each channel is attempted independently; the job only
// counts as failed (and becomes retryable) when every configured
// channel errors.
type NotificationProcessor struct {
	email      EmailSender
	whatsapp   MessageSender
	adminEmail string
	adminPhone string
}

func NewNotificationProcessor(email EmailSender, whatsapp MessageSender, cfg Config) *NotificationProcessor {
	return &NotificationProcessor{
		email:      email,
		whatsapp:   whatsapp,
		adminEmail: cfg.AdminEmail,
		adminPhone: cfg.AdminPhone,
	}
}

// Process handles one raw job payload from the queue.
func (p *NotificationProcessor) Process(ctx context.Context, payload string) error {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		// Undecodable payloads can never succeed; drop instead of retry.
		log.Printf("notification: dropping malformed payload: %v", err)
		return nil
	}

	var emailErr, waErr error
	if p.adminEmail != "" {
		emailErr = p.email.SendEmail(p.adminEmail, n.Subject, n.Body)
		if emailErr != nil {
			log.Printf("notification %s: email delivery failed: %v", n.ID, emailErr)
		}
	}
	if p.adminPhone != "" {
		waErr = p.whatsapp.SendMessage(p.adminPhone, n.WhatsApp)
		if waErr != nil {
			log.Printf("notification %s: whatsapp delivery failed: %v", n.ID, waErr)
		}
	}

	if emailErr != nil && waErr != nil {
		return fmt.Errorf("all channels failed: email: %v; whatsapp: %v", emailErr, waErr)
	}
	return nil
}

// WithAttempt returns the payload re-marshaled with Attempts+1, along
// with the new count. Used by the worker to requeue failed jobs while
// keeping the retry counter inside the payload itself.
func WithAttempt(payload string) (string, int, error) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return "", 0, err
	}
	n.Attempts++
	data, err := json.Marshal(n)
	if err != nil {
		return "", 0, err
	}
	return string(data), n.Attempts, nil
}
