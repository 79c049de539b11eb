package core

import (
	"log"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"
)

// EmailSender delivers one plain-text mail.
type EmailSender interface {
	SendEmail(to, subject, body string) error
}

// MessageSender delivers one WhatsApp message.
type MessageSender interface {
	SendMessage(to, body string) error
}

// GomailSender sends mail through a plain SMTP relay. When no host is
// configured the send is logged and skipped, so local setups work
// without a mail account.
type GomailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewGomailSender(cfg Config) *GomailSender {
	s := &GomailSender{from: cfg.MailFrom}
	if cfg.SMTPHost != "" {
		s.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return s
}

func (s *GomailSender) SendEmail(to, subject, body string) error {
	if s.dialer == nil {
		log.Printf("email not configured; would send to %s subject=%q", to, subject)
		return nil
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

// TwilioSender sends WhatsApp messages through the Twilio API. Like
// mail, an unconfigured sender logs and skips.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(cfg Config) *TwilioSender {
	s := &TwilioSender{from: cfg.TwilioWhatsAppFrom}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioWhatsAppFrom != "" {
		s.client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		})
	}
	return s
}

func (s *TwilioSender) SendMessage(to, body string) error {
	if s.client == nil {
		log.Printf("whatsapp not configured; would send to %s", to)
		return nil
	}
	params := &twilioapi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom("whatsapp:" + s.from)
	params.SetBody(body)
	_, err := s.client.Api.CreateMessage(params)
	return err
}
