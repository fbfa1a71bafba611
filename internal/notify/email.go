package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/hackgods/turf-booking/internal/booking"
)

var errNoRecipient = errors.New("booking has no email address")

// EmailSender delivers the booking confirmation email.
type EmailSender interface {
	SendConfirmation(ctx context.Context, b booking.Booking) error
}

func recipient(b booking.Booking) (string, error) {
	if b.Email == nil || strings.TrimSpace(*b.Email) == "" {
		return "", errNoRecipient
	}
	return *b.Email, nil
}

type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{host: host, port: port, username: username, password: password, from: from}
}

func (s *SMTPSender) SendConfirmation(ctx context.Context, b booking.Booking) error {
	to, err := recipient(b)
	if err != nil {
		return err
	}
	body, err := renderHTML(b)
	if err != nil {
		return err
	}

	msg := "From: " + s.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + emailSubject(b) + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n" +
		body

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	// net/smtp has no context support; bound the wait instead
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const emailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJSSender posts to the EmailJS REST API using a hosted template.
type EmailJSSender struct {
	client     *resty.Client
	endpoint   string
	serviceID  string
	templateID string
	publicKey  string
	privateKey string
}

func NewEmailJSSender(serviceID, templateID, publicKey, privateKey string) *EmailJSSender {
	return &EmailJSSender{
		client:     resty.New().SetTimeout(10 * time.Second),
		endpoint:   emailJSEndpoint,
		serviceID:  serviceID,
		templateID: templateID,
		publicKey:  publicKey,
		privateKey: privateKey,
	}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

func (s *EmailJSSender) SendConfirmation(ctx context.Context, b booking.Booking) error {
	if _, err := recipient(b); err != nil {
		return err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(emailJSRequest{
			ServiceID:      s.serviceID,
			TemplateID:     s.templateID,
			UserID:         s.publicKey,
			AccessToken:    s.privateKey,
			TemplateParams: templateParams(b),
		}).
		Post(s.endpoint)
	if err != nil {
		return fmt.Errorf("emailjs send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("emailjs send: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return nil
}

type SendGridSender struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), from: from, fromName: venueName}
}

func (s *SendGridSender) SendConfirmation(ctx context.Context, b booking.Booking) error {
	to, err := recipient(b)
	if err != nil {
		return err
	}
	body, err := renderHTML(b)
	if err != nil {
		return err
	}

	msg := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.from),
		emailSubject(b),
		mail.NewEmail(b.FullName, to),
		MessageText(b),
		body,
	)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send to %s: %w", to, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send to %s: status=%d body=%s", to, resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender only logs; used in development.
type LogSender struct{}

func (LogSender) SendConfirmation(_ context.Context, b booking.Booking) error {
	to, err := recipient(b)
	if err != nil {
		return err
	}
	log.Printf("email to=%s subject=%q", to, emailSubject(b))
	return nil
}
