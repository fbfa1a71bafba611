package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

// WhatsAppMessage is a prepared confirmation for one customer.
type WhatsAppMessage struct {
	BookingID string `json:"booking_id"`
	Mobile    string `json:"mobile"`
	Text      string `json:"text"`
	URL       string `json:"url"`
}

// Opener delivers a prepared WhatsApp message.
type Opener interface {
	Open(ctx context.Context, msg WhatsAppMessage) error
}

type LogOpener struct{}

func (LogOpener) Open(_ context.Context, msg WhatsAppMessage) error {
	log.Printf("whatsapp booking_id=%s mobile=%s url=%s", msg.BookingID, msg.Mobile, msg.URL)
	return nil
}

// WebhookOpener relays the message to an HTTP endpoint, e.g. a WhatsApp
// Business gateway.
type WebhookOpener struct {
	client *resty.Client
	url    string
}

func NewWebhookOpener(url string) *WebhookOpener {
	return &WebhookOpener{
		client: resty.New().SetTimeout(10 * time.Second),
		url:    url,
	}
}

func (o *WebhookOpener) Open(ctx context.Context, msg WhatsAppMessage) error {
	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		Post(o.url)
	if err != nil {
		return fmt.Errorf("whatsapp webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("whatsapp webhook: status=%d", resp.StatusCode())
	}
	return nil
}
