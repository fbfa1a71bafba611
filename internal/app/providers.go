package app

import (
	"fmt"
	"log"

	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/config"
	"github.com/hackgods/turf-booking/internal/events"
	"github.com/hackgods/turf-booking/internal/notify"
	"github.com/hackgods/turf-booking/internal/payment"
)

// NewGateway returns Razorpay when a key is configured and the sandbox
// otherwise. The sandbox accepts every payment, so prod never gets it.
func NewGateway(env string, cfg config.PaymentConfig) (payment.Gateway, error) {
	if cfg.RazorpayKeyID == "" {
		if env == "prod" {
			return nil, fmt.Errorf("sandbox payments are not allowed in prod: %w", payment.ErrMissingKeys)
		}
		log.Println("RAZORPAY_KEY_ID not set, using sandbox payments")
		return payment.NewSandbox(), nil
	}
	rp, err := payment.NewRazorpay(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	if err != nil {
		return nil, err
	}
	return rp, nil
}

func NewEmailSender(cfg config.EmailConfig) notify.EmailSender {
	switch cfg.Provider {
	case "smtp":
		return notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.From)
	case "emailjs":
		return notify.NewEmailJSSender(cfg.EmailJSServiceID, cfg.EmailJSTemplateID, cfg.EmailJSPublicKey, cfg.EmailJSPrivateKey)
	case "sendgrid":
		return notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.From)
	case "", "log":
		return notify.LogSender{}
	default:
		log.Printf("unknown EMAIL_PROVIDER=%q, logging emails instead", cfg.Provider)
		return notify.LogSender{}
	}
}

func NewOpener(cfg config.NotifyConfig) notify.Opener {
	if cfg.WhatsAppWebhookURL == "" {
		return notify.LogOpener{}
	}
	return notify.NewWebhookOpener(cfg.WhatsAppWebhookURL)
}

// NewAlerter posts to Telegram when a bot is configured. A bot that fails
// to start falls back to the log so bookings keep flowing.
func NewAlerter(cfg config.NotifyConfig) booking.Alerter {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == 0 {
		return notify.LogAlerter{}
	}
	a, err := notify.NewTelegramAlerter(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Printf("telegram alerter unavailable, logging alerts instead: %v", err)
		return notify.LogAlerter{}
	}
	return a
}

// NewPublisher connects to RabbitMQ when AMQP_URL is set. Events are an
// optional feed, so a broker outage only disables them.
func NewPublisher(cfg config.Config) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		log.Printf("event publisher unavailable, events stay local: %v", err)
		return events.NopPublisher{}
	}
	log.Printf("publishing events to exchange=%s", cfg.Exchange)
	return p
}
