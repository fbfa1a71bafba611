package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/turf-booking/internal/booking"
)

type Config struct {
	MaxAttempts    int
	Backoff        time.Duration
	Lease          time.Duration
	BatchSize      int
	WhatsAppScheme string
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Backoff <= 0 {
		c.Backoff = 30 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.WhatsAppScheme == "" {
		c.WhatsAppScheme = "whatsapp"
	}
	return c
}

// Dispatcher records confirmation messages as tasks and delivers them in
// the background, retrying failures with exponential backoff.
type Dispatcher struct {
	store    TaskStore
	email    EmailSender
	whatsapp Opener
	alerter  booking.Alerter
	cfg      Config
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewDispatcher(store TaskStore, email EmailSender, whatsapp Opener, alerter booking.Alerter, cfg Config) *Dispatcher {
	if email == nil {
		email = LogSender{}
	}
	if whatsapp == nil {
		whatsapp = LogOpener{}
	}
	if alerter == nil {
		alerter = LogAlerter{}
	}
	return &Dispatcher{
		store:    store,
		email:    email,
		whatsapp: whatsapp,
		alerter:  alerter,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// Enqueue records the tasks for a confirmed booking and starts delivering
// them without waiting for the result.
func (d *Dispatcher) Enqueue(ctx context.Context, b booking.Booking) (*booking.NotificationReceipt, error) {
	now := d.now()
	// the inline attempt holds the lease so the retry worker leaves it alone
	due := now.Add(d.cfg.Lease)

	newTask := func(ch Channel) Task {
		return Task{
			ID:            uuid.New(),
			BookingID:     b.BookingID,
			Channel:       ch,
			Status:        StatusPending,
			Booking:       b,
			NextAttemptAt: due,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	var tasks []Task
	if b.Email != nil && *b.Email != "" {
		tasks = append(tasks, newTask(ChannelEmail))
	}
	tasks = append(tasks, newTask(ChannelWhatsApp))

	if err := d.store.CreateTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("record notification tasks: %w", err)
	}

	channels := make([]string, len(tasks))
	for i, t := range tasks {
		channels[i] = string(t.Channel)
	}

	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(bg, tasks)
	}()

	return &booking.NotificationReceipt{
		MessageURI: DeepLink(d.cfg.WhatsAppScheme, b.Mobile, MessageText(b)),
		Channels:   channels,
	}, nil
}

// Wait blocks until every background delivery started by Enqueue is done.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// RetryDue claims due tasks and attempts them once more. It returns how many
// tasks were attempted.
func (d *Dispatcher) RetryDue(ctx context.Context) (int, error) {
	tasks, err := d.store.ClaimDue(ctx, d.now(), d.cfg.Lease, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	d.run(ctx, tasks)
	return len(tasks), nil
}

// Requeue gives a dead task a fresh attempt budget and makes it due now.
func (d *Dispatcher) Requeue(ctx context.Context, id uuid.UUID) (*Task, error) {
	return d.store.Requeue(ctx, id, d.now())
}

func (d *Dispatcher) ListDead(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return d.store.ListDead(ctx, limit)
}

func (d *Dispatcher) run(ctx context.Context, tasks []Task) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, t := range tasks {
		g.Go(func() error {
			d.attempt(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, t Task) error {
	switch t.Channel {
	case ChannelEmail:
		return d.email.SendConfirmation(ctx, t.Booking)
	case ChannelWhatsApp:
		text := MessageText(t.Booking)
		return d.whatsapp.Open(ctx, WhatsAppMessage{
			BookingID: t.BookingID,
			Mobile:    t.Booking.Mobile,
			Text:      text,
			URL:       DeepLink(d.cfg.WhatsAppScheme, t.Booking.Mobile, text),
		})
	default:
		return fmt.Errorf("unknown channel %q", t.Channel)
	}
}

func (d *Dispatcher) attempt(ctx context.Context, t Task) {
	err := d.deliver(ctx, t)
	if err == nil {
		if err := d.store.MarkSent(ctx, t.ID, d.now()); err != nil {
			log.Printf("failed to mark task %s sent: %v", t.ID, err)
		}
		return
	}

	attempts := t.Attempts + 1
	f := Failure{
		Attempts:      attempts,
		Err:           err.Error(),
		NextAttemptAt: d.now().Add(d.backoff(attempts)),
		Dead:          attempts >= d.cfg.MaxAttempts,
	}
	log.Printf("booking_id=%s channel=%s attempt=%d dead=%t: %v",
		t.BookingID, t.Channel, attempts, f.Dead, fmt.Errorf("%w: %w", booking.ErrNotificationFailure, err))

	if err := d.store.MarkFailed(ctx, t.ID, f); err != nil {
		log.Printf("failed to mark task %s failed: %v", t.ID, err)
	}

	if f.Dead {
		msg := fmt.Sprintf("Could not send %s confirmation for booking %s (%s) after %d attempts: %s",
			t.Channel, t.BookingID, t.Booking.Mobile, attempts, f.Err)
		if err := d.alerter.Alert(ctx, msg); err != nil {
			log.Printf("failed to alert about task %s: %v", t.ID, err)
		}
	}
}

// backoff doubles the base delay for each failed attempt, capped at a day.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.Backoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= 24*time.Hour {
			return 24 * time.Hour
		}
	}
	return delay
}
