package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/turf-booking/internal/booking"
)

type StatsFunc func(ctx context.Context, date string) (booking.Stats, error)

// Digest sends the end-of-day summary to the staff chat.
type Digest struct {
	stats   StatsFunc
	dead    TaskStore
	alerter booking.Alerter
	today   func() string
}

func NewDigest(stats StatsFunc, dead TaskStore, alerter booking.Alerter, today func() string) *Digest {
	return &Digest{stats: stats, dead: dead, alerter: alerter, today: today}
}

func (g *Digest) Send(ctx context.Context) error {
	date := g.today()
	st, err := g.stats(ctx, date)
	if err != nil {
		return fmt.Errorf("digest stats: %w", err)
	}
	st.Date = date

	deadCount := 0
	if g.dead != nil {
		dead, err := g.dead.ListDead(ctx, 100)
		if err != nil {
			return fmt.Errorf("digest dead tasks: %w", err)
		}
		deadCount = len(dead)
	}

	return g.alerter.Alert(ctx, DigestText(st, deadCount))
}

func DigestText(st booking.Stats, deadTasks int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Daily summary for %s\n", longDate(st.Date))
	fmt.Fprintf(&sb, "Bookings today: %d\n", st.TodayBookings)
	fmt.Fprintf(&sb, "Revenue today: ₹%d\n", st.TodayRevenue)
	fmt.Fprintf(&sb, "Confirmed bookings (all time): %d\n", st.ConfirmedBookings)
	fmt.Fprintf(&sb, "Revenue (all time): ₹%d\n", st.TotalRevenue)
	if deadTasks > 0 {
		fmt.Fprintf(&sb, "Undelivered confirmations: %d", deadTasks)
	} else {
		sb.WriteString("All confirmations delivered")
	}
	return sb.String()
}
