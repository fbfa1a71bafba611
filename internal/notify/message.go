package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/turf-booking/internal/booking"
	"github.com/hackgods/turf-booking/internal/catalog"
)

const venueName = "SportsTurf Pro"

func longDate(date string) string {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return d.Format("Monday, 2 January 2006")
}

func slotLabel(slotID string) string {
	label, err := catalog.FormatLabel(slotID)
	if err != nil {
		return slotID
	}
	return label
}

// MessageText is the WhatsApp confirmation sent to the customer.
func MessageText(b booking.Booking) string {
	var sb strings.Builder
	sb.WriteString("🏟️ BOOKING CONFIRMED!\n\n")
	fmt.Fprintf(&sb, "Hi %s! Your turf booking is confirmed.\n\n", b.FullName)
	sb.WriteString("📋 Booking Details:\n")
	fmt.Fprintf(&sb, "🆔 Booking ID: %s\n", b.BookingID)
	fmt.Fprintf(&sb, "🏆 Sport: %s\n", b.SportType.DisplayName())
	fmt.Fprintf(&sb, "📅 Date: %s\n", longDate(b.Date))
	fmt.Fprintf(&sb, "⏰ Time: %s\n", slotLabel(b.TimeSlot))
	if b.TeamName != nil && *b.TeamName != "" {
		fmt.Fprintf(&sb, "🏏 Team: %s\n", *b.TeamName)
	}
	fmt.Fprintf(&sb, "💰 Amount Paid: ₹%d\n", b.Amount)
	sb.WriteString("💳 Payment: SUCCESS ✅\n\n")
	sb.WriteString("Please arrive 10 minutes before your slot time.\n\n")
	fmt.Fprintf(&sb, "Thank you for choosing %s! 🙏\n\n", venueName)
	sb.WriteString("For any queries, contact us.")
	return sb.String()
}

// DeepLink builds a link that opens WhatsApp with text prefilled for mobile.
// The https scheme yields a wa.me link; any other scheme is used as an app link.
func DeepLink(scheme, mobile, text string) string {
	phone := strings.TrimPrefix(mobile, "+")
	encoded := url.QueryEscape(text)
	encoded = strings.ReplaceAll(encoded, "+", "%20")

	if scheme == "https" {
		return "https://wa.me/" + phone + "?text=" + encoded
	}
	if scheme == "" {
		scheme = "whatsapp"
	}
	return scheme + "://send?phone=" + phone + "&text=" + encoded
}

func emailSubject(b booking.Booking) string {
	return fmt.Sprintf("Booking confirmed: %s on %s (%s)", b.SportType.DisplayName(), longDate(b.Date), b.BookingID)
}

func teamOrIndividual(b booking.Booking) string {
	if b.TeamName != nil && *b.TeamName != "" {
		return *b.TeamName
	}
	return "Individual"
}

// templateParams are the variables the hosted confirmation template expects.
func templateParams(b booking.Booking) map[string]string {
	email := ""
	if b.Email != nil {
		email = *b.Email
	}
	return map[string]string{
		"to_email":     email,
		"to_name":      b.FullName,
		"booking_id":   b.BookingID,
		"sport_type":   string(b.SportType),
		"booking_date": b.Date,
		"time_slot":    b.TimeSlot,
		"amount":       strconv.FormatInt(b.Amount, 10),
		"mobile":       b.Mobile,
		"team_name":    teamOrIndividual(b),
	}
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2 style="color: #16a34a;">Booking confirmed</h2>
  <p>Hi {{.Name}}, your turf booking is confirmed.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><td><strong>Booking ID</strong></td><td>{{.BookingID}}</td></tr>
    <tr><td><strong>Sport</strong></td><td>{{.Sport}}</td></tr>
    <tr><td><strong>Date</strong></td><td>{{.Date}}</td></tr>
    <tr><td><strong>Time</strong></td><td>{{.Time}}</td></tr>
    <tr><td><strong>Team</strong></td><td>{{.Team}}</td></tr>
    <tr><td><strong>Amount paid</strong></td><td>&#8377;{{.Amount}}</td></tr>
  </table>
  <p>Please arrive 10 minutes before your slot time.</p>
  <p>Thank you for choosing {{.Venue}}!</p>
</body>
</html>`))

func renderHTML(b booking.Booking) (string, error) {
	var buf bytes.Buffer
	err := confirmationHTML.Execute(&buf, struct {
		Name, BookingID, Sport, Date, Time, Team, Venue string
		Amount                                          int64
	}{
		Name:      b.FullName,
		BookingID: b.BookingID,
		Sport:     b.SportType.DisplayName(),
		Date:      longDate(b.Date),
		Time:      slotLabel(b.TimeSlot),
		Team:      teamOrIndividual(b),
		Venue:     venueName,
		Amount:    b.Amount,
	})
	if err != nil {
		return "", fmt.Errorf("render confirmation email: %w", err)
	}
	return buf.String(), nil
}
