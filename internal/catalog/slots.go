package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownSlot = errors.New("unknown time slot")

// Slot is one bookable hour of the turf.
type Slot struct {
	ID        string
	Label     string
	StartHour int
	EndHour   int
}

// No slot covers 12:00-14:00, the turf closes for lunch.
var slotIDs = []string{
	"06:00-07:00",
	"07:00-08:00",
	"08:00-09:00",
	"09:00-10:00",
	"10:00-11:00",
	"11:00-12:00",
	"14:00-15:00",
	"15:00-16:00",
	"16:00-17:00",
	"17:00-18:00",
	"18:00-19:00",
	"19:00-20:00",
	"20:00-21:00",
	"21:00-22:00",
}

// PreviewSlotIDs are the peak slots shown in the "open today" strip.
var PreviewSlotIDs = []string{
	"06:00-07:00",
	"07:00-08:00",
	"17:00-18:00",
	"18:00-19:00",
	"19:00-20:00",
}

var (
	slots     []Slot
	slotIndex map[string]int
)

func init() {
	slots = make([]Slot, 0, len(slotIDs))
	slotIndex = make(map[string]int, len(slotIDs))
	for i, id := range slotIDs {
		s, err := parseSlot(id)
		if err != nil {
			panic(fmt.Sprintf("catalog: bad slot %q: %v", id, err))
		}
		slots = append(slots, s)
		slotIndex[id] = i
	}
}

// Slots returns the catalog in calendar order. The slice is a copy.
func Slots() []Slot {
	out := make([]Slot, len(slots))
	copy(out, slots)
	return out
}

func IsSlot(id string) bool {
	_, ok := slotIndex[id]
	return ok
}

func LookupSlot(id string) (Slot, error) {
	i, ok := slotIndex[id]
	if !ok {
		return Slot{}, fmt.Errorf("%w: %q", ErrUnknownSlot, id)
	}
	return slots[i], nil
}

// FormatLabel renders a slot id such as "11:00-12:00" as "11:00 AM - 12:00 PM".
func FormatLabel(id string) (string, error) {
	s, err := parseSlot(id)
	if err != nil {
		return "", err
	}
	return s.Label, nil
}

func parseSlot(id string) (Slot, error) {
	start, end, ok := strings.Cut(id, "-")
	if !ok {
		return Slot{}, fmt.Errorf("%w: %q", ErrUnknownSlot, id)
	}
	sh, sm, err := parseClock(start)
	if err != nil {
		return Slot{}, err
	}
	eh, em, err := parseClock(end)
	if err != nil {
		return Slot{}, err
	}

	startText, startSuffix := twelveHour(sh, sm)
	endText, endSuffix := twelveHour(eh, em)

	var label string
	if startSuffix == endSuffix {
		label = fmt.Sprintf("%s - %s %s", startText, endText, endSuffix)
	} else {
		label = fmt.Sprintf("%s %s - %s %s", startText, startSuffix, endText, endSuffix)
	}

	return Slot{ID: id, Label: label, StartHour: sh, EndHour: eh}, nil
}

func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok || len(h) != 2 || len(m) != 2 {
		return 0, 0, fmt.Errorf("%w: bad clock %q", ErrUnknownSlot, s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: bad hour %q", ErrUnknownSlot, s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: bad minute %q", ErrUnknownSlot, s)
	}
	return hour, minute, nil
}

func twelveHour(hour, minute int) (string, string) {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d", h, minute), suffix
}
