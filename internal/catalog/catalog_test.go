package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlots_FourteenInCalendarOrder(t *testing.T) {
	got := Slots()
	require.Len(t, got, 14)

	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].StartHour, got[i].StartHour, "slot %d out of order", i)
	}
	assert.Equal(t, "06:00-07:00", got[0].ID)
	assert.Equal(t, "21:00-22:00", got[13].ID)
}

func TestSlots_LunchGap(t *testing.T) {
	for _, s := range Slots() {
		if s.StartHour >= 12 && s.StartHour < 14 {
			t.Fatalf("slot %s falls inside the lunch break", s.ID)
		}
	}
	assert.False(t, IsSlot("12:00-13:00"))
	assert.False(t, IsSlot("13:00-14:00"))
}

func TestSlots_ReturnsCopy(t *testing.T) {
	a := Slots()
	a[0].ID = "mutated"
	assert.Equal(t, "06:00-07:00", Slots()[0].ID)
}

func TestFormatLabel(t *testing.T) {
	cases := map[string]string{
		"06:00-07:00": "6:00 - 7:00 AM",
		"11:00-12:00": "11:00 AM - 12:00 PM",
		"14:00-15:00": "2:00 - 3:00 PM",
		"21:00-22:00": "9:00 - 10:00 PM",
		"00:00-01:00": "12:00 - 1:00 AM",
		"12:00-13:00": "12:00 - 1:00 PM",
	}
	for id, want := range cases {
		got, err := FormatLabel(id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got, id)
	}
}

func TestFormatLabel_Invalid(t *testing.T) {
	for _, id := range []string{"", "6-7", "25:00-26:00", "06:00"} {
		_, err := FormatLabel(id)
		assert.True(t, errors.Is(err, ErrUnknownSlot), "id %q: %v", id, err)
	}
}

func TestLookupSlot(t *testing.T) {
	s, err := LookupSlot("18:00-19:00")
	require.NoError(t, err)
	assert.Equal(t, "6:00 - 7:00 PM", s.Label)

	_, err = LookupSlot("18:30-19:30")
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestSportPrices(t *testing.T) {
	cases := map[Sport]int64{
		Cricket:    800,
		Football:   1000,
		Badminton:  600,
		Basketball: 700,
	}
	for sport, want := range cases {
		got, err := Price(sport)
		require.NoError(t, err)
		assert.Equal(t, want, got, sport)
	}

	_, err := Price("tennis")
	assert.ErrorIs(t, err, ErrUnknownSport)
}

func TestParseSport(t *testing.T) {
	s, err := ParseSport("football")
	require.NoError(t, err)
	assert.Equal(t, Football, s)
	assert.Equal(t, "Football", s.DisplayName())

	_, err = ParseSport("Football")
	assert.ErrorIs(t, err, ErrUnknownSport)
}
