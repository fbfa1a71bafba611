package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownSport = errors.New("unknown sport")

type Sport string

const (
	Cricket    Sport = "cricket"
	Football   Sport = "football"
	Badminton  Sport = "badminton"
	Basketball Sport = "basketball"
)

// SportInfo carries the hourly price in rupees.
type SportInfo struct {
	ID    Sport
	Name  string
	Price int64
}

var sports = []SportInfo{
	{ID: Cricket, Name: "Cricket", Price: 800},
	{ID: Football, Name: "Football", Price: 1000},
	{ID: Badminton, Name: "Badminton", Price: 600},
	{ID: Basketball, Name: "Basketball", Price: 700},
}

func Sports() []SportInfo {
	out := make([]SportInfo, len(sports))
	copy(out, sports)
	return out
}

func ParseSport(s string) (Sport, error) {
	for _, info := range sports {
		if string(info.ID) == s {
			return info.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSport, s)
}

func Price(s Sport) (int64, error) {
	for _, info := range sports {
		if info.ID == s {
			return info.Price, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSport, s)
}

// DisplayName capitalises the sport id, "cricket" -> "Cricket".
func (s Sport) DisplayName() string {
	for _, info := range sports {
		if info.ID == s {
			return info.Name
		}
	}
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}
