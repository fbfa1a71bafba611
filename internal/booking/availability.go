package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hackgods/turf-booking/internal/catalog"
)

const defaultPreviewLimit = 6

// Resolver derives per-slot availability from bookings and admin blocks.
type Resolver struct {
	store Store
	cache AvailabilityCache

	mu sync.Mutex
	// bumped on every Invalidate; a read that straddles one is not cached
	generations map[string]uint64
}

func NewResolver(store Store, cache AvailabilityCache) *Resolver {
	if cache == nil {
		cache = NoCache()
	}
	return &Resolver{store: store, cache: cache, generations: map[string]uint64{}}
}

// Resolve reports the status of every catalog slot for one date and sport.
// A blocked date short-circuits to an empty slot list. Only paid bookings
// occupy a slot, so cancelled ones free it again. A slot that is both booked
// and blocked reports booked.
func (r *Resolver) Resolve(ctx context.Context, date, sportType string) (*Availability, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	sport, err := checkSport(sportType)
	if err != nil {
		return nil, err
	}

	if cached, ok := r.cache.Get(ctx, date, sport); ok {
		return cached, nil
	}

	gen := r.generation(date)
	a, err := r.resolve(ctx, date, sport)
	if err != nil {
		return nil, err
	}

	if r.generation(date) == gen {
		r.cache.Set(ctx, a)
	}
	return a, nil
}

func (r *Resolver) generation(date string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[date]
}

func (r *Resolver) resolve(ctx context.Context, date string, sport catalog.Sport) (*Availability, error) {
	blockedDay, err := r.store.GetActiveBlockedDate(ctx, date)
	if err != nil && !errors.Is(err, ErrBlockNotFound) {
		return nil, fmt.Errorf("load blocked date: %w: %w", ErrStoreUnavailable, err)
	}
	if blockedDay != nil {
		return &Availability{Date: date, Sport: sport, IsDateBlocked: true, Slots: []SlotAvailability{}}, nil
	}

	booked, err := r.store.ListBookedSlotIDs(ctx, date, string(sport))
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w: %w", ErrStoreUnavailable, err)
	}
	blocked, err := r.store.ListBlockedSlotIDs(ctx, date, string(sport))
	if err != nil {
		return nil, fmt.Errorf("load blocked slots: %w: %w", ErrStoreUnavailable, err)
	}

	bookedSet := toSet(booked)
	blockedSet := toSet(blocked)

	slots := catalog.Slots()
	out := make([]SlotAvailability, 0, len(slots))
	for _, s := range slots {
		status := SlotAvailable
		switch {
		case bookedSet[s.ID]:
			status = SlotBooked
		case blockedSet[s.ID]:
			status = SlotBlocked
		}
		out = append(out, SlotAvailability{SlotID: s.ID, Label: s.Label, Status: status})
	}

	return &Availability{Date: date, Sport: sport, Slots: out}, nil
}

// Preview lists up to limit open peak slots across all sports for one date,
// sport by sport in catalog order.
func (r *Resolver) Preview(ctx context.Context, date string, limit int) ([]OpenSlot, error) {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	if most := len(catalog.Sports()) * len(catalog.PreviewSlotIDs); limit > most {
		limit = most
	}

	open := []OpenSlot{}
	for _, sport := range catalog.Sports() {
		a, err := r.Resolve(ctx, date, string(sport.ID))
		if err != nil {
			return nil, err
		}
		if a.IsDateBlocked {
			continue
		}

		status := make(map[string]SlotAvailability, len(a.Slots))
		for _, s := range a.Slots {
			status[s.SlotID] = s
		}
		for _, id := range catalog.PreviewSlotIDs {
			s, ok := status[id]
			if !ok || s.Status != SlotAvailable {
				continue
			}
			open = append(open, OpenSlot{SlotID: id, Label: s.Label, Sport: sport.ID})
			if len(open) == limit {
				return open, nil
			}
		}
	}
	return open, nil
}

func (r *Resolver) Invalidate(ctx context.Context, date string) {
	r.mu.Lock()
	r.generations[date]++
	r.mu.Unlock()
	r.cache.Invalidate(ctx, date)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
