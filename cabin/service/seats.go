package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/wricardo/cabinsmart/cabin/seating"
)

// statusFields maps accepted update keys to stored field names.
var statusFields = map[string]string{
	"isInSeat":       "is_occupied",
	"is_buckled":     "is_buckled",
	"passenger_name": "passenger_name",
}

func (s *Service) Seats(ctx context.Context) ([]seating.Seat, error) {
	seats, err := s.store.ListSeats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	return seats, nil
}

func (s *Service) Seat(ctx context.Context, seatID string) (seating.Seat, error) {
	if seatID == "" {
		return seating.Seat{}, ErrMissingSeatID
	}
	return s.store.GetSeat(ctx, seatID)
}

// ToggleSeatBelt flips the belt flag of one seat.
func (s *Service) ToggleSeatBelt(ctx context.Context, seatID string) (*SeatChange, error) {
	if seatID == "" {
		return nil, ErrMissingSeatID
	}

	updates := make(map[string]any, 2)
	seat, err := s.store.UpdateSeat(ctx, seatID, func(seat *seating.Seat) error {
		seat.IsBuckled = !seat.IsBuckled
		updates["is_buckled"] = seat.IsBuckled
		updates["last_updated"] = seat.Touch(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("seat belt toggled", "seat_id", seatID, "is_buckled", seat.IsBuckled)
	return &SeatChange{Seat: seat, Updates: updates}, nil
}

// UpdateSeatStatus applies the whitelisted keys of updates. Unknown keys and
// values of the wrong type are ignored; the seat is stamped regardless.
func (s *Service) UpdateSeatStatus(ctx context.Context, seatID string, updates map[string]any) (*SeatChange, error) {
	if seatID == "" {
		return nil, ErrMissingSeatID
	}

	applied := make(map[string]any, len(updates)+1)
	seat, err := s.store.UpdateSeat(ctx, seatID, func(seat *seating.Seat) error {
		// Redis retries call this again; start from a clean slate.
		clear(applied)
		for key, value := range updates {
			field, ok := statusFields[key]
			if !ok {
				continue
			}
			switch field {
			case "is_occupied":
				if v, ok := value.(bool); ok {
					seat.IsOccupied = v
					applied[field] = v
				}
			case "is_buckled":
				if v, ok := value.(bool); ok {
					seat.IsBuckled = v
					applied[field] = v
				}
			case "passenger_name":
				if v, ok := value.(string); ok {
					seat.PassengerName = v
					applied[field] = v
				}
			}
		}
		applied["last_updated"] = seat.Touch(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("seat status updated", "seat_id", seatID, "fields", len(applied)-1)
	return &SeatChange{Seat: seat, Updates: applied}, nil
}

// Announce validates a crew safety message. An empty target list addresses
// the whole cabin.
func (s *Service) Announce(ctx context.Context, message string, targetSeats []string) (*Announcement, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrMissingMessage
	}

	targets := make([]string, 0, len(targetSeats))
	seen := make(map[string]bool, len(targetSeats))
	for _, id := range targetSeats {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if _, err := s.store.GetSeat(ctx, id); err != nil {
			return nil, fmt.Errorf("target %s: %w", id, err)
		}
		seen[id] = true
		targets = append(targets, id)
	}

	a := &Announcement{
		Message:     message,
		TargetSeats: targets,
		SentAt:      s.now(),
	}
	s.logger.Info("safety announcement", "targets", len(targets))
	return a, nil
}
