package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/wricardo/cabinsmart/cabin/seating"
)

// BathroomID is the fixed key of the bathroom status singleton.
const BathroomID = "main"

var (
	ErrSeatNotFound = errors.New("seat not found")
	ErrClosed       = errors.New("store closed")
)

// QueueEntry is one passenger waiting for the bathroom.
type QueueEntry struct {
	SeatID        string    `json:"seat_id"`
	PassengerName string    `json:"passenger_name"`
	Timestamp     time.Time `json:"timestamp"`
}

// BathroomStatus is the occupancy of the bathroom. Holder is empty exactly
// when IsOccupied is false.
type BathroomStatus struct {
	IsOccupied  bool
	Holder      string
	LastUpdated *time.Time
}

type bathroomStatusJSON struct {
	IsOccupied  bool       `json:"is_occupied"`
	CurrentUser *string    `json:"current_user"`
	LastUpdated *time.Time `json:"last_updated"`
}

// MarshalJSON encodes an empty holder as null.
func (b BathroomStatus) MarshalJSON() ([]byte, error) {
	out := bathroomStatusJSON{IsOccupied: b.IsOccupied, LastUpdated: b.LastUpdated}
	if b.Holder != "" {
		holder := b.Holder
		out.CurrentUser = &holder
	}
	return json.Marshal(out)
}

func (b *BathroomStatus) UnmarshalJSON(data []byte) error {
	var in bathroomStatusJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	b.IsOccupied = in.IsOccupied
	b.Holder = ""
	if in.CurrentUser != nil {
		b.Holder = *in.CurrentUser
	}
	b.LastUpdated = in.LastUpdated
	return nil
}

// Store is the persistence contract of the cabin.
type Store interface {
	// SeedSeats inserts seats only when the seat collection is empty and
	// reports how many were inserted.
	SeedSeats(ctx context.Context, seats []seating.Seat) (int, error)

	// ReplaceSeats drops every seat and queue entry and inserts seats.
	ReplaceSeats(ctx context.Context, seats []seating.Seat) error

	// ListSeats returns every seat ordered by row, then seat letter.
	ListSeats(ctx context.Context) ([]seating.Seat, error)

	// GetSeat returns ErrSeatNotFound if the seat does not exist.
	GetSeat(ctx context.Context, seatID string) (seating.Seat, error)

	// UpdateSeat atomically applies fn to one seat and returns the result.
	// If fn returns an error nothing is written.
	UpdateSeat(ctx context.Context, seatID string, fn func(*seating.Seat) error) (seating.Seat, error)

	// Queue returns the bathroom queue ordered by ascending timestamp.
	Queue(ctx context.Context) ([]QueueEntry, error)

	// AppendQueue adds an entry to the end of the queue.
	AppendQueue(ctx context.Context, entry QueueEntry) error

	// RemoveQueue deletes the entry of seatID and reports whether one existed.
	RemoveQueue(ctx context.Context, seatID string) (bool, error)

	// ClearQueue empties the queue.
	ClearQueue(ctx context.Context) error

	// BathroomStatus returns the singleton, or a free status when none was
	// ever written.
	BathroomStatus(ctx context.Context) (BathroomStatus, error)

	// SetBathroomStatus upserts the singleton.
	SetBathroomStatus(ctx context.Context, status BathroomStatus) error

	Close() error
}

// SortSeats orders seats by row number, then by seat letter. Identifiers
// that do not parse sort last, lexically.
func SortSeats(seats []seating.Seat) {
	sort.SliceStable(seats, func(i, j int) bool {
		a, errA := seating.ParseID(seats[i].ID)
		b, errB := seating.ParseID(seats[j].ID)
		switch {
		case errA != nil && errB != nil:
			return seats[i].ID < seats[j].ID
		case errA != nil:
			return false
		case errB != nil:
			return true
		case a.Row != b.Row:
			return a.Row < b.Row
		default:
			return a.Letter < b.Letter
		}
	})
}

// SortQueue orders entries by ascending timestamp, keeping insertion order
// for equal stamps.
func SortQueue(entries []QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
