package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/cabinsmart/cabin/seating"
	"github.com/wricardo/cabinsmart/cabin/store"
)

// Action is a door sensor event.
type Action string

const (
	ActionEnter Action = "enter"
	ActionExit  Action = "exit"
)

// ParseAction accepts "enter" or "exit" in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionEnter, ActionExit:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// SeatChange is the outcome of a seat mutation. Updates holds the stored
// field names that were written, always including last_updated.
type SeatChange struct {
	Seat    seating.Seat   `json:"seat"`
	Updates map[string]any `json:"updates"`
}

// JoinResult is the outcome of a successful JoinQueue.
type JoinResult struct {
	SeatID        string `json:"seat_id"`
	PassengerName string `json:"passenger_name"`

	// DirectAccess is set when the bathroom was granted without queueing.
	DirectAccess bool                 `json:"direct_access"`
	Status       store.BathroomStatus `json:"status"`

	// LeftQueue is set when the queue head claimed the free bathroom; Queue
	// then holds the remaining entries.
	LeftQueue bool `json:"left_queue"`

	// Position is the 1-based queue position; zero on direct access.
	Position int                `json:"position"`
	Queue    []store.QueueEntry `json:"queue"`
}

// LeaveResult is the outcome of a successful LeaveQueue.
type LeaveResult struct {
	SeatID string             `json:"seat_id"`
	Queue  []store.QueueEntry `json:"queue"`
}

// DoorResult is the outcome of a door sensor event.
type DoorResult struct {
	Action Action               `json:"action"`
	SeatID string               `json:"seat_id"`
	Status store.BathroomStatus `json:"status"`

	// LeftQueue is set when enter removed the seat's queue entry; Queue then
	// holds the updated queue.
	LeftQueue bool               `json:"left_queue"`
	Queue     []store.QueueEntry `json:"queue,omitempty"`

	// Next is the queue head to notify after exit. It is not dequeued.
	Next *store.QueueEntry `json:"next,omitempty"`
}

// Announcement is a crew safety message.
type Announcement struct {
	Message     string    `json:"message"`
	TargetSeats []string  `json:"target_seats"`
	SentAt      time.Time `json:"sent_at"`
}

// Snapshot is the complete cabin state.
type Snapshot struct {
	Seats  []seating.Seat       `json:"seats"`
	Queue  []store.QueueEntry   `json:"queue"`
	Status store.BathroomStatus `json:"status"`
}
