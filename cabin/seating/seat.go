package seating

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Class is the cabin class of a seat.
type Class string

const (
	Business Class = "business"
	Economy  Class = "economy"
)

var ErrInvalidSeatID = errors.New("invalid seat ID")

// Seat is a single passenger seat as stored and broadcast.
type Seat struct {
	ID            string     `json:"seat_id"`
	PassengerName string     `json:"passenger_name"`
	IsOccupied    bool       `json:"is_occupied"`
	IsBuckled     bool       `json:"is_buckled"`
	Class         Class      `json:"seat_class"`
	LastUpdated   *time.Time `json:"last_updated"`
}

// Touch stamps the seat with t, keeping last-update strictly increasing.
// It returns the stamp that was applied.
func (s *Seat) Touch(t time.Time) time.Time {
	t = t.UTC().Truncate(time.Microsecond)
	if s.LastUpdated != nil && !t.After(*s.LastUpdated) {
		t = s.LastUpdated.Add(time.Microsecond)
	}
	s.LastUpdated = &t
	return t
}

// ID is a parsed seat identifier.
type ID struct {
	Row    int
	Letter byte
}

// String formats the identifier as row followed by letter.
func (id ID) String() string {
	return strconv.Itoa(id.Row) + string(id.Letter)
}

// Column returns the 1-based seat position within the row.
func (id ID) Column() int {
	return int(id.Letter-'A') + 1
}

// ParseID parses identifiers like "1A" or "33F". Letters are accepted in
// either case and normalized to upper case.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidSeatID, s)
	}

	letter := s[len(s)-1]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidSeatID, s)
	}

	row, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || row < 1 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidSeatID, s)
	}

	return ID{Row: row, Letter: letter}, nil
}

// FormatID builds the identifier for a 1-based row and column.
func FormatID(row, column int) string {
	return ID{Row: row, Letter: byte('A' + column - 1)}.String()
}

// DefaultPassengerName is the placeholder name used when a passenger has not
// given one.
func DefaultPassengerName(seatID string) string {
	return "Pasajero " + seatID
}
