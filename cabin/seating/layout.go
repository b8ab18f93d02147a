package seating

import (
	"errors"
	"fmt"
)

const (
	DefaultRows         = 33
	DefaultSeatsPerRow  = 6
	DefaultBusinessRows = 8

	MaxRows        = 99
	MaxSeatsPerRow = 10
)

var ErrInvalidLayout = errors.New("invalid cabin layout")

// Layout describes the physical seat map of the cabin.
type Layout struct {
	Rows         int `json:"rows" yaml:"rows"`
	SeatsPerRow  int `json:"seats_per_row" yaml:"seats_per_row"`
	BusinessRows int `json:"business_rows" yaml:"business_rows"`
}

// DefaultLayout returns the 33 x 6 cabin with eight business rows.
func DefaultLayout() Layout {
	return Layout{
		Rows:         DefaultRows,
		SeatsPerRow:  DefaultSeatsPerRow,
		BusinessRows: DefaultBusinessRows,
	}
}

// Validate checks the layout bounds.
func (l Layout) Validate() error {
	if l.Rows < 1 || l.Rows > MaxRows {
		return fmt.Errorf("%w: rows must be between 1 and %d, got %d", ErrInvalidLayout, MaxRows, l.Rows)
	}
	if l.SeatsPerRow < 1 || l.SeatsPerRow > MaxSeatsPerRow {
		return fmt.Errorf("%w: seats per row must be between 1 and %d, got %d", ErrInvalidLayout, MaxSeatsPerRow, l.SeatsPerRow)
	}
	if l.BusinessRows < 0 || l.BusinessRows > l.Rows {
		return fmt.Errorf("%w: business rows must be between 0 and %d, got %d", ErrInvalidLayout, l.Rows, l.BusinessRows)
	}
	return nil
}

// Size returns the number of seats in the cabin.
func (l Layout) Size() int {
	return l.Rows * l.SeatsPerRow
}

// ClassForRow returns the class of every seat in row.
func (l Layout) ClassForRow(row int) Class {
	if row <= l.BusinessRows {
		return Business
	}
	return Economy
}

// Contains reports whether id names a seat of this layout.
func (l Layout) Contains(id ID) bool {
	return id.Row >= 1 && id.Row <= l.Rows && id.Column() >= 1 && id.Column() <= l.SeatsPerRow
}

// Build creates every seat of the layout in row-major order. Seats start
// unoccupied, unbuckled and never updated; name supplies the passenger name
// for each seat identifier and may be nil for empty names.
func (l Layout) Build(name func(seatID string) string) []Seat {
	seats := make([]Seat, 0, l.Size())
	for row := 1; row <= l.Rows; row++ {
		class := l.ClassForRow(row)
		for col := 1; col <= l.SeatsPerRow; col++ {
			id := FormatID(row, col)
			seat := Seat{
				ID:    id,
				Class: class,
			}
			if name != nil {
				seat.PassengerName = name(id)
			}
			seats = append(seats, seat)
		}
	}
	return seats
}
