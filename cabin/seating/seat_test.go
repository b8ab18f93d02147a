package seating

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassConstants(t *testing.T) {
	assert.Equal(t, "business", string(Business))
	assert.Equal(t, "economy", string(Economy))
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{in: "1A", want: ID{Row: 1, Letter: 'A'}},
		{in: "12C", want: ID{Row: 12, Letter: 'C'}},
		{in: "33f", want: ID{Row: 33, Letter: 'F'}},
		{in: " 9A ", want: ID{Row: 9, Letter: 'A'}},
		{in: "", wantErr: true},
		{in: "A", wantErr: true},
		{in: "0A", wantErr: true},
		{in: "-1A", wantErr: true},
		{in: "12", wantErr: true},
		{in: "AA", wantErr: true},
		{in: "1#", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseID(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSeatID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIDFormatting(t *testing.T) {
	assert.Equal(t, "1A", FormatID(1, 1))
	assert.Equal(t, "8F", FormatID(8, 6))
	assert.Equal(t, "33F", FormatID(33, 6))

	id := ID{Row: 14, Letter: 'D'}
	assert.Equal(t, "14D", id.String())
	assert.Equal(t, 4, id.Column())
}

func TestSeatTouchStrictlyIncreasing(t *testing.T) {
	var seat Seat
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	first := seat.Touch(now)
	assert.Equal(t, now, first)

	// Same instant again must still move forward.
	second := seat.Touch(now)
	assert.True(t, second.After(first))

	// A clock going backwards must not move the stamp backwards.
	third := seat.Touch(now.Add(-time.Hour))
	assert.True(t, third.After(second))
	assert.Equal(t, third, *seat.LastUpdated)
}

func TestSeatJSONShape(t *testing.T) {
	seat := Seat{ID: "2B", PassengerName: "Ana", IsOccupied: true, Class: Business}

	data, err := json.Marshal(seat)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2B", raw["seat_id"])
	assert.Equal(t, "Ana", raw["passenger_name"])
	assert.Equal(t, true, raw["is_occupied"])
	assert.Equal(t, false, raw["is_buckled"])
	assert.Equal(t, "business", raw["seat_class"])
	assert.Contains(t, raw, "last_updated")
	assert.Nil(t, raw["last_updated"])
}

func TestDefaultPassengerName(t *testing.T) {
	assert.Equal(t, "Pasajero 12C", DefaultPassengerName("12C"))
}
