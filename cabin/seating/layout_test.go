package seating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayoutBuild(t *testing.T) {
	layout := DefaultLayout()
	require.NoError(t, layout.Validate())

	seats := layout.Build(DefaultPassengerName)
	require.Len(t, seats, 198)

	assert.Equal(t, "1A", seats[0].ID)
	assert.Equal(t, "33F", seats[len(seats)-1].ID)

	seen := make(map[string]bool, len(seats))
	business := 0
	for _, s := range seats {
		assert.False(t, seen[s.ID], "duplicate seat %s", s.ID)
		seen[s.ID] = true
		assert.False(t, s.IsOccupied)
		assert.False(t, s.IsBuckled)
		assert.Nil(t, s.LastUpdated)
		assert.Equal(t, DefaultPassengerName(s.ID), s.PassengerName)
		if s.Class == Business {
			business++
		}
	}
	assert.Equal(t, 8*6, business)
}

func TestClassBoundary(t *testing.T) {
	layout := DefaultLayout()
	byID := make(map[string]Seat)
	for _, s := range layout.Build(nil) {
		byID[s.ID] = s
	}

	tests := []struct {
		id   string
		want Class
	}{
		{"1A", Business},
		{"8F", Business},
		{"9A", Economy},
		{"33F", Economy},
	}
	for _, tt := range tests {
		seat, ok := byID[tt.id]
		require.True(t, ok, "seat %s missing", tt.id)
		assert.Equal(t, tt.want, seat.Class, "seat %s", tt.id)
	}

	assert.Equal(t, Business, layout.ClassForRow(8))
	assert.Equal(t, Economy, layout.ClassForRow(9))
}

func TestLayoutBuildWithoutNames(t *testing.T) {
	seats := Layout{Rows: 2, SeatsPerRow: 3, BusinessRows: 1}.Build(nil)
	require.Len(t, seats, 6)
	for _, s := range seats {
		assert.Empty(t, s.PassengerName)
	}
	assert.Equal(t, []string{"1A", "1B", "1C", "2A", "2B", "2C"}, ids(seats))
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		wantErr bool
	}{
		{"default", DefaultLayout(), false},
		{"all economy", Layout{Rows: 10, SeatsPerRow: 4, BusinessRows: 0}, false},
		{"no rows", Layout{Rows: 0, SeatsPerRow: 6}, true},
		{"too many rows", Layout{Rows: MaxRows + 1, SeatsPerRow: 6}, true},
		{"no seats", Layout{Rows: 3, SeatsPerRow: 0}, true},
		{"too wide", Layout{Rows: 3, SeatsPerRow: MaxSeatsPerRow + 1}, true},
		{"business exceeds rows", Layout{Rows: 3, SeatsPerRow: 6, BusinessRows: 4}, true},
		{"negative business", Layout{Rows: 3, SeatsPerRow: 6, BusinessRows: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLayout)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLayoutContains(t *testing.T) {
	layout := DefaultLayout()
	assert.True(t, layout.Contains(ID{Row: 33, Letter: 'F'}))
	assert.False(t, layout.Contains(ID{Row: 34, Letter: 'A'}))
	assert.False(t, layout.Contains(ID{Row: 1, Letter: 'G'}))
}

func ids(seats []Seat) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = s.ID
	}
	return out
}
