package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wricardo/cabinsmart/cabin/seating"
)

// SeatPersistence saves and restores the seat collection of a MemoryStore.
type SeatPersistence interface {
	// Save replaces the persisted seats.
	Save(seats []seating.Seat) error

	// Load returns the persisted seats.
	Load() ([]seating.Seat, error)

	// Exists reports whether anything was persisted.
	Exists() bool
}

// PersistedSeatsData is the JSON document written by FilePersistence.
type PersistedSeatsData struct {
	SavedAt time.Time      `json:"saved_at"`
	Seats   []seating.Seat `json:"seats"`
}

// FilePersistence implements SeatPersistence with a single JSON file.
type FilePersistence struct {
	path string
}

// NewFilePersistence creates the parent directory of path if needed.
func NewFilePersistence(path string) (*FilePersistence, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FilePersistence{path: path}, nil
}

// Save writes the snapshot to a temporary file and renames it into place.
func (fp *FilePersistence) Save(seats []seating.Seat) error {
	data := PersistedSeatsData{
		SavedAt: time.Now().UTC(),
		Seats:   seats,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal seats: %w", err)
	}

	tmp := fp.path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, fp.path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

func (fp *FilePersistence) Load() ([]seating.Seat, error) {
	jsonData, err := os.ReadFile(fp.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var data PersistedSeatsData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return data.Seats, nil
}

func (fp *FilePersistence) Exists() bool {
	_, err := os.Stat(fp.path)
	return err == nil
}

// Path returns the snapshot file location.
func (fp *FilePersistence) Path() string {
	return fp.path
}
