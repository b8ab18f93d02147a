package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wricardo/cabinsmart/cabin/seating"
)

// MemoryStore keeps the cabin state in process memory. Seats can optionally
// be mirrored to a SeatPersistence so they survive restarts; the queue and
// bathroom status never are.
type MemoryStore struct {
	mu          sync.RWMutex
	seats       map[string]seating.Seat
	queue       []QueueEntry
	status      *BathroomStatus
	persistence SeatPersistence
	logger      *slog.Logger
	closed      bool
}

// NewMemoryStore creates an empty, non-persistent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seats:  make(map[string]seating.Seat),
		logger: slog.Default(),
	}
}

// NewMemoryStoreWithPersistence creates a store backed by persistence and
// loads any previously saved seats.
func NewMemoryStoreWithPersistence(persistence SeatPersistence, logger *slog.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MemoryStore{
		seats:       make(map[string]seating.Seat),
		persistence: persistence,
		logger:      logger,
	}

	if persistence != nil && persistence.Exists() {
		seats, err := persistence.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted seats: %w", err)
		}
		for _, s := range seats {
			m.seats[s.ID] = s
		}
		logger.Info("loaded persisted seats", "count", len(seats))
	}

	return m, nil
}

func (m *MemoryStore) SeedSeats(ctx context.Context, seats []seating.Seat) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	if len(m.seats) > 0 {
		return 0, nil
	}
	for _, s := range seats {
		m.seats[s.ID] = s
	}
	m.persistLocked()
	return len(seats), nil
}

func (m *MemoryStore) ReplaceSeats(ctx context.Context, seats []seating.Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.seats = make(map[string]seating.Seat, len(seats))
	for _, s := range seats {
		m.seats[s.ID] = s
	}
	m.queue = nil
	m.persistLocked()
	return nil
}

func (m *MemoryStore) ListSeats(ctx context.Context) ([]seating.Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	result := make([]seating.Seat, 0, len(m.seats))
	for _, s := range m.seats {
		result = append(result, s)
	}
	SortSeats(result)
	return result, nil
}

func (m *MemoryStore) GetSeat(ctx context.Context, seatID string) (seating.Seat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return seating.Seat{}, ErrClosed
	}
	seat, ok := m.seats[seatID]
	if !ok {
		return seating.Seat{}, ErrSeatNotFound
	}
	return seat, nil
}

func (m *MemoryStore) UpdateSeat(ctx context.Context, seatID string, fn func(*seating.Seat) error) (seating.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return seating.Seat{}, ErrClosed
	}
	seat, ok := m.seats[seatID]
	if !ok {
		return seating.Seat{}, ErrSeatNotFound
	}
	if err := fn(&seat); err != nil {
		return seating.Seat{}, err
	}
	m.seats[seatID] = seat
	m.persistLocked()
	return seat, nil
}

func (m *MemoryStore) Queue(ctx context.Context) ([]QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	result := make([]QueueEntry, len(m.queue))
	copy(result, m.queue)
	SortQueue(result)
	return result, nil
}

func (m *MemoryStore) AppendQueue(ctx context.Context, entry QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.queue = append(m.queue, entry)
	return nil
}

func (m *MemoryStore) RemoveQueue(ctx context.Context, seatID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}
	for i, e := range m.queue {
		if e.SeatID == seatID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ClearQueue(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.queue = nil
	return nil
}

func (m *MemoryStore) BathroomStatus(ctx context.Context) (BathroomStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return BathroomStatus{}, ErrClosed
	}
	if m.status == nil {
		return BathroomStatus{}, nil
	}
	return *m.status, nil
}

func (m *MemoryStore) SetBathroomStatus(ctx context.Context, status BathroomStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.status = &status
	return nil
}

// Close flushes seats to persistence, if any, and rejects further calls.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.persistence == nil {
		return nil
	}
	return m.persistence.Save(m.snapshotLocked())
}

// persistLocked saves seats, logging rather than failing the mutation.
func (m *MemoryStore) persistLocked() {
	if m.persistence == nil {
		return
	}
	if err := m.persistence.Save(m.snapshotLocked()); err != nil {
		m.logger.Warn("failed to persist seats", "error", err)
	}
}

func (m *MemoryStore) snapshotLocked() []seating.Seat {
	seats := make([]seating.Seat, 0, len(m.seats))
	for _, s := range m.seats {
		seats = append(seats, s)
	}
	SortSeats(seats)
	return seats
}

var _ Store = (*MemoryStore)(nil)
