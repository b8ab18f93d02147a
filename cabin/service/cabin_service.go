package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wricardo/cabinsmart/cabin/seating"
	"github.com/wricardo/cabinsmart/cabin/store"
)

// CabinService defines all cabin-related operations
type CabinService interface {
	// Lifecycle
	Initialize(ctx context.Context) (int, error)
	ResetSeats(ctx context.Context) error

	// Seats
	Seats(ctx context.Context) ([]seating.Seat, error)
	Seat(ctx context.Context, seatID string) (seating.Seat, error)
	ToggleSeatBelt(ctx context.Context, seatID string) (*SeatChange, error)
	UpdateSeatStatus(ctx context.Context, seatID string, updates map[string]any) (*SeatChange, error)

	// Bathroom
	JoinQueue(ctx context.Context, seatID, passengerName string) (*JoinResult, error)
	LeaveQueue(ctx context.Context, seatID string) (*LeaveResult, error)
	DoorSensor(ctx context.Context, action Action, seatID string) (*DoorResult, error)
	Queue(ctx context.Context) ([]store.QueueEntry, error)
	Status(ctx context.Context) (store.BathroomStatus, error)

	// Crew
	Announce(ctx context.Context, message string, targetSeats []string) (*Announcement, error)

	// Snapshot returns the full cabin state sent to a new observer.
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Clock supplies the current time. Tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Service implements CabinService on top of a store.Store.
type Service struct {
	store  store.Store
	layout seating.Layout
	clock  Clock
	logger *slog.Logger

	// mu serializes every bathroom transition, store calls included.
	mu         sync.Mutex
	lastQueue  time.Time
	lastStatus time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a cabin service over st for the given layout.
func New(st store.Store, layout seating.Layout, opts ...Option) *Service {
	s := &Service{
		store:  st,
		layout: layout,
		clock:  systemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize seeds the seats when the store has none and clears the bathroom
// queue. It returns the number of seats seeded.
func (s *Service) Initialize(ctx context.Context) (int, error) {
	n, err := s.store.SeedSeats(ctx, s.layout.Build(seating.DefaultPassengerName))
	if err != nil {
		return 0, fmt.Errorf("failed to seed seats: %w", err)
	}
	if n > 0 {
		s.logger.Info("seeded seats",
			"count", n,
			"business_rows", s.layout.BusinessRows,
			"rows", s.layout.Rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.ClearQueue(ctx); err != nil {
		return n, fmt.Errorf("failed to clear bathroom queue: %w", err)
	}
	return n, nil
}

// ResetSeats replaces every seat with a fresh unoccupied, unbuckled seat,
// empties the queue and frees the bathroom.
func (s *Service) ResetSeats(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats := s.layout.Build(seating.DefaultPassengerName)
	if err := s.store.ReplaceSeats(ctx, seats); err != nil {
		return fmt.Errorf("failed to replace seats: %w", err)
	}
	now := s.statusStampLocked()
	if err := s.store.SetBathroomStatus(ctx, store.BathroomStatus{LastUpdated: &now}); err != nil {
		return fmt.Errorf("failed to reset bathroom status: %w", err)
	}

	s.logger.Info("reset seats", "count", len(seats))
	return nil
}

func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	seats, err := s.store.ListSeats(ctx)
	if err != nil {
		return nil, err
	}
	queue, err := s.Queue(ctx)
	if err != nil {
		return nil, err
	}
	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Seats: seats, Queue: queue, Status: status}, nil
}

// now returns the clock time in UTC truncated to microseconds, the
// resolution every backend keeps.
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// queueStampLocked returns a queue timestamp strictly after the previous one.
func (s *Service) queueStampLocked() time.Time {
	t := s.now()
	if !t.After(s.lastQueue) {
		t = s.lastQueue.Add(time.Microsecond)
	}
	s.lastQueue = t
	return t
}

func (s *Service) statusStampLocked() time.Time {
	t := s.now()
	if !t.After(s.lastStatus) {
		t = s.lastStatus.Add(time.Microsecond)
	}
	s.lastStatus = t
	return t
}

var _ CabinService = (*Service)(nil)
