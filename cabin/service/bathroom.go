package service

import (
	"context"
	"fmt"

	"github.com/wricardo/cabinsmart/cabin/seating"
	"github.com/wricardo/cabinsmart/cabin/store"
)

// JoinQueue grants the bathroom directly when it is free and nobody is
// waiting, or when it is free and seatID is the head of the queue, which
// claims the slot and drops the entry. Otherwise it appends the seat to the
// end of the queue.
func (s *Service) JoinQueue(ctx context.Context, seatID, passengerName string) (*JoinResult, error) {
	if seatID == "" {
		return nil, ErrMissingSeatID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetSeat(ctx, seatID); err != nil {
		return nil, err
	}

	queue, err := s.store.Queue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read bathroom queue: %w", err)
	}
	status, err := s.store.BathroomStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read bathroom status: %w", err)
	}

	pos := position(queue, seatID)
	claim := pos == 1 && !status.IsOccupied
	if pos > 0 && !claim {
		return nil, ErrAlreadyQueued
	}
	if status.IsOccupied && status.Holder == seatID {
		return nil, ErrAlreadyOccupying
	}

	if passengerName == "" {
		if claim {
			passengerName = queue[0].PassengerName
		} else {
			passengerName = seating.DefaultPassengerName(seatID)
		}
	}

	if claim {
		if _, err := s.store.RemoveQueue(ctx, seatID); err != nil {
			return nil, fmt.Errorf("failed to leave bathroom queue: %w", err)
		}
		queue = queue[1:]
	}

	if claim || (!status.IsOccupied && len(queue) == 0) {
		now := s.statusStampLocked()
		status = store.BathroomStatus{IsOccupied: true, Holder: seatID, LastUpdated: &now}
		if err := s.store.SetBathroomStatus(ctx, status); err != nil {
			return nil, fmt.Errorf("failed to grant bathroom: %w", err)
		}
		s.logger.Info("bathroom granted directly", "seat_id", seatID, "claimed_from_queue", claim)
		return &JoinResult{
			SeatID:        seatID,
			PassengerName: passengerName,
			DirectAccess:  true,
			LeftQueue:     claim,
			Status:        status,
			Queue:         queue,
		}, nil
	}

	entry := store.QueueEntry{
		SeatID:        seatID,
		PassengerName: passengerName,
		Timestamp:     s.queueStampLocked(),
	}
	if err := s.store.AppendQueue(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to join bathroom queue: %w", err)
	}
	queue = append(queue, entry)

	s.logger.Info("joined bathroom queue", "seat_id", seatID, "position", len(queue))
	return &JoinResult{
		SeatID:        seatID,
		PassengerName: passengerName,
		Status:        status,
		Position:      len(queue),
		Queue:         queue,
	}, nil
}

// LeaveQueue removes the seat's queue entry. Leaving twice fails.
func (s *Service) LeaveQueue(ctx context.Context, seatID string) (*LeaveResult, error) {
	if seatID == "" {
		return nil, ErrMissingSeatID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetSeat(ctx, seatID); err != nil {
		return nil, err
	}

	removed, err := s.store.RemoveQueue(ctx, seatID)
	if err != nil {
		return nil, fmt.Errorf("failed to leave bathroom queue: %w", err)
	}
	if !removed {
		return nil, ErrNotQueued
	}

	queue, err := s.store.Queue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read bathroom queue: %w", err)
	}

	s.logger.Info("left bathroom queue", "seat_id", seatID, "remaining", len(queue))
	return &LeaveResult{SeatID: seatID, Queue: queue}, nil
}

// DoorSensor applies a physical door event. Enter occupies the bathroom and
// drops the seat's queue entry. Exit frees it and reports the queue head as
// Next without dequeuing it or granting it anything.
func (s *Service) DoorSensor(ctx context.Context, action Action, seatID string) (*DoorResult, error) {
	if seatID == "" {
		return nil, ErrMissingSeatID
	}
	if action != ActionEnter && action != ActionExit {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetSeat(ctx, seatID); err != nil {
		return nil, err
	}

	now := s.statusStampLocked()
	result := &DoorResult{Action: action, SeatID: seatID}

	switch action {
	case ActionEnter:
		result.Status = store.BathroomStatus{IsOccupied: true, Holder: seatID, LastUpdated: &now}
		if err := s.store.SetBathroomStatus(ctx, result.Status); err != nil {
			return nil, fmt.Errorf("failed to update bathroom status: %w", err)
		}

		removed, err := s.store.RemoveQueue(ctx, seatID)
		if err != nil {
			return nil, fmt.Errorf("failed to leave bathroom queue: %w", err)
		}
		if removed {
			queue, err := s.store.Queue(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to read bathroom queue: %w", err)
			}
			result.LeftQueue = true
			result.Queue = queue
		}

	case ActionExit:
		result.Status = store.BathroomStatus{LastUpdated: &now}
		if err := s.store.SetBathroomStatus(ctx, result.Status); err != nil {
			return nil, fmt.Errorf("failed to update bathroom status: %w", err)
		}

		queue, err := s.store.Queue(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read bathroom queue: %w", err)
		}
		if len(queue) > 0 {
			next := queue[0]
			result.Next = &next
		}
	}

	s.logger.Info("door sensor",
		"action", action,
		"seat_id", seatID,
		"left_queue", result.LeftQueue,
		"notify_next", result.Next != nil)
	return result, nil
}

// Queue returns the bathroom queue in FIFO order.
func (s *Service) Queue(ctx context.Context) ([]store.QueueEntry, error) {
	queue, err := s.store.Queue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read bathroom queue: %w", err)
	}
	return queue, nil
}

func (s *Service) Status(ctx context.Context) (store.BathroomStatus, error) {
	status, err := s.store.BathroomStatus(ctx)
	if err != nil {
		return store.BathroomStatus{}, fmt.Errorf("failed to read bathroom status: %w", err)
	}
	return status, nil
}

// position returns the 1-based position of seatID in queue, or 0.
func position(queue []store.QueueEntry, seatID string) int {
	for i, e := range queue {
		if e.SeatID == seatID {
			return i + 1
		}
	}
	return 0
}
