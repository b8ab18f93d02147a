package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wricardo/cabinsmart/cabin/service"
)

const (
	directAccessMessage = "Acceso directo al baño concedido"
	availableMessage    = "El baño está disponible, es tu turno"
)

// Broadcaster fans an event out to every observer.
type Broadcaster interface {
	Broadcast(event string, data any)
}

// Reply is the acknowledgement sent to the originator of a command.
type Reply struct {
	Event string
	Data  any
}

// Dispatcher executes commands against the cabin service, broadcasts the
// resulting change events and returns the acknowledgement for the sender.
// It is shared by the WebSocket sessions and the REST command routes.
type Dispatcher struct {
	svc    service.CabinService
	out    Broadcaster
	logger *slog.Logger

	// bathroomMu holds a bathroom transition and its broadcasts together so
	// observers see queue and status snapshots in the order they changed.
	bathroomMu sync.Mutex
}

func NewDispatcher(svc service.CabinService, out Broadcaster, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{svc: svc, out: out, logger: logger}
}

// Service returns the underlying cabin service.
func (d *Dispatcher) Service() service.CabinService {
	return d.svc
}

// Dispatch runs cmd. On error nothing has been broadcast.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (*Reply, error) {
	switch cmd.(type) {
	case JoinBathroomQueue, LeaveBathroomQueue, BathroomDoorSensor:
		d.bathroomMu.Lock()
		defer d.bathroomMu.Unlock()
	}

	switch c := cmd.(type) {
	case ToggleSeatBelt:
		change, err := d.svc.ToggleSeatBelt(ctx, c.SeatID)
		if err != nil {
			return nil, err
		}
		d.out.Broadcast(EventSeatUpdated, SeatUpdated{SeatID: c.SeatID, Updates: change.Updates})
		return &Reply{EventSeatBeltToggled, SeatBeltToggled{
			Success:   true,
			SeatID:    c.SeatID,
			IsBuckled: change.Seat.IsBuckled,
		}}, nil

	case UpdateSeatStatus:
		change, err := d.svc.UpdateSeatStatus(ctx, c.SeatID, c.Updates)
		if err != nil {
			return nil, err
		}
		d.out.Broadcast(EventSeatUpdated, SeatUpdated{SeatID: c.SeatID, Updates: change.Updates})
		return &Reply{EventSeatStatusUpdated, SeatStatusUpdated{Success: true, SeatID: c.SeatID}}, nil

	case JoinBathroomQueue:
		res, err := d.svc.JoinQueue(ctx, c.SeatID, c.PassengerName)
		if err != nil {
			return nil, err
		}
		if res.DirectAccess {
			d.out.Broadcast(EventBathroomStatusUpdated, newStatusUpdated(res.Status, "direct_access"))
			if res.LeftQueue {
				d.out.Broadcast(EventBathroomQueueUpdated, BathroomQueueUpdated{Queue: res.Queue})
			}
			return &Reply{EventBathroomDirectAccess, BathroomDirectAccess{
				Success: true,
				Message: directAccessMessage,
				SeatID:  c.SeatID,
			}}, nil
		}
		d.out.Broadcast(EventBathroomQueueUpdated, BathroomQueueUpdated{Queue: res.Queue})
		return &Reply{EventBathroomQueueJoined, BathroomQueueJoined{Success: true, Position: res.Position}}, nil

	case LeaveBathroomQueue:
		res, err := d.svc.LeaveQueue(ctx, c.SeatID)
		if err != nil {
			return nil, err
		}
		d.out.Broadcast(EventBathroomQueueUpdated, BathroomQueueUpdated{Queue: res.Queue})
		return &Reply{EventBathroomQueueLeft, BathroomQueueLeft{Success: true}}, nil

	case BathroomDoorSensor:
		action, err := service.ParseAction(c.Action)
		if err != nil {
			return nil, err
		}
		res, err := d.svc.DoorSensor(ctx, action, c.SeatID)
		if err != nil {
			return nil, err
		}
		d.out.Broadcast(EventBathroomStatusUpdated, newStatusUpdated(res.Status, string(res.Action)))
		if res.LeftQueue {
			d.out.Broadcast(EventBathroomQueueUpdated, BathroomQueueUpdated{Queue: res.Queue})
		}
		if res.Next != nil {
			d.out.Broadcast(EventBathroomAvailable, BathroomAvailable{
				SeatID:        res.Next.SeatID,
				PassengerName: res.Next.PassengerName,
				Message:       availableMessage,
			})
		}
		return &Reply{EventDoorSensorProcessed, DoorSensorProcessed{Success: true, Action: string(res.Action)}}, nil

	case SafetyAnnouncement:
		a, err := d.svc.Announce(ctx, c.Message, c.TargetSeats)
		if err != nil {
			return nil, err
		}
		d.out.Broadcast(EventSafetyAnnouncement, SafetyAnnouncementMessage{
			Message:     a.Message,
			TargetSeats: a.TargetSeats,
			SentAt:      a.SentAt,
		})
		return &Reply{EventSafetyAnnouncementSent, SafetyAnnouncementSent{Success: true}}, nil

	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
}
