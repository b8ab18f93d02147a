package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wricardo/cabinsmart/cabin/seating"
	"github.com/wricardo/cabinsmart/cabin/store"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownEvent     = errors.New("unknown event")
)

// Inbound events
const (
	EventToggleSeatBelt     = "toggle_seat_belt"
	EventJoinBathroomQueue  = "join_bathroom_queue"
	EventLeaveBathroomQueue = "leave_bathroom_queue"
	EventUpdateSeatStatus   = "update_seat_status"
	EventBathroomDoorSensor = "bathroom_door_sensor"
	EventSafetyAnnouncement = "safety_announcement"
)

// Outbound events
const (
	EventInitialState           = "initial_state"
	EventSeatUpdated            = "seat_updated"
	EventSeatBeltToggled        = "seat_belt_toggled"
	EventSeatStatusUpdated      = "seat_status_updated"
	EventBathroomQueueUpdated   = "bathroom_queue_updated"
	EventBathroomQueueJoined    = "bathroom_queue_joined"
	EventBathroomQueueLeft      = "bathroom_queue_left"
	EventBathroomDirectAccess   = "bathroom_direct_access"
	EventBathroomStatusUpdated  = "bathroom_status_updated"
	EventBathroomAvailable      = "bathroom_available"
	EventDoorSensorProcessed    = "bathroom_door_sensor_processed"
	EventUserCountUpdated       = "user_count_updated"
	EventSafetyAnnouncementSent = "safety_announcement_sent"
	EventError                  = "error"
)

// Message is the {event, data} envelope sent to clients.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Command is an inbound client request. The set of implementations is
// closed; DecodeCommand is the only constructor from the wire.
type Command interface {
	command()
}

type ToggleSeatBelt struct {
	SeatID string `json:"seatId"`
}

type JoinBathroomQueue struct {
	SeatID        string `json:"seatId"`
	PassengerName string `json:"passengerName"`
}

type LeaveBathroomQueue struct {
	SeatID string `json:"seatId"`
}

type UpdateSeatStatus struct {
	SeatID  string         `json:"seatId"`
	Updates map[string]any `json:"updates"`
}

type BathroomDoorSensor struct {
	Action string `json:"action"`
	SeatID string `json:"seatId"`
}

type SafetyAnnouncement struct {
	Message     string   `json:"message"`
	TargetSeats []string `json:"targetSeats"`
}

func (ToggleSeatBelt) command()     {}
func (JoinBathroomQueue) command()  {}
func (LeaveBathroomQueue) command() {}
func (UpdateSeatStatus) command()   {}
func (BathroomDoorSensor) command() {}
func (SafetyAnnouncement) command() {}

// DecodeCommand parses one inbound frame. It returns ErrMalformedMessage for
// undecodable frames or payloads and ErrUnknownEvent for well-formed frames
// naming an event the server does not handle.
func DecodeCommand(frame []byte) (Command, error) {
	var msg inboundMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedMessage)
	}

	var (
		cmd Command
		err error
	)
	switch msg.Event {
	case EventToggleSeatBelt:
		cmd = decodeData[ToggleSeatBelt](msg.Data, &err)
	case EventJoinBathroomQueue:
		cmd = decodeData[JoinBathroomQueue](msg.Data, &err)
	case EventLeaveBathroomQueue:
		cmd = decodeData[LeaveBathroomQueue](msg.Data, &err)
	case EventUpdateSeatStatus:
		cmd = decodeData[UpdateSeatStatus](msg.Data, &err)
	case EventBathroomDoorSensor:
		cmd = decodeData[BathroomDoorSensor](msg.Data, &err)
	case EventSafetyAnnouncement:
		cmd = decodeData[SafetyAnnouncement](msg.Data, &err)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, msg.Event, err)
	}
	return cmd, nil
}

func decodeData[T Command](data json.RawMessage, errp *error) T {
	var v T
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return v
	}
	*errp = json.Unmarshal(data, &v)
	return v
}

// Outbound payloads

type InitialState struct {
	Seats          map[string]seating.Seat `json:"seats"`
	BathroomQueue  []store.QueueEntry      `json:"bathroomQueue"`
	BathroomStatus store.BathroomStatus    `json:"bathroomStatus"`
	ConnectedUsers int                     `json:"connectedUsers"`
}

type SeatUpdated struct {
	SeatID  string         `json:"seatId"`
	Updates map[string]any `json:"updates"`
}

type SeatBeltToggled struct {
	Success   bool   `json:"success"`
	SeatID    string `json:"seatId"`
	IsBuckled bool   `json:"is_buckled"`
}

type SeatStatusUpdated struct {
	Success bool   `json:"success"`
	SeatID  string `json:"seatId"`
}

type BathroomQueueUpdated struct {
	Queue []store.QueueEntry `json:"queue"`
}

type BathroomQueueJoined struct {
	Success  bool `json:"success"`
	Position int  `json:"position"`
}

type BathroomQueueLeft struct {
	Success bool `json:"success"`
}

type BathroomDirectAccess struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SeatID  string `json:"seatId"`
}

type BathroomStatusUpdated struct {
	IsOccupied  bool       `json:"isOccupied"`
	CurrentUser *string    `json:"currentUser"`
	Action      string     `json:"action"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

type BathroomAvailable struct {
	SeatID        string `json:"seatId"`
	PassengerName string `json:"passengerName"`
	Message       string `json:"message"`
}

type DoorSensorProcessed struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
}

type UserCountUpdated struct {
	Count int `json:"count"`
}

type SafetyAnnouncementMessage struct {
	Message     string    `json:"message"`
	TargetSeats []string  `json:"targetSeats"`
	SentAt      time.Time `json:"sentAt"`
}

type SafetyAnnouncementSent struct {
	Success bool `json:"success"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

func newStatusUpdated(status store.BathroomStatus, action string) BathroomStatusUpdated {
	out := BathroomStatusUpdated{
		IsOccupied:  status.IsOccupied,
		Action:      action,
		LastUpdated: status.LastUpdated,
	}
	if status.Holder != "" {
		holder := status.Holder
		out.CurrentUser = &holder
	}
	return out
}

// SeatMap keys seats by id, the shape the cabin panels expect.
func SeatMap(seats []seating.Seat) map[string]seating.Seat {
	m := make(map[string]seating.Seat, len(seats))
	for _, s := range seats {
		m[s.ID] = s
	}
	return m
}
