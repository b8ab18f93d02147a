package websocket

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/cabinsmart/cabin/seating"
	"github.com/wricardo/cabinsmart/cabin/service"
	"github.com/wricardo/cabinsmart/cabin/store"
)

type recordedEvent struct {
	Event string
	Data  any
}

// recorder is a Broadcaster that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Broadcast(event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event, data})
}

func (r *recorder) take() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *recorder) {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	svc := service.New(st, seating.DefaultLayout())
	_, err := svc.Initialize(context.Background())
	require.NoError(t, err)

	rec := &recorder{}
	return NewDispatcher(svc, rec, nil), rec
}

func TestDispatchToggleSeatBelt(t *testing.T) {
	d, rec := newTestDispatcher(t)

	reply, err := d.Dispatch(context.Background(), ToggleSeatBelt{SeatID: "12C"})
	require.NoError(t, err)
	assert.Equal(t, EventSeatBeltToggled, reply.Event)
	assert.Equal(t, SeatBeltToggled{Success: true, SeatID: "12C", IsBuckled: true}, reply.Data)

	events := rec.take()
	require.Len(t, events, 1)
	assert.Equal(t, EventSeatUpdated, events[0].Event)
	updated := events[0].Data.(SeatUpdated)
	assert.Equal(t, "12C", updated.SeatID)
	assert.Equal(t, true, updated.Updates["is_buckled"])
	assert.Contains(t, updated.Updates, "last_updated")
}

func TestDispatchSeatNotFoundDoesNotBroadcast(t *testing.T) {
	d, rec := newTestDispatcher(t)
	ctx := context.Background()

	for _, cmd := range []Command{
		ToggleSeatBelt{SeatID: "99Z"},
		UpdateSeatStatus{SeatID: "99Z"},
		JoinBathroomQueue{SeatID: "99Z"},
		LeaveBathroomQueue{SeatID: "99Z"},
	} {
		_, err := d.Dispatch(ctx, cmd)
		assert.ErrorIs(t, err, service.ErrSeatNotFound, "%T", cmd)
	}
	assert.Empty(t, rec.take())
}

func TestDispatchJoinScenario(t *testing.T) {
	d, rec := newTestDispatcher(t)
	ctx := context.Background()

	reply, err := d.Dispatch(ctx, JoinBathroomQueue{SeatID: "1A"})
	require.NoError(t, err)
	assert.Equal(t, EventBathroomDirectAccess, reply.Event)
	access := reply.Data.(BathroomDirectAccess)
	assert.True(t, access.Success)
	assert.Equal(t, "1A", access.SeatID)

	events := rec.take()
	require.Len(t, events, 1)
	assert.Equal(t, EventBathroomStatusUpdated, events[0].Event)
	status := events[0].Data.(BathroomStatusUpdated)
	assert.True(t, status.IsOccupied)
	require.NotNil(t, status.CurrentUser)
	assert.Equal(t, "1A", *status.CurrentUser)

	reply, err = d.Dispatch(ctx, JoinBathroomQueue{SeatID: "1B"})
	require.NoError(t, err)
	assert.Equal(t, EventBathroomQueueJoined, reply.Event)
	assert.Equal(t, BathroomQueueJoined{Success: true, Position: 1}, reply.Data)

	events = rec.take()
	require.Len(t, events, 1)
	assert.Equal(t, EventBathroomQueueUpdated, events[0].Event)
	queue := events[0].Data.(BathroomQueueUpdated).Queue
	require.Len(t, queue, 1)
	assert.Equal(t, "Pasajero 1B", queue[0].PassengerName)
}

func TestDispatchLeaveNeverQueued(t *testing.T) {
	d, rec := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), LeaveBathroomQueue{SeatID: "1B"})
	assert.ErrorIs(t, err, service.ErrNotQueued)
	assert.Equal(t, "No encontrado en la cola", service.UserMessage(err))
	assert.Empty(t, rec.take())
}

func TestDispatchLeave(t *testing.T) {
	d, rec := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, JoinBathroomQueue{SeatID: "1A"})
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, JoinBathroomQueue{SeatID: "1B"})
	require.NoError(t, err)
	rec.take()

	reply, err := d.Dispatch(ctx, LeaveBathroomQueue{SeatID: "1B"})
	require.NoError(t, err)
	assert.Equal(t, EventBathroomQueueLeft, reply.Event)
	assert.Equal(t, BathroomQueueLeft{Success: true}, reply.Data)

	events := rec.take()
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Data.(BathroomQueueUpdated).Queue)
}

func TestDispatchDoorSensorExitNotifiesHead(t *testing.T) {
	d, rec := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, JoinBathroomQueue{SeatID: "1A"})
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, JoinBathroomQueue{SeatID: "2B", PassengerName: "Bea"})
	require.NoError(t, err)
	rec.take()

	reply, err := d.Dispatch(ctx, BathroomDoorSensor{Action: "exit", SeatID: "1A"})
	require.NoError(t, err)
	assert.Equal(t, EventDoorSensorProcessed, reply.Event)
	assert.Equal(t, DoorSensorProcessed{Success: true, Action: "exit"}, reply.Data)

	events := rec.take()
	require.Len(t, events, 2)
	assert.Equal(t, EventBathroomStatusUpdated, events[0].Event)
	status := events[0].Data.(BathroomStatusUpdated)
	assert.False(t, status.IsOccupied)
	assert.Nil(t, status.CurrentUser)
	assert.Equal(t, "exit", status.Action)

	assert.Equal(t, EventBathroomAvailable, events[1].Event)
	available := events[1].Data.(BathroomAvailable)
	assert.Equal(t, "2B", available.SeatID)
	assert.Equal(t, "Bea", available.PassengerName)

	queue, err := d.Service().Queue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1, "exit must not dequeue the head")
}

func TestDispatchJoinByHeadClaimsFreedBathroom(t *testing.T) {
	d, rec := newTestDispatcher(t)
	ctx := context.Background()

	for _, id := range []string{"1A", "2B", "3C"} {
		_, err := d.Dispatch(ctx, JoinBathroomQueue{SeatID: id})
		require.NoError(t, err)
	}
	_, err := d.Dispatch(ctx, BathroomDoorSensor{Action: "exit", SeatID: "1A"})
	require.NoError(t, err)
	rec.take()

	_, err = d.Dispatch(ctx, JoinBathroomQueue{SeatID: "3C"})
	assert.ErrorIs(t, err, service.ErrAlreadyQueued)
	assert.Empty(t, rec.take())

	reply, err := d.Dispatch(ctx, JoinBathroomQueue{SeatID: "2B"})
	require.NoError(t, err)
	assert.Equal(t, EventBathroomDirectAccess, reply.Event)
	assert.Equal(t, "2B", reply.Data.(BathroomDirectAccess).SeatID)

	events := rec.take()
	require.Len(t, events, 2)
	assert.Equal(t, EventBathroomStatusUpdated, events[0].Event)
	status := events[0].Data.(BathroomStatusUpdated)
	assert.True(t, status.IsOccupied)
	require.NotNil(t, status.CurrentUser)
	assert.Equal(t, "2B", *status.CurrentUser)

	assert.Equal(t, EventBathroomQueueUpdated, events[1].Event)
	queue := events[1].Data.(BathroomQueueUpdated).Queue
	require.Len(t, queue, 1)
	assert.Equal(t, "3C", queue[0].SeatID)
}

func TestDispatchConcurrentJoinsBroadcastInOrder(t *testing.T) {
	d, rec := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, JoinBathroomQueue{SeatID: "1A"})
	require.NoError(t, err)
	rec.take()

	seats := seating.DefaultLayout().Build(nil)[1:]
	var wg sync.WaitGroup
	for _, seat := range seats {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := d.Dispatch(ctx, JoinBathroomQueue{SeatID: id})
			assert.NoError(t, err)
		}(seat.ID)
	}
	wg.Wait()

	events := rec.take()
	require.Len(t, events, len(seats))
	for i, e := range events {
		require.Equal(t, EventBathroomQueueUpdated, e.Event)
		assert.Len(t, e.Data.(BathroomQueueUpdated).Queue, i+1, "snapshot %d out of order", i)
	}
}

func TestDispatchDoorSensorEnterBroadcastsQueue(t *testing.T) {
	d, rec := newTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, JoinBathroomQueue{SeatID: "1A"})
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, JoinBathroomQueue{SeatID: "2B"})
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, BathroomDoorSensor{Action: "exit", SeatID: "1A"})
	require.NoError(t, err)
	rec.take()

	_, err = d.Dispatch(ctx, BathroomDoorSensor{Action: "enter", SeatID: "2B"})
	require.NoError(t, err)

	events := rec.take()
	require.Len(t, events, 2)
	assert.Equal(t, EventBathroomStatusUpdated, events[0].Event)
	assert.Equal(t, EventBathroomQueueUpdated, events[1].Event)
	assert.Empty(t, events[1].Data.(BathroomQueueUpdated).Queue)
}

func TestDispatchDoorSensorInvalidAction(t *testing.T) {
	d, rec := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), BathroomDoorSensor{Action: "open", SeatID: "1A"})
	assert.ErrorIs(t, err, service.ErrInvalidAction)
	assert.Empty(t, rec.take())
}

func TestDispatchUpdateSeatStatus(t *testing.T) {
	d, rec := newTestDispatcher(t)

	reply, err := d.Dispatch(context.Background(), UpdateSeatStatus{
		SeatID:  "4D",
		Updates: map[string]any{"isInSeat": true, "unknown": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, SeatStatusUpdated{Success: true, SeatID: "4D"}, reply.Data)

	events := rec.take()
	require.Len(t, events, 1)
	updates := events[0].Data.(SeatUpdated).Updates
	assert.Equal(t, true, updates["is_occupied"])
	assert.NotContains(t, updates, "unknown")
}

func TestDispatchSafetyAnnouncement(t *testing.T) {
	d, rec := newTestDispatcher(t)
	ctx := context.Background()

	reply, err := d.Dispatch(ctx, SafetyAnnouncement{Message: "Abróchense", TargetSeats: []string{"1A"}})
	require.NoError(t, err)
	assert.Equal(t, EventSafetyAnnouncementSent, reply.Event)

	events := rec.take()
	require.Len(t, events, 1)
	msg := events[0].Data.(SafetyAnnouncementMessage)
	assert.Equal(t, "Abróchense", msg.Message)
	assert.Equal(t, []string{"1A"}, msg.TargetSeats)

	_, err = d.Dispatch(ctx, SafetyAnnouncement{})
	assert.ErrorIs(t, err, service.ErrMissingMessage)
	assert.Empty(t, rec.take())
}
