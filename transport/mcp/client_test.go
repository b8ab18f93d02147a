package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/cabinsmart/api"
	"github.com/wricardo/cabinsmart/cabin/seating"
	"github.com/wricardo/cabinsmart/cabin/service"
	"github.com/wricardo/cabinsmart/cabin/store"
	"github.com/wricardo/cabinsmart/transport/websocket"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemoryStore()
	svc := service.New(st, seating.Layout{Rows: 10, SeatsPerRow: 6, BusinessRows: 2})
	_, err := svc.Initialize(context.Background())
	require.NoError(t, err)

	hub := websocket.NewHub(nil)
	srv := httptest.NewServer(api.NewServer(websocket.NewDispatcher(svc, hub, nil), nil, nil))
	t.Cleanup(func() {
		srv.Close()
		st.Close()
	})
	return srv
}

func callTool(t *testing.T, c *Client, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"params": map[string]any{"arguments": args}})
	require.NoError(t, err)

	var req mcp.CallToolRequest
	require.NoError(t, json.Unmarshal(raw, &req))

	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text, res.IsError
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8000/", "1.0.0")

	assert.Equal(t, "http://localhost:8000", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestSeatTools(t *testing.T) {
	srv := newAPI(t)
	c := NewClient(srv.URL, "test")

	text, isErr := callTool(t, c, c.handleListSeats, nil)
	assert.False(t, isErr)
	assert.True(t, strings.HasPrefix(text, "60 seats, 0 occupied, 0 buckled"), text)
	assert.Contains(t, text, "1A   business Pasajero 1A")

	text, isErr = callTool(t, c, c.handleToggleSeatBelt, map[string]any{"seat_id": "3C"})
	assert.False(t, isErr)
	assert.Equal(t, "Seat 3C is now buckled", text)

	text, _ = callTool(t, c, c.handleGetSeat, map[string]any{"seat_id": "3C"})
	assert.Contains(t, text, "Seat 3C (economy)")
	assert.Contains(t, text, "Buckled: true")

	text, isErr = callTool(t, c, c.handleGetSeat, map[string]any{"seat_id": "99Z"})
	assert.True(t, isErr)
	assert.Equal(t, "Asiento no encontrado", text)

	_, isErr = callTool(t, c, c.handleGetSeat, nil)
	assert.True(t, isErr, "seat_id is required")
}

func TestBathroomTools(t *testing.T) {
	srv := newAPI(t)
	c := NewClient(srv.URL, "test")

	text, _ := callTool(t, c, c.handleBathroomStatus, nil)
	assert.Equal(t, "The bathroom is free", text)

	text, isErr := callTool(t, c, c.handleJoinQueue, map[string]any{"seat_id": "1A"})
	assert.False(t, isErr)
	assert.Contains(t, text, "direct access")

	text, _ = callTool(t, c, c.handleJoinQueue, map[string]any{"seat_id": "2B", "passenger_name": "Marta"})
	assert.Equal(t, "Seat 2B queued at position 1", text)

	text, isErr = callTool(t, c, c.handleJoinQueue, map[string]any{"seat_id": "2B"})
	assert.True(t, isErr)
	assert.Equal(t, "Ya estás en la cola", text)

	text, _ = callTool(t, c, c.handleBathroomQueue, nil)
	assert.Contains(t, text, "1 waiting:")
	assert.Contains(t, text, "1. 2B (Marta)")

	text, isErr = callTool(t, c, c.handleDoorSensor, map[string]any{"action": "exit", "seat_id": "1A"})
	assert.False(t, isErr)
	assert.Contains(t, text, "The bathroom is free")

	text, isErr = callTool(t, c, c.handleDoorSensor, map[string]any{"action": "enter", "seat_id": "2B"})
	assert.False(t, isErr)
	assert.Contains(t, text, "occupied by seat 2B")

	text, _ = callTool(t, c, c.handleBathroomQueue, nil)
	assert.Equal(t, "The bathroom queue is empty", text)

	text, isErr = callTool(t, c, c.handleLeaveQueue, map[string]any{"seat_id": "2B"})
	assert.True(t, isErr)
	assert.Equal(t, "No encontrado en la cola", text)
}

func TestSafetyAnnouncementTool(t *testing.T) {
	srv := newAPI(t)
	c := NewClient(srv.URL, "test")

	text, isErr := callTool(t, c, c.handleSafetyAnnouncement, map[string]any{"message": "Turbulencia"})
	assert.False(t, isErr)
	assert.Equal(t, "Announcement sent to the whole cabin", text)

	text, isErr = callTool(t, c, c.handleSafetyAnnouncement, map[string]any{"message": "Turbulencia", "target_seats": "1A, 1B"})
	assert.False(t, isErr)
	assert.Equal(t, "Announcement sent to seats 1A, 1B", text)

	text, isErr = callTool(t, c, c.handleSafetyAnnouncement, map[string]any{"message": "Hola", "target_seats": "99Z"})
	assert.True(t, isErr)
	assert.Equal(t, "Asiento no encontrado", text)
}

func TestAPIUnavailable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "test")
	_, isErr := callTool(t, c, c.handleBathroomStatus, nil)
	assert.True(t, isErr)
}

func TestServeHTTP(t *testing.T) {
	srv := newAPI(t)
	c := NewClient(srv.URL, "test")

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	c.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"list_seats", "get_seat", "bathroom_queue", "bathroom_status",
		"toggle_seat_belt", "join_bathroom_queue", "leave_bathroom_queue",
		"door_sensor", "safety_announcement",
	}, names)

	req = httptest.NewRequest(http.MethodGet, "/mcp", nil)
	w = httptest.NewRecorder()
	c.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestFormatSeatsFilter(t *testing.T) {
	seats := map[string]seating.Seat{
		"1A": {ID: "1A", Class: seating.Business, PassengerName: "Ana", IsOccupied: true, IsBuckled: true},
		"1B": {ID: "1B", Class: seating.Business, PassengerName: "Luis", IsOccupied: true},
		"1C": {ID: "1C", Class: seating.Business, PassengerName: "Pasajero 1C"},
	}

	out := formatSeats(seats, "unbuckled")
	assert.Contains(t, out, "3 seats, 2 occupied, 1 buckled")
	assert.Contains(t, out, "Filter unbuckled: 1 seats")
	assert.Contains(t, out, "1B")
	assert.NotContains(t, out, "Ana")

	out = formatSeats(seats, "occupied")
	assert.Contains(t, out, "Filter occupied: 2 seats")
}
