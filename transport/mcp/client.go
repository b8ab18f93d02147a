package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/cabinsmart/cabin/seating"
	"github.com/wricardo/cabinsmart/cabin/store"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string, version string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer(version)
	return c
}

func (c *Client) initMCPServer(version string) {
	c.mcpServer = server.NewMCPServer(
		"CabinSmart",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`CabinSmart - MCP Interface

This is a thin client that proxies all requests to the CabinSmart REST API.
Every change made through these tools is broadcast to the cabin panels.

CABIN:
Seats are identified by row number and letter ("12C"). Rows 1-8 are business,
the rest economy. There is a single bathroom with a FIFO queue.

AVAILABLE TOOLS:
- list_seats: Summary of all seats, optionally only occupied or unbuckled ones
- get_seat: Details of one seat
- bathroom_queue: Current bathroom queue in arrival order
- bathroom_status: Who occupies the bathroom, if anyone
- toggle_seat_belt: Flip the seat belt flag of a seat
- join_bathroom_queue: Queue a seat for the bathroom (direct access if free,
  or claim it as head of the queue once it is free)
- leave_bathroom_queue: Remove a seat from the queue
- door_sensor: Report the bathroom door sensor (enter/exit)
- safety_announcement: Broadcast a crew announcement`),
	)

	c.registerTools()
}

func (c *Client) registerTools() {
	seatIDOption := func(desc string) mcp.ToolOption {
		return mcp.WithString("seat_id", mcp.Required(), mcp.Description(desc))
	}

	// Read tools
	c.mcpServer.AddTool(mcp.NewTool("list_seats",
		mcp.WithDescription("List cabin seats with occupancy and seat belt state"),
		mcp.WithString("filter",
			mcp.Enum("all", "occupied", "unbuckled"),
			mcp.Description("Restrict the listing (default: all)"),
		),
	), c.handleListSeats)

	c.mcpServer.AddTool(mcp.NewTool("get_seat",
		mcp.WithDescription("Get details of a specific seat"),
		seatIDOption("Seat ID, e.g. 12C"),
	), c.handleGetSeat)

	c.mcpServer.AddTool(mcp.NewTool("bathroom_queue",
		mcp.WithDescription("Show the bathroom queue in arrival order"),
	), c.handleBathroomQueue)

	c.mcpServer.AddTool(mcp.NewTool("bathroom_status",
		mcp.WithDescription("Show whether the bathroom is occupied and by which seat"),
	), c.handleBathroomStatus)

	// Command tools
	c.mcpServer.AddTool(mcp.NewTool("toggle_seat_belt",
		mcp.WithDescription("Flip the seat belt flag of a seat"),
		seatIDOption("Seat ID"),
	), c.handleToggleSeatBelt)

	c.mcpServer.AddTool(mcp.NewTool("join_bathroom_queue",
		mcp.WithDescription("Queue a seat for the bathroom; grants direct access when it is free and nobody waits, or when the seat heads the queue"),
		seatIDOption("Seat ID"),
		mcp.WithString("passenger_name", mcp.Description("Passenger name (default: Pasajero <seat_id>)")),
	), c.handleJoinQueue)

	c.mcpServer.AddTool(mcp.NewTool("leave_bathroom_queue",
		mcp.WithDescription("Remove a seat from the bathroom queue"),
		seatIDOption("Seat ID"),
	), c.handleLeaveQueue)

	c.mcpServer.AddTool(mcp.NewTool("door_sensor",
		mcp.WithDescription("Report a bathroom door sensor event"),
		mcp.WithString("action", mcp.Required(), mcp.Enum("enter", "exit"), mcp.Description("Sensor action")),
		seatIDOption("Seat ID of the passenger entering or leaving"),
	), c.handleDoorSensor)

	c.mcpServer.AddTool(mcp.NewTool("safety_announcement",
		mcp.WithDescription("Broadcast a safety announcement to the cabin"),
		mcp.WithString("message", mcp.Required(), mcp.Description("Announcement text")),
		mcp.WithString("target_seats", mcp.Description("Comma-separated seat IDs (default: whole cabin)")),
	), c.handleSafetyAnnouncement)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP handles single JSON-RPC messages posted to the /mcp endpoint.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// Notifications carry no response.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseData)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func seatPath(seatID string) string {
	return "/seats/" + url.PathEscape(seatID)
}

// Tool handlers

func (c *Client) handleListSeats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := request.GetString("filter", "all")

	var seats map[string]seating.Seat
	if err := c.apiCall(ctx, "GET", "/seats", nil, &seats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSeats(seats, filter)), nil
}

func (c *Client) handleGetSeat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seatID, err := request.RequireString("seat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Unknown seats come back as 200 with an error field.
	var raw map[string]any
	if err := c.apiCall(ctx, "GET", seatPath(seatID), nil, &raw); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if msg, ok := raw["error"].(string); ok {
		return mcp.NewToolResultError(msg), nil
	}

	var seat seating.Seat
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, &seat); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSeat(seat)), nil
}

func (c *Client) handleBathroomQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var queue []store.QueueEntry
	if err := c.apiCall(ctx, "GET", "/bathroom/queue", nil, &queue); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatQueue(queue)), nil
}

func (c *Client) handleBathroomStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status store.BathroomStatus
	if err := c.apiCall(ctx, "GET", "/bathroom/status", nil, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStatus(status)), nil
}

func (c *Client) handleToggleSeatBelt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seatID, err := request.RequireString("seat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var resp struct {
		IsBuckled bool `json:"is_buckled"`
	}
	if err := c.apiCall(ctx, "POST", seatPath(seatID)+"/toggle-buckle", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state := "unbuckled"
	if resp.IsBuckled {
		state = "buckled"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Seat %s is now %s", seatID, state)), nil
}

func (c *Client) handleJoinQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seatID, err := request.RequireString("seat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]string{
		"seatId":        seatID,
		"passengerName": request.GetString("passenger_name", ""),
	}
	var resp struct {
		Position int    `json:"position"`
		Message  string `json:"message"`
	}
	if err := c.apiCall(ctx, "POST", "/bathroom/queue", body, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if resp.Position == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Seat %s: direct access granted, the bathroom is now occupied", seatID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Seat %s queued at position %d", seatID, resp.Position)), nil
}

func (c *Client) handleLeaveQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seatID, err := request.RequireString("seat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := c.apiCall(ctx, "DELETE", "/bathroom/queue/"+url.PathEscape(seatID), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Seat %s left the bathroom queue", seatID)), nil
}

func (c *Client) handleDoorSensor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	seatID, err := request.RequireString("seat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]string{"action": action, "seatId": seatID}
	if err := c.apiCall(ctx, "POST", "/bathroom/door-sensor", body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var status store.BathroomStatus
	if err := c.apiCall(ctx, "GET", "/bathroom/status", nil, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Door sensor %s processed for seat %s\n%s", action, seatID, formatStatus(status))), nil
}

func (c *Client) handleSafetyAnnouncement(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var targets []string
	for _, id := range strings.Split(request.GetString("target_seats", ""), ",") {
		if id = strings.TrimSpace(id); id != "" {
			targets = append(targets, id)
		}
	}

	body := map[string]any{"message": message, "targetSeats": targets}
	if err := c.apiCall(ctx, "POST", "/announcements", body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	audience := "the whole cabin"
	if len(targets) > 0 {
		audience = "seats " + strings.Join(targets, ", ")
	}
	return mcp.NewToolResultText(fmt.Sprintf("Announcement sent to %s", audience)), nil
}

// Formatting

func formatSeats(seats map[string]seating.Seat, filter string) string {
	list := make([]seating.Seat, 0, len(seats))
	occupied, buckled := 0, 0
	for _, seat := range seats {
		if seat.IsOccupied {
			occupied++
		}
		if seat.IsBuckled {
			buckled++
		}
		switch filter {
		case "occupied":
			if !seat.IsOccupied {
				continue
			}
		case "unbuckled":
			if !seat.IsOccupied || seat.IsBuckled {
				continue
			}
		}
		list = append(list, seat)
	}
	store.SortSeats(list)

	var b strings.Builder
	fmt.Fprintf(&b, "%d seats, %d occupied, %d buckled\n", len(seats), occupied, buckled)
	if filter != "" && filter != "all" {
		fmt.Fprintf(&b, "Filter %s: %d seats\n", filter, len(list))
	}
	for _, seat := range list {
		b.WriteString(formatSeatLine(seat))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatSeatLine(seat seating.Seat) string {
	flags := make([]string, 0, 2)
	if seat.IsOccupied {
		flags = append(flags, "occupied")
	}
	if seat.IsBuckled {
		flags = append(flags, "buckled")
	}
	line := fmt.Sprintf("%-4s %-8s %s", seat.ID, seat.Class, seat.PassengerName)
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ", ") + "]"
	}
	return line
}

func formatSeat(seat seating.Seat) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Seat %s (%s)\n", seat.ID, seat.Class)
	fmt.Fprintf(&b, "Passenger: %s\n", seat.PassengerName)
	fmt.Fprintf(&b, "Occupied: %t\n", seat.IsOccupied)
	fmt.Fprintf(&b, "Buckled: %t\n", seat.IsBuckled)
	if seat.LastUpdated != nil {
		fmt.Fprintf(&b, "Last updated: %s\n", seat.LastUpdated.Format(time.RFC3339))
	}
	return b.String()
}

func formatQueue(queue []store.QueueEntry) string {
	if len(queue) == 0 {
		return "The bathroom queue is empty"
	}
	sorted := append([]store.QueueEntry(nil), queue...)
	store.SortQueue(sorted)

	var b strings.Builder
	fmt.Fprintf(&b, "%d waiting:\n", len(sorted))
	for i, e := range sorted {
		fmt.Fprintf(&b, "%d. %s (%s) since %s\n", i+1, e.SeatID, e.PassengerName, e.Timestamp.Format("15:04:05"))
	}
	return b.String()
}

func formatStatus(status store.BathroomStatus) string {
	if !status.IsOccupied {
		return "The bathroom is free"
	}
	return fmt.Sprintf("The bathroom is occupied by seat %s", status.Holder)
}
