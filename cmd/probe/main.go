// Command probe connects to a CabinSmart WebSocket, prints a summary of the
// initial state and optionally sends one command and prints the replies
// that follow it.
//
//	probe --url ws://localhost:8000/ws
//	probe --event toggle_seat_belt --data '{"seatId":"1A"}'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type initialState struct {
	Seats map[string]struct {
		Occupied bool   `json:"is_occupied"`
		Buckled  bool   `json:"is_buckled"`
		Class    string `json:"seat_class"`
	} `json:"seats"`
	BathroomQueue []struct {
		SeatID string `json:"seat_id"`
	} `json:"bathroomQueue"`
	BathroomStatus struct {
		IsOccupied  bool    `json:"is_occupied"`
		CurrentUser *string `json:"current_user"`
	} `json:"bathroomStatus"`
	ConnectedUsers int `json:"connectedUsers"`
}

func main() {
	cmd := &cli.Command{
		Name:  "probe",
		Usage: "check a CabinSmart WebSocket endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8000/ws", Usage: "WebSocket URL"},
			&cli.StringFlag{Name: "event", Usage: "command event to send after the initial state"},
			&cli.StringFlag{Name: "data", Value: "{}", Usage: "JSON payload of the command"},
			&cli.DurationFlag{Name: "wait", Value: 2 * time.Second, Usage: "how long to print replies"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return probe(ctx, cmd.Root().Writer, cmd.String("url"), cmd.String("event"),
				json.RawMessage(cmd.String("data")), cmd.Duration("wait"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, out io.Writer, url, event string, data json.RawMessage, wait time.Duration) error {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()
	fmt.Fprintf(out, "connected to %s\n", url)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first envelope
	if err := conn.ReadJSON(&first); err != nil {
		return fmt.Errorf("failed to read initial state: %w", err)
	}
	if first.Event != "initial_state" {
		return fmt.Errorf("expected initial_state, got %q", first.Event)
	}
	if err := printInitialState(out, first.Data); err != nil {
		return err
	}

	if event == "" {
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("invalid --data JSON: %s", data)
	}
	if err := conn.WriteJSON(envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	fmt.Fprintf(out, "sent %s %s\n", event, data)

	// Print whatever arrives until the wait window closes.
	deadline := time.Now().Add(wait)
	for {
		conn.SetReadDeadline(deadline)
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				return nil
			}
			return fmt.Errorf("connection closed: %w", err)
		}
		fmt.Fprintf(out, "< %s %s\n", msg.Event, msg.Data)
	}
}

func printInitialState(out io.Writer, raw json.RawMessage) error {
	var state initialState
	if err := json.Unmarshal(raw, &state); err != nil {
		return fmt.Errorf("failed to decode initial state: %w", err)
	}

	classes := map[string]int{}
	occupied, buckled := 0, 0
	for _, seat := range state.Seats {
		classes[seat.Class]++
		if seat.Occupied {
			occupied++
		}
		if seat.Buckled {
			buckled++
		}
	}
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "seats: %d (occupied %d, buckled %d)\n", len(state.Seats), occupied, buckled)
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %d\n", name, classes[name])
	}
	bathroom := "free"
	if state.BathroomStatus.IsOccupied && state.BathroomStatus.CurrentUser != nil {
		bathroom = "occupied by " + *state.BathroomStatus.CurrentUser
	}
	fmt.Fprintf(out, "bathroom: %s, queue: %d\n", bathroom, len(state.BathroomQueue))
	fmt.Fprintf(out, "connected users: %d\n", state.ConnectedUsers)
	return nil
}
