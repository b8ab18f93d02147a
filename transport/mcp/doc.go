// Package mcp exposes the CabinSmart REST API as Model Context Protocol
// tools so crew assistants and agents can inspect and drive the cabin.
//
// The client holds no state of its own: every tool is a call against the
// REST API, so changes made through MCP reach the WebSocket observers like
// any other command.
//
// Tools:
//   - list_seats, get_seat
//   - bathroom_queue, bathroom_status
//   - toggle_seat_belt
//   - join_bathroom_queue, leave_bathroom_queue, door_sensor
//   - safety_announcement
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: the Client is an http.Handler for single JSON-RPC POSTs (/mcp)
package mcp
