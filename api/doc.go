// Package api provides the HTTP REST API for CabinSmart.
//
// The api package implements:
//   - Read endpoints for seats, the bathroom queue and bathroom status
//   - Command endpoints that share the WebSocket dispatcher, so a change
//     made over REST is broadcast to every connected observer
//   - WebSocket upgrade at /ws
//
// Endpoints:
//
// Read:
//   - GET /                        - Welcome message
//   - GET /health                  - Store reachability
//   - GET /seats                   - All seats keyed by seat id
//   - GET /seats/{id}              - One seat, or {"error": ...} with 200
//   - GET /bathroom/queue          - Queue in arrival order
//   - GET /bathroom/status         - Bathroom occupancy
//
// Commands:
//   - POST   /seats/{id}/toggle-buckle
//   - POST   /seats/{id}/status          body: {"isInSeat": true, "is_buckled": false}
//   - POST   /bathroom/queue             body: {"seatId": "12C", "passengerName": "..."}
//   - DELETE /bathroom/queue/{seatId}
//   - POST   /bathroom/door-sensor       body: {"action": "enter|exit", "seatId": "12C"}
//   - POST   /announcements              body: {"message": "...", "targetSeats": ["1A"]}
//
// Command responses carry the same payload the WebSocket acknowledgement
// would. Errors are returned as JSON with a 4xx or 500 status:
//
//	{"error": "Ya estás en la cola"}
package api
