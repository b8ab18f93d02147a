// Package websocket provides the real-time WebSocket transport of CabinSmart.
//
// The websocket package implements:
//   - The Broadcast Hub: the live observer set with best-effort fan-out
//   - The Session Handler: one read pump and one write pump per connection
//   - The wire protocol: {event, data} envelopes and a closed set of commands
//   - The Dispatcher shared with the REST command routes
//
// Architecture:
//
// Every connection gets a Client with a bounded send buffer. The Hub never
// blocks on a client: Broadcast attempts a non-blocking send to each member,
// collects the ones whose buffer is full and drops them after the pass.
// Dropping a client closes its send channel, which makes its write pump close
// the connection.
//
// Message Protocol:
//
// Inbound frames are decoded once by DecodeCommand into one of the Command
// types and dispatched with a type switch. Unknown events are ignored;
// malformed frames are logged and answered with an error event, and the
// connection stays open.
//
// Connection Lifecycle:
//
// 1. Client connects and is registered with the hub
// 2. initial_state is sent to that client only
// 3. user_count_updated is broadcast to everyone
// 4. Commands are dispatched; change events are broadcast and the sender
//    receives its own acknowledgement or an error event
// 5. Disconnection unregisters the client and broadcasts user_count_updated.
//    Queue and seat state are left untouched.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	dispatcher := websocket.NewDispatcher(svc, hub, logger)
//	router.Handle("/ws", websocket.NewHandler(hub, dispatcher, logger, websocket.HandlerOptions{}))
package websocket
