// Package service provides the business logic layer of CabinSmart.
//
// The service package implements:
//   - The bathroom Queue/Resource Manager (join, leave, door sensor, reads)
//   - The Seat Mutator (seat-belt toggle, whitelisted status updates)
//   - Crew safety announcements
//   - Startup seeding and seat resets
//
// Core Interfaces:
//
// CabinService is the interface consumed by the transport layer (WebSocket
// dispatcher, REST API). Service is its implementation on top of a
// store.Store.
//
// Concurrency:
//
// Every Join, Leave and DoorSensor transition runs under a single mutex, so
// the read-then-conditional-write of the direct-access fast path is one
// critical section: under N concurrent joins on a free bathroom with an empty
// queue at most one caller gets direct access. Once an exit frees the
// bathroom with people waiting, only the head of the queue can claim it by
// joining again. Seat mutations are not serialized by the service; each
// backend applies them as an atomic read-modify-write on the seat.
//
// The service never broadcasts. It returns results describing what changed
// and the caller decides who is told.
//
// Usage:
//
//	svc := service.New(st, seating.DefaultLayout(), service.WithLogger(logger))
//	if _, err := svc.Initialize(ctx); err != nil {
//		return err
//	}
//
//	res, err := svc.JoinQueue(ctx, "12C", "")
//	if err != nil {
//		return err
//	}
//	if res.DirectAccess {
//		// bathroom granted without queueing
//	}
package service
