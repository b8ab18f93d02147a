// Package store holds the shared cabin state: seats, the bathroom waiting
// queue and the bathroom status singleton.
//
// The store package implements:
//   - The Store contract used by the cabin service
//   - An in-memory backend with optional JSON snapshot persistence for seats
//   - A Redis backend (go-redis) using optimistic transactions per seat
//   - A PostgreSQL backend (pgx) using row locks per seat
//
// Collections:
//
// Seats are keyed by seat identifier and never deleted by normal operation.
// The bathroom queue is an append-only list ordered by enqueue timestamp; the
// store does not enforce one entry per seat, that invariant belongs to the
// caller. The bathroom status is a singleton keyed by BathroomID and is
// upserted.
//
// Concurrency:
//
// Every backend is safe for concurrent use. UpdateSeat applies its mutation
// as an atomic read-modify-write on a single seat. Compound operations that
// span the queue and the bathroom status are NOT atomic at this level; the
// cabin service serializes them.
//
// Usage:
//
//	st := store.NewMemoryStore()
//	if _, err := st.SeedSeats(ctx, seating.DefaultLayout().Build(nil)); err != nil {
//		return err
//	}
//	seat, err := st.UpdateSeat(ctx, "12C", func(s *seating.Seat) error {
//		s.IsBuckled = !s.IsBuckled
//		return nil
//	})
package store
