// Package seating defines the cabin seat model and the aircraft layout.
//
// The seating package implements:
//   - Seat records and their wire representation
//   - Seat identifier parsing and formatting ("12C")
//   - Class assignment by row (business / economy)
//   - Bulk layout generation for a cabin of fixed rows and seats per row
//
// Seat Identifiers:
//
// A seat identifier is the row number followed by a single seat letter,
// starting at "A". Rows are 1-based. With the default layout of 33 rows and
// six seats per row the cabin has identifiers "1A" through "33F".
//
// Classes:
//
// Rows up to and including Layout.BusinessRows are business class; every
// row after that is economy. The class is fixed when the seat is created.
//
// Usage:
//
//	layout := seating.DefaultLayout()
//	seats := layout.Build(seating.DefaultPassengerName)
//
//	id, err := seating.ParseID("12C")
//	if err != nil {
//		return err
//	}
//	class := layout.ClassForRow(id.Row)
package seating
