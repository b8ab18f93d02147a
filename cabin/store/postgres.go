package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wricardo/cabinsmart/cabin/seating"
)

const schema = `
CREATE TABLE IF NOT EXISTS seats (
	seat_id        TEXT PRIMARY KEY,
	row_number     INTEGER NOT NULL,
	seat_letter    TEXT NOT NULL,
	passenger_name TEXT NOT NULL DEFAULT '',
	is_occupied    BOOLEAN NOT NULL DEFAULT FALSE,
	is_buckled     BOOLEAN NOT NULL DEFAULT FALSE,
	seat_class     TEXT NOT NULL,
	last_updated   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS bathroom_queue (
	id             BIGSERIAL PRIMARY KEY,
	seat_id        TEXT NOT NULL REFERENCES seats (seat_id) ON DELETE CASCADE,
	passenger_name TEXT NOT NULL,
	enqueued_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS bathroom_queue_enqueued_at_idx ON bathroom_queue (enqueued_at, id);

CREATE TABLE IF NOT EXISTS bathroom_status (
	id             TEXT PRIMARY KEY,
	is_occupied    BOOLEAN NOT NULL DEFAULT FALSE,
	current_holder TEXT,
	last_updated   TIMESTAMPTZ
);
`

const seatColumns = `seat_id, passenger_name, is_occupied, is_buckled, seat_class, last_updated`

// PostgresStore keeps the cabin state in PostgreSQL tables seats,
// bathroom_queue and bathroom_status.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore opens a pool for dsn, pings it and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresStore{db: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) SeedSeats(ctx context.Context, seats []seating.Seat) (int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	// Serializes concurrent seeders; the count alone would race.
	if _, err := tx.Exec(ctx, `LOCK TABLE seats IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("failed to lock seats: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM seats`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count seats: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	n, err := copySeats(ctx, tx, seats)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *PostgresStore) ReplaceSeats(ctx context.Context, seats []seating.Seat) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM bathroom_queue`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM seats`); err != nil {
		return fmt.Errorf("failed to clear seats: %w", err)
	}
	if _, err := copySeats(ctx, tx, seats); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) ListSeats(ctx context.Context) ([]seating.Seat, error) {
	rows, err := p.db.Query(ctx, `SELECT `+seatColumns+` FROM seats ORDER BY row_number, seat_letter`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	defer rows.Close()

	seats := make([]seating.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func (p *PostgresStore) GetSeat(ctx context.Context, seatID string) (seating.Seat, error) {
	row := p.db.QueryRow(ctx, `SELECT `+seatColumns+` FROM seats WHERE seat_id = $1`, seatID)
	seat, err := scanSeat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return seating.Seat{}, ErrSeatNotFound
	}
	return seat, err
}

// UpdateSeat locks the seat row for the duration of fn.
func (p *PostgresStore) UpdateSeat(ctx context.Context, seatID string, fn func(*seating.Seat) error) (seating.Seat, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return seating.Seat{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+seatColumns+` FROM seats WHERE seat_id = $1 FOR UPDATE`, seatID)
	seat, err := scanSeat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return seating.Seat{}, ErrSeatNotFound
	}
	if err != nil {
		return seating.Seat{}, err
	}

	if err := fn(&seat); err != nil {
		return seating.Seat{}, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE seats SET passenger_name = $2, is_occupied = $3, is_buckled = $4, last_updated = $5 WHERE seat_id = $1`,
		seat.ID, seat.PassengerName, seat.IsOccupied, seat.IsBuckled, seat.LastUpdated)
	if err != nil {
		return seating.Seat{}, fmt.Errorf("failed to update seat %s: %w", seatID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return seating.Seat{}, err
	}
	return seat, nil
}

func (p *PostgresStore) Queue(ctx context.Context) ([]QueueEntry, error) {
	rows, err := p.db.Query(ctx, `SELECT seat_id, passenger_name, enqueued_at FROM bathroom_queue ORDER BY enqueued_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	defer rows.Close()

	entries := make([]QueueEntry, 0)
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.SeatID, &e.PassengerName, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgresStore) AppendQueue(ctx context.Context, entry QueueEntry) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO bathroom_queue (seat_id, passenger_name, enqueued_at) VALUES ($1, $2, $3)`,
		entry.SeatID, entry.PassengerName, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append queue entry: %w", err)
	}
	return nil
}

func (p *PostgresStore) RemoveQueue(ctx context.Context, seatID string) (bool, error) {
	// One row only, mirroring a single-document delete.
	res, err := p.db.Exec(ctx,
		`DELETE FROM bathroom_queue WHERE id = (SELECT id FROM bathroom_queue WHERE seat_id = $1 ORDER BY enqueued_at, id LIMIT 1)`,
		seatID)
	if err != nil {
		return false, fmt.Errorf("failed to remove queue entry: %w", err)
	}
	return res.RowsAffected() > 0, nil
}

func (p *PostgresStore) ClearQueue(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM bathroom_queue`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

func (p *PostgresStore) BathroomStatus(ctx context.Context) (BathroomStatus, error) {
	var (
		status BathroomStatus
		holder *string
	)
	err := p.db.QueryRow(ctx,
		`SELECT is_occupied, current_holder, last_updated FROM bathroom_status WHERE id = $1`, BathroomID,
	).Scan(&status.IsOccupied, &holder, &status.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return BathroomStatus{}, nil
	}
	if err != nil {
		return BathroomStatus{}, fmt.Errorf("failed to read bathroom status: %w", err)
	}
	if holder != nil {
		status.Holder = *holder
	}
	if status.LastUpdated != nil {
		t := status.LastUpdated.UTC()
		status.LastUpdated = &t
	}
	return status, nil
}

func (p *PostgresStore) SetBathroomStatus(ctx context.Context, status BathroomStatus) error {
	var holder *string
	if status.Holder != "" {
		holder = &status.Holder
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO bathroom_status (id, is_occupied, current_holder, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET is_occupied = EXCLUDED.is_occupied,
		    current_holder = EXCLUDED.current_holder,
		    last_updated = EXCLUDED.last_updated`,
		BathroomID, status.IsOccupied, holder, status.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to write bathroom status: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.db.Close()
	return nil
}

func copySeats(ctx context.Context, tx pgx.Tx, seats []seating.Seat) (int, error) {
	rows := make([][]any, 0, len(seats))
	for _, s := range seats {
		id, err := seating.ParseID(s.ID)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			s.ID, id.Row, string(id.Letter), s.PassengerName, s.IsOccupied, s.IsBuckled, string(s.Class), s.LastUpdated,
		})
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"seats"},
		[]string{"seat_id", "row_number", "seat_letter", "passenger_name", "is_occupied", "is_buckled", "seat_class", "last_updated"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert seats: %w", err)
	}
	return int(n), nil
}

func scanSeat(row pgx.Row) (seating.Seat, error) {
	var (
		s     seating.Seat
		class string
	)
	if err := row.Scan(&s.ID, &s.PassengerName, &s.IsOccupied, &s.IsBuckled, &class, &s.LastUpdated); err != nil {
		return seating.Seat{}, err
	}
	s.Class = seating.Class(class)
	if s.LastUpdated != nil {
		t := s.LastUpdated.UTC()
		s.LastUpdated = &t
	}
	return s, nil
}

var _ Store = (*PostgresStore)(nil)
