package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wricardo/cabinsmart/cabin/seating"
)

// maxTxRetries bounds the optimistic retry loop of UpdateSeat.
const maxTxRetries = 50

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps the cabin state in Redis:
//
//	<prefix>:seats           set    every seat id
//	<prefix>:seat:<id>       string seat JSON
//	<prefix>:queue           zset   seat id scored by enqueue time (µs)
//	<prefix>:queue:entries   hash   seat id -> queue entry JSON
//	<prefix>:bathroom:main   string bathroom status JSON
//
// Each seat lives under its own key so UpdateSeat only watches the seat it
// changes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	return NewRedisStoreFromClient(client, opts.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client. An empty prefix defaults
// to "cabin".
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "cabin"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) seatsKey() string             { return r.prefix + ":seats" }
func (r *RedisStore) seatKey(seatID string) string { return r.prefix + ":seat:" + seatID }
func (r *RedisStore) queueKey() string             { return r.prefix + ":queue" }
func (r *RedisStore) queueEntriesKey() string      { return r.prefix + ":queue:entries" }
func (r *RedisStore) bathroomKey() string          { return r.prefix + ":bathroom:" + BathroomID }

func (r *RedisStore) SeedSeats(ctx context.Context, seats []seating.Seat) (int, error) {
	values, err := r.seatValues(seats)
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.SCard(ctx, r.seatsKey()).Result()
		if err != nil {
			return err
		}
		if n > 0 || len(seats) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.writeSeats(ctx, pipe, seats, values)
			return nil
		})
		if err == nil {
			inserted = len(seats)
		}
		return err
	}, r.seatsKey())
	if err != nil {
		return 0, fmt.Errorf("failed to seed seats: %w", err)
	}
	return inserted, nil
}

func (r *RedisStore) ReplaceSeats(ctx context.Context, seats []seating.Seat) error {
	values, err := r.seatValues(seats)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		ids, err := tx.SMembers(ctx, r.seatsKey()).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			stale := []string{r.seatsKey(), r.queueKey(), r.queueEntriesKey()}
			for _, id := range ids {
				stale = append(stale, r.seatKey(id))
			}
			pipe.Del(ctx, stale...)
			r.writeSeats(ctx, pipe, seats, values)
			return nil
		})
		return err
	}, r.seatsKey())
	if err != nil {
		return fmt.Errorf("failed to replace seats: %w", err)
	}
	return nil
}

func (r *RedisStore) ListSeats(ctx context.Context) ([]seating.Seat, error) {
	ids, err := r.client.SMembers(ctx, r.seatsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	if len(ids) == 0 {
		return []seating.Seat{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.seatKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read seats: %w", err)
	}

	seats := make([]seating.Seat, 0, len(values))
	for i, v := range values {
		value, ok := v.(string)
		if !ok {
			// indexed seat without a record; a concurrent replace raced the read
			continue
		}
		var s seating.Seat
		if err := json.Unmarshal([]byte(value), &s); err != nil {
			return nil, fmt.Errorf("failed to decode seat %s: %w", ids[i], err)
		}
		seats = append(seats, s)
	}
	SortSeats(seats)
	return seats, nil
}

func (r *RedisStore) GetSeat(ctx context.Context, seatID string) (seating.Seat, error) {
	return getSeat(ctx, r.client, r.seatKey(seatID), seatID)
}

// UpdateSeat watches the seat's own key and retries when another writer
// commits to the same seat between the read and the write.
func (r *RedisStore) UpdateSeat(ctx context.Context, seatID string, fn func(*seating.Seat) error) (seating.Seat, error) {
	var updated seating.Seat
	key := r.seatKey(seatID)

	txf := func(tx *redis.Tx) error {
		seat, err := getSeat(ctx, tx, key, seatID)
		if err != nil {
			return err
		}
		if err := fn(&seat); err != nil {
			return err
		}
		data, err := json.Marshal(seat)
		if err != nil {
			return fmt.Errorf("failed to encode seat %s: %w", seatID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = seat
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return seating.Seat{}, err
	}
	return seating.Seat{}, fmt.Errorf("failed to update seat %s: too much contention", seatID)
}

func (r *RedisStore) Queue(ctx context.Context) ([]QueueEntry, error) {
	ids, err := r.client.ZRange(ctx, r.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if len(ids) == 0 {
		return []QueueEntry{}, nil
	}

	values, err := r.client.HMGet(ctx, r.queueEntriesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue entries: %w", err)
	}

	entries := make([]QueueEntry, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// zset member without an entry; a concurrent removal raced the read
			continue
		}
		var e QueueEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("failed to decode queue entry %s: %w", ids[i], err)
		}
		entries = append(entries, e)
	}
	SortQueue(entries)
	return entries, nil
}

func (r *RedisStore) AppendQueue(ctx context.Context, entry QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode queue entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, r.queueKey(), redis.Z{
			Score:  float64(entry.Timestamp.UnixMicro()),
			Member: entry.SeatID,
		})
		pipe.HSet(ctx, r.queueEntriesKey(), entry.SeatID, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append queue entry: %w", err)
	}
	return nil
}

func (r *RedisStore) RemoveQueue(ctx context.Context, seatID string) (bool, error) {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, r.queueKey(), seatID)
		pipe.HDel(ctx, r.queueEntriesKey(), seatID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove queue entry: %w", err)
	}
	return removed.Val() > 0, nil
}

func (r *RedisStore) ClearQueue(ctx context.Context) error {
	if err := r.client.Del(ctx, r.queueKey(), r.queueEntriesKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

func (r *RedisStore) BathroomStatus(ctx context.Context) (BathroomStatus, error) {
	data, err := r.client.Get(ctx, r.bathroomKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return BathroomStatus{}, nil
		}
		return BathroomStatus{}, fmt.Errorf("failed to read bathroom status: %w", err)
	}

	var status BathroomStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return BathroomStatus{}, fmt.Errorf("failed to decode bathroom status: %w", err)
	}
	return status, nil
}

func (r *RedisStore) SetBathroomStatus(ctx context.Context, status BathroomStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode bathroom status: %w", err)
	}
	if err := r.client.Set(ctx, r.bathroomKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write bathroom status: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getSeat(ctx context.Context, c stringGetter, key, seatID string) (seating.Seat, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return seating.Seat{}, ErrSeatNotFound
		}
		return seating.Seat{}, fmt.Errorf("failed to read seat %s: %w", seatID, err)
	}

	var seat seating.Seat
	if err := json.Unmarshal(data, &seat); err != nil {
		return seating.Seat{}, fmt.Errorf("failed to decode seat %s: %w", seatID, err)
	}
	return seat, nil
}

// seatValues encodes every seat, keyed by its Redis key.
func (r *RedisStore) seatValues(seats []seating.Seat) (map[string]any, error) {
	values := make(map[string]any, len(seats))
	for _, s := range seats {
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to encode seat %s: %w", s.ID, err)
		}
		values[r.seatKey(s.ID)] = string(data)
	}
	return values, nil
}

func (r *RedisStore) writeSeats(ctx context.Context, pipe redis.Pipeliner, seats []seating.Seat, values map[string]any) {
	if len(seats) == 0 {
		return
	}
	ids := make([]any, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}
	pipe.MSet(ctx, values)
	pipe.SAdd(ctx, r.seatsKey(), ids...)
}

var _ Store = (*RedisStore)(nil)
