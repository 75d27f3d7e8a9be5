package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the shared backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps records in redis so several nodes can share one state. A batch is
// an optimistic WATCH/MULTI/EXEC over its read set, a lost race is ErrConflict.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects and pings so a bad address fails at startup, not on the first call.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client, prefix: opts.Prefix}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	return s.get(ctx, s.client, key)
}

// getter is the one command get needs, both *redis.Client and *redis.Tx have it.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, key string) (Record, bool, error) {
	raw, err := c.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if errors.Is(err, redis.ErrClosed) {
		return Record{}, false, ErrClosed
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("redis get: %w", err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *RedisStore) Commit(ctx context.Context, b *Batch) error {
	watched := make([]string, 0, len(b.Reads))
	for _, rd := range b.Reads {
		watched = append(watched, s.prefix+rd.Key)
	}
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		// anything changed between the invocation's reads and WATCH shows up here,
		// anything after WATCH aborts EXEC
		for _, rd := range b.Reads {
			rec, ok, err := s.get(ctx, tx, rd.Key)
			if err != nil {
				return err
			}
			if !rd.holds(rec, ok) {
				return fmt.Errorf("%w: %q", ErrConflict, rd.Key)
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range b.Ops {
				key := s.prefix + op.Key
				if op.Delete {
					pipe.Del(ctx, key)
					continue
				}
				pipe.Set(ctx, key, encodeRecord(op.Record), 0)
			}
			return nil
		})
		return err
	}, watched...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.ErrClosed):
		return ErrClosed
	case errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: watched key modified", ErrConflict)
	default:
		return fmt.Errorf("redis commit (%d ops): %w", b.Len(), err)
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
