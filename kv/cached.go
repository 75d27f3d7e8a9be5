package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// CachedStore fronts another store with bigcache. Misses are cached too, as an empty entry.
type CachedStore struct {
	inner Store
	cache *bigcache.BigCache
}

// NewCached wraps inner. lifeWindow bounds staleness if something else writes the backend.
func NewCached(inner Store, lifeWindow time.Duration, maxMB int) (*CachedStore, error) {
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.HardMaxCacheSize = maxMB
	cfg.Verbose = false
	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("bigcache: %w", err)
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

func (s *CachedStore) Get(ctx context.Context, key string) (Record, bool, error) {
	raw, err := s.cache.Get(key)
	if err == nil {
		if len(raw) == 0 {
			return Record{}, false, nil
		}
		rec, derr := decodeRecord(raw)
		if derr == nil {
			return rec, true, nil
		}
		_ = s.cache.Delete(key)
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		return Record{}, false, fmt.Errorf("bigcache get: %w", err)
	}

	rec, ok, err := s.inner.Get(ctx, key)
	if err != nil {
		return Record{}, false, err
	}
	if ok {
		_ = s.cache.Set(key, encodeRecord(rec))
	} else {
		_ = s.cache.Set(key, []byte{})
	}
	return rec, ok, nil
}

func (s *CachedStore) Commit(ctx context.Context, b *Batch) error {
	if err := s.inner.Commit(ctx, b); err != nil {
		// a conflict means another writer moved the backend under the cache
		for _, rd := range b.Reads {
			_ = s.cache.Delete(rd.Key)
		}
		for _, op := range b.Ops {
			_ = s.cache.Delete(op.Key)
		}
		return err
	}
	for _, op := range b.Ops {
		val := []byte{}
		if !op.Delete {
			val = encodeRecord(op.Record)
		}
		if err := s.cache.Set(op.Key, val); err != nil {
			_ = s.cache.Delete(op.Key)
		}
	}
	return nil
}

func (s *CachedStore) Close() error {
	cerr := s.cache.Close()
	if err := s.inner.Close(); err != nil {
		return err
	}
	return cerr
}
