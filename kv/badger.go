package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"
)

// BadgerOptions configures the embedded durable backend.
type BadgerOptions struct {
	Dir        string
	InMemory   bool
	SyncWrites bool
}

// BadgerStore persists records in badger v3, one badger txn per batch. Expired records
// are kept, the ledger archives them instead of forgetting them.
type BadgerStore struct {
	db  *badgerdb.DB
	log zerolog.Logger
}

// OpenBadger opens (or creates) the database at opts.Dir.
func OpenBadger(opts BadgerOptions, log zerolog.Logger) (*BadgerStore, error) {
	bo := badgerdb.DefaultOptions(opts.Dir)
	if opts.InMemory {
		bo = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	bo = bo.WithSyncWrites(opts.SyncWrites).
		WithLogger(badgerLogger{log: log.With().Str("component", "badger").Logger()}).
		WithNumMemtables(2).
		WithBlockCacheSize(64 << 20).
		WithIndexCacheSize(32 << 20)

	db, err := badgerdb.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Dir, err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

func (s *BadgerStore) Get(_ context.Context, key string) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		rec, found, err = getRecord(txn, key)
		return err
	})
	if errors.Is(err, badgerdb.ErrDBClosed) {
		return Record{}, false, ErrClosed
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("badger get: %w", err)
	}
	return rec, found, nil
}

func getRecord(txn *badgerdb.Txn, key string) (Record, bool, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return Record{}, false, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *BadgerStore) Commit(_ context.Context, b *Batch) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for _, rd := range b.Reads {
			rec, ok, err := getRecord(txn, rd.Key)
			if err != nil {
				return err
			}
			if !rd.holds(rec, ok) {
				return fmt.Errorf("%w: %q", ErrConflict, rd.Key)
			}
		}
		for _, op := range b.Ops {
			if op.Delete {
				if err := txn.Delete([]byte(op.Key)); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set([]byte(op.Key), encodeRecord(op.Record)); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badgerdb.ErrDBClosed):
		return ErrClosed
	case errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, badgerdb.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("badger commit (%d ops): %w", b.Len(), err)
	}
}

// RunGC loops value log GC until ctx is done.
func (s *BadgerStore) RunGC(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, badgerdb.ErrNoRewrite) && !errors.Is(err, badgerdb.ErrRejected) {
						s.log.Warn().Err(err).Msg("badger value log gc failed")
					}
					break
				}
			}
		}
	}
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's printf logging into zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn().Msgf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.log.Debug().Msgf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.log.Trace().Msgf(f, v...) }
