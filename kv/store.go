// Package kv holds the storage backends the ledger commits to. A backend only has to do
// point reads and atomic batch commits, expiry is decided by the ledger against its clock.
package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrClosed        = errors.New("kv: store closed")
	ErrCorruptRecord = errors.New("kv: corrupt record")
	// ErrConflict means a read the batch depends on changed before it could commit.
	ErrConflict = errors.New("kv: read set changed before commit")
)

// Record is a stored value plus its expiry in unix seconds, 0 means it never expires.
type Record struct {
	Value     []byte
	ExpiresAt uint64
}

// Expired reports whether the record is dead at now.
func (r Record) Expired(now uint64) bool {
	return r.ExpiresAt != 0 && r.ExpiresAt <= now
}

// Op is a single put or delete inside a batch.
type Op struct {
	Key    string
	Record Record
	Delete bool
}

// Read is a value the invocation saw, Found false means it saw nothing.
type Read struct {
	Key    string
	Record Record
	Found  bool
}

// holds reports whether the stored state still matches what was read.
func (r Read) holds(rec Record, found bool) bool {
	if r.Found != found {
		return false
	}
	return !found || (r.Record.ExpiresAt == rec.ExpiresAt && bytes.Equal(r.Record.Value, rec.Value))
}

// Batch collects the writes of one invocation, it is applied all or nothing. Reads is
// the read set: the commit fails with ErrConflict unless every entry still holds.
type Batch struct {
	Ops   []Op
	Reads []Read
}

// Observe adds a read to the read set.
func (b *Batch) Observe(key string, rec Record, found bool) {
	b.Reads = append(b.Reads, Read{Key: key, Record: rec, Found: found})
}

func (b *Batch) Put(key string, rec Record) {
	b.Ops = append(b.Ops, Op{Key: key, Record: rec})
}

func (b *Batch) Delete(key string) {
	b.Ops = append(b.Ops, Op{Key: key, Delete: true})
}

func (b *Batch) Len() int { return len(b.Ops) }

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Commit(ctx context.Context, b *Batch) error
	Close() error
}

// encodeRecord prefixes the big endian expiry so tooling can read it without guessing.
func encodeRecord(r Record) []byte {
	out := make([]byte, 8+len(r.Value))
	binary.BigEndian.PutUint64(out[:8], r.ExpiresAt)
	copy(out[8:], r.Value)
	return out
}

func decodeRecord(raw []byte) (Record, error) {
	if len(raw) < 8 {
		return Record{}, fmt.Errorf("%w: %d bytes", ErrCorruptRecord, len(raw))
	}
	val := make([]byte, len(raw)-8)
	copy(val, raw[8:])
	return Record{Value: val, ExpiresAt: binary.BigEndian.Uint64(raw[:8])}, nil
}
