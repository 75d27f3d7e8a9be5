package ledger

import (
	"context"
	"encoding/binary"
	"fmt"

	"pifp_protocol/kv"
	"pifp_protocol/sdk"
)

// txn is the private overlay of one invocation. Reads fall through to the store,
// writes stay here until commit. A nil entry in writes is a pending delete.
type txn struct {
	ctx    context.Context
	rt     *Runtime
	now    uint64
	auths  []sdk.Authorization
	writes map[string]*kv.Record
	order  []string
	events []sdk.Event
	// store reads the writes depend on, checked again at commit
	reads    map[string]kv.Read
	readKeys []string
	// restoring hands the program an Archive
	restoring bool
	// first host failure (backend or archived entry), it fails the invocation
	err error
}

func (t *txn) host() *sdk.Host {
	h := &sdk.Host{
		Env:        txnEnv{t: t},
		Instance:   instanceStore{t: t},
		Persistent: persistentStore{t: t},
		Tokens:     t.rt.tokens,
		Events:     eventLog{t: t},
	}
	if h.Tokens == nil {
		h.Tokens = t.bank()
	}
	if t.restoring {
		h.Archive = archive{t: t}
	}
	return h
}

func (t *txn) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

// archived fails the invocation, an expired entry never reads as absent.
func (t *txn) archived(key string) {
	t.fail(fmt.Errorf("%w: %q", sdk.ErrArchived, key))
}

func (t *txn) read(key string) (kv.Record, bool) {
	if w, ok := t.writes[key]; ok {
		if w == nil {
			return kv.Record{}, false
		}
		return *w, true
	}
	if t.err != nil {
		return kv.Record{}, false
	}
	if rd, ok := t.reads[key]; ok {
		return rd.Record, rd.Found
	}
	rec, ok, err := t.rt.store.Get(t.ctx, key)
	if err != nil {
		t.fail(fmt.Errorf("read %q: %w", key, err))
		return kv.Record{}, false
	}
	t.reads[key] = kv.Read{Key: key, Record: rec, Found: ok}
	t.readKeys = append(t.readKeys, key)
	return rec, ok
}

// readLive is read plus the expiry check against the invocation clock.
func (t *txn) readLive(key string) (kv.Record, bool) {
	rec, ok := t.read(key)
	if !ok {
		return kv.Record{}, false
	}
	if rec.Expired(t.now) {
		t.archived(key)
		return kv.Record{}, false
	}
	return rec, true
}

func (t *txn) write(key string, rec kv.Record) {
	if _, seen := t.writes[key]; !seen {
		t.order = append(t.order, key)
	}
	val := make([]byte, len(rec.Value))
	copy(val, rec.Value)
	t.writes[key] = &kv.Record{Value: val, ExpiresAt: rec.ExpiresAt}
}

func (t *txn) remove(key string) {
	if _, seen := t.writes[key]; !seen {
		t.order = append(t.order, key)
	}
	t.writes[key] = nil
}

// consumeNonces enforces strictly increasing nonces per signer, nonce 0 is untracked.
func (t *txn) consumeNonces() error {
	for _, a := range t.auths {
		if a.Nonce == 0 {
			continue
		}
		key := prefixNonce + a.Signer.String()
		var last uint64
		if rec, ok := t.read(key); ok && len(rec.Value) == 8 {
			last = binary.BigEndian.Uint64(rec.Value)
		}
		if t.err != nil {
			return t.err
		}
		if a.Nonce <= last {
			return fmt.Errorf("%w: %s used %d, last %d", ErrStaleNonce, a.Signer, a.Nonce, last)
		}
		t.write(key, kv.Record{Value: u64Bytes(a.Nonce)})
	}
	return nil
}

// -----------------------------------------------------------------------------
// Env
// -----------------------------------------------------------------------------

type txnEnv struct{ t *txn }

func (e txnEnv) Now() uint64 { return e.t.now }

func (e txnEnv) CurrentContract() sdk.Address { return e.t.rt.self }

func (e txnEnv) RequireAuth(addr sdk.Address) error {
	if e.t.rt.mockAllAuths {
		return nil
	}
	want := addr.Normalize()
	for _, a := range e.t.auths {
		if a.Signer == want {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", sdk.ErrMissingAuth, addr)
}

// -----------------------------------------------------------------------------
// Instance tier: one shared expiry kept under keyInstanceTTL
// -----------------------------------------------------------------------------

type instanceStore struct{ t *txn }

// expiry returns the shared expiry and whether the instance was ever written.
func (s instanceStore) expiry() (uint64, bool) {
	rec, ok := s.t.read(keyInstanceTTL)
	if !ok || len(rec.Value) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(rec.Value), true
}

// live fails the invocation once the shared expiry has passed. Before the first
// Set the instance is empty, not archived.
func (s instanceStore) live() (exp uint64, written, ok bool) {
	exp, written = s.expiry()
	if written && exp <= s.t.now {
		s.t.archived(keyInstanceTTL)
		return exp, written, false
	}
	return exp, written, true
}

func (s instanceStore) setExpiry(at uint64) {
	s.t.write(keyInstanceTTL, kv.Record{Value: u64Bytes(at)})
}

func (s instanceStore) Get(key string) ([]byte, bool) {
	if _, _, ok := s.live(); !ok {
		return nil, false
	}
	rec, ok := s.t.read(prefixInstance + key)
	if !ok {
		return nil, false
	}
	return rec.Value, true
}

func (s instanceStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s instanceStore) Set(key string, value []byte) {
	_, written, ok := s.live()
	if !ok {
		return
	}
	if !written {
		s.setExpiry(s.t.now + s.t.rt.defaultTTL)
	}
	s.t.write(prefixInstance+key, kv.Record{Value: value})
}

func (s instanceStore) Remove(key string) {
	if _, _, ok := s.live(); !ok {
		return
	}
	s.t.remove(prefixInstance + key)
}

func (s instanceStore) Extend(threshold, extendTo uint64) {
	exp, written, ok := s.live()
	if !ok {
		return
	}
	if !written || exp-s.t.now < threshold {
		s.setExpiry(s.t.now + extendTo)
	}
}

// -----------------------------------------------------------------------------
// Persistent tier: every record carries its own expiry
// -----------------------------------------------------------------------------

type persistentStore struct{ t *txn }

func (s persistentStore) Get(key string) ([]byte, bool) {
	rec, ok := s.t.readLive(prefixPersistent + key)
	if !ok {
		return nil, false
	}
	return rec.Value, true
}

func (s persistentStore) Has(key string) bool {
	_, ok := s.t.readLive(prefixPersistent + key)
	return ok
}

// Set keeps the expiry of a live record, fresh records start at the default ttl.
func (s persistentStore) Set(key string, value []byte) {
	k := prefixPersistent + key
	exp := s.t.now + s.t.rt.defaultTTL
	rec, ok := s.t.readLive(k)
	if s.t.err != nil {
		return
	}
	if ok {
		exp = rec.ExpiresAt
	}
	s.t.write(k, kv.Record{Value: value, ExpiresAt: exp})
}

func (s persistentStore) Remove(key string) {
	k := prefixPersistent + key
	s.t.readLive(k)
	if s.t.err != nil {
		return
	}
	s.t.remove(k)
}

func (s persistentStore) Extend(key string, threshold, extendTo uint64) {
	k := prefixPersistent + key
	rec, ok := s.t.readLive(k)
	if !ok {
		return
	}
	if rec.ExpiresAt == 0 || rec.ExpiresAt-s.t.now >= threshold {
		return
	}
	rec.ExpiresAt = s.t.now + extendTo
	s.t.write(k, rec)
}

// -----------------------------------------------------------------------------
// Archive: only restore invocations see it
// -----------------------------------------------------------------------------

type archive struct{ t *txn }

// RestoreInstance gives an archived instance a fresh default lifetime, values untouched.
func (a archive) RestoreInstance() bool {
	exp, written := instanceStore{t: a.t}.expiry()
	if !written || exp > a.t.now {
		return false
	}
	instanceStore{t: a.t}.setExpiry(a.t.now + a.t.rt.defaultTTL)
	return true
}

func (a archive) RestorePersistent(key string) bool {
	k := prefixPersistent + key
	rec, ok := a.t.read(k)
	if !ok || !rec.Expired(a.t.now) {
		return false
	}
	rec.ExpiresAt = a.t.now + a.t.rt.defaultTTL
	a.t.write(k, rec)
	return true
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

type eventLog struct{ t *txn }

func (l eventLog) Publish(topics []string, data map[string]string) {
	ev := sdk.Event{
		Topics: append([]string(nil), topics...),
		Data:   make(map[string]string, len(data)),
	}
	for k, v := range data {
		ev.Data[k] = v
	}
	l.t.events = append(l.t.events, ev)
}
