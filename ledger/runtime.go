// Package ledger is the host the protocol runs on: every invocation is serialized,
// works on a private overlay, and is committed to the kv backend in one batch or not at all.
package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"pifp_protocol/kv"
	"pifp_protocol/sdk"
)

var (
	ErrStaleNonce = errors.New("ledger: stale nonce")
	ErrAborted    = errors.New("ledger: invocation aborted")
)

// storage namespaces inside the backend
const (
	prefixInstance   = "i|"
	prefixPersistent = "p|"
	prefixBank       = "t|"
	prefixNonce      = "n|"
	prefixEvent      = "e|"
	keyEventSeq      = "m|seq"
	keyInstanceTTL   = "m|ittl"
)

// DefaultTTL is the lifetime a fresh entry gets before the program extends it.
const DefaultTTL uint64 = 24 * 60 * 60

// maxAttempts bounds how often an invocation is re-run after losing a commit race.
const maxAttempts = 5

// Observer receives invocation outcomes, the metrics package implements it.
type Observer interface {
	ObserveInvocation(op string, err error, took time.Duration)
	ObserveEvent(topic string)
}

type Option func(*Runtime)

func WithClock(c sdk.Clock) Option { return func(r *Runtime) { r.clock = c } }

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runtime) { r.log = l.With().Str("component", "ledger").Logger() }
}

func WithObserver(o Observer) Option { return func(r *Runtime) { r.obs = o } }

// WithMockAllAuths makes every RequireAuth pass, for local tooling and tests only.
func WithMockAllAuths() Option { return func(r *Runtime) { r.mockAllAuths = true } }

// WithTokenClient replaces the native bank. The replacement is outside the overlay,
// so it has to be atomic on its own.
func WithTokenClient(tc sdk.TokenClient) Option { return func(r *Runtime) { r.tokens = tc } }

// WithDefaultTTL sets the initial lifetime of fresh entries in seconds.
func WithDefaultTTL(secs uint64) Option { return func(r *Runtime) { r.defaultTTL = secs } }

// Runtime serializes invocations against one backend.
type Runtime struct {
	mu           sync.Mutex
	store        kv.Store
	self         sdk.Address
	clock        sdk.Clock
	log          zerolog.Logger
	obs          Observer
	mockAllAuths bool
	tokens       sdk.TokenClient
	defaultTTL   uint64

	hookMu sync.RWMutex
	hooks  []func([]sdk.Event)
}

// New builds a runtime for the program living at self.
func New(store kv.Store, self sdk.Address, opts ...Option) *Runtime {
	r := &Runtime{
		store:      store,
		self:       self,
		clock:      sdk.SystemClock{},
		log:        zerolog.Nop(),
		defaultTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Address is the custody address of the program.
func (r *Runtime) Address() sdk.Address { return r.self }

// Now reads the runtime clock.
func (r *Runtime) Now() uint64 { return r.clock.Now() }

// OnCommit registers a hook that sees the events of every committed invocation.
// Hooks run after the runtime lock is released, so they may query but should not block.
func (r *Runtime) OnCommit(fn func([]sdk.Event)) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Invoke runs fn as one all-or-nothing invocation.
func (r *Runtime) Invoke(ctx context.Context, op string, fn func(h *sdk.Host) error) error {
	return r.invoke(ctx, op, func(t *txn) error { return fn(t.host()) })
}

// Restore runs fn as an invocation whose host carries an Archive, so it can revive
// archived entries before touching them.
func (r *Runtime) Restore(ctx context.Context, fn func(h *sdk.Host) error) error {
	return r.invoke(ctx, "restore", func(t *txn) error {
		t.restoring = true
		return fn(t.host())
	})
}

// Query runs fn against the current state and throws every write away.
func (r *Runtime) Query(ctx context.Context, fn func(h *sdk.Host) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.begin(ctx)
	err := r.run(t, func(t *txn) error { return fn(t.host()) })
	if t.err != nil {
		return t.err
	}
	return err
}

func (r *Runtime) invoke(ctx context.Context, op string, fn func(t *txn) error) error {
	start := time.Now()
	events, err := r.execute(ctx, fn)
	took := time.Since(start)
	if r.obs != nil {
		r.obs.ObserveInvocation(op, err, took)
	}
	if err != nil {
		r.log.Warn().Str("op", op).Err(err).Dur("took", took).Msg("invocation rolled back")
		return err
	}
	r.log.Debug().Str("op", op).Int("events", len(events)).Dur("took", took).Msg("invocation committed")
	if len(events) == 0 {
		return nil
	}
	if r.obs != nil {
		for _, ev := range events {
			r.obs.ObserveEvent(ev.Topic())
		}
	}
	r.hookMu.RLock()
	hooks := r.hooks
	r.hookMu.RUnlock()
	for _, h := range hooks {
		h(events)
	}
	return nil
}

// execute re-runs fn from scratch when another writer on a shared backend got there first.
func (r *Runtime) execute(ctx context.Context, fn func(t *txn) error) ([]sdk.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 1; ; attempt++ {
		events, err := r.attempt(ctx, fn)
		if errors.Is(err, kv.ErrConflict) && attempt < maxAttempts {
			r.log.Debug().Err(err).Int("attempt", attempt).Msg("commit lost a race, retrying")
			continue
		}
		return events, err
	}
}

func (r *Runtime) attempt(ctx context.Context, fn func(t *txn) error) ([]sdk.Event, error) {
	t := r.begin(ctx)
	if err := t.consumeNonces(); err != nil {
		return nil, err
	}
	err := r.run(t, fn)
	if t.err != nil {
		// the program saw a host failure as an absent value, its own verdict does not count
		if !errors.Is(t.err, sdk.ErrArchived) {
			r.log.Error().Err(t.err).Msg("storage read failed during invocation")
		}
		return nil, t.err
	}
	if err != nil {
		return nil, err
	}
	return r.commit(ctx, t)
}

// run converts panics into an aborted invocation instead of taking the process down.
func (r *Runtime) run(t *txn, fn func(t *txn) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrAborted, rec)
		}
	}()
	if err := t.ctx.Err(); err != nil {
		return err
	}
	return fn(t)
}

func (r *Runtime) begin(ctx context.Context) *txn {
	return &txn{
		ctx:    ctx,
		rt:     r,
		now:    r.clock.Now(),
		auths:  sdk.AuthFromContext(ctx),
		writes: make(map[string]*kv.Record),
		reads:  make(map[string]kv.Read),
	}
}

func (r *Runtime) commit(ctx context.Context, t *txn) ([]sdk.Event, error) {
	batch := &kv.Batch{}
	var events []sdk.Event
	if len(t.events) > 0 {
		var seq uint64
		if rec, ok := t.read(keyEventSeq); ok && len(rec.Value) == 8 {
			seq = binary.BigEndian.Uint64(rec.Value)
		}
		if t.err != nil {
			return nil, t.err
		}
		events = make([]sdk.Event, len(t.events))
		for i, ev := range t.events {
			seq++
			ev.Seq = seq
			ev.Timestamp = t.now
			raw, err := sdk.EncodeEvent(ev)
			if err != nil {
				return nil, fmt.Errorf("encode event %d: %w", seq, err)
			}
			batch.Put(eventKey(seq), kv.Record{Value: raw})
			events[i] = ev
		}
		batch.Put(keyEventSeq, kv.Record{Value: u64Bytes(seq)})
	}
	for _, key := range t.order {
		rec := t.writes[key]
		if rec == nil {
			batch.Delete(key)
			continue
		}
		batch.Put(key, *rec)
	}
	if batch.Len() == 0 {
		return nil, nil
	}
	for _, key := range t.readKeys {
		rd := t.reads[key]
		batch.Observe(rd.Key, rd.Record, rd.Found)
	}
	if err := r.store.Commit(ctx, batch); err != nil {
		if !errors.Is(err, kv.ErrConflict) {
			r.log.Error().Err(err).Int("ops", batch.Len()).Msg("commit failed")
		}
		return nil, err
	}
	return events, nil
}

func (r *Runtime) loadSeq(ctx context.Context) (uint64, error) {
	rec, ok, err := r.store.Get(ctx, keyEventSeq)
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(rec.Value), nil
}

// Events returns up to limit committed events starting at sequence from (1 based).
func (r *Runtime) Events(ctx context.Context, from uint64, limit int) ([]sdk.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, err := r.loadSeq(ctx)
	if err != nil {
		return nil, err
	}
	if from == 0 {
		from = 1
	}
	out := make([]sdk.Event, 0)
	for seq := from; seq <= last && len(out) < limit; seq++ {
		rec, ok, err := r.store.Get(ctx, eventKey(seq))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ev, err := sdk.DecodeEvent(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", seq, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Mint credits native tokens out of thin air, the faucet and tests use it.
func (r *Runtime) Mint(ctx context.Context, token, to sdk.Address, amount *uint256.Int) error {
	return r.invoke(ctx, "mint", func(t *txn) error {
		return t.bank().mint(token, to, amount)
	})
}

// Balance reads the native bank, or the replacement token client if one was configured.
func (r *Runtime) Balance(ctx context.Context, token, owner sdk.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := r.Query(ctx, func(h *sdk.Host) error {
		out = h.Tokens.Balance(token, owner)
		return nil
	})
	return out, err
}

func eventKey(seq uint64) string {
	return fmt.Sprintf("%s%016x", prefixEvent, seq)
}

func u64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
