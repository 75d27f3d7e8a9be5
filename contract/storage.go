package contract

import (
	"errors"
	"fmt"
	"strconv"

	"pifp_protocol/sdk"
)

const day uint64 = 24 * 60 * 60

// TTL policy, all in seconds of host clock.
const (
	// InstanceBumpThreshold triggers an instance bump when less than this remains.
	InstanceBumpThreshold = day
	// InstanceLifetime is what the instance is bumped to.
	InstanceLifetime = 7 * day
	// PersistentBumpThreshold triggers a record bump when less than this remains.
	PersistentBumpThreshold = 7 * day
	// PersistentLifetime is what a record is bumped to.
	PersistentLifetime = 30 * day
)

// store is the typed view over the two host tiers. Counters, the pause flag
// and the super admin pointer are only ever touched through it.
type store struct {
	h *sdk.Host
}

// bumpInstance keeps the counter and pause flag alive, called by every mutating entry point.
func (s store) bumpInstance() {
	s.h.Instance.Extend(InstanceBumpThreshold, InstanceLifetime)
}

func (s store) bump(key string) {
	s.h.Persistent.Extend(key, PersistentBumpThreshold, PersistentLifetime)
}

// -----------------------------------------------------------------------------
// Instance tier
// -----------------------------------------------------------------------------

// getCount reads the string counter under the key and defaults to zero, nothing magical here.
func (s store) getCount(key string) uint64 {
	raw, ok := s.h.Instance.Get(key)
	if !ok || len(raw) == 0 {
		return 0
	}
	n, _ := strconv.ParseUint(string(raw), 10, 64)
	return n
}

// setCount stores uint64 counters back as decimal strings for the host kv.
func (s store) setCount(key string, n uint64) {
	s.h.Instance.Set(key, []byte(strconv.FormatUint(n, 10)))
}

// nextProjectID hands out the current counter value and moves the counter one up.
func (s store) nextProjectID() uint64 {
	s.bumpInstance()
	id := s.getCount(ProjectsCount)
	s.setCount(ProjectsCount, id+1)
	return id
}

func (s store) projectCount() uint64 {
	return s.getCount(ProjectsCount)
}

func (s store) isPaused() bool {
	raw, ok := s.h.Instance.Get(keyPaused)
	return ok && len(raw) == 1 && raw[0] == 1
}

func (s store) setPaused(paused bool) {
	s.bumpInstance()
	v := byte(0)
	if paused {
		v = 1
	}
	s.h.Instance.Set(keyPaused, []byte{v})
}

// -----------------------------------------------------------------------------
// RBAC records
// -----------------------------------------------------------------------------

func (s store) superAdmin() (sdk.Address, bool) {
	raw, ok := s.h.Persistent.Get(keySuperAdmin)
	if !ok {
		return "", false
	}
	s.bump(keySuperAdmin)
	return sdk.Address(raw), true
}

func (s store) setSuperAdmin(addr sdk.Address) {
	s.h.Persistent.Set(keySuperAdmin, []byte(addr.Normalize()))
	s.bump(keySuperAdmin)
}

func (s store) role(addr sdk.Address) (Role, bool) {
	key := roleKey(addr)
	raw, ok := s.h.Persistent.Get(key)
	if !ok || len(raw) != 1 || !Role(raw[0]).valid() {
		return 0, false
	}
	s.bump(key)
	return Role(raw[0]), true
}

func (s store) setRole(addr sdk.Address, role Role) {
	key := roleKey(addr)
	s.h.Persistent.Set(key, []byte{byte(role)})
	s.bump(key)
}

func (s store) clearRole(addr sdk.Address) {
	s.h.Persistent.Remove(roleKey(addr))
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

// saveProjectConfig is the only writer of config records and only registration calls it.
func (s store) saveProjectConfig(cfg *ProjectConfig) {
	key := projectConfigKey(cfg.ID)
	s.h.Persistent.Set(key, EncodeProjectConfig(cfg))
	s.bump(key)
}

func (s store) saveProjectState(id uint64, st *ProjectState) {
	key := projectStateKey(id)
	s.h.Persistent.Set(key, EncodeProjectState(st))
	s.bump(key)
}

// maybeLoadProjectConfig returns nil when the record is absent or expired.
func (s store) maybeLoadProjectConfig(id uint64) (*ProjectConfig, error) {
	key := projectConfigKey(id)
	raw, ok := s.h.Persistent.Get(key)
	if !ok {
		return nil, nil
	}
	cfg, err := DecodeProjectConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("decode project %d config: %w", id, err)
	}
	s.bump(key)
	return cfg, nil
}

func (s store) maybeLoadProjectState(id uint64) (*ProjectState, error) {
	key := projectStateKey(id)
	raw, ok := s.h.Persistent.Get(key)
	if !ok {
		return nil, nil
	}
	st, err := DecodeProjectState(raw)
	if err != nil {
		return nil, fmt.Errorf("decode project %d state: %w", id, err)
	}
	s.bump(key)
	return st, nil
}

// projectExists is a bare has check, it does not bump.
func (s store) projectExists(id uint64) bool {
	return s.h.Persistent.Has(projectConfigKey(id))
}

// loadProjectPair reads both halves in one go, ProjectNotFound unless both are there.
func (s store) loadProjectPair(id uint64) (*ProjectConfig, *ProjectState, error) {
	cfg, err := s.maybeLoadProjectConfig(id)
	if err != nil {
		return nil, nil, err
	}
	st, err := s.maybeLoadProjectState(id)
	if err != nil {
		return nil, nil, err
	}
	if cfg == nil || st == nil {
		return nil, nil, errorf(CodeProjectNotFound, "project %d", id)
	}
	return cfg, st, nil
}

func (s store) loadProjectConfig(id uint64) (*ProjectConfig, error) {
	cfg, err := s.maybeLoadProjectConfig(id)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, errorf(CodeProjectNotFound, "project %d", id)
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------
// Archive
// -----------------------------------------------------------------------------

// restore revives the instance, the super admin with its role, the roles of accounts and
// every record of the listed projects. It returns how many entries came back.
func (s store) restore(ids []uint64, accounts []sdk.Address) (int, error) {
	a := s.h.Archive
	if a == nil {
		return 0, errors.New("restore outside a restore invocation")
	}
	n := 0
	count := func(ok bool) {
		if ok {
			n++
		}
	}
	count(a.RestoreInstance())
	count(a.RestorePersistent(keySuperAdmin))
	if sa, ok := s.superAdmin(); ok {
		count(a.RestorePersistent(roleKey(sa)))
	}
	for _, addr := range accounts {
		count(a.RestorePersistent(roleKey(addr)))
	}
	for _, id := range ids {
		count(a.RestorePersistent(projectConfigKey(id)))
		count(a.RestorePersistent(projectStateKey(id)))
		cfg, err := s.maybeLoadProjectConfig(id)
		if err != nil {
			return n, err
		}
		if cfg == nil {
			continue
		}
		for _, token := range cfg.AcceptedTokens {
			count(a.RestorePersistent(projectBalanceKey(id, token)))
		}
	}
	return n, nil
}

// maybeLoadProject returns the reconstructed view, nil when the project is unknown.
func (s store) maybeLoadProject(id uint64) (*Project, error) {
	cfg, st, err := s.loadProjectPair(id)
	if err != nil {
		if code, ok := CodeOf(err); ok && code == CodeProjectNotFound {
			return nil, nil
		}
		return nil, err
	}
	return newProjectView(cfg, st), nil
}
