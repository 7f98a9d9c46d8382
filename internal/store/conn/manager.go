package conn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/driftsec/phishdeck/internal/pkg/logger"
	"github.com/driftsec/phishdeck/internal/store"
	"github.com/driftsec/phishdeck/internal/store/dynamo"
	"github.com/driftsec/phishdeck/internal/store/postgres"
)

// State is the controller's position in the initialization sequence.
type State string

const (
	StateUninitialized      State = "uninitialized"
	StateProbingRemote      State = "probing_remote"
	StateProbingLocal       State = "probing_local"
	StateBootstrappingLocal State = "bootstrapping_local"
	StateReady              State = "ready"
	StateFatal              State = "fatal"
)

// ErrFatal is wrapped into the cached initialization failure. Once hit, the
// manager answers every Get with the same error until Reset.
var ErrFatal = errors.New("no storage backend reachable")

// Settings configures the manager. Remote is optional; Local is the
// fallback and must describe a PostgreSQL instance the bootstrapper can
// provision.
type Settings struct {
	Remote *Descriptor
	Local  Descriptor
	Seed   postgres.SeedOptions
}

// Manager owns the active backend handle. The first Get runs the probe and
// bootstrap sequence exactly once, no matter how many goroutines arrive
// concurrently; every later Get returns the cached result without
// re-probing. There is deliberately no background re-probe: routing changes
// only on restart or an explicit Reset.
type Manager struct {
	mu       sync.Mutex
	settings Settings

	state  State
	active string // "remote" or "local" once ready
	st     store.Store
	db     *sql.DB // owned when the active backend is postgres
	fatal  error

	// Injection points for tests. Production wiring is the default.
	openRemote func(ctx context.Context) (store.Store, *sql.DB, error)
	openLocal  func(ctx context.Context) (*sql.DB, error)
	bootstrap  func(ctx context.Context, db *sql.DB) error
}

// NewManager creates an uninitialized manager. Nothing is probed until the
// first Get.
func NewManager(settings Settings) *Manager {
	m := &Manager{settings: settings, state: StateUninitialized}
	m.openRemote = m.defaultOpenRemote
	m.openLocal = m.defaultOpenLocal
	m.bootstrap = func(ctx context.Context, db *sql.DB) error {
		return postgres.EnsureSchema(ctx, db, settings.Seed)
	}
	return m
}

// Get returns the active backend, initializing it on first use. A cached
// fatal outcome is returned as-is; the manager never retries on its own.
func (m *Manager) Get(ctx context.Context) (store.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateReady:
		return m.st, nil
	case StateFatal:
		return nil, m.fatal
	}
	return m.initialize(ctx)
}

// initialize runs the probe/bootstrap sequence. Caller holds m.mu, which is
// what collapses N concurrent first-callers into one sequence.
func (m *Manager) initialize(ctx context.Context) (store.Store, error) {
	if m.settings.Remote != nil {
		m.state = StateProbingRemote
		st, db, err := m.openRemote(ctx)
		if err == nil {
			m.st, m.db = st, db
			m.state = StateReady
			m.active = "remote"
			logger.Info("storage backend ready", "backend", "remote",
				"kind", string(m.settings.Remote.Kind))
			return m.st, nil
		}
		logger.Warn("remote backend unreachable, falling back to local", "cause", err)
	}

	m.state = StateProbingLocal
	db, pingErr := m.openLocal(ctx)
	if pingErr != nil && db == nil {
		return nil, m.toFatal(pingErr)
	}

	// The bootstrapper runs on every local activation: it is idempotent,
	// and a reachable-but-empty instance must come up provisioned.
	m.state = StateBootstrappingLocal
	if err := m.bootstrap(ctx, db); err != nil {
		db.Close()
		return nil, m.toFatal(err)
	}
	if pingErr != nil {
		// Probe failed before the bootstrap attempt; verify it recovered.
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, m.toFatal(err)
		}
	}

	m.st, m.db = postgres.New(db), db
	m.state = StateReady
	m.active = "local"
	logger.Info("storage backend ready", "backend", "local", "kind", string(KindPostgres))
	return m.st, nil
}

func (m *Manager) toFatal(cause error) error {
	m.state = StateFatal
	m.fatal = fmt.Errorf("%w: %v", ErrFatal, cause)
	logger.Error("storage initialization failed, manager is fatal until reset", "cause", cause)
	return m.fatal
}

func (m *Manager) defaultOpenRemote(ctx context.Context) (store.Store, *sql.DB, error) {
	d := *m.settings.Remote
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if d.Kind == KindDynamo {
		b, err := dynamo.Connect(ctx, d.Dynamo)
		if err != nil {
			return nil, nil, err
		}
		if err := b.Ping(ctx); err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	}

	db, err := sql.Open("postgres", d.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.New(db), db, nil
}

func (m *Manager) defaultOpenLocal(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", m.settings.Local.DSN)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return db, db.PingContext(ctx)
}

// Reset drops the cached backend and returns the manager to uninitialized.
// The injection harness and tests call this to force a fresh probe
// sequence; production traffic never does.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		m.db.Close()
	}
	m.state = StateUninitialized
	m.active = ""
	m.st = nil
	m.db = nil
	m.fatal = nil
}

// ReplaceRemote swaps the remote descriptor and resets in one step, so a
// concurrent Get can never observe the new descriptor with the old cached
// backend.
func (m *Manager) ReplaceRemote(d *Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		m.db.Close()
	}
	m.settings.Remote = d
	m.state = StateUninitialized
	m.active = ""
	m.st = nil
	m.db = nil
	m.fatal = nil
}

// Status is the operator-facing snapshot of the controller.
type Status struct {
	State            State  `json:"state"`
	Active           string `json:"active,omitempty"`
	Kind             string `json:"kind,omitempty"`
	RemoteConfigured bool   `json:"remoteConfigured"`
	RemoteReachable  bool   `json:"remoteReachable"`
	LocalReachable   bool   `json:"localReachable"`
}

// Describe reports the controller state plus a fresh reachability probe of
// both configured descriptors. The probes are informational and do not
// change routing.
func (m *Manager) Describe(ctx context.Context) Status {
	m.mu.Lock()
	s := Status{
		State:            m.state,
		Active:           m.active,
		RemoteConfigured: m.settings.Remote != nil,
	}
	if m.state == StateReady {
		s.Kind = string(KindPostgres)
		if m.active == "remote" {
			s.Kind = string(m.settings.Remote.Kind)
		}
	}
	remote := m.settings.Remote
	local := m.settings.Local
	m.mu.Unlock()

	if remote != nil {
		s.RemoteReachable = Probe(ctx, *remote)
	}
	s.LocalReachable = Probe(ctx, local)
	return s
}
