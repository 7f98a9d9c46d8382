package conn

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsec/phishdeck/internal/store"
	"github.com/driftsec/phishdeck/internal/store/postgres"
)

func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	return db
}

func TestFailoverBootstrapsLocalExactlyOnce(t *testing.T) {
	db := newMockDB(t)

	var bootstraps int32
	m := NewManager(Settings{
		Remote: &Descriptor{Kind: KindPostgres, DSN: "postgres://x@unroutable:1/x"},
		Local:  Descriptor{Kind: KindPostgres, DSN: "local"},
	})
	m.openRemote = func(context.Context) (store.Store, *sql.DB, error) {
		return nil, nil, errors.New("dial tcp: connection refused")
	}
	m.openLocal = func(context.Context) (*sql.DB, error) {
		return db, nil
	}
	m.bootstrap = func(context.Context, *sql.DB) error {
		atomic.AddInt32(&bootstraps, 1)
		return nil
	}

	const callers = 50
	stores := make([]store.Store, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := m.Get(context.Background())
			require.NoError(t, err)
			stores[i] = st
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&bootstraps))
	for _, st := range stores {
		assert.Same(t, stores[0], st)
	}
	assert.Equal(t, StateReady, m.state)
	assert.Equal(t, "local", m.active)
}

func TestRemoteWinsWhenReachable(t *testing.T) {
	db := newMockDB(t)
	remote := postgres.New(db)

	m := NewManager(Settings{
		Remote: &Descriptor{Kind: KindPostgres, DSN: "postgres://remote/x"},
		Local:  Descriptor{Kind: KindPostgres, DSN: "local"},
	})
	m.openRemote = func(context.Context) (store.Store, *sql.DB, error) {
		return remote, db, nil
	}
	m.openLocal = func(context.Context) (*sql.DB, error) {
		t.Error("local descriptor must not be opened while the remote answers")
		return nil, errors.New("unexpected")
	}
	m.bootstrap = func(context.Context, *sql.DB) error {
		t.Error("bootstrap must not run for a remote backend")
		return nil
	}

	st, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, remote, st.(*postgres.Backend))
	assert.Equal(t, "remote", m.active)
}

func TestNoRemoteDescriptorSkipsStraightToLocal(t *testing.T) {
	db := newMockDB(t)

	var opened int32
	m := NewManager(Settings{Local: Descriptor{Kind: KindPostgres, DSN: "local"}})
	m.openRemote = func(context.Context) (store.Store, *sql.DB, error) {
		t.Error("no remote descriptor is configured, nothing to open")
		return nil, nil, errors.New("unexpected")
	}
	m.openLocal = func(context.Context) (*sql.DB, error) {
		atomic.AddInt32(&opened, 1)
		return db, nil
	}
	m.bootstrap = func(context.Context, *sql.DB) error { return nil }

	_, err := m.Get(context.Background())
	require.NoError(t, err)
	// Readiness is cached: later calls do not reopen or re-probe.
	_, err = m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&opened))
}

func TestFatalIsCachedUntilReset(t *testing.T) {
	var attempts int32
	m := NewManager(Settings{Local: Descriptor{Kind: KindPostgres, DSN: "local"}})
	m.openLocal = func(context.Context) (*sql.DB, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("dial tcp: connection refused")
	}
	m.bootstrap = func(context.Context, *sql.DB) error {
		t.Error("bootstrap needs a connection handle")
		return nil
	}

	_, err := m.Get(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, StateFatal, m.state)

	_, err2 := m.Get(context.Background())
	require.ErrorIs(t, err2, ErrFatal)
	assert.Equal(t, err, err2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "fatal outcome must not re-probe")

	m.Reset()
	assert.Equal(t, StateUninitialized, m.state)
	_, err = m.Get(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestBootstrapFailureIsFatal(t *testing.T) {
	db := newMockDB(t)

	m := NewManager(Settings{Local: Descriptor{Kind: KindPostgres, DSN: "local"}})
	m.openLocal = func(context.Context) (*sql.DB, error) { return db, nil }
	m.bootstrap = func(context.Context, *sql.DB) error {
		return errors.New("permission denied for schema public")
	}

	_, err := m.Get(context.Background())
	require.ErrorIs(t, err, ErrFatal)
	assert.Equal(t, StateFatal, m.state)
}
