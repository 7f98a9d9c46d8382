// Package postgres implements the storage contract against PostgreSQL.
// Canonical field names map 1:1 onto snake_case columns; tenant scoping is
// an organization_id predicate on every query.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/driftsec/phishdeck/internal/pkg/logger"
	"github.com/driftsec/phishdeck/internal/store"
)

// Entity names used in degraded-mode errors and logs.
const (
	entityOrganization = "organization"
	entityUser         = "user"
	entityGroup        = "group"
	entityTarget       = "target"
	entitySMTPProfile  = "smtpProfile"
	entityTemplate     = "emailTemplate"
	entityPage         = "landingPage"
	entityCampaign     = "campaign"
	entityResult       = "campaignResult"
	entityResetToken   = "passwordResetToken"
)

// Backend implements store.Store against a *sql.DB owned by the connection
// manager. It is safe for unlimited concurrent use.
type Backend struct {
	db *sql.DB

	// one degraded-table warning per entity per process
	missingLogged sync.Map
}

var _ store.Store = (*Backend)(nil)

// New creates a PostgreSQL-backed store. The backend does not own the
// connection lifecycle; the connection manager does.
func New(db *sql.DB) *Backend {
	return &Backend{db: db}
}

// wrap translates a driver error at the operation boundary into the contract
// taxonomy: undefined_table becomes NotProvisionedError, connectivity loss
// becomes ErrUnavailable, anything else is wrapped with operation context.
func (b *Backend) wrap(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 42P01 undefined_table: the entity was never provisioned here.
		if pqErr.Code == "42P01" {
			b.logMissingOnce(entity)
			return &store.NotProvisionedError{Entity: entity}
		}
		// Class 08: connection exceptions.
		if pqErr.Code.Class() == "08" {
			logger.Error("postgres connection lost", "op", op, "cause", pqErr.Message)
			return fmt.Errorf("%s: %w", op, store.ErrUnavailable)
		}
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		logger.Error("postgres unreachable", "op", op, "cause", err)
		return fmt.Errorf("%s: %w", op, store.ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// listDegrade converts a not-provisioned list failure into the contract's
// empty-result behavior. Returns (handled, err): when handled the caller
// returns its empty slice and a nil error.
func (b *Backend) listDegrade(op, entity string, err error) (bool, error) {
	werr := b.wrap(op, entity, err)
	if store.IsNotProvisioned(werr) {
		return true, nil
	}
	return false, werr
}

func (b *Backend) logMissingOnce(entity string) {
	if _, seen := b.missingLogged.LoadOrStore(entity, struct{}{}); !seen {
		logger.Warn("entity table not provisioned, operations degrade", "entity", entity)
	}
}

func now() time.Time { return time.Now().UTC() }

// marshalMap serializes a free-form string map for a jsonb column. A nil map
// stores as the empty object so scans never see SQL NULL.
func marshalMap(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func unmarshalMap(raw []byte) (map[string]string, error) {
	m := map[string]string{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// execer abstracts *sql.DB and *sql.Tx for existence checks.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func tableExists(ctx context.Context, q execer, table string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		table).Scan(&exists)
	return exists, err
}

// deleteWhere runs an idempotent delete: absence of the row still reports
// success, per the contract.
func (b *Backend) deleteWhere(ctx context.Context, op, entity, query string, args ...interface{}) (bool, error) {
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		werr := b.wrap(op, entity, err)
		if store.IsNotProvisioned(werr) {
			return true, nil
		}
		return false, werr
	}
	return true, nil
}
