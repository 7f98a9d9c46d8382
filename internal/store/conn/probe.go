// Package conn owns the lifecycle of the active storage backend: probing
// the configured descriptors, bootstrapping the local fallback, and handing
// a single cached store.Store to every consumer. Nothing else in the
// process opens or closes backend connections.
package conn

import (
	"context"
	"database/sql"
	"time"

	"github.com/driftsec/phishdeck/internal/pkg/logger"
	"github.com/driftsec/phishdeck/internal/store/dynamo"
)

// probeTimeout bounds each reachability check. Probes decide routing, they
// must never hang the init path on a black-holed address.
const probeTimeout = 3 * time.Second

// Kind identifies which driver a descriptor speaks.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindDynamo   Kind = "dynamo"
)

// Descriptor is one probe-able connection target.
type Descriptor struct {
	Kind   Kind
	DSN    string         // postgres descriptors
	Dynamo dynamo.Options // dynamo descriptors
}

// Probe reports whether the descriptor answers a trivial round trip within
// the probe timeout. It never returns an error and always releases whatever
// it opened; outcomes are logged either way.
func Probe(ctx context.Context, d Descriptor) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var err error
	switch d.Kind {
	case KindDynamo:
		var b *dynamo.Backend
		if b, err = dynamo.Connect(ctx, d.Dynamo); err == nil {
			err = b.Ping(ctx)
		}
	default:
		var db *sql.DB
		if db, err = sql.Open("postgres", d.DSN); err == nil {
			err = db.PingContext(ctx)
			db.Close()
		}
	}

	if err != nil {
		logger.Warn("backend probe failed", "kind", string(d.Kind), "cause", err)
		return false
	}
	logger.Info("backend probe succeeded", "kind", string(d.Kind))
	return true
}
