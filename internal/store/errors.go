package store

import (
	"errors"
	"fmt"
)

// ErrUnavailable indicates connectivity was lost after the backend reached
// Ready. It is surfaced to the caller, who decides whether to retry or show
// a degraded-mode message; backends never retry on their own.
var ErrUnavailable = errors.New("storage backend unavailable")

// ErrCrossTenantReference is returned when a create references an entity
// that exists but belongs to a different organization.
var ErrCrossTenantReference = errors.New("referenced entity belongs to a different organization")

// NotProvisionedError indicates an entity type the contract recognizes but
// whose table/collection does not exist in the active backend, which happens
// on freshly bootstrapped local instances for entities added after the
// initial schema. Callers can present "feature not provisioned" instead of a
// generic failure.
type NotProvisionedError struct {
	Entity string
}

func (e *NotProvisionedError) Error() string {
	return fmt.Sprintf("entity %q is not provisioned in the active backend", e.Entity)
}

// IsNotProvisioned reports whether err is a NotProvisionedError.
func IsNotProvisioned(err error) bool {
	var npe *NotProvisionedError
	return errors.As(err, &npe)
}

// IsUnavailable reports whether err wraps ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
