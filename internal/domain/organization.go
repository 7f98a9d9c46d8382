package domain

import (
	"errors"
	"strings"
	"time"
)

// DefaultOrganizationName is the seed tenant created on a freshly
// bootstrapped local backend. Accounts registered without an organization
// land here rather than existing tenant-less.
const DefaultOrganizationName = "None"

// Organization is the multi-tenancy root. Every other entity except
// PasswordResetToken carries an organization reference.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks required fields before a create.
func (o *Organization) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return errors.New("organization name is required")
	}
	return nil
}

// User is an operator account. Email is globally unique across tenants.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	OrgName        string     `json:"orgName"` // denormalized copy, kept in sync on org rename
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	IsAdmin        bool       `json:"isAdmin"`
	FailedLogins   int        `json:"failedLogins"`
	AccountLocked  bool       `json:"accountLocked"`
	LockedUntil    *time.Time `json:"lockedUntil,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Validate checks required fields before a create.
func (u *User) Validate() error {
	if !ValidEmail(u.Email) {
		return errors.New("user email is invalid")
	}
	if u.OrganizationID == "" {
		return errors.New("user organization reference is required")
	}
	if u.PasswordHash == "" {
		return errors.New("user credential hash is required")
	}
	return nil
}

// ReconcileLockState clears an expired account lock. It is a pure function:
// the storage layer stays free of authentication policy, and callers persist
// the returned value if Changed is true.
func ReconcileLockState(u User, now time.Time) (User, bool) {
	if !u.AccountLocked {
		return u, false
	}
	if u.LockedUntil == nil || now.After(*u.LockedUntil) {
		u.AccountLocked = false
		u.LockedUntil = nil
		u.FailedLogins = 0
		return u, true
	}
	return u, false
}

// PasswordResetToken is single-use and scoped to its owning user, not to an
// organization.
type PasswordResetToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Usable reports whether the token can still redeem a reset.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}

// ValidEmail performs the minimal shape check used at create boundaries.
func ValidEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	local, dom := email[:at], email[at+1:]
	if len(local) > 64 || dom == "" {
		return false
	}
	dot := strings.LastIndex(dom, ".")
	return dot > 0 && dot < len(dom)-1
}
