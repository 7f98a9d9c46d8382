package domain

import (
	"errors"
	"strings"
	"time"
)

// Group is a named recipient bucket.
type Group struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// Read-only, populated by list queries.
	TargetCount int `json:"targetCount"`
}

// Validate checks required fields before a create.
func (g *Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("group name is required")
	}
	if g.OrganizationID == "" {
		return errors.New("group organization reference is required")
	}
	return nil
}

// Target is a campaign recipient. It belongs to exactly one group and one
// organization. Extras holds free-form merge fields (department, city, ...).
type Target struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organizationId"`
	GroupID        string            `json:"groupId"`
	Email          string            `json:"email"`
	FirstName      string            `json:"firstName"`
	LastName       string            `json:"lastName"`
	Position       string            `json:"position"`
	Extras         map[string]string `json:"extras,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Validate checks required fields before a create.
func (t *Target) Validate() error {
	if !ValidEmail(t.Email) {
		return errors.New("target email is invalid")
	}
	if t.GroupID == "" {
		return errors.New("target group reference is required")
	}
	if t.OrganizationID == "" {
		return errors.New("target organization reference is required")
	}
	return nil
}
