// Package store defines the backend-agnostic storage contract for the
// PhishDeck persistence core. Both the relational (postgres) and document
// (dynamo) backends implement Store verbatim; application code only ever
// holds this interface, obtained from the connection manager.
package store

import (
	"context"
	"time"

	"github.com/driftsec/phishdeck/internal/domain"
)

// Store is the full set of entity operations application logic may call.
//
// Contract guarantees binding on every backend:
//   - Get on a missing id returns (nil, nil), never an error.
//   - Create stamps the server-assigned id plus createdAt/updatedAt in place.
//   - Update applies all supplied fields together, bumps updatedAt, and
//     returns the post-update record; (nil, nil) if the id does not exist.
//   - Delete is idempotent: deleting a nonexistent id returns (true, nil).
//   - List for a tenant with zero matching rows returns an empty slice.
//   - Entities whose table/collection is absent degrade per errors.go:
//     list logs once and returns empty, create returns a
//     NotProvisionedError.
//
// Tenant scoping: every orgID-taking operation filters by that organization
// and may not return rows belonging to another, regardless of what the
// underlying query could produce.
type Store interface {
	// Organizations (not tenant-scoped; they are the tenants).
	GetOrganization(ctx context.Context, id string) (*domain.Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (*domain.Organization, error)
	ListOrganizations(ctx context.Context) ([]domain.Organization, error)
	CreateOrganization(ctx context.Context, o *domain.Organization) error
	UpdateOrganization(ctx context.Context, id string, u OrganizationUpdate) (*domain.Organization, error)
	DeleteOrganization(ctx context.Context, id string) (bool, error)

	// Users. Email lookup is global because emails are unique across tenants.
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context, orgID string) ([]domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, id string, u UserUpdate) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) (bool, error)

	// Groups and their targets.
	GetGroup(ctx context.Context, orgID, id string) (*domain.Group, error)
	ListGroups(ctx context.Context, orgID string) ([]domain.Group, error)
	CreateGroup(ctx context.Context, g *domain.Group) error
	UpdateGroup(ctx context.Context, orgID, id string, u GroupUpdate) (*domain.Group, error)
	DeleteGroup(ctx context.Context, orgID, id string) (bool, error)

	GetTarget(ctx context.Context, orgID, id string) (*domain.Target, error)
	ListTargets(ctx context.Context, orgID, groupID string) ([]domain.Target, error)
	CreateTarget(ctx context.Context, t *domain.Target) error
	UpdateTarget(ctx context.Context, orgID, id string, u TargetUpdate) (*domain.Target, error)
	DeleteTarget(ctx context.Context, orgID, id string) (bool, error)

	// SMTP sending profiles.
	GetSMTPProfile(ctx context.Context, orgID, id string) (*domain.SMTPProfile, error)
	ListSMTPProfiles(ctx context.Context, orgID string) ([]domain.SMTPProfile, error)
	CreateSMTPProfile(ctx context.Context, p *domain.SMTPProfile) error
	UpdateSMTPProfile(ctx context.Context, orgID, id string, u SMTPProfileUpdate) (*domain.SMTPProfile, error)
	DeleteSMTPProfile(ctx context.Context, orgID, id string) (bool, error)

	// Email templates.
	GetTemplate(ctx context.Context, orgID, id string) (*domain.EmailTemplate, error)
	ListTemplates(ctx context.Context, orgID string) ([]domain.EmailTemplate, error)
	CreateTemplate(ctx context.Context, t *domain.EmailTemplate) error
	UpdateTemplate(ctx context.Context, orgID, id string, u TemplateUpdate) (*domain.EmailTemplate, error)
	DeleteTemplate(ctx context.Context, orgID, id string) (bool, error)

	// Landing pages.
	GetPage(ctx context.Context, orgID, id string) (*domain.LandingPage, error)
	ListPages(ctx context.Context, orgID string) ([]domain.LandingPage, error)
	CreatePage(ctx context.Context, p *domain.LandingPage) error
	UpdatePage(ctx context.Context, orgID, id string, u PageUpdate) (*domain.LandingPage, error)
	DeletePage(ctx context.Context, orgID, id string) (bool, error)

	// Campaigns. Create validates that the referenced group, template, page
	// and profile all belong to the campaign's organization.
	GetCampaign(ctx context.Context, orgID, id string) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context, orgID string) ([]domain.Campaign, error)
	CreateCampaign(ctx context.Context, c *domain.Campaign) error
	UpdateCampaign(ctx context.Context, orgID, id string, u CampaignUpdate) (*domain.Campaign, error)
	DeleteCampaign(ctx context.Context, orgID, id string) (bool, error)

	// Campaign results.
	GetResult(ctx context.Context, orgID, id string) (*domain.CampaignResult, error)
	ResultsForCampaign(ctx context.Context, orgID, campaignID string) ([]domain.CampaignResult, error)
	CreateResult(ctx context.Context, r *domain.CampaignResult) error
	UpdateResult(ctx context.Context, orgID, id string, u ResultUpdate) (*domain.CampaignResult, error)
	DeleteResult(ctx context.Context, orgID, id string) (bool, error)

	// Password reset tokens, scoped via their owning user.
	GetResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	ListResetTokens(ctx context.Context, userID string) ([]domain.PasswordResetToken, error)
	CreateResetToken(ctx context.Context, t *domain.PasswordResetToken) error
	ConsumeResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	DeleteResetToken(ctx context.Context, id string) (bool, error)

	// Cross-entity aggregates.
	DashboardStats(ctx context.Context, orgID string) (*DashboardStats, error)
}

// OrganizationUpdate carries the updatable organization fields. Nil means
// "leave unchanged"; the same convention applies to every update struct.
type OrganizationUpdate struct {
	Name *string
}

// UserUpdate carries the updatable user fields. Setting AccountLocked to
// false also clears LockedUntil and FailedLogins.
type UserUpdate struct {
	Email         *string
	PasswordHash  *string
	FirstName     *string
	LastName      *string
	IsAdmin       *bool
	FailedLogins  *int
	AccountLocked *bool
	LockedUntil   *time.Time
	OrgName       *string
}

// GroupUpdate carries the updatable group fields.
type GroupUpdate struct {
	Name *string
}

// TargetUpdate carries the updatable target fields.
type TargetUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
	Position  *string
	Extras    map[string]string
}

// SMTPProfileUpdate carries the updatable SMTP profile fields.
type SMTPProfileUpdate struct {
	Name             *string
	Host             *string
	Port             *int
	Username         *string
	Password         *string
	FromAddress      *string
	IgnoreCertErrors *bool
}

// TemplateUpdate carries the updatable template fields.
type TemplateUpdate struct {
	Name    *string
	Subject *string
	HTML    *string
	Text    *string
}

// PageUpdate carries the updatable landing page fields.
type PageUpdate struct {
	Name               *string
	HTML               *string
	SourceURL          *string
	CaptureCredentials *bool
	CapturePasswords   *bool
	RedirectURL        *string
}

// CampaignUpdate carries the updatable campaign fields. Status changes must
// already have passed domain.ValidTransition at the caller's boundary.
type CampaignUpdate struct {
	Name        *string
	Status      *domain.CampaignStatus
	URL         *string
	LaunchDate  *time.Time
	CompletedAt *time.Time
}

// ResultUpdate carries the updatable result fields. Stage flags are stored
// as given; monotonicity is enforced by domain.CampaignResult.AdvanceStage
// at the boundary, not here.
type ResultUpdate struct {
	Sent          *bool
	SentAt        *time.Time
	Opened        *bool
	OpenedAt      *time.Time
	Clicked       *bool
	ClickedAt     *time.Time
	Submitted     *bool
	SubmittedAt   *time.Time
	SubmittedData map[string]string
}

// DashboardStats is the aggregate snapshot behind the tenant dashboard.
type DashboardStats struct {
	Users          int                           `json:"users"`
	Admins         int                           `json:"admins"`
	Groups         int                           `json:"groups"`
	Targets        int                           `json:"targets"`
	Campaigns      map[domain.CampaignStatus]int `json:"campaigns"`
	EmailsSent     int                           `json:"emailsSent"`
	EmailsOpened   int                           `json:"emailsOpened"`
	LinksClicked   int                           `json:"linksClicked"`
	DataSubmitted  int                           `json:"dataSubmitted"`
	OpenRate       float64                       `json:"openRate"`
	ClickRate      float64                       `json:"clickRate"`
	SubmissionRate float64                       `json:"submissionRate"`
}

// ComputeRates fills the percentage fields from the raw counters.
func (s *DashboardStats) ComputeRates() {
	if s.EmailsSent == 0 {
		return
	}
	s.OpenRate = float64(s.EmailsOpened) / float64(s.EmailsSent) * 100
	s.ClickRate = float64(s.LinksClicked) / float64(s.EmailsSent) * 100
	s.SubmissionRate = float64(s.DataSubmitted) / float64(s.EmailsSent) * 100
}
