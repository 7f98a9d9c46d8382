package dynamo

import (
	"time"

	"github.com/driftsec/phishdeck/internal/domain"
)

// Item shapes stored in the table, one per entity. Attribute names match
// the relational backend's column names so the two backends stay mutually
// legible; the attributeNames tables below pin the translation down and are
// verified against the canonical field set by the mapping tests.

type orgItem struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	ID        string    `dynamodbav:"id"`
	Name      string    `dynamodbav:"name"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

func newOrgItem(o domain.Organization) orgItem {
	return orgItem{
		PK:        orgPartition,
		SK:        skOrgPrefix + o.ID,
		ID:        o.ID,
		Name:      o.Name,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func (i orgItem) organization() domain.Organization {
	return domain.Organization{
		ID:        i.ID,
		Name:      i.Name,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

type userItem struct {
	PK             string     `dynamodbav:"PK"`
	SK             string     `dynamodbav:"SK"`
	ID             string     `dynamodbav:"id"`
	OrganizationID string     `dynamodbav:"organization_id"`
	OrgName        string     `dynamodbav:"org_name"`
	Email          string     `dynamodbav:"email"`
	PasswordHash   string     `dynamodbav:"password_hash"`
	FirstName      string     `dynamodbav:"first_name"`
	LastName       string     `dynamodbav:"last_name"`
	IsAdmin        bool       `dynamodbav:"is_admin"`
	FailedLogins   int        `dynamodbav:"failed_logins"`
	AccountLocked  bool       `dynamodbav:"account_locked"`
	LockedUntil    *time.Time `dynamodbav:"locked_until,omitempty"`
	CreatedAt      time.Time  `dynamodbav:"created_at"`
	UpdatedAt      time.Time  `dynamodbav:"updated_at"`
}

func newUserItem(u domain.User) userItem {
	return userItem{
		PK:             userPartition,
		SK:             skUserPrefix + u.ID,
		ID:             u.ID,
		OrganizationID: u.OrganizationID,
		OrgName:        u.OrgName,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		IsAdmin:        u.IsAdmin,
		FailedLogins:   u.FailedLogins,
		AccountLocked:  u.AccountLocked,
		LockedUntil:    u.LockedUntil,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (i userItem) user() domain.User {
	return domain.User{
		ID:             i.ID,
		OrganizationID: i.OrganizationID,
		OrgName:        i.OrgName,
		Email:          i.Email,
		PasswordHash:   i.PasswordHash,
		FirstName:      i.FirstName,
		LastName:       i.LastName,
		IsAdmin:        i.IsAdmin,
		FailedLogins:   i.FailedLogins,
		AccountLocked:  i.AccountLocked,
		LockedUntil:    i.LockedUntil,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

type groupItem struct {
	PK             string    `dynamodbav:"PK"`
	SK             string    `dynamodbav:"SK"`
	ID             string    `dynamodbav:"id"`
	OrganizationID string    `dynamodbav:"organization_id"`
	Name           string    `dynamodbav:"name"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
}

func newGroupItem(g domain.Group) groupItem {
	return groupItem{
		PK:             tenantPK(g.OrganizationID),
		SK:             skGroupPrefix + g.ID,
		ID:             g.ID,
		OrganizationID: g.OrganizationID,
		Name:           g.Name,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
}

func (i groupItem) group() domain.Group {
	return domain.Group{
		ID:             i.ID,
		OrganizationID: i.OrganizationID,
		Name:           i.Name,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

type targetItem struct {
	PK             string            `dynamodbav:"PK"`
	SK             string            `dynamodbav:"SK"`
	ID             string            `dynamodbav:"id"`
	OrganizationID string            `dynamodbav:"organization_id"`
	GroupID        string            `dynamodbav:"group_id"`
	Email          string            `dynamodbav:"email"`
	FirstName      string            `dynamodbav:"first_name"`
	LastName       string            `dynamodbav:"last_name"`
	Position       string            `dynamodbav:"position"`
	Extras         map[string]string `dynamodbav:"extras,omitempty"`
	CreatedAt      time.Time         `dynamodbav:"created_at"`
	UpdatedAt      time.Time         `dynamodbav:"updated_at"`
}

func newTargetItem(t domain.Target) targetItem {
	return targetItem{
		PK:             tenantPK(t.OrganizationID),
		SK:             skTargetPrefix + t.ID,
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		GroupID:        t.GroupID,
		Email:          t.Email,
		FirstName:      t.FirstName,
		LastName:       t.LastName,
		Position:       t.Position,
		Extras:         t.Extras,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (i targetItem) target() domain.Target {
	extras := i.Extras
	if extras == nil {
		extras = map[string]string{}
	}
	return domain.Target{
		ID:             i.ID,
		OrganizationID: i.OrganizationID,
		GroupID:        i.GroupID,
		Email:          i.Email,
		FirstName:      i.FirstName,
		LastName:       i.LastName,
		Position:       i.Position,
		Extras:         extras,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

type smtpItem struct {
	PK               string    `dynamodbav:"PK"`
	SK               string    `dynamodbav:"SK"`
	ID               string    `dynamodbav:"id"`
	OrganizationID   string    `dynamodbav:"organization_id"`
	Name             string    `dynamodbav:"name"`
	Host             string    `dynamodbav:"host"`
	Port             int       `dynamodbav:"port"`
	Username         string    `dynamodbav:"username"`
	Password         string    `dynamodbav:"password"`
	FromAddress      string    `dynamodbav:"from_address"`
	IgnoreCertErrors bool      `dynamodbav:"ignore_cert_errors"`
	CreatedAt        time.Time `dynamodbav:"created_at"`
	UpdatedAt        time.Time `dynamodbav:"updated_at"`
}

func newSMTPItem(p domain.SMTPProfile) smtpItem {
	return smtpItem{
		PK:               tenantPK(p.OrganizationID),
		SK:               skSMTPPrefix + p.ID,
		ID:               p.ID,
		OrganizationID:   p.OrganizationID,
		Name:             p.Name,
		Host:             p.Host,
		Port:             p.Port,
		Username:         p.Username,
		Password:         p.Password,
		FromAddress:      p.FromAddress,
		IgnoreCertErrors: p.IgnoreCertErrors,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (i smtpItem) profile() domain.SMTPProfile {
	return domain.SMTPProfile{
		ID:               i.ID,
		OrganizationID:   i.OrganizationID,
		Name:             i.Name,
		Host:             i.Host,
		Port:             i.Port,
		Username:         i.Username,
		Password:         i.Password,
		FromAddress:      i.FromAddress,
		IgnoreCertErrors: i.IgnoreCertErrors,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
}

type templateItem struct {
	PK             string    `dynamodbav:"PK"`
	SK             string    `dynamodbav:"SK"`
	ID             string    `dynamodbav:"id"`
	OrganizationID string    `dynamodbav:"organization_id"`
	CreatedBy      string    `dynamodbav:"created_by"`
	Name           string    `dynamodbav:"name"`
	Subject        string    `dynamodbav:"subject"`
	HTML           string    `dynamodbav:"html"`
	Text           string    `dynamodbav:"text"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
}

func newTemplateItem(t domain.EmailTemplate) templateItem {
	return templateItem{
		PK:             tenantPK(t.OrganizationID),
		SK:             skTmplPrefix + t.ID,
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		CreatedBy:      t.CreatedBy,
		Name:           t.Name,
		Subject:        t.Subject,
		HTML:           t.HTML,
		Text:           t.Text,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (i templateItem) template() domain.EmailTemplate {
	return domain.EmailTemplate{
		ID:             i.ID,
		OrganizationID: i.OrganizationID,
		CreatedBy:      i.CreatedBy,
		Name:           i.Name,
		Subject:        i.Subject,
		HTML:           i.HTML,
		Text:           i.Text,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

type pageItem struct {
	PK                 string    `dynamodbav:"PK"`
	SK                 string    `dynamodbav:"SK"`
	ID                 string    `dynamodbav:"id"`
	OrganizationID     string    `dynamodbav:"organization_id"`
	CreatedBy          string    `dynamodbav:"created_by"`
	Name               string    `dynamodbav:"name"`
	HTML               string    `dynamodbav:"html"`
	SourceURL          string    `dynamodbav:"source_url"`
	CaptureCredentials bool      `dynamodbav:"capture_credentials"`
	CapturePasswords   bool      `dynamodbav:"capture_passwords"`
	RedirectURL        string    `dynamodbav:"redirect_url"`
	CreatedAt          time.Time `dynamodbav:"created_at"`
	UpdatedAt          time.Time `dynamodbav:"updated_at"`
}

func newPageItem(p domain.LandingPage) pageItem {
	return pageItem{
		PK:                 tenantPK(p.OrganizationID),
		SK:                 skPagePrefix + p.ID,
		ID:                 p.ID,
		OrganizationID:     p.OrganizationID,
		CreatedBy:          p.CreatedBy,
		Name:               p.Name,
		HTML:               p.HTML,
		SourceURL:          p.SourceURL,
		CaptureCredentials: p.CaptureCredentials,
		CapturePasswords:   p.CapturePasswords,
		RedirectURL:        p.RedirectURL,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (i pageItem) page() domain.LandingPage {
	return domain.LandingPage{
		ID:                 i.ID,
		OrganizationID:     i.OrganizationID,
		CreatedBy:          i.CreatedBy,
		Name:               i.Name,
		HTML:               i.HTML,
		SourceURL:          i.SourceURL,
		CaptureCredentials: i.CaptureCredentials,
		CapturePasswords:   i.CapturePasswords,
		RedirectURL:        i.RedirectURL,
		CreatedAt:          i.CreatedAt,
		UpdatedAt:          i.UpdatedAt,
	}
}

type campaignItem struct {
	PK             string     `dynamodbav:"PK"`
	SK             string     `dynamodbav:"SK"`
	ID             string     `dynamodbav:"id"`
	OrganizationID string     `dynamodbav:"organization_id"`
	CreatedBy      string     `dynamodbav:"created_by"`
	Name           string     `dynamodbav:"name"`
	Status         string     `dynamodbav:"status"`
	GroupID        string     `dynamodbav:"group_id"`
	TemplateID     string     `dynamodbav:"template_id"`
	PageID         string     `dynamodbav:"page_id"`
	SMTPProfileID  string     `dynamodbav:"smtp_profile_id"`
	URL            string     `dynamodbav:"url"`
	LaunchDate     *time.Time `dynamodbav:"launch_date,omitempty"`
	CompletedAt    *time.Time `dynamodbav:"completed_at,omitempty"`
	CreatedAt      time.Time  `dynamodbav:"created_at"`
	UpdatedAt      time.Time  `dynamodbav:"updated_at"`
}

func newCampaignItem(c domain.Campaign) campaignItem {
	return campaignItem{
		PK:             tenantPK(c.OrganizationID),
		SK:             skCampPrefix + c.ID,
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		CreatedBy:      c.CreatedBy,
		Name:           c.Name,
		Status:         string(c.Status),
		GroupID:        c.GroupID,
		TemplateID:     c.TemplateID,
		PageID:         c.PageID,
		SMTPProfileID:  c.SMTPProfileID,
		URL:            c.URL,
		LaunchDate:     c.LaunchDate,
		CompletedAt:    c.CompletedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (i campaignItem) campaign() domain.Campaign {
	return domain.Campaign{
		ID:             i.ID,
		OrganizationID: i.OrganizationID,
		CreatedBy:      i.CreatedBy,
		Name:           i.Name,
		Status:         domain.CampaignStatus(i.Status),
		GroupID:        i.GroupID,
		TemplateID:     i.TemplateID,
		PageID:         i.PageID,
		SMTPProfileID:  i.SMTPProfileID,
		URL:            i.URL,
		LaunchDate:     i.LaunchDate,
		CompletedAt:    i.CompletedAt,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

type resultItem struct {
	PK             string            `dynamodbav:"PK"`
	SK             string            `dynamodbav:"SK"`
	ID             string            `dynamodbav:"id"`
	OrganizationID string            `dynamodbav:"organization_id"`
	CampaignID     string            `dynamodbav:"campaign_id"`
	TargetID       string            `dynamodbav:"target_id"`
	Email          string            `dynamodbav:"email"`
	Sent           bool              `dynamodbav:"sent"`
	SentAt         *time.Time        `dynamodbav:"sent_at,omitempty"`
	Opened         bool              `dynamodbav:"opened"`
	OpenedAt       *time.Time        `dynamodbav:"opened_at,omitempty"`
	Clicked        bool              `dynamodbav:"clicked"`
	ClickedAt      *time.Time        `dynamodbav:"clicked_at,omitempty"`
	Submitted      bool              `dynamodbav:"submitted"`
	SubmittedAt    *time.Time        `dynamodbav:"submitted_at,omitempty"`
	SubmittedData  map[string]string `dynamodbav:"submitted_data,omitempty"`
	CreatedAt      time.Time         `dynamodbav:"created_at"`
	UpdatedAt      time.Time         `dynamodbav:"updated_at"`
}

func newResultItem(r domain.CampaignResult) resultItem {
	return resultItem{
		PK:             tenantPK(r.OrganizationID),
		SK:             skResultPrefix + r.ID,
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		CampaignID:     r.CampaignID,
		TargetID:       r.TargetID,
		Email:          r.Email,
		Sent:           r.Sent,
		SentAt:         r.SentAt,
		Opened:         r.Opened,
		OpenedAt:       r.OpenedAt,
		Clicked:        r.Clicked,
		ClickedAt:      r.ClickedAt,
		Submitted:      r.Submitted,
		SubmittedAt:    r.SubmittedAt,
		SubmittedData:  r.SubmittedData,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (i resultItem) result() domain.CampaignResult {
	return domain.CampaignResult{
		ID:             i.ID,
		OrganizationID: i.OrganizationID,
		CampaignID:     i.CampaignID,
		TargetID:       i.TargetID,
		Email:          i.Email,
		Sent:           i.Sent,
		SentAt:         i.SentAt,
		Opened:         i.Opened,
		OpenedAt:       i.OpenedAt,
		Clicked:        i.Clicked,
		ClickedAt:      i.ClickedAt,
		Submitted:      i.Submitted,
		SubmittedAt:    i.SubmittedAt,
		SubmittedData:  i.SubmittedData,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

type tokenItem struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	ID        string    `dynamodbav:"id"`
	UserID    string    `dynamodbav:"user_id"`
	Token     string    `dynamodbav:"token"`
	ExpiresAt time.Time `dynamodbav:"expires_at"`
	Used      bool      `dynamodbav:"used"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

func newTokenItem(t domain.PasswordResetToken) tokenItem {
	return tokenItem{
		PK:        tokenPartition,
		SK:        skTokenPrefix + t.ID,
		ID:        t.ID,
		UserID:    t.UserID,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		Used:      t.Used,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (i tokenItem) token() domain.PasswordResetToken {
	return domain.PasswordResetToken{
		ID:        i.ID,
		UserID:    i.UserID,
		Token:     i.Token,
		ExpiresAt: i.ExpiresAt,
		Used:      i.Used,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// attributeNames records, per entity, the translation from canonical field
// names to stored attribute names. An empty value marks a canonical field
// that is computed at read time rather than stored. The mapping tests hold
// these tables bijective against the canonical field set so a new domain
// field cannot silently go unpersisted here.
var attributeNames = map[string]map[string]string{
	entityOrganization: {
		"id": "id", "name": "name",
		"createdAt": "created_at", "updatedAt": "updated_at",
	},
	entityUser: {
		"id": "id", "organizationId": "organization_id", "orgName": "org_name",
		"email": "email", "firstName": "first_name", "lastName": "last_name",
		"isAdmin": "is_admin", "failedLogins": "failed_logins",
		"accountLocked": "account_locked", "lockedUntil": "locked_until",
		"createdAt": "created_at", "updatedAt": "updated_at",
	},
	entityGroup: {
		"id": "id", "organizationId": "organization_id", "name": "name",
		"createdAt": "created_at", "updatedAt": "updated_at",
		"targetCount": "",
	},
	entityTarget: {
		"id": "id", "organizationId": "organization_id", "groupId": "group_id",
		"email": "email", "firstName": "first_name", "lastName": "last_name",
		"position": "position", "extras": "extras",
		"createdAt": "created_at", "updatedAt": "updated_at",
	},
	entitySMTPProfile: {
		"id": "id", "organizationId": "organization_id", "name": "name",
		"host": "host", "port": "port", "username": "username",
		"fromAddress": "from_address", "ignoreCertErrors": "ignore_cert_errors",
		"createdAt": "created_at", "updatedAt": "updated_at",
	},
	entityTemplate: {
		"id": "id", "organizationId": "organization_id", "createdBy": "created_by",
		"name": "name", "subject": "subject", "html": "html", "text": "text",
		"createdAt": "created_at", "updatedAt": "updated_at",
	},
	entityPage: {
		"id": "id", "organizationId": "organization_id", "createdBy": "created_by",
		"name": "name", "html": "html", "sourceUrl": "source_url",
		"captureCredentials": "capture_credentials", "capturePasswords": "capture_passwords",
		"redirectUrl": "redirect_url",
		"createdAt": "created_at", "updatedAt": "updated_at",
	},
	entityCampaign: {
		"id": "id", "organizationId": "organization_id", "createdBy": "created_by",
		"name": "name", "status": "status", "groupId": "group_id",
		"templateId": "template_id", "pageId": "page_id",
		"smtpProfileId": "smtp_profile_id", "url": "url",
		"launchDate": "launch_date", "completedAt": "completed_at",
		"createdAt": "created_at", "updatedAt": "updated_at",
	},
	entityResult: {
		"id": "id", "organizationId": "organization_id", "campaignId": "campaign_id",
		"targetId": "target_id", "email": "email",
		"sent": "sent", "sentAt": "sent_at",
		"opened": "opened", "openedAt": "opened_at",
		"clicked": "clicked", "clickedAt": "clicked_at",
		"submitted": "submitted", "submittedAt": "submitted_at",
		"submittedData": "submitted_data",
		"createdAt": "created_at", "updatedAt": "updated_at",
	},
	entityResetToken: {
		"id": "id", "userId": "user_id", "token": "token",
		"expiresAt": "expires_at", "used": "used",
		"createdAt": "created_at", "updatedAt": "updated_at",
	},
}
