package domain

import (
	"errors"
	"strings"
	"time"
)

// SMTPProfile holds outbound mail server credentials for a tenant.
type SMTPProfile struct {
	ID               string    `json:"id"`
	OrganizationID   string    `json:"organizationId"`
	Name             string    `json:"name"`
	Host             string    `json:"host"`
	Port             int       `json:"port"`
	Username         string    `json:"username"`
	Password         string    `json:"-"`
	FromAddress      string    `json:"fromAddress"`
	IgnoreCertErrors bool      `json:"ignoreCertErrors"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Validate checks required fields before a create.
func (p *SMTPProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("smtp profile name is required")
	}
	if strings.TrimSpace(p.Host) == "" {
		return errors.New("smtp profile host is required")
	}
	if !ValidEmail(p.FromAddress) {
		return errors.New("smtp profile from address is invalid")
	}
	if p.OrganizationID == "" {
		return errors.New("smtp profile organization reference is required")
	}
	return nil
}

// EmailTemplate is the message payload a campaign sends.
type EmailTemplate struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	CreatedBy      string    `json:"createdBy"`
	Name           string    `json:"name"`
	Subject        string    `json:"subject"`
	HTML           string    `json:"html"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Validate checks required fields before a create.
func (t *EmailTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("template name is required")
	}
	if t.HTML == "" && t.Text == "" {
		return errors.New("template needs an html or text body")
	}
	if t.OrganizationID == "" {
		return errors.New("template organization reference is required")
	}
	return nil
}

// LandingPage is the markup served when a target clicks through, plus
// capture behavior flags.
type LandingPage struct {
	ID                 string    `json:"id"`
	OrganizationID     string    `json:"organizationId"`
	CreatedBy          string    `json:"createdBy"`
	Name               string    `json:"name"`
	HTML               string    `json:"html"`
	SourceURL          string    `json:"sourceUrl"`
	CaptureCredentials bool      `json:"captureCredentials"`
	CapturePasswords   bool      `json:"capturePasswords"`
	RedirectURL        string    `json:"redirectUrl"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Validate checks required fields before a create. Password capture without
// credential capture is rejected rather than silently implied.
func (p *LandingPage) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("landing page name is required")
	}
	if p.HTML == "" {
		return errors.New("landing page html is required")
	}
	if p.CapturePasswords && !p.CaptureCredentials {
		return errors.New("password capture requires credential capture")
	}
	if p.OrganizationID == "" {
		return errors.New("landing page organization reference is required")
	}
	return nil
}
