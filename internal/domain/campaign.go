package domain

import (
	"errors"
	"fmt"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignQueued     CampaignStatus = "queued"
	CampaignInProgress CampaignStatus = "in_progress"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignCancelled  CampaignStatus = "cancelled"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignQueued:     {CampaignInProgress, CampaignCancelled},
	CampaignInProgress: {CampaignCompleted, CampaignCancelled},
}

// ValidTransition reports whether a campaign may move from one status to
// another. Terminal states have no outgoing edges.
func ValidTransition(from, to CampaignStatus) bool {
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Campaign ties a recipient group, an email template, a landing page and an
// SMTP profile together. All four references must belong to the campaign's
// organization; the storage layer rejects cross-tenant linkage at create.
type Campaign struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	CreatedBy      string         `json:"createdBy"`
	Name           string         `json:"name"`
	Status         CampaignStatus `json:"status"`
	GroupID        string         `json:"groupId"`
	TemplateID     string         `json:"templateId"`
	PageID         string         `json:"pageId"`
	SMTPProfileID  string         `json:"smtpProfileId"`
	URL            string         `json:"url"`
	LaunchDate     *time.Time     `json:"launchDate,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignCancelled
}

// Validate checks required fields and references before a create.
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return errors.New("campaign name is required")
	}
	if c.OrganizationID == "" {
		return errors.New("campaign organization reference is required")
	}
	if c.GroupID == "" || c.TemplateID == "" || c.PageID == "" || c.SMTPProfileID == "" {
		return errors.New("campaign requires group, template, page and smtp profile references")
	}
	return nil
}

// ResultStage identifies one step of the per-target interaction funnel.
type ResultStage string

const (
	StageSent      ResultStage = "sent"
	StageOpened    ResultStage = "opened"
	StageClicked   ResultStage = "clicked"
	StageSubmitted ResultStage = "submitted"
)

// CampaignResult records one (campaign, target) interaction. The four stage
// booleans advance monotonically: submitted implies clicked implies opened
// implies sent. Backends store whatever they are given; AdvanceStage is the
// boundary check.
type CampaignResult struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organizationId"`
	CampaignID     string            `json:"campaignId"`
	TargetID       string            `json:"targetId"`
	Email          string            `json:"email"`
	Sent           bool              `json:"sent"`
	SentAt         *time.Time        `json:"sentAt,omitempty"`
	Opened         bool              `json:"opened"`
	OpenedAt       *time.Time        `json:"openedAt,omitempty"`
	Clicked        bool              `json:"clicked"`
	ClickedAt      *time.Time        `json:"clickedAt,omitempty"`
	Submitted      bool              `json:"submitted"`
	SubmittedAt    *time.Time        `json:"submittedAt,omitempty"`
	SubmittedData  map[string]string `json:"submittedData,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// AdvanceStage sets the given stage flag and timestamp, rejecting any
// advance whose earlier stages are not already true. Re-applying a stage
// that is already set is a no-op (repeat opens and clicks are common).
func (r *CampaignResult) AdvanceStage(stage ResultStage, now time.Time) error {
	switch stage {
	case StageSent:
		if !r.Sent {
			r.Sent = true
			r.SentAt = &now
		}
	case StageOpened:
		if !r.Sent {
			return fmt.Errorf("cannot mark opened: result %s not sent", r.ID)
		}
		if !r.Opened {
			r.Opened = true
			r.OpenedAt = &now
		}
	case StageClicked:
		if !r.Opened {
			return fmt.Errorf("cannot mark clicked: result %s not opened", r.ID)
		}
		if !r.Clicked {
			r.Clicked = true
			r.ClickedAt = &now
		}
	case StageSubmitted:
		if !r.Clicked {
			return fmt.Errorf("cannot mark submitted: result %s not clicked", r.ID)
		}
		if !r.Submitted {
			r.Submitted = true
			r.SubmittedAt = &now
		}
	default:
		return fmt.Errorf("unknown result stage %q", stage)
	}
	return nil
}
