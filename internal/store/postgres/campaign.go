package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

const campaignColumns = `id, organization_id, created_by, name, status, group_id, template_id,
	page_id, smtp_profile_id, url, launch_date, completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(&c.ID, &c.OrganizationID, &c.CreatedBy, &c.Name, &c.Status, &c.GroupID,
		&c.TemplateID, &c.PageID, &c.SMTPProfileID, &c.URL, &c.LaunchDate, &c.CompletedAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (b *Backend) GetCampaign(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND organization_id = $2`, id, orgID)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get campaign", entityCampaign, err)
	}
	return c, nil
}

func (b *Backend) ListCampaigns(ctx context.Context, orgID string) ([]domain.Campaign, error) {
	out := []domain.Campaign{}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		handled, werr := b.listDegrade("list campaigns", entityCampaign, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CreateCampaign validates that all four referenced entities exist inside
// the campaign's organization before any write (no cross-tenant linkage).
func (b *Backend) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	if err := c.Validate(); err != nil {
		return err
	}

	var groups, templates, pages, profiles int
	err := b.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM groups WHERE id = $1 AND organization_id = $5),
			(SELECT COUNT(*) FROM email_templates WHERE id = $2 AND organization_id = $5),
			(SELECT COUNT(*) FROM landing_pages WHERE id = $3 AND organization_id = $5),
			(SELECT COUNT(*) FROM smtp_profiles WHERE id = $4 AND organization_id = $5)`,
		c.GroupID, c.TemplateID, c.PageID, c.SMTPProfileID, c.OrganizationID).
		Scan(&groups, &templates, &pages, &profiles)
	if err != nil {
		return b.wrap("validate campaign references", entityCampaign, err)
	}
	if groups == 0 || templates == 0 || pages == 0 || profiles == 0 {
		return store.ErrCrossTenantReference
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domain.CampaignQueued
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, organization_id, created_by, name, status, group_id,
			template_id, page_id, smtp_profile_id, url, launch_date, completed_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.OrganizationID, c.CreatedBy, c.Name, c.Status, c.GroupID,
		c.TemplateID, c.PageID, c.SMTPProfileID, c.URL, c.LaunchDate, c.CompletedAt,
		c.CreatedAt, c.UpdatedAt)
	return b.wrap("create campaign", entityCampaign, err)
}

func (b *Backend) UpdateCampaign(ctx context.Context, orgID, id string, u store.CampaignUpdate) (*domain.Campaign, error) {
	sets := []string{}
	args := []interface{}{}
	idx := 1

	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.URL != nil {
		add("url", *u.URL)
	}
	if u.LaunchDate != nil {
		add("launch_date", *u.LaunchDate)
	}
	if u.CompletedAt != nil {
		add("completed_at", *u.CompletedAt)
	}

	if len(sets) == 0 {
		return b.GetCampaign(ctx, orgID, id)
	}

	add("updated_at", now())
	query := fmt.Sprintf(`UPDATE campaigns SET %s WHERE id = $%d AND organization_id = $%d`,
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, b.wrap("update campaign", entityCampaign, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return b.GetCampaign(ctx, orgID, id)
}

// DeleteCampaign removes the campaign and cascades to its results.
func (b *Backend) DeleteCampaign(ctx context.Context, orgID, id string) (bool, error) {
	if ok, err := b.deleteWhere(ctx, "delete campaign results", entityResult,
		`DELETE FROM campaign_results WHERE campaign_id = $1 AND organization_id = $2`, id, orgID); !ok {
		return false, err
	}
	return b.deleteWhere(ctx, "delete campaign", entityCampaign,
		`DELETE FROM campaigns WHERE id = $1 AND organization_id = $2`, id, orgID)
}

// Campaign results.

const resultColumns = `id, organization_id, campaign_id, target_id, email, sent, sent_at,
	opened, opened_at, clicked, clicked_at, submitted, submitted_at, submitted_data,
	created_at, updated_at`

func scanResult(row interface{ Scan(...interface{}) error }) (*domain.CampaignResult, error) {
	r := &domain.CampaignResult{}
	var data []byte
	err := row.Scan(&r.ID, &r.OrganizationID, &r.CampaignID, &r.TargetID, &r.Email,
		&r.Sent, &r.SentAt, &r.Opened, &r.OpenedAt, &r.Clicked, &r.ClickedAt,
		&r.Submitted, &r.SubmittedAt, &data, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if r.SubmittedData, err = unmarshalMap(data); err != nil {
		return nil, fmt.Errorf("decode submitted data: %w", err)
	}
	return r, nil
}

func (b *Backend) GetResult(ctx context.Context, orgID, id string) (*domain.CampaignResult, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM campaign_results WHERE id = $1 AND organization_id = $2`, id, orgID)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get result", entityResult, err)
	}
	return r, nil
}

func (b *Backend) ResultsForCampaign(ctx context.Context, orgID, campaignID string) ([]domain.CampaignResult, error) {
	out := []domain.CampaignResult{}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM campaign_results WHERE organization_id = $1 AND campaign_id = $2 ORDER BY email`,
		orgID, campaignID)
	if err != nil {
		handled, werr := b.listDegrade("list results", entityResult, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (b *Backend) CreateResult(ctx context.Context, r *domain.CampaignResult) error {
	if r.CampaignID == "" || r.TargetID == "" || r.OrganizationID == "" {
		return fmt.Errorf("result requires campaign, target and organization references")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	ts := now()
	r.CreatedAt, r.UpdatedAt = ts, ts

	data, err := marshalMap(r.SubmittedData)
	if err != nil {
		return fmt.Errorf("encode submitted data: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO campaign_results (id, organization_id, campaign_id, target_id, email,
			sent, sent_at, opened, opened_at, clicked, clicked_at, submitted, submitted_at,
			submitted_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.OrganizationID, r.CampaignID, r.TargetID, r.Email,
		r.Sent, r.SentAt, r.Opened, r.OpenedAt, r.Clicked, r.ClickedAt,
		r.Submitted, r.SubmittedAt, data, r.CreatedAt, r.UpdatedAt)
	return b.wrap("create result", entityResult, err)
}

func (b *Backend) UpdateResult(ctx context.Context, orgID, id string, u store.ResultUpdate) (*domain.CampaignResult, error) {
	sets := []string{}
	args := []interface{}{}
	idx := 1

	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Sent != nil {
		add("sent", *u.Sent)
	}
	if u.SentAt != nil {
		add("sent_at", *u.SentAt)
	}
	if u.Opened != nil {
		add("opened", *u.Opened)
	}
	if u.OpenedAt != nil {
		add("opened_at", *u.OpenedAt)
	}
	if u.Clicked != nil {
		add("clicked", *u.Clicked)
	}
	if u.ClickedAt != nil {
		add("clicked_at", *u.ClickedAt)
	}
	if u.Submitted != nil {
		add("submitted", *u.Submitted)
	}
	if u.SubmittedAt != nil {
		add("submitted_at", *u.SubmittedAt)
	}
	if u.SubmittedData != nil {
		data, err := marshalMap(u.SubmittedData)
		if err != nil {
			return nil, fmt.Errorf("encode submitted data: %w", err)
		}
		add("submitted_data", data)
	}

	if len(sets) == 0 {
		return b.GetResult(ctx, orgID, id)
	}

	add("updated_at", now())
	query := fmt.Sprintf(`UPDATE campaign_results SET %s WHERE id = $%d AND organization_id = $%d`,
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, b.wrap("update result", entityResult, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return b.GetResult(ctx, orgID, id)
}

func (b *Backend) DeleteResult(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteWhere(ctx, "delete result", entityResult,
		`DELETE FROM campaign_results WHERE id = $1 AND organization_id = $2`, id, orgID)
}
