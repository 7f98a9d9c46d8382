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

// SMTP profiles.

const smtpColumns = `id, organization_id, name, host, port, username, password, from_address,
	ignore_cert_errors, created_at, updated_at`

func scanSMTPProfile(row interface{ Scan(...interface{}) error }) (*domain.SMTPProfile, error) {
	p := &domain.SMTPProfile{}
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Host, &p.Port, &p.Username,
		&p.Password, &p.FromAddress, &p.IgnoreCertErrors, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (b *Backend) GetSMTPProfile(ctx context.Context, orgID, id string) (*domain.SMTPProfile, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+smtpColumns+` FROM smtp_profiles WHERE id = $1 AND organization_id = $2`, id, orgID)
	p, err := scanSMTPProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get smtp profile", entitySMTPProfile, err)
	}
	return p, nil
}

func (b *Backend) ListSMTPProfiles(ctx context.Context, orgID string) ([]domain.SMTPProfile, error) {
	out := []domain.SMTPProfile{}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+smtpColumns+` FROM smtp_profiles WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		handled, werr := b.listDegrade("list smtp profiles", entitySMTPProfile, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanSMTPProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan smtp profile: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (b *Backend) CreateSMTPProfile(ctx context.Context, p *domain.SMTPProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Port == 0 {
		p.Port = 25
	}
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO smtp_profiles (id, organization_id, name, host, port, username, password,
			from_address, ignore_cert_errors, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.OrganizationID, p.Name, p.Host, p.Port, p.Username, p.Password,
		p.FromAddress, p.IgnoreCertErrors, p.CreatedAt, p.UpdatedAt)
	return b.wrap("create smtp profile", entitySMTPProfile, err)
}

func (b *Backend) UpdateSMTPProfile(ctx context.Context, orgID, id string, u store.SMTPProfileUpdate) (*domain.SMTPProfile, error) {
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
	if u.Host != nil {
		add("host", *u.Host)
	}
	if u.Port != nil {
		add("port", *u.Port)
	}
	if u.Username != nil {
		add("username", *u.Username)
	}
	if u.Password != nil {
		add("password", *u.Password)
	}
	if u.FromAddress != nil {
		add("from_address", *u.FromAddress)
	}
	if u.IgnoreCertErrors != nil {
		add("ignore_cert_errors", *u.IgnoreCertErrors)
	}

	if len(sets) == 0 {
		return b.GetSMTPProfile(ctx, orgID, id)
	}

	add("updated_at", now())
	query := fmt.Sprintf(`UPDATE smtp_profiles SET %s WHERE id = $%d AND organization_id = $%d`,
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, b.wrap("update smtp profile", entitySMTPProfile, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return b.GetSMTPProfile(ctx, orgID, id)
}

func (b *Backend) DeleteSMTPProfile(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteWhere(ctx, "delete smtp profile", entitySMTPProfile,
		`DELETE FROM smtp_profiles WHERE id = $1 AND organization_id = $2`, id, orgID)
}

// Email templates.

const templateColumns = `id, organization_id, created_by, name, subject, html, text, created_at, updated_at`

func scanTemplate(row interface{ Scan(...interface{}) error }) (*domain.EmailTemplate, error) {
	t := &domain.EmailTemplate{}
	err := row.Scan(&t.ID, &t.OrganizationID, &t.CreatedBy, &t.Name, &t.Subject,
		&t.HTML, &t.Text, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (b *Backend) GetTemplate(ctx context.Context, orgID, id string) (*domain.EmailTemplate, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE id = $1 AND organization_id = $2`, id, orgID)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get template", entityTemplate, err)
	}
	return t, nil
}

func (b *Backend) ListTemplates(ctx context.Context, orgID string) ([]domain.EmailTemplate, error) {
	out := []domain.EmailTemplate{}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		handled, werr := b.listDegrade("list templates", entityTemplate, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (b *Backend) CreateTemplate(ctx context.Context, t *domain.EmailTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO email_templates (id, organization_id, created_by, name, subject, html, text,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.OrganizationID, t.CreatedBy, t.Name, t.Subject, t.HTML, t.Text,
		t.CreatedAt, t.UpdatedAt)
	return b.wrap("create template", entityTemplate, err)
}

func (b *Backend) UpdateTemplate(ctx context.Context, orgID, id string, u store.TemplateUpdate) (*domain.EmailTemplate, error) {
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
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.HTML != nil {
		add("html", *u.HTML)
	}
	if u.Text != nil {
		add("text", *u.Text)
	}

	if len(sets) == 0 {
		return b.GetTemplate(ctx, orgID, id)
	}

	add("updated_at", now())
	query := fmt.Sprintf(`UPDATE email_templates SET %s WHERE id = $%d AND organization_id = $%d`,
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, b.wrap("update template", entityTemplate, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return b.GetTemplate(ctx, orgID, id)
}

func (b *Backend) DeleteTemplate(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteWhere(ctx, "delete template", entityTemplate,
		`DELETE FROM email_templates WHERE id = $1 AND organization_id = $2`, id, orgID)
}

// Landing pages.

const pageColumns = `id, organization_id, created_by, name, html, source_url, capture_credentials,
	capture_passwords, redirect_url, created_at, updated_at`

func scanPage(row interface{ Scan(...interface{}) error }) (*domain.LandingPage, error) {
	p := &domain.LandingPage{}
	err := row.Scan(&p.ID, &p.OrganizationID, &p.CreatedBy, &p.Name, &p.HTML, &p.SourceURL,
		&p.CaptureCredentials, &p.CapturePasswords, &p.RedirectURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (b *Backend) GetPage(ctx context.Context, orgID, id string) (*domain.LandingPage, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM landing_pages WHERE id = $1 AND organization_id = $2`, id, orgID)
	p, err := scanPage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get page", entityPage, err)
	}
	return p, nil
}

func (b *Backend) ListPages(ctx context.Context, orgID string) ([]domain.LandingPage, error) {
	out := []domain.LandingPage{}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM landing_pages WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		handled, werr := b.listDegrade("list pages", entityPage, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (b *Backend) CreatePage(ctx context.Context, p *domain.LandingPage) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO landing_pages (id, organization_id, created_by, name, html, source_url,
			capture_credentials, capture_passwords, redirect_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.OrganizationID, p.CreatedBy, p.Name, p.HTML, p.SourceURL,
		p.CaptureCredentials, p.CapturePasswords, p.RedirectURL, p.CreatedAt, p.UpdatedAt)
	return b.wrap("create page", entityPage, err)
}

func (b *Backend) UpdatePage(ctx context.Context, orgID, id string, u store.PageUpdate) (*domain.LandingPage, error) {
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
	if u.HTML != nil {
		add("html", *u.HTML)
	}
	if u.SourceURL != nil {
		add("source_url", *u.SourceURL)
	}
	if u.CaptureCredentials != nil {
		add("capture_credentials", *u.CaptureCredentials)
	}
	if u.CapturePasswords != nil {
		add("capture_passwords", *u.CapturePasswords)
	}
	if u.RedirectURL != nil {
		add("redirect_url", *u.RedirectURL)
	}

	if len(sets) == 0 {
		return b.GetPage(ctx, orgID, id)
	}

	add("updated_at", now())
	query := fmt.Sprintf(`UPDATE landing_pages SET %s WHERE id = $%d AND organization_id = $%d`,
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, b.wrap("update page", entityPage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return b.GetPage(ctx, orgID, id)
}

func (b *Backend) DeletePage(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteWhere(ctx, "delete page", entityPage,
		`DELETE FROM landing_pages WHERE id = $1 AND organization_id = $2`, id, orgID)
}
