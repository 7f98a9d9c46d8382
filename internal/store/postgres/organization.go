package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

const orgColumns = "id, name, created_at, updated_at"

func scanOrganization(row interface{ Scan(...interface{}) error }) (*domain.Organization, error) {
	o := &domain.Organization{}
	err := row.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (b *Backend) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	o, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get organization", entityOrganization, err)
	}
	return o, nil
}

func (b *Backend) GetOrganizationByName(ctx context.Context, name string) (*domain.Organization, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE name = $1`, name)
	o, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get organization by name", entityOrganization, err)
	}
	return o, nil
}

func (b *Backend) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	out := []domain.Organization{}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+orgColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		handled, werr := b.listDegrade("list organizations", entityOrganization, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (b *Backend) CreateOrganization(ctx context.Context, o *domain.Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	ts := now()
	o.CreatedAt, o.UpdatedAt = ts, ts

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		o.ID, o.Name, o.CreatedAt, o.UpdatedAt)
	return b.wrap("create organization", entityOrganization, err)
}

func (b *Backend) UpdateOrganization(ctx context.Context, id string, u store.OrganizationUpdate) (*domain.Organization, error) {
	if u.Name == nil {
		return b.GetOrganization(ctx, id)
	}
	ts := now()
	res, err := b.db.ExecContext(ctx,
		`UPDATE organizations SET name = $1, updated_at = $2 WHERE id = $3`,
		*u.Name, ts, id)
	if err != nil {
		return nil, b.wrap("update organization", entityOrganization, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	// Keep the denormalized copy on users in sync with the rename.
	if _, err := b.db.ExecContext(ctx,
		`UPDATE users SET org_name = $1, updated_at = $2 WHERE organization_id = $3`,
		*u.Name, ts, id); err != nil {
		return nil, b.wrap("update organization users", entityUser, err)
	}
	return b.GetOrganization(ctx, id)
}

// DeleteOrganization removes the organization and every tenant-scoped row
// under it, in dependency order, inside one transaction.
func (b *Backend) DeleteOrganization(ctx context.Context, id string) (bool, error) {
	cascade := []struct {
		table string
		query string
	}{
		{"password_reset_tokens", `DELETE FROM password_reset_tokens WHERE user_id IN (SELECT id FROM users WHERE organization_id = $1)`},
		{"campaign_results", `DELETE FROM campaign_results WHERE organization_id = $1`},
		{"campaigns", `DELETE FROM campaigns WHERE organization_id = $1`},
		{"targets", `DELETE FROM targets WHERE organization_id = $1`},
		{"groups", `DELETE FROM groups WHERE organization_id = $1`},
		{"email_templates", `DELETE FROM email_templates WHERE organization_id = $1`},
		{"landing_pages", `DELETE FROM landing_pages WHERE organization_id = $1`},
		{"smtp_profiles", `DELETE FROM smtp_profiles WHERE organization_id = $1`},
		{"users", `DELETE FROM users WHERE organization_id = $1`},
		{"organizations", `DELETE FROM organizations WHERE id = $1`},
	}

	// A statement failure aborts a postgres transaction, so tables that were
	// never provisioned are skipped up front instead of caught mid-cascade.
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return false, b.wrap("delete organization", entityOrganization, err)
	}
	defer tx.Rollback()

	for _, step := range cascade {
		exists, err := tableExists(ctx, tx, step.table)
		if err != nil {
			return false, b.wrap("delete organization", entityOrganization, err)
		}
		if !exists {
			continue
		}
		if _, err := tx.ExecContext(ctx, step.query, id); err != nil {
			return false, b.wrap("delete organization", entityOrganization, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, b.wrap("delete organization", entityOrganization, err)
	}
	return true, nil
}
