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

func (b *Backend) GetGroup(ctx context.Context, orgID, id string) (*domain.Group, error) {
	g := &domain.Group{}
	err := b.db.QueryRowContext(ctx, `
		SELECT g.id, g.organization_id, g.name, g.created_at, g.updated_at,
		       (SELECT COUNT(*) FROM targets t WHERE t.group_id = g.id) AS target_count
		FROM groups g
		WHERE g.id = $1 AND g.organization_id = $2`, id, orgID).
		Scan(&g.ID, &g.OrganizationID, &g.Name, &g.CreatedAt, &g.UpdatedAt, &g.TargetCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get group", entityGroup, err)
	}
	return g, nil
}

func (b *Backend) ListGroups(ctx context.Context, orgID string) ([]domain.Group, error) {
	out := []domain.Group{}
	rows, err := b.db.QueryContext(ctx, `
		SELECT g.id, g.organization_id, g.name, g.created_at, g.updated_at,
		       (SELECT COUNT(*) FROM targets t WHERE t.group_id = g.id) AS target_count
		FROM groups g
		WHERE g.organization_id = $1
		ORDER BY g.name`, orgID)
	if err != nil {
		handled, werr := b.listDegrade("list groups", entityGroup, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.Name, &g.CreatedAt, &g.UpdatedAt, &g.TargetCount); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (b *Backend) CreateGroup(ctx context.Context, g *domain.Group) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	ts := now()
	g.CreatedAt, g.UpdatedAt = ts, ts

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO groups (id, organization_id, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.OrganizationID, g.Name, g.CreatedAt, g.UpdatedAt)
	return b.wrap("create group", entityGroup, err)
}

func (b *Backend) UpdateGroup(ctx context.Context, orgID, id string, u store.GroupUpdate) (*domain.Group, error) {
	if u.Name == nil {
		return b.GetGroup(ctx, orgID, id)
	}
	res, err := b.db.ExecContext(ctx,
		`UPDATE groups SET name = $1, updated_at = $2 WHERE id = $3 AND organization_id = $4`,
		*u.Name, now(), id, orgID)
	if err != nil {
		return nil, b.wrap("update group", entityGroup, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return b.GetGroup(ctx, orgID, id)
}

// DeleteGroup removes the group and cascades to its targets.
func (b *Backend) DeleteGroup(ctx context.Context, orgID, id string) (bool, error) {
	if ok, err := b.deleteWhere(ctx, "delete group targets", entityTarget,
		`DELETE FROM targets WHERE group_id = $1 AND organization_id = $2`, id, orgID); !ok {
		return false, err
	}
	return b.deleteWhere(ctx, "delete group", entityGroup,
		`DELETE FROM groups WHERE id = $1 AND organization_id = $2`, id, orgID)
}

// Targets.

const targetColumns = `id, organization_id, group_id, email, first_name, last_name, position,
	extras, created_at, updated_at`

func scanTarget(row interface{ Scan(...interface{}) error }) (*domain.Target, error) {
	t := &domain.Target{}
	var extras []byte
	err := row.Scan(&t.ID, &t.OrganizationID, &t.GroupID, &t.Email, &t.FirstName,
		&t.LastName, &t.Position, &extras, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if t.Extras, err = unmarshalMap(extras); err != nil {
		return nil, fmt.Errorf("decode target extras: %w", err)
	}
	return t, nil
}

func (b *Backend) GetTarget(ctx context.Context, orgID, id string) (*domain.Target, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE id = $1 AND organization_id = $2`, id, orgID)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get target", entityTarget, err)
	}
	return t, nil
}

func (b *Backend) ListTargets(ctx context.Context, orgID, groupID string) ([]domain.Target, error) {
	out := []domain.Target{}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE organization_id = $1 AND group_id = $2 ORDER BY email`,
		orgID, groupID)
	if err != nil {
		handled, werr := b.listDegrade("list targets", entityTarget, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (b *Backend) CreateTarget(ctx context.Context, t *domain.Target) error {
	t.Email = strings.ToLower(strings.TrimSpace(t.Email))
	if err := t.Validate(); err != nil {
		return err
	}
	// Reject targets pointed at a group in another tenant.
	g, err := b.GetGroup(ctx, t.OrganizationID, t.GroupID)
	if err != nil {
		return err
	}
	if g == nil {
		return store.ErrCrossTenantReference
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts

	extras, err := marshalMap(t.Extras)
	if err != nil {
		return fmt.Errorf("encode target extras: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO targets (id, organization_id, group_id, email, first_name, last_name,
			position, extras, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.OrganizationID, t.GroupID, t.Email, t.FirstName, t.LastName,
		t.Position, extras, t.CreatedAt, t.UpdatedAt)
	return b.wrap("create target", entityTarget, err)
}

func (b *Backend) UpdateTarget(ctx context.Context, orgID, id string, u store.TargetUpdate) (*domain.Target, error) {
	sets := []string{}
	args := []interface{}{}
	idx := 1

	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Email != nil {
		add("email", strings.ToLower(strings.TrimSpace(*u.Email)))
	}
	if u.FirstName != nil {
		add("first_name", *u.FirstName)
	}
	if u.LastName != nil {
		add("last_name", *u.LastName)
	}
	if u.Position != nil {
		add("position", *u.Position)
	}
	if u.Extras != nil {
		extras, err := marshalMap(u.Extras)
		if err != nil {
			return nil, fmt.Errorf("encode target extras: %w", err)
		}
		add("extras", extras)
	}

	if len(sets) == 0 {
		return b.GetTarget(ctx, orgID, id)
	}

	add("updated_at", now())
	query := fmt.Sprintf(`UPDATE targets SET %s WHERE id = $%d AND organization_id = $%d`,
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, b.wrap("update target", entityTarget, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return b.GetTarget(ctx, orgID, id)
}

func (b *Backend) DeleteTarget(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteWhere(ctx, "delete target", entityTarget,
		`DELETE FROM targets WHERE id = $1 AND organization_id = $2`, id, orgID)
}
