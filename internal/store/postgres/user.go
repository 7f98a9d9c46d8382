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

const userColumns = `id, organization_id, org_name, email, password_hash, first_name, last_name,
	is_admin, failed_logins, account_locked, locked_until, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.OrganizationID, &u.OrgName, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.IsAdmin, &u.FailedLogins, &u.AccountLocked,
		&u.LockedUntil, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (b *Backend) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get user", entityUser, err)
	}
	return u, nil
}

func (b *Backend) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get user by email", entityUser, err)
	}
	return u, nil
}

func (b *Backend) ListUsers(ctx context.Context, orgID string) ([]domain.User, error) {
	out := []domain.User{}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE organization_id = $1 ORDER BY email`, orgID)
	if err != nil {
		handled, werr := b.listDegrade("list users", entityUser, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (b *Backend) CreateUser(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := u.Validate(); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	ts := now()
	u.CreatedAt, u.UpdatedAt = ts, ts

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, org_name, email, password_hash, first_name,
			last_name, is_admin, failed_logins, account_locked, locked_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.OrganizationID, u.OrgName, u.Email, u.PasswordHash, u.FirstName,
		u.LastName, u.IsAdmin, u.FailedLogins, u.AccountLocked, u.LockedUntil,
		u.CreatedAt, u.UpdatedAt)
	return b.wrap("create user", entityUser, err)
}

func (b *Backend) UpdateUser(ctx context.Context, id string, u store.UserUpdate) (*domain.User, error) {
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
	if u.PasswordHash != nil {
		add("password_hash", *u.PasswordHash)
	}
	if u.FirstName != nil {
		add("first_name", *u.FirstName)
	}
	if u.LastName != nil {
		add("last_name", *u.LastName)
	}
	if u.IsAdmin != nil {
		add("is_admin", *u.IsAdmin)
	}
	if u.FailedLogins != nil {
		add("failed_logins", *u.FailedLogins)
	}
	if u.OrgName != nil {
		add("org_name", *u.OrgName)
	}
	if u.AccountLocked != nil {
		add("account_locked", *u.AccountLocked)
		if *u.AccountLocked {
			add("locked_until", u.LockedUntil)
		} else {
			// Clearing the lock also clears the deadline and counter.
			add("locked_until", nil)
			add("failed_logins", 0)
		}
	} else if u.LockedUntil != nil {
		add("locked_until", *u.LockedUntil)
	}

	if len(sets) == 0 {
		return b.GetUser(ctx, id)
	}

	add("updated_at", now())
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, b.wrap("update user", entityUser, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return b.GetUser(ctx, id)
}

func (b *Backend) DeleteUser(ctx context.Context, id string) (bool, error) {
	if ok, err := b.deleteWhere(ctx, "delete user tokens", entityResetToken,
		`DELETE FROM password_reset_tokens WHERE user_id = $1`, id); !ok {
		return false, err
	}
	return b.deleteWhere(ctx, "delete user", entityUser,
		`DELETE FROM users WHERE id = $1`, id)
}

// Password reset tokens.

const tokenColumns = "id, user_id, token, expires_at, used, created_at, updated_at"

func scanToken(row interface{ Scan(...interface{}) error }) (*domain.PasswordResetToken, error) {
	t := &domain.PasswordResetToken{}
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.Used, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (b *Backend) GetResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM password_reset_tokens WHERE token = $1`, token)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("get reset token", entityResetToken, err)
	}
	return t, nil
}

func (b *Backend) ListResetTokens(ctx context.Context, userID string) ([]domain.PasswordResetToken, error) {
	out := []domain.PasswordResetToken{}
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM password_reset_tokens WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		handled, werr := b.listDegrade("list reset tokens", entityResetToken, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reset token: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (b *Backend) CreateResetToken(ctx context.Context, t *domain.PasswordResetToken) error {
	if t.UserID == "" || t.Token == "" {
		return fmt.Errorf("reset token requires user reference and token value")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token, expires_at, used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.Token, t.ExpiresAt, t.Used, t.CreatedAt, t.UpdatedAt)
	return b.wrap("create reset token", entityResetToken, err)
}

// ConsumeResetToken atomically marks an unexpired, unused token as used and
// returns it. (nil, nil) means the token is absent, already spent, or
// expired; the caller treats all three the same way.
func (b *Backend) ConsumeResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	row := b.db.QueryRowContext(ctx, `
		UPDATE password_reset_tokens SET used = TRUE, updated_at = $1
		WHERE token = $2 AND used = FALSE AND expires_at > $1
		RETURNING `+tokenColumns, now(), token)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.wrap("consume reset token", entityResetToken, err)
	}
	return t, nil
}

func (b *Backend) DeleteResetToken(ctx context.Context, id string) (bool, error) {
	return b.deleteWhere(ctx, "delete reset token", entityResetToken,
		`DELETE FROM password_reset_tokens WHERE id = $1`, id)
}
