package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/pkg/logger"
)

// SeedOptions controls the rows inserted into an empty local instance.
type SeedOptions struct {
	AdminEmail string
	// AdminPassword is hashed before storage. When empty a random credential
	// is generated and logged once so the operator can sign in.
	AdminPassword string
}

// DefaultAdminEmail is the seeded administrator account on a freshly
// bootstrapped local backend.
const DefaultAdminEmail = "admin@phishdeck.local"

// Table creation statements, in dependency order. IF NOT EXISTS keeps the
// whole sequence idempotent and safe under concurrent bootstrap attempts.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		org_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		account_locked BOOLEAN NOT NULL DEFAULT FALSE,
		locked_until TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS targets (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		group_id UUID NOT NULL,
		email TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		position TEXT NOT NULL DEFAULT '',
		extras JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS smtp_profiles (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		name TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL DEFAULT 25,
		username TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL DEFAULT '',
		from_address TEXT NOT NULL,
		ignore_cert_errors BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS email_templates (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		html TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS landing_pages (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		html TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		capture_credentials BOOLEAN NOT NULL DEFAULT FALSE,
		capture_passwords BOOLEAN NOT NULL DEFAULT FALSE,
		redirect_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		group_id UUID NOT NULL,
		template_id UUID NOT NULL,
		page_id UUID NOT NULL,
		smtp_profile_id UUID NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		launch_date TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS campaign_results (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		campaign_id UUID NOT NULL,
		target_id UUID NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		sent BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at TIMESTAMPTZ,
		opened BOOLEAN NOT NULL DEFAULT FALSE,
		opened_at TIMESTAMPTZ,
		clicked BOOLEAN NOT NULL DEFAULT FALSE,
		clicked_at TIMESTAMPTZ,
		submitted BOOLEAN NOT NULL DEFAULT FALSE,
		submitted_at TIMESTAMPTZ,
		submitted_data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS password_reset_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		used BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema idempotently provisions a local instance: creates each table
// only if missing, then seeds the default organization and an administrator
// account only when the respective tables are empty. Safe to call repeatedly
// and concurrently with itself.
func EnsureSchema(ctx context.Context, db *sql.DB, opts SeedOptions) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	orgID, err := seedDefaultOrganization(ctx, db)
	if err != nil {
		return err
	}
	return seedAdminUser(ctx, db, orgID, opts)
}

func seedDefaultOrganization(ctx context.Context, db *sql.DB) (string, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&count); err != nil {
		return "", fmt.Errorf("count organizations: %w", err)
	}
	if count > 0 {
		var id string
		err := db.QueryRowContext(ctx,
			`SELECT id FROM organizations WHERE name = $1`, domain.DefaultOrganizationName).Scan(&id)
		if err == sql.ErrNoRows {
			// Non-empty instance without the sentinel tenant: nothing to seed.
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("find default organization: %w", err)
		}
		return id, nil
	}

	id := uuid.New().String()
	ts := now()
	// ON CONFLICT keeps a concurrent second bootstrap from erroring; the
	// later lookup resolves whichever insert won.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT (name) DO NOTHING`,
		id, domain.DefaultOrganizationName, ts, ts); err != nil {
		return "", fmt.Errorf("seed default organization: %w", err)
	}
	if err := db.QueryRowContext(ctx,
		`SELECT id FROM organizations WHERE name = $1`, domain.DefaultOrganizationName).Scan(&id); err != nil {
		return "", fmt.Errorf("find default organization: %w", err)
	}
	logger.Info("seeded default organization", "name", domain.DefaultOrganizationName)
	return id, nil
}

func seedAdminUser(ctx context.Context, db *sql.DB, orgID string, opts SeedOptions) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 || orgID == "" {
		return nil
	}

	email := opts.AdminEmail
	if email == "" {
		email = DefaultAdminEmail
	}
	password := opts.AdminPassword
	generated := false
	if password == "" {
		password = uuid.New().String()
		generated = true
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin credential: %w", err)
	}

	ts := now()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, org_name, email, password_hash, is_admin,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7) ON CONFLICT (email) DO NOTHING`,
		uuid.New().String(), orgID, domain.DefaultOrganizationName, email, string(hash), ts, ts); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	logger.Info("seeded administrator account", "admin_email", email)
	if generated {
		// Logged in the clear on purpose: the credential exists only on a
		// fresh local instance and is unrecoverable once this line scrolls.
		logger.Warn("generated one-time admin credential", "one_time", password)
	}
	return nil
}
