package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectSchemaCreation(mock sqlmock.Sqlmock) {
	for range schemaStatements {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func TestEnsureSchemaSeedsEmptyInstance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectSchemaCreation(mock)
	mock.ExpectQuery("SELECT COUNT(.+) FROM organizations").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO organizations").
		WithArgs(sqlmock.AnyArg(), "None", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM organizations WHERE name").
		WithArgs("None").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-default"))
	mock.ExpectQuery("SELECT COUNT(.+) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = EnsureSchema(context.Background(), db, SeedOptions{AdminPassword: "test-only"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaSecondRunInsertsNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// An already-seeded instance: table creation no-ops, counts are nonzero,
	// and no INSERT is expected anywhere.
	expectSchemaCreation(mock)
	mock.ExpectQuery("SELECT COUNT(.+) FROM organizations").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id FROM organizations WHERE name").
		WithArgs("None").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("org-default"))
	mock.ExpectQuery("SELECT COUNT(.+) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	err = EnsureSchema(context.Background(), db, SeedOptions{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaSurfacesDDLFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").
		WillReturnError(assert.AnError)

	err = EnsureSchema(context.Background(), db, SeedOptions{})
	assert.Error(t, err)
}

func TestSchemaStoresCreatorAsOpaqueText(t *testing.T) {
	// The contract treats the actor reference as an optional opaque string,
	// so a UUID-typed column would reject creator-less creates ("").
	seen := 0
	for _, stmt := range schemaStatements {
		if !strings.Contains(stmt, "created_by") {
			continue
		}
		seen++
		assert.Contains(t, stmt, "created_by TEXT")
		assert.NotContains(t, stmt, "created_by UUID")
	}
	assert.Equal(t, 3, seen, "campaigns, templates and pages carry a creator column")
}
