package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

func newMockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func groupRows(g domain.Group) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "organization_id", "name", "created_at", "updated_at", "target_count"}).
		AddRow(g.ID, g.OrganizationID, g.Name, g.CreatedAt, g.UpdatedAt, g.TargetCount)
}

func TestGetGroupNotFoundIsNil(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery("FROM groups g").
		WithArgs("missing", "org1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	g, err := b.GetGroup(context.Background(), "org1", "missing")
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListGroupsScopedToTenant(t *testing.T) {
	b, mock := newMockBackend(t)

	now := time.Now()
	mock.ExpectQuery("FROM groups g").
		WithArgs("org1").
		WillReturnRows(groupRows(domain.Group{
			ID: "g1", OrganizationID: "org1", Name: "staff",
			CreatedAt: now, UpdatedAt: now, TargetCount: 3,
		}))

	groups, err := b.ListGroups(context.Background(), "org1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "org1", groups[0].OrganizationID)
	assert.Equal(t, 3, groups[0].TargetCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListGroupsEmptyTenantReturnsEmptySlice(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery("FROM groups g").
		WithArgs("org2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name", "created_at", "updated_at", "target_count"}))

	groups, err := b.ListGroups(context.Background(), "org2")
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestCreateGroupStampsServerFields(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectExec("INSERT INTO groups").
		WithArgs(sqlmock.AnyArg(), "org1", "staff", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	g := &domain.Group{OrganizationID: "org1", Name: "staff"}
	require.NoError(t, b.CreateGroup(context.Background(), g))
	assert.NotEmpty(t, g.ID)
	assert.False(t, g.CreatedAt.IsZero())
	assert.Equal(t, g.CreatedAt, g.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateGroupValidation(t *testing.T) {
	b, _ := newMockBackend(t)

	err := b.CreateGroup(context.Background(), &domain.Group{OrganizationID: "org1"})
	assert.Error(t, err, "nameless group must not reach the database")
}

func TestUpdateTemplatePartialFields(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectExec(`UPDATE email_templates SET subject = \$1, updated_at = \$2 WHERE id = \$3 AND organization_id = \$4`).
		WithArgs("New subject", sqlmock.AnyArg(), "t1", "org1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	mock.ExpectQuery("FROM email_templates").
		WithArgs("t1", "org1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "created_by", "name", "subject", "html", "text", "created_at", "updated_at",
		}).AddRow("t1", "org1", "u1", "welcome", "New subject", "<p>hi</p>", "", now, now))

	subject := "New subject"
	got, err := b.UpdateTemplate(context.Background(), "org1", "t1", store.TemplateUpdate{Subject: &subject})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New subject", got.Subject)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRowIsNil(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectExec("UPDATE email_templates SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	name := "renamed"
	got, err := b.UpdateTemplate(context.Background(), "org1", "missing", store.TemplateUpdate{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteIsIdempotent(t *testing.T) {
	b, mock := newMockBackend(t)

	// Both calls succeed even though the second deletes nothing.
	mock.ExpectExec("DELETE FROM targets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM targets").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := b.DeleteTarget(context.Background(), "org1", "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.DeleteTarget(context.Background(), "org1", "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMissingTableDegradesByOperation(t *testing.T) {
	b, mock := newMockBackend(t)
	undefinedTable := &pq.Error{Code: "42P01", Message: `relation "campaign_results" does not exist`}

	// list: empty slice, no error
	mock.ExpectQuery("FROM campaign_results").WillReturnError(undefinedTable)
	results, err := b.ResultsForCampaign(context.Background(), "org1", "c1")
	require.NoError(t, err)
	assert.Empty(t, results)

	// create: the distinct not-provisioned error, not a generic failure
	mock.ExpectExec("INSERT INTO campaign_results").WillReturnError(undefinedTable)
	err = b.CreateResult(context.Background(), &domain.CampaignResult{
		OrganizationID: "org1", CampaignID: "c1", TargetID: "t1",
	})
	require.Error(t, err)
	assert.True(t, store.IsNotProvisioned(err))
	assert.False(t, store.IsUnavailable(err))

	// delete: already-absent semantics
	mock.ExpectExec("DELETE FROM campaign_results").WillReturnError(undefinedTable)
	ok, err := b.DeleteResult(context.Background(), "org1", "r1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnectionErrorsMapToUnavailable(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery("FROM groups g").
		WillReturnError(&pq.Error{Code: "08006", Message: "connection failure"})

	_, err := b.GetGroup(context.Background(), "org1", "g1")
	require.Error(t, err)
	assert.True(t, store.IsUnavailable(err))
	assert.False(t, store.IsNotProvisioned(err))
}

func TestCreateCampaignRejectsCrossTenantReferences(t *testing.T) {
	b, mock := newMockBackend(t)

	// The page belongs to another tenant: its scoped count is zero.
	mock.ExpectQuery("FROM groups WHERE id").
		WithArgs("g1", "t1", "p1", "s1", "org1").
		WillReturnRows(sqlmock.NewRows([]string{"groups", "templates", "pages", "profiles"}).
			AddRow(1, 1, 0, 1))

	err := b.CreateCampaign(context.Background(), &domain.Campaign{
		OrganizationID: "org1", Name: "q3", GroupID: "g1",
		TemplateID: "t1", PageID: "p1", SMTPProfileID: "s1",
	})
	assert.ErrorIs(t, err, store.ErrCrossTenantReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeResetTokenSpentIsNil(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery("UPDATE password_reset_tokens SET used").
		WithArgs(sqlmock.AnyArg(), "tok123").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := b.ConsumeResetToken(context.Background(), "tok123")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDashboardStatsComputesRates(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery("FROM users WHERE organization_id").
		WithArgs("org1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "admins"}).AddRow(4, 1))
	mock.ExpectQuery("FROM groups WHERE organization_id").
		WithArgs("org1").
		WillReturnRows(sqlmock.NewRows([]string{"groups", "targets"}).AddRow(2, 50))
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs("org1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("completed", 2).AddRow("in_progress", 1))
	mock.ExpectQuery("FROM campaign_results").
		WithArgs("org1").
		WillReturnRows(sqlmock.NewRows([]string{"sent", "opened", "clicked", "submitted"}).
			AddRow(100, 40, 10, 5))

	stats, err := b.DashboardStats(context.Background(), "org1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Users)
	assert.Equal(t, 2, stats.Campaigns[domain.CampaignCompleted])
	assert.InDelta(t, 40.0, stats.OpenRate, 0.01)
	assert.InDelta(t, 5.0, stats.SubmissionRate, 0.01)
}

func TestCreateCampaignWithoutCreatorSucceeds(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectQuery("FROM groups WHERE id").
		WithArgs("g1", "t1", "p1", "s1", "org1").
		WillReturnRows(sqlmock.NewRows([]string{"groups", "templates", "pages", "profiles"}).
			AddRow(1, 1, 1, 1))
	// created_by binds the empty string untouched; the column is plain text.
	mock.ExpectExec("INSERT INTO campaigns").
		WithArgs(sqlmock.AnyArg(), "org1", "", "q3", string(domain.CampaignQueued),
			"g1", "t1", "p1", "s1", "", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := &domain.Campaign{
		OrganizationID: "org1", Name: "q3", GroupID: "g1",
		TemplateID: "t1", PageID: "p1", SMTPProfileID: "s1",
	}
	require.NoError(t, b.CreateCampaign(context.Background(), c))
	assert.Empty(t, c.CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTemplateWithoutCreatorSucceeds(t *testing.T) {
	b, mock := newMockBackend(t)

	mock.ExpectExec("INSERT INTO email_templates").
		WithArgs(sqlmock.AnyArg(), "org1", "", "welcome", "hi", "<p>hi</p>", "hi",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tmpl := &domain.EmailTemplate{
		OrganizationID: "org1", Name: "welcome",
		Subject: "hi", HTML: "<p>hi</p>", Text: "hi",
	}
	require.NoError(t, b.CreateTemplate(context.Background(), tmpl))
	assert.NoError(t, mock.ExpectationsWereMet())
}
