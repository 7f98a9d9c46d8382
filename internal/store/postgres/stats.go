package postgres

import (
	"context"
	"fmt"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

// DashboardStats aggregates the tenant dashboard counters. Each sub-query
// degrades independently: a missing table contributes zeros instead of
// failing the whole snapshot.
func (b *Backend) DashboardStats(ctx context.Context, orgID string) (*store.DashboardStats, error) {
	stats := &store.DashboardStats{Campaigns: map[domain.CampaignStatus]int{}}

	err := b.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_admin)
		FROM users WHERE organization_id = $1`, orgID).
		Scan(&stats.Users, &stats.Admins)
	if err != nil {
		if werr := b.wrap("stats users", entityUser, err); !store.IsNotProvisioned(werr) {
			return nil, werr
		}
	}

	err = b.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM groups WHERE organization_id = $1),
			(SELECT COUNT(*) FROM targets WHERE organization_id = $1)`, orgID).
		Scan(&stats.Groups, &stats.Targets)
	if err != nil {
		if werr := b.wrap("stats groups", entityGroup, err); !store.IsNotProvisioned(werr) {
			return nil, werr
		}
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM campaigns WHERE organization_id = $1 GROUP BY status`, orgID)
	if err != nil {
		if werr := b.wrap("stats campaigns", entityCampaign, err); !store.IsNotProvisioned(werr) {
			return nil, werr
		}
	} else {
		defer rows.Close()
		for rows.Next() {
			var status domain.CampaignStatus
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return nil, fmt.Errorf("scan campaign stats: %w", err)
			}
			stats.Campaigns[status] = count
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("campaign stats: %w", err)
		}
	}

	err = b.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE sent), COUNT(*) FILTER (WHERE opened),
		       COUNT(*) FILTER (WHERE clicked), COUNT(*) FILTER (WHERE submitted)
		FROM campaign_results WHERE organization_id = $1`, orgID).
		Scan(&stats.EmailsSent, &stats.EmailsOpened, &stats.LinksClicked, &stats.DataSubmitted)
	if err != nil {
		if werr := b.wrap("stats results", entityResult, err); !store.IsNotProvisioned(werr) {
			return nil, werr
		}
	}

	stats.ComputeRates()
	return stats, nil
}
