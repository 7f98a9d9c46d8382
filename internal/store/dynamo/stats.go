package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

// DashboardStats aggregates the tenant dashboard counters. Each sub-query
// degrades independently: a missing collection contributes zeros instead of
// failing the whole snapshot.
func (b *Backend) DashboardStats(ctx context.Context, orgID string) (*store.DashboardStats, error) {
	stats := &store.DashboardStats{Campaigns: map[domain.CampaignStatus]int{}}

	in := b.partitionQuery(userPartition, "")
	in.FilterExpression = aws.String("#o = :org")
	in.ExpressionAttributeNames = map[string]string{"#o": "organization_id"}
	in.ExpressionAttributeValues[":org"] = &types.AttributeValueMemberS{Value: orgID}
	in.ProjectionExpression = aws.String("is_admin")
	items, err := b.queryAll(ctx, in)
	if err != nil {
		if werr := b.wrap("stats users", entityUser, err); !store.IsNotProvisioned(werr) {
			return nil, werr
		}
	}
	for _, item := range items {
		stats.Users++
		if admin, ok := item["is_admin"].(*types.AttributeValueMemberBOOL); ok && admin.Value {
			stats.Admins++
		}
	}

	if stats.Groups, err = b.countPrefix(ctx, orgID, skGroupPrefix, entityGroup); err != nil {
		return nil, err
	}
	if stats.Targets, err = b.countPrefix(ctx, orgID, skTargetPrefix, entityTarget); err != nil {
		return nil, err
	}

	in = b.partitionQuery(tenantPK(orgID), skCampPrefix)
	in.ProjectionExpression = aws.String("#s")
	in.ExpressionAttributeNames = map[string]string{"#s": "status"}
	items, err = b.queryAll(ctx, in)
	if err != nil {
		if werr := b.wrap("stats campaigns", entityCampaign, err); !store.IsNotProvisioned(werr) {
			return nil, werr
		}
	}
	for _, item := range items {
		if status, ok := item["status"].(*types.AttributeValueMemberS); ok {
			stats.Campaigns[domain.CampaignStatus(status.Value)]++
		}
	}

	in = b.partitionQuery(tenantPK(orgID), skResultPrefix)
	in.ProjectionExpression = aws.String("sent, opened, clicked, submitted")
	items, err = b.queryAll(ctx, in)
	if err != nil {
		if werr := b.wrap("stats results", entityResult, err); !store.IsNotProvisioned(werr) {
			return nil, werr
		}
	}
	flag := func(item map[string]types.AttributeValue, name string) bool {
		v, ok := item[name].(*types.AttributeValueMemberBOOL)
		return ok && v.Value
	}
	for _, item := range items {
		if flag(item, "sent") {
			stats.EmailsSent++
		}
		if flag(item, "opened") {
			stats.EmailsOpened++
		}
		if flag(item, "clicked") {
			stats.LinksClicked++
		}
		if flag(item, "submitted") {
			stats.DataSubmitted++
		}
	}

	stats.ComputeRates()
	return stats, nil
}

// countPrefix counts a tenant's items under one sort-key prefix without
// pulling attributes back.
func (b *Backend) countPrefix(ctx context.Context, orgID, skPrefix, entity string) (int, error) {
	in := b.partitionQuery(tenantPK(orgID), skPrefix)
	in.Select = types.SelectCount

	total := 0
	for {
		out, err := b.client.Query(ctx, in)
		if err != nil {
			if werr := b.wrap("stats count", entity, err); !store.IsNotProvisioned(werr) {
				return 0, werr
			}
			return 0, nil
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
