package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

func (b *Backend) GetGroup(ctx context.Context, orgID, id string) (*domain.Group, error) {
	var item groupItem
	found, err := b.getItem(ctx, "get group", entityGroup, tenantPK(orgID), skGroupPrefix+id, &item)
	if err != nil || !found {
		return nil, err
	}
	g := item.group()
	counts, err := b.targetCounts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	g.TargetCount = counts[g.ID]
	return &g, nil
}

func (b *Backend) ListGroups(ctx context.Context, orgID string) ([]domain.Group, error) {
	out := []domain.Group{}
	items, err := b.queryAll(ctx, b.partitionQuery(tenantPK(orgID), skGroupPrefix))
	if err != nil {
		handled, werr := b.listDegrade("list groups", entityGroup, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []groupItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list groups: decode items: %w", err)
	}
	counts, err := b.targetCounts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for _, item := range raw {
		g := item.group()
		g.TargetCount = counts[g.ID]
		out = append(out, g)
	}
	return out, nil
}

// targetCounts tallies the tenant's targets per group in one pass so group
// reads do not pay a query per group.
func (b *Backend) targetCounts(ctx context.Context, orgID string) (map[string]int, error) {
	in := b.partitionQuery(tenantPK(orgID), skTargetPrefix)
	in.ProjectionExpression = aws.String("group_id")
	items, err := b.queryAll(ctx, in)
	if err != nil {
		werr := b.wrap("count targets", entityTarget, err)
		if store.IsNotProvisioned(werr) {
			return map[string]int{}, nil
		}
		return nil, werr
	}

	counts := map[string]int{}
	for _, item := range items {
		if gid, ok := item["group_id"].(*types.AttributeValueMemberS); ok {
			counts[gid.Value]++
		}
	}
	return counts, nil
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
	return b.putItem(ctx, "create group", entityGroup, newGroupItem(*g))
}

func (b *Backend) UpdateGroup(ctx context.Context, orgID, id string, u store.GroupUpdate) (*domain.Group, error) {
	cur, err := b.GetGroup(ctx, orgID, id)
	if err != nil || cur == nil {
		return nil, err
	}
	if u.Name == nil {
		return cur, nil
	}
	cur.Name = *u.Name
	cur.UpdatedAt = now()
	if err := b.putItem(ctx, "update group", entityGroup, newGroupItem(*cur)); err != nil {
		return nil, err
	}
	return cur, nil
}

// DeleteGroup removes the group and cascades to its targets.
func (b *Backend) DeleteGroup(ctx context.Context, orgID, id string) (bool, error) {
	in := b.partitionQuery(tenantPK(orgID), skTargetPrefix)
	in.FilterExpression = aws.String("group_id = :g")
	in.ExpressionAttributeValues[":g"] = &types.AttributeValueMemberS{Value: id}
	in.ProjectionExpression = aws.String("PK, SK")

	items, err := b.queryAll(ctx, in)
	if err != nil {
		werr := b.wrap("delete group targets", entityTarget, err)
		if store.IsNotProvisioned(werr) {
			return true, nil
		}
		return false, werr
	}
	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]})
	}
	if err := b.batchDelete(ctx, keys); err != nil {
		return false, b.wrap("delete group targets", entityTarget, err)
	}
	return b.deleteKey(ctx, "delete group", entityGroup, tenantPK(orgID), skGroupPrefix+id)
}

// Targets.

func (b *Backend) GetTarget(ctx context.Context, orgID, id string) (*domain.Target, error) {
	var item targetItem
	found, err := b.getItem(ctx, "get target", entityTarget, tenantPK(orgID), skTargetPrefix+id, &item)
	if err != nil || !found {
		return nil, err
	}
	t := item.target()
	return &t, nil
}

func (b *Backend) ListTargets(ctx context.Context, orgID, groupID string) ([]domain.Target, error) {
	out := []domain.Target{}
	in := b.partitionQuery(tenantPK(orgID), skTargetPrefix)
	in.FilterExpression = aws.String("group_id = :g")
	in.ExpressionAttributeValues[":g"] = &types.AttributeValueMemberS{Value: groupID}

	items, err := b.queryAll(ctx, in)
	if err != nil {
		handled, werr := b.listDegrade("list targets", entityTarget, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []targetItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list targets: decode items: %w", err)
	}
	for _, item := range raw {
		out = append(out, item.target())
	}
	return out, nil
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
	return b.putItem(ctx, "create target", entityTarget, newTargetItem(*t))
}

func (b *Backend) UpdateTarget(ctx context.Context, orgID, id string, u store.TargetUpdate) (*domain.Target, error) {
	cur, err := b.GetTarget(ctx, orgID, id)
	if err != nil || cur == nil {
		return nil, err
	}

	changed := false
	if u.Email != nil {
		cur.Email = strings.ToLower(strings.TrimSpace(*u.Email))
		changed = true
	}
	if u.FirstName != nil {
		cur.FirstName = *u.FirstName
		changed = true
	}
	if u.LastName != nil {
		cur.LastName = *u.LastName
		changed = true
	}
	if u.Position != nil {
		cur.Position = *u.Position
		changed = true
	}
	if u.Extras != nil {
		cur.Extras = u.Extras
		changed = true
	}

	if !changed {
		return cur, nil
	}
	cur.UpdatedAt = now()
	if err := b.putItem(ctx, "update target", entityTarget, newTargetItem(*cur)); err != nil {
		return nil, err
	}
	return cur, nil
}

func (b *Backend) DeleteTarget(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteKey(ctx, "delete target", entityTarget, tenantPK(orgID), skTargetPrefix+id)
}
