package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

func (b *Backend) GetCampaign(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	var item campaignItem
	found, err := b.getItem(ctx, "get campaign", entityCampaign,
		tenantPK(orgID), skCampPrefix+id, &item)
	if err != nil || !found {
		return nil, err
	}
	c := item.campaign()
	return &c, nil
}

func (b *Backend) ListCampaigns(ctx context.Context, orgID string) ([]domain.Campaign, error) {
	out := []domain.Campaign{}
	items, err := b.queryAll(ctx, b.partitionQuery(tenantPK(orgID), skCampPrefix))
	if err != nil {
		handled, werr := b.listDegrade("list campaigns", entityCampaign, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []campaignItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list campaigns: decode items: %w", err)
	}
	for _, item := range raw {
		out = append(out, item.campaign())
	}
	return out, nil
}

// CreateCampaign validates that all four referenced entities exist inside
// the campaign's organization before any write (no cross-tenant linkage).
// Because every reference lives in the campaign's own partition, a foreign
// tenant's entity can never satisfy the lookup.
func (b *Backend) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	if err := c.Validate(); err != nil {
		return err
	}

	refs := []struct {
		sk     string
		entity string
	}{
		{skGroupPrefix + c.GroupID, entityGroup},
		{skTmplPrefix + c.TemplateID, entityTemplate},
		{skPagePrefix + c.PageID, entityPage},
		{skSMTPPrefix + c.SMTPProfileID, entitySMTPProfile},
	}
	for _, ref := range refs {
		var raw map[string]interface{}
		found, err := b.getItem(ctx, "validate campaign references", ref.entity,
			tenantPK(c.OrganizationID), ref.sk, &raw)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrCrossTenantReference
		}
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = domain.CampaignQueued
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	return b.putItem(ctx, "create campaign", entityCampaign, newCampaignItem(*c))
}

func (b *Backend) UpdateCampaign(ctx context.Context, orgID, id string, u store.CampaignUpdate) (*domain.Campaign, error) {
	cur, err := b.GetCampaign(ctx, orgID, id)
	if err != nil || cur == nil {
		return nil, err
	}

	changed := false
	if u.Name != nil {
		cur.Name = *u.Name
		changed = true
	}
	if u.Status != nil {
		cur.Status = *u.Status
		changed = true
	}
	if u.URL != nil {
		cur.URL = *u.URL
		changed = true
	}
	if u.LaunchDate != nil {
		cur.LaunchDate = u.LaunchDate
		changed = true
	}
	if u.CompletedAt != nil {
		cur.CompletedAt = u.CompletedAt
		changed = true
	}

	if !changed {
		return cur, nil
	}
	cur.UpdatedAt = now()
	if err := b.putItem(ctx, "update campaign", entityCampaign, newCampaignItem(*cur)); err != nil {
		return nil, err
	}
	return cur, nil
}

// DeleteCampaign removes the campaign and cascades to its results.
func (b *Backend) DeleteCampaign(ctx context.Context, orgID, id string) (bool, error) {
	in := b.partitionQuery(tenantPK(orgID), skResultPrefix)
	in.FilterExpression = aws.String("campaign_id = :c")
	in.ExpressionAttributeValues[":c"] = &types.AttributeValueMemberS{Value: id}
	in.ProjectionExpression = aws.String("PK, SK")

	items, err := b.queryAll(ctx, in)
	if err != nil {
		werr := b.wrap("delete campaign results", entityResult, err)
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
		return false, b.wrap("delete campaign results", entityResult, err)
	}
	return b.deleteKey(ctx, "delete campaign", entityCampaign, tenantPK(orgID), skCampPrefix+id)
}

// Campaign results.

func (b *Backend) GetResult(ctx context.Context, orgID, id string) (*domain.CampaignResult, error) {
	var item resultItem
	found, err := b.getItem(ctx, "get result", entityResult, tenantPK(orgID), skResultPrefix+id, &item)
	if err != nil || !found {
		return nil, err
	}
	r := item.result()
	return &r, nil
}

func (b *Backend) ResultsForCampaign(ctx context.Context, orgID, campaignID string) ([]domain.CampaignResult, error) {
	out := []domain.CampaignResult{}
	in := b.partitionQuery(tenantPK(orgID), skResultPrefix)
	in.FilterExpression = aws.String("campaign_id = :c")
	in.ExpressionAttributeValues[":c"] = &types.AttributeValueMemberS{Value: campaignID}

	items, err := b.queryAll(ctx, in)
	if err != nil {
		handled, werr := b.listDegrade("list campaign results", entityResult, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []resultItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list campaign results: decode items: %w", err)
	}
	for _, item := range raw {
		out = append(out, item.result())
	}
	return out, nil
}

func (b *Backend) CreateResult(ctx context.Context, r *domain.CampaignResult) error {
	if r.CampaignID == "" || r.TargetID == "" || r.OrganizationID == "" {
		return fmt.Errorf("result requires campaign, target and organization references")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	ts := now()
	r.CreatedAt, r.UpdatedAt = ts, ts
	return b.putItem(ctx, "create result", entityResult, newResultItem(*r))
}

func (b *Backend) UpdateResult(ctx context.Context, orgID, id string, u store.ResultUpdate) (*domain.CampaignResult, error) {
	cur, err := b.GetResult(ctx, orgID, id)
	if err != nil || cur == nil {
		return nil, err
	}

	changed := false
	if u.Sent != nil {
		cur.Sent = *u.Sent
		changed = true
	}
	if u.SentAt != nil {
		cur.SentAt = u.SentAt
		changed = true
	}
	if u.Opened != nil {
		cur.Opened = *u.Opened
		changed = true
	}
	if u.OpenedAt != nil {
		cur.OpenedAt = u.OpenedAt
		changed = true
	}
	if u.Clicked != nil {
		cur.Clicked = *u.Clicked
		changed = true
	}
	if u.ClickedAt != nil {
		cur.ClickedAt = u.ClickedAt
		changed = true
	}
	if u.Submitted != nil {
		cur.Submitted = *u.Submitted
		changed = true
	}
	if u.SubmittedAt != nil {
		cur.SubmittedAt = u.SubmittedAt
		changed = true
	}
	if u.SubmittedData != nil {
		cur.SubmittedData = u.SubmittedData
		changed = true
	}

	if !changed {
		return cur, nil
	}
	cur.UpdatedAt = now()
	if err := b.putItem(ctx, "update result", entityResult, newResultItem(*cur)); err != nil {
		return nil, err
	}
	return cur, nil
}

func (b *Backend) DeleteResult(ctx context.Context, orgID, id string) (bool, error) {
	return b.deleteKey(ctx, "delete result", entityResult, tenantPK(orgID), skResultPrefix+id)
}
