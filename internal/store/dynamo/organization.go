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

func (b *Backend) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	var item orgItem
	found, err := b.getItem(ctx, "get organization", entityOrganization,
		orgPartition, skOrgPrefix+id, &item)
	if err != nil || !found {
		return nil, err
	}
	o := item.organization()
	return &o, nil
}

func (b *Backend) GetOrganizationByName(ctx context.Context, name string) (*domain.Organization, error) {
	in := b.partitionQuery(orgPartition, "")
	in.FilterExpression = aws.String("#n = :name")
	in.ExpressionAttributeNames = map[string]string{"#n": "name"}
	in.ExpressionAttributeValues[":name"] = &types.AttributeValueMemberS{Value: name}

	items, err := b.queryAll(ctx, in)
	if err != nil {
		return nil, b.wrap("get organization by name", entityOrganization, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	var item orgItem
	if err := attributevalue.UnmarshalMap(items[0], &item); err != nil {
		return nil, fmt.Errorf("get organization by name: decode item: %w", err)
	}
	o := item.organization()
	return &o, nil
}

func (b *Backend) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	out := []domain.Organization{}
	items, err := b.queryAll(ctx, b.partitionQuery(orgPartition, ""))
	if err != nil {
		handled, werr := b.listDegrade("list organizations", entityOrganization, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []orgItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list organizations: decode items: %w", err)
	}
	for _, item := range raw {
		out = append(out, item.organization())
	}
	return out, nil
}

func (b *Backend) CreateOrganization(ctx context.Context, o *domain.Organization) error {
	if err := o.Validate(); err != nil {
		return err
	}
	// Name uniqueness: the relational backend relies on a constraint, here
	// we look before we write.
	existing, err := b.GetOrganizationByName(ctx, o.Name)
	if err != nil && !store.IsNotProvisioned(err) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("organization %q already exists", o.Name)
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	ts := now()
	o.CreatedAt, o.UpdatedAt = ts, ts
	return b.putItem(ctx, "create organization", entityOrganization, newOrgItem(*o))
}

// UpdateOrganization merges the supplied fields into the stored item and, on
// rename, rewrites the denormalized org_name copy every member user carries.
func (b *Backend) UpdateOrganization(ctx context.Context, id string, u store.OrganizationUpdate) (*domain.Organization, error) {
	cur, err := b.GetOrganization(ctx, id)
	if err != nil || cur == nil {
		return nil, err
	}
	if u.Name == nil {
		return cur, nil
	}

	cur.Name = *u.Name
	cur.UpdatedAt = now()
	if err := b.putItem(ctx, "update organization", entityOrganization, newOrgItem(*cur)); err != nil {
		return nil, err
	}

	users, err := b.ListUsers(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].OrgName = cur.Name
		users[i].UpdatedAt = cur.UpdatedAt
		if err := b.putItem(ctx, "sync user org name", entityUser, newUserItem(users[i])); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// DeleteOrganization removes the tenant partition and every record that
// references the tenant from the fixed partitions: member users, their
// reset tokens, and the organization item itself.
func (b *Backend) DeleteOrganization(ctx context.Context, id string) (bool, error) {
	in := b.partitionQuery(tenantPK(id), "")
	in.ProjectionExpression = aws.String("PK, SK")
	items, err := b.queryAll(ctx, in)
	if err != nil {
		werr := b.wrap("delete organization records", entityOrganization, err)
		if store.IsNotProvisioned(werr) {
			return true, nil
		}
		return false, werr
	}

	keys := make([]map[string]types.AttributeValue, 0, len(items)+1)
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{
			"PK": item["PK"], "SK": item["SK"],
		})
	}

	users, err := b.ListUsers(ctx, id)
	if err != nil {
		return false, err
	}
	for _, u := range users {
		tokens, err := b.ListResetTokens(ctx, u.ID)
		if err != nil {
			return false, err
		}
		for _, t := range tokens {
			keys = append(keys, itemKey(tokenPartition, skTokenPrefix+t.ID))
		}
		keys = append(keys, itemKey(userPartition, skUserPrefix+u.ID))
	}
	keys = append(keys, itemKey(orgPartition, skOrgPrefix+id))

	if err := b.batchDelete(ctx, keys); err != nil {
		werr := b.wrap("delete organization", entityOrganization, err)
		if store.IsNotProvisioned(werr) {
			return true, nil
		}
		return false, werr
	}
	return true, nil
}
