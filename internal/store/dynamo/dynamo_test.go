package dynamo

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

// fakeClient satisfies API with per-test function hooks. A nil hook answers
// with an empty success.
type fakeClient struct {
	getItem    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem    func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	deleteItem func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	query      func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchWrite func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	listTables func(*dynamodb.ListTablesInput) (*dynamodb.ListTablesOutput, error)
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getItem == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getItem(in)
}

func (f *fakeClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putItem == nil {
		return &dynamodb.PutItemOutput{}, nil
	}
	return f.putItem(in)
}

func (f *fakeClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.deleteItem == nil {
		return &dynamodb.DeleteItemOutput{}, nil
	}
	return f.deleteItem(in)
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.query == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.query(in)
}

func (f *fakeClient) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if f.batchWrite == nil {
		return &dynamodb.BatchWriteItemOutput{}, nil
	}
	return f.batchWrite(in)
}

func (f *fakeClient) ListTables(_ context.Context, in *dynamodb.ListTablesInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	if f.listTables == nil {
		return &dynamodb.ListTablesOutput{}, nil
	}
	return f.listTables(in)
}

func keyString(key map[string]types.AttributeValue, name string) string {
	if s, ok := key[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func TestGetGroupMissingIsNil(t *testing.T) {
	b := New(&fakeClient{}, "phishdeck")

	g, err := b.GetGroup(context.Background(), "org-1", "nope")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestCreateGroupWritesIntoTenantPartition(t *testing.T) {
	var put map[string]types.AttributeValue
	b := New(&fakeClient{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			put = in.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	}, "phishdeck")

	g := &domain.Group{OrganizationID: "org-1", Name: "Staff"}
	require.NoError(t, b.CreateGroup(context.Background(), g))

	assert.NotEmpty(t, g.ID)
	assert.False(t, g.CreatedAt.IsZero())
	assert.Equal(t, g.CreatedAt, g.UpdatedAt)
	assert.Equal(t, "ORG#org-1", keyString(put, "PK"))
	assert.Equal(t, skGroupPrefix+g.ID, keyString(put, "SK"))
}

func TestListGroupsUnprovisionedTableDegrades(t *testing.T) {
	b := New(&fakeClient{
		query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return nil, &types.ResourceNotFoundException{}
		},
	}, "phishdeck")

	groups, err := b.ListGroups(context.Background(), "org-1")
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestCreateGroupUnprovisionedTableErrors(t *testing.T) {
	b := New(&fakeClient{
		putItem: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			return nil, &types.ResourceNotFoundException{}
		},
	}, "phishdeck")

	err := b.CreateGroup(context.Background(), &domain.Group{OrganizationID: "org-1", Name: "Staff"})
	assert.True(t, store.IsNotProvisioned(err))
}

func TestDeleteIsIdempotent(t *testing.T) {
	b := New(&fakeClient{}, "phishdeck")
	ok, err := b.DeleteTarget(context.Background(), "org-1", "never-existed")
	require.NoError(t, err)
	assert.True(t, ok)

	b = New(&fakeClient{
		deleteItem: func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
			return nil, &types.ResourceNotFoundException{}
		},
	}, "phishdeck")
	ok, err = b.DeleteTarget(context.Background(), "org-1", "never-existed")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransportErrorMapsToUnavailable(t *testing.T) {
	b := New(&fakeClient{
		getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		},
	}, "phishdeck")

	_, err := b.GetTarget(context.Background(), "org-1", "t1")
	assert.True(t, store.IsUnavailable(err))
}

func TestUpdateTemplateMergesSelectedFields(t *testing.T) {
	existing := newTemplateItem(domain.EmailTemplate{
		ID: "e1", OrganizationID: "org-1", Name: "Invoice", Subject: "Old",
		HTML: "<p>hi</p>", CreatedAt: mapTS, UpdatedAt: mapTS,
	})
	av, err := attributevalue.MarshalMap(existing)
	require.NoError(t, err)

	var put map[string]types.AttributeValue
	b := New(&fakeClient{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			assert.Equal(t, "ORG#org-1", keyString(in.Key, "PK"))
			return &dynamodb.GetItemOutput{Item: av}, nil
		},
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			put = in.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	}, "phishdeck")

	subject := "New subject"
	updated, err := b.UpdateTemplate(context.Background(), "org-1", "e1",
		store.TemplateUpdate{Subject: &subject})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "New subject", updated.Subject)
	assert.Equal(t, "Invoice", updated.Name)
	assert.Equal(t, mapTS, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(mapTS))

	var stored templateItem
	require.NoError(t, attributevalue.UnmarshalMap(put, &stored))
	assert.Equal(t, "New subject", stored.Subject)
	assert.Equal(t, "<p>hi</p>", stored.HTML)
}

func TestUpdateMissingItemIsNil(t *testing.T) {
	b := New(&fakeClient{}, "phishdeck")
	name := "renamed"
	got, err := b.UpdateGroup(context.Background(), "org-1", "nope", store.GroupUpdate{Name: &name})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestConsumeResetTokenSpentIsNil(t *testing.T) {
	spent := newTokenItem(domain.PasswordResetToken{
		ID: "k1", UserID: "u1", Token: "tok", ExpiresAt: mapLater, Used: true,
		CreatedAt: mapTS, UpdatedAt: mapTS,
	})
	av, err := attributevalue.MarshalMap(spent)
	require.NoError(t, err)

	b := New(&fakeClient{
		query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{av}}, nil
		},
		putItem: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			t.Fatal("a spent token must not be rewritten")
			return nil, nil
		},
	}, "phishdeck")

	tok, err := b.ConsumeResetToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestCreateCampaignRejectsCrossTenantReferences(t *testing.T) {
	// The group lookup is keyed inside the campaign's own partition, so a
	// reference owned by another tenant resolves to nothing.
	b := New(&fakeClient{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			assert.Equal(t, "ORG#org-1", keyString(in.Key, "PK"))
			return &dynamodb.GetItemOutput{}, nil
		},
	}, "phishdeck")

	err := b.CreateCampaign(context.Background(), &domain.Campaign{
		OrganizationID: "org-1", Name: "Q2",
		GroupID: "foreign-group", TemplateID: "e1", PageID: "p1", SMTPProfileID: "s1",
	})
	assert.ErrorIs(t, err, store.ErrCrossTenantReference)
}

func TestDeleteCampaignCascadesResults(t *testing.T) {
	resultKeys := []map[string]types.AttributeValue{
		itemKey("ORG#org-1", skResultPrefix+"r1"),
		itemKey("ORG#org-1", skResultPrefix+"r2"),
	}

	var batched []string
	var deleted []string
	b := New(&fakeClient{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.Contains(t, *in.KeyConditionExpression, "begins_with")
			return &dynamodb.QueryOutput{Items: resultKeys}, nil
		},
		batchWrite: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
			for _, req := range in.RequestItems["phishdeck"] {
				batched = append(batched, keyString(req.DeleteRequest.Key, "SK"))
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
		deleteItem: func(in *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
			deleted = append(deleted, keyString(in.Key, "SK"))
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}, "phishdeck")

	ok, err := b.DeleteCampaign(context.Background(), "org-1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ElementsMatch(t, []string{skResultPrefix + "r1", skResultPrefix + "r2"}, batched)
	assert.Equal(t, []string{skCampPrefix + "c1"}, deleted)
}

func TestListUsersFiltersByOrganization(t *testing.T) {
	var filter string
	b := New(&fakeClient{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			if in.FilterExpression != nil {
				filter = *in.FilterExpression
			}
			return &dynamodb.QueryOutput{}, nil
		},
	}, "phishdeck")

	users, err := b.ListUsers(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.True(t, strings.Contains(filter, ":org"))
}
