// Package dynamo implements the storage contract against a DynamoDB single
// table. Canonical field names map onto snake_case item attributes; tenant
// scoping is structural, each organization owning its own partition.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/driftsec/phishdeck/internal/pkg/logger"
	"github.com/driftsec/phishdeck/internal/store"
)

// Entity names used in degraded-mode errors and logs.
const (
	entityOrganization = "organization"
	entityUser         = "user"
	entityGroup        = "group"
	entityTarget       = "target"
	entitySMTPProfile  = "smtpProfile"
	entityTemplate     = "emailTemplate"
	entityPage         = "landingPage"
	entityCampaign     = "campaign"
	entityResult       = "campaignResult"
	entityResetToken   = "passwordResetToken"
)

// API is the slice of the DynamoDB client the backend calls. Tests inject a
// fake; production passes *dynamodb.Client.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	ListTables(ctx context.Context, in *dynamodb.ListTablesInput, opts ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

// Options configures a DynamoDB connection. Endpoint points at DynamoDB
// Local when set; the static credentials then satisfy the SDK's signing
// requirement without touching a real AWS account.
type Options struct {
	Table           string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Backend implements store.Store against a single DynamoDB table. It is
// safe for unlimited concurrent use.
type Backend struct {
	client API
	table  string

	// one degraded-table warning per entity per process
	missingLogged sync.Map
}

var _ store.Store = (*Backend)(nil)

// New creates a DynamoDB-backed store over an existing client.
func New(client API, table string) *Backend {
	return &Backend{client: client, table: table}
}

// Connect loads AWS configuration and returns a connected backend. The
// connection manager owns when this is called and what it falls back to.
func Connect(ctx context.Context, o Options) (*Backend, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(o.Region),
	}
	if o.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(do *dynamodb.Options) {
		if o.Endpoint != "" {
			do.BaseEndpoint = aws.String(o.Endpoint)
		}
	})
	return New(client, o.Table), nil
}

// Ping verifies the endpoint answers at all. Used by the connection
// manager's probe; table-level absence is handled per operation instead.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.ListTables(ctx, &dynamodb.ListTablesInput{
		Limit: aws.Int32(1),
	})
	return err
}

// wrap translates an SDK error at the operation boundary into the contract
// taxonomy: a missing table becomes NotProvisionedError, transport loss
// becomes ErrUnavailable, anything else is wrapped with operation context.
func (b *Backend) wrap(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		b.logMissingOnce(entity)
		return &store.NotProvisionedError{Entity: entity}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		logger.Error("dynamodb unreachable", "op", op, "cause", err)
		return fmt.Errorf("%s: %w", op, store.ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// listDegrade converts a not-provisioned list failure into the contract's
// empty-result behavior. Returns (handled, err): when handled the caller
// returns its empty slice and a nil error.
func (b *Backend) listDegrade(op, entity string, err error) (bool, error) {
	werr := b.wrap(op, entity, err)
	if store.IsNotProvisioned(werr) {
		return true, nil
	}
	return false, werr
}

func (b *Backend) logMissingOnce(entity string) {
	if _, seen := b.missingLogged.LoadOrStore(entity, struct{}{}); !seen {
		logger.Warn("entity collection not provisioned, operations degrade", "entity", entity)
	}
}

func now() time.Time { return time.Now().UTC() }

// getItem fetches one key into out. Returns false with a nil error when the
// key is absent, matching the contract's missing-id behavior.
func (b *Backend) getItem(ctx context.Context, op, entity, pk, sk string, out interface{}) (bool, error) {
	res, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.table),
		Key:       itemKey(pk, sk),
	})
	if err != nil {
		return false, b.wrap(op, entity, err)
	}
	if len(res.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return false, fmt.Errorf("%s: decode item: %w", op, err)
	}
	return true, nil
}

func (b *Backend) putItem(ctx context.Context, op, entity string, item interface{}) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("%s: encode item: %w", op, err)
	}
	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item:      av,
	})
	return b.wrap(op, entity, err)
}

// queryAll drains a query through its pagination cursor.
func (b *Backend) queryAll(ctx context.Context, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		out, err := b.client.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// deleteKey runs an idempotent delete: DynamoDB already treats deleting an
// absent key as success, and a missing table still reports success per the
// contract.
func (b *Backend) deleteKey(ctx context.Context, op, entity, pk, sk string) (bool, error) {
	_, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.table),
		Key:       itemKey(pk, sk),
	})
	if err != nil {
		werr := b.wrap(op, entity, err)
		if store.IsNotProvisioned(werr) {
			return true, nil
		}
		return false, werr
	}
	return true, nil
}

// batchDelete removes keys in chunks of the BatchWriteItem limit, retrying
// unprocessed entries.
func (b *Backend) batchDelete(ctx context.Context, keys []map[string]types.AttributeValue) error {
	const chunk = 25
	for len(keys) > 0 {
		n := len(keys)
		if n > chunk {
			n = chunk
		}
		reqs := make([]types.WriteRequest, 0, n)
		for _, k := range keys[:n] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: k},
			})
		}
		keys = keys[n:]

		pending := map[string][]types.WriteRequest{b.table: reqs}
		for len(pending[b.table]) > 0 {
			out, err := b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return err
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}
