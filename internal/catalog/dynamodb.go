package catalog

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/dynamo"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
	"github.com/rzpsarthak13/string-catalog/internal/properties"
)

// DynamoDBCatalog stores one item per record in a table whose string hash
// key is "id". Conditional writes enforce uniqueness.
type DynamoDBCatalog struct {
	api       dynamo.API
	tableName string
	log       zerolog.Logger
	now       func() time.Time
	closed    atomic.Bool
}

// NewDynamoDBCatalog builds a catalog over api and checks the table exists.
func NewDynamoDBCatalog(ctx context.Context, api dynamo.API, tableName string, log zerolog.Logger) (*DynamoDBCatalog, error) {
	if tableName == "" {
		return nil, errors.New("table name is required")
	}
	if err := dynamo.CheckTable(ctx, api, tableName); err != nil {
		return nil, err
	}

	c := &DynamoDBCatalog{
		api:       api,
		tableName: tableName,
		log:       logger.Component(log, "dynamodb"),
		now:       time.Now,
	}
	c.log.Info().Str("table", tableName).Msg("connected to DynamoDB catalog")
	return c, nil
}

func (c *DynamoDBCatalog) checkOpen() error {
	if c.closed.Load() {
		return core.Storage(errors.New("client is closed"), "catalog is closed")
	}
	return nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// Put writes the item only if no item with the same id exists.
func (c *DynamoDBCatalog) Put(ctx context.Context, value string) (*core.StringRecord, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	rec := properties.NewRecord(value, c.now())
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, core.Storage(err, "failed to encode string")
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, duplicateError(value)
		}
		c.log.Error().Err(err).Str("id", rec.ID).Msg("put failed")
		return nil, core.Storage(err, "failed to store string")
	}

	c.log.Debug().Str("id", rec.ID).Msg("string stored")
	return rec, nil
}

// GetByValue performs a strongly consistent read by content hash.
func (c *DynamoDBCatalog) GetByValue(ctx context.Context, value string) (*core.StringRecord, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            idKey(properties.Hash(value)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, core.Storage(err, "failed to load string")
	}
	if out.Item == nil {
		return nil, notFoundError(value)
	}

	var rec core.StringRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, core.Storage(err, "failed to decode string")
	}
	normalize(&rec)
	return &rec, nil
}

// Query scans the table and filters in process. Results are ordered by
// created_at, then id.
func (c *DynamoDBCatalog) Query(ctx context.Context, filter core.QueryFilter) ([]*core.StringRecord, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	records := make([]*core.StringRecord, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(c.tableName),
			ExclusiveStartKey: startKey,
			ConsistentRead:    aws.Bool(true),
		})
		if err != nil {
			return nil, core.Storage(err, "failed to query strings")
		}

		var page []*core.StringRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, core.Storage(err, "failed to decode strings")
		}
		for _, rec := range page {
			normalize(rec)
			if filter.Matches(rec) {
				records = append(records, rec)
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Delete removes the item only if it exists.
func (c *DynamoDBCatalog) Delete(ctx context.Context, value string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 idKey(properties.Hash(value)),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return notFoundError(value)
		}
		return core.Storage(err, "failed to delete string")
	}
	return nil
}

// Count sums COUNT scans across pages.
func (c *DynamoDBCatalog) Count(ctx context.Context) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}

	var (
		total    int64
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(c.tableName),
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, core.Storage(err, "failed to count strings")
		}
		total += int64(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Close marks the catalog closed. The SDK client has nothing to release.
func (c *DynamoDBCatalog) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.log.Info().Msg("DynamoDB catalog closed")
	}
	return nil
}

// normalize restores invariants an attribute round trip can lose:
// an empty frequency map may come back as NULL.
func normalize(rec *core.StringRecord) {
	if rec.Properties.CharacterFrequencyMap == nil {
		rec.Properties.CharacterFrequencyMap = map[string]int{}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
}

type dynamoDBFactory struct{}

func (dynamoDBFactory) Type() string { return "dynamodb" }

func (dynamoDBFactory) Validate(cfg config.CatalogConfig) error {
	return dynamo.ValidateConfig(cfg.DynamoDB)
}

func (dynamoDBFactory) Create(ctx context.Context, cfg config.CatalogConfig, log zerolog.Logger) (core.Catalog, error) {
	client, err := dynamo.NewClient(ctx, cfg.DynamoDB)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create DynamoDB catalog")
	}
	return NewDynamoDBCatalog(ctx, client, cfg.DynamoDB.TableName, log)
}

func init() {
	RegisterFactory(dynamoDBFactory{})
}
