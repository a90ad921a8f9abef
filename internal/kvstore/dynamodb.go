package kvstore

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/string-catalog/internal/config"
	"github.com/rzpsarthak13/string-catalog/internal/core"
	"github.com/rzpsarthak13/string-catalog/internal/dynamo"
	"github.com/rzpsarthak13/string-catalog/internal/logger"
)

// DynamoDB BatchWriteItem accepts at most 25 requests.
const maxBatchSize = 25

// DynamoDBKVStore implements core.KVStore on a DynamoDB table with a string
// hash key "key", a binary "value" and an epoch-seconds "ttl" attribute.
type DynamoDBKVStore struct {
	api       dynamo.API
	tableName string
	log       zerolog.Logger
	now       func() time.Time
	closed    atomic.Bool
}

// NewDynamoDBKVStore builds a store over api and checks the table is reachable.
func NewDynamoDBKVStore(ctx context.Context, api dynamo.API, tableName string, log zerolog.Logger) (*DynamoDBKVStore, error) {
	if tableName == "" {
		return nil, errors.New("table name is required")
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dynamo.CheckTable(checkCtx, api, tableName); err != nil {
		return nil, err
	}

	d := &DynamoDBKVStore{
		api:       api,
		tableName: tableName,
		log:       logger.Component(log, "dynamodb-kv"),
		now:       time.Now,
	}
	d.log.Info().Str("table", tableName).Msg("connected to DynamoDB")
	return d, nil
}

func (d *DynamoDBKVStore) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoDBKVStore) expired(item map[string]types.AttributeValue) bool {
	ttlMember, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlMember.Value, 10, 64)
	if err != nil {
		return false
	}
	// DynamoDB TTL deletion is lazy; expired items may still be returned.
	return d.now().Unix() > ttl
}

func (d *DynamoDBKVStore) item(key string, value []byte, ttl time.Duration) map[string]types.AttributeValue {
	now := d.now()
	item := map[string]types.AttributeValue{
		"key":        &types.AttributeValueMemberS{Value: key},
		"value":      &types.AttributeValueMemberB{Value: value},
		"created_at": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
	}
	if ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)}
	}
	return item
}

// Get retrieves a value by key. Expired items are reported as missing.
func (d *DynamoDBKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed.Load() {
		return nil, errClosed
	}

	result, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get key %s", key)
	}
	if result.Item == nil || d.expired(result.Item) {
		d.log.Debug().Str("key", key).Msg("key not found")
		return nil, core.ErrKeyNotFound
	}

	valueMember, ok := result.Item["value"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, errors.Newf("invalid value format for key %s", key)
	}
	d.log.Debug().Str("key", key).Int("bytes", len(valueMember.Value)).Msg("GET")
	return valueMember.Value, nil
}

// Set stores a key-value pair with an optional TTL.
func (d *DynamoDBKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.closed.Load() {
		return errClosed
	}

	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      d.item(key, value, ttl),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to set key %s", key)
	}
	d.log.Debug().Str("key", key).Int("bytes", len(value)).Dur("ttl", ttl).Msg("SET")
	return nil
}

// Delete removes a key from the store.
func (d *DynamoDBKVStore) Delete(ctx context.Context, key string) error {
	if d.closed.Load() {
		return errClosed
	}

	_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.keyAttr(key),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to delete key %s", key)
	}
	return nil
}

// Exists checks if a live key exists in the store.
func (d *DynamoDBKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if d.closed.Load() {
		return false, errClosed
	}

	result, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(d.tableName),
		Key:                      d.keyAttr(key),
		ProjectionExpression:     aws.String("#k, #t"),
		ExpressionAttributeNames: map[string]string{"#k": "key", "#t": "ttl"},
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to check existence of key %s", key)
	}
	return result.Item != nil && !d.expired(result.Item), nil
}

// BatchSet writes items in chunks of 25. DynamoDB does not make the
// whole batch atomic.
func (d *DynamoDBKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if d.closed.Load() {
		return errClosed
	}

	requests := make([]types.WriteRequest, 0, len(items))
	for key, value := range items {
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: d.item(key, value, ttl)},
		})
	}

	for i := 0; i < len(requests); i += maxBatchSize {
		end := min(i+maxBatchSize, len(requests))
		_, err := d.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				d.tableName: requests[i:end],
			},
		})
		if err != nil {
			return errors.Wrap(err, "failed to batch set keys")
		}
	}
	return nil
}

// Close marks the store closed. The SDK client holds no connection to release.
func (d *DynamoDBKVStore) Close() error {
	d.closed.Store(true)
	return nil
}

type dynamoDBFactory struct{}

func (dynamoDBFactory) Type() string { return "dynamodb" }

func (dynamoDBFactory) Validate(cfg config.CacheConfig) error {
	return dynamo.ValidateConfig(cfg.DynamoDB)
}

func (dynamoDBFactory) Create(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) (core.KVStore, error) {
	client, err := dynamo.NewClient(ctx, cfg.DynamoDB)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create DynamoDB KV store")
	}
	return NewDynamoDBKVStore(ctx, client, cfg.DynamoDB.TableName, log)
}

func init() {
	RegisterFactory(dynamoDBFactory{})
}
