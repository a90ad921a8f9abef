// Package dynamotest provides an in-memory stand-in for the DynamoDB API.
// It understands the small expression vocabulary the backends emit:
// attribute_exists / attribute_not_exists conditions, paginated scans and
// COUNT selects.
package dynamotest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var conditionRe = regexp.MustCompile(`^(attribute_exists|attribute_not_exists)\((\w+)\)$`)

type table struct {
	hashKey string
	items   map[string]map[string]types.AttributeValue
}

// Fake is a concurrency-safe in-memory DynamoDB.
type Fake struct {
	mu     sync.Mutex
	tables map[string]*table

	// Err, when set, is returned by every call.
	Err error
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{tables: make(map[string]*table)}
}

// CreateTable registers a table keyed by a string hash key.
func (f *Fake) CreateTable(name, hashKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{hashKey: hashKey, items: make(map[string]map[string]types.AttributeValue)}
}

// Len returns the number of items in a table.
func (f *Fake) Len(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[name]; ok {
		return len(t.items)
	}
	return 0
}

func (f *Fake) table(name *string) (*table, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	t, ok := f.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + aws.ToString(name))}
	}
	return t, nil
}

func keyOf(t *table, item map[string]types.AttributeValue) (string, error) {
	v, ok := item[t.hashKey].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing string hash key %q", t.hashKey)
	}
	return v.Value, nil
}

func checkCondition(expr *string, existing bool) error {
	if expr == nil {
		return nil
	}
	m := conditionRe.FindStringSubmatch(aws.ToString(expr))
	if m == nil {
		return fmt.Errorf("unsupported condition expression %q", aws.ToString(expr))
	}
	if (m[1] == "attribute_exists") != existing {
		return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	return nil
}

func (f *Fake) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.table(in.TableName); err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName}}, nil
}

func (f *Fake) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyOf(t, in.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: t.items[k]}, nil
}

func (f *Fake) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyOf(t, in.Item)
	if err != nil {
		return nil, err
	}
	_, exists := t.items[k]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	t.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *Fake) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyOf(t, in.Key)
	if err != nil {
		return nil, err
	}
	_, exists := t.items[k]
	if err := checkCondition(in.ConditionExpression, exists); err != nil {
		return nil, err
	}
	delete(t.items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *Fake) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, reqs := range in.RequestItems {
		t, err := f.table(aws.String(name))
		if err != nil {
			return nil, err
		}
		for _, r := range reqs {
			switch {
			case r.PutRequest != nil:
				k, err := keyOf(t, r.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				t.items[k] = r.PutRequest.Item
			case r.DeleteRequest != nil:
				k, err := keyOf(t, r.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				delete(t.items, k)
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// Scan walks items in key order. Limit and ExclusiveStartKey paginate.
func (f *Fake) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		after, err := keyOf(t, in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}

	end := len(keys)
	if in.Limit != nil && start+int(*in.Limit) < end {
		end = start + int(*in.Limit)
	}

	out := &dynamodb.ScanOutput{}
	page := keys[start:end]
	if in.Select != types.SelectCount {
		for _, k := range page {
			out.Items = append(out.Items, t.items[k])
		}
	}
	out.Count = int32(len(page))
	out.ScannedCount = out.Count
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			t.hashKey: &types.AttributeValueMemberS{Value: keys[end-1]},
		}
	}
	return out, nil
}
