package hangoutstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	// MaxBatchSize is the maximum number of items allowed in a DynamoDB batch operation.
	MaxBatchSize = 25
	// MaxTransactItems is the maximum number of items allowed in a DynamoDB transaction.
	MaxTransactItems = 100
	// DefaultMaxPages bounds how many pages a single partition read follows.
	DefaultMaxPages = 100
)

// Index names of the default table schema.
const (
	DefaultGSI1IndexName       = "gsi1"
	DefaultGSI2IndexName       = "gsi2"
	DefaultExternalIDIndexName = "externalIdIndex"
)

// ErrInvalidInput is returned when an operation is called with arguments that
// can never succeed.
var ErrInvalidInput = errors.New("invalid input")

// Table contains DynamoDB table configuration shared by every store operation.
type Table struct {
	TableName           string        // Main table name
	GSI1IndexName       string        // Index over gsi1pk/gsi1sk
	GSI2IndexName       string        // Index over gsi2pk/gsi2sk
	ExternalIDIndexName string        // Index over externalId/externalSource
	BatchSize           int           // Items per batch write or chunked transaction. Default is 25.
	MaxTransactItems    int           // Upper bound on items in one transaction. Default is 100.
	MaxPages            int           // Safety cap on pages followed by a single read
	PaginationTTL       time.Duration // TTL for pagination cursors stored in table
	StoreCursors        bool          // Keep page cursors in the table instead of encoding keys into tokens
	// LegacyTypeInference classifies items without an itemType attribute by
	// their key shape instead of skipping them.
	LegacyTypeInference bool
	Logger              *zap.Logger
	Metrics             *Metrics
	Tick                Clock
	Registry            *Registry
}

// NewTable creates a new Table with default configuration.
func NewTable(tableName string, opts ...func(*Table)) *Table {
	t := &Table{
		TableName:           tableName,
		GSI1IndexName:       DefaultGSI1IndexName,
		GSI2IndexName:       DefaultGSI2IndexName,
		ExternalIDIndexName: DefaultExternalIDIndexName,
		BatchSize:           MaxBatchSize,
		MaxTransactItems:    MaxTransactItems,
		MaxPages:            DefaultMaxPages,
		PaginationTTL:       24 * time.Hour,
		LegacyTypeInference: true,
		Logger:              zap.NewNop(),
		Tick:                DefaultClock,
		Registry:            defaultRegistry,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func (t *Table) now() time.Time {
	if t.Tick == nil {
		return DefaultClock()
	}
	return t.Tick()
}

func (t *Table) batchSize() int {
	if t.BatchSize <= 0 || t.BatchSize > MaxBatchSize {
		return MaxBatchSize
	}
	return t.BatchSize
}

func (t *Table) maxTransactItems() int {
	if t.MaxTransactItems <= 0 || t.MaxTransactItems > MaxTransactItems {
		return MaxTransactItems
	}
	return t.MaxTransactItems
}

func (t *Table) maxPages() int {
	if t.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return t.MaxPages
}

func (t *Table) registry() *Registry {
	if t.Registry == nil {
		return defaultRegistry
	}
	return t.Registry
}

func (t *Table) marshal(in Entity, opts ...func(*MarshalOptions)) (Item, error) {
	return MarshalItem(in, func(mo *MarshalOptions) {
		mo.Tick = t.now
		mo.apply(opts)
	})
}

// MarshalPut marshals the input into an unconditional put item request.
func (t *Table) MarshalPut(in Entity, opts ...func(*MarshalOptions)) (*dynamodb.PutItemInput, error) {
	item, err := t.marshal(in, opts...)
	if err != nil {
		return nil, err
	}

	return &dynamodb.PutItemInput{
		TableName: aws.String(t.TableName),
		Item:      item,
	}, nil
}

// MarshalCreate marshals the input into a put item request that fails when
// an item with the same key already exists. A zero version is set to 1.
func (t *Table) MarshalCreate(in Entity, opts ...func(*MarshalOptions)) (*dynamodb.PutItemInput, error) {
	if in.Base().Version == 0 {
		in.Base().Version = 1
	}

	input, err := t.MarshalPut(in, opts...)
	if err != nil {
		return nil, err
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(AttributeNamePK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input.ConditionExpression = expr.Condition()
	input.ExpressionAttributeNames = expr.Names()
	return input, nil
}

// MarshalGet marshals the key into a get item request.
func (t *Table) MarshalGet(pk, sk string) *dynamodb.GetItemInput {
	return &dynamodb.GetItemInput{
		TableName: aws.String(t.TableName),
		Key:       itemKey(pk, sk),
	}
}

// MarshalDelete marshals the key into a delete item request.
func (t *Table) MarshalDelete(pk, sk string) *dynamodb.DeleteItemInput {
	return &dynamodb.DeleteItemInput{
		TableName: aws.String(t.TableName),
		Key:       itemKey(pk, sk),
	}
}

// MarshalBatchPut marshals the entities into batch write put requests. Since
// there is a limit on how many requests can be contained in a single input,
// the requests are chunked in sizes of BatchSize or less.
func (t *Table) MarshalBatchPut(in []Entity, opts ...func(*MarshalOptions)) ([]*dynamodb.BatchWriteItemInput, error) {
	requests := make([]types.WriteRequest, 0, len(in))
	for _, e := range in {
		item, err := t.marshal(e, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T: %w", e, err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return t.chunkWrites(requests), nil
}

// MarshalBatchDelete marshals the keys into batch write delete requests,
// chunked in sizes of BatchSize or less.
func (t *Table) MarshalBatchDelete(keys []Item) []*dynamodb.BatchWriteItemInput {
	requests := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
	}
	return t.chunkWrites(requests)
}

func (t *Table) chunkWrites(requests []types.WriteRequest) []*dynamodb.BatchWriteItemInput {
	var (
		size    = t.batchSize()
		batches []*dynamodb.BatchWriteItemInput
	)

	for i := 0; i < len(requests); i += size {
		end := i + size
		if end > len(requests) {
			end = len(requests)
		}

		batches = append(batches, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				t.TableName: requests[i:end],
			},
		})
	}

	return batches
}

// MarshalQuery marshals the input into a query request against this table.
func (t *Table) MarshalQuery(in QueryMarshaler) (*dynamodb.QueryInput, error) {
	input, err := in.MarshalQuery(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	input.TableName = aws.String(t.TableName)
	return input, nil
}

// decode converts query results into entities. Items of an unknown type are
// logged and skipped; any other decoding failure is returned.
func (t *Table) decode(items []Item) ([]Entity, error) {
	out := make([]Entity, 0, len(items))
	for _, item := range items {
		e, err := t.registry().Decode(item, t.LegacyTypeInference)
		if errors.Is(err, ErrUnknownItemType) {
			pk, sk, _ := UnmarshalTableKey(item)
			itemType, _ := item[AttributeNameItemType].(*types.AttributeValueMemberS)
			label := ""
			if itemType != nil {
				label = itemType.Value
			}
			t.logger().Warn("skipping item of unknown type",
				zap.String("pk", pk),
				zap.String("sk", sk),
				zap.String("itemType", label))
			t.Metrics.skipped(label)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
