package hangoutstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// QueryMarshaler can marshal input into a dynamodb query request.
type QueryMarshaler interface {
	MarshalQuery(*Table) (*dynamodb.QueryInput, error)
}

// PartitionQuery is a QueryMarshaler that reads an item collection: every
// item sharing one partition key, optionally narrowed by a sort key condition.
type PartitionQuery struct {
	PartitionKey    string                         // The partition key (pk)
	SortKeyFilter   expression.KeyConditionBuilder // Optional condition on the sort key
	ConditionFilter expression.ConditionBuilder    // Optional filter applied after the read
	Limit           int                            // Maximum number of items to return
	StartKey        Item                           // Exclusive start key for pagination
	SortDescending  bool                           // Scan direction (default: false)
	ConsistentRead  bool
}

// MarshalQuery implements QueryMarshaler for PartitionQuery.
func (q *PartitionQuery) MarshalQuery(t *Table) (*dynamodb.QueryInput, error) {
	if q.PartitionKey == "" {
		return nil, fmt.Errorf("%w: empty partition key", ErrInvalidInput)
	}

	keyCondition := expression.Key(AttributeNamePK).Equal(expression.Value(q.PartitionKey))
	input, err := buildQuery(keyCondition, q.SortKeyFilter, q.ConditionFilter)
	if err != nil {
		return nil, err
	}

	input.ScanIndexForward = aws.Bool(!q.SortDescending)
	if q.ConsistentRead {
		input.ConsistentRead = aws.Bool(true)
	}
	applyPaging(input, q.Limit, q.StartKey)
	return input, nil
}

// Index identifies one of the secondary indexes of the table.
type Index int

const (
	IndexGSI1 Index = iota + 1
	IndexGSI2
	IndexExternalID
)

// keyNames returns the partition and sort key attribute names of the index.
func (i Index) keyNames() (string, string) {
	switch i {
	case IndexGSI1:
		return AttributeNameGSI1PK, AttributeNameGSI1SK
	case IndexGSI2:
		return AttributeNameGSI2PK, AttributeNameGSI2SK
	case IndexExternalID:
		return AttributeNameExternalID, AttributeNameExternalSource
	}
	return "", ""
}

func (i Index) name(t *Table) string {
	switch i {
	case IndexGSI1:
		return t.GSI1IndexName
	case IndexGSI2:
		return t.GSI2IndexName
	case IndexExternalID:
		return t.ExternalIDIndexName
	}
	return ""
}

// IndexQuery is a QueryMarshaler that searches one of the secondary indexes.
// Indexes are shared by several entity types, so results must be filtered by
// item type before use.
type IndexQuery struct {
	Index           Index                          // The index to search
	PartitionKey    string                         // Value of the index partition key
	SortKeyFilter   expression.KeyConditionBuilder // Optional condition on the index sort key
	ConditionFilter expression.ConditionBuilder    // Optional filter applied after the read
	Limit           int                            // Maximum number of items to return
	StartKey        Item                           // Exclusive start key for pagination
	SortDescending  bool                           // If true, scans backward
}

// MarshalQuery implements QueryMarshaler for IndexQuery.
func (q *IndexQuery) MarshalQuery(t *Table) (*dynamodb.QueryInput, error) {
	pkName, _ := q.Index.keyNames()
	if pkName == "" {
		return nil, fmt.Errorf("%w: unknown index %d", ErrInvalidInput, q.Index)
	}
	if q.PartitionKey == "" {
		return nil, fmt.Errorf("%w: empty index partition key", ErrInvalidInput)
	}

	keyCondition := expression.Key(pkName).Equal(expression.Value(q.PartitionKey))
	input, err := buildQuery(keyCondition, q.SortKeyFilter, q.ConditionFilter)
	if err != nil {
		return nil, err
	}

	input.IndexName = aws.String(q.Index.name(t))
	input.ScanIndexForward = aws.Bool(!q.SortDescending)
	applyPaging(input, q.Limit, q.StartKey)
	return input, nil
}

// SortKey returns the name of the sort key attribute of the index, for
// building SortKeyFilter conditions.
func (i Index) SortKey() string {
	_, sk := i.keyNames()
	return sk
}

func buildQuery(keyCondition, sortFilter expression.KeyConditionBuilder, filter expression.ConditionBuilder) (*dynamodb.QueryInput, error) {
	if sortFilter.IsSet() {
		keyCondition = keyCondition.And(sortFilter)
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCondition)
	if filter.IsSet() {
		builder = builder.WithFilter(filter)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if filter.IsSet() {
		input.FilterExpression = expr.Filter()
	}
	return input, nil
}

func applyPaging(input *dynamodb.QueryInput, limit int, startKey Item) {
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	if len(startKey) > 0 {
		input.ExclusiveStartKey = startKey
	}
}

// QueryPage runs a single page of q and returns the raw items together with
// the last evaluated key.
func QueryPage(ctx context.Context, client DynamoDBClient, t *Table, q QueryMarshaler) ([]Item, Item, error) {
	input, err := t.MarshalQuery(q)
	if err != nil {
		return nil, nil, err
	}

	out, err := client.Query(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return out.Items, out.LastEvaluatedKey, nil
}

// QueryAll runs q and follows LastEvaluatedKey until the result set is
// exhausted. It fails once the table's page cap is reached rather than
// returning a truncated collection.
func QueryAll(ctx context.Context, client DynamoDBClient, t *Table, q QueryMarshaler) ([]Item, error) {
	input, err := t.MarshalQuery(q)
	if err != nil {
		return nil, err
	}

	var items []Item
	for page := 0; ; page++ {
		if page >= t.maxPages() {
			return nil, fmt.Errorf("query exceeded %d pages", t.maxPages())
		}

		out, err := client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)

		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
