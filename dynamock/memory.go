package dynamock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// MaxTransactItems is the item limit enforced on TransactWriteItems.
const MaxTransactItems = 100

// MaxBatchWriteItems is the request limit enforced on BatchWriteItem.
const MaxBatchWriteItems = 25

type memIndex struct {
	hashKey  string
	rangeKey string
}

type memTable struct {
	name     string
	hashKey  string
	rangeKey string
	indexes  map[string]memIndex
	ttl      string
	items    map[string]Item
}

// MemoryClient is an in-process DynamoDB table store. It evaluates
// condition, update, key condition and filter expressions, maintains global
// secondary indexes (including sparse ones) and applies transactions
// atomically. It is safe for concurrent use.
type MemoryClient struct {
	// Unprocessed, when set, is asked about every batch write request; the
	// requests it selects are returned as unprocessed instead of applied.
	Unprocessed func(table string, req types.WriteRequest) bool
	// Intercept, when set, runs before every call. A non-nil error is
	// returned to the caller and the call does nothing.
	Intercept func(op string, input any) error

	mu     sync.Mutex
	tables map[string]*memTable
	calls  map[string]int
}

// NewMemoryClient returns an empty MemoryClient. Create tables with
// CreateTable before use.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		tables: make(map[string]*memTable),
		calls:  make(map[string]int),
	}
}

// Calls returns how many times op ("Query", "GetItem", ...) was invoked.
func (m *MemoryClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// ResetCalls zeroes the call counters.
func (m *MemoryClient) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[string]int)
}

// Items returns a copy of every item of a table, sorted by primary key.
func (m *MemoryClient) Items(tableName string) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, ok := m.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]Item, 0, len(tbl.items))
	for _, item := range tbl.items {
		out = append(out, copyItem(item))
	}
	sort.Slice(out, func(i, j int) bool {
		return tbl.order(out[i], out[j], "") < 0
	})
	return out
}

// Seed writes items directly, bypassing conditions and call counters.
func (m *MemoryClient) Seed(tableName string, items ...Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, err := m.table(&tableName)
	if err != nil {
		return err
	}
	for _, item := range items {
		key, err := tbl.keyOf(item)
		if err != nil {
			return err
		}
		tbl.items[key] = copyItem(item)
	}
	return nil
}

func (m *MemoryClient) begin(op string, input any) error {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()

	if m.Intercept != nil {
		return m.Intercept(op, input)
	}
	return nil
}

func validationError(format string, args ...any) error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: fmt.Sprintf(format, args...),
		Fault:   smithy.FaultClient,
	}
}

func (m *MemoryClient) table(name *string) (*memTable, error) {
	tbl, ok := m.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String("Requested resource not found: table " + aws.ToString(name)),
		}
	}
	return tbl, nil
}

func scalarKey(v types.AttributeValue) (string, bool) {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + tv.Value, true
	case *types.AttributeValueMemberN:
		return "N:" + tv.Value, true
	case *types.AttributeValueMemberB:
		return fmt.Sprintf("B:%x", tv.Value), true
	}
	return "", false
}

// keyOf returns the storage key of item, failing when a key attribute is
// missing or not a scalar.
func (t *memTable) keyOf(item Item) (string, error) {
	hash, ok := scalarKey(item[t.hashKey])
	if !ok {
		return "", validationError("missing or invalid key attribute %s", t.hashKey)
	}
	if t.rangeKey == "" {
		return hash, nil
	}
	rng, ok := scalarKey(item[t.rangeKey])
	if !ok {
		return "", validationError("missing or invalid key attribute %s", t.rangeKey)
	}
	return hash + "\x00" + rng, nil
}

func (t *memTable) primaryKey(item Item) Item {
	key := Item{t.hashKey: copyValue(item[t.hashKey])}
	if t.rangeKey != "" {
		key[t.rangeKey] = copyValue(item[t.rangeKey])
	}
	return key
}

// order compares two items by the given range key, then by primary key.
func (t *memTable) order(a, b Item, rangeKey string) int {
	for _, name := range []string{rangeKey, t.hashKey, t.rangeKey} {
		if name == "" {
			continue
		}
		if cmp, ok := compareValues(a[name], b[name]); ok && cmp != 0 {
			return cmp
		}
	}
	return 0
}

func conditionHolds(expr *string, names map[string]string, values map[string]types.AttributeValue, item Item) (bool, error) {
	if aws.ToString(expr) == "" {
		return true, nil
	}
	cond, err := parseCondition(*expr, names, values)
	if err != nil {
		return false, validationError("invalid ConditionExpression: %v", err)
	}
	return cond.eval(item), nil
}

func conditionFailed(item Item, mode types.ReturnValuesOnConditionCheckFailure) error {
	err := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	if mode == types.ReturnValuesOnConditionCheckFailureAllOld && item != nil {
		err.Item = copyItem(item)
	}
	return err
}

// computeUpdate applies an update expression to existing, or to a new item
// holding only key when existing is nil.
func (t *memTable) computeUpdate(existing, key Item, expr *string, names map[string]string, values map[string]types.AttributeValue) (Item, error) {
	actions, err := parseUpdate(aws.ToString(expr), names, values)
	if err != nil {
		return nil, validationError("invalid UpdateExpression: %v", err)
	}
	for _, a := range actions {
		if a.path[0] == t.hashKey || a.path[0] == t.rangeKey {
			return nil, validationError("cannot update attribute %s; this attribute is part of the key", a.path[0])
		}
	}

	base := existing
	if base == nil {
		base = copyItem(key)
	}
	next, err := applyUpdate(base, actions)
	if err != nil {
		return nil, validationError("%v", err)
	}
	return next, nil
}

// CreateTable registers a table with its key schema and global secondary
// indexes.
func (m *MemoryClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if err := m.begin("CreateTable", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	name := aws.ToString(params.TableName)
	if _, exists := m.tables[name]; exists {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}

	tbl := &memTable{name: name, indexes: make(map[string]memIndex), items: make(map[string]Item)}
	tbl.hashKey, tbl.rangeKey = keySchema(params.KeySchema)
	if tbl.hashKey == "" {
		return nil, validationError("table %s has no hash key", name)
	}
	for _, gsi := range params.GlobalSecondaryIndexes {
		hash, rng := keySchema(gsi.KeySchema)
		tbl.indexes[aws.ToString(gsi.IndexName)] = memIndex{hashKey: hash, rangeKey: rng}
	}
	m.tables[name] = tbl

	return &dynamodb.CreateTableOutput{TableDescription: &types.TableDescription{
		TableName:   aws.String(name),
		TableStatus: types.TableStatusActive,
	}}, nil
}

func keySchema(elements []types.KeySchemaElement) (hash, rng string) {
	for _, e := range elements {
		switch e.KeyType {
		case types.KeyTypeHash:
			hash = aws.ToString(e.AttributeName)
		case types.KeyTypeRange:
			rng = aws.ToString(e.AttributeName)
		}
	}
	return hash, rng
}

// UpdateTimeToLive records the TTL attribute of a table. Items are never
// expired.
func (m *MemoryClient) UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	if err := m.begin("UpdateTimeToLive", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.TimeToLiveSpecification != nil {
		tbl.ttl = aws.ToString(params.TimeToLiveSpecification.AttributeName)
	}
	return &dynamodb.UpdateTimeToLiveOutput{TimeToLiveSpecification: params.TimeToLiveSpecification}, nil
}

// DescribeTable reports a registered table as active.
func (m *MemoryClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if err := m.begin("DescribeTable", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   aws.String(tbl.name),
		TableStatus: types.TableStatusActive,
		ItemCount:   aws.Int64(int64(len(tbl.items))),
	}}, nil
}

// PutItem stores an item, replacing any item with the same key.
func (m *MemoryClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := m.begin("PutItem", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := tbl.keyOf(params.Item)
	if err != nil {
		return nil, err
	}

	existing := tbl.items[key]
	ok, err := conditionHolds(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(existing, params.ReturnValuesOnConditionCheckFailure)
	}

	tbl.items[key] = copyItem(params.Item)
	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && existing != nil {
		out.Attributes = copyItem(existing)
	}
	return out, nil
}

// GetItem returns the item with the given key, or an empty output.
func (m *MemoryClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := m.begin("GetItem", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := tbl.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: copyItem(tbl.items[key])}, nil
}

// DeleteItem removes the item with the given key.
func (m *MemoryClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := m.begin("DeleteItem", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := tbl.keyOf(params.Key)
	if err != nil {
		return nil, err
	}

	existing := tbl.items[key]
	ok, err := conditionHolds(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(existing, params.ReturnValuesOnConditionCheckFailure)
	}

	delete(tbl.items, key)
	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && existing != nil {
		out.Attributes = copyItem(existing)
	}
	return out, nil
}

// UpdateItem applies an update expression, creating the item when it does
// not exist and the condition allows it.
func (m *MemoryClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if err := m.begin("UpdateItem", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := tbl.keyOf(params.Key)
	if err != nil {
		return nil, err
	}

	existing := tbl.items[key]
	ok, err := conditionHolds(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(existing, params.ReturnValuesOnConditionCheckFailure)
	}

	next, err := tbl.computeUpdate(existing, params.Key, params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	tbl.items[key] = next

	out := &dynamodb.UpdateItemOutput{}
	switch params.ReturnValues {
	case types.ReturnValueAllNew:
		out.Attributes = copyItem(next)
	case types.ReturnValueAllOld:
		out.Attributes = copyItem(existing)
	}
	return out, nil
}

// BatchWriteItem applies put and delete requests without conditions.
func (m *MemoryClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if err := m.begin("BatchWriteItem", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, reqs := range params.RequestItems {
		total += len(reqs)
	}
	if total == 0 || total > MaxBatchWriteItems {
		return nil, validationError("batch write must contain between 1 and %d requests, got %d", MaxBatchWriteItems, total)
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for name, reqs := range params.RequestItems {
		tbl, err := m.table(aws.String(name))
		if err != nil {
			return nil, err
		}
		for _, req := range reqs {
			if m.Unprocessed != nil && m.Unprocessed(name, req) {
				out.UnprocessedItems[name] = append(out.UnprocessedItems[name], req)
				continue
			}
			switch {
			case req.PutRequest != nil:
				key, err := tbl.keyOf(req.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				tbl.items[key] = copyItem(req.PutRequest.Item)
			case req.DeleteRequest != nil:
				key, err := tbl.keyOf(req.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				delete(tbl.items, key)
			}
		}
	}
	return out, nil
}

// Query reads one partition of the table or of a global secondary index.
// Items are evaluated in range key order; Limit bounds the evaluated items
// before the filter is applied, as DynamoDB does.
func (m *MemoryClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := m.begin("Query", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, err := m.table(params.TableName)
	if err != nil {
		return nil, err
	}

	hashKey, rangeKey := tbl.hashKey, tbl.rangeKey
	if name := aws.ToString(params.IndexName); name != "" {
		idx, ok := tbl.indexes[name]
		if !ok {
			return nil, validationError("the table does not have the specified index: %s", name)
		}
		if aws.ToBool(params.ConsistentRead) {
			return nil, validationError("consistent reads are not supported on global secondary indexes")
		}
		hashKey, rangeKey = idx.hashKey, idx.rangeKey
	}

	if aws.ToString(params.KeyConditionExpression) == "" {
		return nil, validationError("KeyConditionExpression is required")
	}
	keyCond, err := parseCondition(*params.KeyConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, validationError("invalid KeyConditionExpression: %v", err)
	}

	var filter condition
	if expr := aws.ToString(params.FilterExpression); expr != "" {
		if filter, err = parseCondition(expr, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
			return nil, validationError("invalid FilterExpression: %v", err)
		}
	}

	var candidates []Item
	for _, item := range tbl.items {
		if _, ok := item[hashKey]; !ok {
			continue
		}
		if _, ok := item[rangeKey]; rangeKey != "" && !ok {
			continue
		}
		if keyCond.eval(item) {
			candidates = append(candidates, item)
		}
	}

	forward := params.ScanIndexForward == nil || *params.ScanIndexForward
	sort.Slice(candidates, func(i, j int) bool {
		cmp := tbl.order(candidates[i], candidates[j], rangeKey)
		if forward {
			return cmp < 0
		}
		return cmp > 0
	})

	start := 0
	if len(params.ExclusiveStartKey) > 0 {
		for start < len(candidates) {
			cmp := tbl.order(candidates[start], params.ExclusiveStartKey, rangeKey)
			if (forward && cmp > 0) || (!forward && cmp < 0) {
				break
			}
			start++
		}
	}

	limit := int(aws.ToInt32(params.Limit))
	out := &dynamodb.QueryOutput{}
	evaluated := 0
	for i := start; i < len(candidates); i++ {
		if limit > 0 && evaluated == limit {
			last := candidates[i-1]
			out.LastEvaluatedKey = tbl.primaryKey(last)
			if hashKey != tbl.hashKey {
				out.LastEvaluatedKey[hashKey] = copyValue(last[hashKey])
				if rangeKey != "" {
					out.LastEvaluatedKey[rangeKey] = copyValue(last[rangeKey])
				}
			}
			break
		}
		evaluated++
		if filter == nil || filter.eval(candidates[i]) {
			out.Items = append(out.Items, copyItem(candidates[i]))
		}
	}

	out.Count = int32(len(out.Items))
	out.ScannedCount = int32(evaluated)
	return out, nil
}

// TransactWriteItems applies every write or none. All conditions are
// evaluated against the state before the transaction; when any fails a
// TransactionCanceledException with one reason per item is returned.
func (m *MemoryClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if err := m.begin("TransactWriteItems", params); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(params.TransactItems)
	if n == 0 || n > MaxTransactItems {
		return nil, validationError("transaction must contain between 1 and %d items, got %d", MaxTransactItems, n)
	}

	type write struct {
		tbl  *memTable
		key  string
		item Item // nil deletes
		skip bool // condition check only
	}

	var (
		writes  = make([]write, n)
		reasons = make([]types.CancellationReason, n)
		seen    = make(map[string]bool)
		failed  bool
	)

	for i, twi := range params.TransactItems {
		var (
			tableName *string
			keyItem   Item
			cond      *string
			names     map[string]string
			values    map[string]types.AttributeValue
			mode      types.ReturnValuesOnConditionCheckFailure
		)
		switch {
		case twi.Put != nil:
			tableName, keyItem, cond = twi.Put.TableName, twi.Put.Item, twi.Put.ConditionExpression
			names, values, mode = twi.Put.ExpressionAttributeNames, twi.Put.ExpressionAttributeValues, twi.Put.ReturnValuesOnConditionCheckFailure
		case twi.Update != nil:
			tableName, keyItem, cond = twi.Update.TableName, twi.Update.Key, twi.Update.ConditionExpression
			names, values, mode = twi.Update.ExpressionAttributeNames, twi.Update.ExpressionAttributeValues, twi.Update.ReturnValuesOnConditionCheckFailure
		case twi.Delete != nil:
			tableName, keyItem, cond = twi.Delete.TableName, twi.Delete.Key, twi.Delete.ConditionExpression
			names, values, mode = twi.Delete.ExpressionAttributeNames, twi.Delete.ExpressionAttributeValues, twi.Delete.ReturnValuesOnConditionCheckFailure
		case twi.ConditionCheck != nil:
			tableName, keyItem, cond = twi.ConditionCheck.TableName, twi.ConditionCheck.Key, twi.ConditionCheck.ConditionExpression
			names, values, mode = twi.ConditionCheck.ExpressionAttributeNames, twi.ConditionCheck.ExpressionAttributeValues, twi.ConditionCheck.ReturnValuesOnConditionCheckFailure
		default:
			return nil, validationError("transaction item %d has no operation", i)
		}

		tbl, err := m.table(tableName)
		if err != nil {
			return nil, err
		}
		key, err := tbl.keyOf(keyItem)
		if err != nil {
			return nil, err
		}
		if seen[tbl.name+"|"+key] {
			return nil, validationError("transaction request cannot include multiple operations on one item")
		}
		seen[tbl.name+"|"+key] = true

		existing := tbl.items[key]
		ok, err := conditionHolds(cond, names, values, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			failed = true
			reasons[i] = types.CancellationReason{
				Code:    aws.String("ConditionalCheckFailed"),
				Message: aws.String("The conditional request failed"),
			}
			if mode == types.ReturnValuesOnConditionCheckFailureAllOld && existing != nil {
				reasons[i].Item = copyItem(existing)
			}
			continue
		}
		reasons[i] = types.CancellationReason{Code: aws.String("None")}

		w := write{tbl: tbl, key: key}
		switch {
		case twi.Put != nil:
			w.item = copyItem(twi.Put.Item)
		case twi.Update != nil:
			if w.item, err = tbl.computeUpdate(existing, twi.Update.Key, twi.Update.UpdateExpression, names, values); err != nil {
				return nil, err
			}
		case twi.ConditionCheck != nil:
			w.skip = true
		}
		writes[i] = w
	}

	if failed {
		codes := make([]string, n)
		for i, r := range reasons {
			codes[i] = aws.ToString(r.Code)
		}
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons [" + strings.Join(codes, ", ") + "]"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range writes {
		switch {
		case w.skip:
		case w.item == nil:
			delete(w.tbl.items, w.key)
		default:
			w.tbl.items[w.key] = w.item
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
