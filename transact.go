package hangoutstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TransactionBuilder accumulates the writes of one all-or-nothing
// TransactWriteItems request. The first error encountered is kept and
// reported by Build.
type TransactionBuilder struct {
	table *Table
	items []types.TransactWriteItem
	keys  map[string]struct{}
	err   error
}

// NewTransaction starts an empty transaction against t.
func (t *Table) NewTransaction() *TransactionBuilder {
	return &TransactionBuilder{table: t, keys: make(map[string]struct{})}
}

// Len returns the number of writes added so far.
func (b *TransactionBuilder) Len() int { return len(b.items) }

func (b *TransactionBuilder) fail(err error) *TransactionBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// claim records key and reports whether it was already part of the
// transaction. DynamoDB rejects transactions touching an item twice.
func (b *TransactionBuilder) claim(key Item) bool {
	pk, sk, err := UnmarshalTableKey(key)
	if err != nil {
		b.fail(err)
		return false
	}
	id := pk + "|" + sk
	if _, ok := b.keys[id]; ok {
		b.fail(fmt.Errorf("%w: item %s %s appears twice in one transaction", ErrInvalidInput, pk, sk))
		return false
	}
	b.keys[id] = struct{}{}
	return true
}

// Create adds a put of in that fails when the item already exists. A zero
// version is initialised to 1.
func (b *TransactionBuilder) Create(in Entity) *TransactionBuilder {
	if in.Base().Version == 0 {
		in.Base().Version = 1
	}
	return b.put(in, expression.AttributeNotExists(expression.Name(AttributeNamePK)))
}

// Put adds an unconditional full item replacement of in.
func (b *TransactionBuilder) Put(in Entity) *TransactionBuilder {
	return b.put(in, expression.ConditionBuilder{})
}

func (b *TransactionBuilder) put(in Entity, cond expression.ConditionBuilder) *TransactionBuilder {
	item, err := b.table.marshal(in)
	if err != nil {
		return b.fail(err)
	}
	if !b.claim(itemKey(in.Base().PK, in.Base().SK)) {
		return b
	}

	put := &types.Put{
		TableName: aws.String(b.table.TableName),
		Item:      item,
	}

	if cond.IsSet() {
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return b.fail(fmt.Errorf("failed to build expression: %w", err))
		}
		put.ConditionExpression = expr.Condition()
		put.ExpressionAttributeNames = expr.Names()
		put.ExpressionAttributeValues = expr.Values()
	}

	b.items = append(b.items, types.TransactWriteItem{Put: put})
	return b
}

// Update adds an update of the item at key. An unset cond makes the update
// unconditional; note that DynamoDB then creates the item if it is missing.
func (b *TransactionBuilder) Update(key Item, update expression.UpdateBuilder, cond expression.ConditionBuilder) *TransactionBuilder {
	if !b.claim(key) {
		return b
	}

	builder := expression.NewBuilder().WithUpdate(update)
	if cond.IsSet() {
		builder = builder.WithCondition(cond)
	}

	expr, err := builder.Build()
	if err != nil {
		return b.fail(fmt.Errorf("failed to build expression: %w", err))
	}

	u := &types.Update{
		TableName:                 aws.String(b.table.TableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if cond.IsSet() {
		u.ConditionExpression = expr.Condition()
	}

	b.items = append(b.items, types.TransactWriteItem{Update: u})
	return b
}

// UpdateVersioned adds update to the item at key, incrementing its version
// and refreshing updatedAt. The write only applies while the stored version
// equals expected.
func (b *TransactionBuilder) UpdateVersioned(key Item, expected int64, update expression.UpdateBuilder) *TransactionBuilder {
	return b.Update(key, bumpVersion(update, b.table), versionIs(expected))
}

// ReplaceWhere adds a versioned update writing every attribute of in, guarded
// by in.Version and cond when set. Optional attributes that in leaves empty are
// removed. The attributes named in preserve are left untouched.
func (b *TransactionBuilder) ReplaceWhere(in Entity, cond expression.ConditionBuilder, preserve ...string) *TransactionBuilder {
	update, err := replaceUpdate(b.table, in, preserve...)
	if err != nil {
		return b.fail(err)
	}

	guard := versionIs(in.Base().Version)
	if cond.IsSet() {
		guard = guard.And(cond)
	}
	return b.Update(in.Base().Key(), bumpVersion(update, b.table), guard)
}

// Delete adds a delete of the item at key, guarded by cond when set.
func (b *TransactionBuilder) Delete(key Item, cond expression.ConditionBuilder) *TransactionBuilder {
	if !b.claim(key) {
		return b
	}

	del := &types.Delete{
		TableName: aws.String(b.table.TableName),
		Key:       key,
	}

	if cond.IsSet() {
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return b.fail(fmt.Errorf("failed to build expression: %w", err))
		}
		del.ConditionExpression = expr.Condition()
		del.ExpressionAttributeNames = expr.Names()
		del.ExpressionAttributeValues = expr.Values()
	}

	b.items = append(b.items, types.TransactWriteItem{Delete: del})
	return b
}

// DeleteVersioned adds a delete of the item at key that only applies while
// the stored version equals expected.
func (b *TransactionBuilder) DeleteVersioned(key Item, expected int64) *TransactionBuilder {
	return b.Delete(key, versionIs(expected))
}

// ConditionCheck adds a check on the item at key without writing it.
func (b *TransactionBuilder) ConditionCheck(key Item, cond expression.ConditionBuilder) *TransactionBuilder {
	if !b.claim(key) {
		return b
	}

	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return b.fail(fmt.Errorf("failed to build expression: %w", err))
	}

	b.items = append(b.items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
		TableName:                 aws.String(b.table.TableName),
		Key:                       key,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}})
	return b
}

// Build returns the request, or the first error recorded while building.
func (b *TransactionBuilder) Build() (*dynamodb.TransactWriteItemsInput, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.items) == 0 {
		return nil, fmt.Errorf("%w: empty transaction", ErrInvalidInput)
	}
	if len(b.items) > b.table.maxTransactItems() {
		return nil, fmt.Errorf("%w: transaction has %d items, limit is %d",
			ErrInvalidInput, len(b.items), b.table.maxTransactItems())
	}

	return &dynamodb.TransactWriteItemsInput{TransactItems: b.items}, nil
}

func versionIs(expected int64) expression.ConditionBuilder {
	return expression.Name(AttributeNameVersion).Equal(expression.Value(expected))
}

func exists() expression.ConditionBuilder {
	return expression.AttributeExists(expression.Name(AttributeNamePK))
}

func bumpVersion(update expression.UpdateBuilder, t *Table) expression.UpdateBuilder {
	return update.
		Set(expression.Name(AttributeNameVersion), expression.Name(AttributeNameVersion).Plus(expression.Value(1))).
		Set(expression.Name(AttributeNameUpdatedAt), expression.Value(t.now()))
}

// replaceUpdate turns the marshaled form of in into SET and REMOVE actions.
// Key attributes, the version counter and both timestamps are managed
// elsewhere and never appear in the result.
func replaceUpdate(t *Table, in Entity, preserve ...string) (expression.UpdateBuilder, error) {
	var update expression.UpdateBuilder

	item, err := t.marshal(in)
	if err != nil {
		return update, err
	}

	skip := map[string]bool{
		AttributeNamePK:        true,
		AttributeNameSK:        true,
		AttributeNameVersion:   true,
		AttributeNameCreatedAt: true,
		AttributeNameUpdatedAt: true,
	}
	for _, name := range preserve {
		skip[name] = true
	}

	names := make([]string, 0, len(item))
	for name := range item {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if skip[name] {
			continue
		}
		var value any
		if err := attributevalue.UnmarshalWithOptions(item[name], &value, func(o *attributevalue.DecoderOptions) {
			o.UseNumber = true
		}); err != nil {
			return update, fmt.Errorf("failed to convert attribute %s: %w", name, err)
		}
		update = update.Set(expression.Name(name), expression.Value(value))
	}

	for _, name := range optionalAttributes(in) {
		if _, ok := item[name]; ok || skip[name] {
			continue
		}
		update = update.Remove(expression.Name(name))
	}

	return update, nil
}

// optionalAttributes lists the attribute names of v tagged omitempty,
// including those of embedded structs.
func optionalAttributes(v any) []string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	var out []string
	var walk func(reflect.Type)
	walk = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				walk(f.Type)
				continue
			}
			if !f.IsExported() {
				continue
			}
			name, opts, _ := strings.Cut(f.Tag.Get("dynamodbav"), ",")
			if name == "-" {
				continue
			}
			if name == "" {
				name = f.Name
			}
			for _, opt := range strings.Split(opts, ",") {
				if opt == "omitempty" {
					out = append(out, name)
				}
			}
		}
	}
	walk(t)
	return out
}
