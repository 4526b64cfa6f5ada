package dynamock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const testTable = "memory-test"

func newTestMemoryClient(t *testing.T) *MemoryClient {
	t.Helper()
	client := NewMemoryClient()
	_, err := client.CreateTable(context.Background(), &dynamodb.CreateTableInput{
		TableName: aws.String(testTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String("gsi1"),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("gsi1pk"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("gsi1sk"), KeyType: types.KeyTypeRange},
			},
		}},
	})
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	return client
}

func sv(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func nv(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func pkey(pk, sk string) Item { return Item{"pk": sv(pk), "sk": sv(sk)} }

func TestMemoryClient_PutItem_Condition(t *testing.T) {
	client := newTestMemoryClient(t)
	ctx := context.Background()

	put := &dynamodb.PutItemInput{
		TableName:           aws.String(testTable),
		Item:                Item{"pk": sv("A"), "sk": sv("1"), "name": sv("first")},
		ConditionExpression: aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": "pk",
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
	if _, err := client.PutItem(ctx, put); err != nil {
		t.Fatalf("first put failed: %v", err)
	}

	put.Item = Item{"pk": sv("A"), "sk": sv("1"), "name": sv("second")}
	_, err := client.PutItem(ctx, put)

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		t.Fatalf("expected ConditionalCheckFailedException, got %v", err)
	}
	if got := ccf.Item["name"].(*types.AttributeValueMemberS).Value; got != "first" {
		t.Errorf("expected old item on failure, got name=%s", got)
	}
}

func TestMemoryClient_UpdateItem(t *testing.T) {
	client := newTestMemoryClient(t)
	ctx := context.Background()

	if err := client.Seed(testTable, Item{
		"pk": sv("A"), "sk": sv("1"), "version": nv("3"), "tags": &types.AttributeValueMemberL{Value: []types.AttributeValue{sv("x")}},
	}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		update    string
		condition string
		values    map[string]types.AttributeValue
		wantErr   bool
		check     func(t *testing.T, item Item)
	}{
		{
			name:      "increment with matching version",
			update:    "SET #v = #v + :one",
			condition: "#v = :expected",
			values:    map[string]types.AttributeValue{":one": nv("1"), ":expected": nv("3")},
			check: func(t *testing.T, item Item) {
				if got := item["version"].(*types.AttributeValueMemberN).Value; got != "4" {
					t.Errorf("expected version 4, got %s", got)
				}
			},
		},
		{
			name:      "stale version",
			update:    "SET #v = #v + :one",
			condition: "#v = :expected",
			values:    map[string]types.AttributeValue{":one": nv("1"), ":expected": nv("3")},
			wantErr:   true,
		},
		{
			name:   "append and remove",
			update: "SET tags = list_append(tags, :more) REMOVE missing",
			values: map[string]types.AttributeValue{":more": &types.AttributeValueMemberL{Value: []types.AttributeValue{sv("y")}}},
			check: func(t *testing.T, item Item) {
				if got := len(item["tags"].(*types.AttributeValueMemberL).Value); got != 2 {
					t.Errorf("expected 2 tags, got %d", got)
				}
			},
		},
		{
			name:   "if_not_exists keeps existing value",
			update: "SET #v = if_not_exists(#v, :zero)",
			values: map[string]types.AttributeValue{":zero": nv("0")},
			check: func(t *testing.T, item Item) {
				if got := item["version"].(*types.AttributeValueMemberN).Value; got != "4" {
					t.Errorf("expected version 4, got %s", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &dynamodb.UpdateItemInput{
				TableName:                 aws.String(testTable),
				Key:                       pkey("A", "1"),
				UpdateExpression:          aws.String(tt.update),
				ExpressionAttributeValues: tt.values,
				ReturnValues:              types.ReturnValueAllNew,
			}
			if tt.condition != "" {
				in.ConditionExpression = aws.String(tt.condition)
			}
			if strings.Contains(tt.update, "#v") {
				in.ExpressionAttributeNames = map[string]string{"#v": "version"}
			}

			out, err := client.UpdateItem(ctx, in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateItem failed: %v", err)
			}
			tt.check(t, out.Attributes)
		})
	}
}

func TestMemoryClient_UpdateItem_RejectsKeyUpdate(t *testing.T) {
	client := newTestMemoryClient(t)

	_, err := client.UpdateItem(context.Background(), &dynamodb.UpdateItemInput{
		TableName:                 aws.String(testTable),
		Key:                       pkey("A", "1"),
		UpdateExpression:          aws.String("SET sk = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": sv("2")},
	})

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "ValidationException" {
		t.Fatalf("expected ValidationException, got %v", err)
	}
}

func TestMemoryClient_Query_SparseIndexAndPaging(t *testing.T) {
	client := newTestMemoryClient(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		item := Item{"pk": sv(fmt.Sprintf("GROUP#g%d", i)), "sk": sv("MEMBER#u1")}
		if i != 2 {
			item["gsi1pk"] = sv("USER#u1")
			item["gsi1sk"] = sv(fmt.Sprintf("GROUP#g%d", i))
		}
		if err := client.Seed(testTable, item); err != nil {
			t.Fatal(err)
		}
	}

	var (
		got       []string
		startKey  Item
		pageCount int
	)
	for {
		out, err := client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(testTable),
			IndexName:                 aws.String("gsi1"),
			KeyConditionExpression:    aws.String("gsi1pk = :pk AND begins_with(gsi1sk, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":pk": sv("USER#u1"), ":prefix": sv("GROUP#")},
			Limit:                     aws.Int32(2),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		pageCount++
		for _, item := range out.Items {
			got = append(got, item["pk"].(*types.AttributeValueMemberS).Value)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		if _, ok := out.LastEvaluatedKey["gsi1pk"]; !ok {
			t.Error("index LastEvaluatedKey must carry index keys")
		}
		startKey = out.LastEvaluatedKey
	}

	want := []string{"GROUP#g0", "GROUP#g1", "GROUP#g3", "GROUP#g4"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if pageCount != 2 {
		t.Errorf("expected 2 pages, got %d", pageCount)
	}
}

func TestMemoryClient_Query_ConsistentReadOnIndex(t *testing.T) {
	client := newTestMemoryClient(t)

	_, err := client.Query(context.Background(), &dynamodb.QueryInput{
		TableName:                 aws.String(testTable),
		IndexName:                 aws.String("gsi1"),
		ConsistentRead:            aws.Bool(true),
		KeyConditionExpression:    aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": sv("USER#u1")},
	})
	if err == nil {
		t.Fatal("expected consistent read on an index to fail")
	}
}

func TestMemoryClient_Query_FilterAndDescending(t *testing.T) {
	client := newTestMemoryClient(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if err := client.Seed(testTable, Item{"pk": sv("EVENT#h1"), "sk": sv(fmt.Sprintf("VOTE#%d", i)), "weight": nv(fmt.Sprint(i))}); err != nil {
			t.Fatal(err)
		}
	}

	out, err := client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(testTable),
		KeyConditionExpression:    aws.String("pk = :pk"),
		FilterExpression:          aws.String("weight BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": sv("EVENT#h1"), ":lo": nv("2"), ":hi": nv("3")},
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if out.Count != 2 || out.ScannedCount != 4 {
		t.Fatalf("expected 2 of 4 items, got %d of %d", out.Count, out.ScannedCount)
	}
	if got := out.Items[0]["sk"].(*types.AttributeValueMemberS).Value; got != "VOTE#3" {
		t.Errorf("expected descending order, first item %s", got)
	}
}

func TestMemoryClient_TransactWriteItems_AllOrNothing(t *testing.T) {
	client := newTestMemoryClient(t)
	ctx := context.Background()

	if err := client.Seed(testTable, Item{"pk": sv("A"), "sk": sv("1"), "count": nv("0")}); err != nil {
		t.Fatal(err)
	}

	_, err := client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(testTable), Item: Item{"pk": sv("B"), "sk": sv("1")}}},
			{Update: &types.Update{
				TableName:                 aws.String(testTable),
				Key:                       pkey("A", "1"),
				UpdateExpression:          aws.String("SET #c = #c + :one"),
				ConditionExpression:       aws.String("#c > :one"),
				ExpressionAttributeNames:  map[string]string{"#c": "count"},
				ExpressionAttributeValues: map[string]types.AttributeValue{":one": nv("1")},
			}},
		},
	})

	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		t.Fatalf("expected TransactionCanceledException, got %v", err)
	}
	if len(canceled.CancellationReasons) != 2 {
		t.Fatalf("expected 2 reasons, got %d", len(canceled.CancellationReasons))
	}
	if code := aws.ToString(canceled.CancellationReasons[0].Code); code != "None" {
		t.Errorf("expected reason None for item 0, got %s", code)
	}
	if code := aws.ToString(canceled.CancellationReasons[1].Code); code != "ConditionalCheckFailed" {
		t.Errorf("expected ConditionalCheckFailed for item 1, got %s", code)
	}
	if items := client.Items(testTable); len(items) != 1 {
		t.Errorf("expected no writes applied, table has %d items", len(items))
	}
}

func TestMemoryClient_TransactWriteItems_DuplicateKey(t *testing.T) {
	client := newTestMemoryClient(t)

	_, err := client.TransactWriteItems(context.Background(), &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(testTable), Item: Item{"pk": sv("A"), "sk": sv("1")}}},
			{Delete: &types.Delete{TableName: aws.String(testTable), Key: pkey("A", "1")}},
		},
	})
	if err == nil {
		t.Fatal("expected duplicate key transaction to fail")
	}
}

func TestMemoryClient_TransactWriteItems_ConcurrentIncrement(t *testing.T) {
	client := newTestMemoryClient(t)
	ctx := context.Background()

	if err := client.Seed(testTable, Item{"pk": sv("A"), "sk": sv("1"), "version": nv("1")}); err != nil {
		t.Fatal(err)
	}

	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName:                 aws.String(testTable),
				Key:                       pkey("A", "1"),
				UpdateExpression:          aws.String("SET version = version + :one"),
				ConditionExpression:       aws.String("version = :expected"),
				ExpressionAttributeValues: map[string]types.AttributeValue{":one": nv("1"), ":expected": nv("1")},
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestMemoryClient_BatchWriteItem_Unprocessed(t *testing.T) {
	client := newTestMemoryClient(t)
	client.Unprocessed = func(table string, req types.WriteRequest) bool {
		return req.PutRequest != nil && req.PutRequest.Item["sk"].(*types.AttributeValueMemberS).Value == "2"
	}

	out, err := client.BatchWriteItem(context.Background(), &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			testTable: {
				{PutRequest: &types.PutRequest{Item: pkey("A", "1")}},
				{PutRequest: &types.PutRequest{Item: pkey("A", "2")}},
			},
		},
	})
	if err != nil {
		t.Fatalf("BatchWriteItem failed: %v", err)
	}
	if got := len(out.UnprocessedItems[testTable]); got != 1 {
		t.Errorf("expected 1 unprocessed request, got %d", got)
	}
	if got := len(client.Items(testTable)); got != 1 {
		t.Errorf("expected 1 stored item, got %d", got)
	}
}

func TestMemoryClient_Intercept(t *testing.T) {
	client := newTestMemoryClient(t)
	throttled := &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	client.Intercept = func(op string, input any) error {
		if op == "GetItem" {
			return throttled
		}
		return nil
	}

	_, err := client.GetItem(context.Background(), &dynamodb.GetItemInput{TableName: aws.String(testTable), Key: pkey("A", "1")})
	if !errors.Is(err, throttled) {
		t.Fatalf("expected intercepted error, got %v", err)
	}
	if client.Calls("GetItem") != 1 {
		t.Errorf("expected intercepted call to be counted")
	}
}

func TestMemoryClient_MissingTable(t *testing.T) {
	client := NewMemoryClient()

	_, err := client.GetItem(context.Background(), &dynamodb.GetItemInput{TableName: aws.String("nope"), Key: pkey("A", "1")})

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ResourceNotFoundException, got %v", err)
	}
}
