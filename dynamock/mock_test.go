package dynamock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/hangoutstore"
)

func TestNewMockClient(t *testing.T) {
	mock := NewMockClient(t)

	if mock.PutFunc == nil || mock.GetFunc == nil || mock.QueryFunc == nil ||
		mock.BatchWriteItemFunc == nil || mock.DeleteFunc == nil ||
		mock.UpdateFunc == nil || mock.TransactWriteItemsFunc == nil {
		t.Fatal("expected every operation to have a default expectation")
	}
}

func TestMockClient_GetItem_WithExpectation(t *testing.T) {
	mock := NewMockClient(t)
	ctx := context.Background()

	group := NewGroup("g1")
	item, err := hangoutstore.MarshalItem(group)
	if err != nil {
		t.Fatal(err)
	}

	mock.GetFunc = func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
		if aws.ToString(params.TableName) != "test-table" {
			t.Errorf("expected table name test-table, got %s", aws.ToString(params.TableName))
		}
		pk := params.Key[hangoutstore.AttributeNamePK].(*types.AttributeValueMemberS).Value
		if pk != "GROUP#g1" {
			t.Errorf("expected key GROUP#g1, got %s", pk)
		}
		return &dynamodb.GetItemOutput{Item: item}, nil
	}

	store := hangoutstore.NewStore(mock, hangoutstore.NewTable("test-table"))
	got, err := store.FindGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("FindGroup failed: %v", err)
	}
	if got.GroupName != group.GroupName {
		t.Errorf("expected group name %s, got %s", group.GroupName, got.GroupName)
	}
}

func TestMockClient_TransactWriteItems_WithExpectation(t *testing.T) {
	mock := NewMockClient(t)

	var captured *dynamodb.TransactWriteItemsInput
	mock.TransactWriteItemsFunc = func(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
		captured = params
		return &dynamodb.TransactWriteItemsOutput{}, nil
	}
	mock.UpdateFunc = func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
		return &dynamodb.UpdateItemOutput{}, nil
	}

	store := hangoutstore.NewStore(mock, hangoutstore.NewTable("test-table"))
	if err := store.CreateHangout(context.Background(), NewHangout("h1", []string{"g1", "g2"})); err != nil {
		t.Fatalf("CreateHangout failed: %v", err)
	}

	if captured == nil {
		t.Fatal("expected a transaction")
	}
	// canonical record plus one pointer per group
	if got := len(captured.TransactItems); got != 3 {
		t.Errorf("expected 3 transaction items, got %d", got)
	}
}
