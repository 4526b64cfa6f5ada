package hangoutstore

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func namesOf(names map[string]string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n)
	}
	return out
}

func hasName(names map[string]string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func TestTransactionBuilderCreate(t *testing.T) {
	table := NewTable("test")
	g := &Group{GroupID: "g1", GroupName: "Climbers"}

	input, err := table.NewTransaction().Create(g).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.Version != 1 {
		t.Errorf("expected version 1, got %d", g.Version)
	}

	put := input.TransactItems[0].Put
	if put == nil {
		t.Fatal("expected a put")
	}
	if aws.ToString(put.TableName) != "test" {
		t.Errorf("unexpected table %s", aws.ToString(put.TableName))
	}
	if !strings.Contains(aws.ToString(put.ConditionExpression), "attribute_not_exists") {
		t.Errorf("expected create condition, got %q", aws.ToString(put.ConditionExpression))
	}
	if v, ok := put.Item[AttributeNameVersion].(*types.AttributeValueMemberN); !ok || v.Value != "1" {
		t.Errorf("expected stored version 1, got %v", put.Item[AttributeNameVersion])
	}
}

func TestTransactionBuilderErrors(t *testing.T) {
	key := itemKey("GROUP#g1", MetadataSK)

	tests := []struct {
		name  string
		build func(*Table) *TransactionBuilder
	}{
		{
			name:  "empty",
			build: func(tbl *Table) *TransactionBuilder { return tbl.NewTransaction() },
		},
		{
			name: "same item twice",
			build: func(tbl *Table) *TransactionBuilder {
				return tbl.NewTransaction().
					ConditionCheck(key, exists()).
					Delete(key, expression.ConditionBuilder{})
			},
		},
		{
			name: "over the item limit",
			build: func(tbl *Table) *TransactionBuilder {
				tbl.MaxTransactItems = 3
				tx := tbl.NewTransaction()
				for i := 0; i < 4; i++ {
					tx.Put(&Vote{HangoutID: "h1", PollID: "p1", UserID: fmt.Sprint(i), OptionID: "o1"})
				}
				return tx
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build(NewTable("test")).Build()
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestTransactionBuilderKeepsFirstError(t *testing.T) {
	tx := NewTable("test").NewTransaction().
		Put(&Place{OwnerType: "ROBOT", OwnerID: "r1", PlaceID: "p1"}).
		Put(&Vote{HangoutID: "h1", PollID: "p1", UserID: "u1", OptionID: "o1"})

	_, err := tx.Build()
	if err == nil || !strings.Contains(err.Error(), "ROBOT") {
		t.Errorf("expected the owner type error, got %v", err)
	}
}

func TestTransactionBuilderUpdateVersioned(t *testing.T) {
	table := NewTable("test")
	input, err := table.NewTransaction().
		UpdateVersioned(hangoutKey("h1"), 4, expression.Remove(expression.Name(attrSeriesID))).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	u := input.TransactItems[0].Update
	if u == nil {
		t.Fatal("expected an update")
	}
	if !hasName(u.ExpressionAttributeNames, AttributeNameVersion) || !hasName(u.ExpressionAttributeNames, attrSeriesID) {
		t.Errorf("unexpected names %v", namesOf(u.ExpressionAttributeNames))
	}
	if !strings.Contains(aws.ToString(u.UpdateExpression), "REMOVE") {
		t.Errorf("expected a REMOVE action, got %q", aws.ToString(u.UpdateExpression))
	}

	var expected bool
	for _, v := range u.ExpressionAttributeValues {
		if n, ok := v.(*types.AttributeValueMemberN); ok && n.Value == "4" {
			expected = true
		}
	}
	if !expected {
		t.Errorf("expected the condition to carry version 4, got %v", u.ExpressionAttributeValues)
	}
}

func TestReplaceUpdate(t *testing.T) {
	table := NewTable("test")
	h := &Hangout{HangoutID: "h1", Title: "Climbing", SeriesID: "s1", AssociatedGroups: []string{"g1"}}

	update, err := replaceUpdate(table, h, attrSeriesID)
	if err != nil {
		t.Fatal(err)
	}
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		t.Fatal(err)
	}

	names := expr.Names()
	for _, want := range []string{"title", "associatedGroups", AttributeNameItemType, "description"} {
		if !hasName(names, want) {
			t.Errorf("expected %s in the update, got %v", want, namesOf(names))
		}
	}
	for _, managed := range []string{AttributeNamePK, AttributeNameSK, AttributeNameVersion, AttributeNameCreatedAt, attrSeriesID} {
		if hasName(names, managed) {
			t.Errorf("%s must not be written by a replace", managed)
		}
	}
	if !strings.Contains(aws.ToString(expr.Update()), "REMOVE") {
		t.Errorf("expected empty optional attributes to be removed, got %q", aws.ToString(expr.Update()))
	}
}

func TestOptionalAttributes(t *testing.T) {
	attrs := optionalAttributes(&Hangout{})
	want := map[string]bool{"description": true, "seriesId": true, "gsi1pk": true, "externalId": true, "reminderSentAt": true}

	found := map[string]bool{}
	for _, a := range attrs {
		found[a] = true
		if a == "title" || a == "hangoutId" || a == "carpoolEnabled" {
			t.Errorf("%s is not optional", a)
		}
	}
	for name := range want {
		if !found[name] {
			t.Errorf("expected %s to be optional, got %v", name, attrs)
		}
	}
}

func TestTableChunksBatchWrites(t *testing.T) {
	keys := make([]Item, 30)
	for i := range keys {
		keys[i] = itemKey("GROUP#g1", HangoutPointerSK(fmt.Sprint(i)))
	}

	tests := []struct {
		batchSize int
		want      []int
	}{
		{batchSize: 0, want: []int{25, 5}},
		{batchSize: 10, want: []int{10, 10, 10}},
		{batchSize: 7, want: []int{7, 7, 7, 7, 2}},
		{batchSize: 100, want: []int{25, 5}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.batchSize), func(t *testing.T) {
			table := NewTable("test", func(tbl *Table) { tbl.BatchSize = tt.batchSize })
			batches := table.MarshalBatchDelete(keys)
			if len(batches) != len(tt.want) {
				t.Fatalf("expected %d batches, got %d", len(tt.want), len(batches))
			}
			for i, b := range batches {
				if got := len(b.RequestItems["test"]); got != tt.want[i] {
					t.Errorf("batch %d: expected %d requests, got %d", i, tt.want[i], got)
				}
			}
		})
	}
}

func TestMarshalCreate(t *testing.T) {
	input, err := NewTable("test").MarshalCreate(&Season{ShowID: "show1", SeasonNumber: 1})
	if err != nil {
		t.Fatal(err)
	}
	if input.ConditionExpression == nil {
		t.Fatal("expected a condition")
	}
	if pk := input.Item[AttributeNamePK].(*types.AttributeValueMemberS).Value; pk != "SHOW#show1" {
		t.Errorf("unexpected pk %s", pk)
	}
}
