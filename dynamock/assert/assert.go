// Package assert provides fluent assertion utilities for testing DynamoDB
// items and hangoutstore entities.
//
// # Usage
//
//	import "github.com/nisimpson/hangoutstore/dynamock/assert"
//
//	// Assert on raw table items
//	assert.Items(t, client.Items("hangouts-test")).
//		HasCount(3).
//		ContainsKey("GROUP#g1", "METADATA").
//		ContainsItemType(hangoutstore.ItemTypeHangoutPointer)
//
//	// Assert on entities
//	assert.Entity(t, hangout).
//		HasKey("EVENT#h1", "METADATA").
//		HasVersion(2)
//
//	// Assert that pointers mirror their canonical hangout
//	assert.Pointers(t, pointers).MirrorHangout(hangout)
package assert

import (
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/hangoutstore"
)

// ItemsAssertion provides fluent assertions for DynamoDB items.
type ItemsAssertion struct {
	t     testing.TB
	items []hangoutstore.Item
}

// Items creates a new ItemsAssertion for the given DynamoDB items.
func Items(t testing.TB, items []hangoutstore.Item) *ItemsAssertion {
	return &ItemsAssertion{t: t, items: items}
}

// HasCount asserts that the items collection has the expected count.
func (a *ItemsAssertion) HasCount(expected int) *ItemsAssertion {
	a.t.Helper()
	if len(a.items) != expected {
		a.t.Errorf("expected %d items, got %d", expected, len(a.items))
	}
	return a
}

// IsEmpty asserts that the items collection is empty.
func (a *ItemsAssertion) IsEmpty() *ItemsAssertion {
	a.t.Helper()
	return a.HasCount(0)
}

// IsNotEmpty asserts that the items collection is not empty.
func (a *ItemsAssertion) IsNotEmpty() *ItemsAssertion {
	a.t.Helper()
	if len(a.items) == 0 {
		a.t.Error("expected items to not be empty")
	}
	return a
}

// ContainsKey asserts that an item with the given primary key is present.
func (a *ItemsAssertion) ContainsKey(pk, sk string) *ItemsAssertion {
	a.t.Helper()
	if a.find(pk, sk) == nil {
		a.t.Errorf("expected to find item pk=%s sk=%s", pk, sk)
	}
	return a
}

// LacksKey asserts that no item with the given primary key is present.
func (a *ItemsAssertion) LacksKey(pk, sk string) *ItemsAssertion {
	a.t.Helper()
	if a.find(pk, sk) != nil {
		a.t.Errorf("expected no item pk=%s sk=%s", pk, sk)
	}
	return a
}

// ContainsItemType asserts that at least one item carries the discriminator.
func (a *ItemsAssertion) ContainsItemType(itemType hangoutstore.ItemType) *ItemsAssertion {
	a.t.Helper()
	if a.CountItemType(itemType) == 0 {
		a.t.Errorf("expected to find an item of type %s", itemType)
	}
	return a
}

// HasItemTypeCount asserts how many items carry the discriminator.
func (a *ItemsAssertion) HasItemTypeCount(itemType hangoutstore.ItemType, expected int) *ItemsAssertion {
	a.t.Helper()
	if got := a.CountItemType(itemType); got != expected {
		a.t.Errorf("expected %d items of type %s, got %d", expected, itemType, got)
	}
	return a
}

// CountItemType returns the number of items carrying the discriminator.
func (a *ItemsAssertion) CountItemType(itemType hangoutstore.ItemType) int {
	n := 0
	for _, item := range a.items {
		if stringAttr(item, hangoutstore.AttributeNameItemType) == string(itemType) {
			n++
		}
	}
	return n
}

// HasAttribute asserts that at least one item has the specified string
// attribute with the expected value.
func (a *ItemsAssertion) HasAttribute(attributeName, expectedValue string) *ItemsAssertion {
	a.t.Helper()
	for _, item := range a.items {
		if stringAttr(item, attributeName) == expectedValue {
			return a
		}
	}

	a.t.Errorf("expected to find attribute %s with value %s in items", attributeName, expectedValue)
	return a
}

// Item returns an assertion on the item with the given primary key, failing
// the test when it is absent.
func (a *ItemsAssertion) Item(pk, sk string) *ItemAssertion {
	a.t.Helper()
	item := a.find(pk, sk)
	if item == nil {
		a.t.Fatalf("expected to find item pk=%s sk=%s", pk, sk)
	}
	return DynamoDBItem(a.t, item)
}

func (a *ItemsAssertion) find(pk, sk string) hangoutstore.Item {
	for _, item := range a.items {
		if stringAttr(item, hangoutstore.AttributeNamePK) == pk && stringAttr(item, hangoutstore.AttributeNameSK) == sk {
			return item
		}
	}
	return nil
}

// ItemAssertion provides fluent assertions for individual DynamoDB items.
type ItemAssertion struct {
	t    testing.TB
	item hangoutstore.Item
}

// DynamoDBItem creates a new ItemAssertion for the given item.
func DynamoDBItem(t testing.TB, item hangoutstore.Item) *ItemAssertion {
	return &ItemAssertion{t: t, item: item}
}

// HasAttribute asserts that the item has the string attribute with the
// expected value.
func (a *ItemAssertion) HasAttribute(attrName, expectedValue string) *ItemAssertion {
	a.t.Helper()
	attr, exists := a.item[attrName]
	if !exists {
		a.t.Errorf("item missing attribute %s", attrName)
	} else if s, ok := attr.(*types.AttributeValueMemberS); !ok {
		a.t.Errorf("attribute %s is not a string", attrName)
	} else if s.Value != expectedValue {
		a.t.Errorf("attribute %s expected %s, got %s", attrName, expectedValue, s.Value)
	}
	return a
}

// HasNumber asserts that the item has the numeric attribute with the
// expected value.
func (a *ItemAssertion) HasNumber(attrName string, expected int64) *ItemAssertion {
	a.t.Helper()
	attr, exists := a.item[attrName]
	if !exists {
		a.t.Errorf("item missing attribute %s", attrName)
		return a
	}
	n, ok := attr.(*types.AttributeValueMemberN)
	if !ok {
		a.t.Errorf("attribute %s is not a number", attrName)
		return a
	}
	if got, err := strconv.ParseInt(n.Value, 10, 64); err != nil || got != expected {
		a.t.Errorf("attribute %s expected %d, got %s", attrName, expected, n.Value)
	}
	return a
}

// LacksAttribute asserts that the item has no such attribute.
func (a *ItemAssertion) LacksAttribute(attrName string) *ItemAssertion {
	a.t.Helper()
	if _, exists := a.item[attrName]; exists {
		a.t.Errorf("expected item to lack attribute %s", attrName)
	}
	return a
}

// HasItemType asserts the discriminator of the item.
func (a *ItemAssertion) HasItemType(itemType hangoutstore.ItemType) *ItemAssertion {
	a.t.Helper()
	return a.HasAttribute(hangoutstore.AttributeNameItemType, string(itemType))
}

func stringAttr(item hangoutstore.Item, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// EntityAssertion provides fluent assertions for hangoutstore entities.
type EntityAssertion struct {
	t      testing.TB
	entity hangoutstore.Entity
}

// Entity creates a new EntityAssertion for the given entity.
func Entity(t testing.TB, entity hangoutstore.Entity) *EntityAssertion {
	return &EntityAssertion{t: t, entity: entity}
}

// CanMarshal asserts that the entity marshals into a table item.
func (a *EntityAssertion) CanMarshal() *EntityAssertion {
	a.t.Helper()
	if _, err := hangoutstore.MarshalItem(a.entity); err != nil {
		a.t.Errorf("entity failed to marshal: %v", err)
	}
	return a
}

// HasKey asserts the primary key the entity marshals with.
func (a *EntityAssertion) HasKey(pk, sk string) *EntityAssertion {
	a.t.Helper()
	var opts hangoutstore.MarshalOptions
	if err := a.entity.MarshalSelf(&opts); err != nil {
		a.t.Errorf("entity failed to marshal: %v", err)
		return a
	}
	if opts.PartitionKey != pk || opts.SortKey != sk {
		a.t.Errorf("expected key pk=%s sk=%s, got pk=%s sk=%s", pk, sk, opts.PartitionKey, opts.SortKey)
	}
	return a
}

// HasItemType asserts the discriminator the entity marshals with.
func (a *EntityAssertion) HasItemType(itemType hangoutstore.ItemType) *EntityAssertion {
	a.t.Helper()
	var opts hangoutstore.MarshalOptions
	if err := a.entity.MarshalSelf(&opts); err != nil {
		a.t.Errorf("entity failed to marshal: %v", err)
		return a
	}
	if opts.ItemType != itemType {
		a.t.Errorf("expected item type %s, got %s", itemType, opts.ItemType)
	}
	return a
}

// HasVersion asserts the stored version of the entity.
func (a *EntityAssertion) HasVersion(expected int64) *EntityAssertion {
	a.t.Helper()
	if got := a.entity.Base().Version; got != expected {
		a.t.Errorf("expected version %d, got %d", expected, got)
	}
	return a
}

// PointersAssertion provides fluent assertions over the pointers of a
// canonical record.
type PointersAssertion struct {
	t        testing.TB
	pointers []*hangoutstore.HangoutPointer
}

// Pointers creates a new PointersAssertion for the given hangout pointers.
func Pointers(t testing.TB, pointers []*hangoutstore.HangoutPointer) *PointersAssertion {
	return &PointersAssertion{t: t, pointers: pointers}
}

// HasCount asserts the number of pointers.
func (a *PointersAssertion) HasCount(expected int) *PointersAssertion {
	a.t.Helper()
	if len(a.pointers) != expected {
		a.t.Errorf("expected %d pointers, got %d", expected, len(a.pointers))
	}
	return a
}

// MirrorHangout asserts that every pointer of h's hangout carries the fields
// derived from h, including its version.
func (a *PointersAssertion) MirrorHangout(h *hangoutstore.Hangout) *PointersAssertion {
	a.t.Helper()
	for _, p := range a.pointers {
		if p.HangoutID != h.HangoutID {
			continue
		}
		want := hangoutstore.NewHangoutPointer(h, p.GroupID)
		switch {
		case p.Title != want.Title:
			a.t.Errorf("pointer %s/%s title %q, want %q", p.GroupID, p.HangoutID, p.Title, want.Title)
		case p.StartTimestamp != want.StartTimestamp || p.EndTimestamp != want.EndTimestamp:
			a.t.Errorf("pointer %s/%s times [%d,%d], want [%d,%d]", p.GroupID, p.HangoutID,
				p.StartTimestamp, p.EndTimestamp, want.StartTimestamp, want.EndTimestamp)
		case p.LocationName != want.LocationName || p.MainImagePath != want.MainImagePath:
			a.t.Errorf("pointer %s/%s location or image drifted", p.GroupID, p.HangoutID)
		case p.SeriesID != want.SeriesID:
			a.t.Errorf("pointer %s/%s series %q, want %q", p.GroupID, p.HangoutID, p.SeriesID, want.SeriesID)
		case p.HangoutVersion != want.HangoutVersion:
			a.t.Errorf("pointer %s/%s version %d, want %d", p.GroupID, p.HangoutID, p.HangoutVersion, want.HangoutVersion)
		}
	}
	return a
}
