package hangoutstore

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Registry maps item type discriminators to entity factories. Every item read
// from the table is decoded through it.
type Registry struct {
	factories map[ItemType]func() Entity
}

var defaultRegistry = NewRegistry()

// NewRegistry returns a registry with every entity of the package registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[ItemType]func() Entity)}
	r.Register(ItemTypeGroup, func() Entity { return &Group{} })
	r.Register(ItemTypeGroupMembership, func() Entity { return &GroupMembership{} })
	r.Register(ItemTypeHangout, func() Entity { return &Hangout{} })
	r.Register(ItemTypeHangoutPointer, func() Entity { return &HangoutPointer{} })
	r.Register(ItemTypePoll, func() Entity { return &Poll{} })
	r.Register(ItemTypeCar, func() Entity { return &Car{} })
	r.Register(ItemTypeCarRider, func() Entity { return &CarRider{} })
	r.Register(ItemTypeVote, func() Entity { return &Vote{} })
	r.Register(ItemTypeInterestLevel, func() Entity { return &InterestLevel{} })
	r.Register(ItemTypeParticipation, func() Entity { return &Participation{} })
	r.Register(ItemTypeReservationOffer, func() Entity { return &ReservationOffer{} })
	r.Register(ItemTypeEventSeries, func() Entity { return &EventSeries{} })
	r.Register(ItemTypeSeriesPointer, func() Entity { return &SeriesPointer{} })
	r.Register(ItemTypeSeason, func() Entity { return &Season{} })
	r.Register(ItemTypeInviteCode, func() Entity { return &InviteCode{} })
	r.Register(ItemTypePlace, func() Entity { return &Place{} })
	r.Register(ItemTypeIdeaList, func() Entity { return &IdeaList{} })
	r.Register(ItemTypeIdeaListMember, func() Entity { return &IdeaListMember{} })
	return r
}

// Register adds or replaces the factory for an item type.
func (r *Registry) Register(t ItemType, factory func() Entity) {
	r.factories[t] = factory
}

// Unregister removes the factory for an item type. Items of that type are
// then skipped by collection reads and rejected by single item reads.
func (r *Registry) Unregister(t ItemType) {
	delete(r.factories, t)
}

// Types returns the registered item types in lexical order.
func (r *Registry) Types() []ItemType {
	out := make([]ItemType, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New returns a zero entity of type t.
func (r *Registry) New(t ItemType) (Entity, error) {
	factory, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItemType, t)
	}
	return factory(), nil
}

// ItemTypeOf returns the discriminator of item. When the attribute is absent
// and legacy is set, the type is inferred from the key shape.
func (r *Registry) ItemTypeOf(item Item, legacy bool) (ItemType, error) {
	return itemTypeOf(item, legacy)
}

func itemTypeOf(item Item, legacy bool) (ItemType, error) {
	if av, ok := item[AttributeNameItemType].(*types.AttributeValueMemberS); ok && av.Value != "" {
		return ItemType(av.Value), nil
	}

	if !legacy {
		return "", fmt.Errorf("%w: missing %s attribute", ErrUnknownItemType, AttributeNameItemType)
	}

	pk, sk, err := UnmarshalTableKey(item)
	if err != nil {
		return "", fmt.Errorf("failed to unmarshal table key: %w", err)
	}

	t, ok := InferItemType(pk, sk)
	if !ok {
		return "", fmt.Errorf("%w: pk=%s sk=%s", ErrUnknownItemType, pk, sk)
	}
	return t, nil
}

// Decode unmarshals item into the entity its discriminator names. Errors
// wrapping [ErrUnknownItemType] mean the item belongs to no registered type.
func (r *Registry) Decode(item Item, legacy bool) (Entity, error) {
	t, err := r.ItemTypeOf(item, legacy)
	if err != nil {
		return nil, err
	}

	out, err := r.New(t)
	if err != nil {
		return nil, err
	}

	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", t, err)
	}

	// legacy rows carry no discriminator of their own
	out.Base().ItemType = t
	return out, nil
}

// Unmarshal decodes item into out. The item must carry the type out expects
// and that type must be registered.
func (r *Registry) Unmarshal(item Item, out Entity, legacy bool) error {
	want, err := discriminatorOf(out)
	if err != nil {
		return err
	}
	if _, ok := r.factories[want]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownItemType, want)
	}
	return unmarshalAs(item, out, want, legacy)
}

// UnmarshalEntity decodes item into out, checking that the item carries the
// type out expects. Unlike [Registry.Unmarshal] it accepts types outside any
// registry, such as stored page cursors.
func UnmarshalEntity(item Item, out Entity, legacy bool) error {
	want, err := discriminatorOf(out)
	if err != nil {
		return err
	}
	return unmarshalAs(item, out, want, legacy)
}

func unmarshalAs(item Item, out Entity, want ItemType, legacy bool) error {
	got, err := itemTypeOf(item, legacy)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("item type mismatch: expected %s, got %s", want, got)
	}

	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", want, err)
	}
	out.Base().ItemType = want
	return nil
}

// discriminatorOf asks the entity which type it marshals as. Only the item
// type is read; key fields may be empty.
func discriminatorOf(e Entity) (ItemType, error) {
	var opts MarshalOptions
	if err := e.MarshalSelf(&opts); err != nil && opts.ItemType == "" {
		return "", fmt.Errorf("failed to resolve item type of %T: %w", e, err)
	}
	return opts.ItemType, nil
}
