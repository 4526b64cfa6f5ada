package hangoutstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// ErrUnknownItemType is returned when an item carries a discriminator, or a
// key shape, that no registered entity claims.
var ErrUnknownItemType = errors.New("unknown item type")

// Clock is a function type that returns the current time for dependency injection.
type Clock func() time.Time

// DefaultClock returns the current UTC time.
func DefaultClock() time.Time {
	return time.Now().UTC()
}

// NewID returns a new random identifier.
func NewID() string {
	return uuid.NewString()
}

// Item is an alias for the dynamodb attribute value map.
type Item = map[string]types.AttributeValue

// Attribute names shared by every item in the table.
const (
	AttributeNamePK             = "pk"
	AttributeNameSK             = "sk"
	AttributeNameItemType       = "itemType"
	AttributeNameVersion        = "version"
	AttributeNameCreatedAt      = "createdAt"
	AttributeNameUpdatedAt      = "updatedAt"
	AttributeNameGSI1PK         = "gsi1pk"
	AttributeNameGSI1SK         = "gsi1sk"
	AttributeNameGSI2PK         = "gsi2pk"
	AttributeNameGSI2SK         = "gsi2sk"
	AttributeNameExternalID     = "externalId"
	AttributeNameExternalSource = "externalSource"
	AttributeNameExpires        = "expires"
)

// ItemType is the discriminator stored in the itemType attribute.
type ItemType string

const (
	ItemTypeGroup            ItemType = "Group"
	ItemTypeGroupMembership  ItemType = "GroupMembership"
	ItemTypeHangout          ItemType = "Hangout"
	ItemTypeHangoutPointer   ItemType = "HangoutPointer"
	ItemTypePoll             ItemType = "Poll"
	ItemTypeCar              ItemType = "Car"
	ItemTypeCarRider         ItemType = "CarRider"
	ItemTypeVote             ItemType = "Vote"
	ItemTypeInterestLevel    ItemType = "InterestLevel"
	ItemTypeParticipation    ItemType = "Participation"
	ItemTypeReservationOffer ItemType = "ReservationOffer"
	ItemTypeEventSeries      ItemType = "EventSeries"
	ItemTypeSeriesPointer    ItemType = "SeriesPointer"
	ItemTypeSeason           ItemType = "Season"
	ItemTypeInviteCode       ItemType = "InviteCode"
	ItemTypePlace            ItemType = "Place"
	ItemTypeIdeaList         ItemType = "IdeaList"
	ItemTypeIdeaListMember   ItemType = "IdeaListMember"
)

// BaseItem is the envelope every item in the table shares. Entities embed it
// and fill their type-specific attributes alongside.
type BaseItem struct {
	PK             string    `dynamodbav:"pk"`
	SK             string    `dynamodbav:"sk"`
	ItemType       ItemType  `dynamodbav:"itemType"`
	Version        int64     `dynamodbav:"version"`
	CreatedAt      time.Time `dynamodbav:"createdAt"`
	UpdatedAt      time.Time `dynamodbav:"updatedAt"`
	GSI1PK         string    `dynamodbav:"gsi1pk,omitempty"`
	GSI1SK         string    `dynamodbav:"gsi1sk,omitempty"`
	GSI2PK         string    `dynamodbav:"gsi2pk,omitempty"`
	GSI2SK         string    `dynamodbav:"gsi2sk,omitempty"`
	ExternalID     string    `dynamodbav:"externalId,omitempty"`
	ExternalSource string    `dynamodbav:"externalSource,omitempty"`
}

// Base returns the envelope. Embedding BaseItem promotes this method, which is
// how every entity satisfies [Entity].
func (b *BaseItem) Base() *BaseItem { return b }

// Key returns the primary key of the item.
func (b *BaseItem) Key() Item {
	return itemKey(b.PK, b.SK)
}

func itemKey(pk, sk string) Item {
	return Item{
		AttributeNamePK: &types.AttributeValueMemberS{Value: pk},
		AttributeNameSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// MarshalOptions contains the keys and envelope values an entity declares
// when it is marshaled.
type MarshalOptions struct {
	PartitionKey string   // The partition key (pk)
	SortKey      string   // The sort key (sk)
	ItemType     ItemType // The discriminator
	GSI1PK       string   // Optional gsi1 partition key
	GSI1SK       string   // Optional gsi1 sort key
	GSI2PK       string   // Optional gsi2 partition key
	GSI2SK       string   // Optional gsi2 sort key
	Tick         Clock    // Function to get current time for timestamps
}

func (mo *MarshalOptions) apply(opts []func(*MarshalOptions)) {
	for _, opt := range opts {
		opt(mo)
	}
}

func newMarshalOptions(opts ...func(*MarshalOptions)) MarshalOptions {
	options := MarshalOptions{Tick: DefaultClock}
	options.apply(opts)
	return options
}

// Entity is implemented by every type stored in the table.
type Entity interface {
	// Base returns the embedded envelope.
	Base() *BaseItem
	// MarshalSelf is invoked by [MarshalItem]. Implementers set the key and
	// discriminator fields of the provided options.
	MarshalSelf(*MarshalOptions) error
}

// Stamp resolves the keys of in and writes them, together with the
// timestamps, onto its envelope. CreatedAt is only set when zero; UpdatedAt
// is always refreshed.
func Stamp(in Entity, opts ...func(*MarshalOptions)) error {
	options := newMarshalOptions(opts...)
	if err := in.MarshalSelf(&options); err != nil {
		return fmt.Errorf("failed to marshal self: %w", err)
	}

	if options.PartitionKey == "" || options.SortKey == "" {
		return fmt.Errorf("entity %T produced an empty key", in)
	}
	if options.ItemType == "" {
		return fmt.Errorf("entity %T produced an empty item type", in)
	}

	now := options.Tick()
	base := in.Base()
	base.PK = options.PartitionKey
	base.SK = options.SortKey
	base.ItemType = options.ItemType
	base.GSI1PK = options.GSI1PK
	base.GSI1SK = options.GSI1SK
	base.GSI2PK = options.GSI2PK
	base.GSI2SK = options.GSI2SK
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	return nil
}

// MarshalItem stamps in and marshals it into a DynamoDB item. The itemType
// attribute is always written.
func MarshalItem(in Entity, opts ...func(*MarshalOptions)) (Item, error) {
	if err := Stamp(in, opts...); err != nil {
		return nil, err
	}

	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return item, nil
}

// UnmarshalTableKey extracts the partition and sort keys from a DynamoDB item.
func UnmarshalTableKey(item Item) (pk, sk string, err error) {
	var (
		pkValue, pkExists = item[AttributeNamePK]
		skValue, skExists = item[AttributeNameSK]
	)

	if !pkExists || !skExists {
		return "", "", fmt.Errorf("partition and sort keys not found")
	}

	err = errors.Join(
		attributevalue.Unmarshal(pkValue, &pk),
		attributevalue.Unmarshal(skValue, &sk),
	)

	return pk, sk, err
}

// DynamoDBClient interface for easier testing and connection management.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}
