package hangoutstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

func init() {
	// Register DynamoDB types with gob
	gob.Register(map[string]types.AttributeValue{})
	gob.Register(&types.AttributeValueMemberS{})
	gob.Register(&types.AttributeValueMemberN{})
	gob.Register(&types.AttributeValueMemberB{})
	gob.Register(&types.AttributeValueMemberSS{})
	gob.Register(&types.AttributeValueMemberNS{})
	gob.Register(&types.AttributeValueMemberBS{})
	gob.Register(&types.AttributeValueMemberM{})
	gob.Register(&types.AttributeValueMemberL{})
	gob.Register(&types.AttributeValueMemberNULL{})
	gob.Register(&types.AttributeValueMemberBOOL{})
}

// ItemTypePageCursor marks stored pagination cursors. Cursors live in their
// own partitions and are never part of an item collection.
const ItemTypePageCursor ItemType = "PageCursor"

// Page is one page of a paginated read. An empty NextToken means the result
// set is exhausted.
type Page[T any] struct {
	Items     []T
	NextToken string
}

// Paginator handles pagination by converting last evaluated keys into string
// tokens for clients, and in turn converting client tokens into start keys
// to continue paging of query results.
type Paginator interface {
	// PageCursor generates a token from the provided last key. Implementors
	// should return an empty token if the key is nil or empty.
	PageCursor(ctx context.Context, lastKey Item) (string, error)
	// StartKey generates a start key from the provided token. Implementors
	// should return a nil item if the token is an empty string.
	StartKey(ctx context.Context, token string) (Item, error)
}

// KeyCodec is a stateless Paginator. The token is the gob encoded last key
// in URL safe base64.
type KeyCodec struct{}

func (KeyCodec) PageCursor(_ context.Context, lastKey Item) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}
	data, err := encodeKey(lastKey)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func (KeyCodec) StartKey(_ context.Context, token string) (Item, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed page token", ErrInvalidInput)
	}
	return decodeKey(data)
}

func encodeKey(key Item) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(key); err != nil {
		return nil, fmt.Errorf("failed to encode last key: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeKey(data []byte) (Item, error) {
	var key map[string]types.AttributeValue
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&key); err != nil {
		return nil, fmt.Errorf("%w: failed to decode last key: %v", ErrInvalidInput, err)
	}
	return key, nil
}

// PageCursor is a stored pagination cursor. Key holds the gob encoded last
// evaluated key; Expires is the unix time, in seconds, after which the table
// TTL may drop the item.
type PageCursor struct {
	BaseItem
	Cursor  string `dynamodbav:"cursor"`
	Key     []byte `dynamodbav:"key"`
	Expires int64  `dynamodbav:"expires"`
}

func (p *PageCursor) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = PageCursorPK(p.Cursor)
	opts.SortKey = MetadataSK
	opts.ItemType = ItemTypePageCursor
	return nil
}

// TablePaginator implements Paginator by storing last evaluated keys in the
// table itself. Tokens are random ids that reveal nothing about the keys.
type TablePaginator struct {
	table  *Table
	client DynamoDBClient
}

// Paginator returns a TablePaginator storing cursors through client.
func (t *Table) Paginator(client DynamoDBClient) *TablePaginator {
	return &TablePaginator{table: t, client: client}
}

// PageCursor stores lastKey with the table pagination TTL and returns the
// cursor id. If lastKey is empty, an empty string is returned.
func (t *TablePaginator) PageCursor(ctx context.Context, lastKey Item) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}

	data, err := encodeKey(lastKey)
	if err != nil {
		return "", err
	}

	cursor := &PageCursor{
		Cursor:  NewID(),
		Key:     data,
		Expires: t.table.now().Add(t.table.PaginationTTL).Unix(),
	}

	input, err := t.table.MarshalPut(cursor)
	if err != nil {
		return "", fmt.Errorf("failed to marshal page cursor: %w", err)
	}

	if _, err := t.client.PutItem(ctx, input); err != nil {
		return "", classifyError("PageCursor", err)
	}
	return cursor.Cursor, nil
}

// StartKey loads the key stored under token. Unknown and expired cursors
// yield a nil key, restarting the read from the beginning.
func (t *TablePaginator) StartKey(ctx context.Context, token string) (Item, error) {
	if token == "" {
		return nil, nil
	}

	result, err := t.client.GetItem(ctx, t.table.MarshalGet(PageCursorPK(token), MetadataSK))
	if err != nil {
		return nil, classifyError("StartKey", err)
	}
	if len(result.Item) == 0 {
		return nil, nil
	}

	cursor := &PageCursor{}
	if err := UnmarshalEntity(result.Item, cursor, false); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page cursor: %w", err)
	}
	if cursor.Expires > 0 && cursor.Expires < t.table.now().Unix() {
		// TTL deletion lags behind expiry
		return nil, nil
	}
	if len(cursor.Key) == 0 {
		return nil, nil
	}
	return decodeKey(cursor.Key)
}

// paginator returns the table backed paginator when cursors are stored in
// the table, and the stateless codec otherwise.
func (s *Store) paginator() Paginator {
	if s.table.StoreCursors {
		return s.table.Paginator(s.client)
	}
	return KeyCodec{}
}

// queryPage reads one page of q starting after token and decodes it.
func (s *Store) queryPage(ctx context.Context, op, token string, q QueryMarshaler, setStart func(Item)) ([]Entity, string, error) {
	p := s.paginator()

	start, err := p.StartKey(ctx, token)
	if err != nil {
		return nil, "", err
	}
	setStart(start)

	items, lastKey, err := QueryPage(ctx, s.client, s.table, q)
	if err != nil {
		err = classifyError(op, err)
		s.log().Error("page query failed", zap.String("operation", op), zap.Error(err))
		return nil, "", err
	}

	entities, err := s.table.decode(items)
	if err != nil {
		return nil, "", &RepositoryError{Operation: op, Err: err}
	}

	next, err := p.PageCursor(ctx, lastKey)
	if err != nil {
		return nil, "", err
	}
	return entities, next, nil
}

// FindHangoutPointersPage returns up to limit hangout pointers of a group,
// continuing after token.
func (s *Store) FindHangoutPointersPage(ctx context.Context, groupID string, limit int, token string) (*Page[*HangoutPointer], error) {
	q := &PartitionQuery{
		PartitionKey:  GroupPK(groupID),
		SortKeyFilter: expression.Key(AttributeNameSK).BeginsWith(HangoutPointerPrefix),
		Limit:         limit,
	}

	entities, next, err := s.queryPage(ctx, "FindHangoutPointersPage", token, q, func(k Item) { q.StartKey = k })
	if err != nil {
		return nil, err
	}
	return &Page[*HangoutPointer]{Items: ofType[*HangoutPointer](entities), NextToken: next}, nil
}

// FindGroupsForUserPage returns up to limit memberships of a user,
// continuing after token.
func (s *Store) FindGroupsForUserPage(ctx context.Context, userID string, limit int, token string) (*Page[*GroupMembership], error) {
	q := groupsForUserQuery(userID)
	q.Limit = limit

	entities, next, err := s.queryPage(ctx, "FindGroupsForUserPage", token, q, func(k Item) { q.StartKey = k })
	if err != nil {
		return nil, err
	}
	return &Page[*GroupMembership]{Items: ofType[*GroupMembership](entities), NextToken: next}, nil
}
