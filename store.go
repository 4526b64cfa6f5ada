package hangoutstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Store executes the storage operations of the hangout domain against a
// single table. It holds no mutable state and is safe for concurrent use.
type Store struct {
	table    *Table
	client   DynamoDBClient
	validate *validator.Validate
}

// NewStore returns a Store reading and writing t through client.
func NewStore(client DynamoDBClient, t *Table) *Store {
	return &Store{
		table:    t,
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Table returns the table configuration of the store.
func (s *Store) Table() *Table { return s.table }

func (s *Store) log() *zap.Logger { return s.table.logger() }

// check validates the struct tags of every entity.
func (s *Store) check(entities ...Entity) error {
	for _, e := range entities {
		if err := s.validate.Struct(e); err != nil {
			return fmt.Errorf("%w: %T: %v", ErrInvalidInput, e, err)
		}
	}
	return nil
}

// checkKeys rejects entities whose key ids contain the key delimiter. Unlike
// check it ignores every other constraint, so partially populated entities
// that only identify an item may pass.
func (s *Store) checkKeys(entities ...Entity) error {
	for _, e := range entities {
		err := s.validate.Struct(e)
		var invalid validator.ValidationErrors
		if !errors.As(err, &invalid) {
			continue
		}
		for _, fe := range invalid {
			if fe.Tag() == "excludes" {
				return fmt.Errorf("%w: %T: %s contains %q", ErrInvalidInput, e, fe.Namespace(), KeyDelimiter)
			}
		}
	}
	return nil
}

// keyOf resolves the primary key of e without stamping it.
func keyOf(e Entity) (pk, sk string, err error) {
	var opts MarshalOptions
	if err := e.MarshalSelf(&opts); err != nil {
		return "", "", fmt.Errorf("failed to marshal self: %w", err)
	}
	if opts.PartitionKey == "" || opts.SortKey == "" {
		return "", "", fmt.Errorf("%w: entity %T produced an empty key", ErrInvalidInput, e)
	}
	return opts.PartitionKey, opts.SortKey, nil
}

// writeGuarded reports whether e may only be written through a dedicated
// operation. Pointers are derived from canonical records and canonical
// records carry versions and watermarks.
func writeGuarded(e Entity) bool {
	switch e.(type) {
	case *HangoutPointer, *SeriesPointer, *Hangout, *EventSeries, *Group:
		return true
	}
	return false
}

// Save writes e, replacing any existing item with the same key. Pointers and
// canonical records are rejected; use the operation that owns them.
func (s *Store) Save(ctx context.Context, e Entity) error {
	const op = "Save"
	if writeGuarded(e) {
		return fmt.Errorf("%w: %T has a dedicated write path", ErrInvalidInput, e)
	}
	if err := s.check(e); err != nil {
		return err
	}

	input, err := s.table.MarshalPut(e)
	if err != nil {
		return err
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		err = classifyError(op, err)
		s.log().Error("failed to save item",
			zap.String("operation", op),
			zap.String("pk", e.Base().PK),
			zap.String("sk", e.Base().SK),
			zap.Error(err))
		return err
	}

	s.log().Debug("saved item",
		zap.String("itemType", string(e.Base().ItemType)),
		zap.String("pk", e.Base().PK),
		zap.String("sk", e.Base().SK))
	return nil
}

// Delete removes the item e identifies. Deleting a missing item is not an
// error. Pointers and canonical records are rejected.
func (s *Store) Delete(ctx context.Context, e Entity) error {
	const op = "Delete"
	if writeGuarded(e) {
		return fmt.Errorf("%w: %T has a dedicated delete path", ErrInvalidInput, e)
	}
	if err := s.checkKeys(e); err != nil {
		return err
	}

	pk, sk, err := keyOf(e)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteItem(ctx, s.table.MarshalDelete(pk, sk)); err != nil {
		err = classifyError(op, err)
		s.log().Error("failed to delete item",
			zap.String("operation", op),
			zap.String("pk", pk),
			zap.String("sk", sk),
			zap.Error(err))
		return err
	}
	return nil
}

// Find reads the item at pk/sk into a new T. A missing item yields a
// ResourceNotFoundError.
func Find[T any, PT interface {
	*T
	Entity
}](ctx context.Context, s *Store, pk, sk string) (PT, error) {
	out := PT(new(T))
	resource, err := discriminatorOf(out)
	if err != nil {
		return nil, err
	}

	if err := s.get(ctx, pk, sk, out, string(resource), pk+"/"+sk); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) get(ctx context.Context, pk, sk string, out Entity, resource, id string) error {
	const op = "GetItem"
	result, err := s.client.GetItem(ctx, s.table.MarshalGet(pk, sk))
	if err != nil {
		err = classifyError(op, err)
		s.log().Error("failed to read item",
			zap.String("operation", op),
			zap.String("pk", pk),
			zap.String("sk", sk),
			zap.Error(err))
		return err
	}

	if len(result.Item) == 0 {
		return notFound(resource, id)
	}

	if err := s.table.registry().Unmarshal(result.Item, out, s.table.LegacyTypeInference); err != nil {
		return &RepositoryError{Operation: op, Err: err}
	}
	return nil
}

// FindGroup returns the group metadata record.
func (s *Store) FindGroup(ctx context.Context, groupID string) (*Group, error) {
	out := &Group{}
	if err := s.get(ctx, GroupPK(groupID), MetadataSK, out, "group", groupID); err != nil {
		return nil, err
	}
	return out, nil
}

// FindHangout returns the canonical hangout record.
func (s *Store) FindHangout(ctx context.Context, hangoutID string) (*Hangout, error) {
	out := &Hangout{}
	if err := s.get(ctx, EventPK(hangoutID), MetadataSK, out, "hangout", hangoutID); err != nil {
		return nil, err
	}
	return out, nil
}

// FindEventSeries returns the canonical series record.
func (s *Store) FindEventSeries(ctx context.Context, seriesID string) (*EventSeries, error) {
	out := &EventSeries{}
	if err := s.get(ctx, SeriesPK(seriesID), MetadataSK, out, "series", seriesID); err != nil {
		return nil, err
	}
	return out, nil
}

// FindMembership returns the membership of userID in groupID.
func (s *Store) FindMembership(ctx context.Context, groupID, userID string) (*GroupMembership, error) {
	out := &GroupMembership{}
	if err := s.get(ctx, GroupPK(groupID), MembershipSK(userID), out, "membership", groupID+"/"+userID); err != nil {
		return nil, err
	}
	return out, nil
}

// FindSeason returns one season of a show.
func (s *Store) FindSeason(ctx context.Context, showID string, seasonNumber int) (*Season, error) {
	out := &Season{}
	if err := s.get(ctx, ShowPK(showID), SeasonSK(seasonNumber), out, "season", fmt.Sprintf("%s/%d", showID, seasonNumber)); err != nil {
		return nil, err
	}
	return out, nil
}

// FindReservationOffer returns one reservation offer of a hangout.
func (s *Store) FindReservationOffer(ctx context.Context, hangoutID, offerID string) (*ReservationOffer, error) {
	out := &ReservationOffer{}
	if err := s.get(ctx, EventPK(hangoutID), ReservationOfferSK(offerID), out, "reservation offer", offerID); err != nil {
		return nil, err
	}
	return out, nil
}

// queryEntities runs q to exhaustion and decodes the results.
func (s *Store) queryEntities(ctx context.Context, op string, q QueryMarshaler, fields ...zap.Field) ([]Entity, error) {
	items, err := QueryAll(ctx, s.client, s.table, q)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		err = classifyError(op, err)
		s.log().Error("query failed", append(fields, zap.String("operation", op), zap.Error(err))...)
		return nil, err
	}

	entities, err := s.table.decode(items)
	if err != nil {
		return nil, &RepositoryError{Operation: op, Err: err}
	}
	return entities, nil
}

// ofType keeps the entities of type T, in order.
func ofType[T Entity](entities []Entity) []T {
	var out []T
	for _, e := range entities {
		if typed, ok := e.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

// commit submits the transaction built in b. Failures are logged with fields
// and returned classified.
func (s *Store) commit(ctx context.Context, op string, b *TransactionBuilder, fields ...zap.Field) error {
	input, err := b.Build()
	if err != nil {
		s.log().Error("failed to build transaction",
			append(fields, zap.String("operation", op), zap.Error(err))...)
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.client.TransactWriteItems(ctx, input); err != nil {
		err = classifyError(op, err)
		outcome := OutcomeError
		if IsTransactionFailed(err) {
			outcome = OutcomeConflict
		}
		s.table.Metrics.transaction(op, outcome)
		s.log().Error("transaction failed",
			append(fields,
				zap.String("operation", op),
				zap.Int("items", len(input.TransactItems)),
				zap.Error(err))...)
		return err
	}

	s.table.Metrics.transaction(op, OutcomeCommitted)
	s.log().Debug("transaction committed",
		append(fields, zap.String("operation", op), zap.Int("items", len(input.TransactItems)))...)
	return nil
}

// batchDelete removes keys in chunks of the table batch size. It returns the
// number of deleted items and the keys DynamoDB left unprocessed.
func (s *Store) batchDelete(ctx context.Context, op string, keys []Item) (int, []Item, error) {
	var (
		deleted     int
		unprocessed []Item
	)

	for i, batch := range s.table.MarshalBatchDelete(keys) {
		out, err := s.client.BatchWriteItem(ctx, batch)
		if err != nil {
			err = classifyError(op, err)
			s.log().Error("batch delete failed",
				zap.String("operation", op),
				zap.Int("chunk", i),
				zap.Error(err))
			return deleted, unprocessed, err
		}

		sent := len(batch.RequestItems[s.table.TableName])
		var left []types.WriteRequest
		if out != nil {
			left = out.UnprocessedItems[s.table.TableName]
		}
		for _, req := range left {
			if req.DeleteRequest != nil {
				unprocessed = append(unprocessed, req.DeleteRequest.Key)
			}
		}

		deleted += sent - len(left)
		if len(left) > 0 {
			s.table.Metrics.unprocessed(len(left))
			s.log().Warn("batch delete left unprocessed items",
				zap.String("operation", op),
				zap.Int("chunk", i),
				zap.Int("unprocessed", len(left)))
		}
	}

	s.table.Metrics.deleted(deleted)
	return deleted, unprocessed, nil
}

// deletePartition removes every item of partition pk, querying again after
// each pass so that unprocessed items are retried. A pass that deletes
// nothing aborts with a RepositoryError.
func (s *Store) deletePartition(ctx context.Context, op, pk string) (int, error) {
	total := 0
	for pass := 0; pass < s.table.maxPages(); pass++ {
		items, err := QueryAll(ctx, s.client, s.table, &PartitionQuery{PartitionKey: pk, ConsistentRead: true})
		if err != nil {
			err = classifyError(op, err)
			s.log().Error("failed to read partition", zap.String("operation", op), zap.String("pk", pk), zap.Error(err))
			return total, err
		}
		if len(items) == 0 {
			return total, nil
		}

		keys := make([]Item, 0, len(items))
		for _, item := range items {
			ipk, isk, err := UnmarshalTableKey(item)
			if err != nil {
				return total, &RepositoryError{Operation: op, Err: err}
			}
			keys = append(keys, itemKey(ipk, isk))
		}

		deleted, unprocessed, err := s.batchDelete(ctx, op, keys)
		total += deleted
		if err != nil {
			return total, err
		}

		s.log().Debug("partition deletion pass",
			zap.String("operation", op),
			zap.String("pk", pk),
			zap.Int("pass", pass),
			zap.Int("deleted", deleted),
			zap.Int("unprocessed", len(unprocessed)))

		if deleted == 0 {
			err := &RepositoryError{
				Operation: op,
				Err:       fmt.Errorf("no progress deleting partition %s: %d items unprocessed", pk, len(unprocessed)),
			}
			s.log().Error("partition deletion stalled", zap.String("operation", op), zap.String("pk", pk), zap.Error(err))
			return total, err
		}
	}

	return total, &RepositoryError{Operation: op, Err: fmt.Errorf("partition %s not empty after %d passes", pk, s.table.maxPages())}
}
