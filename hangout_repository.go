package hangoutstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Attributes owned by dedicated operations. Full record replacements leave
// them untouched.
const (
	attrSeriesID             = "seriesId"
	attrReminderSentAt       = "reminderSentAt"
	attrLastHangoutModified  = "lastHangoutModified"
	attrLastCheckedTimestamp = "lastCheckedTimestamp"
)

func hangoutKey(hangoutID string) Item { return itemKey(EventPK(hangoutID), MetadataSK) }
func seriesKey(seriesID string) Item   { return itemKey(SeriesPK(seriesID), MetadataSK) }

func hangoutPointerKey(groupID, hangoutID string) Item {
	return itemKey(GroupPK(groupID), HangoutPointerSK(hangoutID))
}

func seriesPointerKey(groupID, seriesID string) Item {
	return itemKey(GroupPK(groupID), SeriesPointerSK(seriesID))
}

// unionGroups merges id lists, keeping first-seen order and dropping blanks
// and duplicates.
func unionGroups(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// without returns ids minus every id listed in drop.
func without(ids []string, drop ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		keep := true
		for _, d := range drop {
			if id == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, id)
		}
	}
	return out
}

// putHangoutPointers adds one derived pointer per associated group of h.
func putHangoutPointers(tx *TransactionBuilder, h *Hangout) {
	for _, groupID := range unionGroups(h.AssociatedGroups) {
		tx.Put(NewHangoutPointer(h, groupID))
	}
}

func deleteHangoutPointers(tx *TransactionBuilder, hangoutID string, groupIDs []string) {
	for _, groupID := range unionGroups(groupIDs) {
		tx.Delete(hangoutPointerKey(groupID, hangoutID), expression.ConditionBuilder{})
	}
}

// seriesIs requires the stored seriesId of a hangout to equal seriesID, or to
// be absent when seriesID is empty.
func seriesIs(seriesID string) expression.ConditionBuilder {
	if seriesID == "" {
		return expression.AttributeNotExists(expression.Name(attrSeriesID))
	}
	return expression.Name(attrSeriesID).Equal(expression.Value(seriesID))
}

// CreateHangout writes the canonical hangout and one pointer per associated
// group in a single transaction. The hangout must not exist yet. Series
// membership is assigned by the series operations only.
func (s *Store) CreateHangout(ctx context.Context, h *Hangout) error {
	const op = "CreateHangout"
	if h.HangoutID == "" {
		h.HangoutID = NewID()
	}
	if h.SeriesID != "" {
		return fmt.Errorf("%w: hangout %s cannot be created inside series %s; use AddPartToExistingSeries",
			ErrInvalidInput, h.HangoutID, h.SeriesID)
	}
	if err := s.check(h); err != nil {
		return err
	}

	h.Version = 1
	tx := s.table.NewTransaction().Create(h)
	putHangoutPointers(tx, h)

	if err := s.commit(ctx, op, tx, zap.String("hangoutId", h.HangoutID)); err != nil {
		return err
	}
	s.advanceWatermarks(ctx, op, h.AssociatedGroups)
	return nil
}

// UpdateHangout replaces the mutable attributes of h and rewrites its
// pointers, guarded by h.Version. Pointers in removedGroupIDs are deleted.
// On success h.Version is advanced by one.
func (s *Store) UpdateHangout(ctx context.Context, h *Hangout, removedGroupIDs ...string) error {
	const op = "UpdateHangout"
	if err := s.check(h); err != nil {
		return err
	}

	next := *h
	next.Version = h.Version + 1

	tx := s.table.NewTransaction().
		ReplaceWhere(h, seriesIs(h.SeriesID), attrSeriesID, attrReminderSentAt)
	putHangoutPointers(tx, &next)
	deleteHangoutPointers(tx, h.HangoutID, without(removedGroupIDs, h.AssociatedGroups...))

	if err := s.commit(ctx, op, tx,
		zap.String("hangoutId", h.HangoutID),
		zap.Int64("expectedVersion", h.Version)); err != nil {
		return err
	}

	h.Version = next.Version
	s.advanceWatermarks(ctx, op, unionGroups(h.AssociatedGroups, removedGroupIDs))
	return nil
}

// DeleteHangout deletes the canonical hangout and its pointers in one
// transaction guarded by h.Version, then removes the rest of its item
// collection. Hangouts inside a series must leave it through
// RemoveHangoutFromSeries.
func (s *Store) DeleteHangout(ctx context.Context, h *Hangout) error {
	const op = "DeleteHangout"
	if h.SeriesID != "" {
		return fmt.Errorf("%w: hangout %s belongs to series %s; use RemoveHangoutFromSeries",
			ErrInvalidInput, h.HangoutID, h.SeriesID)
	}

	tx := s.table.NewTransaction().
		Delete(hangoutKey(h.HangoutID), versionIs(h.Version).And(seriesIs("")))
	deleteHangoutPointers(tx, h.HangoutID, h.AssociatedGroups)

	if err := s.commit(ctx, op, tx, zap.String("hangoutId", h.HangoutID)); err != nil {
		return err
	}

	s.advanceWatermarks(ctx, op, h.AssociatedGroups)
	_, err := s.PurgeHangoutCollection(ctx, h.HangoutID)
	return err
}

// PurgeHangoutCollection deletes every item left in the partition of a
// hangout and returns how many were removed. It is run after the canonical
// record was deleted and may be invoked again to finish an interrupted purge.
func (s *Store) PurgeHangoutCollection(ctx context.Context, hangoutID string) (int, error) {
	return s.deletePartition(ctx, "PurgeHangoutCollection", EventPK(hangoutID))
}

// ResyncHangoutPointers recomputes every pointer of a hangout from its
// canonical record. Pointers in staleGroupIDs that the hangout is no longer
// associated with are deleted. The rewrite is conditioned on the canonical
// version read, so a concurrent update fails the resync instead of being
// overwritten with older data.
func (s *Store) ResyncHangoutPointers(ctx context.Context, hangoutID string, staleGroupIDs ...string) error {
	const op = "ResyncHangoutPointers"
	h, err := s.FindHangout(ctx, hangoutID)
	if err != nil {
		return err
	}

	tx := s.table.NewTransaction().
		ConditionCheck(hangoutKey(hangoutID), versionIs(h.Version))
	putHangoutPointers(tx, h)
	deleteHangoutPointers(tx, hangoutID, without(staleGroupIDs, h.AssociatedGroups...))

	if tx.Len() == 1 {
		return nil
	}

	if err := s.commit(ctx, op, tx,
		zap.String("hangoutId", hangoutID),
		zap.Int64("version", h.Version)); err != nil {
		return err
	}

	s.log().Info("resynced hangout pointers",
		zap.String("hangoutId", hangoutID),
		zap.Strings("groups", h.AssociatedGroups),
		zap.Strings("staleGroups", staleGroupIDs))
	s.advanceWatermarks(ctx, op, unionGroups(h.AssociatedGroups, staleGroupIDs))
	return nil
}

// SetReminderSentAtIfNull records that the reminder of a hangout was sent.
// It reports false when another caller already recorded it. The hangout
// version is bumped with the marker.
func (s *Store) SetReminderSentAtIfNull(ctx context.Context, hangoutID string, sentAtMillis int64) (bool, error) {
	const op = "SetReminderSentAtIfNull"

	update := expression.
		Set(expression.Name(attrReminderSentAt), expression.Value(sentAtMillis)).
		Set(expression.Name(AttributeNameVersion), expression.Name(AttributeNameVersion).Plus(expression.Value(1))).
		Set(expression.Name(AttributeNameUpdatedAt), expression.Value(s.table.now()))
	cond := exists().And(expression.AttributeNotExists(expression.Name(attrReminderSentAt)))

	return s.conditionalUpdate(ctx, op, hangoutKey(hangoutID), update, cond, "hangout", hangoutID)
}

// UpdateLastCheckedTimestamp moves the last checked timestamp of a season
// forward. It reports false when the stored timestamp is already at or past
// checkedAtMillis.
func (s *Store) UpdateLastCheckedTimestamp(ctx context.Context, showID string, seasonNumber int, checkedAtMillis int64) (bool, error) {
	const op = "UpdateLastCheckedTimestamp"

	name := expression.Name(attrLastCheckedTimestamp)
	update := expression.
		Set(name, expression.Value(checkedAtMillis)).
		Set(expression.Name(AttributeNameUpdatedAt), expression.Value(s.table.now()))
	cond := exists().And(expression.Or(
		expression.AttributeNotExists(name),
		name.LessThan(expression.Value(checkedAtMillis)),
	))

	return s.conditionalUpdate(ctx, op, itemKey(ShowPK(showID), SeasonSK(seasonNumber)), update, cond,
		"season", fmt.Sprintf("%s/%d", showID, seasonNumber))
}

// conditionalUpdate runs an idempotent single item update. A failed condition
// on an existing item is reported as (false, nil); a missing item as a
// ResourceNotFoundError.
func (s *Store) conditionalUpdate(ctx context.Context, op string, key Item, update expression.UpdateBuilder,
	cond expression.ConditionBuilder, resource, id string) (bool, error) {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return false, fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.table.TableName),
		Key:                                 key,
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		s.log().Debug("conditional update applied", zap.String("operation", op), zap.String("id", id))
		return true, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return false, notFound(resource, id)
		}
		s.log().Debug("conditional update already applied", zap.String("operation", op), zap.String("id", id))
		return false, nil
	}

	err = classifyError(op, err)
	s.log().Error("conditional update failed", zap.String("operation", op), zap.String("id", id), zap.Error(err))
	return false, err
}
