package hangoutstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"
)

// Series attribute names.
const (
	attrHangoutIDs     = "hangoutIds"
	attrGroupIDs       = "groupIds"
	attrStartTimestamp = "startTimestamp"
	attrEndTimestamp   = "endTimestamp"
)

// bounds returns the earliest start and latest end of the hangouts. Unset
// timestamps are ignored.
func bounds(hangouts ...*Hangout) (start, end int64) {
	for _, h := range hangouts {
		if h.StartTimestamp > 0 && (start == 0 || h.StartTimestamp < start) {
			start = h.StartTimestamp
		}
		if h.EndTimestamp > end {
			end = h.EndTimestamp
		}
	}
	return start, end
}

func extendBounds(series *EventSeries, h *Hangout) (start, end int64) {
	start, end = series.StartTimestamp, series.EndTimestamp
	if h.StartTimestamp > 0 && (start == 0 || h.StartTimestamp < start) {
		start = h.StartTimestamp
	}
	if h.EndTimestamp > end {
		end = h.EndTimestamp
	}
	return start, end
}

func cloneSeries(series *EventSeries) EventSeries {
	next := *series
	next.HangoutIDs = append([]string(nil), series.HangoutIDs...)
	next.GroupIDs = append([]string(nil), series.GroupIDs...)
	return next
}

func putSeriesPointers(tx *TransactionBuilder, series *EventSeries) {
	for _, groupID := range unionGroups(series.GroupIDs) {
		tx.Put(NewSeriesPointer(series, groupID))
	}
}

func deleteSeriesPointers(tx *TransactionBuilder, seriesID string, groupIDs []string) {
	for _, groupID := range unionGroups(groupIDs) {
		tx.Delete(seriesPointerKey(groupID, seriesID), expression.ConditionBuilder{})
	}
}

// unlinkHangout adds the removal of a hangout's seriesId, guarded by its
// version, and rewrites its pointers. It returns the hangout as stored after
// the transaction.
func unlinkHangout(tx *TransactionBuilder, h *Hangout) Hangout {
	unlinked := *h
	unlinked.SeriesID = ""
	unlinked.Version = h.Version + 1

	tx.UpdateVersioned(hangoutKey(h.HangoutID), h.Version, expression.Remove(expression.Name(attrSeriesID)))
	putHangoutPointers(tx, &unlinked)
	return unlinked
}

// deleteHangout adds the deletion of a hangout and its pointers, guarded by
// the hangout version.
func deleteHangout(tx *TransactionBuilder, h *Hangout) {
	tx.DeleteVersioned(hangoutKey(h.HangoutID), h.Version)
	deleteHangoutPointers(tx, h.HangoutID, h.AssociatedGroups)
}

func seriesFields(series *EventSeries, extra ...zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("seriesId", series.SeriesID),
		zap.Int64("expectedVersion", series.Version),
	}, extra...)
}

// requireMember fails unless h is a part of series on both sides.
func requireMember(series *EventSeries, h *Hangout) error {
	if h.SeriesID != series.SeriesID || !series.Contains(h.HangoutID) {
		return fmt.Errorf("%w: hangout %s is not a part of series %s", ErrInvalidInput, h.HangoutID, series.SeriesID)
	}
	return nil
}

// requireAllParts fails unless hangouts are exactly the parts of series.
func requireAllParts(series *EventSeries, hangouts []*Hangout) error {
	if len(hangouts) != len(series.HangoutIDs) {
		return fmt.Errorf("%w: series %s has %d parts, got %d hangouts",
			ErrInvalidInput, series.SeriesID, len(series.HangoutIDs), len(hangouts))
	}
	for _, h := range hangouts {
		if err := requireMember(series, h); err != nil {
			return err
		}
	}
	return nil
}

// CreateSeriesWithNewPart turns existing into the first part of a new series
// and adds newPart as the second, in one transaction: the series is created,
// existing gets its seriesId and a version bump, both hangouts get their
// pointers rewritten and every group of the series gets a series pointer.
// On success series, existing and newPart reflect the stored state.
func (s *Store) CreateSeriesWithNewPart(ctx context.Context, series *EventSeries, existing, newPart *Hangout) error {
	const op = "CreateSeriesWithNewPart"
	if existing.SeriesID != "" {
		return fmt.Errorf("%w: hangout %s already belongs to series %s", ErrInvalidInput, existing.HangoutID, existing.SeriesID)
	}

	created := cloneSeries(series)
	part := *newPart
	if created.SeriesID == "" {
		created.SeriesID = NewID()
	}
	if part.HangoutID == "" {
		part.HangoutID = NewID()
	}
	if created.PrimaryEventID == "" {
		created.PrimaryEventID = existing.HangoutID
	}

	created.HangoutIDs = []string{existing.HangoutID, part.HangoutID}
	created.GroupIDs = unionGroups(existing.AssociatedGroups, part.AssociatedGroups)
	created.StartTimestamp, created.EndTimestamp = bounds(existing, &part)
	created.Version = 1
	part.SeriesID = created.SeriesID
	part.Version = 1

	if err := s.check(&created, existing, &part); err != nil {
		return err
	}

	linked := *existing
	linked.SeriesID = created.SeriesID
	linked.Version = existing.Version + 1

	tx := s.table.NewTransaction().
		Create(&created).
		UpdateVersioned(hangoutKey(existing.HangoutID), existing.Version,
			expression.Set(expression.Name(attrSeriesID), expression.Value(created.SeriesID)))
	putHangoutPointers(tx, &linked)
	tx.Create(&part)
	putHangoutPointers(tx, &part)
	putSeriesPointers(tx, &created)

	if err := s.commit(ctx, op, tx, seriesFields(&created,
		zap.String("hangoutId", existing.HangoutID),
		zap.String("newHangoutId", part.HangoutID))...); err != nil {
		return err
	}

	*series = created
	*newPart = part
	existing.SeriesID = linked.SeriesID
	existing.Version = linked.Version
	s.advanceWatermarks(ctx, op, created.GroupIDs)
	return nil
}

// AddPartToExistingSeries creates newPart inside series. The series gets the
// new id appended and a version bump, the new hangout and its pointers are
// written and every series pointer is replaced in full. On success series
// and newPart reflect the stored state; on failure both are left untouched.
func (s *Store) AddPartToExistingSeries(ctx context.Context, series *EventSeries, newPart *Hangout) error {
	const op = "AddPartToExistingSeries"
	part := *newPart
	if part.HangoutID == "" {
		part.HangoutID = NewID()
	}
	if series.Contains(part.HangoutID) {
		return fmt.Errorf("%w: hangout %s is already a part of series %s", ErrInvalidInput, part.HangoutID, series.SeriesID)
	}
	part.SeriesID = series.SeriesID
	part.Version = 1

	if err := s.check(series, &part); err != nil {
		return err
	}

	next := cloneSeries(series)
	next.HangoutIDs = append(next.HangoutIDs, part.HangoutID)
	next.GroupIDs = unionGroups(series.GroupIDs, part.AssociatedGroups)
	next.StartTimestamp, next.EndTimestamp = extendBounds(series, &part)
	next.Version = series.Version + 1

	ids := expression.Name(attrHangoutIDs)
	update := expression.Set(ids, expression.ListAppend(ids, expression.Value([]string{part.HangoutID})))
	if len(series.HangoutIDs) == 0 {
		update = expression.Set(ids, expression.Value(next.HangoutIDs))
	}
	update = update.
		Set(expression.Name(attrGroupIDs), expression.Value(next.GroupIDs)).
		Set(expression.Name(attrStartTimestamp), expression.Value(next.StartTimestamp)).
		Set(expression.Name(attrEndTimestamp), expression.Value(next.EndTimestamp))

	tx := s.table.NewTransaction().
		UpdateVersioned(seriesKey(series.SeriesID), series.Version, update).
		Create(&part)
	putHangoutPointers(tx, &part)
	putSeriesPointers(tx, &next)

	if err := s.commit(ctx, op, tx, seriesFields(series, zap.String("newHangoutId", part.HangoutID))...); err != nil {
		return err
	}

	*series = next
	*newPart = part
	s.advanceWatermarks(ctx, op, next.GroupIDs)
	return nil
}

// UnlinkHangoutFromSeries detaches hangout from series while keeping both.
// The series drops the id and is versioned, the hangout loses its seriesId
// and is versioned, and all affected pointers are rewritten.
func (s *Store) UnlinkHangoutFromSeries(ctx context.Context, series *EventSeries, hangout *Hangout) error {
	const op = "UnlinkHangoutFromSeries"
	if err := requireMember(series, hangout); err != nil {
		return err
	}

	next := cloneSeries(series)
	next.HangoutIDs = without(series.HangoutIDs, hangout.HangoutID)
	next.Version = series.Version + 1

	tx := s.table.NewTransaction().
		UpdateVersioned(seriesKey(series.SeriesID), series.Version,
			expression.Set(expression.Name(attrHangoutIDs), expression.Value(next.HangoutIDs)))
	unlinked := unlinkHangout(tx, hangout)
	putSeriesPointers(tx, &next)

	if err := s.commit(ctx, op, tx, seriesFields(series, zap.String("hangoutId", hangout.HangoutID))...); err != nil {
		return err
	}

	*series = next
	hangout.SeriesID = unlinked.SeriesID
	hangout.Version = unlinked.Version
	s.advanceWatermarks(ctx, op, unionGroups(series.GroupIDs, hangout.AssociatedGroups))
	return nil
}

// RemoveHangoutFromSeries deletes hangout, which must be a part of series,
// together with its pointers while keeping the series with its other parts.
// The remainder of the hangout's item collection is purged afterwards.
func (s *Store) RemoveHangoutFromSeries(ctx context.Context, series *EventSeries, hangout *Hangout) error {
	const op = "RemoveHangoutFromSeries"
	if err := requireMember(series, hangout); err != nil {
		return err
	}

	next := cloneSeries(series)
	next.HangoutIDs = without(series.HangoutIDs, hangout.HangoutID)
	next.Version = series.Version + 1

	tx := s.table.NewTransaction().
		UpdateVersioned(seriesKey(series.SeriesID), series.Version,
			expression.Set(expression.Name(attrHangoutIDs), expression.Value(next.HangoutIDs)))
	deleteHangout(tx, hangout)
	putSeriesPointers(tx, &next)

	if err := s.commit(ctx, op, tx, seriesFields(series, zap.String("hangoutId", hangout.HangoutID))...); err != nil {
		return err
	}

	*series = next
	s.advanceWatermarks(ctx, op, unionGroups(series.GroupIDs, hangout.AssociatedGroups))
	_, err := s.PurgeHangoutCollection(ctx, hangout.HangoutID)
	return err
}

// DeleteSeriesAndFinalHangout deletes a series whose only remaining part is
// hangout, together with the hangout and every pointer of both.
func (s *Store) DeleteSeriesAndFinalHangout(ctx context.Context, series *EventSeries, hangout *Hangout) error {
	const op = "DeleteSeriesAndFinalHangout"
	if err := requireMember(series, hangout); err != nil {
		return err
	}
	if len(series.HangoutIDs) != 1 {
		return fmt.Errorf("%w: series %s still has %d parts", ErrInvalidInput, series.SeriesID, len(series.HangoutIDs))
	}

	tx := s.table.NewTransaction().
		DeleteVersioned(seriesKey(series.SeriesID), series.Version)
	deleteSeriesPointers(tx, series.SeriesID, series.GroupIDs)
	deleteHangout(tx, hangout)

	if err := s.commit(ctx, op, tx, seriesFields(series, zap.String("hangoutId", hangout.HangoutID))...); err != nil {
		return err
	}

	s.advanceWatermarks(ctx, op, unionGroups(series.GroupIDs, hangout.AssociatedGroups))
	_, err := s.PurgeHangoutCollection(ctx, hangout.HangoutID)
	return err
}

// UpdateSeriesAfterHangoutChange recomputes the time window and groups of a
// series from its parts after one of them changed. Every part must be passed
// and is checked against its version, so the series is never derived from
// stale hangouts. Series pointers of groups the series left are deleted.
func (s *Store) UpdateSeriesAfterHangoutChange(ctx context.Context, series *EventSeries, parts []*Hangout) error {
	const op = "UpdateSeriesAfterHangoutChange"
	if err := requireAllParts(series, parts); err != nil {
		return err
	}

	groups := make([][]string, 0, len(parts))
	for _, h := range parts {
		groups = append(groups, h.AssociatedGroups)
	}

	next := cloneSeries(series)
	next.GroupIDs = unionGroups(groups...)
	next.StartTimestamp, next.EndTimestamp = bounds(parts...)
	next.Version = series.Version + 1

	update := expression.
		Set(expression.Name(attrGroupIDs), expression.Value(next.GroupIDs)).
		Set(expression.Name(attrStartTimestamp), expression.Value(next.StartTimestamp)).
		Set(expression.Name(attrEndTimestamp), expression.Value(next.EndTimestamp))

	tx := s.table.NewTransaction().
		UpdateVersioned(seriesKey(series.SeriesID), series.Version, update)
	for _, h := range parts {
		tx.ConditionCheck(hangoutKey(h.HangoutID), versionIs(h.Version).And(seriesIs(series.SeriesID)))
	}
	putSeriesPointers(tx, &next)
	deleteSeriesPointers(tx, series.SeriesID, without(series.GroupIDs, next.GroupIDs...))

	if err := s.commit(ctx, op, tx, seriesFields(series)...); err != nil {
		return err
	}

	touched := unionGroups(series.GroupIDs, next.GroupIDs)
	*series = next
	s.advanceWatermarks(ctx, op, touched)
	return nil
}

// DeleteEntireSeries deletes a series and its pointers while keeping its
// hangouts, which lose their seriesId. Every part must be passed.
func (s *Store) DeleteEntireSeries(ctx context.Context, series *EventSeries, hangouts []*Hangout) error {
	const op = "DeleteEntireSeries"
	if err := requireAllParts(series, hangouts); err != nil {
		return err
	}

	tx := s.table.NewTransaction().
		DeleteVersioned(seriesKey(series.SeriesID), series.Version)
	deleteSeriesPointers(tx, series.SeriesID, series.GroupIDs)

	unlinked := make([]Hangout, 0, len(hangouts))
	groups := [][]string{series.GroupIDs}
	for _, h := range hangouts {
		unlinked = append(unlinked, unlinkHangout(tx, h))
		groups = append(groups, h.AssociatedGroups)
	}

	if err := s.commit(ctx, op, tx, seriesFields(series, zap.Int("hangouts", len(hangouts)))...); err != nil {
		return err
	}

	for i, h := range hangouts {
		h.SeriesID = unlinked[i].SeriesID
		h.Version = unlinked[i].Version
	}
	s.advanceWatermarks(ctx, op, unionGroups(groups...))
	return nil
}

// DeleteEntireSeriesWithAllHangouts deletes a series, every one of its
// hangouts and all of their pointers in one transaction, then purges the
// hangouts' item collections.
func (s *Store) DeleteEntireSeriesWithAllHangouts(ctx context.Context, series *EventSeries, hangouts []*Hangout) error {
	const op = "DeleteEntireSeriesWithAllHangouts"
	if err := requireAllParts(series, hangouts); err != nil {
		return err
	}

	tx := s.table.NewTransaction().
		DeleteVersioned(seriesKey(series.SeriesID), series.Version)
	deleteSeriesPointers(tx, series.SeriesID, series.GroupIDs)

	groups := [][]string{series.GroupIDs}
	for _, h := range hangouts {
		deleteHangout(tx, h)
		groups = append(groups, h.AssociatedGroups)
	}

	if err := s.commit(ctx, op, tx, seriesFields(series, zap.Int("hangouts", len(hangouts)))...); err != nil {
		return err
	}

	s.advanceWatermarks(ctx, op, unionGroups(groups...))
	for _, h := range hangouts {
		if _, err := s.PurgeHangoutCollection(ctx, h.HangoutID); err != nil {
			return err
		}
	}
	return nil
}
