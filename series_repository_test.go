package hangoutstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nisimpson/hangoutstore"
	"github.com/nisimpson/hangoutstore/dynamock"
	dassert "github.com/nisimpson/hangoutstore/dynamock/assert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var week = 7 * 24 * time.Hour

// newTwoPartSeries creates h1 in g1 and turns it into series s1 with a
// second part h2 in g2.
func newTwoPartSeries(t *testing.T, store *hangoutstore.Store) (*hangoutstore.EventSeries, *hangoutstore.Hangout, *hangoutstore.Hangout) {
	t.Helper()
	ctx := context.Background()
	createGroups(t, store, "g1", "g2")

	h1 := dynamock.NewHangout("h1", []string{"g1"})
	require.NoError(t, store.CreateHangout(ctx, h1))

	series := dynamock.NewSeries("s1", nil)
	h2 := dynamock.NewHangout("h2", []string{"g2"}, dynamock.WithStart(dynamock.FixtureStart.Add(week)))
	require.NoError(t, store.CreateSeriesWithNewPart(ctx, series, h1, h2))
	return series, h1, h2
}

func TestCreateSeriesWithNewPart(t *testing.T) {
	ctx := context.Background()
	store, client := dynamock.NewMemoryStore(t, clockAt(testNow))
	series, h1, h2 := newTwoPartSeries(t, store)

	assert.Equal(t, []string{"h1", "h2"}, series.HangoutIDs)
	assert.Equal(t, []string{"g1", "g2"}, series.GroupIDs)
	assert.Equal(t, "h1", series.PrimaryEventID)
	assert.Equal(t, int64(1), series.Version)
	assert.Equal(t, h1.StartTimestamp, series.StartTimestamp)
	assert.Equal(t, h2.EndTimestamp, series.EndTimestamp)

	assert.Equal(t, "s1", h1.SeriesID)
	assert.Equal(t, int64(2), h1.Version)
	assert.Equal(t, "s1", h2.SeriesID)
	assert.Equal(t, int64(1), h2.Version)

	stored := requireSeriesConsistent(t, store, "s1")
	assert.Equal(t, series.HangoutIDs, stored.HangoutIDs)
	assert.Equal(t, series.StartTimestamp, stored.StartTimestamp)

	dassert.Items(t, client.Items(store.Table().TableName)).
		HasItemTypeCount(hangoutstore.ItemTypeEventSeries, 1).
		HasItemTypeCount(hangoutstore.ItemTypeSeriesPointer, 2).
		HasItemTypeCount(hangoutstore.ItemTypeHangoutPointer, 2)

	t.Run("existing part of another series", func(t *testing.T) {
		other := dynamock.NewSeries("s2", nil)
		err := store.CreateSeriesWithNewPart(ctx, other, h1, dynamock.NewHangout("h3", []string{"g1"}))
		assert.ErrorIs(t, err, hangoutstore.ErrInvalidInput)
	})

	t.Run("stale existing hangout", func(t *testing.T) {
		h4 := dynamock.NewHangout("h4", []string{"g1"})
		require.NoError(t, store.CreateHangout(ctx, h4))
		stale := *h4
		stale.Version = 9

		s3 := dynamock.NewSeries("s3", nil)
		h5 := dynamock.NewHangout("h5", []string{"g1"})
		err := store.CreateSeriesWithNewPart(ctx, s3, &stale, h5)
		assert.True(t, hangoutstore.IsTransactionFailed(err), "got %v", err)

		_, err = store.FindEventSeries(ctx, "s3")
		assert.True(t, hangoutstore.IsNotFound(err), "a failed transaction must leave nothing behind")
		_, err = store.FindHangout(ctx, "h5")
		assert.True(t, hangoutstore.IsNotFound(err))

		assert.Empty(t, s3.HangoutIDs)
		assert.Zero(t, s3.Version)
		assert.Empty(t, h5.SeriesID)
		assert.Zero(t, h5.Version)
		assert.Empty(t, stale.SeriesID)
		assert.Equal(t, int64(9), stale.Version)

		require.NoError(t, store.CreateHangout(ctx, h5), "the rejected part is still a standalone hangout")
		assert.Equal(t, int64(1), h5.Version)
	})
}

func TestAddPartToExistingSeries(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)
	series, _, _ := newTwoPartSeries(t, store)
	stale := *series
	createGroups(t, store, "g3")

	h3 := dynamock.NewHangout("h3", []string{"g1", "g3"}, dynamock.WithStart(dynamock.FixtureStart.Add(2*week)))
	require.NoError(t, store.AddPartToExistingSeries(ctx, series, h3))

	assert.Equal(t, []string{"h1", "h2", "h3"}, series.HangoutIDs)
	assert.Equal(t, []string{"g1", "g2", "g3"}, series.GroupIDs)
	assert.Equal(t, int64(2), series.Version)
	assert.Equal(t, h3.EndTimestamp, series.EndTimestamp)
	assert.Equal(t, "s1", h3.SeriesID)

	stored := requireSeriesConsistent(t, store, "s1")
	assert.Equal(t, series.GroupIDs, stored.GroupIDs)
	assert.Equal(t, series.EndTimestamp, stored.EndTimestamp)

	t.Run("stale series conflicts", func(t *testing.T) {
		h4 := dynamock.NewHangout("h4", []string{"g1"})
		err := store.AddPartToExistingSeries(ctx, &stale, h4)
		assert.True(t, hangoutstore.IsTransactionFailed(err), "got %v", err)

		_, err = store.FindHangout(ctx, "h4")
		assert.True(t, hangoutstore.IsNotFound(err))

		assert.Equal(t, []string{"h1", "h2"}, stale.HangoutIDs)
		assert.Equal(t, int64(1), stale.Version)
		assert.Empty(t, h4.SeriesID)
		require.NoError(t, store.CreateHangout(ctx, h4))
	})

	t.Run("part already present", func(t *testing.T) {
		err := store.AddPartToExistingSeries(ctx, series, dynamock.NewHangout("h3", []string{"g1"}))
		assert.ErrorIs(t, err, hangoutstore.ErrInvalidInput)
	})
}

func TestAddPartToExistingSeriesRace(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)
	series, _, _ := newTwoPartSeries(t, store)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, id := range []string{"h3", "h4"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			mine := *series
			errs[i] = store.AddPartToExistingSeries(ctx, &mine, dynamock.NewHangout(id, []string{"g1"}))
		}(i, id)
	}
	wg.Wait()

	committed, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case hangoutstore.IsTransactionFailed(err):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, conflicted)

	stored := requireSeriesConsistent(t, store, "s1")
	assert.Equal(t, series.Version+1, stored.Version)
	assert.Len(t, stored.HangoutIDs, 3)
}

func TestSeriesLifecycle(t *testing.T) {
	ctx := context.Background()
	store, client := dynamock.NewMemoryStore(t)
	series, h1, h2 := newTwoPartSeries(t, store)

	h3 := dynamock.NewHangout("h3", []string{"g1"}, dynamock.WithStart(dynamock.FixtureStart.Add(2*week)))
	require.NoError(t, store.AddPartToExistingSeries(ctx, series, h3))

	// h2 leaves the series but is kept.
	require.NoError(t, store.UnlinkHangoutFromSeries(ctx, series, h2))
	assert.Equal(t, []string{"h1", "h3"}, series.HangoutIDs)
	assert.Empty(t, h2.SeriesID)
	assert.Equal(t, int64(2), h2.Version)
	requireSeriesConsistent(t, store, "s1")

	unlinked, err := store.FindHangout(ctx, "h2")
	require.NoError(t, err)
	assert.Empty(t, unlinked.SeriesID)
	assert.Equal(t, int64(2), unlinked.Version)

	pointers, err := store.FindHangoutPointersByGroupID(ctx, "g2")
	require.NoError(t, err)
	dassert.Pointers(t, pointers).HasCount(1).MirrorHangout(unlinked)

	// g2 only knew the series through h2.
	require.NoError(t, store.UpdateSeriesAfterHangoutChange(ctx, series, []*hangoutstore.Hangout{h1, h3}))
	assert.Equal(t, []string{"g1"}, series.GroupIDs)
	assert.Equal(t, h1.StartTimestamp, series.StartTimestamp)
	assert.Equal(t, h3.EndTimestamp, series.EndTimestamp)
	requireSeriesConsistent(t, store, "s1")
	dassert.Items(t, client.Items(store.Table().TableName)).
		LacksKey(hangoutstore.GroupPK("g2"), hangoutstore.SeriesPointerSK("s1"))

	// h3 is deleted together with its item collection.
	require.NoError(t, store.Save(ctx, dynamock.NewInterestLevel("h3", "u1", hangoutstore.InterestGoing)))
	require.NoError(t, store.RemoveHangoutFromSeries(ctx, series, h3))
	assert.Equal(t, []string{"h1"}, series.HangoutIDs)
	assert.Empty(t, partition(client, store, hangoutstore.EventPK("h3")))
	requireSeriesConsistent(t, store, "s1")

	require.NoError(t, store.DeleteSeriesAndFinalHangout(ctx, series, h1))
	_, err = store.FindEventSeries(ctx, "s1")
	assert.True(t, hangoutstore.IsNotFound(err))
	_, err = store.FindHangout(ctx, "h1")
	assert.True(t, hangoutstore.IsNotFound(err))

	dassert.Items(t, client.Items(store.Table().TableName)).
		HasItemTypeCount(hangoutstore.ItemTypeSeriesPointer, 0).
		HasItemTypeCount(hangoutstore.ItemTypeHangoutPointer, 1).
		HasItemTypeCount(hangoutstore.ItemTypeHangout, 1)
}

func TestSeriesMembershipChecks(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)
	series, h1, h2 := newTwoPartSeries(t, store)

	outsider := dynamock.NewHangout("h9", []string{"g1"})
	require.NoError(t, store.CreateHangout(ctx, outsider))

	tests := []struct {
		name string
		run  func() error
	}{
		{"unlink outsider", func() error { return store.UnlinkHangoutFromSeries(ctx, series, outsider) }},
		{"remove outsider", func() error { return store.RemoveHangoutFromSeries(ctx, series, outsider) }},
		{"delete final with parts left", func() error { return store.DeleteSeriesAndFinalHangout(ctx, series, h1) }},
		{"update with missing part", func() error {
			return store.UpdateSeriesAfterHangoutChange(ctx, series, []*hangoutstore.Hangout{h1})
		}},
		{"delete entire with outsider", func() error {
			return store.DeleteEntireSeries(ctx, series, []*hangoutstore.Hangout{h1, outsider})
		}},
		{"delete all with missing part", func() error {
			return store.DeleteEntireSeriesWithAllHangouts(ctx, series, []*hangoutstore.Hangout{h2})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), hangoutstore.ErrInvalidInput)
		})
	}

	requireSeriesConsistent(t, store, "s1")
}

func TestUpdateSeriesAfterHangoutChangeRejectsStaleParts(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)
	series, h1, h2 := newTwoPartSeries(t, store)

	stale := *h2
	h2.Title = "Rescheduled"
	h2.StartTimestamp += int64(time.Hour / time.Millisecond)
	h2.EndTimestamp += int64(time.Hour / time.Millisecond)
	require.NoError(t, store.UpdateHangout(ctx, h2))

	err := store.UpdateSeriesAfterHangoutChange(ctx, series, []*hangoutstore.Hangout{h1, &stale})
	assert.True(t, hangoutstore.IsTransactionFailed(err), "got %v", err)
	assert.Equal(t, int64(1), series.Version)

	require.NoError(t, store.UpdateSeriesAfterHangoutChange(ctx, series, []*hangoutstore.Hangout{h1, h2}))
	assert.Equal(t, h2.EndTimestamp, series.EndTimestamp)
	assert.Equal(t, int64(2), series.Version)
	requireSeriesConsistent(t, store, "s1")
}

func TestDeleteEntireSeries(t *testing.T) {
	ctx := context.Background()
	store, client := dynamock.NewMemoryStore(t)
	series, h1, h2 := newTwoPartSeries(t, store)

	require.NoError(t, store.DeleteEntireSeries(ctx, series, []*hangoutstore.Hangout{h1, h2}))

	_, err := store.FindEventSeries(ctx, "s1")
	assert.True(t, hangoutstore.IsNotFound(err))

	for _, h := range []*hangoutstore.Hangout{h1, h2} {
		stored, err := store.FindHangout(ctx, h.HangoutID)
		require.NoError(t, err)
		assert.Empty(t, stored.SeriesID)
		assert.Equal(t, h.Version, stored.Version)

		pointers, err := store.FindHangoutPointersByGroupID(ctx, h.AssociatedGroups[0])
		require.NoError(t, err)
		dassert.Pointers(t, pointers).HasCount(1).MirrorHangout(stored)
	}

	dassert.Items(t, client.Items(store.Table().TableName)).
		HasItemTypeCount(hangoutstore.ItemTypeSeriesPointer, 0).
		HasItemTypeCount(hangoutstore.ItemTypeHangout, 2)
}

func TestDeleteEntireSeriesWithAllHangouts(t *testing.T) {
	ctx := context.Background()
	store, client := dynamock.NewMemoryStore(t)
	series, h1, h2 := newTwoPartSeries(t, store)
	require.NoError(t, store.Save(ctx, dynamock.NewPoll("h2", "p1", "o1")))

	require.NoError(t, store.DeleteEntireSeriesWithAllHangouts(ctx, series, []*hangoutstore.Hangout{h2, h1}))

	items := client.Items(store.Table().TableName)
	dassert.Items(t, items).
		HasItemTypeCount(hangoutstore.ItemTypeEventSeries, 0).
		HasItemTypeCount(hangoutstore.ItemTypeSeriesPointer, 0).
		HasItemTypeCount(hangoutstore.ItemTypeHangout, 0).
		HasItemTypeCount(hangoutstore.ItemTypeHangoutPointer, 0).
		HasItemTypeCount(hangoutstore.ItemTypePoll, 0).
		HasItemTypeCount(hangoutstore.ItemTypeGroup, 2)
}
