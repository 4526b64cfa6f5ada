package hangoutstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/nisimpson/hangoutstore"
	"github.com/nisimpson/hangoutstore/dynamock"
	"github.com/stretchr/testify/require"
)

// clockAt pins the table clock to now.
func clockAt(now time.Time) func(*hangoutstore.Table) {
	return func(t *hangoutstore.Table) {
		t.Tick = func() time.Time { return now }
	}
}

// smallBatches lowers the batch and chunk size so multi-chunk paths run
// with few fixtures.
func smallBatches(n int) func(*hangoutstore.Table) {
	return func(t *hangoutstore.Table) { t.BatchSize = n }
}

func seed(t *testing.T, store *hangoutstore.Store, client *dynamock.MemoryClient, entities ...hangoutstore.Entity) {
	t.Helper()
	err := dynamock.NewSeedTestData(client, store.Table()).SeedEntities(context.Background(), entities...)
	require.NoError(t, err)
}

func createGroups(t *testing.T, store *hangoutstore.Store, groupIDs ...string) []*hangoutstore.Group {
	t.Helper()
	out := make([]*hangoutstore.Group, 0, len(groupIDs))
	for _, id := range groupIDs {
		g := dynamock.NewGroup(id)
		require.NoError(t, store.CreateGroup(context.Background(), g))
		out = append(out, g)
	}
	return out
}

// partition returns the raw items stored under pk.
func partition(client *dynamock.MemoryClient, store *hangoutstore.Store, pk string) []hangoutstore.Item {
	var out []hangoutstore.Item
	for _, item := range client.Items(store.Table().TableName) {
		itemPK, _, err := hangoutstore.UnmarshalTableKey(item)
		if err == nil && itemPK == pk {
			out = append(out, item)
		}
	}
	return out
}

// requireSeriesConsistent checks that series and every record derived from
// it agree: each part points back at the series, and every group pointer
// carries the series' part list.
func requireSeriesConsistent(t *testing.T, store *hangoutstore.Store, seriesID string) *hangoutstore.EventSeries {
	t.Helper()
	ctx := context.Background()

	series, err := store.FindEventSeries(ctx, seriesID)
	require.NoError(t, err)

	for _, id := range series.HangoutIDs {
		h, err := store.FindHangout(ctx, id)
		require.NoError(t, err)
		require.Equal(t, seriesID, h.SeriesID, "part %s", id)

		for _, groupID := range h.AssociatedGroups {
			pointers, err := store.FindHangoutPointersByGroupID(ctx, groupID)
			require.NoError(t, err)
			found := false
			for _, p := range pointers {
				if p.HangoutID == id {
					found = true
					require.Equal(t, seriesID, p.SeriesID, "pointer %s/%s", groupID, id)
					require.Equal(t, h.Version, p.HangoutVersion, "pointer %s/%s", groupID, id)
				}
			}
			require.True(t, found, "missing pointer %s/%s", groupID, id)
		}
	}

	for _, groupID := range series.GroupIDs {
		pointers, err := store.FindSeriesPointersByGroupID(ctx, groupID)
		require.NoError(t, err)
		require.Len(t, pointers, 1, "series pointers of %s", groupID)
		require.Equal(t, series.HangoutIDs, pointers[0].HangoutIDs)
		require.Equal(t, series.Version, pointers[0].SeriesVersion)
	}
	return series
}
