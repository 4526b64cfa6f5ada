package hangoutstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nisimpson/hangoutstore"
	"github.com/nisimpson/hangoutstore/dynamock"
	dassert "github.com/nisimpson/hangoutstore/dynamock/assert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCodec(t *testing.T) {
	ctx := context.Background()
	codec := hangoutstore.KeyCodec{}

	key := hangoutstore.Item{
		hangoutstore.AttributeNamePK: &types.AttributeValueMemberS{Value: hangoutstore.GroupPK("g1")},
		hangoutstore.AttributeNameSK: &types.AttributeValueMemberS{Value: hangoutstore.HangoutPointerSK("h1")},
	}

	token, err := codec.PageCursor(ctx, key)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := codec.StartKey(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	t.Run("empty", func(t *testing.T) {
		token, err := codec.PageCursor(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, token)

		key, err := codec.StartKey(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, token := range []string{"not base64!", "aGVsbG8gd29ybGQ"} {
			_, err := codec.StartKey(ctx, token)
			assert.ErrorIs(t, err, hangoutstore.ErrInvalidInput, token)
		}
	})
}

// collectPointerPages pages through the hangout pointers of a group and
// returns the hangout ids in read order with the number of pages read.
func collectPointerPages(t *testing.T, store *hangoutstore.Store, groupID string, limit int) ([]string, int) {
	t.Helper()
	var (
		ids   []string
		pages int
		token string
	)
	for {
		page, err := store.FindHangoutPointersPage(context.Background(), groupID, limit, token)
		require.NoError(t, err)
		pages++
		for _, p := range page.Items {
			ids = append(ids, p.HangoutID)
		}
		if page.NextToken == "" {
			return ids, pages
		}
		require.Less(t, pages, 10, "paging did not terminate")
		token = page.NextToken
	}
}

func TestFindHangoutPointersPage(t *testing.T) {
	want := []string{"h-0", "h-1", "h-2", "h-3", "h-4"}

	tests := []struct {
		name   string
		cursor bool
	}{
		{"key codec", false},
		{"table cursors", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, client := dynamock.NewMemoryStore(t, clockAt(testNow), func(tbl *hangoutstore.Table) {
				tbl.StoreCursors = tt.cursor
			})
			createGroups(t, store, "g1")
			for _, h := range dynamock.NewHangouts("h", 5, "g1") {
				require.NoError(t, store.CreateHangout(ctx, h))
			}

			ids, pages := collectPointerPages(t, store, "g1", 2)
			assert.Equal(t, want, ids)
			assert.Equal(t, 3, pages)

			items := dassert.Items(t, client.Items(store.Table().TableName))
			if tt.cursor {
				items.HasItemTypeCount(hangoutstore.ItemTypePageCursor, 2)
			} else {
				items.HasItemTypeCount(hangoutstore.ItemTypePageCursor, 0)
			}
		})
	}
}

func TestTablePaginatorExpiredCursor(t *testing.T) {
	ctx := context.Background()
	now := testNow
	store, _ := dynamock.NewMemoryStore(t, func(tbl *hangoutstore.Table) {
		tbl.StoreCursors = true
		tbl.Tick = func() time.Time { return now }
	})
	createGroups(t, store, "g1")
	for _, h := range dynamock.NewHangouts("h", 3, "g1") {
		require.NoError(t, store.CreateHangout(ctx, h))
	}

	first, err := store.FindHangoutPointersPage(ctx, "g1", 2, "")
	require.NoError(t, err)
	require.NotEmpty(t, first.NextToken)

	next, err := store.FindHangoutPointersPage(ctx, "g1", 2, first.NextToken)
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Equal(t, "h-2", next.Items[0].HangoutID)

	now = now.Add(store.Table().PaginationTTL + time.Minute)
	restarted, err := store.FindHangoutPointersPage(ctx, "g1", 2, first.NextToken)
	require.NoError(t, err)
	require.Len(t, restarted.Items, 2)
	assert.Equal(t, "h-0", restarted.Items[0].HangoutID, "an expired cursor restarts from the beginning")

	unknown, err := store.FindHangoutPointersPage(ctx, "g1", 2, "no-such-cursor")
	require.NoError(t, err)
	assert.Len(t, unknown.Items, 2)
}

func TestFindGroupsForUserPage(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)
	for _, id := range []string{"g3", "g1", "g2"} {
		require.NoError(t, store.CreateGroup(ctx, dynamock.NewGroup(id), dynamock.NewMembership("", "u1")))
	}

	page, err := store.FindGroupsForUserPage(ctx, "u1", 2, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "g1", page.Items[0].GroupID)
	assert.Equal(t, "g2", page.Items[1].GroupID)
	require.NotEmpty(t, page.NextToken)

	page, err = store.FindGroupsForUserPage(ctx, "u1", 2, page.NextToken)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "g3", page.Items[0].GroupID)
	assert.Empty(t, page.NextToken)

	_, err = store.FindGroupsForUserPage(ctx, "u1", 2, "%%%")
	assert.ErrorIs(t, err, hangoutstore.ErrInvalidInput)
}
