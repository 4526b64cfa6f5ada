package hangoutstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/nisimpson/hangoutstore"
	"github.com/nisimpson/hangoutstore/dynamock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHangoutDetailData(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)
	createGroups(t, store, "g1")
	require.NoError(t, store.CreateHangout(ctx, dynamock.NewHangout("h1", []string{"g1"})))

	require.NoError(t, store.Save(ctx, dynamock.NewPoll("h1", "p1", "o1")))
	require.NoError(t, store.SaveVote(ctx, &hangoutstore.Vote{HangoutID: "h1", PollID: "p1", UserID: "u1", OptionID: "o1"}))
	require.NoError(t, store.SaveCar(ctx, dynamock.NewCar("h1", "d1", 3)))
	require.NoError(t, store.SaveCarRider(ctx, &hangoutstore.CarRider{HangoutID: "h1", DriverID: "d1", RiderID: "u2"}))
	require.NoError(t, store.Save(ctx, dynamock.NewInterestLevel("h1", "u1", hangoutstore.InterestGoing)))
	require.NoError(t, store.Save(ctx, dynamock.NewInterestLevel("h1", "u2", hangoutstore.InterestInterested)))
	require.NoError(t, store.Save(ctx, dynamock.NewReservationOffer("h1", "o1", 4)))
	_, err := store.ClaimSpot(ctx, "h1", "o1", "u1")
	require.NoError(t, err)

	// a neighbouring hangout must not leak into the collection
	require.NoError(t, store.CreateHangout(ctx, dynamock.NewHangout("h10", []string{"g1"})))
	require.NoError(t, store.Save(ctx, dynamock.NewPoll("h10", "p1")))

	data, err := store.GetHangoutDetailData(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "h1", data.Hangout.HangoutID)
	assert.Len(t, data.Polls, 1)
	assert.Len(t, data.Votes, 1)
	require.Len(t, data.Cars, 1)
	assert.Equal(t, 2, data.Cars[0].AvailableSeats)
	assert.Len(t, data.CarRiders, 1)
	assert.Len(t, data.Attendance, 2)
	assert.Len(t, data.Participations, 1)
	require.Len(t, data.ReservationOffers, 1)
	assert.Equal(t, 1, data.ReservationOffers[0].ClaimedSpots)

	_, err = store.GetHangoutDetailData(ctx, "missing")
	assert.True(t, hangoutstore.IsNotFound(err), "got %v", err)
}

func TestGetGroupCollection(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)

	require.NoError(t, store.CreateGroup(ctx, dynamock.NewGroup("g1"), dynamock.NewMembership("", "u1"), dynamock.NewMembership("", "u2")))
	h1 := dynamock.NewHangout("h1", []string{"g1"})
	require.NoError(t, store.CreateHangout(ctx, h1))
	require.NoError(t, store.CreateSeriesWithNewPart(ctx, dynamock.NewSeries("s1", nil), h1, dynamock.NewHangout("h2", []string{"g1"})))
	require.NoError(t, store.Save(ctx, dynamock.NewInviteCode("g1", "i1", "abc")))
	require.NoError(t, store.Save(ctx, &hangoutstore.Place{OwnerType: hangoutstore.PlaceOwnerGroup, OwnerID: "g1", PlaceID: "p1", Name: "Gym"}))
	require.NoError(t, store.Save(ctx, &hangoutstore.IdeaList{GroupID: "g1", ListID: "l1", Name: "Food"}))
	require.NoError(t, store.Save(ctx, &hangoutstore.IdeaListMember{GroupID: "g1", ListID: "l1", IdeaID: "i1", Name: "Noodles"}))

	data, err := store.GetGroupCollection(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", data.Group.GroupID)
	assert.Len(t, data.Members, 2)
	assert.Len(t, data.HangoutPointers, 2)
	assert.Len(t, data.SeriesPointers, 1)
	assert.Len(t, data.InviteCodes, 1)
	assert.Len(t, data.Places, 1)
	assert.Len(t, data.IdeaLists, 1)
	assert.Len(t, data.Ideas, 1)

	_, err = store.GetGroupCollection(ctx, "missing")
	assert.True(t, hangoutstore.IsNotFound(err), "got %v", err)
}

func TestFindIdeaListsWithMembers(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)
	createGroups(t, store, "g1")

	for _, e := range []hangoutstore.Entity{
		&hangoutstore.IdeaList{GroupID: "g1", ListID: "l1", Name: "Food"},
		&hangoutstore.IdeaList{GroupID: "g1", ListID: "l2", Name: "Hikes"},
		&hangoutstore.IdeaListMember{GroupID: "g1", ListID: "l1", IdeaID: "i1", Name: "Noodles"},
		&hangoutstore.IdeaListMember{GroupID: "g1", ListID: "l1", IdeaID: "i2", Name: "Tacos"},
		&hangoutstore.IdeaListMember{GroupID: "g1", ListID: "l9", IdeaID: "i3", Name: "Orphan"},
	} {
		require.NoError(t, store.Save(ctx, e))
	}

	lists, err := store.FindIdeaListsWithMembers(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, lists, 2)

	byID := map[string]*hangoutstore.IdeaListWithMembers{}
	for _, l := range lists {
		byID[l.List.ListID] = l
	}
	require.Contains(t, byID, "l1")
	require.Contains(t, byID, "l2")
	assert.Len(t, byID["l1"].Ideas, 2)
	assert.Empty(t, byID["l2"].Ideas)
}

func TestPartitionLookups(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)

	require.NoError(t, store.Save(ctx, &hangoutstore.Place{OwnerType: hangoutstore.PlaceOwnerUser, OwnerID: "u1", PlaceID: "home", Name: "Home", IsPrimary: true}))
	require.NoError(t, store.Save(ctx, &hangoutstore.Place{OwnerType: hangoutstore.PlaceOwnerGroup, OwnerID: "u1", PlaceID: "hq", Name: "HQ"}))

	places, err := store.FindPlacesByOwner(ctx, hangoutstore.PlaceOwnerUser, "u1")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "home", places[0].PlaceID)

	places, err = store.FindPlacesByOwner(ctx, hangoutstore.PlaceOwnerGroup, "u1")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "hq", places[0].PlaceID)

	for _, n := range []int{10, 2, 1} {
		require.NoError(t, store.Save(ctx, &hangoutstore.Season{ShowID: "show1", SeasonNumber: n}))
	}
	seasons, err := store.FindSeasonsByShow(ctx, "show1")
	require.NoError(t, err)
	require.Len(t, seasons, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{seasons[0].SeasonNumber, seasons[1].SeasonNumber, seasons[2].SeasonNumber})

	require.NoError(t, store.Save(ctx, dynamock.NewInviteCode("g1", "i1", "abc")))
	require.NoError(t, store.Save(ctx, dynamock.NewInviteCode("g1", "i2", "def")))
	codes, err := store.FindInviteCodesByGroupID(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, codes, 2)
}

func TestIndexLookups(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)

	require.NoError(t, store.CreateGroup(ctx, dynamock.NewGroup("g2"), dynamock.NewMembership("", "u1")))
	require.NoError(t, store.CreateGroup(ctx, dynamock.NewGroup("g1"),
		dynamock.NewMembership("", "u1", dynamock.WithCalendarToken("tok-1")),
		dynamock.NewMembership("", "u2")))

	t.Run("groups for user", func(t *testing.T) {
		memberships, err := store.FindGroupsForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, memberships, 2)
		assert.Equal(t, "g1", memberships[0].GroupID)
		assert.Equal(t, "g2", memberships[1].GroupID)
	})

	t.Run("calendar token", func(t *testing.T) {
		m, err := store.FindMembershipByCalendarToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "g1", m.GroupID)
		assert.Equal(t, "u1", m.UserID)

		_, err = store.FindMembershipByCalendarToken(ctx, "tok-2")
		assert.True(t, hangoutstore.IsNotFound(err), "got %v", err)
	})

	t.Run("invite code", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, dynamock.NewInviteCode("g1", "i1", "Join-Us")))

		code, err := store.FindInviteCodeByCode(ctx, "join-us")
		require.NoError(t, err)
		assert.Equal(t, "i1", code.InviteCodeID)

		_, err = store.FindInviteCodeByCode(ctx, "nope")
		assert.True(t, hangoutstore.IsNotFound(err), "got %v", err)
	})

	t.Run("external ids", func(t *testing.T) {
		h1 := dynamock.NewHangout("h1", []string{"g1"}, dynamock.WithExternalID("tm-1", "TICKETMASTER"))
		require.NoError(t, store.CreateHangout(ctx, h1))

		series := dynamock.NewSeries("s1", nil, func(s *hangoutstore.EventSeries) {
			s.ExternalID = "show-9"
			s.ExternalSource = "TVMAZE"
		})
		require.NoError(t, store.CreateSeriesWithNewPart(ctx, series, h1, dynamock.NewHangout("h2", []string{"g1"})))

		h, err := store.FindHangoutByExternalID(ctx, "tm-1", "TICKETMASTER")
		require.NoError(t, err)
		assert.Equal(t, "h1", h.HangoutID)

		_, err = store.FindHangoutByExternalID(ctx, "tm-1", "OTHER")
		assert.True(t, hangoutstore.IsNotFound(err), "got %v", err)

		s, err := store.FindSeriesByExternalID(ctx, "show-9", "TVMAZE")
		require.NoError(t, err)
		assert.Equal(t, "s1", s.SeriesID)

		_, err = store.FindSeriesByExternalID(ctx, "tm-1", "TICKETMASTER")
		assert.True(t, hangoutstore.IsNotFound(err), "got %v", err)
	})
}

func TestUpcomingForGroup(t *testing.T) {
	ctx := context.Background()
	store, _ := dynamock.NewMemoryStore(t)
	createGroups(t, store, "g1")

	start := dynamock.FixtureStart
	hangouts := []*hangoutstore.Hangout{
		dynamock.NewHangout("late", []string{"g1"}, dynamock.WithStart(start.Add(48*time.Hour))),
		dynamock.NewHangout("past", []string{"g1"}, dynamock.WithStart(start.Add(-48*time.Hour))),
		dynamock.NewHangout("soon", []string{"g1"}, dynamock.WithStart(start)),
		dynamock.NewHangout("someday", []string{"g1"}, dynamock.Unscheduled()),
	}
	for _, h := range hangouts {
		require.NoError(t, store.CreateHangout(ctx, h))
	}
	require.NoError(t, store.CreateSeriesWithNewPart(ctx, dynamock.NewSeries("s1", nil), hangouts[0],
		dynamock.NewHangout("later", []string{"g1"}, dynamock.WithStart(start.Add(week)))))

	now := start.Add(-time.Hour).UnixMilli()
	upcoming, err := store.FindUpcomingHangoutsForGroup(ctx, "g1", now)
	require.NoError(t, err)

	ids := make([]string, 0, len(upcoming))
	for _, p := range upcoming {
		ids = append(ids, p.HangoutID)
	}
	assert.Equal(t, []string{"soon", "late", "later"}, ids)

	series, err := store.FindUpcomingSeriesForGroup(ctx, "g1", now)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []string{"late", "later"}, series[0].HangoutIDs)

	series, err = store.FindUpcomingSeriesForGroup(ctx, "g1", start.Add(3*24*time.Hour).UnixMilli())
	require.NoError(t, err)
	assert.Empty(t, series, "series are placed on the timeline by their first part")
}
