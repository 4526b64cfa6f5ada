package hangoutstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"
)

// HangoutDetailData is the item collection of one hangout, split by type.
type HangoutDetailData struct {
	Hangout           *Hangout
	Polls             []*Poll
	Cars              []*Car
	CarRiders         []*CarRider
	Votes             []*Vote
	Attendance        []*InterestLevel
	Participations    []*Participation
	ReservationOffers []*ReservationOffer
}

// GetHangoutDetailData reads the whole EVENT# partition of a hangout in one
// query, following pages until exhausted.
func (s *Store) GetHangoutDetailData(ctx context.Context, hangoutID string) (*HangoutDetailData, error) {
	entities, err := s.queryEntities(ctx, "GetHangoutDetailData",
		&PartitionQuery{PartitionKey: EventPK(hangoutID)},
		zap.String("hangoutId", hangoutID))
	if err != nil {
		return nil, err
	}

	data := &HangoutDetailData{}
	for _, e := range entities {
		switch v := e.(type) {
		case *Hangout:
			data.Hangout = v
		case *Poll:
			data.Polls = append(data.Polls, v)
		case *Car:
			data.Cars = append(data.Cars, v)
		case *CarRider:
			data.CarRiders = append(data.CarRiders, v)
		case *Vote:
			data.Votes = append(data.Votes, v)
		case *InterestLevel:
			data.Attendance = append(data.Attendance, v)
		case *Participation:
			data.Participations = append(data.Participations, v)
		case *ReservationOffer:
			data.ReservationOffers = append(data.ReservationOffers, v)
		default:
			s.log().Warn("ignoring unexpected item in hangout partition",
				zap.String("hangoutId", hangoutID),
				zap.String("itemType", string(e.Base().ItemType)))
		}
	}

	if data.Hangout == nil {
		return nil, notFound("hangout", hangoutID)
	}
	return data, nil
}

// GroupCollection is the item collection of one group, split by type.
type GroupCollection struct {
	Group           *Group
	Members         []*GroupMembership
	HangoutPointers []*HangoutPointer
	SeriesPointers  []*SeriesPointer
	InviteCodes     []*InviteCode
	Places          []*Place
	IdeaLists       []*IdeaList
	Ideas           []*IdeaListMember
}

// GetGroupCollection reads the whole GROUP# partition of a group.
func (s *Store) GetGroupCollection(ctx context.Context, groupID string) (*GroupCollection, error) {
	entities, err := s.queryEntities(ctx, "GetGroupCollection",
		&PartitionQuery{PartitionKey: GroupPK(groupID)},
		zap.String("groupId", groupID))
	if err != nil {
		return nil, err
	}

	data := &GroupCollection{}
	for _, e := range entities {
		switch v := e.(type) {
		case *Group:
			data.Group = v
		case *GroupMembership:
			data.Members = append(data.Members, v)
		case *HangoutPointer:
			data.HangoutPointers = append(data.HangoutPointers, v)
		case *SeriesPointer:
			data.SeriesPointers = append(data.SeriesPointers, v)
		case *InviteCode:
			data.InviteCodes = append(data.InviteCodes, v)
		case *Place:
			data.Places = append(data.Places, v)
		case *IdeaList:
			data.IdeaLists = append(data.IdeaLists, v)
		case *IdeaListMember:
			data.Ideas = append(data.Ideas, v)
		default:
			s.log().Warn("ignoring unexpected item in group partition",
				zap.String("groupId", groupID),
				zap.String("itemType", string(e.Base().ItemType)))
		}
	}

	if data.Group == nil {
		return nil, notFound("group", groupID)
	}
	return data, nil
}

// prefixQuery reads the items of partition pk whose sort key begins with prefix.
func prefixQuery(pk, prefix string) *PartitionQuery {
	return &PartitionQuery{
		PartitionKey:  pk,
		SortKeyFilter: expression.Key(AttributeNameSK).BeginsWith(prefix),
	}
}

// FindMembersByGroupID returns every membership of a group.
func (s *Store) FindMembersByGroupID(ctx context.Context, groupID string) ([]*GroupMembership, error) {
	entities, err := s.queryEntities(ctx, "FindMembersByGroupID",
		prefixQuery(GroupPK(groupID), MembershipPrefix), zap.String("groupId", groupID))
	if err != nil {
		return nil, err
	}
	return ofType[*GroupMembership](entities), nil
}

// FindHangoutPointersByGroupID returns every hangout pointer of a group in
// sort key order.
func (s *Store) FindHangoutPointersByGroupID(ctx context.Context, groupID string) ([]*HangoutPointer, error) {
	entities, err := s.queryEntities(ctx, "FindHangoutPointersByGroupID",
		prefixQuery(GroupPK(groupID), HangoutPointerPrefix), zap.String("groupId", groupID))
	if err != nil {
		return nil, err
	}
	return ofType[*HangoutPointer](entities), nil
}

// FindSeriesPointersByGroupID returns every series pointer of a group.
func (s *Store) FindSeriesPointersByGroupID(ctx context.Context, groupID string) ([]*SeriesPointer, error) {
	entities, err := s.queryEntities(ctx, "FindSeriesPointersByGroupID",
		prefixQuery(GroupPK(groupID), SeriesPointerPrefix), zap.String("groupId", groupID))
	if err != nil {
		return nil, err
	}
	return ofType[*SeriesPointer](entities), nil
}

// FindInviteCodesByGroupID returns every invite code of a group.
func (s *Store) FindInviteCodesByGroupID(ctx context.Context, groupID string) ([]*InviteCode, error) {
	entities, err := s.queryEntities(ctx, "FindInviteCodesByGroupID",
		prefixQuery(GroupPK(groupID), InviteCodePrefix), zap.String("groupId", groupID))
	if err != nil {
		return nil, err
	}
	return ofType[*InviteCode](entities), nil
}

// FindPlacesByOwner returns the saved places of a user or group.
func (s *Store) FindPlacesByOwner(ctx context.Context, ownerType, ownerID string) ([]*Place, error) {
	pk := UserPK(ownerID)
	if ownerType == PlaceOwnerGroup {
		pk = GroupPK(ownerID)
	}

	entities, err := s.queryEntities(ctx, "FindPlacesByOwner",
		prefixQuery(pk, PlacePrefix), zap.String("ownerId", ownerID))
	if err != nil {
		return nil, err
	}
	return ofType[*Place](entities), nil
}

// FindSeasonsByShow returns the seasons of a show in season order.
func (s *Store) FindSeasonsByShow(ctx context.Context, showID string) ([]*Season, error) {
	entities, err := s.queryEntities(ctx, "FindSeasonsByShow",
		prefixQuery(ShowPK(showID), SeasonPrefix), zap.String("showId", showID))
	if err != nil {
		return nil, err
	}
	return ofType[*Season](entities), nil
}

// FindVotesByPoll returns the votes cast in one poll.
func (s *Store) FindVotesByPoll(ctx context.Context, hangoutID, pollID string) ([]*Vote, error) {
	entities, err := s.queryEntities(ctx, "FindVotesByPoll",
		prefixQuery(EventPK(hangoutID), VotePollPrefix(pollID)),
		zap.String("hangoutId", hangoutID), zap.String("pollId", pollID))
	if err != nil {
		return nil, err
	}
	return ofType[*Vote](entities), nil
}

// FindRidersByCar returns the riders of one car.
func (s *Store) FindRidersByCar(ctx context.Context, hangoutID, driverID string) ([]*CarRider, error) {
	entities, err := s.queryEntities(ctx, "FindRidersByCar",
		prefixQuery(EventPK(hangoutID), CarRiderDriverPrefix(driverID)),
		zap.String("hangoutId", hangoutID), zap.String("driverId", driverID))
	if err != nil {
		return nil, err
	}
	return ofType[*CarRider](entities), nil
}

// IdeaListWithMembers is an idea list together with its ideas.
type IdeaListWithMembers struct {
	List  *IdeaList
	Ideas []*IdeaListMember
}

// ideaPrefix is shared by IdeaListPrefix and IdeaListMemberPrefix, so one
// range read returns lists and ideas together.
const ideaPrefix = "IDEA"

// FindIdeaListsWithMembers returns every idea list of a group with its ideas
// attached. Ideas whose list is missing are dropped.
func (s *Store) FindIdeaListsWithMembers(ctx context.Context, groupID string) ([]*IdeaListWithMembers, error) {
	entities, err := s.queryEntities(ctx, "FindIdeaListsWithMembers",
		prefixQuery(GroupPK(groupID), ideaPrefix), zap.String("groupId", groupID))
	if err != nil {
		return nil, err
	}

	var (
		lists  []*IdeaListWithMembers
		byID   = make(map[string]*IdeaListWithMembers)
		orphan []*IdeaListMember
	)
	for _, list := range ofType[*IdeaList](entities) {
		entry := &IdeaListWithMembers{List: list}
		byID[list.ListID] = entry
		lists = append(lists, entry)
	}
	for _, idea := range ofType[*IdeaListMember](entities) {
		if entry, ok := byID[idea.ListID]; ok {
			entry.Ideas = append(entry.Ideas, idea)
			continue
		}
		orphan = append(orphan, idea)
	}

	if len(orphan) > 0 {
		s.log().Warn("ideas without a list",
			zap.String("groupId", groupID),
			zap.Int("count", len(orphan)))
	}
	return lists, nil
}
