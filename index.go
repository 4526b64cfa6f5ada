package hangoutstore

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"
)

// FindGroupsForUser returns the memberships of a user across groups, in
// ascending group order, read from the user index.
func (s *Store) FindGroupsForUser(ctx context.Context, userID string) ([]*GroupMembership, error) {
	entities, err := s.queryEntities(ctx, "FindGroupsForUser", groupsForUserQuery(userID), zap.String("userId", userID))
	if err != nil {
		return nil, err
	}
	return ofType[*GroupMembership](entities), nil
}

func groupsForUserQuery(userID string) *IndexQuery {
	return &IndexQuery{
		Index:         IndexGSI1,
		PartitionKey:  UserGSI1PK(userID),
		SortKeyFilter: expression.Key(AttributeNameGSI1SK).BeginsWith(GroupPrefix),
	}
}

// FindMembershipByCalendarToken resolves a calendar subscription token to the
// membership that issued it.
func (s *Store) FindMembershipByCalendarToken(ctx context.Context, token string) (*GroupMembership, error) {
	entities, err := s.queryEntities(ctx, "FindMembershipByCalendarToken", &IndexQuery{
		Index:        IndexGSI2,
		PartitionKey: CalendarTokenGSI2PK(token),
	})
	if err != nil {
		return nil, err
	}

	found := ofType[*GroupMembership](entities)
	if len(found) == 0 {
		return nil, notFound("membership", "token")
	}
	return found[0], nil
}

// FindInviteCodeByCode resolves an invite code string. Codes are matched
// case-insensitively.
func (s *Store) FindInviteCodeByCode(ctx context.Context, code string) (*InviteCode, error) {
	entities, err := s.queryEntities(ctx, "FindInviteCodeByCode", &IndexQuery{
		Index:         IndexGSI2,
		PartitionKey:  InviteCodeGSI2PK(code),
		SortKeyFilter: expression.Key(AttributeNameGSI2SK).Equal(expression.Value(MetadataSK)),
	}, zap.String("code", code))
	if err != nil {
		return nil, err
	}

	found := ofType[*InviteCode](entities)
	if len(found) == 0 {
		return nil, notFound("invite code", strings.ToUpper(code))
	}
	return found[0], nil
}

func externalIDQuery(externalID, externalSource string) *IndexQuery {
	return &IndexQuery{
		Index:         IndexExternalID,
		PartitionKey:  externalID,
		SortKeyFilter: expression.Key(AttributeNameExternalSource).Equal(expression.Value(externalSource)),
	}
}

// FindSeriesByExternalID returns the series imported from an external source.
func (s *Store) FindSeriesByExternalID(ctx context.Context, externalID, externalSource string) (*EventSeries, error) {
	entities, err := s.queryEntities(ctx, "FindSeriesByExternalID", externalIDQuery(externalID, externalSource),
		zap.String("externalId", externalID), zap.String("externalSource", externalSource))
	if err != nil {
		return nil, err
	}

	found := ofType[*EventSeries](entities)
	if len(found) == 0 {
		return nil, notFound("series", externalSource+"/"+externalID)
	}
	return found[0], nil
}

// FindHangoutByExternalID returns the hangout imported from an external source.
func (s *Store) FindHangoutByExternalID(ctx context.Context, externalID, externalSource string) (*Hangout, error) {
	entities, err := s.queryEntities(ctx, "FindHangoutByExternalID", externalIDQuery(externalID, externalSource),
		zap.String("externalId", externalID), zap.String("externalSource", externalSource))
	if err != nil {
		return nil, err
	}

	found := ofType[*Hangout](entities)
	if len(found) == 0 {
		return nil, notFound("hangout", externalSource+"/"+externalID)
	}
	return found[0], nil
}

// upcomingQuery selects the timeline entries of a group starting at or after
// nowMillis, in chronological order.
func upcomingQuery(groupID string, nowMillis int64) *IndexQuery {
	return &IndexQuery{
		Index:         IndexGSI2,
		PartitionKey:  GroupTimelineGSI2PK(groupID),
		SortKeyFilter: expression.Key(AttributeNameGSI2SK).GreaterThanEqual(expression.Value(TimeGSI2Floor(nowMillis))),
	}
}

// FindUpcomingSeriesForGroup returns the series pointers of a group whose
// series starts at or after nowMillis, earliest first.
func (s *Store) FindUpcomingSeriesForGroup(ctx context.Context, groupID string, nowMillis int64) ([]*SeriesPointer, error) {
	entities, err := s.queryEntities(ctx, "FindUpcomingSeriesForGroup", upcomingQuery(groupID, nowMillis),
		zap.String("groupId", groupID))
	if err != nil {
		return nil, err
	}
	return ofType[*SeriesPointer](entities), nil
}

// FindUpcomingHangoutsForGroup returns the hangout pointers of a group
// starting at or after nowMillis, earliest first.
func (s *Store) FindUpcomingHangoutsForGroup(ctx context.Context, groupID string, nowMillis int64) ([]*HangoutPointer, error) {
	entities, err := s.queryEntities(ctx, "FindUpcomingHangoutsForGroup", upcomingQuery(groupID, nowMillis),
		zap.String("groupId", groupID))
	if err != nil {
		return nil, err
	}
	return ofType[*HangoutPointer](entities), nil
}
