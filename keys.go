package hangoutstore

import (
	"fmt"
	"strings"
)

// Key segment delimiter.
const KeyDelimiter = "#"

// Partition key prefixes.
const (
	GroupPrefix  = "GROUP#"
	EventPrefix  = "EVENT#"
	SeriesPrefix = "SERIES#"
	UserPrefix   = "USER#"
	ShowPrefix   = "SHOW#"
	PagePrefix   = "PAGE#"
)

// Sort key prefixes. No prefix in this list is a prefix of another, so a
// begins_with condition selects exactly one entity type.
const (
	MetadataSK             = "METADATA"
	MembershipPrefix       = "USER#"
	HangoutPointerPrefix   = "HANGOUT#"
	SeriesPointerPrefix    = "SERIES#"
	PollPrefix             = "POLL#"
	CarPrefix              = "CAR#"
	CarRiderPrefix         = "RIDER#"
	VotePrefix             = "VOTE#"
	InterestLevelPrefix    = "ATTENDANCE#"
	ParticipationPrefix    = "PARTICIPATION#"
	ReservationOfferPrefix = "OFFER#"
	SeasonPrefix           = "SEASON#"
	InviteCodePrefix       = "INVITE#"
	PlacePrefix            = "PLACE#"
	IdeaListPrefix         = "IDEALIST#"
	IdeaListMemberPrefix   = "IDEA#"
)

// GSI key prefixes.
const (
	CalendarTokenPrefix = "TOKEN#"
	InviteCodeGSIPrefix = "CODE#"
	TimePrefix          = "T#"
)

// Partition keys
func GroupPK(groupID string) string     { return GroupPrefix + groupID }
func EventPK(hangoutID string) string   { return EventPrefix + hangoutID }
func SeriesPK(seriesID string) string   { return SeriesPrefix + seriesID }
func UserPK(userID string) string       { return UserPrefix + userID }
func ShowPK(showID string) string       { return ShowPrefix + showID }
func PageCursorPK(cursor string) string { return PagePrefix + cursor }

// Sort keys
func MembershipSK(userID string) string          { return MembershipPrefix + userID }
func HangoutPointerSK(hangoutID string) string   { return HangoutPointerPrefix + hangoutID }
func SeriesPointerSK(seriesID string) string     { return SeriesPointerPrefix + seriesID }
func PollSK(pollID string) string                { return PollPrefix + pollID }
func CarSK(driverID string) string               { return CarPrefix + driverID }
func CarRiderSK(driverID, riderID string) string { return CarRiderPrefix + driverID + KeyDelimiter + riderID }
func InterestLevelSK(userID string) string       { return InterestLevelPrefix + userID }
func ParticipationSK(id string) string           { return ParticipationPrefix + id }
func ReservationOfferSK(offerID string) string   { return ReservationOfferPrefix + offerID }
func InviteCodeSK(inviteCodeID string) string    { return InviteCodePrefix + inviteCodeID }
func PlaceSK(placeID string) string              { return PlacePrefix + placeID }
func IdeaListSK(listID string) string            { return IdeaListPrefix + listID }

func VoteSK(pollID, userID, optionID string) string {
	return VotePrefix + pollID + KeyDelimiter + userID + KeyDelimiter + optionID
}

// VotePollPrefix selects every vote cast in a single poll.
func VotePollPrefix(pollID string) string { return VotePrefix + pollID + KeyDelimiter }

// CarRiderDriverPrefix selects every rider of a single car.
func CarRiderDriverPrefix(driverID string) string { return CarRiderPrefix + driverID + KeyDelimiter }

func SeasonSK(seasonNumber int) string { return fmt.Sprintf("%s%04d", SeasonPrefix, seasonNumber) }

func IdeaListMemberSK(listID, ideaID string) string {
	return IdeaListMemberPrefix + listID + KeyDelimiter + ideaID
}

// IdeaListMembersPrefix selects every idea of a single list.
func IdeaListMembersPrefix(listID string) string { return IdeaListMemberPrefix + listID + KeyDelimiter }

// GSI keys
func UserGSI1PK(userID string) string           { return UserPrefix + userID }
func GroupGSI1SK(groupID string) string         { return GroupPrefix + groupID }
func CalendarTokenGSI2PK(token string) string   { return CalendarTokenPrefix + token }
func InviteCodeGSI2PK(code string) string       { return InviteCodeGSIPrefix + strings.ToUpper(code) }
func GroupTimelineGSI2PK(groupID string) string { return GroupPrefix + groupID }

// TimeGSI2SK orders timeline entries by start time. The millisecond value is
// zero padded so lexical order matches numeric order.
func TimeGSI2SK(startMillis int64, entityPrefix, id string) string {
	return fmt.Sprintf("%s%013d#%s%s", TimePrefix, startMillis, entityPrefix, id)
}

// TimeGSI2Floor is the smallest timeline sort key at or after startMillis.
func TimeGSI2Floor(startMillis int64) string {
	return fmt.Sprintf("%s%013d", TimePrefix, startMillis)
}

// Predicates used to classify items by key shape.

func IsGroupPartition(pk string) bool  { return strings.HasPrefix(pk, GroupPrefix) }
func IsEventPartition(pk string) bool  { return strings.HasPrefix(pk, EventPrefix) }
func IsSeriesPartition(pk string) bool { return strings.HasPrefix(pk, SeriesPrefix) }
func IsShowPartition(pk string) bool   { return strings.HasPrefix(pk, ShowPrefix) }
func IsUserPartition(pk string) bool   { return strings.HasPrefix(pk, UserPrefix) }

func IsMetadata(sk string) bool                { return sk == MetadataSK }
func IsMembership(sk string) bool              { return strings.HasPrefix(sk, MembershipPrefix) }
func IsHangoutPointer(sk string) bool          { return strings.HasPrefix(sk, HangoutPointerPrefix) }
func IsSeriesPointer(sk string) bool           { return strings.HasPrefix(sk, SeriesPointerPrefix) }
func IsPollItem(sk string) bool                { return strings.HasPrefix(sk, PollPrefix) }
func IsCarItem(sk string) bool                 { return strings.HasPrefix(sk, CarPrefix) }
func IsCarRiderItem(sk string) bool            { return strings.HasPrefix(sk, CarRiderPrefix) }
func IsVoteItem(sk string) bool                { return strings.HasPrefix(sk, VotePrefix) }
func IsInterestLevelItem(sk string) bool       { return strings.HasPrefix(sk, InterestLevelPrefix) }
func IsParticipationItem(sk string) bool       { return strings.HasPrefix(sk, ParticipationPrefix) }
func IsReservationOfferItem(sk string) bool    { return strings.HasPrefix(sk, ReservationOfferPrefix) }
func IsSeasonItem(sk string) bool              { return strings.HasPrefix(sk, SeasonPrefix) }
func IsInviteCodeItem(sk string) bool          { return strings.HasPrefix(sk, InviteCodePrefix) }
func IsPlaceItem(sk string) bool               { return strings.HasPrefix(sk, PlacePrefix) }
func IsIdeaListItem(sk string) bool            { return strings.HasPrefix(sk, IdeaListPrefix) }
func IsIdeaListMemberItem(sk string) bool      { return strings.HasPrefix(sk, IdeaListMemberPrefix) }
func IsGroupMetadata(pk, sk string) bool       { return IsGroupPartition(pk) && IsMetadata(sk) }
func IsHangoutMetadata(pk, sk string) bool     { return IsEventPartition(pk) && IsMetadata(sk) }
func IsEventSeriesMetadata(pk, sk string) bool { return IsSeriesPartition(pk) && IsMetadata(sk) }

// ParseID returns the segment that follows prefix in key, or an empty string
// when key does not carry the prefix.
func ParseID(key, prefix string) string {
	if !strings.HasPrefix(key, prefix) {
		return ""
	}
	return strings.TrimPrefix(key, prefix)
}

// InferItemType classifies an item purely from its key shape. It serves rows
// written before the itemType attribute existed; ok is false when the keys
// match no known layout.
func InferItemType(pk, sk string) (ItemType, bool) {
	switch {
	case IsGroupPartition(pk):
		switch {
		case IsMetadata(sk):
			return ItemTypeGroup, true
		case IsMembership(sk):
			return ItemTypeGroupMembership, true
		case IsHangoutPointer(sk):
			return ItemTypeHangoutPointer, true
		case IsSeriesPointer(sk):
			return ItemTypeSeriesPointer, true
		case IsInviteCodeItem(sk):
			return ItemTypeInviteCode, true
		case IsPlaceItem(sk):
			return ItemTypePlace, true
		case IsIdeaListItem(sk):
			return ItemTypeIdeaList, true
		case IsIdeaListMemberItem(sk):
			return ItemTypeIdeaListMember, true
		}
	case IsEventPartition(pk):
		switch {
		case IsMetadata(sk):
			return ItemTypeHangout, true
		case IsPollItem(sk):
			return ItemTypePoll, true
		case IsCarItem(sk):
			return ItemTypeCar, true
		case IsCarRiderItem(sk):
			return ItemTypeCarRider, true
		case IsVoteItem(sk):
			return ItemTypeVote, true
		case IsInterestLevelItem(sk):
			return ItemTypeInterestLevel, true
		case IsParticipationItem(sk):
			return ItemTypeParticipation, true
		case IsReservationOfferItem(sk):
			return ItemTypeReservationOffer, true
		}
	case IsSeriesPartition(pk):
		if IsMetadata(sk) {
			return ItemTypeEventSeries, true
		}
	case IsShowPartition(pk):
		if IsSeasonItem(sk) {
			return ItemTypeSeason, true
		}
	case IsUserPartition(pk):
		if IsPlaceItem(sk) {
			return ItemTypePlace, true
		}
	}
	return "", false
}
