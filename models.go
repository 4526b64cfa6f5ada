package hangoutstore

import "fmt"

// Group is the canonical group record.
type Group struct {
	BaseItem
	GroupID             string `dynamodbav:"groupId" validate:"required,excludes=#"`
	GroupName           string `dynamodbav:"groupName" validate:"required"`
	IsPublic            bool   `dynamodbav:"isPublic"`
	MainImagePath       string `dynamodbav:"mainImagePath,omitempty"`
	BackgroundImagePath string `dynamodbav:"backgroundImagePath,omitempty"`
	// LastHangoutModified is a unix millisecond watermark advanced by every
	// write that changes a hangout within the group.
	LastHangoutModified int64 `dynamodbav:"lastHangoutModified,omitempty"`
}

func (g *Group) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = GroupPK(g.GroupID)
	opts.SortKey = MetadataSK
	opts.ItemType = ItemTypeGroup
	return nil
}

// GroupMembership is the edge between a group and a user. Group name and
// image paths are copied onto it so member listings need no join.
type GroupMembership struct {
	BaseItem
	GroupID                  string `dynamodbav:"groupId" validate:"required,excludes=#"`
	UserID                   string `dynamodbav:"userId" validate:"required,excludes=#"`
	GroupName                string `dynamodbav:"groupName"`
	Role                     string `dynamodbav:"role,omitempty"`
	GroupMainImagePath       string `dynamodbav:"groupMainImagePath,omitempty"`
	GroupBackgroundImagePath string `dynamodbav:"groupBackgroundImagePath,omitempty"`
	UserDisplayName          string `dynamodbav:"userDisplayName,omitempty"`
	UserMainImagePath        string `dynamodbav:"userMainImagePath,omitempty"`
	CalendarToken            string `dynamodbav:"calendarToken,omitempty"`
}

func (m *GroupMembership) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = GroupPK(m.GroupID)
	opts.SortKey = MembershipSK(m.UserID)
	opts.ItemType = ItemTypeGroupMembership
	opts.GSI1PK = UserGSI1PK(m.UserID)
	opts.GSI1SK = GroupGSI1SK(m.GroupID)
	if m.CalendarToken != "" {
		opts.GSI2PK = CalendarTokenGSI2PK(m.CalendarToken)
		opts.GSI2SK = GroupGSI1SK(m.GroupID)
	}
	return nil
}

// Hangout is the canonical event record.
type Hangout struct {
	BaseItem
	HangoutID        string   `dynamodbav:"hangoutId" validate:"required,excludes=#"`
	Title            string   `dynamodbav:"title"`
	Description      string   `dynamodbav:"description,omitempty"`
	StartTimestamp   int64    `dynamodbav:"startTimestamp,omitempty"`
	EndTimestamp     int64    `dynamodbav:"endTimestamp,omitempty"`
	LocationName     string   `dynamodbav:"locationName,omitempty"`
	Visibility       string   `dynamodbav:"visibility,omitempty"`
	MainImagePath    string   `dynamodbav:"mainImagePath,omitempty"`
	CarpoolEnabled   bool     `dynamodbav:"carpoolEnabled"`
	AssociatedGroups []string `dynamodbav:"associatedGroups,omitempty" validate:"dive,excludes=#"`
	SeriesID         string   `dynamodbav:"seriesId,omitempty" validate:"excludes=#"`
	// ReminderSentAt is set at most once, by a conditional update.
	ReminderSentAt int64 `dynamodbav:"reminderSentAt,omitempty"`
}

func (h *Hangout) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = EventPK(h.HangoutID)
	opts.SortKey = MetadataSK
	opts.ItemType = ItemTypeHangout
	return nil
}

// HangoutPointer is the per-group projection of a Hangout.
type HangoutPointer struct {
	BaseItem
	GroupID        string `dynamodbav:"groupId" validate:"required,excludes=#"`
	HangoutID      string `dynamodbav:"hangoutId" validate:"required,excludes=#"`
	Title          string `dynamodbav:"title"`
	StartTimestamp int64  `dynamodbav:"startTimestamp,omitempty"`
	EndTimestamp   int64  `dynamodbav:"endTimestamp,omitempty"`
	LocationName   string `dynamodbav:"locationName,omitempty"`
	MainImagePath  string `dynamodbav:"mainImagePath,omitempty"`
	SeriesID       string `dynamodbav:"seriesId,omitempty"`
	// HangoutVersion is the source hangout version the pointer was derived from.
	HangoutVersion int64 `dynamodbav:"hangoutVersion"`
}

func (p *HangoutPointer) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = GroupPK(p.GroupID)
	opts.SortKey = HangoutPointerSK(p.HangoutID)
	opts.ItemType = ItemTypeHangoutPointer
	if p.StartTimestamp > 0 {
		opts.GSI2PK = GroupTimelineGSI2PK(p.GroupID)
		opts.GSI2SK = TimeGSI2SK(p.StartTimestamp, HangoutPointerPrefix, p.HangoutID)
	}
	return nil
}

// NewHangoutPointer derives the pointer of h inside groupID. Pointers are only
// ever built from their canonical hangout.
func NewHangoutPointer(h *Hangout, groupID string) *HangoutPointer {
	return &HangoutPointer{
		GroupID:        groupID,
		HangoutID:      h.HangoutID,
		Title:          h.Title,
		StartTimestamp: h.StartTimestamp,
		EndTimestamp:   h.EndTimestamp,
		LocationName:   h.LocationName,
		MainImagePath:  h.MainImagePath,
		SeriesID:       h.SeriesID,
		HangoutVersion: h.Version,
	}
}

// PollOption is a choice inside a Poll.
type PollOption struct {
	OptionID  string `dynamodbav:"optionId"`
	Text      string `dynamodbav:"text"`
	CreatedBy string `dynamodbav:"createdBy,omitempty"`
}

// Poll belongs to a hangout's item collection. Options are stored inline.
type Poll struct {
	BaseItem
	HangoutID      string       `dynamodbav:"hangoutId" validate:"required,excludes=#"`
	PollID         string       `dynamodbav:"pollId" validate:"required,excludes=#"`
	Title          string       `dynamodbav:"title"`
	Description    string       `dynamodbav:"description,omitempty"`
	MultipleChoice bool         `dynamodbav:"multipleChoice"`
	IsActive       bool         `dynamodbav:"isActive"`
	Options        []PollOption `dynamodbav:"options,omitempty"`
}

func (p *Poll) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = EventPK(p.HangoutID)
	opts.SortKey = PollSK(p.PollID)
	opts.ItemType = ItemTypePoll
	return nil
}

// Car is a carpool offer by a driver.
type Car struct {
	BaseItem
	HangoutID      string `dynamodbav:"hangoutId" validate:"required,excludes=#"`
	DriverID       string `dynamodbav:"driverId" validate:"required,excludes=#"`
	DriverName     string `dynamodbav:"driverName,omitempty"`
	TotalCapacity  int    `dynamodbav:"totalCapacity"`
	AvailableSeats int    `dynamodbav:"availableSeats"`
	Notes          string `dynamodbav:"notes,omitempty"`
}

func (c *Car) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = EventPK(c.HangoutID)
	opts.SortKey = CarSK(c.DriverID)
	opts.ItemType = ItemTypeCar
	return nil
}

// CarRider is a seat taken in a Car.
type CarRider struct {
	BaseItem
	HangoutID string `dynamodbav:"hangoutId" validate:"required,excludes=#"`
	DriverID  string `dynamodbav:"driverId" validate:"required,excludes=#"`
	RiderID   string `dynamodbav:"riderId" validate:"required,excludes=#"`
	RiderName string `dynamodbav:"riderName,omitempty"`
	Notes     string `dynamodbav:"notes,omitempty"`
}

func (r *CarRider) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = EventPK(r.HangoutID)
	opts.SortKey = CarRiderSK(r.DriverID, r.RiderID)
	opts.ItemType = ItemTypeCarRider
	return nil
}

// Vote is one user's choice of one option in a poll.
type Vote struct {
	BaseItem
	HangoutID string `dynamodbav:"hangoutId" validate:"required,excludes=#"`
	PollID    string `dynamodbav:"pollId" validate:"required,excludes=#"`
	UserID    string `dynamodbav:"userId" validate:"required,excludes=#"`
	OptionID  string `dynamodbav:"optionId" validate:"required,excludes=#"`
	VoteType  string `dynamodbav:"voteType,omitempty"`
}

func (v *Vote) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = EventPK(v.HangoutID)
	opts.SortKey = VoteSK(v.PollID, v.UserID, v.OptionID)
	opts.ItemType = ItemTypeVote
	return nil
}

// Attendance statuses.
const (
	InterestGoing      = "GOING"
	InterestInterested = "INTERESTED"
	InterestNotGoing   = "NOT_GOING"
)

// InterestLevel records a user's attendance intent for a hangout.
type InterestLevel struct {
	BaseItem
	HangoutID     string `dynamodbav:"hangoutId" validate:"required,excludes=#"`
	UserID        string `dynamodbav:"userId" validate:"required,excludes=#"`
	UserName      string `dynamodbav:"userName,omitempty"`
	Status        string `dynamodbav:"status" validate:"oneof=GOING INTERESTED NOT_GOING"`
	Notes         string `dynamodbav:"notes,omitempty"`
	MainImagePath string `dynamodbav:"mainImagePath,omitempty"`
}

func (i *InterestLevel) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = EventPK(i.HangoutID)
	opts.SortKey = InterestLevelSK(i.UserID)
	opts.ItemType = ItemTypeInterestLevel
	return nil
}

// Participation types.
const (
	ParticipationTicketNeeded    = "TICKET_NEEDED"
	ParticipationTicketPurchased = "TICKET_PURCHASED"
	ParticipationClaimedSpot     = "CLAIMED_SPOT"
)

// Participation tracks a user's ticket or reservation state for a hangout.
type Participation struct {
	BaseItem
	HangoutID          string `dynamodbav:"hangoutId" validate:"required,excludes=#"`
	ParticipationID    string `dynamodbav:"participationId" validate:"required,excludes=#"`
	UserID             string `dynamodbav:"userId" validate:"required,excludes=#"`
	Type               string `dynamodbav:"type"`
	Section            string `dynamodbav:"section,omitempty"`
	Seat               string `dynamodbav:"seat,omitempty"`
	ReservationOfferID string `dynamodbav:"reservationOfferId,omitempty"`
}

func (p *Participation) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = EventPK(p.HangoutID)
	opts.SortKey = ParticipationSK(p.ParticipationID)
	opts.ItemType = ItemTypeParticipation
	return nil
}

// ClaimParticipationID is the deterministic participation id of a user's
// claim on a reservation offer, so a user can hold at most one claim per offer.
func ClaimParticipationID(offerID, userID string) string {
	return "CLAIM_" + offerID + "_" + userID
}

// Reservation offer statuses.
const (
	OfferCollecting = "COLLECTING"
	OfferCompleted  = "COMPLETED"
	OfferCancelled  = "CANCELLED"
)

// ReservationOffer is a user's offer to buy tickets or hold a reservation
// with a fixed number of spots.
type ReservationOffer struct {
	BaseItem
	HangoutID    string `dynamodbav:"hangoutId" validate:"required,excludes=#"`
	OfferID      string `dynamodbav:"offerId" validate:"required,excludes=#"`
	UserID       string `dynamodbav:"userId" validate:"required,excludes=#"`
	Type         string `dynamodbav:"type,omitempty"`
	Section      string `dynamodbav:"section,omitempty"`
	BuyDate      int64  `dynamodbav:"buyDate,omitempty"`
	Capacity     int    `dynamodbav:"capacity" validate:"gte=0"`
	ClaimedSpots int    `dynamodbav:"claimedSpots" validate:"gte=0,ltefield=Capacity"`
	Status       string `dynamodbav:"status"`
}

func (o *ReservationOffer) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = EventPK(o.HangoutID)
	opts.SortKey = ReservationOfferSK(o.OfferID)
	opts.ItemType = ItemTypeReservationOffer
	return nil
}

// EventSeries is the canonical record of a multi-part series. HangoutIDs is
// ordered by insertion.
type EventSeries struct {
	BaseItem
	SeriesID          string   `dynamodbav:"seriesId" validate:"required,excludes=#"`
	SeriesTitle       string   `dynamodbav:"seriesTitle"`
	SeriesDescription string   `dynamodbav:"seriesDescription,omitempty"`
	PrimaryEventID    string   `dynamodbav:"primaryEventId,omitempty"`
	GroupIDs          []string `dynamodbav:"groupIds,omitempty" validate:"dive,excludes=#"`
	HangoutIDs        []string `dynamodbav:"hangoutIds" validate:"dive,excludes=#"`
	StartTimestamp    int64    `dynamodbav:"startTimestamp,omitempty"`
	EndTimestamp      int64    `dynamodbav:"endTimestamp,omitempty"`
	MainImagePath     string   `dynamodbav:"mainImagePath,omitempty"`
}

func (s *EventSeries) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = SeriesPK(s.SeriesID)
	opts.SortKey = MetadataSK
	opts.ItemType = ItemTypeEventSeries
	return nil
}

// Contains reports whether hangoutID is a part of the series.
func (s *EventSeries) Contains(hangoutID string) bool {
	for _, id := range s.HangoutIDs {
		if id == hangoutID {
			return true
		}
	}
	return false
}

// SeriesPointer is the per-group projection of an EventSeries.
type SeriesPointer struct {
	BaseItem
	GroupID           string   `dynamodbav:"groupId" validate:"required,excludes=#"`
	SeriesID          string   `dynamodbav:"seriesId" validate:"required,excludes=#"`
	SeriesTitle       string   `dynamodbav:"seriesTitle"`
	SeriesDescription string   `dynamodbav:"seriesDescription,omitempty"`
	PrimaryEventID    string   `dynamodbav:"primaryEventId,omitempty"`
	HangoutIDs        []string `dynamodbav:"hangoutIds"`
	StartTimestamp    int64    `dynamodbav:"startTimestamp,omitempty"`
	EndTimestamp      int64    `dynamodbav:"endTimestamp,omitempty"`
	MainImagePath     string   `dynamodbav:"mainImagePath,omitempty"`
	SeriesVersion     int64    `dynamodbav:"seriesVersion"`
}

func (p *SeriesPointer) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = GroupPK(p.GroupID)
	opts.SortKey = SeriesPointerSK(p.SeriesID)
	opts.ItemType = ItemTypeSeriesPointer
	if p.StartTimestamp > 0 {
		opts.GSI2PK = GroupTimelineGSI2PK(p.GroupID)
		opts.GSI2SK = TimeGSI2SK(p.StartTimestamp, SeriesPointerPrefix, p.SeriesID)
	}
	return nil
}

// NewSeriesPointer derives the pointer of s inside groupID.
func NewSeriesPointer(s *EventSeries, groupID string) *SeriesPointer {
	ids := make([]string, len(s.HangoutIDs))
	copy(ids, s.HangoutIDs)
	return &SeriesPointer{
		GroupID:           groupID,
		SeriesID:          s.SeriesID,
		SeriesTitle:       s.SeriesTitle,
		SeriesDescription: s.SeriesDescription,
		PrimaryEventID:    s.PrimaryEventID,
		HangoutIDs:        ids,
		StartTimestamp:    s.StartTimestamp,
		EndTimestamp:      s.EndTimestamp,
		MainImagePath:     s.MainImagePath,
		SeriesVersion:     s.Version,
	}
}

// Season is a season of an externally tracked show.
type Season struct {
	BaseItem
	ShowID               string   `dynamodbav:"showId" validate:"required,excludes=#"`
	SeasonNumber         int      `dynamodbav:"seasonNumber" validate:"gte=0"`
	Title                string   `dynamodbav:"title,omitempty"`
	HangoutIDs           []string `dynamodbav:"hangoutIds,omitempty"`
	LastCheckedTimestamp int64    `dynamodbav:"lastCheckedTimestamp,omitempty"`
}

func (s *Season) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = ShowPK(s.ShowID)
	opts.SortKey = SeasonSK(s.SeasonNumber)
	opts.ItemType = ItemTypeSeason
	return nil
}

// InviteCode is a shareable code for joining a group.
type InviteCode struct {
	BaseItem
	GroupID      string `dynamodbav:"groupId" validate:"required,excludes=#"`
	InviteCodeID string `dynamodbav:"inviteCodeId" validate:"required,excludes=#"`
	Code         string `dynamodbav:"code" validate:"required"`
	CreatedBy    string `dynamodbav:"createdBy,omitempty"`
	IsActive     bool   `dynamodbav:"isActive"`
}

func (c *InviteCode) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = GroupPK(c.GroupID)
	opts.SortKey = InviteCodeSK(c.InviteCodeID)
	opts.ItemType = ItemTypeInviteCode
	opts.GSI2PK = InviteCodeGSI2PK(c.Code)
	opts.GSI2SK = MetadataSK
	return nil
}

// Place owner types.
const (
	PlaceOwnerUser  = "USER"
	PlaceOwnerGroup = "GROUP"
)

// Place is a saved location owned by a user or a group.
type Place struct {
	BaseItem
	OwnerType string `dynamodbav:"ownerType" validate:"oneof=USER GROUP"`
	OwnerID   string `dynamodbav:"ownerId" validate:"required,excludes=#"`
	PlaceID   string `dynamodbav:"placeId" validate:"required,excludes=#"`
	Name      string `dynamodbav:"name"`
	Address   string `dynamodbav:"address,omitempty"`
	Notes     string `dynamodbav:"notes,omitempty"`
	IsPrimary bool   `dynamodbav:"isPrimary"`
}

func (p *Place) MarshalSelf(opts *MarshalOptions) error {
	opts.ItemType = ItemTypePlace
	switch p.OwnerType {
	case PlaceOwnerUser:
		opts.PartitionKey = UserPK(p.OwnerID)
	case PlaceOwnerGroup:
		opts.PartitionKey = GroupPK(p.OwnerID)
	default:
		return fmt.Errorf("unsupported place owner type %q", p.OwnerType)
	}
	opts.SortKey = PlaceSK(p.PlaceID)
	return nil
}

// IdeaList is a named list of ideas kept by a group.
type IdeaList struct {
	BaseItem
	GroupID   string `dynamodbav:"groupId" validate:"required,excludes=#"`
	ListID    string `dynamodbav:"listId" validate:"required,excludes=#"`
	Name      string `dynamodbav:"name"`
	Category  string `dynamodbav:"category,omitempty"`
	Note      string `dynamodbav:"note,omitempty"`
	CreatedBy string `dynamodbav:"createdBy,omitempty"`
}

func (l *IdeaList) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = GroupPK(l.GroupID)
	opts.SortKey = IdeaListSK(l.ListID)
	opts.ItemType = ItemTypeIdeaList
	return nil
}

// IdeaListMember is one idea inside an IdeaList.
type IdeaListMember struct {
	BaseItem
	GroupID string `dynamodbav:"groupId" validate:"required,excludes=#"`
	ListID  string `dynamodbav:"listId" validate:"required,excludes=#"`
	IdeaID  string `dynamodbav:"ideaId" validate:"required,excludes=#"`
	Name    string `dynamodbav:"name"`
	URL     string `dynamodbav:"url,omitempty"`
	Note    string `dynamodbav:"note,omitempty"`
	AddedBy string `dynamodbav:"addedBy,omitempty"`
}

func (m *IdeaListMember) MarshalSelf(opts *MarshalOptions) error {
	opts.PartitionKey = GroupPK(m.GroupID)
	opts.SortKey = IdeaListMemberSK(m.ListID, m.IdeaID)
	opts.ItemType = ItemTypeIdeaListMember
	return nil
}

var (
	_ Entity = (*Group)(nil)
	_ Entity = (*GroupMembership)(nil)
	_ Entity = (*Hangout)(nil)
	_ Entity = (*HangoutPointer)(nil)
	_ Entity = (*Poll)(nil)
	_ Entity = (*Car)(nil)
	_ Entity = (*CarRider)(nil)
	_ Entity = (*Vote)(nil)
	_ Entity = (*InterestLevel)(nil)
	_ Entity = (*Participation)(nil)
	_ Entity = (*ReservationOffer)(nil)
	_ Entity = (*EventSeries)(nil)
	_ Entity = (*SeriesPointer)(nil)
	_ Entity = (*Season)(nil)
	_ Entity = (*InviteCode)(nil)
	_ Entity = (*Place)(nil)
	_ Entity = (*IdeaList)(nil)
	_ Entity = (*IdeaListMember)(nil)
)
