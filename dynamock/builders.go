package dynamock

import (
	"fmt"
	"time"

	"github.com/nisimpson/hangoutstore"
)

// Option is a functional option applied to a fixture during building.
type Option[T any] func(*T)

func build[T any](v *T, opts []Option[T]) *T {
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// FixtureStart is the start time fixtures use unless told otherwise.
var FixtureStart = time.Date(2030, time.January, 10, 18, 0, 0, 0, time.UTC)

// NewGroup builds a group fixture.
func NewGroup(groupID string, opts ...Option[hangoutstore.Group]) *hangoutstore.Group {
	return build(&hangoutstore.Group{
		GroupID:   groupID,
		GroupName: "Group " + groupID,
		IsPublic:  true,
	}, opts)
}

// NewMembership builds a membership fixture of userID in groupID.
func NewMembership(groupID, userID string, opts ...Option[hangoutstore.GroupMembership]) *hangoutstore.GroupMembership {
	return build(&hangoutstore.GroupMembership{
		GroupID:         groupID,
		UserID:          userID,
		Role:            "MEMBER",
		UserDisplayName: "User " + userID,
	}, opts)
}

// WithCalendarToken sets the calendar subscription token of a membership.
func WithCalendarToken(token string) Option[hangoutstore.GroupMembership] {
	return func(m *hangoutstore.GroupMembership) { m.CalendarToken = token }
}

// NewHangout builds a hangout fixture associated with groupIDs, starting at
// FixtureStart and lasting two hours.
func NewHangout(hangoutID string, groupIDs []string, opts ...Option[hangoutstore.Hangout]) *hangoutstore.Hangout {
	return build(&hangoutstore.Hangout{
		HangoutID:        hangoutID,
		Title:            "Hangout " + hangoutID,
		Visibility:       "INVITE_ONLY",
		StartTimestamp:   FixtureStart.UnixMilli(),
		EndTimestamp:     FixtureStart.Add(2 * time.Hour).UnixMilli(),
		AssociatedGroups: groupIDs,
	}, opts)
}

// WithTitle sets the hangout title.
func WithTitle(title string) Option[hangoutstore.Hangout] {
	return func(h *hangoutstore.Hangout) { h.Title = title }
}

// WithStart moves the hangout to start at start, keeping its duration.
func WithStart(start time.Time) Option[hangoutstore.Hangout] {
	return func(h *hangoutstore.Hangout) {
		duration := h.EndTimestamp - h.StartTimestamp
		h.StartTimestamp = start.UnixMilli()
		h.EndTimestamp = h.StartTimestamp + duration
	}
}

// Unscheduled clears the hangout times.
func Unscheduled() Option[hangoutstore.Hangout] {
	return func(h *hangoutstore.Hangout) {
		h.StartTimestamp = 0
		h.EndTimestamp = 0
	}
}

// WithExternalID marks the hangout as imported from source.
func WithExternalID(externalID, source string) Option[hangoutstore.Hangout] {
	return func(h *hangoutstore.Hangout) {
		h.ExternalID = externalID
		h.ExternalSource = source
	}
}

// NewSeries builds a series fixture. Parts are attached by the store
// operations, never by the fixture.
func NewSeries(seriesID string, groupIDs []string, opts ...Option[hangoutstore.EventSeries]) *hangoutstore.EventSeries {
	return build(&hangoutstore.EventSeries{
		SeriesID:    seriesID,
		SeriesTitle: "Series " + seriesID,
		GroupIDs:    groupIDs,
	}, opts)
}

// NewHangouts builds n hangouts in groupID with ids prefix-0 .. prefix-(n-1),
// one hour apart.
func NewHangouts(prefix string, n int, groupID string) []*hangoutstore.Hangout {
	out := make([]*hangoutstore.Hangout, n)
	for i := range out {
		out[i] = NewHangout(fmt.Sprintf("%s-%d", prefix, i), []string{groupID},
			WithStart(FixtureStart.Add(time.Duration(i)*time.Hour)))
	}
	return out
}

// NewPoll builds an active poll fixture with the given option ids.
func NewPoll(hangoutID, pollID string, optionIDs ...string) *hangoutstore.Poll {
	p := &hangoutstore.Poll{
		HangoutID: hangoutID,
		PollID:    pollID,
		Title:     "Poll " + pollID,
		IsActive:  true,
	}
	for _, id := range optionIDs {
		p.Options = append(p.Options, hangoutstore.PollOption{OptionID: id, Text: "Option " + id})
	}
	return p
}

// NewCar builds a car fixture with capacity seats.
func NewCar(hangoutID, driverID string, capacity int) *hangoutstore.Car {
	return &hangoutstore.Car{
		HangoutID:     hangoutID,
		DriverID:      driverID,
		DriverName:    "Driver " + driverID,
		TotalCapacity: capacity,
	}
}

// NewReservationOffer builds a collecting offer with capacity spots.
func NewReservationOffer(hangoutID, offerID string, capacity int, opts ...Option[hangoutstore.ReservationOffer]) *hangoutstore.ReservationOffer {
	return build(&hangoutstore.ReservationOffer{
		HangoutID: hangoutID,
		OfferID:   offerID,
		UserID:    "organizer",
		Type:      "TICKET",
		Capacity:  capacity,
		Status:    hangoutstore.OfferCollecting,
	}, opts)
}

// NewInterestLevel builds an attendance fixture.
func NewInterestLevel(hangoutID, userID, status string) *hangoutstore.InterestLevel {
	return &hangoutstore.InterestLevel{
		HangoutID: hangoutID,
		UserID:    userID,
		UserName:  "User " + userID,
		Status:    status,
	}
}

// NewInviteCode builds an active invite code fixture.
func NewInviteCode(groupID, inviteCodeID, code string) *hangoutstore.InviteCode {
	return &hangoutstore.InviteCode{
		GroupID:      groupID,
		InviteCodeID: inviteCodeID,
		Code:         code,
		IsActive:     true,
	}
}
