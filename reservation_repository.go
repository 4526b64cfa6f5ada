package hangoutstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"
)

const (
	attrCapacity       = "capacity"
	attrClaimedSpots   = "claimedSpots"
	attrStatus         = "status"
	attrIsActive       = "isActive"
	attrTotalCapacity  = "totalCapacity"
	attrAvailableSeats = "availableSeats"
)

func offerKey(hangoutID, offerID string) Item {
	return itemKey(EventPK(hangoutID), ReservationOfferSK(offerID))
}

func carKey(hangoutID, driverID string) Item {
	return itemKey(EventPK(hangoutID), CarSK(driverID))
}

// ClaimSpot takes one spot of a collecting reservation offer for userID. The
// counter increment and the claim participation are written together; the
// transaction fails when the offer is full, no longer collecting, or the user
// already holds a claim on it.
func (s *Store) ClaimSpot(ctx context.Context, hangoutID, offerID, userID string) (*Participation, error) {
	const op = "ClaimSpot"

	p := &Participation{
		HangoutID:          hangoutID,
		ParticipationID:    ClaimParticipationID(offerID, userID),
		UserID:             userID,
		Type:               ParticipationClaimedSpot,
		ReservationOfferID: offerID,
	}
	if err := s.check(p); err != nil {
		return nil, err
	}

	claimed := expression.Name(attrClaimedSpots)
	update := expression.Set(claimed, claimed.Plus(expression.Value(1)))
	cond := exists().
		And(claimed.LessThan(expression.Name(attrCapacity))).
		And(expression.Name(attrStatus).Equal(expression.Value(OfferCollecting)))

	tx := s.table.NewTransaction().
		Update(offerKey(hangoutID, offerID), bumpVersion(update, s.table), cond).
		Create(p)

	if err := s.commit(ctx, op, tx,
		zap.String("hangoutId", hangoutID),
		zap.String("offerId", offerID),
		zap.String("userId", userID)); err != nil {
		return nil, err
	}
	return p, nil
}

// UnclaimSpot releases the claim of userID on an offer and returns its spot.
func (s *Store) UnclaimSpot(ctx context.Context, hangoutID, offerID, userID string) error {
	const op = "UnclaimSpot"
	if err := s.checkKeys(&ReservationOffer{HangoutID: hangoutID, OfferID: offerID, UserID: userID}); err != nil {
		return err
	}

	claimed := expression.Name(attrClaimedSpots)
	update := expression.Set(claimed, claimed.Minus(expression.Value(1)))
	cond := exists().And(claimed.GreaterThan(expression.Value(0)))

	tx := s.table.NewTransaction().
		Update(offerKey(hangoutID, offerID), bumpVersion(update, s.table), cond).
		Delete(itemKey(EventPK(hangoutID), ParticipationSK(ClaimParticipationID(offerID, userID))), exists())

	return s.commit(ctx, op, tx,
		zap.String("hangoutId", hangoutID),
		zap.String("offerId", offerID),
		zap.String("userId", userID))
}

// SaveCar offers a car for a hangout. A new car starts with every seat
// available.
func (s *Store) SaveCar(ctx context.Context, c *Car) error {
	const op = "SaveCar"
	c.AvailableSeats = c.TotalCapacity
	if err := s.check(c); err != nil {
		return err
	}

	tx := s.table.NewTransaction().
		ConditionCheck(hangoutKey(c.HangoutID), exists()).
		Create(c)
	return s.commit(ctx, op, tx, zap.String("hangoutId", c.HangoutID), zap.String("driverId", c.DriverID))
}

// SaveCarRider seats r in its driver's car, taking one available seat.
func (s *Store) SaveCarRider(ctx context.Context, r *CarRider) error {
	const op = "SaveCarRider"
	if err := s.check(r); err != nil {
		return err
	}

	seats := expression.Name(attrAvailableSeats)
	tx := s.table.NewTransaction().
		Update(carKey(r.HangoutID, r.DriverID),
			bumpVersion(expression.Set(seats, seats.Minus(expression.Value(1))), s.table),
			exists().And(seats.GreaterThan(expression.Value(0)))).
		Create(r)

	return s.commit(ctx, op, tx,
		zap.String("hangoutId", r.HangoutID),
		zap.String("driverId", r.DriverID),
		zap.String("riderId", r.RiderID))
}

// DeleteCarRider removes a rider and gives the seat back to the car.
func (s *Store) DeleteCarRider(ctx context.Context, hangoutID, driverID, riderID string) error {
	const op = "DeleteCarRider"
	if err := s.checkKeys(&CarRider{HangoutID: hangoutID, DriverID: driverID, RiderID: riderID}); err != nil {
		return err
	}

	seats := expression.Name(attrAvailableSeats)
	tx := s.table.NewTransaction().
		Update(carKey(hangoutID, driverID),
			bumpVersion(expression.Set(seats, seats.Plus(expression.Value(1))), s.table),
			exists().And(seats.LessThan(expression.Name(attrTotalCapacity)))).
		Delete(itemKey(EventPK(hangoutID), CarRiderSK(driverID, riderID)), exists())

	return s.commit(ctx, op, tx,
		zap.String("hangoutId", hangoutID),
		zap.String("driverId", driverID),
		zap.String("riderId", riderID))
}

// SaveVote records a vote on an active poll.
func (s *Store) SaveVote(ctx context.Context, v *Vote) error {
	const op = "SaveVote"
	if err := s.check(v); err != nil {
		return err
	}

	tx := s.table.NewTransaction().
		ConditionCheck(itemKey(EventPK(v.HangoutID), PollSK(v.PollID)),
			exists().And(expression.Name(attrIsActive).Equal(expression.Value(true)))).
		Put(v)

	return s.commit(ctx, op, tx,
		zap.String("hangoutId", v.HangoutID),
		zap.String("pollId", v.PollID),
		zap.String("userId", v.UserID))
}

// DeleteVote withdraws a vote. Withdrawing a vote that does not exist is not
// an error.
func (s *Store) DeleteVote(ctx context.Context, hangoutID, pollID, userID, optionID string) error {
	if hangoutID == "" || pollID == "" || userID == "" || optionID == "" {
		return fmt.Errorf("%w: vote key requires hangout, poll, user and option ids", ErrInvalidInput)
	}
	return s.Delete(ctx, &Vote{HangoutID: hangoutID, PollID: pollID, UserID: userID, OptionID: optionID})
}
