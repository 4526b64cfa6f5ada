package hangoutstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"
)

// ETag returns the weak validator of a group feed. It changes exactly when
// the group's hangout watermark changes.
func ETag(groupID string, lastHangoutModified int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", groupID, lastHangoutModified)))
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}

// etagMatches compares a client If-None-Match header against etag. Lists of
// validators and the wildcard are accepted.
func etagMatches(ifNoneMatch, etag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag || "W/"+candidate == etag {
			return true
		}
	}
	return false
}

// advanceWatermarks moves lastHangoutModified of each group forward: to the
// current time when the stored value is older, otherwise one millisecond
// past the stored value. The watermark never moves backwards and changes on
// every call. Missing groups are skipped.
//
// It runs after the write it reports has committed, so a failure is logged
// and the remaining groups are still advanced. A group whose watermark could
// not be moved keeps serving its previous ETag until the next write.
func (s *Store) advanceWatermarks(ctx context.Context, op string, groupIDs []string) {
	now := s.table.now().UnixMilli()
	name := expression.Name(attrLastHangoutModified)

	for _, groupID := range unionGroups(groupIDs) {
		update := expression.Set(name, expression.Value(now))
		cond := exists().And(expression.Or(
			expression.AttributeNotExists(name),
			name.LessThan(expression.Value(now)),
		))

		applied, err := s.conditionalUpdate(ctx, op+".advanceWatermark", groupKey(groupID), update, cond, "group", groupID)
		if err == nil && !applied {
			// already at or past now: step past the stored value instead
			_, err = s.conditionalUpdate(ctx, op+".advanceWatermark", groupKey(groupID),
				expression.Set(name, name.Plus(expression.Value(1))),
				exists().And(expression.AttributeExists(name)), "group", groupID)
		}
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			s.log().Error("failed to advance group watermark",
				zap.String("operation", op),
				zap.String("groupId", groupID),
				zap.Error(err))
		}
	}
}

// GroupFeed is the response of GetGroupFeed.
type GroupFeed struct {
	ETag string
	// NotModified is set when the client validator matched; the feed
	// collections are then empty.
	NotModified bool
	Hangouts    []*HangoutPointer
	Series      []*SeriesPointer
}

// FeedService serves group feeds guarded by the group watermark.
type FeedService struct {
	store *Store
}

// NewFeedService returns a FeedService reading from store.
func NewFeedService(store *Store) *FeedService {
	return &FeedService{store: store}
}

// GetGroupFeed returns the hangout pointers and upcoming series of a group.
// When ifNoneMatch matches the current validator only the group metadata is
// read and NotModified is returned.
func (f *FeedService) GetGroupFeed(ctx context.Context, groupID, ifNoneMatch string) (*GroupFeed, error) {
	g, err := f.store.FindGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	etag := ETag(groupID, g.LastHangoutModified)
	if ifNoneMatch != "" && etagMatches(ifNoneMatch, etag) {
		f.store.table.Metrics.feed("not_modified")
		return &GroupFeed{ETag: etag, NotModified: true}, nil
	}

	hangouts, err := f.store.FindHangoutPointersByGroupID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	series, err := f.store.FindUpcomingSeriesForGroup(ctx, groupID, f.store.table.now().UnixMilli())
	if err != nil {
		return nil, err
	}

	f.store.table.Metrics.feed("modified")
	return &GroupFeed{ETag: etag, Hangouts: hangouts, Series: series}, nil
}
