// Package hangoutstore is the single-table DynamoDB storage layer of a
// social event service: groups, hangouts, polls, carpools, reservations,
// multi-part series, seasons, invite codes, places and idea lists.
//
// # Table layout
//
// Every item carries a partition key (pk), a sort key (sk), an itemType
// discriminator, a version counter and creation/update timestamps. Related
// items share a partition so that one query reads a whole item collection:
//
//	GROUP#{groupId}   METADATA | USER#{userId} | HANGOUT#{id} | SERIES#{id} | INVITE#{id} | ...
//	EVENT#{hangoutId} METADATA | POLL#{id} | CAR#{driverId} | RIDER#... | VOTE#... | ...
//	SERIES#{seriesId} METADATA
//	SHOW#{showId}     SEASON#{n}
//
// Three secondary indexes serve the remaining access patterns: gsi1 (groups
// of a user), gsi2 (calendar tokens, invite codes and the per-group timeline)
// and externalIdIndex (records imported from other systems).
//
// # Entities
//
// Entities embed [BaseItem] and implement [Entity] by declaring their keys in
// MarshalSelf:
//
//	func (p *Poll) MarshalSelf(opts *hangoutstore.MarshalOptions) error {
//	    opts.PartitionKey = hangoutstore.EventPK(p.HangoutID)
//	    opts.SortKey = hangoutstore.PollSK(p.PollID)
//	    opts.ItemType = hangoutstore.ItemTypePoll
//	    return nil
//	}
//
// Items read back are decoded through a [Registry] keyed by item type. Items
// of unknown type are logged and skipped.
//
// # Consistency
//
// Hangouts and series are canonical records with denormalized pointers in
// each associated group partition. Every operation that changes a canonical
// record writes its pointers in the same TransactWriteItems request and is
// guarded by the record version:
//
//	store := hangoutstore.NewStore(ddb, hangoutstore.NewTable("hangouts"))
//	err := store.UpdateHangout(ctx, hangout)
//	if hangoutstore.IsTransactionFailed(err) {
//	    // reload and retry
//	}
//
// Pointer drift is repaired with ResyncHangoutPointers.
//
// # Feeds
//
// Hangout-affecting writes advance the lastHangoutModified watermark of each
// affected group. [FeedService] turns the watermark into a weak ETag so that
// unchanged feeds are answered from a single item read.
//
// # Pagination
//
// Paginated reads return a [Page] with an opaque NextToken, produced by a
// [Paginator]: the stateless [KeyCodec] by default, or a [TablePaginator]
// that stores cursors in the table with a TTL.
package hangoutstore
