package hangoutstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"go.uber.org/zap"
)

// Membership attribute names.
const (
	attrGroupName                = "groupName"
	attrGroupMainImagePath       = "groupMainImagePath"
	attrGroupBackgroundImagePath = "groupBackgroundImagePath"
	attrUserDisplayName          = "userDisplayName"
	attrUserMainImagePath        = "userMainImagePath"
)

func groupKey(groupID string) Item { return itemKey(GroupPK(groupID), MetadataSK) }

// denormalize copies the group attributes that memberships carry.
func denormalize(g *Group, m *GroupMembership) {
	m.GroupID = g.GroupID
	m.GroupName = g.GroupName
	m.GroupMainImagePath = g.MainImagePath
	m.GroupBackgroundImagePath = g.BackgroundImagePath
}

// CreateGroup creates the group metadata record and its initial memberships
// in one transaction.
func (s *Store) CreateGroup(ctx context.Context, g *Group, members ...*GroupMembership) error {
	const op = "CreateGroup"
	if g.GroupID == "" {
		g.GroupID = NewID()
	}
	for _, m := range members {
		denormalize(g, m)
	}
	if err := s.check(g); err != nil {
		return err
	}
	for _, m := range members {
		if err := s.check(m); err != nil {
			return err
		}
	}

	g.Version = 1
	tx := s.table.NewTransaction().Create(g)
	for _, m := range members {
		tx.Put(m)
	}

	return s.commit(ctx, op, tx, zap.String("groupId", g.GroupID), zap.Int("members", len(members)))
}

// UpdateGroup writes the name, visibility and images of a group. The
// watermark is left untouched. Memberships are refreshed separately through
// UpdateGroupNameInMemberships and UpdateGroupImagesInMemberships.
func (s *Store) UpdateGroup(ctx context.Context, g *Group) error {
	const op = "UpdateGroup"
	if err := s.check(g); err != nil {
		return err
	}

	tx := s.table.NewTransaction().
		ReplaceWhere(g, exists(), attrLastHangoutModified)
	if err := s.commit(ctx, op, tx, zap.String("groupId", g.GroupID)); err != nil {
		return err
	}
	g.Version++
	return nil
}

// AddMembership adds m to g, copying the group attributes onto it. The
// write fails when the group does not exist.
func (s *Store) AddMembership(ctx context.Context, g *Group, m *GroupMembership) error {
	const op = "AddMembership"
	denormalize(g, m)
	if err := s.check(m); err != nil {
		return err
	}

	tx := s.table.NewTransaction().
		ConditionCheck(groupKey(g.GroupID), exists()).
		Put(m)
	return s.commit(ctx, op, tx, zap.String("groupId", g.GroupID), zap.String("userId", m.UserID))
}

// RemoveMembership deletes the membership of userID in groupID.
func (s *Store) RemoveMembership(ctx context.Context, groupID, userID string) error {
	return s.Delete(ctx, &GroupMembership{GroupID: groupID, UserID: userID})
}

// DeleteGroup removes every item of the group partition: metadata,
// memberships, pointers, invite codes, places and idea lists. Items are
// deleted in batches of Table.BatchSize and the partition is read again
// until it is empty. It returns the number of deleted items.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) (int, error) {
	const op = "DeleteGroup"
	n, err := s.deletePartition(ctx, op, GroupPK(groupID))
	if err != nil {
		return n, err
	}

	s.log().Info("deleted group", zap.String("groupId", groupID), zap.Int("items", n))
	return n, nil
}

// UpdateGroupNameInMemberships rewrites the denormalized group name on every
// membership of the group. It returns the number of updated memberships.
func (s *Store) UpdateGroupNameInMemberships(ctx context.Context, groupID, groupName string) (int, error) {
	const op = "UpdateGroupNameInMemberships"
	members, err := s.FindMembersByGroupID(ctx, groupID)
	if err != nil {
		return 0, err
	}

	return s.updateMemberships(ctx, op, members, func() expression.UpdateBuilder {
		return expression.Set(expression.Name(attrGroupName), expression.Value(groupName))
	})
}

// UpdateGroupImagesInMemberships rewrites the denormalized group image paths
// on every membership of the group. Empty paths remove the attribute.
func (s *Store) UpdateGroupImagesInMemberships(ctx context.Context, groupID, mainImagePath, backgroundImagePath string) (int, error) {
	const op = "UpdateGroupImagesInMemberships"
	members, err := s.FindMembersByGroupID(ctx, groupID)
	if err != nil {
		return 0, err
	}

	return s.updateMemberships(ctx, op, members, func() expression.UpdateBuilder {
		var update expression.UpdateBuilder
		update = setOrRemove(update, attrGroupMainImagePath, mainImagePath)
		return setOrRemove(update, attrGroupBackgroundImagePath, backgroundImagePath)
	})
}

// UpdateUserInMemberships rewrites the denormalized user attributes on every
// membership of the user, found through the user index.
func (s *Store) UpdateUserInMemberships(ctx context.Context, userID, displayName, mainImagePath string) (int, error) {
	const op = "UpdateUserInMemberships"
	members, err := s.FindGroupsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	return s.updateMemberships(ctx, op, members, func() expression.UpdateBuilder {
		var update expression.UpdateBuilder
		update = setOrRemove(update, attrUserDisplayName, displayName)
		return setOrRemove(update, attrUserMainImagePath, mainImagePath)
	})
}

func setOrRemove(update expression.UpdateBuilder, name, value string) expression.UpdateBuilder {
	if value == "" {
		return update.Remove(expression.Name(name))
	}
	return update.Set(expression.Name(name), expression.Value(value))
}

// updateMemberships applies the update built by build to every membership,
// chunked into transactions of Table.BatchSize items. Memberships deleted
// since they were read fail their chunk instead of being recreated.
func (s *Store) updateMemberships(ctx context.Context, op string, members []*GroupMembership, build func() expression.UpdateBuilder) (int, error) {
	size := s.table.batchSize()
	updated := 0

	for start := 0; start < len(members); start += size {
		end := start + size
		if end > len(members) {
			end = len(members)
		}

		tx := s.table.NewTransaction()
		for _, m := range members[start:end] {
			update := build().Set(expression.Name(AttributeNameUpdatedAt), expression.Value(s.table.now()))
			tx.Update(itemKey(GroupPK(m.GroupID), MembershipSK(m.UserID)), update, exists())
		}

		if err := s.commit(ctx, op, tx, zap.Int("chunk", start/size), zap.Int("updated", updated)); err != nil {
			return updated, fmt.Errorf("membership chunk %d: %w", start/size, err)
		}
		updated += end - start
	}

	return updated, nil
}
