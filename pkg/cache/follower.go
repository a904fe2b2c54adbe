package cache

import (
	"chirpd/pkg/keyval"
	"chirpd/pkg/models"
)

// FollowerCache maintains the social graph: a followers list and a
// following list per user, plus the counter fields on the profile hashes.
type FollowerCache struct {
	kv    *keyval.Store
	users *UserCache
}

// NewFollowerCache builds a FollowerCache. It borrows the UserCache to
// hydrate list entries into profile snapshots.
func NewFollowerCache(kv *keyval.Store, users *UserCache) *FollowerCache {
	return &FollowerCache{kv: kv, users: users}
}

func followersListKey(id string) string { return "followers:" + id }
func followingListKey(id string) string { return "following:" + id }

// Add records the edge on both sides and bumps both counters. The
// followers list entry is the guard: a duplicate or replayed follow is a
// no-op, so counters only move when the edge actually appears.
func (c *FollowerCache) Add(followerID, followeeID string) error {
	added, err := c.kv.LPushUnique(followersListKey(followeeID), followerID)
	if err != nil {
		return wrapUnavailable(err)
	}
	if !added {
		return nil
	}
	m := c.kv.Multi()
	m.LPush(followingListKey(followerID), followeeID)
	m.HIncrBy(userHashKey(followeeID), "followersCount", 1)
	m.HIncrBy(userHashKey(followerID), "followingCount", 1)
	if err := m.Exec(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Remove drops the edge from both sides and decrements both counters.
// The removed count from the followers list decides the decrement, so a
// duplicate or racing unfollow never drives a counter negative.
func (c *FollowerCache) Remove(followerID, followeeID string) error {
	removed, err := c.kv.LRem(followersListKey(followeeID), 1, followerID)
	if err != nil {
		return wrapUnavailable(err)
	}
	if removed == 0 {
		return nil
	}
	m := c.kv.Multi()
	m.LRem(followingListKey(followerID), 1, followeeID)
	m.HIncrBy(userHashKey(followeeID), "followersCount", -1)
	m.HIncrBy(userHashKey(followerID), "followingCount", -1)
	if err := m.Exec(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Followers returns hydrated profile snapshots of everyone following the
// user.
func (c *FollowerCache) Followers(userID string) ([]models.FollowerData, error) {
	return c.hydrate(followersListKey(userID))
}

// Following returns hydrated profile snapshots of everyone the user
// follows.
func (c *FollowerCache) Following(userID string) ([]models.FollowerData, error) {
	return c.hydrate(followingListKey(userID))
}

// FollowingIDs returns the raw id list of everyone the user follows.
func (c *FollowerCache) FollowingIDs(userID string) ([]string, error) {
	ids, err := c.kv.LRange(followingListKey(userID), 0, -1)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	return ids, nil
}

func (c *FollowerCache) hydrate(listKey string) ([]models.FollowerData, error) {
	ids, err := c.kv.LRange(listKey, 0, -1)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	out := make([]models.FollowerData, 0, len(ids))
	for _, id := range ids {
		u, err := c.users.Get(id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, models.FollowerData{
			ID:             u.ID,
			UID:            u.UID,
			Username:       u.Username,
			AvatarColor:    u.AvatarColor,
			ProfilePicture: u.ProfilePicture,
			PostsCount:     u.PostsCount,
			FollowersCount: u.FollowersCount,
			FollowingCount: u.FollowingCount,
		})
	}
	return out, nil
}

// Block appends blockedID to the user's blocked list and the inverse
// blockedBy entry on the other profile, skipping if already present.
func (c *FollowerCache) Block(userID, blockedID string) error {
	return c.setBlock(userID, blockedID, true)
}

// Unblock removes the pair of block entries written by Block.
func (c *FollowerCache) Unblock(userID, blockedID string) error {
	return c.setBlock(userID, blockedID, false)
}

func (c *FollowerCache) setBlock(userID, blockedID string, blocked bool) error {
	u, err := c.users.Get(userID)
	if err != nil {
		return err
	}
	other, err := c.users.Get(blockedID)
	if err != nil {
		return err
	}
	if blocked {
		u.Blocked = appendUnique(u.Blocked, blockedID)
		other.BlockedBy = appendUnique(other.BlockedBy, userID)
	} else {
		u.Blocked = removeValue(u.Blocked, blockedID)
		other.BlockedBy = removeValue(other.BlockedBy, userID)
	}
	m := c.kv.Multi()
	m.HSet(userHashKey(userID), "blocked", encJSON(u.Blocked))
	m.HSet(userHashKey(blockedID), "blockedBy", encJSON(other.BlockedBy))
	if err := m.Exec(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func appendUnique(xs []string, v string) []string {
	for _, x := range xs {
		if x == v {
			return xs
		}
	}
	return append(xs, v)
}

func removeValue(xs []string, v string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
