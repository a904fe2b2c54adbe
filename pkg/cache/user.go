package cache

import (
	"chirpd/pkg/keyval"
	"chirpd/pkg/models"
)

// UserCache is the entity cache for profile documents: a flat string
// hash per user plus a score-ordered index over all users keyed by the
// numeric uid.
type UserCache struct {
	kv *keyval.Store
}

// NewUserCache builds a UserCache over the injected volatile store.
func NewUserCache(kv *keyval.Store) *UserCache {
	return &UserCache{kv: kv}
}

func userHashKey(id string) string { return "users:" + id }

const userIndexKey = "user"

func encodeUser(u models.User) map[string]string {
	return map[string]string{
		"id":             u.ID,
		"uid":            u.UID,
		"username":       u.Username,
		"email":          u.Email,
		"avatarColor":    u.AvatarColor,
		"profilePicture": u.ProfilePicture,
		"blocked":        encJSON(u.Blocked),
		"blockedBy":      encJSON(u.BlockedBy),
		"postsCount":     encInt(u.PostsCount),
		"followersCount": encInt(u.FollowersCount),
		"followingCount": encInt(u.FollowingCount),
		"notifications":  encJSON(u.Notifications),
		"social":         encJSON(u.Social),
		"work":           u.Work,
		"location":       u.Location,
		"school":         u.School,
		"quote":          u.Quote,
		"bgImageId":      u.BgImageID,
		"bgImageVersion": u.BgImageVersion,
		"createdAt":      encInt64(u.CreatedAt),
	}
}

func decodeUser(h map[string]string) models.User {
	u := models.User{
		ID:             h["id"],
		UID:            h["uid"],
		Username:       h["username"],
		Email:          h["email"],
		AvatarColor:    h["avatarColor"],
		ProfilePicture: h["profilePicture"],
		PostsCount:     decInt(h["postsCount"]),
		FollowersCount: decInt(h["followersCount"]),
		FollowingCount: decInt(h["followingCount"]),
		Work:           h["work"],
		Location:       h["location"],
		School:         h["school"],
		Quote:          h["quote"],
		BgImageID:      h["bgImageId"],
		BgImageVersion: h["bgImageVersion"],
		CreatedAt:      decInt64(h["createdAt"]),
	}
	decJSON(h["blocked"], &u.Blocked)
	decJSON(h["blockedBy"], &u.BlockedBy)
	decJSON(h["notifications"], &u.Notifications)
	decJSON(h["social"], &u.Social)
	return u
}

// Save writes the profile hash and its index entry as one batch.
func (c *UserCache) Save(u models.User) error {
	m := c.kv.Multi()
	m.ZAdd(userIndexKey, score(u.UID), u.ID)
	m.HSetMap(userHashKey(u.ID), encodeUser(u))
	if err := m.Exec(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Get returns the cached profile or ErrNotFound.
func (c *UserCache) Get(id string) (models.User, error) {
	h, err := c.kv.HGetAll(userHashKey(id))
	if err != nil {
		return models.User{}, wrapUnavailable(err)
	}
	if len(h) == 0 {
		return models.User{}, ErrNotFound
	}
	return decodeUser(h), nil
}

// UpdateField sets exactly one field and reads the full entity back for
// callers that need it afterwards.
func (c *UserCache) UpdateField(id, field, value string) (models.User, error) {
	if err := c.kv.HSet(userHashKey(id), field, value); err != nil {
		return models.User{}, wrapUnavailable(err)
	}
	return c.Get(id)
}

// IncrCounter atomically adds delta to a counter field; delta may be
// negative.
func (c *UserCache) IncrCounter(id, field string, delta int) error {
	if _, err := c.kv.HIncrBy(userHashKey(id), field, int64(delta)); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Range returns users between start and end inclusive, most recent uid
// first.
func (c *UserCache) Range(start, end int64) ([]models.User, error) {
	idents, err := c.kv.ZRevRange(userIndexKey, start, end)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	out := make([]models.User, 0, len(idents))
	for _, id := range idents {
		h, err := c.kv.HGetAll(userHashKey(id))
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		if len(h) == 0 {
			continue
		}
		out = append(out, decodeUser(h))
	}
	return out, nil
}

// Total returns the number of indexed users.
func (c *UserCache) Total() (int, error) {
	n, err := c.kv.ZCard(userIndexKey)
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	return int(n), nil
}

// RandomSuggestions draws a bounded uniform sample from the full user set
// and filters out the requester and everyone they already follow. The
// linear scan is O(sample x followees); both are small and fixed.
func (c *UserCache) RandomSuggestions(selfID string, size int, followees []string) ([]models.User, error) {
	sample, err := c.kv.ZRandMember(userIndexKey, size)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	out := make([]models.User, 0, len(sample))
	for _, id := range sample {
		if id == selfID || contains(followees, id) {
			continue
		}
		h, err := c.kv.HGetAll(userHashKey(id))
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		if len(h) == 0 {
			continue
		}
		out = append(out, decodeUser(h))
	}
	return out, nil
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
