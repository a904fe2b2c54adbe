package cache

import (
	"chirpd/pkg/keyval"
	"chirpd/pkg/models"
)

// PostCache is the entity cache for posts: a flat string hash per post
// plus a score-ordered global index keyed by the author's numeric uid.
type PostCache struct {
	kv *keyval.Store
}

// NewPostCache builds a PostCache over the injected volatile store.
func NewPostCache(kv *keyval.Store) *PostCache {
	return &PostCache{kv: kv}
}

func postHashKey(id string) string     { return "posts:" + id }
func commentListKey(id string) string  { return "comments:" + id }
func reactionListKey(id string) string { return "reactions:" + id }

const postIndexKey = "post"

func encodePost(p models.Post) map[string]string {
	return map[string]string{
		"id":             p.ID,
		"userId":         p.UserID,
		"username":       p.Username,
		"email":          p.Email,
		"avatarColor":    p.AvatarColor,
		"profilePicture": p.ProfilePicture,
		"post":           p.Post,
		"bgColor":        p.BgColor,
		"feelings":       p.Feelings,
		"privacy":        p.Privacy,
		"gifUrl":         p.GifURL,
		"commentsCount":  encInt(p.CommentsCount),
		"imgVersion":     p.ImgVersion,
		"imgId":          p.ImgID,
		"reactions":      encJSON(p.Reactions),
		"createdAt":      encInt64(p.CreatedAt),
	}
}

func decodePost(h map[string]string) models.Post {
	p := models.Post{
		ID:             h["id"],
		UserID:         h["userId"],
		Username:       h["username"],
		Email:          h["email"],
		AvatarColor:    h["avatarColor"],
		ProfilePicture: h["profilePicture"],
		Post:           h["post"],
		BgColor:        h["bgColor"],
		Feelings:       h["feelings"],
		Privacy:        h["privacy"],
		GifURL:         h["gifUrl"],
		CommentsCount:  decInt(h["commentsCount"]),
		ImgVersion:     h["imgVersion"],
		ImgID:          h["imgId"],
		CreatedAt:      decInt64(h["createdAt"]),
	}
	decJSON(h["reactions"], &p.Reactions)
	return p
}

// Save writes the post hash, its index entry (scored by the author's
// numeric uid) and the author's postsCount increment as one batch so a
// concurrent reader never sees a partial post.
func (c *PostCache) Save(authorID, authorUID string, p models.Post) error {
	m := c.kv.Multi()
	m.ZAdd(postIndexKey, score(authorUID), p.ID)
	m.HSetMap(postHashKey(p.ID), encodePost(p))
	m.HIncrBy(userHashKey(authorID), "postsCount", 1)
	if err := m.Exec(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Get returns the cached post or ErrNotFound.
func (c *PostCache) Get(id string) (models.Post, error) {
	h, err := c.kv.HGetAll(postHashKey(id))
	if err != nil {
		return models.Post{}, wrapUnavailable(err)
	}
	if len(h) == 0 {
		return models.Post{}, ErrNotFound
	}
	return decodePost(h), nil
}

// Update overwrites the mutable fields of a post and reads it back.
func (c *PostCache) Update(id string, p models.Post) (models.Post, error) {
	fields := map[string]string{
		"post":           p.Post,
		"bgColor":        p.BgColor,
		"feelings":       p.Feelings,
		"privacy":        p.Privacy,
		"gifUrl":         p.GifURL,
		"profilePicture": p.ProfilePicture,
		"imgVersion":     p.ImgVersion,
		"imgId":          p.ImgID,
	}
	m := c.kv.Multi()
	m.HSetMap(postHashKey(id), fields)
	if err := m.Exec(); err != nil {
		return models.Post{}, wrapUnavailable(err)
	}
	return c.Get(id)
}

// UpdateReactions replaces the post's reaction tallies field.
func (c *PostCache) UpdateReactions(id string, r models.Reactions) error {
	if err := c.kv.HSet(postHashKey(id), "reactions", encJSON(r)); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Delete clears the post hash, its dependent comment and reaction lists,
// its index entry and the author's postsCount, all in one batch.
func (c *PostCache) Delete(id, authorID string) error {
	m := c.kv.Multi()
	m.ZRem(postIndexKey, id)
	m.Del(postHashKey(id), commentListKey(id), reactionListKey(id))
	m.HIncrBy(userHashKey(authorID), "postsCount", -1)
	if err := m.Exec(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Range returns posts between start and end inclusive, most recent uid
// first.
func (c *PostCache) Range(start, end int64) ([]models.Post, error) {
	idents, err := c.kv.ZRevRange(postIndexKey, start, end)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	out := make([]models.Post, 0, len(idents))
	for _, id := range idents {
		h, err := c.kv.HGetAll(postHashKey(id))
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		if len(h) == 0 {
			continue
		}
		out = append(out, decodePost(h))
	}
	return out, nil
}

// ByUser returns every cached post by one author, most recent first.
func (c *PostCache) ByUser(userID string) ([]models.Post, error) {
	all, err := c.Range(0, -1)
	if err != nil {
		return nil, err
	}
	out := make([]models.Post, 0)
	for _, p := range all {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// Total returns the number of indexed posts.
func (c *PostCache) Total() (int, error) {
	n, err := c.kv.ZCard(postIndexKey)
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	return int(n), nil
}
