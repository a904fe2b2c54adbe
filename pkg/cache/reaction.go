package cache

import (
	"chirpd/pkg/keyval"
	"chirpd/pkg/models"
)

// ReactionCache is the entity cache for post reactions: a list of
// serialized reactions per post plus the tally field on the post hash.
type ReactionCache struct {
	kv *keyval.Store
}

// NewReactionCache builds a ReactionCache over the injected volatile
// store.
func NewReactionCache(kv *keyval.Store) *ReactionCache {
	return &ReactionCache{kv: kv}
}

// Save records a user's reaction. When the user had a previous reaction
// its list entry is removed, the new one pushed and the post's tally
// field replaced, all in one batch, so the swap lands as one combined
// update.
func (c *ReactionCache) Save(r models.Reaction, tallies models.Reactions, previousType string) error {
	m := c.kv.Multi()
	if previousType != "" {
		prev, err := c.findByUsername(r.PostID, r.Username)
		if err != nil {
			return err
		}
		if prev != "" {
			m.LRem(reactionListKey(r.PostID), 1, prev)
		}
	}
	m.LPush(reactionListKey(r.PostID), encJSON(r))
	m.HSet(postHashKey(r.PostID), "reactions", encJSON(tallies))
	if err := m.Exec(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Remove deletes a user's reaction entry and replaces the post's tally
// field in one batch.
func (c *ReactionCache) Remove(postID, username string, tallies models.Reactions) error {
	prev, err := c.findByUsername(postID, username)
	if err != nil {
		return err
	}
	m := c.kv.Multi()
	if prev != "" {
		m.LRem(reactionListKey(postID), 1, prev)
	}
	m.HSet(postHashKey(postID), "reactions", encJSON(tallies))
	if err := m.Exec(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// List returns a post's reactions (newest first) and their count.
func (c *ReactionCache) List(postID string) ([]models.Reaction, int, error) {
	raw, err := c.kv.LRange(reactionListKey(postID), 0, -1)
	if err != nil {
		return nil, 0, wrapUnavailable(err)
	}
	out := make([]models.Reaction, 0, len(raw))
	for _, item := range raw {
		var r models.Reaction
		decJSON(item, &r)
		out = append(out, r)
	}
	return out, len(out), nil
}

// SingleByUsername returns one user's reaction on a post or ErrNotFound.
func (c *ReactionCache) SingleByUsername(postID, username string) (models.Reaction, error) {
	list, _, err := c.List(postID)
	if err != nil {
		return models.Reaction{}, err
	}
	for _, r := range list {
		if r.Username == username {
			return r, nil
		}
	}
	return models.Reaction{}, ErrNotFound
}

// findByUsername returns the raw serialized entry for a user's reaction,
// targeted by value equality so LRem removes exactly that element.
func (c *ReactionCache) findByUsername(postID, username string) (string, error) {
	raw, err := c.kv.LRange(reactionListKey(postID), 0, -1)
	if err != nil {
		return "", wrapUnavailable(err)
	}
	for _, item := range raw {
		var r models.Reaction
		decJSON(item, &r)
		if r.Username == username {
			return item, nil
		}
	}
	return "", nil
}
