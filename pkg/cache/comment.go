package cache

import (
	"chirpd/pkg/keyval"
	"chirpd/pkg/models"
)

// CommentCache is the entity cache for post comments: an append-only list
// per post, newest first.
type CommentCache struct {
	kv *keyval.Store
}

// NewCommentCache builds a CommentCache over the injected volatile store.
func NewCommentCache(kv *keyval.Store) *CommentCache {
	return &CommentCache{kv: kv}
}

// Save appends the comment and bumps the post's commentsCount in one
// batch.
func (c *CommentCache) Save(comment models.Comment) error {
	m := c.kv.Multi()
	m.LPush(commentListKey(comment.PostID), encJSON(comment))
	m.HIncrBy(postHashKey(comment.PostID), "commentsCount", 1)
	if err := m.Exec(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// List returns a post's comments, newest first. An uncached post yields
// an empty slice so callers can take the cold path.
func (c *CommentCache) List(postID string) ([]models.Comment, error) {
	raw, err := c.kv.LRange(commentListKey(postID), 0, -1)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	out := make([]models.Comment, 0, len(raw))
	for _, item := range raw {
		var cm models.Comment
		decJSON(item, &cm)
		out = append(out, cm)
	}
	return out, nil
}

// Names returns the comment count and commenting usernames for a post.
func (c *CommentCache) Names(postID string) (int, []string, error) {
	comments, err := c.List(postID)
	if err != nil {
		return 0, nil, err
	}
	names := make([]string, 0, len(comments))
	for _, cm := range comments {
		names = append(names, cm.Username)
	}
	return len(comments), names, nil
}

// Single returns one comment by ID or ErrNotFound.
func (c *CommentCache) Single(postID, commentID string) (models.Comment, error) {
	comments, err := c.List(postID)
	if err != nil {
		return models.Comment{}, err
	}
	for _, cm := range comments {
		if cm.ID == commentID {
			return cm, nil
		}
	}
	return models.Comment{}, ErrNotFound
}
