package store

import (
	"errors"
	"fmt"

	"chirpd/pkg/models"
)

func postKey(id string) string { return "post:" + id }
func commentKey(postID, id string) string {
	return fmt.Sprintf("comment:%s:%s", postID, id)
}

// reactionKey is keyed by post + username: one reaction per user per post,
// so persisting a swapped reaction overwrites the old row idempotently.
func reactionKey(postID, username string) string {
	return fmt.Sprintf("reaction:%s:%s", postID, username)
}

// SavePost persists a post document. The post ID was minted by the
// handler, so replays overwrite rather than duplicate (I2).
func (s *Store) SavePost(p models.Post) error {
	return s.putJSON(postKey(p.ID), p)
}

// GetPost returns a post by ID or ErrNotFound.
func (s *Store) GetPost(id string) (models.Post, error) {
	var p models.Post
	err := s.getJSON(postKey(id), &p)
	return p, err
}

// UpdatePost applies fn to the stored post under a per-key lock.
func (s *Store) UpdatePost(id string, fn func(p *models.Post)) error {
	var p models.Post
	return s.mutateJSON(postKey(id), &p, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		fn(&p)
		return nil
	})
}

// DeletePost removes the post and its dependent comment and reaction rows.
func (s *Store) DeletePost(id string) error {
	if err := s.delete(postKey(id)); err != nil {
		return err
	}
	if err := s.deletePrefix("comment:" + id + ":"); err != nil {
		return err
	}
	return s.deletePrefix("reaction:" + id + ":")
}

// ListPosts returns posts newest first with skip/limit.
func (s *Store) ListPosts(skip, limit int) ([]models.Post, error) {
	raw, err := s.scanPrefix("post:")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Post](page(raw, skip, limit))
}

// ListPostsByUser returns one user's posts newest first.
func (s *Store) ListPostsByUser(userID string) ([]models.Post, error) {
	all, err := s.ListPosts(0, 0)
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

// CountPosts returns the total number of posts.
func (s *Store) CountPosts() (int, error) {
	raw, err := s.scanPrefix("post:")
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// SaveComment persists a comment and bumps the post's commentsCount with
// the same increment semantics the cache uses (I3).
func (s *Store) SaveComment(c models.Comment) error {
	exists, err := s.hasKey(commentKey(c.PostID, c.ID))
	if err != nil {
		return err
	}
	if err := s.putJSON(commentKey(c.PostID, c.ID), c); err != nil {
		return err
	}
	if exists {
		// replayed job; the counter was already bumped
		return nil
	}
	err = s.UpdatePost(c.PostID, func(p *models.Post) { p.CommentsCount++ })
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ListComments returns a post's comments newest first.
func (s *Store) ListComments(postID string) ([]models.Comment, error) {
	raw, err := s.scanPrefix("comment:" + postID + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Comment](page(raw, 0, 0))
}

// GetComment returns one comment or ErrNotFound.
func (s *Store) GetComment(postID, commentID string) (models.Comment, error) {
	var c models.Comment
	err := s.getJSON(commentKey(postID, commentID), &c)
	return c, err
}

// SaveReaction upserts a user's reaction on a post and adjusts the post's
// reaction tallies in one update: the previous type (if any) is
// decremented and the new type incremented (Scenario B semantics).
func (s *Store) SaveReaction(r models.Reaction) error {
	var prev models.Reaction
	prevType := ""
	if err := s.getJSON(reactionKey(r.PostID, r.Username), &prev); err == nil {
		prevType = prev.Type
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if prevType == r.Type {
		// replayed job; tallies already reflect this reaction
		return s.putJSON(reactionKey(r.PostID, r.Username), r)
	}
	if err := s.putJSON(reactionKey(r.PostID, r.Username), r); err != nil {
		return err
	}
	err := s.UpdatePost(r.PostID, func(p *models.Post) {
		if prevType != "" {
			p.Reactions.Add(prevType, -1)
		}
		p.Reactions.Add(r.Type, 1)
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// DeleteReaction removes a user's reaction and decrements its tally.
func (s *Store) DeleteReaction(postID, username string) error {
	var prev models.Reaction
	if err := s.getJSON(reactionKey(postID, username), &prev); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.delete(reactionKey(postID, username)); err != nil {
		return err
	}
	err := s.UpdatePost(postID, func(p *models.Post) {
		p.Reactions.Add(prev.Type, -1)
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ListReactions returns a post's reactions newest first.
func (s *Store) ListReactions(postID string) ([]models.Reaction, error) {
	raw, err := s.scanPrefix("reaction:" + postID + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Reaction](page(raw, 0, 0))
}

// GetReactionByUsername returns one user's reaction or ErrNotFound.
func (s *Store) GetReactionByUsername(postID, username string) (models.Reaction, error) {
	var r models.Reaction
	err := s.getJSON(reactionKey(postID, username), &r)
	return r, err
}
