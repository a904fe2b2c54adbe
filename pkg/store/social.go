package store

import (
	"errors"
	"fmt"

	"chirpd/pkg/models"
)

// Follow edges are written in both directions so either side's list is a
// single prefix scan.
func followerEdgeKey(followeeID, followerID string) string {
	return fmt.Sprintf("follower:%s:%s", followeeID, followerID)
}
func followingEdgeKey(followerID, followeeID string) string {
	return fmt.Sprintf("following:%s:%s", followerID, followeeID)
}

// SaveFollower persists a follow edge and bumps both users' counters,
// unless the edge already exists (idempotent replay).
func (s *Store) SaveFollower(f models.Follower) error {
	exists, err := s.hasKey(followerEdgeKey(f.FolloweeID, f.FollowerID))
	if err != nil {
		return err
	}
	if err := s.putJSON(followerEdgeKey(f.FolloweeID, f.FollowerID), f); err != nil {
		return err
	}
	if err := s.putJSON(followingEdgeKey(f.FollowerID, f.FolloweeID), f); err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.ignoreNotFound(s.IncrUserCounter(f.FolloweeID, "followersCount", 1)); err != nil {
		return err
	}
	return s.ignoreNotFound(s.IncrUserCounter(f.FollowerID, "followingCount", 1))
}

// DeleteFollower removes a follow edge and decrements both counters when
// the edge was present.
func (s *Store) DeleteFollower(followerID, followeeID string) error {
	exists, err := s.hasKey(followerEdgeKey(followeeID, followerID))
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := s.delete(followerEdgeKey(followeeID, followerID)); err != nil {
		return err
	}
	if err := s.delete(followingEdgeKey(followerID, followeeID)); err != nil {
		return err
	}
	if err := s.ignoreNotFound(s.IncrUserCounter(followeeID, "followersCount", -1)); err != nil {
		return err
	}
	return s.ignoreNotFound(s.IncrUserCounter(followerID, "followingCount", -1))
}

// ListFollowers returns the edges pointing at userID.
func (s *Store) ListFollowers(userID string) ([]models.Follower, error) {
	raw, err := s.scanPrefix("follower:" + userID + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Follower](raw)
}

// ListFollowing returns the edges originating from userID.
func (s *Store) ListFollowing(userID string) ([]models.Follower, error) {
	raw, err := s.scanPrefix("following:" + userID + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Follower](raw)
}

// counter adjustments may race user creation during replays; a missing
// profile is not an error for edge maintenance.
func (s *Store) ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
