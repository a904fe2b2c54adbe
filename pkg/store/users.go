package store

import (
	"fmt"

	"chirpd/pkg/models"
)

// Key layout. User and auth records share the handler-minted ID; the
// email/username keys are lookup aliases.
func userKey(id string) string     { return "user:" + id }
func authKey(id string) string     { return "auth:id:" + id }
func authEmailKey(e string) string { return "auth:email:" + e }
func authUserKey(u string) string  { return "auth:username:" + u }
func blockedKey(id, other string) string {
	return fmt.Sprintf("blocked:%s:%s", id, other)
}

// SaveAuth persists the credential record plus its lookup aliases.
func (s *Store) SaveAuth(a models.Auth) error {
	if err := s.putJSON(authKey(a.ID), a); err != nil {
		return err
	}
	if err := s.putJSON(authEmailKey(a.Email), a); err != nil {
		return err
	}
	return s.putJSON(authUserKey(a.Username), a)
}

// GetAuthByEmail returns the credential record for an email address.
func (s *Store) GetAuthByEmail(email string) (models.Auth, error) {
	var a models.Auth
	err := s.getJSON(authEmailKey(email), &a)
	return a, err
}

// GetAuthByUsername returns the credential record for a username.
func (s *Store) GetAuthByUsername(username string) (models.Auth, error) {
	var a models.Auth
	err := s.getJSON(authUserKey(username), &a)
	return a, err
}

// SaveAuthPassword replaces the stored password hash.
func (s *Store) SaveAuthPassword(id, hash string) error {
	var a models.Auth
	return s.mutateJSON(authKey(id), &a, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		a.PasswordHash = hash
		// keep aliases in sync
		if err := s.putJSON(authEmailKey(a.Email), a); err != nil {
			return err
		}
		return s.putJSON(authUserKey(a.Username), a)
	})
}

// SaveUser persists a profile document.
func (s *Store) SaveUser(u models.User) error {
	return s.putJSON(userKey(u.ID), u)
}

// GetUser returns a profile by ID or ErrNotFound.
func (s *Store) GetUser(id string) (models.User, error) {
	var u models.User
	err := s.getJSON(userKey(id), &u)
	return u, err
}

// ListUsers returns profiles newest first with skip/limit, matching the
// cache's reverse range semantics so the two read paths are
// interchangeable to handlers.
func (s *Store) ListUsers(skip, limit int) ([]models.User, error) {
	raw, err := s.scanPrefix("user:")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.User](page(raw, skip, limit))
}

// CountUsers returns the total number of profiles.
func (s *Store) CountUsers() (int, error) {
	raw, err := s.scanPrefix("user:")
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

// UpdateUserField sets one named field on a profile. Unknown fields are
// rejected so a bad job payload cannot corrupt the document.
func (s *Store) UpdateUserField(id, field, value string) error {
	var u models.User
	return s.mutateJSON(userKey(id), &u, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		return setUserField(&u, field, value)
	})
}

// IncrUserCounter adds delta to a counter field, under a per-key lock so
// concurrent increments are never lost.
func (s *Store) IncrUserCounter(id, field string, delta int) error {
	var u models.User
	return s.mutateJSON(userKey(id), &u, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		switch field {
		case "postsCount":
			u.PostsCount += delta
		case "followersCount":
			u.FollowersCount += delta
		case "followingCount":
			u.FollowingCount += delta
		default:
			return fmt.Errorf("unknown counter field %q", field)
		}
		return nil
	})
}

// UpdateUserSocial replaces a profile's social links.
func (s *Store) UpdateUserSocial(id string, social models.SocialLinks) error {
	var u models.User
	return s.mutateJSON(userKey(id), &u, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		u.Social = social
		return nil
	})
}

// UpdateUserNotifications replaces a profile's notification settings.
func (s *Store) UpdateUserNotifications(id string, n models.NotificationSettings) error {
	var u models.User
	return s.mutateJSON(userKey(id), &u, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		u.Notifications = n
		return nil
	})
}

func imageKey(userID, id string) string { return fmt.Sprintf("image:%s:%s", userID, id) }

// SaveImage persists one record on the owner's uploaded-image gallery.
func (s *Store) SaveImage(img models.Image) error {
	return s.putJSON(imageKey(img.UserID, img.ID), img)
}

// ListImages returns a user's uploaded-image records, oldest first.
func (s *Store) ListImages(userID string) ([]models.Image, error) {
	raw, err := s.scanPrefix("image:" + userID + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Image](raw)
}

// DeleteImage removes one gallery record.
func (s *Store) DeleteImage(userID, id string) error {
	return s.delete(imageKey(userID, id))
}

// SaveBlock records a block edge in both directions on the two profiles.
func (s *Store) SaveBlock(blockerID, blockedID string) error {
	var u models.User
	if err := s.mutateJSON(userKey(blockerID), &u, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		u.Blocked = appendUnique(u.Blocked, blockedID)
		return nil
	}); err != nil {
		return err
	}
	var v models.User
	if err := s.mutateJSON(userKey(blockedID), &v, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		v.BlockedBy = appendUnique(v.BlockedBy, blockerID)
		return nil
	}); err != nil {
		return err
	}
	return s.putJSON(blockedKey(blockerID, blockedID), struct{}{})
}

// DeleteBlock removes a block edge.
func (s *Store) DeleteBlock(blockerID, blockedID string) error {
	var u models.User
	if err := s.mutateJSON(userKey(blockerID), &u, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		u.Blocked = removeValue(u.Blocked, blockedID)
		return nil
	}); err != nil {
		return err
	}
	var v models.User
	if err := s.mutateJSON(userKey(blockedID), &v, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		v.BlockedBy = removeValue(v.BlockedBy, blockerID)
		return nil
	}); err != nil {
		return err
	}
	return s.delete(blockedKey(blockerID, blockedID))
}

func setUserField(u *models.User, field, value string) error {
	switch field {
	case "profilePicture":
		u.ProfilePicture = value
	case "work":
		u.Work = value
	case "location":
		u.Location = value
	case "school":
		u.School = value
	case "quote":
		u.Quote = value
	case "bgImageId":
		u.BgImageID = value
	case "bgImageVersion":
		u.BgImageVersion = value
	default:
		return fmt.Errorf("unknown user field %q", field)
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
