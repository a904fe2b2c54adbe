package models

// Reactions is the per-post reaction tally, maintained by atomic updates
// rather than recomputed from the reaction list.
type Reactions struct {
	Like  int `json:"like"`
	Love  int `json:"love"`
	Happy int `json:"happy"`
	Sad   int `json:"sad"`
	Wow   int `json:"wow"`
	Angry int `json:"angry"`
}

// Count returns the tally for a named reaction type, or -1 for an unknown
// type.
func (r Reactions) Count(typ string) int {
	switch typ {
	case "like":
		return r.Like
	case "love":
		return r.Love
	case "happy":
		return r.Happy
	case "sad":
		return r.Sad
	case "wow":
		return r.Wow
	case "angry":
		return r.Angry
	}
	return -1
}

// Add applies delta to the tally for typ. Unknown types are ignored.
func (r *Reactions) Add(typ string, delta int) {
	switch typ {
	case "like":
		r.Like += delta
	case "love":
		r.Love += delta
	case "happy":
		r.Happy += delta
	case "sad":
		r.Sad += delta
	case "wow":
		r.Wow += delta
	case "angry":
		r.Angry += delta
	}
}

// ReactionTypes lists the valid reaction type names.
var ReactionTypes = []string{"like", "love", "happy", "sad", "wow", "angry"}

// ValidReactionType reports whether typ names a known reaction.
func ValidReactionType(typ string) bool {
	for _, t := range ReactionTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// Post is a feed entry.
type Post struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	AvatarColor    string    `json:"avatarColor"`
	ProfilePicture string    `json:"profilePicture"`
	Post           string    `json:"post"`
	BgColor        string    `json:"bgColor"`
	Feelings       string    `json:"feelings"`
	Privacy        string    `json:"privacy"`
	GifURL         string    `json:"gifUrl"`
	CommentsCount  int       `json:"commentsCount"`
	ImgVersion     string    `json:"imgVersion"`
	ImgID          string    `json:"imgId"`
	Reactions      Reactions `json:"reactions"`
	CreatedAt      int64     `json:"createdAt"`
}

// Comment is a reply attached to a post.
type Comment struct {
	ID             string `json:"id"`
	PostID         string `json:"postId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	AvatarColor    string `json:"avatarColor"`
	ProfilePicture string `json:"profilePicture"`
	Comment        string `json:"comment"`
	CreatedAt      int64  `json:"createdAt"`
}

// Reaction is a single user's reaction to a post.
type Reaction struct {
	ID          string `json:"id"`
	PostID      string `json:"postId"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	AvatarColor string `json:"avatarColor"`
	Type        string `json:"type"`
	CreatedAt   int64  `json:"createdAt"`
}
