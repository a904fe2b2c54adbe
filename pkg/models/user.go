package models

// User is the profile document for an account. Credential fields live in
// Auth; the two records share the same ID minted at signup.
type User struct {
	ID             string               `json:"id"`
	UID            string               `json:"uid"`
	Username       string               `json:"username"`
	Email          string               `json:"email"`
	AvatarColor    string               `json:"avatarColor"`
	ProfilePicture string               `json:"profilePicture"`
	Blocked        []string             `json:"blocked"`
	BlockedBy      []string             `json:"blockedBy"`
	PostsCount     int                  `json:"postsCount"`
	FollowersCount int                  `json:"followersCount"`
	FollowingCount int                  `json:"followingCount"`
	Notifications  NotificationSettings `json:"notifications"`
	Social         SocialLinks          `json:"social"`
	Work           string               `json:"work"`
	Location       string               `json:"location"`
	School         string               `json:"school"`
	Quote          string               `json:"quote"`
	BgImageID      string               `json:"bgImageId"`
	BgImageVersion string               `json:"bgImageVersion"`
	CreatedAt      int64                `json:"createdAt"`
}

// Auth is the credential record paired with a User profile.
type Auth struct {
	ID           string `json:"id"`
	UID          string `json:"uid"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	AvatarColor  string `json:"avatarColor"`
	CreatedAt    int64  `json:"createdAt"`
}

// NotificationSettings controls which events produce email notifications.
type NotificationSettings struct {
	Messages  bool `json:"messages"`
	Reactions bool `json:"reactions"`
	Comments  bool `json:"comments"`
	Follows   bool `json:"follows"`
}

// Image is one entry in a user's uploaded-image gallery. ImgID and
// ImgVersion point at the stored blob; ID keys the gallery record itself.
type Image struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	ImgID      string `json:"imgId"`
	ImgVersion string `json:"imgVersion"`
	CreatedAt  int64  `json:"createdAt"`
}

// SocialLinks holds optional profile links.
type SocialLinks struct {
	Facebook  string `json:"facebook"`
	Instagram string `json:"instagram"`
	Twitter   string `json:"twitter"`
	Youtube   string `json:"youtube"`
}
