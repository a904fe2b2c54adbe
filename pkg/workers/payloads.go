package workers

import (
	"chirpd/pkg/models"
)

// Job payloads. Every identifier inside a payload was minted by the
// request handler before the cache write, so replaying a job rewrites the
// same durable rows.

// SignupPayload carries the paired profile and credential records written
// at signup.
type SignupPayload struct {
	User models.User `json:"user"`
	Auth models.Auth `json:"auth"`
}

// UserUpdatePayload carries a partial profile update. Fields holds
// whitelisted scalar fields; Social and Notifications replace their
// composite wholesale when present.
type UserUpdatePayload struct {
	UserID        string                       `json:"userId"`
	Fields        map[string]string            `json:"fields,omitempty"`
	Social        *models.SocialLinks          `json:"social,omitempty"`
	Notifications *models.NotificationSettings `json:"notifications,omitempty"`
	PasswordHash  string                       `json:"passwordHash,omitempty"`
}

// ImageRemovePayload identifies the gallery record to remove.
type ImageRemovePayload struct {
	UserID  string `json:"userId"`
	ImageID string `json:"imageId"`
}

// PostDeletePayload identifies the post to remove and whose postsCount to
// decrement.
type PostDeletePayload struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
}

// FollowerRemovePayload identifies the follow edge to remove.
type FollowerRemovePayload struct {
	FollowerID string `json:"followerId"`
	FolloweeID string `json:"followeeId"`
}

// BlockPayload identifies a block edge.
type BlockPayload struct {
	BlockerID string `json:"blockerId"`
	BlockedID string `json:"blockedId"`
}

// ReactionRemovePayload identifies the reaction row to remove.
type ReactionRemovePayload struct {
	PostID   string `json:"postId"`
	Username string `json:"username"`
}

// ConversationPayload records a conversation on both participants' chat
// lists.
type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
}

// ChatReadPayload identifies a conversation whose messages are now read
// and who read them; the reader's own messages keep their read state.
type ChatReadPayload struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
}

// ChatReactionPayload identifies a message reaction change.
type ChatReactionPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	SenderName     string `json:"senderName"`
	Type           string `json:"type,omitempty"`
}

// ChatDeletePayload identifies a message to tombstone.
type ChatDeletePayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// NotificationFlagPayload identifies a notification to mark read or
// delete.
type NotificationFlagPayload struct {
	UserTo string `json:"userTo"`
	ID     string `json:"id"`
}

// EmailPayload is an outbound email envelope.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
