package models

// Conversation links two users to a message list.
type Conversation struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     string `json:"receiverId"`
}

// Message is a single chat message inside a conversation list. Version is
// an optimistic-concurrency stamp bumped on every in-place mutation
// (mark-read, reaction toggle) so a stale replace can be detected.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversationId"`
	SenderID       string            `json:"senderId"`
	SenderUsername string            `json:"senderUsername"`
	ReceiverID     string            `json:"receiverId"`
	ReceiverName   string            `json:"receiverUsername"`
	Body           string            `json:"body"`
	GifURL         string            `json:"gifUrl"`
	SelectedImage  string            `json:"selectedImage"`
	IsRead         bool              `json:"isRead"`
	Deleted        bool              `json:"deleted"`
	Reaction       []MessageReaction `json:"reaction"`
	Version        int64             `json:"version"`
	CreatedAt      int64             `json:"createdAt"`
}

// MessageReaction is a reaction attached to a chat message.
type MessageReaction struct {
	SenderName string `json:"senderName"`
	Type       string `json:"type"`
}

// Follower is the durable edge record for a follow relationship. The edge
// is keyed by the ID minted when the follow request was handled, so
// re-persisting it is idempotent.
type Follower struct {
	ID         string `json:"id"`
	FollowerID string `json:"followerId"`
	FolloweeID string `json:"followeeId"`
	CreatedAt  int64  `json:"createdAt"`
}

// FollowerData is the hydrated view returned by follower list reads.
type FollowerData struct {
	ID             string `json:"id"`
	UID            string `json:"uid"`
	Username       string `json:"username"`
	AvatarColor    string `json:"avatarColor"`
	ProfilePicture string `json:"profilePicture"`
	PostsCount     int    `json:"postsCount"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
}

// Notification is a stored in-app notification.
type Notification struct {
	ID        string `json:"id"`
	UserTo    string `json:"userTo"`
	UserFrom  string `json:"userFrom"`
	Username  string `json:"username"`
	Type      string `json:"notificationType"`
	Message   string `json:"message"`
	EntityID  string `json:"entityId"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"createdAt"`
}
