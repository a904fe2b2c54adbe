package cache

import (
	"fmt"

	"chirpd/pkg/apperr"
	"chirpd/pkg/keyval"
	"chirpd/pkg/models"
)

// MessageCache maintains chat state: a chat-list per user naming their
// conversations and an append-only message list per conversation.
// In-place message edits (mark-read, reaction toggles) go through a
// compare-and-set replace keyed on the message's version stamp.
type MessageCache struct {
	kv *keyval.Store
}

// NewMessageCache builds a MessageCache over the injected volatile store.
func NewMessageCache(kv *keyval.Store) *MessageCache {
	return &MessageCache{kv: kv}
}

func chatListKey(userID string) string    { return "chatlist:" + userID }
func messageListKey(convID string) string { return "messages:" + convID }

// casRetries bounds how often an in-place edit retries after losing a
// compare-and-set race.
const casRetries = 5

// AddConversation records the conversation on the user's chat list unless
// an entry with the same conversation id is already there.
func (c *MessageCache) AddConversation(userID string, conv models.Conversation) error {
	existing, err := c.kv.LRange(chatListKey(userID), 0, -1)
	if err != nil {
		return wrapUnavailable(err)
	}
	for _, item := range existing {
		var cv models.Conversation
		decJSON(item, &cv)
		if cv.ConversationID == conv.ConversationID {
			return nil
		}
	}
	if err := c.kv.RPush(chatListKey(userID), encJSON(conv)); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// AddMessage appends the message to its conversation list, oldest first.
func (c *MessageCache) AddMessage(msg models.Message) error {
	if err := c.kv.RPush(messageListKey(msg.ConversationID), encJSON(msg)); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// ConversationList returns the newest message of every conversation on
// the user's chat list, in chat-list order. Conversations with no
// messages yet are skipped.
func (c *MessageCache) ConversationList(userID string) ([]models.Message, error) {
	convs, err := c.kv.LRange(chatListKey(userID), 0, -1)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	out := make([]models.Message, 0, len(convs))
	for _, item := range convs {
		var cv models.Conversation
		decJSON(item, &cv)
		last, ok, err := c.kv.LIndex(messageListKey(cv.ConversationID), -1)
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		if !ok {
			continue
		}
		var msg models.Message
		decJSON(last, &msg)
		out = append(out, msg)
	}
	return out, nil
}

// Messages returns the full message list between two peers, oldest first.
func (c *MessageCache) Messages(senderID, receiverID string) ([]models.Message, error) {
	convID, err := c.conversationBetween(senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if convID == "" {
		return []models.Message{}, nil
	}
	raw, err := c.kv.LRange(messageListKey(convID), 0, -1)
	if err != nil {
		return nil, wrapUnavailable(err)
	}
	out := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var msg models.Message
		decJSON(item, &msg)
		out = append(out, msg)
	}
	return out, nil
}

// MarkRead flips every unread message the peer sent to read and returns
// the newest message of the conversation. Messages the reader sent stay
// untouched; their read state belongs to the peer.
func (c *MessageCache) MarkRead(readerID, receiverID string) (models.Message, error) {
	convID, err := c.conversationBetween(readerID, receiverID)
	if err != nil {
		return models.Message{}, err
	}
	if convID == "" {
		return models.Message{}, ErrNotFound
	}
	listKey := messageListKey(convID)
	raw, err := c.kv.LRange(listKey, 0, -1)
	if err != nil {
		return models.Message{}, wrapUnavailable(err)
	}
	for idx, item := range raw {
		var msg models.Message
		decJSON(item, &msg)
		if msg.IsRead || msg.SenderID == readerID {
			continue
		}
		if err := c.editAt(listKey, int64(idx), msg.ID, func(m *models.Message) {
			m.IsRead = true
		}); err != nil {
			return models.Message{}, err
		}
	}
	last, ok, err := c.kv.LIndex(listKey, -1)
	if err != nil {
		return models.Message{}, wrapUnavailable(err)
	}
	if !ok {
		return models.Message{}, ErrNotFound
	}
	var msg models.Message
	decJSON(last, &msg)
	return msg, nil
}

// AddMessageReaction attaches the sender's reaction to a message,
// replacing any reaction that sender already left. Returns the updated
// message.
func (c *MessageCache) AddMessageReaction(convID, messageID, senderName, typ string) (models.Message, error) {
	return c.editMessage(convID, messageID, func(m *models.Message) {
		m.Reaction = withoutSenderReaction(m.Reaction, senderName)
		m.Reaction = append(m.Reaction, models.MessageReaction{SenderName: senderName, Type: typ})
	})
}

// RemoveMessageReaction drops the sender's reaction from a message.
// Returns the updated message.
func (c *MessageCache) RemoveMessageReaction(convID, messageID, senderName string) (models.Message, error) {
	return c.editMessage(convID, messageID, func(m *models.Message) {
		m.Reaction = withoutSenderReaction(m.Reaction, senderName)
	})
}

// Single returns one message from a conversation or ErrNotFound.
func (c *MessageCache) Single(convID, messageID string) (models.Message, error) {
	raw, err := c.kv.LRange(messageListKey(convID), 0, -1)
	if err != nil {
		return models.Message{}, wrapUnavailable(err)
	}
	for _, item := range raw {
		var msg models.Message
		decJSON(item, &msg)
		if msg.ID == messageID {
			return msg, nil
		}
	}
	return models.Message{}, ErrNotFound
}

// MarkDeleted tombstones a message in place. The entry stays so list
// positions are stable; readers render it as deleted. Returns the updated
// message.
func (c *MessageCache) MarkDeleted(convID, messageID string) (models.Message, error) {
	return c.editMessage(convID, messageID, func(m *models.Message) {
		m.Deleted = true
	})
}

// editMessage locates the message in its conversation list and applies fn
// through a version-checked replace.
func (c *MessageCache) editMessage(convID, messageID string, fn func(*models.Message)) (models.Message, error) {
	listKey := messageListKey(convID)
	raw, err := c.kv.LRange(listKey, 0, -1)
	if err != nil {
		return models.Message{}, wrapUnavailable(err)
	}
	for idx, item := range raw {
		var msg models.Message
		decJSON(item, &msg)
		if msg.ID != messageID {
			continue
		}
		if err := c.editAt(listKey, int64(idx), messageID, fn); err != nil {
			return models.Message{}, err
		}
		cur, ok, err := c.kv.LIndex(listKey, int64(idx))
		if err != nil {
			return models.Message{}, wrapUnavailable(err)
		}
		if !ok {
			return models.Message{}, ErrNotFound
		}
		var updated models.Message
		decJSON(cur, &updated)
		return updated, nil
	}
	return models.Message{}, ErrNotFound
}

// editAt replaces the list entry at idx with fn applied to its current
// value. The replace only lands if the entry has not changed since it was
// read; on a lost race the entry is re-read and the edit retried.
func (c *MessageCache) editAt(listKey string, idx int64, messageID string, fn func(*models.Message)) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		cur, ok, err := c.kv.LIndex(listKey, idx)
		if err != nil {
			return wrapUnavailable(err)
		}
		if !ok {
			return ErrNotFound
		}
		var msg models.Message
		decJSON(cur, &msg)
		if msg.ID != messageID {
			return ErrNotFound
		}
		fn(&msg)
		msg.Version++
		swapped, err := c.kv.LCompareAndSet(listKey, idx, cur, encJSON(msg))
		if err != nil {
			return wrapUnavailable(err)
		}
		if swapped {
			return nil
		}
	}
	return apperr.New(apperr.Internal, fmt.Sprintf("message edit lost %d consecutive races", casRetries))
}

// conversationBetween resolves the conversation id linking two users from
// the sender's chat list. Empty means no conversation exists yet.
func (c *MessageCache) conversationBetween(senderID, receiverID string) (string, error) {
	convs, err := c.kv.LRange(chatListKey(senderID), 0, -1)
	if err != nil {
		return "", wrapUnavailable(err)
	}
	for _, item := range convs {
		var cv models.Conversation
		decJSON(item, &cv)
		if cv.ReceiverID == receiverID {
			return cv.ConversationID, nil
		}
	}
	return "", nil
}

func withoutSenderReaction(rs []models.MessageReaction, senderName string) []models.MessageReaction {
	out := rs[:0]
	for _, r := range rs {
		if r.SenderName != senderName {
			out = append(out, r)
		}
	}
	return out
}
