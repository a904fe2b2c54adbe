package store

import (
	"fmt"

	"chirpd/pkg/models"
)

func conversationKey(userID, convID string) string {
	return fmt.Sprintf("chatlist:%s:%s", userID, convID)
}
func messageKey(convID, msgID string) string {
	return fmt.Sprintf("msg:%s:%s", convID, msgID)
}
func notificationKey(userTo, id string) string {
	return fmt.Sprintf("notification:%s:%s", userTo, id)
}

// SaveConversation records a conversation entry on one user's chat list.
func (s *Store) SaveConversation(userID string, c models.Conversation) error {
	return s.putJSON(conversationKey(userID, c.ConversationID), c)
}

// ListConversations returns a user's conversation entries.
func (s *Store) ListConversations(userID string) ([]models.Conversation, error) {
	raw, err := s.scanPrefix("chatlist:" + userID + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Conversation](raw)
}

// SaveMessage persists a chat message. Message IDs are time-sortable so a
// prefix scan yields insertion order.
func (s *Store) SaveMessage(m models.Message) error {
	return s.putJSON(messageKey(m.ConversationID, m.ID), m)
}

// ListMessages returns a conversation's messages oldest first.
func (s *Store) ListMessages(convID string) ([]models.Message, error) {
	raw, err := s.scanPrefix("msg:" + convID + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Message](raw)
}

// UpdateMessage applies fn to a stored message under a per-key lock.
func (s *Store) UpdateMessage(convID, msgID string, fn func(m *models.Message)) error {
	var m models.Message
	return s.mutateJSON(messageKey(convID, msgID), &m, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		fn(&m)
		return nil
	})
}

// MarkMessagesRead flags the conversation's unread messages as read,
// skipping those the reader sent, mirroring the cache-side rule.
func (s *Store) MarkMessagesRead(convID, readerID string) error {
	msgs, err := s.ListMessages(convID)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if m.IsRead || m.SenderID == readerID {
			continue
		}
		if err := s.UpdateMessage(convID, m.ID, func(mm *models.Message) {
			mm.IsRead = true
		}); err != nil {
			return err
		}
	}
	return nil
}

// SaveNotification persists an in-app notification.
func (s *Store) SaveNotification(n models.Notification) error {
	return s.putJSON(notificationKey(n.UserTo, n.ID), n)
}

// ListNotifications returns a user's notifications newest first.
func (s *Store) ListNotifications(userTo string) ([]models.Notification, error) {
	raw, err := s.scanPrefix("notification:" + userTo + ":")
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Notification](page(raw, 0, 0))
}

// MarkNotificationRead flags one notification as read.
func (s *Store) MarkNotificationRead(userTo, id string) error {
	var n models.Notification
	return s.mutateJSON(notificationKey(userTo, id), &n, func(absent bool) error {
		if absent {
			return ErrNotFound
		}
		n.Read = true
		return nil
	})
}

// DeleteNotification removes one notification.
func (s *Store) DeleteNotification(userTo, id string) error {
	return s.delete(notificationKey(userTo, id))
}
