package api

import (
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gorilla/mux"

	"chirpd/pkg/apperr"
	"chirpd/pkg/auth"
	"chirpd/pkg/ids"
	"chirpd/pkg/models"
	"chirpd/pkg/queue"
	"chirpd/pkg/workers"
)

// RegisterChat wires the direct messaging endpoints.
func (h *Handlers) RegisterChat(r *mux.Router) {
	r.HandleFunc("/chat/messages", auth.RequireAuth(h.sendMessage)).Methods(http.MethodPost)
	r.HandleFunc("/chat/conversations", auth.RequireAuth(h.conversationList)).Methods(http.MethodGet)
	r.HandleFunc("/chat/messages/read", auth.RequireAuth(h.markMessagesRead)).Methods(http.MethodPut)
	r.HandleFunc("/chat/messages/{receiverId}", auth.RequireAuth(h.conversationMessages)).Methods(http.MethodGet)
	r.HandleFunc("/chat/messages/{conversationId}/{messageId}/reaction", auth.RequireAuth(h.addMessageReaction)).Methods(http.MethodPut)
	r.HandleFunc("/chat/messages/{conversationId}/{messageId}/reaction", auth.RequireAuth(h.removeMessageReaction)).Methods(http.MethodDelete)
	r.HandleFunc("/chat/messages/{conversationId}/{messageId}", auth.RequireAuth(h.deleteMessage)).Methods(http.MethodDelete)
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     string `json:"receiverId"`
	Body           string `json:"body"`
	GifURL         string `json:"gifUrl"`
	SelectedImage  string `json:"selectedImage"`
}

func (req sendMessageRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ReceiverID, validation.Required),
		validation.Field(&req.Body, validation.Required.When(req.GifURL == "" && req.SelectedImage == ""), validation.Length(0, 2048)),
	)
}

func (h *Handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	p := principal(r)
	receiver, err := h.userByID(req.ReceiverID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	for _, blocked := range receiver.Blocked {
		if blocked == p.UserID {
			apperr.WriteJSON(w, apperr.New(apperr.NotAuthorized, "this user has blocked you"))
			return
		}
	}

	convID := req.ConversationID
	if convID == "" {
		convID = ids.NewID()
	}
	msg := models.Message{
		ID:             ids.NewID(),
		ConversationID: convID,
		SenderID:       p.UserID,
		SenderUsername: p.Username,
		ReceiverID:     receiver.ID,
		ReceiverName:   receiver.Username,
		Body:           req.Body,
		GifURL:         req.GifURL,
		CreatedAt:      time.Now().UTC().Unix(),
	}
	if req.SelectedImage != "" {
		img, err := h.deps.Uploads.Upload(req.SelectedImage)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
		msg.SelectedImage = img.URL
	}

	if err := h.deps.Messages.AddConversation(p.UserID, models.Conversation{
		ConversationID: convID, ReceiverID: receiver.ID,
	}); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if err := h.deps.Messages.AddConversation(receiver.ID, models.Conversation{
		ConversationID: convID, ReceiverID: p.UserID,
	}); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if err := h.deps.Messages.AddMessage(msg); err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	h.publish("chat", "message_received", msg)
	h.enqueue(queue.JobChatConversation, convID, workers.ConversationPayload{
		ConversationID: convID, SenderID: p.UserID, ReceiverID: receiver.ID,
	})
	h.enqueue(queue.JobChatMessage, msg.ID, msg)
	h.notify(receiver.ID, p, "message",
		fmt.Sprintf("%s sent you a message", p.Username), convID,
		func(s models.NotificationSettings) bool { return s.Messages },
		"You have a new message")
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handlers) conversationList(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	list, err := h.deps.Messages.ConversationList(p.UserID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if len(list) == 0 {
		list, err = h.durableConversationList(p.UserID)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

func (h *Handlers) conversationMessages(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	receiverID := mux.Vars(r)["receiverId"]
	msgs, err := h.deps.Messages.Messages(p.UserID, receiverID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if len(msgs) == 0 {
		msgs, err = h.durableMessages(p.UserID, receiverID)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type markReadRequest struct {
	ReceiverID string `json:"receiverId"`
}

func (req markReadRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ReceiverID, validation.Required),
	)
}

func (h *Handlers) markMessagesRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	p := principal(r)
	last, err := h.deps.Messages.MarkRead(p.UserID, req.ReceiverID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("chat", "message_read", last)
	h.enqueue(queue.JobChatRead, last.ConversationID, workers.ChatReadPayload{
		ConversationID: last.ConversationID, ReaderID: p.UserID,
	})
	writeJSON(w, http.StatusOK, last)
}

type messageReactionRequest struct {
	Type string `json:"type"`
}

func (req messageReactionRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Type, validation.Required),
	)
}

func (h *Handlers) addMessageReaction(w http.ResponseWriter, r *http.Request) {
	var req messageReactionRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	vars := mux.Vars(r)
	p := principal(r)
	msg, err := h.deps.Messages.AddMessageReaction(vars["conversationId"], vars["messageId"], p.Username, req.Type)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("chat", "message_reaction", msg)
	h.enqueue(queue.JobChatReactionAdd, msg.ID, workers.ChatReactionPayload{
		ConversationID: msg.ConversationID, MessageID: msg.ID,
		SenderName: p.Username, Type: req.Type,
	})
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handlers) removeMessageReaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	p := principal(r)
	msg, err := h.deps.Messages.RemoveMessageReaction(vars["conversationId"], vars["messageId"], p.Username)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("chat", "message_reaction", msg)
	h.enqueue(queue.JobChatReactionRemove, msg.ID, workers.ChatReactionPayload{
		ConversationID: msg.ConversationID, MessageID: msg.ID, SenderName: p.Username,
	})
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	p := principal(r)
	existing, err := h.deps.Messages.Single(vars["conversationId"], vars["messageId"])
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if existing.SenderID != p.UserID {
		apperr.WriteJSON(w, apperr.New(apperr.NotAuthorized, "not the message sender"))
		return
	}
	msg, err := h.deps.Messages.MarkDeleted(vars["conversationId"], vars["messageId"])
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("chat", "message_deleted", msg)
	h.enqueue(queue.JobChatDelete, msg.ID, workers.ChatDeletePayload{
		ConversationID: msg.ConversationID, MessageID: msg.ID,
	})
	writeJSON(w, http.StatusOK, msg)
}

// durableConversationList rebuilds the chat-list view from the durable
// store when the cache holds nothing for the user.
func (h *Handlers) durableConversationList(userID string) ([]models.Message, error) {
	convs, err := h.deps.Store.ListConversations(userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(convs))
	for _, cv := range convs {
		msgs, err := h.deps.Store.ListMessages(cv.ConversationID)
		if err != nil {
			return nil, err
		}
		if len(msgs) == 0 {
			continue
		}
		out = append(out, msgs[len(msgs)-1])
	}
	return out, nil
}

func (h *Handlers) durableMessages(userID, receiverID string) ([]models.Message, error) {
	convs, err := h.deps.Store.ListConversations(userID)
	if err != nil {
		return nil, err
	}
	for _, cv := range convs {
		if cv.ReceiverID == receiverID {
			return h.deps.Store.ListMessages(cv.ConversationID)
		}
	}
	return []models.Message{}, nil
}
