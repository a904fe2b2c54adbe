package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chirpd/pkg/apperr"
	"chirpd/pkg/auth"
	"chirpd/pkg/ids"
	"chirpd/pkg/models"
	"chirpd/pkg/queue"
	"chirpd/pkg/workers"
)

// RegisterNotifications wires the in-app notification endpoints.
// Notifications are durable-only: reads go straight to the durable store
// and flag changes ride the job queue like every other mutation.
func (h *Handlers) RegisterNotifications(r *mux.Router) {
	r.HandleFunc("/notifications", auth.RequireAuth(h.listNotifications)).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{id}/read", auth.RequireAuth(h.markNotificationRead)).Methods(http.MethodPut)
	r.HandleFunc("/notifications/{id}", auth.RequireAuth(h.deleteNotification)).Methods(http.MethodDelete)
}

func (h *Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.deps.Store.ListNotifications(principal(r).UserID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (h *Handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p := principal(r)
	h.publish("notifications", "notification_read", map[string]string{"id": id})
	h.enqueue(queue.JobNotificationRead, id, workers.NotificationFlagPayload{UserTo: p.UserID, ID: id})
	writeJSON(w, http.StatusOK, map[string]string{"message": "notification marked as read"})
}

func (h *Handlers) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p := principal(r)
	h.publish("notifications", "notification_deleted", map[string]string{"id": id})
	h.enqueue(queue.JobNotificationDelete, id, workers.NotificationFlagPayload{UserTo: p.UserID, ID: id})
	writeJSON(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}

// notify records an in-app notification for userTo and, when their
// settings ask for it, an email. Both ride the queue; a notification is a
// side effect of an already-committed mutation and never fails it.
func (h *Handlers) notify(userTo string, from auth.Principal, typ, message, entityID string, wants func(models.NotificationSettings) bool, emailSubject string) {
	n := models.Notification{
		ID:        ids.NewID(),
		UserTo:    userTo,
		UserFrom:  from.UserID,
		Username:  from.Username,
		Type:      typ,
		Message:   message,
		EntityID:  entityID,
		CreatedAt: time.Now().UTC().Unix(),
	}
	h.publish("notifications", "notification_added", n)
	h.enqueue(queue.JobNotificationCreate, n.ID, n)

	recipient, err := h.userByID(userTo)
	if err != nil || !wants(recipient.Notifications) || recipient.Email == "" {
		return
	}
	h.enqueue(queue.JobEmailSend, n.ID, workers.EmailPayload{
		To:      recipient.Email,
		Subject: emailSubject,
		HTML:    "<p>" + message + "</p>",
	})
}
