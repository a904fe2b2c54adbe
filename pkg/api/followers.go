package api

import (
	"fmt"
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

// RegisterFollowers wires the social graph endpoints.
func (h *Handlers) RegisterFollowers(r *mux.Router) {
	r.HandleFunc("/users/{id}/follow", auth.RequireAuth(h.follow)).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/unfollow", auth.RequireAuth(h.unfollow)).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/block", auth.RequireAuth(h.block)).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/unblock", auth.RequireAuth(h.unblock)).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/followers", auth.RequireAuth(h.listFollowers)).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/following", auth.RequireAuth(h.listFollowing)).Methods(http.MethodGet)
}

func (h *Handlers) follow(w http.ResponseWriter, r *http.Request) {
	followeeID := mux.Vars(r)["id"]
	p := principal(r)
	if followeeID == p.UserID {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "cannot follow yourself"))
		return
	}
	if _, err := h.userByID(followeeID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	if err := h.deps.Followers.Add(p.UserID, followeeID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	edge := models.Follower{
		ID:         ids.NewID(),
		FollowerID: p.UserID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now().UTC().Unix(),
	}
	h.publish("followers", "follower_added", edge)
	h.enqueue(queue.JobFollowerAdd, edge.ID, edge)
	h.notify(followeeID, p, "follow",
		fmt.Sprintf("%s is now following you", p.Username), p.UserID,
		func(s models.NotificationSettings) bool { return s.Follows },
		"You have a new follower")
	writeJSON(w, http.StatusOK, map[string]string{"message": "following"})
}

func (h *Handlers) unfollow(w http.ResponseWriter, r *http.Request) {
	followeeID := mux.Vars(r)["id"]
	p := principal(r)
	if followeeID == p.UserID {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "cannot unfollow yourself"))
		return
	}

	if err := h.deps.Followers.Remove(p.UserID, followeeID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("followers", "follower_removed", map[string]string{
		"followerId": p.UserID, "followeeId": followeeID,
	})
	h.enqueue(queue.JobFollowerRemove, p.UserID+":"+followeeID, workers.FollowerRemovePayload{
		FollowerID: p.UserID, FolloweeID: followeeID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "unfollowed"})
}

func (h *Handlers) block(w http.ResponseWriter, r *http.Request) {
	blockedID := mux.Vars(r)["id"]
	p := principal(r)
	if blockedID == p.UserID {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "cannot block yourself"))
		return
	}

	if err := h.deps.Followers.Block(p.UserID, blockedID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("followers", "user_blocked", map[string]string{
		"blockerId": p.UserID, "blockedId": blockedID,
	})
	h.enqueue(queue.JobBlockAdd, p.UserID+":"+blockedID, workers.BlockPayload{
		BlockerID: p.UserID, BlockedID: blockedID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "blocked"})
}

func (h *Handlers) unblock(w http.ResponseWriter, r *http.Request) {
	blockedID := mux.Vars(r)["id"]
	p := principal(r)

	if err := h.deps.Followers.Unblock(p.UserID, blockedID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("followers", "user_unblocked", map[string]string{
		"blockerId": p.UserID, "blockedId": blockedID,
	})
	h.enqueue(queue.JobBlockRemove, p.UserID+":"+blockedID, workers.BlockPayload{
		BlockerID: p.UserID, BlockedID: blockedID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "unblocked"})
}

func (h *Handlers) listFollowers(w http.ResponseWriter, r *http.Request) {
	followers, err := h.deps.Followers.Followers(mux.Vars(r)["id"])
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"followers": followers})
}

func (h *Handlers) listFollowing(w http.ResponseWriter, r *http.Request) {
	following, err := h.deps.Followers.Following(mux.Vars(r)["id"])
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"following": following})
}
