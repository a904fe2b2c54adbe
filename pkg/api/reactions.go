package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gorilla/mux"

	"chirpd/pkg/apperr"
	"chirpd/pkg/auth"
	"chirpd/pkg/cache"
	"chirpd/pkg/ids"
	"chirpd/pkg/models"
	"chirpd/pkg/queue"
	"chirpd/pkg/workers"
)

// RegisterReactions wires the per-post reaction endpoints.
func (h *Handlers) RegisterReactions(r *mux.Router) {
	r.HandleFunc("/posts/{id}/reactions", auth.RequireAuth(h.addReaction)).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/reactions", auth.RequireAuth(h.removeReaction)).Methods(http.MethodDelete)
	r.HandleFunc("/posts/{id}/reactions", auth.RequireAuth(h.listReactions)).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}/reactions/{username}", auth.RequireAuth(h.getReaction)).Methods(http.MethodGet)
}

type reactionRequest struct {
	Type string `json:"type"`
}

func (req reactionRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Type, validation.Required,
			validation.By(func(v any) error {
				if !models.ValidReactionType(v.(string)) {
					return fmt.Errorf("unknown reaction type")
				}
				return nil
			})),
	)
}

// addReaction records the caller's reaction to a post. A repeat reaction
// of a different type replaces the previous one: the old tally drops by
// one, the new one rises by one, and the reaction list keeps a single
// entry for the user.
func (h *Handlers) addReaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	postID := mux.Vars(r)["id"]
	p := principal(r)
	post, err := h.postByID(postID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	previousType := ""
	if prev, err := h.deps.Reactions.SingleByUsername(postID, p.Username); err == nil {
		previousType = prev.Type
	} else if !errors.Is(err, cache.ErrNotFound) {
		apperr.WriteJSON(w, err)
		return
	}

	tallies := post.Reactions
	if previousType != "" {
		tallies.Add(previousType, -1)
	}
	tallies.Add(req.Type, 1)

	reaction := models.Reaction{
		ID:          ids.NewID(),
		PostID:      postID,
		UserID:      p.UserID,
		Username:    p.Username,
		AvatarColor: p.AvatarColor,
		Type:        req.Type,
		CreatedAt:   time.Now().UTC().Unix(),
	}

	if err := h.deps.Reactions.Save(reaction, tallies, previousType); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("reactions", "reaction_added", reaction)
	h.enqueue(queue.JobReactionAdd, reaction.ID, reaction)

	if post.UserID != p.UserID && previousType == "" {
		h.notify(post.UserID, p, "reaction",
			fmt.Sprintf("%s reacted to your post", p.Username), postID,
			func(s models.NotificationSettings) bool { return s.Reactions },
			"New reaction to your post")
	}
	writeJSON(w, http.StatusCreated, reaction)
}

func (h *Handlers) removeReaction(w http.ResponseWriter, r *http.Request) {
	postID := mux.Vars(r)["id"]
	p := principal(r)
	post, err := h.postByID(postID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	prev, err := h.deps.Reactions.SingleByUsername(postID, p.Username)
	if errors.Is(err, cache.ErrNotFound) {
		apperr.WriteJSON(w, apperr.New(apperr.NotFound, "no reaction to remove"))
		return
	}
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	tallies := post.Reactions
	tallies.Add(prev.Type, -1)

	if err := h.deps.Reactions.Remove(postID, p.Username, tallies); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("reactions", "reaction_removed", map[string]string{"postId": postID, "username": p.Username})
	h.enqueue(queue.JobReactionRemove, postID+":"+p.Username, workers.ReactionRemovePayload{PostID: postID, Username: p.Username})
	writeJSON(w, http.StatusOK, map[string]string{"message": "reaction removed"})
}

func (h *Handlers) listReactions(w http.ResponseWriter, r *http.Request) {
	postID := mux.Vars(r)["id"]
	reactions, count, err := h.deps.Reactions.List(postID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if count == 0 {
		reactions, err = h.deps.Store.ListReactions(postID)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
		count = len(reactions)
	}
	writeJSON(w, http.StatusOK, map[string]any{"reactions": reactions, "count": count})
}

func (h *Handlers) getReaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	reaction, err := h.deps.Reactions.SingleByUsername(vars["id"], vars["username"])
	if errors.Is(err, cache.ErrNotFound) {
		reaction, err = h.deps.Store.GetReactionByUsername(vars["id"], vars["username"])
	}
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reaction)
}
