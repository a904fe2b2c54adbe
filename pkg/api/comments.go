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
)

// RegisterComments wires the per-post comment endpoints.
func (h *Handlers) RegisterComments(r *mux.Router) {
	r.HandleFunc("/posts/{id}/comments", auth.RequireAuth(h.addComment)).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/comments", auth.RequireAuth(h.listComments)).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}/comments/names", auth.RequireAuth(h.commentNames)).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}/comments/{commentId}", auth.RequireAuth(h.getComment)).Methods(http.MethodGet)
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (req commentRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Comment, validation.Required, validation.Length(1, 512)),
	)
}

func (h *Handlers) addComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
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
	profile, err := h.userByID(p.UserID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	comment := models.Comment{
		ID:             ids.NewID(),
		PostID:         postID,
		UserID:         p.UserID,
		Username:       p.Username,
		AvatarColor:    p.AvatarColor,
		ProfilePicture: profile.ProfilePicture,
		Comment:        req.Comment,
		CreatedAt:      time.Now().UTC().Unix(),
	}

	if err := h.deps.Comments.Save(comment); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("comments", "comment_added", comment)
	h.enqueue(queue.JobCommentCreate, comment.ID, comment)

	if post.UserID != p.UserID {
		h.notify(post.UserID, p, "comment",
			fmt.Sprintf("%s commented on your post", p.Username), postID,
			func(s models.NotificationSettings) bool { return s.Comments },
			"New comment on your post")
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *Handlers) listComments(w http.ResponseWriter, r *http.Request) {
	postID := mux.Vars(r)["id"]
	comments, err := h.deps.Comments.List(postID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if len(comments) == 0 {
		comments, err = h.deps.Store.ListComments(postID)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (h *Handlers) commentNames(w http.ResponseWriter, r *http.Request) {
	postID := mux.Vars(r)["id"]
	count, names, err := h.deps.Comments.Names(postID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if count == 0 {
		comments, err := h.deps.Store.ListComments(postID)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
		for _, c := range comments {
			names = append(names, c.Username)
		}
		count = len(comments)
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "names": names})
}

func (h *Handlers) getComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	comment, err := h.deps.Comments.Single(vars["id"], vars["commentId"])
	if errors.Is(err, cache.ErrNotFound) {
		comment, err = h.deps.Store.GetComment(vars["id"], vars["commentId"])
	}
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}
