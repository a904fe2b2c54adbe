package api

import (
	"errors"
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

// RegisterPosts wires the post feed endpoints.
func (h *Handlers) RegisterPosts(r *mux.Router) {
	r.HandleFunc("/posts", auth.RequireAuth(h.createPost)).Methods(http.MethodPost)
	r.HandleFunc("/posts", auth.RequireAuth(h.listPosts)).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", auth.RequireAuth(h.getPost)).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", auth.RequireAuth(h.updatePost)).Methods(http.MethodPut)
	r.HandleFunc("/posts/{id}", auth.RequireAuth(h.deletePost)).Methods(http.MethodDelete)
}

type postRequest struct {
	Post     string `json:"post"`
	BgColor  string `json:"bgColor"`
	Privacy  string `json:"privacy"`
	Feelings string `json:"feelings"`
	GifURL   string `json:"gifUrl"`
	Image    string `json:"image"`
}

func (req postRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Post, validation.Required.When(req.Image == "" && req.GifURL == ""), validation.Length(0, 1024)),
		validation.Field(&req.Privacy, validation.In("", "Public", "Followers", "Private")),
	)
}

type pagedPostsResponse struct {
	Posts []models.Post `json:"posts"`
	Total int           `json:"total"`
}

func (h *Handlers) createPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	p := principal(r)
	profile, err := h.userByID(p.UserID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	post := models.Post{
		ID:             ids.NewID(),
		UserID:         p.UserID,
		Username:       p.Username,
		Email:          p.Email,
		AvatarColor:    p.AvatarColor,
		ProfilePicture: profile.ProfilePicture,
		Post:           req.Post,
		BgColor:        req.BgColor,
		Feelings:       req.Feelings,
		Privacy:        req.Privacy,
		GifURL:         req.GifURL,
		CreatedAt:      time.Now().UTC().Unix(),
	}
	if req.Image != "" {
		img, err := h.deps.Uploads.Upload(req.Image)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
		post.ImgID = img.ID
		post.ImgVersion = img.Version
	}

	if err := h.deps.Posts.Save(p.UserID, p.UID, post); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("posts", "post_added", post)
	h.enqueue(queue.JobPostCreate, post.ID, post)
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handlers) listPosts(w http.ResponseWriter, r *http.Request) {
	start, end, skip, limit := pageOf(r)

	total, err := h.deps.Posts.Total()
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if total > 0 {
		posts, err := h.deps.Posts.Range(start, end)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pagedPostsResponse{Posts: posts, Total: total})
		return
	}

	posts, err := h.deps.Store.ListPosts(skip, limit)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	durableTotal, err := h.deps.Store.CountPosts()
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pagedPostsResponse{Posts: posts, Total: durableTotal})
}

func (h *Handlers) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.postByID(mux.Vars(r)["id"])
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handlers) updatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	p := principal(r)
	existing, err := h.postByID(id)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if existing.UserID != p.UserID {
		apperr.WriteJSON(w, apperr.New(apperr.NotAuthorized, "not the post author"))
		return
	}

	updated := existing
	updated.Post = req.Post
	updated.BgColor = req.BgColor
	updated.Feelings = req.Feelings
	updated.Privacy = req.Privacy
	updated.GifURL = req.GifURL
	if req.Image != "" {
		img, err := h.deps.Uploads.Upload(req.Image)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
		updated.ImgID = img.ID
		updated.ImgVersion = img.Version
	}

	post, err := h.deps.Posts.Update(id, updated)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("posts", "post_updated", post)
	h.enqueue(queue.JobPostUpdate, id, post)
	writeJSON(w, http.StatusOK, post)
}

func (h *Handlers) deletePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p := principal(r)
	existing, err := h.postByID(id)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if existing.UserID != p.UserID {
		apperr.WriteJSON(w, apperr.New(apperr.NotAuthorized, "not the post author"))
		return
	}

	if err := h.deps.Posts.Delete(id, p.UserID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("posts", "post_deleted", map[string]string{"id": id})
	h.enqueue(queue.JobPostDelete, id, workers.PostDeletePayload{PostID: id, UserID: p.UserID})
	writeJSON(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

// postByID reads a post cache-first and falls back to the durable copy on
// a miss.
func (h *Handlers) postByID(id string) (models.Post, error) {
	post, err := h.deps.Posts.Get(id)
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return models.Post{}, err
	}
	return h.deps.Store.GetPost(id)
}
