package api

import (
	"encoding/json"
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

const suggestionSampleSize = 10

// RegisterUsers wires profile listing, lookup and settings.
func (h *Handlers) RegisterUsers(r *mux.Router) {
	r.HandleFunc("/users", auth.RequireAuth(h.listUsers)).Methods(http.MethodGet)
	r.HandleFunc("/users/suggestions", auth.RequireAuth(h.userSuggestions)).Methods(http.MethodGet)
	r.HandleFunc("/users/settings/basic", auth.RequireAuth(h.updateBasicInfo)).Methods(http.MethodPut)
	r.HandleFunc("/users/settings/social", auth.RequireAuth(h.updateSocialLinks)).Methods(http.MethodPut)
	r.HandleFunc("/users/settings/notifications", auth.RequireAuth(h.updateNotificationSettings)).Methods(http.MethodPut)
	r.HandleFunc("/users/settings/password", auth.RequireAuth(h.changePassword)).Methods(http.MethodPut)
	r.HandleFunc("/users/images/profile", auth.RequireAuth(h.updateProfilePicture)).Methods(http.MethodPut)
	r.HandleFunc("/users/images/background", auth.RequireAuth(h.updateBackgroundImage)).Methods(http.MethodPut)
	r.HandleFunc("/users/images/background/{imageId}", auth.RequireAuth(h.deleteBackgroundImage)).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id}", auth.RequireAuth(h.userProfile)).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/posts", auth.RequireAuth(h.userProfileAndPosts)).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/images", auth.RequireAuth(h.userImages)).Methods(http.MethodGet)
}

type pagedUsersResponse struct {
	Users []models.User `json:"users"`
	Total int           `json:"total"`
}

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	start, end, skip, limit := pageOf(r)

	total, err := h.deps.Users.Total()
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if total > 0 {
		users, err := h.deps.Users.Range(start, end)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pagedUsersResponse{Users: users, Total: total})
		return
	}

	// cold path: the cache holds no users, read the page durably
	users, err := h.deps.Store.ListUsers(skip, limit)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	durableTotal, err := h.deps.Store.CountUsers()
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pagedUsersResponse{Users: users, Total: durableTotal})
}

func (h *Handlers) userProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.userByID(mux.Vars(r)["id"])
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) userProfileAndPosts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, err := h.userByID(id)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	posts, err := h.deps.Posts.ByUser(id)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if len(posts) == 0 {
		posts, err = h.deps.Store.ListPostsByUser(id)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "posts": posts})
}

func (h *Handlers) userSuggestions(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	followees, err := h.deps.Followers.FollowingIDs(p.UserID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	users, err := h.deps.Users.RandomSuggestions(p.UserID, suggestionSampleSize, followees)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type basicInfoRequest struct {
	Quote    string `json:"quote"`
	Work     string `json:"work"`
	School   string `json:"school"`
	Location string `json:"location"`
}

func (req basicInfoRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Quote, validation.Length(0, 256)),
		validation.Field(&req.Work, validation.Length(0, 128)),
		validation.Field(&req.School, validation.Length(0, 128)),
		validation.Field(&req.Location, validation.Length(0, 128)),
	)
}

func (h *Handlers) updateBasicInfo(w http.ResponseWriter, r *http.Request) {
	var req basicInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	p := principal(r)
	fields := map[string]string{
		"quote":    req.Quote,
		"work":     req.Work,
		"school":   req.School,
		"location": req.Location,
	}
	var user models.User
	var err error
	for field, value := range fields {
		user, err = h.deps.Users.UpdateField(p.UserID, field, value)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
	}
	h.publish("users", "user_updated", user)
	h.enqueue(queue.JobUserUpdate, p.UserID, workers.UserUpdatePayload{UserID: p.UserID, Fields: fields})
	writeJSON(w, http.StatusOK, user)
}

type socialLinksRequest struct {
	models.SocialLinks
}

func (req socialLinksRequest) Validate() error { return nil }

func (h *Handlers) updateSocialLinks(w http.ResponseWriter, r *http.Request) {
	var req socialLinksRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	p := principal(r)
	encoded, _ := json.Marshal(req.SocialLinks)
	user, err := h.deps.Users.UpdateField(p.UserID, "social", string(encoded))
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("users", "user_updated", user)
	social := req.SocialLinks
	h.enqueue(queue.JobUserUpdate, p.UserID, workers.UserUpdatePayload{UserID: p.UserID, Social: &social})
	writeJSON(w, http.StatusOK, user)
}

type notificationSettingsRequest struct {
	models.NotificationSettings
}

func (req notificationSettingsRequest) Validate() error { return nil }

func (h *Handlers) updateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	var req notificationSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	p := principal(r)
	encoded, _ := json.Marshal(req.NotificationSettings)
	user, err := h.deps.Users.UpdateField(p.UserID, "notifications", string(encoded))
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("users", "user_updated", user)
	settings := req.NotificationSettings
	h.enqueue(queue.JobUserUpdate, p.UserID, workers.UserUpdatePayload{UserID: p.UserID, Notifications: &settings})
	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (req changePasswordRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.CurrentPassword, validation.Required),
		validation.Field(&req.NewPassword, validation.Required, validation.Length(4, 32)),
	)
}

// changePassword verifies and replaces credentials synchronously against
// the durable store. Credentials are never cached, so the asynchronous
// persistence path does not apply here.
func (h *Handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	p := principal(r)
	creds, err := h.deps.Store.GetAuthByUsername(p.Username)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if !auth.CheckPassword(creds.PasswordHash, req.CurrentPassword) {
		apperr.WriteJSON(w, apperr.New(apperr.NotAuthorized, "current password is incorrect"))
		return
	}
	hash, err := auth.HashPassword(req.NewPassword, h.deps.BcryptCost)
	if err != nil {
		apperr.WriteJSON(w, apperr.Wrap(apperr.Internal, "could not process credentials", err))
		return
	}
	if err := h.deps.Store.SaveAuthPassword(creds.ID, hash); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.enqueue(queue.JobEmailSend, p.UserID, workers.EmailPayload{
		To:      p.Email,
		Subject: "Your password was changed",
		HTML:    "<p>Your password was changed. If this was not you, reset it immediately.</p>",
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

type imageRequest struct {
	Image string `json:"image"`
}

func (req imageRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Image, validation.Required),
	)
}

func (h *Handlers) updateProfilePicture(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	p := principal(r)
	img, err := h.deps.Uploads.Upload(req.Image)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	user, err := h.deps.Users.UpdateField(p.UserID, "profilePicture", img.URL)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("users", "user_updated", user)
	h.enqueue(queue.JobUserUpdate, p.UserID, workers.UserUpdatePayload{
		UserID: p.UserID,
		Fields: map[string]string{"profilePicture": img.URL},
	})
	h.enqueue(queue.JobImageAdd, p.UserID, models.Image{
		ID: ids.NewID(), UserID: p.UserID,
		ImgID: img.ID, ImgVersion: img.Version,
		CreatedAt: time.Now().UTC().Unix(),
	})
	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) updateBackgroundImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	p := principal(r)
	img, err := h.deps.Uploads.Upload(req.Image)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	if _, err := h.deps.Users.UpdateField(p.UserID, "bgImageId", img.ID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	user, err := h.deps.Users.UpdateField(p.UserID, "bgImageVersion", img.Version)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("users", "user_updated", user)
	h.enqueue(queue.JobUserUpdate, p.UserID, workers.UserUpdatePayload{
		UserID: p.UserID,
		Fields: map[string]string{"bgImageId": img.ID, "bgImageVersion": img.Version},
	})
	h.enqueue(queue.JobImageAdd, p.UserID, models.Image{
		ID: ids.NewID(), UserID: p.UserID,
		ImgID: img.ID, ImgVersion: img.Version,
		CreatedAt: time.Now().UTC().Unix(),
	})
	writeJSON(w, http.StatusOK, user)
}

// userImages lists a user's uploaded-image gallery. The gallery is
// durable-only, like notifications; there is no cache entry to consult.
func (h *Handlers) userImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.deps.Store.ListImages(mux.Vars(r)["id"])
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

// deleteBackgroundImage clears the caller's background image fields and
// drops the matching gallery record.
func (h *Handlers) deleteBackgroundImage(w http.ResponseWriter, r *http.Request) {
	imageID := mux.Vars(r)["imageId"]
	p := principal(r)
	if _, err := h.deps.Users.UpdateField(p.UserID, "bgImageId", ""); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	user, err := h.deps.Users.UpdateField(p.UserID, "bgImageVersion", "")
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("users", "user_updated", user)
	h.enqueue(queue.JobUserUpdate, p.UserID, workers.UserUpdatePayload{
		UserID: p.UserID,
		Fields: map[string]string{"bgImageId": "", "bgImageVersion": ""},
	})
	h.enqueue(queue.JobImageRemove, imageID, workers.ImageRemovePayload{
		UserID: p.UserID, ImageID: imageID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "background image removed"})
}
