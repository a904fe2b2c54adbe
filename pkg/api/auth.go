package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gorilla/mux"

	"chirpd/pkg/apperr"
	"chirpd/pkg/auth"
	"chirpd/pkg/cache"
	"chirpd/pkg/ids"
	"chirpd/pkg/models"
	"chirpd/pkg/queue"
	"chirpd/pkg/workers"
)

// RegisterAuth wires signup, signin and the current-session probe.
func (h *Handlers) RegisterAuth(r *mux.Router) {
	r.HandleFunc("/auth/signup", h.signup).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", h.signin).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", auth.RequireAuth(h.currentUser)).Methods(http.MethodGet)
}

type signupRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AvatarColor string `json:"avatarColor"`
	AvatarImage string `json:"avatarImage"`
}

func (req signupRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.Required, validation.Length(4, 16)),
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Password, validation.Required, validation.Length(4, 32)),
		validation.Field(&req.AvatarColor, validation.Required),
	)
}

type signinRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req signinRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.Required),
		validation.Field(&req.Password, validation.Required),
	)
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (h *Handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	if taken, err := h.credentialTaken(req.Username, req.Email); err != nil {
		apperr.WriteJSON(w, err)
		return
	} else if taken {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "username or email already in use"))
		return
	}

	hash, err := auth.HashPassword(req.Password, h.deps.BcryptCost)
	if err != nil {
		apperr.WriteJSON(w, apperr.Wrap(apperr.Internal, "could not process credentials", err))
		return
	}

	now := time.Now().UTC().Unix()
	user := models.User{
		ID:          ids.NewID(),
		UID:         ids.NewUID(12),
		Username:    req.Username,
		Email:       strings.ToLower(req.Email),
		AvatarColor: req.AvatarColor,
		Notifications: models.NotificationSettings{
			Messages: true, Reactions: true, Comments: true, Follows: true,
		},
		CreatedAt: now,
	}
	if req.AvatarImage != "" {
		img, err := h.deps.Uploads.Upload(req.AvatarImage)
		if err != nil {
			apperr.WriteJSON(w, err)
			return
		}
		user.ProfilePicture = img.URL
	}
	creds := models.Auth{
		ID:           user.ID,
		UID:          user.UID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: hash,
		AvatarColor:  user.AvatarColor,
		CreatedAt:    now,
	}

	if err := h.deps.Users.Save(user); err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	h.publish("users", "user_added", user)
	h.enqueue(queue.JobUserCreate, user.ID, workers.SignupPayload{User: user, Auth: creds})
	h.enqueue(queue.JobEmailSend, user.ID, workers.EmailPayload{
		To:      user.Email,
		Subject: "Welcome to chirpd",
		HTML:    fmt.Sprintf("<p>Hi %s, your account is ready.</p>", user.Username),
	})

	token, err := h.deps.Sessions.Issue(principalFor(user))
	if err != nil {
		apperr.WriteJSON(w, apperr.Wrap(apperr.Internal, "could not issue session", err))
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
}

func (h *Handlers) signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	creds, err := h.lookupAuth(req.Username)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			apperr.WriteJSON(w, apperr.New(apperr.NotAuthorized, "invalid credentials"))
			return
		}
		apperr.WriteJSON(w, err)
		return
	}
	if !auth.CheckPassword(creds.PasswordHash, req.Password) {
		apperr.WriteJSON(w, apperr.New(apperr.NotAuthorized, "invalid credentials"))
		return
	}

	user, err := h.userByID(creds.ID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	token, err := h.deps.Sessions.Issue(principalFor(user))
	if err != nil {
		apperr.WriteJSON(w, apperr.Wrap(apperr.Internal, "could not issue session", err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

func (h *Handlers) currentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userByID(principal(r).UserID)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// credentialTaken reports whether either identifier already belongs to an
// account in the durable store.
func (h *Handlers) credentialTaken(username, email string) (bool, error) {
	if _, err := h.deps.Store.GetAuthByUsername(username); err == nil {
		return true, nil
	} else if apperr.KindOf(err) != apperr.NotFound {
		return false, err
	}
	if _, err := h.deps.Store.GetAuthByEmail(strings.ToLower(email)); err == nil {
		return true, nil
	} else if apperr.KindOf(err) != apperr.NotFound {
		return false, err
	}
	return false, nil
}

// lookupAuth resolves credentials by username or, when the identifier
// contains an @, by email.
func (h *Handlers) lookupAuth(identifier string) (models.Auth, error) {
	if strings.Contains(identifier, "@") {
		return h.deps.Store.GetAuthByEmail(strings.ToLower(identifier))
	}
	return h.deps.Store.GetAuthByUsername(identifier)
}

// userByID reads a profile cache-first. On a miss the durable copy is
// fetched and written back to the cache, with concurrent misses for the
// same id collapsed into one repopulation.
func (h *Handlers) userByID(id string) (models.User, error) {
	u, err := h.deps.Users.Get(id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return models.User{}, err
	}
	if err := h.repop.Do("user:"+id, func() error {
		durable, err := h.deps.Store.GetUser(id)
		if err != nil {
			return err
		}
		return h.deps.Users.Save(durable)
	}); err != nil {
		return models.User{}, err
	}
	return h.deps.Users.Get(id)
}

func principalFor(u models.User) auth.Principal {
	return auth.Principal{
		UserID:      u.ID,
		UID:         u.UID,
		Username:    u.Username,
		Email:       u.Email,
		AvatarColor: u.AvatarColor,
	}
}
