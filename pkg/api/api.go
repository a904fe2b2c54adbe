// Package api exposes the HTTP surface. Every mutating handler follows
// one fixed ordering: validate, write the entity cache, publish to the
// broadcast hub, enqueue the durable persistence job, respond. A cache
// failure aborts the request before anything was broadcast or enqueued;
// queue or broadcast trouble never turns a succeeded cache write into an
// error response.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chirpd/pkg/auth"
	"chirpd/pkg/broadcast"
	"chirpd/pkg/cache"
	"chirpd/pkg/queue"
	"chirpd/pkg/store"
	"chirpd/pkg/upload"
)

// pageSize is the fixed page length for paged listings.
const pageSize = 10

// Deps are the injected collaborators handlers orchestrate.
type Deps struct {
	Sessions *auth.Sessions
	Hub      *broadcast.Hub
	Queue    *queue.Queue
	Store    *store.Store

	Users     *cache.UserCache
	Posts     *cache.PostCache
	Comments  *cache.CommentCache
	Reactions *cache.ReactionCache
	Followers *cache.FollowerCache
	Messages  *cache.MessageCache

	Uploads    *upload.Store
	BcryptCost int
}

// Handlers carries the dependencies for every feature handler.
type Handlers struct {
	deps  Deps
	repop cache.Repopulator
}

// NewRouter builds the full HTTP router.
func NewRouter(deps Deps) *mux.Router {
	h := &Handlers{deps: deps}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	h.RegisterAuth(v1)
	h.RegisterUsers(v1)
	h.RegisterPosts(v1)
	h.RegisterComments(v1)
	h.RegisterReactions(v1)
	h.RegisterFollowers(v1)
	h.RegisterChat(v1)
	h.RegisterNotifications(v1)
	h.RegisterStream(v1)
	return r
}
