// Package app assembles the server: volatile and durable stores, entity
// caches, job queue with its worker pool and re-drive sweep, broadcast
// hub and the HTTP surface. Everything is injected; no component reaches
// for a global.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"chirpd/pkg/api"
	"chirpd/pkg/auth"
	"chirpd/pkg/broadcast"
	"chirpd/pkg/cache"
	"chirpd/pkg/config"
	"chirpd/pkg/keyval"
	"chirpd/pkg/logger"
	"chirpd/pkg/mail"
	"chirpd/pkg/queue"
	"chirpd/pkg/shutdown"
	"chirpd/pkg/store"
	"chirpd/pkg/upload"
	"chirpd/pkg/workers"
)

const shutdownTimeout = 15 * time.Second

// App owns every long-lived component and its lifecycle.
type App struct {
	cfg  *config.Config
	addr string

	kv       *keyval.Store
	durable  *store.Store
	q        *queue.Queue
	proc     *queue.Processor
	redriver *queue.Redriver
	hub      *broadcast.Hub
	srv      *http.Server
}

// New builds the full component graph. Nothing is started yet; call Run
// to start the workers and the HTTP server and block until shutdown.
func New(cfg *config.Config, addr string) (*App, error) {
	_ = godotenv.Load(".env")

	if cfg.Security.SessionKey == "" {
		return nil, errors.New("security.session_key must be set")
	}

	dbPath := cfg.Server.DBPath
	if dbPath == "" {
		dbPath = "./.database"
	}
	durable, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open durable store at %s: %w", dbPath, err)
	}

	kv := keyval.New()
	users := cache.NewUserCache(kv)
	posts := cache.NewPostCache(kv)
	comments := cache.NewCommentCache(kv)
	reactions := cache.NewReactionCache(kv)
	followers := cache.NewFollowerCache(kv, users)
	messages := cache.NewMessageCache(kv)

	q := queue.New(cfg.Queue.Capacity)
	proc := queue.NewProcessor(q, durable, cfg.Queue.Workers)
	workers.Register(proc, workers.Deps{Store: durable, Mail: mail.LogSender{}})
	redriver, err := queue.NewRedriver(q, durable, cfg.Queue.RedriveCron)
	if err != nil {
		durable.Close()
		return nil, err
	}

	uploads, err := upload.NewStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL)
	if err != nil {
		durable.Close()
		return nil, err
	}

	sessions := auth.NewSessions(cfg.Security.SessionKey)
	hub := broadcast.NewHub()

	router := api.NewRouter(api.Deps{
		Sessions:   sessions,
		Hub:        hub,
		Queue:      q,
		Store:      durable,
		Users:      users,
		Posts:      posts,
		Comments:   comments,
		Reactions:  reactions,
		Followers:  followers,
		Messages:   messages,
		Uploads:    uploads,
		BcryptCost: cfg.Security.BcryptCost,
	})
	handler := sessions.Middleware(auth.MiddlewareConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
	})(router)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:      cfg,
		addr:     addr,
		kv:       kv,
		durable:  durable,
		q:        q,
		proc:     proc,
		redriver: redriver,
		hub:      hub,
		srv:      srv,
	}, nil
}

// Run starts the worker pool, the re-drive sweep and the HTTP server and
// blocks until ctx is cancelled or the server fails. Teardown order is
// the reverse of startup: the server drains first so in-flight requests
// can still enqueue, then the queue drains into the durable store, then
// the stores close.
func (a *App) Run(ctx context.Context) error {
	a.proc.Start()
	cancelRedrive := a.redriver.Start(ctx)

	var runner shutdown.Runner
	runner.Add("durable_store", func(context.Context) error { return a.durable.Close() })
	runner.Add("volatile_store", func(context.Context) error { return a.kv.Close() })
	runner.Add("redrive_sweep", func(context.Context) error { cancelRedrive(); return nil })
	runner.Add("queue_workers", func(context.Context) error { a.proc.Stop(); return nil })
	runner.Add("http_server", func(ctx context.Context) error { return a.srv.Shutdown(ctx) })

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", a.addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_started")
		runner.Shutdown(shutdownTimeout)
		return nil
	case err := <-errCh:
		runner.Shutdown(shutdownTimeout)
		return err
	}
}
