// Package shutdown coordinates graceful teardown: components register
// closers in dependency order and Shutdown runs them in reverse under a
// deadline.
package shutdown

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"chirpd/pkg/logger"
)

// Notify returns a context cancelled on SIGINT or SIGTERM.
func Notify(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Runner collects closers. Not safe for concurrent Add.
type Runner struct {
	closers []closer
}

// Add registers a closer. Closers run in reverse registration order so
// the HTTP server (registered last) drains before the stores close.
func (r *Runner) Add(name string, fn func(ctx context.Context) error) {
	r.closers = append(r.closers, closer{name: name, fn: fn})
}

// Shutdown runs every closer in reverse order under one deadline. Errors
// are logged, never fatal; teardown always proceeds to the next closer.
func (r *Runner) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(ctx); err != nil {
			logger.Error("shutdown_closer_failed", "name", c.name, "error", err)
			continue
		}
		logger.Info("shutdown_closer_done", "name", c.name)
	}
}
