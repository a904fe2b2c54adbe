// Package cache implements the entity caches: one module per entity kind
// over the volatile keyval store. The cache is the first-consulted,
// synchronously consistent source for its kind; it never falls back to
// the durable store on its own; a miss is reported with ErrNotFound and
// the caller decides whether to take the cold path.
package cache

import (
	"encoding/json"
	"strconv"

	"golang.org/x/sync/singleflight"

	"chirpd/pkg/apperr"
)

// ErrNotFound is the explicit miss sentinel, carrying the NotFound kind
// for the HTTP translator. Callers must branch on it; a miss is never
// reported as a zero-valued entity.
var ErrNotFound = apperr.New(apperr.NotFound, "not found")

// wrapUnavailable converts a store-level failure into the single
// CacheUnavailable domain kind. The whole mutation aborts on this error:
// no broadcast, no enqueue.
func wrapUnavailable(err error) error {
	return apperr.Wrap(apperr.CacheUnavailable, "cache unavailable", err)
}

// Repopulator guards populate-on-miss writes so concurrent cold reads of
// the same key collapse into one cache write instead of a stampede.
type Repopulator struct {
	g singleflight.Group
}

// Do runs fn once per in-flight key.
func (r *Repopulator) Do(key string, fn func() error) error {
	_, err, _ := r.g.Do(key, func() (any, error) { return nil, fn() })
	return err
}

// schema helpers: every composite field crosses the volatile store as a
// JSON string, counters and timestamps as decimal strings. Each entity
// kind owns exactly one encode/decode pair built on these.

func encJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func decJSON(s string, v any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), v)
}

func encInt(v int) string     { return strconv.Itoa(v) }
func encInt64(v int64) string { return strconv.FormatInt(v, 10) }

func decInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func decInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func decBool(s string) bool { return s == "true" }

func encBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// score parses a numeric uid into the sorted-set score backing global
// pagination.
func score(uid string) float64 {
	v, _ := strconv.ParseFloat(uid, 64)
	return v
}
