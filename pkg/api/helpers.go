package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"chirpd/pkg/apperr"
	"chirpd/pkg/auth"
	"chirpd/pkg/broadcast"
	"chirpd/pkg/logger"
	"chirpd/pkg/queue"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{ Validate() error }) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.Validation, "invalid json body")
	}
	if err := v.Validate(); err != nil {
		return apperr.Wrap(apperr.Validation, err.Error(), err)
	}
	return nil
}

// principal pulls the authenticated identity; routes behind RequireAuth
// always have one.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// pageOf parses ?page=N (1-based) and returns the inclusive cache range
// plus the durable skip/limit for the same window.
func pageOf(r *http.Request) (start, end int64, skip, limit int) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	start = int64(page-1) * pageSize
	end = int64(page)*pageSize - 1
	return start, end, (page - 1) * pageSize, pageSize
}

// publish pushes a state-change event; delivery is best-effort.
func (h *Handlers) publish(topic, name string, data any) {
	h.deps.Hub.Publish(broadcast.Event{Topic: topic, Name: name, Data: data})
}

// enqueue hands the durable job to the queue. By this point the cache
// write already succeeded, so a full or closed queue is logged as a
// consistency gap but never turns the response into an error.
func (h *Handlers) enqueue(typ queue.JobType, key string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		logger.Error("job_payload_marshal_failed", "type", string(typ), "key", key, "error", err)
		return
	}
	if err := h.deps.Queue.TryEnqueueBytes(typ, key, b, time.Now().UTC().UnixNano()); err != nil {
		logger.Error("job_enqueue_failed", "type", string(typ), "key", key, "error", err)
	}
}
