package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"chirpd/pkg/auth"
	"chirpd/pkg/broadcast"
)

// RegisterStream wires the live event endpoint.
func (h *Handlers) RegisterStream(r *mux.Router) {
	r.HandleFunc("/stream", auth.RequireAuth(h.stream)).Methods(http.MethodGet)
}

// stream pushes broadcast events for the requested topics over SSE.
// Delivery is best-effort: anything published while the client's buffer
// is full is dropped, and the client catches up through normal reads.
func (h *Handlers) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	topics := strings.Split(r.URL.Query().Get("topics"), ",")
	if len(topics) == 1 && topics[0] == "" {
		topics = []string{"posts", "comments", "reactions", "followers", "users", "chat", "notifications"}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	cancels := make([]func(), 0, len(topics))
	events := make(chan broadcast.Event, 16)
	for _, t := range topics {
		ch, cancel := h.deps.Hub.Subscribe(strings.TrimSpace(t))
		cancels = append(cancels, cancel)
		go func(ch <-chan broadcast.Event) {
			for ev := range ch {
				select {
				case events <- ev:
				case <-r.Context().Done():
					return
				}
			}
		}(ch)
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, b)
			flusher.Flush()
		}
	}
}
