package api

import (
	"net/http"
)

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if !h.deps.Store.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "durable store not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
