// Package admin serves a small HTTP surface for inspecting the caches held by
// a Manager: Prometheus metrics, per-cache statistics, and invalidation.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safecache/internal/cache"
	"safecache/internal/logger"
)

type handler struct {
	m   *cache.Manager
	log *slog.Logger
}

// NewRouter returns the admin routes for m.
//
//	GET  /healthz
//	GET  /metrics
//	GET  /caches
//	GET  /caches/{name}
//	POST /caches/{name}/clear
func NewRouter(m *cache.Manager) *mux.Router {
	h := &handler{m: m, log: logger.WithComponent("admin")}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/caches", h.listCaches).Methods(http.MethodGet)
	r.HandleFunc("/caches/{name}", h.getCache).Methods(http.MethodGet)
	r.HandleFunc("/caches/{name}/clear", h.clearCache).Methods(http.MethodPost)
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listCaches returns the statistics of every registered cache, sorted by name.
func (h *handler) listCaches(w http.ResponseWriter, r *http.Request) {
	out := make([]cache.Stats, 0)
	for _, name := range h.m.Names() {
		// A cache removed between Names and Stats is skipped.
		if s, ok := h.m.Stats(name); ok {
			out = append(out, s)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"caches": out})
}

func (h *handler) getCache(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s, ok := h.m.Stats(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "cache not found")
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *handler) clearCache(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	found, err := h.m.Clear(name)
	switch {
	case !found:
		h.writeError(w, http.StatusNotFound, "cache not found")
	case err != nil:
		h.log.Error("clear cache failed", "cache", name, "err", err)
		h.writeError(w, http.StatusInternalServerError, "clear failed")
	default:
		h.log.Info("cache cleared", "cache", name)
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", "err", err)
	}
}
