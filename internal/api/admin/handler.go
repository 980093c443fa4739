package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/service"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Handler exposes operator endpoints on the admin port.
type Handler struct {
	provider *service.EngineProvider
}

func NewHandler(provider *service.EngineProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/admin/reload", h.Reload).Methods("POST")
	router.HandleFunc("/admin/status", h.Status).Methods("GET")
	router.HandleFunc("/admin/model/metrics", h.ModelMetrics).Methods("GET")
}

// NewRouter returns a mux router with the admin routes and a plain health
// check.
func NewRouter(provider *service.EngineProvider) *mux.Router {
	r := mux.NewRouter()
	NewHandler(provider).RegisterRoutes(r)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
	return r
}

type statusResponse struct {
	Loaded   bool                 `json:"loaded"`
	LoadedAt *time.Time           `json:"loaded_at,omitempty"`
	Engine   *domain.EngineHealth `json:"engine,omitempty"`
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	e, err := h.provider.Reload(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("admin: reload failed")
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrDataUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": "reload failed", "details": err.Error()})
		return
	}

	health := e.Health()
	log.Info().Str("strategy", health.Strategy).Dur("took", time.Since(start)).Msg("admin: engine reloaded")
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "engine": health})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	loaded, at := h.provider.Loaded()
	resp := statusResponse{Loaded: loaded}
	if loaded {
		resp.LoadedAt = &at
		if e, err := h.provider.Engine(r.Context()); err == nil {
			health := e.Health()
			resp.Engine = &health
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ModelMetrics(w http.ResponseWriter, r *http.Request) {
	e, err := h.provider.Engine(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "data not available", "details": err.Error()})
		return
	}
	health := e.Health()
	if health.ModelMetrics == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":    "no trained model loaded",
			"strategy": health.Strategy,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"strategy":        health.Strategy,
		"metrics":         health.ModelMetrics,
		"feature_columns": health.FeatureColumns,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("admin: failed to encode response")
	}
}
