package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/database"
)

// Router returns the HTTP handler for the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())
	r.Get("/api/metrics", s.handleMetricsJSON)

	r.Route("/v1/projects/{project}", func(r chi.Router) {
		if s.config.TokenSecret != "" {
			r.Use(s.requireToken)
		}

		// Watch streams stay open, so they sit outside the timeout group.
		r.Get("/stages/{stage}/promotions/watch", s.handleWatchPromotions)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
			r.Get("/stages", s.handleListStages)
			r.Put("/stages/{stage}", s.handlePutStage)
			r.Put("/freight/{freight}", s.handlePutFreight)
			r.Get("/stages/{stage}/promotions", s.handleListPromotions)
			r.Post("/stages/{stage}/promotions", s.handleCreatePromotion)
			r.Put("/promotions/{promotion}/status", s.handleUpdatePromotionStatus)
			r.Delete("/promotions/{promotion}", s.handleDeletePromotion)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.Health{Status: "ok", Version: Version})
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Metrics())
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondStoreError maps storage and validation errors to status codes.
func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidPhase):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.countError()
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
