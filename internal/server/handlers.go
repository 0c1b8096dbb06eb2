package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/promotions"
	"github.com/Mr-Dark-debug/freightview/pkg/jsonutil"
)

func (s *Server) handleListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := s.store.ListStages(chi.URLParam(r, "project"))
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, api.ListStagesResponse{Stages: stages})
}

// handlePutStage upserts a stage. Freight embedded in the status with a
// chart list is stored too, so a stage file can be applied in one call.
func (s *Server) handlePutStage(w http.ResponseWriter, r *http.Request) {
	project, name := chi.URLParam(r, "project"), chi.URLParam(r, "stage")

	var stage api.Stage
	if err := decodeJSON(r, &stage); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	stage.Metadata.Namespace = project
	stage.Metadata.Name = name
	if stage.Metadata.UID == "" {
		stage.Metadata.UID = uuid.NewString()
	}
	if stage.Metadata.CreationTimestamp.IsZero() {
		stage.Metadata.CreationTimestamp = time.Now().UTC()
	}

	embedded := stage.Status.History
	if cur := stage.Status.CurrentFreight; cur != nil {
		embedded = append([]api.Freight{*cur}, embedded...)
	}
	for _, f := range embedded {
		if f.ID == "" {
			respondError(w, http.StatusBadRequest, "freight id is required")
			return
		}
		if len(f.Charts) == 0 {
			continue
		}
		if err := s.store.UpsertFreight(project, f); err != nil {
			s.respondStoreError(w, r, err)
			return
		}
	}

	if err := s.store.UpsertStage(&stage); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	stored, err := s.store.GetStage(project, name)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stored)
}

func (s *Server) handlePutFreight(w http.ResponseWriter, r *http.Request) {
	project, id := chi.URLParam(r, "project"), chi.URLParam(r, "freight")

	var freight api.Freight
	if err := decodeJSON(r, &freight); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	freight.ID = id
	if err := s.store.UpsertFreight(project, freight); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, freight)
}

func (s *Server) handleListPromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := s.store.ListPromotions(chi.URLParam(r, "project"), chi.URLParam(r, "stage"))
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, api.ListPromotionsResponse{Promotions: promos})
}

// handleCreatePromotion requests promotion of existing freight into an
// existing stage. The promotion starts Pending.
func (s *Server) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	project, stage := chi.URLParam(r, "project"), chi.URLParam(r, "stage")

	var req api.CreatePromotionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Freight) == "" {
		respondError(w, http.StatusBadRequest, "freight is required")
		return
	}
	if _, err := s.store.GetStage(project, stage); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if _, err := s.store.GetFreight(project, req.Freight); err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	name := req.Name
	if name == "" {
		name = promotionName(stage, req.Freight)
	}
	p := &api.Promotion{
		Metadata: api.ObjectMeta{
			Name:              name,
			UID:               uuid.NewString(),
			Namespace:         project,
			CreationTimestamp: time.Now().UTC(),
		},
		Spec:   api.PromotionSpec{Stage: stage, Freight: req.Freight},
		Status: api.PromotionStatus{Phase: api.PhasePending},
	}
	if err := s.store.InsertPromotion(p); err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.PromotionsCreated, 1)
	s.publish(api.EventAdded, p)

	respondJSON(w, http.StatusCreated, p)
}

// handleUpdatePromotionStatus sets a promotion's phase. Reaching
// Succeeded moves the promotion's freight into its stage.
func (s *Server) handleUpdatePromotionStatus(w http.ResponseWriter, r *http.Request) {
	project, name := chi.URLParam(r, "project"), chi.URLParam(r, "promotion")

	var status api.PromotionStatus
	if err := decodeJSON(r, &status); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !status.Phase.Known() {
		s.respondStoreError(w, r, fmt.Errorf("%w: %q", ErrInvalidPhase, status.Phase))
		return
	}

	updated, promoted, err := s.store.SetPromotionStatus(project, name, status, s.config.HistoryLimit)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if promoted != nil {
		s.logger.Info("freight promoted", "project", project, "stage", updated.Spec.Stage, "freight", updated.Spec.Freight)
	}
	s.publish(api.EventModified, updated)
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePromotion(w http.ResponseWriter, r *http.Request) {
	project, name := chi.URLParam(r, "project"), chi.URLParam(r, "promotion")

	deleted, err := s.store.DeletePromotion(project, name)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	s.publish(api.EventDeleted, deleted)
	respondJSON(w, http.StatusOK, deleted)
}

// handleWatchPromotions streams promotion events for one stage until the
// client disconnects or the subscriber is dropped.
func (s *Server) handleWatchPromotions(w http.ResponseWriter, r *http.Request) {
	project, stage := chi.URLParam(r, "project"), chi.URLParam(r, "stage")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := s.broker.Subscribe(project, stage)
	defer s.broker.Unsubscribe(sub)
	s.logger.Debug("watch opened", "project", project, "stage", stage, "watchers", s.broker.Count())

	w.Header().Set("Content-Type", jsonutil.ContentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lw := jsonutil.NewLineWriter(w)
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("watch closed by client", "project", project, "stage", stage)
			return
		case ev, ok := <-sub.C:
			if !ok {
				s.logger.Debug("watch ended by server", "project", project, "stage", stage)
				return
			}
			if err := lw.Write(ev); err != nil {
				s.logger.Debug("watch write failed", "project", project, "stage", stage, "err", err)
				return
			}
		}
	}
}

func (s *Server) publish(typ api.EventType, p *api.Promotion) {
	ev := api.PromotionEvent{Type: typ, Promotion: p}
	delivered, dropped := s.broker.Publish(p.Metadata.Namespace, p.Spec.Stage, ev)
	atomic.AddInt64(&s.metrics.EventsPublished, 1)
	if dropped > 0 {
		atomic.AddInt64(&s.metrics.WatchersDropped, int64(dropped))
		s.logger.Warn("dropped slow watchers", "project", p.Metadata.Namespace, "stage", p.Spec.Stage, "dropped", dropped)
	}
	s.logger.Debug("event published", "type", typ, "promotion", p.Metadata.Name, "delivered", delivered)
}

// promotionName builds "<stage>.<id>.<freight prefix>".
func promotionName(stage, freight string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s.%s.%s", stage, id, promotions.ShortFreight(freight))
}
