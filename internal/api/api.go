/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/playlist_gen/internal/auth"
	"github.com/friendsincode/playlist_gen/internal/cache"
	"github.com/friendsincode/playlist_gen/internal/criteria"
	"github.com/friendsincode/playlist_gen/internal/smartlabel"
	"github.com/friendsincode/playlist_gen/internal/store"
)

// LabelsPageSize is the number of labels returned per page.
const LabelsPageSize = 20

// PreviewNames is the number of track names returned with a match count.
const PreviewNames = 5

// API exposes HTTP handlers.
type API struct {
	store     *store.GormStore
	engine    *smartlabel.Engine
	counts    *cache.Cache
	jwtSecret []byte
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(st *store.GormStore, engine *smartlabel.Engine, counts *cache.Cache, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		store:     st,
		engine:    engine,
		counts:    counts,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

type criteriaRequest struct {
	Criteria string `json:"criteria"`
}

type labelRequest struct {
	Name          string  `json:"name"`
	SmartCriteria *string `json:"smart_criteria"`
}

// Routes mounts the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))
			pr.Use(requestToken)

			pr.Route("/criteria", func(r chi.Router) {
				r.Post("/validate", a.handleCriteriaValidate)
				r.Post("/matches", a.handleCriteriaMatches)
			})

			pr.Route("/labels", func(r chi.Router) {
				r.Get("/", a.handleLabelsList)
				r.Post("/", a.handleLabelsCreate)
				r.Route("/{labelID}", func(r chi.Router) {
					r.Get("/", a.handleLabelsGet)
					r.Put("/", a.handleLabelsUpdate)
					r.Delete("/", a.handleLabelsDelete)
				})
			})

			pr.Route("/tracks/{trackID}/labels/{labelID}", func(r chi.Router) {
				r.Put("/", a.handleTrackLabelAdd)
				r.Delete("/", a.handleTrackLabelRemove)
			})

			pr.Get("/sync/preview", a.handleSyncPreview)
		})
	})
}

// requestToken gives every request its own filter-data token so that all
// evaluations done while serving it share a single library load.
func requestToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := smartlabel.WithToken(r.Context(), smartlabel.NewToken())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "eval_mode": string(a.engine.Mode())})
}

func (a *API) handleCriteriaValidate(w http.ResponseWriter, r *http.Request) {
	var req criteriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	err := a.engine.Check(r.Context(), auth.UserID(r.Context()), req.Criteria)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"valid": true})
	case errors.Is(err, criteria.ErrInvalidCriteria):
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "message": err.Error()})
	default:
		a.writeEvalError(w, r, err)
	}
}

func (a *API) handleCriteriaMatches(w http.ResponseWriter, r *http.Request) {
	var req criteriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	res, err := a.engine.Evaluate(r.Context(), auth.UserID(r.Context()), req.Criteria, nil)
	if err != nil {
		a.writeEvalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(res.Tracks),
		"names": res.Names(PreviewNames),
	})
}

func (a *API) handleLabelsList(w http.ResponseWriter, r *http.Request) {
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_page")
			return
		}
		page = n
	}

	userID := auth.UserID(r.Context())
	labels, total, err := a.store.ListLabels(r.Context(), userID, page, LabelsPageSize)
	if err != nil {
		a.logger.Error().Err(err).Str("user_id", userID).Msg("list labels failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if err := a.fillSmartCounts(r.Context(), userID, labels); err != nil {
		a.logger.Error().Err(err).Str("user_id", userID).Msg("smart label counts failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"labels":    labels,
		"page":      page,
		"page_size": LabelsPageSize,
		"total":     total,
	})
}

// fillSmartCounts sets TrackCount on the smart labels of a page. Counts come
// from the cache when it covers every label on the page; otherwise all of the
// user's smart labels are evaluated in one batch and cached.
func (a *API) fillSmartCounts(ctx context.Context, userID string, labels []store.LabelSummary) error {
	var smart []int
	for i, l := range labels {
		if l.SmartCriteria != nil {
			smart = append(smart, i)
		}
	}
	if len(smart) == 0 {
		return nil
	}

	counts, ok := a.counts.GetLabelCounts(ctx, userID)
	if ok {
		for _, i := range smart {
			if _, found := counts[labels[i].ID]; !found {
				ok = false
				break
			}
		}
	}
	if !ok {
		rows, err := a.store.FindSmartLabels(ctx, userID)
		if err != nil {
			return err
		}
		batch := make([]smartlabel.SmartLabel, 0, len(rows))
		for _, row := range rows {
			batch = append(batch, smartlabel.SmartLabel{ID: row.ID, Criteria: *row.SmartCriteria})
		}
		counts = a.engine.CountMatches(ctx, userID, batch, nil)
		if err := a.counts.SetLabelCounts(ctx, userID, counts); err != nil {
			a.logger.Debug().Err(err).Str("user_id", userID).Msg("caching label counts failed")
		}
	}

	for _, i := range smart {
		labels[i].TrackCount = counts[labels[i].ID]
	}
	return nil
}

func (a *API) handleLabelsGet(w http.ResponseWriter, r *http.Request) {
	labelID, ok := int64Param(w, r, "labelID")
	if !ok {
		return
	}
	userID := auth.UserID(r.Context())

	label, err := a.store.FindLabel(r.Context(), userID, labelID)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	resp := map[string]any{"id": label.ID, "name": label.Name, "smart_criteria": label.SmartCriteria}
	if label.IsSmart() {
		res, err := a.engine.Evaluate(r.Context(), userID, *label.SmartCriteria, nil)
		switch {
		case err == nil:
			resp["tracks"] = res.Tracks
		case errors.Is(err, criteria.ErrInvalidCriteria):
			resp["tracks"] = []store.TrackSnapshot{}
			resp["criteria_error"] = err.Error()
		default:
			a.writeEvalError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLabelsCreate(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	userID := auth.UserID(r.Context())

	if req.SmartCriteria != nil {
		if err := a.engine.Check(r.Context(), userID, *req.SmartCriteria); err != nil {
			a.writeEvalError(w, r, err)
			return
		}
	}

	label, err := a.store.CreateLabel(r.Context(), userID, store.LabelInput{Name: req.Name, SmartCriteria: req.SmartCriteria})
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	a.invalidate(r.Context(), userID)

	writeJSON(w, http.StatusCreated, store.LabelSummary{ID: label.ID, Name: label.Name, SmartCriteria: label.SmartCriteria})
}

func (a *API) handleLabelsUpdate(w http.ResponseWriter, r *http.Request) {
	labelID, ok := int64Param(w, r, "labelID")
	if !ok {
		return
	}
	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	userID := auth.UserID(r.Context())

	if req.SmartCriteria != nil {
		if err := a.checkOwnCriteria(r.Context(), userID, labelID, *req.SmartCriteria); err != nil {
			a.writeEvalError(w, r, err)
			return
		}
	}

	label, err := a.store.UpdateLabel(r.Context(), userID, labelID, store.LabelInput{Name: req.Name, SmartCriteria: req.SmartCriteria})
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	a.invalidate(r.Context(), userID)

	writeJSON(w, http.StatusOK, store.LabelSummary{ID: label.ID, Name: label.Name, SmartCriteria: label.SmartCriteria})
}

// checkOwnCriteria validates criteria about to be stored on labelID. Once
// saved the label is smart and no longer indexed, so it may not refer to itself.
func (a *API) checkOwnCriteria(ctx context.Context, userID string, labelID int64, input string) error {
	node, err := criteria.ParseString(input)
	if err != nil {
		return err
	}
	for _, ref := range criteria.LabelRefs(node) {
		if ref == labelID {
			return &criteria.UnknownLabelError{LabelID: ref}
		}
	}
	return a.engine.Check(ctx, userID, input)
}

func (a *API) handleLabelsDelete(w http.ResponseWriter, r *http.Request) {
	labelID, ok := int64Param(w, r, "labelID")
	if !ok {
		return
	}
	userID := auth.UserID(r.Context())

	if err := a.store.DeleteLabel(r.Context(), userID, labelID); err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	a.invalidate(r.Context(), userID)

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleTrackLabelAdd(w http.ResponseWriter, r *http.Request) {
	a.changeTrackLabel(w, r, a.store.AddTrackLabel)
}

func (a *API) handleTrackLabelRemove(w http.ResponseWriter, r *http.Request) {
	a.changeTrackLabel(w, r, a.store.RemoveTrackLabel)
}

func (a *API) changeTrackLabel(w http.ResponseWriter, r *http.Request, change func(context.Context, string, int64, int64) error) {
	trackID, ok := int64Param(w, r, "trackID")
	if !ok {
		return
	}
	labelID, ok := int64Param(w, r, "labelID")
	if !ok {
		return
	}
	userID := auth.UserID(r.Context())

	if err := change(r.Context(), userID, trackID, labelID); err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	a.invalidate(r.Context(), userID)

	w.WriteHeader(http.StatusNoContent)
}

type syncPreviewEntry struct {
	LabelID    int64    `json:"label_id"`
	Name       string   `json:"name"`
	SpotifyIDs []string `json:"spotify_ids"`
}

// handleSyncPreview lists the tracks each smart label would push to its
// playlist. Labels whose criteria fail to evaluate get an empty list.
func (a *API) handleSyncPreview(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	rows, err := a.store.FindSmartLabels(r.Context(), userID)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	batch := make([]smartlabel.SmartLabel, 0, len(rows))
	for _, row := range rows {
		batch = append(batch, smartlabel.SmartLabel{ID: row.ID, Criteria: *row.SmartCriteria})
	}
	matches := a.engine.MatchAll(r.Context(), userID, batch, nil)

	out := make([]syncPreviewEntry, 0, len(rows))
	for _, row := range rows {
		tracks := matches[row.ID]
		ids := make([]string, 0, len(tracks))
		for _, t := range tracks {
			ids = append(ids, t.SpotifyID)
		}
		out = append(out, syncPreviewEntry{LabelID: row.ID, Name: row.Name, SpotifyIDs: ids})
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": out})
}

func (a *API) invalidate(ctx context.Context, userID string) {
	if err := a.counts.InvalidateUser(ctx, userID); err != nil {
		a.logger.Warn().Err(err).Str("user_id", userID).Msg("label count invalidation failed")
	}
}

func (a *API) writeEvalError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, criteria.ErrInvalidCriteria) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":   "invalid_criteria",
			"message": err.Error(),
		})
		return
	}
	a.logger.Error().Err(err).Str("user_id", auth.UserID(r.Context())).Msg("criteria evaluation failed")
	writeError(w, http.StatusInternalServerError, "db_error")
}

func (a *API) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrLabelNotFound):
		writeError(w, http.StatusNotFound, "label_not_found")
	case errors.Is(err, store.ErrTrackNotFound):
		writeError(w, http.StatusNotFound, "track_not_found")
	case errors.Is(err, store.ErrSmartLabel):
		writeError(w, http.StatusConflict, "smart_label")
	case errors.Is(err, store.ErrEmptyName):
		writeError(w, http.StatusBadRequest, "name_required")
	default:
		a.logger.Error().Err(err).Str("user_id", auth.UserID(r.Context())).Msg("store operation failed")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
