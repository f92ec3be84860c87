package queueapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/scout/internal/pipeline"
)

const defaultQueueLimit = 50

func (a *API) handleListQueue(w http.ResponseWriter, r *http.Request) {
	status := pipeline.Status(r.URL.Query().Get("status"))
	switch status {
	case "", pipeline.StatusPending, pipeline.StatusAccepted, pipeline.StatusDismissed:
	default:
		http.Error(w, `{"error":"unknown status"}`, http.StatusBadRequest)
		return
	}

	limit := defaultQueueLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	items, err := a.svc.Queue(r.Context(), status, limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list queue", "status", status)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*pipeline.ActionItem{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleGetAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("scout.action.id", id))

	item, rec, ok, err := a.svc.GetAction(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get action item", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"item":           item,
		"recommendation": rec,
	})
}

func (a *API) handleTransition(to pipeline.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		span := trace.SpanFromContext(r.Context())
		span.SetAttributes(
			attribute.String("scout.action.id", id),
			attribute.String("scout.action.target_status", string(to)),
		)

		item, err := a.svc.Transition(r.Context(), id, to)
		if err != nil {
			a.writeTransitionError(w, r, id, err)
			return
		}

		writeJSON(w, http.StatusOK, item)
	}
}

type outcomeRequest struct {
	Outcome string `json:"outcome"`
}

func (a *API) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Outcome == "" {
		http.Error(w, `{"error":"outcome is required"}`, http.StatusBadRequest)
		return
	}

	item, err := a.svc.RecordOutcome(r.Context(), id, req.Outcome)
	if err != nil {
		a.writeTransitionError(w, r, id, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (a *API) writeTransitionError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case errors.Is(err, pipeline.ErrIllegalTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		a.logger.Error(r.Context(), err, "failed to update action item", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
