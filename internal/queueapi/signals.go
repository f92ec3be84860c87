package queueapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/scout/internal/pipeline"
	"github.com/linnemanlabs/scout/internal/signal"
)

type ingestRequest struct {
	Source    string         `json:"source"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	SourceID  string         `json:"source_id"`
	SkipDedup bool           `json:"skip_dedup"`
}

type ingestResponse struct {
	SignalID    string `json:"signal_id"`
	Duplicate   bool   `json:"duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

func (a *API) handleIngestSignal(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("scout.signal.source", req.Source),
		attribute.String("scout.signal.event_type", req.EventType),
	)

	res, err := a.svc.Ingest(r.Context(), &pipeline.IngestRequest{
		Source:    signal.Source(req.Source),
		EventType: req.EventType,
		Payload:   req.Payload,
		SourceID:  req.SourceID,
		SkipDedup: req.SkipDedup,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidIngest) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		a.logger.Error(r.Context(), err, "failed to ingest signal",
			"source", req.Source,
			"event_type", req.EventType,
		)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.Bool("scout.signal.duplicate", res.Duplicate))

	writeJSON(w, http.StatusAccepted, ingestResponse{
		SignalID:    res.Signal.ID,
		Duplicate:   res.Duplicate,
		DuplicateOf: res.DuplicateOf,
	})
}

func (a *API) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("scout.signal.id", id))

	sig, ok, err := a.svc.GetSignal(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get signal", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, sig)
}
