// Package queueapi exposes the signal ingestion and action queue
// endpoints over HTTP.
package queueapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/scout/internal/pipeline"
	"github.com/linnemanlabs/scout/internal/signal"
)

// PipelineService defines the business operations queueapi needs.
type PipelineService interface {
	Ingest(ctx context.Context, req *pipeline.IngestRequest) (*pipeline.IngestResult, error)
	GetSignal(ctx context.Context, id string) (*signal.Signal, bool, error)
	Queue(ctx context.Context, status pipeline.Status, limit int) ([]*pipeline.ActionItem, error)
	GetAction(ctx context.Context, id string) (*pipeline.ActionItem, *pipeline.Recommendation, bool, error)
	Transition(ctx context.Context, id string, to pipeline.Status) (*pipeline.ActionItem, error)
	RecordOutcome(ctx context.Context, id string, outcome string) (*pipeline.ActionItem, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    PipelineService
	auth   func(http.Handler) http.Handler
}

// New creates a new API handler. auth, when non-nil, guards the mutating
// queue endpoints; ingestion stays open for webhook callers.
func New(logger log.Logger, svc PipelineService, auth func(http.Handler) http.Handler) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("pipeline service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		auth:   auth,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/signals", a.handleIngestSignal)
		r.Get("/signals/{id}", a.handleGetSignal)
		r.Get("/queue", a.handleListQueue)
		r.Get("/queue/{id}", a.handleGetAction)

		r.Group(func(r chi.Router) {
			if a.auth != nil {
				r.Use(a.auth)
			}
			r.Post("/queue/{id}/accept", a.handleTransition(pipeline.StatusAccepted))
			r.Post("/queue/{id}/dismiss", a.handleTransition(pipeline.StatusDismissed))
			r.Post("/queue/{id}/outcome", a.handleRecordOutcome)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
