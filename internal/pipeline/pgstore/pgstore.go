// Package pgstore provides a PostgreSQL implementation of pipeline.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/scout/internal/pipeline"
	"github.com/linnemanlabs/scout/internal/signal"
)

var tracer = otel.Tracer("github.com/linnemanlabs/scout/internal/pipeline/pgstore")

//go:embed schema.sql
var schema string

// Store persists pipeline state in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const signalColumns = `id, source, event_type, payload, payload_hash, source_id,
	created_at, processed_at, recommendation_id`

const actionColumns = `id, action_type, action_context, priority_score, status, owner,
	due_by, recommendation_id, created_at, updated_at, executed_at, outcome`

// InsertSignal persists a signal; the unique (source, payload_hash,
// dedup_bucket) index makes the check-then-insert race-free. On conflict
// the existing row is returned with created=false.
func (s *Store) InsertSignal(ctx context.Context, sig *signal.Signal, bucket int64) (*signal.Signal, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.InsertSignal", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	payloadJSON, err := json.Marshal(sig.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("marshal payload: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO signals (id, source, event_type, payload, payload_hash, dedup_bucket, source_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (source, payload_hash, dedup_bucket) DO NOTHING`,
		sig.ID, string(sig.Source), sig.EventType, payloadJSON, sig.PayloadHash, bucket, sig.SourceID, sig.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("insert signal: %w", err)
	}

	if tag.RowsAffected() == 1 {
		cp := *sig
		return &cp, true, nil
	}

	// lost the insert race (or a plain duplicate): fetch the winner
	query := `SELECT ` + signalColumns + ` FROM signals
		WHERE source = $1 AND payload_hash = $2 AND dedup_bucket = $3`
	existing, err := s.scanSignalRow(s.pool.QueryRow(ctx, query, string(sig.Source), sig.PayloadHash, bucket))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("signal conflict row vanished for hash %s", sig.PayloadHash)
	}
	return existing, false, nil
}

// GetSignal retrieves a signal by ID.
func (s *Store) GetSignal(ctx context.Context, id string) (*signal.Signal, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetSignal", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`
	sig, err := s.scanSignalRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if sig == nil {
		return nil, false, nil
	}
	return sig, true, nil
}

// ListUnprocessed returns unprocessed signals created at or before
// olderThan, oldest first.
func (s *Store) ListUnprocessed(ctx context.Context, olderThan time.Time, limit int) ([]*signal.Signal, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListUnprocessed", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + signalColumns + ` FROM signals
		WHERE processed_at IS NULL AND created_at <= $1
		ORDER BY created_at, id
		LIMIT $2`
	rows, err := s.pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query unprocessed: %w", err)
	}
	defer rows.Close()

	var out []*signal.Signal
	for rows.Next() {
		sig, err := s.scanSignalRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unprocessed: %w", err)
	}
	return out, nil
}

// MarkProcessed claims processed_at with a compare-and-set on NULL.
func (s *Store) MarkProcessed(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.MarkProcessed", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL`,
		id, at,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteSignal claims the signal and writes the recommendation and
// action item in one transaction. A lost claim rolls back and returns
// (false, nil) with nothing written.
func (s *Store) CompleteSignal(ctx context.Context, id string, at time.Time, rec *pipeline.Recommendation, item *pipeline.ActionItem) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.CompleteSignal", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	tag, err := tx.Exec(ctx,
		`UPDATE signals SET processed_at = $2, recommendation_id = $3
		 WHERE id = $1 AND processed_at IS NULL`,
		id, at, rec.ID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("claim signal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := insertRecommendation(ctx, tx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	if err := insertActionItem(ctx, tx, item); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// GetAction retrieves an action item by ID.
func (s *Store) GetAction(ctx context.Context, id string) (*pipeline.ActionItem, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetAction", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + actionColumns + ` FROM action_items WHERE id = $1`
	item, err := s.scanActionRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if item == nil {
		return nil, false, nil
	}
	return item, true, nil
}

// ListActions returns action items in queue order: priority descending,
// then earliest due date, then earliest creation, then ID.
func (s *Store) ListActions(ctx context.Context, status pipeline.Status, limit int) ([]*pipeline.ActionItem, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListActions", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + actionColumns + ` FROM action_items`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY priority_score DESC, due_by, created_at, id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []*pipeline.ActionItem
	for rows.Next() {
		item, err := s.scanActionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return out, nil
}

// TransitionAction moves a pending item with a compare-and-set on status.
// A repeat of an already-applied transition is an idempotent no-op.
func (s *Store) TransitionAction(ctx context.Context, id string, to pipeline.Status, at time.Time) (*pipeline.ActionItem, error) {
	ctx, span := tracer.Start(ctx, "pgstore.TransitionAction", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	query := `UPDATE action_items SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + actionColumns
	item, err := s.scanActionRow(s.pool.QueryRow(ctx, query, id, string(to), at))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if item != nil {
		return item, nil
	}

	// nothing was pending: distinguish idempotent repeat from violation
	current, ok, err := s.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("action %s: %w", id, pipeline.ErrNotFound)
	}
	if current.Status == to {
		return current, nil
	}
	return nil, fmt.Errorf("action %s is %s: %w", id, current.Status, pipeline.ErrIllegalTransition)
}

// RecordOutcome stores the execution result of an accepted item.
func (s *Store) RecordOutcome(ctx context.Context, id string, outcome string, at time.Time) (*pipeline.ActionItem, error) {
	ctx, span := tracer.Start(ctx, "pgstore.RecordOutcome", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	query := `UPDATE action_items SET executed_at = $2, outcome = $3, updated_at = $2
		WHERE id = $1 AND status = 'accepted'
		RETURNING ` + actionColumns
	item, err := s.scanActionRow(s.pool.QueryRow(ctx, query, id, at, outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if item != nil {
		return item, nil
	}

	current, ok, err := s.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("action %s: %w", id, pipeline.ErrNotFound)
	}
	return nil, fmt.Errorf("action %s is %s: %w", id, current.Status, pipeline.ErrIllegalTransition)
}

// GetRecommendation retrieves a recommendation by ID.
func (s *Store) GetRecommendation(ctx context.Context, id string) (*pipeline.Recommendation, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetRecommendation", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var (
		rec          pipeline.Recommendation
		metadataJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, score, reasoning, revenue_score, urgency_score, effort_score, strategic_score, metadata, generated_at
		 FROM recommendations WHERE id = $1`, id,
	).Scan(
		&rec.ID, &rec.Score, &rec.Reasoning,
		&rec.Components.Revenue, &rec.Components.Urgency, &rec.Components.Effort, &rec.Components.Strategic,
		&metadataJSON, &rec.GeneratedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("scan recommendation: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, false, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &rec, true, nil
}

func insertRecommendation(ctx context.Context, tx pgx.Tx, rec *pipeline.Recommendation) error {
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO recommendations (id, score, reasoning, revenue_score, urgency_score, effort_score, strategic_score, metadata, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Score, rec.Reasoning,
		rec.Components.Revenue, rec.Components.Urgency, rec.Components.Effort, rec.Components.Strategic,
		metadataJSON, rec.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

func insertActionItem(ctx context.Context, tx pgx.Tx, item *pipeline.ActionItem) error {
	contextJSON, err := json.Marshal(item.ActionContext)
	if err != nil {
		return fmt.Errorf("marshal action context: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO action_items (id, action_type, action_context, priority_score, status, owner, due_by, recommendation_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.ActionType, contextJSON, item.PriorityScore, string(item.Status),
		item.Owner, item.DueBy, item.RecommendationID, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action item: %w", err)
	}
	return nil
}

// scanSignalRow scans a single signal row. Returns (nil, nil) when no row
// is found.
func (s *Store) scanSignalRow(row pgx.Row) (*signal.Signal, error) {
	var (
		sig         signal.Signal
		source      string
		payloadJSON []byte
		recID       *string
	)
	err := row.Scan(
		&sig.ID, &source, &sig.EventType, &payloadJSON, &sig.PayloadHash, &sig.SourceID,
		&sig.CreatedAt, &sig.ProcessedAt, &recID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan signal: %w", err)
	}

	sig.Source = signal.Source(source)
	if recID != nil {
		sig.RecommendationID = *recID
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &sig.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &sig, nil
}

// scanActionRow scans a single action item row. Returns (nil, nil) when
// no row is found.
func (s *Store) scanActionRow(row pgx.Row) (*pipeline.ActionItem, error) {
	var (
		item        pipeline.ActionItem
		status      string
		contextJSON []byte
	)
	err := row.Scan(
		&item.ID, &item.ActionType, &contextJSON, &item.PriorityScore, &status, &item.Owner,
		&item.DueBy, &item.RecommendationID, &item.CreatedAt, &item.UpdatedAt, &item.ExecutedAt, &item.Outcome,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan action item: %w", err)
	}

	item.Status = pipeline.Status(status)
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &item.ActionContext); err != nil {
			return nil, fmt.Errorf("unmarshal action context: %w", err)
		}
	}
	return &item, nil
}
