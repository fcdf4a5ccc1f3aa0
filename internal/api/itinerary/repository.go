package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sdyoon0928/final-pj3/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// PGXPool is the pool surface the repository needs. *pgxpool.Pool satisfies
// it in production, pgxmock in tests.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists schedules (the remote store) and per-session slots
// (the local durable slot the canonical itinerary mirrors into).
type Repository interface {
	SaveSchedule(ctx context.Context, userID, sessionID uuid.UUID, title, question string, data json.RawMessage) (uuid.UUID, error)
	GetSchedule(ctx context.Context, userID, scheduleID uuid.UUID) (json.RawMessage, error)
	FindScheduleBySession(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, error)

	UpsertSlot(ctx context.Context, sessionID uuid.UUID, data json.RawMessage) error
	LoadSlot(ctx context.Context, sessionID uuid.UUID) (json.RawMessage, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewRepository(pgpool PGXPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) SaveSchedule(ctx context.Context, userID, sessionID uuid.UUID, title, question string, data json.RawMessage) (uuid.UUID, error) {
	ctx, span := otel.Tracer("ItineraryRepository").Start(ctx, "SaveSchedule", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
	))
	defer span.End()

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
        INSERT INTO schedules (user_id, session_id, title, question, data)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`,
		userID, sessionID, title, question, data).Scan(&id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return uuid.Nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	span.SetStatus(codes.Ok, "schedule saved")
	return id, nil
}

func (r *RepositoryImpl) GetSchedule(ctx context.Context, userID, scheduleID uuid.UUID) (json.RawMessage, error) {
	ctx, span := otel.Tracer("ItineraryRepository").Start(ctx, "GetSchedule")
	defer span.End()

	var data json.RawMessage
	err := r.pgpool.QueryRow(ctx, `
        SELECT data FROM schedules
        WHERE id = $1 AND user_id = $2`,
		scheduleID, userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrScheduleNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, fmt.Errorf("failed to get schedule %s: %w", scheduleID, err)
	}
	return data, nil
}

// FindScheduleBySession returns the most recently saved schedule id for a
// chat session.
func (r *RepositoryImpl) FindScheduleBySession(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, error) {
	ctx, span := otel.Tracer("ItineraryRepository").Start(ctx, "FindScheduleBySession")
	defer span.End()

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
        SELECT id FROM schedules
        WHERE user_id = $1 AND session_id = $2
        ORDER BY created_at DESC
        LIMIT 1`,
		userID, sessionID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, types.ErrScheduleNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return uuid.Nil, fmt.Errorf("failed to find schedule for session %s: %w", sessionID, err)
	}
	return id, nil
}

func (r *RepositoryImpl) UpsertSlot(ctx context.Context, sessionID uuid.UUID, data json.RawMessage) error {
	ctx, span := otel.Tracer("ItineraryRepository").Start(ctx, "UpsertSlot")
	defer span.End()

	_, err := r.pgpool.Exec(ctx, `
        INSERT INTO schedule_slots (session_id, data, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (session_id)
        DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		sessionID, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return fmt.Errorf("failed to upsert slot for session %s: %w", sessionID, err)
	}
	return nil
}

func (r *RepositoryImpl) LoadSlot(ctx context.Context, sessionID uuid.UUID) (json.RawMessage, error) {
	ctx, span := otel.Tracer("ItineraryRepository").Start(ctx, "LoadSlot")
	defer span.End()

	var data json.RawMessage
	err := r.pgpool.QueryRow(ctx, `
        SELECT data FROM schedule_slots
        WHERE session_id = $1`,
		sessionID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrScheduleNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, fmt.Errorf("failed to load slot for session %s: %w", sessionID, err)
	}
	return data, nil
}
