package chat

import (
	"context"
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

// Repository persists chat sessions and their message history.
type Repository interface {
	CreateSession(ctx context.Context, userID uuid.UUID, title string) (types.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (types.ChatSession, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]types.ChatSession, error)
	DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error
	DeleteSessions(ctx context.Context, userID uuid.UUID, sessionIDs []uuid.UUID) ([]uuid.UUID, error)

	SaveMessage(ctx context.Context, sessionID uuid.UUID, role types.MessageRole, content string) (types.ChatMessage, error)
	GetSessionMessages(ctx context.Context, sessionID uuid.UUID) ([]types.ChatMessage, error)
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

func (r *RepositoryImpl) CreateSession(ctx context.Context, userID uuid.UUID, title string) (types.ChatSession, error) {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "CreateSession", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	var session types.ChatSession
	err := r.pgpool.QueryRow(ctx, `
        INSERT INTO chat_sessions (user_id, title)
        VALUES ($1, $2)
        RETURNING id, user_id, title, created_at, updated_at`,
		userID, title).Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return types.ChatSession{}, fmt.Errorf("failed to create chat session: %w", err)
	}

	span.SetStatus(codes.Ok, "session created")
	return session, nil
}

func (r *RepositoryImpl) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (types.ChatSession, error) {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "GetSession")
	defer span.End()

	var session types.ChatSession
	err := r.pgpool.QueryRow(ctx, `
        SELECT id, user_id, title, created_at, updated_at FROM chat_sessions
        WHERE id = $1 AND user_id = $2`,
		sessionID, userID).Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ChatSession{}, types.ErrSessionNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return types.ChatSession{}, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return session, nil
}

func (r *RepositoryImpl) ListSessions(ctx context.Context, userID uuid.UUID) ([]types.ChatSession, error) {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "ListSessions")
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
        SELECT id, user_id, title, created_at, updated_at FROM chat_sessions
        WHERE user_id = $1
        ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []types.ChatSession
	for rows.Next() {
		var s types.ChatSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *RepositoryImpl) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "DeleteSession", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
        DELETE FROM chat_sessions
        WHERE id = $1 AND user_id = $2`,
		sessionID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrSessionNotFound
	}
	return nil
}

// DeleteSessions removes several sessions at once and reports which ids were
// actually deleted. Ids belonging to other users are silently skipped.
func (r *RepositoryImpl) DeleteSessions(ctx context.Context, userID uuid.UUID, sessionIDs []uuid.UUID) ([]uuid.UUID, error) {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "DeleteSessions", trace.WithAttributes(
		attribute.Int("session.count", len(sessionIDs)),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
        DELETE FROM chat_sessions
        WHERE user_id = $1 AND id = ANY($2)
        RETURNING id`,
		userID, sessionIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk delete failed")
		return nil, fmt.Errorf("failed to bulk delete sessions: %w", err)
	}
	defer rows.Close()

	var deleted []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return deleted, fmt.Errorf("failed to scan deleted id: %w", err)
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

func (r *RepositoryImpl) SaveMessage(ctx context.Context, sessionID uuid.UUID, role types.MessageRole, content string) (types.ChatMessage, error) {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "SaveMessage", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
		attribute.String("role", string(role)),
	))
	defer span.End()

	var msg types.ChatMessage
	err := r.pgpool.QueryRow(ctx, `
        INSERT INTO chat_messages (session_id, role, content)
        VALUES ($1, $2, $3)
        RETURNING id, session_id, role, content, created_at`,
		sessionID, role, content).Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return types.ChatMessage{}, fmt.Errorf("failed to save message: %w", err)
	}

	// Keep the session sorted to the top of the sidebar.
	if _, err := r.pgpool.Exec(ctx, `
        UPDATE chat_sessions SET updated_at = now()
        WHERE id = $1`,
		sessionID); err != nil {
		r.logger.WarnContext(ctx, "failed to touch session", slog.Any("error", err))
	}
	return msg, nil
}

func (r *RepositoryImpl) GetSessionMessages(ctx context.Context, sessionID uuid.UUID) ([]types.ChatMessage, error) {
	ctx, span := otel.Tracer("ChatRepository").Start(ctx, "GetSessionMessages")
	defer span.End()

	rows, err := r.pgpool.Query(ctx, `
        SELECT id, session_id, role, content, created_at FROM chat_messages
        WHERE session_id = $1
        ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, fmt.Errorf("failed to get messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var messages []types.ChatMessage
	for rows.Next() {
		var m types.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
