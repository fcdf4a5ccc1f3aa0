package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	appMiddleware "github.com/sdyoon0928/final-pj3/app/middleware"
	"github.com/sdyoon0928/final-pj3/internal/api"
	"github.com/sdyoon0928/final-pj3/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	SendMessage(w http.ResponseWriter, r *http.Request)
	ListSessions(w http.ResponseWriter, r *http.Request)
	GetSessionMessages(w http.ResponseWriter, r *http.Request)
	DeleteSession(w http.ResponseWriter, r *http.Request)
	BulkDeleteSessions(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		logger:  logger,
	}
}

// SendMessage is the main chat turn. Anonymous callers get the
// login_required signal in a 200 body because the page reacts to the field,
// not the status code.
func (h *HandlerImpl) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "SendMessage", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/chat"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SendMessage"))

	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.WriteJSONResponse(w, r, http.StatusOK, types.ChatResponse{LoginRequired: true})
		return
	}

	var req types.ChatRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.SendMessage(ctx, userID, req)
	if errors.Is(err, types.ErrSessionNotFound) {
		api.ErrorResponse(w, r, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "chat turn failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to process message")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *HandlerImpl) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "ListSessions")
	defer span.End()

	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.LoginRequiredResponse(w, r)
		return
	}

	sessions, err := h.service.ListSessions(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list sessions", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, sessions)
}

func (h *HandlerImpl) GetSessionMessages(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "GetSessionMessages")
	defer span.End()

	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.LoginRequiredResponse(w, r)
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session id")
		return
	}

	messages, err := h.service.GetSessionMessages(ctx, userID, sessionID)
	if errors.Is(err, types.ErrSessionNotFound) {
		api.ErrorResponse(w, r, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get messages", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to load messages")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, messages)
}

func (h *HandlerImpl) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "DeleteSession")
	defer span.End()

	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.LoginRequiredResponse(w, r)
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session id")
		return
	}

	err = h.service.DeleteSession(ctx, userID, sessionID)
	if errors.Is(err, types.ErrSessionNotFound) {
		api.ErrorResponse(w, r, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to delete session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to delete session")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]bool{"success": true})
}

func (h *HandlerImpl) BulkDeleteSessions(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ChatHandler").Start(r.Context(), "BulkDeleteSessions")
	defer span.End()

	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.LoginRequiredResponse(w, r)
		return
	}

	var req types.BulkDeleteSessionsRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.BulkDeleteSessions(ctx, userID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to bulk delete sessions", slog.Any("error", err))
		api.WriteJSONResponse(w, r, http.StatusBadRequest, resp)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func authenticatedUserID(ctx context.Context) (uuid.UUID, bool) {
	userIDStr, ok := appMiddleware.GetUserIDFromContext(ctx)
	if !ok || userIDStr == "" {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}
