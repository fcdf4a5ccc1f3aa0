package reconcile

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	appMiddleware "github.com/sdyoon0928/final-pj3/app/middleware"
	"github.com/sdyoon0928/final-pj3/internal/api"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	PutHandoff(w http.ResponseWriter, r *http.Request)
	Resolve(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	reconciler *Reconciler
	handoff    *HandoffStore
	logger     *slog.Logger
}

func NewHandler(reconciler *Reconciler, handoff *HandoffStore, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		reconciler: reconciler,
		handoff:    handoff,
		logger:     logger,
	}
}

// PutHandoff stages a raw schedule payload for the next page load of the
// session. The body is stored verbatim; normalization happens at resolve
// time so a malformed handoff simply falls through to the next source.
func (h *HandlerImpl) PutHandoff(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ReconcileHandler").Start(r.Context(), "PutHandoff", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/reconcile/{sessionID}/handoff"),
	))
	defer span.End()

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session id")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "could not read body")
		return
	}
	if !json.Valid(body) {
		api.ErrorResponse(w, r, http.StatusBadRequest, "body must be JSON")
		return
	}

	h.handoff.Put(sessionID.String(), json.RawMessage(body))
	h.logger.DebugContext(ctx, "handoff staged", slog.String("session_id", sessionID.String()))
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]bool{"staged": true})
}

// Resolve runs the source priority for a session and returns the winning
// itinerary plus where it came from. The optional schedule_id query parameter
// feeds the remote lookup step.
func (h *HandlerImpl) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ReconcileHandler").Start(r.Context(), "Resolve", trace.WithAttributes(
		semconv.HTTPRouteKey.String("/reconcile/{sessionID}"),
	))
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

	res := h.reconciler.Resolve(ctx, userID, sessionID, r.URL.Query().Get("schedule_id"))
	api.WriteJSONResponse(w, r, http.StatusOK, res)
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
