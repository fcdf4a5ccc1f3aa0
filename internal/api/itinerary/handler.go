package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

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
	SaveSchedule(w http.ResponseWriter, r *http.Request)
	GetSchedule(w http.ResponseWriter, r *http.Request)
	FindScheduleBySession(w http.ResponseWriter, r *http.Request)

	GetSlot(w http.ResponseWriter, r *http.Request)
	WatchSlot(w http.ResponseWriter, r *http.Request)
	AddPlace(w http.ResponseWriter, r *http.Request)
	RemovePlace(w http.ResponseWriter, r *http.Request)
	RecategorizeAll(w http.ResponseWriter, r *http.Request)
	ResetSlot(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service      Service
	logger       *slog.Logger
	pollInterval time.Duration
}

func NewHandler(service Service, pollInterval time.Duration, logger *slog.Logger) *HandlerImpl {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &HandlerImpl{
		service:      service,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

type addPlaceRequest struct {
	Day      string         `json:"day"`
	Category types.Category `json:"category"`
	Place    types.Place    `json:"place"`
}

type removePlaceRequest struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

func (h *HandlerImpl) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "SaveSchedule", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/schedules"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SaveSchedule"))

	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.LoginRequiredResponse(w, r)
		return
	}

	var req types.SaveScheduleRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "invalid save request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.SaveSchedule(ctx, userID, req)
	if err != nil {
		l.ErrorContext(ctx, "failed to save schedule", slog.Any("error", err))
		api.WriteJSONResponse(w, r, http.StatusInternalServerError, resp)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *HandlerImpl) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GetSchedule", trace.WithAttributes(
		semconv.HTTPRouteKey.String("/schedules/{scheduleID}"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetSchedule"))

	userID, ok := authenticatedUserID(ctx)
	if !ok {
		api.LoginRequiredResponse(w, r)
		return
	}

	scheduleID, err := uuid.Parse(chi.URLParam(r, "scheduleID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid schedule id")
		return
	}

	data, err := h.service.GetSchedule(ctx, userID, scheduleID)
	if errors.Is(err, types.ErrScheduleNotFound) {
		api.ErrorResponse(w, r, http.StatusNotFound, "schedule not found")
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "failed to get schedule", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to load schedule")
		return
	}

	// The stored payload is returned in whichever legacy variant it was
	// saved; normalization is the caller's ingest step.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *HandlerImpl) FindScheduleBySession(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "FindScheduleBySession")
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

	scheduleID, err := h.service.FindScheduleBySession(ctx, userID, sessionID)
	if errors.Is(err, types.ErrScheduleNotFound) {
		// No match is a 200 with no id; the page shows its own message.
		api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"message": "no schedule matches this session"})
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to find schedule by session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to find schedule")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"schedule_id": scheduleID.String()})
}

func (h *HandlerImpl) GetSlot(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GetSlot")
	defer span.End()

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session id")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, h.service.LoadLocal(ctx, sessionID))
}

// WatchSlot streams the session slot as server-sent events. The client gets
// the current state immediately and a fresh event whenever the persisted slot
// diverges from the last state it was sent, until it disconnects.
func (h *HandlerImpl) WatchSlot(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "WatchSlot")
	defer span.End()

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// WatchSlot calls current and apply from one goroutine, so last needs no
	// locking.
	last := h.service.LoadLocal(ctx, sessionID)
	h.writeSlotEvent(w, flusher, last)

	h.service.WatchSlot(ctx, sessionID, h.pollInterval,
		func() types.Itinerary { return last },
		func(it types.Itinerary) {
			last = it
			h.writeSlotEvent(w, flusher, it)
		})
}

func (h *HandlerImpl) writeSlotEvent(w http.ResponseWriter, flusher http.Flusher, it types.Itinerary) {
	data, err := json.Marshal(it)
	if err != nil {
		h.logger.Error("failed to marshal slot event", slog.Any("error", err))
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (h *HandlerImpl) AddPlace(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "AddPlace")
	defer span.End()

	l := h.logger.With(slog.String("handler", "AddPlace"))

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session id")
		return
	}

	var req addPlaceRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	it, err := h.service.AddPlace(ctx, sessionID, req.Day, req.Category, req.Place)
	switch {
	case errors.Is(err, types.ErrDuplicatePlace):
		// Named condition, not an exception: the page decides the message.
		api.WriteJSONResponse(w, r, http.StatusConflict, map[string]interface{}{
			"success":   false,
			"duplicate": true,
		})
		return
	case errors.Is(err, types.ErrInvalidCoordinate):
		api.ErrorResponse(w, r, http.StatusUnprocessableEntity, "place coordinates failed validation")
		return
	case err != nil:
		l.ErrorContext(ctx, "failed to add place", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to add place")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, it)
}

func (h *HandlerImpl) RemovePlace(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "RemovePlace")
	defer span.End()

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session id")
		return
	}

	var req removePlaceRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, it, err := h.service.RemovePlace(ctx, sessionID, req.Name, req.Lat, req.Lng)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to remove place", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to remove place")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"report":    report,
		"itinerary": it,
	})
}

func (h *HandlerImpl) RecategorizeAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "RecategorizeAll")
	defer span.End()

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session id")
		return
	}

	it, err := h.service.RecategorizeAll(ctx, sessionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to recategorize", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to recategorize")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, it)
}

func (h *HandlerImpl) ResetSlot(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "ResetSlot")
	defer span.End()

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid session id")
		return
	}

	it, err := h.service.Reset(ctx, sessionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to reset slot", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "failed to reset schedule")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, it)
}

// authenticatedUserID pulls the middleware-provided user id out of the
// context and parses it.
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
