package route

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sdyoon0928/final-pj3/internal/api"
	"github.com/sdyoon0928/final-pj3/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ComputeRoute(w http.ResponseWriter, r *http.Request)
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

// ComputeRoute validates the request shape and hands off to the mode
// dispatch. A provider failure is a 502 because the fault sits upstream.
func (h *HandlerImpl) ComputeRoute(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("RouteHandler").Start(r.Context(), "ComputeRoute", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/routes"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "ComputeRoute"))

	var req types.RouteRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.ComputeRoute(ctx, req)
	if errors.Is(err, ErrBadRouteRequest) {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "route computation failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadGateway, "route provider unavailable")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
