package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sdyoon0928/final-pj3/app/observability/metrics"
	"github.com/sdyoon0928/final-pj3/internal/types"
)

// Provider is one route backend. The driving and transit providers both
// normalize into the unified response shape.
type Provider interface {
	Name() string
	ComputeRoute(ctx context.Context, req types.RouteRequest) (types.RouteResponse, error)
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	ComputeRoute(ctx context.Context, req types.RouteRequest) (types.RouteResponse, error)
}

// responseCacheTTL is short on purpose: identical back-to-back requests come
// from map redraws, not from stable state.
const responseCacheTTL = time.Minute

type ServiceImpl struct {
	logger  *slog.Logger
	driving Provider
	transit Provider
	cache   *cache.Cache
}

func NewService(driving, transit Provider, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		driving: driving,
		transit: transit,
		cache:   cache.New(responseCacheTTL, 2*responseCacheTTL),
	}
}

// ComputeRoute validates the request, dispatches by mode and caches the
// normalized response keyed on the whole request.
func (s *ServiceImpl) ComputeRoute(ctx context.Context, req types.RouteRequest) (types.RouteResponse, error) {
	ctx, span := otel.Tracer("RouteService").Start(ctx, "ComputeRoute", trace.WithAttributes(
		attribute.String("mode", req.Mode),
	))
	defer span.End()

	if err := validateRequest(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return types.RouteResponse{}, err
	}
	if req.Priority == "" {
		req.Priority = types.PriorityRecommend
	}

	key, err := cacheKey(req)
	if err == nil {
		if cached, ok := s.cache.Get(key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			span.SetStatus(codes.Ok, "served from cache")
			return cached.(types.RouteResponse), nil
		}
	}

	provider := s.driving
	if req.Mode == types.RouteModeTransit {
		provider = s.transit
	}
	span.SetAttributes(attribute.String("provider", provider.Name()))
	metrics.Get().RouteRequestsTotal.Add(ctx, 1)

	resp, err := provider.ComputeRoute(ctx, req)
	if err != nil {
		metrics.Get().RouteErrorsTotal.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failed")
		return types.RouteResponse{}, fmt.Errorf("%s route computation failed: %w", provider.Name(), err)
	}

	if key != "" {
		s.cache.SetDefault(key, resp)
	}
	span.SetStatus(codes.Ok, "route computed")
	return resp, nil
}

// ErrBadRouteRequest marks validation failures the caller should fix.
var ErrBadRouteRequest = errors.New("invalid route request")

func validateRequest(req types.RouteRequest) error {
	points := append([]types.RoutePoint{req.Origin, req.Destination}, req.Waypoints...)
	for _, p := range points {
		if p.Y < -90 || p.Y > 90 || p.X < -180 || p.X > 180 {
			return fmt.Errorf("%w: point (%f, %f) out of range", ErrBadRouteRequest, p.X, p.Y)
		}
	}

	switch req.Priority {
	case "", types.PriorityRecommend, types.PriorityTime, types.PriorityDistance:
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrBadRouteRequest, req.Priority)
	}
	return nil
}

func cacheKey(req types.RouteRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
