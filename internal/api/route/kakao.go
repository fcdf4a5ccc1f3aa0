package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sdyoon0928/final-pj3/internal/types"
)

const kakaoDirectionsURL = "https://apis-navi.kakaomobility.com/v1/waypoints/directions"

var _ Provider = (*KakaoProvider)(nil)

// KakaoProvider computes driving routes through the Kakao Mobility waypoint
// directions API.
type KakaoProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func NewKakaoProvider(logger *slog.Logger) *KakaoProvider {
	return &KakaoProvider{
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     os.Getenv("KAKAO_REST_API_KEY"),
		baseURL:    kakaoDirectionsURL,
	}
}

func (p *KakaoProvider) Name() string { return "kakao" }

type kakaoRequest struct {
	Origin      types.RoutePoint   `json:"origin"`
	Destination types.RoutePoint   `json:"destination"`
	Waypoints   []types.RoutePoint `json:"waypoints,omitempty"`
	Priority    string             `json:"priority,omitempty"`
}

type kakaoResponse struct {
	Routes []struct {
		ResultCode int    `json:"result_code"`
		ResultMsg  string `json:"result_msg"`
		Summary    struct {
			Distance int `json:"distance"`
			Duration int `json:"duration"`
		} `json:"summary"`
		Sections []struct {
			Distance int `json:"distance"`
			Duration int `json:"duration"`
			Roads    []struct {
				Name     string    `json:"name"`
				Vertexes []float64 `json:"vertexes"`
			} `json:"roads"`
		} `json:"sections"`
	} `json:"routes"`
}

// ComputeRoute posts the waypoint list and flattens Kakao's road vertex
// arrays into the unified section shape. Vertexes arrive as a flat
// [x1, y1, x2, y2, ...] list.
func (p *KakaoProvider) ComputeRoute(ctx context.Context, req types.RouteRequest) (types.RouteResponse, error) {
	ctx, span := otel.Tracer("KakaoProvider").Start(ctx, "ComputeRoute", trace.WithAttributes(
		attribute.Int("waypoints.count", len(req.Waypoints)),
		attribute.String("priority", req.Priority),
	))
	defer span.End()

	if p.apiKey == "" {
		err := fmt.Errorf("KAKAO_REST_API_KEY environment variable is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return types.RouteResponse{}, err
	}

	body, err := json.Marshal(kakaoRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		Waypoints:   req.Waypoints,
		Priority:    req.Priority,
	})
	if err != nil {
		return types.RouteResponse{}, fmt.Errorf("failed to marshal kakao request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return types.RouteResponse{}, fmt.Errorf("failed to build kakao request: %w", err)
	}
	httpReq.Header.Set("Authorization", "KakaoAK "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return types.RouteResponse{}, fmt.Errorf("kakao directions request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		err := fmt.Errorf("kakao directions returned status %d", httpResp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "non-200 response")
		return types.RouteResponse{}, err
	}

	var decoded kakaoResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return types.RouteResponse{}, fmt.Errorf("failed to decode kakao response: %w", err)
	}

	resp := types.RouteResponse{Provider: p.Name()}
	for _, r := range decoded.Routes {
		if r.ResultCode != 0 {
			p.logger.WarnContext(ctx, "kakao route skipped",
				slog.Int("result_code", r.ResultCode), slog.String("result_msg", r.ResultMsg))
			continue
		}

		route := types.Route{
			Summary: types.RouteSummary{
				Distance: r.Summary.Distance,
				Duration: r.Summary.Duration,
			},
		}
		for _, section := range r.Sections {
			s := types.RouteSection{
				Distance: section.Distance,
				Duration: section.Duration,
			}
			for _, road := range section.Roads {
				if s.Name == "" {
					s.Name = road.Name
				}
				for i := 0; i+1 < len(road.Vertexes); i += 2 {
					s.Path = append(s.Path, types.RoutePoint{
						X: road.Vertexes[i],
						Y: road.Vertexes[i+1],
					})
				}
			}
			route.Sections = append(route.Sections, s)
		}
		resp.Routes = append(resp.Routes, route)
	}

	if len(resp.Routes) == 0 {
		err := fmt.Errorf("kakao returned no usable routes")
		span.SetStatus(codes.Error, "no routes")
		return types.RouteResponse{}, err
	}

	span.SetStatus(codes.Ok, "route computed")
	return resp, nil
}
