package route

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/sdyoon0928/final-pj3/internal/types"
)

const googleDirectionsURL = "https://maps.googleapis.com/maps/api/directions/json"

const (
	transportTransit = "대중교통"
	transportWalking = "도보"
)

var _ Provider = (*GoogleProvider)(nil)

// GoogleProvider computes transit routes through the Google Directions API.
// Kakao has no transit routing, so TRANSIT mode always lands here.
type GoogleProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func NewGoogleProvider(logger *slog.Logger) *GoogleProvider {
	return &GoogleProvider{
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     os.Getenv("GOOGLE_MAPS_API_KEY"),
		baseURL:    googleDirectionsURL,
	}
}

func (p *GoogleProvider) Name() string { return "google" }

type googleResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
			Steps []struct {
				TravelMode string `json:"travel_mode"`
				Distance   struct {
					Value int `json:"value"`
				} `json:"distance"`
				Duration struct {
					Value int `json:"value"`
				} `json:"duration"`
				Polyline struct {
					Points string `json:"points"`
				} `json:"polyline"`
				TransitDetails *struct {
					Line struct {
						ShortName string `json:"short_name"`
						Name      string `json:"name"`
					} `json:"line"`
				} `json:"transit_details,omitempty"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// ComputeRoute asks for a transit route and maps each step into a tagged
// section: transit steps carry the line name, everything else is a walk.
// Waypoints are not supported in transit mode and are ignored.
func (p *GoogleProvider) ComputeRoute(ctx context.Context, req types.RouteRequest) (types.RouteResponse, error) {
	ctx, span := otel.Tracer("GoogleProvider").Start(ctx, "ComputeRoute")
	defer span.End()

	if p.apiKey == "" {
		err := fmt.Errorf("GOOGLE_MAPS_API_KEY environment variable is not set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "API key not set")
		return types.RouteResponse{}, err
	}

	query := url.Values{}
	query.Set("origin", fmt.Sprintf("%f,%f", req.Origin.Y, req.Origin.X))
	query.Set("destination", fmt.Sprintf("%f,%f", req.Destination.Y, req.Destination.X))
	query.Set("mode", "transit")
	query.Set("language", "ko")
	query.Set("key", p.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return types.RouteResponse{}, fmt.Errorf("failed to build google request: %w", err)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return types.RouteResponse{}, fmt.Errorf("google directions request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var decoded googleResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return types.RouteResponse{}, fmt.Errorf("failed to decode google response: %w", err)
	}
	if decoded.Status != "OK" {
		err := fmt.Errorf("google directions returned status %s", decoded.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, "non-OK status")
		return types.RouteResponse{}, err
	}

	resp := types.RouteResponse{Provider: p.Name()}
	for _, r := range decoded.Routes {
		route := types.Route{}

		if overview, err := decodePolyline(r.OverviewPolyline.Points); err == nil {
			route.OverviewPath = overview
		} else {
			p.logger.WarnContext(ctx, "overview polyline did not decode", slog.Any("error", err))
		}

		for _, leg := range r.Legs {
			route.Summary.Distance += leg.Distance.Value
			route.Summary.Duration += leg.Duration.Value

			for _, step := range leg.Steps {
				section := types.RouteSection{
					Distance:  step.Distance.Value,
					Duration:  step.Duration.Value,
					Transport: transportWalking,
				}
				if step.TravelMode == "TRANSIT" && step.TransitDetails != nil {
					section.Transport = transportTransit
					section.Name = step.TransitDetails.Line.ShortName
					if section.Name == "" {
						section.Name = step.TransitDetails.Line.Name
					}
				}
				if path, err := decodePolyline(step.Polyline.Points); err == nil {
					section.Path = path
				}
				route.Sections = append(route.Sections, section)
			}
		}
		resp.Routes = append(resp.Routes, route)
	}

	if len(resp.Routes) == 0 {
		return types.RouteResponse{}, fmt.Errorf("google returned no routes")
	}

	span.SetStatus(codes.Ok, "route computed")
	return resp, nil
}
