package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ChatTurnsTotal          metric.Int64Counter
	ChatTurnDurationSeconds metric.Float64Histogram

	IngestedPlacesTotal metric.Int64Counter
	DroppedPlacesTotal  metric.Int64Counter

	RouteRequestsTotal metric.Int64Counter
	RouteErrorsTotal   metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, using the
// globally configured MeterProvider. Before a provider is installed the
// instruments are no-ops, which keeps tests free of metric plumbing.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("TripChat")
		var err error
		m := &AppMetrics{}

		m.ChatTurnsTotal, err = meter.Int64Counter(
			"chat_turns_total",
			metric.WithDescription("Total number of completed chat turns"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turns_total: %v", err)
		}

		m.ChatTurnDurationSeconds, err = meter.Float64Histogram(
			"chat_turn_duration_seconds",
			metric.WithDescription("Duration of chat turns in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turn_duration_seconds: %v", err)
		}

		m.IngestedPlacesTotal, err = meter.Int64Counter(
			"schedule_ingested_places_total",
			metric.WithDescription("Total number of places loaded during schedule ingestion"),
			metric.WithUnit("{place}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create schedule_ingested_places_total: %v", err)
		}

		m.DroppedPlacesTotal, err = meter.Int64Counter(
			"schedule_dropped_places_total",
			metric.WithDescription("Total number of places dropped during schedule ingestion"),
			metric.WithUnit("{place}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create schedule_dropped_places_total: %v", err)
		}

		m.RouteRequestsTotal, err = meter.Int64Counter(
			"route_requests_total",
			metric.WithDescription("Total number of route computation requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create route_requests_total: %v", err)
		}

		m.RouteErrorsTotal, err = meter.Int64Counter(
			"route_errors_total",
			metric.WithDescription("Total number of failed route computations"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create route_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global AppMetrics instance, initializing it on first use.
func Get() *AppMetrics {
	if appMetrics == nil {
		InitAppMetrics()
	}
	return appMetrics
}
