// Package reconcile decides which data source populates the itinerary when
// the map page loads: the cross-page handoff slot, the remote schedule
// store, or a fresh default, in that strict order.
package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sdyoon0928/final-pj3/app/observability/metrics"
	"github.com/sdyoon0928/final-pj3/internal/api/itinerary"
	"github.com/sdyoon0928/final-pj3/internal/types"
)

// Source names which step of the resolution won.
type Source string

const (
	SourceHandoff Source = "handoff"
	SourceRemote  Source = "remote"
	SourceDefault Source = "default"
)

// State is the per-page-load resolution progress. Transitions are forward
// only; a failed step is "source unavailable", never a retry.
type State int

const (
	StateUnresolved State = iota
	StateTryHandoff
	StateTryRemote
	StateDefault
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateTryHandoff:
		return "try_handoff"
	case StateTryRemote:
		return "try_remote"
	case StateDefault:
		return "default"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// TemporaryIDPrefix marks schedule ids synthesized client-side for
// not-yet-saved itineraries. They have no remote counterpart, so the remote
// lookup is skipped entirely.
const TemporaryIDPrefix = "temp_"

func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TemporaryIDPrefix)
}

// ScheduleFetcher is the remote store lookup the reconciler consumes.
// Satisfied by the itinerary service.
type ScheduleFetcher interface {
	GetSchedule(ctx context.Context, userID, scheduleID uuid.UUID) (json.RawMessage, error)
}

// SlotWriter persists a successfully resolved itinerary locally. Also
// satisfied by the itinerary service.
type SlotWriter interface {
	PersistLocal(ctx context.Context, sessionID uuid.UUID, it types.Itinerary) error
}

// Resolution is the outcome of one page-load resolution. Loaded is the count
// the surrounding UI reports to the user.
type Resolution struct {
	Itinerary types.Itinerary    `json:"itinerary"`
	Source    Source             `json:"source"`
	Loaded    int                `json:"loaded"`
	Report    types.IngestReport `json:"report"`
}

type Reconciler struct {
	logger  *slog.Logger
	store   *itinerary.Store
	handoff *HandoffStore
	remote  ScheduleFetcher
	slots   SlotWriter
}

func NewReconciler(store *itinerary.Store, handoff *HandoffStore, remote ScheduleFetcher, slots SlotWriter, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		logger:  logger,
		store:   store,
		handoff: handoff,
		remote:  remote,
		slots:   slots,
	}
}

// Resolve walks the source priority for one page load. Parse and network
// failures demote to the next source; the default step cannot fail, so a
// resolution always comes back.
func (r *Reconciler) Resolve(ctx context.Context, userID, sessionID uuid.UUID, scheduleID string) Resolution {
	ctx, span := otel.Tracer("Reconciler").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
		attribute.String("schedule.id", scheduleID),
	))
	defer span.End()

	state := StateUnresolved
	l := r.logger.With(slog.String("session_id", sessionID.String()))

	state = StateTryHandoff
	if raw, ok := r.handoff.Take(sessionID.String()); ok {
		if res, ok := r.ingest(ctx, sessionID, raw, SourceHandoff, l); ok {
			span.SetAttributes(attribute.String("resolution.source", string(SourceHandoff)))
			span.SetStatus(codes.Ok, "resolved from handoff")
			return res
		}
	}
	l.DebugContext(ctx, "handoff source unavailable", slog.String("state", state.String()))

	state = StateTryRemote
	if scheduleID != "" && !IsTemporaryID(scheduleID) {
		if id, err := uuid.Parse(scheduleID); err == nil {
			raw, err := r.remote.GetSchedule(ctx, userID, id)
			if err != nil {
				l.WarnContext(ctx, "remote schedule fetch failed, falling through",
					slog.String("schedule_id", scheduleID), slog.Any("error", err))
			} else if res, ok := r.ingest(ctx, sessionID, raw, SourceRemote, l); ok {
				span.SetAttributes(attribute.String("resolution.source", string(SourceRemote)))
				span.SetStatus(codes.Ok, "resolved from remote")
				return res
			}
		} else {
			l.WarnContext(ctx, "schedule id did not parse, falling through",
				slog.String("schedule_id", scheduleID))
		}
	}
	l.DebugContext(ctx, "remote source unavailable", slog.String("state", state.String()))

	state = StateDefault
	it := types.NewItinerary()
	if err := r.slots.PersistLocal(ctx, sessionID, it); err != nil {
		l.WarnContext(ctx, "failed to persist default itinerary", slog.Any("error", err))
	}
	span.SetAttributes(attribute.String("resolution.source", string(SourceDefault)))
	span.SetStatus(codes.Ok, "resolved to default")
	return Resolution{
		Itinerary: it,
		Source:    SourceDefault,
		Loaded:    0,
		Report:    types.IngestReport{Variant: types.VariantUnrecognized},
	}
}

// ingest normalizes a candidate payload; an unrecognized or undecodable
// payload means the source does not count as resolved.
func (r *Reconciler) ingest(ctx context.Context, sessionID uuid.UUID, raw json.RawMessage, source Source, l *slog.Logger) (Resolution, bool) {
	it, report, err := r.store.Ingest(raw)
	if err != nil {
		l.WarnContext(ctx, "payload did not ingest, falling through",
			slog.String("source", string(source)), slog.Any("error", err))
		return Resolution{}, false
	}

	if err := r.slots.PersistLocal(ctx, sessionID, it); err != nil {
		l.WarnContext(ctx, "failed to persist resolved itinerary", slog.Any("error", err))
	}

	metrics.Get().IngestedPlacesTotal.Add(ctx, int64(report.Loaded))
	metrics.Get().DroppedPlacesTotal.Add(ctx, int64(report.DroppedCount()))
	return Resolution{
		Itinerary: it,
		Source:    source,
		Loaded:    report.Loaded,
		Report:    report,
	}, true
}
