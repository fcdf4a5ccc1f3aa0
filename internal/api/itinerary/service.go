package itinerary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sdyoon0928/final-pj3/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the business logic around the canonical itinerary: slot
// load/persist with fail-soft defaults, the mutate-then-persist operations
// and the remote schedule store.
type Service interface {
	SaveSchedule(ctx context.Context, userID uuid.UUID, req types.SaveScheduleRequest) (types.SaveScheduleResponse, error)
	GetSchedule(ctx context.Context, userID, scheduleID uuid.UUID) (json.RawMessage, error)
	FindScheduleBySession(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, error)

	LoadLocal(ctx context.Context, sessionID uuid.UUID) types.Itinerary
	PersistLocal(ctx context.Context, sessionID uuid.UUID, it types.Itinerary) error

	AddPlace(ctx context.Context, sessionID uuid.UUID, day string, category types.Category, place types.Place) (types.Itinerary, error)
	RemovePlace(ctx context.Context, sessionID uuid.UUID, name string, lat, lng float64) (types.RemovalReport, types.Itinerary, error)
	RecategorizeAll(ctx context.Context, sessionID uuid.UUID) (types.Itinerary, error)
	Reset(ctx context.Context, sessionID uuid.UUID) (types.Itinerary, error)

	Diverged(ctx context.Context, sessionID uuid.UUID, current types.Itinerary) (bool, error)
	WatchSlot(ctx context.Context, sessionID uuid.UUID, interval time.Duration, current func() types.Itinerary, apply func(types.Itinerary))
}

type ServiceImpl struct {
	logger *slog.Logger
	store  *Store
	repo   Repository
}

func NewService(store *Store, repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		store:  store,
		repo:   repo,
	}
}

func (s *ServiceImpl) SaveSchedule(ctx context.Context, userID uuid.UUID, req types.SaveScheduleRequest) (types.SaveScheduleResponse, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "SaveSchedule")
	defer span.End()

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return types.SaveScheduleResponse{Success: false, Error: "invalid session id"},
			fmt.Errorf("invalid session id %q: %w", req.SessionID, err)
	}
	if len(req.Data) == 0 {
		return types.SaveScheduleResponse{Success: false, SessionID: req.SessionID, Error: "no schedule data"},
			fmt.Errorf("save schedule: empty data for session %s", sessionID)
	}

	id, err := s.repo.SaveSchedule(ctx, userID, sessionID, req.Title, req.Question, req.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return types.SaveScheduleResponse{Success: false, SessionID: req.SessionID, Error: "failed to save schedule"}, err
	}

	span.SetStatus(codes.Ok, "schedule saved")
	return types.SaveScheduleResponse{Success: true, SessionID: req.SessionID, ID: id.String()}, nil
}

func (s *ServiceImpl) GetSchedule(ctx context.Context, userID, scheduleID uuid.UUID) (json.RawMessage, error) {
	data, err := s.repo.GetSchedule(ctx, userID, scheduleID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get schedule", slog.Any("error", err))
		return nil, err
	}
	return data, nil
}

func (s *ServiceImpl) FindScheduleBySession(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, error) {
	id, err := s.repo.FindScheduleBySession(ctx, userID, sessionID)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// LoadLocal reads the canonical itinerary back from the session slot. An
// absent, corrupt or unreadable slot yields the single-empty-day default;
// the failure is logged, never surfaced.
func (s *ServiceImpl) LoadLocal(ctx context.Context, sessionID uuid.UUID) types.Itinerary {
	raw, err := s.repo.LoadSlot(ctx, sessionID)
	if err != nil {
		s.logger.DebugContext(ctx, "slot unavailable, starting from default",
			slog.String("session_id", sessionID.String()), slog.Any("error", err))
		return types.NewItinerary()
	}

	var it types.Itinerary
	if err := json.Unmarshal(raw, &it); err != nil || len(it) == 0 {
		s.logger.WarnContext(ctx, "slot data corrupt, starting from default",
			slog.String("session_id", sessionID.String()), slog.Any("error", err))
		return types.NewItinerary()
	}

	ensureBuckets(it)
	return it
}

func (s *ServiceImpl) PersistLocal(ctx context.Context, sessionID uuid.UUID, it types.Itinerary) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("failed to marshal itinerary: %w", err)
	}
	return s.repo.UpsertSlot(ctx, sessionID, data)
}

// AddPlace is the read-mutate-persist cycle for a single addition. Duplicate
// adds come back as types.ErrDuplicatePlace with the itinerary untouched.
func (s *ServiceImpl) AddPlace(ctx context.Context, sessionID uuid.UUID, day string, category types.Category, place types.Place) (types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "AddPlace", trace.WithAttributes(
		attribute.String("day", day),
		attribute.String("category", string(category)),
	))
	defer span.End()

	if !s.store.Validator().Validate(place.Name, place.Lat, place.Lng) {
		return nil, types.ErrInvalidCoordinate
	}

	it := s.LoadLocal(ctx, sessionID)
	if err := s.store.AddPlace(it, day, category, place); err != nil {
		return it, err
	}
	if err := s.PersistLocal(ctx, sessionID, it); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return it, err
	}
	return it, nil
}

func (s *ServiceImpl) RemovePlace(ctx context.Context, sessionID uuid.UUID, name string, lat, lng float64) (types.RemovalReport, types.Itinerary, error) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "RemovePlace")
	defer span.End()

	it := s.LoadLocal(ctx, sessionID)
	report := s.store.RemovePlace(it, name, lat, lng)
	if !report.Found {
		return report, it, nil
	}
	if err := s.PersistLocal(ctx, sessionID, it); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return report, it, err
	}
	return report, it, nil
}

func (s *ServiceImpl) RecategorizeAll(ctx context.Context, sessionID uuid.UUID) (types.Itinerary, error) {
	it := s.store.RecategorizeAll(s.LoadLocal(ctx, sessionID))
	if err := s.PersistLocal(ctx, sessionID, it); err != nil {
		return it, err
	}
	return it, nil
}

// Reset clears the session back to a single empty Day1.
func (s *ServiceImpl) Reset(ctx context.Context, sessionID uuid.UUID) (types.Itinerary, error) {
	it := types.NewItinerary()
	if err := s.PersistLocal(ctx, sessionID, it); err != nil {
		return it, err
	}
	return it, nil
}

// Diverged compares the persisted slot against the in-memory itinerary.
// json.Marshal sorts map keys, so byte equality is a stable comparison.
func (s *ServiceImpl) Diverged(ctx context.Context, sessionID uuid.UUID, current types.Itinerary) (bool, error) {
	persisted, err := json.Marshal(s.LoadLocal(ctx, sessionID))
	if err != nil {
		return false, err
	}
	inMemory, err := json.Marshal(current)
	if err != nil {
		return false, err
	}
	return !bytes.Equal(persisted, inMemory), nil
}

// WatchSlot polls the slot on the given interval and hands the persisted
// itinerary to apply whenever it diverges from current(). Ticks are
// independent; a slow apply can overlap the next comparison, which is
// acceptable because the comparison is cheap.
func (s *ServiceImpl) WatchSlot(ctx context.Context, sessionID uuid.UUID, interval time.Duration, current func() types.Itinerary, apply func(types.Itinerary)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			diverged, err := s.Diverged(ctx, sessionID, current())
			if err != nil {
				s.logger.WarnContext(ctx, "divergence check failed", slog.Any("error", err))
				continue
			}
			if diverged {
				apply(s.LoadLocal(ctx, sessionID))
			}
		}
	}
}

// ensureBuckets restores the every-category-present invariant after a slot
// round-trip, where empty categories may have been omitted.
func ensureBuckets(it types.Itinerary) {
	for day, bucket := range it {
		if bucket == nil {
			it[day] = types.NewDayBucket()
			continue
		}
		for _, category := range types.Categories {
			if bucket[category] == nil {
				bucket[category] = []types.Place{}
			}
		}
	}
}
