package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sdyoon0928/final-pj3/app/observability/metrics"
	"github.com/sdyoon0928/final-pj3/internal/api/geo"
	"github.com/sdyoon0928/final-pj3/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service runs one chat turn end to end: session bookkeeping, the model
// call, and extraction of the signals the page reacts to.
type Service interface {
	SendMessage(ctx context.Context, userID uuid.UUID, req types.ChatRequest) (types.ChatResponse, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]types.ChatSession, error)
	GetSessionMessages(ctx context.Context, userID, sessionID uuid.UUID) ([]types.ChatMessage, error)
	DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error
	BulkDeleteSessions(ctx context.Context, userID uuid.UUID, req types.BulkDeleteSessionsRequest) (types.BulkDeleteSessionsResponse, error)
}

type ServiceImpl struct {
	logger    *slog.Logger
	repo      Repository
	ai        AIGenerator
	validator *geo.Validator
}

func NewService(repo Repository, ai AIGenerator, validator *geo.Validator, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		ai:        ai,
		validator: validator,
	}
}

// placeBlockRe matches the machine-readable place block the system
// instruction asks the model to append.
var placeBlockRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// youtubeRe matches watch and short-form youtube links in the reply text.
var youtubeRe = regexp.MustCompile(`https?://(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/)([A-Za-z0-9_-]{6,})`)

// scheduleMarkers are the phrases that indicate the reply carries a full
// itinerary worth saving.
var scheduleMarkers = []string{"일정", "스케줄", "여행 계획", "Day1", "1일차"}

// SendMessage appends one user turn to the session, asks the model, stores
// the assistant turn, and derives the page signals from the reply. A missing
// session id starts a new session titled from the message.
func (s *ServiceImpl) SendMessage(ctx context.Context, userID uuid.UUID, req types.ChatRequest) (types.ChatResponse, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "SendMessage")
	defer span.End()
	start := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return types.ChatResponse{}, fmt.Errorf("empty message")
	}

	session, err := s.resolveSession(ctx, userID, req.SessionID, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session resolution failed")
		return types.ChatResponse{}, err
	}
	span.SetAttributes(attribute.String("session.id", session.ID.String()))

	history, err := s.repo.GetSessionMessages(ctx, session.ID)
	if err != nil {
		return types.ChatResponse{}, err
	}

	if _, err := s.repo.SaveMessage(ctx, session.ID, types.RoleUser, message); err != nil {
		return types.ChatResponse{}, err
	}

	reply, err := s.ai.GenerateReply(ctx, history, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		return types.ChatResponse{}, fmt.Errorf("failed to generate reply: %w", err)
	}

	if _, err := s.repo.SaveMessage(ctx, session.ID, types.RoleAssistant, reply); err != nil {
		s.logger.ErrorContext(ctx, "failed to store assistant reply", slog.Any("error", err))
	}

	places := s.extractPlaces(ctx, reply)
	resp := types.ChatResponse{
		Reply:             stripPlaceBlock(reply),
		YtHTML:            youtubeEmbed(reply),
		Places:            places,
		SaveButtonEnabled: len(places) > 0 || hasScheduleMarker(reply),
		SessionID:         session.ID.String(),
	}

	metrics.Get().ChatTurnsTotal.Add(ctx, 1)
	metrics.Get().ChatTurnDurationSeconds.Record(ctx, time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "chat turn completed")
	return resp, nil
}

func (s *ServiceImpl) ListSessions(ctx context.Context, userID uuid.UUID) ([]types.ChatSession, error) {
	return s.repo.ListSessions(ctx, userID)
}

func (s *ServiceImpl) GetSessionMessages(ctx context.Context, userID, sessionID uuid.UUID) ([]types.ChatMessage, error) {
	// Ownership check before handing history out.
	if _, err := s.repo.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.repo.GetSessionMessages(ctx, sessionID)
}

func (s *ServiceImpl) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.repo.DeleteSession(ctx, userID, sessionID)
}

func (s *ServiceImpl) BulkDeleteSessions(ctx context.Context, userID uuid.UUID, req types.BulkDeleteSessionsRequest) (types.BulkDeleteSessionsResponse, error) {
	ctx, span := otel.Tracer("ChatService").Start(ctx, "BulkDeleteSessions")
	defer span.End()

	if len(req.SessionIDs) == 0 {
		return types.BulkDeleteSessionsResponse{Success: false, Error: "no session ids given"}, fmt.Errorf("bulk delete: empty id list")
	}

	deleted, err := s.repo.DeleteSessions(ctx, userID, req.SessionIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk delete failed")
		return types.BulkDeleteSessionsResponse{Success: false, Error: "failed to delete sessions"}, err
	}

	return types.BulkDeleteSessionsResponse{
		Success:      true,
		Message:      fmt.Sprintf("%d개의 채팅이 삭제되었습니다", len(deleted)),
		DeletedCount: len(deleted),
		DeletedIDs:   deleted,
	}, nil
}

func (s *ServiceImpl) resolveSession(ctx context.Context, userID uuid.UUID, sessionID, message string) (types.ChatSession, error) {
	if sessionID == "" {
		return s.repo.CreateSession(ctx, userID, sessionTitle(message))
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return types.ChatSession{}, fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	return s.repo.GetSession(ctx, userID, id)
}

// extractPlaces decodes the appended place block and vets each entry through
// the coordinate validator. A reply without a block is an empty list, not an
// error.
func (s *ServiceImpl) extractPlaces(ctx context.Context, reply string) []types.Place {
	match := placeBlockRe.FindStringSubmatch(reply)
	if match == nil {
		return nil
	}

	var payload types.FlatListPayload
	if err := json.Unmarshal([]byte(match[1]), &payload); err != nil {
		s.logger.WarnContext(ctx, "place block did not decode", slog.Any("error", err))
		return nil
	}

	var places []types.Place
	for _, raw := range payload.Places {
		lat, lng := float64(raw.Lat), float64(raw.Lng)
		if !s.validator.Validate(raw.Name, lat, lng) {
			continue
		}
		places = append(places, types.Place{
			Name:    raw.Name,
			Address: raw.Address,
			Lat:     lat,
			Lng:     lng,
		})
	}
	return places
}

// stripPlaceBlock removes the machine block so the visible reply stays prose.
func stripPlaceBlock(reply string) string {
	return strings.TrimSpace(placeBlockRe.ReplaceAllString(reply, ""))
}

// youtubeEmbed turns the first youtube link in the reply into embeddable
// iframe markup, or returns empty when there is none.
func youtubeEmbed(reply string) string {
	match := youtubeRe.FindStringSubmatch(reply)
	if match == nil {
		return ""
	}
	return fmt.Sprintf(
		`<iframe width="560" height="315" src="https://www.youtube.com/embed/%s" frameborder="0" allowfullscreen></iframe>`,
		match[1])
}

func hasScheduleMarker(reply string) bool {
	for _, marker := range scheduleMarkers {
		if strings.Contains(reply, marker) {
			return true
		}
	}
	return false
}

// sessionTitle derives a sidebar title from the first message.
func sessionTitle(message string) string {
	runes := []rune(message)
	if len(runes) > 30 {
		return string(runes[:30]) + "..."
	}
	return message
}
