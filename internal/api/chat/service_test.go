package chat

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sdyoon0928/final-pj3/internal/api/geo"
	"github.com/sdyoon0928/final-pj3/internal/types"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateSession(ctx context.Context, userID uuid.UUID, title string) (types.ChatSession, error) {
	args := m.Called(ctx, userID, title)
	return args.Get(0).(types.ChatSession), args.Error(1)
}

func (m *MockRepository) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (types.ChatSession, error) {
	args := m.Called(ctx, userID, sessionID)
	return args.Get(0).(types.ChatSession), args.Error(1)
}

func (m *MockRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]types.ChatSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ChatSession), args.Error(1)
}

func (m *MockRepository) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	args := m.Called(ctx, userID, sessionID)
	return args.Error(0)
}

func (m *MockRepository) DeleteSessions(ctx context.Context, userID uuid.UUID, sessionIDs []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, userID, sessionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockRepository) SaveMessage(ctx context.Context, sessionID uuid.UUID, role types.MessageRole, content string) (types.ChatMessage, error) {
	args := m.Called(ctx, sessionID, role, content)
	return args.Get(0).(types.ChatMessage), args.Error(1)
}

func (m *MockRepository) GetSessionMessages(ctx context.Context, sessionID uuid.UUID) ([]types.ChatMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ChatMessage), args.Error(1)
}

type MockAIGenerator struct {
	mock.Mock
}

func (m *MockAIGenerator) GenerateReply(ctx context.Context, history []types.ChatMessage, message string) (string, error) {
	args := m.Called(ctx, history, message)
	return args.String(0), args.Error(1)
}

func newTestService(repo Repository, ai AIGenerator) *ServiceImpl {
	logger := slog.New(slog.DiscardHandler)
	return NewService(repo, ai, geo.New(logger), logger)
}

const replyWithPlaces = `서울 여행이라면 경복궁과 광장시장을 추천해요!

` + "```json" + `
{"places": [
  {"name": "경복궁", "address": "서울 종로구", "lat": 37.5796, "lng": 126.9770},
  {"name": "광장시장", "address": "서울 종로구", "lat": 37.5700, "lng": 126.9996},
  {"name": "도쿄타워", "address": "일본 도쿄", "lat": 35.6586, "lng": 139.7454}
]}
` + "```"

func TestSendMessageNewSession(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	session := types.ChatSession{ID: uuid.New(), UserID: userID, Title: "서울 2박 3일 일정 짜줘"}

	repo := new(MockRepository)
	repo.On("CreateSession", mock.Anything, userID, "서울 2박 3일 일정 짜줘").Return(session, nil)
	repo.On("GetSessionMessages", mock.Anything, session.ID).Return([]types.ChatMessage{}, nil)
	repo.On("SaveMessage", mock.Anything, session.ID, types.RoleUser, "서울 2박 3일 일정 짜줘").
		Return(types.ChatMessage{}, nil)
	repo.On("SaveMessage", mock.Anything, session.ID, types.RoleAssistant, replyWithPlaces).
		Return(types.ChatMessage{}, nil)

	ai := new(MockAIGenerator)
	ai.On("GenerateReply", mock.Anything, mock.Anything, "서울 2박 3일 일정 짜줘").
		Return(replyWithPlaces, nil)

	svc := newTestService(repo, ai)
	resp, err := svc.SendMessage(ctx, userID, types.ChatRequest{Message: "서울 2박 3일 일정 짜줘"})
	require.NoError(t, err)

	assert.Equal(t, session.ID.String(), resp.SessionID)
	assert.True(t, resp.SaveButtonEnabled)
	// 도쿄타워 sits outside the service area and must be filtered out.
	require.Len(t, resp.Places, 2)
	assert.Equal(t, "경복궁", resp.Places[0].Name)
	assert.NotContains(t, resp.Reply, "```json", "machine block must be stripped from the visible reply")
	repo.AssertExpectations(t)
	ai.AssertExpectations(t)
}

func TestSendMessageExistingSession(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	session := types.ChatSession{ID: uuid.New(), UserID: userID}
	history := []types.ChatMessage{
		{SessionID: session.ID, Role: types.RoleUser, Content: "부산 맛집 알려줘"},
		{SessionID: session.ID, Role: types.RoleAssistant, Content: "돼지국밥 골목을 추천해요"},
	}

	repo := new(MockRepository)
	repo.On("GetSession", mock.Anything, userID, session.ID).Return(session, nil)
	repo.On("GetSessionMessages", mock.Anything, session.ID).Return(history, nil)
	repo.On("SaveMessage", mock.Anything, session.ID, types.RoleUser, "고마워").
		Return(types.ChatMessage{}, nil)
	repo.On("SaveMessage", mock.Anything, session.ID, types.RoleAssistant, "좋은 여행 되세요!").
		Return(types.ChatMessage{}, nil)

	ai := new(MockAIGenerator)
	ai.On("GenerateReply", mock.Anything, history, "고마워").Return("좋은 여행 되세요!", nil)

	svc := newTestService(repo, ai)
	resp, err := svc.SendMessage(ctx, userID, types.ChatRequest{
		Message:   "고마워",
		SessionID: session.ID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, "좋은 여행 되세요!", resp.Reply)
	assert.Empty(t, resp.Places)
	assert.False(t, resp.SaveButtonEnabled)
	ai.AssertExpectations(t)
}

func TestSendMessageUnknownSession(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()

	repo := new(MockRepository)
	repo.On("GetSession", mock.Anything, userID, sessionID).
		Return(types.ChatSession{}, types.ErrSessionNotFound)

	svc := newTestService(repo, new(MockAIGenerator))
	_, err := svc.SendMessage(context.Background(), userID, types.ChatRequest{
		Message:   "안녕",
		SessionID: sessionID.String(),
	})
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestSendMessageEmptyMessage(t *testing.T) {
	svc := newTestService(new(MockRepository), new(MockAIGenerator))
	_, err := svc.SendMessage(context.Background(), uuid.New(), types.ChatRequest{Message: "   "})
	assert.Error(t, err)
}

func TestBulkDeleteSessions(t *testing.T) {
	userID := uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	repo := new(MockRepository)
	// One id belongs to someone else and is skipped.
	repo.On("DeleteSessions", mock.Anything, userID, ids).Return(ids[:2], nil)

	svc := newTestService(repo, new(MockAIGenerator))
	resp, err := svc.BulkDeleteSessions(context.Background(), userID, types.BulkDeleteSessionsRequest{SessionIDs: ids})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.DeletedCount)
	assert.Equal(t, ids[:2], resp.DeletedIDs)
}

func TestBulkDeleteSessionsEmpty(t *testing.T) {
	svc := newTestService(new(MockRepository), new(MockAIGenerator))
	resp, err := svc.BulkDeleteSessions(context.Background(), uuid.New(), types.BulkDeleteSessionsRequest{})
	assert.Error(t, err)
	assert.False(t, resp.Success)
}

func TestYoutubeEmbed(t *testing.T) {
	html := youtubeEmbed("브이로그도 참고하세요 https://www.youtube.com/watch?v=abc123XYZ_- 재밌어요")
	assert.Contains(t, html, "https://www.youtube.com/embed/abc123XYZ_-")

	assert.Empty(t, youtubeEmbed("링크 없는 답변"))
}

func TestSessionTitleTruncation(t *testing.T) {
	long := "제주도에서 3박 4일 동안 아이들과 함께 갈 만한 곳을 추천해 주세요 정말 부탁드립니다"
	title := sessionTitle(long)
	assert.LessOrEqual(t, len([]rune(title)), 33)
	assert.Contains(t, title, "...")

	assert.Equal(t, "짧은 제목", sessionTitle("짧은 제목"))
}
