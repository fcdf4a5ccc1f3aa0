package itinerary

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

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

func (m *MockRepository) SaveSchedule(ctx context.Context, userID, sessionID uuid.UUID, title, question string, data json.RawMessage) (uuid.UUID, error) {
	args := m.Called(ctx, userID, sessionID, title, question, data)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockRepository) GetSchedule(ctx context.Context, userID, scheduleID uuid.UUID) (json.RawMessage, error) {
	args := m.Called(ctx, userID, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockRepository) FindScheduleBySession(ctx context.Context, userID, sessionID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, userID, sessionID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockRepository) UpsertSlot(ctx context.Context, sessionID uuid.UUID, data json.RawMessage) error {
	args := m.Called(ctx, sessionID, data)
	return args.Error(0)
}

func (m *MockRepository) LoadSlot(ctx context.Context, sessionID uuid.UUID) (json.RawMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func newServiceWithMock(t *testing.T) (*ServiceImpl, *MockRepository) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	repo := new(MockRepository)
	return NewService(NewStore(geo.New(logger), logger), repo, logger), repo
}

func TestSaveScheduleService(t *testing.T) {
	svc, repo := newServiceWithMock(t)

	userID := uuid.New()
	sessionID := uuid.New()
	scheduleID := uuid.New()
	data := json.RawMessage(`{"places": []}`)

	repo.On("SaveSchedule", mock.Anything, userID, sessionID, "부산 여행", "", data).
		Return(scheduleID, nil)

	resp, err := svc.SaveSchedule(context.Background(), userID, types.SaveScheduleRequest{
		Title:     "부산 여행",
		Data:      data,
		SessionID: sessionID.String(),
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, scheduleID.String(), resp.ID)
	repo.AssertExpectations(t)
}

func TestSaveScheduleRejectsEmptyData(t *testing.T) {
	svc, repo := newServiceWithMock(t)

	resp, err := svc.SaveSchedule(context.Background(), uuid.New(), types.SaveScheduleRequest{
		Title:     "빈 일정",
		SessionID: uuid.New().String(),
	})
	assert.Error(t, err)
	assert.False(t, resp.Success)
	repo.AssertNotCalled(t, "SaveSchedule", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoadLocalFailSoft(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
		err  error
	}{
		{"absent slot", nil, types.ErrScheduleNotFound},
		{"corrupt slot", json.RawMessage(`not json`), nil},
		{"empty object", json.RawMessage(`{}`), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newServiceWithMock(t)
			sessionID := uuid.New()
			repo.On("LoadSlot", mock.Anything, sessionID).Return(tt.raw, tt.err)

			it := svc.LoadLocal(context.Background(), sessionID)
			require.Contains(t, it, "Day1")
			for _, cat := range types.Categories {
				assert.NotNil(t, it["Day1"][cat])
			}
		})
	}
}

func TestLoadLocalRestoresBuckets(t *testing.T) {
	svc, repo := newServiceWithMock(t)
	sessionID := uuid.New()

	// A slot round-trip can omit empty categories.
	repo.On("LoadSlot", mock.Anything, sessionID).
		Return(json.RawMessage(`{"Day1": {"식당": [{"name": "할매국밥", "lat": 35.1, "lng": 129.03}]}}`), nil)

	it := svc.LoadLocal(context.Background(), sessionID)
	require.Len(t, it["Day1"][types.CategoryRestaurant], 1)
	for _, cat := range types.Categories {
		assert.NotNil(t, it["Day1"][cat])
	}
}

func TestAddPlaceServicePersists(t *testing.T) {
	svc, repo := newServiceWithMock(t)
	sessionID := uuid.New()

	repo.On("LoadSlot", mock.Anything, sessionID).Return(nil, types.ErrScheduleNotFound)
	repo.On("UpsertSlot", mock.Anything, sessionID, mock.Anything).Return(nil)

	it, err := svc.AddPlace(context.Background(), sessionID, "Day1", types.CategoryRestaurant,
		types.Place{Name: "할매국밥", Lat: 35.1, Lng: 129.03})
	require.NoError(t, err)
	assert.Equal(t, 1, it.PlaceCount())
	repo.AssertCalled(t, "UpsertSlot", mock.Anything, sessionID, mock.Anything)
}

func TestAddPlaceServiceRejectsInvalidCoordinate(t *testing.T) {
	svc, repo := newServiceWithMock(t)

	_, err := svc.AddPlace(context.Background(), uuid.New(), "Day1", types.CategoryTouristSite,
		types.Place{Name: "도쿄타워", Lat: 35.6586, Lng: 139.7454})
	assert.ErrorIs(t, err, types.ErrInvalidCoordinate)
	repo.AssertNotCalled(t, "UpsertSlot", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemovePlaceServiceSkipsPersistWhenMissing(t *testing.T) {
	svc, repo := newServiceWithMock(t)
	sessionID := uuid.New()

	repo.On("LoadSlot", mock.Anything, sessionID).Return(nil, types.ErrScheduleNotFound)

	report, _, err := svc.RemovePlace(context.Background(), sessionID, "없는곳", 35.1, 129.03)
	require.NoError(t, err)
	assert.False(t, report.Found)
	repo.AssertNotCalled(t, "UpsertSlot", mock.Anything, mock.Anything, mock.Anything)
}

func TestDiverged(t *testing.T) {
	svc, repo := newServiceWithMock(t)
	sessionID := uuid.New()

	persisted := types.NewItinerary()
	data, err := json.Marshal(persisted)
	require.NoError(t, err)
	repo.On("LoadSlot", mock.Anything, sessionID).Return(json.RawMessage(data), nil)

	diverged, err := svc.Diverged(context.Background(), sessionID, types.NewItinerary())
	require.NoError(t, err)
	assert.False(t, diverged)

	changed := types.NewItinerary()
	changed["Day1"][types.CategoryCafe] = append(changed["Day1"][types.CategoryCafe],
		types.Place{Name: "해운대 커피", Lat: 35.16, Lng: 129.16})
	diverged, err = svc.Diverged(context.Background(), sessionID, changed)
	require.NoError(t, err)
	assert.True(t, diverged)
}

func TestWatchSlotAppliesDivergedState(t *testing.T) {
	svc, repo := newServiceWithMock(t)
	sessionID := uuid.New()

	persisted := types.NewItinerary()
	persisted["Day1"][types.CategoryRestaurant] = append(persisted["Day1"][types.CategoryRestaurant],
		types.Place{Name: "할매국밥", Lat: 35.1, Lng: 129.03})
	data, err := json.Marshal(persisted)
	require.NoError(t, err)
	repo.On("LoadSlot", mock.Anything, sessionID).Return(json.RawMessage(data), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan types.Itinerary, 1)
	go svc.WatchSlot(ctx, sessionID, 10*time.Millisecond,
		types.NewItinerary,
		func(it types.Itinerary) {
			select {
			case applied <- it:
				cancel()
			default:
			}
		})

	select {
	case it := <-applied:
		assert.Equal(t, 1, it.PlaceCount())
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never applied the diverged slot state")
	}
}

func TestResetService(t *testing.T) {
	svc, repo := newServiceWithMock(t)
	sessionID := uuid.New()

	repo.On("UpsertSlot", mock.Anything, sessionID, mock.Anything).Return(nil)

	it, err := svc.Reset(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, it.PlaceCount())
	assert.Contains(t, it, "Day1")
}
