package reconcile

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
	"github.com/sdyoon0928/final-pj3/internal/api/itinerary"
	"github.com/sdyoon0928/final-pj3/internal/types"
)

type MockScheduleFetcher struct {
	mock.Mock
}

func (m *MockScheduleFetcher) GetSchedule(ctx context.Context, userID, scheduleID uuid.UUID) (json.RawMessage, error) {
	args := m.Called(ctx, userID, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

type MockSlotWriter struct {
	mock.Mock
}

func (m *MockSlotWriter) PersistLocal(ctx context.Context, sessionID uuid.UUID, it types.Itinerary) error {
	args := m.Called(ctx, sessionID, it)
	return args.Error(0)
}

func newTestReconciler(t *testing.T, remote ScheduleFetcher, slots SlotWriter) (*Reconciler, *HandoffStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	store := itinerary.NewStore(geo.New(logger), logger)
	handoff := NewHandoffStore(time.Minute)
	return NewReconciler(store, handoff, remote, slots, logger), handoff
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func flatListPayload(names ...string) json.RawMessage {
	places := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		places = append(places, map[string]interface{}{
			"name": name, "lat": 37.55, "lng": 126.98,
		})
	}
	data, _ := json.Marshal(map[string]interface{}{"places": places})
	return data
}

func TestIsTemporaryID(t *testing.T) {
	assert.True(t, IsTemporaryID("temp_1724031999"))
	assert.False(t, IsTemporaryID("b7a6c2de-1111-2222-3333-444455556666"))
	assert.False(t, IsTemporaryID(""))
}

func TestHandoffStoreReadOnce(t *testing.T) {
	h := NewHandoffStore(time.Minute)
	h.Put("s1", json.RawMessage(`{"places":[]}`))

	data, ok := h.Take("s1")
	require.True(t, ok)
	assert.JSONEq(t, `{"places":[]}`, string(data))

	_, ok = h.Take("s1")
	assert.False(t, ok, "second take must miss")
}

func TestResolveHandoffWins(t *testing.T) {
	remote := new(MockScheduleFetcher)
	slots := new(MockSlotWriter)
	slots.On("PersistLocal", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	r, handoff := newTestReconciler(t, remote, slots)
	sessionID := uuid.New()
	handoff.Put(sessionID.String(), flatListPayload("경복궁", "광장시장"))

	res := r.Resolve(context.Background(), uuid.New(), sessionID, uuid.New().String())

	assert.Equal(t, SourceHandoff, res.Source)
	assert.Equal(t, 2, res.Loaded)
	remote.AssertNotCalled(t, "GetSchedule", mock.Anything, mock.Anything, mock.Anything)
	slots.AssertExpectations(t)

	// Handoff is consumed, so the same session resolves differently next time.
	_, ok := handoff.Take(sessionID.String())
	assert.False(t, ok)
}

func TestResolveFallsThroughToRemote(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	scheduleID := uuid.New()

	remote := new(MockScheduleFetcher)
	remote.On("GetSchedule", mock.Anything, userID, scheduleID).
		Return(flatListPayload("광안리 해수욕장"), nil)
	slots := new(MockSlotWriter)
	slots.On("PersistLocal", mock.Anything, sessionID, mock.Anything).Return(nil)

	r, _ := newTestReconciler(t, remote, slots)

	res := r.Resolve(context.Background(), userID, sessionID, scheduleID.String())

	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, 1, res.Loaded)
	remote.AssertExpectations(t)
}

func TestResolveTemporaryIDSkipsRemote(t *testing.T) {
	remote := new(MockScheduleFetcher)
	slots := new(MockSlotWriter)
	slots.On("PersistLocal", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	r, _ := newTestReconciler(t, remote, slots)

	res := r.Resolve(context.Background(), uuid.New(), uuid.New(), "temp_1724031999")

	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, 0, res.Loaded)
	assert.Len(t, res.Itinerary, 1)
	assert.Contains(t, res.Itinerary, "Day1")
	remote.AssertNotCalled(t, "GetSchedule", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveMalformedHandoffFallsThrough(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	scheduleID := uuid.New()

	remote := new(MockScheduleFetcher)
	remote.On("GetSchedule", mock.Anything, userID, scheduleID).
		Return(flatListPayload("성산일출봉"), nil)
	slots := new(MockSlotWriter)
	slots.On("PersistLocal", mock.Anything, sessionID, mock.Anything).Return(nil)

	r, handoff := newTestReconciler(t, remote, slots)
	handoff.Put(sessionID.String(), json.RawMessage(`{"unexpected":"shape"}`))

	res := r.Resolve(context.Background(), userID, sessionID, scheduleID.String())

	assert.Equal(t, SourceRemote, res.Source)
	remote.AssertExpectations(t)
}

func TestResolveRemoteFailureFallsToDefault(t *testing.T) {
	userID := uuid.New()
	sessionID := uuid.New()
	scheduleID := uuid.New()

	remote := new(MockScheduleFetcher)
	remote.On("GetSchedule", mock.Anything, userID, scheduleID).
		Return(nil, types.ErrScheduleNotFound)
	slots := new(MockSlotWriter)
	slots.On("PersistLocal", mock.Anything, sessionID, mock.Anything).Return(nil)

	r, _ := newTestReconciler(t, remote, slots)

	res := r.Resolve(context.Background(), userID, sessionID, scheduleID.String())

	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, 0, res.Loaded)
}
