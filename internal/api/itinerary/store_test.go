package itinerary

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdyoon0928/final-pj3/internal/api/geo"
	"github.com/sdyoon0928/final-pj3/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	return NewStore(geo.New(logger), logger)
}

func TestDetectVariant(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name    string
		payload string
		want    types.PayloadVariant
	}{
		{"structured", `{"schedule": {"Day1": {}}}`, types.VariantStructured},
		{"direct bucket", `{"Day1": {"식당": []}, "Day2": {}}`, types.VariantDirectBucket},
		{"flat list", `{"places": [{"name": "a"}]}`, types.VariantFlatList},
		{"empty object", `{}`, types.VariantUnrecognized},
		{"not an object", `[1, 2, 3]`, types.VariantUnrecognized},
		{"day-ish but not day", `{"DayX": {}}`, types.VariantUnrecognized},
		{"schedule not object", `{"schedule": "tomorrow"}`, types.VariantUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.DetectVariant(json.RawMessage(tt.payload)))
		})
	}
}

func TestIngestStructured(t *testing.T) {
	s := newTestStore(t)

	payload := `{
		"schedule": {
			"Day1": {
				"점심": {"장소": "할매국밥", "주소": "부산 중구", "좌표": {"lat": 35.1, "lng": 129.03}},
				"오후": {"장소": "감천문화마을", "좌표": {"lat": 35.0979, "lng": 129.0108}},
				"저녁": {"장소": "좌표없는집"}
			},
			"Day2": {
				"아침": {"장소": "문자열좌표", "좌표": {"lat": "35.16", "lng": "129.16"}}
			}
		}
	}`

	it, report, err := s.Ingest(json.RawMessage(payload))
	require.NoError(t, err)

	assert.Equal(t, types.VariantStructured, report.Variant)
	assert.Equal(t, 3, report.Loaded)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, "좌표없는집", report.Dropped[0].Name)
	assert.Equal(t, types.DropMissingCoordinates, report.Dropped[0].Reason)

	// The activity label steers classification: 점심 puts a place in 식당.
	require.Len(t, it["Day1"][types.CategoryRestaurant], 1)
	assert.Equal(t, "할매국밥", it["Day1"][types.CategoryRestaurant][0].Name)
	assert.Equal(t, "부산 중구", it["Day1"][types.CategoryRestaurant][0].Address)
	// 감천문화마을 contains the 마을 keyword and lands in 관광지.
	require.Len(t, it["Day1"][types.CategoryTouristSite], 1)

	// String coordinates parse like numbers.
	require.Len(t, it["Day2"], len(types.Categories))
	assert.Equal(t, 1, it["Day2"].PlaceCount())
}

func TestIngestDirectBucketRoundTripFixedPoint(t *testing.T) {
	s := newTestStore(t)

	it := types.NewItinerary()
	require.NoError(t, s.AddPlace(it, "Day1", types.CategoryRestaurant,
		types.Place{Name: "할매국밥", Address: "부산 중구", Lat: 35.1, Lng: 129.03}))
	require.NoError(t, s.AddPlace(it, "Day2", types.CategoryTouristSite,
		types.Place{Name: "경복궁", Lat: 37.5796, Lng: 126.977}))

	data, err := json.Marshal(it)
	require.NoError(t, err)

	got, report, err := s.Ingest(data)
	require.NoError(t, err)
	assert.Equal(t, types.VariantDirectBucket, report.Variant)
	assert.Equal(t, 2, report.Loaded)
	assert.Empty(t, report.Dropped)
	assert.Equal(t, 0, report.Renamed)

	// Canonical data survives a serialize-ingest cycle unchanged.
	gotData, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(gotData))
}

func TestIngestDirectBucketRenamesPlaceholders(t *testing.T) {
	s := newTestStore(t)

	payload := `{
		"Day1": {
			"기타": [
				{"name": "좌표 1", "lat": 37.55, "lng": 126.98},
				{"name": "광장시장", "lat": 37.57, "lng": 126.9996}
			]
		}
	}`

	it, report, err := s.Ingest(json.RawMessage(payload))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Renamed)
	names := []string{}
	for _, p := range it["Day1"][types.CategoryOther] {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "장소 1")
	assert.NotContains(t, names, "좌표 1")
}

func TestIngestDirectBucketDropsInvalid(t *testing.T) {
	s := newTestStore(t)

	payload := `{
		"Day1": {
			"관광지": [
				{"name": "도쿄타워", "lat": 35.6586, "lng": 139.7454},
				{"name": "경복궁", "lat": 37.5796, "lng": 126.977},
				{"name": "깨진좌표", "lat": "abc", "lng": 126.98}
			]
		}
	}`

	it, report, err := s.Ingest(json.RawMessage(payload))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Loaded)
	require.Len(t, report.Dropped, 2)
	assert.Equal(t, 1, it["Day1"].PlaceCount())

	reasons := map[string]types.DropReason{}
	for _, d := range report.Dropped {
		reasons[d.Name] = d.Reason
	}
	assert.Equal(t, types.DropInvalidCoordinate, reasons["도쿄타워"])
	assert.Equal(t, types.DropMissingCoordinates, reasons["깨진좌표"])
}

func TestIngestFlatList(t *testing.T) {
	s := newTestStore(t)

	payload := `{"places": [
		{"name": "해운대 커피", "lat": 35.16, "lng": 129.16},
		{"name": "할매국밥", "lat": 35.1, "lng": 129.03},
		{"lat": 37.55, "lng": 126.98}
	]}`

	it, report, err := s.Ingest(json.RawMessage(payload))
	require.NoError(t, err)

	assert.Equal(t, types.VariantFlatList, report.Variant)
	assert.Equal(t, 3, report.Loaded)
	require.Len(t, it, 1)

	bucket := it["Day1"]
	require.Len(t, bucket[types.CategoryCafe], 1)
	require.Len(t, bucket[types.CategoryRestaurant], 1)
	// The nameless entry gets the default name and lands in 기타.
	require.Len(t, bucket[types.CategoryOther], 1)
	assert.Equal(t, "장소", bucket[types.CategoryOther][0].Name)
}

func TestIngestUnrecognized(t *testing.T) {
	s := newTestStore(t)

	_, report, err := s.Ingest(json.RawMessage(`{"unexpected": true}`))
	assert.ErrorIs(t, err, types.ErrUnrecognizedPayload)
	assert.Equal(t, types.VariantUnrecognized, report.Variant)
}

func TestIngestEmptyResultFallsBackToDefault(t *testing.T) {
	s := newTestStore(t)

	it, report, err := s.Ingest(json.RawMessage(`{"places": []}`))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Loaded)
	assert.Contains(t, it, "Day1")
}

func TestAddPlaceDuplicate(t *testing.T) {
	s := newTestStore(t)
	it := types.NewItinerary()
	place := types.Place{Name: "할매국밥", Lat: 35.1, Lng: 129.03}

	require.NoError(t, s.AddPlace(it, "Day1", types.CategoryRestaurant, place))

	// Identical within epsilon is a duplicate.
	nudged := types.Place{Name: "할매국밥", Lat: 35.10005, Lng: 129.03}
	err := s.AddPlace(it, "Day1", types.CategoryRestaurant, nudged)
	assert.ErrorIs(t, err, types.ErrDuplicatePlace)
	assert.Equal(t, 1, it.PlaceCount())

	// Outside epsilon is a different spot.
	moved := types.Place{Name: "할매국밥", Lat: 35.102, Lng: 129.03}
	require.NoError(t, s.AddPlace(it, "Day1", types.CategoryRestaurant, moved))

	// Same spot in a different category or day is not a duplicate.
	require.NoError(t, s.AddPlace(it, "Day2", types.CategoryRestaurant, place))
}

func TestAddPlaceMaterializesDay(t *testing.T) {
	s := newTestStore(t)
	it := types.NewItinerary()

	require.NoError(t, s.AddPlace(it, "Day3", types.CategoryCafe,
		types.Place{Name: "해운대 커피", Lat: 35.16, Lng: 129.16}))

	require.Contains(t, it, "Day3")
	for _, cat := range types.Categories {
		assert.NotNil(t, it["Day3"][cat])
	}
}

func TestAddPlaceUnknownCategory(t *testing.T) {
	s := newTestStore(t)
	err := s.AddPlace(types.NewItinerary(), "Day1", types.Category("호텔"), types.Place{Name: "x"})
	assert.Error(t, err)
}

func TestRemovePlaceEverywhere(t *testing.T) {
	s := newTestStore(t)
	it := types.NewItinerary()
	place := types.Place{Name: "할매국밥", Lat: 35.1, Lng: 129.03}

	require.NoError(t, s.AddPlace(it, "Day1", types.CategoryRestaurant, place))
	require.NoError(t, s.AddPlace(it, "Day2", types.CategoryRestaurant, place))
	require.NoError(t, s.AddPlace(it, "Day2", types.CategoryTouristSite,
		types.Place{Name: "경복궁", Lat: 37.5796, Lng: 126.977}))

	report := s.RemovePlace(it, "할매국밥", 35.1, 129.03)

	assert.True(t, report.Found)
	assert.Equal(t, []string{"Day1", "Day2"}, report.RemovedFromDays)
	assert.Equal(t, 1, it.PlaceCount())
	// Emptied days stay; suffixes are never reshuffled.
	assert.Contains(t, it, "Day1")
}

func TestRemovePlaceNotFound(t *testing.T) {
	s := newTestStore(t)
	it := types.NewItinerary()

	report := s.RemovePlace(it, "없는곳", 35.1, 129.03)
	assert.False(t, report.Found)
	assert.Empty(t, report.RemovedFromDays)
}

func TestRecategorizeAll(t *testing.T) {
	s := newTestStore(t)
	it := types.NewItinerary()

	// Misfiled on purpose: a cafe sitting in 기타.
	require.NoError(t, s.AddPlace(it, "Day1", types.CategoryOther,
		types.Place{Name: "해운대 커피", Lat: 35.16, Lng: 129.16}))
	require.NoError(t, s.AddPlace(it, "Day1", types.CategoryOther,
		types.Place{Name: "할매국밥", Lat: 35.1, Lng: 129.03}))

	rebuilt := s.RecategorizeAll(it)

	assert.Len(t, rebuilt["Day1"][types.CategoryCafe], 1)
	assert.Len(t, rebuilt["Day1"][types.CategoryRestaurant], 1)
	assert.Empty(t, rebuilt["Day1"][types.CategoryOther])
	assert.Equal(t, it.PlaceCount(), rebuilt.PlaceCount())
}

func TestNextDayKeyNeverReuses(t *testing.T) {
	it := types.Itinerary{
		"Day1": types.NewDayBucket(),
		"Day4": types.NewDayBucket(),
	}
	assert.Equal(t, "Day5", it.NextDayKey())
}
