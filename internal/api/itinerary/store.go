package itinerary

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/sdyoon0928/final-pj3/internal/api/classify"
	"github.com/sdyoon0928/final-pj3/internal/api/geo"
	"github.com/sdyoon0928/final-pj3/internal/types"
)

// Store owns the canonical itinerary shape: it normalizes the three legacy
// wire formats into it and applies the in-memory mutations. Persistence is
// the Service's job.
type Store struct {
	logger    *slog.Logger
	validator *geo.Validator
}

func NewStore(validator *geo.Validator, logger *slog.Logger) *Store {
	return &Store{
		logger:    logger,
		validator: validator,
	}
}

// Validator exposes the coordinate validator so callers can vet single
// places before handing them to AddPlace.
func (s *Store) Validator() *geo.Validator {
	return s.validator
}

// DetectVariant sniffs which legacy wire shape the raw payload matches.
func (s *Store) DetectVariant(raw json.RawMessage) types.PayloadVariant {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return types.VariantUnrecognized
	}

	if sched, ok := top["schedule"]; ok && isJSONObject(sched) {
		return types.VariantStructured
	}
	for key := range top {
		if types.DayNumber(key) > 0 {
			return types.VariantDirectBucket
		}
	}
	if places, ok := top["places"]; ok && isJSONArray(places) {
		return types.VariantFlatList
	}
	return types.VariantUnrecognized
}

// Ingest normalizes a raw payload into the canonical itinerary. Entries that
// fail validation are dropped and counted, never fatal; only a payload that
// matches no variant at all is an error. A canonical itinerary serialized and
// ingested again comes back unchanged.
func (s *Store) Ingest(raw json.RawMessage) (types.Itinerary, types.IngestReport, error) {
	variant := s.DetectVariant(raw)
	report := types.IngestReport{Variant: variant}

	var it types.Itinerary
	switch variant {
	case types.VariantStructured:
		var payload types.StructuredPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, report, fmt.Errorf("structured payload did not decode: %w", err)
		}
		it = s.normalizeStructured(payload, &report)
	case types.VariantDirectBucket:
		var payload map[string]map[types.Category][]types.RawPlace
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, report, fmt.Errorf("direct-bucket payload did not decode: %w", err)
		}
		it = s.normalizeDirectBucket(payload, &report)
	case types.VariantFlatList:
		var payload types.FlatListPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, report, fmt.Errorf("flat-list payload did not decode: %w", err)
		}
		it = s.normalizeFlatList(payload, &report)
	default:
		return nil, report, types.ErrUnrecognizedPayload
	}

	if len(it) == 0 {
		it = types.NewItinerary()
	}

	s.logger.Info("schedule payload ingested",
		slog.String("variant", string(variant)),
		slog.Int("loaded", report.Loaded),
		slog.Int("dropped", report.DroppedCount()),
		slog.Int("renamed", report.Renamed))
	return it, report, nil
}

// normalizeStructured flattens {schedule: {day: {activity: entry}}}. The
// activity label classifies the entry and is not retained.
func (s *Store) normalizeStructured(payload types.StructuredPayload, report *types.IngestReport) types.Itinerary {
	it := types.Itinerary{}

	for _, day := range sortedDayKeys(payload.Schedule) {
		bucket := types.NewDayBucket()
		activities := payload.Schedule[day]

		labels := make([]string, 0, len(activities))
		for label := range activities {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			entry := activities[label]
			if entry.Place == "" || entry.Coords == nil {
				report.Dropped = append(report.Dropped, types.DroppedEntry{
					Day: day, Name: entry.Place, Reason: types.DropMissingCoordinates,
				})
				continue
			}

			lat, lng := float64(entry.Coords.Lat), float64(entry.Coords.Lng)
			if !s.validator.Validate(entry.Place, lat, lng) {
				report.Dropped = append(report.Dropped, types.DroppedEntry{
					Day: day, Name: entry.Place, Reason: types.DropInvalidCoordinate,
				})
				continue
			}

			category := classify.Place(entry.Place, label)
			bucket[category] = append(bucket[category], types.Place{
				Name:    entry.Place,
				Address: entry.Address,
				Lat:     lat,
				Lng:     lng,
			})
			report.Loaded++
		}
		it[day] = bucket
	}
	return it
}

// normalizeDirectBucket accepts already-categorized day buckets, rewriting
// placeholder names and dropping places that fail validation. Keys that are
// not day-shaped are ignored.
func (s *Store) normalizeDirectBucket(payload map[string]map[types.Category][]types.RawPlace, report *types.IngestReport) types.Itinerary {
	it := types.Itinerary{}

	for _, day := range sortedDayKeys(payload) {
		if types.DayNumber(day) == 0 {
			continue
		}
		bucket := types.NewDayBucket()

		for _, category := range types.Categories {
			for i, raw := range payload[day][category] {
				name := raw.Name
				// "좌표 N" placeholders come from an old client bug;
				// rewrite them to a readable generated name.
				if strings.HasPrefix(name, "좌표") {
					name = fmt.Sprintf("장소 %d", i+1)
					report.Renamed++
				}

				lat, lng := float64(raw.Lat), float64(raw.Lng)
				if !s.validator.Validate(name, lat, lng) {
					report.Dropped = append(report.Dropped, types.DroppedEntry{
						Day: day, Name: name, Reason: dropReasonFor(lat, lng),
					})
					continue
				}

				bucket[category] = append(bucket[category], types.Place{
					Name:    name,
					Address: raw.Address,
					Lat:     lat,
					Lng:     lng,
				})
				report.Loaded++
			}
		}
		it[day] = bucket
	}
	return it
}

// normalizeFlatList puts an uncategorized place list into Day1, classified by
// name alone.
func (s *Store) normalizeFlatList(payload types.FlatListPayload, report *types.IngestReport) types.Itinerary {
	it := types.NewItinerary()
	bucket := it["Day1"]

	for _, raw := range payload.Places {
		name := raw.Name
		if name == "" {
			name = "장소"
		}

		lat, lng := float64(raw.Lat), float64(raw.Lng)
		if !s.validator.Validate(name, lat, lng) {
			report.Dropped = append(report.Dropped, types.DroppedEntry{
				Day: "Day1", Name: name, Reason: dropReasonFor(lat, lng),
			})
			continue
		}

		category := classify.Place(name, "")
		bucket[category] = append(bucket[category], types.Place{
			Name:    name,
			Address: raw.Address,
			Lat:     lat,
			Lng:     lng,
		})
		report.Loaded++
	}
	return it
}

// AddPlace appends a place to the given day and category. Adding the same
// place (name plus epsilon-equal coordinates) to the same bucket twice is
// ErrDuplicatePlace. A missing day is materialized on first use.
func (s *Store) AddPlace(it types.Itinerary, day string, category types.Category, place types.Place) error {
	if !category.Valid() {
		return fmt.Errorf("unknown category %q", category)
	}

	bucket, ok := it[day]
	if !ok {
		bucket = types.NewDayBucket()
		it[day] = bucket
	}

	for _, existing := range bucket[category] {
		if existing.SameSpot(place.Name, place.Lat, place.Lng) {
			return types.ErrDuplicatePlace
		}
	}

	bucket[category] = append(bucket[category], place)
	return nil
}

// RemovePlace removes every epsilon-equal match of the identity triple from
// every day and category. Stale duplicates across days are cleared by a
// single delete, so this scans the whole itinerary.
func (s *Store) RemovePlace(it types.Itinerary, name string, lat, lng float64) types.RemovalReport {
	report := types.RemovalReport{RemovedFromDays: []string{}}

	for _, day := range it.Days() {
		bucket := it[day]
		removedHere := false
		for _, category := range types.Categories {
			kept := bucket[category][:0]
			for _, place := range bucket[category] {
				if place.SameSpot(name, lat, lng) {
					removedHere = true
					continue
				}
				kept = append(kept, place)
			}
			bucket[category] = kept
		}
		if removedHere {
			report.RemovedFromDays = append(report.RemovedFromDays, day)
			report.Found = true
		}
	}
	return report
}

// RecategorizeAll rebuilds every bucket from scratch, re-classifying each
// place by name only. Activity hints are not retained past ingestion, so this
// is the bulk-repair path when the initial sort was wrong.
func (s *Store) RecategorizeAll(it types.Itinerary) types.Itinerary {
	rebuilt := types.Itinerary{}

	for _, day := range it.Days() {
		bucket := types.NewDayBucket()
		for _, category := range types.Categories {
			for _, place := range it[day][category] {
				target := classify.Place(place.Name, "")
				bucket[target] = append(bucket[target], place)
			}
		}
		rebuilt[day] = bucket
	}
	return rebuilt
}

func dropReasonFor(lat, lng float64) types.DropReason {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return types.DropMissingCoordinates
	}
	return types.DropInvalidCoordinate
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "[")
}

func sortedDayKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, nj := types.DayNumber(keys[i]), types.DayNumber(keys[j])
		if ni != nj {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}
