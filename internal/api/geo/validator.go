package geo

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Bounds are expressed as orb.Bound with points in (lng, lat) order.
var (
	worldBound = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

	// National bounding box. Anything outside is rejected outright.
	koreaBound = orb.Bound{Min: orb.Point{124, 33}, Max: orb.Point{132, 39}}
)

// Short cafe queries frequently geocode to a mountain or rural misread, so a
// cafe-looking name must additionally land inside one of these urban boxes.
var cafeUrbanBounds = map[string]orb.Bound{
	"부산": {Min: orb.Point{128.5, 35.0}, Max: orb.Point{129.5, 35.5}},
	"서울": {Min: orb.Point{126.8, 37.4}, Max: orb.Point{127.2, 37.7}},
	"제주": {Min: orb.Point{126.0, 33.0}, Max: orb.Point{126.5, 33.5}},
	"대구": {Min: orb.Point{128.4, 35.7}, Max: orb.Point{128.8, 36.0}},
	"인천": {Min: orb.Point{126.4, 37.4}, Max: orb.Point{126.8, 37.6}},
}

// A name mentioning a known region must fall inside that region's tighter box.
var regionBounds = map[string]orb.Bound{
	"목포":  {Min: orb.Point{126.0, 34.5}, Max: orb.Point{126.5, 35.0}},
	"경주":  {Min: orb.Point{129.0, 35.7}, Max: orb.Point{129.5, 36.0}},
	"서울":  {Min: orb.Point{126.8, 37.4}, Max: orb.Point{127.2, 37.7}},
	"부산":  {Min: orb.Point{128.8, 35.0}, Max: orb.Point{129.3, 35.3}},
	"해운대": {Min: orb.Point{129.15, 35.15}, Max: orb.Point{129.18, 35.17}},
}

var cafeKeywords = []string{"카페", "커피", "coffee", "cafe"}

// Validator checks (name, lat, lng) triples against nested geographic bounds
// and the domain heuristics above. Pure predicate; the logger only carries
// diagnostics for rejected points.
type Validator struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate applies the rules in order, short-circuiting on the first failure:
// finite values, world bounds, national bounds, the cafe urban-box rule and
// the region substring rule.
func (v *Validator) Validate(placeName string, lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		v.logger.Warn("coordinate is not a finite number",
			slog.String("place", placeName), slog.Float64("lat", lat), slog.Float64("lng", lng))
		return false
	}

	point := orb.Point{lng, lat}

	if !worldBound.Contains(point) {
		v.logger.Warn("coordinate outside world bounds",
			slog.String("place", placeName), slog.Float64("lat", lat), slog.Float64("lng", lng))
		return false
	}

	if !koreaBound.Contains(point) {
		v.logger.Warn("coordinate outside national bounds",
			slog.String("place", placeName), slog.Float64("lat", lat), slog.Float64("lng", lng))
		return false
	}

	if isCafeName(placeName) && !insideAnyUrbanArea(point) {
		v.logger.Warn("cafe coordinate outside every urban area, likely a geocoding misread",
			slog.String("place", placeName), slog.Float64("lat", lat), slog.Float64("lng", lng))
		return false
	}

	for region, bound := range regionBounds {
		if strings.Contains(placeName, region) && !bound.Contains(point) {
			v.logger.Warn("coordinate outside named region bounds",
				slog.String("place", placeName), slog.String("region", region),
				slog.Float64("lat", lat), slog.Float64("lng", lng))
			return false
		}
	}

	return true
}

// ValidateStrings parses the raw coordinate strings first; anything that does
// not parse as a finite number is rejected.
func (v *Validator) ValidateStrings(placeName, lat, lng string) bool {
	latNum, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	lngNum, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if errLat != nil || errLng != nil {
		v.logger.Warn("coordinate does not parse as a number",
			slog.String("place", placeName), slog.String("lat", lat), slog.String("lng", lng))
		return false
	}
	return v.Validate(placeName, latNum, lngNum)
}

func isCafeName(placeName string) bool {
	name := strings.ToLower(placeName)
	for _, keyword := range cafeKeywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}
	return false
}

func insideAnyUrbanArea(point orb.Point) bool {
	for _, bound := range cafeUrbanBounds {
		if bound.Contains(point) {
			return true
		}
	}
	return false
}
