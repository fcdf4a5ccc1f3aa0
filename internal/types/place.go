package types

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// CoordinateEpsilon is the tolerance, in degrees, under which two coordinates
// are considered the same spot. Places carry no stable id in any of the wire
// formats, so identity is the (name, lat, lng) triple compared with this
// epsilon.
const CoordinateEpsilon = 1e-4

// Place is a single point on the map inside a day bucket.
type Place struct {
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// SameSpot reports whether the place matches the given identity triple within
// CoordinateEpsilon on both axes.
func (p Place) SameSpot(name string, lat, lng float64) bool {
	return p.Name == name &&
		math.Abs(p.Lat-lat) < CoordinateEpsilon &&
		math.Abs(p.Lng-lng) < CoordinateEpsilon
}

// Category is the fixed classification taxonomy. The values are the Korean
// labels the wire formats and the UI use.
type Category string

const (
	CategoryAccommodation Category = "숙소"
	CategoryRestaurant    Category = "식당"
	CategoryCafe          Category = "카페"
	CategoryTouristSite   Category = "관광지"
	CategoryOther         Category = "기타"
)

// Categories lists every category in display order. Every day bucket carries
// all of them.
var Categories = []Category{
	CategoryAccommodation,
	CategoryRestaurant,
	CategoryCafe,
	CategoryTouristSite,
	CategoryOther,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// DayBucket maps each category to its ordered places. Insertion order is
// display and route order.
type DayBucket map[Category][]Place

// NewDayBucket returns a bucket with every category present and empty.
func NewDayBucket() DayBucket {
	b := make(DayBucket, len(Categories))
	for _, cat := range Categories {
		b[cat] = []Place{}
	}
	return b
}

// PlaceCount returns the number of places across all categories.
func (b DayBucket) PlaceCount() int {
	n := 0
	for _, places := range b {
		n += len(places)
	}
	return n
}

// Itinerary maps day identifiers ("Day1", "Day2", ...) to their buckets.
type Itinerary map[string]DayBucket

// NewItinerary returns the default itinerary: a single empty Day1.
func NewItinerary() Itinerary {
	return Itinerary{"Day1": NewDayBucket()}
}

// DayNumber extracts the numeric suffix of a day identifier. Returns 0 when
// the key is not day-shaped.
func DayNumber(day string) int {
	if !strings.HasPrefix(day, "Day") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(day, "Day"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// Days returns the day identifiers ordered by numeric suffix.
func (it Itinerary) Days() []string {
	days := make([]string, 0, len(it))
	for day := range it {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		return DayNumber(days[i]) < DayNumber(days[j])
	})
	return days
}

// NextDayKey generates the identifier for a new day. Suffixes grow past the
// highest existing one and are never reused after a deletion.
func (it Itinerary) NextDayKey() string {
	max := 0
	for day := range it {
		if n := DayNumber(day); n > max {
			max = n
		}
	}
	return "Day" + strconv.Itoa(max+1)
}

// PlaceCount returns the number of places across all days.
func (it Itinerary) PlaceCount() int {
	n := 0
	for _, bucket := range it {
		n += bucket.PlaceCount()
	}
	return n
}

// RemovalReport describes the outcome of a remove-everywhere operation.
type RemovalReport struct {
	RemovedFromDays []string `json:"removed_from_days"`
	Found           bool     `json:"found"`
}
