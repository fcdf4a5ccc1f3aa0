package types

import (
	"math"
	"strconv"
	"strings"
)

// PayloadVariant tags which of the historical wire shapes a raw schedule
// payload matches.
type PayloadVariant string

const (
	VariantUnrecognized PayloadVariant = "unrecognized"
	VariantStructured   PayloadVariant = "structured"
	VariantDirectBucket PayloadVariant = "direct_bucket"
	VariantFlatList     PayloadVariant = "flat_list"
)

// Coordinate unmarshals from either a JSON number or a numeric string; the
// legacy payloads mix both. Unparseable input becomes NaN so ingestion can
// drop the entry instead of aborting the whole payload.
type Coordinate float64

func (c *Coordinate) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = Coordinate(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*c = Coordinate(math.NaN())
		return nil
	}
	*c = Coordinate(f)
	return nil
}

// StructuredCoords is the nested coordinate object of the structured variant.
type StructuredCoords struct {
	Lat Coordinate `json:"lat"`
	Lng Coordinate `json:"lng"`
}

// StructuredEntry is one activity of the structured variant. The Korean field
// names are the wire format.
type StructuredEntry struct {
	Place   string            `json:"장소"`
	Address string            `json:"주소,omitempty"`
	Coords  *StructuredCoords `json:"좌표,omitempty"`
}

// StructuredPayload is the newest legacy shape: one entry per activity label
// per day. The activity label is only a classification hint and is not
// retained.
type StructuredPayload struct {
	Schedule map[string]map[string]StructuredEntry `json:"schedule"`
}

// RawPlace is a place as found in the direct-bucket and flat-list variants,
// before validation.
type RawPlace struct {
	Name    string     `json:"name"`
	Address string     `json:"address,omitempty"`
	Lat     Coordinate `json:"lat"`
	Lng     Coordinate `json:"lng"`
}

// FlatListPayload is the oldest legacy shape: an uncategorized place list
// that all lands in Day1.
type FlatListPayload struct {
	Places []RawPlace `json:"places"`
}

// DropReason is the machine-readable cause for an entry being excluded during
// ingestion.
type DropReason string

const (
	DropMissingCoordinates DropReason = "missing_coordinates"
	DropInvalidCoordinate  DropReason = "invalid_coordinate"
	DropMalformedEntry     DropReason = "malformed_entry"
)

// DroppedEntry records one excluded entry.
type DroppedEntry struct {
	Day    string     `json:"day"`
	Name   string     `json:"name"`
	Reason DropReason `json:"reason"`
}

// IngestReport summarizes a normalization run. The UI surfaces Loaded; the
// dropped entries stay inspectable for diagnostics and tests.
type IngestReport struct {
	Variant PayloadVariant `json:"variant"`
	Loaded  int            `json:"loaded"`
	Dropped []DroppedEntry `json:"dropped,omitempty"`
	Renamed int            `json:"renamed,omitempty"`
}

// DroppedCount returns the number of excluded entries.
func (r IngestReport) DroppedCount() int {
	return len(r.Dropped)
}
