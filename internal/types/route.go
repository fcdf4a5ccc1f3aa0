package types

// RoutePoint is a coordinate in provider order: x is longitude, y is latitude.
type RoutePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RoutePriority values accepted by the driving provider.
const (
	PriorityRecommend = "RECOMMEND"
	PriorityTime      = "TIME"
	PriorityDistance  = "DISTANCE"
)

// RouteModeTransit switches route computation to the transit provider;
// anything else means driving.
const RouteModeTransit = "TRANSIT"

// RouteRequest asks for a route through an ordered list of points.
type RouteRequest struct {
	Origin      RoutePoint   `json:"origin"`
	Destination RoutePoint   `json:"destination"`
	Waypoints   []RoutePoint `json:"waypoints,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	Mode        string       `json:"mode,omitempty"`
}

// RouteSection is one leg of a computed route. Transport is only set by the
// transit provider (대중교통 or 도보).
type RouteSection struct {
	Name      string       `json:"name,omitempty"`
	Distance  int          `json:"distance"`
	Duration  int          `json:"duration"`
	Path      []RoutePoint `json:"path,omitempty"`
	Transport string       `json:"transport,omitempty"`
}

type RouteSummary struct {
	Distance int `json:"distance"`
	Duration int `json:"duration"`
}

type Route struct {
	Summary      RouteSummary   `json:"summary"`
	Sections     []RouteSection `json:"sections"`
	OverviewPath []RoutePoint   `json:"overview_path,omitempty"`
}

// RouteResponse is the unified shape both providers normalize into.
type RouteResponse struct {
	Provider string  `json:"provider"`
	Routes   []Route `json:"routes"`
}
