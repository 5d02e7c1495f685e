package post

import (
	"fmt"
	"math"
	"time"
)

const (
	RouteSingleLocation = "single_location"
	RouteMultiLocation  = "multi_location"
)

// RouteSummary is the travel route reconstructed from the batch's own
// coordinates and capture times. Distances are straight-line sums in
// coordinate degrees, matching what the frontend plots.
type RouteSummary struct {
	Narrative     string       `json:"narrative,omitempty"`
	Type          string       `json:"route_type"`
	TotalDistance float64      `json:"total_distance"`
	Duration      string       `json:"duration,omitempty"`
	Points        []RoutePoint `json:"route_points"`
	Start         *RoutePoint  `json:"start_location,omitempty"`
	End           *RoutePoint  `json:"end_location,omitempty"`
}

// RoutePoint is one located photo on the route, in submission order.
type RoutePoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp,omitempty"`
	Landmark  string  `json:"landmark,omitempty"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// analyzeRoute derives the route without any collaborator. Fewer than
// two located photos make a single-location route with zero distance
// and no duration.
func analyzeRoute(photos []PhotoInput) RouteSummary {
	points := routePoints(photos)
	if len(points) < 2 {
		return RouteSummary{Type: RouteSingleLocation, Points: points}
	}
	return RouteSummary{
		Type:          RouteMultiLocation,
		TotalDistance: totalDistance(points),
		Duration:      travelDuration(points),
		Points:        points,
		Start:         &points[0],
		End:           &points[len(points)-1],
	}
}

func routePoints(photos []PhotoInput) []RoutePoint {
	points := make([]RoutePoint, 0, len(photos))
	for _, p := range photos {
		if !p.located() {
			continue
		}
		loc := p.Location
		points = append(points, RoutePoint{
			Latitude:  *loc.Latitude,
			Longitude: *loc.Longitude,
			Timestamp: p.TakenAt,
			Landmark:  loc.Landmark,
			City:      loc.City,
			Country:   loc.Country,
		})
	}
	return points
}

// totalDistance sums the straight-line distance between consecutive
// points, in coordinate degrees.
func totalDistance(points []RoutePoint) float64 {
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		dLat := points[i+1].Latitude - points[i].Latitude
		dLon := points[i+1].Longitude - points[i].Longitude
		total += math.Sqrt(dLat*dLat + dLon*dLon)
	}
	return total
}

var takenAtLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006:01:02 15:04:05",
}

func parseTakenAt(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range takenAtLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// travelDuration renders the span between the earliest and latest
// parseable timestamps: whole hours under a day, day counts above.
// Empty when fewer than two timestamps parse.
func travelDuration(points []RoutePoint) string {
	var times []time.Time
	for _, p := range points {
		if ts, ok := parseTakenAt(p.Timestamp); ok {
			times = append(times, ts)
		}
	}
	if len(times) < 2 {
		return ""
	}
	start, end := times[0], times[0]
	for _, ts := range times[1:] {
		if ts.Before(start) {
			start = ts
		}
		if ts.After(end) {
			end = ts
		}
	}
	span := end.Sub(start)
	days := int(span.Hours() / 24)
	switch {
	case days == 0:
		return fmt.Sprintf("%d hours", int(span.Hours()))
	case days == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", days)
	}
}
