// Package labels derives categorical photo labels from normalized EXIF
// metadata. Derivation is a pure function: identical input always yields
// the identical label set in the identical order.
package labels

import (
	"fmt"
	"strings"
	"time"

	"github.com/duckgeunpark/IWT/internal/exif"
)

// Label types. The llm_generated type is never produced by Derive; it is
// reserved for labels written by the enrichment pipeline.
const (
	TypeLocation     = "location"
	TypeTime         = "time"
	TypeCamera       = "camera"
	TypeImage        = "image"
	TypeLLMGenerated = "llm_generated"
)

// Label sources.
const (
	SourceExif   = "exif"
	SourceLLM    = "llm"
	SourceOCR    = "ocr"
	SourceManual = "manual"
)

// Label is a categorical tag attached to a photo.
type Label struct {
	PhotoID    string  `json:"photo_id,omitempty"`
	Type       string  `json:"label_type"`
	Name       string  `json:"label_name"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Set groups derived label names by type, in the fixed order
// location, time, camera, image.
type Set struct {
	Location []string `json:"location_labels"`
	Time     []string `json:"time_labels"`
	Camera   []string `json:"camera_labels"`
	Image    []string `json:"image_labels"`
}

// Names returns every label name in group order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s.Location)+len(s.Time)+len(s.Camera)+len(s.Image))
	out = append(out, s.Location...)
	out = append(out, s.Time...)
	out = append(out, s.Camera...)
	out = append(out, s.Image...)
	return out
}

// Labels flattens the set into persistable records for one photo.
// Rule-derived labels always carry confidence 1.0 and source exif.
func (s Set) Labels(photoID string) []Label {
	var out []Label
	add := func(typ string, names []string) {
		for _, name := range names {
			out = append(out, Label{
				PhotoID:    photoID,
				Type:       typ,
				Name:       name,
				Confidence: 1.0,
				Source:     SourceExif,
			})
		}
	}
	add(TypeLocation, s.Location)
	add(TypeTime, s.Time)
	add(TypeCamera, s.Camera)
	add(TypeImage, s.Image)
	return out
}

// Derive turns normalized EXIF into rule-derived labels. Missing inputs
// produce fewer labels, never errors.
func Derive(n exif.NormalizedExif) Set {
	var s Set

	if n.GPS != nil {
		if n.GPS.Complete() {
			s.Location = append(s.Location, "has_gps_coordinates")
		}
		if n.GPS.Altitude != nil {
			s.Location = append(s.Location, "has_altitude")
		}
	}

	if n.DateTime != "" {
		s.Time = append(s.Time, "has_datetime")
		if hour, ok := parseHour(n.DateTime); ok {
			s.Time = append(s.Time, hourBucket(hour))
		}
	}

	if n.Camera.Make != "" {
		s.Camera = append(s.Camera, "camera_make_"+strings.ToLower(n.Camera.Make))
	}
	if n.Camera.Model != "" {
		s.Camera = append(s.Camera, "camera_model_"+strings.ToLower(n.Camera.Model))
	}
	if n.Camera.Lens != "" {
		s.Camera = append(s.Camera, "has_lens_info")
	}

	if n.Image.Width != nil && n.Image.Height != nil && *n.Image.Width > 0 && *n.Image.Height > 0 {
		ratio := float64(*n.Image.Width) / float64(*n.Image.Height)
		switch {
		case ratio > 1.5:
			s.Image = append(s.Image, "landscape")
		case ratio < 0.7:
			s.Image = append(s.Image, "portrait")
		default:
			s.Image = append(s.Image, "square")
		}
	}
	if n.Image.Orientation != nil && *n.Image.Orientation != 0 {
		s.Image = append(s.Image, fmt.Sprintf("orientation_%d", *n.Image.Orientation))
	}

	return s
}

// hourBucket maps an hour of day onto its time-of-day label.
func hourBucket(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "afternoon"
	case hour >= 18 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

var hourLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// parseHour extracts the hour from an ISO-8601 datetime string.
// A parse failure skips only the time-of-day bucket, not has_datetime.
func parseHour(s string) (int, bool) {
	for _, layout := range hourLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), true
		}
	}
	return 0, false
}
