// Package exif normalizes client-submitted EXIF metadata into a canonical
// shape consumed by the labeling and location-enrichment stages.
package exif

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"
)

// RawExif is the untrusted EXIF payload as submitted by the client.
// Every field is optional and scalar fields accept any JSON type;
// coercion happens in Normalize, never at decode time.
type RawExif struct {
	CameraInfo *RawCameraInfo `json:"camera_info,omitempty"`
	DateTime   any            `json:"datetime,omitempty"`
	GPS        *RawGPS        `json:"gps,omitempty"`
	ImageInfo  *RawImageInfo  `json:"image_info,omitempty"`
}

// RawCameraInfo carries unvalidated camera fields.
type RawCameraInfo struct {
	Make  any `json:"make,omitempty"`
	Model any `json:"model,omitempty"`
	Lens  any `json:"lens,omitempty"`
}

// RawGPS carries unvalidated coordinates.
type RawGPS struct {
	Latitude  any `json:"latitude,omitempty"`
	Longitude any `json:"longitude,omitempty"`
	Altitude  any `json:"altitude,omitempty"`
}

// RawImageInfo carries unvalidated image dimension fields.
type RawImageInfo struct {
	Width       any `json:"width,omitempty"`
	Height      any `json:"height,omitempty"`
	Format      any `json:"format,omitempty"`
	Orientation any `json:"orientation,omitempty"`
}

// NormalizedExif is the canonical form produced by Normalize. It is
// immutable once produced: downstream stages read it, none mutate it.
type NormalizedExif struct {
	Camera   CameraInfo      `json:"camera_info"`
	DateTime string          `json:"datetime,omitempty"`
	GPS      *GPSCoordinates `json:"gps,omitempty"`
	Image    ImageInfo       `json:"image_info"`
}

// CameraInfo holds string-coerced camera fields; absent fields stay empty.
type CameraInfo struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Lens  string `json:"lens,omitempty"`
}

// GPSCoordinates holds validated coordinates. A nil pointer means the
// coordinate was absent or rejected; the whole struct is dropped from
// NormalizedExif when every field is gone.
type GPSCoordinates struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// Complete reports whether both latitude and longitude survived validation.
func (g *GPSCoordinates) Complete() bool {
	return g != nil && g.Latitude != nil && g.Longitude != nil
}

// ImageInfo holds integer-coerced image dimensions.
type ImageInfo struct {
	Width       *int   `json:"width,omitempty"`
	Height      *int   `json:"height,omitempty"`
	Format      string `json:"format,omitempty"`
	Orientation *int   `json:"orientation,omitempty"`
}

// Normalize validates and coerces raw EXIF data into NormalizedExif.
// It never fails: malformed or missing input yields an empty shape and
// out-of-range GPS coordinates are dropped individually with a warning.
func Normalize(raw *RawExif) NormalizedExif {
	if raw == nil {
		return NormalizedExif{}
	}
	return NormalizedExif{
		Camera:   normalizeCamera(raw.CameraInfo),
		DateTime: normalizeDateTime(raw.DateTime),
		GPS:      normalizeGPS(raw.GPS),
		Image:    normalizeImage(raw.ImageInfo),
	}
}

func normalizeCamera(c *RawCameraInfo) CameraInfo {
	if c == nil {
		return CameraInfo{}
	}
	var out CameraInfo
	if s, ok := coerceString(c.Make); ok {
		out.Make = s
	}
	if s, ok := coerceString(c.Model); ok {
		out.Model = s
	}
	if s, ok := coerceString(c.Lens); ok {
		out.Lens = s
	}
	return out
}

// normalizeDateTime rewrites the EXIF form "2023:12:25 14:30:45" as
// ISO-8601 "2023-12-25T14:30:45". Strings in any other shape pass through
// unchanged; strings that look like the EXIF form but do not split cleanly
// are dropped.
func normalizeDateTime(v any) string {
	s, ok := coerceString(v)
	if !ok {
		return ""
	}
	if !strings.Contains(s, ":") || !strings.Contains(s, " ") {
		return s
	}
	parts := strings.Split(s, " ")
	if len(parts) != 2 {
		log.Printf("warning: unparseable EXIF datetime %q", s)
		return ""
	}
	dateSegs := strings.Split(parts[0], ":")
	if len(dateSegs) != 3 {
		log.Printf("warning: unparseable EXIF datetime %q", s)
		return ""
	}
	return dateSegs[0] + "-" + dateSegs[1] + "-" + dateSegs[2] + "T" + parts[1]
}

// normalizeGPS validates each coordinate independently. An unparseable or
// out-of-range latitude drops only the latitude, never the whole block;
// the block itself collapses to nil only when nothing survived.
func normalizeGPS(g *RawGPS) *GPSCoordinates {
	if g == nil {
		return nil
	}
	out := &GPSCoordinates{}
	if g.Latitude != nil {
		if lat, ok := coerceFloat(g.Latitude); ok && lat >= -90 && lat <= 90 {
			out.Latitude = &lat
		} else {
			log.Printf("warning: dropping invalid latitude %v", g.Latitude)
		}
	}
	if g.Longitude != nil {
		if lng, ok := coerceFloat(g.Longitude); ok && lng >= -180 && lng <= 180 {
			out.Longitude = &lng
		} else {
			log.Printf("warning: dropping invalid longitude %v", g.Longitude)
		}
	}
	if g.Altitude != nil {
		// No bound check for altitude.
		if alt, ok := coerceFloat(g.Altitude); ok {
			out.Altitude = &alt
		}
	}
	if out.Latitude == nil && out.Longitude == nil && out.Altitude == nil {
		return nil
	}
	return out
}

func normalizeImage(i *RawImageInfo) ImageInfo {
	if i == nil {
		return ImageInfo{}
	}
	var out ImageInfo
	if w, ok := coerceInt(i.Width); ok {
		out.Width = &w
	}
	if h, ok := coerceInt(i.Height); ok {
		out.Height = &h
	}
	if s, ok := coerceString(i.Format); ok {
		out.Format = s
	}
	if o, ok := coerceInt(i.Orientation); ok {
		out.Orientation = &o
	}
	return out
}

// coerceString renders a JSON scalar as a non-empty string.
func coerceString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, s != ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	case int:
		return strconv.Itoa(s), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// coerceFloat parses a JSON scalar as float64.
func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// coerceInt parses a JSON scalar as int, truncating fractional numbers
// the way a float-to-int conversion does. Fractional strings are rejected.
func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
		return 0, false
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}
