// Package enrich turns GPS coordinates, photo text and traveler context
// into a single merged location record for a photo.
package enrich

import (
	"context"
	"log"

	"github.com/duckgeunpark/IWT/internal/ai"
	"github.com/duckgeunpark/IWT/internal/exif"
	"github.com/duckgeunpark/IWT/internal/geocode"
)

// Field sources, ordered roughly by how mechanical the origin is.
const (
	SourceExif   = "exif"
	SourceLLM    = "llm"
	SourceOCR    = "ocr"
	SourceManual = "manual"
)

// defaultConfidence applies to fields guessed by a model when the model
// does not report its own confidence. Geocoded fields carry no default.
const defaultConfidence = 0.8

// LocationGuess is one accumulated location assertion for a photo.
// Geo fields are filled once and never overwritten; the travel context
// fields are additive and never touch the geo fields.
type LocationGuess struct {
	Country    string   `json:"country,omitempty"`
	City       string   `json:"city,omitempty"`
	Region     string   `json:"region,omitempty"`
	Landmark   string   `json:"landmark,omitempty"`
	Address    string   `json:"address,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Source     string   `json:"source,omitempty"`

	Timezone   string `json:"timezone,omitempty"`
	Language   string `json:"language,omitempty"`
	Currency   string `json:"currency,omitempty"`
	BestSeason string `json:"best_season,omitempty"`
}

// Empty reports whether the guess carries no location fields at all.
func (g LocationGuess) Empty() bool {
	return g == LocationGuess{}
}

// Merge fills every unset field of dst from src and returns the result.
// Fields already set on dst always win, which makes the operation
// idempotent: merging the same src twice changes nothing the second time.
// Every enrichment step goes through this one function.
func Merge(dst, src LocationGuess) LocationGuess {
	fillString(&dst.Country, src.Country)
	fillString(&dst.City, src.City)
	fillString(&dst.Region, src.Region)
	fillString(&dst.Landmark, src.Landmark)
	fillString(&dst.Address, src.Address)
	fillFloat(&dst.Latitude, src.Latitude)
	fillFloat(&dst.Longitude, src.Longitude)
	fillFloat(&dst.Confidence, src.Confidence)
	fillString(&dst.Source, src.Source)
	fillString(&dst.Timezone, src.Timezone)
	fillString(&dst.Language, src.Language)
	fillString(&dst.Currency, src.Currency)
	fillString(&dst.BestSeason, src.BestSeason)
	return dst
}

func fillString(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

func fillFloat(dst **float64, src *float64) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

// Request carries everything one enrichment pass may draw on.
type Request struct {
	GPS         *exif.GPSCoordinates
	DateTime    string // normalized capture time, optional
	ImageRef    string // object storage key, read only for text extraction
	RunOCR      bool   // force the text extraction pass even with GPS
	UserContext *ai.UserContext
	Known       LocationGuess // fields already set, e.g. by the user
}

// Result is the merged guess plus the raw sub-results for callers that
// want to inspect or persist them.
type Result struct {
	Merged   LocationGuess
	Geocode  *geocode.Place
	Place    *ai.PlaceInference
	Reading  *ai.TextReading
	Hints    *ai.TextHints
	Enhanced *ai.LocationEnhancement
}

// Geocoder resolves coordinates to an address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (*geocode.Place, error)
}

// Analyst is the slice of the AI provider the orchestrator needs.
type Analyst interface {
	InferPlace(ctx context.Context, req ai.InferPlaceRequest) (*ai.PlaceInference, error)
	ReadImageText(ctx context.Context, req ai.ImageTextRequest) (*ai.TextReading, error)
	InterpretImageText(ctx context.Context, req ai.InterpretTextRequest) (*ai.TextHints, error)
	EnhanceLocation(ctx context.Context, req ai.EnhanceLocationRequest) (*ai.LocationEnhancement, error)
}

// Downloader fetches photo bytes for text extraction.
type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// Orchestrator runs the enrichment steps against injected collaborators.
type Orchestrator struct {
	geocoder Geocoder
	analyst  Analyst
	storage  Downloader // optional; without it the text pass is skipped
}

func NewOrchestrator(geocoder Geocoder, analyst Analyst, storage Downloader) *Orchestrator {
	return &Orchestrator{
		geocoder: geocoder,
		analyst:  analyst,
		storage:  storage,
	}
}

// EnrichLocation runs every applicable step and merges their contributions.
// Steps are independent: a failing collaborator is logged and contributes
// nothing, so the caller always gets back at least the input it supplied.
func (o *Orchestrator) EnrichLocation(ctx context.Context, req Request) Result {
	result := Result{Merged: req.Known}

	hasGPS := req.GPS.Complete()
	if hasGPS {
		lat, lng := *req.GPS.Latitude, *req.GPS.Longitude
		result.Merged = Merge(result.Merged, LocationGuess{
			Latitude:  &lat,
			Longitude: &lng,
			Source:    SourceExif,
		})
		o.applyGeocode(ctx, lat, lng, &result)
		o.applyPlaceInference(ctx, lat, lng, req.DateTime, &result)
	}

	if req.RunOCR || (req.ImageRef != "" && !hasGPS) {
		o.applyImageText(ctx, req.ImageRef, &result)
	}

	if req.UserContext != nil {
		o.applyEnhancement(ctx, req.UserContext, &result)
	}

	return result
}

func (o *Orchestrator) applyGeocode(ctx context.Context, lat, lng float64, result *Result) {
	place, err := o.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		log.Printf("warning: reverse geocoding failed: %v", err)
		return
	}

	result.Geocode = place
	result.Merged = Merge(result.Merged, LocationGuess{
		Country: place.Country,
		City:    place.City,
		Region:  place.State,
		Address: place.FullAddress,
		Source:  SourceExif,
	})
}

func (o *Orchestrator) applyPlaceInference(ctx context.Context, lat, lng float64, takenAt string, result *Result) {
	place, err := o.analyst.InferPlace(ctx, ai.InferPlaceRequest{
		Latitude:  lat,
		Longitude: lng,
		TakenAt:   takenAt,
	})
	if err != nil {
		log.Printf("warning: place inference failed: %v", err)
		return
	}

	result.Place = place
	contribution := LocationGuess{
		Country:    place.Country,
		City:       place.City,
		Region:     place.Region,
		Landmark:   place.Landmark,
		Confidence: confidenceOrDefault(place.Confidence),
		Source:     SourceLLM,
	}
	if place.Coordinates != nil {
		pLat, pLng := place.Coordinates.Latitude, place.Coordinates.Longitude
		contribution.Latitude = &pLat
		contribution.Longitude = &pLng
	}
	result.Merged = Merge(result.Merged, contribution)
}

// applyImageText is the two-stage text pass: read the text visible in the
// photo, then have the model interpret it into location hints. A business
// name stands in for the landmark when no landmark is named.
func (o *Orchestrator) applyImageText(ctx context.Context, imageRef string, result *Result) {
	if imageRef == "" {
		return
	}
	if o.storage == nil {
		log.Printf("warning: text extraction skipped for %s: no object storage configured", imageRef)
		return
	}

	data, err := o.storage.Download(ctx, imageRef)
	if err != nil {
		log.Printf("warning: failed to download %s for text extraction: %v", imageRef, err)
		return
	}

	reading, err := o.analyst.ReadImageText(ctx, ai.ImageTextRequest{ImageData: data})
	if err != nil {
		log.Printf("warning: text extraction failed for %s: %v", imageRef, err)
		return
	}
	result.Reading = reading
	if reading.Empty() {
		return
	}

	hints, err := o.analyst.InterpretImageText(ctx, ai.InterpretTextRequest{
		Known: ai.LocationFields{
			Country:  result.Merged.Country,
			City:     result.Merged.City,
			Region:   result.Merged.Region,
			Landmark: result.Merged.Landmark,
		},
		Reading: *reading,
	})
	if err != nil {
		log.Printf("warning: text interpretation failed for %s: %v", imageRef, err)
		return
	}

	result.Hints = hints
	landmark := hints.Landmark
	if landmark == "" {
		landmark = hints.BusinessName
	}
	result.Merged = Merge(result.Merged, LocationGuess{
		Country:    hints.Country,
		City:       hints.City,
		Region:     hints.Region,
		Landmark:   landmark,
		Confidence: confidenceOrDefault(hints.Confidence),
		Source:     SourceOCR,
	})
}

func (o *Orchestrator) applyEnhancement(ctx context.Context, userCtx *ai.UserContext, result *Result) {
	enhanced, err := o.analyst.EnhanceLocation(ctx, ai.EnhanceLocationRequest{
		Location: ai.LocationFields{
			Country:  result.Merged.Country,
			City:     result.Merged.City,
			Region:   result.Merged.Region,
			Landmark: result.Merged.Landmark,
		},
		Context: userCtx,
	})
	if err != nil {
		log.Printf("warning: location enhancement failed: %v", err)
		return
	}

	result.Enhanced = enhanced
	contribution := LocationGuess{
		Country:    enhanced.Country,
		City:       enhanced.City,
		Region:     enhanced.Region,
		Landmark:   enhanced.Landmark,
		Confidence: confidenceOrDefault(enhanced.Confidence),
		Source:     SourceLLM,
	}
	if enhanced.Details != nil {
		contribution.Timezone = enhanced.Details.Timezone
		contribution.Language = enhanced.Details.Language
		contribution.Currency = enhanced.Details.Currency
		contribution.BestSeason = enhanced.Details.BestTimeToVisit
	}
	result.Merged = Merge(result.Merged, contribution)
}

func confidenceOrDefault(c *float64) *float64 {
	if c != nil {
		return c
	}
	v := defaultConfidence
	return &v
}
