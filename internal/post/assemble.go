// Package post assembles enriched photo batches into shareable posts:
// an LLM-written narrative, trip tags, per-photo captions and a travel
// route reconstructed from coordinates and capture times. Collaborator
// failures degrade to documented defaults; assembly itself never fails.
package post

import (
	"context"
	"log"
	"sort"

	"github.com/duckgeunpark/IWT/internal/ai"
	"github.com/duckgeunpark/IWT/internal/classify"
	"github.com/duckgeunpark/IWT/internal/enrich"
)

const (
	defaultTitle          = "Travel Log"
	noLocationDescription = "A trip recorded in photos."
	fallbackDescription   = "Uploaded travel photos."
	noRouteNarrative      = "No location information to infer a route from."
	fallbackNarrative     = "Travel route analysis failed."
	photoNoLocationText   = "A photo without location information."
	photoFallbackText     = "A photo."
)

func defaultTags() []string { return []string{"travel", "photos"} }

func defaultPhotoTags() []string { return []string{"photo"} }

// PhotoInput is one photo of a submitted batch, already enriched and
// classified. Location is nil when enrichment never produced anything.
type PhotoInput struct {
	FileKey    string
	TakenAt    string
	Location   *enrich.LocationGuess
	Categories classify.Categories
}

// located reports whether the photo carries usable coordinates.
func (p PhotoInput) located() bool {
	return p.Location != nil && p.Location.Latitude != nil && p.Location.Longitude != nil
}

// stop converts a located photo into a trip stop. Only valid when
// located() is true.
func (p PhotoInput) stop() ai.TripStop {
	loc := p.Location
	return ai.TripStop{
		Landmark:  loc.Landmark,
		City:      loc.City,
		Country:   loc.Country,
		TakenAt:   p.TakenAt,
		Latitude:  *loc.Latitude,
		Longitude: *loc.Longitude,
	}
}

// EnrichedPost is the assembled result: narrative, tags, album-level
// categories, the reconstructed route and one caption per photo.
type EnrichedPost struct {
	Title             string                   `json:"title"`
	Description       string                   `json:"description"`
	Tags              []string                 `json:"tags"`
	Themes            []string                 `json:"themes"`
	Album             classify.AlbumCategories `json:"album_categories"`
	Route             RouteSummary             `json:"route"`
	PhotoDescriptions []PhotoDescription       `json:"photo_descriptions"`
}

// PhotoDescription is the generated caption for one photo.
type PhotoDescription struct {
	FileKey     string   `json:"file_key"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Narrator is the slice of the AI provider the assembler needs.
type Narrator interface {
	SummarizeTrip(ctx context.Context, req ai.TripSummaryRequest) (*ai.TripSummary, error)
	DescribePhoto(ctx context.Context, req ai.PhotoDescriptionRequest) (*ai.PhotoDescription, error)
	GenerateTags(ctx context.Context, req ai.TagRequest) ([]string, error)
}

// Assembler builds EnrichedPosts from photo batches.
type Assembler struct {
	ai Narrator
}

func NewAssembler(narrator Narrator) *Assembler {
	return &Assembler{ai: narrator}
}

// Assemble processes the photos in submission order and returns the
// enriched post. LLM failures are absorbed into defaults; the returned
// error is reserved for future hard failures and is currently always
// nil, so callers need not special-case it.
func (a *Assembler) Assemble(ctx context.Context, photos []PhotoInput) (*EnrichedPost, error) {
	summary := a.summarize(ctx, locatedStops(photos))

	route := analyzeRoute(photos)
	route.Narrative = summary.RouteSummary

	perPhoto := make([]classify.PhotoCategories, 0, len(photos))
	for _, p := range photos {
		perPhoto = append(perPhoto, classify.PhotoCategories{Categories: p.Categories, TakenAt: p.TakenAt})
	}
	album := classify.Aggregate(perPhoto)

	return &EnrichedPost{
		Title:             summary.Title,
		Description:       summary.Description,
		Tags:              dedupeOrdered(a.generateTags(ctx, photos)),
		Themes:            album.Themes,
		Album:             album,
		Route:             route,
		PhotoDescriptions: a.describePhotos(ctx, photos),
	}, nil
}

// locatedStops collects the located photos as trip stops, ordered by
// capture time. The time strings sort lexicographically, which is
// chronological for both supported formats; photos without a capture
// time sort first.
func locatedStops(photos []PhotoInput) []ai.TripStop {
	var stops []ai.TripStop
	for _, p := range photos {
		if p.located() {
			stops = append(stops, p.stop())
		}
	}
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].TakenAt < stops[j].TakenAt })
	return stops
}

func (a *Assembler) summarize(ctx context.Context, stops []ai.TripStop) ai.TripSummary {
	if len(stops) == 0 {
		return ai.TripSummary{
			Title:        defaultTitle,
			Description:  noLocationDescription,
			Tags:         defaultTags(),
			RouteSummary: noRouteNarrative,
		}
	}
	summary, err := a.ai.SummarizeTrip(ctx, ai.TripSummaryRequest{Stops: stops})
	if err != nil {
		log.Printf("warning: trip summary failed: %v", err)
		return ai.TripSummary{
			Title:        defaultTitle,
			Description:  fallbackDescription,
			Tags:         defaultTags(),
			RouteSummary: fallbackNarrative,
		}
	}
	if summary.Title == "" {
		summary.Title = defaultTitle
	}
	if summary.Description == "" {
		summary.Description = fallbackDescription
	}
	return *summary
}

// generateTags asks the LLM for trip tags from the visited places. On
// failure the tags fall back to the generic pair plus the distinct
// countries and cities, so a post is never untagged.
func (a *Assembler) generateTags(ctx context.Context, photos []PhotoInput) []string {
	countries := collectDistinct(photos, func(l *enrich.LocationGuess) string { return l.Country })
	cities := collectDistinct(photos, func(l *enrich.LocationGuess) string { return l.City })
	landmarks := collectDistinct(photos, func(l *enrich.LocationGuess) string { return l.Landmark })

	tags, err := a.ai.GenerateTags(ctx, ai.TagRequest{
		Countries: countries,
		Cities:    cities,
		Landmarks: landmarks,
	})
	if err != nil {
		log.Printf("warning: tag generation failed: %v", err)
		return append(append(defaultTags(), countries...), cities...)
	}
	if len(tags) == 0 {
		return defaultTags()
	}
	return tags
}

func (a *Assembler) describePhotos(ctx context.Context, photos []PhotoInput) []PhotoDescription {
	descriptions := make([]PhotoDescription, 0, len(photos))
	for _, p := range photos {
		descriptions = append(descriptions, a.describePhoto(ctx, p))
	}
	return descriptions
}

func (a *Assembler) describePhoto(ctx context.Context, p PhotoInput) PhotoDescription {
	if !p.located() {
		return PhotoDescription{
			FileKey:     p.FileKey,
			Description: photoNoLocationText,
			Tags:        defaultPhotoTags(),
		}
	}
	desc, err := a.ai.DescribePhoto(ctx, ai.PhotoDescriptionRequest{FileKey: p.FileKey, Stop: p.stop()})
	if err != nil {
		log.Printf("warning: photo description failed for %s: %v", p.FileKey, err)
		return PhotoDescription{
			FileKey:     p.FileKey,
			Description: photoFallbackText,
			Tags:        defaultPhotoTags(),
		}
	}
	caption := PhotoDescription{FileKey: p.FileKey, Description: desc.Description, Tags: desc.Tags}
	if caption.Description == "" {
		caption.Description = photoFallbackText
	}
	if len(caption.Tags) == 0 {
		caption.Tags = defaultPhotoTags()
	}
	return caption
}

// collectDistinct gathers one location field across the batch,
// first-seen order, skipping empties and duplicates.
func collectDistinct(photos []PhotoInput, field func(*enrich.LocationGuess) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range photos {
		if p.Location == nil {
			continue
		}
		v := field(p.Location)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func dedupeOrdered(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
