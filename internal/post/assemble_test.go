package post

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/duckgeunpark/IWT/internal/ai"
	"github.com/duckgeunpark/IWT/internal/classify"
	"github.com/duckgeunpark/IWT/internal/enrich"
)

type fakeNarrator struct {
	summary    *ai.TripSummary
	summaryErr error
	desc       *ai.PhotoDescription
	descErr    error
	tags       []string
	tagsErr    error

	summarizeCalls int
	describeCalls  int
	tagCalls       int
	lastSummary    ai.TripSummaryRequest
	lastTags       ai.TagRequest
	describedKeys  []string
}

func (f *fakeNarrator) SummarizeTrip(ctx context.Context, req ai.TripSummaryRequest) (*ai.TripSummary, error) {
	f.summarizeCalls++
	f.lastSummary = req
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	out := *f.summary
	return &out, nil
}

func (f *fakeNarrator) DescribePhoto(ctx context.Context, req ai.PhotoDescriptionRequest) (*ai.PhotoDescription, error) {
	f.describeCalls++
	f.describedKeys = append(f.describedKeys, req.FileKey)
	if f.descErr != nil {
		return nil, f.descErr
	}
	out := *f.desc
	return &out, nil
}

func (f *fakeNarrator) GenerateTags(ctx context.Context, req ai.TagRequest) ([]string, error) {
	f.tagCalls++
	f.lastTags = req
	if f.tagsErr != nil {
		return nil, f.tagsErr
	}
	return f.tags, nil
}

func locatedGuess(lat, lng float64, country, city, landmark string) *enrich.LocationGuess {
	return &enrich.LocationGuess{
		Country:   country,
		City:      city,
		Landmark:  landmark,
		Latitude:  &lat,
		Longitude: &lng,
		Source:    enrich.SourceExif,
	}
}

func TestAssembleFullTrip(t *testing.T) {
	photos := []PhotoInput{
		{
			FileKey:    "temp/kyoto.jpg",
			TakenAt:    "2024-05-03T09:00:00",
			Location:   locatedGuess(35.0, 135.0, "Japan", "Kyoto", "Fushimi Inari"),
			Categories: classify.Categories{Country: "japan", City: "kyoto", Themes: []string{"culture"}},
		},
		{
			FileKey:    "temp/osaka.jpg",
			TakenAt:    "2024-05-01T10:00:00",
			Location:   locatedGuess(34.7, 135.5, "Japan", "Osaka", ""),
			Categories: classify.Categories{Country: "japan", City: "osaka", Themes: []string{"food"}},
		},
	}
	fake := &fakeNarrator{
		summary: &ai.TripSummary{
			Title:        "Kansai in Spring",
			Description:  "Five days around Kansai.",
			Tags:         []string{"kansai"},
			RouteSummary: "Osaka to Kyoto.",
		},
		tags: []string{"japan", "kansai", "japan"},
		desc: &ai.PhotoDescription{Description: "A shrine gate.", Tags: []string{"shrine"}},
	}

	enriched, err := NewAssembler(fake).Assemble(context.Background(), photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if enriched.Title != "Kansai in Spring" {
		t.Errorf("expected summary title, got %q", enriched.Title)
	}
	if enriched.Description != "Five days around Kansai." {
		t.Errorf("expected summary description, got %q", enriched.Description)
	}
	if want := []string{"japan", "kansai"}; !reflect.DeepEqual(enriched.Tags, want) {
		t.Errorf("expected deduplicated tags %v, got %v", want, enriched.Tags)
	}
	if want := []string{"culture", "food"}; !reflect.DeepEqual(enriched.Themes, want) {
		t.Errorf("expected themes %v, got %v", want, enriched.Themes)
	}
	if want := []string{"japan"}; !reflect.DeepEqual(enriched.Album.Countries, want) {
		t.Errorf("expected album countries %v, got %v", want, enriched.Album.Countries)
	}

	// The summary sees stops in capture order even though the photos
	// arrived newest first.
	if fake.summarizeCalls != 1 {
		t.Fatalf("expected 1 summary call, got %d", fake.summarizeCalls)
	}
	stops := fake.lastSummary.Stops
	if len(stops) != 2 || stops[0].City != "Osaka" || stops[1].City != "Kyoto" {
		t.Errorf("expected stops sorted by capture time, got %+v", stops)
	}

	// The route keeps submission order.
	if enriched.Route.Type != RouteMultiLocation {
		t.Errorf("expected multi_location route, got %q", enriched.Route.Type)
	}
	if enriched.Route.Narrative != "Osaka to Kyoto." {
		t.Errorf("expected route narrative from the summary, got %q", enriched.Route.Narrative)
	}
	if enriched.Route.Start == nil || enriched.Route.Start.City != "Kyoto" {
		t.Errorf("expected route to start at the first submitted photo, got %+v", enriched.Route.Start)
	}
	if enriched.Route.Duration != "1 day" {
		t.Errorf("expected duration 1 day, got %q", enriched.Route.Duration)
	}

	if len(enriched.PhotoDescriptions) != 2 {
		t.Fatalf("expected 2 captions, got %d", len(enriched.PhotoDescriptions))
	}
	if enriched.PhotoDescriptions[0].FileKey != "temp/kyoto.jpg" {
		t.Errorf("expected captions in submission order, got %q first", enriched.PhotoDescriptions[0].FileKey)
	}
	if enriched.PhotoDescriptions[0].Description != "A shrine gate." {
		t.Errorf("expected caption from provider, got %q", enriched.PhotoDescriptions[0].Description)
	}
}

func TestAssembleNoLocations(t *testing.T) {
	photos := []PhotoInput{
		{FileKey: "temp/one.jpg"},
		{FileKey: "temp/two.jpg", TakenAt: "2024-05-01T10:00:00"},
	}
	fake := &fakeNarrator{}

	enriched, err := NewAssembler(fake).Assemble(context.Background(), photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.summarizeCalls != 0 {
		t.Errorf("expected no summary call without locations, got %d", fake.summarizeCalls)
	}
	if fake.describeCalls != 0 {
		t.Errorf("expected no caption calls without locations, got %d", fake.describeCalls)
	}
	if fake.tagCalls != 1 {
		t.Errorf("expected tag generation to run regardless, got %d calls", fake.tagCalls)
	}

	if enriched.Title != defaultTitle {
		t.Errorf("expected default title, got %q", enriched.Title)
	}
	if enriched.Description != noLocationDescription {
		t.Errorf("expected no-location description, got %q", enriched.Description)
	}
	if enriched.Route.Narrative != noRouteNarrative {
		t.Errorf("expected no-route narrative, got %q", enriched.Route.Narrative)
	}
	if want := []string{"travel", "photos"}; !reflect.DeepEqual(enriched.Tags, want) {
		t.Errorf("expected default tags %v, got %v", want, enriched.Tags)
	}

	if enriched.Route.Type != RouteSingleLocation {
		t.Errorf("expected single_location route, got %q", enriched.Route.Type)
	}
	if len(enriched.Route.Points) != 0 {
		t.Errorf("expected no route points, got %v", enriched.Route.Points)
	}

	for _, caption := range enriched.PhotoDescriptions {
		if caption.Description != photoNoLocationText {
			t.Errorf("expected static caption, got %q", caption.Description)
		}
		if want := []string{"photo"}; !reflect.DeepEqual(caption.Tags, want) {
			t.Errorf("expected photo tag, got %v", caption.Tags)
		}
	}
}

func TestAssembleSummaryFailure(t *testing.T) {
	photos := []PhotoInput{
		{FileKey: "temp/a.jpg", Location: locatedGuess(48.85, 2.29, "France", "Paris", "Eiffel Tower")},
	}
	fake := &fakeNarrator{
		summaryErr: errors.New("llm down"),
		tags:       []string{"paris"},
		desc:       &ai.PhotoDescription{Description: "The tower.", Tags: []string{"tower"}},
	}

	enriched, err := NewAssembler(fake).Assemble(context.Background(), photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if enriched.Title != defaultTitle {
		t.Errorf("expected default title after summary failure, got %q", enriched.Title)
	}
	if enriched.Description != fallbackDescription {
		t.Errorf("expected fallback description, got %q", enriched.Description)
	}
	if enriched.Route.Narrative != fallbackNarrative {
		t.Errorf("expected fallback narrative, got %q", enriched.Route.Narrative)
	}
	if want := []string{"paris"}; !reflect.DeepEqual(enriched.Tags, want) {
		t.Errorf("expected tags unaffected by summary failure, got %v", enriched.Tags)
	}
}

func TestAssembleTagFallback(t *testing.T) {
	photos := []PhotoInput{
		{FileKey: "temp/a.jpg", Location: locatedGuess(34.7, 135.5, "Japan", "Osaka", "")},
		{FileKey: "temp/b.jpg", Location: locatedGuess(35.0, 135.8, "Japan", "Kyoto", "")},
		{FileKey: "temp/c.jpg"},
	}
	fake := &fakeNarrator{
		summary: &ai.TripSummary{Title: "Japan", Description: "d", RouteSummary: "r"},
		tagsErr: errors.New("llm down"),
		desc:    &ai.PhotoDescription{Description: "x", Tags: []string{"y"}},
	}

	enriched, err := NewAssembler(fake).Assemble(context.Background(), photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"travel", "photos", "Japan", "Osaka", "Kyoto"}
	if !reflect.DeepEqual(enriched.Tags, want) {
		t.Errorf("expected basic tags %v, got %v", want, enriched.Tags)
	}
	if len(fake.lastTags.Countries) != 1 || fake.lastTags.Countries[0] != "Japan" {
		t.Errorf("expected distinct countries in tag request, got %v", fake.lastTags.Countries)
	}
}

func TestAssemblePhotoDescriptionFallback(t *testing.T) {
	photos := []PhotoInput{
		{FileKey: "temp/a.jpg", Location: locatedGuess(34.7, 135.5, "Japan", "Osaka", "")},
		{FileKey: "temp/b.jpg", Location: locatedGuess(35.0, 135.8, "Japan", "Kyoto", "")},
	}
	fake := &fakeNarrator{
		summary: &ai.TripSummary{Title: "t", Description: "d", RouteSummary: "r"},
		tags:    []string{"japan"},
		descErr: errors.New("llm down"),
	}

	enriched, err := NewAssembler(fake).Assemble(context.Background(), photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fake.describeCalls != 2 {
		t.Errorf("expected a caption attempt per located photo, got %d", fake.describeCalls)
	}
	for _, caption := range enriched.PhotoDescriptions {
		if caption.Description != photoFallbackText {
			t.Errorf("expected fallback caption, got %q", caption.Description)
		}
		if want := []string{"photo"}; !reflect.DeepEqual(caption.Tags, want) {
			t.Errorf("expected photo tag, got %v", caption.Tags)
		}
	}
}

func TestAssemblePartialSummaryDefaulted(t *testing.T) {
	photos := []PhotoInput{
		{FileKey: "temp/a.jpg", Location: locatedGuess(48.85, 2.29, "France", "Paris", "")},
	}
	fake := &fakeNarrator{
		summary: &ai.TripSummary{RouteSummary: "A short walk."},
		tags:    []string{"paris"},
		desc:    &ai.PhotoDescription{Description: "x", Tags: []string{"y"}},
	}

	enriched, err := NewAssembler(fake).Assemble(context.Background(), photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if enriched.Title != defaultTitle {
		t.Errorf("expected empty title to default, got %q", enriched.Title)
	}
	if enriched.Description != fallbackDescription {
		t.Errorf("expected empty description to default, got %q", enriched.Description)
	}
	if enriched.Route.Narrative != "A short walk." {
		t.Errorf("expected narrative preserved, got %q", enriched.Route.Narrative)
	}
}

func TestAssembleEmptyCaptionDefaulted(t *testing.T) {
	photos := []PhotoInput{
		{FileKey: "temp/a.jpg", Location: locatedGuess(48.85, 2.29, "France", "Paris", "")},
	}
	fake := &fakeNarrator{
		summary: &ai.TripSummary{Title: "t", Description: "d", RouteSummary: "r"},
		tags:    []string{"paris"},
		desc:    &ai.PhotoDescription{},
	}

	enriched, err := NewAssembler(fake).Assemble(context.Background(), photos)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	caption := enriched.PhotoDescriptions[0]
	if caption.Description != photoFallbackText {
		t.Errorf("expected empty caption to default, got %q", caption.Description)
	}
	if want := []string{"photo"}; !reflect.DeepEqual(caption.Tags, want) {
		t.Errorf("expected photo tag, got %v", caption.Tags)
	}
}
