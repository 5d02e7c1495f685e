package classify

import (
	"reflect"
	"testing"

	"github.com/duckgeunpark/IWT/internal/exif"
)

func intPtr(n int) *int { return &n }

func almostEqual(a, b float64) bool {
	diff := a - b
	return diff < 1e-9 && diff > -1e-9
}

func TestClassifyCountryFromCountryText(t *testing.T) {
	cats := Classify(Location{Country: "South Korea"}, exif.NormalizedExif{})

	if cats.Country != "korea" {
		t.Errorf("expected country korea, got %q", cats.Country)
	}
	if cats.City != "" {
		t.Errorf("expected no city, got %q", cats.City)
	}
	if !almostEqual(cats.Confidence, 0.4) {
		t.Errorf("expected confidence 0.4, got %v", cats.Confidence)
	}
}

func TestClassifyCityNormalizesSpelling(t *testing.T) {
	cats := Classify(Location{City: "Seoul-si"}, exif.NormalizedExif{})

	if cats.City != "seoul" {
		t.Errorf("expected city seoul, got %q", cats.City)
	}
	if cats.Country != "korea" {
		t.Errorf("expected city match to pin country korea, got %q", cats.Country)
	}
	if !almostEqual(cats.Confidence, 0.7) {
		t.Errorf("expected confidence 0.7, got %v", cats.Confidence)
	}
}

func TestClassifyCityOverridesCountryMatch(t *testing.T) {
	cats := Classify(Location{Country: "Japan", City: "Seoul"}, exif.NormalizedExif{})

	if cats.Country != "korea" {
		t.Errorf("expected city match to win, got country %q", cats.Country)
	}
	if cats.City != "seoul" {
		t.Errorf("expected city seoul, got %q", cats.City)
	}
}

func TestClassifyCountryOrderFirstMatchWins(t *testing.T) {
	cats := Classify(Location{Country: "Korea and Japan"}, exif.NormalizedExif{})

	if cats.Country != "korea" {
		t.Errorf("expected first table entry to win, got %q", cats.Country)
	}
}

func TestClassifyCaseInsensitiveMatching(t *testing.T) {
	tests := []struct {
		name    string
		loc     Location
		country string
		city    string
	}{
		{"upper country", Location{Country: "KOREA"}, "korea", ""},
		{"mixed city", Location{City: "SeOuL"}, "korea", "seoul"},
		{"korean alias", Location{City: "서울특별시"}, "korea", "서울"},
		{"city inside longer text", Location{City: "Greater London Area"}, "uk", "london"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cats := Classify(tc.loc, exif.NormalizedExif{})
			if cats.Country != tc.country {
				t.Errorf("country: expected %q, got %q", tc.country, cats.Country)
			}
			if cats.City != tc.city {
				t.Errorf("city: expected %q, got %q", tc.city, cats.City)
			}
		})
	}
}

func TestClassifyThemesFromLocationText(t *testing.T) {
	tests := []struct {
		name   string
		loc    Location
		themes []string
	}{
		{
			"palace landmark",
			Location{Country: "Korea", City: "Seoul", Landmark: "Gyeongbokgung Palace"},
			[]string{"culture"},
		},
		{
			"mixed case keyword",
			Location{Landmark: "National MUSEUM of Korea"},
			[]string{"culture"},
		},
		{
			"multiple themes sorted",
			Location{Landmark: "Namdaemun Market Street Food Mall"},
			[]string{"food", "shopping", "urban"},
		},
		{
			"diacritics folded",
			Location{Landmark: "Café de Flore"},
			[]string{"food"},
		},
		{
			"no keyword hit",
			Location{Landmark: "Somewhere"},
			[]string{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cats := Classify(tc.loc, exif.NormalizedExif{})
			if !reflect.DeepEqual(cats.Themes, tc.themes) {
				t.Errorf("expected themes %v, got %v", tc.themes, cats.Themes)
			}
		})
	}
}

func TestClassifyExifThemes(t *testing.T) {
	photo := exif.NormalizedExif{
		Camera: exif.CameraInfo{Make: "Canon", Model: "EOS R5"},
		Image:  exif.ImageInfo{Width: intPtr(8192), Height: intPtr(5464)},
	}

	cats := Classify(Location{}, photo)

	want := []string{"landscape", "photography"}
	if !reflect.DeepEqual(cats.Themes, want) {
		t.Errorf("expected themes %v, got %v", want, cats.Themes)
	}
}

func TestClassifySmallImageIsNotLandscape(t *testing.T) {
	photo := exif.NormalizedExif{
		Image: exif.ImageInfo{Width: intPtr(4000), Height: intPtr(3000)},
	}

	cats := Classify(Location{}, photo)

	if len(cats.Themes) != 0 {
		t.Errorf("expected no themes for a plain 12MP shot, got %v", cats.Themes)
	}
}

func TestClassifyConfidenceWeights(t *testing.T) {
	tests := []struct {
		name       string
		loc        Location
		photo      exif.NormalizedExif
		confidence float64
	}{
		{"nothing matched", Location{Country: "Atlantis"}, exif.NormalizedExif{}, 0.0},
		{"country only", Location{Country: "France"}, exif.NormalizedExif{}, 0.4},
		{"region only", Location{Region: "Gyeonggi-do"}, exif.NormalizedExif{}, 0.1},
		{"one theme only", Location{Landmark: "beach"}, exif.NormalizedExif{}, 0.1},
		{
			"three themes cap at 0.2",
			Location{Landmark: "museum market street"},
			exif.NormalizedExif{},
			0.2,
		},
		{
			"everything",
			Location{Country: "Korea", City: "Seoul", Region: "Seoul-si", Landmark: "Gyeongbokgung Palace"},
			exif.NormalizedExif{Camera: exif.CameraInfo{Make: "Apple"}},
			1.0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cats := Classify(tc.loc, tc.photo)
			if !almostEqual(cats.Confidence, tc.confidence) {
				t.Errorf("expected confidence %v, got %v", tc.confidence, cats.Confidence)
			}
			if cats.Confidence < 0 || cats.Confidence > 1 {
				t.Errorf("confidence %v out of [0, 1]", cats.Confidence)
			}
		})
	}
}

func TestAggregateCaseVariantsShareBucket(t *testing.T) {
	photos := []PhotoCategories{
		{Categories: Classify(Location{Country: "Korea"}, exif.NormalizedExif{})},
		{Categories: Classify(Location{Country: "korea"}, exif.NormalizedExif{})},
	}

	album := Aggregate(photos)

	if want := []string{"korea"}; !reflect.DeepEqual(album.Countries, want) {
		t.Errorf("expected countries %v, got %v", want, album.Countries)
	}
	if album.TotalPhotos != 2 {
		t.Errorf("expected 2 photos, got %d", album.TotalPhotos)
	}
}

func TestAggregateUnions(t *testing.T) {
	photos := []PhotoCategories{
		{Categories: Categories{Country: "korea", City: "seoul", Region: "Seoul-si", Themes: []string{"culture", "food"}}},
		{Categories: Categories{Country: "japan", City: "tokyo", Themes: []string{"culture", "urban"}}},
		{Categories: Categories{Country: "korea", City: "busan", Region: "seoul-si", Themes: []string{}}},
	}

	album := Aggregate(photos)

	if want := []string{"japan", "korea"}; !reflect.DeepEqual(album.Countries, want) {
		t.Errorf("expected countries %v, got %v", want, album.Countries)
	}
	if want := []string{"busan", "seoul", "tokyo"}; !reflect.DeepEqual(album.Cities, want) {
		t.Errorf("expected cities %v, got %v", want, album.Cities)
	}
	if want := []string{"Seoul-si"}; !reflect.DeepEqual(album.Regions, want) {
		t.Errorf("expected case variants of a region to merge, got %v", album.Regions)
	}
	if want := []string{"culture", "food", "urban"}; !reflect.DeepEqual(album.Themes, want) {
		t.Errorf("expected themes %v, got %v", want, album.Themes)
	}
	if album.TotalPhotos != 3 {
		t.Errorf("expected 3 photos, got %d", album.TotalPhotos)
	}
}

func TestAggregateDateRange(t *testing.T) {
	photos := []PhotoCategories{
		{TakenAt: "2024-05-04T20:30:00"},
		{TakenAt: "2024-05-01T08:00:00"},
		{TakenAt: "2024:05:03 10:00:00"},
		{TakenAt: "not a date"},
		{TakenAt: ""},
	}

	album := Aggregate(photos)

	if album.DateRange == nil {
		t.Fatal("expected a date range")
	}
	if album.DateRange.StartDate != "2024-05-01T08:00:00" {
		t.Errorf("expected start 2024-05-01T08:00:00, got %q", album.DateRange.StartDate)
	}
	if album.DateRange.EndDate != "2024-05-04T20:30:00" {
		t.Errorf("expected end 2024-05-04T20:30:00, got %q", album.DateRange.EndDate)
	}
	if album.DateRange.DurationDays != 3 {
		t.Errorf("expected 3 days, got %d", album.DateRange.DurationDays)
	}
}

func TestAggregateNoParseableDates(t *testing.T) {
	photos := []PhotoCategories{
		{TakenAt: "yesterday"},
		{TakenAt: ""},
	}

	album := Aggregate(photos)

	if album.DateRange != nil {
		t.Errorf("expected nil date range, got %+v", album.DateRange)
	}
}

func TestAggregateEmpty(t *testing.T) {
	album := Aggregate(nil)

	if album.TotalPhotos != 0 {
		t.Errorf("expected 0 photos, got %d", album.TotalPhotos)
	}
	if len(album.Countries) != 0 || len(album.Cities) != 0 || len(album.Regions) != 0 || len(album.Themes) != 0 {
		t.Errorf("expected empty unions, got %+v", album)
	}
	if album.DateRange != nil {
		t.Errorf("expected nil date range, got %+v", album.DateRange)
	}
}
