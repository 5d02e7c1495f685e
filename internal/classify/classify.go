// Package classify buckets photos into country, city and theme
// categories from their enriched location fields and EXIF hints, and
// aggregates the per-photo results into album-level summaries.
//
// Matching runs against static lexicons embedded at build time. The
// country table is ordered and the first hit wins, so adding entries
// changes behavior for ambiguous inputs.
package classify

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/duckgeunpark/IWT/internal/exif"
)

// landscapePixels is the pixel count above which a photo is assumed to
// be a deliberate landscape shot rather than a snapshot.
const landscapePixels = 20_000_000

//go:embed lexicons.yaml
var lexiconYAML []byte

// Location is the slice of an enrichment result the classifier reads.
type Location struct {
	Country  string
	City     string
	Region   string
	Landmark string
}

// Categories is the classification of a single photo. Country and City
// carry the lexicon's spelling, not the input's, so case and language
// variants of the same place land in the same bucket.
type Categories struct {
	Country    string   `json:"country,omitempty"`
	City       string   `json:"city,omitempty"`
	Region     string   `json:"region,omitempty"`
	Themes     []string `json:"themes"`
	Confidence float64  `json:"confidence"`
}

// PhotoCategories pairs one photo's classification with its capture
// time for album-level aggregation.
type PhotoCategories struct {
	Categories Categories
	TakenAt    string
}

// AlbumCategories summarizes the classifications of an album's photos.
type AlbumCategories struct {
	Countries   []string   `json:"countries"`
	Cities      []string   `json:"cities"`
	Regions     []string   `json:"regions"`
	Themes      []string   `json:"themes"`
	TotalPhotos int        `json:"total_photos"`
	DateRange   *DateRange `json:"date_range,omitempty"`
}

// DateRange spans the earliest and latest capture times in an album.
type DateRange struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DurationDays int    `json:"duration_days"`
}

type lexicon struct {
	Countries []countryEntry `yaml:"countries"`
	Themes    []themeEntry   `yaml:"themes"`
}

type countryEntry struct {
	Name   string   `yaml:"name"`
	Cities []string `yaml:"cities"`
}

type themeEntry struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

var lexicons = mustParseLexicons()

func mustParseLexicons() lexicon {
	var l lexicon
	if err := yaml.Unmarshal(lexiconYAML, &l); err != nil {
		panic(fmt.Sprintf("classify: embedded lexicons.yaml is invalid: %v", err))
	}
	return l
}

// Classify derives country, city, region and theme categories for one
// photo. Location text matching is case-insensitive, substring-based
// and ignores diacritics; a matched city also pins the country, even
// over an earlier country match. Unmatched fields stay empty and only
// lower the confidence score.
func Classify(loc Location, photo exif.NormalizedExif) Categories {
	cats := Categories{Themes: []string{}}

	country := fold(loc.Country)
	for _, entry := range lexicons.Countries {
		if strings.Contains(country, entry.Name) || containsAny(country, entry.Cities) {
			cats.Country = entry.Name
			break
		}
	}

	city := fold(loc.City)
cities:
	for _, entry := range lexicons.Countries {
		for _, alias := range entry.Cities {
			if strings.Contains(city, fold(alias)) {
				cats.City = alias
				cats.Country = entry.Name
				break cities
			}
		}
	}

	cats.Region = loc.Region

	themes := suggestThemes(loc)
	if photo.Camera.Make != "" || photo.Camera.Model != "" {
		themes = append(themes, "photography")
	}
	if w, h := photo.Image.Width, photo.Image.Height; w != nil && h != nil && (*w)*(*h) > landscapePixels {
		themes = append(themes, "landscape")
	}
	cats.Themes = dedupeSorted(themes)

	cats.Confidence = confidence(cats)
	return cats
}

// suggestThemes matches the concatenated location text against the
// theme lexicon. A theme needs only one of its keywords to appear.
func suggestThemes(loc Location) []string {
	text := fold(loc.Country + " " + loc.City + " " + loc.Landmark)
	var themes []string
	for _, theme := range lexicons.Themes {
		if containsAny(text, theme.Keywords) {
			themes = append(themes, theme.Name)
		}
	}
	return themes
}

// confidence scores how much of the photo could be classified. Country
// matches weigh most, then city, then themes (capped at two) and
// region. The result never leaves [0, 1].
func confidence(cats Categories) float64 {
	score := 0.0
	if cats.Country != "" {
		score += 0.4
	}
	if cats.City != "" {
		score += 0.3
	}
	if n := len(cats.Themes); n > 0 {
		score += math.Min(0.2, 0.1*float64(n))
	}
	if cats.Region != "" {
		score += 0.1
	}
	return math.Min(1.0, score)
}

// Aggregate merges per-photo classifications into album categories.
// Every distinct country, city, region and theme is collected once,
// regardless of how many photos carry it. The date range covers the
// parseable capture times and is nil when there are none.
func Aggregate(photos []PhotoCategories) AlbumCategories {
	countries := newUnion()
	cities := newUnion()
	regions := newUnion()
	themes := newUnion()
	for _, p := range photos {
		countries.add(p.Categories.Country)
		cities.add(p.Categories.City)
		regions.add(p.Categories.Region)
		for _, theme := range p.Categories.Themes {
			themes.add(theme)
		}
	}
	return AlbumCategories{
		Countries:   countries.sorted(),
		Cities:      cities.sorted(),
		Regions:     regions.sorted(),
		Themes:      themes.sorted(),
		TotalPhotos: len(photos),
		DateRange:   dateRange(photos),
	}
}

// takenAtLayouts covers the pipeline's normalized form and the raw
// EXIF form, for photos that skipped normalization.
var takenAtLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006:01:02 15:04:05",
}

func dateRange(photos []PhotoCategories) *DateRange {
	var times []time.Time
	for _, p := range photos {
		if ts, ok := parseTakenAt(p.TakenAt); ok {
			times = append(times, ts)
		}
	}
	if len(times) == 0 {
		return nil
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	first, last := times[0], times[len(times)-1]
	return &DateRange{
		StartDate:    first.Format("2006-01-02T15:04:05"),
		EndDate:      last.Format("2006-01-02T15:04:05"),
		DurationDays: int(last.Sub(first).Hours() / 24),
	}
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

// union collects strings case-insensitively, keeping the first
// spelling seen for each.
type union struct {
	seen  map[string]bool
	items []string
}

func newUnion() *union {
	return &union{seen: map[string]bool{}}
}

func (u *union) add(s string) {
	if s == "" {
		return
	}
	key := fold(s)
	if u.seen[key] {
		return
	}
	u.seen[key] = true
	u.items = append(u.items, s)
}

func (u *union) sorted() []string {
	if u.items == nil {
		return []string{}
	}
	sort.Strings(u.items)
	return u.items
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, fold(keyword)) {
			return true
		}
	}
	return false
}

func dedupeSorted(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := []string{}
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// fold lowercases s and strips diacritical marks so "Córdoba" matches
// a lexicon entry spelled "cordoba".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}
