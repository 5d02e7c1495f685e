package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoVision is returned when a provider's model cannot read images.
var ErrNoVision = errors.New("ai: provider does not support image input")

// Provider defines the interface for LLM enrichment backends.
type Provider interface {
	Name() string

	// InferPlace estimates a place from GPS coordinates.
	InferPlace(ctx context.Context, req InferPlaceRequest) (*PlaceInference, error)
	// ReadImageText extracts the text visible in a photo (signs, menus, storefronts).
	ReadImageText(ctx context.Context, req ImageTextRequest) (*TextReading, error)
	// InterpretImageText turns text extracted from a photo into location hints.
	InterpretImageText(ctx context.Context, req InterpretTextRequest) (*TextHints, error)
	// EnhanceLocation refines a known location and adds practical travel details.
	EnhanceLocation(ctx context.Context, req EnhanceLocationRequest) (*LocationEnhancement, error)
	// SummarizeTrip writes a title, description and tags for an ordered set of stops.
	SummarizeTrip(ctx context.Context, req TripSummaryRequest) (*TripSummary, error)
	// DescribePhoto writes a short description and tags for a single photo.
	DescribePhoto(ctx context.Context, req PhotoDescriptionRequest) (*PhotoDescription, error)
	// GenerateTags produces travel tags from the places a trip visited.
	GenerateTags(ctx context.Context, req TagRequest) ([]string, error)
	// RecommendRoute orders the given stops into a travel route.
	RecommendRoute(ctx context.Context, req RouteRequest) (*RouteRecommendation, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// NewProvider builds the named provider. Supported names: "groq", "openai", "gemini".
func NewProvider(ctx context.Context, name, apiKey string, pricing RequestPricing) (Provider, error) {
	switch name {
	case "groq":
		return NewGroqProvider(apiKey, pricing), nil
	case "openai":
		return NewOpenAIProvider(apiKey, pricing), nil
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, pricing)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q", name)
	}
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// InferPlaceRequest asks for the place behind a GPS position.
type InferPlaceRequest struct {
	Latitude  float64
	Longitude float64
	TakenAt   string // normalized capture time, optional
}

// PlaceInference is the model's guess for a GPS position.
type PlaceInference struct {
	Country     string       `json:"country"`
	City        string       `json:"city"`
	Region      string       `json:"region,omitempty"`
	Landmark    string       `json:"landmark,omitempty"`
	Confidence  *float64     `json:"confidence,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// ImageTextRequest asks for the text visible in a photo.
type ImageTextRequest struct {
	ImageData []byte
}

// TextReading is the text a vision model found in a photo.
type TextReading struct {
	ExtractedText []string `json:"extracted_text"`
	LocationClues []string `json:"location_clues"`
	BusinessNames []string `json:"business_names"`
	Confidence    *float64 `json:"confidence,omitempty"`
}

// Empty reports whether the reading carries no usable text.
func (r *TextReading) Empty() bool {
	return r == nil || (len(r.ExtractedText) == 0 && len(r.LocationClues) == 0 && len(r.BusinessNames) == 0)
}

// LocationFields are the location attributes the pipeline accumulates.
type LocationFields struct {
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Landmark string `json:"landmark,omitempty"`
}

// InterpretTextRequest asks where a photo was taken given the text found in it.
type InterpretTextRequest struct {
	Known   LocationFields
	Reading TextReading
}

// TextHints are location attributes inferred from text in a photo.
type TextHints struct {
	Country      string   `json:"country"`
	City         string   `json:"city"`
	Region       string   `json:"region,omitempty"`
	Landmark     string   `json:"landmark,omitempty"`
	BusinessName string   `json:"business_name,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	OCREnhanced  bool     `json:"ocr_enhanced"`
}

// UserContext carries traveler preferences supplied with an enrichment request.
type UserContext struct {
	TripDurationDays int      `json:"trip_duration_days,omitempty"`
	TravelStyle      string   `json:"travel_style,omitempty"`
	Preferences      []string `json:"preferences,omitempty"`
	Season           string   `json:"season,omitempty"`
}

// EnhanceLocationRequest asks the model to refine an already known location.
type EnhanceLocationRequest struct {
	Location LocationFields
	Context  *UserContext
}

// EnhancedDetails are practical travel facts about a place.
type EnhancedDetails struct {
	Timezone        string `json:"timezone,omitempty"`
	Language        string `json:"language,omitempty"`
	Currency        string `json:"currency,omitempty"`
	BestTimeToVisit string `json:"best_time_to_visit,omitempty"`
}

// LocationEnhancement is the refined location plus travel details.
type LocationEnhancement struct {
	Country    string           `json:"country"`
	City       string           `json:"city"`
	Region     string           `json:"region,omitempty"`
	Landmark   string           `json:"landmark,omitempty"`
	Confidence *float64         `json:"confidence,omitempty"`
	Details    *EnhancedDetails `json:"enhanced_details,omitempty"`
}

// TripStop is one located, timestamped point of a trip.
type TripStop struct {
	Landmark  string  `json:"landmark,omitempty"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
	TakenAt   string  `json:"datetime,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TripSummaryRequest asks for a narrative over the visited stops.
type TripSummaryRequest struct {
	Stops []TripStop
}

// TripSummary is the model's narrative for a trip.
type TripSummary struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	RouteSummary string   `json:"route_summary"`
}

// PhotoDescriptionRequest asks for a caption for one photo.
type PhotoDescriptionRequest struct {
	FileKey string
	Stop    TripStop
}

// PhotoDescription is a short caption and tags for one photo.
type PhotoDescription struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// TagRequest asks for travel tags covering the visited places.
type TagRequest struct {
	Countries []string
	Cities    []string
	Landmarks []string
}

// RouteRequest asks for a planned route through the given stops.
type RouteRequest struct {
	Stops        []TripStop
	Context      *UserContext
	DurationDays int
}

// RouteStop is one ordered stop of a recommended route.
type RouteStop struct {
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	VisitOrder  int     `json:"visit_order"`
	StayDays    int     `json:"stay_days"`
	Description string  `json:"description"`
}

// RouteRecommendation is a planned route over the requested stops.
type RouteRecommendation struct {
	RouteName          string      `json:"route_name"`
	Description        string      `json:"description"`
	DurationDays       int         `json:"duration_days"`
	TotalEstimatedCost string      `json:"total_estimated_cost"`
	BestSeason         string      `json:"best_season"`
	DifficultyLevel    string      `json:"difficulty_level"`
	Locations          []RouteStop `json:"locations"`
}
