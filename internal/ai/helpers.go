package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed prompts/infer_place.txt
var inferPlacePrompt string

//go:embed prompts/image_text.txt
var imageTextPrompt string

//go:embed prompts/interpret_text.txt
var interpretTextPrompt string

//go:embed prompts/enhance_location.txt
var enhanceLocationPrompt string

//go:embed prompts/trip_summary.txt
var tripSummaryPrompt string

//go:embed prompts/photo_description.txt
var photoDescriptionPrompt string

//go:embed prompts/travel_tags.txt
var travelTagsPrompt string

//go:embed prompts/recommend_route.txt
var recommendRoutePrompt string

// callSpec describes one completion call. Both providers execute the same
// specs so the prompt wiring lives here, once.
type callSpec struct {
	label       string // short name used in error messages
	system      string
	user        string
	image       []byte // attached as an inline image when set
	temperature float64
	maxTokens   int
}

func inferPlaceCall(req InferPlaceRequest) callSpec {
	return callSpec{
		label:       "place inference",
		system:      inferPlacePrompt,
		user:        buildInferPlaceContent(req),
		temperature: 0.1,
		maxTokens:   200,
	}
}

func imageTextCall(req ImageTextRequest) callSpec {
	return callSpec{
		label:       "image text",
		system:      imageTextPrompt,
		user:        "Read all text visible in this photo.",
		image:       req.ImageData,
		temperature: 0.1,
		maxTokens:   400,
	}
}

func interpretTextCall(req InterpretTextRequest) callSpec {
	return callSpec{
		label:       "text interpretation",
		system:      interpretTextPrompt,
		user:        buildInterpretTextContent(req),
		temperature: 0.1,
		maxTokens:   300,
	}
}

func enhanceLocationCall(req EnhanceLocationRequest) callSpec {
	return callSpec{
		label:       "location enhancement",
		system:      enhanceLocationPrompt,
		user:        buildEnhanceLocationContent(req),
		temperature: 0.1,
		maxTokens:   400,
	}
}

func tripSummaryCall(req TripSummaryRequest) callSpec {
	return callSpec{
		label:       "trip summary",
		system:      tripSummaryPrompt,
		user:        buildTripSummaryContent(req.Stops),
		temperature: 0.1,
		maxTokens:   500,
	}
}

func photoDescriptionCall(req PhotoDescriptionRequest) callSpec {
	return callSpec{
		label:       "photo description",
		system:      photoDescriptionPrompt,
		user:        buildPhotoDescriptionContent(req),
		temperature: 0.1,
		maxTokens:   300,
	}
}

func travelTagsCall(req TagRequest) callSpec {
	return callSpec{
		label:       "travel tags",
		system:      travelTagsPrompt,
		user:        buildTagContent(req),
		temperature: 0.1,
		maxTokens:   200,
	}
}

func recommendRouteCall(req RouteRequest) callSpec {
	return callSpec{
		label:       "route recommendation",
		system:      recommendRoutePrompt,
		user:        buildRouteContent(req),
		temperature: 0.3,
		maxTokens:   800,
	}
}

func buildInferPlaceContent(req InferPlaceRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Latitude: %.6f\n", req.Latitude)
	fmt.Fprintf(&b, "Longitude: %.6f\n", req.Longitude)
	if req.TakenAt != "" {
		fmt.Fprintf(&b, "Taken at: %s\n", req.TakenAt)
	}
	return b.String()
}

func buildInterpretTextContent(req InterpretTextRequest) string {
	var b strings.Builder
	b.WriteString("Known location so far:\n")
	b.WriteString(promptJSON(req.Known))
	b.WriteString("\n\nText found in the photo:\n")
	b.WriteString(promptJSON(req.Reading))
	b.WriteString("\n")
	return b.String()
}

func buildEnhanceLocationContent(req EnhanceLocationRequest) string {
	var b strings.Builder
	b.WriteString("Location:\n")
	b.WriteString(promptJSON(req.Location))
	b.WriteString("\n\nTraveler context:\n")
	if req.Context != nil {
		b.WriteString(promptJSON(req.Context))
	} else {
		b.WriteString("none")
	}
	b.WriteString("\n")
	return b.String()
}

// buildTripSummaryContent lists the stops in visit order, one per line.
func buildTripSummaryContent(stops []TripStop) string {
	var b strings.Builder
	b.WriteString("Visited locations in order:\n")
	for i, stop := range stops {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatStop(stop))
	}
	return b.String()
}

func buildPhotoDescriptionContent(req PhotoDescriptionRequest) string {
	return fmt.Sprintf("The photo was taken at %s.", formatStop(req.Stop))
}

func buildTagContent(req TagRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Countries: %s\n", strings.Join(req.Countries, ", "))
	fmt.Fprintf(&b, "Cities: %s\n", strings.Join(req.Cities, ", "))
	if len(req.Landmarks) > 0 {
		fmt.Fprintf(&b, "Landmarks: %s\n", strings.Join(req.Landmarks, ", "))
	}
	return b.String()
}

func buildRouteContent(req RouteRequest) string {
	var b strings.Builder
	b.WriteString("Locations to visit:\n")
	b.WriteString(promptJSON(req.Stops))
	b.WriteString("\n\nTraveler preferences:\n")
	if req.Context != nil {
		b.WriteString(promptJSON(req.Context))
	} else {
		b.WriteString("none")
	}
	if req.DurationDays > 0 {
		fmt.Fprintf(&b, "\n\nTrip length: %d days\n", req.DurationDays)
	} else {
		b.WriteString("\n\nTrip length: not decided\n")
	}
	return b.String()
}

// formatStop renders a stop as "landmark, city, country (datetime)", falling
// back to raw coordinates when no names are known.
func formatStop(stop TripStop) string {
	parts := make([]string, 0, 3)
	if stop.Landmark != "" {
		parts = append(parts, stop.Landmark)
	}
	if stop.City != "" {
		parts = append(parts, stop.City)
	}
	if stop.Country != "" {
		parts = append(parts, stop.Country)
	}
	name := strings.Join(parts, ", ")
	if name == "" {
		name = fmt.Sprintf("%.4f, %.4f", stop.Latitude, stop.Longitude)
	}
	if stop.TakenAt != "" {
		name += " (" + stop.TakenAt + ")"
	}
	return name
}

// promptJSON renders v as indented JSON for inclusion in a prompt.
func promptJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
