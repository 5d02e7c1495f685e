package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Helper functions for creating test images

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// --- ResizeImage tests ---

func TestResizeImage_NoResizeNeeded(t *testing.T) {
	data := encodeJPEG(createTestImage(100, 100, color.White))

	resized, err := ResizeImage(data, 200)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	_, format, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg format, got %s", format)
	}
}

func TestResizeImage_Landscape(t *testing.T) {
	data := encodeJPEG(createTestImage(2000, 1000, color.White))

	resized, err := ResizeImage(data, 500)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode resized image: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 500 {
		t.Errorf("expected width 500, got %d", bounds.Dx())
	}
	if bounds.Dy() != 250 {
		t.Errorf("expected height 250, got %d", bounds.Dy())
	}
}

func TestResizeImage_Portrait(t *testing.T) {
	data := encodeJPEG(createTestImage(1000, 2000, color.White))

	resized, err := ResizeImage(data, 500)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode resized image: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dy() != 500 {
		t.Errorf("expected height 500, got %d", bounds.Dy())
	}
	if bounds.Dx() != 250 {
		t.Errorf("expected width 250, got %d", bounds.Dx())
	}
}

func TestResizeImage_PNGInput(t *testing.T) {
	data := encodePNG(createTestImage(1200, 600, color.White))

	resized, err := ResizeImage(data, 400)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	_, format, err := image.Decode(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected conversion to jpeg, got %s", format)
	}
}

func TestResizeImage_InvalidData(t *testing.T) {
	if _, err := ResizeImage([]byte("not an image"), 500); err == nil {
		t.Fatal("expected error for invalid image data")
	}
}

func TestVisionDataURL(t *testing.T) {
	data := encodeJPEG(createTestImage(1600, 900, color.White))

	url, err := visionDataURL(data)
	if err != nil {
		t.Fatalf("visionDataURL failed: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("unexpected data URL prefix: %.40s", url)
	}
}

// --- prompt content builders ---

func TestBuildInferPlaceContent(t *testing.T) {
	content := buildInferPlaceContent(InferPlaceRequest{
		Latitude:  37.5665,
		Longitude: 126.978,
		TakenAt:   "2023-12-21T14:30:45",
	})

	for _, want := range []string{"37.566500", "126.978000", "2023-12-21T14:30:45"} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q:\n%s", want, content)
		}
	}

	content = buildInferPlaceContent(InferPlaceRequest{Latitude: 1, Longitude: 2})
	if strings.Contains(content, "Taken at") {
		t.Errorf("content should not mention capture time when unset:\n%s", content)
	}
}

func TestFormatStop(t *testing.T) {
	tests := []struct {
		name string
		stop TripStop
		want string
	}{
		{
			name: "full stop",
			stop: TripStop{Landmark: "Gyeongbokgung", City: "Seoul", Country: "South Korea", TakenAt: "2023-12-21T14:30:45"},
			want: "Gyeongbokgung, Seoul, South Korea (2023-12-21T14:30:45)",
		},
		{
			name: "city and country only",
			stop: TripStop{City: "Paris", Country: "France"},
			want: "Paris, France",
		},
		{
			name: "coordinates fallback",
			stop: TripStop{Latitude: 37.5665, Longitude: 126.978},
			want: "37.5665, 126.9780",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatStop(tt.stop); got != tt.want {
				t.Errorf("formatStop() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildTripSummaryContent(t *testing.T) {
	content := buildTripSummaryContent([]TripStop{
		{City: "Seoul", Country: "South Korea"},
		{City: "Busan", Country: "South Korea"},
	})

	if !strings.Contains(content, "1. Seoul, South Korea") {
		t.Errorf("missing first stop:\n%s", content)
	}
	if !strings.Contains(content, "2. Busan, South Korea") {
		t.Errorf("missing second stop:\n%s", content)
	}
}

func TestBuildRouteContent(t *testing.T) {
	content := buildRouteContent(RouteRequest{Stops: []TripStop{{City: "Seoul"}}})
	if !strings.Contains(content, "Trip length: not decided") {
		t.Errorf("expected undecided trip length:\n%s", content)
	}

	content = buildRouteContent(RouteRequest{Stops: []TripStop{{City: "Seoul"}}, DurationDays: 3})
	if !strings.Contains(content, "Trip length: 3 days") {
		t.Errorf("expected 3 day trip length:\n%s", content)
	}
}

func TestBuildInterpretTextContent(t *testing.T) {
	content := buildInterpretTextContent(InterpretTextRequest{
		Known:   LocationFields{Country: "Japan"},
		Reading: TextReading{ExtractedText: []string{"渋谷駅"}, BusinessNames: []string{"Shibuya Coffee"}},
	})

	for _, want := range []string{"Japan", "渋谷駅", "Shibuya Coffee"} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q:\n%s", want, content)
		}
	}
}

// --- OpenAI provider against a fake API ---

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	return &OpenAIProvider{
		client:      &client,
		model:       "test-model",
		vision:      true,
		inputPrice:  1.0,
		outputPrice: 2.0,
	}
}

func chatResponse(content string, promptTokens, completionTokens int) string {
	body := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func TestOpenAIInferPlace(t *testing.T) {
	var gotPath string
	p := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse(`{"country":"South Korea","city":"Seoul","landmark":"Gyeongbokgung Palace","confidence":0.9}`, 42, 17))
	})

	place, err := p.InferPlace(context.Background(), InferPlaceRequest{
		Latitude:  37.5665,
		Longitude: 126.978,
		TakenAt:   "2023-12-21T14:30:45",
	})
	if err != nil {
		t.Fatalf("InferPlace failed: %v", err)
	}

	if !strings.HasSuffix(gotPath, "/chat/completions") {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if place.Country != "South Korea" || place.City != "Seoul" {
		t.Errorf("unexpected place: %+v", place)
	}
	if place.Confidence == nil || *place.Confidence != 0.9 {
		t.Errorf("unexpected confidence: %v", place.Confidence)
	}
	if place.Coordinates == nil || place.Coordinates.Latitude != 37.5665 || place.Coordinates.Longitude != 126.978 {
		t.Errorf("expected request coordinates echoed back, got %+v", place.Coordinates)
	}

	usage := p.GetUsage()
	if usage.InputTokens != 42 || usage.OutputTokens != 17 {
		t.Errorf("unexpected usage: %+v", usage)
	}
	wantCost := 42.0/1_000_000*1.0 + 17.0/1_000_000*2.0
	if math.Abs(usage.TotalCost-wantCost) > 1e-12 {
		t.Errorf("unexpected cost: got %v, want %v", usage.TotalCost, wantCost)
	}
}

func TestOpenAIGenerateTags(t *testing.T) {
	p := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse(`{"tags":["travel","seoul","palace"]}`, 10, 5))
	})

	tags, err := p.GenerateTags(context.Background(), TagRequest{
		Countries: []string{"South Korea"},
		Cities:    []string{"Seoul"},
	})
	if err != nil {
		t.Fatalf("GenerateTags failed: %v", err)
	}
	if len(tags) != 3 || tags[0] != "travel" {
		t.Errorf("unexpected tags: %v", tags)
	}
}

func TestOpenAIMalformedJSON(t *testing.T) {
	p := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse("here is your answer: Seoul", 10, 5))
	})

	_, err := p.InferPlace(context.Background(), InferPlaceRequest{Latitude: 1, Longitude: 2})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse place inference JSON") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenAIVisionRequestCarriesImage(t *testing.T) {
	var captured struct {
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}

	p := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse(`{"extracted_text":["BUS 143"],"location_clues":[],"business_names":[],"confidence":0.7}`, 20, 10))
	})

	reading, err := p.ReadImageText(context.Background(), ImageTextRequest{
		ImageData: encodeJPEG(createTestImage(1200, 800, color.White)),
	})
	if err != nil {
		t.Fatalf("ReadImageText failed: %v", err)
	}
	if len(reading.ExtractedText) != 1 || reading.ExtractedText[0] != "BUS 143" {
		t.Errorf("unexpected reading: %+v", reading)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(captured.Messages))
	}
	if captured.MaxTokens != 400 {
		t.Errorf("expected max_tokens 400, got %d", captured.MaxTokens)
	}
	if !strings.Contains(string(captured.Messages[1].Content), "data:image/jpeg;base64,") {
		t.Error("user message does not carry an inline image")
	}
}

func TestGroqVisionUnsupported(t *testing.T) {
	p := NewGroqProvider("test-key", RequestPricing{})

	_, err := p.ReadImageText(context.Background(), ImageTextRequest{
		ImageData: encodeJPEG(createTestImage(100, 100, color.White)),
	})
	if !errors.Is(err, ErrNoVision) {
		t.Errorf("expected ErrNoVision, got %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), "groq", "test-key", RequestPricing{})
	if err != nil {
		t.Fatalf("NewProvider(groq) failed: %v", err)
	}
	if p.Name() != groqModel {
		t.Errorf("unexpected model: %s", p.Name())
	}

	if _, err := NewProvider(context.Background(), "anthropic", "test-key", RequestPricing{}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
