package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

type GeminiProvider struct {
	client      *genai.Client
	model       string
	usageMu     sync.Mutex
	usage       Usage
	inputPrice  float64 // per 1M tokens
	outputPrice float64 // per 1M tokens
}

func NewGeminiProvider(ctx context.Context, apiKey string, pricing RequestPricing) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       geminiModel,
		inputPrice:  pricing.Input,
		outputPrice: pricing.Output,
	}, nil
}

// GetUsage returns a snapshot; requests may run concurrently.
func (p *GeminiProvider) GetUsage() *Usage {
	p.usageMu.Lock()
	defer p.usageMu.Unlock()
	usage := p.usage
	return &usage
}

func (p *GeminiProvider) ResetUsage() {
	p.usageMu.Lock()
	defer p.usageMu.Unlock()
	p.usage = Usage{}
}

func (p *GeminiProvider) trackUsage(inputTokens, outputTokens int32) {
	p.usageMu.Lock()
	defer p.usageMu.Unlock()
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * p.inputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * p.outputPrice
}

func (p *GeminiProvider) Name() string {
	return p.model
}

func (p *GeminiProvider) InferPlace(ctx context.Context, req InferPlaceRequest) (*PlaceInference, error) {
	var place PlaceInference
	if err := p.completeJSON(ctx, inferPlaceCall(req), &place); err != nil {
		return nil, err
	}
	place.Coordinates = &Coordinates{Latitude: req.Latitude, Longitude: req.Longitude}
	return &place, nil
}

func (p *GeminiProvider) ReadImageText(ctx context.Context, req ImageTextRequest) (*TextReading, error) {
	var reading TextReading
	if err := p.completeJSON(ctx, imageTextCall(req), &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

func (p *GeminiProvider) InterpretImageText(ctx context.Context, req InterpretTextRequest) (*TextHints, error) {
	var hints TextHints
	if err := p.completeJSON(ctx, interpretTextCall(req), &hints); err != nil {
		return nil, err
	}
	return &hints, nil
}

func (p *GeminiProvider) EnhanceLocation(ctx context.Context, req EnhanceLocationRequest) (*LocationEnhancement, error) {
	var enhanced LocationEnhancement
	if err := p.completeJSON(ctx, enhanceLocationCall(req), &enhanced); err != nil {
		return nil, err
	}
	return &enhanced, nil
}

func (p *GeminiProvider) SummarizeTrip(ctx context.Context, req TripSummaryRequest) (*TripSummary, error) {
	var summary TripSummary
	if err := p.completeJSON(ctx, tripSummaryCall(req), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (p *GeminiProvider) DescribePhoto(ctx context.Context, req PhotoDescriptionRequest) (*PhotoDescription, error) {
	var desc PhotoDescription
	if err := p.completeJSON(ctx, photoDescriptionCall(req), &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (p *GeminiProvider) GenerateTags(ctx context.Context, req TagRequest) ([]string, error) {
	var tags struct {
		Tags []string `json:"tags"`
	}
	if err := p.completeJSON(ctx, travelTagsCall(req), &tags); err != nil {
		return nil, err
	}
	return tags.Tags, nil
}

func (p *GeminiProvider) RecommendRoute(ctx context.Context, req RouteRequest) (*RouteRecommendation, error) {
	var route RouteRecommendation
	if err := p.completeJSON(ctx, recommendRouteCall(req), &route); err != nil {
		return nil, err
	}
	return &route, nil
}

// completeJSON runs one generation and decodes the JSON response into out.
// Gemini has no system role on this path, so the system prompt rides in
// front of the user content.
func (p *GeminiProvider) completeJSON(ctx context.Context, call callSpec, out any) error {
	parts := []*genai.Part{
		{Text: call.system + "\n\n" + call.user},
	}
	if len(call.image) > 0 {
		resized, err := ResizeImage(call.image, visionMaxEdge)
		if err != nil {
			return fmt.Errorf("failed to resize image: %w", err)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}})
	}

	contents := []*genai.Content{
		{Role: "user", Parts: parts},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(float32(call.temperature)),
		MaxOutputTokens:  int32(call.maxTokens),
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return fmt.Errorf("gemini API error: %w", err)
	}

	if result.UsageMetadata != nil {
		p.trackUsage(result.UsageMetadata.PromptTokenCount, result.UsageMetadata.CandidatesTokenCount)
	}

	content := strings.TrimSpace(result.Text())
	if content == "" {
		return errors.New("no response from Gemini")
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to parse %s JSON: %w (response: %s)", call.label, err, content)
	}

	return nil
}
