package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	openAIModel = openai.ChatModelGPT4_1Mini

	// Groq exposes an OpenAI-compatible API, so the same client serves both.
	groqBaseURL = "https://api.groq.com/openai/v1"
	groqModel   = "llama3-8b-8192"
)

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

type OpenAIProvider struct {
	client      *openai.Client
	model       string
	vision      bool
	usageMu     sync.Mutex
	usage       Usage
	inputPrice  float64 // per 1M tokens
	outputPrice float64 // per 1M tokens
}

func NewOpenAIProvider(apiKey string, pricing RequestPricing) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client:      &client,
		model:       openAIModel,
		vision:      true,
		inputPrice:  pricing.Input,
		outputPrice: pricing.Output,
	}
}

// NewGroqProvider returns a provider backed by Groq's OpenAI-compatible API.
// Groq's text models cannot read images, so vision calls fail with ErrNoVision.
func NewGroqProvider(apiKey string, pricing RequestPricing) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(groqBaseURL))
	return &OpenAIProvider{
		client:      &client,
		model:       groqModel,
		vision:      false,
		inputPrice:  pricing.Input,
		outputPrice: pricing.Output,
	}
}

// GetUsage returns a snapshot; requests may run concurrently.
func (p *OpenAIProvider) GetUsage() *Usage {
	p.usageMu.Lock()
	defer p.usageMu.Unlock()
	usage := p.usage
	return &usage
}

func (p *OpenAIProvider) ResetUsage() {
	p.usageMu.Lock()
	defer p.usageMu.Unlock()
	p.usage = Usage{}
}

func (p *OpenAIProvider) trackUsage(inputTokens, outputTokens int64) {
	p.usageMu.Lock()
	defer p.usageMu.Unlock()
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * p.inputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * p.outputPrice
}

func (p *OpenAIProvider) Name() string {
	return p.model
}

func (p *OpenAIProvider) InferPlace(ctx context.Context, req InferPlaceRequest) (*PlaceInference, error) {
	var place PlaceInference
	if err := p.completeJSON(ctx, inferPlaceCall(req), &place); err != nil {
		return nil, err
	}
	place.Coordinates = &Coordinates{Latitude: req.Latitude, Longitude: req.Longitude}
	return &place, nil
}

func (p *OpenAIProvider) ReadImageText(ctx context.Context, req ImageTextRequest) (*TextReading, error) {
	var reading TextReading
	if err := p.completeJSON(ctx, imageTextCall(req), &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

func (p *OpenAIProvider) InterpretImageText(ctx context.Context, req InterpretTextRequest) (*TextHints, error) {
	var hints TextHints
	if err := p.completeJSON(ctx, interpretTextCall(req), &hints); err != nil {
		return nil, err
	}
	return &hints, nil
}

func (p *OpenAIProvider) EnhanceLocation(ctx context.Context, req EnhanceLocationRequest) (*LocationEnhancement, error) {
	var enhanced LocationEnhancement
	if err := p.completeJSON(ctx, enhanceLocationCall(req), &enhanced); err != nil {
		return nil, err
	}
	return &enhanced, nil
}

func (p *OpenAIProvider) SummarizeTrip(ctx context.Context, req TripSummaryRequest) (*TripSummary, error) {
	var summary TripSummary
	if err := p.completeJSON(ctx, tripSummaryCall(req), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (p *OpenAIProvider) DescribePhoto(ctx context.Context, req PhotoDescriptionRequest) (*PhotoDescription, error) {
	var desc PhotoDescription
	if err := p.completeJSON(ctx, photoDescriptionCall(req), &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (p *OpenAIProvider) GenerateTags(ctx context.Context, req TagRequest) ([]string, error) {
	var tags struct {
		Tags []string `json:"tags"`
	}
	if err := p.completeJSON(ctx, travelTagsCall(req), &tags); err != nil {
		return nil, err
	}
	return tags.Tags, nil
}

func (p *OpenAIProvider) RecommendRoute(ctx context.Context, req RouteRequest) (*RouteRecommendation, error) {
	var route RouteRecommendation
	if err := p.completeJSON(ctx, recommendRouteCall(req), &route); err != nil {
		return nil, err
	}
	return &route, nil
}

// completeJSON runs one chat completion and decodes the JSON response into out.
// Responses are not retried: a malformed response is the caller's signal to
// fall back, and the raw text rides along in the error for the logs.
func (p *OpenAIProvider) completeJSON(ctx context.Context, call callSpec, out any) error {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(call.system),
	}

	if len(call.image) == 0 {
		messages = append(messages, openai.UserMessage(call.user))
	} else {
		if !p.vision {
			return ErrNoVision
		}
		dataURL, err := visionDataURL(call.image)
		if err != nil {
			return fmt.Errorf("failed to prepare image: %w", err)
		}
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart(call.user),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    dataURL,
							Detail: "low",
						}),
					},
				},
			},
		})
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(call.temperature),
		MaxTokens:   openai.Int(int64(call.maxTokens)),
	})
	if err != nil {
		return fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return errors.New("no response from OpenAI")
	}

	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		p.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to parse %s JSON: %w (response: %s)", call.label, err, content)
	}

	return nil
}
