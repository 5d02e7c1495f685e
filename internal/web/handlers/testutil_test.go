package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/duckgeunpark/IWT/internal/ai"
	"github.com/duckgeunpark/IWT/internal/geocode"
	"github.com/duckgeunpark/IWT/internal/storage"
	"github.com/duckgeunpark/IWT/internal/web/middleware"
)

const testPrincipal = "user-1"

// requestWithPrincipal creates a request authenticated as the test principal
func requestWithPrincipal(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	return req.WithContext(middleware.SetPrincipalInContext(req.Context(), testPrincipal))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonBody encodes a value as a JSON request body
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode request body: %v", err)
	}
	return bytes.NewReader(data)
}

// fakeObjectStore is an in-memory ObjectStore for handler tests
type fakeObjectStore struct {
	objects   map[string][]byte
	infos     map[string]*storage.FileInfo
	finalized map[string]string // temp key -> permanent key
	deleted   []string

	presignErr  error
	finalizeErr error
	downloadErr error
	deleteErr   error
	healthErr   error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects:   make(map[string][]byte),
		infos:     make(map[string]*storage.FileInfo),
		finalized: make(map[string]string),
	}
}

func (f *fakeObjectStore) PresignUpload(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	return url.Parse("https://bucket.test/" + key + "?signature=test")
}

func (f *fakeObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeObjectStore) FileInfo(ctx context.Context, key string) (*storage.FileInfo, error) {
	info, ok := f.infos[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return info, nil
}

func (f *fakeObjectStore) Finalize(ctx context.Context, tempKey, permanentKey string) error {
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized[tempKey] = permanentKey
	if data, ok := f.objects[tempKey]; ok {
		delete(f.objects, tempKey)
		f.objects[permanentKey] = data
	}
	return nil
}

func (f *fakeObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

// Health lets the fake double as the readiness probe's bucket check
func (f *fakeObjectStore) Health(ctx context.Context) error { return f.healthErr }

// fakeGeocoder returns a canned reverse geocoding result
type fakeGeocoder struct {
	place *geocode.Place
	err   error
	calls int
}

func (f *fakeGeocoder) Reverse(ctx context.Context, lat, lng float64) (*geocode.Place, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.place == nil {
		return &geocode.Place{}, nil
	}
	return f.place, nil
}

// fakeAI satisfies every model-facing interface the handlers use.
// Unset results come back empty rather than nil so the happy path
// never dereferences a missing fixture.
type fakeAI struct {
	place       *ai.PlaceInference
	placeErr    error
	reading     *ai.TextReading
	readingErr  error
	hints       *ai.TextHints
	hintsErr    error
	enhanced    *ai.LocationEnhancement
	enhancedErr error
	summary     *ai.TripSummary
	summaryErr  error
	photoDesc   *ai.PhotoDescription
	descErr     error
	tags        []string
	tagsErr     error
	route       *ai.RouteRecommendation
	routeErr    error

	routeCalls   []ai.RouteRequest
	enhanceCalls []ai.EnhanceLocationRequest
}

func (f *fakeAI) InferPlace(ctx context.Context, req ai.InferPlaceRequest) (*ai.PlaceInference, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	if f.place == nil {
		return &ai.PlaceInference{}, nil
	}
	return f.place, nil
}

func (f *fakeAI) ReadImageText(ctx context.Context, req ai.ImageTextRequest) (*ai.TextReading, error) {
	if f.readingErr != nil {
		return nil, f.readingErr
	}
	if f.reading == nil {
		return &ai.TextReading{}, nil
	}
	return f.reading, nil
}

func (f *fakeAI) InterpretImageText(ctx context.Context, req ai.InterpretTextRequest) (*ai.TextHints, error) {
	if f.hintsErr != nil {
		return nil, f.hintsErr
	}
	if f.hints == nil {
		return &ai.TextHints{}, nil
	}
	return f.hints, nil
}

func (f *fakeAI) EnhanceLocation(ctx context.Context, req ai.EnhanceLocationRequest) (*ai.LocationEnhancement, error) {
	f.enhanceCalls = append(f.enhanceCalls, req)
	if f.enhancedErr != nil {
		return nil, f.enhancedErr
	}
	if f.enhanced == nil {
		return &ai.LocationEnhancement{}, nil
	}
	return f.enhanced, nil
}

func (f *fakeAI) SummarizeTrip(ctx context.Context, req ai.TripSummaryRequest) (*ai.TripSummary, error) {
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	if f.summary == nil {
		return &ai.TripSummary{}, nil
	}
	return f.summary, nil
}

func (f *fakeAI) DescribePhoto(ctx context.Context, req ai.PhotoDescriptionRequest) (*ai.PhotoDescription, error) {
	if f.descErr != nil {
		return nil, f.descErr
	}
	if f.photoDesc == nil {
		return &ai.PhotoDescription{}, nil
	}
	return f.photoDesc, nil
}

func (f *fakeAI) GenerateTags(ctx context.Context, req ai.TagRequest) ([]string, error) {
	return f.tags, f.tagsErr
}

func (f *fakeAI) RecommendRoute(ctx context.Context, req ai.RouteRequest) (*ai.RouteRecommendation, error) {
	f.routeCalls = append(f.routeCalls, req)
	if f.routeErr != nil {
		return nil, f.routeErr
	}
	if f.route == nil {
		return &ai.RouteRecommendation{}, nil
	}
	return f.route, nil
}

// fakePinger stubs the readiness probe's database check
type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
