// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/duckgeunpark/IWT/internal/database"
)

// MockPhotoStore is an in-memory implementation of database.PhotoStore
type MockPhotoStore struct {
	mu        sync.RWMutex
	photos    map[string]*database.Photo
	locations map[string]*database.Location
	labels    map[string][]database.PhotoLabel
	analyses  map[string][]database.LLMAnalysis
	metadata  map[string][]database.ImageMetadata
	nextID    int

	// Error injection
	CreatePhotoError   error
	GetPhotoError      error
	UpdateTakenAtError error
	SaveLocationError  error
	GetLocationError   error
	ReplaceLabelsError error
	GetLabelsError     error
	SaveAnalysisError  error
	SaveMetadataError  error
}

// NewMockPhotoStore creates a new mock photo store
func NewMockPhotoStore() *MockPhotoStore {
	return &MockPhotoStore{
		photos:    make(map[string]*database.Photo),
		locations: make(map[string]*database.Location),
		labels:    make(map[string][]database.PhotoLabel),
		analyses:  make(map[string][]database.LLMAnalysis),
		metadata:  make(map[string][]database.ImageMetadata),
	}
}

// AddPhoto adds a photo to the mock store
func (m *MockPhotoStore) AddPhoto(photo database.Photo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[photo.ID] = &photo
}

func (m *MockPhotoStore) newID() string {
	m.nextID++
	return fmt.Sprintf("photo-%d", m.nextID)
}

// CreatePhoto inserts a pending photo row
func (m *MockPhotoStore) CreatePhoto(ctx context.Context, photo *database.Photo) error {
	if m.CreatePhotoError != nil {
		return m.CreatePhotoError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if photo.ID == "" {
		photo.ID = m.newID()
	}
	photo.UploadedAt = time.Now()
	stored := *photo
	m.photos[photo.ID] = &stored
	return nil
}

// GetPhoto retrieves a photo by ID
func (m *MockPhotoStore) GetPhoto(ctx context.Context, id string) (*database.Photo, error) {
	if m.GetPhotoError != nil {
		return nil, m.GetPhotoError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	photo, ok := m.photos[id]
	if !ok {
		return nil, nil
	}
	copied := *photo
	return &copied, nil
}

// UpdatePhotoTakenAt records the capture time
func (m *MockPhotoStore) UpdatePhotoTakenAt(ctx context.Context, id string, takenAt string) error {
	if m.UpdateTakenAtError != nil {
		return m.UpdateTakenAtError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if photo, ok := m.photos[id]; ok {
		photo.TakenAt = takenAt
	}
	return nil
}

// SaveLocation inserts or overwrites the photo's location
func (m *MockPhotoStore) SaveLocation(ctx context.Context, loc *database.Location) error {
	if m.SaveLocationError != nil {
		return m.SaveLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if loc.ID == "" {
		loc.ID = m.newID()
	}
	loc.UpdatedAt = time.Now()
	stored := *loc
	m.locations[loc.PhotoID] = &stored
	return nil
}

// GetLocation retrieves a photo's location
func (m *MockPhotoStore) GetLocation(ctx context.Context, photoID string) (*database.Location, error) {
	if m.GetLocationError != nil {
		return nil, m.GetLocationError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[photoID]
	if !ok {
		return nil, nil
	}
	copied := *loc
	return &copied, nil
}

// ReplaceLabels swaps the photo's labels from one source
func (m *MockPhotoStore) ReplaceLabels(ctx context.Context, photoID string, source string, labels []database.PhotoLabel) error {
	if m.ReplaceLabelsError != nil {
		return m.ReplaceLabelsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []database.PhotoLabel
	for _, l := range m.labels[photoID] {
		if l.Source != source {
			kept = append(kept, l)
		}
	}
	for i := range labels {
		l := labels[i]
		if l.ID == "" {
			l.ID = fmt.Sprintf("label-%d", len(kept)+i+1)
		}
		l.PhotoID = photoID
		if l.Source == "" {
			l.Source = source
		}
		kept = append(kept, l)
	}
	m.labels[photoID] = kept
	return nil
}

// GetLabels retrieves all labels attached to a photo
func (m *MockPhotoStore) GetLabels(ctx context.Context, photoID string) ([]database.PhotoLabel, error) {
	if m.GetLabelsError != nil {
		return nil, m.GetLabelsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.PhotoLabel(nil), m.labels[photoID]...), nil
}

// SaveAnalysis appends a model output record
func (m *MockPhotoStore) SaveAnalysis(ctx context.Context, analysis *database.LLMAnalysis) error {
	if m.SaveAnalysisError != nil {
		return m.SaveAnalysisError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if analysis.ID == "" {
		analysis.ID = m.newID()
	}
	analysis.CreatedAt = time.Now()
	m.analyses[analysis.PhotoID] = append(m.analyses[analysis.PhotoID], *analysis)
	return nil
}

// SaveMetadata appends an extracted metadata record
func (m *MockPhotoStore) SaveMetadata(ctx context.Context, meta *database.ImageMetadata) error {
	if m.SaveMetadataError != nil {
		return m.SaveMetadataError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if meta.ID == "" {
		meta.ID = m.newID()
	}
	meta.CreatedAt = time.Now()
	m.metadata[meta.PhotoID] = append(m.metadata[meta.PhotoID], *meta)
	return nil
}

// Analyses returns the stored analyses for a photo, for assertions.
func (m *MockPhotoStore) Analyses(photoID string) []database.LLMAnalysis {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.LLMAnalysis(nil), m.analyses[photoID]...)
}

// Metadata returns the stored metadata records for a photo, for assertions.
func (m *MockPhotoStore) MetadataRecords(photoID string) []database.ImageMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.ImageMetadata(nil), m.metadata[photoID]...)
}

// MockPostStore is an in-memory implementation of database.PostStore
type MockPostStore struct {
	mu         sync.RWMutex
	posts      map[string]*database.Post
	photos     map[string][]database.Photo
	categories map[string][]database.Category
	routes     map[string]*database.Route
	order      []string
	nextID     int

	// Error injection
	CreatePostError    error
	GetPostError       error
	GetPostPhotosError error
	ListPostsError     error
	DeletePostError    error
}

// NewMockPostStore creates a new mock post store
func NewMockPostStore() *MockPostStore {
	return &MockPostStore{
		posts:      make(map[string]*database.Post),
		photos:     make(map[string][]database.Photo),
		categories: make(map[string][]database.Category),
		routes:     make(map[string]*database.Route),
	}
}

func (m *MockPostStore) newID() string {
	m.nextID++
	return fmt.Sprintf("post-%d", m.nextID)
}

// CreatePost persists the whole aggregate
func (m *MockPostStore) CreatePost(ctx context.Context, newPost *database.NewPost) (*database.Post, error) {
	if m.CreatePostError != nil {
		return nil, m.CreatePostError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post := newPost.Post
	if post.ID == "" {
		post.ID = m.newID()
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.PhotoCount = len(newPost.Photos)

	var photos []database.Photo
	for i := range newPost.Photos {
		photo := newPost.Photos[i].Photo
		if photo.ID == "" {
			photo.ID = fmt.Sprintf("%s-photo-%d", post.ID, i+1)
		}
		photo.PostID = post.ID
		photo.Owner = post.Owner
		photos = append(photos, photo)
	}

	m.posts[post.ID] = &post
	m.photos[post.ID] = photos
	m.categories[post.ID] = append([]database.Category(nil), newPost.Categories...)
	if newPost.Route != nil {
		route := *newPost.Route
		route.PostID = post.ID
		m.routes[post.ID] = &route
	}
	m.order = append(m.order, post.ID)

	created := post
	return &created, nil
}

// GetPost retrieves a post by ID
func (m *MockPostStore) GetPost(ctx context.Context, id string) (*database.Post, error) {
	if m.GetPostError != nil {
		return nil, m.GetPostError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	post, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *post
	return &copied, nil
}

// GetPostPhotos retrieves a post's photos
func (m *MockPostStore) GetPostPhotos(ctx context.Context, postID string) ([]database.Photo, error) {
	if m.GetPostPhotosError != nil {
		return nil, m.GetPostPhotosError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.Photo(nil), m.photos[postID]...), nil
}

// GetPostCategories retrieves a post's category assignments
func (m *MockPostStore) GetPostCategories(ctx context.Context, postID string) ([]database.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.Category(nil), m.categories[postID]...), nil
}

// GetRoute retrieves a post's recommended route
func (m *MockPostStore) GetRoute(ctx context.Context, postID string) (*database.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	route, ok := m.routes[postID]
	if !ok {
		return nil, nil
	}
	copied := *route
	return &copied, nil
}

// ListPosts returns a page of posts plus the total match count
func (m *MockPostStore) ListPosts(ctx context.Context, filter database.ListPostsFilter) ([]database.Post, int, error) {
	if m.ListPostsError != nil {
		return nil, 0, m.ListPostsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first: walk insertion order backwards.
	var matched []database.Post
	for i := len(m.order) - 1; i >= 0; i-- {
		post := m.posts[m.order[i]]
		if post == nil || post.Owner != filter.Owner {
			continue
		}
		if filter.Category != "" && !m.hasCategory(post.ID, filter.Category) {
			continue
		}
		matched = append(matched, *post)
	}

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	skip := filter.Skip
	if skip > len(matched) {
		skip = len(matched)
	}
	end := skip + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

func (m *MockPostStore) hasCategory(postID, name string) bool {
	for _, c := range m.categories[postID] {
		if c.Name == name {
			return true
		}
	}
	return false
}

// DeletePost removes a post and everything attached to it
func (m *MockPostStore) DeletePost(ctx context.Context, id string) error {
	if m.DeletePostError != nil {
		return m.DeletePostError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	delete(m.photos, id)
	delete(m.categories, id)
	delete(m.routes, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Interface compliance checks
var _ database.PhotoStore = (*MockPhotoStore)(nil)
var _ database.PostStore = (*MockPostStore)(nil)
