package database

import (
	"context"
)

// PhotoStore persists photos and their per-photo enrichment records.
type PhotoStore interface {
	// CreatePhoto inserts a pending photo row, assigning an ID when unset
	CreatePhoto(ctx context.Context, photo *Photo) error
	// GetPhoto retrieves a photo by ID, returns nil if not found
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	// UpdatePhotoTakenAt records the capture time extracted from the photo file
	UpdatePhotoTakenAt(ctx context.Context, id string, takenAt string) error
	// SaveLocation inserts or overwrites the photo's location
	SaveLocation(ctx context.Context, loc *Location) error
	// GetLocation retrieves a photo's location, returns nil if not found
	GetLocation(ctx context.Context, photoID string) (*Location, error)
	// ReplaceLabels atomically swaps the photo's labels from one source
	// for the given set. Labels from other sources are left alone.
	ReplaceLabels(ctx context.Context, photoID string, source string, labels []PhotoLabel) error
	// GetLabels retrieves all labels attached to a photo
	GetLabels(ctx context.Context, photoID string) ([]PhotoLabel, error)
	// SaveAnalysis appends a model output record for a photo
	SaveAnalysis(ctx context.Context, analysis *LLMAnalysis) error
	// SaveMetadata appends an extracted metadata record for a photo
	SaveMetadata(ctx context.Context, meta *ImageMetadata) error
}

// PostStore persists posts together with their photos, categories and
// recommended route.
type PostStore interface {
	// CreatePost persists the whole aggregate in one transaction.
	// Pending photo rows referenced by ID are attached to the new post;
	// photos without an existing row are inserted.
	CreatePost(ctx context.Context, post *NewPost) (*Post, error)
	// GetPost retrieves a post by ID, returns nil if not found
	GetPost(ctx context.Context, id string) (*Post, error)
	// GetPostPhotos retrieves a post's photos in capture order
	GetPostPhotos(ctx context.Context, postID string) ([]Photo, error)
	// GetPostCategories retrieves a post's category assignments
	GetPostCategories(ctx context.Context, postID string) ([]Category, error)
	// GetRoute retrieves a post's recommended route, returns nil if not found
	GetRoute(ctx context.Context, postID string) (*Route, error)
	// ListPosts returns a page of posts plus the total match count
	ListPosts(ctx context.Context, filter ListPostsFilter) ([]Post, int, error)
	// DeletePost removes a post; photos, categories and the route cascade
	DeletePost(ctx context.Context, id string) error
}
