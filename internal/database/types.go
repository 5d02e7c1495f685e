package database

import (
	"encoding/json"
	"time"
)

// Post is a published travel album.
type Post struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	PhotoCount  int       `json:"photo_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Photo is one uploaded image file. PostID stays empty while the photo
// is pending, i.e. uploaded but not yet attached to a post.
type Photo struct {
	ID          string    `json:"id"`
	PostID      string    `json:"post_id,omitempty"`
	Owner       string    `json:"owner"`
	FileKey     string    `json:"file_key"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type,omitempty"`
	TakenAt     string    `json:"taken_at,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Location is a photo's enriched location. At most one row per photo;
// saving again overwrites the previous value.
type Location struct {
	ID         string    `json:"id"`
	PhotoID    string    `json:"photo_id"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	Country    string    `json:"country,omitempty"`
	City       string    `json:"city,omitempty"`
	Region     string    `json:"region,omitempty"`
	Landmark   string    `json:"landmark,omitempty"`
	Address    string    `json:"address,omitempty"`
	Source     string    `json:"source,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PhotoLabel is one categorical tag attached to a photo.
type PhotoLabel struct {
	ID         string    `json:"id"`
	PhotoID    string    `json:"photo_id"`
	Type       string    `json:"label_type"`
	Name       string    `json:"label_name"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// Analysis kinds stored in llm_analyses.
const (
	AnalysisPlaceInference      = "place_inference"
	AnalysisTextReading         = "text_reading"
	AnalysisTextHints           = "text_hints"
	AnalysisLocationEnhancement = "location_enhancement"
	AnalysisPhotoDescription    = "photo_description"
)

// LLMAnalysis is a stored model output for one photo. Payload keeps the
// provider response verbatim so reprocessing never needs another call.
type LLMAnalysis struct {
	ID        string          `json:"id"`
	PhotoID   string          `json:"photo_id"`
	Kind      string          `json:"kind"`
	Provider  string          `json:"provider,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Metadata kinds stored in image_metadata.
const (
	MetadataExif = "exif"
)

// ImageMetadata is a raw metadata blob extracted from a photo file.
type ImageMetadata struct {
	ID        string          `json:"id"`
	PhotoID   string          `json:"photo_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Category kinds.
const (
	CategoryCountry = "country"
	CategoryCity    = "city"
	CategoryTheme   = "theme"
)

// Category is an album-level bucket a post belongs to.
type Category struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Route is the recommended visiting route attached to a post. Payload
// holds the full route structure as JSON.
type Route struct {
	ID        string          `json:"id"`
	PostID    string          `json:"post_id"`
	Name      string          `json:"name,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewPhoto bundles a photo with its per-photo enrichment records for
// transactional persistence. A photo that already exists as a pending
// row is attached in place; anything else is inserted.
type NewPhoto struct {
	Photo    Photo
	Location *Location
	Labels   []PhotoLabel
	Analyses []LLMAnalysis
	Metadata []ImageMetadata
}

// NewPost bundles everything a post creation persists in a single
// transaction.
type NewPost struct {
	Post       Post
	Photos     []NewPhoto
	Categories []Category
	Route      *Route
}

// ListPostsFilter narrows and pages post listings. Owner is required;
// Category matches any category name attached to the post.
type ListPostsFilter struct {
	Owner    string
	Category string
	Skip     int
	Limit    int
}
