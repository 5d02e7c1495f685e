package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Post mirrors a row of the legacy posts table. Tags arrive decoded
// from the JSON text column; Route carries the inline recommended_route
// JSON when the post has no row in recommended_routes.
type Post struct {
	ID          int64
	Title       string
	Description string
	Tags        []string
	UserID      string
	Route       json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Photo mirrors a row of the legacy photos table.
type Photo struct {
	ID          int64
	PostID      int64
	FileKey     string
	FileName    string
	FileSize    int64
	ContentType string
	UploadTime  time.Time
	ExifData    json.RawMessage
}

// Location mirrors a row of the legacy locations table.
type Location struct {
	PhotoID    int64
	Country    string
	City       string
	Region     string
	Landmark   string
	Address    string
	Latitude   *float64
	Longitude  *float64
	Confidence *float64
	Source     string
}

// Label mirrors a row of the legacy photo_labels table.
type Label struct {
	PhotoID    int64
	Type       string
	Name       string
	Confidence *float64
	Source     string
}

// Analysis mirrors a row of the legacy llm_analyses table.
type Analysis struct {
	PhotoID int64
	Kind    string
	Data    json.RawMessage
	Model   string
}

// Metadata mirrors a row of the legacy image_metadata table.
type Metadata struct {
	PhotoID int64
	Kind    string
	Data    json.RawMessage
}

// Category mirrors a row of the legacy categories table.
type Category struct {
	PostID int64
	Kind   string
	Name   string
}

// Route mirrors a row of the legacy recommended_routes table.
type Route struct {
	PostID int64
	Name   string
	Data   json.RawMessage
}

// CountPosts returns the total number of posts in the legacy database.
func (p *Pool) CountPosts(ctx context.Context) (int, error) {
	var count int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count legacy posts: %w", err)
	}
	return count, nil
}

// Posts returns a page of posts ordered by ID.
func (p *Pool) Posts(ctx context.Context, offset, limit int) ([]Post, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(description, ''), COALESCE(tags, '[]'), user_id,
			COALESCE(recommended_route, ''), created_at, updated_at
		FROM posts ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query legacy posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var post Post
		var tags, route string
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&post.ID, &post.Title, &post.Description, &tags, &post.UserID,
			&route, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan legacy post: %w", err)
		}
		// Old rows occasionally hold malformed tag JSON; treat it as no tags.
		if err := json.Unmarshal([]byte(tags), &post.Tags); err != nil {
			post.Tags = nil
		}
		if route != "" {
			post.Route = json.RawMessage(route)
		}
		post.CreatedAt = createdAt.Time
		post.UpdatedAt = updatedAt.Time
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy posts: %w", err)
	}
	return posts, nil
}

// PostPhotos returns a post's photos ordered by ID.
func (p *Pool) PostPhotos(ctx context.Context, postID int64) ([]Photo, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, post_id, file_key, file_name, file_size, COALESCE(content_type, ''),
			upload_time, COALESCE(exif_data, '')
		FROM photos WHERE post_id = ? ORDER BY id`, postID)
	if err != nil {
		return nil, fmt.Errorf("query legacy photos: %w", err)
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var photo Photo
		var uploadTime sql.NullTime
		var exifData string
		if err := rows.Scan(&photo.ID, &photo.PostID, &photo.FileKey, &photo.FileName,
			&photo.FileSize, &photo.ContentType, &uploadTime, &exifData); err != nil {
			return nil, fmt.Errorf("scan legacy photo: %w", err)
		}
		photo.UploadTime = uploadTime.Time
		if exifData != "" {
			photo.ExifData = json.RawMessage(exifData)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy photos: %w", err)
	}
	return photos, nil
}

// PhotoLocation returns a photo's location, or nil when it has none.
func (p *Pool) PhotoLocation(ctx context.Context, photoID int64) (*Location, error) {
	var loc Location
	err := p.db.QueryRowContext(ctx, `
		SELECT photo_id, COALESCE(country, ''), COALESCE(city, ''), COALESCE(region, ''),
			COALESCE(landmark, ''), COALESCE(address, ''), latitude, longitude, confidence,
			COALESCE(source, '')
		FROM locations WHERE photo_id = ?`, photoID).
		Scan(&loc.PhotoID, &loc.Country, &loc.City, &loc.Region, &loc.Landmark, &loc.Address,
			&loc.Latitude, &loc.Longitude, &loc.Confidence, &loc.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query legacy location: %w", err)
	}
	return &loc, nil
}

// PhotoLabels returns a photo's labels.
func (p *Pool) PhotoLabels(ctx context.Context, photoID int64) ([]Label, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT photo_id, label_type, label_name, confidence, COALESCE(source, '')
		FROM photo_labels WHERE photo_id = ? ORDER BY id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("query legacy labels: %w", err)
	}
	defer rows.Close()

	var labels []Label
	for rows.Next() {
		var label Label
		if err := rows.Scan(&label.PhotoID, &label.Type, &label.Name, &label.Confidence, &label.Source); err != nil {
			return nil, fmt.Errorf("scan legacy label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy labels: %w", err)
	}
	return labels, nil
}

// PhotoAnalyses returns a photo's stored LLM analyses.
func (p *Pool) PhotoAnalyses(ctx context.Context, photoID int64) ([]Analysis, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT photo_id, analysis_type, analysis_data, COALESCE(model_used, '')
		FROM llm_analyses WHERE photo_id = ? ORDER BY id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("query legacy analyses: %w", err)
	}
	defer rows.Close()

	var analyses []Analysis
	for rows.Next() {
		var a Analysis
		var data string
		if err := rows.Scan(&a.PhotoID, &a.Kind, &data, &a.Model); err != nil {
			return nil, fmt.Errorf("scan legacy analysis: %w", err)
		}
		a.Data = json.RawMessage(data)
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy analyses: %w", err)
	}
	return analyses, nil
}

// PhotoMetadata returns a photo's extracted metadata records.
func (p *Pool) PhotoMetadata(ctx context.Context, photoID int64) ([]Metadata, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT photo_id, metadata_type, metadata_data
		FROM image_metadata WHERE photo_id = ? ORDER BY id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("query legacy metadata: %w", err)
	}
	defer rows.Close()

	var records []Metadata
	for rows.Next() {
		var m Metadata
		var data string
		if err := rows.Scan(&m.PhotoID, &m.Kind, &data); err != nil {
			return nil, fmt.Errorf("scan legacy metadata: %w", err)
		}
		m.Data = json.RawMessage(data)
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy metadata: %w", err)
	}
	return records, nil
}

// PostCategories returns a post's category assignments.
func (p *Pool) PostCategories(ctx context.Context, postID int64) ([]Category, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT post_id, category_type, category_name
		FROM categories WHERE post_id = ? ORDER BY id`, postID)
	if err != nil {
		return nil, fmt.Errorf("query legacy categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.PostID, &c.Kind, &c.Name); err != nil {
			return nil, fmt.Errorf("scan legacy category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy categories: %w", err)
	}
	return categories, nil
}

// PostRoute returns a post's recommended route, or nil when it has
// none. Posts from the oldest schema keep the route inline on the post
// row instead; Posts surfaces that as Post.Route.
func (p *Pool) PostRoute(ctx context.Context, postID int64) (*Route, error) {
	var route Route
	var data string
	err := p.db.QueryRowContext(ctx, `
		SELECT post_id, route_name, route_data
		FROM recommended_routes WHERE post_id = ? ORDER BY id LIMIT 1`, postID).
		Scan(&route.PostID, &route.Name, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query legacy route: %w", err)
	}
	route.Data = json.RawMessage(data)
	return &route, nil
}
