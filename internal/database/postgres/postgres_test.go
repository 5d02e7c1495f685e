//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/duckgeunpark/IWT/internal/config"
	"github.com/duckgeunpark/IWT/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func f64(v float64) *float64 {
	return &v
}

func TestPhotoRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewPhotoRepository(pool)

	var photoID string

	t.Run("CreateAndGetPhoto", func(t *testing.T) {
		photo := &database.Photo{
			Owner:       "user-1",
			FileKey:     "temp/user-1/abc.jpg",
			FileName:    "abc.jpg",
			FileSize:    1234,
			ContentType: "image/jpeg",
		}
		if err := repo.CreatePhoto(ctx, photo); err != nil {
			t.Fatalf("Failed to create photo: %v", err)
		}
		if photo.ID == "" {
			t.Fatal("Expected photo ID to be assigned")
		}
		photoID = photo.ID

		got, err := repo.GetPhoto(ctx, photo.ID)
		if err != nil {
			t.Fatalf("Failed to get photo: %v", err)
		}
		if got == nil {
			t.Fatal("Expected photo, got nil")
		}
		if got.PostID != "" {
			t.Errorf("Expected pending photo without post, got post_id %q", got.PostID)
		}
		if got.Owner != "user-1" {
			t.Errorf("Expected owner 'user-1', got %q", got.Owner)
		}
		if got.FileKey != "temp/user-1/abc.jpg" {
			t.Errorf("Expected file key 'temp/user-1/abc.jpg', got %q", got.FileKey)
		}
		if got.FileSize != 1234 {
			t.Errorf("Expected file size 1234, got %d", got.FileSize)
		}
	})

	t.Run("GetPhoto_NotFound", func(t *testing.T) {
		got, err := repo.GetPhoto(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Expected no error for missing photo, got %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for missing photo, got %+v", got)
		}
	})

	t.Run("UpdateTakenAt", func(t *testing.T) {
		if err := repo.UpdatePhotoTakenAt(ctx, photoID, "2024-05-03T14:21:09"); err != nil {
			t.Fatalf("Failed to update taken_at: %v", err)
		}
		got, err := repo.GetPhoto(ctx, photoID)
		if err != nil {
			t.Fatalf("Failed to get photo: %v", err)
		}
		if got.TakenAt != "2024-05-03T14:21:09" {
			t.Errorf("Expected taken_at '2024-05-03T14:21:09', got %q", got.TakenAt)
		}
	})

	t.Run("SaveAndGetLocation", func(t *testing.T) {
		loc := &database.Location{
			PhotoID:    photoID,
			Latitude:   f64(35.6586),
			Longitude:  f64(139.7454),
			Country:    "Japan",
			City:       "Tokyo",
			Source:     "exif",
			Confidence: f64(1.0),
		}
		if err := repo.SaveLocation(ctx, loc); err != nil {
			t.Fatalf("Failed to save location: %v", err)
		}

		// Saving again overwrites instead of inserting a second row.
		loc2 := &database.Location{
			PhotoID:    photoID,
			Latitude:   f64(35.6586),
			Longitude:  f64(139.7454),
			Country:    "Japan",
			City:       "Tokyo",
			Landmark:   "Tokyo Tower",
			Source:     "llm",
			Confidence: f64(0.8),
		}
		if err := repo.SaveLocation(ctx, loc2); err != nil {
			t.Fatalf("Failed to overwrite location: %v", err)
		}

		got, err := repo.GetLocation(ctx, photoID)
		if err != nil {
			t.Fatalf("Failed to get location: %v", err)
		}
		if got == nil {
			t.Fatal("Expected location, got nil")
		}
		if got.Landmark != "Tokyo Tower" {
			t.Errorf("Expected landmark 'Tokyo Tower', got %q", got.Landmark)
		}
		if got.Source != "llm" {
			t.Errorf("Expected source 'llm', got %q", got.Source)
		}
		if got.Latitude == nil || *got.Latitude != 35.6586 {
			t.Errorf("Expected latitude 35.6586, got %v", got.Latitude)
		}
	})

	t.Run("GetLocation_NotFound", func(t *testing.T) {
		got, err := repo.GetLocation(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Expected no error for missing location, got %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for missing location, got %+v", got)
		}
	})

	t.Run("ReplaceLabels", func(t *testing.T) {
		exifLabels := []database.PhotoLabel{
			{Type: "location", Name: "has_gps_coordinates", Confidence: 1.0, Source: "exif"},
			{Type: "time", Name: "afternoon", Confidence: 1.0, Source: "exif"},
		}
		if err := repo.ReplaceLabels(ctx, photoID, "exif", exifLabels); err != nil {
			t.Fatalf("Failed to replace labels: %v", err)
		}

		llmLabels := []database.PhotoLabel{
			{Type: "llm_generated", Name: "temple", Confidence: 0.9, Source: "llm"},
		}
		if err := repo.ReplaceLabels(ctx, photoID, "llm", llmLabels); err != nil {
			t.Fatalf("Failed to add llm labels: %v", err)
		}

		// Replacing the exif set leaves llm labels alone.
		if err := repo.ReplaceLabels(ctx, photoID, "exif", exifLabels[:1]); err != nil {
			t.Fatalf("Failed to re-replace exif labels: %v", err)
		}

		got, err := repo.GetLabels(ctx, photoID)
		if err != nil {
			t.Fatalf("Failed to get labels: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 labels, got %d", len(got))
		}
		names := make(map[string]bool)
		for _, l := range got {
			names[l.Name] = true
		}
		if !names["has_gps_coordinates"] || !names["temple"] {
			t.Errorf("Unexpected label set: %+v", got)
		}
	})

	t.Run("SaveAnalysisAndMetadata", func(t *testing.T) {
		analysis := &database.LLMAnalysis{
			PhotoID:  photoID,
			Kind:     database.AnalysisPlaceInference,
			Provider: "openai",
			Payload:  json.RawMessage(`{"country":"Japan","confidence":0.9}`),
		}
		if err := repo.SaveAnalysis(ctx, analysis); err != nil {
			t.Fatalf("Failed to save analysis: %v", err)
		}

		meta := &database.ImageMetadata{
			PhotoID: photoID,
			Kind:    database.MetadataExif,
			Payload: json.RawMessage(`{"camera_make":"Canon"}`),
		}
		if err := repo.SaveMetadata(ctx, meta); err != nil {
			t.Fatalf("Failed to save metadata: %v", err)
		}

		var analyses, metadata int
		if err := pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM llm_analyses WHERE photo_id = $1`, photoID).Scan(&analyses); err != nil {
			t.Fatalf("Failed to count analyses: %v", err)
		}
		if analyses != 1 {
			t.Errorf("Expected 1 analysis, got %d", analyses)
		}
		if err := pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM image_metadata WHERE photo_id = $1`, photoID).Scan(&metadata); err != nil {
			t.Fatalf("Failed to count metadata: %v", err)
		}
		if metadata != 1 {
			t.Errorf("Expected 1 metadata record, got %d", metadata)
		}
	})
}

func TestPostRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	photoRepo := NewPhotoRepository(pool)
	postRepo := NewPostRepository(pool)

	// A pending photo simulates the upload-then-enrich flow; CreatePost
	// must attach it rather than insert a duplicate.
	pending := &database.Photo{
		Owner:       "user-1",
		FileKey:     "temp/user-1/pending.jpg",
		FileName:    "beach.jpg",
		FileSize:    2048,
		ContentType: "image/jpeg",
	}
	if err := photoRepo.CreatePhoto(ctx, pending); err != nil {
		t.Fatalf("Failed to create pending photo: %v", err)
	}

	newPost := &database.NewPost{
		Post: database.Post{
			Owner:       "user-1",
			Title:       "Jeju Weekend",
			Description: "Two days around the island",
			Tags:        []string{"jeju", "beach"},
		},
		Photos: []database.NewPhoto{
			{
				Photo: database.Photo{
					ID:          pending.ID,
					FileKey:     "photos/user-1/" + pending.ID + "/original.jpg",
					FileName:    "beach.jpg",
					FileSize:    2048,
					ContentType: "image/jpeg",
					TakenAt:     "2024-05-03T14:21:09",
				},
				Location: &database.Location{
					Latitude:   f64(33.4996),
					Longitude:  f64(126.5312),
					Country:    "South Korea",
					City:       "Jeju",
					Source:     "exif",
					Confidence: f64(1.0),
				},
				Labels: []database.PhotoLabel{
					{Type: "location", Name: "has_gps_coordinates", Confidence: 1.0, Source: "exif"},
				},
				Metadata: []database.ImageMetadata{
					{Kind: database.MetadataExif, Payload: json.RawMessage(`{"camera_make":"Canon"}`)},
				},
				Analyses: []database.LLMAnalysis{
					{Kind: database.AnalysisPlaceInference, Provider: "openai", Payload: json.RawMessage(`{"country":"South Korea"}`)},
				},
			},
			{
				Photo: database.Photo{
					FileKey:  "photos/user-1/second/original.jpg",
					FileName: "sunset.jpg",
					TakenAt:  "2024-05-03T19:45:00",
				},
			},
		},
		Categories: []database.Category{
			{Kind: database.CategoryCountry, Name: "South Korea"},
			{Kind: database.CategoryCity, Name: "Jeju"},
		},
		Route: &database.Route{
			Name:    "Jeju coastal loop",
			Payload: json.RawMessage(`{"stops":[{"name":"Jeju"}]}`),
		},
	}

	created, err := postRepo.CreatePost(ctx, newPost)
	if err != nil {
		t.Fatalf("Failed to create post: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Expected post ID to be assigned")
	}
	if created.PhotoCount != 2 {
		t.Errorf("Expected photo count 2, got %d", created.PhotoCount)
	}

	t.Run("GetPost", func(t *testing.T) {
		got, err := postRepo.GetPost(ctx, created.ID)
		if err != nil {
			t.Fatalf("Failed to get post: %v", err)
		}
		if got == nil {
			t.Fatal("Expected post, got nil")
		}
		if got.Title != "Jeju Weekend" {
			t.Errorf("Expected title 'Jeju Weekend', got %q", got.Title)
		}
		if got.Owner != "user-1" {
			t.Errorf("Expected owner 'user-1', got %q", got.Owner)
		}
		if len(got.Tags) != 2 || got.Tags[0] != "jeju" {
			t.Errorf("Unexpected tags: %v", got.Tags)
		}
		if got.PhotoCount != 2 {
			t.Errorf("Expected photo count 2, got %d", got.PhotoCount)
		}
	})

	t.Run("GetPost_NotFound", func(t *testing.T) {
		got, err := postRepo.GetPost(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Expected no error for missing post, got %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for missing post, got %+v", got)
		}
	})

	t.Run("PendingPhotoAttached", func(t *testing.T) {
		got, err := photoRepo.GetPhoto(ctx, pending.ID)
		if err != nil {
			t.Fatalf("Failed to get photo: %v", err)
		}
		if got.PostID != created.ID {
			t.Errorf("Expected photo attached to post %s, got %q", created.ID, got.PostID)
		}
		if !strings.HasPrefix(got.FileKey, "photos/user-1/") {
			t.Errorf("Expected permanent file key, got %q", got.FileKey)
		}
	})

	t.Run("GetPostPhotos", func(t *testing.T) {
		photos, err := postRepo.GetPostPhotos(ctx, created.ID)
		if err != nil {
			t.Fatalf("Failed to get post photos: %v", err)
		}
		if len(photos) != 2 {
			t.Fatalf("Expected 2 photos, got %d", len(photos))
		}
		// Capture order: the afternoon shot comes before the sunset.
		if photos[0].TakenAt != "2024-05-03T14:21:09" {
			t.Errorf("Expected first photo taken at 14:21, got %q", photos[0].TakenAt)
		}
	})

	t.Run("GetPostCategories", func(t *testing.T) {
		categories, err := postRepo.GetPostCategories(ctx, created.ID)
		if err != nil {
			t.Fatalf("Failed to get categories: %v", err)
		}
		if len(categories) != 2 {
			t.Fatalf("Expected 2 categories, got %d", len(categories))
		}
	})

	t.Run("GetRoute", func(t *testing.T) {
		route, err := postRepo.GetRoute(ctx, created.ID)
		if err != nil {
			t.Fatalf("Failed to get route: %v", err)
		}
		if route == nil {
			t.Fatal("Expected route, got nil")
		}
		if route.Name != "Jeju coastal loop" {
			t.Errorf("Expected route name 'Jeju coastal loop', got %q", route.Name)
		}
		if !strings.Contains(string(route.Payload), "stops") {
			t.Errorf("Unexpected route payload: %s", route.Payload)
		}
	})

	t.Run("ListPosts", func(t *testing.T) {
		other := &database.NewPost{
			Post: database.Post{Owner: "user-2", Title: "Someone else's trip"},
		}
		if _, err := postRepo.CreatePost(ctx, other); err != nil {
			t.Fatalf("Failed to create other post: %v", err)
		}

		posts, total, err := postRepo.ListPosts(ctx, database.ListPostsFilter{Owner: "user-1", Limit: 10})
		if err != nil {
			t.Fatalf("Failed to list posts: %v", err)
		}
		if total != 1 {
			t.Errorf("Expected total 1, got %d", total)
		}
		if len(posts) != 1 || posts[0].ID != created.ID {
			t.Errorf("Unexpected posts: %+v", posts)
		}

		_, total, err = postRepo.ListPosts(ctx, database.ListPostsFilter{Owner: "user-1", Category: "South Korea", Limit: 10})
		if err != nil {
			t.Fatalf("Failed to list posts by category: %v", err)
		}
		if total != 1 {
			t.Errorf("Expected total 1 for category 'South Korea', got %d", total)
		}

		_, total, err = postRepo.ListPosts(ctx, database.ListPostsFilter{Owner: "user-1", Category: "France", Limit: 10})
		if err != nil {
			t.Fatalf("Failed to list posts by category: %v", err)
		}
		if total != 0 {
			t.Errorf("Expected total 0 for category 'France', got %d", total)
		}
	})

	t.Run("ListPosts_Paging", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			p := &database.NewPost{
				Post: database.Post{Owner: "user-3", Title: fmt.Sprintf("Trip %d", i)},
			}
			if _, err := postRepo.CreatePost(ctx, p); err != nil {
				t.Fatalf("Failed to create post %d: %v", i, err)
			}
		}

		posts, total, err := postRepo.ListPosts(ctx, database.ListPostsFilter{Owner: "user-3", Limit: 2})
		if err != nil {
			t.Fatalf("Failed to list posts: %v", err)
		}
		if total != 3 {
			t.Errorf("Expected total 3, got %d", total)
		}
		if len(posts) != 2 {
			t.Errorf("Expected 2 posts on first page, got %d", len(posts))
		}

		posts, _, err = postRepo.ListPosts(ctx, database.ListPostsFilter{Owner: "user-3", Limit: 2, Skip: 2})
		if err != nil {
			t.Fatalf("Failed to list second page: %v", err)
		}
		if len(posts) != 1 {
			t.Errorf("Expected 1 post on second page, got %d", len(posts))
		}
	})

	t.Run("DeletePost_Cascades", func(t *testing.T) {
		if err := postRepo.DeletePost(ctx, created.ID); err != nil {
			t.Fatalf("Failed to delete post: %v", err)
		}

		got, err := postRepo.GetPost(ctx, created.ID)
		if err != nil {
			t.Fatalf("Failed to get post: %v", err)
		}
		if got != nil {
			t.Error("Expected post to be gone")
		}

		photos, err := postRepo.GetPostPhotos(ctx, created.ID)
		if err != nil {
			t.Fatalf("Failed to get photos: %v", err)
		}
		if len(photos) != 0 {
			t.Errorf("Expected photos to cascade, got %d", len(photos))
		}

		var labels int
		if err := pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM photo_labels WHERE photo_id = $1`, pending.ID).Scan(&labels); err != nil {
			t.Fatalf("Failed to count labels: %v", err)
		}
		if labels != 0 {
			t.Errorf("Expected labels to cascade, got %d", labels)
		}

		route, err := postRepo.GetRoute(ctx, created.ID)
		if err != nil {
			t.Fatalf("Failed to get route: %v", err)
		}
		if route != nil {
			t.Error("Expected route to cascade")
		}
	})
}

func TestMigrations(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	// Check migrations were applied
	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	expectedMigrations := []string{
		"001_create_posts.sql",
		"002_create_photos.sql",
		"003_create_locations.sql",
		"004_create_photo_labels.sql",
		"005_create_llm_analyses.sql",
		"006_create_image_metadata.sql",
		"007_create_categories.sql",
		"008_create_routes.sql",
		"009_create_indexes.sql",
	}

	if len(applied) != len(expectedMigrations) {
		t.Errorf("Expected %d migrations, got %d", len(expectedMigrations), len(applied))
	}

	for i, expected := range expectedMigrations {
		if i < len(applied) && applied[i] != expected {
			t.Errorf("Migration %d: expected '%s', got '%s'", i, expected, applied[i])
		}
	}

	pending, err := pool.MigrationsPending(ctx)
	if err != nil {
		t.Fatalf("Failed to get pending migrations: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending migrations, got %v", pending)
	}
}
