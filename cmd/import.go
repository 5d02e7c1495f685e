package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/duckgeunpark/IWT/internal/config"
	"github.com/duckgeunpark/IWT/internal/database"
	"github.com/duckgeunpark/IWT/internal/database/legacy"
	"github.com/duckgeunpark/IWT/internal/database/postgres"
	"github.com/duckgeunpark/IWT/internal/exif"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import posts from the legacy MySQL database",
	Long: `Import posts from the MySQL database of the previous backend into
PostgreSQL. Each post is copied with its photos, locations, labels,
analyses, metadata, categories and route in one transaction. Posts
receive new IDs, so running the import twice duplicates them.

Requires LEGACY_DATABASE_URL (MySQL DSN) and DATABASE_URL to be set.

Examples:
  # Preview what would be imported
  iwt import --dry-run

  # Import everything
  iwt import

  # Import the first 50 posts
  iwt import --limit 50`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("dry-run", false, "Read and convert posts without writing anything")
	importCmd.Flags().Int("limit", 0, "Limit number of posts to import (0 = no limit)")
}

const importPageSize = 100

func runImport(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")
	limit := mustGetInt(cmd, "limit")

	ctx := cmd.Context()
	cfg := config.Load()

	if cfg.LegacyDB.URL == "" {
		return errors.New("LEGACY_DATABASE_URL environment variable is required")
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Println("Connecting to legacy MySQL database...")
	legacyPool, err := legacy.NewPool(cfg.LegacyDB.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to legacy database: %w", err)
	}
	defer legacyPool.Close()

	fmt.Println("Connecting to PostgreSQL database...")
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	pool := postgres.GetGlobalPool()
	defer pool.Close()
	posts := postgres.NewPostRepository(pool)

	total, err := legacyPool.CountPosts(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && limit < total {
		total = limit
	}
	if total == 0 {
		fmt.Println("No posts to import.")
		return nil
	}

	fmt.Printf("Importing %d posts\n", total)
	if dryRun {
		fmt.Println("DRY RUN - no changes will be written")
	}
	fmt.Println()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Importing posts"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("posts"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	imported, failed := 0, 0
	for offset := 0; offset < total; offset += importPageSize {
		pageSize := importPageSize
		if remaining := total - offset; remaining < pageSize {
			pageSize = remaining
		}
		page, err := legacyPool.Posts(ctx, offset, pageSize)
		if err != nil {
			return fmt.Errorf("failed to read legacy posts: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			newPost, err := convertPost(ctx, legacyPool, &page[i])
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nwarning: skipping post %d: %v\n", page[i].ID, err)
				failed++
				bar.Add(1)
				continue
			}
			if !dryRun {
				if _, err := posts.CreatePost(ctx, newPost); err != nil {
					fmt.Fprintf(os.Stderr, "\nwarning: failed to import post %d: %v\n", page[i].ID, err)
					failed++
					bar.Add(1)
					continue
				}
			}
			imported++
			bar.Add(1)
		}
	}
	fmt.Println()

	fmt.Printf("\nImport complete: %d imported, %d failed\n", imported, failed)
	if dryRun {
		fmt.Println("Mode: DRY RUN")
	}
	return nil
}

// convertPost assembles one legacy post and its satellite rows into the
// aggregate the current store persists transactionally.
func convertPost(ctx context.Context, src *legacy.Pool, post *legacy.Post) (*database.NewPost, error) {
	newPost := &database.NewPost{
		Post: database.Post{
			Owner:       post.UserID,
			Title:       post.Title,
			Description: post.Description,
			Tags:        post.Tags,
		},
	}

	photos, err := src.PostPhotos(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	for i := range photos {
		np, err := convertPhoto(ctx, src, &photos[i])
		if err != nil {
			return nil, err
		}
		newPost.Photos = append(newPost.Photos, *np)
	}

	categories, err := src.PostCategories(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		newPost.Categories = append(newPost.Categories, database.Category{Kind: c.Kind, Name: c.Name})
	}

	route, err := src.PostRoute(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case route != nil:
		newPost.Route = &database.Route{Name: route.Name, Payload: route.Data}
	case len(post.Route) > 0:
		// The oldest posts keep the route inline on the post row.
		newPost.Route = &database.Route{Name: post.Title, Payload: post.Route}
	}

	return newPost, nil
}

// convertPhoto maps one legacy photo and its enrichment rows. The photo
// gets a new ID when persisted; the original upload time survives.
func convertPhoto(ctx context.Context, src *legacy.Pool, photo *legacy.Photo) (*database.NewPhoto, error) {
	np := &database.NewPhoto{
		Photo: database.Photo{
			FileKey:     photo.FileKey,
			FileName:    photo.FileName,
			FileSize:    photo.FileSize,
			ContentType: photo.ContentType,
			UploadedAt:  photo.UploadTime,
		},
	}

	loc, err := src.PhotoLocation(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	if loc != nil {
		np.Location = &database.Location{
			Country:    loc.Country,
			City:       loc.City,
			Region:     loc.Region,
			Landmark:   loc.Landmark,
			Address:    loc.Address,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			Confidence: loc.Confidence,
			Source:     loc.Source,
		}
	}

	labels, err := src.PhotoLabels(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		confidence := 1.0
		if l.Confidence != nil {
			confidence = *l.Confidence
		}
		np.Labels = append(np.Labels, database.PhotoLabel{
			Type:       l.Type,
			Name:       l.Name,
			Confidence: confidence,
			Source:     l.Source,
		})
	}

	analyses, err := src.PhotoAnalyses(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range analyses {
		np.Analyses = append(np.Analyses, database.LLMAnalysis{
			Kind:     a.Kind,
			Provider: a.Model,
			Payload:  a.Data,
		})
	}

	records, err := src.PhotoMetadata(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range records {
		np.Metadata = append(np.Metadata, database.ImageMetadata{
			Kind:    m.Kind,
			Payload: m.Data,
		})
	}

	// The legacy schema also kept raw EXIF JSON on the photo row.
	// Normalizing it recovers the capture time, and stands in for the
	// metadata record when the photo has no image_metadata rows.
	if len(photo.ExifData) > 0 {
		var raw exif.RawExif
		if err := json.Unmarshal(photo.ExifData, &raw); err == nil {
			norm := exif.Normalize(&raw)
			np.Photo.TakenAt = norm.DateTime
			if len(records) == 0 {
				payload, _ := json.Marshal(norm)
				np.Metadata = append(np.Metadata, database.ImageMetadata{
					Kind:    database.MetadataExif,
					Payload: payload,
				})
			}
		}
	}

	return np, nil
}
