package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/duckgeunpark/IWT/internal/database"
)

// PhotoRepository provides PostgreSQL-backed photo storage
type PhotoRepository struct {
	pool *Pool
}

// NewPhotoRepository creates a new PhotoRepository
func NewPhotoRepository(pool *Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

func newID() string {
	return uuid.New().String()
}

// execer lets the single-record helpers run against either the pool's
// sql.DB or an open transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func payloadJSON(p json.RawMessage) string {
	if len(p) == 0 {
		return "{}"
	}
	return string(p)
}

// --- Photos ---

func (r *PhotoRepository) CreatePhoto(ctx context.Context, photo *database.Photo) error {
	if photo.ID == "" {
		photo.ID = newID()
	}
	photo.UploadedAt = time.Now()
	var postID *string
	if photo.PostID != "" {
		postID = &photo.PostID
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO photos (id, post_id, owner, file_key, file_name, file_size, content_type, taken_at, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		photo.ID, postID, photo.Owner, photo.FileKey, photo.FileName, photo.FileSize,
		photo.ContentType, photo.TakenAt, photo.UploadedAt)
	if err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (r *PhotoRepository) GetPhoto(ctx context.Context, id string) (*database.Photo, error) {
	var p database.Photo
	err := r.pool.QueryRow(ctx,
		`SELECT id, COALESCE(post_id, ''), owner, file_key, file_name, file_size, content_type, taken_at, uploaded_at
		 FROM photos WHERE id = $1`, id).
		Scan(&p.ID, &p.PostID, &p.Owner, &p.FileKey, &p.FileName, &p.FileSize, &p.ContentType, &p.TakenAt, &p.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	return &p, nil
}

func (r *PhotoRepository) UpdatePhotoTakenAt(ctx context.Context, id string, takenAt string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE photos SET taken_at = $1 WHERE id = $2`, takenAt, id)
	if err != nil {
		return fmt.Errorf("update photo taken_at: %w", err)
	}
	return nil
}

// --- Locations ---

func (r *PhotoRepository) SaveLocation(ctx context.Context, loc *database.Location) error {
	if err := upsertLocation(ctx, r.pool.DB(), loc); err != nil {
		return err
	}
	return nil
}

func upsertLocation(ctx context.Context, db execer, loc *database.Location) error {
	if loc.ID == "" {
		loc.ID = newID()
	}
	loc.UpdatedAt = time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO locations (id, photo_id, latitude, longitude, country, city, region, landmark, address, source, confidence, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (photo_id) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			region = EXCLUDED.region,
			landmark = EXCLUDED.landmark,
			address = EXCLUDED.address,
			source = EXCLUDED.source,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at`,
		loc.ID, loc.PhotoID, loc.Latitude, loc.Longitude, loc.Country, loc.City, loc.Region,
		loc.Landmark, loc.Address, loc.Source, loc.Confidence, loc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

func (r *PhotoRepository) GetLocation(ctx context.Context, photoID string) (*database.Location, error) {
	var l database.Location
	err := r.pool.QueryRow(ctx,
		`SELECT id, photo_id, latitude, longitude, country, city, region, landmark, address, source, confidence, updated_at
		 FROM locations WHERE photo_id = $1`, photoID).
		Scan(&l.ID, &l.PhotoID, &l.Latitude, &l.Longitude, &l.Country, &l.City, &l.Region,
			&l.Landmark, &l.Address, &l.Source, &l.Confidence, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &l, nil
}

// --- Labels ---

func (r *PhotoRepository) ReplaceLabels(ctx context.Context, photoID string, source string, labels []database.PhotoLabel) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := replaceLabelsTx(ctx, tx, photoID, source, labels); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace labels: %w", err)
	}
	return nil
}

func replaceLabelsTx(ctx context.Context, tx *sql.Tx, photoID string, source string, labels []database.PhotoLabel) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM photo_labels WHERE photo_id = $1 AND source = $2`, photoID, source); err != nil {
		return fmt.Errorf("delete labels: %w", err)
	}
	now := time.Now()
	for i := range labels {
		l := &labels[i]
		if l.ID == "" {
			l.ID = newID()
		}
		l.PhotoID = photoID
		if l.Source == "" {
			l.Source = source
		}
		l.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO photo_labels (id, photo_id, label_type, label_name, confidence, source, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.ID, l.PhotoID, l.Type, l.Name, l.Confidence, l.Source, l.CreatedAt); err != nil {
			return fmt.Errorf("insert label %s: %w", l.Name, err)
		}
	}
	return nil
}

func (r *PhotoRepository) GetLabels(ctx context.Context, photoID string) ([]database.PhotoLabel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, photo_id, label_type, label_name, confidence, source, created_at
		 FROM photo_labels WHERE photo_id = $1 ORDER BY label_type, label_name`, photoID)
	if err != nil {
		return nil, fmt.Errorf("get labels: %w", err)
	}
	defer rows.Close()
	var labels []database.PhotoLabel
	for rows.Next() {
		var l database.PhotoLabel
		if err := rows.Scan(&l.ID, &l.PhotoID, &l.Type, &l.Name, &l.Confidence, &l.Source, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return labels, nil
}

// --- Analyses ---

func (r *PhotoRepository) SaveAnalysis(ctx context.Context, analysis *database.LLMAnalysis) error {
	return insertAnalysis(ctx, r.pool.DB(), analysis)
}

func insertAnalysis(ctx context.Context, db execer, analysis *database.LLMAnalysis) error {
	if analysis.ID == "" {
		analysis.ID = newID()
	}
	analysis.CreatedAt = time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO llm_analyses (id, photo_id, kind, provider, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		analysis.ID, analysis.PhotoID, analysis.Kind, analysis.Provider,
		payloadJSON(analysis.Payload), analysis.CreatedAt)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", analysis.Kind, err)
	}
	return nil
}

// --- Image metadata ---

func (r *PhotoRepository) SaveMetadata(ctx context.Context, meta *database.ImageMetadata) error {
	return insertMetadata(ctx, r.pool.DB(), meta)
}

func insertMetadata(ctx context.Context, db execer, meta *database.ImageMetadata) error {
	if meta.ID == "" {
		meta.ID = newID()
	}
	meta.CreatedAt = time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO image_metadata (id, photo_id, kind, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		meta.ID, meta.PhotoID, meta.Kind, payloadJSON(meta.Payload), meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("save metadata %s: %w", meta.Kind, err)
	}
	return nil
}
