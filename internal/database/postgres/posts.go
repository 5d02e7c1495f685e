package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/duckgeunpark/IWT/internal/database"
)

// PostRepository provides PostgreSQL-backed post storage
type PostRepository struct {
	pool *Pool
}

// NewPostRepository creates a new PostRepository
func NewPostRepository(pool *Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

// CreatePost persists the whole post aggregate in one transaction:
// post, photos, locations, labels, image metadata, analyses, categories
// and route. Any failure rolls the entire post back.
func (r *PostRepository) CreatePost(ctx context.Context, newPost *database.NewPost) (*database.Post, error) {
	post := &newPost.Post
	if post.ID == "" {
		post.ID = newID()
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO posts (id, owner, title, description, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		post.ID, post.Owner, post.Title, post.Description, pq.Array(post.Tags),
		post.CreatedAt, post.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	for i := range newPost.Photos {
		if err := attachPhotoTx(ctx, tx, post, &newPost.Photos[i].Photo); err != nil {
			return nil, err
		}
	}

	for i := range newPost.Photos {
		np := &newPost.Photos[i]
		if np.Location == nil {
			continue
		}
		np.Location.PhotoID = np.Photo.ID
		if err := upsertLocation(ctx, tx, np.Location); err != nil {
			return nil, err
		}
	}

	for i := range newPost.Photos {
		np := &newPost.Photos[i]
		for source, group := range groupLabelsBySource(np.Labels) {
			if err := replaceLabelsTx(ctx, tx, np.Photo.ID, source, group); err != nil {
				return nil, err
			}
		}
	}

	for i := range newPost.Photos {
		np := &newPost.Photos[i]
		for j := range np.Metadata {
			np.Metadata[j].PhotoID = np.Photo.ID
			if err := insertMetadata(ctx, tx, &np.Metadata[j]); err != nil {
				return nil, err
			}
		}
	}

	for i := range newPost.Photos {
		np := &newPost.Photos[i]
		for j := range np.Analyses {
			np.Analyses[j].PhotoID = np.Photo.ID
			if err := insertAnalysis(ctx, tx, &np.Analyses[j]); err != nil {
				return nil, err
			}
		}
	}

	for i := range newPost.Categories {
		c := &newPost.Categories[i]
		if c.ID == "" {
			c.ID = newID()
		}
		c.PostID = post.ID
		c.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, post_id, kind, name, created_at) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (post_id, kind, name) DO NOTHING`,
			c.ID, c.PostID, c.Kind, c.Name, c.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert category %s: %w", c.Name, err)
		}
	}

	if newPost.Route != nil {
		route := newPost.Route
		if route.ID == "" {
			route.ID = newID()
		}
		route.PostID = post.ID
		route.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO routes (id, post_id, name, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
			route.ID, route.PostID, route.Name, payloadJSON(route.Payload), route.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert route: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create post: %w", err)
	}

	post.PhotoCount = len(newPost.Photos)
	return post, nil
}

// attachPhotoTx inserts a photo row or, when a pending row with the same
// ID already exists, attaches it to the post in place. The original
// upload time survives the attach; an empty taken_at never overwrites a
// capture time recorded during enrichment.
func attachPhotoTx(ctx context.Context, tx *sql.Tx, post *database.Post, photo *database.Photo) error {
	if photo.ID == "" {
		photo.ID = newID()
	}
	photo.PostID = post.ID
	photo.Owner = post.Owner
	if photo.UploadedAt.IsZero() {
		photo.UploadedAt = time.Now()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO photos (id, post_id, owner, file_key, file_name, file_size, content_type, taken_at, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			post_id = EXCLUDED.post_id,
			file_key = EXCLUDED.file_key,
			file_name = EXCLUDED.file_name,
			file_size = EXCLUDED.file_size,
			content_type = EXCLUDED.content_type,
			taken_at = COALESCE(NULLIF(EXCLUDED.taken_at, ''), photos.taken_at)`,
		photo.ID, photo.PostID, photo.Owner, photo.FileKey, photo.FileName, photo.FileSize,
		photo.ContentType, photo.TakenAt, photo.UploadedAt)
	if err != nil {
		return fmt.Errorf("attach photo %s: %w", photo.ID, err)
	}
	return nil
}

func groupLabelsBySource(labels []database.PhotoLabel) map[string][]database.PhotoLabel {
	groups := make(map[string][]database.PhotoLabel)
	for _, l := range labels {
		groups[l.Source] = append(groups[l.Source], l)
	}
	return groups
}

func (r *PostRepository) GetPost(ctx context.Context, id string) (*database.Post, error) {
	var p database.Post
	var tags pq.StringArray
	err := r.pool.QueryRow(ctx,
		`SELECT p.id, p.owner, p.title, p.description, p.tags, p.created_at, p.updated_at,
			(SELECT COUNT(*) FROM photos WHERE post_id = p.id) as photo_count
		 FROM posts p WHERE p.id = $1`, id).
		Scan(&p.ID, &p.Owner, &p.Title, &p.Description, &tags, &p.CreatedAt, &p.UpdatedAt, &p.PhotoCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	p.Tags = []string(tags)
	return &p, nil
}

func (r *PostRepository) GetPostPhotos(ctx context.Context, postID string) ([]database.Photo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, COALESCE(post_id, ''), owner, file_key, file_name, file_size, content_type, taken_at, uploaded_at
		 FROM photos WHERE post_id = $1 ORDER BY taken_at, uploaded_at`, postID)
	if err != nil {
		return nil, fmt.Errorf("get post photos: %w", err)
	}
	defer rows.Close()
	var photos []database.Photo
	for rows.Next() {
		var p database.Photo
		if err := rows.Scan(&p.ID, &p.PostID, &p.Owner, &p.FileKey, &p.FileName, &p.FileSize,
			&p.ContentType, &p.TakenAt, &p.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

func (r *PostRepository) GetPostCategories(ctx context.Context, postID string) ([]database.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, post_id, kind, name, created_at
		 FROM categories WHERE post_id = $1 ORDER BY kind, name`, postID)
	if err != nil {
		return nil, fmt.Errorf("get post categories: %w", err)
	}
	defer rows.Close()
	var categories []database.Category
	for rows.Next() {
		var c database.Category
		if err := rows.Scan(&c.ID, &c.PostID, &c.Kind, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *PostRepository) GetRoute(ctx context.Context, postID string) (*database.Route, error) {
	var route database.Route
	err := r.pool.QueryRow(ctx,
		`SELECT id, post_id, name, payload, created_at FROM routes WHERE post_id = $1`, postID).
		Scan(&route.ID, &route.PostID, &route.Name, &route.Payload, &route.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	return &route, nil
}

// ListPosts returns a page of posts ordered by creation time, newest
// first, plus the total number of posts matching the filter.
func (r *PostRepository) ListPosts(ctx context.Context, filter database.ListPostsFilter) ([]database.Post, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}

	where := `WHERE p.owner = $1`
	args := []any{filter.Owner}
	if filter.Category != "" {
		where += ` AND EXISTS (SELECT 1 FROM categories c WHERE c.post_id = p.id AND c.name = $2)`
		args = append(args, filter.Category)
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM posts p `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT p.id, p.owner, p.title, p.description, p.tags, p.created_at, p.updated_at,
			(SELECT COUNT(*) FROM photos WHERE post_id = p.id) as photo_count
		 FROM posts p %s ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Skip)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	var posts []database.Post
	for rows.Next() {
		var p database.Post
		var tags pq.StringArray
		if err := rows.Scan(&p.ID, &p.Owner, &p.Title, &p.Description, &tags,
			&p.CreatedAt, &p.UpdatedAt, &p.PhotoCount); err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		p.Tags = []string(tags)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, total, nil
}

func (r *PostRepository) DeletePost(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}
