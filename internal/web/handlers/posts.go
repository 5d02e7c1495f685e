package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duckgeunpark/IWT/internal/ai"
	"github.com/duckgeunpark/IWT/internal/classify"
	"github.com/duckgeunpark/IWT/internal/database"
	"github.com/duckgeunpark/IWT/internal/enrich"
	"github.com/duckgeunpark/IWT/internal/exif"
	"github.com/duckgeunpark/IWT/internal/labels"
	"github.com/duckgeunpark/IWT/internal/post"
	"github.com/duckgeunpark/IWT/internal/storage"
	"github.com/duckgeunpark/IWT/internal/web/middleware"
)

// Pagination bounds for post listings.
const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// RoutePlanner is the slice of the AI provider the posts handler needs.
type RoutePlanner interface {
	RecommendRoute(ctx context.Context, req ai.RouteRequest) (*ai.RouteRecommendation, error)
}

// PostsHandler handles post assembly and CRUD endpoints.
type PostsHandler struct {
	posts     database.PostStore
	photos    database.PhotoStore
	storage   ObjectStore
	assembler *post.Assembler
	planner   RoutePlanner
	provider  string
}

// NewPostsHandler creates a new posts handler.
func NewPostsHandler(posts database.PostStore, photos database.PhotoStore, store ObjectStore, assembler *post.Assembler, planner RoutePlanner, provider string) *PostsHandler {
	return &PostsHandler{
		posts:     posts,
		photos:    photos,
		storage:   store,
		assembler: assembler,
		planner:   planner,
		provider:  provider,
	}
}

// --- Requests ---

type postPhotoRequest struct {
	PhotoID     string                `json:"photo_id"`
	FileKey     string                `json:"file_key"`
	FileName    string                `json:"file_name"`
	FileSize    int64                 `json:"file_size"`
	ContentType string                `json:"content_type"`
	TakenAt     string                `json:"taken_at"`
	Location    *enrich.LocationGuess `json:"location"`
	ExifData    *exif.RawExif         `json:"exif_data"`
}

type createPostRequest struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Tags         []string           `json:"tags"`
	Photos       []postPhotoRequest `json:"photos"`
	UserContext  *ai.UserContext    `json:"user_context"`
	DurationDays int                `json:"duration_days"`
}

// --- Responses ---

type postResponse struct {
	ID          string   `json:"id"`
	Owner       string   `json:"owner"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	PhotoCount  int      `json:"photo_count"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toPostResponse(p *database.Post) postResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return postResponse{
		ID:          p.ID,
		Owner:       p.Owner,
		Title:       p.Title,
		Description: p.Description,
		Tags:        tags,
		PhotoCount:  p.PhotoCount,
		CreatedAt:   p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   p.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

type photoResponse struct {
	ID          string            `json:"id"`
	FileKey     string            `json:"file_key"`
	FileName    string            `json:"file_name"`
	FileSize    int64             `json:"file_size"`
	ContentType string            `json:"content_type,omitempty"`
	TakenAt     string            `json:"taken_at,omitempty"`
	UploadedAt  string            `json:"uploaded_at"`
	Location    *locationResponse `json:"location,omitempty"`
}

type locationResponse struct {
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	Country    string   `json:"country,omitempty"`
	City       string   `json:"city,omitempty"`
	Region     string   `json:"region,omitempty"`
	Landmark   string   `json:"landmark,omitempty"`
	Address    string   `json:"address,omitempty"`
	Source     string   `json:"source,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type routeResponse struct {
	Name  string          `json:"name"`
	Route json.RawMessage `json:"route"`
}

type postDetailResponse struct {
	ID          string              `json:"id"`
	Owner       string              `json:"owner"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Tags        []string            `json:"tags"`
	Photos      []photoResponse     `json:"photos"`
	Categories  map[string][]string `json:"categories"`
	Route       *routeResponse      `json:"route,omitempty"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

type listPostsResponse struct {
	Posts []postResponse `json:"posts"`
	Total int            `json:"total"`
	Skip  int            `json:"skip"`
	Limit int            `json:"limit"`
}

// --- Create / Preview ---

// Create assembles the submitted photo batch into a post and persists it
// in one transaction. Temp objects are moved to their permanent keys
// first; a failed move keeps the photo on its temp key and the post is
// created regardless. Request title, description and tags win over the
// assembled ones when set.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Photos) == 0 {
		respondError(w, http.StatusBadRequest, "photos is required")
		return
	}

	prepared := h.prepareBatch(r.Context(), principal, req.Photos, true)
	inputs := make([]post.PhotoInput, len(prepared))
	for i, p := range prepared {
		inputs[i] = p.input
	}
	assembled, _ := h.assembler.Assemble(r.Context(), inputs)

	title := req.Title
	if title == "" {
		title = assembled.Title
	}
	description := req.Description
	if description == "" {
		description = assembled.Description
	}
	tags := req.Tags
	if len(tags) == 0 {
		tags = assembled.Tags
	}

	newPost := &database.NewPost{
		Post: database.Post{
			Owner:       principal,
			Title:       title,
			Description: description,
			Tags:        tags,
		},
		Categories: albumCategories(assembled.Album),
		Route:      h.recommendRoute(r.Context(), title, inputs, req.UserContext, req.DurationDays, assembled.Route),
	}
	for i := range prepared {
		record := prepared[i].photo
		if i < len(assembled.PhotoDescriptions) {
			payload, _ := json.Marshal(assembled.PhotoDescriptions[i])
			record.Analyses = append(record.Analyses, database.LLMAnalysis{
				PhotoID:  record.Photo.ID,
				Kind:     database.AnalysisPhotoDescription,
				Provider: h.provider,
				Payload:  payload,
			})
		}
		newPost.Photos = append(newPost.Photos, record)
	}

	created, err := h.posts.CreatePost(r.Context(), newPost)
	if err != nil {
		log.Printf("creating post: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create post")
		return
	}
	respondJSON(w, http.StatusCreated, toPostResponse(created))
}

// Preview runs the same assembly as Create without persisting anything
// or touching storage keys.
func (h *PostsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Photos) == 0 {
		respondError(w, http.StatusBadRequest, "photos is required")
		return
	}

	prepared := h.prepareBatch(r.Context(), principal, req.Photos, false)
	inputs := make([]post.PhotoInput, len(prepared))
	for i, p := range prepared {
		inputs[i] = p.input
	}
	assembled, _ := h.assembler.Assemble(r.Context(), inputs)

	respondJSON(w, http.StatusOK, map[string]any{"preview": assembled})
}

// preparedPhoto pairs the persistable photo aggregate with its assembly input.
type preparedPhoto struct {
	photo database.NewPhoto
	input post.PhotoInput
}

// prepareBatch normalizes, finalizes and classifies the submitted photos.
// With finalize false the storage keys are left untouched (preview mode).
// Only temp keys owned by the caller are ever moved; foreign keys are
// persisted as given.
func (h *PostsHandler) prepareBatch(ctx context.Context, principal string, photos []postPhotoRequest, finalize bool) []preparedPhoto {
	out := make([]preparedPhoto, 0, len(photos))
	for _, p := range photos {
		norm := exif.Normalize(p.ExifData)
		takenAt := p.TakenAt
		if takenAt == "" {
			takenAt = norm.DateTime
		}

		photoID := p.PhotoID
		if photoID == "" {
			photoID = uuid.New().String()
		}

		fileKey := p.FileKey
		if finalize && storage.OwnsTempKey(fileKey, principal) {
			permanentKey := storage.PermanentKey(principal, photoID, storage.FileExt(p.FileName))
			if err := h.storage.Finalize(ctx, fileKey, permanentKey); err != nil {
				log.Printf("warning: keeping %s in place: %v", sanitizeForLog(fileKey), err)
			} else {
				fileKey = permanentKey
			}
		}

		fileSize := p.FileSize
		contentType := p.ContentType
		if finalize && (fileSize == 0 || contentType == "") {
			if info, err := h.storage.FileInfo(ctx, fileKey); err == nil && info != nil {
				if fileSize == 0 {
					fileSize = info.Size
				}
				if contentType == "" {
					contentType = info.ContentType
				}
			}
		}

		var loc classify.Location
		if p.Location != nil {
			loc = classify.Location{
				Country:  p.Location.Country,
				City:     p.Location.City,
				Region:   p.Location.Region,
				Landmark: p.Location.Landmark,
			}
		}

		record := database.NewPhoto{
			Photo: database.Photo{
				ID:          photoID,
				Owner:       principal,
				FileKey:     fileKey,
				FileName:    p.FileName,
				FileSize:    fileSize,
				ContentType: contentType,
				TakenAt:     takenAt,
			},
		}
		if p.Location != nil && !p.Location.Empty() {
			record.Location = locationRecord(photoID, *p.Location)
		}
		if p.ExifData != nil {
			set := labels.Derive(norm)
			record.Labels = photoLabels(set.Labels(photoID))
			payload, _ := json.Marshal(norm)
			record.Metadata = append(record.Metadata, database.ImageMetadata{
				PhotoID: photoID,
				Kind:    database.MetadataExif,
				Payload: payload,
			})
		}

		out = append(out, preparedPhoto{
			photo: record,
			input: post.PhotoInput{
				FileKey:    fileKey,
				TakenAt:    takenAt,
				Location:   p.Location,
				Categories: classify.Classify(loc, norm),
			},
		})
	}
	return out
}

// recommendRoute asks the provider for an ordered route over the located
// stops. A failed or stop-less recommendation falls back to the locally
// reconstructed route summary, so the post always carries a route.
func (h *PostsHandler) recommendRoute(ctx context.Context, title string, inputs []post.PhotoInput, userCtx *ai.UserContext, durationDays int, fallback post.RouteSummary) *database.Route {
	var stops []ai.TripStop
	for _, p := range inputs {
		if p.Location == nil || p.Location.Latitude == nil || p.Location.Longitude == nil {
			continue
		}
		stops = append(stops, ai.TripStop{
			Landmark:  p.Location.Landmark,
			City:      p.Location.City,
			Country:   p.Location.Country,
			TakenAt:   p.TakenAt,
			Latitude:  *p.Location.Latitude,
			Longitude: *p.Location.Longitude,
		})
	}
	if len(stops) > 0 {
		rec, err := h.planner.RecommendRoute(ctx, ai.RouteRequest{
			Stops:        stops,
			Context:      userCtx,
			DurationDays: durationDays,
		})
		if err != nil {
			log.Printf("warning: route recommendation failed: %v", err)
		} else if rec != nil {
			name := rec.RouteName
			if name == "" {
				name = title
			}
			payload, _ := json.Marshal(rec)
			return &database.Route{Name: name, Payload: payload}
		}
	}
	payload, _ := json.Marshal(fallback)
	return &database.Route{Name: title, Payload: payload}
}

// albumCategories flattens the aggregated album buckets into category rows.
func albumCategories(album classify.AlbumCategories) []database.Category {
	var out []database.Category
	add := func(kind string, names []string) {
		for _, name := range names {
			out = append(out, database.Category{Kind: kind, Name: name})
		}
	}
	add(database.CategoryCountry, album.Countries)
	add(database.CategoryCity, album.Cities)
	add(database.CategoryTheme, album.Themes)
	return out
}

// --- Read / List / Delete ---

func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	p, err := h.posts.GetPost(r.Context(), postID)
	if err != nil {
		log.Printf("loading post %s: %v", sanitizeForLog(postID), err)
		respondError(w, http.StatusInternalServerError, "failed to load post")
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}

	photos, err := h.posts.GetPostPhotos(r.Context(), p.ID)
	if err != nil {
		log.Printf("loading photos for %s: %v", p.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to load post")
		return
	}
	categories, err := h.posts.GetPostCategories(r.Context(), p.ID)
	if err != nil {
		log.Printf("loading categories for %s: %v", p.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to load post")
		return
	}
	route, err := h.posts.GetRoute(r.Context(), p.ID)
	if err != nil {
		log.Printf("loading route for %s: %v", p.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to load post")
		return
	}

	base := toPostResponse(p)
	detail := postDetailResponse{
		ID:          base.ID,
		Owner:       base.Owner,
		Title:       base.Title,
		Description: base.Description,
		Tags:        base.Tags,
		Photos:      make([]photoResponse, 0, len(photos)),
		Categories:  make(map[string][]string),
		CreatedAt:   base.CreatedAt,
		UpdatedAt:   base.UpdatedAt,
	}
	for _, ph := range photos {
		resp := photoResponse{
			ID:          ph.ID,
			FileKey:     ph.FileKey,
			FileName:    ph.FileName,
			FileSize:    ph.FileSize,
			ContentType: ph.ContentType,
			TakenAt:     ph.TakenAt,
			UploadedAt:  ph.UploadedAt.Format("2006-01-02T15:04:05Z"),
		}
		if loc, err := h.photos.GetLocation(r.Context(), ph.ID); err == nil && loc != nil {
			resp.Location = &locationResponse{
				Latitude:   loc.Latitude,
				Longitude:  loc.Longitude,
				Country:    loc.Country,
				City:       loc.City,
				Region:     loc.Region,
				Landmark:   loc.Landmark,
				Address:    loc.Address,
				Source:     loc.Source,
				Confidence: loc.Confidence,
			}
		}
		detail.Photos = append(detail.Photos, resp)
	}
	for _, c := range categories {
		detail.Categories[c.Kind] = append(detail.Categories[c.Kind], c.Name)
	}
	if route != nil {
		detail.Route = &routeResponse{Name: route.Name, Route: route.Payload}
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	posts, total, err := h.posts.ListPosts(r.Context(), database.ListPostsFilter{
		Owner:    principal,
		Category: r.URL.Query().Get("category"),
		Skip:     skip,
		Limit:    limit,
	})
	if err != nil {
		log.Printf("listing posts for %s: %v", sanitizeForLog(principal), err)
		respondError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}

	result := make([]postResponse, len(posts))
	for i := range posts {
		result[i] = toPostResponse(&posts[i])
	}
	respondJSON(w, http.StatusOK, listPostsResponse{
		Posts: result,
		Total: total,
		Skip:  skip,
		Limit: limit,
	})
}

// Delete removes a post, its database records and its stored objects.
// Object deletion is best effort; a missing object never blocks the
// database delete.
func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	postID := chi.URLParam(r, "postID")

	p, err := h.posts.GetPost(r.Context(), postID)
	if err != nil {
		log.Printf("loading post %s: %v", sanitizeForLog(postID), err)
		respondError(w, http.StatusInternalServerError, "failed to load post")
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "post not found")
		return
	}
	if p.Owner != principal {
		respondError(w, http.StatusForbidden, "not your post")
		return
	}

	photos, err := h.posts.GetPostPhotos(r.Context(), p.ID)
	if err != nil {
		log.Printf("warning: loading photos for %s before delete: %v", p.ID, err)
	}
	for _, ph := range photos {
		if err := h.storage.Delete(r.Context(), ph.FileKey); err != nil {
			log.Printf("warning: deleting object %s: %v", sanitizeForLog(ph.FileKey), err)
		}
	}

	if err := h.posts.DeletePost(r.Context(), p.ID); err != nil {
		log.Printf("deleting post %s: %v", p.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to delete post")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
