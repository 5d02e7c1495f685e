package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duckgeunpark/IWT/internal/ai"
	"github.com/duckgeunpark/IWT/internal/classify"
	"github.com/duckgeunpark/IWT/internal/database"
	"github.com/duckgeunpark/IWT/internal/enrich"
	"github.com/duckgeunpark/IWT/internal/exif"
	"github.com/duckgeunpark/IWT/internal/labels"
	"github.com/duckgeunpark/IWT/internal/storage"
	"github.com/duckgeunpark/IWT/internal/web/middleware"
)

// PhotosHandler handles photo upload and enrichment endpoints.
type PhotosHandler struct {
	photos   database.PhotoStore
	storage  ObjectStore
	enricher *enrich.Orchestrator
	provider string // provider name recorded on persisted analyses
}

// NewPhotosHandler creates a new photos handler.
func NewPhotosHandler(photos database.PhotoStore, store ObjectStore, enricher *enrich.Orchestrator, provider string) *PhotosHandler {
	return &PhotosHandler{
		photos:   photos,
		storage:  store,
		enricher: enricher,
		provider: provider,
	}
}

type uploadURLResponse struct {
	PhotoID      string `json:"photo_id"`
	PresignedURL string `json:"presigned_url"`
	FileKey      string `json:"file_key"`
	ExpiresIn    int    `json:"expires_in"`
}

// UploadURL issues a presigned PUT URL under the caller's temp prefix and
// records the pending photo row the URL belongs to.
func (h *PhotosHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	var req struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.FileName == "" {
		respondError(w, http.StatusBadRequest, "file_name is required")
		return
	}

	photo := &database.Photo{
		ID:          uuid.New().String(),
		Owner:       principal,
		FileName:    req.FileName,
		ContentType: req.ContentType,
	}
	photo.FileKey = storage.TempKey(principal, photo.ID, storage.FileExt(req.FileName))

	uploadURL, err := h.storage.PresignUpload(r.Context(), photo.FileKey, storage.DefaultUploadExpiry)
	if err != nil {
		log.Printf("presigning upload for %s: %v", sanitizeForLog(photo.FileKey), err)
		respondError(w, http.StatusInternalServerError, "failed to create upload URL")
		return
	}
	if err := h.photos.CreatePhoto(r.Context(), photo); err != nil {
		log.Printf("creating photo %s: %v", photo.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to create photo")
		return
	}

	respondJSON(w, http.StatusOK, uploadURLResponse{
		PhotoID:      photo.ID,
		PresignedURL: uploadURL.String(),
		FileKey:      photo.FileKey,
		ExpiresIn:    int(storage.DefaultUploadExpiry.Seconds()),
	})
}

type enrichRequest struct {
	ExifData    *exif.RawExif   `json:"exif_data"`
	RunOCR      bool            `json:"run_ocr"`
	UserContext *ai.UserContext `json:"user_context"`
}

type enrichResponse struct {
	PhotoID    string                `json:"photo_id"`
	ExifData   exif.NormalizedExif   `json:"exif_data"`
	Labels     labels.Set            `json:"labels"`
	Location   *enrich.LocationGuess `json:"location,omitempty"`
	Categories classify.Categories   `json:"categories"`
}

// Enrich runs the metadata pipeline for one uploaded photo: normalize the
// submitted EXIF (or extract it from the stored object when none was sent),
// derive rule labels, enrich the location and classify the result. Labels,
// location, analyses and the normalized EXIF are persisted before the full
// result is returned.
func (h *PhotosHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	photoID := chi.URLParam(r, "photoID")

	photo, err := h.photos.GetPhoto(r.Context(), photoID)
	if err != nil {
		log.Printf("loading photo %s: %v", sanitizeForLog(photoID), err)
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return
	}
	if photo == nil {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	if photo.Owner != principal {
		respondError(w, http.StatusForbidden, "not your photo")
		return
	}

	var req enrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	raw := req.ExifData
	if raw == nil {
		raw = h.extractFromObject(r.Context(), photo.FileKey)
	}
	norm := exif.Normalize(raw)

	takenAt := norm.DateTime
	if takenAt == "" {
		takenAt = photo.TakenAt
	}
	if norm.DateTime != "" && norm.DateTime != photo.TakenAt {
		if err := h.photos.UpdatePhotoTakenAt(r.Context(), photo.ID, norm.DateTime); err != nil {
			log.Printf("recording capture time for %s: %v", photo.ID, err)
			respondError(w, http.StatusInternalServerError, "failed to save enrichment")
			return
		}
	}

	set := labels.Derive(norm)
	if err := h.photos.ReplaceLabels(r.Context(), photo.ID, labels.SourceExif, photoLabels(set.Labels(photo.ID))); err != nil {
		log.Printf("saving labels for %s: %v", photo.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to save labels")
		return
	}

	result := h.enricher.EnrichLocation(r.Context(), enrich.Request{
		GPS:         norm.GPS,
		DateTime:    takenAt,
		ImageRef:    photo.FileKey,
		RunOCR:      req.RunOCR,
		UserContext: req.UserContext,
	})

	merged := result.Merged
	if !merged.Empty() {
		if err := h.photos.SaveLocation(r.Context(), locationRecord(photo.ID, merged)); err != nil {
			log.Printf("saving location for %s: %v", photo.ID, err)
			respondError(w, http.StatusInternalServerError, "failed to save location")
			return
		}
	}
	if err := h.saveAnalyses(r.Context(), photo.ID, result); err != nil {
		log.Printf("saving analyses for %s: %v", photo.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to save enrichment")
		return
	}
	if raw != nil {
		payload, _ := json.Marshal(norm)
		meta := &database.ImageMetadata{PhotoID: photo.ID, Kind: database.MetadataExif, Payload: payload}
		if err := h.photos.SaveMetadata(r.Context(), meta); err != nil {
			log.Printf("saving metadata for %s: %v", photo.ID, err)
			respondError(w, http.StatusInternalServerError, "failed to save enrichment")
			return
		}
	}

	resp := enrichResponse{
		PhotoID:  photo.ID,
		ExifData: norm,
		Labels:   set,
		Categories: classify.Classify(classify.Location{
			Country:  merged.Country,
			City:     merged.City,
			Region:   merged.Region,
			Landmark: merged.Landmark,
		}, norm),
	}
	if !merged.Empty() {
		resp.Location = &merged
	}
	respondJSON(w, http.StatusOK, resp)
}

// extractFromObject pulls EXIF out of the stored object for requests that
// carried none. Extraction is best effort: any failure just means the
// pipeline runs without EXIF input.
func (h *PhotosHandler) extractFromObject(ctx context.Context, key string) *exif.RawExif {
	exists, err := h.storage.Exists(ctx, key)
	if err != nil {
		log.Printf("warning: checking object %s: %v", sanitizeForLog(key), err)
		return nil
	}
	if !exists {
		return nil
	}
	data, err := h.storage.Download(ctx, key)
	if err != nil {
		log.Printf("warning: downloading %s for exif extraction: %v", sanitizeForLog(key), err)
		return nil
	}
	raw, err := exif.ExtractFromImage(bytes.NewReader(data))
	if err != nil {
		log.Printf("warning: extracting exif from %s: %v", sanitizeForLog(key), err)
		return nil
	}
	return raw
}

// saveAnalyses persists the raw sub-results of one enrichment pass.
func (h *PhotosHandler) saveAnalyses(ctx context.Context, photoID string, result enrich.Result) error {
	var records []database.LLMAnalysis
	add := func(kind string, v any) {
		payload, _ := json.Marshal(v)
		records = append(records, database.LLMAnalysis{
			PhotoID:  photoID,
			Kind:     kind,
			Provider: h.provider,
			Payload:  payload,
		})
	}
	if result.Place != nil {
		add(database.AnalysisPlaceInference, result.Place)
	}
	if result.Reading != nil {
		add(database.AnalysisTextReading, result.Reading)
	}
	if result.Hints != nil {
		add(database.AnalysisTextHints, result.Hints)
	}
	if result.Enhanced != nil {
		add(database.AnalysisLocationEnhancement, result.Enhanced)
	}
	for i := range records {
		if err := h.photos.SaveAnalysis(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

// photoLabels converts derived labels into persistable records.
func photoLabels(ls []labels.Label) []database.PhotoLabel {
	out := make([]database.PhotoLabel, len(ls))
	for i, l := range ls {
		out[i] = database.PhotoLabel{
			PhotoID:    l.PhotoID,
			Type:       l.Type,
			Name:       l.Name,
			Confidence: l.Confidence,
			Source:     l.Source,
		}
	}
	return out
}

// locationRecord maps a merged location guess onto the photo's location row.
func locationRecord(photoID string, g enrich.LocationGuess) *database.Location {
	return &database.Location{
		PhotoID:    photoID,
		Latitude:   g.Latitude,
		Longitude:  g.Longitude,
		Country:    g.Country,
		City:       g.City,
		Region:     g.Region,
		Landmark:   g.Landmark,
		Address:    g.Address,
		Source:     g.Source,
		Confidence: g.Confidence,
	}
}
