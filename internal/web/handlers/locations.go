package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/duckgeunpark/IWT/internal/ai"
	"github.com/duckgeunpark/IWT/internal/enrich"
	"github.com/duckgeunpark/IWT/internal/exif"
)

// LocationsHandler handles standalone location enrichment, detached
// from any stored photo.
type LocationsHandler struct {
	enricher *enrich.Orchestrator
}

// NewLocationsHandler creates a new locations handler.
func NewLocationsHandler(enricher *enrich.Orchestrator) *LocationsHandler {
	return &LocationsHandler{enricher: enricher}
}

type enhanceRequest struct {
	Location    enrich.LocationGuess `json:"location"`
	UserContext *ai.UserContext      `json:"user_context"`
}

// Enhance re-runs the location pipeline over an already-known location.
// Fields the caller supplies are kept as-is; geocoding and the model
// only fill the gaps and add travel context.
func (h *LocationsHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Location.Empty() {
		respondError(w, http.StatusBadRequest, "location is required")
		return
	}

	var gps *exif.GPSCoordinates
	if req.Location.Latitude != nil && req.Location.Longitude != nil {
		gps = &exif.GPSCoordinates{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
		}
	}
	userCtx := req.UserContext
	if userCtx == nil {
		userCtx = &ai.UserContext{}
	}

	result := h.enricher.EnrichLocation(r.Context(), enrich.Request{
		GPS:         gps,
		UserContext: userCtx,
		Known:       req.Location,
	})
	respondJSON(w, http.StatusOK, result.Merged)
}
