package handlers

import (
	"context"
	"log"
	"net/http"
)

// DBPinger reports database reachability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// BucketChecker reports object-storage reachability.
type BucketChecker interface {
	Health(ctx context.Context) error
}

// ReadyHandler handles the readiness endpoint.
type ReadyHandler struct {
	db     DBPinger
	bucket BucketChecker
}

// NewReadyHandler creates a new readiness handler.
func NewReadyHandler(db DBPinger, bucket BucketChecker) *ReadyHandler {
	return &ReadyHandler{db: db, bucket: bucket}
}

// Ready reports whether the database and the storage bucket are reachable.
// Check failures are logged with their cause; the response only names the
// failing dependency.
func (h *ReadyHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database": "ok",
		"storage":  "ok",
	}
	status := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		log.Printf("readiness: database check failed: %v", err)
		checks["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if err := h.bucket.Health(r.Context()); err != nil {
		log.Printf("readiness: storage check failed: %v", err)
		checks["storage"] = "unreachable"
		status = http.StatusServiceUnavailable
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	respondJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
	})
}
