package storage

import (
	"fmt"
	"path"
	"strings"
)

// Object key layout. Uploads land under a per-principal temp prefix and
// are moved under photos/ once their post is created.
const (
	tempPrefix      = "temp"
	permanentPrefix = "photos"
)

// TempKey returns the upload key for a photo that has not been attached
// to a post yet.
func TempKey(principal, photoID, ext string) string {
	return path.Join(tempPrefix, principal, photoID) + normalizeExt(ext)
}

// PermanentKey returns the final key of a photo's original file.
func PermanentKey(principal, photoID, ext string) string {
	return path.Join(permanentPrefix, principal, photoID, "original") + normalizeExt(ext)
}

// OwnsTempKey reports whether key lies under the principal's temp prefix.
// Finalize and cleanup only ever touch keys this returns true for.
func OwnsTempKey(key, principal string) bool {
	if principal == "" {
		return false
	}
	return strings.HasPrefix(key, fmt.Sprintf("%s/%s/", tempPrefix, principal))
}

// normalizeExt lowercases an extension and ensures a leading dot.
// An empty extension stays empty.
func normalizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ToLower(ext)
}

// FileExt extracts the normalized extension from a file name.
func FileExt(name string) string {
	return normalizeExt(path.Ext(name))
}
