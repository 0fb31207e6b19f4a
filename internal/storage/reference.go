package storage

import (
	"net/url"
	"strings"
)

// StorageReference is a parsed (bucket, path) pair. It is recomputed per
// input string and never persisted.
type StorageReference struct {
	Bucket string
	Path   string
}

const (
	publicSegment = "/object/public/"
	signSegment   = "/object/sign/"
)

// ExtractReference parses a raw string into a StorageReference. It accepts
// a full storage URL containing an /object/public/ or /object/sign/ path
// segment, or a bare "<bucket>/<path>" shorthand whose bucket is in the
// policy allow-list. The second return value is false when the input is not
// a storage reference.
func ExtractReference(raw string, policy *BucketPolicy) (StorageReference, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StorageReference{}, false
	}

	for _, segment := range []string{publicSegment, signSegment} {
		idx := strings.Index(raw, segment)
		if idx < 0 {
			continue
		}

		rest := raw[idx+len(segment):]
		// Strip query string before splitting; signed URLs carry a token.
		if q := strings.IndexByte(rest, '?'); q >= 0 {
			rest = rest[:q]
		}

		bucket, path, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || path == "" {
			return StorageReference{}, false
		}

		if decoded, err := url.PathUnescape(path); err == nil {
			path = decoded
		}

		return StorageReference{Bucket: bucket, Path: path}, true
	}

	// Bare "<bucket>/<path>" shorthand, only for allow-listed buckets.
	if !strings.Contains(raw, "://") {
		bucket, path, ok := strings.Cut(raw, "/")
		if ok && bucket != "" && path != "" && policy != nil && policy.Allowed(bucket) {
			return StorageReference{Bucket: bucket, Path: path}, true
		}
	}

	return StorageReference{}, false
}
