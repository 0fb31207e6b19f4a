package storage

// BucketPolicy is the static allow-list of buckets eligible for signing.
// References to any other bucket are passed through unchanged so the
// resolver can never be used as a generic signer for unrelated storage.
type BucketPolicy struct {
	allowed map[string]bool
}

// DefaultBuckets are the containers that hold claim documents.
var DefaultBuckets = []string{"claim-documents", "invoices"}

// NewBucketPolicy creates a policy allowing exactly the given buckets.
// With no buckets it falls back to DefaultBuckets.
func NewBucketPolicy(buckets ...string) *BucketPolicy {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}

	allowed := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		allowed[b] = true
	}

	return &BucketPolicy{allowed: allowed}
}

// Allowed reports whether a bucket is eligible for signing.
func (p *BucketPolicy) Allowed(bucket string) bool {
	return p.allowed[bucket]
}
