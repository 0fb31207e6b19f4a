package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ysalek1982/skyworth-buddy-sub001/internal/cache"
)

// countingSigner records how many times the signing service is called and
// the validity window of each request.
type countingSigner struct {
	calls      int
	validities []time.Duration
	url        string
	err        error
}

func (s *countingSigner) SignURL(ctx context.Context, bucket, path string, validity time.Duration) (string, error) {
	s.calls++
	s.validities = append(s.validities, validity)
	if s.err != nil {
		return "", s.err
	}
	if s.url != "" {
		return s.url, nil
	}
	return fmt.Sprintf("https://storage.example.com/object/sign/%s/%s?token=t%d", bucket, path, s.calls), nil
}

func newTestResolver(signer Signer) *Resolver {
	return NewResolver(signer, cache.NewInMemoryCache(), NewBucketPolicy(), nil)
}

func TestResolve_EmptyInputReturnsFallback(t *testing.T) {
	signer := &countingSigner{}
	r := newTestResolver(signer)

	if got := r.Resolve(context.Background(), ""); got != "" {
		t.Errorf("Expected empty fallback, got '%s'", got)
	}

	got := r.Resolve(context.Background(), "   ", WithFallback("placeholder.png"))
	if got != "placeholder.png" {
		t.Errorf("Expected overridden fallback, got '%s'", got)
	}

	if signer.calls != 0 {
		t.Errorf("Expected no signer calls, got %d", signer.calls)
	}
}

func TestResolve_TransientSchemesPassThrough(t *testing.T) {
	signer := &countingSigner{}
	r := newTestResolver(signer)

	inputs := []string{
		"blob:https://app.example.com/3f0a",
		"data:image/png;base64,iVBORw0KGgo=",
	}

	for _, input := range inputs {
		if got := r.Resolve(context.Background(), input); got != input {
			t.Errorf("Expected '%s' unchanged, got '%s'", input, got)
		}
	}

	if signer.calls != 0 {
		t.Errorf("Expected no signer calls, got %d", signer.calls)
	}
}

func TestResolve_AlreadySignedPassThrough(t *testing.T) {
	signer := &countingSigner{}
	r := newTestResolver(signer)

	input := "https://storage.example.com/object/sign/claim-documents/doc.pdf?token=abc"
	if got := r.Resolve(context.Background(), input); got != input {
		t.Errorf("Expected already-signed URL unchanged, got '%s'", got)
	}

	if signer.calls != 0 {
		t.Errorf("Expected no signer calls, got %d", signer.calls)
	}
}

func TestResolve_UnknownBucketReturnsFallback(t *testing.T) {
	signer := &countingSigner{}
	r := newTestResolver(signer)

	input := "https://storage.example.com/object/public/secrets/key.pem"
	if got := r.Resolve(context.Background(), input); got != input {
		t.Errorf("Expected fallback for unknown bucket, got '%s'", got)
	}

	if signer.calls != 0 {
		t.Errorf("Expected no signer calls for disallowed bucket, got %d", signer.calls)
	}
}

func TestResolve_UnparseableReturnsFallback(t *testing.T) {
	signer := &countingSigner{}
	r := newTestResolver(signer)

	input := "https://example.com/not-storage.html"
	if got := r.Resolve(context.Background(), input); got != input {
		t.Errorf("Expected fallback for non-reference, got '%s'", got)
	}

	if signer.calls != 0 {
		t.Errorf("Expected no signer calls, got %d", signer.calls)
	}
}

func TestResolve_CacheHitSignsOnce(t *testing.T) {
	signer := &countingSigner{}
	r := newTestResolver(signer)

	input := "https://storage.example.com/object/public/claim-documents/doc.pdf"

	first := r.Resolve(context.Background(), input)
	second := r.Resolve(context.Background(), input)

	if first != second {
		t.Errorf("Expected identical cached URL, got '%s' then '%s'", first, second)
	}

	if signer.calls != 1 {
		t.Errorf("Expected exactly 1 signer call, got %d", signer.calls)
	}
}

func TestResolve_ShortValidityNotCached(t *testing.T) {
	signer := &countingSigner{}
	r := newTestResolver(signer)

	input := "claim-documents/doc.pdf"

	// A validity window at the safety margin yields a non-cacheable entry,
	// so the next resolution must sign again.
	r.Resolve(context.Background(), input, WithValidity(60*time.Second))
	r.Resolve(context.Background(), input, WithValidity(60*time.Second))

	if signer.calls != 2 {
		t.Errorf("Expected a fresh signer call per resolution, got %d", signer.calls)
	}
}

func TestResolve_ExpiredCacheEntryResignsOnce(t *testing.T) {
	signer := &countingSigner{}
	r := newTestResolver(signer)

	input := "claim-documents/doc.pdf"
	// Validity just above the safety margin leaves a tiny positive TTL.
	validity := safetyMargin + 40*time.Millisecond

	first := r.Resolve(context.Background(), input, WithValidity(validity))
	r.Resolve(context.Background(), input, WithValidity(validity))
	if signer.calls != 1 {
		t.Fatalf("Expected the entry cached while fresh, got %d signer calls", signer.calls)
	}

	time.Sleep(60 * time.Millisecond)

	second := r.Resolve(context.Background(), input, WithValidity(validity))
	if signer.calls != 2 {
		t.Errorf("Expected exactly one fresh signer call after expiry, got %d total", signer.calls)
	}
	if second == first {
		t.Error("Expected a fresh signed URL after the cached entry expired")
	}
}

func TestResolve_ConfiguredDefaultValidity(t *testing.T) {
	signer := &countingSigner{}
	r := NewResolver(signer, cache.NewInMemoryCache(), NewBucketPolicy(), nil,
		WithDefaultValidity(600*time.Second))

	r.Resolve(context.Background(), "claim-documents/doc.pdf")

	if len(signer.validities) != 1 || signer.validities[0] != 600*time.Second {
		t.Fatalf("Expected the configured 600s validity, got %v", signer.validities)
	}

	// A per-request window still wins over the configured default.
	r.Resolve(context.Background(), "invoices/receipt.jpg", WithValidity(120*time.Second))

	if len(signer.validities) != 2 || signer.validities[1] != 120*time.Second {
		t.Errorf("Expected the per-request 120s validity, got %v", signer.validities)
	}
}

func TestResolve_SignerFailureReturnsFallback(t *testing.T) {
	signer := &countingSigner{err: fmt.Errorf("connection refused")}
	r := newTestResolver(signer)

	input := "claim-documents/doc.pdf"
	if got := r.Resolve(context.Background(), input); got != input {
		t.Errorf("Expected original input on signer failure, got '%s'", got)
	}

	if signer.calls != 1 {
		t.Errorf("Expected 1 signer call, got %d", signer.calls)
	}
}

func TestResolve_SignerFailureDoesNotPoisonCache(t *testing.T) {
	signer := &countingSigner{err: fmt.Errorf("connection refused")}
	r := newTestResolver(signer)

	input := "claim-documents/doc.pdf"
	r.Resolve(context.Background(), input)

	// Service recovers; next resolution should retry and succeed.
	signer.err = nil
	got := r.Resolve(context.Background(), input)
	if got == input {
		t.Error("Expected a signed URL after the signer recovered")
	}

	if signer.calls != 2 {
		t.Errorf("Expected 2 signer calls, got %d", signer.calls)
	}
}
