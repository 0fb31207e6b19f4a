package storage

import (
	"context"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ysalek1982/skyworth-buddy-sub001/internal/cache"
)

var tracer = otel.Tracer("promo-claim-api")

const (
	// DefaultValidity is the signing window requested when no override is given.
	DefaultValidity = 3600 * time.Second

	// safetyMargin is subtracted from the signing window before caching, so a
	// cache hit always has at least this much validity remaining.
	safetyMargin = 60 * time.Second
)

// Resolver converts stored document references into directly fetchable URLs,
// signing only on cache misses and reusing prior signatures while they
// remain safely valid.
type Resolver struct {
	signer          Signer
	cache           cache.Cache
	policy          *BucketPolicy
	logger          *log.Logger
	defaultValidity time.Duration
}

// ResolverOption configures a Resolver at construction time.
type ResolverOption func(*Resolver)

// WithDefaultValidity sets the signing window used when a resolution does
// not request one explicitly.
func WithDefaultValidity(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.defaultValidity = d
		}
	}
}

// NewResolver creates a resolver. The cache is shared process-wide state and
// is injected so tests can substitute it.
func NewResolver(signer Signer, c cache.Cache, policy *BucketPolicy, logger *log.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = log.Default()
	}

	r := &Resolver{
		signer:          signer,
		cache:           c,
		policy:          policy,
		logger:          logger,
		defaultValidity: DefaultValidity,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ResolveOption overrides resolution defaults.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	validity    time.Duration
	fallback    string
	hasFallback bool
}

// WithValidity overrides the default signing window.
func WithValidity(d time.Duration) ResolveOption {
	return func(o *resolveOptions) {
		if d > 0 {
			o.validity = d
		}
	}
}

// WithFallback overrides the value returned when the reference cannot be
// resolved. The default fallback is the original input string.
func WithFallback(fallback string) ResolveOption {
	return func(o *resolveOptions) {
		o.fallback = fallback
		o.hasFallback = true
	}
}

type signedURLEntry struct {
	URL string `json:"url"`
}

// Resolve returns a URL safe to hand to a client. It never returns an error:
// when the input is not a signable reference or the signing service is
// unavailable, the caller gets the fallback (by default the input itself).
func (r *Resolver) Resolve(ctx context.Context, raw string, opts ...ResolveOption) string {
	options := resolveOptions{validity: r.defaultValidity}
	for _, opt := range opts {
		opt(&options)
	}

	fallback := raw
	if options.hasFallback {
		fallback = options.fallback
	}

	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	// Transient local references and inline payloads are not storage objects.
	if strings.HasPrefix(raw, "blob:") || strings.HasPrefix(raw, "data:") {
		return raw
	}

	// Never re-sign something that already looks signed.
	if strings.Contains(raw, signSegment) {
		return raw
	}

	ref, ok := ExtractReference(raw, r.policy)
	if !ok {
		return fallback
	}

	if !r.policy.Allowed(ref.Bucket) {
		return fallback
	}

	ctx, span := tracer.Start(ctx, "storage.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("storage.bucket", ref.Bucket))

	key := ref.Bucket + ":" + ref.Path

	var entry signedURLEntry
	if err := cache.GetJSON(ctx, r.cache, key, &entry); err == nil && entry.URL != "" {
		span.SetAttributes(attribute.Bool("storage.cache_hit", true))
		return entry.URL
	}
	span.SetAttributes(attribute.Bool("storage.cache_hit", false))

	signed, err := r.signer.SignURL(ctx, ref.Bucket, ref.Path, options.validity)
	if err != nil || signed == "" {
		if err != nil {
			span.RecordError(err)
			r.logger.Printf("signed-url resolution degraded for %s: %v", key, err)
		}
		return fallback
	}

	if ttl := options.validity - safetyMargin; ttl > 0 {
		if err := cache.SetJSON(ctx, r.cache, key, signedURLEntry{URL: signed}, ttl); err != nil {
			r.logger.Printf("failed to cache signed url for %s: %v", key, err)
		}
	}

	return signed
}
