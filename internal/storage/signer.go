package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Signer issues a time-limited URL for an object. Implementations call the
// external signing service; the resolver degrades to its fallback when the
// service is unreachable.
type Signer interface {
	SignURL(ctx context.Context, bucket, path string, validity time.Duration) (string, error)
}

// HTTPSigner signs objects through the storage service's sign endpoint.
type HTTPSigner struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSigner creates a signer for the given storage service base URL.
func NewHTTPSigner(baseURL, apiKey string, timeout time.Duration) *HTTPSigner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPSigner{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
	Error     string `json:"error,omitempty"`
}

// SignURL requests a signed URL for (bucket, path) valid for the given window.
func (s *HTTPSigner) SignURL(ctx context.Context, bucket, path string, validity time.Duration) (string, error) {
	endpoint := fmt.Sprintf("%s/object/sign/%s/%s", s.baseURL, url.PathEscape(bucket), escapePath(path))

	body, err := json.Marshal(signRequest{ExpiresIn: int(validity.Seconds())})
	if err != nil {
		return "", fmt.Errorf("failed to encode sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signing service unreachable: %w", err)
	}
	defer resp.Body.Close()

	var result signResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode sign response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if result.Error != "" {
			return "", fmt.Errorf("signing service returned %d: %s", resp.StatusCode, result.Error)
		}
		return "", fmt.Errorf("signing service returned %d", resp.StatusCode)
	}

	if result.SignedURL == "" {
		return "", fmt.Errorf("signing service returned an empty URL")
	}

	// The service returns a path relative to its base.
	if strings.HasPrefix(result.SignedURL, "/") {
		return s.baseURL + result.SignedURL, nil
	}

	return result.SignedURL, nil
}

// escapePath escapes each path segment while keeping separators.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
