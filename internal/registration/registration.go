package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Request carries the claim fields the registration service needs to
// atomically register a serial and issue reward coupons.
type Request struct {
	SerialNumber string    `json:"serial_number"`
	FullName     string    `json:"full_name"`
	NationalID   string    `json:"national_id"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	City         string    `json:"city"`
	PurchaseDate time.Time `json:"purchase_date"`
	OwnerID      string    `json:"owner_id"`
}

// Result is the registration service's report. Success=false means the
// business rule was rejected (e.g. duplicate serial) and no partial changes
// were made.
type Result struct {
	Success     bool     `json:"success"`
	CouponCount int      `json:"coupon_count"`
	Coupons     []string `json:"coupons"`
	Error       string   `json:"error,omitempty"`
}

// Registrar is the atomic registration-and-reward boundary. An error return
// means transport failure; a Result with Success=false means a logical
// rejection. Either way the caller must treat the operation as not applied.
type Registrar interface {
	Register(ctx context.Context, req Request) (Result, error)
}

// HTTPRegistrar calls the registration service over HTTP.
type HTTPRegistrar struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPRegistrar creates a registrar for the given endpoint.
func NewHTTPRegistrar(endpoint, apiKey string, timeout time.Duration) *HTTPRegistrar {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &HTTPRegistrar{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Register posts the claim data and decodes the service's verdict.
func (r *HTTPRegistrar) Register(ctx context.Context, regReq Request) (Result, error) {
	body, err := json.Marshal(regReq)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("registration service unreachable: %w", err)
	}
	defer resp.Body.Close()

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("failed to decode registration response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{}, fmt.Errorf("registration service returned %d: %s", resp.StatusCode, result.Error)
	}

	return result, nil
}
