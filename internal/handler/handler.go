package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/adjudication"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/database"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/models"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/service"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// CreateClaim handles POST /claims
func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.CreateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	// Sanitize string fields
	req.SerialNumber = validation.SanitizeString(req.SerialNumber)
	req.FullName = validation.SanitizeString(req.FullName)
	req.NationalID = validation.SanitizeString(req.NationalID)
	req.Email = validation.SanitizeString(req.Email)
	req.Phone = validation.SanitizeString(req.Phone)
	req.City = validation.SanitizeString(req.City)
	req.ProductID = validation.SanitizeString(req.ProductID)
	req.DocumentURL = validation.SanitizeString(req.DocumentURL)

	claim, err := h.service.CreateClaim(r.Context(), req)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, claim)
}

// GetClaim handles GET /claims/{claim_id}
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claimID := validation.SanitizeString(chi.URLParam(r, "claim_id"))
	if claimID == "" {
		h.respondError(w, http.StatusBadRequest, "claim_id is required")
		return
	}

	claim, err := h.service.GetClaim(r.Context(), claimID)
	if err != nil {
		if errors.Is(err, database.ErrClaimNotFound) {
			h.respondError(w, http.StatusNotFound, "claim not found")
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, claim)
}

// ListClaims handles GET /claims
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	status := models.ClaimStatus(validation.SanitizeString(r.URL.Query().Get("status")))

	switch status {
	case "", models.StatusSubmitted, models.StatusApproved, models.StatusRejected:
	default:
		h.respondError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	claims, err := h.service.ListClaims(r.Context(), status)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, models.ListClaimsResponse{
		Claims: claims,
		Count:  len(claims),
	})
}

// AdjudicateClaim handles POST /claims/{claim_id}/adjudicate
func (h *Handler) AdjudicateClaim(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	claimID := validation.SanitizeString(chi.URLParam(r, "claim_id"))
	if claimID == "" {
		h.respondError(w, http.StatusBadRequest, "claim_id is required")
		return
	}

	var req models.AdjudicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.Decision = validation.SanitizeString(req.Decision)
	req.RejectionReason = validation.SanitizeString(req.RejectionReason)

	outcome, err := h.service.Adjudicate(r.Context(), claimID, req.Decision, req.RejectionReason)
	if err != nil {
		h.respondAdjudicationError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, outcome)
}

// respondAdjudicationError maps the adjudication failure taxonomy onto
// HTTP statuses: operator mistakes are 4xx, upstream and local faults 5xx.
func (h *Handler) respondAdjudicationError(w http.ResponseWriter, err error) {
	var valErr *validation.ValidationError
	var regErr *adjudication.RegistrationError
	var persistErr *adjudication.PersistenceError

	switch {
	case errors.Is(err, adjudication.ErrClaimNotFound):
		h.respondError(w, http.StatusNotFound, "claim not found")
	case errors.As(err, &valErr), errors.Is(err, adjudication.ErrInvalidDecision):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, adjudication.ErrAlreadyAdjudicated):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &regErr):
		h.respondError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &persistErr):
		h.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// ResolveDocument handles GET /documents/resolve
func (h *Handler) ResolveDocument(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if validation.SanitizeString(ref) == "" {
		h.respondError(w, http.StatusBadRequest, "ref is required")
		return
	}

	var validity time.Duration
	if expiresIn := r.URL.Query().Get("expires_in"); expiresIn != "" {
		seconds, err := strconv.Atoi(expiresIn)
		if err != nil || seconds <= 0 {
			h.respondError(w, http.StatusBadRequest, "expires_in must be a positive number of seconds")
			return
		}
		validity = time.Duration(seconds) * time.Second
	}

	url := h.service.ResolveDocument(r.Context(), ref, validity)

	h.respondJSON(w, http.StatusOK, models.ResolveDocumentResponse{URL: url})
}

// CreateProduct handles POST /products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.Product
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.ID = validation.SanitizeString(req.ID)
	req.SKU = validation.SanitizeString(req.SKU)
	req.Name = validation.SanitizeString(req.Name)
	req.Line = validation.SanitizeString(req.Line)

	if err := h.service.CreateProduct(r.Context(), req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, req)
}

// ListProducts handles GET /products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, products)
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
