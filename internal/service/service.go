package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/adjudication"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/database"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/events"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/models"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/storage"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/validation"
)

// Service provides business logic for the promotion claim API.
type Service struct {
	db          *database.DB
	resolver    *storage.Resolver
	adjudicator *adjudication.Adjudicator
	events      *events.Manager
}

// NewService creates a new service instance.
func NewService(db *database.DB, resolver *storage.Resolver, adjudicator *adjudication.Adjudicator, eventMgr *events.Manager) *Service {
	return &Service{
		db:          db,
		resolver:    resolver,
		adjudicator: adjudicator,
		events:      eventMgr,
	}
}

// CreateClaim stores a newly submitted claim in state SUBMITTED.
func (s *Service) CreateClaim(ctx context.Context, req models.CreateClaimRequest) (models.Claim, error) {
	if err := validation.ValidateClaim(req); err != nil {
		return models.Claim{}, err
	}

	now := time.Now().UTC()
	claim := models.Claim{
		ID:           uuid.New().String(),
		SerialNumber: req.SerialNumber,
		FullName:     req.FullName,
		NationalID:   req.NationalID,
		Email:        req.Email,
		Phone:        req.Phone,
		City:         req.City,
		PurchaseDate: req.PurchaseDate,
		ProductID:    req.ProductID,
		DocumentURL:  req.DocumentURL,
		Status:       models.StatusSubmitted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.InsertClaim(claim); err != nil {
		return models.Claim{}, fmt.Errorf("failed to store claim: %w", err)
	}

	s.events.PublishClaimSubmitted(ctx, claim)

	return claim, nil
}

// GetClaim returns a claim with its document reference resolved to a
// viewable URL.
func (s *Service) GetClaim(ctx context.Context, claimID string) (models.Claim, error) {
	claim, err := s.db.GetClaim(claimID)
	if err != nil {
		return models.Claim{}, err
	}

	if claim.DocumentURL != "" {
		claim.DocumentURL = s.resolver.Resolve(ctx, claim.DocumentURL)
	}

	return claim, nil
}

// ListClaims returns claims filtered by status ("" for all).
func (s *Service) ListClaims(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error) {
	return s.db.ListClaims(status)
}

// Adjudicate commits an approve/reject decision on a claim.
func (s *Service) Adjudicate(ctx context.Context, claimID, decision, rejectionReason string) (models.Outcome, error) {
	if err := validation.ValidateDecision(decision); err != nil {
		return models.Outcome{}, err
	}

	outcome, err := s.adjudicator.Adjudicate(ctx, claimID, decision, rejectionReason)
	if err != nil {
		return models.Outcome{}, err
	}

	s.events.PublishClaimAdjudicated(ctx, outcome)

	return outcome, nil
}

// ResolveDocument converts a stored document reference into a viewable URL.
func (s *Service) ResolveDocument(ctx context.Context, reference string, validity time.Duration) string {
	var opts []storage.ResolveOption
	if validity > 0 {
		opts = append(opts, storage.WithValidity(validity))
	}

	url := s.resolver.Resolve(ctx, reference, opts...)

	s.events.PublishDocumentResolved(ctx, reference, url != reference)

	return url
}

// CreateProduct creates or updates a catalog product.
func (s *Service) CreateProduct(ctx context.Context, product models.Product) error {
	if err := validation.ValidateProduct(product); err != nil {
		return err
	}

	return s.db.UpsertProduct(product)
}

// ListProducts returns the product catalog.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.db.ListProducts()
}
