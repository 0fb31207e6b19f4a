package models

import "time"

// ClaimStatus is the adjudication state of a purchase claim.
type ClaimStatus string

const (
	StatusSubmitted ClaimStatus = "SUBMITTED"
	StatusApproved  ClaimStatus = "APPROVED"
	StatusRejected  ClaimStatus = "REJECTED"
)

// Claim represents a customer's assertion of a qualifying purchase.
type Claim struct {
	ID              string      `json:"id"`            // uuid
	SerialNumber    string      `json:"serial_number"` // e.g. "2540415M00039"
	FullName        string      `json:"full_name"`
	NationalID      string      `json:"national_id"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"` // E.164, e.g. "+59170000000"
	City            string      `json:"city"`
	PurchaseDate    time.Time   `json:"purchase_date"`
	ProductID       string      `json:"product_id"`
	DocumentURL     string      `json:"document_url"` // storage reference to proof of purchase
	Status          ClaimStatus `json:"status"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	CouponsIssued   int         `json:"coupons_issued"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Product is a catalog entry a claim can reference.
type Product struct {
	ID        string    `json:"id"` // uuid
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Line      string    `json:"line"` // product line, e.g. "GLED"
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outcome describes the result of one adjudication decision.
type Outcome struct {
	ClaimID     string      `json:"claim_id"`
	Status      ClaimStatus `json:"status"`
	Coupons     []string    `json:"coupons,omitempty"`
	CouponCount int         `json:"coupon_count"`
}

// CreateClaimRequest is the request body for submitting a claim.
type CreateClaimRequest struct {
	SerialNumber string    `json:"serial_number"`
	FullName     string    `json:"full_name"`
	NationalID   string    `json:"national_id"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	City         string    `json:"city"`
	PurchaseDate time.Time `json:"purchase_date"`
	ProductID    string    `json:"product_id"`
	DocumentURL  string    `json:"document_url"`
}

// AdjudicateRequest is the request body for deciding a claim.
type AdjudicateRequest struct {
	Decision        string `json:"decision"` // "approve" or "reject"
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// ListClaimsResponse is the payload for listing claims.
type ListClaimsResponse struct {
	Claims []Claim `json:"claims"`
	Count  int     `json:"count"`
}

// ResolveDocumentResponse is the payload for resolving a document reference.
type ResolveDocumentResponse struct {
	URL string `json:"url"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
