package adjudication

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ysalek1982/skyworth-buddy-sub001/internal/database"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/features"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/models"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/notify"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/registration"
)

// DefaultRejectionReason is recorded when a claim is rejected without an
// explicit reason.
const DefaultRejectionReason = "Documentos inválidos"

const defaultChannelTimeout = 5 * time.Second

var tracer = otel.Tracer("promo-claim-api")

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

var (
	// ErrClaimNotFound means the claim id did not resolve to a stored claim.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrInvalidDecision means the decision was outside {approve, reject}.
	ErrInvalidDecision = errors.New("decision must be 'approve' or 'reject'")

	// ErrAlreadyAdjudicated means the claim is already in a terminal state.
	ErrAlreadyAdjudicated = errors.New("claim has already been adjudicated")
)

// RegistrationError wraps a failed registration attempt. The claim's status
// is guaranteed unchanged when this is returned.
type RegistrationError struct {
	Reason string
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registration failed: %v", e.Err)
	}
	return fmt.Sprintf("registration failed: %s", e.Reason)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// PersistenceError means the status write failed after the registration
// service already issued coupons. The two halves have diverged and the
// issued coupons are carried so operators can reconcile.
type PersistenceError struct {
	ClaimID string
	Coupons []string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("claim %s: coupons issued but status update failed: %v", e.ClaimID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the claim persistence the adjudicator reads and writes.
// *database.DB satisfies it.
type Store interface {
	GetClaim(id string) (models.Claim, error)
	GetProduct(id string) (models.Product, error)
	UpdateAdjudication(id string, status models.ClaimStatus, rejectionReason string, couponsIssued int, now time.Time) error
}

// Adjudicator drives a claim through the approve/reject decision.
type Adjudicator struct {
	store          Store
	registrar      registration.Registrar
	dispatchers    []notify.Dispatcher
	flags          *features.Manager
	logger         *log.Logger
	channelTimeout time.Duration
}

// Options configures an Adjudicator.
type Options struct {
	Store          Store
	Registrar      registration.Registrar
	Dispatchers    []notify.Dispatcher
	Features       *features.Manager
	Logger         *log.Logger
	ChannelTimeout time.Duration
}

// New creates an adjudicator.
func New(opts Options) *Adjudicator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	timeout := opts.ChannelTimeout
	if timeout <= 0 {
		timeout = defaultChannelTimeout
	}

	return &Adjudicator{
		store:          opts.Store,
		registrar:      opts.Registrar,
		dispatchers:    opts.Dispatchers,
		flags:          opts.Features,
		logger:         logger,
		channelTimeout: timeout,
	}
}

// Adjudicate commits an approve/reject decision on a claim and fans out
// claimant notifications best-effort. The returned Outcome and error always
// reflect the adjudication itself, never the notification dispatch.
func (a *Adjudicator) Adjudicate(ctx context.Context, claimID, decision, rejectionReason string) (models.Outcome, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return models.Outcome{}, ErrInvalidDecision
	}

	ctx, span := tracer.Start(ctx, "claim.adjudicate")
	defer span.End()
	span.SetAttributes(
		attribute.String("claim.id", claimID),
		attribute.String("claim.decision", decision),
	)

	outcome, err := a.adjudicate(ctx, claimID, decision, rejectionReason)
	if err != nil {
		span.RecordError(err)
		return models.Outcome{}, err
	}
	span.SetAttributes(attribute.String("claim.status", string(outcome.Status)))

	return outcome, nil
}

func (a *Adjudicator) adjudicate(ctx context.Context, claimID, decision, rejectionReason string) (models.Outcome, error) {
	claim, err := a.store.GetClaim(claimID)
	if err != nil {
		if errors.Is(err, database.ErrClaimNotFound) {
			return models.Outcome{}, ErrClaimNotFound
		}
		return models.Outcome{}, fmt.Errorf("failed to load claim %s: %w", claimID, err)
	}

	if claim.Status != models.StatusSubmitted {
		return models.Outcome{}, ErrAlreadyAdjudicated
	}

	var outcome models.Outcome
	if decision == DecisionReject {
		outcome, err = a.reject(claim, rejectionReason)
	} else {
		outcome, err = a.approve(ctx, claim)
	}
	if err != nil {
		return models.Outcome{}, err
	}

	a.notifyClaimant(ctx, claim, outcome)

	return outcome, nil
}

func (a *Adjudicator) reject(claim models.Claim, reason string) (models.Outcome, error) {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultRejectionReason
	}

	if err := a.store.UpdateAdjudication(claim.ID, models.StatusRejected, reason, 0, time.Now()); err != nil {
		return models.Outcome{}, fmt.Errorf("failed to reject claim %s: %w", claim.ID, err)
	}

	return models.Outcome{
		ClaimID: claim.ID,
		Status:  models.StatusRejected,
	}, nil
}

func (a *Adjudicator) approve(ctx context.Context, claim models.Claim) (models.Outcome, error) {
	// Step 1: the remote atomic operation. The local commit below must only
	// happen once this has confirmed success.
	result, err := a.registrar.Register(ctx, registration.Request{
		SerialNumber: claim.SerialNumber,
		FullName:     claim.FullName,
		NationalID:   claim.NationalID,
		Email:        claim.Email,
		Phone:        claim.Phone,
		City:         claim.City,
		PurchaseDate: claim.PurchaseDate,
		OwnerID:      claim.ID,
	})
	if err != nil {
		return models.Outcome{}, &RegistrationError{Err: err}
	}
	if !result.Success {
		return models.Outcome{}, &RegistrationError{Reason: result.Error}
	}

	// Step 2: local commit, guarded by step 1's success. A failure here is
	// loud: coupons exist remotely that the claim does not yet reflect.
	if err := a.store.UpdateAdjudication(claim.ID, models.StatusApproved, "", result.CouponCount, time.Now()); err != nil {
		return models.Outcome{}, &PersistenceError{
			ClaimID: claim.ID,
			Coupons: result.Coupons,
			Err:     err,
		}
	}

	return models.Outcome{
		ClaimID:     claim.ID,
		Status:      models.StatusApproved,
		Coupons:     result.Coupons,
		CouponCount: result.CouponCount,
	}, nil
}

// notifyClaimant fans the outcome out over every configured channel. Each
// dispatch runs in its own goroutine behind its own timeout; failures are
// logged and otherwise swallowed.
func (a *Adjudicator) notifyClaimant(ctx context.Context, claim models.Claim, outcome models.Outcome) {
	if len(a.dispatchers) == 0 {
		return
	}

	if a.flags != nil && !a.flags.IsEnabled(features.FeatureNotificationFanout) {
		return
	}

	template := "claim-rejected"
	if outcome.Status == models.StatusApproved {
		template = "claim-approved"
	}

	variables := map[string]string{
		"nombre":   claim.FullName,
		"cupones":  strings.Join(outcome.Coupons, ", "),
		"producto": a.productLabel(claim.ProductID),
		"cantidad": strconv.Itoa(outcome.CouponCount),
	}

	var wg sync.WaitGroup
	for _, d := range a.dispatchers {
		wg.Add(1)
		go func(d notify.Dispatcher) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					a.logger.Printf("notification channel %s panicked for claim %s: %v", d.Channel(), claim.ID, p)
				}
			}()

			dispatchCtx, cancel := context.WithTimeout(ctx, a.channelTimeout)
			defer cancel()

			msg := notify.Message{
				Recipient: a.recipientFor(d, claim),
				Template:  template,
				Variables: variables,
			}

			if err := d.Dispatch(dispatchCtx, msg); err != nil {
				a.logger.Printf("notification channel %s failed for claim %s: %v", d.Channel(), claim.ID, err)
			}
		}(d)
	}
	wg.Wait()
}

func (a *Adjudicator) recipientFor(d notify.Dispatcher, claim models.Claim) string {
	switch d.Channel() {
	case "whatsapp", "sms":
		return claim.Phone
	default:
		return claim.Email
	}
}

func (a *Adjudicator) productLabel(productID string) string {
	if productID == "" {
		return ""
	}

	product, err := a.store.GetProduct(productID)
	if err != nil {
		return ""
	}

	return product.Name
}
