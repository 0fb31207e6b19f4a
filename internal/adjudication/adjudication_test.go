package adjudication

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/database"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/models"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/notify"
	"github.com/ysalek1982/skyworth-buddy-sub001/internal/registration"
)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	dbPath := "./test_adjudication_" + time.Now().Format("20060102150405.000000000") + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

func insertTestClaim(t *testing.T, db *database.DB, claim models.Claim) models.Claim {
	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	if claim.SerialNumber == "" {
		claim.SerialNumber = "2540415M00039"
	}
	if claim.FullName == "" {
		claim.FullName = "Ana Pérez"
	}
	if claim.NationalID == "" {
		claim.NationalID = "7894561"
	}
	if claim.Email == "" {
		claim.Email = "a@b.com"
	}
	if claim.Phone == "" {
		claim.Phone = "+59170000000"
	}
	if claim.City == "" {
		claim.City = "La Paz"
	}
	if claim.PurchaseDate.IsZero() {
		claim.PurchaseDate = time.Now().AddDate(0, -1, 0)
	}
	if claim.Status == "" {
		claim.Status = models.StatusSubmitted
	}

	if err := db.InsertClaim(claim); err != nil {
		t.Fatalf("Failed to insert test claim: %v", err)
	}

	return claim
}

type fakeRegistrar struct {
	result  registration.Result
	err     error
	calls   int
	lastReq registration.Request
}

func (f *fakeRegistrar) Register(ctx context.Context, req registration.Request) (registration.Result, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return registration.Result{}, f.err
	}
	return f.result, nil
}

type fakeDispatcher struct {
	channel string
	err     error
	panics  bool

	mu      sync.Mutex
	calls   int
	lastMsg notify.Message
}

func (f *fakeDispatcher) Channel() string { return f.channel }

func (f *fakeDispatcher) Dispatch(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	f.calls++
	f.lastMsg = msg
	f.mu.Unlock()

	if f.panics {
		panic("dispatcher exploded")
	}
	return f.err
}

func (f *fakeDispatcher) snapshot() (int, notify.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.lastMsg
}

func newTestAdjudicator(db *database.DB, registrar registration.Registrar, dispatchers ...notify.Dispatcher) *Adjudicator {
	return New(Options{
		Store:       db,
		Registrar:   registrar,
		Dispatchers: dispatchers,
	})
}

func TestAdjudicate_RejectWithDefaultReason(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	claim := insertTestClaim(t, db, models.Claim{})
	registrar := &fakeRegistrar{}
	a := newTestAdjudicator(db, registrar)

	outcome, err := a.Adjudicate(context.Background(), claim.ID, "reject", "")
	if err != nil {
		t.Fatalf("Adjudicate failed: %v", err)
	}

	if outcome.Status != models.StatusRejected {
		t.Errorf("Expected REJECTED outcome, got %s", outcome.Status)
	}

	stored, err := db.GetClaim(claim.ID)
	if err != nil {
		t.Fatalf("Failed to reload claim: %v", err)
	}
	if stored.Status != models.StatusRejected {
		t.Errorf("Expected stored status REJECTED, got %s", stored.Status)
	}
	if stored.RejectionReason != "Documentos inválidos" {
		t.Errorf("Expected default rejection reason, got '%s'", stored.RejectionReason)
	}

	if registrar.calls != 0 {
		t.Errorf("Expected no registration call on reject, got %d", registrar.calls)
	}
}

func TestAdjudicate_RejectWithExplicitReason(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	claim := insertTestClaim(t, db, models.Claim{})
	a := newTestAdjudicator(db, &fakeRegistrar{})

	_, err := a.Adjudicate(context.Background(), claim.ID, "reject", "Factura ilegible")
	if err != nil {
		t.Fatalf("Adjudicate failed: %v", err)
	}

	stored, _ := db.GetClaim(claim.ID)
	if stored.RejectionReason != "Factura ilegible" {
		t.Errorf("Expected explicit reason, got '%s'", stored.RejectionReason)
	}
}

func TestAdjudicate_InvalidDecision(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	claim := insertTestClaim(t, db, models.Claim{})
	a := newTestAdjudicator(db, &fakeRegistrar{})

	if _, err := a.Adjudicate(context.Background(), claim.ID, "escalate", ""); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("Expected ErrInvalidDecision, got %v", err)
	}
}

func TestAdjudicate_ClaimNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	a := newTestAdjudicator(db, &fakeRegistrar{})

	if _, err := a.Adjudicate(context.Background(), uuid.New().String(), "reject", ""); !errors.Is(err, ErrClaimNotFound) {
		t.Errorf("Expected ErrClaimNotFound, got %v", err)
	}
}

func TestAdjudicate_AlreadyAdjudicated(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	claim := insertTestClaim(t, db, models.Claim{Status: models.StatusApproved})
	registrar := &fakeRegistrar{}
	a := newTestAdjudicator(db, registrar)

	if _, err := a.Adjudicate(context.Background(), claim.ID, "approve", ""); !errors.Is(err, ErrAlreadyAdjudicated) {
		t.Errorf("Expected ErrAlreadyAdjudicated, got %v", err)
	}

	if registrar.calls != 0 {
		t.Errorf("Expected no registration call for a terminal claim, got %d", registrar.calls)
	}
}

func TestAdjudicate_ApproveLogicalFailureLeavesClaimUntouched(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	claim := insertTestClaim(t, db, models.Claim{})
	registrar := &fakeRegistrar{result: registration.Result{Success: false, Error: "duplicate serial"}}
	a := newTestAdjudicator(db, registrar)

	_, err := a.Adjudicate(context.Background(), claim.ID, "approve", "")

	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("Expected RegistrationError, got %v", err)
	}
	if regErr.Reason != "duplicate serial" {
		t.Errorf("Expected underlying reason surfaced, got '%s'", regErr.Reason)
	}

	stored, _ := db.GetClaim(claim.ID)
	if stored.Status != models.StatusSubmitted {
		t.Errorf("Expected status to remain SUBMITTED, got %s", stored.Status)
	}
}

func TestAdjudicate_ApproveTransportFailureLeavesClaimUntouched(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	claim := insertTestClaim(t, db, models.Claim{})
	registrar := &fakeRegistrar{err: fmt.Errorf("connection refused")}
	a := newTestAdjudicator(db, registrar)

	_, err := a.Adjudicate(context.Background(), claim.ID, "approve", "")

	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("Expected RegistrationError, got %v", err)
	}

	stored, _ := db.GetClaim(claim.ID)
	if stored.Status != models.StatusSubmitted {
		t.Errorf("Expected status to remain SUBMITTED, got %s", stored.Status)
	}
}

func TestAdjudicate_ApproveEndToEnd(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	claim := insertTestClaim(t, db, models.Claim{
		SerialNumber: "2540415M00039",
		Email:        "a@b.com",
		Phone:        "+59170000000",
	})

	registrar := &fakeRegistrar{result: registration.Result{
		Success:     true,
		CouponCount: 3,
		Coupons:     []string{"A1", "A2", "A3"},
	}}
	email := &fakeDispatcher{channel: "email"}
	whatsapp := &fakeDispatcher{channel: "whatsapp"}
	a := newTestAdjudicator(db, registrar, email, whatsapp)

	outcome, err := a.Adjudicate(context.Background(), claim.ID, "approve", "")
	if err != nil {
		t.Fatalf("Adjudicate failed: %v", err)
	}

	if outcome.Status != models.StatusApproved {
		t.Errorf("Expected APPROVED outcome, got %s", outcome.Status)
	}
	if outcome.CouponCount != 3 {
		t.Errorf("Expected 3 coupons, got %d", outcome.CouponCount)
	}

	if registrar.lastReq.SerialNumber != "2540415M00039" {
		t.Errorf("Expected serial forwarded to registrar, got '%s'", registrar.lastReq.SerialNumber)
	}

	stored, _ := db.GetClaim(claim.ID)
	if stored.Status != models.StatusApproved {
		t.Errorf("Expected stored status APPROVED, got %s", stored.Status)
	}
	if stored.CouponsIssued != 3 {
		t.Errorf("Expected 3 coupons recorded, got %d", stored.CouponsIssued)
	}

	emailCalls, emailMsg := email.snapshot()
	if emailCalls != 1 {
		t.Fatalf("Expected 1 email dispatch, got %d", emailCalls)
	}
	if emailMsg.Recipient != "a@b.com" {
		t.Errorf("Expected email recipient 'a@b.com', got '%s'", emailMsg.Recipient)
	}
	if emailMsg.Template != "claim-approved" {
		t.Errorf("Expected template 'claim-approved', got '%s'", emailMsg.Template)
	}
	if emailMsg.Variables["cupones"] != "A1, A2, A3" {
		t.Errorf("Expected cupones 'A1, A2, A3', got '%s'", emailMsg.Variables["cupones"])
	}

	waCalls, waMsg := whatsapp.snapshot()
	if waCalls != 1 {
		t.Fatalf("Expected 1 whatsapp dispatch, got %d", waCalls)
	}
	if waMsg.Recipient != "+59170000000" {
		t.Errorf("Expected whatsapp recipient '+59170000000', got '%s'", waMsg.Recipient)
	}
	if waMsg.Variables["cupones"] != "A1, A2, A3" {
		t.Errorf("Expected cupones 'A1, A2, A3', got '%s'", waMsg.Variables["cupones"])
	}
}

func TestAdjudicate_FanOutIsolation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	claim := insertTestClaim(t, db, models.Claim{})
	email := &fakeDispatcher{channel: "email", panics: true}
	whatsapp := &fakeDispatcher{channel: "whatsapp"}
	a := newTestAdjudicator(db, &fakeRegistrar{}, email, whatsapp)

	outcome, err := a.Adjudicate(context.Background(), claim.ID, "reject", "")
	if err != nil {
		t.Fatalf("Expected adjudication to succeed despite channel failure, got %v", err)
	}
	if outcome.Status != models.StatusRejected {
		t.Errorf("Expected REJECTED outcome, got %s", outcome.Status)
	}

	emailCalls, _ := email.snapshot()
	waCalls, _ := whatsapp.snapshot()
	if emailCalls != 1 {
		t.Errorf("Expected email channel attempted, got %d calls", emailCalls)
	}
	if waCalls != 1 {
		t.Errorf("Expected whatsapp channel attempted despite email panic, got %d calls", waCalls)
	}
}

func TestAdjudicate_RejectStillNotifies(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	claim := insertTestClaim(t, db, models.Claim{})
	email := &fakeDispatcher{channel: "email"}
	a := newTestAdjudicator(db, &fakeRegistrar{}, email)

	if _, err := a.Adjudicate(context.Background(), claim.ID, "reject", ""); err != nil {
		t.Fatalf("Adjudicate failed: %v", err)
	}

	calls, msg := email.snapshot()
	if calls != 1 {
		t.Fatalf("Expected rejection notification, got %d calls", calls)
	}
	if msg.Template != "claim-rejected" {
		t.Errorf("Expected template 'claim-rejected', got '%s'", msg.Template)
	}
}

// failingStore confirms registration success but cannot commit locally.
type failingStore struct {
	claim models.Claim
}

func (s *failingStore) GetClaim(id string) (models.Claim, error) {
	return s.claim, nil
}

func (s *failingStore) GetProduct(id string) (models.Product, error) {
	return models.Product{}, database.ErrProductNotFound
}

func (s *failingStore) UpdateAdjudication(id string, status models.ClaimStatus, reason string, coupons int, now time.Time) error {
	return fmt.Errorf("disk full")
}

func TestAdjudicate_PersistenceFailureAfterRegistration(t *testing.T) {
	claim := models.Claim{
		ID:     uuid.New().String(),
		Status: models.StatusSubmitted,
	}

	registrar := &fakeRegistrar{result: registration.Result{
		Success:     true,
		CouponCount: 2,
		Coupons:     []string{"B1", "B2"},
	}}

	a := New(Options{
		Store:     &failingStore{claim: claim},
		Registrar: registrar,
	})

	_, err := a.Adjudicate(context.Background(), claim.ID, "approve", "")

	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("Expected PersistenceError, got %v", err)
	}
	if len(persistErr.Coupons) != 2 {
		t.Errorf("Expected issued coupons carried for reconciliation, got %v", persistErr.Coupons)
	}
	if persistErr.ClaimID != claim.ID {
		t.Errorf("Expected claim id in error, got '%s'", persistErr.ClaimID)
	}
}
