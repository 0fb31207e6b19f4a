package events

import (
	"context"
	"sync"
	"time"

	"github.com/ysalek1982/skyworth-buddy-sub001/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventClaimSubmitted is emitted when a new claim is stored
	EventClaimSubmitted EventType = "claim.submitted"
	// EventClaimAdjudicated is emitted after a decision has committed
	EventClaimAdjudicated EventType = "claim.adjudicated"
	// EventDocumentResolved is emitted when a document reference is resolved
	EventDocumentResolved EventType = "document.resolved"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// ClaimSubmittedData contains data for claim submitted events.
type ClaimSubmittedData struct {
	Claim models.Claim
}

// ClaimAdjudicatedData contains data for claim adjudicated events.
type ClaimAdjudicatedData struct {
	Outcome   models.Outcome
	DecidedAt time.Time
}

// DocumentResolvedData contains data for document resolved events.
type DocumentResolvedData struct {
	Reference string
	Signed    bool
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing. Handlers run
// asynchronously after the triggering operation has committed.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if m == nil || !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Execute handlers asynchronously to avoid blocking
	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				_ = err
			}
		}(handler)
	}
}

// PublishClaimSubmitted publishes a claim submitted event.
func (m *Manager) PublishClaimSubmitted(ctx context.Context, claim models.Claim) {
	m.Publish(ctx, EventClaimSubmitted, ClaimSubmittedData{Claim: claim})
}

// PublishClaimAdjudicated publishes a claim adjudicated event.
func (m *Manager) PublishClaimAdjudicated(ctx context.Context, outcome models.Outcome) {
	m.Publish(ctx, EventClaimAdjudicated, ClaimAdjudicatedData{
		Outcome:   outcome,
		DecidedAt: time.Now(),
	})
}

// PublishDocumentResolved publishes a document resolved event.
func (m *Manager) PublishDocumentResolved(ctx context.Context, reference string, signed bool) {
	m.Publish(ctx, EventDocumentResolved, DocumentResolvedData{
		Reference: reference,
		Signed:    signed,
	})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
