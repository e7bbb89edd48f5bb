// ABOUTME: In-memory fan-out of change notifications to per-company subscribers
// ABOUTME: Lets API clients refresh on create/update/delete without polling

package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Kinds of records a change can refer to.
const (
	KindCompany  = "company"
	KindClient   = "client"
	KindInvoice  = "invoice"
	KindDefaults = "defaults"
)

// Actions a change can describe.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ChangeEvent tells subscribers that a record of a company changed.
type ChangeEvent struct {
	ID        string    `json:"id"`
	CompanyID int64     `json:"company_id"`
	Kind      string    `json:"kind"`
	Action    string    `json:"action"`
	TargetID  int64     `json:"target_id"`
	At        time.Time `json:"at"`
}

// Broadcaster provides in-memory pub/sub of ChangeEvents keyed by company ID.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int64]map[string]chan ChangeEvent // companyID -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[int64]map[string]chan ChangeEvent),
		logger:      logger.With("component", "events"),
	}
}

// Subscribe registers a subscriber for changes of companyID. The subscription
// is removed and its channel closed when ctx is cancelled. Subscribing to a
// closed broadcaster returns an already-closed channel.
func (b *Broadcaster) Subscribe(ctx context.Context, companyID int64) (<-chan ChangeEvent, string) {
	subID := uuid.New().String()
	ch := make(chan ChangeEvent, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[companyID]; !ok {
		b.subscribers[companyID] = make(map[string]chan ChangeEvent)
	}
	b.subscribers[companyID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "company_id", companyID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(companyID, subID)
	}()

	return ch, subID
}

// Publish delivers ev to every subscriber of ev.CompanyID, filling in the ID
// and timestamp when unset. It never blocks: subscribers with full buffers
// miss the event.
func (b *Broadcaster) Publish(ev ChangeEvent) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	// Sends are non-blocking, so holding the read lock keeps Unsubscribe from
	// closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[ev.CompanyID] {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"company_id", ev.CompanyID,
				"sub_id", subID,
				"event_id", ev.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(companyID int64, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[companyID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, companyID)
	}

	b.logger.Debug("subscriber removed", "company_id", companyID, "sub_id", subID)
}

// SubscriberCount returns the number of active subscriptions for companyID.
func (b *Broadcaster) SubscriberCount(companyID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[companyID])
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for companyID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, companyID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
