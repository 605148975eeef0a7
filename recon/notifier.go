package recon

import (
	"sync"
	"sync/atomic"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/sirupsen/logrus"
)

// subscriberBuffer is the per-subscriber event backlog. A subscriber that
// stays full for maxConsecutiveDrops publishes in a row is considered dead
// and is removed.
const (
	subscriberBuffer    = 64
	maxConsecutiveDrops = 256
)

// Subscription is one live observer of lifecycle events. Consume from C and
// call Notifier.Unsubscribe when done; C is closed on removal.
type Subscription struct {
	C chan TransactionEvent

	// drops counts consecutive failed deliveries. Atomic: Publish runs
	// concurrently from every completing transaction under a shared read lock.
	drops atomic.Int32
}

// Notifier is the in-process publish/subscribe hub for lifecycle events.
// Delivery is best-effort and non-blocking per subscriber: a slow or stalled
// subscriber loses events (and is eventually removed) without ever blocking
// the publisher or other subscribers.
//
// A Notifier is explicitly constructed and passed by reference into the
// correlator and presentation layer; there is no process-wide instance.
type Notifier struct {
	logger *logrus.Logger

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewNotifier(logger *logrus.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		subs:   map[*Subscription]struct{}{},
	}
}

func (n *Notifier) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan TransactionEvent, subscriberBuffer)}
	n.mu.Lock()
	n.subs[sub] = struct{}{}
	n.mu.Unlock()
	return sub
}

func (n *Notifier) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	n.mu.Lock()
	if _, ok := n.subs[sub]; ok {
		delete(n.subs, sub)
		close(sub.C)
	}
	n.mu.Unlock()
}

func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

func (n *Notifier) Publish(event TransactionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var stalled []*Subscription
	n.mu.RLock()
	for sub := range n.subs {
		select {
		case sub.C <- event:
			sub.drops.Store(0)
		default:
			if sub.drops.Add(1) >= maxConsecutiveDrops {
				stalled = append(stalled, sub)
			}
		}
	}
	n.mu.RUnlock()

	for _, sub := range stalled {
		n.Unsubscribe(sub)
		if n.logger != nil {
			n.logger.WithFields(logrus.Fields{
				"field": "Notifier",
			}).Warn("removed stalled event subscriber")
		}
	}
}

func (n *Notifier) RawTransactionAdded(transactionId string, source models.TransactionSource, data any) {
	n.Publish(TransactionEvent{
		Type:          EventRawTransactionAdded,
		TransactionId: transactionId,
		Source:        source,
		Data:          data,
	})
}

func (n *Notifier) TransactionMatched(transactionId string, status models.ReconciliationStatus, details string) {
	n.Publish(TransactionEvent{
		Type:          EventTransactionMatched,
		TransactionId: transactionId,
		Status:        status,
		Details:       details,
	})
}

func (n *Notifier) TransactionFailed(transactionId string, status models.ReconciliationStatus, details string) {
	n.Publish(TransactionEvent{
		Type:          EventTransactionFailed,
		TransactionId: transactionId,
		Status:        status,
		Details:       details,
	})
}

func (n *Notifier) TransactionTimeout(transactionId string, details string) {
	n.Publish(TransactionEvent{
		Type:          EventTransactionTimeout,
		TransactionId: transactionId,
		Status:        models.ReconStatusTimeoutMissing,
		Details:       details,
	})
}

func (n *Notifier) EmitError(transactionId string, errMsg string) {
	n.Publish(TransactionEvent{
		Type:          EventError,
		TransactionId: transactionId,
		Error:         errMsg,
	})
}
