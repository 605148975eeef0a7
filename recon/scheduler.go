package recon

import (
	"context"
	"sync"
	"time"
)

// Scheduler owns per-transaction deadlines: a one-shot timer per transaction
// plus a periodic sweep over everything still scheduled, as a safety net for
// missed or late timers. Both paths invoke the same fire callback, which must
// route through the correlator's exactly-once completion (firing for an
// already-completed transaction is a no-op there).
type Scheduler struct {
	window        time.Duration
	sweepInterval time.Duration
	fire          func(transactionId string)

	mu        sync.Mutex
	deadlines map[string]time.Time
	timers    map[string]*time.Timer
}

func NewScheduler(window time.Duration, sweepInterval time.Duration, fire func(transactionId string)) *Scheduler {
	return &Scheduler{
		window:        window,
		sweepInterval: sweepInterval,
		fire:          fire,
		deadlines:     map[string]time.Time{},
		timers:        map[string]*time.Timer{},
	}
}

// Schedule arms the deadline at firstSeenAt+window. A deadline already in the
// past fires immediately. Scheduling an already-scheduled transaction is a
// no-op.
func (s *Scheduler) Schedule(transactionId string, firstSeenAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.timers[transactionId]; exists {
		return
	}

	deadline := firstSeenAt.Add(s.window)
	wait := time.Until(deadline)
	if wait < 0 {
		wait = 0
	}
	s.deadlines[transactionId] = deadline
	s.timers[transactionId] = time.AfterFunc(wait, func() {
		s.fire(transactionId)
	})
}

// Cancel disarms the transaction's deadline. The correlator calls this inside
// the transaction's exclusive section, in the same step that commits the
// terminal transition, so cancellation and commit act as one unit.
func (s *Scheduler) Cancel(transactionId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[transactionId]; ok {
		t.Stop()
		delete(s.timers, transactionId)
	}
	delete(s.deadlines, transactionId)
}

func (s *Scheduler) ScheduledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Run executes the periodic sweep until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.sweepInterval):
		}
		s.sweepOnce(time.Now())
	}
}

func (s *Scheduler) sweepOnce(now time.Time) {
	s.mu.Lock()
	var expired []string
	for txnId, deadline := range s.deadlines {
		if now.After(deadline) {
			expired = append(expired, txnId)
		}
	}
	s.mu.Unlock()

	// Fire outside the scheduler lock: the callback takes per-transaction
	// locks and may call back into Cancel.
	for _, txnId := range expired {
		s.fire(txnId)
	}
}
