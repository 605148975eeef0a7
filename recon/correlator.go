package recon

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// pendingCorrelation is the in-memory working set for one transaction still
// awaiting reports. It exists only while the transaction is INCOMPLETE, is
// mutated exclusively under the transaction's key mutex, and is destroyed in
// the same critical section that commits the terminal transition.
type pendingCorrelation struct {
	transactionId string
	sources       map[models.TransactionSource]SourceReport
	firstSeenAt   time.Time
}

// Correlator ingests raw source events, tracks partial arrival per
// transaction and drives evaluation on completion or timeout. It guarantees
// exactly one terminal transition per transaction: arrival-driven completion
// and deadline-driven timeout serialize on a per-transaction mutex, and
// whichever path commits first removes the pending entry, turning the other
// into a no-op.
type Correlator struct {
	Store    Store
	Notifier *Notifier
	Logger   *logrus.Logger
	// Locker is a best-effort cross-instance guard around alert creation.
	// Optional: correctness within one process never depends on Redis.
	Locker   *redislock.Client
	Required []models.TransactionSource

	sched *Scheduler

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
	pending  map[string]*pendingCorrelation
	terminal map[string]models.ReconciliationStatus
}

func NewCorrelator(store Store, notifier *Notifier, logger *logrus.Logger, locker *redislock.Client, required []models.TransactionSource, window time.Duration, sweepInterval time.Duration) *Correlator {
	c := &Correlator{
		Store:    store,
		Notifier: notifier,
		Logger:   logger,
		Locker:   locker,
		Required: required,
		keyLocks: map[string]*sync.Mutex{},
		pending:  map[string]*pendingCorrelation{},
		terminal: map[string]models.ReconciliationStatus{},
	}
	c.sched = NewScheduler(window, sweepInterval, c.HandleTimeout)
	return c
}

// RunSweep runs the periodic deadline sweep until ctx is cancelled.
func (c *Correlator) RunSweep(ctx context.Context) {
	c.sched.Run(ctx)
}

// keyLock returns the mutex serializing all work for one transaction.
// Mutexes live for the process lifetime (same trade-off as keying work by
// tenant); terminal detection does not depend on mutex identity.
func (c *Correlator) keyLock(transactionId string) *sync.Mutex {
	c.mu.Lock()
	m, ok := c.keyLocks[transactionId]
	if !ok {
		m = &sync.Mutex{}
		c.keyLocks[transactionId] = m
	}
	c.mu.Unlock()
	return m
}

func (c *Correlator) getPending(transactionId string) *pendingCorrelation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[transactionId]
}

func (c *Correlator) isTerminal(transactionId string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.terminal[transactionId]
	return ok
}

// PendingCount reports transactions still awaiting completion or timeout.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Ingest processes one decoded, validated source report. Side effects in
// order: persist the raw record, locate/create the pending set (arming the
// deadline for a new transaction), record this source, and evaluate when all
// required sources are present.
func (c *Correlator) Ingest(ctx context.Context, report SourceReport) error {
	if report.TransactionId == "" || report.Source == "" {
		err := errors.New("source report missing transaction id or source")
		c.Notifier.EmitError("unknown", err.Error())
		return err
	}
	txnId := report.TransactionId

	// Raw records are audit data: persisted for every delivery, including
	// re-deliveries and arrivals after the terminal transition.
	raw, err := c.Store.UpsertRaw(ctx, report)
	if err != nil {
		c.logStoreError("Ingest", "UpsertRaw", txnId, err)
		c.Notifier.EmitError(txnId, "Error storing raw transaction: "+err.Error())
	} else {
		c.Notifier.RawTransactionAdded(txnId, report.Source, raw)
	}

	mu := c.keyLock(txnId)
	mu.Lock()
	defer mu.Unlock()

	// Late arrival after the terminal transition: audit record only, the
	// transaction is never reopened or re-evaluated.
	if c.isTerminal(txnId) {
		return nil
	}

	p := c.getPending(txnId)
	if p == nil {
		p = &pendingCorrelation{
			transactionId: txnId,
			sources:       map[models.TransactionSource]SourceReport{},
			firstSeenAt:   time.Now().UTC(),
		}
		c.mu.Lock()
		c.pending[txnId] = p
		c.mu.Unlock()

		c.sched.Schedule(txnId, p.firstSeenAt)
	}

	p.sources[report.Source] = report

	if err := c.Store.UpsertState(ctx, txnId, p.firstSeenAt, c.receivedSources(p), models.ReconStatusIncomplete); err != nil {
		c.logStoreError("Ingest", "UpsertState", txnId, err)
		c.Notifier.EmitError(txnId, "Error updating transaction state: "+err.Error())
	}

	if c.hasAllSources(p) {
		c.evaluateAndComplete(ctx, p)
	}
	return nil
}

// HandleTimeout is the deadline path, invoked by the scheduler (one-shot
// timer or sweep). A transaction already completed, or mid-completion on the
// arrival path, no longer has a pending entry by the time the key mutex is
// acquired, so the timeout becomes a no-op.
func (c *Correlator) HandleTimeout(transactionId string) {
	ctx := context.Background()

	mu := c.keyLock(transactionId)
	mu.Lock()
	defer mu.Unlock()

	p := c.getPending(transactionId)
	if p == nil {
		return
	}

	var missing []models.TransactionSource
	for _, s := range c.Required {
		if _, ok := p.sources[s]; !ok {
			missing = append(missing, s)
		}
	}
	details := TimeoutDetails(missing)
	c.complete(ctx, p, models.ReconStatusTimeoutMissing, details)
}

// evaluateAndComplete runs the evaluator over the received reports and
// commits the verdict. Caller holds the key mutex.
func (c *Correlator) evaluateAndComplete(ctx context.Context, p *pendingCorrelation) {
	reports := make([]SourceReport, 0, len(c.Required))
	for _, s := range c.Required {
		reports = append(reports, p.sources[s])
	}
	status, details := evaluateReports(reports)
	c.complete(ctx, p, status, details)
}

// complete commits the terminal transition exactly once. Caller holds the key
// mutex. Persistence failures are logged and error-notified but never block
// or reverse the in-memory transition; the deadline is cancelled in the same
// step that removes the pending entry.
func (c *Correlator) complete(ctx context.Context, p *pendingCorrelation, status models.ReconciliationStatus, details string) {
	txnId := p.transactionId

	if err := c.Store.UpsertState(ctx, txnId, p.firstSeenAt, c.receivedSources(p), status); err != nil {
		c.logStoreError("complete", "UpsertState", txnId, err)
		c.Notifier.EmitError(txnId, "Error persisting terminal state: "+err.Error())
	}

	result, err := c.Store.UpsertResult(ctx, txnId, status, details)
	if err != nil {
		c.logStoreError("complete", "UpsertResult", txnId, err)
		c.Notifier.EmitError(txnId, "Error persisting reconciliation result: "+err.Error())
	}

	if status != models.ReconStatusMatched {
		c.maybeAlert(ctx, txnId, result, status, details)
	}

	switch status {
	case models.ReconStatusMatched:
		c.Notifier.TransactionMatched(txnId, status, details)
	case models.ReconStatusTimeoutMissing:
		c.Notifier.TransactionTimeout(txnId, details)
	default:
		c.Notifier.TransactionFailed(txnId, status, details)
	}

	// Commit: destroy the pending entry, remember the verdict for late
	// arrivals and disarm the deadline, atomically with respect to any other
	// path for this transaction (all of them take the key mutex first).
	c.mu.Lock()
	delete(c.pending, txnId)
	c.terminal[txnId] = status
	c.mu.Unlock()
	c.sched.Cancel(txnId)

	if c.Logger != nil {
		c.Logger.WithFields(logrus.Fields{
			"field":          "Correlator",
			"transaction_id": txnId,
			"status":         status,
		}).Info("reconciliation completed")
	}
}

func (c *Correlator) receivedSources(p *pendingCorrelation) []models.TransactionSource {
	out := make([]models.TransactionSource, 0, len(p.sources))
	for _, s := range c.Required {
		if _, ok := p.sources[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *Correlator) hasAllSources(p *pendingCorrelation) bool {
	for _, s := range c.Required {
		if _, ok := p.sources[s]; !ok {
			return false
		}
	}
	return true
}

func (c *Correlator) logStoreError(funcName string, op string, transactionId string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.WithFields(logrus.Fields{
		"field":          "Correlator",
		"funcName":       funcName,
		"op":             op,
		"transaction_id": transactionId,
	}).Error(err.Error())
}
