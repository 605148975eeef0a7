package recon

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/sirupsen/logrus"
)

// RecoverPending rebuilds in-memory correlation state after a restart. A
// crash mid-correlation leaves INCOMPLETE transaction states whose raw
// records are already durable but whose deadline died with the process. For
// each such state the pending set is rehydrated from the durable raw records
// and the deadline re-armed relative to the original firstSeenAt; a window
// that already elapsed times the transaction out immediately, and a set that
// turns out to be complete is evaluated right away.
func (c *Correlator) RecoverPending(ctx context.Context) error {
	states, err := c.Store.ListIncompleteStates(ctx)
	if err != nil {
		return fmt.Errorf("list incomplete states: %w", err)
	}

	recovered := 0
	for _, state := range states {
		if err := c.recoverOne(ctx, state); err != nil {
			c.logStoreError("RecoverPending", "recoverOne", state.TransactionId, err)
			c.Notifier.EmitError(state.TransactionId, "Error recovering transaction: "+err.Error())
			continue
		}
		recovered++
	}

	if c.Logger != nil && len(states) > 0 {
		c.Logger.WithFields(logrus.Fields{
			"field":     "Correlator",
			"total":     len(states),
			"recovered": recovered,
		}).Info("rehydrated interrupted correlations")
	}
	return nil
}

func (c *Correlator) recoverOne(ctx context.Context, state models.TransactionState) error {
	txnId := state.TransactionId

	raws, err := c.Store.ListRawByTransaction(ctx, txnId)
	if err != nil {
		return fmt.Errorf("list raw records: %w", err)
	}

	mu := c.keyLock(txnId)
	mu.Lock()
	defer mu.Unlock()

	// A live event may have beaten recovery to this transaction.
	if c.isTerminal(txnId) || c.getPending(txnId) != nil {
		return nil
	}

	firstSeenAt := state.FirstSeenAt
	if firstSeenAt.IsZero() {
		firstSeenAt = time.Now().UTC()
	}
	p := &pendingCorrelation{
		transactionId: txnId,
		sources:       map[models.TransactionSource]SourceReport{},
		firstSeenAt:   firstSeenAt,
	}
	for _, raw := range raws {
		p.sources[raw.Source] = SourceReport{
			TransactionId:  raw.TransactionId,
			Source:         raw.Source,
			Amount:         raw.Amount,
			Status:         raw.Status,
			EventTimestamp: raw.EventTimestamp,
		}
	}

	c.mu.Lock()
	c.pending[txnId] = p
	c.mu.Unlock()

	if c.hasAllSources(p) {
		c.evaluateAndComplete(ctx, p)
		return nil
	}

	// An already-expired deadline fires the timeout path immediately.
	c.sched.Schedule(txnId, firstSeenAt)
	return nil
}
