package recon

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/bsm/redislock"
)

// SeverityFor maps a non-MATCHED terminal verdict to its alert severity.
func SeverityFor(status models.ReconciliationStatus) models.AlertSeverity {
	switch status {
	case models.ReconStatusAmountMismatch:
		return models.AlertSeverityHigh
	case models.ReconStatusStatusMismatch:
		return models.AlertSeverityMedium
	default:
		return models.AlertSeverityLow
	}
}

// maybeAlert requests one alert for a non-MATCHED terminal verdict. Caller
// holds the key mutex and calls this at most once per transaction (the
// exactly-once terminal transition), so within a process the alert never
// double-fires. Across instances a best-effort redis lock plus the unique
// transaction_id index keep it single.
func (c *Correlator) maybeAlert(ctx context.Context, transactionId string, result *models.ReconciliationResult, status models.ReconciliationStatus, details string) {
	if result == nil {
		// Result write failed; without the result row there is nothing to
		// reference. The persistence failure was already error-notified.
		return
	}

	if c.Locker != nil {
		lock, err := c.Locker.Obtain(ctx, "recon:alert:"+transactionId, 30*time.Second, nil)
		if err == redislock.ErrNotObtained {
			// Another instance is raising this alert.
			return
		}
		if err == nil {
			defer lock.Release(ctx)
		}
		// Any other redis error: proceed, the unique index is the backstop.
	}

	severity := SeverityFor(status)
	if _, err := c.Store.CreateAlert(ctx, transactionId, result.ID, severity, details); err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return
		}
		c.logStoreError("maybeAlert", "CreateAlert", transactionId, err)
		c.Notifier.EmitError(transactionId, "Error creating alert: "+err.Error())
	}
}
