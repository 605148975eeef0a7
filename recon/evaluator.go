package recon

import (
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/shopspring/decimal"
)

// MatchedDetails is the result detail when all sources agree.
const MatchedDetails = "All transactions matched successfully"

// SourceReport is one source's decoded, validated report of a transaction.
// Status is already normalized at the ingestion boundary.
type SourceReport struct {
	TransactionId  string
	Source         models.TransactionSource
	Amount         decimal.Decimal
	Status         models.TransactionStatus
	EventTimestamp time.Time
}

// Evaluate computes the reconciliation verdict for the three source reports.
// Pure function: no side effects.
//
// An amount disagreement always wins the verdict; a status disagreement only
// decides it when the amounts agree (the status issue still shows in details).
func Evaluate(app, bank, gateway SourceReport) (models.ReconciliationStatus, string) {
	return evaluateReports([]SourceReport{app, bank, gateway})
}

func evaluateReports(reports []SourceReport) (models.ReconciliationStatus, string) {
	var issues []string
	amountMismatch := false
	statusMismatch := false

	for _, r := range reports[1:] {
		if !r.Amount.Equal(reports[0].Amount) {
			amountMismatch = true
		}
		if r.Status != reports[0].Status {
			statusMismatch = true
		}
	}

	if amountMismatch {
		parts := make([]string, 0, len(reports))
		for _, r := range reports {
			parts = append(parts, fmt.Sprintf("%s=%s", r.Source, r.Amount))
		}
		issues = append(issues, "Amount mismatch: "+strings.Join(parts, ", "))
	}
	if statusMismatch {
		parts := make([]string, 0, len(reports))
		for _, r := range reports {
			parts = append(parts, fmt.Sprintf("%s=%s", r.Source, r.Status))
		}
		issues = append(issues, "Status mismatch: "+strings.Join(parts, ", "))
	}

	switch {
	case amountMismatch:
		return models.ReconStatusAmountMismatch, strings.Join(issues, "; ")
	case statusMismatch:
		return models.ReconStatusStatusMismatch, strings.Join(issues, "; ")
	default:
		return models.ReconStatusMatched, MatchedDetails
	}
}

// TimeoutDetails names the sources that never reported before the window
// elapsed, in required-source order.
func TimeoutDetails(missing []models.TransactionSource) string {
	parts := make([]string, 0, len(missing))
	for _, s := range missing {
		parts = append(parts, string(s))
	}
	return "Timeout: Missing sources: " + strings.Join(parts, ", ")
}
