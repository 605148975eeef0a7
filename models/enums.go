package models

import "strings"

// TransactionSource identifies which external system reported a transaction.
type TransactionSource string

const (
	SourceApp     TransactionSource = "APP"
	SourceBank    TransactionSource = "BANK"
	SourceGateway TransactionSource = "GATEWAY"
)

func ParseTransactionSource(s string) (TransactionSource, bool) {
	switch TransactionSource(strings.ToUpper(strings.TrimSpace(s))) {
	case SourceApp:
		return SourceApp, true
	case SourceBank:
		return SourceBank, true
	case SourceGateway:
		return SourceGateway, true
	}
	return "", false
}

// ReconciliationStatus is the per-transaction lifecycle state. INCOMPLETE is
// the only non-terminal value; a transaction transitions out of it exactly once.
type ReconciliationStatus string

const (
	ReconStatusIncomplete     ReconciliationStatus = "INCOMPLETE"
	ReconStatusMatched        ReconciliationStatus = "MATCHED"
	ReconStatusAmountMismatch ReconciliationStatus = "AMOUNT_MISMATCH"
	ReconStatusStatusMismatch ReconciliationStatus = "STATUS_MISMATCH"
	ReconStatusTimeoutMissing ReconciliationStatus = "TIMEOUT_MISSING"
)

func (s ReconciliationStatus) Terminal() bool {
	return s != ReconStatusIncomplete && s != ""
}

// TransactionStatus is the reported payment status, normalized at the
// ingestion boundary. Unrecognized values map to PENDING.
type TransactionStatus string

const (
	TxStatusSuccess TransactionStatus = "SUCCESS"
	TxStatusFailed  TransactionStatus = "FAILED"
	TxStatusPending TransactionStatus = "PENDING"
)

func NormalizeTransactionStatus(s string) TransactionStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS":
		return TxStatusSuccess
	case "FAILED":
		return TxStatusFailed
	case "PENDING":
		return TxStatusPending
	}
	return TxStatusPending
}

type AlertSeverity string

const (
	AlertSeverityLow    AlertSeverity = "LOW"
	AlertSeverityMedium AlertSeverity = "MEDIUM"
	AlertSeverityHigh   AlertSeverity = "HIGH"
)
