package recon

import (
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
)

// EventType enumerates the lifecycle notifications broadcast to live
// observers (dashboard SSE feed etc).
type EventType string

const (
	EventRawTransactionAdded EventType = "raw_transaction_added"
	EventTransactionMatched  EventType = "transaction_matched"
	EventTransactionFailed   EventType = "transaction_failed"
	EventTransactionTimeout  EventType = "transaction_timeout"
	EventError               EventType = "error"
)

type TransactionEvent struct {
	Type          EventType                   `json:"type"`
	TransactionId string                      `json:"transactionId"`
	Source        models.TransactionSource    `json:"source,omitempty"`
	Status        models.ReconciliationStatus `json:"status,omitempty"`
	Error         string                      `json:"error,omitempty"`
	Details       string                      `json:"details,omitempty"`
	Timestamp     time.Time                   `json:"timestamp"`
	Data          any                         `json:"data,omitempty"`
}
