package recon

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"gorm.io/gorm"
)

// Store is the persistence gateway contract the correlator consumes. All
// writes are idempotent upserts except CreateAlert, which the correlator only
// requests once per terminal transition. Implementations must be safe for
// concurrent use.
type Store interface {
	UpsertRaw(ctx context.Context, report SourceReport) (*models.TransactionRaw, error)
	UpsertState(ctx context.Context, transactionId string, firstSeenAt time.Time, receivedSources []models.TransactionSource, state models.ReconciliationStatus) error
	UpsertResult(ctx context.Context, transactionId string, status models.ReconciliationStatus, details string) (*models.ReconciliationResult, error)
	CreateAlert(ctx context.Context, transactionId string, reconciliationId int, severity models.AlertSeverity, message string) (*models.Alert, error)
	ListIncompleteStates(ctx context.Context) ([]models.TransactionState, error)
	ListRawByTransaction(ctx context.Context, transactionId string) ([]models.TransactionRaw, error)
}

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) UpsertRaw(ctx context.Context, report SourceReport) (*models.TransactionRaw, error) {
	return models.UpsertTransactionRaw(ctx, s.DB, report.TransactionId, report.Source, report.Amount, report.Status, report.EventTimestamp)
}

func (s *GormStore) UpsertState(ctx context.Context, transactionId string, firstSeenAt time.Time, receivedSources []models.TransactionSource, state models.ReconciliationStatus) error {
	return models.UpsertTransactionState(ctx, s.DB, transactionId, firstSeenAt, receivedSources, state)
}

func (s *GormStore) UpsertResult(ctx context.Context, transactionId string, status models.ReconciliationStatus, details string) (*models.ReconciliationResult, error) {
	return models.UpsertReconciliationResult(ctx, s.DB, transactionId, status, details)
}

func (s *GormStore) CreateAlert(ctx context.Context, transactionId string, reconciliationId int, severity models.AlertSeverity, message string) (*models.Alert, error) {
	return models.CreateAlert(ctx, s.DB, transactionId, reconciliationId, severity, message)
}

func (s *GormStore) ListIncompleteStates(ctx context.Context) ([]models.TransactionState, error) {
	return models.ListIncompleteTransactionStates(ctx, s.DB)
}

func (s *GormStore) ListRawByTransaction(ctx context.Context, transactionId string) ([]models.TransactionRaw, error) {
	return models.ListTransactionRawByTransaction(ctx, s.DB, transactionId)
}
