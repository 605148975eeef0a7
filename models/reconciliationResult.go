package models

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReconciliationResult is the terminal verdict for one transaction.
// Semantically write-once: the correlator commits it exactly once, the upsert
// only exists so crash-replays converge on the same row.
type ReconciliationResult struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	TransactionId string               `gorm:"size:64;not null;uniqueIndex" json:"transaction_id"`
	Status        ReconciliationStatus `gorm:"size:32;not null;index" json:"status"`
	Details       string               `gorm:"type:text" json:"details"`
	ReconciledAt  time.Time            `gorm:"autoCreateTime" json:"reconciled_at"`
}

func UpsertReconciliationResult(ctx context.Context, db *gorm.DB, txnId string, status ReconciliationStatus, details string) (*ReconciliationResult, error) {
	result := ReconciliationResult{
		TransactionId: txnId,
		Status:        status,
		Details:       details,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "details"}),
	}).Create(&result).Error
	if err != nil {
		return nil, err
	}
	if result.ID == 0 {
		if ferr := db.WithContext(ctx).
			Where("transaction_id = ?", txnId).
			First(&result).Error; ferr != nil {
			return nil, ferr
		}
	}
	return &result, nil
}

func GetReconciliationResult(ctx context.Context, db *gorm.DB, txnId string) (*ReconciliationResult, error) {
	var result ReconciliationResult
	err := db.WithContext(ctx).Where("transaction_id = ?", txnId).First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func CountReconciliationResults(ctx context.Context, db *gorm.DB, status ReconciliationStatus) (int64, error) {
	q := db.WithContext(ctx).Model(&ReconciliationResult{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// ListReconciliationResults pages terminal verdicts, newest first.
// matched=true returns only MATCHED rows, matched=false only non-MATCHED;
// pass nil for no status filter.
func ListReconciliationResults(ctx context.Context, db *gorm.DB, matched *bool, page int, limit int) ([]ReconciliationResult, int64, error) {
	q := db.WithContext(ctx).Model(&ReconciliationResult{})
	if matched != nil {
		if *matched {
			q = q.Where("status = ?", ReconStatusMatched)
		} else {
			q = q.Where("status <> ?", ReconStatusMatched)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []ReconciliationResult
	err := q.Order("reconciled_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&results).Error
	return results, total, err
}
