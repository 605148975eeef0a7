package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Alert is the operator-facing notice raised for every non-MATCHED terminal
// verdict. At most one per transaction.
type Alert struct {
	ID               int           `gorm:"primary_key" json:"id"`
	TransactionId    string        `gorm:"size:64;not null;uniqueIndex" json:"transaction_id"`
	ReconciliationId int           `gorm:"index;not null" json:"reconciliation_id"`
	Severity         AlertSeverity `gorm:"size:16;not null;index" json:"severity"`
	Message          string        `gorm:"type:text" json:"message"`
	Resolved         bool          `gorm:"not null;default:false" json:"resolved"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func CreateAlert(ctx context.Context, db *gorm.DB, txnId string, reconciliationId int, severity AlertSeverity, message string) (*Alert, error) {
	alert := Alert{
		TransactionId:    txnId,
		ReconciliationId: reconciliationId,
		Severity:         severity,
		Message:          message,
	}
	err := db.WithContext(ctx).Create(&alert).Error
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func ListAlertsByTransaction(ctx context.Context, db *gorm.DB, txnId string) ([]Alert, error) {
	var alerts []Alert
	err := db.WithContext(ctx).
		Where("transaction_id = ?", txnId).
		Order("created_at ASC").
		Find(&alerts).Error
	return alerts, err
}

func ListAlerts(ctx context.Context, db *gorm.DB, resolved *bool, severity AlertSeverity, page int, limit int) ([]Alert, int64, error) {
	q := db.WithContext(ctx).Model(&Alert{})
	if resolved != nil {
		q = q.Where("resolved = ?", *resolved)
	}
	if severity != "" {
		q = q.Where("severity = ?", severity)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var alerts []Alert
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&alerts).Error
	return alerts, total, err
}

func CountAlerts(ctx context.Context, db *gorm.DB, resolved *bool) (int64, error) {
	q := db.WithContext(ctx).Model(&Alert{})
	if resolved != nil {
		q = q.Where("resolved = ?", *resolved)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func ResolveAlert(ctx context.Context, db *gorm.DB, id int) (*Alert, error) {
	var alert Alert
	if err := db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, err
	}
	if !alert.Resolved {
		if err := db.WithContext(ctx).Model(&alert).Update("resolved", true).Error; err != nil {
			return nil, err
		}
		alert.Resolved = true
	}
	return &alert, nil
}
