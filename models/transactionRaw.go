package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRaw is one source's report of a transaction. There is at most one
// row per (transaction_id, source); re-delivery overwrites (last-write-wins).
type TransactionRaw struct {
	ID             int               `gorm:"primary_key" json:"id"`
	TransactionId  string            `gorm:"size:64;not null;uniqueIndex:idx_txn_source" json:"transaction_id"`
	Source         TransactionSource `gorm:"size:16;not null;uniqueIndex:idx_txn_source" json:"source"`
	Amount         decimal.Decimal   `gorm:"type:decimal(20,6);not null" json:"amount"`
	Status         TransactionStatus `gorm:"size:16;not null" json:"status"`
	EventTimestamp time.Time         `json:"event_timestamp"`
	ReceivedAt     time.Time         `gorm:"autoCreateTime" json:"received_at"`
}

func UpsertTransactionRaw(ctx context.Context, db *gorm.DB, txnId string, source TransactionSource, amount decimal.Decimal, status TransactionStatus, eventTimestamp time.Time) (*TransactionRaw, error) {
	raw := TransactionRaw{
		TransactionId:  txnId,
		Source:         source,
		Amount:         amount,
		Status:         status,
		EventTimestamp: eventTimestamp,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "status", "event_timestamp"}),
	}).Create(&raw).Error
	if err != nil {
		return nil, err
	}
	// OnConflict updates leave ID unset on the receiver; re-read for callers
	// that need the stored row (alert refs, notifications).
	if raw.ID == 0 {
		if ferr := db.WithContext(ctx).
			Where("transaction_id = ? AND source = ?", txnId, source).
			First(&raw).Error; ferr != nil {
			return nil, ferr
		}
	}
	return &raw, nil
}

func ListTransactionRawByTransaction(ctx context.Context, db *gorm.DB, txnId string) ([]TransactionRaw, error) {
	var raws []TransactionRaw
	err := db.WithContext(ctx).
		Where("transaction_id = ?", txnId).
		Order("received_at ASC").
		Find(&raws).Error
	return raws, err
}

func ListTransactionRaw(ctx context.Context, db *gorm.DB, txnId string, source TransactionSource, page int, limit int) ([]TransactionRaw, int64, error) {
	q := db.WithContext(ctx).Model(&TransactionRaw{})
	if txnId != "" {
		q = q.Where("transaction_id = ?", txnId)
	}
	if source != "" {
		q = q.Where("source = ?", source)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var raws []TransactionRaw
	err := q.Order("received_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&raws).Error
	return raws, total, err
}
