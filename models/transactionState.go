package models

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionState is the aggregate progress of one transaction. State only
// ever moves INCOMPLETE -> terminal; the correlator guarantees a single
// terminal transition, this table just records it.
type TransactionState struct {
	ID              int                  `gorm:"primary_key" json:"id"`
	TransactionId   string               `gorm:"size:64;not null;uniqueIndex" json:"transaction_id"`
	FirstSeenAt     time.Time            `json:"first_seen_at"`
	LastUpdatedAt   time.Time            `gorm:"autoUpdateTime" json:"last_updated_at"`
	ReceivedSources string               `gorm:"size:64" json:"received_sources"`
	State           ReconciliationStatus `gorm:"size:32;not null;index" json:"state"`
}

func (s *TransactionState) Sources() []TransactionSource {
	if s.ReceivedSources == "" {
		return nil
	}
	parts := strings.Split(s.ReceivedSources, ",")
	out := make([]TransactionSource, 0, len(parts))
	for _, p := range parts {
		out = append(out, TransactionSource(p))
	}
	return out
}

func JoinSources(sources []TransactionSource) string {
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

// UpsertTransactionState creates the row with first_seen_at on the first
// write and refreshes received_sources/state on every later one.
func UpsertTransactionState(ctx context.Context, db *gorm.DB, txnId string, firstSeenAt time.Time, receivedSources []TransactionSource, state ReconciliationStatus) error {
	row := TransactionState{
		TransactionId:   txnId,
		FirstSeenAt:     firstSeenAt,
		ReceivedSources: JoinSources(receivedSources),
		State:           state,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"received_sources", "state", "last_updated_at"}),
	}).Create(&row).Error
}

func GetTransactionState(ctx context.Context, db *gorm.DB, txnId string) (*TransactionState, error) {
	var state TransactionState
	err := db.WithContext(ctx).Where("transaction_id = ?", txnId).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ListIncompleteTransactionStates feeds startup recovery: rows whose
// correlation was interrupted before reaching a terminal state.
func ListIncompleteTransactionStates(ctx context.Context, db *gorm.DB) ([]TransactionState, error) {
	var states []TransactionState
	err := db.WithContext(ctx).
		Where("state = ?", ReconStatusIncomplete).
		Order("first_seen_at ASC").
		Find(&states).Error
	return states, err
}

// transactionStateQuery builds the filtered base query. The source filter is
// part of the SQL (subquery on transaction_raws), so count and page see the
// same row set.
func transactionStateQuery(db *gorm.DB, state ReconciliationStatus, source TransactionSource) *gorm.DB {
	q := db.Model(&TransactionState{})
	if state != "" {
		q = q.Where("state = ?", state)
	}
	if source != "" {
		q = q.Where("transaction_id IN (?)",
			db.Model(&TransactionRaw{}).Select("transaction_id").Where("source = ?", source))
	}
	return q
}

func ListTransactionStates(ctx context.Context, db *gorm.DB, state ReconciliationStatus, source TransactionSource, page int, limit int) ([]TransactionState, int64, error) {
	base := db.WithContext(ctx)

	var total int64
	if err := transactionStateQuery(base, state, source).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var states []TransactionState
	err := transactionStateQuery(base, state, source).
		Order("last_updated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&states).Error
	return states, total, err
}

func CountTransactionStates(ctx context.Context, db *gorm.DB, state ReconciliationStatus) (int64, error) {
	var n int64
	err := transactionStateQuery(db.WithContext(ctx), state, "").Count(&n).Error
	return n, err
}
