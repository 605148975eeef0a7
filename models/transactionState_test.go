package models

import (
	"strings"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func TestTransactionStateQueryFiltersInSQL(t *testing.T) {
	db := dryRunDB(t)

	stmt := transactionStateQuery(db, ReconStatusIncomplete, SourceBank).
		Order("last_updated_at DESC").
		Offset(50).
		Limit(50).
		Find(&[]TransactionState{}).Statement

	sql := stmt.SQL.String()
	if !strings.Contains(sql, "IN (SELECT") {
		t.Fatalf("source filter is not part of the query: %s", sql)
	}
	if !strings.Contains(sql, "LIMIT") {
		t.Fatalf("pagination missing: %s", sql)
	}
	// The subquery filter must precede LIMIT so pagination sees only
	// matching rows, never the other way around.
	if strings.Index(sql, "IN (SELECT") > strings.Index(sql, "LIMIT") {
		t.Fatalf("source filter applied after pagination: %s", sql)
	}
}

func TestTransactionStateQueryCountCarriesSourceFilter(t *testing.T) {
	db := dryRunDB(t)

	var n int64
	stmt := transactionStateQuery(db, "", SourceApp).Count(&n).Statement

	sql := stmt.SQL.String()
	if !strings.Contains(sql, "IN (SELECT") {
		t.Fatalf("count ignores the source filter: %s", sql)
	}
}

func TestTransactionStateQueryNoFilters(t *testing.T) {
	db := dryRunDB(t)

	stmt := transactionStateQuery(db, "", "").Find(&[]TransactionState{}).Statement

	sql := stmt.SQL.String()
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("unfiltered query grew a WHERE clause: %s", sql)
	}
}
