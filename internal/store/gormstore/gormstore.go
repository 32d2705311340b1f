// Package gormstore persists availability and billing state through GORM,
// against PostgreSQL in production and the pure-Go SQLite driver in tests.
package gormstore

import (
	"errors"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veldstays/backoffice/pkg/faults"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	dialectPostgres       = "postgres"

	errorOperationStore     = "store"
	errorSubjectReservation = "reservation"
	errorSubjectInvoice     = "invoice"
	errorSubjectPayment     = "payment"
	errorSubjectCredit      = "credit"
	errorCodeInsert         = "insert"
	errorCodeGet            = "get"
	errorCodeList           = "list"
	errorCodeUpdate         = "update"
	errorCodeUpdateStatus   = "update_status"
	errorCodeDelete         = "delete"
	errorCodeDuplicate      = "duplicate"
	errorCodeLock           = "lock"
	errorCodeInvalid        = "invalid"
	errorCodeSum            = "sum"
)

func wrapStoreError(subject string, code string, err error) error {
	return faults.Wrap(errorOperationStore, subject, code, err)
}

// lockForUpdate applies a row lock on dialects that support it. SQLite runs
// every transaction under a database-wide write lock and rejects FOR UPDATE.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == dialectPostgres {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
