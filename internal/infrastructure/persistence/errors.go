package persistence

import (
	"context"
	"errors"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes treated as transient contention
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// classifyError converts transient database failures on a product into a
// ContentionError. Any other error is returned unchanged.
func classifyError(err error, productID uuid.UUID, op string) error {
	if err == nil {
		return nil
	}
	var contention *valuation.ContentionError
	if errors.As(err, &contention) {
		return err
	}
	if isContentionCode(sqlState(err)) || errors.Is(err, context.DeadlineExceeded) {
		return valuation.NewContentionError(productID, op, err)
	}
	return err
}

// sqlState extracts the SQLSTATE from pgx or lib/pq errors
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isContentionCode(code string) bool {
	switch code {
	case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
		return true
	}
	return false
}

// IsTransient reports whether err is a lock, serialization or deadlock
// failure that the valuation service retries.
func IsTransient(err error) bool {
	return isContentionCode(sqlState(err))
}
