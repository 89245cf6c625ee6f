package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductLocker serializes units of work on one product using a
// transaction-scoped advisory lock. It must be built on the transaction
// handle: the lock is released when that transaction ends.
//
// On SQLite the whole database is serialized by the single writer, so
// LockProduct is a no-op there.
type GormProductLocker struct {
	tx          *gorm.DB
	lockTimeout time.Duration
}

// NewGormProductLocker creates a locker bound to tx. lockTimeout bounds every
// lock wait of the transaction; zero leaves the server default.
func NewGormProductLocker(tx *gorm.DB, lockTimeout time.Duration) *GormProductLocker {
	return &GormProductLocker{tx: tx, lockTimeout: lockTimeout}
}

// LockProduct blocks until the product lock is held or the lock timeout expires
func (l *GormProductLocker) LockProduct(ctx context.Context, ownerID, productID uuid.UUID) error {
	if !IsPostgres(l.tx) {
		return nil
	}

	db := l.tx.WithContext(ctx)
	if l.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.lockTimeout.Milliseconds())
		if err := db.Exec(stmt).Error; err != nil {
			return classifyError(err, productID, "lock_product")
		}
	}
	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", productLockKey(ownerID, productID)).Error; err != nil {
		return classifyError(err, productID, "lock_product")
	}
	return nil
}

func productLockKey(ownerID, productID uuid.UUID) string {
	return "valuation:" + ownerID.String() + ":" + productID.String()
}

// Ensure GormProductLocker implements ProductLocker
var _ valuation.ProductLocker = (*GormProductLocker)(nil)
