package persistence

import (
	"context"
	"time"

	appval "github.com/erp/valuation/internal/application/valuation"
	"github.com/erp/valuation/internal/domain/valuation"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGormTransactionScope creates a new GormTransactionScope. lockTimeout is
// applied to product locks taken inside each transaction.
func NewGormTransactionScope(db *gorm.DB, lockTimeout time.Duration) *GormTransactionScope {
	return &GormTransactionScope{db: db, lockTimeout: lockTimeout}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appval.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, lockTimeout: s.lockTimeout})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx          *gorm.DB
	lockTimeout time.Duration
}

// LayerRepo returns the cost layer repository scoped to the current transaction.
func (r *gormTransactionalRepositories) LayerRepo() valuation.CostLayerRepository {
	return NewGormCostLayerRepository(r.tx)
}

// ConsumptionRepo returns the consumption repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ConsumptionRepo() valuation.ConsumptionRepository {
	return NewGormConsumptionRepository(r.tx)
}

// LedgerRepo returns the ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) LedgerRepo() valuation.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

// ProductLocker returns a product locker bound to the current transaction.
func (r *gormTransactionalRepositories) ProductLocker() valuation.ProductLocker {
	return NewGormProductLocker(r.tx, r.lockTimeout)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appval.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appval.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
