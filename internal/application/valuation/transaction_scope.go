package valuation

import (
	"context"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
)

// TransactionScope provides transactional access to valuation repositories.
// Every repository handed to fn shares one database transaction, which is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories of one transaction.
//
// ProductLocker must be called before reading layers or the latest ledger entry
// of a product so that concurrent units of work on that product serialize.
type TransactionalRepositories interface {
	LayerRepo() valuation.CostLayerRepository
	ConsumptionRepo() valuation.ConsumptionRepository
	LedgerRepo() valuation.LedgerRepository
	ProductLocker() valuation.ProductLocker
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// Useful for unit tests with mocked repositories.
type NoOpTransactionScope struct {
	layerRepo       valuation.CostLayerRepository
	consumptionRepo valuation.ConsumptionRepository
	ledgerRepo      valuation.LedgerRepository
	locker          valuation.ProductLocker
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	layerRepo valuation.CostLayerRepository,
	consumptionRepo valuation.ConsumptionRepository,
	ledgerRepo valuation.LedgerRepository,
	locker valuation.ProductLocker,
) *NoOpTransactionScope {
	if locker == nil {
		locker = noopLocker{}
	}
	return &NoOpTransactionScope{
		layerRepo:       layerRepo,
		consumptionRepo: consumptionRepo,
		ledgerRepo:      ledgerRepo,
		locker:          locker,
	}
}

// Execute runs fn directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) LayerRepo() valuation.CostLayerRepository {
	return s.layerRepo
}

func (s *NoOpTransactionScope) ConsumptionRepo() valuation.ConsumptionRepository {
	return s.consumptionRepo
}

func (s *NoOpTransactionScope) LedgerRepo() valuation.LedgerRepository {
	return s.ledgerRepo
}

func (s *NoOpTransactionScope) ProductLocker() valuation.ProductLocker {
	return s.locker
}

type noopLocker struct{}

func (noopLocker) LockProduct(context.Context, uuid.UUID, uuid.UUID) error { return nil }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
