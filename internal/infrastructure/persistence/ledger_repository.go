package persistence

import (
	"context"
	"errors"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/erp/valuation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerRepository implements LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append inserts an entry. A concurrent writer that already took the same
// sequence surfaces as a unique violation, classified as contention.
func (r *GormLedgerRepository) Append(ctx context.Context, entry *valuation.LedgerEntry) error {
	m := models.LedgerEntryModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return classifyError(err, entry.ProductID, "append_ledger")
	}
	return nil
}

// Latest returns the newest entry of the chain, nil when the chain is empty
func (r *GormLedgerRepository) Latest(ctx context.Context, ownerID, productID uuid.UUID) (*valuation.LedgerEntry, error) {
	return r.latest(ctx, r.db.WithContext(ctx), ownerID, productID)
}

// LatestForUpdate is Latest with a FOR UPDATE row lock on PostgreSQL
func (r *GormLedgerRepository) LatestForUpdate(ctx context.Context, ownerID, productID uuid.UUID) (*valuation.LedgerEntry, error) {
	db := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.latest(ctx, db, ownerID, productID)
}

func (r *GormLedgerRepository) latest(_ context.Context, db *gorm.DB, ownerID, productID uuid.UUID) (*valuation.LedgerEntry, error) {
	var m models.LedgerEntryModel
	err := db.
		Scopes(ofProduct(ownerID, productID)).
		Order("sequence DESC").
		Limit(1).
		Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classifyError(err, productID, "latest_ledger")
	}
	return m.ToDomain(), nil
}

// FindByScope returns one page of the chain ordered by sequence
func (r *GormLedgerRepository) FindByScope(ctx context.Context, ownerID, productID uuid.UUID, filter shared.Filter) ([]valuation.LedgerEntry, int64, error) {
	chain := ofProduct(ownerID, productID)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).Scopes(chain).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).Scopes(chain)
	if filter.Paged() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	order := "sequence ASC"
	if filter.Descending() {
		order = "sequence DESC"
	}
	query = query.Order(order)

	var rows []models.LedgerEntryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]valuation.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, total, nil
}

// Ensure GormLedgerRepository implements LedgerRepository
var _ valuation.LedgerRepository = (*GormLedgerRepository)(nil)
