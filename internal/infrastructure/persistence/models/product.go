package models

import (
	"time"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel maps the columns of the catalog's products table that
// valuation reads. The engine never writes this table outside of tests.
type ProductModel struct {
	ID        uuid.UUID           `gorm:"type:uuid;primary_key"`
	OwnerID   uuid.UUID           `gorm:"type:uuid;not null;index"`
	Name      string              `gorm:"type:varchar(200);not null;default:''"`
	Stock     int64               `gorm:"not null;default:0"`
	Cost      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Price     decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt *time.Time          `gorm:"autoCreateTime:false"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the row to the valuation view of a product.
func (m *ProductModel) ToDomain() valuation.ProductStock {
	p := valuation.ProductStock{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Name:      m.Name,
		Stock:     m.Stock,
		Price:     m.Price,
		CreatedAt: m.CreatedAt,
	}
	if m.Cost.Valid {
		cost := m.Cost.Decimal
		p.Cost = &cost
	}
	return p
}

// ProductModelFromDomain creates a persistence model from a product view.
func ProductModelFromDomain(p valuation.ProductStock) *ProductModel {
	m := &ProductModel{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		Name:      p.Name,
		Stock:     p.Stock,
		Price:     p.Price,
		CreatedAt: p.CreatedAt,
	}
	if p.Cost != nil {
		m.Cost = decimal.NullDecimal{Decimal: *p.Cost, Valid: true}
	}
	return m
}

// AllModels lists every model owned by the valuation schema, for AutoMigrate.
func AllModels() []any {
	return []any{
		&CostLayerModel{},
		&CostLayerConsumptionModel{},
		&LedgerEntryModel{},
	}
}
