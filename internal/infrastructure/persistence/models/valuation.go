package models

import (
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
)

// CostLayerModel is the persistence model for a cost layer. The FIFO index
// orders by acquisition time, then by the time-ordered id.
type CostLayerModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;index:idx_cost_layers_fifo,priority:4"`
	OwnerID           uuid.UUID `gorm:"type:uuid;not null;index:idx_cost_layers_fifo,priority:1"`
	ProductID         uuid.UUID `gorm:"type:uuid;not null;index:idx_cost_layers_fifo,priority:2"`
	Quantity          int64     `gorm:"not null;check:chk_cost_layers_quantity,quantity > 0"`
	RemainingQuantity int64     `gorm:"not null;check:chk_cost_layers_remaining,remaining_quantity >= 0 AND remaining_quantity <= quantity"`
	UnitCost          int64     `gorm:"not null;check:chk_cost_layers_unit_cost,unit_cost >= 0"`
	AcquiredAt        time.Time `gorm:"not null;index:idx_cost_layers_fifo,priority:3"`
	Reference         string    `gorm:"type:varchar(100);not null;default:''"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CostLayerModel) TableName() string {
	return "cost_layers"
}

// ToDomain converts the persistence model to a domain CostLayer.
func (m *CostLayerModel) ToDomain() *valuation.CostLayer {
	return &valuation.CostLayer{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		OwnerID:           m.OwnerID,
		ProductID:         m.ProductID,
		Quantity:          m.Quantity,
		RemainingQuantity: m.RemainingQuantity,
		UnitCost:          m.UnitCost,
		AcquiredAt:        m.AcquiredAt,
		Reference:         m.Reference,
	}
}

// FromDomain populates the persistence model from a domain CostLayer.
func (m *CostLayerModel) FromDomain(l *valuation.CostLayer) {
	m.ID = l.ID
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
	m.OwnerID = l.OwnerID
	m.ProductID = l.ProductID
	m.Quantity = l.Quantity
	m.RemainingQuantity = l.RemainingQuantity
	m.UnitCost = l.UnitCost
	m.AcquiredAt = l.AcquiredAt
	m.Reference = l.Reference
}

// CostLayerModelFromDomain creates a new persistence model from a domain CostLayer.
func CostLayerModelFromDomain(l *valuation.CostLayer) *CostLayerModel {
	m := &CostLayerModel{}
	m.FromDomain(l)
	return m
}

// CostLayerConsumptionModel is the persistence model for a consumption record.
// The consuming event is flattened into two nullable columns, exactly one set.
type CostLayerConsumptionModel struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primary_key"`
	CostLayerID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	OrderItemID           *uuid.UUID `gorm:"type:uuid;index;check:chk_consumption_single_event,(order_item_id IS NULL) <> (inventory_adjustment_id IS NULL)"`
	InventoryAdjustmentID *uuid.UUID `gorm:"type:uuid;index"`
	QuantityConsumed      int64      `gorm:"not null;check:chk_consumption_quantity,quantity_consumed > 0"`
	UnitCost              int64      `gorm:"not null"`
	CreatedAt             time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CostLayerConsumptionModel) TableName() string {
	return "cost_layer_consumptions"
}

// ToDomain converts the persistence model to a domain consumption. It fails
// when the stored row does not reference exactly one consuming event.
func (m *CostLayerConsumptionModel) ToDomain() (valuation.CostLayerConsumption, error) {
	event, err := valuation.ConsumingEventFromColumns(m.OrderItemID, m.InventoryAdjustmentID)
	if err != nil {
		return valuation.CostLayerConsumption{}, err
	}
	return valuation.CostLayerConsumption{
		ID:               m.ID,
		CostLayerID:      m.CostLayerID,
		Event:            event,
		QuantityConsumed: m.QuantityConsumed,
		UnitCost:         m.UnitCost,
		CreatedAt:        m.CreatedAt,
	}, nil
}

// CostLayerConsumptionModelFromDomain creates a persistence model from a domain consumption.
func CostLayerConsumptionModelFromDomain(c valuation.CostLayerConsumption) CostLayerConsumptionModel {
	return CostLayerConsumptionModel{
		ID:                    c.ID,
		CostLayerID:           c.CostLayerID,
		OrderItemID:           c.Event.OrderItemID(),
		InventoryAdjustmentID: c.Event.InventoryAdjustmentID(),
		QuantityConsumed:      c.QuantityConsumed,
		UnitCost:              c.UnitCost,
		CreatedAt:             c.CreatedAt,
	}
}

// LedgerEntryModel is the persistence model for a ledger entry. Rows are
// append-only; product_id holds the nil UUID for owner-level entries so that
// the (owner_id, product_id, sequence) unique index covers every chain.
type LedgerEntryModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key"`
	OwnerID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_entries_chain,priority:1"`
	ProductID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_entries_chain,priority:2"`
	Sequence      int64      `gorm:"not null;uniqueIndex:idx_ledger_entries_chain,priority:3;check:chk_ledger_entries_sequence,sequence > 0"`
	StoreID       *uuid.UUID `gorm:"type:uuid;index"`
	OrderID       *uuid.UUID `gorm:"type:uuid;index"`
	Type          string     `gorm:"type:varchar(20);not null"`
	Category      string     `gorm:"type:varchar(20);not null;check:chk_ledger_entries_delta,(quantity IS NULL) <> (amount IS NULL)"`
	Quantity      *int64
	Amount        *int64
	BalanceQty    int64     `gorm:"not null;default:0"`
	BalanceAmount int64     `gorm:"not null;default:0"`
	Reference     string    `gorm:"type:varchar(100);not null;default:''"`
	Description   string    `gorm:"type:text;not null;default:''"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry.
func (m *LedgerEntryModel) ToDomain() *valuation.LedgerEntry {
	return &valuation.LedgerEntry{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		StoreID:       m.StoreID,
		ProductID:     m.ProductID,
		OrderID:       m.OrderID,
		Type:          valuation.EntryType(m.Type),
		Category:      valuation.Category(m.Category),
		Quantity:      m.Quantity,
		Amount:        m.Amount,
		BalanceQty:    m.BalanceQty,
		BalanceAmount: m.BalanceAmount,
		Sequence:      m.Sequence,
		Reference:     m.Reference,
		Description:   m.Description,
		CreatedAt:     m.CreatedAt,
	}
}

// LedgerEntryModelFromDomain creates a persistence model from a domain LedgerEntry.
func LedgerEntryModelFromDomain(e *valuation.LedgerEntry) *LedgerEntryModel {
	return &LedgerEntryModel{
		ID:            e.ID,
		OwnerID:       e.OwnerID,
		ProductID:     e.ProductID,
		Sequence:      e.Sequence,
		StoreID:       e.StoreID,
		OrderID:       e.OrderID,
		Type:          string(e.Type),
		Category:      string(e.Category),
		Quantity:      e.Quantity,
		Amount:        e.Amount,
		BalanceQty:    e.BalanceQty,
		BalanceAmount: e.BalanceAmount,
		Reference:     e.Reference,
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
	}
}
