package valuation

import (
	"time"

	"github.com/erp/valuation/internal/domain/valuation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RemoveStockRequest draws stock out for an order line or a decreasing adjustment
type RemoveStockRequest struct {
	OwnerID     uuid.UUID
	ProductID   uuid.UUID
	StoreID     *uuid.UUID
	OrderID     *uuid.UUID
	Quantity    int64
	Event       valuation.ConsumingEvent
	Reference   string
	Description string
}

// ReceiveStockRequest brings stock in as a new cost layer.
// EntryType defaults to stock_in; adjustment and return are also accepted.
type ReceiveStockRequest struct {
	OwnerID     uuid.UUID
	ProductID   uuid.UUID
	StoreID     *uuid.UUID
	OrderID     *uuid.UUID
	Quantity    int64
	UnitCost    int64
	AcquiredAt  time.Time
	EntryType   valuation.EntryType
	Reference   string
	Description string
}

// PostFinancialRequest records a sale or expense amount. Amount is signed:
// positive for sales, negative for expenses.
type PostFinancialRequest struct {
	OwnerID     uuid.UUID
	ProductID   uuid.UUID
	StoreID     *uuid.UUID
	OrderID     *uuid.UUID
	Type        valuation.EntryType
	Amount      int64
	Reference   string
	Description string
}

// ConsumptionResponse is one layer drawn by an allocation
type ConsumptionResponse struct {
	ID               uuid.UUID `json:"id"`
	CostLayerID      uuid.UUID `json:"cost_layer_id"`
	EventKind        string    `json:"event_kind"`
	EventID          uuid.UUID `json:"event_id"`
	QuantityConsumed int64     `json:"quantity_consumed"`
	UnitCost         int64     `json:"unit_cost"`
	TotalCost        int64     `json:"total_cost"`
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	StoreID       *uuid.UUID `json:"store_id,omitempty"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	Type          string     `json:"type"`
	Category      string     `json:"category"`
	Quantity      *int64     `json:"quantity,omitempty"`
	Amount        *int64     `json:"amount,omitempty"`
	BalanceQty    int64      `json:"balance_qty"`
	BalanceAmount int64      `json:"balance_amount"`
	Sequence      int64      `json:"sequence"`
	Reference     string     `json:"reference,omitempty"`
	Description   string     `json:"description,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RemoveStockResponse is the outcome of RemoveStock
type RemoveStockResponse struct {
	ProductID       uuid.UUID             `json:"product_id"`
	Quantity        int64                 `json:"quantity"`
	TotalCost       int64                 `json:"total_cost"`
	AverageUnitCost decimal.Decimal       `json:"average_unit_cost"`
	Consumptions    []ConsumptionResponse `json:"consumptions"`
	LedgerEntry     LedgerEntryResponse   `json:"ledger_entry"`
}

// CostLayerResponse represents a cost layer in API responses
type CostLayerResponse struct {
	ID                uuid.UUID `json:"id"`
	OwnerID           uuid.UUID `json:"owner_id"`
	ProductID         uuid.UUID `json:"product_id"`
	Quantity          int64     `json:"quantity"`
	RemainingQuantity int64     `json:"remaining_quantity"`
	UnitCost          int64     `json:"unit_cost"`
	AcquiredAt        time.Time `json:"acquired_at"`
	Reference         string    `json:"reference,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ReceiveStockResponse is the outcome of ReceiveStock
type ReceiveStockResponse struct {
	Layer       CostLayerResponse   `json:"layer"`
	LedgerEntry LedgerEntryResponse `json:"ledger_entry"`
}

// BalanceResponse is the running balance of one ledger chain
type BalanceResponse struct {
	OwnerID       uuid.UUID  `json:"owner_id"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	BalanceQty    int64      `json:"balance_qty"`
	BalanceAmount int64      `json:"balance_amount"`
	Sequence      int64      `json:"sequence"`
	AsOf          *time.Time `json:"as_of,omitempty"`
}

// ValuationReportResponse values the remaining layers of one product
type ValuationReportResponse struct {
	OwnerID         uuid.UUID       `json:"owner_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	OnHand          int64           `json:"on_hand"`
	ActiveLayers    int             `json:"active_layers"`
	TotalValue      int64           `json:"total_value"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost"`
}

// ToCostLayerResponse converts a domain CostLayer to a response
func ToCostLayerResponse(l *valuation.CostLayer) CostLayerResponse {
	return CostLayerResponse{
		ID:                l.ID,
		OwnerID:           l.OwnerID,
		ProductID:         l.ProductID,
		Quantity:          l.Quantity,
		RemainingQuantity: l.RemainingQuantity,
		UnitCost:          l.UnitCost,
		AcquiredAt:        l.AcquiredAt,
		Reference:         l.Reference,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

// ToCostLayerResponses converts a slice of layers
func ToCostLayerResponses(layers []*valuation.CostLayer) []CostLayerResponse {
	out := make([]CostLayerResponse, len(layers))
	for i, l := range layers {
		out[i] = ToCostLayerResponse(l)
	}
	return out
}

// ToLedgerEntryResponse converts a domain LedgerEntry to a response
func ToLedgerEntryResponse(e *valuation.LedgerEntry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		ID:            e.ID,
		OwnerID:       e.OwnerID,
		StoreID:       e.StoreID,
		OrderID:       e.OrderID,
		Type:          string(e.Type),
		Category:      string(e.Category),
		Quantity:      e.Quantity,
		Amount:        e.Amount,
		BalanceQty:    e.BalanceQty,
		BalanceAmount: e.BalanceAmount,
		Sequence:      e.Sequence,
		Reference:     e.Reference,
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
	}
	if e.HasProduct() {
		id := e.ProductID
		resp.ProductID = &id
	}
	return resp
}

// ToConsumptionResponses converts consumption records
func ToConsumptionResponses(consumptions []valuation.CostLayerConsumption) []ConsumptionResponse {
	out := make([]ConsumptionResponse, len(consumptions))
	for i, c := range consumptions {
		out[i] = ConsumptionResponse{
			ID:               c.ID,
			CostLayerID:      c.CostLayerID,
			EventKind:        string(c.Event.Kind()),
			EventID:          c.Event.ID(),
			QuantityConsumed: c.QuantityConsumed,
			UnitCost:         c.UnitCost,
			TotalCost:        c.TotalCost(),
		}
	}
	return out
}
