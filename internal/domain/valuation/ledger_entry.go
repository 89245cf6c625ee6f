package valuation

import (
	"time"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/google/uuid"
)

// EntryType is the kind of movement a ledger entry records
type EntryType string

const (
	EntryTypeStockIn    EntryType = "stock_in"
	EntryTypeStockOut   EntryType = "stock_out"
	EntryTypeSale       EntryType = "sale"
	EntryTypeExpense    EntryType = "expense"
	EntryTypeAdjustment EntryType = "adjustment"
	EntryTypeReturn     EntryType = "return"
)

// Category groups entry types by which balance they move
type Category string

const (
	CategoryInventory Category = "inventory"
	CategoryFinancial Category = "financial"
)

// IsValid returns true for known entry types
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeStockIn, EntryTypeStockOut, EntryTypeSale,
		EntryTypeExpense, EntryTypeAdjustment, EntryTypeReturn:
		return true
	}
	return false
}

// Category derives the entry category from its type
func (t EntryType) Category() Category {
	switch t {
	case EntryTypeSale, EntryTypeExpense:
		return CategoryFinancial
	default:
		return CategoryInventory
	}
}

// checkSign enforces the sign each type allows on its delta
func (t EntryType) checkSign(delta int64) error {
	ok := false
	switch t {
	case EntryTypeStockIn, EntryTypeReturn, EntryTypeSale:
		ok = delta > 0
	case EntryTypeStockOut, EntryTypeExpense:
		ok = delta < 0
	case EntryTypeAdjustment:
		ok = delta != 0
	}
	if !ok {
		return ErrInvalidLedgerEntry.Newf("Delta %d is not allowed for %s entries", delta, t)
	}
	return nil
}

// LedgerPosting is a stock or financial movement to be appended to the ledger.
// Quantity is used for inventory types, Amount for financial types.
type LedgerPosting struct {
	OwnerID     uuid.UUID
	StoreID     *uuid.UUID
	ProductID   uuid.UUID // uuid.Nil for owner-level financial entries
	OrderID     *uuid.UUID
	Type        EntryType
	Quantity    int64
	Amount      int64
	Reference   string
	Description string
}

// Validate checks the posting against its type's rules
func (p LedgerPosting) Validate() error {
	if p.OwnerID == uuid.Nil {
		return ErrInvalidOwner
	}
	if !p.Type.IsValid() {
		return ErrInvalidLedgerEntry.Newf("Unknown entry type %q", p.Type)
	}
	if len(p.Reference) > MaxReferenceLength {
		return ErrInvalidReference
	}
	if p.Type.Category() == CategoryInventory {
		if p.ProductID == uuid.Nil {
			return ErrInvalidLedgerEntry.Newf("Inventory entries require a product")
		}
		if p.Amount != 0 {
			return ErrInvalidLedgerEntry.Newf("Inventory entries carry a quantity, not an amount")
		}
		return p.Type.checkSign(p.Quantity)
	}
	if p.Quantity != 0 {
		return ErrInvalidLedgerEntry.Newf("Financial entries carry an amount, not a quantity")
	}
	return p.Type.checkSign(p.Amount)
}

// LedgerEntry is an append-only, balance-carrying ledger row. Exactly one of
// Quantity and Amount is set, matching Category.
type LedgerEntry struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	StoreID       *uuid.UUID
	ProductID     uuid.UUID
	OrderID       *uuid.UUID
	Type          EntryType
	Category      Category
	Quantity      *int64
	Amount        *int64
	BalanceQty    int64
	BalanceAmount int64
	Sequence      int64 // 1-based position within (owner, product)
	Reference     string
	Description   string
	CreatedAt     time.Time
}

// HasProduct reports whether the entry is scoped to a product
func (e *LedgerEntry) HasProduct() bool {
	return e.ProductID != uuid.Nil
}

// Delta returns the signed movement of the entry on each balance
func (e *LedgerEntry) Delta() (qty, amount int64) {
	if e.Quantity != nil {
		qty = *e.Quantity
	}
	if e.Amount != nil {
		amount = *e.Amount
	}
	return qty, amount
}

// NextLedgerEntry builds the entry that follows prev in the same
// (owner, product) chain. prev is nil for the first entry.
func NextLedgerEntry(prev *LedgerEntry, p LedgerPosting, now time.Time) (*LedgerEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if prev != nil && (prev.OwnerID != p.OwnerID || prev.ProductID != p.ProductID) {
		return nil, newInvariantViolation("ledger_entry", prev.ID,
			"previous entry belongs to a different owner/product chain")
	}

	entry := &LedgerEntry{
		ID:          shared.NewID(),
		OwnerID:     p.OwnerID,
		StoreID:     p.StoreID,
		ProductID:   p.ProductID,
		OrderID:     p.OrderID,
		Type:        p.Type,
		Category:    p.Type.Category(),
		Reference:   p.Reference,
		Description: p.Description,
		Sequence:    1,
		CreatedAt:   now,
	}
	if prev != nil {
		entry.BalanceQty = prev.BalanceQty
		entry.BalanceAmount = prev.BalanceAmount
		entry.Sequence = prev.Sequence + 1
	}

	switch entry.Category {
	case CategoryInventory:
		q := p.Quantity
		entry.Quantity = &q
		entry.BalanceQty += q
	case CategoryFinancial:
		a := p.Amount
		entry.Amount = &a
		entry.BalanceAmount += a
	}
	return entry, nil
}

// VerifyChain checks that entries, ordered by sequence, form a gapless chain
// whose balances equal the previous balance plus each entry's delta.
func VerifyChain(entries []LedgerEntry) error {
	var balQty, balAmount, seq int64
	for i := range entries {
		e := &entries[i]
		seq++
		if e.Sequence != seq {
			return newInvariantViolation("ledger_entry", e.ID, "sequence %d, expected %d", e.Sequence, seq)
		}
		if (e.Quantity == nil) == (e.Amount == nil) {
			return newInvariantViolation("ledger_entry", e.ID, "exactly one of quantity/amount must be set")
		}
		dq, da := e.Delta()
		balQty += dq
		balAmount += da
		if e.BalanceQty != balQty || e.BalanceAmount != balAmount {
			return newInvariantViolation("ledger_entry", e.ID,
				"balance (%d, %d), expected (%d, %d)", e.BalanceQty, e.BalanceAmount, balQty, balAmount)
		}
	}
	return nil
}
