package valuation

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/valuation/internal/domain/shared"
	"github.com/google/uuid"
)

// Error codes surfaced to callers
const (
	CodeInsufficientCostLayers = "INSUFFICIENT_COST_LAYERS"
	CodeContention             = "CONTENTION"
	CodeInvariantViolation     = "INVARIANT_VIOLATION"
	CodeInvalidQuantity        = "INVALID_QUANTITY"
	CodeInvalidUnitCost        = "INVALID_UNIT_COST"
	CodeInvalidConsumingEvent  = "INVALID_CONSUMING_EVENT"
	CodeInvalidLedgerEntry     = "INVALID_LEDGER_ENTRY"
	CodeInvalidCostPolicy      = "INVALID_COST_POLICY"
	CodeInvalidOwner           = "INVALID_OWNER"
	CodeInvalidProduct         = "INVALID_PRODUCT"
	CodeInvalidReference       = "INVALID_REFERENCE"
)

// Sentinel errors. Typed errors below unwrap to these so callers can match
// with errors.Is without caring about the payload.
var (
	ErrInsufficientCostLayers = shared.NewDomainError(CodeInsufficientCostLayers, "Insufficient cost layers to cover the requested quantity")
	ErrContention             = shared.NewDomainError(CodeContention, "Product is being modified concurrently, retry later")
	ErrInvariantViolation     = shared.NewDomainError(CodeInvariantViolation, "Cost layer invariant violated")
	ErrInvalidQuantity        = shared.NewDomainError(CodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidUnitCost        = shared.NewDomainError(CodeInvalidUnitCost, "Unit cost cannot be negative")
	ErrInvalidConsumingEvent  = shared.NewDomainError(CodeInvalidConsumingEvent, "Consuming event must reference an order line or an adjustment")
	ErrInvalidLedgerEntry     = shared.NewDomainError(CodeInvalidLedgerEntry, "Ledger entry is not valid for its type")
	ErrInvalidCostPolicy      = shared.NewDomainError(CodeInvalidCostPolicy, "Unknown backfill cost policy")
	ErrInvalidOwner           = shared.NewDomainError(CodeInvalidOwner, "Owner ID cannot be empty")
	ErrInvalidProduct         = shared.NewDomainError(CodeInvalidProduct, "Product ID cannot be empty")
	ErrInvalidReference       = shared.NewDomainError(CodeInvalidReference, "Reference cannot exceed 100 characters")
)

// InsufficientCostLayersError is returned when the active layers of a product
// cannot cover a requested consumption. Nothing is mutated when it is returned.
type InsufficientCostLayersError struct {
	ProductID uuid.UUID
	Requested int64
	Available int64
}

func (e *InsufficientCostLayersError) Error() string {
	return fmt.Sprintf("insufficient cost layers for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Unwrap lets errors.Is match ErrInsufficientCostLayers
func (e *InsufficientCostLayersError) Unwrap() error {
	return ErrInsufficientCostLayers
}

// Shortfall returns how many units are missing
func (e *InsufficientCostLayersError) Shortfall() int64 {
	return e.Requested - e.Available
}

// ContentionError reports a transient failure to serialize work on a product:
// lock timeout, serialization failure, deadlock, a lost ledger sequence race,
// or the caller's deadline expiring while waiting.
type ContentionError struct {
	ProductID uuid.UUID
	Op        string
	Cause     error
}

func (e *ContentionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("contention on product %s during %s", e.ProductID, e.Op)
	}
	return fmt.Sprintf("contention on product %s during %s: %v", e.ProductID, e.Op, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause
func (e *ContentionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrContention}
	}
	return []error{ErrContention, e.Cause}
}

// NewContentionError wraps cause as a retryable contention failure
func NewContentionError(productID uuid.UUID, op string, cause error) *ContentionError {
	return &ContentionError{ProductID: productID, Op: op, Cause: cause}
}

// InvariantViolationError is a fatal internal error. It is never expected in
// a correct build and is never retried.
type InvariantViolationError struct {
	Entity string
	ID     uuid.UUID
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation on %s %s: %s", e.Entity, e.ID, e.Detail)
}

// Unwrap lets errors.Is match ErrInvariantViolation
func (e *InvariantViolationError) Unwrap() error {
	return ErrInvariantViolation
}

func newInvariantViolation(entity string, id uuid.UUID, format string, args ...any) *InvariantViolationError {
	return &InvariantViolationError{Entity: entity, ID: id, Detail: fmt.Sprintf(format, args...)}
}

// IsInsufficientCostLayers reports whether err is a stock shortfall
func IsInsufficientCostLayers(err error) bool {
	return errors.Is(err, ErrInsufficientCostLayers)
}

// IsInvariantViolation reports whether err is a fatal invariant failure
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsRetryable reports whether err is a transient contention failure. Business
// rule failures are never retryable even if they wrap a deadline.
func IsRetryable(err error) bool {
	if err == nil || IsInsufficientCostLayers(err) || IsInvariantViolation(err) {
		return false
	}
	return errors.Is(err, ErrContention) || errors.Is(err, context.DeadlineExceeded)
}
