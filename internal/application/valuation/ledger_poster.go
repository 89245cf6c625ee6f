package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/valuation/internal/domain/valuation"
)

// LedgerPoster appends balance-carrying entries to the ledger
type LedgerPoster struct {
	now func() time.Time
}

// NewLedgerPoster creates a LedgerPoster
func NewLedgerPoster() *LedgerPoster {
	return &LedgerPoster{now: time.Now}
}

// Post appends one entry to the (owner, product) chain of posting. The
// latest entry is read under lock so the new balances always extend the
// newest committed ones.
func (p *LedgerPoster) Post(ctx context.Context, repos TransactionalRepositories, posting valuation.LedgerPosting) (*valuation.LedgerEntry, error) {
	if err := posting.Validate(); err != nil {
		return nil, err
	}

	if err := repos.ProductLocker().LockProduct(ctx, posting.OwnerID, posting.ProductID); err != nil {
		return nil, err
	}

	prev, err := repos.LedgerRepo().LatestForUpdate(ctx, posting.OwnerID, posting.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load latest ledger entry: %w", err)
	}

	entry, err := valuation.NextLedgerEntry(prev, posting, p.now())
	if err != nil {
		return nil, err
	}
	if err := repos.LedgerRepo().Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
