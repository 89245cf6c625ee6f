package valuation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func mustLayer(t *testing.T, ownerID, productID uuid.UUID, qty, unitCost int64, acquiredAt time.Time) *CostLayer {
	t.Helper()
	l, err := NewCostLayer(ownerID, productID, qty, unitCost, acquiredAt, "PURCHASE-TEST")
	require.NoError(t, err)
	return l
}

func remaining(layers []*CostLayer) []int64 {
	out := make([]int64, len(layers))
	for i, l := range layers {
		out[i] = l.RemainingQuantity
	}
	return out
}
