package billing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/salon-pos/internal/inventory"
)

func TestAttachAllocationsByItem(t *testing.T) {
	items := []BillItem{
		{ID: "item-1", Kind: KindService},
		{ID: "item-2", Kind: KindProduct},
		{ID: "item-3", Kind: KindProduct},
	}
	byItem := map[string][]inventory.Allocation{
		"item-2": {
			{BatchID: "batch-1", BatchNumber: "B-001", Qty: 2},
			{BatchID: "batch-2", BatchNumber: "B-002", Qty: 1},
		},
		"item-3": {
			{BatchID: "batch-2", BatchNumber: "B-002", Qty: 4},
		},
	}

	attachAllocations(items, byItem)

	require.Empty(t, items[0].Allocations)
	require.Len(t, items[1].Allocations, 2)
	require.Equal(t, "B-001", items[1].Allocations[0].BatchNumber)
	require.Equal(t, "B-002", items[1].Allocations[1].BatchNumber)
	require.Len(t, items[2].Allocations, 1)
	require.Equal(t, 4, items[2].Allocations[0].Qty)
}

func TestAttachAllocationsNoProductLines(t *testing.T) {
	items := []BillItem{{ID: "item-1", Kind: KindService}}
	attachAllocations(items, nil)
	require.Empty(t, items[0].Allocations)
}
