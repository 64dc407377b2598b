package inventory

import (
	"sort"
	"time"
)

// Batch is one receiving lot of a product at a branch. BatchNumber is
// assigned incrementally on receipt, so its lexicographic order is the
// FIFO ordering key.
type Batch struct {
	ID             string    `json:"batchId"`
	BatchNumber    string    `json:"batchNumber"`
	Remaining      int       `json:"remainingQuantity"`
	ReceivedDate   time.Time `json:"receivedDate,omitzero"`
	ExpirationDate time.Time `json:"expirationDate,omitzero"`
}

// Allocation is the quantity drawn from a single batch.
type Allocation struct {
	BatchID     string `json:"batchId"`
	BatchNumber string `json:"batchNumber"`
	Qty         int    `json:"quantity"`
}

// Plan is the outcome of allocating a requested quantity across batches.
// Shortfall is the portion of the request that could not be covered; it is
// reported as data, not an error, and submission validation rejects plans
// with a non-zero shortfall.
type Plan struct {
	Allocations []Allocation `json:"allocations"`
	Allocated   int          `json:"allocated"`
	Shortfall   int          `json:"shortfall"`
}

// Allocate distributes the requested quantity across the given batches in
// FIFO order (ascending batch number). A batch never yields more than its
// remaining quantity. The function is stateless: callers re-invoke it
// whenever the requested quantity changes.
func Allocate(requested int, batches []Batch) Plan {
	if requested < 1 {
		requested = 1
	}
	sorted := make([]Batch, len(batches))
	copy(sorted, batches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BatchNumber < sorted[j].BatchNumber
	})

	plan := Plan{Allocations: make([]Allocation, 0, len(sorted))}
	need := requested
	for _, b := range sorted {
		if need == 0 {
			break
		}
		if b.Remaining <= 0 {
			continue
		}
		take := need
		if take > b.Remaining {
			take = b.Remaining
		}
		plan.Allocations = append(plan.Allocations, Allocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Qty:         take,
		})
		plan.Allocated += take
		need -= take
	}
	plan.Shortfall = requested - plan.Allocated
	return plan
}
