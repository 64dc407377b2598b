package inventory

import "testing"

func TestAllocateFIFOByBatchNumber(t *testing.T) {
	// Input order is deliberately newest-first; allocation must follow
	// batch number order, not list order.
	batches := []Batch{
		{ID: "b2", BatchNumber: "B002", Remaining: 3},
		{ID: "b1", BatchNumber: "B001", Remaining: 5},
	}
	plan := Allocate(6, batches)
	if plan.Allocated != 6 || plan.Shortfall != 0 {
		t.Fatalf("allocated=%d shortfall=%d, want 6/0", plan.Allocated, plan.Shortfall)
	}
	if len(plan.Allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(plan.Allocations))
	}
	if plan.Allocations[0].BatchID != "b1" || plan.Allocations[0].Qty != 5 {
		t.Fatalf("first allocation = %+v, want 5 from b1", plan.Allocations[0])
	}
	if plan.Allocations[1].BatchID != "b2" || plan.Allocations[1].Qty != 1 {
		t.Fatalf("second allocation = %+v, want 1 from b2", plan.Allocations[1])
	}
}

func TestAllocateShortfall(t *testing.T) {
	batches := []Batch{
		{ID: "b1", BatchNumber: "B001", Remaining: 2},
		{ID: "b2", BatchNumber: "B002", Remaining: 1},
	}
	plan := Allocate(10, batches)
	if plan.Allocated != 3 {
		t.Fatalf("allocated = %d, want 3", plan.Allocated)
	}
	if plan.Shortfall != 7 {
		t.Fatalf("shortfall = %d, want 7", plan.Shortfall)
	}
}

func TestAllocateNoBatches(t *testing.T) {
	plan := Allocate(4, nil)
	if plan.Allocated != 0 || plan.Shortfall != 4 {
		t.Fatalf("got %+v, want nothing allocated and shortfall 4", plan)
	}
}

func TestAllocateSkipsDrainedBatches(t *testing.T) {
	batches := []Batch{
		{ID: "b1", BatchNumber: "B001", Remaining: 0},
		{ID: "b2", BatchNumber: "B002", Remaining: 4},
	}
	plan := Allocate(2, batches)
	if len(plan.Allocations) != 1 || plan.Allocations[0].BatchID != "b2" {
		t.Fatalf("expected allocation from b2 only, got %+v", plan.Allocations)
	}
}

func TestAllocateCoercesRequestBelowOne(t *testing.T) {
	batches := []Batch{{ID: "b1", BatchNumber: "B001", Remaining: 5}}
	plan := Allocate(0, batches)
	if plan.Allocated != 1 {
		t.Fatalf("allocated = %d, want 1", plan.Allocated)
	}
}

func TestAllocateConservation(t *testing.T) {
	batches := []Batch{
		{ID: "b3", BatchNumber: "B003", Remaining: 7},
		{ID: "b1", BatchNumber: "B001", Remaining: 2},
		{ID: "b2", BatchNumber: "B002", Remaining: 4},
	}
	for _, requested := range []int{1, 3, 8, 13, 50} {
		plan := Allocate(requested, batches)
		var sum, available int
		for _, a := range plan.Allocations {
			sum += a.Qty
		}
		for _, b := range batches {
			available += b.Remaining
		}
		if sum != plan.Allocated {
			t.Fatalf("request %d: allocation entries sum to %d, plan says %d", requested, sum, plan.Allocated)
		}
		if plan.Allocated > requested {
			t.Fatalf("request %d: allocated %d exceeds request", requested, plan.Allocated)
		}
		if plan.Allocated > available {
			t.Fatalf("request %d: allocated %d exceeds availability %d", requested, plan.Allocated, available)
		}
		if plan.Allocated+plan.Shortfall != requested {
			t.Fatalf("request %d: allocated+shortfall = %d", requested, plan.Allocated+plan.Shortfall)
		}
	}
}

func TestAllocateDoesNotMutateInput(t *testing.T) {
	batches := []Batch{
		{ID: "b2", BatchNumber: "B002", Remaining: 3},
		{ID: "b1", BatchNumber: "B001", Remaining: 5},
	}
	_ = Allocate(6, batches)
	if batches[0].ID != "b2" || batches[1].ID != "b1" {
		t.Fatal("input slice order changed")
	}
	if batches[0].Remaining != 3 || batches[1].Remaining != 5 {
		t.Fatal("input remaining quantities changed")
	}
}

func TestAllocateDeterministic(t *testing.T) {
	batches := []Batch{
		{ID: "b2", BatchNumber: "B002", Remaining: 3},
		{ID: "b1", BatchNumber: "B001", Remaining: 5},
		{ID: "b3", BatchNumber: "B003", Remaining: 2},
	}
	first := Allocate(7, batches)
	second := Allocate(7, batches)
	if len(first.Allocations) != len(second.Allocations) {
		t.Fatal("plans differ in length")
	}
	for i := range first.Allocations {
		if first.Allocations[i] != second.Allocations[i] {
			t.Fatalf("plan entry %d differs: %+v vs %+v", i, first.Allocations[i], second.Allocations[i])
		}
	}
}
