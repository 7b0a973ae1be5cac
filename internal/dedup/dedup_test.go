package dedup

import "testing"

func TestCapacityMustBePositive(t *testing.T) {
	for _, c := range []int{0, -1, -100} {
		if _, err := New(c); err == nil {
			t.Fatalf("capacity %d should be rejected", c)
		}
	}
	if _, err := New(1); err != nil {
		t.Fatalf("capacity 1 should be accepted: %v", err)
	}
}

func TestEvictionOrderIsStrictLRU(t *testing.T) {
	w, err := New(2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	w.Add("a")
	w.Add("b")
	w.Add("c") // evicts a

	if w.Contains("a") {
		t.Fatalf("a should have been evicted")
	}
	if !w.Contains("b") || !w.Contains("c") {
		t.Fatalf("b and c should survive")
	}
	if w.Len() != 2 {
		t.Fatalf("window exceeded capacity: %d", w.Len())
	}
}

func TestContainsPromotes(t *testing.T) {
	w, _ := New(2)
	w.Add("a")
	w.Add("b")
	if !w.Contains("a") {
		t.Fatalf("a should be present")
	}
	w.Add("c") // the read promoted a, so b is the LRU entry

	if w.Contains("b") {
		t.Fatalf("b should have been evicted, not a")
	}
	if !w.Contains("a") || !w.Contains("c") {
		t.Fatalf("a and c should survive")
	}
}

func TestReAddMovesInsteadOfDuplicating(t *testing.T) {
	w, _ := New(2)
	w.Add("a")
	w.Add("b")
	w.Add("a") // move, not duplicate
	if w.Len() != 2 {
		t.Fatalf("re-add duplicated: %d", w.Len())
	}
	w.Add("c") // b is LRU now
	if w.Contains("b") {
		t.Fatalf("b should have been evicted after a was re-added")
	}
}

func TestRemoveDropsKey(t *testing.T) {
	w, err := New(2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	w.Add("a")
	w.Remove("a")
	if w.Contains("a") {
		t.Fatalf("removed key still present")
	}
	if w.Observe("a") {
		t.Fatalf("removed key should observe as new")
	}
	// removing an absent key is a no-op
	w.Remove("never")
	if w.Len() != 1 {
		t.Fatalf("len = %d, want 1", w.Len())
	}
}

func TestObserveIsContainsThenAdd(t *testing.T) {
	w, _ := New(2)
	if w.Observe("a") {
		t.Fatalf("first observe must report unseen")
	}
	w.Add("b")
	if !w.Observe("a") {
		t.Fatalf("second observe must report seen")
	}
	w.Add("c") // the observe promoted a, so b is the LRU entry
	if w.Contains("b") {
		t.Fatalf("b should have been evicted")
	}
	if !w.Contains("a") {
		t.Fatalf("a should survive")
	}
}
