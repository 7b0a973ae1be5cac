package notify

import "testing"

func TestRegisterLookupUnregister(t *testing.T) {
	h := NewHub()
	if _, ok := h.Lookup("orders"); ok {
		t.Fatalf("lookup before register should miss")
	}

	ep := h.Register("orders", func([]byte) {})
	got, ok := h.Lookup("orders")
	if !ok || got != ep {
		t.Fatalf("lookup should return the registered endpoint")
	}

	h.Unregister("orders")
	if _, ok := h.Lookup("orders"); ok {
		t.Fatalf("lookup after unregister should miss")
	}
	// unregistering again is a no-op
	h.Unregister("orders")
}

func TestDeliverReachesLiveHandler(t *testing.T) {
	h := NewHub()
	var got []byte
	ep := h.Register("orders", func(p []byte) { got = append([]byte(nil), p...) })

	h.Deliver(ep, []byte("payload"))
	if string(got) != "payload" {
		t.Fatalf("handler did not receive payload: %q", got)
	}
}

func TestRebindReplacesEndpoint(t *testing.T) {
	h := NewHub()
	var first, second int
	old := h.Register("orders", func([]byte) { first++ })
	h.Register("orders", func([]byte) { second++ })

	// stale endpoint drops silently
	h.Deliver(old, []byte("x"))
	if first != 0 {
		t.Fatalf("stale endpoint should not receive deliveries")
	}

	cur, ok := h.Lookup("orders")
	if !ok {
		t.Fatalf("rebound endpoint missing")
	}
	h.Deliver(cur, []byte("y"))
	if second != 1 {
		t.Fatalf("rebound endpoint should receive deliveries")
	}
}

func TestDeliverAfterUnregisterDrops(t *testing.T) {
	h := NewHub()
	calls := 0
	ep := h.Register("orders", func([]byte) { calls++ })
	h.Unregister("orders")
	h.Deliver(ep, []byte("x"))
	if calls != 0 {
		t.Fatalf("unregistered endpoint should drop deliveries")
	}
	h.Deliver(nil, []byte("x")) // nil endpoint is a no-op
}
