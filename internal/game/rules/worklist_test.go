package rules

import "testing"

func TestWorkListPushPop(t *testing.T) {
	wl := NewWorkList[string]()

	wl.Push("first")
	wl.Push("second", "third")

	item, ok := wl.Pop()
	if !ok {
		t.Fatalf("expected item on non-empty list")
	}
	if item != "second" {
		t.Fatalf("expected batch head second, got %s", item)
	}

	item, _ = wl.Pop()
	if item != "third" {
		t.Fatalf("expected third, got %s", item)
	}

	item, _ = wl.Pop()
	if item != "first" {
		t.Fatalf("expected first, got %s", item)
	}

	if _, ok := wl.Pop(); ok {
		t.Fatalf("expected pop on empty list to fail")
	}
}

func TestWorkListDrain(t *testing.T) {
	wl := NewWorkList[int]()
	wl.Push(1, 2, 3)

	if n := wl.Drain(); n != 3 {
		t.Fatalf("expected 3 drained items, got %d", n)
	}
	if _, ok := wl.Pop(); ok {
		t.Fatalf("expected empty list after drain")
	}
}
