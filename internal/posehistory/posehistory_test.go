package posehistory

import "testing"

func TestPushTrimsToMax(t *testing.T) {
	h := New[int](3)
	for i := 0; i < 10; i++ {
		h.Push(i, i*10)
	}
	if h.Len() != 3 {
		t.Fatalf("expected len 3, got %d", h.Len())
	}
	if h.OldestTick() != 7 {
		t.Fatalf("expected oldest tick 7, got %d", h.OldestTick())
	}
}

func TestSampleAtOrBefore(t *testing.T) {
	h := New[string](5)
	h.Push(10, "a")
	h.Push(12, "b")
	h.Push(15, "c")

	if v, ok := h.SampleAtOrBefore(15); !ok || v != "c" {
		t.Fatalf("exact match: got %v,%v", v, ok)
	}
	if v, ok := h.SampleAtOrBefore(13); !ok || v != "b" {
		t.Fatalf("between samples: got %v,%v", v, ok)
	}
	if v, ok := h.SampleAtOrBefore(9); ok {
		t.Fatalf("before oldest should miss, got %v", v)
	}
	if v, ok := h.SampleAtOrBefore(1000); !ok || v != "c" {
		t.Fatalf("far future should return newest: got %v,%v", v, ok)
	}
}

func TestZeroMaxSamplesDropsPushes(t *testing.T) {
	h := New[int](0)
	h.Push(1, 99)
	if h.Len() != 0 {
		t.Fatalf("expected no samples retained, got %d", h.Len())
	}
}
