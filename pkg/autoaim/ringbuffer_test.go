package autoaim

import "testing"

func TestRingBufferPushPopFIFO(t *testing.T) {
	rb := NewRingBuffer[int](3)
	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := rb.Pop()
		if !ok {
			t.Fatalf("expected item, got empty")
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}

	if _, ok := rb.Pop(); ok {
		t.Error("expected empty buffer after draining")
	}
}

func TestRingBufferDropsOldestOnOverflow(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	if got := rb.Size(); got != 3 {
		t.Fatalf("expected size 3, got %d", got)
	}

	for _, want := range []int{3, 4, 5} {
		got, ok := rb.Pop()
		if !ok || got != want {
			t.Errorf("expected %d, got %d (ok=%v)", want, got, ok)
		}
	}
}

func TestRingBufferCapacityFloor(t *testing.T) {
	rb := NewRingBuffer[int](0)
	if rb.Capacity() != 1 {
		t.Errorf("expected capacity to floor at 1, got %d", rb.Capacity())
	}
}

func TestRingBufferReset(t *testing.T) {
	rb := NewRingBuffer[int](2)
	rb.Push(1)
	rb.Push(2)
	rb.Reset()

	if rb.Size() != 0 {
		t.Errorf("expected empty buffer after reset, got size %d", rb.Size())
	}
	if _, ok := rb.Pop(); ok {
		t.Error("expected no items after reset")
	}
}
