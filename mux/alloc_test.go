package mux

import "testing"

func TestAllocatorParity(t *testing.T) {
	client := newStreamIDAllocator(oddStreamIDStart)
	for i := 0; i < 5; i++ {
		id, err := client.alloc()
		if err != nil {
			t.Fatalf("alloc: %v", err)
		}
		if id%2 != 1 {
			t.Fatalf("client allocator minted even id %d", id)
		}
	}

	server := newStreamIDAllocator(evenStreamIDStart)
	for i := 0; i < 5; i++ {
		id, err := server.alloc()
		if err != nil {
			t.Fatalf("alloc: %v", err)
		}
		if id%2 != 0 {
			t.Fatalf("server allocator minted odd id %d", id)
		}
	}
}

func TestAllocatorFreeListFIFO(t *testing.T) {
	a := newStreamIDAllocator(oddStreamIDStart)
	first, _ := a.alloc()
	second, _ := a.alloc()

	a.free(first)
	a.free(second)

	got, err := a.alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if got != first {
		t.Fatalf("expected free list FIFO to return %d first, got %d", first, got)
	}

	got2, err := a.alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if got2 != second {
		t.Fatalf("expected free list FIFO to return %d second, got %d", second, got2)
	}
}

func TestAllocatorIgnoresForeignParityOnFree(t *testing.T) {
	a := newStreamIDAllocator(oddStreamIDStart)
	a.free(2) // even id, not ours to recycle

	a.mu.Lock()
	n := len(a.freeList)
	a.mu.Unlock()
	if n != 0 {
		t.Fatalf("allocator accepted a foreign-parity id into its free list")
	}
}

func TestAllocatorExhaustion(t *testing.T) {
	a := newStreamIDAllocator(oddStreamIDStart)
	a.counter.Store(65534)

	if _, err := a.alloc(); KindOf1(err) != KindStreamLimitExceeded {
		t.Fatalf("expected KindStreamLimitExceeded at boundary, got %v", err)
	}
}

func TestAllocatorBoundaryLastValidID(t *testing.T) {
	a := newStreamIDAllocator(oddStreamIDStart)
	a.counter.Store(65533)

	id, err := a.alloc()
	if err != nil {
		t.Fatalf("alloc at boundary: %v", err)
	}
	if id != 65533 {
		t.Fatalf("expected id 65533, got %d", id)
	}

	if _, err := a.alloc(); KindOf1(err) != KindStreamLimitExceeded {
		t.Fatalf("expected exhaustion on the next id, got %v", err)
	}
}
