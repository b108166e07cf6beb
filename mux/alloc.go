package mux

import (
	"sync"
	"sync/atomic"
)

const (
	// oddStreamIDStart is the first id a client-mode multiplexer hands out.
	oddStreamIDStart uint16 = 1
	// evenStreamIDStart is the first id a server-mode multiplexer hands out.
	evenStreamIDStart uint16 = 2
)

// streamIDAllocator hands out 16-bit stream ids partitioned by role: every
// id it returns satisfies id ≡ startingID (mod 2). Recycled ids are served
// FIFO ahead of minting a fresh one off the monotonic counter.
type streamIDAllocator struct {
	startingID uint16
	counter    atomic.Uint32 // holds the next id to mint, as a uint32 to use atomic ops

	mu       sync.Mutex
	freeList []uint16
}

func newStreamIDAllocator(startingID uint16) *streamIDAllocator {
	a := &streamIDAllocator{startingID: startingID}
	a.counter.Store(uint32(startingID))
	return a
}

// alloc prefers the free list (FIFO); otherwise it fetches-and-adds 2 on the
// counter. It fails with KindStreamLimitExceeded when the next step would
// exceed u16::MAX - 1.
func (a *streamIDAllocator) alloc() (uint16, error) {
	a.mu.Lock()
	if len(a.freeList) > 0 {
		id := a.freeList[0]
		a.freeList = a.freeList[1:]
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	for {
		cur := a.counter.Load()
		if cur > 65533 {
			return 0, newErr(KindStreamLimitExceeded, "")
		}
		if a.counter.CompareAndSwap(cur, cur+2) {
			return uint16(cur), nil
		}
	}
}

// free returns an id to the pool for reuse. Ids whose parity disagrees with
// startingID are peer-originated and are silently ignored — a multiplexer
// never recycles ids it did not mint itself.
func (a *streamIDAllocator) free(id uint16) {
	if id%2 != a.startingID%2 {
		return
	}
	a.mu.Lock()
	a.freeList = append(a.freeList, id)
	a.mu.Unlock()
}
