package mux

import "sync"

// inboundQueueDepth bounds the per-stream inbound frame channel. Once full,
// the ingress dispatcher blocks delivering further PUSH frames for that
// stream, which stalls the transport reader and propagates backpressure to
// whichever peer keeps sending.
const inboundQueueDepth = 1024

// streamHandle is the manager's bookkeeping for one live stream id. Streams
// never touch this directly — they only hold the channel endpoints passed
// to them at construction, so the manager and the stream never own each
// other, only channel endpoints cross the boundary.
type streamHandle struct {
	frameTx chan decodedFrame

	finOnce sync.Once
	finCh   chan struct{}

	ackOnce sync.Once
	ackCh   chan struct{} // nil when this handle was not locally opened
	hasAck  bool

	// awaitingFin is set once the local endpoint has already sent its own
	// FIN and lost both R and W: it is now only waiting for the peer's
	// FIN or ACK on this id to finish teardown.
	awaitingFin bool
}

// streamManager is the registry of live per-stream handles. It dispatches
// inbound frames by command to the correct handle, or to the accept queue
// for a fresh SYN.
type streamManager struct {
	mu      sync.Mutex
	streams map[uint16]*streamHandle

	createTx chan uint16 // new stream ids, consumed exclusively by accept()
	idFreeTx chan uint16 // ids to recycle, consumed by the close handler
}

func newStreamManager(createTx chan uint16, idFreeTx chan uint16) *streamManager {
	return &streamManager{
		streams:  make(map[uint16]*streamHandle),
		createTx: createTx,
		idFreeTx: idFreeTx,
	}
}

// addStream registers a freshly allocated or accepted stream id.
func (m *streamManager) addStream(id uint16, frameTx chan decodedFrame, finCh chan struct{}, ackCh chan struct{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.streams[id]; exists {
		return newStreamErr(KindDuplicateStream, id, "")
	}

	m.streams[id] = &streamHandle{
		frameTx: frameTx,
		finCh:   finCh,
		ackCh:   ackCh,
		hasAck:  ackCh != nil,
	}
	return nil
}

// softRemoveStream marks id's handle as awaiting the peer's terminal
// FIN/ACK, without evicting it from the map — the handle still needs to
// route any frame that arrives before the peer finishes closing its side.
func (m *streamManager) softRemoveStream(id uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.streams[id]
	if !ok {
		return newStreamErr(KindStreamNotFound, id, "")
	}
	h.awaitingFin = true
	return nil
}

// evict removes id from the map and requests the allocator recycle it. The
// allocator silently ignores ids it did not itself mint, so this is safe to
// call for a peer-originated id too.
func (m *streamManager) evict(id uint16) {
	m.mu.Lock()
	_, ok := m.streams[id]
	if ok {
		delete(m.streams, id)
	}
	m.mu.Unlock()

	if ok {
		select {
		case m.idFreeTx <- id:
		default:
		}
	}
}

// dispatchFrame routes an inbound frame to the correct handle, or (for SYN)
// onto the accept queue. Dispatch errors are expected to be swallowed by the
// caller — a frame addressed to a vanished stream is a benign race with
// teardown, not a protocol violation.
func (m *streamManager) dispatchFrame(f decodedFrame) error {
	switch f.Cmd {
	case CmdSYN:
		select {
		case m.createTx <- f.StreamID:
			return nil
		default:
			return newStreamErr(KindSendFrameFailed, f.StreamID, "accept queue full")
		}

	case CmdACK:
		m.mu.Lock()
		h, ok := m.streams[f.StreamID]
		if !ok {
			m.mu.Unlock()
			return newStreamErr(KindStreamNotFound, f.StreamID, "")
		}
		awaitingFin := h.awaitingFin
		m.mu.Unlock()

		if awaitingFin {
			// The peer chose to ACK our FIN instead of echoing it: that
			// still completes our locally-initiated close.
			m.evict(f.StreamID)
			return nil
		}

		if !h.hasAck {
			return newStreamErr(KindInternal, f.StreamID, "unexpected ack")
		}
		h.ackOnce.Do(func() { close(h.ackCh) })
		return nil

	case CmdFIN:
		m.mu.Lock()
		h, ok := m.streams[f.StreamID]
		if !ok {
			m.mu.Unlock()
			return newStreamErr(KindStreamNotFound, f.StreamID, "")
		}
		awaitingFin := h.awaitingFin
		m.mu.Unlock()

		// The sender's write side for this id is done; no more inbound
		// frames will ever arrive for it, so it is always safe to stop
		// routing for it here, regardless of whether we'd already
		// initiated our own close.
		m.evict(f.StreamID)

		if !awaitingFin {
			// We hadn't already closed our side: wake the reader so it
			// observes EOF once any buffered data drains.
			h.finOnce.Do(func() { close(h.finCh) })
		}
		return nil

	case CmdPUSH:
		m.mu.Lock()
		h, ok := m.streams[f.StreamID]
		m.mu.Unlock()
		if !ok {
			return newStreamErr(KindStreamNotFound, f.StreamID, "")
		}

		// Send after releasing the map lock: a stalled reader on this
		// stream must stall only the ingress loop, not lookups for every
		// other stream sharing the manager.
		h.frameTx <- f
		return nil

	default:
		return newErr(KindInternal, "unreachable cmd")
	}
}
