package mux

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// Stream is one multiplexed byte-stream endpoint. It satisfies
// io.ReadWriteCloser. A Stream is safe for concurrent use by one reader and
// one writer, matching the contract of a net.Conn half.
type Stream struct {
	id uint16

	msgTx      chan<- message    // outbound frames, shared across the session
	frameTx    chan decodedFrame // inbound PUSH frames for this id only
	finCh      chan struct{}     // closed by the manager on peer FIN
	closeTx    chan<- uint16     // soft-remove requests, shared across the session
	remoteAddr net.Addr          // the session transport's peer address

	rOpen atomic.Bool
	wOpen atomic.Bool

	rmu        sync.Mutex
	readBuf    []byte
	readPooled *[]byte

	wmu     sync.Mutex
	pending chan result // previous in-flight write's completion, or nil

	closeReqOnce sync.Once
}

func newStream(id uint16, msgTx chan<- message, frameTx chan decodedFrame, finCh chan struct{}, closeTx chan<- uint16, remoteAddr net.Addr) *Stream {
	s := &Stream{
		id:         id,
		msgTx:      msgTx,
		frameTx:    frameTx,
		finCh:      finCh,
		closeTx:    closeTx,
		remoteAddr: remoteAddr,
	}
	s.rOpen.Store(true)
	s.wOpen.Store(true)
	return s
}

// StreamID returns the 16-bit id this stream was opened or accepted with.
func (s *Stream) StreamID() uint16 {
	return s.id
}

// ID returns the stream id as an int, satisfying the generic.Stream
// interface shared with other transport implementations.
func (s *Stream) ID() int {
	return int(s.id)
}

// RemoteAddr returns the address of the peer on the other end of the
// session this stream is multiplexed over.
func (s *Stream) RemoteAddr() net.Addr {
	return s.remoteAddr
}

func (s *Stream) setReadFrame(f decodedFrame) {
	s.readBuf = f.Frame.Payload
	s.readPooled = f.pooled
}

func (s *Stream) releaseReadBuf() {
	if s.readPooled != nil {
		defaultBufferPool.put(s.readPooled)
		s.readPooled = nil
	}
}

// Read blocks until data arrives, the peer's FIN closes this stream's read
// side, or the stream is locally closed. The call that observes the read
// side close (peer FIN with nothing left buffered) returns io.EOF exactly
// once; every Read after that, or any Read once R was already revoked
// locally (via Close), returns a broken-pipe error instead.
func (s *Stream) Read(p []byte) (int, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	if !s.rOpen.Load() {
		return 0, newStreamErr(KindBrokenPipe, s.id, "read side closed")
	}

	for len(s.readBuf) == 0 {
		// Prefer already-queued frames over observing the peer's FIN, so a
		// stream drains everything sent before the peer closed its side.
		select {
		case f, ok := <-s.frameTx:
			if !ok {
				return 0, io.EOF
			}
			s.setReadFrame(f)
			continue
		default:
		}

		select {
		case f, ok := <-s.frameTx:
			if !ok {
				return 0, io.EOF
			}
			s.setReadFrame(f)
		case <-s.finCh:
			select {
			case f, ok := <-s.frameTx:
				if ok {
					s.setReadFrame(f)
					continue
				}
			default:
			}
			s.revokeRead()
			return 0, io.EOF
		}
	}

	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	if len(s.readBuf) == 0 {
		s.releaseReadBuf()
	}
	return n, nil
}

// collectPending waits on (or, if block is false, polls) the previous
// in-flight write's completion and surfaces its error. This is how a write
// failure becomes visible one call after it actually happened.
func (s *Stream) collectPending(block bool) error {
	if s.pending == nil {
		return nil
	}
	if block {
		res := <-s.pending
		s.pending = nil
		return res.err
	}
	select {
	case res := <-s.pending:
		s.pending = nil
		return res.err
	default:
		return nil
	}
}

// Write copies p, hands it to the egress path asynchronously, and returns
// len(p) once it is accepted — not once it is actually on the wire. It first
// waits for the previous Write's send to finish, so at most one send per
// stream is in flight and PUSH frames reach the wire in call order. A
// transport-level failure surfaces on the next Write or Flush call, never
// this one.
func (s *Stream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if !s.wOpen.Load() {
		return 0, newStreamErr(KindBrokenPipe, s.id, "write side closed")
	}

	if err := s.collectPending(true); err != nil {
		return 0, err
	}

	payload := make([]byte, len(p))
	copy(payload, p)

	done := make(chan result, 1)
	go func() {
		n, err := sendPUSH(s.msgTx, s.id, payload)
		done <- result{n: n, err: err}
	}()
	s.pending = done

	return len(p), nil
}

// Flush waits for the most recently accepted Write to actually land on the
// wire, surfacing its error if it failed. It is the only synchronization
// point between the optimistic return of Write and the transport.
func (s *Stream) Flush() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.collectPending(true)
}

func (s *Stream) revokeWrite() {
	if s.wOpen.CompareAndSwap(true, false) {
		sendFIN(s.msgTx, s.id)
		s.maybeRequestClose()
	}
}

func (s *Stream) revokeRead() {
	if s.rOpen.CompareAndSwap(true, false) {
		s.maybeRequestClose()
	}
}

func (s *Stream) maybeRequestClose() {
	if s.rOpen.Load() || s.wOpen.Load() {
		return
	}
	s.closeReqOnce.Do(func() {
		select {
		case s.closeTx <- s.id:
		default:
		}
	})
}

// CloseWrite half-closes the stream for writing: it revokes W and emits FIN,
// leaving R open so the caller can still drain whatever the peer sends back.
// Mirrors net.TCPConn.CloseWrite. Idempotent, and safe to call more than
// once or concurrently with Write/Flush.
func (s *Stream) CloseWrite() error {
	s.revokeWrite()
	return nil
}

// Close unconditionally revokes both the read and write permission bits,
// emitting FIN if the write side was still open, and requests the session
// recycle this stream's id once the peer's side of the handshake finishes.
// Unlike CloseWrite, Close also gives up the read side immediately: any
// data the peer already sent but this endpoint hasn't read yet is
// discarded. Close is idempotent.
func (s *Stream) Close() error {
	s.revokeWrite()
	s.revokeRead()
	return nil
}
