package mux

import (
	"bytes"
	"io"
)

// egressLoop owns the transport's write half. It is the only goroutine that
// ever calls conn.Write, which keeps frame writes from interleaving.
func egressLoop(w io.Writer, msgCh <-chan message, shutdown <-chan struct{}, onFatal func()) {
	var buf bytes.Buffer
	for {
		select {
		case <-shutdown:
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}

			buf.Reset()
			if err := encodeFrame(&buf, msg.frame); err != nil {
				msg.doneCh <- result{err: err}
				continue
			}

			if _, err := w.Write(buf.Bytes()); err != nil {
				msg.doneCh <- result{err: wrapIO(err)}
				onFatal()
				return
			}
			msg.doneCh <- result{n: len(msg.frame.Payload)}
		}
	}
}

// ingressReadSize is the chunk size read off the transport per Read call.
const ingressReadSize = 32 * 1024

// ingressLoop owns the transport's read half: it decodes frames and hands
// each to the manager for dispatch. Dispatch errors (frame addressed to a
// stream that already vanished) are expected and swallowed; only a
// malformed frame or a transport read error ends the loop.
func ingressLoop(r io.Reader, mgr *streamManager, shutdown <-chan struct{}, onFatal func()) {
	dec := &FrameDecoder{}
	buf := make([]byte, ingressReadSize)

	for {
		select {
		case <-shutdown:
			return
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			dec.feed(buf[:n])
			for {
				f, ok, decErr := dec.next()
				if decErr != nil {
					onFatal()
					return
				}
				if !ok {
					break
				}
				_ = mgr.dispatchFrame(f)
			}
		}
		if readErr != nil {
			onFatal()
			return
		}
	}
}

// closeHandlerLoop serializes the two ways a stream id gets retired: a
// Stream requesting soft-removal once it loses both read and write
// permission, and the manager requesting the allocator recycle an id once
// it evicts a handle.
func closeHandlerLoop(mgr *streamManager, alloc *streamIDAllocator, closeReqCh <-chan uint16, idFreeCh <-chan uint16, shutdown <-chan struct{}) {
	for {
		select {
		case id := <-closeReqCh:
			_ = mgr.softRemoveStream(id)
		case id := <-idFreeCh:
			alloc.free(id)
		case <-shutdown:
			return
		}
	}
}
