package mux

import (
	"time"
)

// sendTimeout bounds how long a caller will wait for the egress writer to
// hand a frame to the transport before giving up.
const sendTimeout = 5 * time.Second

// message wraps an outbound frame together with a completion channel the
// egress writer uses to report how many bytes were written, or why it
// failed.
type message struct {
	frame  Frame
	doneCh chan result
}

type result struct {
	n   int
	err error
}

func newMessage(f Frame) (message, chan result) {
	done := make(chan result, 1)
	return message{frame: f, doneCh: done}, done
}

// sendFrame pushes frame onto tx and waits up to sendTimeout for the egress
// writer to report completion.
func sendFrame(tx chan<- message, frame Frame) (int, error) {
	msg, done := newMessage(frame)

	select {
	case tx <- msg:
	default:
		// tx is a large buffered channel; a full buffer means the egress
		// writer has stalled or the session has torn down. Try once more
		// with a blocking send bounded by the same timeout so a merely-busy
		// writer still succeeds.
		select {
		case tx <- msg:
		case <-time.After(sendTimeout):
			return 0, newErr(KindMessageSendTooLong, "")
		}
	}

	select {
	case res, ok := <-done:
		if !ok {
			return 0, newErr(KindMessageSendFail, "")
		}
		return res.n, res.err
	case <-time.After(sendTimeout):
		return 0, newErr(KindMessageSendTooLong, "")
	}
}

func sendSYN(tx chan<- message, id uint16) (int, error) {
	return sendFrame(tx, newSYN(id))
}

func sendACK(tx chan<- message, id uint16) (int, error) {
	return sendFrame(tx, newACK(id))
}

// sendFIN is fire-and-forget: it never waits on the completion channel, so
// it is safe to call from a destructor path (Stream's Close/CloseWrite)
// where blocking on a reply would be unacceptable. The frame itself must
// still reach the egress writer, though — silently dropping a FIN would
// stall the peer's teardown forever with no recovery path — so a full
// outbound channel falls back to the same bounded blocking send sendFrame
// uses, instead of giving up immediately.
func sendFIN(tx chan<- message, id uint16) {
	msg, _ := newMessage(newFIN(id))
	select {
	case tx <- msg:
		return
	default:
	}
	select {
	case tx <- msg:
	case <-time.After(sendTimeout):
	}
}

func sendPUSH(tx chan<- message, id uint16, payload []byte) (int, error) {
	return sendFrame(tx, newPUSH(id, payload))
}
