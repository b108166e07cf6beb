package mux

import (
	"errors"
	"fmt"
)

// Kind classifies an *Error for callers that want to branch on the failure
// mode instead of comparing against a specific sentinel.
type Kind int

const (
	// KindInvalidCmd is returned when the decoder sees a cmd byte outside
	// {SYN,ACK,FIN,PUSH}.
	KindInvalidCmd Kind = iota
	// KindInvalidVersion is returned when the decoder sees a version byte
	// other than 0x00.
	KindInvalidVersion
	// KindPayloadTooLong is returned when a PUSH payload exceeds 65535 bytes.
	KindPayloadTooLong
	// KindMessageSendFail is returned when the outbound message channel is
	// closed, or its completion sender is dropped without a reply.
	KindMessageSendFail
	// KindMessageSendTooLong is returned when a message is not acknowledged
	// by the egress writer within the five-second bound.
	KindMessageSendTooLong
	// KindConnectionClosed is returned from Open/Accept once the session has
	// been closed.
	KindConnectionClosed
	// KindBrokenPipe is returned from a Stream's Read or Write once the
	// corresponding permission bit (R or W) has been revoked, whether by a
	// local Close/CloseWrite or by observing the peer's FIN.
	KindBrokenPipe
	// KindStreamLimitExceeded is returned when the id allocator is
	// exhausted.
	KindStreamLimitExceeded
	// KindDuplicateStream is returned when add_stream targets an id already
	// present in the manager.
	KindDuplicateStream
	// KindStreamNotFound is returned when a dispatch or soft-remove targets
	// an unknown id.
	KindStreamNotFound
	// KindSendFrameFailed is returned when an inbound SYN cannot be handed
	// to Accept because the accept queue is full.
	KindSendFrameFailed
	// KindInternal marks an invariant violation — it always indicates a bug.
	KindInternal
	// KindIO wraps a transport-level I/O failure.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCmd:
		return "invalid cmd"
	case KindInvalidVersion:
		return "invalid version"
	case KindPayloadTooLong:
		return "payload too long"
	case KindMessageSendFail:
		return "message send failed"
	case KindMessageSendTooLong:
		return "message send timed out"
	case KindConnectionClosed:
		return "connection closed"
	case KindBrokenPipe:
		return "broken pipe"
	case KindStreamLimitExceeded:
		return "stream limit exceeded"
	case KindDuplicateStream:
		return "duplicate stream"
	case KindStreamNotFound:
		return "stream not found"
	case KindSendFrameFailed:
		return "send frame failed"
	case KindInternal:
		return "internal"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the error type the mux package uses for its own failures. It
// always carries a Kind so callers can type-switch without string matching.
// Stream.Read's io.EOF and the transport's own error from Multiplexer.Close
// are passed through as they are, not wrapped in an Error.
type Error struct {
	Kind      Kind
	StreamID  uint16
	HasStream bool
	Detail    string
	Cause     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.HasStream {
		msg = fmt.Sprintf("%s (stream %d)", msg, e.StreamID)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func newStreamErr(kind Kind, id uint16, detail string) *Error {
	return &Error{Kind: kind, StreamID: id, HasStream: true, Detail: detail}
}

func wrapIO(err error) *Error {
	return &Error{Kind: KindIO, Cause: err}
}

// KindOf reports the Kind of err if it (or something it wraps) is a *Error,
// and false otherwise.
func KindOf(err error) (Kind, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind, true
	}
	return 0, false
}

// Sentinel errors for the cases that never carry extra context, mirroring
// the package-level Err* vars smux exposes for its own protocol errors.
var (
	ErrConnectionClosed = &Error{Kind: KindConnectionClosed}
)
