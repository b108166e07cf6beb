// Package generic declares the session/stream abstraction cmd/muxclient and
// cmd/muxserver program against, so neither depends on package mux's
// concrete types directly.
package generic

import (
	"io"
	"net"

	"github.com/xtaci/gomux/mux"
)

// Mux is a multiplexed session: it mints and accepts Streams over one
// underlying transport connection.
type Mux interface {
	Open() (Stream, error)
	Accept() (Stream, error)
	IsClosed() bool
	NumStreams() int
	RemoteAddr() net.Addr
	Close() error
}

// Stream is one multiplexed byte-stream endpoint.
type Stream interface {
	io.ReadWriteCloser
	ID() int
	RemoteAddr() net.Addr
}

// Wrap adapts a *mux.Multiplexer to Mux. It exists because Go's interface
// satisfaction is invariant in return types: mux.Multiplexer.Open returns
// the concrete *mux.Stream (so callers that don't need the abstraction get
// its full API), which this adapter narrows to the Stream interface.
func Wrap(m *mux.Multiplexer) Mux {
	return session{m}
}

type session struct{ m *mux.Multiplexer }

func (s session) Open() (Stream, error) {
	st, err := s.m.Open()
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s session) Accept() (Stream, error) {
	st, err := s.m.Accept()
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s session) IsClosed() bool       { return s.m.IsClosed() }
func (s session) NumStreams() int      { return s.m.NumStreams() }
func (s session) RemoteAddr() net.Addr { return s.m.RemoteAddr() }
func (s session) Close() error         { return s.m.Close() }
