// Package mux implements a lightweight stream multiplexer over a single
// reliable, ordered, duplex byte transport (any net.Conn). It multiplexes an
// arbitrary number of logical byte streams, each addressed by a 16-bit id,
// onto that one transport using a four-command SYN/ACK/FIN/PUSH framing.
package mux

import (
	"net"
	"sync"
)

// Role selects which half of the stream-id space a Multiplexer mints ids
// from: client ids are odd, server ids are even. Two multiplexers sharing a
// transport must run opposite roles or their ids will collide.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

const (
	// outboundQueueDepth approximates an unbounded outbound queue: Go has
	// no unbounded channel, so this is sized generously enough that a
	// session under normal load never observes it as a bound.
	outboundQueueDepth = 4096
	acceptQueueDepth    = 4096
	closeQueueDepth     = 1024
)

// Multiplexer is one endpoint of a multiplexed session. Construct one with
// Client or Server per transport connection; the two ends of the same
// connection must use opposite roles.
type Multiplexer struct {
	conn net.Conn
	role Role

	alloc *streamIDAllocator
	mgr   *streamManager

	msgTx      chan message
	createTx   chan uint16
	closeReqTx chan uint16
	idFreeTx   chan uint16

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// Client builds a Multiplexer that allocates odd stream ids.
func Client(conn net.Conn) *Multiplexer {
	return newMultiplexer(conn, RoleClient)
}

// Server builds a Multiplexer that allocates even stream ids.
func Server(conn net.Conn) *Multiplexer {
	return newMultiplexer(conn, RoleServer)
}

func newMultiplexer(conn net.Conn, role Role) *Multiplexer {
	startID := oddStreamIDStart
	if role == RoleServer {
		startID = evenStreamIDStart
	}

	m := &Multiplexer{
		conn:       conn,
		role:       role,
		alloc:      newStreamIDAllocator(startID),
		msgTx:      make(chan message, outboundQueueDepth),
		createTx:   make(chan uint16, acceptQueueDepth),
		closeReqTx: make(chan uint16, closeQueueDepth),
		idFreeTx:   make(chan uint16, closeQueueDepth),
		shutdownCh: make(chan struct{}),
	}
	m.mgr = newStreamManager(m.createTx, m.idFreeTx)

	onFatal := func() { _ = m.Close() }

	go egressLoop(conn, m.msgTx, m.shutdownCh, onFatal)
	go ingressLoop(conn, m.mgr, m.shutdownCh, onFatal)
	go closeHandlerLoop(m.mgr, m.alloc, m.closeReqTx, m.idFreeTx, m.shutdownCh)

	return m
}

// Open allocates a fresh stream id from this endpoint's half of the id
// space, sends SYN, and blocks until the peer's ACK arrives or the session
// shuts down.
func (m *Multiplexer) Open() (*Stream, error) {
	select {
	case <-m.shutdownCh:
		return nil, ErrConnectionClosed
	default:
	}

	id, err := m.alloc.alloc()
	if err != nil {
		return nil, err
	}

	frameTx := make(chan decodedFrame, inboundQueueDepth)
	finCh := make(chan struct{})
	ackCh := make(chan struct{})

	if err := m.mgr.addStream(id, frameTx, finCh, ackCh); err != nil {
		m.alloc.free(id)
		return nil, err
	}

	if _, err := sendSYN(m.msgTx, id); err != nil {
		m.mgr.evict(id)
		return nil, err
	}

	select {
	case <-ackCh:
		return newStream(id, m.msgTx, frameTx, finCh, m.closeReqTx, m.conn.RemoteAddr()), nil
	case <-m.shutdownCh:
		m.mgr.evict(id)
		return nil, ErrConnectionClosed
	}
}

// Accept waits for the peer's next SYN, sends ACK, and returns the new
// stream. It blocks until a peer opens a stream or the session shuts down.
func (m *Multiplexer) Accept() (*Stream, error) {
	select {
	case id, ok := <-m.createTx:
		if !ok {
			return nil, ErrConnectionClosed
		}

		frameTx := make(chan decodedFrame, inboundQueueDepth)
		finCh := make(chan struct{})

		if err := m.mgr.addStream(id, frameTx, finCh, nil); err != nil {
			return nil, err
		}

		if _, err := sendACK(m.msgTx, id); err != nil {
			m.mgr.evict(id)
			return nil, err
		}

		return newStream(id, m.msgTx, frameTx, finCh, m.closeReqTx, m.conn.RemoteAddr()), nil

	case <-m.shutdownCh:
		return nil, ErrConnectionClosed
	}
}

// NumStreams reports how many streams are currently registered with this
// session's manager.
func (m *Multiplexer) NumStreams() int {
	m.mgr.mu.Lock()
	defer m.mgr.mu.Unlock()
	return len(m.mgr.streams)
}

// IsClosed reports whether this session has shut down.
func (m *Multiplexer) IsClosed() bool {
	select {
	case <-m.shutdownCh:
		return true
	default:
		return false
	}
}

// RemoteAddr returns the address of the peer this session's transport is
// connected to.
func (m *Multiplexer) RemoteAddr() net.Addr {
	return m.conn.RemoteAddr()
}

// Close shuts the session down: it stops the background dispatchers and
// closes the underlying transport. Close is idempotent and safe to call
// more than once, including concurrently with Open/Accept.
func (m *Multiplexer) Close() error {
	var closeErr error
	m.shutdownOnce.Do(func() {
		close(m.shutdownCh)
		closeErr = m.conn.Close()
	})
	return closeErr
}
