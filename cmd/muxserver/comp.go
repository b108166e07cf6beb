package main

import (
	"net"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// snappyConn layers snappy compression onto conn in both directions.
// Embedding net.Conn promotes Close/LocalAddr/RemoteAddr/the deadline
// setters unchanged; only the byte path needs to go through snappy.
type snappyConn struct {
	net.Conn
	w *snappy.Writer
	r *snappy.Reader
}

func wrapSnappy(conn net.Conn) net.Conn {
	return &snappyConn{Conn: conn, w: snappy.NewBufferedWriter(conn), r: snappy.NewReader(conn)}
}

func (c *snappyConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// Write flushes every call: each Write handed down from mux's egress writer
// is exactly one encoded SYN/ACK/FIN/PUSH frame, so buffering across calls
// would stall a frame behind whatever the mux happens to send next.
func (c *snappyConn) Write(p []byte) (int, error) {
	if _, err := c.w.Write(p); err != nil {
		return 0, errors.WithStack(err)
	}
	if err := c.w.Flush(); err != nil {
		return 0, errors.WithStack(err)
	}
	return len(p), nil
}
