// Package kcptransport provides the optional KCP-over-UDP transport: a
// net.Conn/net.Listener pair tuned with the same window/FEC/congestion
// knobs kcptun exposes, for deployments that want FEC and congestion
// control underneath the mux rather than relying on TCP's.
package kcptransport

import (
	"net"

	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/tcpraw"
)

// Tuning holds the subset of KCP parameters exposed on the CLI.
type Tuning struct {
	NoDelay, Interval, Resend, NoCongestion int
	MTU, SndWnd, RcvWnd                     int
	DataShard, ParityShard                  int
}

func apply(conn *kcp.UDPSession, t Tuning) {
	conn.SetStreamMode(true)
	conn.SetWriteDelay(false)
	conn.SetNoDelay(t.NoDelay, t.Interval, t.Resend, t.NoCongestion)
	conn.SetWindowSize(t.SndWnd, t.RcvWnd)
	conn.SetMtu(t.MTU)
}

// Dial opens a KCP session to addr.
func Dial(addr string, block kcp.BlockCrypt, t Tuning) (net.Conn, error) {
	conn, err := kcp.DialWithOptions(addr, block, t.DataShard, t.ParityShard)
	if err != nil {
		return nil, err
	}
	apply(conn, t)
	return conn, nil
}

// Listen opens a plain UDP KCP listener on addr.
func Listen(addr string, block kcp.BlockCrypt, t Tuning) (*kcp.Listener, error) {
	return kcp.ListenWithOptions(addr, block, t.DataShard, t.ParityShard)
}

// ListenTCPEmulated opens a KCP listener riding on raw TCP packets via
// tcpraw, for operators who need the session to look like a TCP flow on
// the wire while still getting KCP's FEC and congestion control.
func ListenTCPEmulated(addr string, block kcp.BlockCrypt, t Tuning) (*kcp.Listener, error) {
	pconn, err := tcpraw.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return kcp.ServeConn(block, t.DataShard, t.ParityShard, pconn)
}

// AcceptTuned accepts the next KCP session off lis and applies t.
func AcceptTuned(lis *kcp.Listener, t Tuning) (net.Conn, error) {
	conn, err := lis.AcceptKCP()
	if err != nil {
		return nil, err
	}
	apply(conn, t)
	return conn, nil
}
