package helpers

import (
	"expvar"
	"net"
)

// StatConn counts bytes transferred over connection.
// Close, deadlines and addresses pass through to wrapped net.Conn.
type StatConn struct {
	net.Conn
	Recv *expvar.Int
	Sent *expvar.Int
}

var _ net.Conn = &StatConn{}

func NewStatConn(c net.Conn, recv, sent *expvar.Int) *StatConn {
	return &StatConn{Conn: c, Recv: recv, Sent: sent}
}

func (sc *StatConn) Read(p []byte) (n int, err error) {
	n, err = sc.Conn.Read(p)
	sc.Recv.Add(int64(n))
	return
}

func (sc *StatConn) Write(p []byte) (n int, err error) {
	n, err = sc.Conn.Write(p)
	sc.Sent.Add(int64(n))
	return
}
