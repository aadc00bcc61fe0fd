// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"net"
	"time"

	"code.hybscloud.com/sbmp"
)

// connTx exposes a net.Conn as a sbmp.TxFunc. It writes each byte straight
// through: sbmp's engine calls TxFunc synchronously, including from inside
// a Receive call when a handshake reply fires, so there is no single point
// at which a caller could reliably flush a buffered writer instead.
type connTx struct {
	conn net.Conn
	one  [1]byte
}

func newConnTx(conn net.Conn) *connTx {
	return &connTx{conn: conn}
}

func (c *connTx) send(b byte) error {
	c.one[0] = b
	_, err := c.conn.Write(c.one[:])
	return err
}

// pumpReceive reads from conn until a read fails (e.g. it closes), feeding every
// byte to ep.Receive. It runs on its own goroutine per connection: sbmp's
// engine expects a single reader driving Receive for a given Endpoint.
func pumpReceive(conn net.Conn, ep *sbmp.Endpoint, logger sbmp.Logger) {
	r := bufio.NewReader(conn)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			ep.Receive(buf[i])
		}
		if err != nil {
			logger.Infof("sbmpd: connection from %s closed: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

// readUntil drives ep.Receive from conn on the calling goroutine until done
// reports true or timeout elapses. Used instead of pumpReceive whenever a
// caller needs to observe ep's state (e.g. handshake status) afterwards:
// running the reader and the observer on the same goroutine keeps every
// touch of ep single-threaded, matching the engine's synchronous model.
func readUntil(conn net.Conn, ep *sbmp.Endpoint, timeout time.Duration, done func() bool) error {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 256)
	for !done() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if err := conn.SetReadDeadline(time.Now().Add(minDuration(remaining, 50*time.Millisecond))); err != nil {
			return err
		}
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			ep.Receive(buf[i])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
	}
	return nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
