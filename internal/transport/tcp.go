// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package transport

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

// minRecvBuffer is the floor §4.A mandates for an accepted TCP stream.
const minRecvBuffer = 512 * 1024

// peekChunk bounds a single non-blocking BytesAvailable probe.
const peekChunk = 4096

// peekWait is the read deadline a BytesAvailable probe allows. It must
// be positive: a read whose deadline has already passed fails with a
// timeout without returning data that is already queued.
const peekWait = time.Millisecond

// TCPStream wraps one accepted net.Conn. net.Conn has no non-blocking
// peek, so BytesAvailable fakes one with a peekWait-deadline Read into a
// spill buffer that ReadExact drains first.
type TCPStream struct {
	conn    *net.TCPConn
	timeout time.Duration
	spill   []byte
}

// NewTCPStream wraps conn, raising its receive buffer to at least
// minRecvBuffer the way server/main.go raises kcp.Listener's socket
// buffer via SetReadBuffer.
func NewTCPStream(conn *net.TCPConn, ioTimeout time.Duration) (*TCPStream, error) {
	if err := conn.SetReadBuffer(minRecvBuffer); err != nil {
		return nil, errors.Wrap(err, "raising TCP receive buffer")
	}
	return &TCPStream{conn: conn, timeout: ioTimeout}, nil
}

func (t *TCPStream) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	read := copy(buf, t.spill)
	t.spill = t.spill[read:]

	for read < n {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			return nil, errors.Wrap(err, "setting read deadline")
		}
		m, err := t.conn.Read(buf[read:])
		read += m
		if err != nil {
			if err == io.EOF {
				return nil, errors.Wrap(ErrTransportClosed, "peer closed connection")
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, errors.Wrapf(ErrTransportTimeout, "read %d/%d bytes", read, n)
			}
			return nil, errors.Wrap(err, "reading from TCP stream")
		}
	}
	return buf, nil
}

func (t *TCPStream) WriteAll(b []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.timeout)); err != nil {
		return errors.Wrap(err, "setting write deadline")
	}
	written := 0
	for written < len(b) {
		m, err := t.conn.Write(b[written:])
		written += m
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return errors.Wrap(ErrTransportTimeout, "write timed out")
			}
			return errors.Wrap(err, "writing to TCP stream")
		}
	}
	return nil
}

// BytesAvailable simulates a non-blocking peek: it attempts a Read
// with a peekWait deadline and, if data arrived, appends it to the
// spill buffer ReadExact drains from first. A timeout is not an
// error here, just "nothing pending right now".
func (t *TCPStream) BytesAvailable() (int, error) {
	if len(t.spill) > 0 {
		return len(t.spill), nil
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(peekWait)); err != nil {
		return 0, errors.Wrap(err, "setting peek deadline")
	}
	defer t.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, peekChunk)
	m, err := t.conn.Read(buf)
	if m > 0 {
		t.spill = append(t.spill, buf[:m]...)
	}
	if err != nil {
		if err == io.EOF {
			return len(t.spill), errors.Wrap(ErrTransportClosed, "peer closed connection")
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return len(t.spill), nil
		}
		return len(t.spill), errors.Wrap(err, "peeking TCP stream")
	}
	return len(t.spill), nil
}

// FlushInput discards anything already peeked into the spill buffer;
// it cannot reach into the kernel's socket buffer on a reliable stream.
func (t *TCPStream) FlushInput() error {
	t.spill = nil
	return nil
}

func (t *TCPStream) Close() error { return t.conn.Close() }
