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
	"net"
	"time"

	"github.com/pkg/errors"
)

// maxDatagramPayload is the conservative IPv4 MTU payload §4.A mandates
// writes be chunked into.
const maxDatagramPayload = 508

// recvChunk bounds a single recvfrom call, per §4.A's "≤4 KiB".
const recvChunk = 4096

// UDPDatagram adapts a connectionless net.PacketConn to the byte-stream
// contract the framing layer expects: a one-datagram spill buffer
// absorbs the mismatch, and the first observed remote address pins the
// client's IP for the lifetime of the Session (a datagram from that IP
// on a new port moves the pin to that port).
type UDPDatagram struct {
	conn    net.PacketConn
	timeout time.Duration
	spill   []byte

	pinned     net.Addr
	pinnedIP   string
	pinnedPort string
}

// NewUDPDatagram wraps conn. The first datagram read through ReadExact
// pins the remote address; callers that already know the peer (e.g.
// the Listener, after its detection peek) may pre-pin via Pin.
func NewUDPDatagram(conn net.PacketConn, ioTimeout time.Duration) *UDPDatagram {
	return &UDPDatagram{conn: conn, timeout: ioTimeout}
}

// Pin fixes the remote address before any data has been read, used by
// the UDP Listener once it has detected the first datagram's sender.
func (u *UDPDatagram) Pin(addr net.Addr) {
	u.pinned = addr
	u.pinnedIP, u.pinnedPort = splitHostPort(addr)
}

// Seed injects bytes already consumed off the wire (the Listener's
// detection read) so ReadExact sees them before anything further
// arrives from the socket.
func (u *UDPDatagram) Seed(b []byte) {
	u.spill = append(u.spill, b...)
}

func splitHostPort(addr net.Addr) (host, port string) {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), ""
	}
	return host, port
}

// recvOne reads one datagram, applying the address-pinning rule: the
// first datagram pins the client, a same-IP/new-port datagram rebinds
// the pin, and a different-IP datagram is discarded (ok=false, no
// error). Accepted bytes are appended to the spill buffer.
func (u *UDPDatagram) recvOne(deadline time.Time) (ok bool, err error) {
	if err := u.conn.SetReadDeadline(deadline); err != nil {
		return false, errors.Wrap(err, "setting read deadline")
	}

	scratch := make([]byte, recvChunk)
	m, addr, err := u.conn.ReadFrom(scratch)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, ErrTransportTimeout
		}
		return false, errors.Wrap(ErrTransportClosed, err.Error())
	}

	host, _ := splitHostPort(addr)
	switch {
	case u.pinned == nil:
		u.Pin(addr)
	case host != u.pinnedIP:
		return false, nil // different IP: discard silently, per §4.A
	case portOf(addr) != u.pinnedPort:
		u.Pin(addr) // same IP, new port: rebind
	}

	u.spill = append(u.spill, scratch[:m]...)
	return true, nil
}

func (u *UDPDatagram) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	read := copy(buf, u.spill)
	u.spill = u.spill[read:]

	deadline := time.Now().Add(u.timeout)
	for read < n {
		if len(u.spill) > 0 {
			m := copy(buf[read:], u.spill)
			u.spill = u.spill[m:]
			read += m
			continue
		}
		if time.Now().After(deadline) {
			return nil, errors.Wrapf(ErrTransportTimeout, "read %d/%d bytes", read, n)
		}
		if _, err := u.recvOne(deadline); err != nil {
			if err == ErrTransportTimeout {
				return nil, errors.Wrapf(ErrTransportTimeout, "read %d/%d bytes", read, n)
			}
			return nil, err
		}
	}
	return buf, nil
}

func portOf(addr net.Addr) string {
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}
	return port
}

// WriteAll chunks b into ≤maxDatagramPayload datagrams, all addressed
// to the pinned client.
func (u *UDPDatagram) WriteAll(b []byte) error {
	if u.pinned == nil {
		return errors.New("transport: udp write before any client is pinned")
	}
	if err := u.conn.SetWriteDeadline(time.Now().Add(u.timeout)); err != nil {
		return errors.Wrap(err, "setting write deadline")
	}

	for offset := 0; offset < len(b); offset += maxDatagramPayload {
		end := offset + maxDatagramPayload
		if end > len(b) {
			end = len(b)
		}
		if _, err := u.conn.WriteTo(b[offset:end], u.pinned); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return errors.Wrap(ErrTransportTimeout, "write timed out")
			}
			return errors.Wrap(err, "writing datagram")
		}
	}
	return nil
}

// BytesAvailable probes for one pending datagram with a peekWait-deadline
// read: on success the datagram (already a complete unit under UDP)
// joins the spill buffer; a timeout just means nothing is waiting yet.
func (u *UDPDatagram) BytesAvailable() (int, error) {
	if len(u.spill) > 0 {
		return len(u.spill), nil
	}
	if _, err := u.recvOne(time.Now().Add(peekWait)); err != nil && err != ErrTransportTimeout {
		return len(u.spill), err
	}
	return len(u.spill), nil
}

// FlushInput discards the spill buffer. The kernel's datagram queue
// itself is left alone: dropping whole datagrams would desynchronize
// length framing worse than leaving them queued.
func (u *UDPDatagram) FlushInput() error {
	u.spill = nil
	return nil
}

func (u *UDPDatagram) Close() error { return u.conn.Close() }
