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

// Package transport implements the three byte-oriented links a Session
// can be driven over: a serial tty, an accepted TCP stream, and a
// pinned UDP datagram flow. All three present the same uniform
// capability set so the framing layer above never branches on
// transport kind.
package transport

import "time"

// Transport is the uniform capability set the Session depends on. A
// single instance is used by exactly one reader and one writer
// concurrently; implementations only need to be safe for that
// one-reader/one-writer pattern, not for arbitrary concurrent access.
type Transport interface {
	// ReadExact reads exactly n bytes or fails. A short read past the
	// configured read timeout returns an error wrapping
	// ErrTransportTimeout; a closed link returns one wrapping
	// ErrTransportClosed.
	ReadExact(n int) ([]byte, error)

	// WriteAll writes b atomically: callers never observe a partial
	// write. Times out per ErrTransportTimeout on a busy device.
	WriteAll(b []byte) error

	// BytesAvailable is a best-effort, non-blocking hint; a zero
	// result does not prove the link is idle.
	BytesAvailable() (int, error)

	// FlushInput discards buffered input. A no-op is acceptable for
	// datagram transports.
	FlushInput() error

	// Close releases the underlying link. Idempotent.
	Close() error
}

// defaultReadTimeout is a 5 s read bound matching the listener's
// per-connection I/O timeout. The TCP and UDP transports take their
// timeout from the caller rather than from this constant.
const defaultReadTimeout = 5 * time.Second
