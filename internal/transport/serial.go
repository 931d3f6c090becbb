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

//go:build linux

package transport

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Serial wraps a tty opened at a configured baud rate. ReadExact blocks
// up to readTimeout per call via VTIME/VMIN; WriteAll is a plain
// sequence of writes to the fd.
type Serial struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// baudToUnix maps the handful of baud rates the bridge is expected to
// run at to the termios CBAUD constant golang.org/x/sys/unix exposes.
var baudToUnix = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// OpenSerial opens path at baud, configuring it for raw 8N1 I/O with a
// VTIME-based read deadline. Unknown baud rates are rejected rather
// than silently rounded to the nearest supported one.
func OpenSerial(path string, baud int) (*Serial, error) {
	rate, ok := baudToUnix[baud]
	if !ok {
		return nil, errors.Errorf("transport: unsupported baud rate %d", baud)
	}

	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "reading termios for %s", path)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | rate
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 10 // deciseconds; matches defaultReadTimeout's order of magnitude

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "configuring termios for %s", path)
	}

	return &Serial{f: f, path: path}, nil
}

// OpenSerialRetry retries OpenSerial indefinitely with a 1 s backoff,
// matching the teacher's waitConn/createConn retry-until-success
// pattern in client/main.go. alive is polled between attempts so a
// supervising process can abandon the wait.
func OpenSerialRetry(path string, baud int, alive func() bool) (*Serial, error) {
	for {
		if alive != nil && !alive() {
			return nil, errors.New("transport: serial open abandoned, supervisor no longer alive")
		}
		s, err := OpenSerial(path, baud)
		if err == nil {
			return s, nil
		}
		log.Println("re-opening serial port:", err)
		time.Sleep(time.Second)
	}
}

func (s *Serial) ReadExact(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := s.f.Read(buf[read:])
		if m > 0 {
			read += m
		}
		if err != nil {
			return nil, errors.Wrap(ErrTransportClosed, err.Error())
		}
		if m == 0 {
			return nil, errors.Wrapf(ErrTransportTimeout, "read %d/%d bytes from %s", read, n, s.path)
		}
	}
	return buf, nil
}

func (s *Serial) WriteAll(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for written < len(b) {
		m, err := s.f.Write(b[written:])
		if err != nil {
			return errors.Wrapf(err, "writing to %s", s.path)
		}
		written += m
	}
	return nil
}

// BytesAvailable reports the number of bytes the kernel tty driver has
// buffered, via TIOCINQ.
func (s *Serial) BytesAvailable() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := unix.IoctlGetInt(int(s.f.Fd()), unix.TIOCINQ)
	if err != nil {
		return 0, errors.Wrapf(err, "TIOCINQ on %s", s.path)
	}
	return n, nil
}

func (s *Serial) FlushInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return unix.IoctlTcflush(int(s.f.Fd()), unix.TCIFLUSH)
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
