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

package listener

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/Synkar/rosserial/internal/bridge"
	"github.com/Synkar/rosserial/internal/transport"
)

// RunTCP binds port, then loops accepting devices until shutdown
// closes. Each accepted socket gets its own goroutine running a
// Session, the way server/main.go's loop closure spawns go
// handleMux(...) per accepted KCP conversation. forkServer is accepted
// as a parameter for CLI compatibility but, per the redesign this
// bridge follows, never spawns an OS process; the caller is
// responsible for surfacing that to an operator, which cmd/rosserial-bridge
// does once at startup rather than on every RunTCP call.
func RunTCP(port int, cfg bridge.Config, deps Collaborators, forkServer bool, shutdown <-chan struct{}) error {
	addr := &net.TCPAddr{Port: port}
	lis, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on tcp/%d", port)
	}
	defer lis.Close()
	log.Printf("listener: tcp/%d ready (backlog is the platform default; Go's net package exposes no backlog knob)", port)

	for {
		select {
		case <-shutdown:
			return nil
		default:
		}

		if err := lis.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			return errors.Wrap(err, "setting accept deadline")
		}

		conn, err := lis.AcceptTCP()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return errors.Wrap(err, "accepting tcp connection")
		}

		log.Println("listener: accepted device from", conn.RemoteAddr())
		stream, err := transport.NewTCPStream(conn, defaultStreamIOTimeout)
		if err != nil {
			log.Printf("listener: configuring accepted connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}

		session := newSession(stream, deps, cfg)
		go func(remote fmt.Stringer) {
			runSession(session, shutdown)
			log.Println("listener: session for", remote, "ended")
		}(conn.RemoteAddr())
	}
}
