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

// Package listener implements the three accept flavors of §4.E: one
// Session per attached device, constructed from a shared set of
// external collaborators (middleware, type registry, parameter store,
// log sink, diagnostics sink, clock) the way server/main.go's loop
// closure captures one *Config and hands it to every handleMux call.
package listener

import (
	"time"

	"github.com/Synkar/rosserial/internal/bridge"
	"github.com/Synkar/rosserial/internal/middleware"
	"github.com/Synkar/rosserial/internal/rosmsg"
	"github.com/Synkar/rosserial/internal/transport"
)

// Collaborators bundles the external dependencies every Session needs,
// so each accept loop only has to thread one value instead of six.
type Collaborators struct {
	Middleware middleware.Middleware
	Types      rosmsg.TypeRegistry
	Params     middleware.ParameterStore
	LogSink    middleware.LogSink
	DiagSink   middleware.DiagnosticsSink
	Clock      middleware.Clock
}

func newSession(t transport.Transport, deps Collaborators, cfg bridge.Config) *bridge.Session {
	return bridge.NewSession(t, deps.Middleware, deps.Types, deps.Params, deps.LogSink, deps.DiagSink, deps.Clock, cfg)
}

// runSession blocks running s until it exits on its own (lost sync,
// transport error) or shutdown closes, in which case Session.Shutdown
// is requested so the stop-tx handshake of §5 still runs.
func runSession(s *bridge.Session, shutdown <-chan struct{}) {
	watcherDone := make(chan struct{})
	go func() {
		select {
		case <-shutdown:
			s.Shutdown()
		case <-watcherDone:
		}
	}()
	s.Run()
	close(watcherDone)
}

// acceptPollInterval bounds how long an accept/peek loop blocks between
// checks of the shutdown channel, matching the teacher's 1 s
// SetDeadline-driven accept loop in server/main.go's loop closure
// (there expressed via per-transport SetDeadline rather than a select).
const acceptPollInterval = time.Second

// udpDetectTimeout is the peek window §4.E's UDP flavor uses to detect
// the first datagram from a not-yet-connected device.
const udpDetectTimeout = 5 * time.Second

// defaultStreamIOTimeout is the per-connection I/O timeout §4.E
// mandates for accepted TCP sockets.
const defaultStreamIOTimeout = 5 * time.Second
