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

package bridge

import (
	"time"

	"github.com/Synkar/rosserial/internal/middleware"
)

const diagnosticName = "rosserial"

// diagNoSync is the message carried on the one DiagnosticStatus §6
// describes, emitted whenever the reader gives up waiting for sync.
const diagNoSync = "Unable to sync with device; possible link problem or link software version mismatch"

// publishDiagnostic builds and emits the single DiagnosticStatus the
// bridge ever produces: name "rosserial", the given level and message,
// and the two sync timestamps as values.
func (s *Session) publishDiagnostic(level middleware.DiagnosticLevel, message string) {
	if s.diagSink == nil {
		return
	}
	s.diagSink.Publish(middleware.DiagnosticStatus{
		Name:    diagnosticName,
		Level:   level,
		Message: message,
		Values: map[string]string{
			"last sync":      formatSyncTime(s.state.getLastSyncAt()),
			"last sync lost": formatSyncTime(s.state.getLastSyncLostAt()),
		},
	})
}

func formatSyncTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.ANSIC)
}
