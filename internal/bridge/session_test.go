package bridge

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/Synkar/rosserial/internal/middleware"
	"github.com/Synkar/rosserial/internal/rosmsg"
	"github.com/Synkar/rosserial/internal/transport"
	"github.com/Synkar/rosserial/internal/wire"
)

func init() {
	// Tests don't want to pay the real boot-loader handoff delay.
	startupBootDelay = time.Millisecond
	startupNegotiationWait = 5 * time.Millisecond
	readLockTimeout = 50 * time.Millisecond
	readerIdleSleep = time.Millisecond
	readerDispatchPause = time.Millisecond
	writerRetryPause = 10 * time.Millisecond
}

// memTransport is an in-memory transport.Transport: Feed supplies bytes
// as if the device had sent them, and frames() returns every complete
// frame WriteAll has been called with, in order.
type memTransport struct {
	mu     sync.Mutex
	in     []byte
	out    [][]byte
	closed bool
}

func (m *memTransport) Feed(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in = append(m.in, b...)
}

func (m *memTransport) frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.out))
	copy(out, m.out)
	return out
}

func (m *memTransport) ReadExact(n int) ([]byte, error) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		m.mu.Lock()
		if len(m.in) >= n {
			b := append([]byte{}, m.in[:n]...)
			m.in = m.in[n:]
			m.mu.Unlock()
			return b, nil
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, transport.ErrTransportClosed
		}
		if time.Now().After(deadline) {
			return nil, transport.ErrTransportTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *memTransport) WriteAll(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte{}, b...)
	m.out = append(m.out, cp)
	return nil
}

func (m *memTransport) BytesAvailable() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.in), nil
}

func (m *memTransport) FlushInput() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in = nil
	return nil
}

func (m *memTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type fakeLogSink struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeLogSink) record(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
}
func (f *fakeLogSink) Debug(msg string) { f.record("DEBUG:" + msg) }
func (f *fakeLogSink) Info(msg string)  { f.record("INFO:" + msg) }
func (f *fakeLogSink) Warn(msg string)  { f.record("WARN:" + msg) }
func (f *fakeLogSink) Error(msg string) { f.record("ERROR:" + msg) }
func (f *fakeLogSink) Fatal(msg string) { f.record("FATAL:" + msg) }

func (f *fakeLogSink) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

type fakeDiagSink struct {
	mu       sync.Mutex
	statuses []middleware.DiagnosticStatus
}

func (f *fakeDiagSink) Publish(status middleware.DiagnosticStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeDiagSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.statuses)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestSession(tr transport.Transport, logSink middleware.LogSink, diagSink middleware.DiagnosticsSink) *Session {
	return NewSession(tr, nil, nil, nil, logSink, diagSink, nil, Config{LinkTimeout: time.Second})
}

func TestSessionSendsRequestTopicsOnStartup(t *testing.T) {
	tr := &memTransport{}
	s := newTestSession(tr, nil, nil)

	runDone := make(chan struct{})
	go func() { s.Run(); close(runDone) }()

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 1 })

	want := []byte{0xFF, 0xFE, 0x00, 0x00, 0xFF, 0x00, 0x00, 0xFF}
	if !bytes.Equal(tr.frames()[0], want) {
		t.Fatalf("first frame mismatch:\n got: % X\nwant: % X", tr.frames()[0], want)
	}

	s.Shutdown()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Shutdown")
	}
}

func TestSessionSendsStopTxOnShutdown(t *testing.T) {
	tr := &memTransport{}
	s := newTestSession(tr, nil, nil)

	runDone := make(chan struct{})
	go func() { s.Run(); close(runDone) }()

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 1 })
	s.Shutdown()

	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Shutdown")
	}

	frames := tr.frames()
	last := frames[len(frames)-1]
	want := []byte{0xFF, 0xFE, 0x00, 0x00, 0xFF, 0x0B, 0x00, 0xF4}
	if !bytes.Equal(last, want) {
		t.Fatalf("final frame mismatch:\n got: % X\nwant: % X", last, want)
	}
}

func TestSessionAnswersTimeRequest(t *testing.T) {
	tr := &memTransport{}
	s := newTestSession(tr, nil, nil)

	runDone := make(chan struct{})
	go func() { s.Run(); close(runDone) }()

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 1 })

	req, err := wire.Encode(ID_TIME, nil, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tr.Feed(req)

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 2 })

	id, payload, err := wire.Decode(&sliceByteReader{buf: tr.frames()[1]}, wire.NopDiagnostics{})
	if err != nil {
		t.Fatalf("decoding time response: %v", err)
	}
	if id != ID_TIME {
		t.Fatalf("expected response on ID_TIME (%d), got %d", ID_TIME, id)
	}
	if len(payload) != 8 {
		t.Fatalf("expected an 8-byte Time payload, got %d bytes", len(payload))
	}

	s.Shutdown()
	<-runDone
}

func TestSessionProtocolMismatchThenRecovers(t *testing.T) {
	tr := &memTransport{}
	diag := &fakeDiagSink{}
	s := newTestSession(tr, nil, diag)

	runDone := make(chan struct{})
	go func() { s.Run(); close(runDone) }()

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 1 })

	// Just a sync byte followed by an unsupported protocol-version byte:
	// Decode reports the mismatch and resumes searching for sync right at
	// the next byte, which is where the well-formed frame begins.
	bad := []byte{0xFF, 0xFD}
	good, err := wire.Encode(ID_TIME, nil, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tr.Feed(append(append([]byte{}, bad...), good...))

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 2 })
	waitFor(t, time.Second, func() bool { return diag.count() >= 1 })

	id, _, err := wire.Decode(&sliceByteReader{buf: tr.frames()[1]}, wire.NopDiagnostics{})
	if err != nil {
		t.Fatalf("decoding recovered response: %v", err)
	}
	if id != ID_TIME {
		t.Fatalf("expected the well-formed frame after the mismatch to still dispatch, got topic %d", id)
	}

	s.Shutdown()
	<-runDone
}

func TestSessionChecksumDropThenRecovers(t *testing.T) {
	tr := &memTransport{}
	s := newTestSession(tr, nil, nil)

	runDone := make(chan struct{})
	go func() { s.Run(); close(runDone) }()

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 1 })

	corrupted, err := wire.Encode(ID_TIME, nil, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	corrupted[len(corrupted)-1] ^= 0x01 // flip the payload checksum byte

	good, err := wire.Encode(ID_TIME, nil, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tr.Feed(append(corrupted, good...))

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 2 })

	id, _, err := wire.Decode(&sliceByteReader{buf: tr.frames()[1]}, wire.NopDiagnostics{})
	if err != nil {
		t.Fatalf("decoding recovered response: %v", err)
	}
	if id != ID_TIME {
		t.Fatalf("expected the well-formed frame after the checksum drop to still dispatch, got topic %d", id)
	}

	s.Shutdown()
	<-runDone
}

func TestSessionUnknownTopicIDRerequestsTopics(t *testing.T) {
	tr := &memTransport{}
	s := newTestSession(tr, nil, nil)

	runDone := make(chan struct{})
	go func() { s.Run(); close(runDone) }()

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 1 })

	frame, err := wire.Encode(9999, []byte{0x01}, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tr.Feed(frame)

	requestTopics := []byte{0xFF, 0xFE, 0x00, 0x00, 0xFF, 0x00, 0x00, 0xFF}
	countRequests := func() int {
		n := 0
		for _, f := range tr.frames() {
			if bytes.Equal(f, requestTopics) {
				n++
			}
		}
		return n
	}
	waitFor(t, time.Second, func() bool { return countRequests() >= 2 })

	s.Shutdown()
	<-runDone
}

func TestSessionForwardsDeviceLogToLogSink(t *testing.T) {
	tr := &memTransport{}
	logSink := &fakeLogSink{}
	s := newTestSession(tr, logSink, nil)

	runDone := make(chan struct{})
	go func() { s.Run(); close(runDone) }()

	waitFor(t, time.Second, func() bool { return len(tr.frames()) >= 1 })

	logMsg := rosmsgLog(t, 2, "hello from device") // LogInfo == 2
	frame, err := wire.Encode(ID_LOG, logMsg, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tr.Feed(frame)

	waitFor(t, time.Second, func() bool { return len(logSink.snapshot()) >= 1 })
	lines := logSink.snapshot()
	if lines[0] != "INFO:hello from device" {
		t.Fatalf("unexpected forwarded log line: %q", lines[0])
	}

	s.Shutdown()
	<-runDone
}

func rosmsgLog(t *testing.T, level uint8, msg string) []byte {
	t.Helper()
	l := rosmsg.Log{Level: level, Msg: msg}
	return l.Serialize()
}

// sliceByteReader adapts a fixed byte slice to wire.ByteReader for
// decoding captured outbound frames in tests.
type sliceByteReader struct {
	buf []byte
}

func (r *sliceByteReader) ReadExact(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, transport.ErrTransportTimeout
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out, nil
}
