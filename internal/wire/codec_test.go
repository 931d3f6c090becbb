package wire

import (
	"bytes"
	"errors"
	"testing"
)

// sliceReader adapts a byte slice to ByteReader for tests, returning an
// error once the slice is exhausted mid-read (mimicking a transport
// timeout).
type sliceReader struct {
	buf []byte
}

var errShortRead = errors.New("short read")

func (r *sliceReader) ReadExact(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, errShortRead
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out, nil
}

func TestEncodeRoundTripFrame(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	frame, err := Encode(42, payload, 0)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	want := []byte{0xFF, 0xFE, 0x03, 0x00, 0xFC, 0x2A, 0x00}
	want = append(want, payload...)
	// checksum byte: 255 - (42 + 0 + 1 + 2 + 3) % 256 = 255 - 48 = 207 = 0xCF
	want = append(want, 0xCF)
	if !bytes.Equal(frame, want) {
		t.Fatalf("unexpected frame bytes:\n got: % X\nwant: % X", frame, want)
	}

	id, decoded, err := Decode(&sliceReader{buf: frame}, NopDiagnostics{})
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if id != 42 || !bytes.Equal(decoded, payload) {
		t.Fatalf("round trip mismatch: id=%d payload=% X", id, decoded)
	}
}

func TestRequestTopicsBytes(t *testing.T) {
	frame, err := Encode(0, nil, 0)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	want := []byte{0xFF, 0xFE, 0x00, 0x00, 0xFF, 0x00, 0x00, 0xFF}
	if !bytes.Equal(frame, want) {
		t.Fatalf("request-topics frame mismatch:\n got: % X\nwant: % X", frame, want)
	}
}

func TestStopTxBytes(t *testing.T) {
	frame, err := Encode(11, nil, 0)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	want := []byte{0xFF, 0xFE, 0x00, 0x00, 0xFF, 0x0B, 0x00, 0xF4}
	if !bytes.Equal(frame, want) {
		t.Fatalf("stop-tx frame mismatch:\n got: % X\nwant: % X", frame, want)
	}
}

type recordingDiag struct {
	mismatches []byte
	failures   []string
}

func (d *recordingDiag) ProtocolMismatch(got byte)   { d.mismatches = append(d.mismatches, got) }
func (d *recordingDiag) ChecksumFailure(phase string) { d.failures = append(d.failures, phase) }

func TestDecodeProtocolMismatchThenRecovers(t *testing.T) {
	// The sync search resumes at the byte after the rejected version
	// byte, so the 0xFF bytes inside the bad header are taken as sync
	// markers too: 0xFF 0x00 reports a second mismatch, and the trailing
	// 0xFF consumes the first good frame's sync byte as its version byte
	// (a third mismatch, 0xFF). The second good frame then decodes.
	bad := []byte{0xFF, 0xFD, 0x00, 0x00, 0xFF, 0x00, 0x00, 0xFF}
	good, err := Encode(7, []byte("hi"), 0)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	diag := &recordingDiag{}
	r := &sliceReader{buf: append(append(append([]byte{}, bad...), good...), good...)}
	id, payload, err := Decode(r, diag)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if id != 7 || string(payload) != "hi" {
		t.Fatalf("expected recovered frame (7, hi), got (%d, %q)", id, payload)
	}
	if len(diag.mismatches) != 3 || diag.mismatches[0] != 0xFD || diag.mismatches[1] != 0x00 || diag.mismatches[2] != 0xFF {
		t.Fatalf("expected protocol mismatches [FD 00 FF], got % X", diag.mismatches)
	}
}

func TestDecodeChecksumDropThenRecovers(t *testing.T) {
	good1, _ := Encode(1, []byte{0x10}, 0)
	good2, _ := Encode(2, []byte{0x20}, 0)

	corrupted := append([]byte{}, good1...)
	corrupted[len(corrupted)-1] ^= 0x01 // flip the payload checksum byte

	diag := &recordingDiag{}
	r := &sliceReader{buf: append(corrupted, good2...)}
	id, payload, err := Decode(r, diag)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if id != 2 || len(payload) != 1 || payload[0] != 0x20 {
		t.Fatalf("expected recovered frame (2, [0x20]), got (%d, % X)", id, payload)
	}
	if len(diag.failures) != 1 || diag.failures[0] != "data checksum" {
		t.Fatalf("expected one data-checksum failure, got %v", diag.failures)
	}
}

func TestEncodeOversizePayload(t *testing.T) {
	_, err := Encode(1, make([]byte, 10), 5)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestDecodeMidFramePropagatesError(t *testing.T) {
	// Sync + version + length header promising 10 bytes of payload, but
	// only 2 are actually present: the mid-frame short read must
	// propagate rather than silently resync.
	r := &sliceReader{buf: []byte{0xFF, 0xFE, 0x0A, 0x00, 0xF5, 0x01, 0x00, 0xAA, 0xBB}}
	_, _, err := Decode(r, NopDiagnostics{})
	if err == nil {
		t.Fatalf("expected an error for a truncated payload")
	}
}
