package wire

import "github.com/pkg/errors"

// ByteReader is the minimal contract Decode needs from a transport: read
// exactly n bytes or fail. Transports satisfy this directly.
type ByteReader interface {
	ReadExact(n int) ([]byte, error)
}

// Diagnostics receives the two resumable fault notifications Decode can
// raise while searching for a valid frame. Implementations typically
// publish a DiagnosticArray and log a line; neither call aborts the
// search.
type Diagnostics interface {
	ProtocolMismatch(got byte)
	ChecksumFailure(phase string)
}

// NopDiagnostics discards both notifications. Useful in tests.
type NopDiagnostics struct{}

func (NopDiagnostics) ProtocolMismatch(byte)  {}
func (NopDiagnostics) ChecksumFailure(string) {}

// Encode builds the wire frame for topicID/payload. maxPayload is the
// negotiated subscribe-buffer size; a value <= 0 means no limit has been
// negotiated yet.
func Encode(topicID uint16, payload []byte, maxPayload int) ([]byte, error) {
	if maxPayload > 0 && len(payload) > maxPayload {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "payload %d bytes, limit %d", len(payload), maxPayload)
	}

	length := len(payload)
	lengthLo := byte(length)
	lengthHi := byte(length >> 8)
	topicLo := byte(topicID)
	topicHi := byte(topicID >> 8)

	frame := make([]byte, 0, 8+length)
	frame = append(frame, Sync, SyncRev1, lengthLo, lengthHi, lengthChecksum(lengthLo, lengthHi))
	frame = append(frame, topicLo, topicHi)
	frame = append(frame, payload...)
	frame = append(frame, payloadChecksum(topicLo, topicHi, payload))
	return frame, nil
}

// Decode searches r for the next valid frame, silently skipping bytes
// until a sync marker is found and resuming the search after a protocol
// mismatch or a failed checksum. It returns only once a fully validated
// frame has been read, or once a transport-level read error propagates
// (timeout, closed link, mid-frame short read).
func Decode(r ByteReader, diag Diagnostics) (topicID uint16, payload []byte, err error) {
	if diag == nil {
		diag = NopDiagnostics{}
	}

	for {
		b, err := r.ReadExact(1)
		if err != nil {
			return 0, nil, errors.Wrap(err, "syncflag")
		}
		if b[0] != Sync {
			continue
		}

		ver, err := r.ReadExact(1)
		if err != nil {
			return 0, nil, errors.Wrap(err, "protocol")
		}
		if ver[0] != SyncRev1 {
			diag.ProtocolMismatch(ver[0])
			continue
		}

		lenBytes, err := r.ReadExact(3)
		if err != nil {
			return 0, nil, errors.Wrap(err, "message length")
		}
		lengthLo, lengthHi, lengthChk := lenBytes[0], lenBytes[1], lenBytes[2]
		if !validLengthChecksum(lengthLo, lengthHi, lengthChk) {
			diag.ChecksumFailure("message length")
			continue
		}
		length := int(lengthLo) | int(lengthHi)<<8
		if length > MaxPayload {
			diag.ChecksumFailure("message length")
			continue
		}

		topicBytes, err := r.ReadExact(2)
		if err != nil {
			return 0, nil, errors.Wrap(err, "topic id")
		}
		topicLo, topicHi := topicBytes[0], topicBytes[1]

		data, err := r.ReadExact(length)
		if err != nil {
			// A mid-frame short read (timeout) is a transport fault, not a
			// resync condition: propagate it up so the Session can decide.
			return 0, nil, errors.Wrap(err, "data")
		}

		chkByte, err := r.ReadExact(1)
		if err != nil {
			return 0, nil, errors.Wrap(err, "data checksum")
		}
		if !validPayloadChecksum(topicLo, topicHi, data, chkByte[0]) {
			diag.ChecksumFailure("data checksum")
			continue
		}

		id := uint16(topicLo) | uint16(topicHi)<<8
		return id, data, nil
	}
}
