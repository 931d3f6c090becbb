package wire

import "errors"

// ErrPayloadTooLarge is returned by Encode when the payload exceeds the
// negotiated subscribe-buffer size.
var ErrPayloadTooLarge = errors.New("wire: payload exceeds negotiated buffer size")

// ErrChecksumFailure describes a length or payload checksum that does
// not validate. Decode does not return it: it reports the failure
// through Diagnostics.ChecksumFailure and resumes the sync search.
var ErrChecksumFailure = errors.New("wire: checksum validation failed")

// ErrProtocolMismatch describes a second sync byte that does not match
// the supported protocol revision. Decode does not return it: it
// reports the byte through Diagnostics.ProtocolMismatch and resumes the
// sync search.
type ErrProtocolMismatch struct {
	Got byte
}

func (e *ErrProtocolMismatch) Error() string {
	return "wire: mismatched protocol version byte: " + protocolVersionName(e.Got)
}

// protocolVersionName maps a sync-second-byte to the human string used
// in diagnostics, per the wire protocol's version history.
func protocolVersionName(b byte) string {
	return ProtocolVersionName(b)
}

// ProtocolVersionName maps a sync-second-byte to the human-readable
// name Decode's Diagnostics callback is expected to report.
func ProtocolVersionName(b byte) string {
	switch b {
	case SyncRev0:
		return "Rev 0 (pre-0.5 protocol)"
	case SyncRev1:
		return "Rev 1 (current)"
	default:
		return "unknown"
	}
}
