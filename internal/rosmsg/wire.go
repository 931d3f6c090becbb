// Package rosmsg implements the handful of control-channel message types
// the bridge exchanges directly with the device: TopicInfo, Log, Time
// and the parameter request/response pair. These follow the ROS
// serialization rules (little-endian fixed-width fields, length-prefixed
// strings and arrays) by hand, since the actual application message
// types are resolved dynamically through TypeRegistry and never parsed
// here.
package rosmsg

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

func putString(buf []byte, s string) []byte {
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(s)))
	buf = append(buf, lenBuf...)
	buf = append(buf, s...)
	return buf
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, errors.New("rosmsg: truncated string length")
	}
	n := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n {
		return "", nil, errors.New("rosmsg: truncated string body")
	}
	return string(data[:n]), data[n:], nil
}

func putUint32(buf []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp, v)
	return append(buf, tmp...)
}

func readUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, errors.New("rosmsg: truncated uint32")
	}
	return binary.LittleEndian.Uint32(data), data[4:], nil
}

func putUint16(buf []byte, v uint16) []byte {
	tmp := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp, v)
	return append(buf, tmp...)
}

func readUint16(data []byte) (uint16, []byte, error) {
	if len(data) < 2 {
		return 0, nil, errors.New("rosmsg: truncated uint16")
	}
	return binary.LittleEndian.Uint16(data), data[2:], nil
}
