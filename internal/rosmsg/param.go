package rosmsg

import (
	"math"

	"github.com/pkg/errors"
)

// RequestParamRequest asks the host for a single named parameter.
type RequestParamRequest struct {
	Name string
}

func (r *RequestParamRequest) Serialize() []byte {
	return putString(nil, r.Name)
}

func (r *RequestParamRequest) Deserialize(data []byte) error {
	var err error
	r.Name, _, err = readString(data)
	return err
}

// RequestParamResponse carries the parameter's value back to the
// device. Exactly one of the three arrays is populated; dictionary
// parameters are rejected upstream and never reach here.
type RequestParamResponse struct {
	Ints    []int32
	Floats  []float32
	Strings []string
}

func (r *RequestParamResponse) Serialize() []byte {
	buf := make([]byte, 0, 32)
	buf = putInt32Array(buf, r.Ints)
	buf = putFloat32Array(buf, r.Floats)
	buf = putStringArray(buf, r.Strings)
	return buf
}

func (r *RequestParamResponse) Deserialize(data []byte) error {
	var err error
	if r.Ints, data, err = readInt32Array(data); err != nil {
		return err
	}
	if r.Floats, data, err = readFloat32Array(data); err != nil {
		return err
	}
	if r.Strings, _, err = readStringArray(data); err != nil {
		return err
	}
	return nil
}

func putInt32Array(buf []byte, vals []int32) []byte {
	buf = putUint32(buf, uint32(len(vals)))
	for _, v := range vals {
		buf = putUint32(buf, uint32(v))
	}
	return buf
}

func readInt32Array(data []byte) ([]int32, []byte, error) {
	n, data, err := readUint32(data)
	if err != nil {
		return nil, nil, err
	}
	out := make([]int32, n)
	for i := range out {
		var v uint32
		v, data, err = readUint32(data)
		if err != nil {
			return nil, nil, err
		}
		out[i] = int32(v)
	}
	return out, data, nil
}

func putFloat32Array(buf []byte, vals []float32) []byte {
	buf = putUint32(buf, uint32(len(vals)))
	for _, v := range vals {
		buf = putUint32(buf, math.Float32bits(v))
	}
	return buf
}

func readFloat32Array(data []byte) ([]float32, []byte, error) {
	n, data, err := readUint32(data)
	if err != nil {
		return nil, nil, err
	}
	out := make([]float32, n)
	for i := range out {
		var v uint32
		v, data, err = readUint32(data)
		if err != nil {
			return nil, nil, err
		}
		out[i] = math.Float32frombits(v)
	}
	return out, data, nil
}

func putStringArray(buf []byte, vals []string) []byte {
	buf = putUint32(buf, uint32(len(vals)))
	for _, v := range vals {
		buf = putString(buf, v)
	}
	return buf
}

func readStringArray(data []byte) ([]string, []byte, error) {
	n, data, err := readUint32(data)
	if err != nil {
		return nil, nil, err
	}
	out := make([]string, n)
	for i := range out {
		out[i], data, err = readString(data)
		if err != nil {
			return nil, nil, err
		}
	}
	return out, data, nil
}

// ErrDictionaryParam is the error a ParameterStore returns when a
// resolved parameter value is a mapping — unsupported by the wire
// format, which only carries homogeneous arrays.
var ErrDictionaryParam = errors.New("rosmsg: dictionary-valued parameters are not supported")
