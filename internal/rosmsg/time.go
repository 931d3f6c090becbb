package rosmsg

import "time"

// Time mirrors std_msgs/Time: a wall-clock stamp with second and
// nanosecond fields, returned in response to an ID_TIME request.
type Time struct {
	Sec  uint32
	Nsec uint32
}

func NewTime(t time.Time) Time {
	return Time{Sec: uint32(t.Unix()), Nsec: uint32(t.Nanosecond())}
}

func (t *Time) Serialize() []byte {
	buf := make([]byte, 0, 8)
	buf = putUint32(buf, t.Sec)
	buf = putUint32(buf, t.Nsec)
	return buf
}

func (t *Time) Deserialize(data []byte) error {
	var err error
	if t.Sec, data, err = readUint32(data); err != nil {
		return err
	}
	if t.Nsec, _, err = readUint32(data); err != nil {
		return err
	}
	return nil
}
