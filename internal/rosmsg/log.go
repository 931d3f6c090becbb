package rosmsg

// Log severity levels, matching the device-side log message definition.
const (
	LogDebug uint8 = 1
	LogInfo  uint8 = 2
	LogWarn  uint8 = 4
	LogError uint8 = 8
	LogFatal uint8 = 16
)

// Log is the payload of the ID_LOG control channel: a device-originated
// log line with a severity, forwarded verbatim to the host log sink.
type Log struct {
	Level uint8
	Msg   string
}

func (l *Log) Serialize() []byte {
	buf := make([]byte, 0, 1+4+len(l.Msg))
	buf = append(buf, l.Level)
	buf = putString(buf, l.Msg)
	return buf
}

func (l *Log) Deserialize(data []byte) error {
	if len(data) < 1 {
		return errShortLog
	}
	l.Level = data[0]
	var err error
	l.Msg, _, err = readString(data[1:])
	return err
}

var errShortLog = shortError("rosmsg: truncated log message")

type shortError string

func (e shortError) Error() string { return string(e) }
