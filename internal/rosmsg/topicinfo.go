package rosmsg

// TopicInfo is the negotiation payload the device sends to announce a
// publisher, subscriber or service half. message_type is formatted
// "package/Type"; md5sum is the 32 hex-char fingerprint of that type.
type TopicInfo struct {
	TopicID     uint16
	TopicName   string
	MessageType string
	MD5Sum      string
	BufferSize  uint32
}

func (t *TopicInfo) Serialize() []byte {
	buf := make([]byte, 0, 64)
	buf = putUint16(buf, t.TopicID)
	buf = putString(buf, t.TopicName)
	buf = putString(buf, t.MessageType)
	buf = putString(buf, t.MD5Sum)
	buf = putUint32(buf, t.BufferSize)
	return buf
}

func (t *TopicInfo) Deserialize(data []byte) error {
	var err error
	if t.TopicID, data, err = readUint16(data); err != nil {
		return err
	}
	if t.TopicName, data, err = readString(data); err != nil {
		return err
	}
	if t.MessageType, data, err = readString(data); err != nil {
		return err
	}
	if t.MD5Sum, data, err = readString(data); err != nil {
		return err
	}
	if t.BufferSize, _, err = readUint32(data); err != nil {
		return err
	}
	return nil
}
