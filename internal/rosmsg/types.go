package rosmsg

import "strings"

// MessageClass is a resolved, reflectable message type: its MD5
// fingerprint and the ability to move a value to and from wire bytes.
// Concrete implementations live outside this module, generated from
// the middleware's message definitions.
type MessageClass interface {
	MD5Sum() string
	TypeName() string
	New() Message
}

// Message is one instance of a resolved message type.
type Message interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}

// ServiceClass is a resolved service type: the request/response halves
// plus enough identity to build a middleware proxy or server.
type ServiceClass interface {
	TypeName() string
	RequestClass() MessageClass
	ResponseClass() MessageClass
}

// TypeRegistry is the out-of-scope collaborator that performs dynamic
// message/service resolution by name. A real implementation is
// pre-populated at build time (or via a loader) with every
// (package, name) -> codec pair the middleware knows about; the
// Registry never looks up types any other way. This is the systems-
// language stand-in for the source's runtime module import by string.
type TypeRegistry interface {
	ResolveMessageType(packageName, typeName string) (MessageClass, error)
	ResolveServiceType(packageName, typeName string) (ServiceClass, error)
}

// SplitMessageType splits a "package/Type" string, as carried in
// TopicInfo.MessageType, into its package and type components.
func SplitMessageType(messageType string) (pkg, typ string, ok bool) {
	i := strings.IndexByte(messageType, '/')
	if i < 0 {
		return "", "", false
	}
	return messageType[:i], messageType[i+1:], true
}
