package registry

import (
	"sync"

	"github.com/Synkar/rosserial/internal/middleware"
	"github.com/Synkar/rosserial/internal/rosmsg"
)

// HandlerFunc is what the Session binds into its dispatch table for a
// dynamic topic id created by an endpoint install.
type HandlerFunc func(payload []byte)

// Half distinguishes the two TopicInfo announcements a service endpoint
// is built from: Emit means the device emits frames on this topic id
// (mirrors a plain Endpoint Publisher); Accept means the host writes
// frames to the device on this topic id (mirrors a plain Endpoint
// Subscriber).
type Half int

const (
	HalfEmit Half = iota
	HalfAccept
)

type publisherEndpoint struct {
	topicID  uint16
	md5sum   string
	msgClass rosmsg.MessageClass
	pub      middleware.Publisher
}

type subscriberEndpoint struct {
	topicName string
	topicID   uint16
	md5sum    string
	msgType   string
	msgClass  rosmsg.MessageClass
	sub       middleware.Subscriber
}

type serviceKind int

const (
	serviceServerKind serviceKind = iota
	serviceClientKind
)

// serviceEntry tracks one service endpoint (server or client) across
// its two installation halves, which may arrive in either order.
type serviceEntry struct {
	mu sync.Mutex

	topicName string
	kind      serviceKind
	svc       rosmsg.ServiceClass

	// emitTopicID is the id the device uses to emit data (the request
	// for a client entry, the response for a server entry).
	emitTopicID uint16
	// acceptTopicID is the id the host uses to write data to the device
	// (the request for a server entry, the response for a client entry).
	acceptTopicID uint16

	// server-side plumbing: one request in flight at a time, mirroring
	// the original's single self.response slot.
	pending chan []byte

	// client-side plumbing.
	proxy       middleware.ServiceProxy
	proxyClosed bool

	mwServer middleware.ServiceServer
}
