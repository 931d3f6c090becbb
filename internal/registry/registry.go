// Package registry implements the endpoint registry: the device-facing
// negotiation protocol that turns TopicInfo announcements into bound
// middleware publishers, subscribers, and service halves, and the
// handlers the Session stores in its topic_id -> handler dispatch table.
package registry

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/Synkar/rosserial/internal/middleware"
	"github.com/Synkar/rosserial/internal/rosmsg"
)

// EnqueueFunc pushes a (topicID, payload) pair onto the Session's
// outbound write queue. Subscriber callbacks and service responses use
// it to get bytes back to the device.
type EnqueueFunc func(topicID uint16, payload []byte)

// Registry binds device-announced topics to middleware endpoints and
// returns, for every dynamically-created binding that receives device
// frames, the handler the Session stores in its own topic_id -> handler
// table.
type Registry struct {
	mw      middleware.Middleware
	types   rosmsg.TypeRegistry
	enqueue EnqueueFunc

	mu          sync.Mutex
	publishers  map[uint16]*publisherEndpoint  // by topic_id
	subscribers map[string]*subscriberEndpoint // by topic_name
	services    map[string]*serviceEntry       // by topic_name
}

func New(mw middleware.Middleware, types rosmsg.TypeRegistry, enqueue EnqueueFunc) *Registry {
	return &Registry{
		mw:          mw,
		types:       types,
		enqueue:     enqueue,
		publishers:  make(map[uint16]*publisherEndpoint),
		subscribers: make(map[string]*subscriberEndpoint),
		services:    make(map[string]*serviceEntry),
	}
}

func (r *Registry) resolveMessage(messageType string) (rosmsg.MessageClass, error) {
	pkg, typ, ok := rosmsg.SplitMessageType(messageType)
	if !ok {
		return nil, errors.Errorf("registry: malformed message type %q", messageType)
	}
	return r.types.ResolveMessageType(pkg, typ)
}

func (r *Registry) resolveService(messageType string) (rosmsg.ServiceClass, error) {
	pkg, typ, ok := rosmsg.SplitMessageType(messageType)
	if !ok {
		return nil, errors.Errorf("registry: malformed service type %q", messageType)
	}
	return r.types.ResolveServiceType(pkg, typ)
}

// InstallPublisher installs or refreshes a device->host publisher. A
// topic_id reused with a mismatched md5sum is a fatal configuration
// error for that one endpoint: it is logged and the id stays unbound.
func (r *Registry) InstallPublisher(info rosmsg.TopicInfo) (HandlerFunc, error) {
	msgClass, err := r.resolveMessage(info.MessageType)
	if err != nil {
		return nil, errors.Wrap(err, "resolving publisher message type")
	}
	if msgClass.MD5Sum() != info.MD5Sum {
		return nil, errors.Wrapf(ErrChecksumMismatch, "publisher %s: device=%s resolved=%s",
			info.TopicName, info.MD5Sum, msgClass.MD5Sum())
	}

	r.mu.Lock()
	if existing, ok := r.publishers[info.TopicID]; ok && existing.md5sum != info.MD5Sum {
		r.mu.Unlock()
		return nil, errors.Wrapf(ErrTopicIDConflict, "topic id %d", info.TopicID)
	}
	r.mu.Unlock()

	pub, err := r.mw.NewPublisher(info.TopicName, msgClass)
	if err != nil {
		return nil, errors.Wrap(err, "creating middleware publisher")
	}

	ep := &publisherEndpoint{topicID: info.TopicID, md5sum: info.MD5Sum, msgClass: msgClass, pub: pub}
	r.mu.Lock()
	r.publishers[info.TopicID] = ep
	r.mu.Unlock()

	handler := func(payload []byte) {
		msg := msgClass.New()
		if err := msg.Deserialize(payload); err != nil {
			log.Printf("registry: publisher %s failed to deserialize payload: %v", info.TopicName, err)
			return
		}
		if err := pub.Publish(msg); err != nil {
			log.Printf("registry: publisher %s failed to publish: %v", info.TopicName, err)
		}
	}
	return handler, nil
}

// InstallSubscriber installs or rebinds a host->device subscriber.
// Idempotent when the same name/type is seen twice; a type change
// unregisters the old binding before installing the new one. The
// device never sends frames tagged with a subscriber's own topic_id,
// so no handler is returned.
func (r *Registry) InstallSubscriber(info rosmsg.TopicInfo) error {
	msgClass, err := r.resolveMessage(info.MessageType)
	if err != nil {
		return errors.Wrap(err, "resolving subscriber message type")
	}
	if msgClass.MD5Sum() != info.MD5Sum {
		return errors.Wrapf(ErrChecksumMismatch, "subscriber %s: device=%s resolved=%s",
			info.TopicName, info.MD5Sum, msgClass.MD5Sum())
	}

	r.mu.Lock()
	existing, ok := r.subscribers[info.TopicName]
	r.mu.Unlock()

	if ok {
		if existing.msgType == info.MessageType {
			return nil // idempotent: same name, same type
		}
		if err := existing.sub.Unregister(); err != nil {
			log.Printf("registry: failed to unregister stale subscriber %s: %v", info.TopicName, err)
		}
		r.mu.Lock()
		delete(r.subscribers, info.TopicName)
		r.mu.Unlock()
	}

	topicID := info.TopicID
	callback := func(payload []byte) {
		r.enqueue(topicID, payload)
	}
	sub, err := r.mw.NewSubscriber(info.TopicName, msgClass, callback)
	if err != nil {
		return errors.Wrap(err, "creating middleware subscriber")
	}

	ep := &subscriberEndpoint{
		topicName: info.TopicName,
		topicID:   topicID,
		md5sum:    info.MD5Sum,
		msgType:   info.MessageType,
		msgClass:  msgClass,
		sub:       sub,
	}
	r.mu.Lock()
	r.subscribers[info.TopicName] = ep
	r.mu.Unlock()
	return nil
}

func (r *Registry) serviceEntryFor(topicName string, kind serviceKind, svcMessageType string) (*serviceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.services[topicName]; ok {
		return entry, nil
	}

	svc, err := r.resolveService(svcMessageType)
	if err != nil {
		return nil, errors.Wrap(err, "resolving service type")
	}
	entry := &serviceEntry{topicName: topicName, kind: kind, svc: svc, pending: make(chan []byte, 1)}
	r.services[topicName] = entry
	return entry, nil
}

// InstallServiceServer binds one half of a ServiceServer: the emit
// half (device publishes its response) or the accept half (host writes
// the request). Both halves may arrive in either order.
func (r *Registry) InstallServiceServer(info rosmsg.TopicInfo, half Half) (HandlerFunc, error) {
	entry, err := r.serviceEntryFor(info.TopicName, serviceServerKind, info.MessageType)
	if err != nil {
		return nil, err
	}

	switch half {
	case HalfEmit: // device -> host: the response
		if entry.svc.ResponseClass().MD5Sum() != info.MD5Sum {
			return nil, errors.Wrapf(ErrChecksumMismatch, "service server %s response: device=%s resolved=%s",
				info.TopicName, info.MD5Sum, entry.svc.ResponseClass().MD5Sum())
		}
		entry.mu.Lock()
		entry.emitTopicID = info.TopicID
		entry.mu.Unlock()

		if err := r.ensureServiceServer(entry); err != nil {
			return nil, err
		}

		respClass := entry.svc.ResponseClass()
		handler := func(payload []byte) {
			msg := respClass.New()
			if err := msg.Deserialize(payload); err != nil {
				log.Printf("registry: service server %s failed to deserialize response: %v", info.TopicName, err)
				return
			}
			select {
			case entry.pending <- payload:
			default:
				log.Printf("registry: service server %s received a response with no pending request", info.TopicName)
			}
		}
		return handler, nil

	case HalfAccept: // host -> device: the request
		if entry.svc.RequestClass().MD5Sum() != info.MD5Sum {
			return nil, errors.Wrapf(ErrChecksumMismatch, "service server %s request: device=%s resolved=%s",
				info.TopicName, info.MD5Sum, entry.svc.RequestClass().MD5Sum())
		}
		entry.mu.Lock()
		entry.acceptTopicID = info.TopicID
		entry.mu.Unlock()
		if err := r.ensureServiceServer(entry); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return nil, errors.Errorf("registry: unknown half %d", half)
}

// ensureServiceServer lazily creates the middleware-side service once,
// regardless of which half triggered it first. The handler closure
// reads entry.acceptTopicID at call time, after both halves have
// normally arrived.
func (r *Registry) ensureServiceServer(entry *serviceEntry) error {
	entry.mu.Lock()
	alreadyCreated := entry.mwServer != nil
	entry.mu.Unlock()
	if alreadyCreated {
		return nil
	}

	handler := func(request []byte) ([]byte, error) {
		entry.mu.Lock()
		acceptTopicID := entry.acceptTopicID
		entry.mu.Unlock()

		// Drain any stale response left by a prior, abandoned request.
		select {
		case <-entry.pending:
		default:
		}

		r.enqueue(acceptTopicID, request)
		response := <-entry.pending
		return response, nil
	}

	srv, err := r.mw.NewServiceServer(entry.topicName, entry.svc, handler)
	if err != nil {
		return errors.Wrap(err, "creating middleware service server")
	}
	entry.mu.Lock()
	entry.mwServer = srv
	entry.mu.Unlock()
	return nil
}

// InstallServiceClient binds one half of a ServiceClient: the emit
// half (device publishes its request) or the accept half (host writes
// the response). The backing middleware proxy is created lazily and
// may block waiting for the service to become available, so it runs
// on its own goroutine.
func (r *Registry) InstallServiceClient(info rosmsg.TopicInfo, half Half) (HandlerFunc, error) {
	entry, err := r.serviceEntryFor(info.TopicName, serviceClientKind, info.MessageType)
	if err != nil {
		return nil, err
	}

	switch half {
	case HalfEmit: // device -> host: the request
		if entry.svc.RequestClass().MD5Sum() != info.MD5Sum {
			return nil, errors.Wrapf(ErrChecksumMismatch, "service client %s request: device=%s resolved=%s",
				info.TopicName, info.MD5Sum, entry.svc.RequestClass().MD5Sum())
		}
		entry.mu.Lock()
		entry.emitTopicID = info.TopicID
		entry.mu.Unlock()
		r.ensureServiceClientProxy(entry)

		reqClass := entry.svc.RequestClass()
		handler := func(payload []byte) {
			msg := reqClass.New()
			if err := msg.Deserialize(payload); err != nil {
				log.Printf("registry: service client %s failed to deserialize request: %v", info.TopicName, err)
				return
			}
			entry.mu.Lock()
			proxy := entry.proxy
			acceptTopicID := entry.acceptTopicID
			entry.mu.Unlock()
			if proxy == nil {
				log.Printf("registry: service client %s invoked before proxy was ready", info.TopicName)
				return
			}
			response, err := proxy.Call(context.Background(), payload)
			if err != nil {
				log.Printf("registry: service client %s call failed: %v", info.TopicName, err)
				return
			}
			r.enqueue(acceptTopicID, response)
		}
		return handler, nil

	case HalfAccept: // host -> device: the response
		if entry.svc.ResponseClass().MD5Sum() != info.MD5Sum {
			return nil, errors.Wrapf(ErrChecksumMismatch, "service client %s response: device=%s resolved=%s",
				info.TopicName, info.MD5Sum, entry.svc.ResponseClass().MD5Sum())
		}
		entry.mu.Lock()
		entry.acceptTopicID = info.TopicID
		entry.mu.Unlock()
		r.ensureServiceClientProxy(entry)
		return nil, nil
	}
	return nil, errors.Errorf("registry: unknown half %d", half)
}

func (r *Registry) ensureServiceClientProxy(entry *serviceEntry) {
	entry.mu.Lock()
	if entry.proxy != nil || entry.proxyClosed {
		entry.mu.Unlock()
		return
	}
	entry.proxyClosed = true // guards against launching the wait more than once
	entry.mu.Unlock()

	go func() {
		proxy, err := r.mw.NewServiceProxy(context.Background(), entry.topicName, entry.svc)
		if err != nil {
			log.Printf("registry: service client %s: %v", entry.topicName, errors.Wrap(err, ErrServiceProxyUnavailable.Error()))
			return
		}
		entry.mu.Lock()
		entry.proxy = proxy
		entry.mu.Unlock()
	}()
}

// Teardown unregisters every middleware handle. Idempotent.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ep := range r.publishers {
		if err := ep.pub.Close(); err != nil {
			log.Printf("registry: closing publisher %d: %v", id, err)
		}
		delete(r.publishers, id)
	}
	for name, ep := range r.subscribers {
		if err := ep.sub.Unregister(); err != nil {
			log.Printf("registry: unregistering subscriber %s: %v", name, err)
		}
		delete(r.subscribers, name)
	}
	for name, entry := range r.services {
		entry.mu.Lock()
		if entry.mwServer != nil {
			if err := entry.mwServer.Shutdown(); err != nil {
				log.Printf("registry: shutting down service %s: %v", name, err)
			}
		}
		if entry.proxy != nil {
			if err := entry.proxy.Close(); err != nil {
				log.Printf("registry: closing service proxy %s: %v", name, err)
			}
		}
		entry.mu.Unlock()
		delete(r.services, name)
	}
}
