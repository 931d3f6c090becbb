// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package bridge implements the Session state machine: the reader and
// writer loops that drive one device link, the reserved-topic handler
// table, and the startup/shutdown sequence described in the rosserial
// host bridge design. One Session serves exactly one Transport; a
// Listener constructs a new Session per attached device.
package bridge

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Synkar/rosserial/internal/middleware"
	"github.com/Synkar/rosserial/internal/registry"
	"github.com/Synkar/rosserial/internal/rosmsg"
	"github.com/Synkar/rosserial/internal/transport"
	"github.com/Synkar/rosserial/internal/wire"
)

// Startup/retry delays are vars, not consts, so tests can shrink them
// instead of waiting out the real boot-loader handoff window.
var (
	startupBootDelay       = 100 * time.Millisecond
	startupNegotiationWait = 2 * time.Second
	readLockTimeout        = time.Second
	readerIdleSleep        = time.Millisecond
	readerDispatchPause    = time.Millisecond
	writerRetryPause       = time.Second
)

const (
	writeQueueDepth     = 64
	defaultLinkTimeout  = 5 * time.Second
)

// Config parameterizes one Session. LinkTimeout gates both the lost-
// sync detection (3x this value since lastSyncAt was last refreshed,
// which a device time request or a resync attempt does) and is the
// same figure a caller should have used to configure the Transport's
// own per-call read/write deadlines.
type Config struct {
	LinkTimeout time.Duration
}

// Session is the central state machine of §4.D: one reader goroutine,
// one writer goroutine, and the dynamic handler table the Registry
// populates as the device announces its topics.
type Session struct {
	transport transport.Transport
	registry  *registry.Registry

	params   middleware.ParameterStore
	logSink  middleware.LogSink
	diagSink middleware.DiagnosticsSink
	clock    middleware.Clock

	linkTimeout time.Duration

	readLock  chanMutex
	writeLock sync.Mutex

	writeCh chan writeItem
	done    chan struct{}
	once    sync.Once

	writerDone chan struct{}

	// handlers is mutated only from the reader goroutine (every install
	// happens synchronously while dispatching the negotiation frame
	// that triggered it), so it needs no lock of its own.
	handlers map[uint16]func(payload []byte)

	state   sessionState
	buffers bufferSizes
}

// NewSession wires one Transport to one Registry, built from mw/types,
// plus the external collaborators of §6. params, logSink, diagSink and
// clock may be nil; a nil clock defaults to the wall clock.
func NewSession(
	t transport.Transport,
	mw middleware.Middleware,
	types rosmsg.TypeRegistry,
	params middleware.ParameterStore,
	logSink middleware.LogSink,
	diagSink middleware.DiagnosticsSink,
	clock middleware.Clock,
	cfg Config,
) *Session {
	if clock == nil {
		clock = middleware.SystemClock
	}
	linkTimeout := cfg.LinkTimeout
	if linkTimeout <= 0 {
		linkTimeout = defaultLinkTimeout
	}

	s := &Session{
		transport:   t,
		params:      params,
		logSink:     logSink,
		diagSink:    diagSink,
		clock:       clock,
		linkTimeout: linkTimeout,
		readLock:    newChanMutex(),
		writeCh:     make(chan writeItem, writeQueueDepth),
		done:        make(chan struct{}),
		writerDone:  make(chan struct{}),
		handlers:    make(map[uint16]func(payload []byte)),
		buffers:     bufferSizes{publish: -1, subscribe: -1},
	}
	s.registry = registry.New(mw, types, s.enqueue)
	return s
}

// Run executes the full session lifecycle: startup, the reader loop
// (blocking), then shutdown. It returns once the link is lost, sync is
// exhausted, or Shutdown has been called and the reader has drained.
func (s *Session) Run() {
	time.Sleep(startupBootDelay) // allow boot-loaders to hand off, per §4.D

	s.installReservedHandlers()

	time.Sleep(startupNegotiationWait)
	s.sendRequestTopics()
	s.state.setLastSyncAt(s.clock.Now())

	go s.writerLoop()

	s.readerLoop()

	// A reader exit from a lost-sync timeout (rather than an explicit
	// Shutdown) must still unblock the writer.
	s.once.Do(func() { close(s.done) })
	<-s.writerDone

	s.registry.Teardown()
	if err := s.transport.Close(); err != nil {
		log.Printf("bridge: closing transport: %v", err)
	}
}

// Shutdown requests a clean exit: it enqueues the stop-tx control
// frame, then signals the reader and writer loops. Idempotent.
func (s *Session) Shutdown() {
	s.once.Do(func() {
		s.flushInputUnderReadLock()
		frame, _ := wire.Encode(idStopTx, nil, 0)
		s.enqueueItem(frameItem(frame))
		close(s.done)
	})
}

// Done reports whether Shutdown has been requested or the reader has
// already terminated on its own.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) installReservedHandlers() {
	s.handlers[ID_PUBLISHER] = s.handlePublisherInfo
	s.handlers[ID_SUBSCRIBER] = s.handleSubscriberInfo
	s.handlers[idServiceServerPublisher] = s.handleServiceServerEmit
	s.handlers[idServiceServerSubscriber] = s.handleServiceServerAccept
	s.handlers[idServiceClientPublisher] = s.handleServiceClientEmit
	s.handlers[idServiceClientSubscriber] = s.handleServiceClientAccept
	s.handlers[ID_PARAMETER_REQUEST] = s.handleParameterRequest
	s.handlers[ID_LOG] = s.handleLog
	s.handlers[ID_TIME] = s.handleTime
}

// readerLoop implements §4.D's reader: the central sync/read/dispatch
// cycle. It returns when the link is lost, sync cannot be recovered, or
// shutdown has been requested.
func (s *Session) readerLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.writerDone:
			return
		default:
		}

		if s.clock.Now().Sub(s.state.getLastSyncAt()) > 3*s.linkTimeout {
			if s.state.getSynced() {
				log.Println("bridge: lost sync with device, restarting session")
				return
			}
			log.Println("bridge: unable to sync with device; possible link problem or protocol version mismatch")
			s.state.setLastSyncLostAt(s.clock.Now())
			s.publishDiagnostic(middleware.DiagnosticError, diagNoSync)
			s.sendRequestTopics()
			s.state.setLastSyncAt(s.clock.Now())
		}

		if !s.readLock.TryLock(readLockTimeout) {
			continue
		}

		avail, err := s.transport.BytesAvailable()
		if err != nil {
			s.readLock.Unlock()
			log.Printf("bridge: checking bytes available: %v", err)
			return
		}
		if avail == 0 {
			s.readLock.Unlock()
			time.Sleep(readerIdleSleep)
			continue
		}

		topicID, payload, err := wire.Decode(s.transport, s)
		s.readLock.Unlock()
		if err != nil {
			log.Printf("bridge: read failed: %v", err)
			return
		}

		s.state.setSynced(true)
		s.state.setLastSyncSuccessAt(s.clock.Now())
		s.dispatch(topicID, payload)
		time.Sleep(readerDispatchPause)
	}
}

func (s *Session) dispatch(topicID uint16, payload []byte) {
	handler, ok := s.handlers[topicID]
	if !ok {
		log.Printf("bridge: frame for unconfigured topic id %d, requesting topics", topicID)
		s.sendRequestTopics()
		return
	}
	handler(payload)
}

// ProtocolMismatch implements wire.Diagnostics.
func (s *Session) ProtocolMismatch(got byte) {
	msg := fmt.Sprintf("Mismatched protocol version in packet: protocol version of client is %s",
		wire.ProtocolVersionName(got))
	log.Println("bridge:", msg)
	s.publishDiagnostic(middleware.DiagnosticError, msg)
}

// ChecksumFailure implements wire.Diagnostics.
func (s *Session) ChecksumFailure(phase string) {
	log.Printf("bridge: checksum failure validating %s, dropping frame", phase)
}

// writerLoop implements §4.D's writer: drains the FIFO queue until
// told to stop, draining at most one more item after shutdown per §5.
func (s *Session) writerLoop() {
	defer close(s.writerDone)
	for {
		select {
		case <-s.done:
			select {
			case item := <-s.writeCh:
				s.writeOne(item)
			default:
			}
			return
		case item := <-s.writeCh:
			s.writeOne(item)
		}
	}
}

func (s *Session) writeOne(item writeItem) {
	frame := item.frame
	if item.pair {
		encoded, err := wire.Encode(item.topicID, item.payload, s.buffers.getSubscribe())
		if err != nil {
			log.Printf("bridge: dropping outbound message on topic %d: %v", item.topicID, err)
			return
		}
		frame = encoded
	}

	for {
		s.writeLock.Lock()
		err := s.transport.WriteAll(frame)
		s.writeLock.Unlock()
		if err == nil {
			s.state.setLastWriteAt(s.clock.Now())
			return
		}
		if errors.Cause(err) == transport.ErrTransportTimeout {
			log.Printf("bridge: write timed out, retrying in %s: %v", writerRetryPause, err)
			time.Sleep(writerRetryPause)
			continue
		}
		log.Printf("bridge: write failed, dropping: %v", err)
		return
	}
}

// enqueue implements registry.EnqueueFunc.
func (s *Session) enqueue(topicID uint16, payload []byte) {
	s.enqueueItem(pairItem(topicID, payload))
}

func (s *Session) enqueueItem(item writeItem) {
	select {
	case s.writeCh <- item:
	case <-s.writerDone:
		log.Printf("bridge: dropping write, writer has already exited")
	}
}

func (s *Session) sendRequestTopics() {
	s.flushInputUnderReadLock()
	frame, _ := wire.Encode(idRequestTopics, nil, 0)
	s.enqueueItem(frameItem(frame))
}

func (s *Session) flushInputUnderReadLock() {
	if !s.readLock.TryLock(readLockTimeout) {
		return
	}
	defer s.readLock.Unlock()
	if err := s.transport.FlushInput(); err != nil {
		log.Printf("bridge: flushing input: %v", err)
	}
}

func (s *Session) handlePublisherInfo(payload []byte) {
	var info rosmsg.TopicInfo
	if err := info.Deserialize(payload); err != nil {
		log.Printf("bridge: malformed publisher TopicInfo: %v", err)
		return
	}
	handler, err := s.registry.InstallPublisher(info)
	if err != nil {
		log.Printf("bridge: installing publisher %s: %v", info.TopicName, err)
		return
	}
	s.handlers[info.TopicID] = handler
	s.buffers.setPublish(info.BufferSize)
	log.Printf("bridge: publisher %s [%s] on topic id %d", info.TopicName, info.MessageType, info.TopicID)
}

func (s *Session) handleSubscriberInfo(payload []byte) {
	var info rosmsg.TopicInfo
	if err := info.Deserialize(payload); err != nil {
		log.Printf("bridge: malformed subscriber TopicInfo: %v", err)
		return
	}
	if err := s.registry.InstallSubscriber(info); err != nil {
		log.Printf("bridge: installing subscriber %s: %v", info.TopicName, err)
		return
	}
	s.buffers.setSubscribe(info.BufferSize)
	log.Printf("bridge: subscriber %s [%s] on topic id %d", info.TopicName, info.MessageType, info.TopicID)
}

func (s *Session) handleServiceServerEmit(payload []byte) {
	var info rosmsg.TopicInfo
	if err := info.Deserialize(payload); err != nil {
		log.Printf("bridge: malformed service server TopicInfo: %v", err)
		return
	}
	handler, err := s.registry.InstallServiceServer(info, registry.HalfEmit)
	if err != nil {
		log.Printf("bridge: installing service server %s: %v", info.TopicName, err)
		return
	}
	s.handlers[info.TopicID] = handler
	s.buffers.setPublish(info.BufferSize)
}

func (s *Session) handleServiceServerAccept(payload []byte) {
	var info rosmsg.TopicInfo
	if err := info.Deserialize(payload); err != nil {
		log.Printf("bridge: malformed service server TopicInfo: %v", err)
		return
	}
	if _, err := s.registry.InstallServiceServer(info, registry.HalfAccept); err != nil {
		log.Printf("bridge: installing service server %s: %v", info.TopicName, err)
		return
	}
	s.buffers.setSubscribe(info.BufferSize)
}

func (s *Session) handleServiceClientEmit(payload []byte) {
	var info rosmsg.TopicInfo
	if err := info.Deserialize(payload); err != nil {
		log.Printf("bridge: malformed service client TopicInfo: %v", err)
		return
	}
	handler, err := s.registry.InstallServiceClient(info, registry.HalfEmit)
	if err != nil {
		log.Printf("bridge: installing service client %s: %v", info.TopicName, err)
		return
	}
	s.handlers[info.TopicID] = handler
	s.buffers.setPublish(info.BufferSize)
}

func (s *Session) handleServiceClientAccept(payload []byte) {
	var info rosmsg.TopicInfo
	if err := info.Deserialize(payload); err != nil {
		log.Printf("bridge: malformed service client TopicInfo: %v", err)
		return
	}
	if _, err := s.registry.InstallServiceClient(info, registry.HalfAccept); err != nil {
		log.Printf("bridge: installing service client %s: %v", info.TopicName, err)
		return
	}
	s.buffers.setSubscribe(info.BufferSize)
}

func (s *Session) handleParameterRequest(payload []byte) {
	var req rosmsg.RequestParamRequest
	if err := req.Deserialize(payload); err != nil {
		log.Printf("bridge: malformed parameter request: %v", err)
		return
	}

	resp := rosmsg.RequestParamResponse{}
	if s.params == nil {
		log.Printf("bridge: parameter %s requested, no parameter store configured", req.Name)
	} else if val, err := s.params.Get(req.Name); err == nil {
		resp.Ints, resp.Floats, resp.Strings = val.Ints, val.Floats, val.Strings
	} else if err == middleware.ErrParamNotFound {
		log.Printf("bridge: parameter %s does not exist", req.Name)
	} else {
		log.Printf("bridge: resolving parameter %s: %v", req.Name, err)
	}

	s.enqueue(ID_PARAMETER_REQUEST, resp.Serialize())
}

func (s *Session) handleLog(payload []byte) {
	var msg rosmsg.Log
	if err := msg.Deserialize(payload); err != nil {
		log.Printf("bridge: malformed device log message: %v", err)
		return
	}
	if s.logSink == nil {
		return
	}
	switch msg.Level {
	case rosmsg.LogDebug:
		s.logSink.Debug(msg.Msg)
	case rosmsg.LogInfo:
		s.logSink.Info(msg.Msg)
	case rosmsg.LogWarn:
		s.logSink.Warn(msg.Msg)
	case rosmsg.LogError:
		s.logSink.Error(msg.Msg)
	case rosmsg.LogFatal:
		s.logSink.Fatal(msg.Msg)
	default:
		log.Printf("bridge: unknown device log level %d: %s", msg.Level, msg.Msg)
	}
}

func (s *Session) handleTime(_ []byte) {
	t := rosmsg.NewTime(s.clock.Now())
	s.enqueue(ID_TIME, t.Serialize())
	s.state.setLastSyncAt(s.clock.Now())
}
