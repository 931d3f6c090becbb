// Package middleware declares the narrow, external collaborator
// contracts the bridge core depends on: publish/subscribe, services,
// parameters, logging, diagnostics and the wall clock. None of these
// are implemented here — a real binary wires in whatever middleware
// client library it has, the way the teacher injects a kcp.BlockCrypt
// or smux.Config from its command-line layer instead of constructing
// one inside the forwarding code.
package middleware

import (
	"context"
	"time"

	"github.com/Synkar/rosserial/internal/rosmsg"
)

// Publisher forwards a deserialized device message into the
// middleware under one topic name.
type Publisher interface {
	Publish(msg rosmsg.Message) error
	Close() error
}

// Subscriber listens for middleware-originated messages and invokes
// callback with each one, serialized, for the Session to frame and
// enqueue. Unregister releases the middleware-side handle.
type Subscriber interface {
	Unregister() error
}

// SubscriberCallback is invoked by the middleware runtime for every
// message delivered on a subscribed topic.
type SubscriberCallback func(payload []byte)

// ServiceServer answers device-originated service requests. Shutdown
// releases the middleware-side handle.
type ServiceServer interface {
	Shutdown() error
}

// ServiceRequestHandler is invoked synchronously by the middleware
// runtime for each incoming service call; it must block until a
// response is available.
type ServiceRequestHandler func(request []byte) (response []byte, err error)

// ServiceProxy invokes a middleware service by name, blocking until
// the server replies or ctx is done.
type ServiceProxy interface {
	Call(ctx context.Context, request []byte) (response []byte, err error)
	Close() error
}

// Middleware is the façade the Registry uses to create the four
// endpoint kinds and to wait for a service to become available.
type Middleware interface {
	NewPublisher(topicName string, msgType rosmsg.MessageClass) (Publisher, error)
	NewSubscriber(topicName string, msgType rosmsg.MessageClass, cb SubscriberCallback) (Subscriber, error)
	NewServiceServer(topicName string, svcType rosmsg.ServiceClass, handler ServiceRequestHandler) (ServiceServer, error)
	NewServiceProxy(ctx context.Context, topicName string, svcType rosmsg.ServiceClass) (ServiceProxy, error)
}

// ParameterStore resolves named parameters. ErrParamNotFound signals a
// missing key; rosmsg.ErrDictionaryParam signals an unsupported
// mapping value.
type ParameterStore interface {
	Get(name string) (ParamValue, error)
}

// ParamValue is the typed result of a parameter lookup: exactly one of
// the three slices is populated.
type ParamValue struct {
	Ints    []int32
	Floats  []float32
	Strings []string
}

// LogSink is the host-side destination for device log lines.
type LogSink interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
}

// DiagnosticsSink publishes a DiagnosticArray, as described in spec §6.
type DiagnosticsSink interface {
	Publish(status DiagnosticStatus)
}

// DiagnosticStatus mirrors diagnostic_msgs/DiagnosticStatus, scoped to
// the one status line the bridge ever emits.
type DiagnosticStatus struct {
	Name    string
	Level   DiagnosticLevel
	Message string
	Values  map[string]string
}

type DiagnosticLevel uint8

const (
	DiagnosticOK    DiagnosticLevel = 0
	DiagnosticWarn  DiagnosticLevel = 1
	DiagnosticError DiagnosticLevel = 2
	DiagnosticStale DiagnosticLevel = 3
)

// Clock abstracts wall-clock access so Session timing logic is
// testable without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production Clock backed by time.Now.
var SystemClock Clock = systemClock{}

// ErrParamNotFound is returned by ParameterStore.Get when the name is
// unknown.
var ErrParamNotFound = paramNotFound{}

type paramNotFound struct{}

func (paramNotFound) Error() string { return "middleware: parameter not found" }
