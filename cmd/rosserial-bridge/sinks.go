package main

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/Synkar/rosserial/internal/middleware"
	"github.com/Synkar/rosserial/internal/rosmsg"
)

// stdlibLogSink and stdlibDiagnosticsSink are the bridge's built-in
// defaults for the two sinks spec.md §6 treats as external
// collaborators. A real deployment typically replaces both with
// adapters into its middleware's own logging/diagnostics aggregator;
// these exist so the binary is runnable standalone, the way the
// teacher never leaves handleClient without somewhere to log to.
type stdlibLogSink struct{}

func (stdlibLogSink) Debug(msg string) { log.Println("device DEBUG:", msg) }
func (stdlibLogSink) Info(msg string)  { log.Println("device INFO:", msg) }
func (stdlibLogSink) Warn(msg string)  { log.Println("device WARN:", msg) }
func (stdlibLogSink) Error(msg string) { log.Println("device ERROR:", msg) }
func (stdlibLogSink) Fatal(msg string) { log.Println("device FATAL:", msg) }

type stdlibDiagnosticsSink struct{}

func (stdlibDiagnosticsSink) Publish(status middleware.DiagnosticStatus) {
	log.Printf("diagnostics: %s level=%d %s %+v", status.Name, status.Level, status.Message, status.Values)
}

// errNoMiddlewareWired and errNoTypesWired are returned by the two
// stubs below so a standalone run fails each topic negotiation with a
// clear, logged error instead of crashing: Registry.resolveMessage and
// resolveService (internal/registry/registry.go) already short-circuit
// on any non-nil error from these calls and never touch the zero value
// that follows, so nothing downstream dereferences a nil MessageClass
// or ServiceClass.
var errNoMiddlewareWired = errors.New("middleware: no middleware wired; pass a real implementation to negotiate device topics")
var errNoTypesWired = errors.New("middleware: no type registry wired; pass a real implementation to resolve device message types")

// unwiredMiddleware and unwiredTypeRegistry are the bridge's built-in
// defaults for the two collaborators spec.md §6 treats as out of
// scope. Like stdlibLogSink/stdlibDiagnosticsSink above they exist so
// the binary never nil-pointer-panics standalone; unlike those two,
// there is no sensible stdlib behavior to fall back to here (resolving
// a ROS message type requires schema knowledge this module doesn't
// have), so every call simply fails loudly. A real deployment replaces
// both with adapters into its actual middleware client.
type unwiredMiddleware struct{}

func (unwiredMiddleware) NewPublisher(topicName string, msgType rosmsg.MessageClass) (middleware.Publisher, error) {
	return nil, errors.Wrapf(errNoMiddlewareWired, "publisher %s", topicName)
}

func (unwiredMiddleware) NewSubscriber(topicName string, msgType rosmsg.MessageClass, cb middleware.SubscriberCallback) (middleware.Subscriber, error) {
	return nil, errors.Wrapf(errNoMiddlewareWired, "subscriber %s", topicName)
}

func (unwiredMiddleware) NewServiceServer(topicName string, svcType rosmsg.ServiceClass, handler middleware.ServiceRequestHandler) (middleware.ServiceServer, error) {
	return nil, errors.Wrapf(errNoMiddlewareWired, "service server %s", topicName)
}

func (unwiredMiddleware) NewServiceProxy(ctx context.Context, topicName string, svcType rosmsg.ServiceClass) (middleware.ServiceProxy, error) {
	return nil, errors.Wrapf(errNoMiddlewareWired, "service proxy %s", topicName)
}

type unwiredTypeRegistry struct{}

func (unwiredTypeRegistry) ResolveMessageType(packageName, typeName string) (rosmsg.MessageClass, error) {
	return nil, errors.Wrapf(errNoTypesWired, "%s/%s", packageName, typeName)
}

func (unwiredTypeRegistry) ResolveServiceType(packageName, typeName string) (rosmsg.ServiceClass, error) {
	return nil, errors.Wrapf(errNoTypesWired, "%s/%s", packageName, typeName)
}
