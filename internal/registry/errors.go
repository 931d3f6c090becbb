package registry

import "errors"

// ErrChecksumMismatch is returned when an endpoint's negotiated md5sum
// does not match the type resolved through TypeRegistry.
var ErrChecksumMismatch = errors.New("registry: md5sum mismatch between device and resolved type")

// ErrTopicIDConflict is returned when a topic id is reused with a
// different md5sum than its existing binding.
var ErrTopicIDConflict = errors.New("registry: topic id reused with a different md5sum")

// ErrServiceProxyUnavailable is returned when a service client's
// backing middleware proxy could not be created.
var ErrServiceProxyUnavailable = errors.New("registry: service proxy unavailable")
