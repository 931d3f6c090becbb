//go:build !linux

package listener

import (
	"github.com/pkg/errors"

	"github.com/Synkar/rosserial/internal/bridge"
)

// RunSerial is unavailable outside Linux: transport.OpenSerial configures
// the tty via Linux-specific termios ioctls, the same split server/listen.go
// and server/listen_linux.go draw around platform-specific listen setup.
func RunSerial(path string, baud int, cfg bridge.Config, deps Collaborators, shutdown <-chan struct{}) error {
	return errors.New("listener: serial transport is only supported on linux")
}
