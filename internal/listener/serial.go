//go:build linux

package listener

import (
	"log"

	"github.com/Synkar/rosserial/internal/bridge"
	"github.com/Synkar/rosserial/internal/transport"
)

// RunSerial opens path at baud (retrying indefinitely while shutdown is
// not yet closed), runs exactly one Session over it, and returns once
// that Session exits. There is only ever one device on a serial link,
// so unlike TCP/UDP there is no outer accept loop.
func RunSerial(path string, baud int, cfg bridge.Config, deps Collaborators, shutdown <-chan struct{}) error {
	alive := func() bool {
		select {
		case <-shutdown:
			return false
		default:
			return true
		}
	}

	s, err := transport.OpenSerialRetry(path, baud, alive)
	if err != nil {
		return err
	}

	log.Printf("listener: serial device %s opened at %d baud", path, baud)
	session := newSession(s, deps, cfg)
	runSession(session, shutdown)
	return nil
}
