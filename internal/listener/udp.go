package listener

import (
	"log"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/Synkar/rosserial/internal/bridge"
	"github.com/Synkar/rosserial/internal/transport"
)

// udpDetectChunk bounds the single recvfrom used to detect a new
// client, mirroring RosSerialUDPServer's detection read in
// original_source.
const udpDetectChunk = 4096

// RunUDP binds port and repeatedly waits for a new device: a 5 s peek
// detects the first datagram from an unpinned client, the Session runs
// pinned to that address, and once it terminates the loop goes back to
// peeking for the next one. Only one device is served at a time, per
// §4.E's UDP flavor.
func RunUDP(port int, cfg bridge.Config, deps Collaborators, shutdown <-chan struct{}) error {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on udp/%d", port)
	}
	defer conn.Close()
	log.Printf("listener: udp/%d ready", port)

	for {
		select {
		case <-shutdown:
			return nil
		default:
		}

		remote, firstDatagram, err := detectFirstDatagram(conn, udpDetectTimeout)
		if err == errNoDatagramYet {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "detecting udp client")
		}

		log.Println("listener: detected device at", remote)
		ud := transport.NewUDPDatagram(conn, defaultStreamIOTimeout)
		ud.Pin(remote)
		ud.Seed(firstDatagram)

		session := newSession(ud, deps, cfg)
		runSession(session, shutdown)
		log.Println("listener: session for", remote, "ended, resuming detection")
	}
}

var errNoDatagramYet = errors.New("listener: no datagram observed within the detection window")

// detectFirstDatagram blocks up to timeout waiting for one datagram on
// conn, returning its sender and raw bytes without otherwise disturbing
// the socket (no client is pinned yet, so any sender qualifies).
func detectFirstDatagram(conn *net.UDPConn, timeout time.Duration) (net.Addr, []byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, errors.Wrap(err, "setting detection deadline")
	}

	buf := make([]byte, udpDetectChunk)
	n, remote, err := conn.ReadFrom(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, errNoDatagramYet
		}
		return nil, nil, errors.Wrap(err, "reading udp detection datagram")
	}
	return remote, append([]byte{}, buf[:n]...), nil
}
