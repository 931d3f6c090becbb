package transport

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func dialTCPPair(t *testing.T) (*TCPStream, *net.TCPConn) {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer ln.Close()

	accepted := make(chan *net.TCPConn, 1)
	go func() {
		conn, err := ln.AcceptTCP()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- conn
	}()

	client, err := net.DialTCP("tcp", nil, ln.Addr().(*net.TCPAddr))
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}

	server := <-accepted
	if server == nil {
		t.Fatalf("AcceptTCP failed")
	}

	stream, err := NewTCPStream(server, time.Second)
	if err != nil {
		t.Fatalf("NewTCPStream: %v", err)
	}
	return stream, client
}

func TestTCPStreamReadExactAcrossWrites(t *testing.T) {
	stream, client := dialTCPPair(t)
	defer stream.Close()
	defer client.Close()

	go func() {
		client.Write([]byte{0x01, 0x02})
		time.Sleep(10 * time.Millisecond)
		client.Write([]byte{0x03, 0x04, 0x05})
	}()

	got, err := stream.ReadExact(5)
	if err != nil {
		t.Fatalf("ReadExact returned error: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03, 0x04, 0x05}) {
		t.Fatalf("unexpected bytes: % X", got)
	}
}

func TestTCPStreamBytesAvailableReflectsPendingData(t *testing.T) {
	stream, client := dialTCPPair(t)
	defer stream.Close()
	defer client.Close()

	if n, err := stream.BytesAvailable(); err != nil || n != 0 {
		t.Fatalf("expected 0 bytes available before any write, got n=%d err=%v", n, err)
	}

	client.Write([]byte{0xAA, 0xBB, 0xCC})
	time.Sleep(20 * time.Millisecond)

	n, err := stream.BytesAvailable()
	if err != nil {
		t.Fatalf("BytesAvailable returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 bytes available, got %d", n)
	}

	got, err := stream.ReadExact(3)
	if err != nil {
		t.Fatalf("ReadExact returned error: %v", err)
	}
	if !bytes.Equal(got, []byte{0xAA, 0xBB, 0xCC}) {
		t.Fatalf("ReadExact did not drain the spill buffer BytesAvailable peeked: % X", got)
	}
}

func TestTCPStreamReadExactTimesOutOnIdleLink(t *testing.T) {
	stream, client := dialTCPPair(t)
	defer stream.Close()
	defer client.Close()

	stream.timeout = 20 * time.Millisecond
	if _, err := stream.ReadExact(1); err == nil {
		t.Fatalf("expected a timeout error on an idle link")
	}
}

func udpPair(t *testing.T) (*UDPDatagram, net.PacketConn) {
	t.Helper()
	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	return NewUDPDatagram(serverConn, time.Second), clientConn
}

func TestUDPDatagramPinsFirstSenderAndDetectsData(t *testing.T) {
	server, client := udpPair(t)
	defer server.Close()
	defer client.Close()

	serverAddr := server.conn.LocalAddr()
	client.WriteTo([]byte{0x01, 0x02, 0x03}, serverAddr)
	time.Sleep(20 * time.Millisecond)

	n, err := server.BytesAvailable()
	if err != nil {
		t.Fatalf("BytesAvailable returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 bytes available after the first datagram, got %d", n)
	}

	got, err := server.ReadExact(3)
	if err != nil {
		t.Fatalf("ReadExact returned error: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("unexpected payload: % X", got)
	}
	if server.pinned == nil {
		t.Fatalf("expected the first sender to pin the client")
	}
}

func TestUDPDatagramBytesAvailableIsZeroWhenIdle(t *testing.T) {
	server, client := udpPair(t)
	defer server.Close()
	defer client.Close()

	n, err := server.BytesAvailable()
	if err != nil {
		t.Fatalf("BytesAvailable returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 bytes available on an idle socket, got %d", n)
	}
}

func TestUDPDatagramRebindsPinOnNewPortFromSameIP(t *testing.T) {
	server, client := udpPair(t)
	defer server.Close()
	defer client.Close()

	server.Pin(client.LocalAddr())

	otherConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer otherConn.Close()

	// A loopback test cannot fabricate a different IP, so this exercises
	// the same-IP/new-port rebind branch instead: the pin moves to the
	// new port rather than being discarded.
	otherConn.WriteTo([]byte{0x09}, server.conn.LocalAddr())
	time.Sleep(20 * time.Millisecond)

	n, err := server.BytesAvailable()
	if err != nil {
		t.Fatalf("BytesAvailable returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the rebind datagram to be accepted, got n=%d", n)
	}
	if server.pinnedPort != portOf(otherConn.LocalAddr()) {
		t.Fatalf("expected the pin to rebind to the new port")
	}
}

func TestUDPDatagramWriteAllChunksAtMTU(t *testing.T) {
	server, client := udpPair(t)
	defer server.Close()
	defer client.Close()

	server.Pin(client.LocalAddr())

	payload := make([]byte, 1200)
	for i := range payload {
		payload[i] = byte(i)
	}

	done := make(chan error, 1)
	go func() { done <- server.WriteAll(payload) }()

	var sizes []int
	var received []byte
	buf := make([]byte, 2048)
	client.SetReadDeadline(time.Now().Add(time.Second))
	for len(received) < len(payload) {
		n, _, err := client.ReadFrom(buf)
		if err != nil {
			t.Fatalf("ReadFrom: %v", err)
		}
		sizes = append(sizes, n)
		received = append(received, buf[:n]...)
	}

	if err := <-done; err != nil {
		t.Fatalf("WriteAll returned error: %v", err)
	}
	if len(sizes) != 3 || sizes[0] != 508 || sizes[1] != 508 || sizes[2] != 184 {
		t.Fatalf("expected datagram sizes [508 508 184], got %v", sizes)
	}
	if !bytes.Equal(received, payload) {
		t.Fatalf("reassembled payload does not match original")
	}
}

func TestUDPDatagramWriteAllBeforePinFails(t *testing.T) {
	server, client := udpPair(t)
	defer server.Close()
	defer client.Close()

	if err := server.WriteAll([]byte{0x01}); err == nil {
		t.Fatalf("expected an error writing before any client is pinned")
	}
}
