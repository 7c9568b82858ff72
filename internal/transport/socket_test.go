package transport

import (
	"net"
	"testing"
)

func TestListenServerAndDialClientRoundTrip(t *testing.T) {
	server, err := ListenServer("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("ListenServer() error = %v", err)
	}
	defer server.Close()

	serverAddr := server.LocalAddr().(*net.UDPAddr)

	client, err := DialClient("127.0.0.1", serverAddr.Port)
	if err != nil {
		t.Fatalf("DialClient() error = %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	buf := make([]byte, 16)
	n, _, err := server.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error = %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("received %q, want %q", buf[:n], "ping")
	}
}

func TestListenServerRejectsUnparseableHost(t *testing.T) {
	if _, err := ListenServer("not-an-ip", 0); err == nil {
		t.Error("ListenServer() with an unparseable host did not error")
	}
}
