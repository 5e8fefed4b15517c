package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/giggle/lib/fault"
	"github.com/ValentinKolb/giggle/server/common"
	"github.com/ValentinKolb/giggle/server/transport/tcp"
)

func testConfig() common.ServerConfig {
	config := common.DefaultServerConfig()
	config.Transport.Host = "127.0.0.1"
	config.LogLevel = "error"
	return config
}

func TestServeEchoAndCancel(t *testing.T) {
	config := testConfig()
	config.Echo = true

	s := NewServer(config, tcp.NewTCPServerTransport())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	select {
	case <-s.Transport().Ready():
	case err := <-done:
		t.Fatalf("Serve returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Server did not become ready")
	}

	conn, err := net.Dial("tcp", s.Transport().Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("giggle")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 6)
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf) != "giggle" {
		t.Errorf("Expected echo 'giggle', got %q", buf)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}

func TestServeWithStatusEndpoint(t *testing.T) {
	config := testConfig()
	config.StatusEndpoint = "127.0.0.1:0"

	s := NewServer(config, tcp.NewTCPServerTransport())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	select {
	case <-s.Transport().Ready():
	case err := <-done:
		t.Fatalf("Serve returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Server did not become ready")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}

func TestServeTransportCloseStopsStatusServer(t *testing.T) {
	config := testConfig()
	config.StatusEndpoint = "127.0.0.1:0"

	s := NewServer(config, tcp.NewTCPServerTransport())

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background()) }()

	select {
	case <-s.Transport().Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("Server did not become ready")
	}

	if err := s.Transport().Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after Close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after Close")
	}
}

func TestServeBindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to occupy port: %v", err)
	}
	defer occupied.Close()

	config := testConfig()
	config.Transport.Port = occupied.Addr().(*net.TCPAddr).Port
	config.Transport.ReuseAddr = false

	s := NewServer(config, tcp.NewTCPServerTransport())

	select {
	case err := <-serveAsync(s):
		if !fault.Is(err, fault.KindSystemFailure) {
			t.Errorf("Expected system failure, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not fail")
	}
}

func serveAsync(s *Server) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background()) }()
	return done
}
