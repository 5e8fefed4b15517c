package http

import (
	"context"
	"encoding/json"
	"io"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/giggle/server/common"
	"github.com/ValentinKolb/giggle/server/transport"
	"github.com/ValentinKolb/giggle/server/transport/tcp"
)

// startListener runs a tcp transport on a loopback port
func startListener(t *testing.T) transport.IServerTransport {
	t.Helper()

	config := common.DefaultServerConfig()
	config.Transport.Host = "127.0.0.1"
	config.LogLevel = "error"

	tr := tcp.NewTCPServerTransport()
	done := make(chan error, 1)
	go func() { done <- tr.Listen(context.Background(), config) }()

	select {
	case <-tr.Ready():
	case err := <-done:
		t.Fatalf("Listen returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Transport did not become ready")
	}

	t.Cleanup(func() {
		_ = tr.Close()
		<-done
	})
	return tr
}

func TestStatusEndpoint(t *testing.T) {
	tr := startListener(t)

	conn, err := net.Dial("tcp", tr.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for tr.Live() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	srv := NewStatusServer("", tr, true)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/status?connections=true", nil))

	if rec.Code != nethttp.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var doc struct {
		Stats struct {
			Transport string `json:"transport"`
			State     string `json:"state"`
			Live      int64  `json:"live"`
		} `json:"stats"`
		Connections []transport.ConnectionInfo `json:"connections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}

	if doc.Stats.Transport != "tcp" {
		t.Errorf("Expected tcp transport, got %s", doc.Stats.Transport)
	}
	if doc.Stats.State != "listening" {
		t.Errorf("Expected listening state, got %s", doc.Stats.State)
	}
	if doc.Stats.Live != 1 || len(doc.Connections) != 1 {
		t.Errorf("Expected 1 live connection, got %d (%d records)", doc.Stats.Live, len(doc.Connections))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	tr := startListener(t)

	srv := NewStatusServer("", tr, false)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"giggle_connections_accepted_total", "giggle_connections_live", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("Expected metric %s in output", name)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := NewStatusServer("", startListener(t), false)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(nethttp.MethodPost, "/status", nil))

	if rec.Code == nethttp.StatusOK {
		t.Errorf("Expected POST /status to be rejected")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	srv := NewStatusServer("", startListener(t), false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, listener) }()

	// the server answers before cancel
	var resp *nethttp.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = nethttp.Get("http://" + listener.Addr().String() + "/status")
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Status request failed: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Status server did not stop")
	}
}
