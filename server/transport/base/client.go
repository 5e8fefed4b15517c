package base

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Probe
// -----------------------------------------------------------

// ProbeConfig configures a probe run
type ProbeConfig struct {
	Endpoint    string
	Connections int
	Payload     []byte
	// Hold is how long every connection is kept open while waiting for the server
	Hold        time.Duration
	DialTimeout time.Duration
}

// ProbeResult is the outcome of one probe connection
type ProbeResult struct {
	Index int `json:"index"`
	// Connected is false if the connection could not be established at all
	Connected bool `json:"connected"`
	// ClosedByServer is true if the server ended the connection within the hold time
	ClosedByServer bool   `json:"closed_by_server"`
	Response       string `json:"response,omitempty"`
	Err            string `json:"error,omitempty"`
}

// Held reports whether the server kept the connection open
func (r ProbeResult) Held() bool {
	return r.Connected && !r.ClosedByServer
}

// Probe opens cfg.Connections connections at the same time, sends the payload
// on each and reports whether the server kept them open for cfg.Hold. All
// connections stay open until every probe finished, so the server sees them
// concurrently.
func Probe(ctx context.Context, connector IClientConnector, cfg ProbeConfig) ([]ProbeResult, error) {
	if cfg.Connections <= 0 {
		return nil, nil
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	results := make([]ProbeResult, cfg.Connections)
	conns := make([]net.Conn, cfg.Connections)
	var connsMu sync.Mutex

	defer func() {
		for _, conn := range conns {
			if conn != nil {
				_ = conn.Close()
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Connections; i++ {
		g.Go(func() error {
			res := &results[i]
			res.Index = i

			dialCtx, cancel := context.WithTimeout(gctx, cfg.DialTimeout)
			conn, err := connector.Connect(dialCtx, cfg.Endpoint)
			cancel()
			if err != nil {
				res.Err = err.Error()
				return nil
			}
			res.Connected = true

			connsMu.Lock()
			conns[i] = conn
			connsMu.Unlock()

			probeConnection(gctx, conn, cfg, res)
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// probeConnection writes the payload and waits for the server reaction
func probeConnection(ctx context.Context, conn net.Conn, cfg ProbeConfig, res *ProbeResult) {
	if len(cfg.Payload) > 0 {
		if _, err := conn.Write(cfg.Payload); err != nil {
			res.ClosedByServer = true
			res.Err = err.Error()
			return
		}
	}

	deadline := time.Now().Add(cfg.Hold)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			res.Response += string(buf[:n])
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// still open after the hold time
			return
		}
		res.ClosedByServer = true
		if !errors.Is(err, io.EOF) {
			res.Err = err.Error()
		}
		return
	}
}
