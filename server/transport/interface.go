package transport

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/giggle/lib/mempool"
	"github.com/ValentinKolb/giggle/lib/workerpool"
	"github.com/ValentinKolb/giggle/server/common"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Listener State
// --------------------------------------------------------------------------

// State is the lifecycle state of a server transport
type State int32

const (
	StateCreated State = iota
	StateListening
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateListening:
		return "listening"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON status documents
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// --------------------------------------------------------------------------
// Connection Handling
// --------------------------------------------------------------------------

// Session is the handler side view of one accepted connection
type Session interface {
	// ID returns the listener local sequence number of the connection
	ID() uint64
	// SessionID returns the unique id of the connection
	SessionID() uuid.UUID
	// RemoteAddr returns the peer address
	RemoteAddr() net.Addr
	// Authenticated reports whether a higher layer marked the peer as authenticated
	Authenticated() bool
	// SetAuthenticated marks the peer as authenticated
	SetAuthenticated(bool)
	// Write sends data to the peer
	Write(p []byte) (int, error)
}

// ChunkHandler is called for every chunk read from a connection. The chunk
// aliases the connection buffer and is only valid during the call. Returning an
// error ends that connection.
type ChunkHandler func(s Session, chunk []byte) error

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerTransport is the interface for the server transport layer
type IServerTransport interface {
	// RegisterHandler registers the chunk handler. It must be called before Listen.
	// A nil handler discards all data.
	RegisterHandler(handler ChunkHandler)
	// Listen binds the endpoint of the config and runs the accept loop until Close
	// is called or the context is canceled. Bind failures are returned before the
	// loop starts. A regular shutdown returns nil.
	Listen(ctx context.Context, config common.ServerConfig) error
	// Ready is closed once the transport accepts connections or Listen gave up.
	// State is StateListening in the first case.
	Ready() <-chan struct{}
	// Close stops the accept loop and closes all tracked connections. It is
	// idempotent and safe to call from any goroutine.
	Close() error
	// Addr returns the bound address or nil before Listen
	Addr() net.Addr
	// State returns the lifecycle state
	State() State
	// Live returns the number of tracked connections
	Live() int64
	// Connections returns a snapshot of all tracked connections
	Connections() []ConnectionInfo
	// Stats returns a snapshot of the transport statistics
	Stats() Stats
	// WriteMetrics writes the transport metrics in Prometheus text format
	WriteMetrics(w io.Writer)
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// ConnectionInfo describes one tracked connection
type ConnectionInfo struct {
	ID            uint64    `json:"id"`
	SessionID     string    `json:"session_id"`
	RemoteAddr    string    `json:"remote_addr"`
	Connected     bool      `json:"connected"`
	Authenticated bool      `json:"authenticated"`
	AcceptedAt    time.Time `json:"accepted_at"`
	BytesRead     int64     `json:"bytes_read"`
}

// Stats is a snapshot of the transport statistics
type Stats struct {
	Transport         string           `json:"transport"`
	Endpoint          string           `json:"endpoint"`
	State             State            `json:"state"`
	Live              int64            `json:"live"`
	MaxConnections    int              `json:"max_connections"`
	Accepted          uint64           `json:"accepted"`
	RejectedOverflow  uint64           `json:"rejected_overflow"`
	RejectedExhausted uint64           `json:"rejected_exhausted"`
	RejectedStopped   uint64           `json:"rejected_stopped"`
	AcceptErrors      uint64           `json:"accept_errors"`
	BytesRead         uint64           `json:"bytes_read"`
	Blocks            mempool.Stats    `json:"blocks"`
	Workers           workerpool.Stats `json:"workers"`
}
