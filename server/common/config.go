package common

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/ValentinKolb/giggle/lib/fault"
)

const (
	// DefaultMaxConnections is the default bound of simultaneously handled connections
	DefaultMaxConnections = 128
	// DefaultBlockSize is the default size of a connection buffer in bytes
	DefaultBlockSize = 4 * 1024
	// DefaultHost is the default bind address
	DefaultHost = "0.0.0.0"
)

// --------------------------------------------------------------------------
// Enumerations
// --------------------------------------------------------------------------

// TransportKind selects the stream transport
type TransportKind string

const (
	TransportTCP  TransportKind = "tcp"
	TransportUnix TransportKind = "unix"
)

// ReadMode selects how much a connection handler reads
type ReadMode string

const (
	// ReadModeOnce reads at most one chunk, then ends the connection
	ReadModeOnce ReadMode = "once"
	// ReadModeDrain reads chunks until the peer closes the connection
	ReadModeDrain ReadMode = "drain"
)

// --------------------------------------------------------------------------
// Configuration structs
// --------------------------------------------------------------------------

// SocketConf holds per-connection socket buffer sizes (0 = OS default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // < 0 = OS default
	ReuseAddr       bool
}

// TransportConfig describes the listening endpoint
type TransportConfig struct {
	Kind           TransportKind
	Host           string
	Port           int
	SocketPath     string
	MaxConnections int
	SocketConf
	TCPConf
}

// BlockPoolConfig configures the per-connection buffer pool
type BlockPoolConfig struct {
	BlockSize int
	PreAlloc  int
	MaxAlloc  int // 0 = unbounded
}

// ServerConfig holds all configuration parameters of a giggle server
type ServerConfig struct {
	Transport TransportConfig
	BlockPool BlockPoolConfig

	// Workers is the number of worker goroutines (0 = MaxConnections / 2)
	Workers int

	// Handler behaviour
	ReadMode      ReadMode
	TimeoutSecond int64 // read timeout, 0 = none
	Echo          bool

	// StatusEndpoint is the address of the HTTP status/metrics server ("" = disabled)
	StatusEndpoint string

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns a configuration with all defaults applied.
// The port still has to be set.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Transport: TransportConfig{
			Kind:           TransportTCP,
			Host:           DefaultHost,
			MaxConnections: DefaultMaxConnections,
			TCPConf: TCPConf{
				TCPNoDelay:   true,
				TCPLingerSec: -1,
				ReuseAddr:    true,
			},
		},
		BlockPool: BlockPoolConfig{
			BlockSize: DefaultBlockSize,
		},
		ReadMode: ReadModeDrain,
		LogLevel: "info",
	}
}

// --------------------------------------------------------------------------
// Derived values
// --------------------------------------------------------------------------

// Endpoint returns the address the transport listens on
func (c *ServerConfig) Endpoint() string {
	if c.Transport.Kind == TransportUnix {
		return c.Transport.SocketPath
	}
	return net.JoinHostPort(c.Transport.Host, strconv.Itoa(c.Transport.Port))
}

// WorkerCount returns the effective number of workers
func (c *ServerConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	if w := c.Transport.MaxConnections / 2; w > 0 {
		return w
	}
	return 1
}

// Validate checks the configuration for consistency
func (c *ServerConfig) Validate() error {
	const op = "common.ServerConfig.Validate"

	switch c.Transport.Kind {
	case TransportTCP:
		if c.Transport.Port < 0 || c.Transport.Port > 65535 {
			return fault.Newf(fault.KindLogicFailure, op, "invalid port %d", c.Transport.Port)
		}
	case TransportUnix:
		if c.Transport.SocketPath == "" {
			return fault.New(fault.KindLogicFailure, op, "unix transport requires a socket path")
		}
	default:
		return fault.Newf(fault.KindLogicFailure, op, "invalid transport %q (expected tcp or unix)", c.Transport.Kind)
	}

	if c.Transport.MaxConnections <= 0 {
		return fault.Newf(fault.KindLogicFailure, op, "max connections must be positive, got %d", c.Transport.MaxConnections)
	}
	if c.Workers < 0 {
		return fault.Newf(fault.KindLogicFailure, op, "worker count must not be negative, got %d", c.Workers)
	}
	if c.BlockPool.BlockSize <= 0 {
		return fault.Newf(fault.KindLogicFailure, op, "block size must be positive, got %d", c.BlockPool.BlockSize)
	}
	if c.BlockPool.PreAlloc < 0 || c.BlockPool.MaxAlloc < 0 {
		return fault.New(fault.KindLogicFailure, op, "block counts must not be negative")
	}
	if c.BlockPool.MaxAlloc != 0 && c.BlockPool.MaxAlloc < c.BlockPool.PreAlloc {
		return fault.Newf(fault.KindLogicFailure, op, "max blocks %d smaller than preallocated blocks %d", c.BlockPool.MaxAlloc, c.BlockPool.PreAlloc)
	}
	if c.ReadMode != ReadModeOnce && c.ReadMode != ReadModeDrain {
		return fault.Newf(fault.KindLogicFailure, op, "invalid read mode %q (expected once or drain)", c.ReadMode)
	}
	if c.TimeoutSecond < 0 {
		return fault.Newf(fault.KindLogicFailure, op, "timeout must not be negative, got %d", c.TimeoutSecond)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fault.Wrap(fault.KindLogicFailure, op, err)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	maxBlocks := "unbounded"
	if c.BlockPool.MaxAlloc > 0 {
		maxBlocks = strconv.Itoa(c.BlockPool.MaxAlloc)
	}

	// Listener settings
	addSection("Listener")
	addField("Transport", string(c.Transport.Kind))
	addField("Endpoint", c.Endpoint())
	addField("Max Connections", strconv.Itoa(c.Transport.MaxConnections))
	if c.Transport.Kind == TransportTCP {
		addField("TCP NoDelay", fmt.Sprintf("%t", c.Transport.TCPNoDelay))
		addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
		addField("Reuse Address", fmt.Sprintf("%t", c.Transport.ReuseAddr))
	}

	// Pools
	addSection("Pools")
	addField("Workers", strconv.Itoa(c.WorkerCount()))
	addField("Block Size", fmt.Sprintf("%d bytes", c.BlockPool.BlockSize))
	addField("Preallocated Blocks", strconv.Itoa(c.BlockPool.PreAlloc))
	addField("Max Blocks", maxBlocks)

	// Handler
	addSection("Handler")
	addField("Read Mode", string(c.ReadMode))
	addField("Read Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Echo", fmt.Sprintf("%t", c.Echo))

	// Status server
	if c.StatusEndpoint != "" {
		addSection("Status")
		addField("Endpoint", c.StatusEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
