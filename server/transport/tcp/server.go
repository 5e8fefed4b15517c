package tcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ValentinKolb/giggle/server/common"
	"github.com/ValentinKolb/giggle/server/transport"
	"github.com/ValentinKolb/giggle/server/transport/base"
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(ctx context.Context, config common.ServerConfig) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: listenControl(config.Transport.ReuseAddr),
	}
	if config.Transport.TCPKeepAliveSec > 0 {
		lc.KeepAlive = time.Duration(config.Transport.TCPKeepAliveSec) * time.Second
	}

	// Create TCP socket listener
	return lc.Listen(ctx, "tcp", config.Endpoint())
}

// sockOption applies one setting to an accepted connection. A nil apply means
// the setting is left at the OS default.
type sockOption struct {
	name  string
	apply func(*net.TCPConn) error
}

// sockOptions derives the per-connection settings from TCPConf and SocketConf
func sockOptions(config common.ServerConfig) []sockOption {
	tc := config.Transport
	keepAlive := time.Duration(tc.TCPKeepAliveSec) * time.Second

	opts := []sockOption{
		{"nodelay", func(c *net.TCPConn) error { return c.SetNoDelay(tc.TCPNoDelay) }},
	}
	if tc.WriteBufferSize > 0 {
		opts = append(opts, sockOption{"write buffer", func(c *net.TCPConn) error { return c.SetWriteBuffer(tc.WriteBufferSize) }})
	}
	if tc.ReadBufferSize > 0 {
		opts = append(opts, sockOption{"read buffer", func(c *net.TCPConn) error { return c.SetReadBuffer(tc.ReadBufferSize) }})
	}
	if keepAlive > 0 {
		opts = append(opts, sockOption{"keepalive", func(c *net.TCPConn) error {
			return c.SetKeepAliveConfig(net.KeepAliveConfig{Enable: true, Idle: keepAlive, Interval: keepAlive})
		}})
	}
	if tc.TCPLingerSec >= 0 {
		opts = append(opts, sockOption{"linger", func(c *net.TCPConn) error { return c.SetLinger(tc.TCPLingerSec) }})
	}
	return opts
}

// UpgradeConnection tunes an accepted TCP connection. Connections of other
// types are left untouched. The first failing setting aborts the upgrade.
func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	for _, opt := range sockOptions(config) {
		if err := opt.apply(tcpConn); err != nil {
			return fmt.Errorf("set %s on %s: %w", opt.name, conn.RemoteAddr(), err)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates a new TCP server transport
func NewTCPServerTransport() transport.IServerTransport {
	return base.NewBaseServerTransport(&serverConnector{})
}
