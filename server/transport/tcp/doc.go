// Package tcp provides the TCP connectors for the giggle base transport.
//
// The server connector binds with net.ListenConfig and enables SO_REUSEADDR on
// unix platforms. Every accepted connection is tuned according to the TCPConf
// and SocketConf settings: TCP_NODELAY, socket buffer sizes, keep-alive and
// linger.
//
// Usage:
//
//	t := tcp.NewTCPServerTransport()
//	t.RegisterHandler(handler)
//	err := t.Listen(ctx, config)
package tcp
