// Package transport defines the interfaces and shared types of the giggle
// server transport layer. It provides a common contract that all transport
// implementations must fulfill, so the server wiring and the status endpoint are
// independent of the network protocol in use.
//
// The package focuses on:
//   - Defining the server transport interface with an explicit lifecycle
//   - Describing accepted connections to chunk handlers and status consumers
//   - Enabling multiple transport implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - IServerTransport: Interface for server-side transports that accept
//     connections, hand them to a bounded worker pool and can be closed from any
//     goroutine.
//
//   - Session: The view of one accepted connection given to a ChunkHandler.
//
//   - ChunkHandler: Function type called for every chunk read from a connection.
//
//   - Stats / ConnectionInfo: Point-in-time snapshots for monitoring.
package transport
