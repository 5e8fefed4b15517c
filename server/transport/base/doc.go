// Package base provides the protocol independent server transport of giggle.
// It implements the accept loop, admission control and per-connection handling
// once and is extended with protocol-specific connectors (TCP, Unix sockets).
//
// The package focuses on:
//   - Bounding the number of simultaneously handled connections
//   - Handing accepted connections to a fixed size worker pool
//   - Reading into fixed size buffers leased from a block pool
//   - Cooperative shutdown from any goroutine
//
// Key Components:
//
//   - IServerConnector/IClientConnector: Interfaces for protocol-specific
//     operations that allow extending the base transport with different network
//     protocols.
//
//   - serverTransport: Core listener. The accept loop counts every accepted
//     socket; a connection beyond MaxConnections is closed right away, as is a
//     connection for which no buffer can be leased. Admitted connections get a
//     Connection record (sequence id, uuid, peer address, leased block), are
//     tracked in a concurrent map and submitted to the worker pool. Accept
//     errors are logged and retried with a rate limited backoff.
//
//   - Connection: Record of one accepted connection. Teardown removes it from the
//     live set and returns its block exactly once.
//
//   - Probe: Opens many client connections at once and reports which of them the
//     server kept open. Used by the probe command and the tests.
//
// Shutdown:
//
//   - Close clears the running flag, closes every tracked peer socket and then
//     the listening socket. Blocked reads and Accept return with an error.
//
//   - Listen then shuts the worker pool down (queued handlers still run and see
//     their closed socket), closes the block pool and returns nil.
//
// Read modes:
//
//   - drain (default): a handler reads chunks until the peer closes, the read
//     times out or the transport is closed.
//
//   - once: a handler reads at most one chunk and ends the connection.
package base
