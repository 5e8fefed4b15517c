package base

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/giggle/lib/mempool"
	"github.com/ValentinKolb/giggle/server/transport"
	"github.com/google/uuid"
)

// Connection is the record of one accepted connection. It owns the peer socket
// and the leased block used as its read buffer until teardown.
type Connection struct {
	id         uint64
	sessionID  uuid.UUID
	conn       net.Conn
	remoteAddr net.Addr
	acceptedAt time.Time

	pool   *mempool.Pool
	block  mempool.Block
	buffer []byte

	connected     atomic.Bool
	authenticated atomic.Bool
	bytesRead     atomic.Int64

	writeMu      sync.Mutex
	shutdownOnce sync.Once
	releaseOnce  sync.Once
}

// newConnection builds the record for conn and leases its buffer from pool.
// A failed lease (pool exhausted) is returned unchanged.
func newConnection(id uint64, conn net.Conn, pool *mempool.Pool) (*Connection, error) {
	block, err := pool.Lease()
	if err != nil {
		return nil, err
	}
	buffer, err := block.Bytes()
	if err != nil {
		_ = pool.Release(block)
		return nil, err
	}

	sessionID, err := uuid.NewUUID()
	if err != nil {
		// time based ids only fail without a clock sequence source
		sessionID = uuid.New()
	}

	c := &Connection{
		id:         id,
		sessionID:  sessionID,
		conn:       conn,
		remoteAddr: conn.RemoteAddr(),
		acceptedAt: time.Now(),
		pool:       pool,
		block:      block,
		buffer:     buffer,
	}
	c.connected.Store(true)
	return c, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.Session)
// --------------------------------------------------------------------------

func (c *Connection) ID() uint64 {
	return c.id
}

func (c *Connection) SessionID() uuid.UUID {
	return c.sessionID
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.remoteAddr
}

func (c *Connection) Authenticated() bool {
	return c.authenticated.Load()
}

func (c *Connection) SetAuthenticated(v bool) {
	c.authenticated.Store(v)
}

func (c *Connection) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(p)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// Connected reports whether the connection is still open
func (c *Connection) Connected() bool {
	return c.connected.Load()
}

// BytesRead returns the number of bytes read from the peer
func (c *Connection) BytesRead() int64 {
	return c.bytesRead.Load()
}

// Info returns a snapshot of the record
func (c *Connection) Info() transport.ConnectionInfo {
	remote := ""
	if c.remoteAddr != nil {
		remote = c.remoteAddr.String()
	}
	return transport.ConnectionInfo{
		ID:            c.id,
		SessionID:     c.sessionID.String(),
		RemoteAddr:    remote,
		Connected:     c.Connected(),
		Authenticated: c.Authenticated(),
		AcceptedAt:    c.acceptedAt,
		BytesRead:     c.BytesRead(),
	}
}

// shutdown marks the connection as disconnected and closes the peer socket.
// A blocked read returns with an error. The buffer stays leased.
func (c *Connection) shutdown() error {
	var err error
	c.shutdownOnce.Do(func() {
		c.connected.Store(false)
		err = c.conn.Close()
	})
	return err
}

// release shuts the connection down and returns the buffer to the pool. Must
// only be called by the owner of the buffer (the handler or the accept path
// before the handler was submitted).
func (c *Connection) release() error {
	_ = c.shutdown()
	var err error
	c.releaseOnce.Do(func() {
		c.buffer = nil
		err = c.pool.Release(c.block)
	})
	return err
}
