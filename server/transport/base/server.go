package base

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/giggle/lib/fault"
	"github.com/ValentinKolb/giggle/lib/mempool"
	"github.com/ValentinKolb/giggle/lib/workerpool"
	"github.com/ValentinKolb/giggle/server/common"
	"github.com/ValentinKolb/giggle/server/metrics"
	"github.com/ValentinKolb/giggle/server/transport"
	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

var Logger = logger.GetLogger("listener")

const (
	// acceptBackoff is the minimum interval between accept retries after an error
	acceptBackoff = 50 * time.Millisecond
	// acceptBurst is the number of accept errors tolerated without delay
	acceptBurst = 10
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(ctx context.Context, config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type serverTransport struct {
	connector IServerConnector
	handler   transport.ChunkHandler
	config    common.ServerConfig

	// listenerMu protects listener and closed, and publishes the resources
	// created by Listen to the status accessors
	listenerMu sync.Mutex
	listener   net.Listener
	closed     bool

	state     atomic.Int32
	running   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once

	live   atomic.Int64
	nextID atomic.Uint64
	conns  *xsync.MapOf[uint64, *Connection]

	blocks  *mempool.Pool
	workers *workerpool.Pool
	metrics *metrics.ListenerMetrics
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport for the given connector
func NewBaseServerTransport(connector IServerConnector) transport.IServerTransport {
	return &serverTransport{
		connector: connector,
		ready:     make(chan struct{}),
		conns:     xsync.NewMapOf[uint64, *Connection](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ChunkHandler) {
	t.handler = handler
}

func (t *serverTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	const op = "transport.Listen"

	// Waiters on Ready are released on every exit path, State tells them apart
	defer t.markReady()

	if !t.state.CompareAndSwap(int32(transport.StateCreated), int32(transport.StateListening)) {
		return fault.Newf(fault.KindLogicFailure, op, "transport is %s", t.State())
	}
	if err := config.Validate(); err != nil {
		t.state.Store(int32(transport.StateClosed))
		return err
	}

	if err := t.init(config); err != nil {
		t.state.Store(int32(transport.StateClosed))
		return err
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(ctx, config)
	if err != nil {
		t.teardownPools()
		t.state.Store(int32(transport.StateClosed))
		if ctx.Err() != nil {
			// shutdown requested while binding
			Logger.Infof("Context canceled before %s listened on %s", t.connector.GetName(), config.Endpoint())
			return nil
		}
		return fault.Wrapf(fault.KindSystemFailure, op, err, "failed to listen on %s", config.Endpoint())
	}

	t.listenerMu.Lock()
	if t.closed {
		// Close was called before the listener existed
		t.listenerMu.Unlock()
		_ = listener.Close()
		t.teardownPools()
		t.state.Store(int32(transport.StateClosed))
		return nil
	}
	t.listener = listener
	t.running.Store(true)
	t.listenerMu.Unlock()
	t.markReady()

	Logger.Infof("Starting %s server on %s (max %d connections, %d workers)",
		t.connector.GetName(), listener.Addr(), config.Transport.MaxConnections, t.workers.Workers())

	// Close the transport when the context is canceled
	loopDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			Logger.Infof("Context canceled, closing %s server", t.connector.GetName())
			if err := t.Close(); err != nil {
				Logger.Warningf("Close after cancel: %v", err)
			}
		case <-loopDone:
		}
	}()

	t.acceptLoop(ctx, listener)
	close(loopDone)

	// Let every submitted handler run to completion, then free the buffers
	t.workers.Shutdown()
	if err := t.blocks.Close(); err != nil {
		Logger.Warningf("Failed to close block pool: %v", err)
	}
	t.state.Store(int32(transport.StateClosed))

	Logger.Infof("%s server on %s stopped", t.connector.GetName(), listener.Addr())
	return nil
}

func (t *serverTransport) Ready() <-chan struct{} {
	return t.ready
}

func (t *serverTransport) Close() error {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.running.Store(false)

	if !t.state.CompareAndSwap(int32(transport.StateListening), int32(transport.StateClosing)) {
		t.state.CompareAndSwap(int32(transport.StateCreated), int32(transport.StateClosed))
	}

	var result *multierror.Error

	// Force every handler out of its blocking read
	t.conns.Range(func(id uint64, c *Connection) bool {
		if err := c.shutdown(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
		return true
	})

	// Unblock Accept
	if t.listener != nil {
		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func (t *serverTransport) Addr() net.Addr {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) State() transport.State {
	return transport.State(t.state.Load())
}

func (t *serverTransport) Live() int64 {
	return t.live.Load()
}

func (t *serverTransport) Connections() []transport.ConnectionInfo {
	infos := make([]transport.ConnectionInfo, 0, t.conns.Size())
	t.conns.Range(func(id uint64, c *Connection) bool {
		infos = append(infos, c.Info())
		return true
	})
	return infos
}

func (t *serverTransport) Stats() transport.Stats {
	t.listenerMu.Lock()
	config, listener, blocks, workers, m := t.config, t.listener, t.blocks, t.workers, t.metrics
	t.listenerMu.Unlock()

	s := transport.Stats{
		Transport:      t.connector.GetName(),
		State:          t.State(),
		Live:           t.Live(),
		MaxConnections: config.Transport.MaxConnections,
	}
	if listener != nil {
		s.Endpoint = listener.Addr().String()
	}
	if m != nil {
		s.Accepted = m.Accepted.Get()
		s.RejectedOverflow = m.RejectedOverflow.Get()
		s.RejectedExhausted = m.RejectedExhausted.Get()
		s.RejectedStopped = m.RejectedStopped.Get()
		s.AcceptErrors = m.AcceptErrors.Get()
		s.BytesRead = m.BytesRead.Get()
	}
	if blocks != nil {
		s.Blocks = blocks.Stats()
	}
	if workers != nil {
		s.Workers = workers.Stats()
	}
	return s
}

func (t *serverTransport) WriteMetrics(w io.Writer) {
	t.listenerMu.Lock()
	m := t.metrics
	t.listenerMu.Unlock()

	if m != nil {
		m.WritePrometheus(w)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see metrics.GaugeSource)
// --------------------------------------------------------------------------

func (t *serverTransport) PoolAllocated() int {
	return t.blocks.Allocated()
}

func (t *serverTransport) PoolAvailable() int {
	return t.blocks.Available()
}

func (t *serverTransport) WorkersBusy() int64 {
	return t.workers.Stats().Busy
}

func (t *serverTransport) TasksPending() int64 {
	return t.workers.Stats().Pending
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// init creates the block pool, the worker pool and the metrics
func (t *serverTransport) init(config common.ServerConfig) error {
	pc := config.BlockPool
	blocks, err := mempool.New(pc.BlockSize, pc.PreAlloc, pc.MaxAlloc)
	if err != nil {
		return err
	}

	workers, err := workerpool.New(config.WorkerCount(), workerpool.WithName(t.connector.GetName()+"-handlers"))
	if err != nil {
		_ = blocks.Close()
		return err
	}

	t.listenerMu.Lock()
	t.config = config
	t.blocks = blocks
	t.workers = workers
	t.metrics = metrics.NewListenerMetrics(config.Endpoint(), t)
	t.listenerMu.Unlock()
	return nil
}

// markReady releases all waiters on Ready
func (t *serverTransport) markReady() {
	t.readyOnce.Do(func() { close(t.ready) })
}

// teardownPools releases the pools after a failed start
func (t *serverTransport) teardownPools() {
	t.workers.Shutdown()
	_ = t.blocks.Close()
}

// acceptLoop accepts connections until the transport is closed
func (t *serverTransport) acceptLoop(ctx context.Context, listener net.Listener) {
	limiter := rate.NewLimiter(rate.Every(acceptBackoff), acceptBurst)

	for t.running.Load() {
		conn, err := listener.Accept()
		if err != nil {
			if !t.running.Load() {
				break
			}
			t.metrics.AcceptErrors.Inc()
			Logger.Errorf("Accept error: %v", err)

			// Back off so a persistent error does not spin the loop
			if werr := limiter.Wait(ctx); werr != nil {
				Logger.Debugf("Accept backoff interrupted: %v", werr)
				if ctx.Err() != nil {
					break
				}
			}
			continue
		}

		t.accept(conn)
	}
}

// accept admits or rejects one connection
func (t *serverTransport) accept(conn net.Conn) {
	// Connections accepted concurrently with Close are dropped
	if !t.running.Load() {
		_ = conn.Close()
		t.metrics.RejectedStopped.Inc()
		return
	}

	// Reject on overflow
	if live := t.live.Add(1); live > int64(t.config.Transport.MaxConnections) {
		_ = conn.Close()
		t.live.Add(-1)
		t.metrics.RejectedOverflow.Inc()
		Logger.Warningf("Rejected connection from %s: %d connections open", conn.RemoteAddr(), live-1)
		return
	}

	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
	}

	c, err := newConnection(t.nextID.Add(1), conn, t.blocks)
	if err != nil {
		_ = conn.Close()
		t.live.Add(-1)
		t.metrics.RejectedExhausted.Inc()
		Logger.Warningf("Rejected connection from %s: %v", conn.RemoteAddr(), err)
		return
	}

	t.conns.Store(c.id, c)

	// Close may have run its sweep before the record was stored
	if !t.running.Load() {
		t.teardown(c)
		t.metrics.RejectedStopped.Inc()
		return
	}

	if _, err := t.workers.Submit(func() (interface{}, error) {
		return nil, t.handle(c)
	}); err != nil {
		t.teardown(c)
		t.metrics.RejectedStopped.Inc()
		Logger.Warningf("Rejected connection from %s: %v", c.remoteAddr, err)
		return
	}

	t.metrics.Accepted.Inc()
	Logger.Debugf("Accepted connection %d (%s) from %s", c.id, c.sessionID, c.remoteAddr)
}

// teardown removes the record from the live set and releases its buffer.
// Only the first call for a record has an effect.
func (t *serverTransport) teardown(c *Connection) {
	if _, ok := t.conns.LoadAndDelete(c.id); !ok {
		return
	}
	if err := c.release(); err != nil {
		Logger.Errorf("Failed to release buffer of connection %d: %v", c.id, err)
	}
	t.live.Add(-1)
}

// handle is the per-connection handler running on a worker. It reads chunks
// into the connection buffer and passes them to the registered handler.
func (t *serverTransport) handle(c *Connection) (err error) {
	start := time.Now()
	defer func() {
		t.teardown(c)
		t.metrics.ObserveHandled(start)
		if err != nil {
			Logger.Warningf("Connection %d from %s failed: %v", c.id, c.remoteAddr, err)
		} else {
			Logger.Debugf("Connection %d from %s closed after %s", c.id, c.remoteAddr, time.Since(start))
		}
	}()

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	for c.Connected() {
		if timeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return fault.Wrap(fault.KindSystemFailure, "transport.handle", err)
			}
		}

		n, rerr := c.conn.Read(c.buffer)
		if n > 0 {
			c.bytesRead.Add(int64(n))
			t.metrics.BytesRead.Add(n)
			if t.handler != nil {
				if herr := t.handler(c, c.buffer[:n]); herr != nil {
					return herr
				}
			}
		}

		if rerr != nil {
			return t.readError(c, rerr)
		}
		if t.config.ReadMode == common.ReadModeOnce {
			return nil
		}
	}
	return nil
}

// readError maps a read error to the handler result. Regular ends of a
// connection are not errors.
func (t *serverTransport) readError(c *Connection, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || !c.Connected() {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fault.Wrapf(fault.KindTimeout, "transport.handle", err, "no data from %s within %ds", c.remoteAddr, t.config.TimeoutSecond)
	}
	return fault.Wrap(fault.KindSystemFailure, "transport.handle", err)
}
