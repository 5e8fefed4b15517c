package server

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/ValentinKolb/giggle/server/common"
	"github.com/ValentinKolb/giggle/server/transport"
	statushttp "github.com/ValentinKolb/giggle/server/transport/http"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("server")

// Server runs a server transport together with its optional status endpoint
type Server struct {
	config    common.ServerConfig
	transport transport.IServerTransport
}

// NewServer creates a new server
// It takes a config and a transport as parameters
//
// Usage:
//
//	s := server.NewServer(config, tcp.NewTCPServerTransport())
//
//	if err := s.Serve(context.Background()); err != nil {
//		panic(err)
//	}
func NewServer(config common.ServerConfig, t transport.IServerTransport) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created giggle server")
	Logger.Infof("%s", config.String())

	return &Server{
		config:    config,
		transport: t,
	}
}

// Transport returns the transport of the server
func (s *Server) Transport() transport.IServerTransport {
	return s.transport
}

// Serve runs the transport until ctx is canceled, Close is called on the
// transport or the process receives SIGINT, SIGTERM or SIGQUIT. Startup
// failures of the transport or the status server are returned.
func (s *Server) Serve(ctx context.Context) error {
	s.registerTransportHandler()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// Ends the status server once the listener returned
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return s.transport.Listen(gctx, s.config)
	})

	if s.config.StatusEndpoint != "" {
		debug := strings.EqualFold(s.config.LogLevel, "debug")
		status := statushttp.NewStatusServer(s.config.StatusEndpoint, s.transport, debug)
		g.Go(func() error {
			return status.Serve(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		Logger.Errorf("Server stopped with error: %v", err)
		return err
	}

	Logger.Infof("Server stopped")
	return nil
}

// registerTransportHandler installs the chunk handler selected by the config
func (s *Server) registerTransportHandler() {
	if s.config.Echo {
		s.transport.RegisterHandler(func(sess transport.Session, chunk []byte) error {
			_, err := sess.Write(chunk)
			return err
		})
		return
	}

	s.transport.RegisterHandler(func(sess transport.Session, chunk []byte) error {
		Logger.Debugf("Connection %d (%s): discarded %d bytes", sess.ID(), sess.RemoteAddr(), len(chunk))
		return nil
	})
}
