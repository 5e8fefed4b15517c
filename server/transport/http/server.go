package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ValentinKolb/giggle/server/metrics"
	"github.com/ValentinKolb/giggle/server/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/http")

const shutdownTimeout = 5 * time.Second

// StatusServer serves the metrics and status documents of a server transport
type StatusServer struct {
	endpoint string
	source   transport.IServerTransport
	debug    bool
}

// statusDocument is the body of GET /status
type statusDocument struct {
	Stats       transport.Stats            `json:"stats"`
	Connections []transport.ConnectionInfo `json:"connections,omitempty"`
}

// NewStatusServer creates a status server for source listening on endpoint.
// With debug set every request is logged.
func NewStatusServer(endpoint string, source transport.IServerTransport, debug bool) *StatusServer {
	return &StatusServer{
		endpoint: endpoint,
		source:   source,
		debug:    debug,
	}
}

// Handler returns the request multiplexer of the status server
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()

	register := func(pattern string, h http.HandlerFunc) {
		if s.debug {
			h = loggerMiddleware(h)
		}
		mux.HandleFunc(pattern, h)
	}

	register("GET /metrics", s.handleMetrics)
	register("GET /status", s.handleStatus)
	register("GET /connections", s.handleConnections)

	return mux
}

// Serve runs the status server until ctx is canceled. A canceled context is a
// regular shutdown and returns nil.
func (s *StatusServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.endpoint)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener is Serve on an existing listener
func (s *StatusServer) ServeListener(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			Logger.Warningf("Status server shutdown: %v", err)
		}
	}()

	Logger.Infof("Starting status server on %s", listener.Addr())

	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

// handleMetrics writes the transport and process metrics in Prometheus format
func (s *StatusServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.source.WriteMetrics(w)
	metrics.WriteProcessMetrics(w)
}

// handleStatus writes the transport statistics as JSON
func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc := statusDocument{Stats: s.source.Stats()}
	if r.URL.Query().Get("connections") == "true" {
		doc.Connections = s.source.Connections()
	}
	writeJSON(w, doc)
}

// handleConnections writes the tracked connections as JSON
func (s *StatusServer) handleConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.source.Connections())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}
