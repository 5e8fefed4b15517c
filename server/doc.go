// Package server wires a giggle server transport into a runnable server.
//
// Serve registers the chunk handler (echo or discard), runs the transport and,
// when a status endpoint is configured, the HTTP status server side by side in
// an errgroup. SIGINT, SIGTERM and SIGQUIT cancel the server context, which
// closes the transport; Listen then drains the worker pool and Serve returns
// nil.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Transport.Port = 8080
//
//	s := server.NewServer(config, tcp.NewTCPServerTransport())
//	if err := s.Serve(context.Background()); err != nil {
//	  log.Fatal(err)
//	}
package server
