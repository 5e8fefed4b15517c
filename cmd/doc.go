// Package cmd implements the command-line interface of giggle. It provides a
// hierarchical command structure for running the server and exercising it.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the giggle server
//   - probe: Command opening concurrent connections to observe admission control
//   - config: Command printing the effective configuration
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See giggle -help for a list of all commands.
package cmd
