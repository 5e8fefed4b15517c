// Package common contains the configuration and logging shared by all parts of
// the giggle server.
//
// Key Components:
//
//   - ServerConfig: the complete listener configuration (transport, block pool,
//     worker pool, handler behaviour, logging). It validates itself and renders a
//     sectioned, human readable summary with String.
//
//   - Logger factory: CreateLogger implements the dragonboat logger.ILogger
//     factory with a compact "LEVEL | package | message" format. InitLoggers
//     installs it and sets the level of every giggle logger from the config.
//
// Defaults follow the reference deployment: 128 concurrent connections, half as
// many workers, 4 KB blocks.
package common
