// Package util contains the helpers shared by the giggle commands: help text
// wrapping, the server flag set, configuration loading (env files, environment
// variables with the GIGGLE_ prefix, optional YAML config file) and the
// transport factories.
package util
