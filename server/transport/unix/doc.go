// Package unix provides the Unix domain socket connectors for the giggle base
// transport. A stale socket file left behind by a crashed server is removed
// before binding; the file is unlinked again when the listener closes.
package unix
