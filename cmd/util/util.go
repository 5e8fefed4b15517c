package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/giggle/server/common"
	"github.com/ValentinKolb/giggle/server/transport"
	"github.com/ValentinKolb/giggle/server/transport/base"
	"github.com/ValentinKolb/giggle/server/transport/tcp"
	"github.com/ValentinKolb/giggle/server/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by giggle
	EnvPrefix = "giggle"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitConfig loads the env files, the optional config file and enables the
// environment variable lookup
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// ReadConfigFile reads the config file named by the config flag, if any
func ReadConfigFile() error {
	path := viper.GetString("config")
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %v", path, err)
	}
	return nil
}

// BindCommandFlags binds a command's flags to viper and reads the config file
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return ReadConfigFile()
}

// --------------------------------------------------------------------------
// Server flags
// --------------------------------------------------------------------------

// ServerFlags returns the flag set with all server configuration flags
func ServerFlags() *pflag.FlagSet {
	defaults := common.DefaultServerConfig()
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)

	key := "transport"
	fs.String(key, string(defaults.Transport.Kind), WrapString("transport to listen on (tcp, unix)"))

	key = "host"
	fs.String(key, defaults.Transport.Host, WrapString("The address the tcp transport binds to"))

	key = "port"
	fs.Int(key, 8080, WrapString("The port the tcp transport listens on"))

	key = "socket-path"
	fs.String(key, "/tmp/giggle.sock", WrapString("The path of the unix socket (only for unix transport)"))

	key = "max-connections"
	fs.Int(key, defaults.Transport.MaxConnections, WrapString("The maximum number of simultaneously handled connections. Further connections are closed right after accept"))

	key = "workers"
	fs.Int(key, 0, WrapString("The number of worker goroutines handling connections (0 = max-connections / 2, at least 1)"))

	key = "block-size"
	fs.Int(key, defaults.BlockPool.BlockSize, WrapString("The size of the per-connection read buffer in bytes"))

	key = "pre-alloc"
	fs.Int(key, defaults.BlockPool.PreAlloc, WrapString("The number of buffers allocated at startup"))

	key = "max-blocks"
	fs.Int(key, defaults.BlockPool.MaxAlloc, WrapString("The maximum number of buffers (0 = unbounded). Connections that get no buffer are rejected"))

	key = "read-mode"
	fs.String(key, string(defaults.ReadMode), WrapString("How much a connection handler reads: once (one chunk, then close) or drain (until the peer closes)"))

	key = "timeout"
	fs.Int64(key, defaults.TimeoutSecond, WrapString("Read timeout in seconds, idle connections are closed after it (0 = none)"))

	key = "echo"
	fs.Bool(key, defaults.Echo, WrapString("Echo every received chunk back to the peer instead of discarding it"))

	key = "status-endpoint"
	fs.String(key, defaults.StatusEndpoint, WrapString("The address of the HTTP status server serving /metrics and /status (empty = disabled)"))

	key = "log-level"
	fs.String(key, defaults.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "tcp-nodelay"
	fs.Bool(key, defaults.Transport.TCPNoDelay, WrapString("Whether to enable TCP_NODELAY on accepted connections (only for tcp)"))

	key = "tcp-keepalive"
	fs.Int(key, defaults.Transport.TCPKeepAliveSec, WrapString("The keepalive interval in seconds (0 = disabled, only for tcp)"))

	key = "tcp-linger"
	fs.Int(key, defaults.Transport.TCPLingerSec, WrapString("The linger time in seconds (-1 = OS default, only for tcp)"))

	key = "reuse-addr"
	fs.Bool(key, defaults.Transport.ReuseAddr, WrapString("Whether to set SO_REUSEADDR on the listening socket (only for tcp)"))

	key = "read-buffer"
	fs.Int(key, 0, WrapString("The socket read buffer size in KB (0 = OS default)"))

	key = "write-buffer"
	fs.Int(key, 0, WrapString("The socket write buffer size in KB (0 = OS default)"))

	return fs
}

// GetServerConfig reads the server configuration from viper and validates it
func GetServerConfig() (common.ServerConfig, error) {
	conf := common.ServerConfig{
		Transport: common.TransportConfig{
			Kind:           common.TransportKind(viper.GetString("transport")),
			Host:           viper.GetString("host"),
			Port:           viper.GetInt("port"),
			SocketPath:     viper.GetString("socket-path"),
			MaxConnections: viper.GetInt("max-connections"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPNoDelay:      viper.GetBool("tcp-nodelay"),
				TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("tcp-linger"),
				ReuseAddr:       viper.GetBool("reuse-addr"),
			},
		},
		BlockPool: common.BlockPoolConfig{
			BlockSize: viper.GetInt("block-size"),
			PreAlloc:  viper.GetInt("pre-alloc"),
			MaxAlloc:  viper.GetInt("max-blocks"),
		},
		Workers:        viper.GetInt("workers"),
		ReadMode:       common.ReadMode(viper.GetString("read-mode")),
		TimeoutSecond:  viper.GetInt64("timeout"),
		Echo:           viper.GetBool("echo"),
		StatusEndpoint: viper.GetString("status-endpoint"),
		LogLevel:       viper.GetString("log-level"),
	}

	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

// --------------------------------------------------------------------------
// Transport factories
// --------------------------------------------------------------------------

// GetServerTransport creates the server transport of the given kind
func GetServerTransport(kind common.TransportKind) (transport.IServerTransport, error) {
	switch kind {
	case common.TransportTCP:
		return tcp.NewTCPServerTransport(), nil
	case common.TransportUnix:
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", kind)
	}
}

// GetClientConnector creates the client connector of the given kind
func GetClientConnector(kind common.TransportKind) (base.IClientConnector, error) {
	switch kind {
	case common.TransportTCP:
		return tcp.NewTCPClientConnector(), nil
	case common.TransportUnix:
		return unix.NewUnixClientConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", kind)
	}
}
