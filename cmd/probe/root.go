package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	cmdUtil "github.com/ValentinKolb/giggle/cmd/util"
	"github.com/ValentinKolb/giggle/server/common"
	"github.com/ValentinKolb/giggle/server/transport/base"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultHold        = 500 * time.Millisecond
	defaultDialTimeout = 5 * time.Second
)

var ProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Open concurrent connections against a giggle server",
	Long: `Open a number of connections at the same time, optionally send a payload on each, and report which connections the server kept open and which it closed.

With max-connections=2 on the server, probing with 3 connections reports 2 held and 1 closed connection.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return cmdUtil.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	key := "endpoint"
	ProbeCmd.Flags().String(key, "localhost:8080", cmdUtil.WrapString("The address of the server (host:port for tcp, socket path for unix)"))

	key = "transport"
	ProbeCmd.Flags().String(key, "tcp", cmdUtil.WrapString("The transport to connect with (tcp, unix)"))

	key = "connections"
	ProbeCmd.Flags().Int(key, 3, cmdUtil.WrapString("The number of concurrent connections to open"))

	key = "payload"
	ProbeCmd.Flags().String(key, "", cmdUtil.WrapString("Data to send on every connection"))

	key = "hold"
	ProbeCmd.Flags().Duration(key, defaultHold, cmdUtil.WrapString("How long every connection waits for the server to close it"))

	key = "dial-timeout"
	ProbeCmd.Flags().Duration(key, defaultDialTimeout, cmdUtil.WrapString("The timeout for establishing a connection"))

	key = "json"
	ProbeCmd.Flags().Bool(key, false, cmdUtil.WrapString("Print the results as JSON"))
}

// run opens the connections and prints the results
func run(cmd *cobra.Command, _ []string) error {
	connector, err := cmdUtil.GetClientConnector(common.TransportKind(viper.GetString("transport")))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results, err := base.Probe(ctx, connector, base.ProbeConfig{
		Endpoint:    viper.GetString("endpoint"),
		Connections: viper.GetInt("connections"),
		Payload:     []byte(viper.GetString("payload")),
		Hold:        viper.GetDuration("hold"),
		DialTimeout: viper.GetDuration("dial-timeout"),
	})
	if err != nil {
		return err
	}

	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	return printResults(results)
}

// printResults prints one line per connection and a summary
func printResults(results []base.ProbeResult) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CONN\tSTATUS\tRESPONSE\tERROR")

	held, closed, failed := 0, 0, 0
	for _, r := range results {
		status := "held"
		switch {
		case !r.Connected:
			status = "failed"
			failed++
		case r.ClosedByServer:
			status = "closed"
			closed++
		default:
			held++
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%q\t%s\n", r.Index, status, r.Response, r.Err)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d held, %d closed by server, %d failed\n", held, closed, failed)
	return nil
}
