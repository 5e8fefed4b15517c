package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/giggle/cmd/config"
	"github.com/ValentinKolb/giggle/cmd/probe"
	"github.com/ValentinKolb/giggle/cmd/serve"
	"github.com/ValentinKolb/giggle/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "giggle",
		Short: "bounded concurrent stream server",
		Long: fmt.Sprintf(`giggle (v%s)

A concurrent TCP / Unix socket server that bounds the number of handled
connections, hands them to a fixed pool of workers and reads into
pooled fixed size buffers.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of giggle",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("giggle v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(probe.ProbeCmd)
	RootCmd.AddCommand(config.ConfigCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "config"
	RootCmd.PersistentFlags().String(key, "", util.WrapString("Path to a YAML config file with flag names as keys (see giggle config)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
