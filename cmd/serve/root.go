package serve

import (
	"context"

	cmdUtil "github.com/ValentinKolb/giggle/cmd/util"
	"github.com/ValentinKolb/giggle/server"
	"github.com/ValentinKolb/giggle/server/common"
	"github.com/spf13/cobra"
)

var (
	serveCmdConfig = common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the giggle server",
		Long: `Start the giggle server with the specified configuration. The configuration can be set via command line flags, environment variables or a config file. The format of the environment variables is GIGGLE_<flag> (e.g. GIGGLE_MAX_CONNECTIONS=64)

Connections beyond max-connections, and connections for which no buffer can be leased, are closed right after they were accepted. SIGINT, SIGTERM and SIGQUIT stop the server gracefully.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	ServeCmd.PersistentFlags().AddFlagSet(cmdUtil.ServerFlags())
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf, err := cmdUtil.GetServerConfig()
	if err != nil {
		return err
	}
	serveCmdConfig = conf

	return common.InitLoggers(serveCmdConfig)
}

// run starts the giggle server
func run(cmd *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport(serveCmdConfig.Transport.Kind)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return server.NewServer(serveCmdConfig, t).Serve(ctx)
}
