package config

import (
	"fmt"
	"os"

	cmdUtil "github.com/ValentinKolb/giggle/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective server configuration",
	Long: `Print the effective server configuration as YAML. Flags, environment variables and the config file are merged the same way as for the serve command, so the output can be saved and passed back with --config.

With --summary the validated configuration is printed in a human readable form instead.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return cmdUtil.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	ConfigCmd.Flags().AddFlagSet(cmdUtil.ServerFlags())
	ConfigCmd.Flags().Bool("summary", false, cmdUtil.WrapString("Print a validated, human readable summary instead of YAML"))
}

// run prints the configuration
func run(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("summary") {
		conf, err := cmdUtil.GetServerConfig()
		if err != nil {
			return err
		}
		fmt.Print(conf.String())
		return nil
	}

	doc, err := Document(cmdUtil.ServerFlags())
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// Document builds a YAML mapping with the effective value of every flag in fs,
// in flag declaration order
func Document(fs *pflag.FlagSet) (*yaml.Node, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	fs.SortFlags = false

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		value := &yaml.Node{}
		if encErr := value.Encode(viper.Get(f.Name)); encErr != nil {
			err = encErr
			return
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			value,
		)
	})
	return doc, err
}
