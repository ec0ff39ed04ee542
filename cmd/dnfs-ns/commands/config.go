package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dnfs-project/dnfs/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "manage the name server's configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "write a default config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(args[0], config.DefaultNameServerConfig()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
