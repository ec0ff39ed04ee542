package commands

import (
	"github.com/spf13/cobra"
)

// Version/Commit/Date are set from main via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "dnfs-ns",
	Short: "DNFS name server",
	Long: `dnfs-ns runs the DNFS name server: the user registry, access
control table, file placement map, storage-server ring, and resolution
cache described in spec.md §4.2.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default: $XDG_CONFIG_HOME/dnfs/ns.yaml)")
	rootCmd.AddCommand(startCmd)
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string { return configFile }

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
