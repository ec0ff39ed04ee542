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
	Use:   "dnfs-ss",
	Short: "DNFS storage server",
	Long: `dnfs-ss runs one DNFS storage server: sentence-granular file
storage, swapfile/undo-backed writes, checkpointing, and primary/backup
replication with its ring neighbor, described in spec.md §4.3/§4.4.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default: $XDG_CONFIG_HOME/dnfs/ss.yaml)")
	rootCmd.AddCommand(startCmd)
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string { return configFile }

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
