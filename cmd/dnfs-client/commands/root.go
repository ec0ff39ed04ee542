package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dnfs-project/dnfs/internal/cli/prompt"
	"github.com/dnfs-project/dnfs/internal/logger"
	"github.com/dnfs-project/dnfs/pkg/client"
	"github.com/dnfs-project/dnfs/pkg/config"
)

// Version/Commit/Date are set from main via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "dnfs-client <ns_ip> <ns_port>",
	Short: "interactive DNFS client shell",
	Long: `dnfs-client connects to a name server, logs in an interactively
prompted username, and drops into the command shell described in
spec.md §6.`,
	Args: cobra.ExactArgs(2),
	RunE: runClient,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default: $XDG_CONFIG_HOME/dnfs/client.yaml)")
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string { return configFile }

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runClient(cmd *cobra.Command, args []string) error {
	nsIP, nsPort := args[0], args[1]

	cfg, err := config.LoadClientConfig(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	username, err := prompt.RawLine("Enter username: ")
	if err != nil {
		if prompt.IsEOF(err) || prompt.IsAborted(err) {
			return nil
		}
		return fmt.Errorf("read username: %w", err)
	}

	c := client.New(fmt.Sprintf("%s:%s", nsIP, nsPort), cfg.DialTimeout, cfg.RequestTimeout)
	if err := c.Login(username); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer c.Close()

	repl := client.NewREPL(c, os.Stdout, os.Stderr)
	return repl.Run()
}
