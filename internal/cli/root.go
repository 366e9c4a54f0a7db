// Package cli implements the Cobra-based command-line interface for
// confluence-sync.
//
// The CLI provides commands for initializing a sync root, performing a
// one-shot pull/push/sync, running the long-lived watch daemon, auditing
// page health, checking external links, and inspecting or resolving
// conflicts.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adamancini/confluence-sync/internal/config"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags.
	cfgFile string
	verbose bool

	// Loaded configuration.
	cfg *config.Config
)

// SetVersion sets the version information for the CLI.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "confluence-sync",
	Short: "Bidirectional sync between a local directory tree and Confluence",
	Long: `confluence-sync mirrors a Confluence space (or a subtree of one)
onto a local directory of Markdown files, preserving the page
hierarchy as nested directories and round-tripping page bodies,
attachments, and labels.

Use 'confluence-sync init' to bind a local directory to a space,
then 'confluence-sync sync' for a one-shot pull+push, or
'confluence-sync watch' to run the long-lived sync daemon.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init does not require an existing config.
		if cmd.Name() == "init" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			if verbose {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.confluence-sync.yaml or $HOME/.config/confluence-sync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("confluence-sync %s (commit: %s, built: %s)\n", version, commit, date))

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(deleteCmd)
}

// ErrNoConfig is returned when no configuration is available.
var ErrNoConfig = fmt.Errorf("no configuration found - run 'confluence-sync init' first")

// getConfig returns the loaded configuration or an error if not available.
func getConfig() (*config.Config, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}
	return cfg, nil
}
