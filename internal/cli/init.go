package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamancini/confluence-sync/internal/config"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
)

var (
	initWorkDir    string
	initBaseURL    string
	initToken      string
	initSpaceKey   string
	initRootPage   string
	initConfigPath string
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bind a local directory to a Confluence space",
	Long: `Initialize a new confluence-sync configuration.

This command creates the configuration file and local state directory
used to track sync state between a local directory tree and a
Confluence space (or a subtree of one).

Example:
  confluence-sync init \
    --dir ~/docs \
    --base-url https://example.atlassian.net/wiki \
    --token $CONFLUENCE_TOKEN \
    --space ENG`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initWorkDir, "dir", "", "local directory to sync (required)")
	initCmd.Flags().StringVar(&initBaseURL, "base-url", "", "Confluence space base URL (required)")
	initCmd.Flags().StringVar(&initToken, "token", "", "Confluence API token (required)")
	initCmd.Flags().StringVar(&initSpaceKey, "space", "", "Confluence space key (required)")
	initCmd.Flags().StringVar(&initRootPage, "root-page", "", "restrict sync to this page's subtree (default: whole space)")
	initCmd.Flags().StringVar(&initConfigPath, "config-path", "", "path to write config file (default: dir/.confluence-sync.yaml)")

	_ = initCmd.MarkFlagRequired("dir")
	_ = initCmd.MarkFlagRequired("base-url")
	_ = initCmd.MarkFlagRequired("token")
	_ = initCmd.MarkFlagRequired("space")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println("Initializing confluence-sync...")

	workDir, err := expandAndValidateDir(initWorkDir)
	if err != nil {
		return err
	}
	fmt.Printf("  ✓ Directory: %s\n", workDir)

	client := remoteapi.NewHTTPClient(initBaseURL, initToken)
	if err := validateToken(ctx, client, initSpaceKey); err != nil {
		return fmt.Errorf("invalid credentials or space: %w", err)
	}
	fmt.Printf("  ✓ Space: %s\n", initSpaceKey)

	configPath := initConfigPath
	if configPath == "" {
		configPath = filepath.Join(workDir, ".confluence-sync.yaml")
	}
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (use --config-path to specify a different location)", configPath)
	}

	newCfg := config.DefaultConfig()
	newCfg.WorkDir = workDir
	newCfg.Remote.BaseURL = initBaseURL
	newCfg.Remote.Token = "${CONFLUENCE_TOKEN}"
	newCfg.Scope.SpaceKey = initSpaceKey
	newCfg.Scope.RootPageID = initRootPage

	if err := newCfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("  ✓ Config file: %s\n", configPath)

	db, err := openStore(newCfg)
	if err != nil {
		return fmt.Errorf("init state database: %w", err)
	}
	defer db.Close()
	fmt.Printf("  ✓ State database: %s\n", filepath.Join(workDir, ".syncroot", "state.db"))

	fmt.Println("\nInitialization complete!")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set CONFLUENCE_TOKEN environment variable")
	fmt.Println("  2. Run 'confluence-sync sync' for a first pull")
	fmt.Println("  3. Run 'confluence-sync watch' to keep both sides in sync continuously")

	return nil
}

// expandAndValidateDir expands ~ and validates the directory exists.
func expandAndValidateDir(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("directory does not exist: %s", absPath)
	}
	if err != nil {
		return "", fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", absPath)
	}

	return absPath, nil
}

// validateToken confirms the token can list pages in the target space.
func validateToken(ctx context.Context, client remoteapi.Client, spaceKey string) error {
	_, err := client.GetAllPages(ctx, remoteapi.Scope{SpaceKey: spaceKey})
	return err
}
