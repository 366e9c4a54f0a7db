// Package main provides the entry point for the confluence-sync CLI tool.
//
// confluence-sync is a bidirectional synchronization tool between a local
// tree of Markdown files and a Confluence space. It tracks page identity,
// content hashes, and link graphs in a local state store, and reconciles
// local edits with remote changes through a single per-page queue.
package main

import (
	"os"

	"github.com/adamancini/confluence-sync/internal/cli"
)

// Version information set by build flags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersion(version, commit, date)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
