package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"go.uber.org/zap"

	"github.com/adamancini/confluence-sync/internal/logging"
	"github.com/adamancini/confluence-sync/internal/poller"
	"github.com/adamancini/confluence-sync/internal/reconcile"
	"github.com/adamancini/confluence-sync/internal/remoteapi"
	"github.com/adamancini/confluence-sync/internal/watcher"
	"github.com/adamancini/confluence-sync/internal/webhook"
)

var (
	watchPollInterval string
	watchStrategy     string
)

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the local directory and sync continuously",
	Long: `Run the sync daemon: watch the local directory for changes and push
them, poll (and optionally receive webhooks from) Confluence for remote
changes and pull them, all through a single per-page-serialized
reconciliation queue (§4.8).

Examples:
  confluence-sync watch                       # Watch with default settings
  confluence-sync watch --poll-interval 1m    # Poll Confluence every minute
  confluence-sync watch --strategy ours       # Auto-resolve conflicts with local version

Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchPollInterval, "poll-interval", "", "remote poll interval (default: config value)")
	watchCmd.Flags().StringVar(&watchStrategy, "strategy", "", "conflict resolution strategy override (ours|theirs|manual|newer)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	if watchStrategy != "" {
		cfg.Sync.ConflictStrategy = watchStrategy
	}

	pollInterval := cfg.Sync.PollInterval
	if watchPollInterval != "" {
		d, err := time.ParseDuration(watchPollInterval)
		if err != nil {
			return fmt.Errorf("invalid --poll-interval: %w", err)
		}
		pollInterval = d
	}

	if err := reconcile.AcquireLock(cfg.WorkDir); err != nil {
		return err
	}
	defer func() { _ = reconcile.ReleaseLock(cfg.WorkDir) }()

	log, err := logging.New(verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state database: %w (run 'confluence-sync init' first)", err)
	}
	defer db.Close()

	client := buildClient(cfg)
	matcher := buildMatcher(cfg)
	engine := buildEngine(cfg, client, db, matcher, log, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Watching: %s\n", cfg.WorkDir)
	fmt.Printf("Poll interval: %s\n", pollInterval)
	if cfg.Watch.WebhookEnabled {
		fmt.Printf("Webhook: listening on :%d%s\n", cfg.Watch.WebhookPort, cfg.Watch.WebhookPath)
	}
	fmt.Printf("Conflict strategy: %s\n", cfg.Sync.ConflictStrategy)
	fmt.Println("\nRunning initial sync...")
	if err := engine.InitialSync(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	fmt.Println("Press Ctrl+C to stop...")
	fmt.Println()

	events := make(chan poller.Event, 64)
	scope := remoteapi.Scope{SpaceKey: cfg.Scope.SpaceKey, RootID: cfg.Scope.RootPageID}
	remotePoller := poller.New(client, scope, pollInterval, events, log)
	if err := remotePoller.Prime(ctx); err != nil {
		return fmt.Errorf("prime poller snapshot: %w", err)
	}
	go remotePoller.Run(ctx)

	var receiver *webhook.Receiver
	if cfg.Watch.WebhookEnabled {
		addr := fmt.Sprintf(":%d", cfg.Watch.WebhookPort)
		filter := func(pageID, spaceKey string) bool {
			return cfg.Scope.SpaceKey == "" || spaceKey == cfg.Scope.SpaceKey
		}
		receiver = webhook.New(addr, cfg.Watch.WebhookPath, events, filter, log)
		go func() {
			if err := receiver.ListenAndServe(); err != nil {
				log.Warn("webhook receiver stopped", zap.Error(err))
			}
		}()
	}

	changes := make(chan watcher.Change, 64)
	knownHash := func(relPath string) (string, bool) {
		pageID, ok := db.PathOwner(relPath)
		if !ok {
			return "", false
		}
		page, err := db.GetPage(pageID)
		if err != nil || page == nil {
			return "", false
		}
		return page.LocalHash, true
	}
	localWatcher, err := watcher.New(cfg.WorkDir, matcher, knownHash, changes, log)
	if err != nil {
		return fmt.Errorf("start local watcher: %w", err)
	}
	defer localWatcher.Close()

	stopWatcher := make(chan struct{})
	go localWatcher.Run(stopWatcher)

	go func() {
		for evt := range events {
			engine.EnqueueRemote(evt)
		}
	}()
	go func() {
		for ch := range changes {
			engine.EnqueueLocal(ch)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		close(stopWatcher)
		cancel()
	}()

	engine.Run(ctx)

	if receiver != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = receiver.Shutdown(shutdownCtx)
	}

	return nil
}
