package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/shuyuan/weread-issue-sync/internal/api/github"
	"github.com/shuyuan/weread-issue-sync/internal/api/weread"
	"github.com/shuyuan/weread-issue-sync/internal/bookshelf"
	"github.com/shuyuan/weread-issue-sync/internal/config"
	"github.com/shuyuan/weread-issue-sync/internal/logger"
	"github.com/shuyuan/weread-issue-sync/internal/sync"
	"github.com/shuyuan/weread-issue-sync/internal/sync/state"
)

// Set via ldflags at build time
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	app := &cli.App{
		Name:           "weread-issue-sync",
		Usage:          "Sync WeRead highlights and thoughts into GitHub issues",
		Version:        version,
		DefaultCommand: "sync",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Compute diffs but write nothing",
			},
			&cli.BoolFlag{
				Name:  "full-resync",
				Usage: "Disable the synckey fast-path and re-check every book against its issue markers",
			},
			&cli.StringFlag{
				Name:  "book-filter",
				Usage: "Only process books whose title or author contains this string",
			},
			&cli.IntFlag{
				Name:  "book-limit",
				Usage: "Limit the number of books processed (0 for no limit)",
			},
			&cli.DurationFlag{
				Name:  "book-delay",
				Usage: "Pause between books (e.g. 2s)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Sync reading notes for every book on the shelf",
				Action: runSync,
			},
			{
				Name:   "bookshelf",
				Usage:  "Publish the full shelf as a gallery issue and optional HTML page",
				Action: runBookshelf,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("weread-issue-sync %s (commit %s, built %s)\n", version, commit, buildDate)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Get().Error("Command failed", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

// loadConfig loads the configuration, applies flag overrides and
// re-initializes the logger from the resolved logging settings.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("dry-run") {
		cfg.App.DryRun = c.Bool("dry-run")
	}
	if c.IsSet("full-resync") {
		cfg.App.FullResync = c.Bool("full-resync")
	}
	if c.IsSet("book-filter") {
		cfg.App.BookFilter = c.String("book-filter")
	}
	if c.IsSet("book-limit") {
		cfg.App.BookLimit = c.Int("book-limit")
	}
	if c.IsSet("book-delay") {
		cfg.App.BookDelay = c.Duration("book-delay")
	}

	logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: logger.ParseLogFormat(cfg.Logging.Format),
		Output: os.Stdout,
	})
	return cfg, nil
}

func newClients(cfg *config.Config) (*weread.Client, *github.Client) {
	wr := weread.NewClient(cfg.WeRead.BaseURL, cfg.WeRead.Cookie, cfg.WeRead.Timeout)
	gh := github.NewClient(github.ClientConfig{
		Token:     cfg.GitHub.Token,
		Owner:     cfg.GitHub.Owner,
		Repo:      cfg.GitHub.Repo,
		RateLimit: cfg.GitHub.RateLimit,
	})
	return wr, gh
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSync(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logger.Get()

	ctx, cancel := signalContext()
	defer cancel()

	wr, gh := newClients(cfg)

	st, err := state.LoadState(cfg.Paths.SyncStateFile)
	if err != nil {
		return fmt.Errorf("failed to load sync state: %w", err)
	}

	// The notebook listing is authoritative for which books have notes;
	// the shelf only contributes display metadata. Books without notes
	// never enter the sync loop.
	notebookBooks, err := wr.GetNotebookBooks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notebook books: %w", err)
	}
	shelfBooks, err := wr.GetShelfBooks(ctx)
	if err != nil {
		log.Warn("Shelf listing failed, proceeding with notebook metadata only", map[string]interface{}{
			"error": err.Error(),
		})
	}
	books := weread.NotedBooks(weread.MergeBooks(shelfBooks, notebookBooks))

	svc := sync.NewService(wr, gh, st, sync.Options{
		DryRun:     cfg.App.DryRun,
		FullResync: cfg.App.FullResync,
		BookFilter: cfg.App.BookFilter,
		BookLimit:  cfg.App.BookLimit,
		BookDelay:  cfg.App.BookDelay,
		StatePath:  cfg.Paths.SyncStateFile,
	})

	start := time.Now()
	summary, err := svc.Run(ctx, books)
	if err != nil {
		return err
	}

	log.Info("Done", map[string]interface{}{
		"books":          summary.Books,
		"synced":         summary.Synced,
		"no_change":      summary.NoChange,
		"skipped":        summary.Skipped,
		"new_highlights": summary.NewHighlights,
		"new_thoughts":   summary.NewThoughts,
		"duration":       time.Since(start).String(),
	})
	return nil
}

func runBookshelf(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logger.Get()

	ctx, cancel := signalContext()
	defer cancel()

	wr, gh := newClients(cfg)

	books, err := wr.GetShelfBooks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list shelf books: %w", err)
	}
	if len(books) == 0 {
		log.Warn("Shelf is empty, nothing to publish")
		return nil
	}

	pub := bookshelf.NewPublisher(gh, cfg.App.DryRun)
	if _, err := pub.Publish(ctx, books); err != nil {
		return err
	}

	if path := cfg.Paths.BookshelfHTMLFile; path != "" && !cfg.App.DryRun {
		page := bookshelf.RenderHTML(books, time.Now())
		if err := bookshelf.WriteHTMLFile(path, page); err != nil {
			return err
		}
		log.Info("Wrote bookshelf page", map[string]interface{}{
			"path":  path,
			"books": len(books),
		})
	}
	return nil
}
