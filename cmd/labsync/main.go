package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nwerner/labsync/internal/config"
	"github.com/nwerner/labsync/internal/content"
	"github.com/nwerner/labsync/internal/gateway"
	"github.com/nwerner/labsync/internal/logging"
	"github.com/nwerner/labsync/internal/reconcile"
	"github.com/nwerner/labsync/internal/session"
	"github.com/nwerner/labsync/internal/watch"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

func main() {
	cmd := &cli.Command{
		Name:      "labsync",
		Usage:     "Sync a local labyrinth content tree to the remote labyrinth site",
		Version:   Version,
		ArgsUsage: "[content-tree]",
		Action:    run,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running and sync again whenever content files change",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what a sync would do without touching the remote site",
			},
			&cli.BoolFlag{
				Name:  "no-headless",
				Usage: "Show the driven browser window",
			},
			&cli.BoolFlag{
				Name:  "logout",
				Usage: "End the remote session, drop the cached cookies, and exit",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		var verr *reconcile.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(os.Stderr, verr.Error())
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		dir = "."
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cmd.Bool("verbose"))
	logger.Info("labsync starting",
		slog.String("version", Version),
		slog.String("tree", dir),
		slog.String("site", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd.Bool("logout") {
		return logout(ctx, cfg, cmd, logger)
	}

	tree, err := content.Open(dir)
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		rec := reconcile.New(tree, nil, logger)
		sum, err := rec.Preview(ctx)
		if err != nil {
			return err
		}
		logger.Info("dry run complete",
			slog.Int("create", sum.Created),
			slog.Int("update", sum.Updated),
			slog.Int("unchanged", sum.Unchanged),
			slog.Int("delete", sum.Deleted),
		)
		return nil
	}

	dbPath, err := cfg.StateDBPath()
	if err != nil {
		return err
	}

	sessions, err := session.OpenAt(dbPath)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer sessions.Close()

	headless := cfg.Headless && !cmd.Bool("no-headless")

	browser, err := gateway.Connect(ctx, gateway.Config{
		BaseURL:    cfg.BaseURL,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Headless:   headless,
		NavTimeout: cfg.NavTimeout,
	}, sessions, logger)
	if err != nil {
		return fmt.Errorf("connecting to site: %w", err)
	}
	defer browser.Close()

	if err := browser.Login(ctx); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	gw := gateway.WithRetry(browser, gateway.RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
	}, logger)

	rec := reconcile.New(tree, gw, logger, reconcile.WithSettleDelay(cfg.SettleDelay))

	runOnce := func(ctx context.Context) error {
		sum, err := rec.Run(ctx)
		if err != nil {
			return err
		}
		if sum.Failed() > 0 {
			return fmt.Errorf("%d operation(s) failed; run again to retry", sum.Failed())
		}
		return nil
	}

	if !cmd.Bool("watch") {
		return runOnce(ctx)
	}

	// Watch mode: one sync up front, then re-run on changes. A run with
	// per-entity failures keeps watching; the next change retries.
	if err := runOnce(ctx); err != nil {
		var verr *reconcile.ValidationError
		if !errors.As(err, &verr) && ctx.Err() == nil {
			logger.Error("initial sync failed", slog.String("error", err.Error()))
		} else if verr != nil {
			logger.Error(verr.Error())
		} else {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w := watch.New(tree.Root(), func(ctx context.Context) error {
			err := runOnce(ctx)
			var verr *reconcile.ValidationError
			if errors.As(err, &verr) {
				// Validation failures in watch mode are reported and
				// waited out; the author is mid-edit.
				logger.Error(verr.Error())
				return nil
			}
			return err
		}, logger)
		return w.Watch(gctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logout ends the remote session and drops the cached cookies. It never
// touches a content tree.
func logout(ctx context.Context, cfg *config.Config, cmd *cli.Command, logger *slog.Logger) error {
	dbPath, err := cfg.StateDBPath()
	if err != nil {
		return err
	}

	sessions, err := session.OpenAt(dbPath)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer sessions.Close()

	browser, err := gateway.Connect(ctx, gateway.Config{
		BaseURL:    cfg.BaseURL,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Headless:   cfg.Headless && !cmd.Bool("no-headless"),
		NavTimeout: cfg.NavTimeout,
	}, sessions, logger)
	if err != nil {
		return fmt.Errorf("connecting to site: %w", err)
	}
	defer browser.Close()

	if err := browser.Logout(ctx); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}

	logger.Info("logged out, cached session dropped")
	return nil
}
