package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/notifeed/internal/app"
	"github.com/nhle/notifeed/internal/credential"
	"github.com/nhle/notifeed/internal/logging"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/session"
	"github.com/nhle/notifeed/internal/store"
	"github.com/nhle/notifeed/internal/ui/detail"
	"github.com/nhle/notifeed/internal/ui/setup"
)

const usage = `Usage: notifeed [command] [-config path]

Commands:
	run     open the notification feed (default)
	setup   configure sources, push transport and tokens
	prune   drop journal steps older than the retention window
	logout  remove stored API tokens from the keyring
	help    show this message
`

// journalRetention is how long finished journal steps are kept.
const journalRetention = 30 * 24 * time.Hour

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", model.DefaultConfigPath(), "path to the config file")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(args)

	var err error
	switch cmd {
	case "run":
		err = run(*configPath)
	case "setup":
		err = runSetup(*configPath)
	case "prune":
		err = runPrune(*configPath)
	case "logout":
		err = runLogout()
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "notifeed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	sources, err := app.BuildSources(cfg, logger)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources configured: run `notifeed setup`")
	}

	channel, closeChannel, err := app.BuildChannel(cfg.Push, logger)
	if err != nil {
		return err
	}
	defer closeChannel()

	journal, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	var program *tea.Program

	sess := session.New(session.Options{
		Sources: sources,
		Channel: channel,
		Events:  cfg.Push.Events,
		Navigate: func(n model.Notification) {
			if program != nil {
				program.Send(detail.ShowMsg{Notification: n})
			}
		},
		Journal:         journal,
		Logger:          logger,
		PageSize:        cfg.Feed.PageSize,
		Bound:           cfg.Feed.Bound,
		FetchTimeout:    cfg.Feed.FetchTimeout(),
		RefreshSchedule: cfg.Feed.RefreshSchedule,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Close()

	program = tea.NewProgram(app.New(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running ui: %w", err)
	}

	logger.Info().Msg("shutting down")
	return nil
}

// openJournal opens the sqlite journal and prunes old finished steps.
func openJournal(cfg *model.AppConfig, logger zerolog.Logger) (*store.SQLiteJournal, error) {
	dir := filepath.Dir(cfg.Journal.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory %s: %w", dir, err)
	}

	journal, err := store.NewSQLiteJournal(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}

	n, err := journal.Prune(context.Background(), time.Now().Add(-journalRetention))
	if err != nil {
		logger.Warn().Err(err).Msg("pruning journal")
	} else if n > 0 {
		logger.Info().Int64("steps", n).Msg("pruned journal")
	}

	return journal, nil
}

func runSetup(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := setup.Run(configPath, cfg); err != nil {
		return err
	}
	fmt.Printf("Saved configuration to %s\n", configPath)
	return nil
}

func runPrune(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	journal, err := store.NewSQLiteJournal(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	n, err := journal.Prune(context.Background(), time.Now().Add(-journalRetention))
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d journal steps\n", n)
	return nil
}

func runLogout() error {
	for _, src := range model.Sources {
		err := credential.Delete(credential.TokenKey(src))
		switch {
		case errors.Is(err, credential.ErrNotFound):
			continue
		case err != nil:
			return err
		}
		fmt.Printf("Removed %s token\n", src)
	}
	return nil
}
