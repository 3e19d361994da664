package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/tatianab/grammrpg/internal/config"
	"github.com/tatianab/grammrpg/internal/engine"
	"github.com/tatianab/grammrpg/internal/logging"
	"github.com/tatianab/grammrpg/internal/models"
	"github.com/tatianab/grammrpg/internal/session"
	"github.com/tatianab/grammrpg/internal/spell"
	"github.com/tatianab/grammrpg/internal/store"
	"github.com/tatianab/grammrpg/internal/tui"
	"go.uber.org/zap"
)

type options struct {
	mode    string
	memory  bool
	verbose bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "game",
		Short:        "Play a story where your spelling shapes what happens",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", "", "gameplay mode, spell or dice (overrides GRAMMRPG_MODE)")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "keep the inventory in memory instead of the SQLite store")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	return cmd
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.mode != "" {
		cfg.Mode = opts.mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	var items store.ItemStore
	if opts.memory {
		items = store.NewMemoryStore()
	} else {
		db, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening item store: %w", err)
		}
		defer db.Close()
		items = db
	}

	dict := spell.DefaultDictionary()
	if cfg.Dictionary != "" {
		if dict, err = spell.LoadDictionary(cfg.Dictionary); err != nil {
			return fmt.Errorf("loading dictionary: %w", err)
		}
	}

	var backend engine.Backend
	gemini, err := engine.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.Model)
	switch {
	case err == nil:
		defer gemini.Close()
		backend = gemini
	case errors.Is(err, engine.ErrBackendUnavailable):
		logger.Warn("story backend unavailable, using fallback text", zap.Error(err))
	default:
		return fmt.Errorf("creating story backend: %w", err)
	}

	gen := engine.NewGenerator(backend,
		engine.WithTemperature(cfg.Temperature),
		engine.WithLogger(logger))

	sess := session.New(session.Config{
		Store:     items,
		Generator: gen,
		Analyzer:  spell.NewAnalyzer(dict),
		Mode:      cfg.GameplayMode(),
		TurnDelay: cfg.TurnDelay,
		Logger:    logger,
	})

	snap, err := models.LoadSnapshot(cfg.SaveDir, tui.SnapshotName)
	switch {
	case err == nil:
		if opts.mode != "" {
			snap.Mode = cfg.GameplayMode()
		}
		if err := sess.Restore(snap); err != nil {
			return fmt.Errorf("restoring session: %w", err)
		}
		logger.Info("restored saved session", zap.Int("messages", len(snap.Messages)))
	case errors.Is(err, fs.ErrNotExist):
	default:
		logger.Warn("ignoring unreadable save", zap.Error(err))
	}

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	return tui.Run(ctx, sess, cfg.SaveDir, logger)
}
