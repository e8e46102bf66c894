package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/justestif/moodlens/internal/ai"
	"github.com/justestif/moodlens/internal/config"
	"github.com/justestif/moodlens/internal/db"
	"github.com/justestif/moodlens/internal/lastfm"
	"github.com/justestif/moodlens/internal/logging"
	"github.com/justestif/moodlens/internal/metrics"
	"github.com/justestif/moodlens/internal/pipeline"
	"github.com/justestif/moodlens/internal/spotify"
	"github.com/justestif/moodlens/internal/sqlite"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	user       string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "moodlens",
		Short:         "Classifies listening history by emotion",
		Long:          `Assigns an emotion category and mood score to each listening event and aggregates them into daily, weekly and monthly read models.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $MOODLENS_CONFIG)")
	cmd.PersistentFlags().StringVarP(&opts.user, "user", "u", "", "user ID to act on")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	cmd.AddCommand(
		newServeCmd(opts),
		newImportCmd(opts),
		newSyncCmd(opts),
		newLogoutCmd(opts),
		newReclassifyCmd(opts),
		newFillMissingCmd(opts),
		newBackfillCmd(opts),
		newReportCmd(opts),
		newDeleteDataCmd(opts),
	)
	return cmd
}

// app holds the wired dependencies for one command invocation.
type app struct {
	cfg     *config.Config
	store   pipeline.Store
	svc     *pipeline.Service
	metrics *metrics.Recorder
	close   func()
}

// newApp loads configuration and wires the store and external collaborators.
func newApp(ctx context.Context, opts *options) (*app, error) {
	cfg, err := config.Load(ctx, opts.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	if _, err := logging.Init(os.Stderr, level); err != nil {
		return nil, err
	}
	logger := logging.Named("cli")

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rec := metrics.New()
	svcOpts := []pipeline.Option{
		pipeline.WithConfig(cfg),
		pipeline.WithMetrics(rec),
		pipeline.WithSuggester(ai.FromConfig(cfg)),
	}

	catalog, err := spotify.New(ctx, cfg.Catalog.ClientID, cfg.Catalog.ClientSecret,
		spotify.WithBatchSize(cfg.Catalog.BatchSize),
		spotify.WithRate(cfg.Catalog.RatePerSec),
		spotify.WithTimeout(cfg.CatalogTimeout()),
		spotify.WithMetrics(rec),
	)
	switch {
	case err == nil:
		svcOpts = append(svcOpts, pipeline.WithCatalog(catalog))
	case errors.Is(err, spotify.ErrUnavailable):
		logger.Debug("catalog disabled", "reason", err)
	default:
		closeStore()
		return nil, fmt.Errorf("creating catalog: %w", err)
	}

	if lfCfg, err := lastfm.NewConfig(cfg.LastFM); err == nil {
		svcOpts = append(svcOpts, pipeline.WithTagger(lastfm.NewClient(lfCfg)))
	} else {
		logger.Debug("tag lookup disabled", "reason", err)
	}

	return &app{
		cfg:     cfg,
		store:   store,
		svc:     pipeline.New(store, svcOpts...),
		metrics: rec,
		close:   closeStore,
	}, nil
}

// openStore selects PostgreSQL when a database URL is configured and the
// local SQLite file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (pipeline.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("migrating database: %w", err)
		}
		return database, database.Close, nil
	}

	s, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	return s, func() { _ = s.Close() }, nil
}

// requireUser returns the --user flag or an error.
func (o *options) requireUser() (string, error) {
	if o.user == "" {
		return "", errors.New("--user is required")
	}
	return o.user, nil
}

var (
	_ pipeline.Store = (*db.DB)(nil)
	_ pipeline.Store = (*sqlite.Store)(nil)
)
