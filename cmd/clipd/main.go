package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipvault/clipd/internal/assetcache"
	"github.com/clipvault/clipd/internal/clipboard"
	"github.com/clipvault/clipd/internal/colorsample"
	"github.com/clipvault/clipd/internal/config"
	"github.com/clipvault/clipd/internal/database"
	"github.com/clipvault/clipd/internal/enrich"
	"github.com/clipvault/clipd/internal/events"
	"github.com/clipvault/clipd/internal/history"
	"github.com/clipvault/clipd/internal/logging"
	"github.com/clipvault/clipd/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clipd",
		Short: "Clipboard history daemon",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "History API listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("cache-dir", defaults.GetString("cache.dir"), "Derived-asset cache directory")
	cmd.PersistentFlags().Int("poll-interval-ms", defaults.GetInt("poll.interval_ms"), "Clipboard poll interval in milliseconds")
	cmd.PersistentFlags().Float64("dedup-window-seconds", defaults.GetFloat64("dedup.window_seconds"), "Duplicate suppression window in seconds")
	cmd.PersistentFlags().StringSlice("exclude-bundle-ids", defaults.GetStringSlice("exclude.bundle_ids"), "Application bundle ids excluded from capture")
	cmd.PersistentFlags().Bool("enrich-links", defaults.GetBool("enrich.links"), "Fetch title and favicon for link captures")
	cmd.PersistentFlags().String("color-strategy", defaults.GetString("color.strategy"), "Theme color strategy (edge, center, average, saturation)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "cache.dir", "cache-dir")
	bindFlag(cmd, "poll.interval_ms", "poll-interval-ms")
	bindFlag(cmd, "dedup.window_seconds", "dedup-window-seconds")
	bindFlag(cmd, "exclude.bundle_ids", "exclude-bundle-ids")
	bindFlag(cmd, "enrich.links", "enrich-links")
	bindFlag(cmd, "color.strategy", "color-strategy")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runDaemon(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	dispatcher := events.NewDispatcher()

	historyService, err := history.NewService(history.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: history.NewUUIDProvider(),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	cache, err := assetcache.New(assetcache.Config{
		Dir:        appConfig.CacheDir,
		MaxEntries: appConfig.CacheMaxEntries,
		MaxBytes:   appConfig.CacheMaxBytes,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	enricher, err := enrich.New(enrich.Config{
		Store:         historyService,
		Cache:         cache,
		ColorStrategy: colorsample.ParseStrategy(appConfig.ColorStrategy),
		LinksEnabled:  appConfig.EnableLinkEnrich,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	pasteboard, err := clipboard.NewSystemPasteboard()
	if err != nil {
		return err
	}

	watcher, err := clipboard.NewWatcher(clipboard.WatcherConfig{
		Pasteboard:     pasteboard,
		Sink:           historyService,
		Extractor:      clipboard.NewExtractor(logger),
		Dedup:          clipboard.NewDedupWindow(clipboard.DedupConfig{Window: appConfig.DedupWindow, Capacity: appConfig.DedupCapacity}),
		Enricher:       enricher,
		ExcludedAppIDs: appConfig.ExcludedBundleIDs,
		PollInterval:   appConfig.PollInterval,
		SelfWriteGrace: appConfig.SelfWriteGrace,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		HistoryService: historyService,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher.Start()
	defer watcher.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("history api starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		watcher.Stop()
		enricher.Wait()
		cache.Flush()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
