package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/manufactureflow/backend/internal/analytics"
	"github.com/manufactureflow/backend/internal/auth"
	"github.com/manufactureflow/backend/internal/config"
	"github.com/manufactureflow/backend/internal/database"
	"github.com/manufactureflow/backend/internal/identity"
	"github.com/manufactureflow/backend/internal/inventory"
	"github.com/manufactureflow/backend/internal/logging"
	"github.com/manufactureflow/backend/internal/production"
	"github.com/manufactureflow/backend/internal/quality"
	"github.com/manufactureflow/backend/internal/relay"
	"github.com/manufactureflow/backend/internal/server"
	"github.com/manufactureflow/backend/internal/users"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "manufactureflow-api",
		Short: "ManufactureFlow backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
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
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().Int("metrics-interval-seconds", defaults.GetInt("metrics.interval_seconds"), "Metrics broadcast interval in seconds")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "metrics.interval_seconds", "metrics-interval-seconds")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
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

func runServer(ctx context.Context) error {
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

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "manufactureflow-auth",
		Audience:      "manufactureflow-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	ids := identity.NewUUIDProvider()
	accountService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Hasher:     auth.NewPasswordHasher(),
		IDProvider: ids,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	productionService, err := production.NewService(production.ServiceConfig{
		Database: db, IDProvider: ids, Logger: logger,
	})
	if err != nil {
		return err
	}
	inventoryService, err := inventory.NewService(inventory.ServiceConfig{
		Database: db, IDProvider: ids, Logger: logger,
	})
	if err != nil {
		return err
	}
	qualityService, err := quality.NewService(quality.ServiceConfig{
		Database: db, IDProvider: ids, Logger: logger,
	})
	if err != nil {
		return err
	}
	analyticsService, err := analytics.NewService(analytics.ServiceConfig{
		Database: db, Logger: logger,
	})
	if err != nil {
		return err
	}

	registry := relay.NewRegistry()
	broadcaster := relay.NewBroadcaster(registry, logger)

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:    accountService,
		Tokens:      tokenManager,
		Production:  productionService,
		Inventory:   inventoryService,
		Quality:     qualityService,
		Analytics:   analyticsService,
		Registry:    registry,
		Broadcaster: broadcaster,
		Logger:      logger,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: appConfig.RateLimitRPS,
			Burst:             appConfig.RateLimitBurst,
		},
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsPublisher := analytics.NewPublisher(analyticsService, broadcaster, appConfig.MetricsInterval, logger)
	go metricsPublisher.Run(signalCtx)

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
