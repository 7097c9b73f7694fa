package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/luminascale/enhance-api/internal/config"
	"github.com/luminascale/enhance-api/internal/enhance"
	"github.com/luminascale/enhance-api/internal/logger"
	"github.com/luminascale/enhance-api/internal/quota"
	"github.com/luminascale/enhance-api/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enhancement API server",
	Long:  `Start the image enhancement API server with quota enforcement`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "server host")
	serveCmd.Flags().Int("port", 5000, "server port")
	serveCmd.Flags().String("mode", "release", "server mode (debug/release/test)")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.mode", serveCmd.Flags().Lookup("mode"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting Luminascale Enhance API",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	// Counter store is optional. Absent or unreachable means quota
	// enforcement is disabled, not that the service refuses to start.
	counterCtx, cancelProbe := context.WithTimeout(context.Background(), 5*time.Second)
	counter, err := quota.NewRedisCounter(counterCtx, cfg.Quota.RedisURL)
	cancelProbe()
	var ledgerCounter quota.Counter
	switch {
	case err != nil:
		log.Warn("Redis not available - rate limiting disabled", zap.Error(err))
	case counter == nil:
		log.Info("No REDIS_URL configured - rate limiting disabled")
	default:
		log.Info("Redis connected")
		ledgerCounter = counter
		defer counter.Close()
	}

	ledger := quota.NewLedger(ledgerCounter, cfg.Quota.DailyLimit, cfg.Quota.BucketTTL, cfg.Quota.FailOpen, log)

	enhancer := enhance.NewClient(cfg.Enhance.BackendURL, cfg.Enhance.DefaultVersion, cfg.Enhance.Timeout, log)
	go enhancer.Warm(context.Background())

	log.Info("Free tier configured",
		zap.String("api_key", maskAPIKey(cfg.Security.APIKey)),
		zap.Int64("daily_limit", cfg.Quota.DailyLimit),
		zap.Bool("fail_open", cfg.Quota.FailOpen),
	)

	server.Version = Version
	srv := server.New(cfg, log, ledger, enhancer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("Server started", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-stop
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Server stopped gracefully")
	return nil
}

// maskAPIKey returns a masked version of the API key for logging
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
