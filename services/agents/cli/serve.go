package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ramiqadoumi/go-pricing-agents/internal/apply"
	"github.com/ramiqadoumi/go-pricing-agents/internal/catalog"
	"github.com/ramiqadoumi/go-pricing-agents/internal/kafka"
	"github.com/ramiqadoumi/go-pricing-agents/internal/nats"
	"github.com/ramiqadoumi/go-pricing-agents/internal/postgres"
	redisstore "github.com/ramiqadoumi/go-pricing-agents/internal/redis"
	"github.com/ramiqadoumi/go-pricing-agents/internal/version"
	"github.com/ramiqadoumi/go-pricing-agents/pkg/retry"
	"github.com/ramiqadoumi/go-pricing-agents/pkg/telemetry"
	"github.com/ramiqadoumi/go-pricing-agents/services/agents"
	"github.com/ramiqadoumi/go-pricing-agents/services/agents/config"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start every agent and the orchestrator",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("redis-addr", "", "Redis address (host:port); empty disables Redis")
	serveCmd.Flags().String("kafka-brokers", "", "comma-separated Kafka brokers to mirror bus traffic to")
	serveCmd.Flags().String("nats-url", "", "NATS URL to mirror bus traffic to")
	serveCmd.Flags().String("catalog-file", "catalog.yaml", "YAML product catalog used without Postgres")
	serveCmd.Flags().String("webhook-url", "", "endpoint receiving applied recommendations")
	serveCmd.Flags().String("metrics-addr", ":9090", "metrics and status server address")
	serveCmd.Flags().Duration("coordination-interval", 5*time.Minute, "orchestrator coordination interval")
	serveCmd.Flags().Bool("allow-short-intervals", false, "accept intervals under one minute")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("redis_addr", serveCmd.Flags(), "redis-addr")
	bindFlag("kafka_brokers", serveCmd.Flags(), "kafka-brokers")
	bindFlag("nats_url", serveCmd.Flags(), "nats-url")
	bindFlag("catalog_file", serveCmd.Flags(), "catalog-file")
	bindFlag("webhook_url", serveCmd.Flags(), "webhook-url")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("coordination_interval", serveCmd.Flags(), "coordination-interval")
	bindFlag("allow_short_intervals", serveCmd.Flags(), "allow-short-intervals")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog := buildLogger(cfg.LogLevel, cfg.LogFile, "agents")
	defer closeLog()
	logger = logger.With(slog.String("instance_id", uuid.New().String()[:8]))

	shutdownTracer, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "pricing-agents",
		ServiceVersion: version.Version,
		Endpoint:       cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	deps, cleanup, err := connect(runCtx, cfg, logger)
	defer cleanup()
	if err != nil {
		return err
	}

	orch, err := agents.Build(cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("build agents: %w", err)
	}

	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, orch, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	logger.Info("agents starting",
		slog.String("version", version.String()),
		slog.Duration("coordination_interval", cfg.CoordinationInterval),
		slog.Float64("bundle_threshold", cfg.AutoApply.BundleThreshold),
		slog.Float64("price_threshold", cfg.AutoApply.PriceThreshold),
	)
	orch.Start(runCtx)

	<-quit
	logger.Info("shutting down, draining in-flight cycles...")

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := orch.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	runCancel()

	logger.Info("stopped cleanly")
	return nil
}

// connect opens every configured store. The returned cleanup closes
// whatever was opened, in reverse order, and is safe to call on error.
func connect(ctx context.Context, cfg config.Config, logger *slog.Logger) (agents.Deps, func(), error) {
	var (
		deps    agents.Deps
		appl    agents.Appliers
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	startup := retry.Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		OnRetry: func(attempt int, err error) {
			logger.Warn("store not ready, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	}

	if cfg.PostgresDSN != "" {
		var repo *postgres.Repository
		err := retry.Do(ctx, startup, func(ctx context.Context) error {
			initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			pool, err := postgres.NewPool(initCtx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			closers = append(closers, pool.Close)
			repo = postgres.NewRepository(pool,
				postgres.WithStockThresholds(cfg.Inventory.LowStockThreshold, cfg.Inventory.HighStockThreshold))
			return nil
		})
		if err != nil {
			return deps, cleanup, fmt.Errorf("postgres: %w", err)
		}
		deps.Products = repo
		deps.Competitors = repo
		deps.Carts = repo
		deps.Sales = repo
		deps.Sink = repo
		appl.Price = repo
		appl.Bundle = repo
		logger.Info("using postgres for products, feeds and recommendations")
	} else {
		cat, err := catalog.Load(cfg.CatalogFile, cfg.Inventory.LowStockThreshold, cfg.Inventory.HighStockThreshold)
		if err != nil {
			return deps, cleanup, err
		}
		deps.Products = cat
		appl.Price = cat
		logger.Info("no postgres configured, using catalog file",
			slog.String("catalog_file", cfg.CatalogFile))
	}

	if cfg.RedisAddr != "" {
		client := redisstore.NewClient(cfg.RedisAddr)
		closers = append(closers, func() { _ = client.Close() })
		err := retry.Do(ctx, startup, func(ctx context.Context) error {
			return redisstore.Ping(ctx, client)
		})
		if err != nil {
			return deps, cleanup, err
		}
		deps.Status = redisstore.NewStatusStore(client)
		deps.Forecast = redisstore.NewForecastSource(client)
		deps.Performance = redisstore.NewPerformanceSource(client)
		deps.Limiter = redisstore.NewLimiter(client, cfg.AutoApply.Limit, cfg.AutoApply.Window)
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		fwd := kafka.NewForwarder(brokers, kafka.WithTopicPrefix(cfg.KafkaTopicPrefix))
		closers = append(closers, func() { _ = fwd.Close() })
		deps.Forwarders = append(deps.Forwarders, fwd)
	}

	if cfg.NATSURL != "" {
		var fwd *nats.Forwarder
		err := retry.Do(ctx, startup, func(context.Context) error {
			var err error
			fwd, err = nats.Connect(cfg.NATSURL, cfg.NATSPrefix, "pricing-agents")
			return err
		})
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = fwd.Close() })
		deps.Forwarders = append(deps.Forwarders, fwd)
	}

	if cfg.WebhookURL != "" {
		appl.Webhook = apply.NewWebhook(cfg.WebhookURL, cfg.WebhookHeaders, cfg.WebhookTimeout)
	}
	if cfg.SMTPHost != "" && len(cfg.AlertRecipients) > 0 {
		appl.Alert = apply.NewEmailNotifier(apply.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			To:       cfg.AlertRecipients,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	}
	deps.Applier = agents.NewApplier(appl)

	return deps, cleanup, nil
}
