// Package main provides the feedsync server and CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/kinokawa/feedsync/internal/config"
	"github.com/kinokawa/feedsync/internal/infra/cache"
	"github.com/kinokawa/feedsync/internal/infra/connector"
	"github.com/kinokawa/feedsync/internal/infra/database"
	"github.com/kinokawa/feedsync/internal/infra/repository"
	"github.com/kinokawa/feedsync/internal/present/rest"
	"github.com/kinokawa/feedsync/internal/present/rest/middleware"
	"github.com/kinokawa/feedsync/internal/service"
	"github.com/kinokawa/feedsync/internal/usecase"
)

var version = "0.1.0"

func main() {
	godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func configPath(flagValue string) string {
	if env := os.Getenv("FEEDSYNC_CONFIG"); flagValue == "config.yaml" && env != "" {
		return env
	}
	return flagValue
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:     "feedsync",
		Short:   "Multi-platform feed aggregation engine",
		Long:    "Feedsync synchronizes accounts across platforms into a unified, queryable feed.",
		Version: version,
	}
	rootCmd.SetVersionTemplate("feedsync version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to config file")

	rootCmd.AddCommand(newServeCmd(&cfgPath))
	rootCmd.AddCommand(newSyncCmd(&cfgPath))

	return rootCmd
}

// app is the wired object graph shared by the serve and sync commands.
type app struct {
	conf      config.Config
	handler   *rest.Handler
	sync      *usecase.SyncUsecase
	shutdowns []func(context.Context) error
}

func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	conf, err := config.Load(configPath(cfgPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{conf: conf}

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}
		a.shutdowns = append(a.shutdowns, shutdown)
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := database.MigratePostgres(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	itemRepo := repository.NewItemRepository(db)
	sourceRepo := repository.NewSourceRepository(db)
	feedRepo := repository.NewUnifiedFeedRepository(db)

	store := cache.NewTieredStore(cache.NewMemoryStore(), cache.NewRedisStore(rdb))
	cooldown := cache.NewCooldownStore(mc)

	registry := connector.NewRegistry(
		connector.NewTwitterConnector(conf.Platforms.TwitterBaseURL),
		connector.NewInstagramConnector(conf.Platforms.InstagramBaseURL),
		connector.NewRSSConnector(),
	)

	notify := service.NewNotifyService(rdb)

	syncUC := usecase.NewSyncUsecase(sourceRepo, itemRepo, registry, store, cooldown, notify, conf.Sync.Concurrency)
	aggregateUC := usecase.NewAggregateUsecase(itemRepo, sourceRepo, store, nil)
	sourceUC := usecase.NewSourceUsecase(sourceRepo, itemRepo, registry, store, notify)
	unifiedUC := usecase.NewUnifiedFeedUsecase(feedRepo, sourceRepo, aggregateUC, store)

	a.sync = syncUC
	a.handler = rest.NewHandler(sourceUC, syncUC, aggregateUC, unifiedUC, notify)
	return a, nil
}

func (a *app) close(ctx context.Context) {
	for _, shutdown := range a.shutdowns {
		if err := shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown:", err)
		}
	}
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and background sync scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			go runScheduler(ctx, a.sync, a.conf.Sync.IntervalMinutes)

			e := echo.New()
			e.HideBanner = true
			e.Use(echomiddleware.Logger())
			e.Use(echomiddleware.Recover())
			e.Use(echomiddleware.CORS())
			if a.conf.Server.EnableTrace {
				e.Use(otelecho.Middleware("feedsync"))
			}
			e.Use(middleware.NewRequesterMiddleware().IdentifyRequester)

			a.handler.RegisterRoutes(e)

			e.Logger.Fatal(e.Start(a.conf.Server.ListenAddr))
			return nil
		},
	}
}

func newSyncCmd(cfgPath *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			results, err := a.sync.SyncAll(ctx, userID)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(results)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Limit the pass to one user's sources")

	return cmd
}

// runScheduler drives periodic sync passes for every syncable source.
// Pass failures are per-source and already isolated by the usecase, so
// the loop only logs and keeps ticking.
func runScheduler(ctx context.Context, sync *usecase.SyncUsecase, intervalMinutes int) {
	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sync.SyncAll(ctx, ""); err != nil {
				fmt.Fprintln(os.Stderr, "scheduled sync:", err)
			}
		}
	}
}

func setupTracer(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("feedsync"),
			semconv.ServiceVersion(version),
		)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
