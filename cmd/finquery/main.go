package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/finquery/finquery/internal/ai"
	"github.com/finquery/finquery/internal/cache"
	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/db"
	"github.com/finquery/finquery/internal/embedcache"
	"github.com/finquery/finquery/internal/feature"
	"github.com/finquery/finquery/internal/handler"
	"github.com/finquery/finquery/internal/job"
	"github.com/finquery/finquery/internal/middleware"
	"github.com/finquery/finquery/internal/repo"
	"github.com/finquery/finquery/internal/schedule"
	"github.com/finquery/finquery/internal/service"
	"github.com/finquery/finquery/internal/tools"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "finquery",
		Short: "finquery backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run finquery server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

// buildAIChain resolves the primary provider plus any configured
// fallbacks into ordered failover chains for completion and embedding.
func buildAIChain(cfg config.AIConfig) (ai.IGenerator, ai.IEmbedder, error) {
	primary, err := ai.NewProvider(cfg.Provider, cfg.Args)
	if err != nil {
		return nil, nil, err
	}
	generators := []ai.GeneratorEntry{{Name: cfg.Provider, Generator: ai.NewGenerator(primary, cfg.CompletionModel)}}
	embedders := []ai.EmbedderEntry{{Name: cfg.Provider, Embedder: ai.NewEmbedder(primary, cfg.EmbeddingModel)}}
	for _, fb := range cfg.Fallbacks {
		provider, err := ai.NewProvider(fb.Provider, fb.Args)
		if err != nil {
			return nil, nil, fmt.Errorf("init fallback provider %s: %w", fb.Provider, err)
		}
		if fb.CompletionModel != "" {
			generators = append(generators, ai.GeneratorEntry{Name: fb.Provider, Generator: ai.NewGenerator(provider, fb.CompletionModel)})
		}
		if fb.EmbeddingModel != "" {
			// embedding failover must stay within one model: stored
			// vectors are only comparable to probes from the same model
			if fb.EmbeddingModel != cfg.EmbeddingModel {
				return nil, nil, fmt.Errorf("fallback embedding model %q does not match primary %q", fb.EmbeddingModel, cfg.EmbeddingModel)
			}
			embedders = append(embedders, ai.EmbedderEntry{Name: fb.Provider, Embedder: ai.NewEmbedder(provider, fb.EmbeddingModel)})
		}
	}
	if len(generators) == 1 && len(embedders) == 1 {
		return generators[0].Generator, embedders[0].Embedder, nil
	}
	return ai.NewGroupGenerator(generators), ai.NewGroupEmbedder(embedders), nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	generator, embedder, err := buildAIChain(cfg.AI)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(
		embedder,
		cfg.AI.EmbedCacheSize,
		time.Duration(cfg.AI.EmbedCacheTTLMinute)*time.Minute,
	)

	responseRepo := repo.NewResponseCacheRepo(conn)
	routeRepo := repo.NewRouteCacheRepo(conn)
	toolRepo := repo.NewToolCacheRepo(conn)
	featureRepo := repo.NewFeatureRepo(conn)
	priceRepo := repo.NewPriceRepo(conn)

	registry := tools.NewRegistry(priceRepo)
	responseCache := cache.NewResponseCache(embedder, responseRepo, cfg.Cache.Response)
	routeCache := cache.NewRouteCache(embedder, routeRepo, cfg.Cache.Route, service.KnownWorkflow)
	toolCache := cache.NewToolCache(toolRepo, cfg.Cache.Tool)
	features := feature.NewStore(featureRepo, cfg.Feature)

	aiTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	planner := service.NewPlannerService(generator, registry, routeCache, cfg.Cache.Route.TTL(), aiTimeout)
	askService := service.NewAskService(
		responseCache,
		toolCache,
		features,
		planner,
		registry,
		generator,
		cfg.Cache.Response.TTL(),
		aiTimeout,
		cfg.AI.MaxInputChars,
	)

	deps := handler.RouterDeps{
		Ask:   handler.NewAskHandler(askService),
		Cache: handler.NewCacheHandler(responseCache, routeCache, toolCache),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewFeatureRefreshJob(features, registry, cfg.Feature.Symbols), cfg.Jobs.FeatureRefreshSpec, schedule.WithRunAtStart()); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewCacheCleanupJob(responseRepo, routeRepo, toolRepo), cfg.Jobs.CacheCleanupSpec); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
