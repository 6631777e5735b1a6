package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/finquery/finquery/internal/ai"
	"github.com/finquery/finquery/internal/cache"
	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/feature"
	"github.com/finquery/finquery/internal/handler"
	"github.com/finquery/finquery/internal/middleware"
	"github.com/finquery/finquery/internal/model"
	"github.com/finquery/finquery/internal/repo"
	"github.com/finquery/finquery/internal/service"
	"github.com/finquery/finquery/internal/tools"
	"github.com/finquery/finquery/test/testutil"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (*ai.Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls >= len(g.replies) {
		return nil, fmt.Errorf("scripted generator exhausted after %d calls", g.calls)
	}
	reply := g.replies[g.calls]
	g.calls++
	return &ai.Completion{Text: reply, PromptTokens: 10, OutputTokens: 5}, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	// hash the text into a direction so distinct questions are far apart
	vec := make([]float32, 768)
	var sum int
	for _, r := range text {
		sum += int(r)
	}
	vec[sum%768] = 1
	return vec, nil
}

func (fixedEmbedder) ModelName() string {
	return "fixed-embed"
}

func setupRouter(t *testing.T, replies []string) (http.Handler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)

	prices := repo.NewPriceRepo(db)
	for i := 0; i < 80; i++ {
		require.NoError(t, prices.UpsertBar(context.Background(), &model.PriceBar{
			Symbol: "AAPL",
			Day:    fmt.Sprintf("2026-%02d-%02d", i/28+1, i%28+1),
			Open:   100 + float64(i),
			High:   101 + float64(i),
			Low:    99 + float64(i),
			Close:  100 + float64(i),
			Volume: 1000,
		}))
	}
	require.NoError(t, prices.UpsertFundamentals(context.Background(), &model.Fundamentals{
		Symbol:           "AAPL",
		EarningsPerShare: 6,
		DividendPerShare: 1,
		BookValue:        30,
		Mtime:            time.Now().Unix(),
	}))

	generator := &scriptedGenerator{replies: replies}
	embedder := fixedEmbedder{}

	similarity := config.SimilarityCacheConfig{TTLHours: 24, TimeoutMS: 1000, ProbeLimit: 5}
	responseCfg := similarity
	responseCfg.Threshold = 0.92
	routeCfg := similarity
	routeCfg.Threshold = 0.88

	registry := tools.NewRegistry(prices)
	responseCache := cache.NewResponseCache(embedder, repo.NewResponseCacheRepo(db), responseCfg)
	routeCache := cache.NewRouteCache(embedder, repo.NewRouteCacheRepo(db), routeCfg, service.KnownWorkflow)
	toolCache := cache.NewToolCache(repo.NewToolCacheRepo(db), config.ToolCacheConfig{DefaultTTLMinutes: 60, TimeoutMS: 500})
	features := feature.NewStore(repo.NewFeatureRepo(db), config.FeatureConfig{
		TechnicalTTLMinutes: 60,
		RiskTTLMinutes:      24 * 60,
		ValuationTTLMinutes: 7 * 24 * 60,
	})
	planner := service.NewPlannerService(generator, registry, routeCache, 7*24*time.Hour, time.Second)
	askService := service.NewAskService(responseCache, toolCache, features, planner, registry, generator, 24*time.Hour, time.Second, 2000)

	deps := handler.RouterDeps{
		Ask:   handler.NewAskHandler(askService),
		Cache: handler.NewCacheHandler(responseCache, routeCache, toolCache),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	return engine, cleanup
}
