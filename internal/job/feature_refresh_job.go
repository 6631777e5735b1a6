package job

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/finquery/finquery/internal/feature"
	"github.com/finquery/finquery/internal/tools"
)

// FeatureRefreshJob is the primary writer of the feature store: it
// recomputes every per-entity metric for every tracked symbol so that
// request-time serving rarely needs the on-demand fallback.
type FeatureRefreshJob struct {
	features *feature.Store
	registry *tools.Registry
	symbols  []string
}

func NewFeatureRefreshJob(features *feature.Store, registry *tools.Registry, symbols []string) *FeatureRefreshJob {
	return &FeatureRefreshJob{features: features, registry: registry, symbols: symbols}
}

func (j *FeatureRefreshJob) Name() string {
	return "feature_refresh"
}

func (j *FeatureRefreshJob) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	var refreshed, failed int
	for _, symbol := range j.symbols {
		for _, tool := range j.registry.PerEntityTools() {
			params := map[string]interface{}{"symbol": symbol}
			err := j.features.Refresh(ctx, symbol, tool.Name, tool.Category, func(ctx context.Context) (float64, error) {
				return tool.Run(ctx, params)
			})
			if err != nil {
				failed++
				logger.Warn("feature refresh failed",
					zap.String("symbol", symbol), zap.String("feature", tool.Name), zap.Error(err))
				continue
			}
			refreshed++
		}
	}
	logger.Info("feature refresh pass done", zap.Int("refreshed", refreshed), zap.Int("failed", failed))
	if refreshed == 0 && failed > 0 {
		return fmt.Errorf("all %d feature refreshes failed", failed)
	}
	return nil
}
