package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type expiredDeleter interface {
	DeleteExpired(ctx context.Context, now int64) (int64, error)
}

// CacheCleanupJob purges physically present but expired rows. Expiry is
// enforced on every read path regardless; this only reclaims space.
type CacheCleanupJob struct {
	stores map[string]expiredDeleter
}

func NewCacheCleanupJob(response, route, tool expiredDeleter) *CacheCleanupJob {
	return &CacheCleanupJob{stores: map[string]expiredDeleter{
		"response_cache": response,
		"route_cache":    route,
		"tool_cache":     tool,
	}}
}

func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	now := time.Now().Unix()
	var lastErr error
	for name, store := range j.stores {
		if store == nil {
			continue
		}
		deleted, err := store.DeleteExpired(ctx, now)
		if err != nil {
			lastErr = err
			logger.Warn("cache cleanup failed", zap.String("store", name), zap.Error(err))
			continue
		}
		if deleted > 0 {
			logger.Info("expired records purged", zap.String("store", name), zap.Int64("deleted", deleted))
		}
	}
	return lastErr
}
