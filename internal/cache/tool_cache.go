package cache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/model"
)

// ToolCache memoizes the exact result of one named computation for one
// exact parameter set. Lookup is exact-match only: no similarity is
// involved, the key is the tool name joined with the canonical hash of
// the parameters.
type ToolCache struct {
	store    ToolStore
	cfg      config.ToolCacheConfig
	now      func() time.Time
	counters counters
}

type ToolResult struct {
	Outcome Outcome
	Value   float64
}

func NewToolCache(store ToolStore, cfg config.ToolCacheConfig) *ToolCache {
	return &ToolCache{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Lookup probes the cache for a previous invocation. The only error it
// can return is ErrNotCanonical: a parameter set that cannot be hashed
// deterministically means the tool is not cache-safe, which must
// surface loudly instead of silently skipping the cache.
func (c *ToolCache) Lookup(ctx context.Context, tool string, params map[string]interface{}) (ToolResult, error) {
	logger := logutil.GetLogger(ctx)
	hash, err := CanonicalHash(params)
	if err != nil {
		return ToolResult{Outcome: Miss}, err
	}
	opCtx, cancel := opContext(ctx, c.cfg.Timeout())
	defer cancel()
	rec, ok, err := c.store.Get(opCtx, tool+":"+hash)
	if err != nil {
		logger.Warn("tool cache: substrate unavailable, degrading to miss",
			zap.String("tool", tool), zap.Error(err))
		c.counters.observe(Unavailable)
		return ToolResult{Outcome: Unavailable}, nil
	}
	if !ok || rec.ExpireAt <= c.now().Unix() {
		c.counters.observe(Miss)
		return ToolResult{Outcome: Miss}, nil
	}
	logger.Debug("tool cache hit", zap.String("tool", tool), zap.String("param_hash", hash))
	c.counters.observe(Hit)
	return ToolResult{Outcome: Hit, Value: rec.Result}, nil
}

// Store records a successful invocation with the tool's configured TTL.
// Concurrent writers for the same canonical key overwrite each other;
// that is harmless because results for the same key are deterministic.
func (c *ToolCache) Store(ctx context.Context, tool string, params map[string]interface{}, value float64) error {
	logger := logutil.GetLogger(ctx)
	hash, err := CanonicalHash(params)
	if err != nil {
		return err
	}
	ttl := c.cfg.TTLFor(tool)
	if ttl <= 0 {
		return nil
	}
	now := c.now()
	rec := &model.ToolOutputRecord{
		ToolName:  tool,
		ParamHash: hash,
		Result:    value,
		Ctime:     now.Unix(),
		ExpireAt:  now.Add(ttl).Unix(),
	}
	opCtx, cancel := opContext(ctx, c.cfg.Timeout())
	defer cancel()
	if err := c.store.Put(opCtx, rec); err != nil {
		logger.Warn("tool cache: store failed", zap.String("tool", tool), zap.Error(err))
		return nil
	}
	c.counters.stores.Add(1)
	return nil
}

func (c *ToolCache) Stats() Stats {
	return c.counters.snapshot()
}
