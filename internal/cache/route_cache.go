package cache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/finquery/finquery/internal/ai"
	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/model"
)

// RouteCache stores the planner's decision for a class of question.
// Routing tolerates more paraphrase variance than full answers, so its
// threshold is typically lower than the response cache's.
type RouteCache struct {
	embedder  ai.IEmbedder
	store     RouteStore
	cfg       config.SimilarityCacheConfig
	recognize func(workflowID string) bool
	now       func() time.Time
	counters  counters
}

type RouteResult struct {
	Outcome    Outcome
	WorkflowID string
	Plan       *model.Plan
	Similarity float64
	Embedding  []float32
}

// NewRouteCache builds a route cache. recognize reports whether the
// orchestrator still knows a workflow id; a hit on a forgotten workflow
// is a defined miss, never an error.
func NewRouteCache(embedder ai.IEmbedder, store RouteStore, cfg config.SimilarityCacheConfig, recognize func(workflowID string) bool) *RouteCache {
	return &RouteCache{
		embedder:  embedder,
		store:     store,
		cfg:       cfg,
		recognize: recognize,
		now:       time.Now,
	}
}

func (c *RouteCache) Lookup(ctx context.Context, question string) RouteResult {
	logger := logutil.GetLogger(ctx)
	opCtx, cancel := opContext(ctx, c.cfg.Timeout())
	defer cancel()
	embedding, err := c.embedder.Embed(opCtx, question, taskSimilarity)
	if err != nil {
		logger.Warn("route cache: embedding unavailable, degrading to miss", zap.Error(err))
		c.counters.observe(Unavailable)
		return RouteResult{Outcome: Unavailable}
	}
	matches, err := c.store.Nearest(opCtx, embedding, c.cfg.ProbeLimit)
	if err != nil {
		logger.Warn("route cache: substrate unavailable, degrading to miss", zap.Error(err))
		c.counters.observe(Unavailable)
		return RouteResult{Outcome: Unavailable, Embedding: embedding}
	}
	now := c.now().Unix()
	for _, m := range matches {
		if m.Record.ExpireAt <= now {
			continue
		}
		if m.Similarity < c.cfg.Threshold {
			break
		}
		if c.recognize != nil && !c.recognize(m.Record.WorkflowID) {
			logger.Info("route cache: stale workflow id treated as miss",
				zap.String("workflow_id", m.Record.WorkflowID))
			continue
		}
		logger.Debug("route cache hit",
			zap.Float64("similarity", m.Similarity),
			zap.String("workflow_id", m.Record.WorkflowID))
		c.counters.observe(Hit)
		plan := m.Record.Plan
		return RouteResult{
			Outcome:    Hit,
			WorkflowID: m.Record.WorkflowID,
			Plan:       &plan,
			Similarity: m.Similarity,
			Embedding:  embedding,
		}
	}
	c.counters.observe(Miss)
	return RouteResult{Outcome: Miss, Embedding: embedding}
}

// Store records a freshly planned route. The plan must be
// self-describing: resolved tool names and parameters, executable
// without re-invoking the planner.
func (c *RouteCache) Store(ctx context.Context, question string, embedding []float32, workflowID string, plan *model.Plan, ttl time.Duration) {
	logger := logutil.GetLogger(ctx)
	if plan == nil || workflowID == "" || ttl <= 0 {
		return
	}
	opCtx, cancel := opContext(ctx, c.cfg.Timeout())
	defer cancel()
	if len(embedding) == 0 {
		var err error
		embedding, err = c.embedder.Embed(opCtx, question, taskSimilarity)
		if err != nil {
			logger.Warn("route cache: store skipped, embedding unavailable", zap.Error(err))
			return
		}
	}
	now := c.now()
	rec := &model.RouteRecord{
		ID:         newRecordID(),
		QueryText:  question,
		Embedding:  embedding,
		WorkflowID: workflowID,
		Plan:       *plan,
		Ctime:      now.Unix(),
		ExpireAt:   now.Add(ttl).Unix(),
	}
	if err := c.store.Insert(opCtx, rec); err != nil {
		logger.Warn("route cache: store failed", zap.Error(err))
		return
	}
	c.counters.stores.Add(1)
}

// Flush drops every cached route. Used when the workflow catalog
// changes shape rather than waiting out the TTL.
func (c *RouteCache) Flush(ctx context.Context) error {
	opCtx, cancel := opContext(ctx, c.cfg.Timeout())
	defer cancel()
	return c.store.Flush(opCtx)
}

func (c *RouteCache) Stats() Stats {
	return c.counters.snapshot()
}
