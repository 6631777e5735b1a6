package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/finquery/finquery/internal/ai"
	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/model"
)

// taskSimilarity is the embedding task type used on both the write and
// read path. Both paths must use the same task type or stored and probe
// vectors drift apart.
const taskSimilarity = "SEMANTIC_SIMILARITY"

// ResponseCache serves complete answers keyed by the semantic meaning
// of the question. A probe embeds the question and runs a cosine
// nearest-neighbor search over stored answers; anything at or above the
// configured threshold is served instead of re-running the pipeline.
type ResponseCache struct {
	embedder ai.IEmbedder
	store    ResponseStore
	cfg      config.SimilarityCacheConfig
	now      func() time.Time
	counters counters
}

type ResponseResult struct {
	Outcome    Outcome
	Payload    *model.AnswerPayload
	Similarity float64
	// Embedding is the probe vector computed during lookup. A caller
	// that misses can pass it back to Store to avoid a second
	// embedding call.
	Embedding []float32
}

func NewResponseCache(embedder ai.IEmbedder, store ResponseStore, cfg config.SimilarityCacheConfig) *ResponseCache {
	return &ResponseCache{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (c *ResponseCache) Lookup(ctx context.Context, question string) ResponseResult {
	logger := logutil.GetLogger(ctx)
	// one deadline bounds the whole probe, embedding call included; a
	// hung embedding service degrades to a miss instead of stalling
	// the request
	opCtx, cancel := opContext(ctx, c.cfg.Timeout())
	defer cancel()
	embedding, err := c.embedder.Embed(opCtx, question, taskSimilarity)
	if err != nil {
		logger.Warn("response cache: embedding unavailable, degrading to miss", zap.Error(err))
		c.counters.observe(Unavailable)
		return ResponseResult{Outcome: Unavailable}
	}
	matches, err := c.store.Nearest(opCtx, embedding, c.cfg.ProbeLimit)
	if err != nil {
		logger.Warn("response cache: substrate unavailable, degrading to miss", zap.Error(err))
		c.counters.observe(Unavailable)
		return ResponseResult{Outcome: Unavailable, Embedding: embedding}
	}
	now := c.now().Unix()
	for _, m := range matches {
		if m.Record.ExpireAt <= now {
			continue
		}
		if m.Similarity < c.cfg.Threshold {
			// matches are ordered by similarity, nothing further qualifies
			break
		}
		logger.Debug("response cache hit",
			zap.Float64("similarity", m.Similarity),
			zap.String("matched_query", m.Record.QueryText))
		c.counters.observe(Hit)
		payload := m.Record.Payload
		return ResponseResult{
			Outcome:    Hit,
			Payload:    &payload,
			Similarity: m.Similarity,
			Embedding:  embedding,
		}
	}
	c.counters.observe(Miss)
	return ResponseResult{Outcome: Miss, Embedding: embedding}
}

// Store writes through a freshly computed answer. Records are
// append-only; expiry is purely time based. Failures are logged and
// swallowed so a broken cache can never fail a user-visible response.
func (c *ResponseCache) Store(ctx context.Context, question string, embedding []float32, payload *model.AnswerPayload, ttl time.Duration) {
	logger := logutil.GetLogger(ctx)
	if payload == nil || ttl <= 0 {
		return
	}
	opCtx, cancel := opContext(ctx, c.cfg.Timeout())
	defer cancel()
	if len(embedding) == 0 {
		var err error
		embedding, err = c.embedder.Embed(opCtx, question, taskSimilarity)
		if err != nil {
			logger.Warn("response cache: store skipped, embedding unavailable", zap.Error(err))
			return
		}
	}
	now := c.now()
	rec := &model.CacheRecord{
		ID:        newRecordID(),
		QueryText: question,
		Embedding: embedding,
		Payload:   *payload,
		Ctime:     now.Unix(),
		ExpireAt:  now.Add(ttl).Unix(),
	}
	if err := c.store.Insert(opCtx, rec); err != nil {
		logger.Warn("response cache: store failed", zap.Error(err))
		return
	}
	c.counters.stores.Add(1)
}

func (c *ResponseCache) Stats() Stats {
	return c.counters.snapshot()
}

func opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func newRecordID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
