package feature

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/model"
)

// Repo is the storage the feature store serves from. Implemented by
// repo.FeatureRepo; mocked in tests.
type Repo interface {
	Get(ctx context.Context, entityID, featureName string) (*model.FeatureRecord, bool, error)
	Upsert(ctx context.Context, rec *model.FeatureRecord) error
}

// ComputeFunc produces a feature value on demand. It is owned by the
// orchestration layer; the store only decides when to call it.
type ComputeFunc func(ctx context.Context) (float64, error)

// Store serves precomputed per-entity metrics with category-scoped
// freshness. The batch refresh job is the primary writer; Store writes
// only on the get-or-compute fallback path.
type Store struct {
	repo  Repo
	ttls  map[model.FeatureCategory]time.Duration
	group singleflight.Group
	now   func() time.Time
}

func NewStore(repo Repo, cfg config.FeatureConfig) *Store {
	return &Store{
		repo: repo,
		ttls: map[model.FeatureCategory]time.Duration{
			model.CategoryTechnical: time.Duration(cfg.TechnicalTTLMinutes) * time.Minute,
			model.CategoryRisk:      time.Duration(cfg.RiskTTLMinutes) * time.Minute,
			model.CategoryValuation: time.Duration(cfg.ValuationTTLMinutes) * time.Minute,
		},
		now: time.Now,
	}
}

// TTLFor returns the freshness window for a category.
func (s *Store) TTLFor(category model.FeatureCategory) time.Duration {
	if ttl, ok := s.ttls[category]; ok && ttl > 0 {
		return ttl
	}
	return time.Hour
}

// Get returns a fresh value for the key, or absent. A present-but-
// expired record is absent for serving purposes; substrate failure
// degrades to absent as well.
func (s *Store) Get(ctx context.Context, entityID, featureName string) (float64, bool) {
	rec, ok, err := s.repo.Get(ctx, entityID, featureName)
	if err != nil {
		logutil.GetLogger(ctx).Warn("feature store: get degraded to absent",
			zap.String("entity_id", entityID), zap.String("feature", featureName), zap.Error(err))
		return 0, false
	}
	if !ok || rec.Expired(s.now().Unix()) {
		return 0, false
	}
	return rec.Value, true
}

// GetBatch performs independent per-key lookups. The underlying store
// may be distributed, so no multi-key atomicity is assumed; absent keys
// are simply missing from the result.
func (s *Store) GetBatch(ctx context.Context, entityID string, featureNames []string) map[string]float64 {
	out := make(map[string]float64, len(featureNames))
	for _, name := range featureNames {
		if value, ok := s.Get(ctx, entityID, name); ok {
			out[name] = value
		}
	}
	return out
}

type callOptions struct {
	allowStale bool
}

type Option func(*callOptions)

// WithStaleFallback makes GetOrCompute return a stale-but-present value
// (flagged stale) when the computation fails, instead of the error.
// Stale tolerance is an explicit per-call-site decision.
func WithStaleFallback() Option {
	return func(o *callOptions) {
		o.allowStale = true
	}
}

// GetOrCompute serves the fresh value if present, otherwise invokes
// compute under a per-key single flight: one computation per key, with
// concurrent callers for that key sharing its result. Callers for
// different keys never block on each other. Compute failures propagate
// unless WithStaleFallback applies.
func (s *Store) GetOrCompute(ctx context.Context, entityID, featureName string, category model.FeatureCategory, compute ComputeFunc, opts ...Option) (float64, bool, error) {
	var callOpts callOptions
	for _, opt := range opts {
		opt(&callOpts)
	}
	if value, ok := s.Get(ctx, entityID, featureName); ok {
		return value, false, nil
	}
	key := entityID + ":" + featureName
	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		// the computation outlives caller cancellation so that
		// concurrent and future callers still benefit from it
		flightCtx := context.WithoutCancel(ctx)
		// another flight may have populated the key while we queued
		if value, ok := s.Get(flightCtx, entityID, featureName); ok {
			return value, nil
		}
		value, err := compute(flightCtx)
		if err != nil {
			return 0.0, err
		}
		s.put(flightCtx, entityID, featureName, category, value)
		return value, nil
	})
	if err != nil {
		if callOpts.allowStale {
			if stale, ok := s.getStale(ctx, entityID, featureName); ok {
				logutil.GetLogger(ctx).Warn("feature store: compute failed, serving stale value",
					zap.String("entity_id", entityID), zap.String("feature", featureName), zap.Error(err))
				return stale, true, nil
			}
		}
		return 0, false, err
	}
	return value.(float64), false, nil
}

// Refresh recomputes a feature unconditionally and stores it. Used by
// the batch refresh job.
func (s *Store) Refresh(ctx context.Context, entityID, featureName string, category model.FeatureCategory, compute ComputeFunc) error {
	value, err := compute(ctx)
	if err != nil {
		return err
	}
	return s.upsert(ctx, entityID, featureName, category, value)
}

func (s *Store) put(ctx context.Context, entityID, featureName string, category model.FeatureCategory, value float64) {
	if err := s.upsert(ctx, entityID, featureName, category, value); err != nil {
		logutil.GetLogger(ctx).Warn("feature store: fallback write failed",
			zap.String("entity_id", entityID), zap.String("feature", featureName), zap.Error(err))
	}
}

func (s *Store) upsert(ctx context.Context, entityID, featureName string, category model.FeatureCategory, value float64) error {
	now := s.now()
	return s.repo.Upsert(ctx, &model.FeatureRecord{
		EntityID:    entityID,
		FeatureName: featureName,
		Value:       value,
		Category:    category,
		ComputedAt:  now.Unix(),
		ExpireAt:    now.Add(s.TTLFor(category)).Unix(),
	})
}

func (s *Store) getStale(ctx context.Context, entityID, featureName string) (float64, bool) {
	rec, ok, err := s.repo.Get(ctx, entityID, featureName)
	if err != nil || !ok {
		return 0, false
	}
	return rec.Value, true
}
