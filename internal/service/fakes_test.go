package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/finquery/finquery/internal/ai"
	"github.com/finquery/finquery/internal/cache"
	"github.com/finquery/finquery/internal/model"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

// scriptedGenerator replays canned completions in order.
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

func cosine32(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type memResponseStore struct {
	mu      sync.Mutex
	records []model.CacheRecord
}

func (s *memResponseStore) Insert(ctx context.Context, rec *model.CacheRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *memResponseStore) Nearest(ctx context.Context, embedding []float32, limit int) ([]cache.ResponseMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().Unix()
	var matches []cache.ResponseMatch
	for _, rec := range s.records {
		if rec.ExpireAt <= now {
			continue
		}
		matches = append(matches, cache.ResponseMatch{Record: rec, Similarity: cosine32(embedding, rec.Embedding)})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

type memRouteStore struct {
	mu      sync.Mutex
	records []model.RouteRecord
}

func (s *memRouteStore) Insert(ctx context.Context, rec *model.RouteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *memRouteStore) Nearest(ctx context.Context, embedding []float32, limit int) ([]cache.RouteMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().Unix()
	var matches []cache.RouteMatch
	for _, rec := range s.records {
		if rec.ExpireAt <= now {
			continue
		}
		matches = append(matches, cache.RouteMatch{Record: rec, Similarity: cosine32(embedding, rec.Embedding)})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *memRouteStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

type memToolStore struct {
	mu      sync.Mutex
	records map[string]model.ToolOutputRecord
}

func newMemToolStore() *memToolStore {
	return &memToolStore{records: make(map[string]model.ToolOutputRecord)}
}

func (s *memToolStore) Get(ctx context.Context, key string) (*model.ToolOutputRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (s *memToolStore) Put(ctx context.Context, rec *model.ToolOutputRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key()] = *rec
	return nil
}

type memFeatureRepo struct {
	mu      sync.Mutex
	records map[string]model.FeatureRecord
}

func newMemFeatureRepo() *memFeatureRepo {
	return &memFeatureRepo{records: make(map[string]model.FeatureRecord)}
}

func (r *memFeatureRepo) Get(ctx context.Context, entityID, featureName string) (*model.FeatureRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[entityID+":"+featureName]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (r *memFeatureRepo) Upsert(ctx context.Context, rec *model.FeatureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.EntityID+":"+rec.FeatureName] = *rec
	return nil
}

// fakePriceSource serves synthetic rising closes for any symbol it knows
// and counts bar fetches so tests can assert cache effectiveness.
type fakePriceSource struct {
	mu           sync.Mutex
	closes       map[string][]float64
	fundamentals map[string]*model.Fundamentals
	barCalls     int
}

func (f *fakePriceSource) RecentBars(ctx context.Context, symbol string, limit int) ([]model.PriceBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.barCalls++
	closes, ok := f.closes[symbol]
	if !ok {
		return nil, nil
	}
	if limit > 0 && len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = model.PriceBar{Symbol: symbol, Day: fmt.Sprintf("2026-01-%02d", i+1), Close: c}
	}
	return bars, nil
}

func (f *fakePriceSource) GetFundamentals(ctx context.Context, symbol string) (*model.Fundamentals, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fund, ok := f.fundamentals[symbol]
	return fund, ok, nil
}

func risingCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}
