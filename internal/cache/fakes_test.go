package cache

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/finquery/finquery/internal/model"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

// stallEmbedder hangs until the caller's context expires, standing in
// for an unresponsive embedding endpoint.
type stallEmbedder struct{}

func (stallEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stallEmbedder) ModelName() string {
	return "stall"
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
	mu         sync.Mutex
	records    []model.CacheRecord
	insertErr  error
	nearestErr error
	now        func() time.Time
}

func (s *memResponseStore) clock() int64 {
	if s.now != nil {
		return s.now().Unix()
	}
	return time.Now().Unix()
}

func (s *memResponseStore) Insert(ctx context.Context, rec *model.CacheRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *memResponseStore) Nearest(ctx context.Context, embedding []float32, limit int) ([]ResponseMatch, error) {
	if s.nearestErr != nil {
		return nil, s.nearestErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	var matches []ResponseMatch
	for _, rec := range s.records {
		if rec.ExpireAt <= now {
			continue
		}
		matches = append(matches, ResponseMatch{Record: rec, Similarity: cosine32(embedding, rec.Embedding)})
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
	mu         sync.Mutex
	records    []model.RouteRecord
	insertErr  error
	nearestErr error
	flushed    bool
	now        func() time.Time
}

func (s *memRouteStore) clock() int64 {
	if s.now != nil {
		return s.now().Unix()
	}
	return time.Now().Unix()
}

func (s *memRouteStore) Insert(ctx context.Context, rec *model.RouteRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *memRouteStore) Nearest(ctx context.Context, embedding []float32, limit int) ([]RouteMatch, error) {
	if s.nearestErr != nil {
		return nil, s.nearestErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	var matches []RouteMatch
	for _, rec := range s.records {
		if rec.ExpireAt <= now {
			continue
		}
		matches = append(matches, RouteMatch{Record: rec, Similarity: cosine32(embedding, rec.Embedding)})
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
	s.flushed = true
	return nil
}

type memToolStore struct {
	mu      sync.Mutex
	records map[string]model.ToolOutputRecord
	getErr  error
	putErr  error
}

func newMemToolStore() *memToolStore {
	return &memToolStore{records: make(map[string]model.ToolOutputRecord)}
}

func (s *memToolStore) Get(ctx context.Context, key string) (*model.ToolOutputRecord, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (s *memToolStore) Put(ctx context.Context, rec *model.ToolOutputRecord) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key()] = *rec
	return nil
}
