package cache

import (
	"context"

	"github.com/finquery/finquery/internal/model"
)

// ResponseMatch is one nearest-neighbor candidate with the similarity
// score reported by the index. The score must use the same metric the
// index searches with (cosine); mixing metrics between the write and
// read paths silently breaks threshold semantics.
type ResponseMatch struct {
	Record     model.CacheRecord
	Similarity float64
}

type ResponseStore interface {
	Insert(ctx context.Context, rec *model.CacheRecord) error
	// Nearest returns non-expired records ordered by descending cosine
	// similarity to the probe embedding.
	Nearest(ctx context.Context, embedding []float32, limit int) ([]ResponseMatch, error)
}

type RouteMatch struct {
	Record     model.RouteRecord
	Similarity float64
}

type RouteStore interface {
	Insert(ctx context.Context, rec *model.RouteRecord) error
	Nearest(ctx context.Context, embedding []float32, limit int) ([]RouteMatch, error)
	Flush(ctx context.Context) error
}

type ToolStore interface {
	Get(ctx context.Context, key string) (*model.ToolOutputRecord, bool, error)
	Put(ctx context.Context, rec *model.ToolOutputRecord) error
}
