package ai

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupGenerator struct {
	items []GeneratorEntry
}

// NewGroupGenerator tries each generator in order until one succeeds.
func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	if len(items) == 0 {
		return nil
	}
	return &groupGenerator{items: items}
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (*Completion, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Generator == nil {
			continue
		}
		res, err := item.Generator.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("generator failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("generator not configured")
	}
	return nil, lastErr
}

type groupEmbedder struct {
	items []EmbedderEntry
	model string
}

// NewGroupEmbedder tries each embedder in order until one succeeds.
// Failover never crosses embedding models: vectors from different
// models live in different spaces, and probing one model's collection
// with another model's vector corrupts similarity semantics without
// ever erroring. Entries whose model differs from the first usable
// entry's are dropped.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	model := ""
	kept := make([]EmbedderEntry, 0, len(items))
	for _, item := range items {
		if item.Embedder == nil {
			continue
		}
		if model == "" {
			model = item.Embedder.ModelName()
		}
		if item.Embedder.ModelName() != model {
			logutil.GetLogger(context.Background()).Warn("embedder fallback dropped, model mismatch",
				zap.String("name", item.Name),
				zap.String("model", item.Embedder.ModelName()),
				zap.String("want", model))
			continue
		}
		kept = append(kept, item)
	}
	if len(kept) == 0 {
		return nil
	}
	return &groupEmbedder{items: kept, model: model}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var lastErr error
	for i, item := range g.items {
		res, err := item.Embedder.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	return nil, lastErr
}

func (g *groupEmbedder) ModelName() string {
	return g.model
}
