package tools

import (
	"context"
	"fmt"

	"github.com/finquery/finquery/internal/model"
	appErr "github.com/finquery/finquery/internal/pkg/errors"
)

// PriceSource supplies the time-series inputs the metric computations
// run over. Implemented by repo.PriceRepo.
type PriceSource interface {
	RecentBars(ctx context.Context, symbol string, limit int) ([]model.PriceBar, error)
	GetFundamentals(ctx context.Context, symbol string) (*model.Fundamentals, bool, error)
}

// Tool is one named computation: pure inputs to value. PerEntity marks
// metrics whose only parameter is the symbol; those are servable from
// the feature store under the tool's name.
type Tool struct {
	Name      string
	Category  model.FeatureCategory
	PerEntity bool
	Run       func(ctx context.Context, params map[string]interface{}) (float64, error)
}

type Registry struct {
	prices PriceSource
	tools  map[string]*Tool
	order  []string
}

func NewRegistry(prices PriceSource) *Registry {
	r := &Registry{
		prices: prices,
		tools:  make(map[string]*Tool),
	}
	r.registerTechnical()
	r.registerRisk()
	r.registerValuation()
	return r
}

func (r *Registry) register(t *Tool) {
	if _, ok := r.tools[t.Name]; ok {
		panic(fmt.Sprintf("duplicate tool: %s", t.Name))
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// PerEntityTools returns the metrics the batch refresh job precomputes
// for every tracked symbol.
func (r *Registry) PerEntityTools() []*Tool {
	var out []*Tool
	for _, name := range r.order {
		if t := r.tools[name]; t.PerEntity {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Run(ctx context.Context, name string, params map[string]interface{}) (float64, error) {
	t, ok := r.tools[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", appErr.ErrUnknownTool, name)
	}
	return t.Run(ctx, params)
}

func symbolParam(params map[string]interface{}) (string, error) {
	raw, ok := params["symbol"]
	if !ok {
		return "", fmt.Errorf("%w: symbol parameter is required", appErr.ErrInvalid)
	}
	symbol, ok := raw.(string)
	if !ok || symbol == "" {
		return "", fmt.Errorf("%w: symbol must be a non-empty string", appErr.ErrInvalid)
	}
	return symbol, nil
}

// windowParam reads an integer parameter that may arrive as a JSON
// float64 from a deserialized plan.
func windowParam(params map[string]interface{}, key string, def int) int {
	raw, ok := params[key]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}
