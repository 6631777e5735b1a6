package tools

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/finquery/finquery/internal/model"
	appErr "github.com/finquery/finquery/internal/pkg/errors"
)

const tradingDaysPerYear = 252

func (r *Registry) registerRisk() {
	r.register(&Tool{
		Name:      "volatility_30d",
		Category:  model.CategoryRisk,
		PerEntity: true,
		Run: func(ctx context.Context, params map[string]interface{}) (float64, error) {
			closes, err := r.closes(ctx, params, 31)
			if err != nil {
				return 0, err
			}
			return AnnualizedVolatility(closes)
		},
	})
	r.register(&Tool{
		Name:      "max_drawdown",
		Category:  model.CategoryRisk,
		PerEntity: true,
		Run: func(ctx context.Context, params map[string]interface{}) (float64, error) {
			closes, err := r.closes(ctx, params, 2)
			if err != nil {
				return 0, err
			}
			return MaxDrawdown(closes)
		},
	})
	r.register(&Tool{
		Name:      "var_95",
		Category:  model.CategoryRisk,
		PerEntity: true,
		Run: func(ctx context.Context, params map[string]interface{}) (float64, error) {
			closes, err := r.closes(ctx, params, 61)
			if err != nil {
				return 0, err
			}
			return HistoricalVaR(closes, 0.95)
		},
	})
}

func dailyReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 closes", appErr.ErrInvalid)
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return nil, fmt.Errorf("%w: zero close price", appErr.ErrInvalid)
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	return returns, nil
}

// AnnualizedVolatility is the sample standard deviation of daily
// returns scaled by sqrt(252).
func AnnualizedVolatility(closes []float64) (float64, error) {
	returns, err := dailyReturns(closes)
	if err != nil {
		return 0, err
	}
	if len(returns) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 returns", appErr.ErrInvalid)
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear), nil
}

// MaxDrawdown is the largest peak-to-trough decline, as a positive
// fraction of the peak.
func MaxDrawdown(closes []float64) (float64, error) {
	if len(closes) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 closes", appErr.ErrInvalid)
	}
	peak := closes[0]
	var maxDD float64
	for _, c := range closes[1:] {
		if c > peak {
			peak = c
			continue
		}
		if peak > 0 {
			if dd := (peak - c) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, nil
}

// HistoricalVaR is the empirical value-at-risk of daily returns at the
// given confidence level, reported as a positive loss fraction.
func HistoricalVaR(closes []float64, confidence float64) (float64, error) {
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("%w: confidence must be in (0,1)", appErr.ErrInvalid)
	}
	returns, err := dailyReturns(closes)
	if err != nil {
		return 0, err
	}
	sort.Float64s(returns)
	idx := int(float64(len(returns)) * (1 - confidence))
	if idx >= len(returns) {
		idx = len(returns) - 1
	}
	loss := -returns[idx]
	if loss < 0 {
		loss = 0
	}
	return loss, nil
}
