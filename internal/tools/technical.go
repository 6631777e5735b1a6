package tools

import (
	"context"
	"fmt"

	"github.com/finquery/finquery/internal/model"
	appErr "github.com/finquery/finquery/internal/pkg/errors"
)

func (r *Registry) registerTechnical() {
	r.register(&Tool{
		Name:      "sma_20",
		Category:  model.CategoryTechnical,
		PerEntity: true,
		Run:       r.windowedClose(20, SMA),
	})
	r.register(&Tool{
		Name:      "sma_50",
		Category:  model.CategoryTechnical,
		PerEntity: true,
		Run:       r.windowedClose(50, SMA),
	})
	r.register(&Tool{
		Name:     "moving_average",
		Category: model.CategoryTechnical,
		Run: func(ctx context.Context, params map[string]interface{}) (float64, error) {
			window := windowParam(params, "window", 20)
			closes, err := r.closes(ctx, params, window)
			if err != nil {
				return 0, err
			}
			return SMA(closes, window)
		},
	})
	r.register(&Tool{
		Name:     "ema",
		Category: model.CategoryTechnical,
		Run: func(ctx context.Context, params map[string]interface{}) (float64, error) {
			window := windowParam(params, "window", 20)
			closes, err := r.closes(ctx, params, window*3)
			if err != nil {
				return 0, err
			}
			return EMA(closes, window)
		},
	})
	r.register(&Tool{
		Name:      "rsi_14",
		Category:  model.CategoryTechnical,
		PerEntity: true,
		Run: func(ctx context.Context, params map[string]interface{}) (float64, error) {
			closes, err := r.closes(ctx, params, 15)
			if err != nil {
				return 0, err
			}
			return RSI(closes, 14)
		},
	})
}

func (r *Registry) windowedClose(window int, fn func([]float64, int) (float64, error)) func(context.Context, map[string]interface{}) (float64, error) {
	return func(ctx context.Context, params map[string]interface{}) (float64, error) {
		closes, err := r.closes(ctx, params, window)
		if err != nil {
			return 0, err
		}
		return fn(closes, window)
	}
}

func (r *Registry) closes(ctx context.Context, params map[string]interface{}, minBars int) ([]float64, error) {
	symbol, err := symbolParam(params)
	if err != nil {
		return nil, err
	}
	bars, err := r.prices.RecentBars(ctx, symbol, minBars)
	if err != nil {
		return nil, err
	}
	if len(bars) < minBars {
		return nil, fmt.Errorf("%w: %s has %d bars, need %d", appErr.ErrInvalid, symbol, len(bars), minBars)
	}
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return closes, nil
}

// SMA is the simple moving average over the last window values.
func SMA(values []float64, window int) (float64, error) {
	if window <= 0 || len(values) < window {
		return 0, fmt.Errorf("%w: need %d values, have %d", appErr.ErrInvalid, window, len(values))
	}
	var sum float64
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window), nil
}

// EMA is the exponential moving average with smoothing 2/(window+1),
// seeded with the SMA of the first window values.
func EMA(values []float64, window int) (float64, error) {
	if window <= 0 || len(values) < window {
		return 0, fmt.Errorf("%w: need %d values, have %d", appErr.ErrInvalid, window, len(values))
	}
	seed, err := SMA(values[:window], window)
	if err != nil {
		return 0, err
	}
	alpha := 2.0 / float64(window+1)
	ema := seed
	for _, v := range values[window:] {
		ema = v*alpha + ema*(1-alpha)
	}
	return ema, nil
}

// RSI is Wilder's relative strength index over the given period.
func RSI(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period+1 {
		return 0, fmt.Errorf("%w: need %d values, have %d", appErr.ErrInvalid, period+1, len(values))
	}
	recent := values[len(values)-period-1:]
	var gains, losses float64
	for i := 1; i < len(recent); i++ {
		delta := recent[i] - recent[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	if losses == 0 {
		return 100, nil
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - 100/(1+rs), nil
}
