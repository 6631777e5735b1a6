package tools

import (
	"context"
	"fmt"

	"github.com/finquery/finquery/internal/model"
	appErr "github.com/finquery/finquery/internal/pkg/errors"
)

func (r *Registry) registerValuation() {
	r.register(&Tool{
		Name:      "pe_ratio",
		Category:  model.CategoryValuation,
		PerEntity: true,
		Run: func(ctx context.Context, params map[string]interface{}) (float64, error) {
			price, f, err := r.latestPriceAndFundamentals(ctx, params)
			if err != nil {
				return 0, err
			}
			if f.EarningsPerShare <= 0 {
				return 0, fmt.Errorf("%w: non-positive earnings per share", appErr.ErrInvalid)
			}
			return price / f.EarningsPerShare, nil
		},
	})
	r.register(&Tool{
		Name:      "dividend_yield",
		Category:  model.CategoryValuation,
		PerEntity: true,
		Run: func(ctx context.Context, params map[string]interface{}) (float64, error) {
			price, f, err := r.latestPriceAndFundamentals(ctx, params)
			if err != nil {
				return 0, err
			}
			if price <= 0 {
				return 0, fmt.Errorf("%w: non-positive price", appErr.ErrInvalid)
			}
			return f.DividendPerShare / price, nil
		},
	})
	r.register(&Tool{
		Name:      "price_to_book",
		Category:  model.CategoryValuation,
		PerEntity: true,
		Run: func(ctx context.Context, params map[string]interface{}) (float64, error) {
			price, f, err := r.latestPriceAndFundamentals(ctx, params)
			if err != nil {
				return 0, err
			}
			if f.BookValue <= 0 {
				return 0, fmt.Errorf("%w: non-positive book value", appErr.ErrInvalid)
			}
			return price / f.BookValue, nil
		},
	})
}

func (r *Registry) latestPriceAndFundamentals(ctx context.Context, params map[string]interface{}) (float64, *model.Fundamentals, error) {
	symbol, err := symbolParam(params)
	if err != nil {
		return 0, nil, err
	}
	bars, err := r.prices.RecentBars(ctx, symbol, 1)
	if err != nil {
		return 0, nil, err
	}
	if len(bars) == 0 {
		return 0, nil, fmt.Errorf("%w: no price history for %s", appErr.ErrNotFound, symbol)
	}
	f, ok, err := r.prices.GetFundamentals(ctx, symbol)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, fmt.Errorf("%w: no fundamentals for %s", appErr.ErrNotFound, symbol)
	}
	return bars[len(bars)-1].Close, f, nil
}
