package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/finquery/finquery/internal/model"
	"github.com/finquery/finquery/internal/pkg/dbutil"
)

// PriceRepo reads the time-series price history that the metric
// computations run over. Ingestion is owned by an external pipeline;
// UpsertBar exists for seeding and tests.
type PriceRepo struct {
	db *sql.DB
}

func NewPriceRepo(db *sql.DB) *PriceRepo {
	return &PriceRepo{db: db}
}

// RecentBars returns up to limit daily bars for a symbol, oldest first.
func (r *PriceRepo) RecentBars(ctx context.Context, symbol string, limit int) ([]model.PriceBar, error) {
	where := map[string]interface{}{
		"symbol":   symbol,
		"_orderby": "day desc",
		"_limit":   []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("price_history", where,
		[]string{"symbol", "day", "open", "high", "low", "close", "volume"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bars []model.PriceBar
	for rows.Next() {
		var bar model.PriceBar
		if err := rows.Scan(&bar.Symbol, &bar.Day, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func (r *PriceRepo) UpsertBar(ctx context.Context, bar *model.PriceBar) error {
	const query = `
		INSERT INTO price_history (symbol, day, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, day) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`
	_, err := r.db.ExecContext(ctx, query,
		bar.Symbol, bar.Day, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	return err
}

func (r *PriceRepo) GetFundamentals(ctx context.Context, symbol string) (*model.Fundamentals, bool, error) {
	const query = `
		SELECT symbol, earnings_per_share, dividend_per_share, book_value, mtime
		FROM fundamentals
		WHERE symbol = $1
	`
	row := r.db.QueryRowContext(ctx, query, symbol)
	var f model.Fundamentals
	if err := row.Scan(&f.Symbol, &f.EarningsPerShare, &f.DividendPerShare, &f.BookValue, &f.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &f, true, nil
}

func (r *PriceRepo) UpsertFundamentals(ctx context.Context, f *model.Fundamentals) error {
	const query = `
		INSERT INTO fundamentals (symbol, earnings_per_share, dividend_per_share, book_value, mtime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE SET
			earnings_per_share = EXCLUDED.earnings_per_share,
			dividend_per_share = EXCLUDED.dividend_per_share,
			book_value = EXCLUDED.book_value,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		f.Symbol, f.EarningsPerShare, f.DividendPerShare, f.BookValue, f.Mtime)
	return err
}
