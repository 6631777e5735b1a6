package tools

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/finquery/finquery/internal/pkg/errors"
)

func TestSMA(t *testing.T) {
	got, err := SMA([]float64{1, 2, 3, 4, 5}, 5)
	require.NoError(t, err)
	require.Equal(t, 3.0, got)

	// only the trailing window counts
	got, err = SMA([]float64{100, 1, 2, 3}, 3)
	require.NoError(t, err)
	require.Equal(t, 2.0, got)

	_, err = SMA([]float64{1, 2}, 3)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = SMA([]float64{1, 2}, 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestEMA(t *testing.T) {
	// seed SMA(1,2)=1.5, alpha=2/3: 2.5, 3.5, 4.5
	got, err := EMA([]float64{1, 2, 3, 4, 5}, 2)
	require.NoError(t, err)
	require.InDelta(t, 4.5, got, 1e-9)

	// no values past the seed window: EMA is the seed SMA
	got, err = EMA([]float64{2, 4}, 2)
	require.NoError(t, err)
	require.Equal(t, 3.0, got)

	_, err = EMA([]float64{1}, 2)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestRSI(t *testing.T) {
	// gains 1, losses 0.5, rs=2, rsi=100-100/3
	got, err := RSI([]float64{10, 11, 10.5}, 2)
	require.NoError(t, err)
	require.InDelta(t, 66.6666667, got, 1e-6)

	// monotonically rising series has no losses
	got, err = RSI([]float64{1, 2, 3, 4}, 3)
	require.NoError(t, err)
	require.Equal(t, 100.0, got)

	_, err = RSI([]float64{10, 11}, 2)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestAnnualizedVolatility(t *testing.T) {
	// returns +10% and -10%: stddev sqrt(0.02), annualized by sqrt(252)
	got, err := AnnualizedVolatility([]float64{100, 110, 99})
	require.NoError(t, err)
	require.InDelta(t, 2.244994432, got, 1e-6)

	_, err = AnnualizedVolatility([]float64{100, 110})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = AnnualizedVolatility([]float64{100, 0, 100})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestMaxDrawdown(t *testing.T) {
	got, err := MaxDrawdown([]float64{10, 12, 6, 8})
	require.NoError(t, err)
	require.Equal(t, 0.5, got)

	// monotonically rising series never draws down
	got, err = MaxDrawdown([]float64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 0.0, got)

	_, err = MaxDrawdown([]float64{10})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestHistoricalVaR(t *testing.T) {
	// returns -10%, +10%, +10%: the 5th percentile is the worst return
	got, err := HistoricalVaR([]float64{100, 90, 99, 108.9}, 0.95)
	require.NoError(t, err)
	require.InDelta(t, 0.1, got, 1e-9)

	// all-positive returns clamp to zero loss
	got, err = HistoricalVaR([]float64{100, 101, 102}, 0.95)
	require.NoError(t, err)
	require.Equal(t, 0.0, got)

	_, err = HistoricalVaR([]float64{100, 101}, 1.0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
