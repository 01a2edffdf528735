package returns

import (
	"fmt"
	"math"
	"slices"

	"github.com/aristath/whalewatch/pkg/formulas"
)

// DefaultTradingDays is the conventional annual trading-day count.
const DefaultTradingDays = formulas.DefaultTradingDays

// ComputeReturns converts prices into fractional daily returns.
// return[i] = price[i]/price[i-1] - 1; the first row has no prior price and is dropped.
func ComputeReturns(prices PriceTable) (ReturnsTable, error) {
	if prices.Rows() < 2 {
		return ReturnsTable{}, fmt.Errorf("%w: need at least 2 price rows, got %d", ErrInvalidInput, prices.Rows())
	}
	if err := prices.validate(); err != nil {
		return ReturnsTable{}, err
	}

	cols := make([][]float64, len(prices.Columns))
	for i, col := range prices.Columns {
		cols[i] = formulas.CalculateReturns(col)
	}

	return ReturnsTable{Table{
		Dates:       slices.Clone(prices.Dates[1:]),
		Instruments: slices.Clone(prices.Instruments),
		Columns:     cols,
	}}, nil
}

// ComputeCumulativeReturns compounds daily returns per instrument.
// Row i holds (1+r[0])*(1+r[1])*...*(1+r[i]).
func ComputeCumulativeReturns(r ReturnsTable) CumulativeReturnsTable {
	cols := make([][]float64, len(r.Columns))
	for i, col := range r.Columns {
		cols[i] = formulas.CumulativeReturns(col)
	}

	return CumulativeReturnsTable{Table{
		Dates:       slices.Clone(r.Dates),
		Instruments: slices.Clone(r.Instruments),
		Columns:     cols,
	}}
}

// ComputeStdDev returns the sample standard deviation of each instrument's returns.
func ComputeStdDev(r ReturnsTable) (Stats, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if r.Rows() < 2 {
		return nil, fmt.Errorf("%w: standard deviation needs at least 2 observations, got %d", ErrInsufficientData, r.Rows())
	}

	out := make(Stats, len(r.Instruments))
	for i, name := range r.Instruments {
		out[name] = formulas.StdDev(r.Columns[i])
	}
	return out, nil
}

// AnnualizeStdDev scales daily standard deviations by sqrt(tradingDays).
func AnnualizeStdDev(std Stats, tradingDays int) (Stats, error) {
	if err := validateTradingDays(tradingDays); err != nil {
		return nil, err
	}

	out := make(Stats, len(std))
	for name, s := range std {
		out[name] = formulas.Annualize(s, tradingDays)
	}
	return out, nil
}

// AnnualizeMeanReturn returns the arithmetic mean daily return times tradingDays.
func AnnualizeMeanReturn(r ReturnsTable, tradingDays int) (Stats, error) {
	if err := validateTradingDays(tradingDays); err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	if r.Rows() == 0 {
		return nil, fmt.Errorf("%w: mean return needs at least 1 observation", ErrInsufficientData)
	}

	out := make(Stats, len(r.Instruments))
	for i, name := range r.Instruments {
		out[name] = formulas.Mean(r.Columns[i]) * float64(tradingDays)
	}
	return out, nil
}

// ComputeSharpeRatio divides annualized mean return by annualized std dev.
// A zero std dev yields an undefined ratio rather than an infinity.
func ComputeSharpeRatio(annualizedMean, annualizedStd Stats) (Ratios, error) {
	out := make(Ratios, len(annualizedMean))
	for name, mean := range annualizedMean {
		std, ok := annualizedStd[name]
		if !ok {
			return nil, fmt.Errorf("%w: no standard deviation for %q", ErrUnknownInstrument, name)
		}
		if std == 0 || math.IsNaN(std) {
			out[name] = Undefined
			continue
		}
		out[name] = Defined(mean / std)
	}
	return out, nil
}

// MeanOfSeries averages the defined entries of a series.
func MeanOfSeries(values []Value) (float64, error) {
	sum, n := 0.0, 0
	for _, v := range values {
		if v.Valid {
			sum += v.Float
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: every entry is undefined", ErrInsufficientData)
	}
	return sum / float64(n), nil
}

// MeanByInstrument applies MeanOfSeries to every column of a rolling table.
func MeanByInstrument(t RollingTable) (Stats, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	out := make(Stats, len(t.Instruments))
	for i, name := range t.Instruments {
		m, err := MeanOfSeries(t.Columns[i])
		if err != nil {
			return nil, fmt.Errorf("mean of %q: %w", name, err)
		}
		out[name] = m
	}
	return out, nil
}

func validateTradingDays(tradingDays int) error {
	if tradingDays <= 0 {
		return fmt.Errorf("%w: trading days must be positive, got %d", ErrInvalidParameter, tradingDays)
	}
	return nil
}
