package returns

import (
	"fmt"
	"slices"
	"time"

	"github.com/aristath/whalewatch/pkg/formulas"
)

// ComputeRollingStdDev returns the trailing-window sample std dev of each instrument.
// Rows before window-1 are undefined.
func ComputeRollingStdDev(r ReturnsTable, window int) (RollingTable, error) {
	if err := r.validate(); err != nil {
		return RollingTable{}, err
	}
	if err := validateWindow(window, r.Rows()); err != nil {
		return RollingTable{}, err
	}

	cols := make([][]Value, len(r.Columns))
	for i, col := range r.Columns {
		cols[i] = rollingSample(col, nil, window, func(x, _ []float64) float64 {
			return formulas.StdDev(x)
		})
	}
	return newRollingTable(r.Dates, r.Instruments, cols, window), nil
}

// ComputeRollingMean returns the trailing-window mean return of each instrument.
func ComputeRollingMean(r ReturnsTable, window int) (RollingTable, error) {
	if err := r.validate(); err != nil {
		return RollingTable{}, err
	}
	if err := validateWindow(window, r.Rows()); err != nil {
		return RollingTable{}, err
	}

	cols := make([][]Value, len(r.Columns))
	for i, col := range r.Columns {
		means, ok := formulas.RollingMean(col, window)
		cols[i] = toValues(means, ok)
	}
	return newRollingTable(r.Dates, r.Instruments, cols, window), nil
}

// ComputeRollingVariance returns the trailing-window sample variance of one instrument.
func ComputeRollingVariance(r ReturnsTable, instrument string, window int) (RollingSeries, error) {
	if err := r.validate(); err != nil {
		return RollingSeries{}, err
	}
	col, err := r.Column(instrument)
	if err != nil {
		return RollingSeries{}, err
	}
	if err := validateWindow(window, r.Rows()); err != nil {
		return RollingSeries{}, err
	}

	// Variance is taken as cov(x, x) so that it matches ComputeRollingCovariance
	// bit for bit when an instrument is compared with an identical series.
	values := rollingSample(col, col, window, formulas.Covariance)
	return RollingSeries{Dates: slices.Clone(r.Dates), Values: values, Window: window}, nil
}

// ComputeRollingCovariance returns, for every non-benchmark instrument, the
// trailing-window sample covariance of its returns with the benchmark's.
func ComputeRollingCovariance(r ReturnsTable, benchmark string, window int) (RollingTable, error) {
	if err := r.validate(); err != nil {
		return RollingTable{}, err
	}
	bench, err := r.Column(benchmark)
	if err != nil {
		return RollingTable{}, fmt.Errorf("benchmark: %w", err)
	}
	if err := validateWindow(window, r.Rows()); err != nil {
		return RollingTable{}, err
	}

	var (
		names []string
		cols  [][]Value
	)
	for i, name := range r.Instruments {
		if name == benchmark {
			continue
		}
		names = append(names, name)
		cols = append(cols, rollingSample(r.Columns[i], bench, window, formulas.Covariance))
	}
	return newRollingTable(r.Dates, names, cols, window), nil
}

// ComputeRollingBeta divides each covariance cell by the benchmark variance on the same date.
// Cells where either input is undefined, or the variance is zero, are undefined.
func ComputeRollingBeta(rollingCov RollingTable, rollingVarBenchmark RollingSeries) (RollingTable, error) {
	if err := rollingCov.validate(); err != nil {
		return RollingTable{}, fmt.Errorf("covariance: %w", err)
	}
	if err := rollingVarBenchmark.validate(); err != nil {
		return RollingTable{}, fmt.Errorf("benchmark variance: %w", err)
	}
	if !sameDates(rollingCov.Dates, rollingVarBenchmark.Dates) {
		return RollingTable{}, fmt.Errorf("%w: covariance and benchmark variance are not aligned by date", ErrInvalidInput)
	}

	cols := make([][]Value, len(rollingCov.Columns))
	for i, col := range rollingCov.Columns {
		out := make([]Value, len(col))
		for row, c := range col {
			v := rollingVarBenchmark.Values[row]
			if !c.Valid || !v.Valid || v.Float == 0 {
				out[row] = Undefined
				continue
			}
			out[row] = Defined(c.Float / v.Float)
		}
		cols[i] = out
	}
	return newRollingTable(rollingCov.Dates, rollingCov.Instruments, cols, rollingCov.Window), nil
}

// rollingSample applies a sample statistic over trailing windows. Sample
// statistics need two observations, so a window of 1 is entirely undefined.
func rollingSample(x, y []float64, window int, fn func(x, y []float64) float64) []Value {
	if window < 2 {
		return make([]Value, len(x))
	}
	out, ok := formulas.RollingApply(x, y, window, fn)
	return toValues(out, ok)
}

func toValues(values []float64, ok []bool) []Value {
	out := make([]Value, len(values))
	for i, v := range values {
		if ok[i] {
			out[i] = Defined(v)
		}
	}
	return out
}

func newRollingTable(dates []time.Time, instruments []string, cols [][]Value, window int) RollingTable {
	return RollingTable{
		Dates:       slices.Clone(dates),
		Instruments: slices.Clone(instruments),
		Columns:     cols,
		Window:      window,
	}
}

func validateWindow(window, rows int) error {
	if window <= 0 || window > rows {
		return fmt.Errorf("%w: window must be in [1, %d], got %d", ErrInvalidParameter, rows, window)
	}
	return nil
}

func sameDates(a, b []time.Time) bool {
	return slices.EqualFunc(a, b, func(x, y time.Time) bool { return x.Equal(y) })
}
