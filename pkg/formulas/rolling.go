package formulas

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"
)

// RollingMean calculates the trailing simple moving average of values.
// The first window-1 entries carry no meaning and are reported as not ok.
// Returns nil when window is outside [1, len(values)].
func RollingMean(values []float64, window int) (means []float64, ok []bool) {
	if window < 1 || window > len(values) {
		return nil, nil
	}

	means = talib.Sma(values, window)
	ok = make([]bool, len(values))
	for i := window - 1; i < len(values); i++ {
		ok[i] = true
	}
	return means, ok
}

// RollingApply evaluates fn over every trailing window of x and y.
// y may be nil for single-series statistics. Entries before window-1 are not ok.
func RollingApply(x, y []float64, window int, fn func(x, y []float64) float64) (out []float64, ok []bool) {
	if window < 1 || window > len(x) || (y != nil && len(y) != len(x)) {
		return nil, nil
	}

	out = make([]float64, len(x))
	ok = make([]bool, len(x))
	for end := window; end <= len(x); end++ {
		var ys []float64
		if y != nil {
			ys = y[end-window : end]
		}
		out[end-1] = fn(x[end-window:end], ys)
		ok[end-1] = true
	}
	return out, ok
}

// Quartiles holds the five-number summary of a sample.
type Quartiles struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// IQR returns the interquartile range Q3-Q1.
func (q Quartiles) IQR() float64 { return q.Q3 - q.Q1 }

// CalculateQuartiles computes the five-number summary. Quartiles interpolate
// linearly between the two closest ranks, at position p*(n-1) of the sorted
// sample, the way box plots of return distributions are usually drawn.
func CalculateQuartiles(data []float64) Quartiles {
	if len(data) == 0 {
		return Quartiles{}
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return Quartiles{
		Min:    sorted[0],
		Q1:     Percentile(sorted, 0.25),
		Median: Percentile(sorted, 0.5),
		Q3:     Percentile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}
}

// Percentile returns the p-quantile (0 <= p <= 1) of an ascending sample by
// linear interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p * float64(len(sorted)-1)
	lower := math.Floor(pos)
	i := int(lower)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (pos-lower)*(sorted[i+1]-sorted[i])
}
