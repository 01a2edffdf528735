package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultTradingDays is the conventional number of trading days in a year.
const DefaultTradingDays = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (N-1 denominator)
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// Annualize scales a per-period standard deviation to a yearly one.
// Formula: StdDev × sqrt(periods)
func Annualize(stdDev float64, periods int) float64 {
	return stdDev * math.Sqrt(float64(periods))
}

// CalculateReturns converts prices to fractional returns
// Returns[i] = Price[i+1] / Price[i] - 1
//
// A zero previous price yields a zero return; callers that need strict
// behaviour must validate prices beforehand.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = prices[i]/prices[i-1] - 1
		}
	}

	return returns
}

// CumulativeReturns compounds a series of returns.
// Out[i] = (1+r0)*(1+r1)*...*(1+ri)
func CumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	growth := 1.0
	for i, r := range returns {
		growth *= 1 + r
		out[i] = growth
	}
	return out
}
