package formulas

import (
	"math"
	"testing"
)

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name      string
		prices    []float64
		want      []float64
		tolerance float64
	}{
		{
			name:   "empty prices",
			prices: []float64{},
			want:   []float64{},
		},
		{
			name:   "single price",
			prices: []float64{100.0},
			want:   []float64{},
		},
		{
			name:      "up then down",
			prices:    []float64{100.0, 110.0, 99.0},
			want:      []float64{0.10, -0.10},
			tolerance: 1e-12,
		},
		{
			name:      "price sequence with zero",
			prices:    []float64{100.0, 0.0, 110.0},
			want:      []float64{-1.0, 0.0}, // second return is 0 because of division by zero
			tolerance: 1e-12,
		},
		{
			name:      "compound 5% returns",
			prices:    []float64{100.0, 105.0, 110.25},
			want:      []float64{0.05, 0.05},
			tolerance: 1e-12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateReturns(tt.prices)
			if len(result) != len(tt.want) {
				t.Fatalf("CalculateReturns() length = %v, want %v", len(result), len(tt.want))
			}
			for i := range result {
				if math.Abs(result[i]-tt.want[i]) > tt.tolerance {
					t.Errorf("CalculateReturns()[%d] = %v, want %v (±%v)", i, result[i], tt.want[i], tt.tolerance)
				}
			}
		})
	}
}

func TestCumulativeReturns(t *testing.T) {
	got := CumulativeReturns([]float64{0.10, -0.10})
	want := []float64{1.10, 0.99}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("CumulativeReturns()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	flat := CumulativeReturns(makeReturns(0, 10))
	for i, v := range flat {
		if v != 1.0 {
			t.Errorf("CumulativeReturns() of zero returns [%d] = %v, want 1", i, v)
		}
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name      string
		data      []float64
		expected  float64
		tolerance float64
	}{
		{name: "empty", data: []float64{}, expected: 0},
		{name: "single value", data: []float64{0.5}, expected: 0},
		{name: "identical values", data: makeReturns(0.01, 30), expected: 0, tolerance: 1e-15},
		{name: "sample denominator", data: []float64{0.10, -0.10}, expected: 0.141421356, tolerance: 1e-8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StdDev(tt.data)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("StdDev() = %v, want %v (±%v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestCovarianceOfSeriesWithItselfIsVariance(t *testing.T) {
	data := []float64{0.01, -0.02, 0.015, 0.003, -0.007}
	std := StdDev(data)
	if math.Abs(Covariance(data, data)-std*std) > 1e-15 {
		t.Errorf("Covariance(x, x) = %v, want StdDev(x)^2 = %v", Covariance(data, data), std*std)
	}
}

func TestAnnualize(t *testing.T) {
	tests := []struct {
		name        string
		returns     []float64
		tradingDays int
		expected    float64
		tolerance   float64
	}{
		{name: "empty returns", returns: []float64{}, tradingDays: 252, expected: 0},
		{name: "constant returns", returns: makeReturns(0.001, 252), tradingDays: 252, expected: 0, tolerance: 1e-12},
		{name: "two returns", returns: []float64{0.10, -0.10}, tradingDays: 252, expected: 0.141421356 * math.Sqrt(252), tolerance: 1e-6},
		{name: "weekly periods", returns: []float64{0.10, -0.10}, tradingDays: 52, expected: 0.141421356 * math.Sqrt(52), tolerance: 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Annualize(StdDev(tt.returns), tt.tradingDays)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("Annualize() = %v, want %v (±%v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

// Helper function to create a slice of identical returns
func makeReturns(value float64, count int) []float64 {
	returns := make([]float64, count)
	for i := range returns {
		returns[i] = value
	}
	return returns
}
