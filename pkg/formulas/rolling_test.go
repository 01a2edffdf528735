package formulas

import (
	"math"
	"testing"
)

func TestRollingMean(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	means, ok := RollingMean(values, 3)
	if len(means) != len(values) {
		t.Fatalf("RollingMean() length = %d, want %d", len(means), len(values))
	}

	want := []float64{0, 0, 2, 3, 4}
	wantOK := []bool{false, false, true, true, true}
	for i := range values {
		if ok[i] != wantOK[i] {
			t.Errorf("RollingMean() ok[%d] = %v, want %v", i, ok[i], wantOK[i])
		}
		if ok[i] && math.Abs(means[i]-want[i]) > 1e-12 {
			t.Errorf("RollingMean()[%d] = %v, want %v", i, means[i], want[i])
		}
	}
}

func TestRollingMean_InvalidWindow(t *testing.T) {
	for _, window := range []int{0, -1, 6} {
		means, ok := RollingMean([]float64{1, 2, 3, 4, 5}, window)
		if means != nil || ok != nil {
			t.Errorf("RollingMean(window=%d) = %v, want nil", window, means)
		}
	}
}

func TestRollingApply_FullWindowMatchesStatistic(t *testing.T) {
	data := []float64{0.01, -0.02, 0.015, 0.003, -0.007}

	out, ok := RollingApply(data, nil, len(data), func(x, _ []float64) float64 { return StdDev(x) })
	for i := 0; i < len(data)-1; i++ {
		if ok[i] {
			t.Errorf("RollingApply() ok[%d] = true, want false", i)
		}
	}
	last := len(data) - 1
	if !ok[last] || math.Abs(out[last]-StdDev(data)) > 1e-15 {
		t.Errorf("RollingApply() last = %v, want %v", out[last], StdDev(data))
	}
}

func TestRollingApply_MismatchedLengths(t *testing.T) {
	out, ok := RollingApply([]float64{1, 2, 3}, []float64{1, 2}, 2, Covariance)
	if out != nil || ok != nil {
		t.Errorf("RollingApply() with mismatched lengths = %v, want nil", out)
	}
}

func TestCalculateQuartiles(t *testing.T) {
	q := CalculateQuartiles([]float64{5, 1, 3, 2, 4})
	if q.Min != 1 || q.Max != 5 || q.Median != 3 {
		t.Errorf("CalculateQuartiles() = %+v, want min 1, median 3, max 5", q)
	}
	if q.Q1 > q.Median || q.Q3 < q.Median {
		t.Errorf("CalculateQuartiles() quartiles out of order: %+v", q)
	}
	if q.IQR() < 0 {
		t.Errorf("IQR() = %v, want non-negative", q.IQR())
	}

	// Ranks 0..3 of {1,2,3,4}: Q1 sits at 0.75, Q3 at 2.25.
	even := CalculateQuartiles([]float64{4, 1, 3, 2})
	if math.Abs(even.Q1-1.75) > 1e-12 || math.Abs(even.Median-2.5) > 1e-12 || math.Abs(even.Q3-3.25) > 1e-12 {
		t.Errorf("CalculateQuartiles() = %+v, want q1 1.75, median 2.5, q3 3.25", even)
	}
	if math.Abs(even.IQR()-1.5) > 1e-12 {
		t.Errorf("IQR() = %v, want 1.5", even.IQR())
	}

	if empty := CalculateQuartiles(nil); empty != (Quartiles{}) {
		t.Errorf("CalculateQuartiles(nil) = %+v, want zero value", empty)
	}
}
