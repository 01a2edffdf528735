package returns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReturns(t *testing.T) ReturnsTable {
	t.Helper()
	return mustReturns(t, []string{"BERKSHIRE", "TIGER", "S&P 500"},
		[]float64{0.010, -0.004, 0.006, 0.012, -0.008, 0.003, 0.001, -0.002},
		[]float64{-0.015, 0.022, 0.004, -0.007, 0.018, -0.011, 0.009, 0.002},
		[]float64{0.005, -0.003, 0.004, 0.008, -0.006, 0.002, 0.000, -0.001},
	)
}

func TestComputeRollingStdDev_WarmUp(t *testing.T) {
	r := sampleReturns(t)

	rolling, err := ComputeRollingStdDev(r, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, rolling.Window)
	assert.Equal(t, r.Dates, rolling.Dates)
	assert.Equal(t, r.Instruments, rolling.Instruments)
	for _, col := range rolling.Columns {
		require.Len(t, col, r.Rows())
		assert.False(t, col[0].Valid)
		assert.False(t, col[1].Valid)
		for _, v := range col[2:] {
			assert.True(t, v.Valid)
		}
	}
}

func TestComputeRollingStdDev_FullWindowMatchesStdDev(t *testing.T) {
	r := sampleReturns(t)

	rolling, err := ComputeRollingStdDev(r, r.Rows())
	require.NoError(t, err)
	full, err := ComputeStdDev(r)
	require.NoError(t, err)

	for i, name := range r.Instruments {
		last := rolling.Columns[i][r.Rows()-1]
		require.True(t, last.Valid)
		assert.InDelta(t, full[name], last.Float, tolerance, name)
	}
}

func TestComputeRollingStdDev_WindowOfOneIsUndefined(t *testing.T) {
	rolling, err := ComputeRollingStdDev(sampleReturns(t), 1)
	require.NoError(t, err)

	for _, col := range rolling.Columns {
		for _, v := range col {
			assert.False(t, v.Valid)
		}
	}
}

func TestRollingWindowValidation(t *testing.T) {
	r := sampleReturns(t)

	for _, window := range []int{0, -1, r.Rows() + 1} {
		_, err := ComputeRollingStdDev(r, window)
		assert.ErrorIs(t, err, ErrInvalidParameter, "std window %d", window)

		_, err = ComputeRollingMean(r, window)
		assert.ErrorIs(t, err, ErrInvalidParameter, "mean window %d", window)

		_, err = ComputeRollingVariance(r, "S&P 500", window)
		assert.ErrorIs(t, err, ErrInvalidParameter, "variance window %d", window)

		_, err = ComputeRollingCovariance(r, "S&P 500", window)
		assert.ErrorIs(t, err, ErrInvalidParameter, "covariance window %d", window)
	}
}

func TestComputeRollingMean(t *testing.T) {
	r := mustReturns(t, []string{"A"}, []float64{0.01, 0.02, 0.03, 0.04})

	rolling, err := ComputeRollingMean(r, 2)
	require.NoError(t, err)

	col := rolling.Columns[0]
	assert.False(t, col[0].Valid)
	assert.InDelta(t, 0.015, col[1].Float, tolerance)
	assert.InDelta(t, 0.025, col[2].Float, tolerance)
	assert.InDelta(t, 0.035, col[3].Float, tolerance)
}

func TestComputeRollingCovariance_IdenticalSeriesEqualsVariance(t *testing.T) {
	series := []float64{0.01, -0.02, 0.015, 0.003, -0.007, 0.011}
	r := mustReturns(t, []string{"COPY", "BENCH"}, series, append([]float64(nil), series...))

	cov, err := ComputeRollingCovariance(r, "BENCH", 4)
	require.NoError(t, err)
	variance, err := ComputeRollingVariance(r, "BENCH", 4)
	require.NoError(t, err)

	copyCov, err := cov.Column("COPY")
	require.NoError(t, err)
	assert.Equal(t, variance.Values, copyCov)
}

func TestComputeRollingCovariance_ExcludesBenchmark(t *testing.T) {
	cov, err := ComputeRollingCovariance(sampleReturns(t), "S&P 500", 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"BERKSHIRE", "TIGER"}, cov.Instruments)
	_, err = cov.Column("S&P 500")
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestComputeRollingCovariance_UnknownBenchmark(t *testing.T) {
	_, err := ComputeRollingCovariance(sampleReturns(t), "NASDAQ", 3)
	assert.ErrorIs(t, err, ErrUnknownInstrument)

	_, err = ComputeRollingVariance(sampleReturns(t), "NASDAQ", 3)
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestComputeRollingBeta_SelfBetaIsOne(t *testing.T) {
	r := sampleReturns(t)
	bench, err := SelectReturns(r, "S&P 500")
	require.NoError(t, err)
	bench.Instruments = append(bench.Instruments, "MIRROR")
	bench.Columns = append(bench.Columns, append([]float64(nil), bench.Columns[0]...))

	cov, err := ComputeRollingCovariance(bench, "S&P 500", 4)
	require.NoError(t, err)
	variance, err := ComputeRollingVariance(bench, "S&P 500", 4)
	require.NoError(t, err)

	beta, err := ComputeRollingBeta(cov, variance)
	require.NoError(t, err)

	col, err := beta.Column("MIRROR")
	require.NoError(t, err)
	for i, v := range col {
		if i < 3 {
			assert.False(t, v.Valid, "row %d", i)
			continue
		}
		require.True(t, v.Valid, "row %d", i)
		assert.Equal(t, 1.0, v.Float, "row %d", i)
	}

	mean, err := MeanOfSeries(col)
	require.NoError(t, err)
	assert.Equal(t, 1.0, mean)
}

func TestComputeRollingBeta_ZeroVarianceIsUndefined(t *testing.T) {
	r := mustReturns(t, []string{"FUND", "FLAT"},
		[]float64{0.01, -0.02, 0.03, 0.01},
		[]float64{0.002, 0.002, 0.002, 0.002},
	)

	cov, err := ComputeRollingCovariance(r, "FLAT", 2)
	require.NoError(t, err)
	variance, err := ComputeRollingVariance(r, "FLAT", 2)
	require.NoError(t, err)
	variance.Values[1] = Defined(0)

	beta, err := ComputeRollingBeta(cov, variance)
	require.NoError(t, err)
	assert.False(t, beta.Columns[0][0].Valid)
	assert.False(t, beta.Columns[0][1].Valid)

	means, err := MeanByInstrument(RollingTable{
		Dates:       beta.Dates[:2],
		Instruments: beta.Instruments,
		Columns:     [][]Value{beta.Columns[0][:2]},
	})
	assert.Nil(t, means)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestComputeRollingBeta_Misaligned(t *testing.T) {
	r := sampleReturns(t)
	cov, err := ComputeRollingCovariance(r, "S&P 500", 3)
	require.NoError(t, err)
	variance, err := ComputeRollingVariance(r, "S&P 500", 3)
	require.NoError(t, err)

	variance.Dates = variance.Dates[1:]
	variance.Values = variance.Values[1:]

	_, err = ComputeRollingBeta(cov, variance)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestComputeRollingBeta_MalformedInputs(t *testing.T) {
	r := sampleReturns(t)
	cov, err := ComputeRollingCovariance(r, "S&P 500", 3)
	require.NoError(t, err)
	variance, err := ComputeRollingVariance(r, "S&P 500", 3)
	require.NoError(t, err)

	tests := []struct {
		name     string
		cov      RollingTable
		variance RollingSeries
	}{
		{
			name:     "variance shorter than its dates",
			cov:      cov,
			variance: RollingSeries{Dates: variance.Dates, Values: variance.Values[:1], Window: 3},
		},
		{
			name:     "covariance column shorter than its dates",
			cov:      RollingTable{Dates: cov.Dates, Instruments: cov.Instruments, Columns: [][]Value{cov.Columns[0][:2], cov.Columns[1]}, Window: 3},
			variance: variance,
		},
		{
			name:     "covariance missing a column",
			cov:      RollingTable{Dates: cov.Dates, Instruments: cov.Instruments, Columns: cov.Columns[:1], Window: 3},
			variance: variance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := ComputeRollingBeta(tt.cov, tt.variance)
				assert.ErrorIs(t, err, ErrInvalidInput)
			})
		})
	}
}

func TestMalformedReturnsTable(t *testing.T) {
	r := sampleReturns(t)
	malformed := ReturnsTable{Table{
		Dates:       r.Dates,
		Instruments: r.Instruments,
		Columns:     r.Columns[:2],
	}}
	short := ReturnsTable{Table{
		Dates:       r.Dates,
		Instruments: []string{"BERKSHIRE", "S&P 500"},
		Columns:     [][]float64{r.Columns[0], r.Columns[2][:3]},
	}}

	ops := map[string]func(ReturnsTable) error{
		"std dev": func(r ReturnsTable) error {
			_, err := ComputeStdDev(r)
			return err
		},
		"annualized mean": func(r ReturnsTable) error {
			_, err := AnnualizeMeanReturn(r, 252)
			return err
		},
		"distribution": func(r ReturnsTable) error {
			_, err := ComputeDistribution(r)
			return err
		},
		"rolling std dev": func(r ReturnsTable) error {
			_, err := ComputeRollingStdDev(r, 3)
			return err
		},
		"rolling mean": func(r ReturnsTable) error {
			_, err := ComputeRollingMean(r, 3)
			return err
		},
		"rolling variance": func(r ReturnsTable) error {
			_, err := ComputeRollingVariance(r, "S&P 500", 3)
			return err
		},
		"rolling covariance": func(r ReturnsTable) error {
			_, err := ComputeRollingCovariance(r, "S&P 500", 3)
			return err
		},
		"select": func(r ReturnsTable) error {
			_, err := SelectReturns(r, "S&P 500")
			return err
		},
		"drop": func(r ReturnsTable) error {
			_, err := DropReturns(r, "BERKSHIRE")
			return err
		},
	}

	for name, op := range ops {
		for _, table := range []ReturnsTable{malformed, short} {
			t.Run(name, func(t *testing.T) {
				assert.NotPanics(t, func() {
					assert.ErrorIs(t, op(table), ErrInvalidInput)
				})
			})
		}
	}
}

func TestRollingSeriesFromTable(t *testing.T) {
	rolling, err := ComputeRollingStdDev(sampleReturns(t), 3)
	require.NoError(t, err)

	s, err := rolling.Series("TIGER")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Window)
	assert.Len(t, s.Values, len(rolling.Dates))

	_, err = rolling.Series("NOPE")
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}
