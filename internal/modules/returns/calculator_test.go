package returns

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-12

func days(n int) []time.Time {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func mustPrices(t *testing.T, instruments []string, columns ...[]float64) PriceTable {
	t.Helper()
	p, err := NewPriceTable(days(len(columns[0])), instruments, columns)
	require.NoError(t, err)
	return p
}

func mustReturns(t *testing.T, instruments []string, columns ...[]float64) ReturnsTable {
	t.Helper()
	r, err := NewReturnsTable(days(len(columns[0])), instruments, columns)
	require.NoError(t, err)
	return r
}

func TestNewPriceTable_Invariants(t *testing.T) {
	tests := []struct {
		name        string
		dates       []time.Time
		instruments []string
		columns     [][]float64
	}{
		{name: "no rows", dates: nil, instruments: []string{"A"}, columns: [][]float64{{}}},
		{name: "no instruments", dates: days(2), instruments: nil, columns: nil},
		{name: "column count mismatch", dates: days(2), instruments: []string{"A", "B"}, columns: [][]float64{{1, 2}}},
		{name: "short column", dates: days(3), instruments: []string{"A"}, columns: [][]float64{{1, 2}}},
		{name: "entirely missing column", dates: days(2), instruments: []string{"A", "B"}, columns: [][]float64{{1, 2}, {}}},
		{name: "duplicate instrument", dates: days(2), instruments: []string{"A", "A"}, columns: [][]float64{{1, 2}, {1, 2}}},
		{name: "duplicate date", dates: []time.Time{days(1)[0], days(1)[0]}, instruments: []string{"A"}, columns: [][]float64{{1, 2}}},
		{name: "descending dates", dates: []time.Time{days(2)[1], days(2)[0]}, instruments: []string{"A"}, columns: [][]float64{{1, 2}}},
		{name: "missing price", dates: days(2), instruments: []string{"A"}, columns: [][]float64{{1, math.NaN()}}},
		{name: "zero price", dates: days(2), instruments: []string{"A"}, columns: [][]float64{{1, 0}}},
		{name: "negative price", dates: days(2), instruments: []string{"A"}, columns: [][]float64{{1, -3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPriceTable(tt.dates, tt.instruments, tt.columns)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestComputeReturns_Scenario(t *testing.T) {
	prices := mustPrices(t, []string{"FUND"}, []float64{100, 110, 99})

	r, err := ComputeReturns(prices)
	require.NoError(t, err)

	require.Equal(t, 2, r.Rows())
	assert.Equal(t, prices.Dates[1:], r.Dates)
	assert.InDelta(t, 0.10, r.Columns[0][0], tolerance)
	assert.InDelta(t, -0.10, r.Columns[0][1], tolerance)
}

func TestComputeReturns_ShapeAndRatio(t *testing.T) {
	instruments := []string{"BERKSHIRE", "TIGER", "S&P 500"}
	prices := mustPrices(t, instruments,
		[]float64{31.95, 32.01, 31.88, 32.40, 32.39},
		[]float64{17.20, 17.19, 17.35, 17.31, 17.40},
		[]float64{2107.39, 2098.04, 2103.84, 2077.42, 2091.69},
	)

	r, err := ComputeReturns(prices)
	require.NoError(t, err)

	require.Equal(t, prices.Rows()-1, r.Rows())
	assert.Equal(t, instruments, r.Instruments)
	for j := range instruments {
		require.Len(t, r.Columns[j], prices.Rows()-1)
		for i := 1; i < prices.Rows(); i++ {
			want := prices.Columns[j][i]/prices.Columns[j][i-1] - 1
			assert.InDelta(t, want, r.Columns[j][i-1], tolerance)
		}
	}
}

func TestComputeReturns_DoesNotAliasInput(t *testing.T) {
	prices := mustPrices(t, []string{"A"}, []float64{1, 2, 3})
	r, err := ComputeReturns(prices)
	require.NoError(t, err)

	r.Dates[0] = time.Time{}
	r.Instruments[0] = "changed"
	assert.Equal(t, "A", prices.Instruments[0])
	assert.False(t, prices.Dates[1].IsZero())
}

func TestComputeReturns_Errors(t *testing.T) {
	t.Run("single row", func(t *testing.T) {
		_, err := ComputeReturns(mustPrices(t, []string{"A"}, []float64{100}))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("zero value table", func(t *testing.T) {
		_, err := ComputeReturns(PriceTable{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("column entirely missing", func(t *testing.T) {
		p := PriceTable{Table{
			Dates:       days(3),
			Instruments: []string{"A", "B"},
			Columns:     [][]float64{{1, 2, 3}, nil},
		}}
		_, err := ComputeReturns(p)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestComputeCumulativeReturns(t *testing.T) {
	r := mustReturns(t, []string{"FUND"}, []float64{0.10, -0.10})

	c := ComputeCumulativeReturns(r)

	assert.Equal(t, r.Dates, c.Dates)
	assert.InDelta(t, 1.10, c.Columns[0][0], tolerance)
	assert.InDelta(t, 0.99, c.Columns[0][1], tolerance)
}

func TestComputeCumulativeReturns_ZeroReturnsStayAtOne(t *testing.T) {
	r := mustReturns(t, []string{"A", "B"}, make([]float64, 20), make([]float64, 20))

	c := ComputeCumulativeReturns(r)
	again := ComputeCumulativeReturns(r)

	for j := range c.Columns {
		for i, v := range c.Columns[j] {
			assert.Equal(t, 1.0, v, "row %d", i)
		}
	}
	assert.Equal(t, c, again)
}

func TestComputeStdDev(t *testing.T) {
	t.Run("scenario", func(t *testing.T) {
		std, err := ComputeStdDev(mustReturns(t, []string{"FUND"}, []float64{0.10, -0.10}))
		require.NoError(t, err)
		assert.InDelta(t, 0.1414, std["FUND"], 1e-4)
	})

	t.Run("identical values", func(t *testing.T) {
		flat := []float64{0.003, 0.003, 0.003, 0.003, 0.003, 0.003}
		std, err := ComputeStdDev(mustReturns(t, []string{"FLAT"}, flat))
		require.NoError(t, err)
		assert.InDelta(t, 0, std["FLAT"], 1e-15)
	})

	t.Run("one observation", func(t *testing.T) {
		_, err := ComputeStdDev(mustReturns(t, []string{"A"}, []float64{0.1}))
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
}

func TestAnnualizeStdDev(t *testing.T) {
	std := Stats{"A": 0.0123, "B": 0.0456, "C": 0}

	annual, err := AnnualizeStdDev(std, DefaultTradingDays)
	require.NoError(t, err)

	for name, s := range std {
		assert.InDelta(t, s*math.Sqrt(252), annual[name], tolerance)
		assert.InDelta(t, s, annual[name]/math.Sqrt(252), tolerance, "round trip for %s", name)
	}

	custom, err := AnnualizeStdDev(std, 12)
	require.NoError(t, err)
	assert.InDelta(t, 0.0123*math.Sqrt(12), custom["A"], tolerance)

	for _, bad := range []int{0, -252} {
		_, err := AnnualizeStdDev(std, bad)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	}
}

func TestAnnualizeMeanReturn(t *testing.T) {
	r := mustReturns(t, []string{"A", "B"}, []float64{0.01, 0.03}, []float64{-0.02, 0.0})

	mean, err := AnnualizeMeanReturn(r, 252)
	require.NoError(t, err)
	assert.InDelta(t, 0.02*252, mean["A"], tolerance)
	assert.InDelta(t, -0.01*252, mean["B"], tolerance)

	_, err = AnnualizeMeanReturn(r, 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = AnnualizeMeanReturn(ReturnsTable{Table{Instruments: []string{"A"}, Columns: [][]float64{{}}}}, 252)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestComputeSharpeRatio(t *testing.T) {
	mean := Stats{"UP": 0.12, "DOWN": -0.05, "FLAT": 0.03}
	std := Stats{"UP": 0.20, "DOWN": 0.10, "FLAT": 0}

	sharpe, err := ComputeSharpeRatio(mean, std)
	require.NoError(t, err)

	assert.True(t, sharpe["UP"].Valid)
	assert.InDelta(t, 0.6, sharpe["UP"].Float, tolerance)
	assert.Greater(t, sharpe["UP"].Float, 0.0)
	assert.Less(t, sharpe["DOWN"].Float, 0.0)

	assert.False(t, sharpe["FLAT"].Valid, "zero std dev must be undefined, not infinite")
	_, err = sharpe.Require("FLAT")
	assert.ErrorIs(t, err, ErrDivisionByZero)

	v, err := sharpe.Require("UP")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v, tolerance)

	_, err = sharpe.Require("MISSING")
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestComputeSharpeRatio_SignMatchesMean(t *testing.T) {
	r := mustReturns(t, []string{"A", "B"},
		[]float64{0.01, -0.004, 0.02, 0.005, -0.001},
		[]float64{-0.01, 0.002, -0.015, 0.001, -0.003},
	)

	mean, err := AnnualizeMeanReturn(r, 252)
	require.NoError(t, err)
	std, err := ComputeStdDev(r)
	require.NoError(t, err)
	annual, err := AnnualizeStdDev(std, 252)
	require.NoError(t, err)

	sharpe, err := ComputeSharpeRatio(mean, annual)
	require.NoError(t, err)
	for name, m := range mean {
		require.True(t, sharpe[name].Valid)
		assert.Equal(t, math.Signbit(m), math.Signbit(sharpe[name].Float), name)
	}
}

func TestComputeSharpeRatio_MissingStd(t *testing.T) {
	_, err := ComputeSharpeRatio(Stats{"A": 0.1}, Stats{"B": 0.2})
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestMeanOfSeries(t *testing.T) {
	mean, err := MeanOfSeries([]Value{Undefined, Defined(1), Undefined, Defined(2), Defined(3)})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mean, tolerance)

	_, err = MeanOfSeries([]Value{Undefined, Undefined})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = MeanOfSeries(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestStatsSorted(t *testing.T) {
	ranked := Stats{"B": 0.2, "A": 0.2, "C": 0.1}.Sorted()
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{ranked[0].Instrument, ranked[1].Instrument, ranked[2].Instrument})

	ratios := Ratios{"X": Undefined, "Y": Defined(2), "Z": Defined(-1)}.Sorted()
	assert.Equal(t, "Z", ratios[0].Instrument)
	assert.Equal(t, "Y", ratios[1].Instrument)
	assert.Equal(t, "X", ratios[2].Instrument)
}

func TestValueJSON(t *testing.T) {
	b, err := Undefined.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	b, err = Defined(1.5).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "1.5", string(b))

	var v Value
	require.NoError(t, v.UnmarshalJSON([]byte("null")))
	assert.False(t, v.Valid)
	require.NoError(t, v.UnmarshalJSON([]byte("0.25")))
	assert.Equal(t, Defined(0.25), v)
}
