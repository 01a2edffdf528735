// Package analysis assembles the full risk/return report for a NAV table.
package analysis

import (
	"fmt"
	"slices"
	"time"

	"github.com/aristath/whalewatch/internal/config"
	"github.com/aristath/whalewatch/internal/modules/returns"
)

// Report holds every artifact of one analysis run. It is read-only once built.
type Report struct {
	RunID       string                `json:"run_id" msgpack:"run_id"`
	GeneratedAt time.Time             `json:"generated_at" msgpack:"generated_at"`
	Fingerprint string                `json:"fingerprint" msgpack:"fingerprint"`
	Parameters  config.AnalysisConfig `json:"parameters" msgpack:"parameters"`

	Instruments []string  `json:"instruments" msgpack:"instruments"`
	Funds       []string  `json:"funds" msgpack:"funds"`
	Start       time.Time `json:"start" msgpack:"start"`
	End         time.Time `json:"end" msgpack:"end"`
	Rows        int       `json:"rows" msgpack:"rows"`

	DailyReturns      returns.ReturnsTable           `json:"daily_returns" msgpack:"daily_returns"`
	CumulativeReturns returns.CumulativeReturnsTable `json:"cumulative_returns" msgpack:"cumulative_returns"`

	Distribution     map[string]returns.Distribution `json:"distribution" msgpack:"distribution"`
	FundDistribution map[string]returns.Distribution `json:"fund_distribution" msgpack:"fund_distribution"`

	StdDev           []returns.Ranked     `json:"std_dev" msgpack:"std_dev"`
	AnnualizedStdDev []returns.Ranked     `json:"annualized_std_dev" msgpack:"annualized_std_dev"`
	RollingStdDev    returns.RollingTable `json:"rolling_std_dev" msgpack:"rolling_std_dev"`
	RollingMean      returns.RollingTable `json:"rolling_mean" msgpack:"rolling_mean"`
	AnnualizedMean   []returns.Ranked     `json:"annualized_mean" msgpack:"annualized_mean"`
	Sharpe           []returns.Ranked     `json:"sharpe" msgpack:"sharpe"`

	Beta BetaAnalysis `json:"beta" msgpack:"beta"`

	Findings Findings `json:"findings" msgpack:"findings"`
}

// BetaAnalysis relates selected instruments to the benchmark over a rolling window.
type BetaAnalysis struct {
	Benchmark         string                   `json:"benchmark" msgpack:"benchmark"`
	Window            int                      `json:"window" msgpack:"window"`
	BenchmarkVariance returns.RollingSeries    `json:"benchmark_variance" msgpack:"benchmark_variance"`
	Covariance        returns.RollingTable     `json:"covariance" msgpack:"covariance"`
	Beta              returns.RollingTable     `json:"beta" msgpack:"beta"`
	MeanBeta          map[string]returns.Value `json:"mean_beta" msgpack:"mean_beta"`
}

// ComputeBeta runs rolling covariance, benchmark variance, beta and mean beta for
// the named instruments. An empty list covers every non-benchmark instrument.
func ComputeBeta(r returns.ReturnsTable, benchmark string, instruments []string, window int) (BetaAnalysis, error) {
	if len(instruments) > 0 {
		if slices.Contains(instruments, benchmark) {
			return BetaAnalysis{}, fmt.Errorf("%w: benchmark %q cannot be compared with itself", returns.ErrInvalidParameter, benchmark)
		}
		subset, err := returns.SelectReturns(r, append(slices.Clone(instruments), benchmark)...)
		if err != nil {
			return BetaAnalysis{}, err
		}
		r = subset
	}

	variance, err := returns.ComputeRollingVariance(r, benchmark, window)
	if err != nil {
		return BetaAnalysis{}, fmt.Errorf("benchmark variance: %w", err)
	}
	cov, err := returns.ComputeRollingCovariance(r, benchmark, window)
	if err != nil {
		return BetaAnalysis{}, fmt.Errorf("covariance: %w", err)
	}
	beta, err := returns.ComputeRollingBeta(cov, variance)
	if err != nil {
		return BetaAnalysis{}, fmt.Errorf("beta: %w", err)
	}

	means := make(map[string]returns.Value, len(beta.Instruments))
	for i, name := range beta.Instruments {
		m, err := returns.MeanOfSeries(beta.Columns[i])
		if err != nil {
			means[name] = returns.Undefined
			continue
		}
		means[name] = returns.Defined(m)
	}

	return BetaAnalysis{
		Benchmark:         benchmark,
		Window:            window,
		BenchmarkVariance: variance,
		Covariance:        cov,
		Beta:              beta,
		MeanBeta:          means,
	}, nil
}

// Build runs the whole pipeline over prices. RunID, GeneratedAt and Fingerprint
// are left for the caller.
func Build(prices returns.PriceTable, params config.AnalysisConfig) (*Report, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", returns.ErrInvalidParameter, err)
	}
	if !prices.Has(params.Benchmark) {
		return nil, fmt.Errorf("benchmark: %w: %q", returns.ErrUnknownInstrument, params.Benchmark)
	}
	for _, name := range params.Selected {
		if !prices.Has(name) {
			return nil, fmt.Errorf("selected: %w: %q", returns.ErrUnknownInstrument, name)
		}
	}

	daily, err := returns.ComputeReturns(prices)
	if err != nil {
		return nil, fmt.Errorf("daily returns: %w", err)
	}
	funds, err := returns.DropReturns(daily, params.Benchmark)
	if err != nil {
		return nil, fmt.Errorf("fund returns: %w", err)
	}

	report := &Report{
		Parameters:        params,
		Instruments:       slices.Clone(daily.Instruments),
		Funds:             slices.Clone(funds.Instruments),
		Start:             daily.Dates[0],
		End:               daily.Dates[daily.Rows()-1],
		Rows:              daily.Rows(),
		DailyReturns:      daily,
		CumulativeReturns: returns.ComputeCumulativeReturns(daily),
	}

	if report.Distribution, err = returns.ComputeDistribution(daily); err != nil {
		return nil, fmt.Errorf("distribution: %w", err)
	}
	if report.FundDistribution, err = returns.ComputeDistribution(funds); err != nil {
		return nil, fmt.Errorf("fund distribution: %w", err)
	}

	std, err := returns.ComputeStdDev(daily)
	if err != nil {
		return nil, fmt.Errorf("std dev: %w", err)
	}
	annualStd, err := returns.AnnualizeStdDev(std, params.TradingDays)
	if err != nil {
		return nil, fmt.Errorf("annualized std dev: %w", err)
	}
	annualMean, err := returns.AnnualizeMeanReturn(daily, params.TradingDays)
	if err != nil {
		return nil, fmt.Errorf("annualized mean: %w", err)
	}
	sharpe, err := returns.ComputeSharpeRatio(annualMean, annualStd)
	if err != nil {
		return nil, fmt.Errorf("sharpe ratio: %w", err)
	}
	report.StdDev = std.Sorted()
	report.AnnualizedStdDev = annualStd.Sorted()
	report.AnnualizedMean = annualMean.Sorted()
	report.Sharpe = sharpe.Sorted()

	if report.RollingStdDev, err = returns.ComputeRollingStdDev(daily, params.ShortWindow); err != nil {
		return nil, fmt.Errorf("rolling std dev: %w", err)
	}
	if report.RollingMean, err = returns.ComputeRollingMean(daily, params.ShortWindow); err != nil {
		return nil, fmt.Errorf("rolling mean: %w", err)
	}

	selected := params.Selected
	if len(selected) == 0 {
		selected = funds.Instruments
	}
	if report.Beta, err = ComputeBeta(daily, params.Benchmark, selected, params.LongWindow); err != nil {
		return nil, err
	}

	report.Findings = findFindings(report, annualStd, sharpe)
	return report, nil
}

// inUTC moves every timestamp of a decoded report back to UTC. The cache
// decodes times in the local zone, which shifts calendar dates.
func (r *Report) inUTC() {
	r.GeneratedAt = r.GeneratedAt.UTC()
	r.Start = r.Start.UTC()
	r.End = r.End.UTC()

	for _, dates := range [][]time.Time{
		r.DailyReturns.Dates,
		r.CumulativeReturns.Dates,
		r.RollingStdDev.Dates,
		r.RollingMean.Dates,
		r.Beta.BenchmarkVariance.Dates,
		r.Beta.Covariance.Dates,
		r.Beta.Beta.Dates,
	} {
		for i := range dates {
			dates[i] = dates[i].UTC()
		}
	}
}
