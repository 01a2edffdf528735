package analysis

import (
	"slices"

	"github.com/aristath/whalewatch/internal/modules/returns"
)

// Findings answers the report's questions from the computed statistics.
// Names are empty when no instrument qualifies.
type Findings struct {
	// Outperformers ended the period with a higher cumulative return than the benchmark.
	Outperformers []string `json:"outperformers" msgpack:"outperformers"`
	// MostVolatile and LeastVolatile rank funds by the interquartile range of daily returns.
	MostVolatile  string `json:"most_volatile,omitempty" msgpack:"most_volatile"`
	LeastVolatile string `json:"least_volatile,omitempty" msgpack:"least_volatile"`
	// RiskierThanBenchmark have a higher annualized std dev than the benchmark.
	RiskierThanBenchmark []string `json:"riskier_than_benchmark" msgpack:"riskier_than_benchmark"`
	BestSharpe           string   `json:"best_sharpe,omitempty" msgpack:"best_sharpe"`
	WorstSharpe          string   `json:"worst_sharpe,omitempty" msgpack:"worst_sharpe"`
	// MostSensitive is the selected fund with the highest mean rolling beta.
	MostSensitive string `json:"most_sensitive,omitempty" msgpack:"most_sensitive"`
	// Recommendation is the selected fund with the best Sharpe ratio.
	Recommendation string `json:"recommendation,omitempty" msgpack:"recommendation"`
}

func findFindings(r *Report, annualStd returns.Stats, sharpe returns.Ratios) Findings {
	f := Findings{
		Outperformers:        []string{},
		RiskierThanBenchmark: []string{},
	}
	benchmark := r.Parameters.Benchmark

	final := r.CumulativeReturns.Last()
	for _, fund := range r.Funds {
		if final[fund] > final[benchmark] {
			f.Outperformers = append(f.Outperformers, fund)
		}
		if annualStd[fund] > annualStd[benchmark] {
			f.RiskierThanBenchmark = append(f.RiskierThanBenchmark, fund)
		}
	}

	spread := make(returns.Stats, len(r.FundDistribution))
	for fund, d := range r.FundDistribution {
		spread[fund] = d.IQR
	}
	if ranked := spread.Sorted(); len(ranked) > 0 {
		f.LeastVolatile = ranked[0].Instrument
		f.MostVolatile = ranked[len(ranked)-1].Instrument
	}

	fundSharpe := make(returns.Ratios, len(r.Funds))
	for _, fund := range r.Funds {
		fundSharpe[fund] = sharpe[fund]
	}
	defined := definedOnly(fundSharpe.Sorted())
	if len(defined) > 0 {
		f.WorstSharpe = defined[0].Instrument
		f.BestSharpe = defined[len(defined)-1].Instrument
	}

	if ranked := definedOnly(returns.Ratios(r.Beta.MeanBeta).Sorted()); len(ranked) > 0 {
		f.MostSensitive = ranked[len(ranked)-1].Instrument
	}

	for i := len(defined) - 1; i >= 0; i-- {
		if slices.Contains(r.Parameters.Selected, defined[i].Instrument) {
			f.Recommendation = defined[i].Instrument
			break
		}
	}
	return f
}

func definedOnly(ranked []returns.Ranked) []returns.Ranked {
	out := make([]returns.Ranked, 0, len(ranked))
	for _, r := range ranked {
		if r.Value.Valid {
			out = append(out, r)
		}
	}
	return out
}
