package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aristath/whalewatch/internal/modules/analysis"
	"github.com/aristath/whalewatch/internal/modules/returns"
)

func writeReportJSON(w io.Writer, report *analysis.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func rankedByName(ranked []returns.Ranked) map[string]returns.Value {
	out := make(map[string]returns.Value, len(ranked))
	for _, r := range ranked {
		out[r.Instrument] = r.Value
	}
	return out
}

func formatValue(v returns.Value, format string) string {
	if !v.Valid {
		return "n/a"
	}
	return fmt.Sprintf(format, v.Float)
}

// writeReportText prints the report as aligned tables, one row per instrument
// in Sharpe order.
func writeReportText(w io.Writer, report *analysis.Report) error {
	params := report.Parameters

	fmt.Fprintf(w, "Run %s\n", report.RunID)
	fmt.Fprintf(w, "Period %s to %s (%d daily returns)\n",
		report.Start.Format(time.DateOnly), report.End.Format(time.DateOnly), report.Rows)
	fmt.Fprintf(w, "Benchmark %s, %d trading days, windows %d/%d\n\n",
		params.Benchmark, params.TradingDays, params.ShortWindow, params.LongWindow)

	means := rankedByName(report.AnnualizedMean)
	stds := rankedByName(report.StdDev)
	annualStds := rankedByName(report.AnnualizedStdDev)
	cumulative := report.CumulativeReturns.Last()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Instrument\tAnn. mean\tDaily std\tAnn. std\tSharpe\tCumulative\tIQR\tMean beta\t")
	for _, ranked := range bestFirst(report.Sharpe) {
		name := ranked.Instrument
		beta, ok := report.Beta.MeanBeta[name]
		betaText := "-"
		if ok {
			betaText = formatValue(beta, "%.3f")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.4f\t%.5f\t%s\t\n",
			name,
			formatValue(means[name], "%.4f"),
			formatValue(stds[name], "%.5f"),
			formatValue(annualStds[name], "%.4f"),
			formatValue(ranked.Value, "%.3f"),
			cumulative[name],
			report.Distribution[name].IQR,
			betaText,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	f := report.Findings
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Findings")
	fmt.Fprintf(w, "  Outperformed %s: %s\n", params.Benchmark, listOrNone(f.Outperformers))
	fmt.Fprintf(w, "  Riskier than %s: %s\n", params.Benchmark, listOrNone(f.RiskierThanBenchmark))
	fmt.Fprintf(w, "  Most volatile: %s\n", orNone(f.MostVolatile))
	fmt.Fprintf(w, "  Least volatile: %s\n", orNone(f.LeastVolatile))
	fmt.Fprintf(w, "  Best Sharpe: %s\n", orNone(f.BestSharpe))
	fmt.Fprintf(w, "  Worst Sharpe: %s\n", orNone(f.WorstSharpe))
	fmt.Fprintf(w, "  Most sensitive to %s: %s\n", params.Benchmark, orNone(f.MostSensitive))
	_, err := fmt.Fprintf(w, "  Recommendation: %s\n", orNone(f.Recommendation))
	return err
}

// bestFirst reverses an ascending ranking and keeps undefined values last.
func bestFirst(ranked []returns.Ranked) []returns.Ranked {
	out := make([]returns.Ranked, 0, len(ranked))
	for i := len(ranked) - 1; i >= 0; i-- {
		if ranked[i].Value.Valid {
			out = append(out, ranked[i])
		}
	}
	for _, r := range ranked {
		if !r.Value.Valid {
			out = append(out, r)
		}
	}
	return out
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "; ")
}

func orNone(name string) string {
	if name == "" {
		return "none"
	}
	return name
}
