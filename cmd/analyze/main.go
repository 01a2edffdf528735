// Command analyze runs the whale-fund risk/return report from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/aristath/whalewatch/internal/config"
	"github.com/aristath/whalewatch/internal/database"
	"github.com/aristath/whalewatch/internal/modules/analysis"
	"github.com/aristath/whalewatch/internal/modules/navs"
	"github.com/aristath/whalewatch/internal/modules/returns"
	"github.com/aristath/whalewatch/pkg/logger"
)

var version = "dev"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// instrumentList collects repeated --select values. Commas are kept since
// fund names contain them; ";" separates several names in one value.
type instrumentList struct {
	names []string
}

func (l *instrumentList) Set(value string) error {
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			l.names = append(l.names, part)
		}
	}
	return nil
}

func (l *instrumentList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(l.names, ";")
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "analyze",
		Usage:     "risk and return statistics for whale-fund NAVs",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
		},
		Before: func(c *cli.Context) error {
			log := logger.New(logger.Config{Level: c.String("log-level"), Pretty: true, Output: c.App.ErrWriter})
			c.App.Metadata = map[string]interface{}{"log": log}
			return nil
		},
		Commands: []*cli.Command{
			reportCommand(),
			importCommand(),
		},
	}
}

func appLogger(c *cli.Context) zerolog.Logger {
	if log, ok := c.App.Metadata["log"].(zerolog.Logger); ok {
		return log
	}
	return logger.Nop()
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "build the report from a CSV file or the NAV store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "csv", Usage: "NAV file with a date column and one column per instrument"},
			&cli.StringFlag{Name: "db", Usage: "navs.db to read instead of a CSV file"},
			&cli.StringFlag{Name: "config", Usage: "YAML file with analysis parameters"},
			&cli.StringFlag{Name: "date-column", Usage: "header of the date column (default: first column)"},
			&cli.StringFlag{Name: "benchmark", Usage: "benchmark instrument name"},
			&cli.GenericFlag{Name: "select", Value: &instrumentList{}, Usage: "instrument to compare with the benchmark (repeatable)"},
			&cli.IntFlag{Name: "trading-days", Usage: "trading days per year"},
			&cli.IntFlag{Name: "short-window", Usage: "rolling std dev window"},
			&cli.IntFlag{Name: "long-window", Usage: "rolling beta window"},
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON"},
		},
		Action: runReport,
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "load a CSV file into the NAV store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "csv", Required: true, Usage: "NAV file to import"},
			&cli.StringFlag{Name: "db", Required: true, Usage: "navs.db to write"},
			&cli.StringFlag{Name: "date-column", Usage: "header of the date column (default: first column)"},
			&cli.StringFlag{Name: "benchmark", Value: config.DefaultAnalysis().Benchmark, Usage: "benchmark instrument name"},
		},
		Action: runImport,
	}
}

// analysisParams layers defaults, the optional YAML file and explicit flags.
func analysisParams(c *cli.Context) (config.AnalysisConfig, error) {
	params := config.DefaultAnalysis()
	if path := c.String("config"); path != "" {
		var err error
		if params, err = config.LoadAnalysisFile(path, params); err != nil {
			return config.AnalysisConfig{}, err
		}
	}

	if c.IsSet("benchmark") {
		params.Benchmark = c.String("benchmark")
	}
	if c.IsSet("select") {
		params.Selected = c.Generic("select").(*instrumentList).names
	}
	if c.IsSet("trading-days") {
		params.TradingDays = c.Int("trading-days")
	}
	if c.IsSet("short-window") {
		params.ShortWindow = c.Int("short-window")
	}
	if c.IsSet("long-window") {
		params.LongWindow = c.Int("long-window")
	}
	if c.IsSet("date-column") {
		params.DateColumn = c.String("date-column")
	}

	if err := params.Validate(); err != nil {
		return config.AnalysisConfig{}, fmt.Errorf("%w: %v", returns.ErrInvalidParameter, err)
	}
	return params, nil
}

func runReport(c *cli.Context) error {
	log := appLogger(c)

	params, err := analysisParams(c)
	if err != nil {
		return err
	}

	var prices returns.PriceTable
	switch {
	case c.String("db") != "":
		prices, err = loadFromStore(c.Context, c.String("db"), log)
	case c.String("csv") != "":
		var summary navs.LoadSummary
		prices, summary, err = navs.LoadCSVFile(c.String("csv"), navs.LoadOptions{
			DateColumn: params.DateColumn,
			Benchmark:  params.Benchmark,
		})
		if err == nil {
			log.Info().
				Int("rows", summary.Rows).
				Int("filled_gaps", summary.FilledGaps).
				Int("dropped_rows", summary.DroppedRows).
				Msg("NAV file loaded")
		}
	default:
		return fmt.Errorf("one of --csv or --db is required")
	}
	if err != nil {
		return err
	}

	report, err := analysis.Build(prices, params)
	if err != nil {
		return err
	}
	report.RunID = uuid.New().String()
	report.GeneratedAt = time.Now().UTC()

	if c.Bool("json") {
		return writeReportJSON(c.App.Writer, report)
	}
	return writeReportText(c.App.Writer, report)
}

func loadFromStore(ctx context.Context, path string, log zerolog.Logger) (returns.PriceTable, error) {
	db, err := openStore(path)
	if err != nil {
		return returns.PriceTable{}, err
	}
	defer db.Close()

	return navs.NewRepository(db.Conn(), log).LoadTable(ctx, nil)
}

func openStore(path string) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    database.NameNavs,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runImport(c *cli.Context) error {
	log := appLogger(c)

	db, err := openStore(c.String("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	repo := navs.NewRepository(db.Conn(), log)
	importer := navs.NewImporter(c.String("csv"), navs.LoadOptions{
		DateColumn: c.String("date-column"),
		Benchmark:  c.String("benchmark"),
	}, repo, nil, log)

	record, err := importer.Import(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Imported %d rows of %d instruments from %s (filled %d gaps, dropped %d rows)\n",
		record.Rows, record.Instruments, record.Source, record.FilledGaps, record.DroppedRows)
	return nil
}
