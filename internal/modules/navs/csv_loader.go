// Package navs loads daily NAV tables from CSV files and persists them in SQLite.
package navs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/whalewatch/internal/modules/returns"
)

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// LoadOptions controls how a CSV file is turned into a PriceTable.
type LoadOptions struct {
	// DateColumn is the header of the date column. Empty means the first column.
	DateColumn string
	// Instruments restricts the load to these columns, in this order. Empty loads all.
	Instruments []string
	// Benchmark, when set, must be one of the loaded columns.
	Benchmark string
}

// LoadSummary describes what the loader did to the raw file.
type LoadSummary struct {
	Rows        int `json:"rows"`
	Instruments int `json:"instruments"`
	DroppedRows int `json:"dropped_rows"`
	FilledGaps  int `json:"filled_gaps"`
}

type csvRow struct {
	date   time.Time
	values []float64
}

// LoadCSVFile opens path and loads it with LoadCSV.
func LoadCSVFile(path string, opts LoadOptions) (returns.PriceTable, LoadSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return returns.PriceTable{}, LoadSummary{}, fmt.Errorf("failed to open NAV file: %w", err)
	}
	defer f.Close()

	return LoadCSV(f, opts)
}

// LoadCSV reads a header row followed by one row per date. Rows are sorted by
// date. Leading rows with any missing value are dropped; later gaps carry the
// previous value forward.
func LoadCSV(r io.Reader, opts LoadOptions) (returns.PriceTable, LoadSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return returns.PriceTable{}, LoadSummary{}, fmt.Errorf("%w: empty CSV", returns.ErrInvalidInput)
	}
	if err != nil {
		return returns.PriceTable{}, LoadSummary{}, fmt.Errorf("%w: failed to read header: %v", returns.ErrInvalidInput, err)
	}

	dateIdx, names, columnIdx, err := resolveColumns(header, opts)
	if err != nil {
		return returns.PriceTable{}, LoadSummary{}, err
	}

	var rows []csvRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return returns.PriceTable{}, LoadSummary{}, fmt.Errorf("%w: failed to read csv: %v", returns.ErrInvalidInput, err)
		}

		row, err := parseRow(record, dateIdx, columnIdx, names)
		if err != nil {
			return returns.PriceTable{}, LoadSummary{}, err
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })
	for i := 1; i < len(rows); i++ {
		if rows[i].date.Equal(rows[i-1].date) {
			return returns.PriceTable{}, LoadSummary{}, fmt.Errorf("%w: duplicate date %s", returns.ErrInvalidInput, rows[i].date.Format(time.DateOnly))
		}
	}

	for j, name := range names {
		if !columnHasValue(rows, j) {
			return returns.PriceTable{}, LoadSummary{}, fmt.Errorf("%w: instrument %q has no values", returns.ErrInvalidInput, name)
		}
	}

	summary := LoadSummary{Instruments: len(names)}
	start := firstCompleteRow(rows)
	if start < 0 {
		return returns.PriceTable{}, LoadSummary{}, fmt.Errorf("%w: no date has a value for every instrument", returns.ErrInvalidInput)
	}
	summary.DroppedRows = start
	rows = rows[start:]

	dates := make([]time.Time, len(rows))
	columns := make([][]float64, len(names))
	for j := range columns {
		columns[j] = make([]float64, len(rows))
	}
	for i, row := range rows {
		dates[i] = row.date
		for j, v := range row.values {
			if math.IsNaN(v) {
				v = columns[j][i-1]
				summary.FilledGaps++
			}
			columns[j][i] = v
		}
	}
	summary.Rows = len(dates)

	table, err := returns.NewPriceTable(dates, names, columns)
	if err != nil {
		return returns.PriceTable{}, LoadSummary{}, err
	}
	return table, summary, nil
}

func resolveColumns(header []string, opts LoadOptions) (dateIdx int, names []string, columnIdx []int, err error) {
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	dateIdx = 0
	if opts.DateColumn != "" {
		dateIdx = -1
		for i, h := range header {
			if strings.EqualFold(h, opts.DateColumn) {
				dateIdx = i
				break
			}
		}
		if dateIdx < 0 {
			return 0, nil, nil, fmt.Errorf("%w: date column %q not in header", returns.ErrInvalidInput, opts.DateColumn)
		}
	}

	position := make(map[string]int, len(header))
	for i, h := range header {
		if i == dateIdx {
			continue
		}
		if h == "" {
			return 0, nil, nil, fmt.Errorf("%w: column %d has no header", returns.ErrInvalidInput, i+1)
		}
		if _, dup := position[h]; dup {
			return 0, nil, nil, fmt.Errorf("%w: duplicate column %q", returns.ErrInvalidInput, h)
		}
		position[h] = i
		names = append(names, h)
	}

	if len(opts.Instruments) > 0 {
		names = nil
		for _, name := range opts.Instruments {
			if _, ok := position[name]; !ok {
				return 0, nil, nil, fmt.Errorf("%w: %q", returns.ErrUnknownInstrument, name)
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return 0, nil, nil, fmt.Errorf("%w: no instrument columns", returns.ErrInvalidInput)
	}

	if opts.Benchmark != "" {
		if !slices.Contains(names, opts.Benchmark) {
			return 0, nil, nil, fmt.Errorf("benchmark: %w: %q", returns.ErrUnknownInstrument, opts.Benchmark)
		}
	}

	columnIdx = make([]int, len(names))
	for j, name := range names {
		columnIdx[j] = position[name]
	}
	return dateIdx, names, columnIdx, nil
}

func parseRow(record []string, dateIdx int, columnIdx []int, names []string) (csvRow, error) {
	date, err := parseDate(record[dateIdx])
	if err != nil {
		return csvRow{}, err
	}

	row := csvRow{date: date, values: make([]float64, len(columnIdx))}
	for j, idx := range columnIdx {
		v, err := parseValue(record[idx])
		if err != nil {
			return csvRow{}, fmt.Errorf("%w: instrument %q on %s: %v", returns.ErrInvalidInput, names[j], date.Format(time.DateOnly), err)
		}
		row.values[j] = v
	}
	return row, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", returns.ErrInvalidInput, s)
}

// parseValue returns NaN for a missing cell.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "n/a", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func columnHasValue(rows []csvRow, j int) bool {
	for _, row := range rows {
		if !math.IsNaN(row.values[j]) {
			return true
		}
	}
	return false
}

func firstCompleteRow(rows []csvRow) int {
	for i, row := range rows {
		complete := true
		for _, v := range row.values {
			if math.IsNaN(v) {
				complete = false
				break
			}
		}
		if complete {
			return i
		}
	}
	return -1
}
