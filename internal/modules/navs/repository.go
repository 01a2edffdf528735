package navs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/whalewatch/internal/database"
	"github.com/aristath/whalewatch/internal/modules/returns"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Instrument is a stored NAV series.
type Instrument struct {
	Name        string    `json:"name"`
	IsBenchmark bool      `json:"is_benchmark"`
	CreatedAt   time.Time `json:"created_at"`
	FirstDate   time.Time `json:"first_date"`
	LastDate    time.Time `json:"last_date"`
	Points      int       `json:"points"`
}

// ImportRecord describes one completed import.
type ImportRecord struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Rows        int       `json:"rows"`
	Instruments int       `json:"instruments"`
	FilledGaps  int       `json:"filled_gaps"`
	DroppedRows int       `json:"dropped_rows"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Repository stores NAV tables in the navs database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new NAV repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "nav_repository").Logger(),
	}
}

// SaveTable replaces every stored NAV with the table and records the import, in
// one transaction. Instruments missing from the table are removed; the ones that
// remain keep their creation time.
func (r *Repository) SaveTable(ctx context.Context, table returns.PriceTable, benchmark, source string, summary LoadSummary) (ImportRecord, error) {
	if table.Rows() == 0 || len(table.Instruments) == 0 {
		return ImportRecord{}, fmt.Errorf("%w: refusing to replace stored NAVs with an empty table", returns.ErrInvalidInput)
	}

	record := ImportRecord{
		ID:          uuid.New().String(),
		Source:      source,
		Rows:        table.Rows(),
		Instruments: len(table.Instruments),
		FilledGaps:  summary.FilledGaps,
		DroppedRows: summary.DroppedRows,
		StartedAt:   time.Now().UTC(),
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM daily_navs"); err != nil {
			return fmt.Errorf("failed to clear daily NAVs: %w", err)
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(table.Instruments)), ",")
		names := make([]interface{}, len(table.Instruments))
		for i, name := range table.Instruments {
			names[i] = name
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM instruments WHERE name NOT IN ("+placeholders+")", names...); err != nil {
			return fmt.Errorf("failed to remove stale instruments: %w", err)
		}

		now := time.Now().Unix()
		for _, name := range table.Instruments {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO instruments (name, is_benchmark, created_at) VALUES (?, ?, ?)
				ON CONFLICT(name) DO UPDATE SET is_benchmark = excluded.is_benchmark
			`, name, boolToInt(name == benchmark), now)
			if err != nil {
				return fmt.Errorf("failed to upsert instrument %q: %w", name, err)
			}
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_navs (instrument, date, nav) VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare NAV insert: %w", err)
		}
		defer stmt.Close()

		for j, name := range table.Instruments {
			for i, date := range table.Dates {
				if _, err := stmt.ExecContext(ctx, name, date.Unix(), table.Columns[j][i]); err != nil {
					return fmt.Errorf("failed to insert NAV for %q on %s: %w", name, date.Format(time.DateOnly), err)
				}
			}
		}

		record.FinishedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO imports (id, source, rows, instruments, filled_gaps, dropped_rows, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, record.ID, record.Source, record.Rows, record.Instruments, record.FilledGaps, record.DroppedRows,
			record.StartedAt.UnixMilli(), record.FinishedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to record import: %w", err)
		}
		return nil
	})
	if err != nil {
		return ImportRecord{}, err
	}

	r.log.Info().
		Str("import_id", record.ID).
		Int("rows", record.Rows).
		Int("instruments", record.Instruments).
		Msg("Saved NAV table")

	return record, nil
}

// LoadTable returns the NAVs of the named instruments on the dates where all of
// them have a value. An empty names list loads every stored instrument.
func (r *Repository) LoadTable(ctx context.Context, names []string) (returns.PriceTable, error) {
	if len(names) == 0 {
		instruments, err := r.Instruments(ctx)
		if err != nil {
			return returns.PriceTable{}, err
		}
		for _, inst := range instruments {
			names = append(names, inst.Name)
		}
	}
	if len(names) == 0 {
		return returns.PriceTable{}, fmt.Errorf("%w: no NAVs stored", returns.ErrInsufficientData)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]interface{}, 0, len(names)+1)
	for _, name := range names {
		args = append(args, name)
	}

	known := make(map[string]bool, len(names))
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM instruments WHERE name IN ("+placeholders+")", args...)
	if err != nil {
		return returns.PriceTable{}, fmt.Errorf("failed to query instruments: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return returns.PriceTable{}, fmt.Errorf("failed to scan instrument: %w", err)
		}
		known[name] = true
	}
	rows.Close()
	for _, name := range names {
		if !known[name] {
			return returns.PriceTable{}, fmt.Errorf("%w: %q", returns.ErrUnknownInstrument, name)
		}
	}

	args = append(args, len(names))
	query := `
		SELECT instrument, date, nav
		FROM daily_navs
		WHERE instrument IN (` + placeholders + `)
		  AND date IN (
			SELECT date FROM daily_navs
			WHERE instrument IN (` + placeholders + `)
			GROUP BY date
			HAVING COUNT(*) = ?
		  )
		ORDER BY date ASC
	`
	queryArgs := append(append([]interface{}{}, args[:len(names)]...), args...)

	navRows, err := r.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return returns.PriceTable{}, fmt.Errorf("failed to query daily NAVs: %w", err)
	}
	defer navRows.Close()

	position := make(map[string]int, len(names))
	for j, name := range names {
		position[name] = j
	}

	var dates []time.Time
	columns := make([][]float64, len(names))
	var lastUnix int64 = -1
	for navRows.Next() {
		var (
			name     string
			dateUnix int64
			nav      float64
		)
		if err := navRows.Scan(&name, &dateUnix, &nav); err != nil {
			return returns.PriceTable{}, fmt.Errorf("failed to scan daily NAV: %w", err)
		}
		if dateUnix != lastUnix {
			dates = append(dates, time.Unix(dateUnix, 0).UTC())
			for j := range columns {
				columns[j] = append(columns[j], 0)
			}
			lastUnix = dateUnix
		}
		columns[position[name]][len(dates)-1] = nav
	}
	if err := navRows.Err(); err != nil {
		return returns.PriceTable{}, fmt.Errorf("error iterating daily NAVs: %w", err)
	}

	if len(dates) == 0 {
		return returns.PriceTable{}, fmt.Errorf("%w: instruments %v share no dates", returns.ErrInsufficientData, names)
	}
	return returns.NewPriceTable(dates, names, columns)
}

// Instruments lists stored instruments with their date coverage, ordered by name.
func (r *Repository) Instruments(ctx context.Context) ([]Instrument, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.name, i.is_benchmark, i.created_at,
		       COALESCE(MIN(n.date), 0), COALESCE(MAX(n.date), 0), COUNT(n.date)
		FROM instruments i
		LEFT JOIN daily_navs n ON n.instrument = i.name
		GROUP BY i.name
		ORDER BY i.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		var (
			inst                   Instrument
			isBenchmark            int
			createdAt, first, last int64
		)
		if err := rows.Scan(&inst.Name, &isBenchmark, &createdAt, &first, &last, &inst.Points); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		inst.IsBenchmark = isBenchmark == 1
		inst.CreatedAt = time.Unix(createdAt, 0).UTC()
		if inst.Points > 0 {
			inst.FirstDate = time.Unix(first, 0).UTC()
			inst.LastDate = time.Unix(last, 0).UTC()
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}
	return out, nil
}

// Benchmark returns the name of the instrument flagged as benchmark, or "".
func (r *Repository) Benchmark(ctx context.Context) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, "SELECT name FROM instruments WHERE is_benchmark = 1 ORDER BY name LIMIT 1").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query benchmark: %w", err)
	}
	return name, nil
}

// LatestImport returns the most recent import, or nil when nothing was imported yet.
func (r *Repository) LatestImport(ctx context.Context) (*ImportRecord, error) {
	var (
		rec                   ImportRecord
		startedAt, finishedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, source, rows, instruments, filled_gaps, dropped_rows, started_at, finished_at
		FROM imports
		ORDER BY finished_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&rec.ID, &rec.Source, &rec.Rows, &rec.Instruments, &rec.FilledGaps, &rec.DroppedRows, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest import: %w", err)
	}

	rec.StartedAt = time.UnixMilli(startedAt).UTC()
	rec.FinishedAt = time.UnixMilli(finishedAt).UTC()
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
