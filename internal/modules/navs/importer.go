package navs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/whalewatch/internal/events"
	"github.com/rs/zerolog"
)

// Importer loads the configured CSV file into the NAV store.
type Importer struct {
	path   string
	opts   LoadOptions
	repo   *Repository
	events *events.Manager
	log    zerolog.Logger
}

// NewImporter creates an importer for the CSV file at path.
func NewImporter(path string, opts LoadOptions, repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Importer {
	return &Importer{
		path:   path,
		opts:   opts,
		repo:   repo,
		events: eventManager,
		log:    log.With().Str("component", "nav_importer").Logger(),
	}
}

// Import reads the CSV file and saves it.
func (i *Importer) Import(ctx context.Context) (ImportRecord, error) {
	i.log.Info().Str("path", i.path).Msg("Importing NAVs")

	table, summary, err := LoadCSVFile(i.path, i.opts)
	if err != nil {
		i.emitError(err)
		return ImportRecord{}, fmt.Errorf("failed to load %s: %w", filepath.Base(i.path), err)
	}

	record, err := i.repo.SaveTable(ctx, table, i.opts.Benchmark, filepath.Base(i.path), summary)
	if err != nil {
		i.emitError(err)
		return ImportRecord{}, fmt.Errorf("failed to save NAVs: %w", err)
	}

	if summary.FilledGaps > 0 || summary.DroppedRows > 0 {
		i.log.Warn().
			Int("filled_gaps", summary.FilledGaps).
			Int("dropped_rows", summary.DroppedRows).
			Msg("NAV file had missing values")
	}

	if i.events != nil {
		i.events.EmitTyped("navs", &events.NavsImportedData{
			ImportID:    record.ID,
			Source:      record.Source,
			Rows:        record.Rows,
			Instruments: record.Instruments,
			FilledGaps:  record.FilledGaps,
			DroppedRows: record.DroppedRows,
		})
	}
	return record, nil
}

func (i *Importer) emitError(err error) {
	if i.events != nil {
		i.events.EmitError("navs", err, map[string]interface{}{"path": i.path})
	}
}

// Name returns the job name
func (i *Importer) Name() string {
	return "navs_import"
}

// Run executes the import for the scheduler
func (i *Importer) Run() error {
	_, err := i.Import(context.Background())
	return err
}
