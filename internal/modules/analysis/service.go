package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aristath/whalewatch/internal/config"
	"github.com/aristath/whalewatch/internal/events"
	"github.com/aristath/whalewatch/internal/modules/calculations"
	"github.com/aristath/whalewatch/internal/modules/returns"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const reportKind = "report"

// ErrPublishingDisabled is returned by Publish when no uploader is configured.
var ErrPublishingDisabled = errors.New("report publishing is not configured")

// NavSource provides stored NAV tables.
type NavSource interface {
	LoadTable(ctx context.Context, names []string) (returns.PriceTable, error)
}

// BenchmarkSource reports the instrument flagged as benchmark at import time.
type BenchmarkSource interface {
	Benchmark(ctx context.Context) (string, error)
}

// ReportCache persists built reports.
type ReportCache interface {
	GetIfFresh(ctx context.Context, key string, v interface{}) (bool, error)
	Store(ctx context.Context, kind, key string, v interface{}) error
	Invalidate(ctx context.Context, kind string) (int64, error)
}

// Uploader writes an object to remote storage and returns its location.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// PublishResult describes a published report.
type PublishResult struct {
	RunID    string `json:"run_id"`
	Key      string `json:"key"`
	Location string `json:"location"`
	Bytes    int64  `json:"bytes"`
}

// Service runs analyses over the NAV store.
type Service struct {
	navs     NavSource
	cache    ReportCache
	uploader Uploader
	events   *events.Manager
	params   config.AnalysisConfig
	log      zerolog.Logger
}

// NewService creates an analysis service. cache, uploader and eventManager may be nil.
// When navs also implements BenchmarkSource, its stored benchmark stands in for a
// configured benchmark that is not in the store.
func NewService(navs NavSource, cache ReportCache, uploader Uploader, eventManager *events.Manager, params config.AnalysisConfig, log zerolog.Logger) *Service {
	return &Service{
		navs:     navs,
		cache:    cache,
		uploader: uploader,
		events:   eventManager,
		params:   params,
		log:      log.With().Str("service", "analysis").Logger(),
	}
}

// Params returns the configured analysis parameters.
func (s *Service) Params() config.AnalysisConfig {
	return s.params
}

// Prices loads every stored instrument.
func (s *Service) Prices(ctx context.Context) (returns.PriceTable, error) {
	prices, err := s.navs.LoadTable(ctx, nil)
	if err != nil {
		return returns.PriceTable{}, fmt.Errorf("failed to load NAVs: %w", err)
	}
	return prices, nil
}

// paramsFor returns the analysis parameters for prices, swapping in the stored
// benchmark when the configured one is missing.
func (s *Service) paramsFor(ctx context.Context, prices returns.PriceTable) config.AnalysisConfig {
	params := s.params
	if prices.Has(params.Benchmark) {
		return params
	}
	source, ok := s.navs.(BenchmarkSource)
	if !ok {
		return params
	}

	stored, err := source.Benchmark(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to look up stored benchmark")
		return params
	}
	if stored == "" || !prices.Has(stored) || slices.Contains(params.Selected, stored) {
		return params
	}

	s.log.Warn().
		Str("configured", params.Benchmark).
		Str("stored", stored).
		Msg("Configured benchmark is not stored, using the imported benchmark")
	params.Benchmark = stored
	return params
}

// Benchmark returns the benchmark the analyses run against.
func (s *Service) Benchmark(ctx context.Context) (string, error) {
	prices, err := s.Prices(ctx)
	if err != nil {
		return "", err
	}
	return s.paramsFor(ctx, prices).Benchmark, nil
}

// Returns computes daily returns of every stored instrument.
func (s *Service) Returns(ctx context.Context) (returns.ReturnsTable, error) {
	prices, err := s.Prices(ctx)
	if err != nil {
		return returns.ReturnsTable{}, err
	}
	return returns.ComputeReturns(prices)
}

// FundReturns computes daily returns of every stored instrument except the benchmark.
func (s *Service) FundReturns(ctx context.Context) (returns.ReturnsTable, error) {
	prices, err := s.Prices(ctx)
	if err != nil {
		return returns.ReturnsTable{}, err
	}
	daily, err := returns.ComputeReturns(prices)
	if err != nil {
		return returns.ReturnsTable{}, err
	}
	return returns.DropReturns(daily, s.paramsFor(ctx, prices).Benchmark)
}

// RollingMean computes the rolling mean return of every instrument. window 0 uses the short window.
func (s *Service) RollingMean(ctx context.Context, window int) (returns.RollingTable, error) {
	if window == 0 {
		window = s.params.ShortWindow
	}
	daily, err := s.Returns(ctx)
	if err != nil {
		return returns.RollingTable{}, err
	}
	return returns.ComputeRollingMean(daily, window)
}

// RollingStdDev computes the rolling std dev of every instrument. window 0 uses the short window.
func (s *Service) RollingStdDev(ctx context.Context, window int) (returns.RollingTable, error) {
	if window == 0 {
		window = s.params.ShortWindow
	}
	daily, err := s.Returns(ctx)
	if err != nil {
		return returns.RollingTable{}, err
	}
	return returns.ComputeRollingStdDev(daily, window)
}

// Beta computes rolling beta of instruments against the configured benchmark.
// Empty instruments uses the selected ones; window 0 uses the long window.
func (s *Service) Beta(ctx context.Context, instruments []string, window int) (BetaAnalysis, error) {
	if len(instruments) == 0 {
		instruments = s.params.Selected
	}
	if window == 0 {
		window = s.params.LongWindow
	}
	prices, err := s.Prices(ctx)
	if err != nil {
		return BetaAnalysis{}, err
	}
	daily, err := returns.ComputeReturns(prices)
	if err != nil {
		return BetaAnalysis{}, err
	}
	return ComputeBeta(daily, s.paramsFor(ctx, prices).Benchmark, instruments, window)
}

// Report returns the report for the current NAVs, from cache when the data and
// parameters are unchanged.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	prices, err := s.Prices(ctx)
	if err != nil {
		return nil, err
	}

	fingerprint, err := calculations.Key("navs", prices.Dates, prices.Instruments, prices.Columns)
	if err != nil {
		return nil, err
	}
	params := s.paramsFor(ctx, prices)
	key, err := calculations.Key(reportKind, params, fingerprint)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached Report
		found, err := s.cache.GetIfFresh(ctx, key, &cached)
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to read cached report, rebuilding")
		} else if found {
			cached.inUTC()
			s.emitGenerated(&cached, true)
			return &cached, nil
		}
	}

	start := time.Now()
	report, err := Build(prices, params)
	if err != nil {
		if s.events != nil {
			s.events.EmitError("analysis", err, map[string]interface{}{"fingerprint": fingerprint})
		}
		return nil, err
	}
	report.RunID = uuid.New().String()
	report.GeneratedAt = time.Now().UTC()
	report.Fingerprint = fingerprint

	s.log.Info().
		Str("run_id", report.RunID).
		Int("rows", report.Rows).
		Int("instruments", len(report.Instruments)).
		Dur("duration", time.Since(start)).
		Msg("Built analysis report")

	if s.cache != nil {
		if err := s.cache.Store(ctx, reportKind, key, report); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache report")
		}
	}

	s.emitGenerated(report, false)
	return report, nil
}

func (s *Service) emitGenerated(r *Report, cached bool) {
	if s.events == nil {
		return
	}
	s.events.EmitTyped("analysis", &events.ReportGeneratedData{
		RunID:          r.RunID,
		Fingerprint:    r.Fingerprint,
		Instruments:    len(r.Instruments),
		Rows:           r.Rows,
		Cached:         cached,
		Recommendation: r.Findings.Recommendation,
	})
}

// Publish uploads the current report as JSON.
func (s *Service) Publish(ctx context.Context) (PublishResult, error) {
	if s.uploader == nil {
		return PublishResult{}, ErrPublishingDisabled
	}

	report, err := s.Report(ctx)
	if err != nil {
		return PublishResult{}, err
	}

	body, err := json.Marshal(report)
	if err != nil {
		return PublishResult{}, fmt.Errorf("failed to marshal report: %w", err)
	}

	key := fmt.Sprintf("report-%s-%s.json", report.End.Format("20060102"), report.RunID)
	location, err := s.uploader.Upload(ctx, key, body, "application/json")
	if err != nil {
		if s.events != nil {
			s.events.EmitError("analysis", err, map[string]interface{}{"key": key})
		}
		return PublishResult{}, fmt.Errorf("failed to publish report: %w", err)
	}

	result := PublishResult{RunID: report.RunID, Key: key, Location: location, Bytes: int64(len(body))}
	if s.events != nil {
		s.events.EmitTyped("analysis", &events.ReportPublishedData{
			RunID:    result.RunID,
			Key:      result.Key,
			Location: result.Location,
			Bytes:    result.Bytes,
		})
	}
	s.log.Info().Str("key", key).Str("location", location).Msg("Published report")
	return result, nil
}

// HandleNavsImported drops cached reports once new NAVs are stored.
func (s *Service) HandleNavsImported(*events.Event) {
	if s.cache == nil {
		return
	}
	n, err := s.cache.Invalidate(context.Background(), reportKind)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to invalidate cached reports")
		return
	}
	s.log.Debug().Int64("invalidated", n).Msg("Invalidated cached reports")
}

// PublishJob publishes the report on a schedule.
type PublishJob struct {
	service *Service
}

// NewPublishJob creates a scheduled publish job
func NewPublishJob(service *Service) *PublishJob {
	return &PublishJob{service: service}
}

// Name returns the job name
func (j *PublishJob) Name() string {
	return "report_publish"
}

// Run publishes the current report
func (j *PublishJob) Run() error {
	_, err := j.service.Publish(context.Background())
	return err
}
