// Package handlers provides HTTP handlers for NAV analysis operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/whalewatch/internal/modules/analysis"
	"github.com/aristath/whalewatch/internal/modules/navs"
	"github.com/aristath/whalewatch/internal/modules/returns"
	"github.com/rs/zerolog"
)

// InstrumentLister reports what the NAV store holds.
type InstrumentLister interface {
	Instruments(ctx context.Context) ([]navs.Instrument, error)
	LatestImport(ctx context.Context) (*navs.ImportRecord, error)
}

// NavImporter re-imports the configured NAV file.
type NavImporter interface {
	Import(ctx context.Context) (navs.ImportRecord, error)
}

// Handler handles analysis HTTP requests
type Handler struct {
	service     *analysis.Service
	instruments InstrumentLister
	importer    NavImporter
	log         zerolog.Logger
}

// NewHandler creates a new analysis handler. importer may be nil, which disables POST /imports.
func NewHandler(
	service *analysis.Service,
	instruments InstrumentLister,
	importer NavImporter,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:     service,
		instruments: instruments,
		importer:    importer,
		log:         log.With().Str("handler", "analysis").Logger(),
	}
}

// HandleGetInstruments handles GET /api/instruments
func (h *Handler) HandleGetInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.instruments.Instruments(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to list instruments")
		return
	}
	latest, err := h.instruments.LatestImport(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to get latest import")
		return
	}
	if instruments == nil {
		instruments = []navs.Instrument{}
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"instruments":   instruments,
		"latest_import": latest,
	})
}

// HandleImport handles POST /api/imports
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		http.Error(w, "NAV import is not configured", http.StatusServiceUnavailable)
		return
	}

	record, err := h.importer.Import(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to import NAVs")
		return
	}
	h.writeData(w, http.StatusCreated, record)
}

// HandleGetReport handles GET /api/analysis/report
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to build report")
		return
	}
	h.writeData(w, http.StatusOK, report)
}

// HandlePublish handles POST /api/analysis/publish
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Publish(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to publish report")
		return
	}
	h.writeData(w, http.StatusOK, result)
}

// HandleGetDailyReturns handles GET /api/analysis/returns/daily
func (h *Handler) HandleGetDailyReturns(w http.ResponseWriter, r *http.Request) {
	daily, err := h.service.Returns(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to compute daily returns")
		return
	}
	h.writeData(w, http.StatusOK, daily)
}

// HandleGetCumulativeReturns handles GET /api/analysis/returns/cumulative
func (h *Handler) HandleGetCumulativeReturns(w http.ResponseWriter, r *http.Request) {
	daily, err := h.service.Returns(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to compute daily returns")
		return
	}
	cumulative := returns.ComputeCumulativeReturns(daily)
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"table": cumulative,
		"final": cumulative.Last().Sorted(),
	})
}

// HandleGetAnnualizedMean handles GET /api/analysis/returns/annualized-mean
func (h *Handler) HandleGetAnnualizedMean(w http.ResponseWriter, r *http.Request) {
	daily, err := h.service.Returns(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to compute daily returns")
		return
	}
	mean, err := returns.AnnualizeMeanReturn(daily, h.service.Params().TradingDays)
	if err != nil {
		h.writeError(w, err, "Failed to annualize mean return")
		return
	}
	h.writeData(w, http.StatusOK, mean.Sorted())
}

// HandleGetStdDev handles GET /api/analysis/risk/std
func (h *Handler) HandleGetStdDev(w http.ResponseWriter, r *http.Request) {
	std, err := h.stdDev(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to compute std dev")
		return
	}
	h.writeData(w, http.StatusOK, std.Sorted())
}

// HandleGetAnnualizedStdDev handles GET /api/analysis/risk/annualized-std
func (h *Handler) HandleGetAnnualizedStdDev(w http.ResponseWriter, r *http.Request) {
	std, err := h.stdDev(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to compute std dev")
		return
	}
	annual, err := returns.AnnualizeStdDev(std, h.service.Params().TradingDays)
	if err != nil {
		h.writeError(w, err, "Failed to annualize std dev")
		return
	}
	h.writeData(w, http.StatusOK, annual.Sorted())
}

// HandleGetRollingMean handles GET /api/analysis/returns/rolling-mean?window=
func (h *Handler) HandleGetRollingMean(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table, err := h.service.RollingMean(r.Context(), window)
	if err != nil {
		h.writeError(w, err, "Failed to compute rolling mean")
		return
	}
	h.writeData(w, http.StatusOK, table)
}

// HandleGetRollingStdDev handles GET /api/analysis/risk/rolling-std?window=
func (h *Handler) HandleGetRollingStdDev(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table, err := h.service.RollingStdDev(r.Context(), window)
	if err != nil {
		h.writeError(w, err, "Failed to compute rolling std dev")
		return
	}
	h.writeData(w, http.StatusOK, table)
}

// HandleGetSharpe handles GET /api/analysis/risk/sharpe
func (h *Handler) HandleGetSharpe(w http.ResponseWriter, r *http.Request) {
	daily, err := h.service.Returns(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to compute daily returns")
		return
	}

	tradingDays := h.service.Params().TradingDays
	std, err := returns.ComputeStdDev(daily)
	if err != nil {
		h.writeError(w, err, "Failed to compute std dev")
		return
	}
	annualStd, err := returns.AnnualizeStdDev(std, tradingDays)
	if err != nil {
		h.writeError(w, err, "Failed to annualize std dev")
		return
	}
	annualMean, err := returns.AnnualizeMeanReturn(daily, tradingDays)
	if err != nil {
		h.writeError(w, err, "Failed to annualize mean return")
		return
	}
	sharpe, err := returns.ComputeSharpeRatio(annualMean, annualStd)
	if err != nil {
		h.writeError(w, err, "Failed to compute sharpe ratio")
		return
	}
	h.writeData(w, http.StatusOK, sharpe.Sorted())
}

// HandleGetDistribution handles GET /api/analysis/risk/distribution?funds_only=
func (h *Handler) HandleGetDistribution(w http.ResponseWriter, r *http.Request) {
	load := h.service.Returns
	if fundsOnly, _ := strconv.ParseBool(r.URL.Query().Get("funds_only")); fundsOnly {
		load = h.service.FundReturns
	}
	daily, err := load(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to compute daily returns")
		return
	}

	dist, err := returns.ComputeDistribution(daily)
	if err != nil {
		h.writeError(w, err, "Failed to compute distribution")
		return
	}
	h.writeData(w, http.StatusOK, dist)
}

// HandleGetBeta handles GET /api/analysis/beta?instruments=a,b&window=
func (h *Handler) HandleGetBeta(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	beta, err := h.service.Beta(r.Context(), parseInstruments(r), window)
	if err != nil {
		h.writeError(w, err, "Failed to compute beta")
		return
	}
	h.writeData(w, http.StatusOK, beta)
}

func (h *Handler) stdDev(ctx context.Context) (returns.Stats, error) {
	daily, err := h.service.Returns(ctx)
	if err != nil {
		return nil, err
	}
	return returns.ComputeStdDev(daily)
}

// parseWindow reads ?window=, returning 0 when absent.
func parseWindow(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return 0, nil
	}
	window, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("window must be an integer")
	}
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}
	return window, nil
}

// parseInstruments reads every ?instruments= value. A value containing ";" is
// split on ";" so names with commas survive; otherwise it is split on ",".
func parseInstruments(r *http.Request) []string {
	var out []string
	for _, raw := range r.URL.Query()["instruments"] {
		sep := ","
		if strings.Contains(raw, ";") {
			sep = ";"
		}
		for _, name := range strings.Split(raw, sep) {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// statusFor maps analysis errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, returns.ErrInvalidParameter), errors.Is(err, returns.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, returns.ErrUnknownInstrument):
		return http.StatusNotFound
	case errors.Is(err, returns.ErrInsufficientData), errors.Is(err, returns.ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrPublishingDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, status)
		return
	}
	h.log.Debug().Err(err).Int("status", status).Msg(msg)
	http.Error(w, err.Error(), status)
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
