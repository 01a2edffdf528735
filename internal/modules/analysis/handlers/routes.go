package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the NAV and analysis routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/instruments", h.HandleGetInstruments)
	r.Post("/imports", h.HandleImport)

	r.Route("/analysis", func(r chi.Router) {
		r.Get("/report", h.HandleGetReport)
		r.Post("/publish", h.HandlePublish)
		r.Get("/beta", h.HandleGetBeta)

		r.Route("/returns", func(r chi.Router) {
			r.Get("/daily", h.HandleGetDailyReturns)
			r.Get("/cumulative", h.HandleGetCumulativeReturns)
			r.Get("/annualized-mean", h.HandleGetAnnualizedMean)
			r.Get("/rolling-mean", h.HandleGetRollingMean)
		})

		r.Route("/risk", func(r chi.Router) {
			r.Get("/std", h.HandleGetStdDev)
			r.Get("/annualized-std", h.HandleGetAnnualizedStdDev)
			r.Get("/rolling-std", h.HandleGetRollingStdDev)
			r.Get("/sharpe", h.HandleGetSharpe)
			r.Get("/distribution", h.HandleGetDistribution)
		})
	})
}
