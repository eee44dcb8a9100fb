package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all calculation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/calculations", func(r chi.Router) {
		r.Get("/", h.HandleListCalculations)
		r.Get("/{id}", h.HandleGetCalculation)

		r.Post("/pv", h.HandlePresentValue)
		r.Post("/fv", h.HandleFutureValue)
		r.Post("/npv", h.HandleNetPresentValue)
		r.Post("/irr", h.HandleInternalRateOfReturn)
		r.Post("/batch", h.HandleBatch)
	})
}
