// Package handlers provides HTTP handlers for time-value-of-money calculations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/tvm/internal/modules/calculations"
	"github.com/aristath/tvm/pkg/formulas"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies; cash-flow sequences are small.
const maxBodyBytes = 1 << 20

// CalculationService is the subset of calculations.Service used by the handlers
type CalculationService interface {
	PresentValue(ctx context.Context, req calculations.PVRequest) (*calculations.Result, error)
	FutureValue(ctx context.Context, req calculations.FVRequest) (*calculations.Result, error)
	NetPresentValue(ctx context.Context, req calculations.NPVRequest) (*calculations.Result, error)
	InternalRateOfReturn(ctx context.Context, req calculations.IRRRequest) (*calculations.Result, error)
	Batch(ctx context.Context, items []calculations.BatchItem) ([]calculations.BatchOutcome, error)
	Recent(ctx context.Context, limit int, kind calculations.Kind) ([]calculations.Calculation, error)
	Get(ctx context.Context, id string) (*calculations.Calculation, error)
}

// Handler handles calculation HTTP requests
type Handler struct {
	service CalculationService
	log     zerolog.Logger
}

// NewHandler creates a new calculations handler
func NewHandler(service CalculationService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "calculations").Logger(),
	}
}

// HandlePresentValue handles POST /api/calculations/pv
func (h *Handler) HandlePresentValue(w http.ResponseWriter, r *http.Request) {
	var req calculations.PVRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.PresentValue(r.Context(), req)
	h.respond(w, res, err)
}

// HandleFutureValue handles POST /api/calculations/fv
func (h *Handler) HandleFutureValue(w http.ResponseWriter, r *http.Request) {
	var req calculations.FVRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.FutureValue(r.Context(), req)
	h.respond(w, res, err)
}

// HandleNetPresentValue handles POST /api/calculations/npv
func (h *Handler) HandleNetPresentValue(w http.ResponseWriter, r *http.Request) {
	var req calculations.NPVRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.NetPresentValue(r.Context(), req)
	h.respond(w, res, err)
}

// HandleInternalRateOfReturn handles POST /api/calculations/irr
func (h *Handler) HandleInternalRateOfReturn(w http.ResponseWriter, r *http.Request) {
	var req calculations.IRRRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.InternalRateOfReturn(r.Context(), req)
	h.respond(w, res, err)
}

// HandleBatch handles POST /api/calculations/batch
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []calculations.BatchItem `json:"items"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	outcomes, err := h.service.Batch(r.Context(), req.Items)
	if err != nil {
		h.writeError(w, statusFor(err), errorKind(err), err.Error())
		return
	}

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": outcomes,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(outcomes),
			"failed":    failed,
		},
	})
}

// HandleListCalculations handles GET /api/calculations?limit=&kind=
func (h *Handler) HandleListCalculations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			h.writeError(w, http.StatusBadRequest, "invalid_argument", "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	kind := calculations.Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid_argument", fmt.Sprintf("unknown kind %q", kind))
		return
	}

	calcs, err := h.service.Recent(r.Context(), limit, kind)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list calculations")
		h.writeError(w, http.StatusInternalServerError, "internal", "failed to list calculations")
		return
	}
	if calcs == nil {
		calcs = []calculations.Calculation{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": calcs,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(calcs),
		},
	})
}

// HandleGetCalculation handles GET /api/calculations/{id}
func (h *Handler) HandleGetCalculation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	calc, err := h.service.Get(r.Context(), id)
	if errors.Is(err, calculations.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("calculation %s not found", id))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to get calculation")
		h.writeError(w, http.StatusInternalServerError, "internal", "failed to get calculation")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": calc,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_argument", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, res *calculations.Result, err error) {
	if err != nil {
		h.writeError(w, statusFor(err), errorKind(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": res,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// statusFor maps formula error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, formulas.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, formulas.ErrDomain), errors.Is(err, formulas.ErrNoConvergence):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	if kind := formulas.ErrorKind(err); kind != "" {
		return kind
	}
	return "internal"
}

func (h *Handler) writeError(w http.ResponseWriter, status int, kind, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    kind,
			"message": message,
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
