package calculations

import (
	"context"
	"time"

	"github.com/aristath/tvm/internal/metrics"
	"github.com/aristath/tvm/pkg/formulas"
	"github.com/rs/zerolog"
)

// Recorder receives calculation telemetry. Implemented by metrics.Metrics.
type Recorder interface {
	ObserveCalculation(kind, outcome string, elapsed time.Duration)
	ObserveIRRIterations(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCalculation(string, string, time.Duration) {}
func (nopRecorder) ObserveIRRIterations(int)                        {}

// Service runs the time-value-of-money formulas and records every call.
// Formula errors are returned unchanged so callers can match them with
// errors.Is against the formulas error kinds.
type Service struct {
	repo     HistoryStore
	solver   formulas.Solver
	recorder Recorder
	log      zerolog.Logger
	now      func() time.Time

	batchWorkers int
}

// NewService creates a new calculation service. recorder may be nil.
func NewService(repo HistoryStore, solver formulas.Solver, recorder Recorder, log zerolog.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		repo:     repo,
		solver:   solver,
		recorder: recorder,
		log:      log.With().Str("service", "calculations").Logger(),
		now:      time.Now,
	}
}

// SetBatchWorkers sets how many items Batch evaluates concurrently.
// Non-positive values use one worker per CPU.
func (s *Service) SetBatchWorkers(n int) {
	s.batchWorkers = n
}

// outcome is what a single formula evaluation produced.
type outcome struct {
	value      float64
	iterations int
	roots      []float64
}

// PresentValue computes PV for req.
func (s *Service) PresentValue(ctx context.Context, req PVRequest) (*Result, error) {
	return s.run(ctx, KindPV, req, func() (outcome, error) {
		when, err := formulas.ParseWhen(req.When)
		if err != nil {
			return outcome{}, err
		}
		v, err := formulas.PV(req.Rate, req.Nper, req.Pmt, req.FV, when)
		return outcome{value: v}, err
	})
}

// FutureValue computes FV for req.
func (s *Service) FutureValue(ctx context.Context, req FVRequest) (*Result, error) {
	return s.run(ctx, KindFV, req, func() (outcome, error) {
		when, err := formulas.ParseWhen(req.When)
		if err != nil {
			return outcome{}, err
		}
		v, err := formulas.FV(req.Rate, req.Nper, req.Pmt, req.PV, when)
		return outcome{value: v}, err
	})
}

// NetPresentValue computes NPV for req.
func (s *Service) NetPresentValue(ctx context.Context, req NPVRequest) (*Result, error) {
	return s.run(ctx, KindNPV, req, func() (outcome, error) {
		v, err := formulas.NPV(req.Rate, req.Values)
		return outcome{value: v}, err
	})
}

// InternalRateOfReturn solves IRR for req with the configured solver.
func (s *Service) InternalRateOfReturn(ctx context.Context, req IRRRequest) (*Result, error) {
	solver := s.solver
	if req.Guess != nil {
		solver.Guess = *req.Guess
	}
	return s.run(ctx, KindIRR, req, func() (outcome, error) {
		res, err := solver.Solve(req.Values)
		s.recorder.ObserveIRRIterations(res.Iterations)
		return outcome{value: res.Rate, iterations: res.Iterations, roots: res.Roots}, err
	})
}

// Recent returns the latest calculations, newest first.
func (s *Service) Recent(ctx context.Context, limit int, kind Kind) ([]Calculation, error) {
	return s.repo.ListRecent(ctx, limit, kind)
}

// Get returns one stored calculation.
func (s *Service) Get(ctx context.Context, id string) (*Calculation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) run(ctx context.Context, kind Kind, inputs interface{}, fn func() (outcome, error)) (*Result, error) {
	start := s.now()
	out, err := fn()
	elapsed := s.now().Sub(start)

	calc := &Calculation{
		Kind:       kind,
		Inputs:     inputs,
		Iterations: out.iterations,
		Duration:   elapsed,
		CreatedAt:  start,
	}

	if err != nil {
		calc.ErrorKind = formulas.ErrorKind(err)
		calc.Error = err.Error()
		s.recorder.ObserveCalculation(string(kind), metrics.OutcomeError, elapsed)
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("Calculation failed")
		s.persist(ctx, calc)
		return nil, err
	}

	value := out.value
	calc.Result = &value
	s.recorder.ObserveCalculation(string(kind), metrics.OutcomeSuccess, elapsed)
	s.persist(ctx, calc)

	s.log.Debug().
		Str("kind", string(kind)).
		Str("id", calc.ID).
		Float64("value", value).
		Int("iterations", out.iterations).
		Dur("elapsed", elapsed).
		Msg("Calculation completed")

	return &Result{
		ID:         calc.ID,
		Kind:       kind,
		Value:      value,
		Iterations: out.iterations,
		Roots:      out.roots,
	}, nil
}

// persist stores calc; a storage failure never changes the calculation result.
func (s *Service) persist(ctx context.Context, calc *Calculation) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Create(ctx, calc); err != nil {
		s.log.Error().Err(err).Str("kind", string(calc.Kind)).Msg("Failed to record calculation")
	}
}
