package formulas

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// IRR solver defaults.
const (
	DefaultIRRGuess         = 0.1
	DefaultIRRTolerance     = 1e-10
	DefaultIRRMaxIterations = 100
)

// MaxCashFlows is the longest cash-flow sequence Solve accepts.
const MaxCashFlows = 1200

// companionMaxFlows is the longest sequence whose roots are all found through
// the companion matrix. Longer sequences are solved from the guess alone.
const companionMaxFlows = 64

// Limits for the bracketing fallback.
const (
	bracketSteps  = 60
	maxBisections = 200
)

// imagTolerance is how far from the real axis an eigenvalue may sit and still be
// treated as a real root candidate. Candidates are verified by Newton polishing.
const imagTolerance = 1e-7

// Solver finds the internal rate of return of a cash-flow sequence.
// A non-positive Tolerance or MaxIterations falls back to the package default.
type Solver struct {
	// Guess is the rate the selected root is closest to.
	Guess float64
	// Tolerance bounds both the Newton step |Δr| and |NPV(r)| relative to the
	// largest absolute cash flow.
	Tolerance float64
	// MaxIterations caps Newton-Raphson iterations per root.
	MaxIterations int
}

// IRRResult is the outcome of Solver.Solve.
type IRRResult struct {
	Rate       float64   // selected root
	Iterations int       // Newton iterations spent across all candidates
	Roots      []float64 // every real root found, ascending
}

// DefaultSolver returns a Solver using the package defaults.
func DefaultSolver() Solver {
	return Solver{
		Guess:         DefaultIRRGuess,
		Tolerance:     DefaultIRRTolerance,
		MaxIterations: DefaultIRRMaxIterations,
	}
}

// IRR calculates the internal rate of return of values using DefaultSolver.
// values[0] is conventionally the (negative) initial outlay.
func IRR(values []float64) (float64, error) {
	res, err := DefaultSolver().Solve(values)
	if err != nil {
		return 0, err
	}
	return res.Rate, nil
}

// Solve finds every real rate r with NPV(r, values) == 0 and selects the one
// nearest to s.Guess. Exact ties go to the smaller rate.
//
// NPV is a polynomial in x = 1/(1+r):
//
//	p(x) = values[0] + values[1]*x + ... + values[n-1]*x^(n-1)
//
// Its roots are the eigenvalues of the companion matrix. Each real positive root
// maps back to r = 1/x - 1 and is polished with Newton-Raphson.
//
// Sequences longer than companionMaxFlows, or whose eigen-decomposition fails,
// are solved from s.Guess alone (see solveFromGuess) and report a single root.
// Sequences longer than MaxCashFlows are rejected.
func (s Solver) Solve(values []float64) (IRRResult, error) {
	if len(values) < 2 {
		return IRRResult{}, fmt.Errorf("%w: irr needs at least 2 cash flows, got %d", ErrInvalidArgument, len(values))
	}
	if len(values) > MaxCashFlows {
		return IRRResult{}, fmt.Errorf("%w: irr accepts at most %d cash flows, got %d", ErrInvalidArgument, MaxCashFlows, len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return IRRResult{}, fmt.Errorf("%w: cash flow %d is not finite", ErrInvalidArgument, i)
		}
	}
	s = s.withDefaults()

	if !changesSign(values) {
		return IRRResult{}, fmt.Errorf("%w: cash flows never change sign", ErrNoConvergence)
	}

	trimmed := trimZeros(values)
	if len(trimmed) > companionMaxFlows {
		return s.solveFromGuess(values)
	}
	roots, ok := polynomialRoots(trimmed)
	if !ok {
		return s.solveFromGuess(values)
	}

	var (
		rates      []float64
		iterations int
	)
	for _, x := range roots {
		if x <= 0 {
			continue
		}
		rate, n, err := s.newton(values, 1/x-1)
		iterations += n
		if err != nil {
			continue
		}
		if !containsRate(rates, rate, s.Tolerance) {
			rates = append(rates, rate)
		}
	}
	if len(rates) == 0 {
		return IRRResult{Iterations: iterations}, fmt.Errorf("%w: no real rate solves the cash flows", ErrNoConvergence)
	}
	sort.Float64s(rates)

	return IRRResult{
		Rate:       nearest(rates, s.Guess),
		Iterations: iterations,
		Roots:      rates,
	}, nil
}

func (s Solver) withDefaults() Solver {
	if s.Tolerance <= 0 {
		s.Tolerance = DefaultIRRTolerance
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultIRRMaxIterations
	}
	return s
}

// newton refines rate until the step or the scaled NPV falls under tolerance.
// It returns the rate and the number of iterations used.
func (s Solver) newton(values []float64, rate float64) (float64, int, error) {
	scale := floats.Norm(values, math.Inf(1))
	for i := 1; i <= s.MaxIterations; i++ {
		if rate <= -1 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return 0, i, fmt.Errorf("%w: iterate %g left the domain rate > -1", ErrNoConvergence, rate)
		}
		f, df := npvAndDerivative(rate, values)
		if math.Abs(f) < s.Tolerance*scale {
			return rate, i, nil
		}
		if df == 0 || math.IsNaN(df) || math.IsInf(df, 0) {
			return 0, i, fmt.Errorf("%w: derivative vanished at rate %g", ErrNoConvergence, rate)
		}
		step := f / df
		rate -= step
		if math.Abs(step) < s.Tolerance*math.Max(1, math.Abs(rate)) {
			return rate, i, nil
		}
	}
	return 0, s.MaxIterations, fmt.Errorf("%w: exceeded %d iterations", ErrNoConvergence, s.MaxIterations)
}

// solveFromGuess runs Newton-Raphson from s.Guess. When that diverges it walks
// away from the guess in both directions until NPV changes sign and bisects
// the first interval found. A guess at or below -1 starts from 0.
func (s Solver) solveFromGuess(values []float64) (IRRResult, error) {
	start := s.Guess
	if start <= -1 {
		start = 0
	}

	rate, iterations, err := s.newton(values, start)
	if err == nil {
		return IRRResult{Rate: rate, Iterations: iterations, Roots: []float64{rate}}, nil
	}

	lo, hi, ok := bracket(values, start)
	if !ok {
		return IRRResult{Iterations: iterations}, fmt.Errorf("%w: npv never changes sign near guess %g", ErrNoConvergence, start)
	}
	rate, n, err := s.bisect(values, lo, hi)
	iterations += n
	if err != nil {
		return IRRResult{Iterations: iterations}, err
	}
	return IRRResult{Rate: rate, Iterations: iterations, Roots: []float64{rate}}, nil
}

// bracket returns an interval around a sign change of NPV. Upward it steps
// start+0.01*2^k, downward it halves the distance to -1.
func bracket(values []float64, start float64) (lo, hi float64, ok bool) {
	f0 := npvAt(start, values)
	up, fUp := start, f0
	down, fDown := start, f0

	for k := 0; k < bracketSteps; k++ {
		next := start + math.Ldexp(0.01, k)
		if f := npvAt(next, values); !math.IsNaN(f) {
			if opposite(fUp, f) {
				return up, next, true
			}
			up, fUp = next, f
		}

		next = math.Ldexp(start+1, -(k+1)) - 1
		if f := npvAt(next, values); !math.IsNaN(f) {
			if opposite(f, fDown) {
				return next, down, true
			}
			down, fDown = next, f
		}
	}
	return 0, 0, false
}

// bisect narrows [lo, hi], which must bracket a sign change, to tolerance.
func (s Solver) bisect(values []float64, lo, hi float64) (float64, int, error) {
	scale := floats.Norm(values, math.Inf(1))
	fLo := npvAt(lo, values)
	for i := 1; i <= maxBisections; i++ {
		mid := lo + (hi-lo)/2
		f := npvAt(mid, values)
		if math.Abs(f) < s.Tolerance*scale || hi-lo < s.Tolerance*math.Max(1, math.Abs(mid)) {
			return mid, i, nil
		}
		if opposite(fLo, f) {
			hi = mid
		} else {
			lo, fLo = mid, f
		}
	}
	return 0, maxBisections, fmt.Errorf("%w: bisection exceeded %d steps", ErrNoConvergence, maxBisections)
}

func opposite(a, b float64) bool {
	return (a <= 0 && b >= 0) || (a >= 0 && b <= 0)
}

func npvAt(rate float64, values []float64) float64 {
	f, _ := npvAndDerivative(rate, values)
	return f
}

// npvAndDerivative evaluates NPV(rate) and dNPV/drate in a single pass.
func npvAndDerivative(rate float64, values []float64) (float64, float64) {
	discount := 1 / (1 + rate)
	factor := 1.0
	var f, df float64
	for i, v := range values {
		f += v * factor
		df -= float64(i) * v * factor * discount
		factor *= discount
	}
	return f, df
}

// polynomialRoots returns the real roots of c[0] + c[1]*x + ... + c[m]*x^m.
// c[m] must be non-zero and m >= 1. ok is false when the eigen-decomposition
// of the companion matrix fails.
func polynomialRoots(c []float64) ([]float64, bool) {
	m := len(c) - 1
	if m < 1 {
		return nil, true
	}
	companion := mat.NewDense(m, m, nil)
	for j := 0; j < m; j++ {
		companion.Set(0, j, -c[m-1-j]/c[m])
	}
	for i := 1; i < m; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if !eig.Factorize(companion, mat.EigenNone) {
		return nil, false
	}

	var roots []float64
	for _, v := range eig.Values(nil) {
		re, im := real(v), imag(v)
		if math.Abs(im) <= imagTolerance*math.Max(1, math.Abs(re)) {
			roots = append(roots, re)
		}
	}
	return roots, true
}

// trimZeros drops leading and trailing zero flows. Leading zeros only add
// roots at x = 0, trailing zeros only lower the polynomial degree.
func trimZeros(values []float64) []float64 {
	lo, hi := 0, len(values)
	for lo < hi && values[lo] == 0 {
		lo++
	}
	for hi > lo && values[hi-1] == 0 {
		hi--
	}
	return values[lo:hi]
}

func changesSign(values []float64) bool {
	var pos, neg bool
	for _, v := range values {
		if v > 0 {
			pos = true
		} else if v < 0 {
			neg = true
		}
	}
	return pos && neg
}

func containsRate(rates []float64, rate, tol float64) bool {
	for _, r := range rates {
		if math.Abs(r-rate) <= math.Sqrt(tol)*math.Max(1, math.Abs(rate)) {
			return true
		}
	}
	return false
}

// nearest picks the element of the ascending slice closest to target.
func nearest(sorted []float64, target float64) float64 {
	best := sorted[0]
	for _, r := range sorted[1:] {
		if math.Abs(r-target) < math.Abs(best-target) {
			best = r
		}
	}
	return best
}
