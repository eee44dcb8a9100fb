package formulas

import (
	"errors"
	"fmt"
	"math"
)

// Error kinds returned by the time-value-of-money functions.
// Every error returned by this package wraps exactly one of them.
var (
	// ErrInvalidArgument reports a malformed input, such as an unknown payment
	// timing or a cash-flow sequence too short to solve.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDomain reports an input for which the formula is mathematically undefined.
	ErrDomain = errors.New("domain error")

	// ErrNoConvergence reports that the IRR solver could not find a root.
	ErrNoConvergence = errors.New("no convergence")
)

// ErrorKind returns a short machine-readable name for err, or "" when err does
// not wrap one of the package error kinds.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrDomain):
		return "domain_error"
	case errors.Is(err, ErrNoConvergence):
		return "no_convergence"
	default:
		return ""
	}
}

// finite rejects NaN and ±Inf results so they never leak into callers.
func finite(op string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s result is not finite", ErrDomain, op)
	}
	return v, nil
}
