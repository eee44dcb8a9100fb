package formulas

import (
	"fmt"
	"math"
)

// PV calculates the present value that balances a stream of nper payments of pmt
// and a terminal amount fv at the given per-period rate.
//
// Formula (payments at period end), with discount factor d = (1+rate)^-nper:
//
//	PV = -(fv*d + pmt*(1 - d)/rate)
//
// Payments at period start scale the payment term by (1+rate).
// With a zero rate the formula degenerates to -(fv + pmt*nper).
// As nper grows d tends to 0 and PV to the perpetuity value -pmt*(1+rate*when)/rate.
func PV(rate, nper, pmt, fv float64, when When) (float64, error) {
	discount, err := compound(rate, -nper, when)
	if err != nil {
		return 0, err
	}
	if rate == 0 {
		return finite("pv", -(fv + pmt*nper))
	}
	return finite("pv", -(fv*discount + pmt*(1+rate*float64(when))*(1-discount)/rate))
}

// FV calculates the future value reached after nper payments of pmt on top of an
// initial amount pv at the given per-period rate.
//
// Formula (payments at period end):
//
//	FV = -(pv*(1+rate)^nper + pmt*((1+rate)^nper - 1)/rate)
//
// Payments at period start scale the payment term by (1+rate).
// With a zero rate the formula degenerates to -(pv + pmt*nper).
func FV(rate, nper, pmt, pv float64, when When) (float64, error) {
	growth, err := compound(rate, nper, when)
	if err != nil {
		return 0, err
	}
	if rate == 0 {
		return finite("fv", -(pv + pmt*nper))
	}
	return finite("fv", -(pv*growth + pmt*annuityFactor(rate, growth, when)))
}

// compound validates the shared annuity inputs and returns (1+rate)^nper.
func compound(rate, nper float64, when When) (float64, error) {
	if err := when.validate(); err != nil {
		return 0, err
	}
	if 1+rate < 0 && nper != math.Trunc(nper) {
		return 0, fmt.Errorf("%w: negative growth base %g with fractional nper %g", ErrDomain, 1+rate, nper)
	}
	return math.Pow(1+rate, nper), nil
}

// annuityFactor is the accumulated value of a unit payment stream:
// (1 + rate*when) * ((1+rate)^nper - 1) / rate.
func annuityFactor(rate, growth float64, when When) float64 {
	return (1 + rate*float64(when)) * (growth - 1) / rate
}
