// Package calculations runs time-value-of-money calculations and keeps their history.
package calculations

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a calculation id is unknown.
var ErrNotFound = errors.New("calculation not found")

// Kind identifies which formula a calculation ran.
type Kind string

const (
	KindPV  Kind = "pv"
	KindFV  Kind = "fv"
	KindNPV Kind = "npv"
	KindIRR Kind = "irr"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPV, KindFV, KindNPV, KindIRR:
		return true
	}
	return false
}

// PVRequest holds the inputs of a present value calculation.
type PVRequest struct {
	Rate float64 `json:"rate" msgpack:"rate"`
	Nper float64 `json:"nper" msgpack:"nper"`
	Pmt  float64 `json:"pmt" msgpack:"pmt"`
	FV   float64 `json:"fv" msgpack:"fv"`
	When string  `json:"when" msgpack:"when"`
}

// FVRequest holds the inputs of a future value calculation.
type FVRequest struct {
	Rate float64 `json:"rate" msgpack:"rate"`
	Nper float64 `json:"nper" msgpack:"nper"`
	Pmt  float64 `json:"pmt" msgpack:"pmt"`
	PV   float64 `json:"pv" msgpack:"pv"`
	When string  `json:"when" msgpack:"when"`
}

// NPVRequest holds the inputs of a net present value calculation.
type NPVRequest struct {
	Rate   float64   `json:"rate" msgpack:"rate"`
	Values []float64 `json:"values" msgpack:"values"`
}

// IRRRequest holds the inputs of an internal rate of return calculation.
// Guess overrides the configured solver guess when set.
type IRRRequest struct {
	Values []float64 `json:"values" msgpack:"values"`
	Guess  *float64  `json:"guess,omitempty" msgpack:"guess,omitempty"`
}

// Result is the outcome of a successful calculation.
type Result struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Value      float64   `json:"value"`
	Iterations int       `json:"iterations,omitempty"`
	Roots      []float64 `json:"roots,omitempty"`
}

// Calculation is a stored history record.
type Calculation struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Inputs     interface{}   `json:"inputs"` // request struct on write, map[string]interface{} on read
	Result     *float64      `json:"result,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Iterations int           `json:"iterations,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Succeeded reports whether the calculation produced a result.
func (c Calculation) Succeeded() bool {
	return c.Result != nil
}
