package formulas

import (
	"fmt"
	"strings"
)

// When is the timing of annuity payments within each period.
type When int

const (
	// End is an ordinary annuity: payments at the end of each period.
	End When = iota
	// Begin is an annuity-due: payments at the beginning of each period.
	Begin
)

// String returns the canonical name of the timing.
func (w When) String() string {
	switch w {
	case End:
		return "end"
	case Begin:
		return "begin"
	default:
		return fmt.Sprintf("When(%d)", int(w))
	}
}

// ParseWhen converts a timing name into a When.
// Accepted: "end", "finish", "0" and "begin", "start", "1" (case-insensitive).
// An empty string means End.
func ParseWhen(s string) (When, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "end", "finish", "0":
		return End, nil
	case "begin", "start", "1":
		return Begin, nil
	default:
		return End, fmt.Errorf("%w: unknown payment timing %q", ErrInvalidArgument, s)
	}
}

func (w When) validate() error {
	if w != End && w != Begin {
		return fmt.Errorf("%w: unknown payment timing %s", ErrInvalidArgument, w)
	}
	return nil
}
