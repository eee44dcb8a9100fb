package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPV(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		nper      float64
		pmt       float64
		fv        float64
		when      When
		expected  float64
		tolerance float64
	}{
		{
			name:      "ordinary annuity",
			rate:      0.05,
			nper:      10,
			pmt:       -100,
			expected:  772.1734929184817,
			tolerance: 1e-9,
		},
		{
			name:      "annuity due",
			rate:      0.08,
			nper:      10,
			pmt:       -100,
			when:      Begin,
			expected:  724.6887910856764,
			tolerance: 1e-9,
		},
		{
			name:      "with terminal value",
			rate:      0.05,
			nper:      10,
			pmt:       -100,
			fv:        1000,
			expected:  158.26023937772254,
			tolerance: 1e-9,
		},
		{
			name:      "zero rate is a linear sum",
			rate:      0,
			nper:      10,
			pmt:       -100,
			expected:  1000,
			tolerance: 0,
		},
		{
			name:      "zero rate ignores timing",
			rate:      0,
			nper:      10,
			pmt:       -100,
			fv:        -50,
			when:      Begin,
			expected:  1050,
			tolerance: 0,
		},
		{
			name:      "fractional periods",
			rate:      0.1,
			nper:      2.5,
			pmt:       -100,
			expected:  212.0143890532296,
			tolerance: 1e-9,
		},
		{
			name:      "zero periods",
			rate:      0.1,
			nper:      0,
			pmt:       -100,
			fv:        500,
			expected:  -500,
			tolerance: 1e-12,
		},
		{
			name:      "long horizon tends to the perpetuity",
			rate:      0.05,
			nper:      1e5,
			pmt:       -100,
			fv:        1000,
			expected:  2000,
			tolerance: 1e-9,
		},
		{
			name:      "long horizon perpetuity due",
			rate:      0.05,
			nper:      1e5,
			pmt:       -100,
			when:      Begin,
			expected:  2100,
			tolerance: 1e-9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := PV(tt.rate, tt.nper, tt.pmt, tt.fv, tt.when)
			require.NoError(t, err)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("PV() = %v, want %v (±%v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestFV(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		nper      float64
		pmt       float64
		pv        float64
		when      When
		expected  float64
		tolerance float64
	}{
		{
			name:      "ordinary annuity",
			rate:      0.05,
			nper:      10,
			pmt:       -100,
			expected:  1257.789253554884,
			tolerance: 1e-9,
		},
		{
			name:      "with present value",
			rate:      0.05,
			nper:      10,
			pmt:       -100,
			pv:        -1000,
			expected:  2886.683880332326,
			tolerance: 1e-9,
		},
		{
			name:      "annuity due",
			rate:      0.05,
			nper:      10,
			pmt:       -100,
			when:      Begin,
			expected:  1320.6787162326282,
			tolerance: 1e-9,
		},
		{
			name:      "zero rate is a linear sum",
			rate:      0,
			nper:      10,
			pmt:       -100,
			pv:        -1000,
			expected:  2000,
			tolerance: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := FV(tt.rate, tt.nper, tt.pmt, tt.pv, tt.when)
			require.NoError(t, err)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("FV() = %v, want %v (±%v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestPVFVRoundTrip(t *testing.T) {
	cases := []struct {
		rate, nper, pmt, fv float64
	}{
		{0.05, 10, -100, 1000},
		{0.08, 30, -250, 0},
		{0.01, 360, -1500, 20000},
		{-0.02, 12, 100, -500},
		{0.07, 7.5, -80, 300},
		{0, 24, -10, 100},
	}

	for _, c := range cases {
		for _, when := range []When{End, Begin} {
			pv, err := PV(c.rate, c.nper, c.pmt, c.fv, when)
			require.NoError(t, err)

			fv, err := FV(c.rate, c.nper, c.pmt, pv, when)
			require.NoError(t, err)

			assert.InDelta(t, c.fv, fv, 1e-6*math.Max(1, math.Abs(c.fv)),
				"rate=%v nper=%v pmt=%v when=%s", c.rate, c.nper, c.pmt, when)
		}
	}
}

func TestPVAnnuityDueFactor(t *testing.T) {
	end, err := PV(0.08, 10, -100, 0, End)
	require.NoError(t, err)
	begin, err := PV(0.08, 10, -100, 0, Begin)
	require.NoError(t, err)

	assert.InDelta(t, end*1.08, begin, 1e-9)
}

func TestAnnuity_InvalidWhen(t *testing.T) {
	_, err := PV(0.05, 10, -100, 0, When(2))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = FV(0.05, 10, -100, 0, When(-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAnnuity_DomainErrors(t *testing.T) {
	t.Run("negative base with fractional periods", func(t *testing.T) {
		_, err := PV(-1.5, 2.5, -100, 0, End)
		assert.ErrorIs(t, err, ErrDomain)

		_, err = FV(-1.5, 2.5, -100, 0, End)
		assert.ErrorIs(t, err, ErrDomain)
	})

	t.Run("negative base with integer periods is defined", func(t *testing.T) {
		_, err := FV(-1.5, 3, -100, 0, End)
		assert.NoError(t, err)
	})

	t.Run("rate of minus one", func(t *testing.T) {
		_, err := PV(-1, 10, -100, 0, End)
		assert.ErrorIs(t, err, ErrDomain)
	})

	t.Run("non-finite input", func(t *testing.T) {
		_, err := FV(0.05, 10, math.NaN(), 0, End)
		assert.ErrorIs(t, err, ErrDomain)

		_, err = PV(0.05, 10, -100, math.Inf(1), End)
		assert.ErrorIs(t, err, ErrDomain)
	})
}
