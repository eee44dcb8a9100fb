package testing

// CashFlowFixture is a named cash-flow series with its known NPV and IRR
type CashFlowFixture struct {
	Name   string
	Values []float64
	Rate   float64 // discount rate NPV is quoted at
	NPV    float64
	IRR    float64
}

// NewCashFlowFixtures returns series whose NPV and IRR were computed independently
func NewCashFlowFixtures() []CashFlowFixture {
	return []CashFlowFixture{
		{
			Name:   "single period",
			Values: []float64{-100, 110},
			Rate:   0.10,
			NPV:    0,
			IRR:    0.10,
		},
		{
			Name:   "front loaded project",
			Values: []float64{-100, 39, 59, 55, 20},
			Rate:   0.10,
			NPV:    39.19745918994602,
			IRR:    0.28094842115996,
		},
		{
			Name:   "capital project",
			Values: []float64{-40000, 5000, 8000, 12000, 30000},
			Rate:   0.08,
			NPV:    3065.2226681795255,
			IRR:    0.1058225984,
		},
		{
			Name:   "negative return",
			Values: []float64{-100, 0, 0, 74},
			Rate:   0.05,
			NPV:    -36.076017708670776,
			IRR:    -0.0954958303,
		},
	}
}
