package calculations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/tvm/internal/metrics"
	"github.com/aristath/tvm/pkg/formulas"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHistoryStore implements HistoryStore in memory for testing
type mockHistoryStore struct {
	mu        sync.Mutex
	created   []*Calculation
	createErr error
	deleted   time.Time
}

func (m *mockHistoryStore) Create(_ context.Context, calc *Calculation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	calc.ID = "calc-" + string(rune('a'+len(m.created)))
	m.created = append(m.created, calc)
	return nil
}

func (m *mockHistoryStore) GetByID(_ context.Context, id string) (*Calculation, error) {
	for _, c := range m.created {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockHistoryStore) ListRecent(_ context.Context, limit int, kind Kind) ([]Calculation, error) {
	var out []Calculation
	for i := len(m.created) - 1; i >= 0 && len(out) < limit; i-- {
		if kind == "" || m.created[i].Kind == kind {
			out = append(out, *m.created[i])
		}
	}
	return out, nil
}

func (m *mockHistoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.deleted = cutoff
	return 0, nil
}

func (m *mockHistoryStore) Count(context.Context) (int64, error) {
	return int64(len(m.created)), nil
}

// mockRecorder captures telemetry
type mockRecorder struct {
	outcomes   map[string]int
	iterations []int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{outcomes: map[string]int{}}
}

func (m *mockRecorder) ObserveCalculation(kind, outcome string, _ time.Duration) {
	m.outcomes[kind+"/"+outcome]++
}

func (m *mockRecorder) ObserveIRRIterations(n int) {
	m.iterations = append(m.iterations, n)
}

func newTestService(store HistoryStore, rec Recorder) *Service {
	return NewService(store, formulas.DefaultSolver(), rec, zerolog.Nop())
}

func TestService_PresentValue(t *testing.T) {
	store := &mockHistoryStore{}
	rec := newMockRecorder()
	svc := newTestService(store, rec)

	res, err := svc.PresentValue(context.Background(), PVRequest{Rate: 0, Nper: 10, Pmt: -100})
	require.NoError(t, err)

	assert.Equal(t, KindPV, res.Kind)
	assert.Equal(t, 1000.0, res.Value)
	assert.Equal(t, "calc-a", res.ID)
	assert.Equal(t, 1, rec.outcomes["pv/"+metrics.OutcomeSuccess])

	require.Len(t, store.created, 1)
	assert.Equal(t, PVRequest{Rate: 0, Nper: 10, Pmt: -100}, store.created[0].Inputs)
	require.NotNil(t, store.created[0].Result)
	assert.Equal(t, 1000.0, *store.created[0].Result)
}

func TestService_AnnuityDueTiming(t *testing.T) {
	svc := newTestService(&mockHistoryStore{}, nil)
	ctx := context.Background()

	end, err := svc.FutureValue(ctx, FVRequest{Rate: 0.05, Nper: 10, Pmt: -100, When: "end"})
	require.NoError(t, err)
	begin, err := svc.FutureValue(ctx, FVRequest{Rate: 0.05, Nper: 10, Pmt: -100, When: "begin"})
	require.NoError(t, err)

	assert.InDelta(t, end.Value*1.05, begin.Value, 1e-9)
}

func TestService_InvalidWhenIsRecorded(t *testing.T) {
	store := &mockHistoryStore{}
	rec := newMockRecorder()
	svc := newTestService(store, rec)

	_, err := svc.PresentValue(context.Background(), PVRequest{Rate: 0.05, Nper: 10, Pmt: -100, When: "sometimes"})
	require.ErrorIs(t, err, formulas.ErrInvalidArgument)

	require.Len(t, store.created, 1)
	assert.Nil(t, store.created[0].Result)
	assert.Equal(t, "invalid_argument", store.created[0].ErrorKind)
	assert.Equal(t, 1, rec.outcomes["pv/"+metrics.OutcomeError])
}

func TestService_RecordsOutcomeLabels(t *testing.T) {
	m := metrics.New(nil)
	svc := newTestService(&mockHistoryStore{}, m)
	ctx := context.Background()

	_, err := svc.PresentValue(ctx, PVRequest{Rate: 0, Nper: 10, Pmt: -100})
	require.NoError(t, err)
	_, err = svc.InternalRateOfReturn(ctx, IRRRequest{Values: []float64{100, 100}})
	require.ErrorIs(t, err, formulas.ErrNoConvergence)

	expected := `
# HELP tvm_calculations_total Total calculations by kind and outcome
# TYPE tvm_calculations_total counter
tvm_calculations_total{kind="irr",outcome="error"} 1
tvm_calculations_total{kind="pv",outcome="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected), "tvm_calculations_total"))
}

func TestService_NetPresentValue(t *testing.T) {
	svc := newTestService(&mockHistoryStore{}, nil)

	res, err := svc.NetPresentValue(context.Background(), NPVRequest{Rate: 0.10, Values: []float64{-100, 110}})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Value, 1e-9)

	_, err = svc.NetPresentValue(context.Background(), NPVRequest{Rate: -1, Values: []float64{-100, 110}})
	assert.ErrorIs(t, err, formulas.ErrDomain)
}

func TestService_InternalRateOfReturn(t *testing.T) {
	store := &mockHistoryStore{}
	rec := newMockRecorder()
	svc := newTestService(store, rec)

	res, err := svc.InternalRateOfReturn(context.Background(), IRRRequest{Values: []float64{-100, 230, -132}})
	require.NoError(t, err)

	assert.InDelta(t, 0.10, res.Value, 1e-9)
	assert.Len(t, res.Roots, 2)
	assert.Positive(t, res.Iterations)
	assert.Equal(t, []int{res.Iterations}, rec.iterations)
	assert.Equal(t, res.Iterations, store.created[0].Iterations)
}

func TestService_InternalRateOfReturn_GuessOverride(t *testing.T) {
	svc := newTestService(&mockHistoryStore{}, nil)
	guess := 0.25

	res, err := svc.InternalRateOfReturn(context.Background(), IRRRequest{
		Values: []float64{-100, 230, -132},
		Guess:  &guess,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.20, res.Value, 1e-9)

	// The configured solver is untouched
	assert.Equal(t, formulas.DefaultIRRGuess, svc.solver.Guess)
}

func TestService_InternalRateOfReturn_NoConvergence(t *testing.T) {
	store := &mockHistoryStore{}
	svc := newTestService(store, nil)

	_, err := svc.InternalRateOfReturn(context.Background(), IRRRequest{Values: []float64{100, 100}})
	require.ErrorIs(t, err, formulas.ErrNoConvergence)
	assert.Equal(t, "no_convergence", store.created[0].ErrorKind)
}

func TestService_StorageFailureDoesNotFailCalculation(t *testing.T) {
	store := &mockHistoryStore{createErr: errors.New("disk full")}
	svc := newTestService(store, nil)

	res, err := svc.NetPresentValue(context.Background(), NPVRequest{Rate: 0, Values: []float64{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 6.0, res.Value)
}

func TestService_NilStore(t *testing.T) {
	svc := NewService(nil, formulas.DefaultSolver(), nil, zerolog.Nop())

	res, err := svc.NetPresentValue(context.Background(), NPVRequest{Rate: 0, Values: []float64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Value)
}

func TestService_RecentAndGet(t *testing.T) {
	store := &mockHistoryStore{}
	svc := newTestService(store, nil)
	ctx := context.Background()

	_, err := svc.NetPresentValue(ctx, NPVRequest{Rate: 0, Values: []float64{1}})
	require.NoError(t, err)
	irr, err := svc.InternalRateOfReturn(ctx, IRRRequest{Values: []float64{-100, 110}})
	require.NoError(t, err)

	recent, err := svc.Recent(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, KindIRR, recent[0].Kind)

	got, err := svc.Get(ctx, irr.ID)
	require.NoError(t, err)
	assert.Equal(t, KindIRR, got.Kind)

	_, err = svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ConcurrentUse(t *testing.T) {
	svc := newTestService(&mockHistoryStore{}, nil)

	var wg sync.WaitGroup
	results := make([]float64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.InternalRateOfReturn(context.Background(), IRRRequest{Values: []float64{-100, 110}})
			if err == nil {
				results[i] = res.Value
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.InDelta(t, 0.10, r, 1e-10)
	}
}
