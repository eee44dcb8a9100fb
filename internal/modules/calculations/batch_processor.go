package calculations

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/aristath/tvm/pkg/formulas"
)

// MaxBatchSize bounds the number of items in one batch
const MaxBatchSize = 1000

// BatchItem is one calculation of a batch. Exactly the parameters matching
// Kind must be set.
type BatchItem struct {
	Kind Kind        `json:"kind"`
	PV   *PVRequest  `json:"pv,omitempty"`
	FV   *FVRequest  `json:"fv,omitempty"`
	NPV  *NPVRequest `json:"npv,omitempty"`
	IRR  *IRRRequest `json:"irr,omitempty"`
}

// BatchOutcome is the result of one batch item. Either Result or Error is set.
type BatchOutcome struct {
	Index     int     `json:"index"`
	Result    *Result `json:"result,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Failed reports whether the item produced an error
func (o BatchOutcome) Failed() bool {
	return o.Error != ""
}

// Batch evaluates items in parallel and returns one outcome per item, in input
// order. Item failures are reported in their outcome; only an oversized batch
// fails the call. Every item is recorded in history like a single calculation.
func (s *Service) Batch(ctx context.Context, items []BatchItem) ([]BatchOutcome, error) {
	if len(items) > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d items exceeds %d", formulas.ErrInvalidArgument, len(items), MaxBatchSize)
	}

	startTime := time.Now()
	outcomes := newBatchProcessor(s, s.batchWorkers).process(ctx, items)

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	s.log.Debug().
		Int("items", len(items)).
		Int("failed", failed).
		Dur("elapsed", time.Since(startTime)).
		Msg("Batch completed")

	return outcomes, nil
}

// batchProcessor distributes batch items across a fixed pool of workers
type batchProcessor struct {
	service    *Service
	numWorkers int
}

func newBatchProcessor(service *Service, numWorkers int) *batchProcessor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &batchProcessor{service: service, numWorkers: numWorkers}
}

type batchJob struct {
	index int
	item  BatchItem
}

func (bp *batchProcessor) process(ctx context.Context, items []BatchItem) []BatchOutcome {
	if len(items) == 0 {
		return []BatchOutcome{}
	}

	jobs := make(chan batchJob, len(items))
	results := make(chan BatchOutcome, len(items))

	workers := bp.numWorkers
	if len(items) < workers {
		workers = len(items) // Don't spawn more workers than items
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- bp.run(ctx, job)
			}
		}()
	}

	for idx, item := range items {
		jobs <- batchJob{index: idx, item: item}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]BatchOutcome, len(items))
	for result := range results {
		outcomes[result.Index] = result
	}
	return outcomes
}

func (bp *batchProcessor) run(ctx context.Context, job batchJob) BatchOutcome {
	outcome := BatchOutcome{Index: job.index}

	if err := ctx.Err(); err != nil {
		outcome.ErrorKind = "canceled"
		outcome.Error = err.Error()
		return outcome
	}

	res, err := bp.dispatch(ctx, job.item)
	if err != nil {
		outcome.ErrorKind = formulas.ErrorKind(err)
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Result = res
	return outcome
}

func (bp *batchProcessor) dispatch(ctx context.Context, item BatchItem) (*Result, error) {
	svc := bp.service
	switch item.Kind {
	case KindPV:
		if item.PV != nil {
			return svc.PresentValue(ctx, *item.PV)
		}
	case KindFV:
		if item.FV != nil {
			return svc.FutureValue(ctx, *item.FV)
		}
	case KindNPV:
		if item.NPV != nil {
			return svc.NetPresentValue(ctx, *item.NPV)
		}
	case KindIRR:
		if item.IRR != nil {
			return svc.InternalRateOfReturn(ctx, *item.IRR)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", formulas.ErrInvalidArgument, item.Kind)
	}
	return nil, fmt.Errorf("%w: %s item has no %s parameters", formulas.ErrInvalidArgument, item.Kind, item.Kind)
}
