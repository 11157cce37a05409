package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reporanger/internal/ops"
)

const skipReasonCancelled = "cancelled"

// Scheduler runs one operation against a set of repositories with bounded
// concurrency. Each worker owns one repository's full attempt-and-retry
// sequence; one repository's failure or backoff never blocks the others.
type Scheduler struct {
	req         ops.Request
	retry       RetryPolicy
	concurrency int

	// OnResult, when set, is invoked once per repository as its terminal
	// outcome is produced (completion order, not input order). Used to
	// stream results to output sinks while the run is still going.
	OnResult func(ops.Result)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewScheduler(req ops.Request, retry RetryPolicy, concurrency int) (*Scheduler, error) {
	if req.Client == nil {
		return nil, errors.New("scheduler requires a client")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}
	if retry.MaxAttempts <= 0 {
		return nil, fmt.Errorf("retry max attempts must be >= 1, got %d", retry.MaxAttempts)
	}
	return &Scheduler{
		req:         req,
		retry:       retry,
		concurrency: concurrency,
		now:         time.Now,
		sleep:       sleepCtx,
	}, nil
}

// sleepCtx waits without blocking a thread and returns early when ctx is
// cancelled, so backoff never delays run shutdown.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run dispatches op against every ref and returns the input-ordered report.
//
// Guarantees:
//   - every submitted ref appears exactly once in the report;
//   - at most `concurrency` Apply sequences are in flight at a time,
//     remaining refs dispatch in submission order as slots free;
//   - on cancellation, in-flight attempts finish their current call but no
//     further attempts start, and refs never started end Skipped.
func (s *Scheduler) Run(ctx context.Context, op ops.Operation, refs []RepositoryRef) (*RunReport, error) {
	if ctx == nil {
		return nil, errors.New("context is nil")
	}
	if op == nil {
		return nil, errors.New("operation is nil")
	}

	agg := newReportAggregator(op.ID(), refs, s.now())

	var recordMu sync.Mutex
	var recordErr error
	record := func(i int, ref RepositoryRef, outcome ops.Outcome) {
		if err := agg.Record(i, outcome); err != nil {
			recordMu.Lock()
			if recordErr == nil {
				recordErr = err
			}
			recordMu.Unlock()
			return
		}
		if s.OnResult != nil {
			s.OnResult(ops.Result{Repo: ref.String(), Op: op.ID(), Outcome: outcome})
		}
	}

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, ref := range refs {
		if ctx.Err() != nil {
			record(i, ref, ops.Skipped(skipReasonCancelled))
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			record(i, ref, ops.Skipped(skipReasonCancelled))
			continue
		}

		wg.Add(1)
		go func(i int, ref RepositoryRef) {
			defer wg.Done()
			defer func() { <-sem }()
			record(i, ref, s.runOne(ctx, op, ref))
		}(i, ref)
	}

	wg.Wait()

	recordMu.Lock()
	err := recordErr
	recordMu.Unlock()
	if err != nil {
		return nil, err
	}
	return agg.Finalize(s.now())
}

// runOne executes the sequential attempt loop for a single repository.
// Attempt N+1 never starts before attempt N's result is known.
func (s *Scheduler) runOne(ctx context.Context, op ops.Operation, ref RepositoryRef) ops.Outcome {
	target := ref.Target()

	for number := 1; ; number++ {
		attempt := ops.Attempt{Number: number, Start: s.now()}
		value, err := op.Apply(ctx, s.req, target)
		attempt.End = s.now()
		attempt.Err = err

		if err == nil {
			return ops.Succeeded(value, number)
		}

		kind := ops.KindOf(err)
		if kind == ops.KindCancelled || ctx.Err() != nil {
			return ops.Failed(ops.KindCancelled, err.Error(), number)
		}
		if !s.retry.ShouldRetry(attempt) {
			return ops.Failed(kind, err.Error(), number)
		}
		if serr := s.sleep(ctx, s.retry.BackoffDelay(number)); serr != nil {
			// Cancelled mid-backoff: the last attempt's failure is what
			// actually happened, so keep it in the message.
			return ops.Failed(ops.KindCancelled, fmt.Sprintf("retry aborted: %v", err), number)
		}
	}
}
