package health

import (
	"context"
	"sync"
	"time"
)

// Evaluator coalesces rapid successive evaluation requests (a user typing
// a password) into a single evaluation. Every submission carries a
// generation number; a completed evaluation is applied only while its
// generation is still the latest, so a stale result can never overwrite a
// fresher one regardless of timer or network timing.
type Evaluator struct {
	mu     sync.Mutex
	delay  time.Duration
	gen    uint64
	cancel context.CancelFunc
	apply  func(Result)
}

// DefaultDebounce is the coalescing window for successive edits.
const DefaultDebounce = 300 * time.Millisecond

// NewEvaluator returns an evaluator that delivers results to apply. The
// apply callback runs with internal state locked and must not call back
// into Submit.
func NewEvaluator(delay time.Duration, apply func(Result)) *Evaluator {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Evaluator{delay: delay, apply: apply}
}

// Submit schedules an evaluation of password, superseding any in-flight
// one. The superseded evaluation is cancelled; if it already ran, its
// result is discarded by the generation check.
func (e *Evaluator) Submit(ctx context.Context, password string, opts Options) {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	if e.cancel != nil {
		e.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	go func() {
		defer cancel()

		timer := time.NewTimer(e.delay)
		defer timer.Stop()
		select {
		case <-runCtx.Done():
			return
		case <-timer.C:
		}

		result := Evaluate(runCtx, password, opts)

		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.gen {
			return
		}
		e.apply(result)
	}()
}

// Stop cancels any in-flight evaluation and invalidates its result.
func (e *Evaluator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}
