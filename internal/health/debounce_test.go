package health_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zkvault/zkvault/internal/health"
)

type resultSink struct {
	mu      sync.Mutex
	results []health.Result
}

func (r *resultSink) apply(res health.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *resultSink) snapshot() []health.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]health.Result(nil), r.results...)
}

func TestEvaluatorCoalescesRapidEdits(t *testing.T) {
	sink := &resultSink{}
	ev := health.NewEvaluator(30*time.Millisecond, sink.apply)
	defer ev.Stop()

	// Simulate keystrokes: only the final state may produce a result.
	for _, pw := range []string{"A", "Aa", "Aa1", "Aa1!", "Aa1!aaaaaaaaaaaaaaaa"} {
		ev.Submit(context.Background(), pw, health.Options{})
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(time.Second)
	for {
		results := sink.snapshot()
		if len(results) == 1 {
			if results[0].Score != 100 {
				t.Fatalf("applied result score %d, want 100 (final password)", results[0].Score)
			}
			// Give superseded evaluations a moment to misfire if they would.
			time.Sleep(100 * time.Millisecond)
			if got := sink.snapshot(); len(got) != 1 {
				t.Fatalf("stale evaluation applied: %d results", len(got))
			}
			return
		}
		if len(results) > 1 {
			t.Fatalf("expected one coalesced result, got %d", len(results))
		}
		if time.Now().After(deadline) {
			t.Fatal("no result applied before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEvaluatorStopDiscardsInFlight(t *testing.T) {
	sink := &resultSink{}
	ev := health.NewEvaluator(20*time.Millisecond, sink.apply)

	ev.Submit(context.Background(), "Aa1!aaaaaaaa", health.Options{})
	ev.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := sink.snapshot(); len(got) != 0 {
		t.Fatalf("stopped evaluator applied %d results", len(got))
	}
}

func TestEvaluatorSequentialSubmissionsBothApply(t *testing.T) {
	sink := &resultSink{}
	ev := health.NewEvaluator(10*time.Millisecond, sink.apply)
	defer ev.Stop()

	ev.Submit(context.Background(), "first-password!A1", health.Options{})
	time.Sleep(100 * time.Millisecond)
	ev.Submit(context.Background(), "second-password!A1", health.Options{})
	time.Sleep(100 * time.Millisecond)

	if got := sink.snapshot(); len(got) != 2 {
		t.Fatalf("expected both spaced submissions to apply, got %d", len(got))
	}
}
