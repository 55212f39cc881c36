package council

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/council/config"
)

// countingBackend is a fake inference endpoint that records how many calls it
// received.
type countingBackend struct {
	srv   *httptest.Server
	calls int64
}

func newCountingBackend(t *testing.T, handler http.HandlerFunc) *countingBackend {
	t.Helper()
	b := &countingBackend{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&b.calls, 1)
		handler(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *countingBackend) count() int64 { return atomic.LoadInt64(&b.calls) }

func respondWith(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": text})
	}
}

func failWith(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend error", status)
	}
}

func newTestOrchestrator(t *testing.T, backends []*countingBackend, names []string) *Orchestrator {
	t.Helper()
	cfg := &config.Config{}
	for i, b := range backends {
		cfg.Council.Endpoints = append(cfg.Council.Endpoints, config.EndpointConfig{
			Name: names[i], URL: b.srv.URL,
		})
	}
	orch, err := NewOrchestrator(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return orch
}

func TestRunCouncilAllSucceedInConfiguredOrder(t *testing.T) {
	slow := newCountingBackend(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		respondWith("slow answer")(w, r)
	})
	fast1 := newCountingBackend(t, respondWith("fast answer one"))
	fast2 := newCountingBackend(t, respondWith("fast answer two"))

	orch := newTestOrchestrator(t, []*countingBackend{slow, fast1, fast2}, []string{"alpha", "beta", "gamma"})
	outcomes := orch.RunCouncil(context.Background(), "q", 5*time.Second)

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	wantOrder := []string{"alpha", "beta", "gamma"}
	for i, oc := range outcomes {
		if oc.Model != wantOrder[i] {
			t.Fatalf("outcome %d: expected model %s, got %s", i, wantOrder[i], oc.Model)
		}
		if !oc.Success {
			t.Fatalf("outcome %d: expected success, got %s", i, oc.Response)
		}
	}
	if outcomes[0].Response != "slow answer" {
		t.Fatalf("slowest endpoint must keep its configured slot, got %q", outcomes[0].Response)
	}
}

func TestRunCouncilPartialFailureIsIsolated(t *testing.T) {
	ok1 := newCountingBackend(t, respondWith("answer one"))
	bad := newCountingBackend(t, failWith(http.StatusInternalServerError))
	ok2 := newCountingBackend(t, respondWith("answer three"))

	orch := newTestOrchestrator(t, []*countingBackend{ok1, bad, ok2}, []string{"alpha", "beta", "gamma"})
	result, err := orch.Process(context.Background(), Query{Text: "q", WantSummary: true, TimeoutSeconds: 5})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}
	failed := 0
	for _, oc := range result.Outcomes {
		if !oc.Success {
			failed++
			if oc.Model != "beta" {
				t.Fatalf("expected only beta to fail, got %s", oc.Model)
			}
			if !strings.HasPrefix(oc.Response, "Error: ") {
				t.Fatalf("failed outcome should carry Error: prefix, got %q", oc.Response)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly 1 failed outcome, got %d", failed)
	}
	if result.Summary == nil || *result.Summary == "" || *result.Summary == SummaryUnavailable {
		t.Fatalf("summary should be generated when at least one model succeeded, got %v", result.Summary)
	}
	// summarizer is the first endpoint: one council call plus the summary call
	if ok1.count() != 2 {
		t.Fatalf("expected 2 calls to the summarizer endpoint, got %d", ok1.count())
	}
}

func TestProcessWithoutSummaryMakesNoExtraCall(t *testing.T) {
	a := newCountingBackend(t, respondWith("one"))
	b := newCountingBackend(t, respondWith("two"))
	c := newCountingBackend(t, respondWith("three"))

	orch := newTestOrchestrator(t, []*countingBackend{a, b, c}, []string{"alpha", "beta", "gamma"})
	result, err := orch.Process(context.Background(), Query{Text: "q", WantSummary: false, TimeoutSeconds: 5})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Summary != nil {
		t.Fatalf("expected no summary, got %q", *result.Summary)
	}
	if total := a.count() + b.count() + c.count(); total != 3 {
		t.Fatalf("expected exactly 3 backend calls, got %d", total)
	}
}

func TestProcessAllFailedReturnsSentinel(t *testing.T) {
	a := newCountingBackend(t, failWith(http.StatusBadGateway))
	b := newCountingBackend(t, failWith(http.StatusBadGateway))
	c := newCountingBackend(t, failWith(http.StatusBadGateway))

	orch := newTestOrchestrator(t, []*countingBackend{a, b, c}, []string{"alpha", "beta", "gamma"})
	result, err := orch.Process(context.Background(), Query{Text: "q", WantSummary: true, TimeoutSeconds: 5})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}
	for i, oc := range result.Outcomes {
		if oc.Success {
			t.Fatalf("outcome %d: expected failure", i)
		}
	}
	if result.Summary == nil || *result.Summary != SummaryUnavailable {
		t.Fatalf("expected sentinel summary, got %v", result.Summary)
	}
	// no (N+1)th call: every backend saw exactly the one council call
	if a.count() != 1 || b.count() != 1 || c.count() != 1 {
		t.Fatalf("expected 1 call per backend, got %d/%d/%d", a.count(), b.count(), c.count())
	}
}

func TestRunCouncilSharedDeadlineBoundsTheBatch(t *testing.T) {
	hung := newCountingBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
		respondWith("too late")(w, r)
	})
	quick := newCountingBackend(t, respondWith("in time"))

	orch := newTestOrchestrator(t, []*countingBackend{hung, quick}, []string{"alpha", "beta"})

	start := time.Now()
	outcomes := orch.RunCouncil(context.Background(), "q", 200*time.Millisecond)
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("batch should be bounded by the shared deadline, took %v", elapsed)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected complete outcome list even under timeout, got %d", len(outcomes))
	}
	if outcomes[0].Success {
		t.Fatalf("hung endpoint should time out")
	}
	if !strings.Contains(outcomes[0].Response, "deadline") {
		t.Fatalf("timed-out outcome should indicate the deadline, got %q", outcomes[0].Response)
	}
	if !outcomes[1].Success || outcomes[1].Response != "in time" {
		t.Fatalf("quick endpoint should still succeed, got %+v", outcomes[1])
	}
}

func TestProcessShapeIsStableAcrossRuns(t *testing.T) {
	a := newCountingBackend(t, respondWith("one"))
	b := newCountingBackend(t, respondWith("two"))

	orch := newTestOrchestrator(t, []*countingBackend{a, b}, []string{"alpha", "beta"})

	q := Query{Text: "q", WantSummary: true, TimeoutSeconds: 5}
	first, err := orch.Process(context.Background(), q)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	second, err := orch.Process(context.Background(), q)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(first.Outcomes) != len(second.Outcomes) {
		t.Fatalf("outcome counts differ: %d vs %d", len(first.Outcomes), len(second.Outcomes))
	}
	for i := range first.Outcomes {
		if first.Outcomes[i].Model != second.Outcomes[i].Model {
			t.Fatalf("outcome %d model differs: %s vs %s", i, first.Outcomes[i].Model, second.Outcomes[i].Model)
		}
	}
	if (first.Summary == nil) != (second.Summary == nil) {
		t.Fatalf("summary presence differs between identical runs")
	}
}

func TestProcessRejectsInvalidQuery(t *testing.T) {
	a := newCountingBackend(t, respondWith("one"))
	orch := newTestOrchestrator(t, []*countingBackend{a}, []string{"alpha"})

	if _, err := orch.Process(context.Background(), Query{Text: "  ", WantSummary: true, TimeoutSeconds: 5}); err == nil {
		t.Fatalf("expected error for empty query text")
	}
	if _, err := orch.Process(context.Background(), Query{Text: "q", WantSummary: true, TimeoutSeconds: 0}); err == nil {
		t.Fatalf("expected error for non-positive timeout")
	}
	if a.count() != 0 {
		t.Fatalf("invalid queries must not reach the backends, got %d calls", a.count())
	}
}

func TestNewOrchestratorRequiresEndpoints(t *testing.T) {
	if _, err := NewOrchestrator(&config.Config{}, nil, nil); err == nil {
		t.Fatalf("expected error when no endpoints are configured")
	}
}
