package council

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/council/config"
	"github.com/mohammad-safakhou/council/internal/telemetry"
)

var councilTracer trace.Tracer = otel.Tracer("council/internal/council")

// Orchestrator fans a query out to every configured endpoint, joins the
// results and optionally asks the synthesizer for a council summary. The
// endpoint set is injected at construction and never mutated afterwards.
type Orchestrator struct {
	endpoints   []Endpoint
	invoker     *Invoker
	synthesizer *Synthesizer
	logger      *log.Logger
	telemetry   *telemetry.Telemetry
}

// NewOrchestrator creates a new orchestrator instance from configuration
func NewOrchestrator(cfg *config.Config, logger *log.Logger, tele *telemetry.Telemetry) (*Orchestrator, error) {
	if cfg == nil || len(cfg.Council.Endpoints) == 0 {
		return nil, fmt.Errorf("no council endpoints configured")
	}
	endpoints := make([]Endpoint, len(cfg.Council.Endpoints))
	for i, ep := range cfg.Council.Endpoints {
		endpoints[i] = Endpoint{Name: ep.Name, URL: ep.URL}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	invoker := NewInvoker(logger, tele)
	return &Orchestrator{
		endpoints:   endpoints,
		invoker:     invoker,
		synthesizer: NewSynthesizer(endpoints, invoker, logger),
		logger:      logger,
		telemetry:   tele,
	}, nil
}

// RunCouncil queries every endpoint concurrently and waits for all of them.
// Every call shares one absolute deadline derived from timeout, so the whole
// batch is bounded by timeout wall-clock regardless of endpoint count. The
// returned slice always has exactly one outcome per configured endpoint, in
// configured order; individual failures are represented, never dropped.
func (o *Orchestrator) RunCouncil(ctx context.Context, query string, timeout time.Duration) []Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcomes := make([]Outcome, len(o.endpoints))

	var wg sync.WaitGroup
	for i, ep := range o.endpoints {
		wg.Add(1)
		go func(i int, ep Endpoint) {
			defer wg.Done()

			callCtx, span := councilTracer.Start(ctx, "model.invoke",
				trace.WithAttributes(attribute.String("model.name", ep.Name)))
			defer span.End()

			outcome := o.invoker.Invoke(callCtx, ep, query)
			if !outcome.Success {
				span.SetStatus(codes.Error, outcome.Response)
			}
			outcomes[i] = outcome
		}(i, ep)
	}
	wg.Wait()

	return outcomes
}

// Process runs one complete council round: fan-out, join, and summary when
// the query asks for one. Partial backend failure is the expected path and
// always yields a well-formed result; an error return means the whole round
// could not run at all.
func (o *Orchestrator) Process(ctx context.Context, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	timeout := time.Duration(q.TimeoutSeconds) * time.Second

	runID := uuid.New().String()
	start := time.Now()
	ctx, span := councilTracer.Start(ctx, "council.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.endpoint_count", len(o.endpoints)),
			attribute.Int("run.timeout_seconds", q.TimeoutSeconds),
		))
	defer span.End()

	o.logger.Printf("run %s: querying %d models (timeout %s)", runID, len(o.endpoints), timeout)

	outcomes := o.RunCouncil(ctx, q.Text, timeout)

	result := &Result{Query: q.Text, Outcomes: outcomes}
	if q.WantSummary {
		summary := o.synthesizer.Synthesize(ctx, q.Text, outcomes, timeout)
		result.Summary = &summary
	}

	successes := 0
	for _, oc := range outcomes {
		if oc.Success {
			successes++
		}
	}
	o.logger.Printf("run %s: %d/%d models succeeded in %v", runID, successes, len(outcomes), time.Since(start))
	span.SetAttributes(attribute.Int("run.successes", successes))
	span.SetStatus(codes.Ok, "completed")

	if o.telemetry != nil {
		o.telemetry.RecordCouncilEvent(ctx, telemetry.CouncilEvent{
			ID:               runID,
			Query:            q.Text,
			StartTime:        start,
			EndTime:          time.Now(),
			Duration:         time.Since(start),
			EndpointCount:    len(outcomes),
			Successes:        successes,
			SummaryRequested: q.WantSummary,
		})
	}
	return result, nil
}
