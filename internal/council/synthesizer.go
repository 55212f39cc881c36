package council

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// SummaryUnavailable is returned when a summary was requested but no council
// member produced a usable response, so there is nothing to synthesize.
const SummaryUnavailable = "Unable to generate council summary: no models responded successfully"

// Synthesizer turns a full set of council outcomes into a single narrative by
// asking one designated endpoint to reconcile them. The summarizer is always
// the first configured endpoint, even when that endpoint failed in the
// council round itself; it is invoked fresh for the summary call.
type Synthesizer struct {
	endpoints []Endpoint
	invoker   *Invoker
	logger    *log.Logger
}

// NewSynthesizer creates a synthesizer over the given endpoint set
func NewSynthesizer(endpoints []Endpoint, invoker *Invoker, logger *log.Logger) *Synthesizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNTH] ", log.LstdFlags)
	}
	return &Synthesizer{endpoints: endpoints, invoker: invoker, logger: logger}
}

// Synthesize builds a meta-prompt from every outcome and asks the summarizer
// endpoint for a synthesis. With zero successful outcomes it short-circuits
// to a fixed sentinel without touching the network. An invocation failure is
// returned as an error-description string, keeping the result shape uniform.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, outcomes []Outcome, timeout time.Duration) string {
	anySuccess := false
	for _, oc := range outcomes {
		if oc.Success {
			anySuccess = true
			break
		}
	}
	if !anySuccess {
		s.logger.Printf("skipping summary: no successful responses")
		return SummaryUnavailable
	}

	summarizer := s.endpoints[0]
	s.logger.Printf("synthesizing council summary via %s", summarizer.Name)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := s.invoker.Generate(ctx, summarizer, s.buildPrompt(query, outcomes))
	return outcome.Response
}

func (s *Synthesizer) buildPrompt(query string, outcomes []Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, moderating a council of AI models. The council was asked:\n\n%s\n\nThe members responded as follows:\n\n", s.endpoints[0].Name, query)
	for _, oc := range outcomes {
		status := "responded"
		if !oc.Success {
			status = "failed"
		}
		fmt.Fprintf(&b, "=== %s (%s) ===\n%s\n\n", oc.Model, status, oc.Response)
	}
	b.WriteString(strings.TrimSpace(`
Write a council summary that:
1. Points out where the members agree.
2. Points out where they disagree and any unique insight only one member raised.
3. Ends with a single clear recommendation.
`))
	return b.String()
}
