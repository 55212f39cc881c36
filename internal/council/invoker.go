package council

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/council/internal/telemetry"
)

const noResponsePlaceholder = "No response generated"

// generateRequest is the wire format consumed by the inference backends
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the subset of the backend reply we care about
type generateResponse struct {
	Response *string `json:"response"`
}

// Invoker performs single calls against inference backends. It never returns
// an error: every failure mode (dial error, non-2xx status, malformed body,
// deadline exceeded) is converted into a failed Outcome so that sibling
// invocations and the batch are never interrupted.
type Invoker struct {
	client    *http.Client
	logger    *log.Logger
	telemetry *telemetry.Telemetry
}

// NewInvoker creates a new invoker. The HTTP client carries no timeout of its
// own; every call is bounded by the context deadline passed to Invoke.
func NewInvoker(logger *log.Logger, tele *telemetry.Telemetry) *Invoker {
	if logger == nil {
		logger = log.New(log.Writer(), "[INVOKE] ", log.LstdFlags)
	}
	return &Invoker{
		client:    &http.Client{},
		logger:    logger,
		telemetry: tele,
	}
}

// Invoke asks one backend the given query, framing the backend under its own
// configured name. The call is bounded by ctx.
func (iv *Invoker) Invoke(ctx context.Context, ep Endpoint, query string) Outcome {
	prompt := fmt.Sprintf(
		"You are %s, one member of a council of AI models. Give your best, honest answer to the question below.\n\nQuestion: %s",
		ep.Name, query,
	)
	return iv.Generate(ctx, ep, prompt)
}

// Generate sends a raw prompt to one backend and converts whatever happens
// into a uniform Outcome.
func (iv *Invoker) Generate(ctx context.Context, ep Endpoint, prompt string) Outcome {
	iv.logger.Printf("querying %s", ep.Name)
	start := time.Now()

	text, err := iv.generate(ctx, ep, prompt)
	outcome := Outcome{Model: ep.Name, Response: text, Success: err == nil}
	if err != nil {
		outcome.Response = "Error: " + err.Error()
	}

	if iv.telemetry != nil {
		iv.telemetry.RecordModelEvent(ctx, telemetry.ModelEvent{
			Model:     ep.Name,
			StartTime: start,
			EndTime:   time.Now(),
			Duration:  time.Since(start),
			Success:   outcome.Success,
			Error:     errString(err),
		})
	}
	return outcome
}

func (iv *Invoker) generate(ctx context.Context, ep Endpoint, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: ep.Name, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := iv.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%s returned status %d: %s", ep.Name, resp.StatusCode, string(b))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	// A well-formed body without a response field still counts as a
	// successful call, just one with nothing to say.
	if gr.Response == nil {
		return noResponsePlaceholder, nil
	}
	return *gr.Response, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
