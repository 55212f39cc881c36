package council

import (
	"fmt"
	"strings"
)

// Endpoint describes one inference backend: a model name and the address of
// its generate API. Endpoints are static configuration, built once at startup
// and never mutated.
type Endpoint struct {
	Name string
	URL  string
}

// Query represents one council request
type Query struct {
	Text           string
	WantSummary    bool
	TimeoutSeconds int
}

// Validate checks the query against the boundary contract
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("query text required")
	}
	if q.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	return nil
}

// Outcome is the uniform result of a single model invocation. Success=false
// means Response carries an error description instead of model output, so the
// aggregate shape never varies by outcome.
type Outcome struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Success  bool   `json:"success"`
}

// Result aggregates one full council round. Outcomes follow the configured
// endpoint order regardless of completion order. Summary is nil when the
// caller did not ask for one.
type Result struct {
	Query    string    `json:"query"`
	Outcomes []Outcome `json:"model_responses"`
	Summary  *string   `json:"council_summary,omitempty"`
}
