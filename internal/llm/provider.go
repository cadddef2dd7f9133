// Package llm defines the adapter contract over external model backends and
// its two reference families: subprocess CLIs fed on standard input, and a
// local HTTP bridge. A registry picks the available adapters at start-up so
// the orchestrator always has two independent invocation slots.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Response is the uniform invocation result.
type Response struct {
	Success bool          `json:"success"`
	Text    string        `json:"response"`
	Score   int           `json:"score,omitempty"`
	Model   string        `json:"model"`
	Vendor  string        `json:"vendor"`
	Err     string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"-"`
}

// Status describes an adapter's health.
type Status struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Model     string `json:"model"`
	Method    string `json:"method"`
	Error     string `json:"error,omitempty"`
}

// Provider is the capability set every adapter implements.
type Provider interface {
	// Invoke sends a prompt and blocks until a response, retry exhaustion,
	// timeout, or context cancellation. A failed invocation is reported in
	// the Response, not as a Go error, so callers always get a well-formed
	// result.
	Invoke(ctx context.Context, prompt string) *Response

	// IsAvailable is a cheap health probe.
	IsAvailable() bool

	// Name is the human-readable adapter name.
	Name() string

	// Vendor identifies the backing vendor.
	Vendor() string

	// GetStatus reports availability, version and invocation method.
	GetStatus() Status
}

// AdapterError is a non-retryable backend failure after retry exhaustion.
type AdapterError struct {
	Vendor string
	Model  string
	Detail string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s/%s failed: %s", e.Vendor, e.Model, e.Detail)
}

// truncate bounds backend error detail carried in responses.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
