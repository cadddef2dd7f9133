package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// BridgeConfig configures the HTTP-bridge adapter family.
type BridgeConfig struct {
	// BaseURL of the local bridge (default http://localhost:8765).
	BaseURL string
	// Model reported with requests.
	Model string
	// Vendor identifier.
	Vendor string
	// DisplayName for status output.
	DisplayName string
	// Timeout per invocation attempt (default 60s).
	Timeout time.Duration
	// Retry bounds re-invocation on transient 5xx and connection errors.
	Retry RetryConfig
}

// BridgeProvider talks to a local HTTP bridge: POST /invoke with
// {prompt, model}, GET /health as the availability probe. A 503 means the
// backend is unavailable for this invocation and is not retried.
type BridgeProvider struct {
	config BridgeConfig
	client *http.Client
	log    *logrus.Logger
}

type invokeRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type invokeResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Vendor   string `json:"vendor"`
	Message  string `json:"message"`
}

// NewBridgeProvider builds a bridge adapter, filling defaults.
func NewBridgeProvider(config BridgeConfig, log *logrus.Logger) *BridgeProvider {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8765"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Retry == (RetryConfig{}) {
		config.Retry = DefaultRetryConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BridgeProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		log:    log,
	}
}

// NewCopilotProvider returns the Copilot bridge adapter on its default port.
func NewCopilotProvider(log *logrus.Logger) *BridgeProvider {
	return NewBridgeProvider(BridgeConfig{
		Model:       "copilot",
		Vendor:      "copilot",
		DisplayName: "GitHub Copilot",
	}, log)
}

// Invoke posts the prompt to the bridge with bounded retry on transient
// failures.
func (p *BridgeProvider) Invoke(ctx context.Context, prompt string) *Response {
	start := time.Now()

	body, err := json.Marshal(invokeRequest{Prompt: prompt, Model: p.config.Model})
	if err != nil {
		return p.failure(start, fmt.Sprintf("encoding request: %s", err))
	}

	var lastErr string
	for attempt := 0; attempt <= p.config.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, p.config.Retry.backoffDelay(attempt-1)) {
				lastErr = "invocation cancelled"
				break
			}
		}

		text, errDetail, retryable := p.postOnce(ctx, body)
		if text != "" {
			return &Response{
				Success: true,
				Text:    text,
				Model:   p.config.Model,
				Vendor:  p.config.Vendor,
				Elapsed: time.Since(start),
			}
		}
		lastErr = errDetail
		if !retryable {
			break
		}
		p.log.WithFields(logrus.Fields{
			"adapter": p.config.DisplayName,
			"attempt": attempt + 1,
		}).Debug("bridge invocation failed, retrying")
	}

	return p.failure(start, lastErr)
}

func (p *BridgeProvider) postOnce(ctx context.Context, body []byte) (text, errDetail string, retryable bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return "", err.Error(), false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Sprintf("bridge unreachable: %s", err), IsRetryableError(err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusOK:
		var decoded invokeResponse
		if err := json.Unmarshal(data, &decoded); err != nil {
			return "", fmt.Sprintf("malformed bridge response: %s", err), false
		}
		if decoded.Response == "" {
			return "", "bridge returned empty response", true
		}
		return decoded.Response, "", false

	case resp.StatusCode == http.StatusServiceUnavailable:
		var decoded invokeResponse
		_ = json.Unmarshal(data, &decoded)
		msg := decoded.Message
		if msg == "" {
			msg = "backend unavailable"
		}
		return "", fmt.Sprintf("%s: %s", p.config.DisplayName, msg), false

	case IsRetryableStatusCode(resp.StatusCode):
		return "", fmt.Sprintf("bridge HTTP %d: %s", resp.StatusCode, truncate(string(data), 500)), true

	default:
		return "", fmt.Sprintf("bridge HTTP %d: %s", resp.StatusCode, truncate(string(data), 500)), false
	}
}

func (p *BridgeProvider) failure(start time.Time, detail string) *Response {
	return &Response{
		Success: false,
		Model:   p.config.Model,
		Vendor:  p.config.Vendor,
		Err:     detail,
		Elapsed: time.Since(start),
	}
}

// IsAvailable probes GET /health.
func (p *BridgeProvider) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Name returns the display name.
func (p *BridgeProvider) Name() string { return p.config.DisplayName }

// Vendor returns the vendor identifier.
func (p *BridgeProvider) Vendor() string { return p.config.Vendor }

// GetStatus reports bridge availability.
func (p *BridgeProvider) GetStatus() Status {
	status := Status{
		Model:  p.config.Model,
		Method: "http-bridge",
	}
	if p.IsAvailable() {
		status.Available = true
	} else {
		status.Error = fmt.Sprintf("%s bridge not reachable at %s", p.config.DisplayName, p.config.BaseURL)
	}
	return status
}

var _ Provider = (*BridgeProvider)(nil)
