package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// SubprocessConfig configures one CLI-backed adapter. The prompt is always
// delivered on standard input to avoid command-line length limits.
type SubprocessConfig struct {
	// Command is the executable name.
	Command string
	// Args are the invocation arguments (non-interactive mode flags plus
	// the stdin marker).
	Args []string
	// VersionArgs probe availability (default: --version).
	VersionArgs []string
	// Model is reported in responses; the CLI chooses the actual model.
	Model string
	// Vendor identifier.
	Vendor string
	// DisplayName for status output.
	DisplayName string
	// Timeout per invocation attempt (default 120s).
	Timeout time.Duration
	// Retry bounds re-invocation on non-zero exit or empty output.
	Retry RetryConfig
}

// SubprocessProvider invokes an external CLI tool over stdin/stdout.
type SubprocessProvider struct {
	config SubprocessConfig
	log    *logrus.Logger
}

// NewSubprocessProvider builds a provider from config, filling defaults.
func NewSubprocessProvider(config SubprocessConfig, log *logrus.Logger) *SubprocessProvider {
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if len(config.VersionArgs) == 0 {
		config.VersionArgs = []string{"--version"}
	}
	if config.Retry == (RetryConfig{}) {
		config.Retry = DefaultRetryConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SubprocessProvider{config: config, log: log}
}

// NewCodexProvider returns the Codex CLI adapter: `codex exec` in full-auto
// mode reading the prompt from stdin.
func NewCodexProvider(log *logrus.Logger) *SubprocessProvider {
	return NewSubprocessProvider(SubprocessConfig{
		Command:     "codex",
		Args:        []string{"exec", "--full-auto", "--skip-git-repo-check", "-"},
		Model:       "codex",
		Vendor:      "openai",
		DisplayName: "Codex CLI",
	}, log)
}

// NewGeminiProvider returns the Gemini CLI adapter.
func NewGeminiProvider(log *logrus.Logger) *SubprocessProvider {
	return NewSubprocessProvider(SubprocessConfig{
		Command:     "gemini",
		Args:        []string{"--yolo"},
		Model:       "gemini",
		Vendor:      "google",
		DisplayName: "Gemini CLI",
	}, log)
}

// Invoke runs the CLI with the prompt on stdin. Non-zero exit codes and
// empty output are retried up to the configured budget.
func (p *SubprocessProvider) Invoke(ctx context.Context, prompt string) *Response {
	start := time.Now()

	if !p.IsAvailable() {
		return &Response{
			Success: false,
			Model:   p.config.Model,
			Vendor:  p.config.Vendor,
			Err:     fmt.Sprintf("%s not available", p.config.DisplayName),
			Elapsed: time.Since(start),
		}
	}

	var lastErr string
	for attempt := 0; attempt <= p.config.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if !sleepCtx(ctx, p.config.Retry.backoffDelay(attempt-1)) {
				lastErr = "invocation cancelled"
				break
			}
		}

		text, errDetail, retryable := p.runOnce(ctx, prompt)
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
		}).Debug("subprocess invocation failed, retrying")
	}

	return &Response{
		Success: false,
		Model:   p.config.Model,
		Vendor:  p.config.Vendor,
		Err:     lastErr,
		Elapsed: time.Since(start),
	}
}

// runOnce executes a single attempt and classifies the failure.
func (p *SubprocessProvider) runOnce(ctx context.Context, prompt string) (text, errDetail string, retryable bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(attemptCtx, p.config.Command, p.config.Args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Sprintf("%s timed out after %s", p.config.DisplayName, p.config.Timeout), true
	}
	if ctx.Err() != nil {
		return "", "invocation cancelled", false
	}
	if err != nil {
		return "", fmt.Sprintf("%s failed: %s. stderr: %s",
			p.config.DisplayName, err, truncate(stderr.String(), 500)), true
	}

	response := strings.TrimSpace(stdout.String())
	if response == "" {
		return "", fmt.Sprintf("%s returned empty response. stderr: %s",
			p.config.DisplayName, truncate(stderr.String(), 500)), true
	}
	return response, "", false
}

// IsAvailable probes the CLI with its version flag under a short timeout.
func (p *SubprocessProvider) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.config.Command, p.config.VersionArgs...)
	return cmd.Run() == nil
}

// Name returns the display name.
func (p *SubprocessProvider) Name() string { return p.config.DisplayName }

// Vendor returns the vendor identifier.
func (p *SubprocessProvider) Vendor() string { return p.config.Vendor }

// GetStatus reports availability and the CLI version.
func (p *SubprocessProvider) GetStatus() Status {
	status := Status{
		Model:  p.config.Model,
		Method: "subprocess",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.config.Command, p.config.VersionArgs...).Output()
	if err != nil {
		status.Error = fmt.Sprintf("%s not found", p.config.Command)
		return status
	}
	status.Available = true
	status.Version = strings.TrimSpace(string(out))
	return status
}

var _ Provider = (*SubprocessProvider)(nil)
