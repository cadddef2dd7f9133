package llm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script acting as a fake CLI.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakecli")
	script := "#!/bin/sh\nif [ \"$1\" = \"--version\" ]; then echo fake 1.0; exit 0; fi\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newScriptProvider(t *testing.T, body string) *SubprocessProvider {
	t.Helper()
	return NewSubprocessProvider(SubprocessConfig{
		Command:     writeScript(t, body),
		Model:       "fake",
		Vendor:      "test",
		DisplayName: "Fake CLI",
		Timeout:     5 * time.Second,
		Retry:       RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, Multiplier: 2},
	}, nil)
}

func TestSubprocessEchoesStdin(t *testing.T) {
	p := newScriptProvider(t, "cat\n")

	resp := p.Invoke(context.Background(), "analyze: Score: 81/100")
	require.True(t, resp.Success)
	assert.Equal(t, "analyze: Score: 81/100", resp.Text)
	assert.Equal(t, "test", resp.Vendor)
}

func TestSubprocessNonZeroExitFails(t *testing.T) {
	p := newScriptProvider(t, "echo boom >&2\nexit 3\n")

	resp := p.Invoke(context.Background(), "x")
	require.False(t, resp.Success)
	assert.Contains(t, resp.Err, "boom")
}

func TestSubprocessEmptyOutputFails(t *testing.T) {
	p := newScriptProvider(t, "exit 0\n")

	resp := p.Invoke(context.Background(), "x")
	require.False(t, resp.Success)
	assert.Contains(t, resp.Err, "empty response")
}

func TestSubprocessTimeout(t *testing.T) {
	p := NewSubprocessProvider(SubprocessConfig{
		Command:     writeScript(t, "sleep 5\necho late\n"),
		Model:       "fake",
		Vendor:      "test",
		DisplayName: "Fake CLI",
		Timeout:     100 * time.Millisecond,
		Retry:       RetryConfig{MaxRetries: 0, InitialDelay: time.Millisecond, Multiplier: 2},
	}, nil)

	resp := p.Invoke(context.Background(), "x")
	require.False(t, resp.Success)
	assert.Contains(t, resp.Err, "timed out")
}

func TestSubprocessAvailability(t *testing.T) {
	p := newScriptProvider(t, "cat\n")
	assert.True(t, p.IsAvailable())

	status := p.GetStatus()
	assert.True(t, status.Available)
	assert.Equal(t, "fake 1.0", status.Version)
	assert.Equal(t, "subprocess", status.Method)

	missing := NewSubprocessProvider(SubprocessConfig{
		Command:     filepath.Join(t.TempDir(), "does-not-exist"),
		Model:       "fake",
		Vendor:      "test",
		DisplayName: "Missing CLI",
	}, nil)
	assert.False(t, missing.IsAvailable())
	assert.False(t, missing.GetStatus().Available)
}
