package contextopt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferFocusAreas(t *testing.T) {
	tests := []struct {
		request string
		want    []string
	}{
		{"Debate refactoring plan for the payment service", []string{"refactoring"}},
		{"Add payment tracking to database schema", []string{"database"}},
		{"Fix race condition in order processing", []string{"bug"}},
		{"Harden authentication and csrf protection", []string{"security"}},
		{"Rework slow query with cache layer", []string{"performance"}},
		{"Update the README wording", []string{"refactoring"}},
	}

	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			got := InferFocusAreas(tt.request)
			for _, area := range tt.want {
				assert.Contains(t, got, area)
			}
		})
	}
}

func TestInferFocusAreasDefault(t *testing.T) {
	assert.Equal(t, []string{"refactoring"}, InferFocusAreas("hello world"))
}

func TestSmallFileReturnedVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.md")
	content := "# Plan\n\nDo the thing.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got := ExtractRelevantContext(path, []string{"refactoring"}, 200)
	assert.Equal(t, content, got)
}

func TestUnreadableFileProducesMarker(t *testing.T) {
	got := ExtractRelevantContext(filepath.Join(t.TempDir(), "missing.md"), nil, 200)
	assert.Contains(t, got, "[ERROR: Could not read file")
}

func TestLargeFileExcerptWithinBudget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.py")

	var b strings.Builder
	b.WriteString("def transaction_service():\n    \"\"\"Handles service transactions.\"\"\"\n    pass\n\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "def filler_%d():\n    x = %d\n    return x\n\n", i, i)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	got := ExtractRelevantContext(path, []string{"refactoring"}, 40)

	assert.Contains(t, got, "[Excerpt from code.py")
	assert.Contains(t, got, "transaction_service")
	assert.LessOrEqual(t, strings.Count(got, "\n"), 60)
}

func TestExtractSections(t *testing.T) {
	content := strings.Join([]string{
		"# Heading One",
		"intro text",
		"## Sub",
		"more",
		"# Heading Two",
		"def foo():",
		"    return 1",
		"",
		"class Bar:",
		"    def method(self):",
		"        pass",
	}, "\n")

	sections := ExtractSections(content)
	require.NotEmpty(t, sections)

	var names []string
	for _, s := range sections {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Heading One")
	assert.Contains(t, names, "Heading Two")
}

func TestScoreSections(t *testing.T) {
	sections := []*Section{
		{Name: "payment_service", Content: "def payment_service():\n    # transaction here\n    pass", Docstring: ""},
		{Name: "helper", Content: "def helper():\n    pass"},
	}

	ScoreSections(sections, []string{"refactoring"})

	// "service" keyword in the name (+10) plus body hits keep it first.
	assert.Equal(t, "payment_service", sections[0].Name)
	assert.Greater(t, sections[0].Score, sections[1].Score)
}

func TestCreateFocusedPrompt(t *testing.T) {
	prompt := CreateFocusedPrompt("Refactor payments", "excerpt body", []string{"refactoring", "database"})

	assert.Contains(t, prompt, "FOCUS ON:")
	assert.Contains(t, prompt, "- Refactoring")
	assert.Contains(t, prompt, "- Database")
	assert.Contains(t, prompt, "SKIP (mention only if critical issues found):")
	assert.Contains(t, prompt, "Security enhancements")
	assert.Contains(t, prompt, "USER REQUEST:\nRefactor payments")
	assert.Contains(t, prompt, "excerpt body")
	assert.NotContains(t, prompt, "Database schema changes")
}
