package revision

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.debate/internal/models"
)

func newTestTracker(t *testing.T) *DeltaTracker {
	t.Helper()
	tracker, err := NewDeltaTracker(filepath.Join(t.TempDir(), "delta"), nil)
	require.NoError(t, err)
	return tracker
}

func TestDetectChangedSections(t *testing.T) {
	previous := "line one\nline two\nline three\nline four"
	current := "line one\nline two CHANGED\nline three\nline four\nline five"

	sections := detectChangedSections(previous, current)
	require.Len(t, sections, 2)

	assert.Equal(t, 2, sections[0].StartLine)
	assert.Equal(t, 2, sections[0].EndLine)
	assert.Equal(t, "line two CHANGED", sections[0].Content)

	assert.Equal(t, 5, sections[1].StartLine)
	assert.Equal(t, 5, sections[1].EndLine)
	assert.Equal(t, "line five", sections[1].Content)
}

func TestDetectChangedSectionsIdentical(t *testing.T) {
	content := "a\nb\nc"
	assert.Empty(t, detectChangedSections(content, content))
}

func TestSummarizeChanges(t *testing.T) {
	assert.Equal(t, "No changes detected", summarizeChanges(nil))

	sections := []Section{
		{StartLine: 2, EndLine: 4},
		{StartLine: 10, EndLine: 10},
	}
	assert.Equal(t, "2 section(s) changed (4 lines total)", summarizeChanges(sections))
}

func TestDetectChangesNoPreviousDebate(t *testing.T) {
	tracker := newTestTracker(t)
	path := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(path, []byte("the plan\n"), 0o644))

	info, err := tracker.DetectChanges(path, "")
	require.NoError(t, err)

	assert.True(t, info.HasChanges)
	assert.Equal(t, "No previous debate found - treat as initial debate", info.ChangeSummary)
	assert.Nil(t, info.PreviousDebate)
	assert.NotEmpty(t, info.CurrentContentHash)
}

func TestDetectChangesUnmodifiedFile(t *testing.T) {
	tracker := newTestTracker(t)
	path := filepath.Join(t.TempDir(), "plan.md")
	content := "step one\nstep two\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := tracker.SaveDebateResult(path, &models.DebateResult{ConsensusScore: 80}, content, false)
	require.NoError(t, err)

	info, err := tracker.DetectChanges(path, "")
	require.NoError(t, err)

	assert.False(t, info.HasChanges)
	assert.Equal(t, "No changes since last debate", info.ChangeSummary)
	require.NotNil(t, info.PreviousDebate)
	assert.Equal(t, info.PreviousContentHash, info.CurrentContentHash)
}

func TestDetectChangesModifiedFile(t *testing.T) {
	tracker := newTestTracker(t)
	path := filepath.Join(t.TempDir(), "plan.md")
	original := "step one\nstep two\nstep three"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	id, err := tracker.SaveDebateResult(path, &models.DebateResult{ConsensusScore: 70}, original, false)
	require.NoError(t, err)

	updated := "step one\nstep two with a transaction\nstep three"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	info, err := tracker.DetectChanges(path, id)
	require.NoError(t, err)

	assert.True(t, info.HasChanges)
	assert.Equal(t, "1 section(s) changed (1 lines total)", info.ChangeSummary)
	require.Len(t, info.ChangedSections, 1)
	assert.Equal(t, 2, info.ChangedSections[0].StartLine)
	assert.NotEqual(t, info.PreviousContentHash, info.CurrentContentHash)
}

func TestShouldUseDeltaMode(t *testing.T) {
	previous := &HistoryEntry{Content: strings.Repeat("line\n", 99) + "line"}

	assert.False(t, ShouldUseDeltaMode(&ChangeInfo{HasChanges: false, PreviousDebate: previous}))
	assert.False(t, ShouldUseDeltaMode(&ChangeInfo{HasChanges: true}))

	small := &ChangeInfo{
		HasChanges:      true,
		PreviousDebate:  previous,
		ChangedSections: []Section{{StartLine: 1, EndLine: 10}},
	}
	assert.True(t, ShouldUseDeltaMode(small))

	large := &ChangeInfo{
		HasChanges:      true,
		PreviousDebate:  previous,
		ChangedSections: []Section{{StartLine: 1, EndLine: 40}},
	}
	assert.False(t, ShouldUseDeltaMode(large))

	// A previous debate with no diffable sections still allows delta mode.
	assert.True(t, ShouldUseDeltaMode(&ChangeInfo{HasChanges: true, PreviousDebate: previous}))
}

func TestCreateDeltaPrompt(t *testing.T) {
	tracker := newTestTracker(t)
	info := &ChangeInfo{
		ChangeSummary: "1 section(s) changed (2 lines total)",
		ChangedSections: []Section{
			{StartLine: 3, EndLine: 4, Content: "added transaction wrapper\nadded rollback"},
		},
		PreviousDebate: &HistoryEntry{
			DebateResult: &models.DebateResult{
				Issues: []models.Issue{
					{Title: "Missing transaction boundary"},
					{},
				},
			},
		},
	}

	prompt := tracker.CreateDeltaPrompt(info, "refactor the billing service")

	assert.Contains(t, prompt, "This is a DELTA DEBATE (incremental review of changes only).")
	assert.Contains(t, prompt, "ORIGINAL REQUEST:\nrefactor the billing service")
	assert.Contains(t, prompt, "[Lines 3-4]\nadded transaction wrapper\nadded rollback")
	assert.Contains(t, prompt, "- Missing transaction boundary")
	assert.Contains(t, prompt, "- Unknown issue")
	assert.Contains(t, prompt, "Focus on incremental analysis, not full re-review.")
}

func TestVerifyResolvedIssues(t *testing.T) {
	tracker := newTestTracker(t)
	info := &ChangeInfo{
		ChangedSections: []Section{
			{Content: "wrapped the migration in a transaction block"},
		},
		PreviousDebate: &HistoryEntry{
			DebateResult: &models.DebateResult{
				Issues: []models.Issue{
					{Title: "No transaction", Fix: "Wrap the migration steps in a transaction"},
					{Title: "Missing docs", Fix: "Document the rollback procedure"},
				},
			},
		},
	}

	verification := tracker.VerifyResolvedIssues(info)
	require.Len(t, verification, 2)

	assert.True(t, verification[0].Resolved)
	assert.Contains(t, verification[0].Evidence, "Found fix keywords (")
	assert.Contains(t, verification[0].Evidence, "migration")

	assert.False(t, verification[1].Resolved)
	assert.Equal(t, "Fix keywords not found in changes", verification[1].Evidence)
}

func TestSaveDebateResultRoundTrip(t *testing.T) {
	tracker := newTestTracker(t)
	path := filepath.Join(t.TempDir(), "plan.md")
	content := "the plan content"

	id, err := tracker.SaveDebateResult(path, &models.DebateResult{ConsensusScore: 85}, content, true)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{8}_\d{6}_[0-9a-f]{8}$`), id)

	entry, err := tracker.loadPreviousDebate(path, id)
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, id, entry.DebateID)
	assert.True(t, entry.IsDelta)
	assert.Equal(t, content, entry.Content)
	assert.Equal(t, 85, entry.DebateResult.ConsensusScore)
}

func TestExtractKeywords(t *testing.T) {
	keywords := extractKeywords("should wrap the migration steps in a transaction block, carefully.")
	assert.Equal(t, []string{"migration", "steps", "transaction", "block", "carefully"}, keywords)

	assert.Empty(t, extractKeywords("the with from"))
	assert.Empty(t, extractKeywords(""))
}
