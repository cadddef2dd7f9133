package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.debate/internal/models"
)

func TestScoreIssue(t *testing.T) {
	tests := []struct {
		severity, impact, effort string
		wantScore                int
		wantLabel                string
	}{
		{"critical", "high", "low", 80, LabelHigh},
		{"critical", "high", "medium", 70, LabelHigh},
		{"critical", "high", "high", 60, LabelMedium},
		{"high", "medium", "medium", 45, LabelLow},
		{"low", "low", "high", 0, LabelLow},
		{"medium", "medium", "low", 45, LabelLow},
		{"critical", "medium", "low", 65, LabelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.severity+"_"+tt.impact+"_"+tt.effort, func(t *testing.T) {
			score, label, err := ScoreIssue(tt.severity, tt.impact, tt.effort)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestScoreIssueCaseInsensitive(t *testing.T) {
	score, _, err := ScoreIssue("CRITICAL", "High", "Low")
	require.NoError(t, err)
	assert.Equal(t, 80, score)
}

func TestScoreIssueInvalidVocabulary(t *testing.T) {
	_, _, err := ScoreIssue("urgent", "high", "low")
	assert.ErrorContains(t, err, "invalid severity")

	_, _, err = ScoreIssue("high", "huge", "low")
	assert.ErrorContains(t, err, "invalid impact")

	_, _, err = ScoreIssue("high", "high", "tiny")
	assert.ErrorContains(t, err, "invalid effort")
}

func TestScoreIssuesSortsDescending(t *testing.T) {
	issues := []models.Issue{
		{Title: "Bug A", Severity: "low", Impact: "low", Effort: "high"},
		{Title: "Bug B", Severity: "critical", Impact: "high", Effort: "low"},
	}

	scored, err := ScoreIssues(issues)
	require.NoError(t, err)

	assert.Equal(t, "Bug B", scored[0].Title)
	assert.Equal(t, 80, scored[0].PriorityScore)
	assert.Equal(t, "Bug A", scored[1].Title)
}

func TestScoreIssuesRejectsInvalidBatch(t *testing.T) {
	_, err := ScoreIssues([]models.Issue{
		{Title: "ok", Severity: "high", Impact: "high", Effort: "low"},
		{Title: "bad", Severity: "catastrophic", Impact: "high", Effort: "low"},
	})
	assert.ErrorContains(t, err, `issue "bad"`)
}

func TestGroupBySeverity(t *testing.T) {
	issues := []models.Issue{
		{Title: "ship stopper", PriorityScore: 90},
		{Title: "important", PriorityScore: 70},
		{Title: "nice", PriorityScore: 55},
		{Title: "meh", PriorityScore: 20},
	}

	g := GroupBySeverity(issues)
	assert.Len(t, g.StopShip, 1)
	assert.Len(t, g.High, 1)
	assert.Len(t, g.Medium, 1)
	assert.Len(t, g.Low, 1)
}

func TestCalculateFixTime(t *testing.T) {
	issues := []models.Issue{
		{PriorityScore: 90, Effort: "low"},    // 0.5h stop-ship
		{PriorityScore: 70, Effort: "medium"}, // 2.5h high
		{PriorityScore: 70, Effort: "high"},   // 6h high
	}

	times := CalculateFixTime(issues)
	assert.Equal(t, "30 minutes", times.StopShip)
	assert.Equal(t, "8.5 hours", times.High)
	assert.Equal(t, "0 hours", times.Medium)
	assert.Equal(t, "9.0 hours", times.Total)
}

func TestFormatEffort(t *testing.T) {
	assert.Equal(t, "<30 min", FormatEffort("low"))
	assert.Equal(t, "1-4 hours", FormatEffort("medium"))
	assert.Equal(t, ">4 hours", FormatEffort("high"))
	assert.Equal(t, "unknown", FormatEffort("unknown"))
}
