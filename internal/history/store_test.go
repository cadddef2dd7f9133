package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.debate/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sampleResult(consensus int) *models.DebateResult {
	return &models.DebateResult{
		Request:        "refactor payments",
		ConsensusScore: consensus,
		Interpretation: "Strong Agreement",
		Recommendation: "[PROCEED CONFIDENTLY] Strong consensus",
		Participants: map[string]models.ParticipantResult{
			"claude": {Score: consensus + 2},
			"codex":  {Score: consensus - 2},
		},
		Agreements: []string{"use the repository pattern"},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	plan := writePlan(t, "# Plan\nsplit the service\n")

	id, err := s.Save("refactor payments", plan, sampleResult(85),
		models.Stats{TotalTime: 12.5}, []string{"refactoring"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := s.Get(id)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, 85, record.ConsensusScore)
	assert.Equal(t, 87, record.ClaudeScore)
	assert.Equal(t, 83, record.CodexScore)
	assert.Equal(t, models.OutcomePending, record.Outcome)
	assert.Len(t, record.FileHash, 16)
	assert.Equal(t, []string{"refactoring"}, record.FocusAreas)
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore(t)
	record, err := s.Get("20260101_000000_deadbeef")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore(t)
	planA := writePlan(t, "a")
	planB := writePlan(t, "b")

	idA, err := s.Save("req a", planA, sampleResult(90), models.Stats{}, nil)
	require.NoError(t, err)
	_, err = s.Save("req b", planB, sampleResult(40), models.Stats{}, nil)
	require.NoError(t, err)

	byFile, err := s.DebatesByFile(planA, 10)
	require.NoError(t, err)
	require.Len(t, byFile, 1)
	assert.Equal(t, idA, byFile[0].DebateID)

	high, err := s.QueryDebates(Query{MinConsensus: 80})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, 90, high[0].ConsensusScore)

	low, err := s.QueryDebates(Query{MaxConsensus: 50})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, 40, low[0].ConsensusScore)

	old, err := s.QueryDebates(Query{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestQueryByPattern(t *testing.T) {
	s := newTestStore(t)
	plan := writePlan(t, "x")

	id, err := s.Save("req", plan, sampleResult(70), models.Stats{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetPatterns(id, []string{"circular_imports"}))

	matched, err := s.QueryDebates(Query{Pattern: "circular_imports"})
	require.NoError(t, err)
	require.Len(t, matched, 1)

	none, err := s.QueryDebates(Query{Pattern: "tight_coupling"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateOutcome(t *testing.T) {
	s := newTestStore(t)
	plan := writePlan(t, "x")

	id, err := s.Save("req", plan, sampleResult(75), models.Stats{}, nil)
	require.NoError(t, err)

	ok, err := s.UpdateOutcome(id, models.OutcomeSucceeded, "shipped cleanly")
	require.NoError(t, err)
	assert.True(t, ok)

	record, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSucceeded, record.Outcome)
	assert.Equal(t, "shipped cleanly", record.OutcomeNotes)
	assert.NotEmpty(t, record.OutcomeTimestamp)

	ok, err = s.UpdateOutcome("missing_id", models.OutcomeFailed, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)

	empty, err := s.GetStatistics()
	require.NoError(t, err)
	assert.Zero(t, empty.TotalDebates)

	plan := writePlan(t, "x")
	id1, err := s.Save("r1", plan, sampleResult(80), models.Stats{TotalTime: 10}, nil)
	require.NoError(t, err)
	_, err = s.Save("r2", plan, sampleResult(60), models.Stats{TotalTime: 20}, nil)
	require.NoError(t, err)

	_, err = s.UpdateOutcome(id1, models.OutcomeSucceeded, "")
	require.NoError(t, err)
	require.NoError(t, s.SetPatterns(id1, []string{"tight_coupling"}))

	stats, err := s.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDebates)
	assert.Equal(t, 70.0, stats.AvgConsensus)
	assert.Equal(t, 15.0, stats.AvgTime)
	assert.Equal(t, 1, stats.OutcomeBreakdown[models.OutcomeSucceeded])
	assert.Equal(t, 1, stats.OutcomeBreakdown[models.OutcomePending])
	assert.Equal(t, 1, stats.PatternFrequency["tight_coupling"])
}

func TestDebateIDShape(t *testing.T) {
	id := NewDebateID(time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC))
	assert.Regexp(t, `^20260824_103000_[0-9a-f]{8}$`, id)
}

func TestSaveUnreadableFile(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Save("req", filepath.Join(t.TempDir(), "missing.md"),
		sampleResult(70), models.Stats{}, nil)
	require.NoError(t, err)

	record, err := s.Get(id)
	require.NoError(t, err)
	assert.Empty(t, record.FileHash)
	assert.Zero(t, record.FileSize)
}
