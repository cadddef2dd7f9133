package priority

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"dev.helix.debate/internal/models"
)

func samplePack() PackInput {
	return PackInput{
		Topic:             "Payment Refactoring Plan",
		ConsensusScore:    78,
		ClaudeScore:       80,
		CodexScore:        76,
		DebateTimeSeconds: 42,
		ScoredIssues: []models.Issue{
			{Title: "Race condition in payment", Severity: "critical", Impact: "high",
				Effort: "low", Fix: "Add row locking", PriorityScore: 80, PriorityLabel: LabelHigh},
			{Title: "Missing index on orders", Severity: "medium", Impact: "medium",
				Effort: "low", PriorityScore: 45, PriorityLabel: LabelLow},
		},
	}
}

func TestFormatDecisionPackHeader(t *testing.T) {
	pack := FormatDecisionPack(samplePack())

	assert.Contains(t, pack, "# AI DEBATE DECISION PACK: Payment Refactoring Plan")
	assert.Contains(t, pack, "**Consensus:** 78/100 (Moderate Agreement)")
	assert.Contains(t, pack, "⚠️ PROCEED WITH CAUTION - Address key concerns")
	assert.Contains(t, pack, "**Debate Time:** 42 seconds")
	assert.Contains(t, pack, "Claude (80/100) + Codex (76/100)")
}

func TestExecutionRecommendation(t *testing.T) {
	assert.Equal(t, "⚠️ CONDITIONAL GO - Fix 2 stop-ship issues first", executionRecommendation(90, 2))
	assert.Equal(t, "✅ GO - Proceed with confidence", executionRecommendation(90, 0))
	assert.Equal(t, "⚠️ PROCEED WITH CAUTION - Address key concerns", executionRecommendation(75, 0))
	assert.Equal(t, "🔶 REVIEW NEEDED - Significant issues to resolve", executionRecommendation(55, 0))
	assert.Equal(t, "🔴 NO-GO - Fundamental disagreements, reconsider approach", executionRecommendation(30, 0))
}

func TestQuickActionSummary(t *testing.T) {
	pack := FormatDecisionPack(samplePack())

	assert.Contains(t, pack, "## ⚡ QUICK ACTION SUMMARY (Top 5 Must-Fix)")
	assert.Contains(t, pack, "1. "+LabelHigh+": Race condition in payment (High impact)")
	assert.Contains(t, pack, "**Risk Reduction:** MEDIUM")
}

func TestQuickActionSummaryEmpty(t *testing.T) {
	in := samplePack()
	in.ScoredIssues = nil
	pack := FormatDecisionPack(in)

	assert.Contains(t, pack, "✅ **No critical issues found** - Plan approved as-is")
}

func TestSeverityTables(t *testing.T) {
	in := samplePack()
	in.ScoredIssues = append(in.ScoredIssues, models.Issue{
		Title: "Auth bypass", Impact: "high", Effort: "low", Fix: "Check token scope",
		PriorityScore: 90, PriorityLabel: LabelStopShip,
	})

	pack := FormatDecisionPack(in)
	assert.Contains(t, pack, "### 🔴 STOP-SHIP ISSUES (Must Fix Before Release)")
	assert.Contains(t, pack, "| # | Issue | Impact | Effort | Fix |")
	assert.Contains(t, pack, "| 1 | Auth bypass | High | <30 min | Check token scope |")
	assert.Contains(t, pack, "**Decision:** ⚠️ **CONDITIONAL GO**")
}

func TestLongTitleTruncation(t *testing.T) {
	in := samplePack()
	longTitle := strings.Repeat("a", 80)
	in.ScoredIssues = []models.Issue{{Title: longTitle, Impact: "high", Effort: "low",
		PriorityScore: 70, PriorityLabel: LabelHigh}}

	pack := FormatDecisionPack(in)
	assert.Contains(t, pack, strings.Repeat("a", 57)+"...")
	assert.NotContains(t, pack, longTitle)
}

func TestOptionalSections(t *testing.T) {
	in := samplePack()
	in.Disagreements = []Disagreement{{Topic: "Queue choice", ClaudeView: "Use Redis", CodexView: "Use NATS"}}
	in.ApprovedAspects = []string{"Service boundaries"}
	in.Alternatives = []Alternative{{Title: "Big-bang rewrite", Pros: "clean slate", Cons: "risky"}}

	pack := FormatDecisionPack(in)
	assert.Contains(t, pack, "### Disagreement #1: Queue choice")
	assert.Contains(t, pack, "- **Claude:** Use Redis")
	assert.Contains(t, pack, "## ✅ APPROVED ASPECTS (Proceed As-Is)")
	assert.Contains(t, pack, "- Service boundaries")
	assert.Contains(t, pack, "### Alternative 1: Big-bang rewrite")
}

func TestFinalRecommendationBands(t *testing.T) {
	in := samplePack()
	in.ConsensusScore = 90
	in.ScoredIssues = nil
	assert.Contains(t, FormatDecisionPack(in), "**Decision:** ✅ **GO - Proceed with Confidence**")

	in.ConsensusScore = 75
	assert.Contains(t, FormatDecisionPack(in), "**Decision:** ⚠️ **PROCEED WITH CAUTION**")

	in.ConsensusScore = 40
	assert.Contains(t, FormatDecisionPack(in), "**Decision:** 🔴 **REVIEW NEEDED**")
}

func TestPackFromResult(t *testing.T) {
	result := &models.DebateResult{
		Request:        "Refactor the billing service",
		ConsensusScore: 72,
		Participants: map[string]models.ParticipantResult{
			"claude": {Score: 78},
			"codex":  {Score: 66},
		},
		Disagreements: []models.Statement{
			{Source: "Codex", Text: "The schema migration is not reversible"},
			{Source: "Codex"},
		},
		Agreements: []string{"Service boundaries are sound"},
		Issues: []models.Issue{
			{Title: "No rollback", Severity: "critical", Impact: "high", Effort: "low"},
		},
	}

	in := PackFromResult(result, models.Stats{TotalTime: 33.7})

	assert.Equal(t, "Refactor the billing service", in.Topic)
	assert.Equal(t, 72, in.ConsensusScore)
	assert.Equal(t, 78, in.ClaudeScore)
	assert.Equal(t, 66, in.CodexScore)
	assert.Equal(t, 33, in.DebateTimeSeconds)
	assert.Equal(t, []string{"Service boundaries are sound"}, in.ApprovedAspects)

	// Empty statements are dropped, attributed text lands on the right side.
	assert.Len(t, in.Disagreements, 1)
	assert.Equal(t, "The schema migration is not reversible", in.Disagreements[0].CodexView)

	// The full vocabulary issue gets re-scored.
	assert.Equal(t, 80, in.ScoredIssues[0].PriorityScore)
	assert.Equal(t, LabelHigh, in.ScoredIssues[0].PriorityLabel)
}

func TestPackFromResultKeepsUnscorableIssues(t *testing.T) {
	result := &models.DebateResult{
		Issues: []models.Issue{{Title: "Vague concern", Severity: "high", PriorityScore: 75}},
	}

	in := PackFromResult(result, models.Stats{})
	assert.Equal(t, 75, in.ScoredIssues[0].PriorityScore)
	// Absent participants fall back to the neutral default.
	assert.Equal(t, 70, in.ClaudeScore)
}
