// Package models holds the domain types shared across the debate pipeline:
// issues, debate results, session lifecycle states and outcome labels.
package models

import "fmt"

// Session lifecycle states. Rounds use RoundState(k).
const (
	StateIdle       = "IDLE"
	StateConsensus  = "CONSENSUS"
	StateEscalation = "ESCALATION"
)

// RoundState returns the lifecycle state label for round k.
func RoundState(k int) string {
	return fmt.Sprintf("ROUND_%d", k)
}

// Debate outcome labels recorded by the history store.
const (
	OutcomePending      = "pending"
	OutcomeSucceeded    = "succeeded"
	OutcomeFailed       = "failed"
	OutcomeAbandoned    = "abandoned"
	OutcomeUserOverride = "user_override"
)

// Recommendation severity ladder, ordered from least to most severe. The
// moderator emits one of these prefixes and the learner may step a result
// up the ladder.
var RecommendationLadder = []string{
	"[PROCEED CONFIDENTLY]",
	"[PROCEED]",
	"[CAUTION]",
	"[DISCUSS FIRST]",
	"[RECONSIDER]",
	"[STOP-SHIP]",
}

// Issue is one reviewer finding. Severity, Impact and Effort use the closed
// vocabularies validated by the priority scorer. PriorityScore and
// PriorityLabel are attached by scoring.
type Issue struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	Fix         string `json:"fix,omitempty"`

	Severity string `json:"severity"`
	Impact   string `json:"impact"`
	Effort   string `json:"effort"`

	PriorityScore int    `json:"priority_score,omitempty"`
	PriorityLabel string `json:"priority_label,omitempty"`
}

// Statement is a sentence attributed to one participant, used for the
// moderator's disagreement extraction.
type Statement struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// ParticipantResult is one side's contribution to a debate round.
type ParticipantResult struct {
	Score   int    `json:"score"`
	Summary string `json:"summary"`
}

// Stats records per-phase wall times (seconds) and cache hits for one
// debate. The key names are part of the on-disk record contract.
type Stats struct {
	ContextExtractionTime float64 `json:"context_extraction_time"`
	ClaudeTime            float64 `json:"claude_time"`
	CodexTime             float64 `json:"codex_time"`
	ModerationTime        float64 `json:"moderation_time"`
	IntelligenceTime      float64 `json:"intelligence_time"`
	CacheHitClaude        bool    `json:"cache_hit_claude"`
	CacheHitCodex         bool    `json:"cache_hit_codex"`
	TotalTime             float64 `json:"total_time"`
}

// LearningAdjustment is the decision learner's post-debate annotation.
type LearningAdjustment struct {
	SeverityChange int      `json:"severity_change"`
	Adjustment     string   `json:"adjustment"`
	Confidence     float64  `json:"confidence"`
	AppliedRules   []string `json:"applied_rules"`
}

// DebateResult is the structured outcome of one debate round.
type DebateResult struct {
	Request        string `json:"request"`
	ConsensusScore int    `json:"consensus_score"`
	Interpretation string `json:"interpretation"`
	Recommendation string `json:"recommendation"`

	Participants    map[string]ParticipantResult `json:"participants"`
	Disagreements   []Statement                  `json:"disagreements"`
	Agreements      []string                     `json:"agreements"`
	ScoreDifference int                          `json:"score_difference"`

	Issues []Issue `json:"issues,omitempty"`

	Stats            Stats    `json:"stats"`
	PatternsDetected []string `json:"patterns_detected,omitempty"`

	LearningAdjustments    *LearningAdjustment `json:"learning_adjustments,omitempty"`
	OriginalRecommendation string              `json:"original_recommendation,omitempty"`
	AdjustmentReason       string              `json:"adjustment_reason,omitempty"`
}

// Score returns the recorded score for the given participant label, with a
// default of 70 when the participant is absent.
func (r *DebateResult) Score(participant string) int {
	if p, ok := r.Participants[participant]; ok {
		return p.Score
	}
	return 70
}
