// Package moderator joins two scored reviewer responses into a consensus
// verdict. The fast moderator is deterministic: the same two inputs always
// produce the same consensus, interpretation, recommendation and extracted
// statements.
package moderator

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"dev.helix.debate/internal/models"
)

// Score-difference thresholds for the interpretation bands.
const (
	StrongAgreementThreshold   = 10
	ModerateAgreementThreshold = 20
)

// Consensus thresholds for the recommendation ladder.
const (
	ProceedConfidently = 85
	ProceedWithCaution = 70
	DiscussFirst       = 50
)

// maxStatements caps extracted disagreements and agreements.
const maxStatements = 5

var disagreementKeywords = []string{
	"disagree", "disagrees", "disagreement",
	"concern", "concerns", "concerned",
	"risk", "risks", "risky",
	"issue", "issues", "problem", "problems",
	"wrong", "incorrect", "mistake",
	"missing", "lacks", "incomplete",
	"alternative", "instead", "better approach",
}

var agreementKeywords = []string{
	"agree", "agrees", "correct", "good", "excellent",
	"well-designed", "appropriate", "smart", "effective",
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

// Input is one participant's scored response.
type Input struct {
	Label    string
	Score    int
	Response string
}

// Analysis is the moderator verdict.
type Analysis struct {
	ConsensusScore  int                `json:"consensus_score"`
	Interpretation  string             `json:"interpretation"`
	Recommendation  string             `json:"recommendation"`
	ScoreDifference int                `json:"score_difference"`
	Disagreements   []models.Statement `json:"disagreements"`
	Agreements      []string           `json:"agreements"`
	AnalysisTime    float64            `json:"analysis_time"`
}

// Analyze joins two scored results. patternIssues, when supplied, force a
// stop-ship recommendation if any carries a priority score of 85 or more.
func Analyze(first, second Input, patternIssues []models.Issue) *Analysis {
	start := time.Now()

	consensus := (first.Score + second.Score) / 2
	diff := first.Score - second.Score
	if diff < 0 {
		diff = -diff
	}

	analysis := &Analysis{
		ConsensusScore:  consensus,
		Interpretation:  interpret(diff),
		Recommendation:  recommend(consensus, diff, patternIssues),
		ScoreDifference: diff,
		Disagreements:   extractDisagreements(first, second),
		Agreements:      extractAgreements(first.Response, second.Response),
	}
	analysis.AnalysisTime = time.Since(start).Seconds()
	return analysis
}

// interpret maps a score difference to an agreement band.
func interpret(scoreDifference int) string {
	switch {
	case scoreDifference <= StrongAgreementThreshold:
		return "Strong Agreement"
	case scoreDifference <= ModerateAgreementThreshold:
		return "Moderate Agreement"
	default:
		return "Significant Disagreements"
	}
}

// recommend picks the action message. Known stop-ship pattern issues win
// over any consensus level.
func recommend(consensus, scoreDifference int, patternIssues []models.Issue) string {
	for _, issue := range patternIssues {
		if issue.PriorityScore >= 85 {
			return "[STOP-SHIP] Critical issues found"
		}
	}

	switch {
	case consensus >= ProceedConfidently:
		if scoreDifference <= StrongAgreementThreshold {
			return "[PROCEED CONFIDENTLY] Strong consensus"
		}
		return "[PROCEED] Good consensus with minor concerns"
	case consensus >= ProceedWithCaution:
		return "[CAUTION] Address key concerns first"
	case consensus >= DiscussFirst:
		return "[DISCUSS FIRST] Resolve disagreements before proceeding"
	default:
		return "[RECONSIDER] Fundamental disagreements require rethinking"
	}
}

// extractDisagreements pulls sentences containing disagreement keywords,
// tagged with their source label, capped at five total.
func extractDisagreements(first, second Input) []models.Statement {
	var out []models.Statement
	for _, input := range []Input{first, second} {
		for _, sentence := range splitSentences(input.Response) {
			if containsAny(sentence, disagreementKeywords) {
				out = append(out, models.Statement{Source: input.Label, Text: sentence})
			}
		}
	}
	if len(out) > maxStatements {
		out = out[:maxStatements]
	}
	return out
}

// extractAgreements pulls sentences containing agreement keywords from both
// responses, de-duplicated, capped at five.
func extractAgreements(firstText, secondText string) []string {
	var out []string
	seen := make(map[string]bool)

	for _, text := range []string{firstText, secondText} {
		for _, sentence := range splitSentences(text) {
			if !containsAny(sentence, agreementKeywords) {
				continue
			}
			if seen[sentence] {
				continue
			}
			seen[sentence] = true
			out = append(out, sentence)
		}
	}
	if len(out) > maxStatements {
		out = out[:maxStatements]
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplitRe.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(sentence string, keywords []string) bool {
	lower := strings.ToLower(sentence)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Summary renders a human-readable report of one analysis.
func Summary(a *Analysis) string {
	divider := strings.Repeat("=", 60)
	var lines []string

	lines = append(lines, divider, "FAST MODERATOR CONSENSUS ANALYSIS", divider, "")
	lines = append(lines,
		fmt.Sprintf("Consensus Score: %d/100", a.ConsensusScore),
		fmt.Sprintf("Agreement Level: %s", a.Interpretation),
		fmt.Sprintf("Score Difference: %d points", a.ScoreDifference),
		"",
		fmt.Sprintf("Recommendation: %s", a.Recommendation),
		"",
	)

	if len(a.Disagreements) > 0 {
		lines = append(lines, "Key Disagreements:")
		for i, d := range a.Disagreements {
			lines = append(lines, fmt.Sprintf("  %d. [%s] %s...", i+1, d.Source, clip(d.Text, 80)))
		}
		lines = append(lines, "")
	}
	if len(a.Agreements) > 0 {
		lines = append(lines, "Points of Agreement:")
		for i, s := range a.Agreements {
			lines = append(lines, fmt.Sprintf("  %d. %s...", i+1, clip(s, 80)))
		}
		lines = append(lines, "")
	}

	lines = append(lines, fmt.Sprintf("Analysis Time: %.2f seconds", a.AnalysisTime), "", divider)
	return strings.Join(lines, "\n")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
