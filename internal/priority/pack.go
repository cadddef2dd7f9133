package priority

import (
	"fmt"
	"strings"

	"dev.helix.debate/internal/models"
)

// QuickActionCount is how many top issues the summary section lists.
const QuickActionCount = 5

// Disagreement is a point needing a user decision, with both views.
type Disagreement struct {
	Topic          string `json:"topic"`
	ClaudeView     string `json:"claude_view"`
	CodexView      string `json:"codex_view"`
	Impact         string `json:"impact"`
	Recommendation string `json:"recommendation"`
}

// Alternative is a considered-but-not-chosen approach.
type Alternative struct {
	Title     string `json:"title"`
	Pros      string `json:"pros"`
	Cons      string `json:"cons"`
	Consensus string `json:"consensus"`
}

// PackInput collects everything the decision pack renders.
type PackInput struct {
	Topic             string
	ConsensusScore    int
	ClaudeScore       int
	CodexScore        int
	DebateTimeSeconds int
	ScoredIssues      []models.Issue
	Disagreements     []Disagreement
	ApprovedAspects   []string
	Alternatives      []Alternative
}

// FormatDecisionPack renders the structured markdown decision pack: header,
// quick actions, severity tables, disagreements, approved aspects,
// alternatives and the final recommendation.
func FormatDecisionPack(in PackInput) string {
	grouped := GroupBySeverity(in.ScoredIssues)
	fixTimes := CalculateFixTime(in.ScoredIssues)
	execRec := executionRecommendation(in.ConsensusScore, len(grouped.StopShip))

	sections := []string{
		formatHeader(in, execRec),
		formatQuickActions(in.ScoredIssues, fixTimes),
		formatIssuesBySeverity(grouped),
	}
	if len(in.Disagreements) > 0 {
		sections = append(sections, formatDisagreements(in.Disagreements))
	}
	if len(in.ApprovedAspects) > 0 {
		sections = append(sections, formatApprovedAspects(in.ApprovedAspects))
	}
	if len(in.Alternatives) > 0 {
		sections = append(sections, formatAlternatives(in.Alternatives))
	}
	sections = append(sections, formatFinalRecommendation(
		in.ConsensusScore, len(grouped.StopShip), len(grouped.High), fixTimes))

	return strings.Join(sections, "\n\n")
}

func executionRecommendation(consensus, stopShipCount int) string {
	switch {
	case stopShipCount > 0:
		return fmt.Sprintf("⚠️ CONDITIONAL GO - Fix %d stop-ship issues first", stopShipCount)
	case consensus >= 85:
		return "✅ GO - Proceed with confidence"
	case consensus >= 70:
		return "⚠️ PROCEED WITH CAUTION - Address key concerns"
	case consensus >= 50:
		return "🔶 REVIEW NEEDED - Significant issues to resolve"
	default:
		return "🔴 NO-GO - Fundamental disagreements, reconsider approach"
	}
}

func interpretConsensus(score int) string {
	switch {
	case score >= 85:
		return "Strong Agreement"
	case score >= 70:
		return "Moderate Agreement"
	case score >= 50:
		return "Significant Disagreements"
	default:
		return "Fundamental Disagreements"
	}
}

func formatHeader(in PackInput, execRec string) string {
	return fmt.Sprintf(`# AI DEBATE DECISION PACK: %s

**Consensus:** %d/100 (%s)
**Execution Recommendation:** %s
**Debate Time:** %d seconds
**Participants:** Claude (%d/100) + Codex (%d/100)

---`,
		in.Topic, in.ConsensusScore, interpretConsensus(in.ConsensusScore),
		execRec, in.DebateTimeSeconds, in.ClaudeScore, in.CodexScore)
}

func formatQuickActions(scoredIssues []models.Issue, fixTimes FixTimes) string {
	top := scoredIssues
	if len(top) > QuickActionCount {
		top = top[:QuickActionCount]
	}
	if len(top) == 0 {
		return `## ⚡ QUICK ACTION SUMMARY

✅ **No critical issues found** - Plan approved as-is

---`
	}

	lines := []string{"## ⚡ QUICK ACTION SUMMARY (Top 5 Must-Fix)", ""}
	for i, issue := range top {
		title := issue.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s (%s impact)",
			i+1, issue.PriorityLabel, title, titleWord(issue.Impact)))
	}

	stopShipCount := 0
	for _, issue := range scoredIssues {
		if issue.PriorityScore >= StopShipThreshold {
			stopShipCount++
		}
	}
	riskLevel := "MEDIUM"
	if stopShipCount >= 3 {
		riskLevel = "HIGH"
	}

	lines = append(lines, "",
		fmt.Sprintf("**Estimated Fix Time:** %s (stop-ship) + %s (high)", fixTimes.StopShip, fixTimes.High),
		fmt.Sprintf("**Total Effort:** %s", fixTimes.Total),
		fmt.Sprintf("**Risk Reduction:** %s", riskLevel),
		"", "---")
	return strings.Join(lines, "\n")
}

func formatIssuesBySeverity(grouped Grouped) string {
	sections := []string{"## 📊 ISSUES BY SEVERITY", ""}

	if len(grouped.StopShip) > 0 {
		sections = append(sections, "### 🔴 STOP-SHIP ISSUES (Must Fix Before Release)", "")
		sections = append(sections, issueTable(grouped.StopShip)...)
		sections = append(sections, "")
	}
	if len(grouped.High) > 0 {
		sections = append(sections, "### 🟠 HIGH PRIORITY (Strongly Recommended)", "")
		sections = append(sections, issueTable(grouped.High)...)
		sections = append(sections, "")
	}
	if len(grouped.Medium) > 0 {
		sections = append(sections, "### 🟡 MEDIUM PRIORITY (Nice to Have)", "")
		for _, issue := range grouped.Medium {
			sections = append(sections, fmt.Sprintf("- %s (%s)", issue.Title, FormatEffort(issue.Effort)))
		}
		sections = append(sections, "")
	}
	if len(grouped.Low) > 0 {
		sections = append(sections, "### ⚪ LOW PRIORITY",
			fmt.Sprintf("*%d optional improvements (see full analysis)*", len(grouped.Low)), "")
	}

	sections = append(sections, "---")
	return strings.Join(sections, "\n")
}

func issueTable(issues []models.Issue) []string {
	rows := []string{
		"| # | Issue | Impact | Effort | Fix |",
		"|---|-------|--------|--------|-----|",
	}
	for i, issue := range issues {
		fix := issue.Fix
		if fix == "" {
			fix = "See details"
		}
		rows = append(rows, fmt.Sprintf("| %d | %s | %s | %s | %s |",
			i+1,
			truncate(issue.Title, 40),
			titleWord(issue.Impact),
			FormatEffort(issue.Effort),
			truncate(fix, 30)))
	}
	return rows
}

func formatDisagreements(disagreements []Disagreement) string {
	sections := []string{"## 🤔 DISAGREEMENTS REQUIRING USER DECISION", ""}
	for i, d := range disagreements {
		topic := d.Topic
		if topic == "" {
			topic = "Unknown"
		}
		rec := d.Recommendation
		if rec == "" {
			rec = "User decision required"
		}
		sections = append(sections,
			fmt.Sprintf("### Disagreement #%d: %s", i+1, topic),
			"",
			fmt.Sprintf("- **Claude:** %s", orNA(d.ClaudeView)),
			fmt.Sprintf("- **Codex:** %s", orNA(d.CodexView)),
			fmt.Sprintf("- **Impact:** %s", orDefault(d.Impact, "Unknown")),
			fmt.Sprintf("- **Recommendation:** %s", rec),
			"")
	}
	sections = append(sections, "---")
	return strings.Join(sections, "\n")
}

func formatApprovedAspects(aspects []string) string {
	sections := []string{"## ✅ APPROVED ASPECTS (Proceed As-Is)", ""}
	for _, aspect := range aspects {
		sections = append(sections, "- "+aspect)
	}
	sections = append(sections, "", "---")
	return strings.Join(sections, "\n")
}

func formatAlternatives(alternatives []Alternative) string {
	sections := []string{"## 💡 ALTERNATIVE APPROACHES", ""}
	for i, alt := range alternatives {
		sections = append(sections,
			fmt.Sprintf("### Alternative %d: %s", i+1, orDefault(alt.Title, "Unknown")),
			"",
			fmt.Sprintf("**Pros:** %s", orNA(alt.Pros)),
			fmt.Sprintf("**Cons:** %s", orNA(alt.Cons)),
			fmt.Sprintf("**Consensus:** %s", orNA(alt.Consensus)),
			"")
	}
	sections = append(sections, "---")
	return strings.Join(sections, "\n")
}

func formatFinalRecommendation(consensus, stopShipCount, highCount int, fixTimes FixTimes) string {
	sections := []string{"## 🏁 FINAL RECOMMENDATION", ""}

	switch {
	case stopShipCount > 0:
		sections = append(sections,
			"**Decision:** ⚠️ **CONDITIONAL GO**",
			"",
			"**Conditions:**",
			fmt.Sprintf("1. ✅ Fix %d stop-ship issues (%s) BEFORE starting", stopShipCount, fixTimes.StopShip))
		if highCount > 0 {
			sections = append(sections,
				fmt.Sprintf("2. ✅ Address %d high-priority items during implementation", highCount))
		}
		sections = append(sections, "",
			"**If conditions met:** 95% confidence of success",
			"**If conditions ignored:** High risk of critical issues")
	case consensus >= 85:
		sections = append(sections,
			"**Decision:** ✅ **GO - Proceed with Confidence**",
			"",
			fmt.Sprintf("**Consensus:** %d/100 (Strong agreement)", consensus),
			fmt.Sprintf("**High-priority items:** %d (address during implementation)", highCount),
			fmt.Sprintf("**Estimated additional effort:** %s", fixTimes.High))
	case consensus >= 70:
		sections = append(sections,
			"**Decision:** ⚠️ **PROCEED WITH CAUTION**",
			"",
			fmt.Sprintf("**Consensus:** %d/100 (Moderate agreement)", consensus),
			"**Action:** Address key concerns before proceeding")
	default:
		sections = append(sections,
			"**Decision:** 🔴 **REVIEW NEEDED**",
			"",
			fmt.Sprintf("**Consensus:** %d/100 (Significant disagreements)", consensus),
			"**Action:** Resolve fundamental issues before implementation")
	}

	sections = append(sections, "", "---")
	return strings.Join(sections, "\n")
}

// PackFromResult maps a finished debate onto the pack's input. Issues with
// the full severity/impact/effort vocabulary are re-scored; otherwise the
// scores already on them are kept.
func PackFromResult(result *models.DebateResult, stats models.Stats) PackInput {
	issues := result.Issues
	if scored, err := ScoreIssues(issues); err == nil {
		issues = scored
	}

	var disagreements []Disagreement
	for _, statement := range result.Disagreements {
		if statement.Text == "" {
			continue
		}
		d := Disagreement{Topic: truncate(statement.Text, 80)}
		switch strings.ToLower(statement.Source) {
		case "claude":
			d.ClaudeView = statement.Text
		case "codex":
			d.CodexView = statement.Text
		default:
			d.ClaudeView = statement.Text
		}
		disagreements = append(disagreements, d)
	}

	return PackInput{
		Topic:             result.Request,
		ConsensusScore:    result.ConsensusScore,
		ClaudeScore:       result.Score("claude"),
		CodexScore:        result.Score("codex"),
		DebateTimeSeconds: int(stats.TotalTime),
		ScoredIssues:      issues,
		Disagreements:     disagreements,
		ApprovedAspects:   result.Agreements,
	}
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max-3] + "..."
}

func titleWord(s string) string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func orNA(s string) string {
	return orDefault(s, "N/A")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
