// Package revision turns debate feedback back into plan changes: the
// reviser asks an adapter for a targeted rewrite and validates it, and the
// delta tracker scopes follow-up debates to what actually changed.
package revision

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sirupsen/logrus"

	"dev.helix.debate/internal/llm"
	"dev.helix.debate/internal/models"
)

// Revisions below this priority score are not worth a revision round.
const revisionPriorityFloor = 65

// maxRevisionIssues bounds how many issues one revision prompt targets.
const maxRevisionIssues = 5

// Accepted change band for a revision, in percent of lines changed.
const (
	minChangePercent = 1.0
	maxChangePercent = 50.0
)

const revisionPromptTemplate = `You are revising a technical plan based on AI debate feedback.

ORIGINAL PLAN:
───────────────────────────────────────────────────────────
%s
───────────────────────────────────────────────────────────

DEBATE CONSENSUS: %d/100 (target: %d+)

KEY ISSUES TO ADDRESS (Top %d):
%s

DISAGREEMENTS FROM DEBATE:
%s

YOUR TASK:
1. Carefully read the original plan above
2. Address ONLY the specific issues listed in "KEY ISSUES"
3. Preserve the overall structure, headings, and format
4. Make minimal, targeted changes to resolve concerns
5. Do NOT add new sections or major restructuring
6. Do NOT add explanations or meta-commentary
7. Return the COMPLETE revised plan (not just changes/diffs)

CRITICAL REQUIREMENTS:
- Output ONLY the revised plan content
- No markdown code blocks (` + "```" + `), no "Here is...", no explanations
- Just the raw plan text, ready to be saved to file

BEGIN REVISED PLAN:
`

// Revision is the outcome of one revision attempt. On failure
// RevisedContent carries the original so callers can always write it back.
type Revision struct {
	Success         bool           `json:"success"`
	RevisedContent  string         `json:"revised_content"`
	IssuesAddressed []models.Issue `json:"issues_addressed"`
	Summary         string         `json:"revision_summary"`
	Insertions      int            `json:"insertions"`
	Deletions       int            `json:"deletions"`
	Err             string         `json:"error,omitempty"`
}

// Reviser revises plans through an adapter, validating that the result is a
// targeted edit rather than a rewrite.
type Reviser struct {
	invoker llm.Provider
	log     *logrus.Logger
}

// NewReviser builds a reviser over the given adapter.
func NewReviser(invoker llm.Provider, log *logrus.Logger) *Reviser {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reviser{invoker: invoker, log: log}
}

// RevisePlan asks the adapter to address the top issues from a debate
// result. The plan file itself is not modified.
func (r *Reviser) RevisePlan(ctx context.Context, planPath string, result *models.DebateResult, targetConsensus int) *Revision {
	original, err := os.ReadFile(planPath)
	if err != nil {
		return &Revision{Err: fmt.Sprintf("Plan file not found: %s", planPath)}
	}
	originalContent := string(original)

	prioritized := PrioritizeIssues(result.Issues)
	if len(prioritized) == 0 {
		return &Revision{RevisedContent: originalContent, Err: "No issues to address"}
	}

	prompt := fmt.Sprintf(revisionPromptTemplate,
		originalContent,
		result.ConsensusScore,
		targetConsensus,
		len(prioritized),
		formatIssues(prioritized),
		formatDisagreements(result.Disagreements),
	)

	response := r.invoker.Invoke(ctx, prompt)
	if !response.Success {
		detail := response.Err
		if detail == "" {
			detail = "Unknown error"
		}
		return &Revision{
			RevisedContent:  originalContent,
			IssuesAddressed: prioritized,
			Err:             fmt.Sprintf("Adapter invocation failed: %s", detail),
		}
	}

	revisedContent := strings.TrimSpace(response.Text)
	if validationErr := validateRevision(originalContent, revisedContent); validationErr != "" {
		return &Revision{
			RevisedContent:  originalContent,
			IssuesAddressed: prioritized,
			Err:             "Revision validation failed: " + validationErr,
		}
	}

	insertions, deletions := diffCounts(originalContent, revisedContent)
	return &Revision{
		Success:         true,
		RevisedContent:  revisedContent,
		IssuesAddressed: prioritized,
		Summary:         revisionSummary(prioritized, originalContent, revisedContent),
		Insertions:      insertions,
		Deletions:       deletions,
	}
}

// PrioritizeIssues filters to high-priority issues and returns the top five
// by priority score.
func PrioritizeIssues(issues []models.Issue) []models.Issue {
	var high []models.Issue
	for _, issue := range issues {
		if issue.PriorityScore >= revisionPriorityFloor {
			high = append(high, issue)
		}
	}
	sort.SliceStable(high, func(i, j int) bool {
		return high[i].PriorityScore > high[j].PriorityScore
	})
	if len(high) > maxRevisionIssues {
		high = high[:maxRevisionIssues]
	}
	return high
}

func formatIssues(issues []models.Issue) string {
	if len(issues) == 0 {
		return "(No critical/high issues identified)"
	}

	var lines []string
	for i, issue := range issues {
		severity := strings.ToUpper(issue.Severity)
		if severity == "" {
			severity = "UNKNOWN"
		}
		title := issue.Title
		if title == "" {
			title = "Unknown issue"
		}
		lines = append(lines, fmt.Sprintf("%d. [%s - %d/100] %s", i+1, severity, issue.PriorityScore, title))
		if issue.Description != "" && issue.Description != title {
			lines = append(lines, "   Concern: "+clip(issue.Description, 200))
		}
		if issue.Fix != "" {
			lines = append(lines, "   Fix Required: "+clip(issue.Fix, 200))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func formatDisagreements(disagreements []models.Statement) string {
	if len(disagreements) == 0 {
		return "(No major disagreements identified)"
	}

	var lines []string
	for i, disagreement := range disagreements {
		if i >= 5 {
			break
		}
		if disagreement.Text == "" {
			continue
		}
		source := disagreement.Source
		if source == "" {
			source = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", source, clip(disagreement.Text, 150)))
	}
	if len(lines) == 0 {
		return "(No major disagreements)"
	}
	return strings.Join(lines, "\n")
}

// validateRevision returns an empty string for a valid revision, or the
// reason it was rejected. A valid revision changes between 1% and 50% of
// the plan's lines.
func validateRevision(original, revised string) string {
	if len(revised) < 100 {
		return "Revision too short or empty"
	}
	if revised == original {
		return "No changes made by reviser"
	}

	changePct := ChangePercentage(original, revised)
	if changePct < minChangePercent {
		return fmt.Sprintf("Changes too minimal (%.1f%%)", changePct)
	}
	if changePct > maxChangePercent {
		return fmt.Sprintf("Plan appears to be rewritten (%.1f%% changed), not revised", changePct)
	}
	return ""
}

// ChangePercentage measures line-level dissimilarity between two plan
// versions, from 0 (identical) to 100 (nothing in common).
func ChangePercentage(original, revised string) float64 {
	matcher := difflib.NewMatcher(
		difflib.SplitLines(original),
		difflib.SplitLines(revised),
	)
	return (1.0 - matcher.Ratio()) * 100
}

// diffCounts totals inserted and deleted characters between two versions.
func diffCounts(original, revised string) (insertions, deletions int) {
	dmp := diffmatchpatch.New()
	for _, diff := range dmp.DiffMain(original, revised, true) {
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			insertions += len(diff.Text)
		case diffmatchpatch.DiffDelete:
			deletions += len(diff.Text)
		}
	}
	return insertions, deletions
}

// revisionSummary names the addressed issues and the share of the plan that
// changed.
func revisionSummary(addressed []models.Issue, original, revised string) string {
	if len(addressed) == 0 {
		return "Minor improvements"
	}

	titles := make([]string, 0, 3)
	for i, issue := range addressed {
		if i >= 3 {
			break
		}
		title := issue.Title
		if title == "" {
			title = "Unknown"
		}
		titles = append(titles, clip(title, 50))
	}

	var summary string
	switch len(addressed) {
	case 1:
		summary = "Addressed: " + titles[0]
	case 2:
		summary = fmt.Sprintf("Addressed: %s and %s", titles[0], titles[1])
	default:
		summary = fmt.Sprintf("Addressed: %s, %s, and %d more issue(s)", titles[0], titles[1], len(addressed)-2)
	}
	return summary + fmt.Sprintf(" (%.1f%% of plan revised)", ChangePercentage(original, revised))
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
