package orchestrator

import (
	"fmt"
	"strings"

	"dev.helix.debate/internal/models"
)

// Keyword tables for inferring an issue's weight from the wording of a
// disagreement. First matching band wins.
var (
	criticalSeverityTerms = []string{"critical", "security", "data loss", "production"}
	highSeverityTerms     = []string{"risk", "concern", "issue", "problem"}
	mediumSeverityTerms   = []string{"missing", "incomplete", "unclear"}

	mediumEffortTerms = []string{"add", "create", "implement", "build"}
)

const issueTitleLength = 100

// extractIssues turns debate disagreements into scorable issues, inferring
// severity, impact and effort from the statement wording. The reviser and
// the decision pack both feed on these.
func extractIssues(disagreements []models.Statement) []models.Issue {
	var issues []models.Issue
	for _, statement := range disagreements {
		lower := strings.ToLower(statement.Text)

		severity, impact := "low", "low"
		switch {
		case anyTerm(lower, criticalSeverityTerms):
			severity, impact = "critical", "high"
		case anyTerm(lower, highSeverityTerms):
			severity, impact = "high", "high"
		case anyTerm(lower, mediumSeverityTerms):
			severity, impact = "medium", "medium"
		}

		effort := "low"
		if anyTerm(lower, mediumEffortTerms) {
			effort = "medium"
		}

		title := statement.Text
		if len(title) > issueTitleLength {
			title = title[:issueTitleLength]
		}

		issues = append(issues, models.Issue{
			Title:       title,
			Description: statement.Text,
			Source:      statement.Source,
			Fix:         fmt.Sprintf("Address %s's concern", statement.Source),
			Severity:    severity,
			Impact:      impact,
			Effort:      effort,
		})
	}
	return issues
}

func anyTerm(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
