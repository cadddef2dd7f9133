// Package priority turns reviewer findings into ranked, actionable output:
// objective priority scores, a todo list and a markdown decision pack.
package priority

import (
	"fmt"
	"sort"
	"strings"

	"dev.helix.debate/internal/models"
)

// Priority thresholds. Scores at or above each bound take that label.
const (
	StopShipThreshold = 85
	HighThreshold     = 65
	MediumThreshold   = 50
)

// Priority labels attached to scored issues.
const (
	LabelStopShip = "🔴 STOP-SHIP"
	LabelHigh     = "🟠 HIGH"
	LabelMedium   = "🟡 MEDIUM"
	LabelLow      = "⚪ LOW"
)

// severityScores contributes up to 40 points.
var severityScores = map[string]int{
	"critical": 40,
	"high":     30,
	"medium":   20,
	"low":      10,
}

// impactScores contributes up to 40 points.
var impactScores = map[string]int{
	"high":   40,
	"medium": 25,
	"low":    10,
}

// effortPenalty rewards cheap fixes: less effort means higher priority.
var effortPenalty = map[string]int{
	"low":    0,
	"medium": -10,
	"high":   -20,
}

// effortHours estimates fix time per effort level.
var effortHours = map[string]float64{
	"low":    0.5,
	"medium": 2.5,
	"high":   6.0,
}

// ScoreIssue computes the priority score and label for one finding.
// Severity, impact and effort use closed vocabularies; unknown values are
// errors rather than silent defaults.
func ScoreIssue(severity, impact, effort string) (int, string, error) {
	severity = strings.ToLower(severity)
	impact = strings.ToLower(impact)
	effort = strings.ToLower(effort)

	sev, ok := severityScores[severity]
	if !ok {
		return 0, "", fmt.Errorf("invalid severity: %s", severity)
	}
	imp, ok := impactScores[impact]
	if !ok {
		return 0, "", fmt.Errorf("invalid impact: %s", impact)
	}
	eff, ok := effortPenalty[effort]
	if !ok {
		return 0, "", fmt.Errorf("invalid effort: %s", effort)
	}

	score := sev + imp + eff
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, labelFor(score), nil
}

func labelFor(score int) string {
	switch {
	case score >= StopShipThreshold:
		return LabelStopShip
	case score >= HighThreshold:
		return LabelHigh
	case score >= MediumThreshold:
		return LabelMedium
	default:
		return LabelLow
	}
}

// ScoreIssues scores every issue and returns them sorted by priority
// descending. Issues with invalid vocabulary values fail the whole batch.
func ScoreIssues(issues []models.Issue) ([]models.Issue, error) {
	scored := make([]models.Issue, len(issues))
	for i, issue := range issues {
		score, label, err := ScoreIssue(issue.Severity, issue.Impact, issue.Effort)
		if err != nil {
			return nil, fmt.Errorf("issue %q: %w", issue.Title, err)
		}
		issue.PriorityScore = score
		issue.PriorityLabel = label
		scored[i] = issue
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].PriorityScore > scored[j].PriorityScore
	})
	return scored, nil
}

// Grouped buckets scored issues by priority band.
type Grouped struct {
	StopShip []models.Issue
	High     []models.Issue
	Medium   []models.Issue
	Low      []models.Issue
}

// GroupBySeverity buckets scored issues into the four priority bands.
func GroupBySeverity(issues []models.Issue) Grouped {
	var g Grouped
	for _, issue := range issues {
		switch {
		case issue.PriorityScore >= StopShipThreshold:
			g.StopShip = append(g.StopShip, issue)
		case issue.PriorityScore >= HighThreshold:
			g.High = append(g.High, issue)
		case issue.PriorityScore >= MediumThreshold:
			g.Medium = append(g.Medium, issue)
		default:
			g.Low = append(g.Low, issue)
		}
	}
	return g
}

// FixTimes holds rendered fix-time estimates per band plus the total.
type FixTimes struct {
	StopShip string
	High     string
	Medium   string
	Low      string
	Total    string
}

// CalculateFixTime sums estimated hours per band. Durations under an hour
// are rendered in minutes.
func CalculateFixTime(issues []models.Issue) FixTimes {
	g := GroupBySeverity(issues)
	return FixTimes{
		StopShip: renderHours(sumHours(g.StopShip)),
		High:     renderHours(sumHours(g.High)),
		Medium:   renderHours(sumHours(g.Medium)),
		Low:      renderHours(sumHours(g.Low)),
		Total:    renderHours(sumHours(issues)),
	}
}

func sumHours(issues []models.Issue) float64 {
	total := 0.0
	for _, issue := range issues {
		hours, ok := effortHours[strings.ToLower(issue.Effort)]
		if !ok {
			hours = 2.5
		}
		total += hours
	}
	return total
}

func renderHours(hours float64) string {
	if hours == 0 {
		return "0 hours"
	}
	if hours < 1 {
		return fmt.Sprintf("%d minutes", int(hours*60))
	}
	return fmt.Sprintf("%.1f hours", hours)
}

// FormatEffort renders an effort level as its time range.
func FormatEffort(effort string) string {
	switch strings.ToLower(effort) {
	case "low":
		return "<30 min"
	case "medium":
		return "1-4 hours"
	case "high":
		return ">4 hours"
	default:
		return effort
	}
}
