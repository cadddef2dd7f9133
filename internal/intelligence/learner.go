package intelligence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.debate/internal/history"
	"dev.helix.debate/internal/models"
)

// MinOutcomeDebates is how many debates with known outcomes learning needs.
const MinOutcomeDebates = 3

// Rule is one learned decision rule. Its shape depends on Type.
type Rule struct {
	Type string `json:"type"`

	Condition       string   `json:"condition,omitempty"`
	PatternName     string   `json:"pattern_name,omitempty"`
	FocusAreas      []string `json:"focus_areas,omitempty"`
	DifferenceRange string   `json:"difference_range,omitempty"`

	SuccessRate  float64 `json:"success_rate"`
	AvgConsensus float64 `json:"avg_consensus,omitempty"`
	SampleSize   int     `json:"sample_size"`

	LearnedRecommendation string `json:"learned_recommendation,omitempty"`
	Adjustment            string `json:"adjustment,omitempty"`
	SeverityAdjustment    string `json:"severity_adjustment,omitempty"`
	Recommendation        string `json:"recommendation,omitempty"`
	Insight               string `json:"insight,omitempty"`

	Confidence float64 `json:"confidence"`
}

// LearnedRules is the learner's persisted output.
type LearnedRules struct {
	TotalDebates   int     `json:"total_debates"`
	OutcomeDebates int     `json:"outcome_debates"`
	LastUpdated    string  `json:"last_updated,omitempty"`
	Rules          []*Rule `json:"rules"`
	Note           string  `json:"note,omitempty"`
}

// DecisionLearner derives rules from archived debate outcomes.
type DecisionLearner struct {
	store    *history.Store
	detector *PatternDetector
	log      *logrus.Logger
}

// NewDecisionLearner builds a learner over the archive and detector.
func NewDecisionLearner(store *history.Store, detector *PatternDetector, log *logrus.Logger) *DecisionLearner {
	if log == nil {
		log = logrus.New()
	}
	return &DecisionLearner{store: store, detector: detector, log: log}
}

func (l *DecisionLearner) rulesPath() string {
	return filepath.Join(l.store.PatternsDir(), "learned_rules.json")
}

// LearnFromOutcomes analyzes decided debates and derives rules over
// consensus bands, risk patterns, focus combinations and score differences.
// Results are cached on disk; forceRefresh re-learns.
func (l *DecisionLearner) LearnFromOutcomes(forceRefresh bool) (*LearnedRules, error) {
	if !forceRefresh {
		if data, err := os.ReadFile(l.rulesPath()); err == nil {
			var cached LearnedRules
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	allDebates, err := l.store.QueryDebates(history.Query{Limit: 1000})
	if err != nil {
		return nil, err
	}

	var decided []*history.Record
	for _, debate := range allDebates {
		if debate.Outcome != models.OutcomePending && debate.Outcome != "" {
			decided = append(decided, debate)
		}
	}

	if len(decided) < MinOutcomeDebates {
		return &LearnedRules{
			TotalDebates:   len(allDebates),
			OutcomeDebates: len(decided),
			Rules:          []*Rule{},
			Note:           "Insufficient outcome data for learning (need 3+ debates with outcomes)",
		}, nil
	}

	var rules []*Rule
	rules = append(rules, learnConsensusThresholds(decided)...)
	rules = append(rules, l.learnPatternSuccessRates(decided)...)
	rules = append(rules, learnFocusAreaRules(decided)...)
	rules = append(rules, learnScoreDifferenceRules(decided)...)

	learned := &LearnedRules{
		TotalDebates:   len(allDebates),
		OutcomeDebates: len(decided),
		LastUpdated:    history.NewDebateID(time.Now()),
		Rules:          rules,
	}
	if data, err := json.MarshalIndent(learned, "", "  "); err == nil {
		if err := os.WriteFile(l.rulesPath(), data, 0o644); err != nil {
			l.log.WithError(err).Warn("Failed to write learned rules")
		}
	}
	return learned, nil
}

// learnConsensusThresholds derives a recommendation per consensus band with
// at least two decided samples.
func learnConsensusThresholds(debates []*history.Record) []*Rule {
	bands := []struct{ min, max int }{
		{0, 50}, {50, 70}, {70, 85}, {85, 100},
	}

	var rules []*Rule
	for _, band := range bands {
		var group []*history.Record
		for _, debate := range debates {
			if debate.ConsensusScore >= band.min && debate.ConsensusScore < band.max {
				group = append(group, debate)
			}
		}
		if len(group) < 2 {
			continue
		}

		successRate := successRateOf(group)

		var recommendation, adjustment string
		switch {
		case successRate < 0.4:
			recommendation = "[RECONSIDER]"
			adjustment = "Increase severity - low success rate observed"
		case successRate < 0.7:
			recommendation = "[DISCUSS FIRST]"
			adjustment = "Moderate caution - mixed results observed"
		default:
			recommendation = "[PROCEED]"
			adjustment = "Confidence boost - high success rate observed"
		}

		rules = append(rules, &Rule{
			Type:                  "consensus_threshold",
			Condition:             fmt.Sprintf("%d <= consensus < %d", band.min, band.max),
			SuccessRate:           round2(successRate),
			SampleSize:            len(group),
			LearnedRecommendation: recommendation,
			Adjustment:            adjustment,
			Confidence:            capRatio(float64(len(group)) / 10),
		})
	}
	return rules
}

// learnPatternSuccessRates derives per-risk-pattern success rates.
func (l *DecisionLearner) learnPatternSuccessRates(debates []*history.Record) []*Rule {
	patterns, err := l.detector.DetectPatterns(false)
	if err != nil {
		return nil
	}

	var rules []*Rule
	for _, pattern := range patterns {
		if pattern.Type != "risk" {
			continue
		}

		var group []*history.Record
		for _, debate := range debates {
			for _, name := range debate.PatternsDetected {
				if name == pattern.Name {
					group = append(group, debate)
					break
				}
			}
		}
		if len(group) < 2 {
			continue
		}

		successRate := successRateOf(group)
		severityAdjustment := "Standard severity"
		if successRate < 0.5 {
			severityAdjustment = "Increase severity"
		}

		rules = append(rules, &Rule{
			Type:               "pattern_success",
			PatternName:        pattern.Name,
			SuccessRate:        round2(successRate),
			SampleSize:         len(group),
			SeverityAdjustment: severityAdjustment,
			Confidence:         capRatio(float64(len(group)) / 5),
		})
	}
	return rules
}

// learnFocusAreaRules derives success rates per focus-area combination.
func learnFocusAreaRules(debates []*history.Record) []*Rule {
	groups := map[string][]*history.Record{}
	for _, debate := range debates {
		if len(debate.FocusAreas) == 0 {
			continue
		}
		areas := append([]string(nil), debate.FocusAreas...)
		sort.Strings(areas)
		groups[strings.Join(areas, "|")] = append(groups[strings.Join(areas, "|")], debate)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var rules []*Rule
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		successRate := successRateOf(group)
		totalConsensus := 0
		for _, debate := range group {
			totalConsensus += debate.ConsensusScore
		}

		recommendation := "Caution advised"
		if successRate > 0.6 {
			recommendation = "Recommended"
		}

		rules = append(rules, &Rule{
			Type:           "focus_combination",
			FocusAreas:     strings.Split(key, "|"),
			SuccessRate:    round2(successRate),
			AvgConsensus:   round1(float64(totalConsensus) / float64(len(group))),
			SampleSize:     len(group),
			Recommendation: recommendation,
			Confidence:     capRatio(float64(len(group)) / 5),
		})
	}
	return rules
}

// learnScoreDifferenceRules relates reviewer disagreement to outcomes.
func learnScoreDifferenceRules(debates []*history.Record) []*Rule {
	bands := []struct {
		min, max int
		name     string
	}{
		{0, 10, "minimal"},
		{10, 20, "moderate"},
		{20, 100, "significant"},
	}

	var rules []*Rule
	for _, band := range bands {
		var group []*history.Record
		for _, debate := range debates {
			if debate.ScoreDifference >= band.min && debate.ScoreDifference < band.max {
				group = append(group, debate)
			}
		}
		if len(group) < 2 {
			continue
		}

		rules = append(rules, &Rule{
			Type:            "score_difference",
			DifferenceRange: band.name,
			SuccessRate:     round2(successRateOf(group)),
			SampleSize:      len(group),
			Insight:         strings.ToUpper(band.name[:1]) + band.name[1:] + " disagreement between AIs",
			Confidence:      capRatio(float64(len(group)) / 5),
		})
	}
	return rules
}

// RecommendationAdjustment applies the learned rules to one fresh result.
// Low-success rules each add a severity level, capped at +2.
func (l *DecisionLearner) RecommendationAdjustment(
	consensusScore int,
	patternsDetected []string,
	focusAreas []string,
	scoreDifference int,
) (*models.LearningAdjustment, error) {
	learned, err := l.LearnFromOutcomes(false)
	if err != nil {
		return nil, err
	}
	if len(learned.Rules) == 0 {
		return &models.LearningAdjustment{
			Adjustment:   "No learned rules available",
			AppliedRules: []string{},
		}, nil
	}

	severityChange := 0
	var appliedRules []string
	var confidences []float64

	for _, rule := range learned.Rules {
		switch rule.Type {
		case "consensus_threshold":
			if !strings.Contains(rule.Condition, "consensus") {
				continue
			}
			matched, err := EvaluateCondition(rule.Condition, consensusScore)
			if err != nil {
				l.log.WithError(err).Warnf("Failed to evaluate rule condition %q", rule.Condition)
				continue
			}
			if matched {
				if rule.SuccessRate < 0.5 {
					severityChange++
				}
				appliedRules = append(appliedRules, rule.Adjustment)
				confidences = append(confidences, rule.Confidence)
			}
		case "pattern_success":
			for _, name := range patternsDetected {
				if name == rule.PatternName {
					if rule.SuccessRate < 0.5 {
						severityChange++
						appliedRules = append(appliedRules,
							fmt.Sprintf("Pattern %s has low success rate", rule.PatternName))
						confidences = append(confidences, rule.Confidence)
					}
					break
				}
			}
		case "focus_combination":
			if sameSet(rule.FocusAreas, focusAreas) && rule.SuccessRate < 0.5 {
				appliedRules = append(appliedRules, "Focus combination has low success rate")
				confidences = append(confidences, rule.Confidence)
			}
		}
	}

	avgConfidence := 0.0
	if len(confidences) > 0 {
		total := 0.0
		for _, c := range confidences {
			total += c
		}
		avgConfidence = total / float64(len(confidences))
	}

	adjustment := "No severity adjustment needed"
	if severityChange > 0 {
		adjustment = fmt.Sprintf("Increase severity by %d level(s) based on learned patterns", severityChange)
	}
	if severityChange > 2 {
		severityChange = 2
	}

	if appliedRules == nil {
		appliedRules = []string{}
	}
	return &models.LearningAdjustment{
		Adjustment:     adjustment,
		SeverityChange: severityChange,
		Confidence:     round2(avgConfidence),
		AppliedRules:   appliedRules,
	}, nil
}

// LearningSummary renders the learned rule set for display.
func (l *DecisionLearner) LearningSummary() string {
	learned, err := l.LearnFromOutcomes(false)
	if err != nil {
		return fmt.Sprintf("Learning unavailable: %v", err)
	}

	divider := strings.Repeat("=", 60)
	lines := []string{divider, "DECISION LEARNING SUMMARY", divider, ""}
	lines = append(lines,
		fmt.Sprintf("Total Debates: %d", learned.TotalDebates),
		fmt.Sprintf("Debates with Outcomes: %d", learned.OutcomeDebates),
		fmt.Sprintf("Learned Rules: %d", len(learned.Rules)),
		"")

	if learned.Note != "" {
		lines = append(lines, "Note: "+learned.Note, "", divider)
		return strings.Join(lines, "\n")
	}

	byType := map[string][]*Rule{}
	for _, rule := range learned.Rules {
		byType[rule.Type] = append(byType[rule.Type], rule)
	}

	if group := byType["consensus_threshold"]; len(group) > 0 {
		lines = append(lines, "CONSENSUS THRESHOLD RULES:")
		for _, rule := range group {
			lines = append(lines, fmt.Sprintf("  - %s: success rate %.0f%% (n=%d)",
				rule.Condition, rule.SuccessRate*100, rule.SampleSize))
			lines = append(lines, "    -> "+rule.LearnedRecommendation)
		}
		lines = append(lines, "")
	}
	if group := byType["pattern_success"]; len(group) > 0 {
		lines = append(lines, "PATTERN SUCCESS RULES:")
		for i, rule := range group {
			if i >= 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("  - %s: success rate %.0f%% (n=%d)",
				rule.PatternName, rule.SuccessRate*100, rule.SampleSize))
		}
		lines = append(lines, "")
	}
	if group := byType["focus_combination"]; len(group) > 0 {
		lines = append(lines, "FOCUS COMBINATION RULES:")
		for i, rule := range group {
			if i >= 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("  - %s: success rate %.0f%% (n=%d)",
				strings.Join(rule.FocusAreas, ", "), rule.SuccessRate*100, rule.SampleSize))
		}
		lines = append(lines, "")
	}

	lines = append(lines, divider)
	return strings.Join(lines, "\n")
}

func successRateOf(group []*history.Record) float64 {
	succeeded := 0
	for _, debate := range group {
		if debate.Outcome == models.OutcomeSucceeded {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(group))
}

func capRatio(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func sameSet(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	seen := map[string]bool{}
	for _, x := range a {
		seen[x] = true
	}
	for _, x := range b {
		if !seen[x] {
			return false
		}
	}
	other := map[string]bool{}
	for _, x := range b {
		other[x] = true
	}
	for _, x := range a {
		if !other[x] {
			return false
		}
	}
	return true
}
