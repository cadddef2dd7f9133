package intelligence

import (
	"fmt"
	"strings"

	"dev.helix.debate/internal/history"
	"dev.helix.debate/internal/models"
)

// LearningPrep carries what the post-debate enhancement step needs.
type LearningPrep struct {
	PatternsToDetect  []string `json:"patterns_to_detect"`
	BaselineConsensus int      `json:"baseline_consensus"`
}

// PatternAnalysis is the relevant-pattern slice of a pre-debate analysis.
type PatternAnalysis struct {
	RelevantPatterns []*Pattern `json:"relevant_patterns"`
	PatternCount     int        `json:"pattern_count"`
}

// PreDebateAnalysis is the recommender's combined pre-debate verdict.
type PreDebateAnalysis struct {
	ShouldProceed       bool            `json:"should_proceed"`
	Confidence          float64         `json:"confidence"`
	RiskPrediction      *RiskPrediction `json:"risk_prediction"`
	PatternAnalysis     PatternAnalysis `json:"pattern_analysis"`
	SuggestedFocusAreas []string        `json:"suggested_focus_areas"`
	ExpectedConsensus   int             `json:"expected_consensus"`
	EstimatedTime       float64         `json:"estimated_time"`
	Warnings            []string        `json:"warnings"`
	LearningPrep        LearningPrep    `json:"learning_prep"`
}

// IntelligenceStats summarizes the learning subsystem state.
type IntelligenceStats struct {
	TotalDebates       int            `json:"total_debates"`
	AvgConsensus       float64        `json:"avg_consensus"`
	PatternsDetected   int            `json:"patterns_detected"`
	LearnedRules       int            `json:"learned_rules"`
	OutcomeBreakdown   map[string]int `json:"outcome_breakdown"`
	IntelligenceActive bool           `json:"intelligence_active"`
}

// SmartRecommender composes the detector, predictor and learner into the
// orchestrator-facing intelligence surface.
type SmartRecommender struct {
	store     *history.Store
	detector  *PatternDetector
	predictor *RiskPredictor
	learner   *DecisionLearner
}

// NewSmartRecommender wires the intelligence components together.
func NewSmartRecommender(store *history.Store, detector *PatternDetector, predictor *RiskPredictor, learner *DecisionLearner) *SmartRecommender {
	return &SmartRecommender{
		store:     store,
		detector:  detector,
		predictor: predictor,
		learner:   learner,
	}
}

// AnalyzePreDebate runs the complete pre-debate intelligence pass.
func (r *SmartRecommender) AnalyzePreDebate(request, filePath string, focusAreas []string) (*PreDebateAnalysis, error) {
	prediction, err := r.predictor.PredictRisks(request, filePath, focusAreas)
	if err != nil {
		return nil, err
	}

	relevantPatterns, err := r.detector.PatternsForRequest(request, filePath, 5)
	if err != nil {
		return nil, err
	}

	suggestions, err := r.predictor.AutoSuggest(request, filePath)
	if err != nil {
		return nil, err
	}

	merged := mergeFocusAreas(focusAreas, prediction.SuggestedFocusAreas)

	patternNames := make([]string, 0, len(relevantPatterns))
	for _, pattern := range relevantPatterns {
		patternNames = append(patternNames, pattern.Name)
	}

	confidence := overallConfidence(prediction, relevantPatterns)
	shouldProceed := prediction.ShouldProceed && len(suggestions.Warnings) < 2

	return &PreDebateAnalysis{
		ShouldProceed:  shouldProceed,
		Confidence:     confidence,
		RiskPrediction: prediction,
		PatternAnalysis: PatternAnalysis{
			RelevantPatterns: relevantPatterns,
			PatternCount:     len(relevantPatterns),
		},
		SuggestedFocusAreas: merged,
		ExpectedConsensus:   suggestions.ExpectedConsensus,
		EstimatedTime:       suggestions.EstimatedTime,
		Warnings:            suggestions.Warnings,
		LearningPrep: LearningPrep{
			PatternsToDetect:  patternNames,
			BaselineConsensus: suggestions.ExpectedConsensus,
		},
	}, nil
}

// EnhanceDebateResult applies learned adjustments to a fresh result. When
// the learner asks for a higher severity, the recommendation steps up the
// ladder and the original is preserved on the result.
func (r *SmartRecommender) EnhanceDebateResult(result *models.DebateResult, analysis *PreDebateAnalysis) (*models.DebateResult, error) {
	adjustment, err := r.learner.RecommendationAdjustment(
		result.ConsensusScore,
		analysis.LearningPrep.PatternsToDetect,
		analysis.SuggestedFocusAreas,
		result.ScoreDifference,
	)
	if err != nil {
		return nil, err
	}

	enhanced := *result
	enhanced.LearningAdjustments = adjustment

	if adjustment.SeverityChange > 0 {
		enhanced.OriginalRecommendation = result.Recommendation
		enhanced.Recommendation = adjustRecommendationSeverity(result.Recommendation, adjustment.SeverityChange)
		enhanced.AdjustmentReason = adjustment.Adjustment
	}
	return &enhanced, nil
}

// adjustRecommendationSeverity steps a recommendation up or down the
// severity ladder, preserving the message after the bracketed prefix.
func adjustRecommendationSeverity(original string, severityChange int) string {
	ladder := models.RecommendationLadder

	// CAUTION when the prefix is unrecognized.
	currentLevel := 2
	for i, level := range ladder {
		if strings.Contains(original, level) {
			currentLevel = i
			break
		}
	}

	newLevel := currentLevel + severityChange
	if newLevel < 0 {
		newLevel = 0
	}
	if newLevel > len(ladder)-1 {
		newLevel = len(ladder) - 1
	}

	message := original
	for _, level := range ladder {
		message = strings.TrimSpace(strings.ReplaceAll(message, level, ""))
	}
	return strings.TrimSpace(ladder[newLevel] + " " + message)
}

// PreDebateSummary renders one analysis for display.
func (r *SmartRecommender) PreDebateSummary(analysis *PreDebateAnalysis) string {
	divider := strings.Repeat("=", 70)
	lines := []string{divider, "SMART PRE-DEBATE ANALYSIS", divider, ""}

	lines = append(lines,
		fmt.Sprintf("Overall Confidence: %.0f%%", analysis.Confidence*100),
		fmt.Sprintf("Expected Consensus: %d/100", analysis.ExpectedConsensus),
		fmt.Sprintf("Estimated Time: %.1f seconds", analysis.EstimatedTime),
		"")

	if analysis.PatternAnalysis.PatternCount > 0 {
		lines = append(lines, fmt.Sprintf("Pattern Matches: %d found", analysis.PatternAnalysis.PatternCount))
		for i, pattern := range analysis.PatternAnalysis.RelevantPatterns {
			if i >= 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("  %d. %s (relevance: %.0f%%, frequency: %d)",
				i+1, pattern.Name, pattern.RelevanceScore, pattern.Frequency))
		}
		lines = append(lines, "")
	}

	if risks := analysis.RiskPrediction.PredictedRisks; len(risks) > 0 {
		lines = append(lines, "Predicted Risks:")
		for i, risk := range risks {
			if i >= 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("  %d. [%s] %s (%.0f%% probability)",
				i+1, strings.ToUpper(risk.Severity), risk.Name, risk.Probability*100))
		}
		lines = append(lines, "")
	}

	if len(analysis.SuggestedFocusAreas) > 0 {
		lines = append(lines, "Suggested Focus Areas:")
		for _, area := range analysis.SuggestedFocusAreas {
			lines = append(lines, "  - "+area)
		}
		lines = append(lines, "")
	}

	if len(analysis.Warnings) > 0 {
		lines = append(lines, "WARNINGS:")
		for _, warning := range analysis.Warnings {
			lines = append(lines, "  [!] "+warning)
		}
		lines = append(lines, "")
	}

	if analysis.ShouldProceed {
		lines = append(lines, "[OK] Proceeding with debate (risks identified, confidence adequate)")
	} else {
		lines = append(lines, "[CAUTION] Review analysis carefully before proceeding")
	}

	lines = append(lines, "", divider)
	return strings.Join(lines, "\n")
}

// Stats summarizes the intelligence subsystem.
func (r *SmartRecommender) Stats() (*IntelligenceStats, error) {
	historyStats, err := r.store.GetStatistics()
	if err != nil {
		return nil, err
	}
	patterns, err := r.detector.DetectPatterns(false)
	if err != nil {
		return nil, err
	}
	learned, err := r.learner.LearnFromOutcomes(false)
	if err != nil {
		return nil, err
	}

	return &IntelligenceStats{
		TotalDebates:       historyStats.TotalDebates,
		AvgConsensus:       historyStats.AvgConsensus,
		PatternsDetected:   len(patterns),
		LearnedRules:       len(learned.Rules),
		OutcomeBreakdown:   historyStats.OutcomeBreakdown,
		IntelligenceActive: len(patterns) > 0 || len(learned.Rules) > 0,
	}, nil
}

// Report renders the full intelligence system report.
func (r *SmartRecommender) Report() string {
	stats, err := r.Stats()
	if err != nil {
		return fmt.Sprintf("Intelligence report unavailable: %v", err)
	}

	divider := strings.Repeat("=", 70)
	lines := []string{divider, "AI DEBATE TOOL - INTELLIGENCE SYSTEM REPORT", divider, ""}

	active := "NO"
	if stats.IntelligenceActive {
		active = "YES"
	}
	lines = append(lines,
		"SYSTEM STATUS:",
		"  Intelligence Active: "+active,
		fmt.Sprintf("  Total Debates: %d", stats.TotalDebates),
		fmt.Sprintf("  Average Consensus: %.1f/100", stats.AvgConsensus),
		"",
		"LEARNING CAPABILITIES:",
		fmt.Sprintf("  Patterns Detected: %d", stats.PatternsDetected),
		fmt.Sprintf("  Learned Rules: %d", stats.LearnedRules),
		"",
		"OUTCOME TRACKING:")

	for _, outcome := range []string{
		models.OutcomePending, models.OutcomeSucceeded,
		models.OutcomeFailed, models.OutcomeAbandoned, models.OutcomeUserOverride,
	} {
		if count, ok := stats.OutcomeBreakdown[outcome]; ok {
			lines = append(lines, fmt.Sprintf("  %s: %d",
				strings.ToUpper(outcome[:1])+outcome[1:], count))
		}
	}
	lines = append(lines, "")

	if stats.IntelligenceActive {
		lines = append(lines,
			"INTELLIGENCE FEATURES:",
			"  [OK] Pre-debate risk prediction",
			"  [OK] Pattern-based suggestions",
			"  [OK] Auto focus area detection",
			"  [OK] Learning from outcomes")
	} else {
		lines = append(lines, "NOTE: Intelligence features will activate after 3+ debates")
	}

	lines = append(lines, "", divider)
	return strings.Join(lines, "\n")
}

// mergeFocusAreas keeps the user's areas first, then appends suggestions.
func mergeFocusAreas(userAreas, suggested []string) []string {
	merged := append([]string(nil), userAreas...)
	for _, area := range suggested {
		found := false
		for _, existing := range merged {
			if existing == area {
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, area)
		}
	}
	return merged
}

// overallConfidence boosts the base prediction confidence per matched
// pattern and penalizes high-severity probable risks.
func overallConfidence(prediction *RiskPrediction, patterns []*Pattern) float64 {
	boost := float64(len(patterns)) * 0.1
	if boost > 0.3 {
		boost = 0.3
	}

	penalty := 0.0
	for _, risk := range prediction.PredictedRisks {
		if risk.Severity == "high" && risk.Probability > 0.7 {
			penalty += 0.15
		}
	}

	overall := prediction.Confidence + boost - penalty
	if overall < 0 {
		return 0
	}
	if overall > 1 {
		return 1
	}
	return overall
}
