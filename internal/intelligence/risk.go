package intelligence

import (
	"fmt"
	"sort"
	"strings"
)

// PredictedRisk is one anticipated problem with its likelihood.
type PredictedRisk struct {
	Name        string   `json:"name"`
	Probability float64  `json:"probability"`
	Severity    string   `json:"severity"`
	Evidence    string   `json:"evidence"`
	Pattern     *Pattern `json:"pattern,omitempty"`
}

// RiskPrediction is the full pre-debate risk assessment.
type RiskPrediction struct {
	PredictedRisks      []PredictedRisk `json:"predicted_risks"`
	PatternMatches      []*Pattern      `json:"pattern_matches"`
	SuggestedFocusAreas []string        `json:"suggested_focus_areas"`
	Confidence          float64         `json:"confidence"`
	ShouldProceed       bool            `json:"should_proceed"`
	Note                string          `json:"note,omitempty"`
}

// AutoSuggestions is the predictor's debate-setup advice.
type AutoSuggestions struct {
	FocusAreas        []string `json:"focus_areas"`
	ExpectedConsensus int      `json:"expected_consensus"`
	EstimatedTime     float64  `json:"estimated_time"`
	Warnings          []string `json:"warnings"`
	Confidence        float64  `json:"confidence"`
}

// riskToFocus maps each named risk to the focus area that addresses it.
var riskToFocus = map[string]string{
	"circular_imports":       "architecture",
	"transaction_boundaries": "database",
	"missing_migration":      "database",
	"tight_coupling":         "architecture",
	"unclear_interfaces":     "architecture",
	"insufficient_testing":   "testing",
	"performance_regression": "performance",
	"backward_compatibility": "architecture",
}

var severityWeight = map[string]float64{
	"high":   1.0,
	"medium": 0.7,
	"low":    0.4,
}

// RiskPredictor predicts likely risks from historical patterns before a
// debate starts.
type RiskPredictor struct {
	detector *PatternDetector
}

// NewRiskPredictor builds a predictor over the given detector.
func NewRiskPredictor(detector *PatternDetector) *RiskPredictor {
	return &RiskPredictor{detector: detector}
}

// PredictRisks matches the request against known patterns. Without
// historical data the prediction is empty and the debate proceeds normally.
func (p *RiskPredictor) PredictRisks(request, filePath string, focusAreas []string) (*RiskPrediction, error) {
	patterns, err := p.detector.PatternsForRequest(request, filePath, 10)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return &RiskPrediction{
			PredictedRisks:      []PredictedRisk{},
			PatternMatches:      []*Pattern{},
			SuggestedFocusAreas: append([]string(nil), focusAreas...),
			Confidence:          0.0,
			ShouldProceed:       true,
			Note:                "No historical patterns found. Proceeding with standard debate.",
		}, nil
	}

	risks := extractRisks(patterns)
	confidence := predictionConfidence(patterns)
	suggested := suggestFocusAreas(patterns, risks, focusAreas)
	shouldProceed := shouldProceed(risks, confidence)

	matches := patterns
	if len(matches) > 5 {
		matches = matches[:5]
	}
	return &RiskPrediction{
		PredictedRisks:      risks,
		PatternMatches:      matches,
		SuggestedFocusAreas: suggested,
		Confidence:          round2(confidence),
		ShouldProceed:       shouldProceed,
	}, nil
}

// extractRisks keeps the highest-probability prediction per risk name,
// sorted by probability weighted by severity.
func extractRisks(patterns []*Pattern) []PredictedRisk {
	byName := map[string]PredictedRisk{}

	for _, pattern := range patterns {
		if pattern.Type != "risk" {
			continue
		}
		probability := riskProbability(pattern)
		existing, ok := byName[pattern.Name]
		if ok && existing.Probability >= probability {
			continue
		}
		byName[pattern.Name] = PredictedRisk{
			Name:        pattern.Name,
			Probability: probability,
			Severity:    riskSeverity(pattern),
			Evidence: fmt.Sprintf("Detected in %d previous debates (avg consensus: %.1f/100)",
				pattern.Frequency, pattern.AvgConsensus),
			Pattern: pattern,
		}
	}

	risks := make([]PredictedRisk, 0, len(byName))
	for _, risk := range byName {
		risks = append(risks, risk)
	}
	sort.SliceStable(risks, func(i, j int) bool {
		wi := risks[i].Probability * severityWeight[risks[i].Severity]
		wj := risks[j].Probability * severityWeight[risks[j].Severity]
		if wi != wj {
			return wi > wj
		}
		return risks[i].Name < risks[j].Name
	})
	return risks
}

// riskProbability blends frequency, failure rate and relevance.
func riskProbability(pattern *Pattern) float64 {
	frequency := float64(pattern.Frequency) / 10
	if frequency > 1 {
		frequency = 1
	}

	successRate := 0.5
	if pattern.SuccessRate != nil {
		successRate = *pattern.SuccessRate
	}

	relevance := pattern.RelevanceScore / 100
	if relevance > 1 {
		relevance = 1
	}

	probability := frequency*0.4 + (1-successRate)*0.3 + relevance*0.3
	if probability > 1 {
		probability = 1
	}
	return probability
}

// riskSeverity keys off the pattern's average consensus: debates that
// agreed less signal worse risks.
func riskSeverity(pattern *Pattern) string {
	avg := pattern.AvgConsensus
	if avg == 0 {
		avg = 70
	}
	switch {
	case avg < 50:
		return "high"
	case avg < 70:
		return "medium"
	default:
		return "low"
	}
}

// predictionConfidence grows with the number, frequency and relevance of
// matched patterns.
func predictionConfidence(patterns []*Pattern) float64 {
	if len(patterns) == 0 {
		return 0
	}

	countScore := float64(len(patterns)) / 5
	if countScore > 1 {
		countScore = 1
	}

	totalFreq, totalRel := 0.0, 0.0
	for _, p := range patterns {
		totalFreq += float64(p.Frequency)
		totalRel += p.RelevanceScore
	}
	freqScore := totalFreq / float64(len(patterns)) / 10
	if freqScore > 1 {
		freqScore = 1
	}
	relScore := totalRel / float64(len(patterns)) / 100
	if relScore > 1 {
		relScore = 1
	}

	confidence := countScore*0.4 + freqScore*0.3 + relScore*0.3
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// suggestFocusAreas unions the user's areas, matched focus patterns and the
// focus areas mapped from the top three risks.
func suggestFocusAreas(patterns []*Pattern, risks []PredictedRisk, existing []string) []string {
	suggested := map[string]bool{}
	for _, area := range existing {
		suggested[area] = true
	}

	for i, pattern := range patterns {
		if i >= 5 {
			break
		}
		if pattern.Type == "focus_pattern" {
			for _, area := range pattern.FocusAreas {
				suggested[area] = true
			}
		}
	}

	for i, risk := range risks {
		if i >= 3 {
			break
		}
		if focus, ok := riskToFocus[risk.Name]; ok {
			suggested[focus] = true
		}
	}

	out := make([]string, 0, len(suggested))
	for area := range suggested {
		out = append(out, area)
	}
	sort.Strings(out)
	return out
}

// shouldProceed is false only for a high-confidence prediction of a
// high-severity, high-probability risk.
func shouldProceed(risks []PredictedRisk, confidence float64) bool {
	for _, risk := range risks {
		if risk.Severity == "high" && risk.Probability > 0.7 && confidence > 0.6 {
			return false
		}
	}
	return true
}

// PredictionSummary renders the risk prediction for display.
func (p *RiskPredictor) PredictionSummary(prediction *RiskPrediction) string {
	divider := strings.Repeat("=", 60)
	lines := []string{divider, "RISK PREDICTION ANALYSIS", divider, ""}

	lines = append(lines, fmt.Sprintf("Prediction Confidence: %.0f%%", prediction.Confidence*100), "")

	if len(prediction.PatternMatches) > 0 {
		lines = append(lines, "Pattern Matches:")
		for i, pattern := range prediction.PatternMatches {
			if i >= 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("  %d. %s (frequency: %d, relevance: %.0f%%)",
				i+1, pattern.Name, pattern.Frequency, pattern.RelevanceScore))
		}
		lines = append(lines, "")
	}

	if len(prediction.PredictedRisks) > 0 {
		lines = append(lines, "Predicted Risks:")
		for i, risk := range prediction.PredictedRisks {
			lines = append(lines, fmt.Sprintf("  %d. [%s] %s (probability: %.0f%%)",
				i+1, strings.ToUpper(risk.Severity), risk.Name, risk.Probability*100))
			lines = append(lines, "     "+risk.Evidence)
		}
		lines = append(lines, "")
	}

	if len(prediction.SuggestedFocusAreas) > 0 {
		lines = append(lines, "Suggested Focus Areas:")
		for _, area := range prediction.SuggestedFocusAreas {
			lines = append(lines, "  - "+area)
		}
		lines = append(lines, "")
	}

	if !prediction.ShouldProceed {
		lines = append(lines,
			"[WARNING] High-confidence critical risks detected!",
			"Review risks carefully before proceeding with debate.")
	} else {
		lines = append(lines, "[OK] Proceeding with debate (risks identified, manageable)")
	}

	lines = append(lines, "", divider)
	return strings.Join(lines, "\n")
}

// AutoSuggest proposes focus areas, an expected consensus and a time
// estimate for one request.
func (p *RiskPredictor) AutoSuggest(request, filePath string) (*AutoSuggestions, error) {
	prediction, err := p.PredictRisks(request, filePath, nil)
	if err != nil {
		return nil, err
	}

	expectedConsensus := 70
	if len(prediction.PatternMatches) > 0 {
		n := len(prediction.PatternMatches)
		if n > 3 {
			n = 3
		}
		total := 0.0
		for i := 0; i < n; i++ {
			avg := prediction.PatternMatches[i].AvgConsensus
			if avg == 0 {
				avg = 70
			}
			total += avg
		}
		expectedConsensus = int(total / float64(n))
	}

	estimatedTime := 20.0
	if len(prediction.SuggestedFocusAreas) > 3 {
		estimatedTime += 5.0
	}

	var warnings []string
	for _, risk := range prediction.PredictedRisks {
		if risk.Severity == "high" && risk.Probability > 0.7 {
			warnings = append(warnings, fmt.Sprintf("High risk: %s (%.0f%% probability)",
				risk.Name, risk.Probability*100))
		}
	}
	if !prediction.ShouldProceed {
		warnings = append([]string{"CRITICAL: Multiple high-severity risks detected"}, warnings...)
	}

	return &AutoSuggestions{
		FocusAreas:        prediction.SuggestedFocusAreas,
		ExpectedConsensus: expectedConsensus,
		EstimatedTime:     estimatedTime,
		Warnings:          warnings,
		Confidence:        prediction.Confidence,
	}, nil
}
