// Package intelligence learns from the debate archive: recurring risk
// patterns, pre-debate risk prediction, outcome-based rule learning and the
// recommender that ties them together. Everything here is rule-based text
// analysis over history records, never a model call.
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

// Pattern detection defaults.
const (
	MinDebatesForPatterns = 3
	MinPatternFrequency   = 2
)

// RiskKeywords maps each named risk to the keywords that signal it in
// disagreement text.
var RiskKeywords = map[string][]string{
	"circular_imports":       {"circular", "import", "dependency", "cycle"},
	"transaction_boundaries": {"transaction", "atomic", "rollback", "commit"},
	"missing_migration":      {"migration", "schema", "database", "alter"},
	"tight_coupling":         {"coupling", "dependency", "tightly", "coupled"},
	"unclear_interfaces":     {"interface", "contract", "api", "boundary"},
	"insufficient_testing":   {"test", "coverage", "untested", "missing test"},
	"performance_regression": {"performance", "slow", "optimization", "regression"},
	"backward_compatibility": {"backward", "compatibility", "breaking", "deprecated"},
}

// riskNames returns risk identifiers in a stable order.
func riskNames() []string {
	names := make([]string, 0, len(RiskKeywords))
	for name := range RiskKeywords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Occurrence ties a pattern hit to the debate it occurred in.
type Occurrence struct {
	DebateID  string `json:"debate_id"`
	Consensus int    `json:"consensus"`
	Outcome   string `json:"outcome"`
}

// Pattern is one detected regularity in the archive. SuccessRate is nil for
// pattern types that carry no outcome data.
type Pattern struct {
	Type           string       `json:"type"`
	Name           string       `json:"name"`
	Frequency      int          `json:"frequency"`
	AvgConsensus   float64      `json:"avg_consensus"`
	SuccessRate    *float64     `json:"success_rate,omitempty"`
	Keywords       []string     `json:"keywords,omitempty"`
	FocusAreas     []string     `json:"focus_areas,omitempty"`
	FileSizeRange  string       `json:"file_size_range,omitempty"`
	ConsensusRange string       `json:"consensus_range,omitempty"`
	SampleDebates  []string     `json:"sample_debates,omitempty"`
	Occurrences    []Occurrence `json:"occurrences,omitempty"`
	PriorityScore  float64      `json:"priority_score"`
	RelevanceScore float64      `json:"relevance_score,omitempty"`
}

type patternCache struct {
	TotalDebates int        `json:"total_debates"`
	LastUpdated  string     `json:"last_updated"`
	Patterns     []*Pattern `json:"patterns"`
}

// PatternDetector extracts recurring patterns from the history store.
type PatternDetector struct {
	store *history.Store
	log   *logrus.Logger
}

// NewPatternDetector builds a detector over the given archive.
func NewPatternDetector(store *history.Store, log *logrus.Logger) *PatternDetector {
	if log == nil {
		log = logrus.New()
	}
	return &PatternDetector{store: store, log: log}
}

func (d *PatternDetector) cachePath() string {
	return filepath.Join(d.store.PatternsDir(), "pattern_index.json")
}

// DetectPatterns analyzes the archive for risk, file-size, focus-area and
// consensus patterns, ranked by priority. Results are cached until the
// archive grows; forceRefresh bypasses the cache.
func (d *PatternDetector) DetectPatterns(forceRefresh bool) ([]*Pattern, error) {
	if !forceRefresh {
		if cached := d.loadCache(); cached != nil && cached.TotalDebates >= MinDebatesForPatterns {
			return cached.Patterns, nil
		}
	}

	debates, err := d.store.QueryDebates(history.Query{Limit: 1000})
	if err != nil {
		return nil, err
	}
	if len(debates) < MinDebatesForPatterns {
		return nil, nil
	}

	var patterns []*Pattern
	patterns = append(patterns, d.detectRiskPatterns(debates)...)
	patterns = append(patterns, d.detectFilePatterns(debates)...)
	patterns = append(patterns, d.detectFocusPatterns(debates)...)
	patterns = append(patterns, d.detectConsensusPatterns(debates)...)

	rankPatterns(patterns, len(debates))

	cache := &patternCache{
		TotalDebates: len(debates),
		LastUpdated:  history.NewDebateID(time.Now()),
		Patterns:     patterns,
	}
	if data, err := json.MarshalIndent(cache, "", "  "); err == nil {
		if err := os.WriteFile(d.cachePath(), data, 0o644); err != nil {
			d.log.WithError(err).Warn("Failed to write pattern cache")
		}
	}
	return patterns, nil
}

func (d *PatternDetector) loadCache() *patternCache {
	data, err := os.ReadFile(d.cachePath())
	if err != nil {
		return nil
	}
	var cache patternCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil
	}
	return &cache
}

// detectRiskPatterns scans disagreement text for the risk keyword sets.
func (d *PatternDetector) detectRiskPatterns(debates []*history.Record) []*Pattern {
	occurrences := make(map[string][]Occurrence)

	for _, debate := range debates {
		var parts []string
		for _, s := range debate.Disagreements {
			parts = append(parts, s.Text)
		}
		text := strings.ToLower(strings.Join(parts, " "))

		for _, riskName := range riskNames() {
			for _, keyword := range RiskKeywords[riskName] {
				if strings.Contains(text, keyword) {
					outcome := debate.Outcome
					if outcome == "" {
						outcome = models.OutcomePending
					}
					occurrences[riskName] = append(occurrences[riskName], Occurrence{
						DebateID:  debate.DebateID,
						Consensus: debate.ConsensusScore,
						Outcome:   outcome,
					})
					break
				}
			}
		}
	}

	var patterns []*Pattern
	for _, riskName := range riskNames() {
		occ := occurrences[riskName]
		if len(occ) < MinPatternFrequency {
			continue
		}

		totalConsensus := 0
		succeeded, decided := 0, 0
		for _, o := range occ {
			totalConsensus += o.Consensus
			if o.Outcome != models.OutcomePending {
				decided++
				if o.Outcome == models.OutcomeSucceeded {
					succeeded++
				}
			}
		}
		successRate := 0.0
		if decided > 0 {
			successRate = round2(float64(succeeded) / float64(decided))
		}

		patterns = append(patterns, &Pattern{
			Type:         "risk",
			Name:         riskName,
			Frequency:    len(occ),
			AvgConsensus: round1(float64(totalConsensus) / float64(len(occ))),
			SuccessRate:  &successRate,
			Occurrences:  occ,
			Keywords:     RiskKeywords[riskName],
		})
	}
	return patterns
}

var refactorIntentKeywords = []string{"refactor", "split", "extract", "reorganize"}

// detectFilePatterns groups debates by rough file size and flags refactor
// clusters. Line counts are estimated at 50 bytes per line.
func (d *PatternDetector) detectFilePatterns(debates []*history.Record) []*Pattern {
	groups := map[string][]*history.Record{}
	for _, debate := range debates {
		lines := debate.FileSize / 50
		switch {
		case lines < 500:
			groups["small"] = append(groups["small"], debate)
		case lines < 1500:
			groups["medium"] = append(groups["medium"], debate)
		default:
			groups["large"] = append(groups["large"], debate)
		}
	}

	var patterns []*Pattern
	for _, sizeName := range []string{"small", "medium", "large"} {
		group := groups[sizeName]
		if len(group) < MinPatternFrequency {
			continue
		}

		refactorCount := 0
		for _, debate := range group {
			request := strings.ToLower(debate.Request)
			for _, kw := range refactorIntentKeywords {
				if strings.Contains(request, kw) {
					refactorCount++
					break
				}
			}
		}
		if refactorCount < MinPatternFrequency {
			continue
		}

		totalConsensus := 0
		for _, debate := range group {
			totalConsensus += debate.ConsensusScore
		}

		var samples []string
		for i, debate := range group {
			if i >= 3 {
				break
			}
			samples = append(samples, debate.DebateID)
		}

		patterns = append(patterns, &Pattern{
			Type:          "file_pattern",
			Name:          sizeName + "_file_refactoring",
			Frequency:     refactorCount,
			AvgConsensus:  round1(float64(totalConsensus) / float64(len(group))),
			FileSizeRange: sizeName,
			SampleDebates: samples,
		})
	}
	return patterns
}

// detectFocusPatterns counts recurring focus-area combinations.
func (d *PatternDetector) detectFocusPatterns(debates []*history.Record) []*Pattern {
	combos := map[string][]*history.Record{}
	for _, debate := range debates {
		if len(debate.FocusAreas) == 0 {
			continue
		}
		areas := append([]string(nil), debate.FocusAreas...)
		sort.Strings(areas)
		key := strings.Join(areas, "_")
		combos[key] = append(combos[key], debate)
	}

	keys := make([]string, 0, len(combos))
	for key := range combos {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var patterns []*Pattern
	for _, key := range keys {
		group := combos[key]
		if len(group) < MinPatternFrequency {
			continue
		}

		totalConsensus := 0
		for _, debate := range group {
			totalConsensus += debate.ConsensusScore
		}
		var samples []string
		for i, debate := range group {
			if i >= 3 {
				break
			}
			samples = append(samples, debate.DebateID)
		}

		areas := append([]string(nil), group[0].FocusAreas...)
		sort.Strings(areas)

		patterns = append(patterns, &Pattern{
			Type:          "focus_pattern",
			Name:          key,
			Frequency:     len(group),
			FocusAreas:    areas,
			AvgConsensus:  round1(float64(totalConsensus) / float64(len(group))),
			SampleDebates: samples,
		})
	}
	return patterns
}

// detectConsensusPatterns computes success rates per consensus band.
func (d *PatternDetector) detectConsensusPatterns(debates []*history.Record) []*Pattern {
	bands := []struct {
		name     string
		min, max int
	}{
		{"low", 0, 50},
		{"medium", 50, 70},
		{"high", 70, 85},
		{"very_high", 85, 101},
	}

	var patterns []*Pattern
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

		succeeded, decided := 0, 0
		totalConsensus := 0
		for _, debate := range group {
			totalConsensus += debate.ConsensusScore
			if debate.Outcome != models.OutcomePending && debate.Outcome != "" {
				decided++
				if debate.Outcome == models.OutcomeSucceeded {
					succeeded++
				}
			}
		}
		if decided == 0 {
			continue
		}
		successRate := round2(float64(succeeded) / float64(decided))

		patterns = append(patterns, &Pattern{
			Type:           "consensus_pattern",
			Name:           band.name + "_consensus",
			Frequency:      len(group),
			ConsensusRange: band.name,
			SuccessRate:    &successRate,
			AvgConsensus:   round1(float64(totalConsensus) / float64(len(group))),
		})
	}
	return patterns
}

// rankPatterns assigns priority scores in place and sorts descending.
// Frequent, low-consensus, low-success patterns rank highest.
func rankPatterns(patterns []*Pattern, totalDebates int) {
	for _, p := range patterns {
		frequencyScore := float64(p.Frequency) / float64(totalDebates) * 100
		if frequencyScore > 50 {
			frequencyScore = 50
		}

		avgConsensus := p.AvgConsensus
		if avgConsensus == 0 {
			avgConsensus = 70
		}
		consensusImpact := 100 - avgConsensus

		successPenalty := 0.0
		if p.SuccessRate != nil {
			successPenalty = (1 - *p.SuccessRate) * 30
		}

		score := frequencyScore + consensusImpact*0.3 + successPenalty
		if score > 100 {
			score = 100
		}
		p.PriorityScore = round1(score)
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].PriorityScore > patterns[j].PriorityScore
	})
}

// PatternsForRequest scores detected patterns by relevance to one request
// and returns the top K matches.
func (d *PatternDetector) PatternsForRequest(request, filePath string, topK int) ([]*Pattern, error) {
	all, err := d.DetectPatterns(false)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	requestLower := strings.ToLower(request)

	var scored []*Pattern
	for _, pattern := range all {
		relevance := 0.0

		switch pattern.Type {
		case "risk":
			for _, kw := range pattern.Keywords {
				if strings.Contains(requestLower, kw) {
					relevance += 50
					break
				}
			}
		case "focus_pattern":
			for _, area := range pattern.FocusAreas {
				if strings.Contains(requestLower, area) {
					relevance += 40
					break
				}
			}
		case "file_pattern":
			if filePath != "" {
				if data, err := os.ReadFile(filePath); err == nil {
					lines := len(data) / 50
					switch {
					case pattern.FileSizeRange == "large" && lines > 1500:
						relevance += 60
					case pattern.FileSizeRange == "medium" && lines >= 500 && lines < 1500:
						relevance += 60
					case pattern.FileSizeRange == "small" && lines < 500:
						relevance += 60
					}
				}
			}
		}

		relevance += pattern.PriorityScore * 0.3
		if relevance <= 0 {
			continue
		}

		copied := *pattern
		copied.RelevanceScore = round1(relevance)
		scored = append(scored, &copied)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RelevanceScore > scored[j].RelevanceScore
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// PatternSummary renders a human-readable overview of all patterns.
func (d *PatternDetector) PatternSummary() string {
	patterns, err := d.DetectPatterns(false)
	if err != nil || len(patterns) == 0 {
		return "No patterns detected yet. Run more debates to build pattern history."
	}

	divider := strings.Repeat("=", 60)
	lines := []string{divider, "PATTERN DETECTION SUMMARY", divider, ""}

	byType := map[string][]*Pattern{}
	for _, p := range patterns {
		byType[p.Type] = append(byType[p.Type], p)
	}

	appendGroup := func(header string, group []*Pattern, limit int) {
		if len(group) == 0 {
			return
		}
		lines = append(lines, header)
		for i, p := range group {
			if limit > 0 && i >= limit {
				break
			}
			lines = append(lines, fmt.Sprintf("  - %s: %d occurrences, avg consensus %.1f/100",
				p.Name, p.Frequency, p.AvgConsensus))
		}
		lines = append(lines, "")
	}

	appendGroup("RISK PATTERNS:", byType["risk"], 5)
	appendGroup("FILE PATTERNS:", byType["file_pattern"], 0)
	appendGroup("FOCUS AREA PATTERNS:", byType["focus_pattern"], 5)

	if group := byType["consensus_pattern"]; len(group) > 0 {
		lines = append(lines, "CONSENSUS PATTERNS:")
		for _, p := range group {
			rate := 0.0
			if p.SuccessRate != nil {
				rate = *p.SuccessRate
			}
			lines = append(lines, fmt.Sprintf("  - %s: success rate %.0f%%", p.Name, rate*100))
		}
		lines = append(lines, "")
	}

	lines = append(lines, divider)
	return strings.Join(lines, "\n")
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
