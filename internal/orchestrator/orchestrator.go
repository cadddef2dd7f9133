// Package orchestrator coordinates one debate end to end: context
// extraction, cache probes, parallel adapter invocation, fast moderation,
// intelligence enhancement and history persistence.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dev.helix.debate/internal/cache"
	"dev.helix.debate/internal/contextopt"
	"dev.helix.debate/internal/history"
	"dev.helix.debate/internal/intelligence"
	"dev.helix.debate/internal/llm"
	"dev.helix.debate/internal/moderator"
	"dev.helix.debate/internal/models"
	"dev.helix.debate/internal/priority"
)

// Default scores when a reviewer does not state one, and the lower defaults
// used when an invocation fails outright.
const (
	primaryDefaultScore = 80
	counterDefaultScore = 75
	primaryErrorScore   = 75
	counterErrorScore   = 70
)

const summaryLength = 200

// Config selects which orchestrator stages are active and where their
// state lives.
type Config struct {
	CacheDir    string
	CacheTTL    time.Duration
	EnableCache bool

	HistoryRoot   string
	EnableHistory bool

	EnableIntelligence bool

	MaxContextLines int
}

// DefaultConfig returns the standard stage selection: everything on.
func DefaultConfig(root string) *Config {
	return &Config{
		CacheDir:           root + "/cache",
		CacheTTL:           cache.DefaultTTL,
		EnableCache:        true,
		HistoryRoot:        root + "/history",
		EnableHistory:      true,
		EnableIntelligence: true,
		MaxContextLines:    contextopt.DefaultMaxLines,
	}
}

// Result is the complete outcome of one orchestrated debate.
type Result struct {
	DebateResult *models.DebateResult            `json:"debate_result"`
	Stats        models.Stats                    `json:"performance_stats"`
	CacheHit     bool                            `json:"cache_hit"`
	TotalTime    float64                         `json:"total_time"`
	DebateID     string                          `json:"debate_id,omitempty"`
	PreDebate    *intelligence.PreDebateAnalysis `json:"pre_debate_analysis,omitempty"`
}

// Orchestrator runs debates over a fixed primary/counter adapter pair.
type Orchestrator struct {
	primary llm.Provider
	counter llm.Provider

	cache       *cache.ResponseCache
	history     *history.Store
	recommender *intelligence.SmartRecommender

	maxContextLines int
	log             *logrus.Logger
}

// New wires the orchestrator stages per cfg. Intelligence requires history;
// it is silently skipped without it.
func New(cfg *Config, primary, counter llm.Provider, log *logrus.Logger) (*Orchestrator, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if primary == nil || counter == nil {
		return nil, fmt.Errorf("orchestrator requires a primary and a counter adapter")
	}

	o := &Orchestrator{
		primary:         primary,
		counter:         counter,
		maxContextLines: cfg.MaxContextLines,
		log:             log,
	}
	if o.maxContextLines <= 0 {
		o.maxContextLines = contextopt.DefaultMaxLines
	}

	if cfg.EnableCache {
		o.cache = cache.New(cfg.CacheDir, cfg.CacheTTL, log)
	}
	if cfg.EnableHistory {
		store, err := history.NewStore(cfg.HistoryRoot, log)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
		o.history = store

		if cfg.EnableIntelligence {
			detector := intelligence.NewPatternDetector(store, log)
			predictor := intelligence.NewRiskPredictor(detector)
			learner := intelligence.NewDecisionLearner(store, detector, log)
			o.recommender = intelligence.NewSmartRecommender(store, detector, predictor, learner)
		}
	}
	return o, nil
}

// invocation is one reviewer's contribution before moderation. Placeholder
// results from failed invocations are marked so they are never cached.
type invocation struct {
	score       int
	text        string
	placeholder bool
}

// RunDebate runs the full pipeline for one request against one file.
// Cancellation discards partial results and writes nothing.
func (o *Orchestrator) RunDebate(ctx context.Context, request, filePath string, focusAreas []string) (*Result, error) {
	start := time.Now()
	var stats models.Stats

	var preDebate *intelligence.PreDebateAnalysis
	if o.recommender != nil {
		intelStart := time.Now()
		analysis, err := o.recommender.AnalyzePreDebate(request, filePath, focusAreas)
		if err != nil {
			o.log.WithError(err).Warn("Pre-debate analysis failed, continuing without intelligence")
		} else {
			preDebate = analysis
			if len(focusAreas) == 0 {
				focusAreas = analysis.SuggestedFocusAreas
			}
		}
		stats.IntelligenceTime = time.Since(intelStart).Seconds()
	}
	if len(focusAreas) == 0 {
		focusAreas = contextopt.InferFocusAreas(request)
	}

	contextStart := time.Now()
	excerpt := contextopt.ExtractRelevantContext(filePath, focusAreas, o.maxContextLines)
	stats.ContextExtractionTime = time.Since(contextStart).Seconds()

	fileHash := ""
	if o.cache != nil {
		fileHash = cache.HashFile(filePath)
	}

	primaryPrompt := contextopt.CreateFocusedPrompt(request, excerpt, focusAreas) +
		"\n\n**IMPORTANT: End your response with a numerical score (0-100) like 'Score: 85/100'**"
	counterPrompt := buildCounterPrompt(request, excerpt, focusAreas)

	var primaryResult, counterResult *invocation
	if o.cache != nil {
		if text, ok := o.cache.Get(primaryPrompt, fileHash); ok {
			primaryResult = &invocation{score: llm.ExtractScore(text, primaryDefaultScore), text: text}
			stats.CacheHitClaude = true
		}
		if text, ok := o.cache.Get(counterPrompt, fileHash); ok {
			counterResult = &invocation{score: llm.ExtractScore(text, counterDefaultScore), text: text}
			stats.CacheHitCodex = true
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if primaryResult == nil {
		group.Go(func() error {
			callStart := time.Now()
			result, err := o.invoke(groupCtx, o.primary, primaryPrompt, primaryDefaultScore, primaryErrorScore)
			if err != nil {
				return err
			}
			stats.ClaudeTime = time.Since(callStart).Seconds()
			primaryResult = result
			if o.cache != nil && !result.placeholder {
				o.cache.Set(primaryPrompt, fileHash, result.text)
			}
			return nil
		})
	}
	if counterResult == nil {
		group.Go(func() error {
			callStart := time.Now()
			result, err := o.invoke(groupCtx, o.counter, counterPrompt, counterDefaultScore, counterErrorScore)
			if err != nil {
				return err
			}
			stats.CodexTime = time.Since(callStart).Seconds()
			counterResult = result
			if o.cache != nil && !result.placeholder {
				o.cache.Set(counterPrompt, fileHash, result.text)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	moderationStart := time.Now()
	consensus := moderator.Analyze(
		moderator.Input{Label: "Claude", Score: primaryResult.score, Response: primaryResult.text},
		moderator.Input{Label: "Codex", Score: counterResult.score, Response: counterResult.text},
		nil,
	)
	stats.ModerationTime = time.Since(moderationStart).Seconds()

	issues := extractIssues(consensus.Disagreements)
	if scored, err := priority.ScoreIssues(issues); err != nil {
		o.log.WithError(err).Warn("Issue scoring failed, keeping unscored issues")
	} else {
		issues = scored
	}

	stats.TotalTime = time.Since(start).Seconds()

	debateResult := &models.DebateResult{
		Request:        request,
		ConsensusScore: consensus.ConsensusScore,
		Interpretation: consensus.Interpretation,
		Recommendation: consensus.Recommendation,
		Participants: map[string]models.ParticipantResult{
			"claude": {Score: primaryResult.score, Summary: summarize(primaryResult.text)},
			"codex":  {Score: counterResult.score, Summary: summarize(counterResult.text)},
		},
		Disagreements:   consensus.Disagreements,
		Agreements:      consensus.Agreements,
		ScoreDifference: consensus.ScoreDifference,
		Issues:          issues,
		Stats:           stats,
	}

	if o.recommender != nil && preDebate != nil {
		enhanced, err := o.recommender.EnhanceDebateResult(debateResult, preDebate)
		if err != nil {
			o.log.WithError(err).Warn("Result enhancement failed, keeping unadjusted result")
		} else {
			debateResult = enhanced
		}
	}

	debateID := ""
	if o.history != nil {
		id, err := o.history.Save(request, filePath, debateResult, stats, focusAreas)
		if err != nil {
			o.log.WithError(err).Warn("Failed to archive debate")
		} else {
			debateID = id
			if preDebate != nil && len(preDebate.LearningPrep.PatternsToDetect) > 0 {
				if err := o.history.SetPatterns(id, preDebate.LearningPrep.PatternsToDetect); err != nil {
					o.log.WithError(err).Warn("Failed to annotate debate patterns")
				}
			}
		}
	}

	return &Result{
		DebateResult: debateResult,
		Stats:        stats,
		CacheHit:     stats.CacheHitClaude && stats.CacheHitCodex,
		TotalTime:    stats.TotalTime,
		DebateID:     debateID,
		PreDebate:    preDebate,
	}, nil
}

// invoke calls one adapter and normalizes its response. Backend failures
// degrade to a placeholder result; only cancellation aborts the debate.
func (o *Orchestrator) invoke(ctx context.Context, provider llm.Provider, prompt string, defaultScore, errorScore int) (*invocation, error) {
	response := provider.Invoke(ctx, prompt)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !response.Success {
		detail := response.Err
		if detail == "" {
			detail = "Unknown error"
		}
		o.log.WithFields(logrus.Fields{
			"adapter": provider.Name(),
			"error":   detail,
		}).Warn("Adapter invocation failed, using placeholder")
		return &invocation{
			score:       errorScore,
			text:        fmt.Sprintf("%s error: %s", provider.Name(), detail),
			placeholder: true,
		}, nil
	}
	return &invocation{
		score: llm.ExtractScore(response.Text, defaultScore),
		text:  response.Text,
	}, nil
}

// buildCounterPrompt frames the counter reviewer as a skeptical architect.
func buildCounterPrompt(request, excerpt string, focusAreas []string) string {
	var areaLines []string
	for _, area := range focusAreas {
		areaLines = append(areaLines, "- "+titleCase(strings.ReplaceAll(area, "_", " ")))
	}

	return fmt.Sprintf(`You are a senior software architect providing a COUNTER-PERSPECTIVE on this plan.

USER REQUEST:
%s

RELEVANT CONTEXT:
%s

FOCUS AREAS:
%s

Your task as a CRITICAL REVIEWER:
1. Provide YOUR independent analysis (be skeptical and critical)
2. Identify risks and concerns that others might miss
3. Suggest alternative approaches if the current plan has flaws
4. End with recommendation and numerical score (0-100)

Be specific, actionable, and CRITICAL. Focus on %s.

**IMPORTANT: End your response with a score like 'Score: 75/100'**
`, request, excerpt, strings.Join(areaLines, "\n"), strings.Join(focusAreas, ", "))
}

// PerformanceReport renders one debate's timing breakdown.
func PerformanceReport(stats models.Stats) string {
	divider := strings.Repeat("=", 60)
	lines := []string{divider, "PARALLEL DEBATE PERFORMANCE REPORT", divider, ""}

	lines = append(lines, fmt.Sprintf("Total Time: %.2f seconds", stats.TotalTime), "")

	cachedNote := func(hit bool) string {
		if hit {
			return " (cached)"
		}
		return ""
	}
	lines = append(lines,
		"Breakdown:",
		fmt.Sprintf("  Context Extraction: %.2fs", stats.ContextExtractionTime),
		fmt.Sprintf("  Primary Review:     %.2fs%s", stats.ClaudeTime, cachedNote(stats.CacheHitClaude)),
		fmt.Sprintf("  Counter Review:     %.2fs%s", stats.CodexTime, cachedNote(stats.CacheHitCodex)),
		fmt.Sprintf("  Moderation:         %.2fs", stats.ModerationTime),
		"")

	cacheHits := 0
	if stats.CacheHitClaude {
		cacheHits++
	}
	if stats.CacheHitCodex {
		cacheHits++
	}
	lines = append(lines, fmt.Sprintf("Cache Hits: %d/2", cacheHits))
	switch cacheHits {
	case 2:
		lines = append(lines, "  Status: FULL CACHE HIT (instant result)")
	case 1:
		lines = append(lines, "  Status: PARTIAL CACHE HIT (50% faster)")
	default:
		lines = append(lines, "  Status: CACHE MISS (full LLM calls)")
	}
	lines = append(lines, "")

	const baseline = 60.0
	if stats.TotalTime < baseline {
		speedup := (baseline - stats.TotalTime) / baseline * 100
		lines = append(lines, fmt.Sprintf("Speedup: %.0f%% faster than baseline (%.0fs)", speedup, baseline))
	} else {
		lines = append(lines, "Note: Slower than baseline (network latency or large file)")
	}
	lines = append(lines, "", divider)

	return strings.Join(lines, "\n")
}

func summarize(text string) string {
	if len(text) <= summaryLength {
		return text
	}
	return text[:summaryLength]
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
