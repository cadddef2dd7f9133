// Package engine drives the iterative debate loop: debate, revise the plan
// toward the target consensus, re-debate, and keep the best result across
// iterations.
package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.debate/internal/config"
	"dev.helix.debate/internal/models"
	"dev.helix.debate/internal/orchestrator"
	"dev.helix.debate/internal/revision"
)

// Debater runs one complete debate. The orchestrator implements it.
type Debater interface {
	RunDebate(ctx context.Context, request, filePath string, focusAreas []string) (*orchestrator.Result, error)
}

// Iteration records one loop pass.
type Iteration struct {
	Iteration       int            `json:"iteration"`
	Type            string         `json:"type"`
	ConsensusScore  int            `json:"consensus_score"`
	IssuesAddressed []models.Issue `json:"issues_addressed"`
	RevisionSummary string         `json:"revision_summary,omitempty"`
	TimeSeconds     float64        `json:"time_seconds"`
	IsBest          bool           `json:"is_best"`
}

// Result is the complete outcome of an iterative debate run.
type Result struct {
	BestResult    *models.DebateResult `json:"best_result"`
	BestConsensus int                  `json:"best_consensus"`
	BestIteration int                  `json:"best_iteration"`

	FinalConsensus  int `json:"final_consensus"`
	TotalIterations int `json:"total_iterations"`

	Iterations []*Iteration `json:"iterations"`

	TargetConsensus int     `json:"target_consensus"`
	TargetReached   bool    `json:"target_reached"`
	TotalTime       float64 `json:"total_time"`

	Warnings []string `json:"warnings"`

	PlanFilePath   string `json:"plan_file_path"`
	FinalPlanHash  string `json:"final_plan_hash"`
	TotalRevisions int    `json:"total_revisions"`
}

// Engine couples a debater with the reviser and delta tracker.
type Engine struct {
	debater Debater
	reviser *revision.Reviser
	delta   *revision.DeltaTracker
	cfg     *config.Config
	log     *logrus.Logger
}

// New builds an iterative engine. A nil cfg uses the defaults.
func New(debater Debater, reviser *revision.Reviser, delta *revision.DeltaTracker, cfg *config.Config, log *logrus.Logger) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{debater: debater, reviser: reviser, delta: delta, cfg: cfg, log: log}
}

// run tracks the mutable state of one iterative debate.
type run struct {
	iterations    []*Iteration
	bestResult    *models.DebateResult
	bestConsensus int
	bestIteration int

	previousDebateID string
	warnings         []string
	totalRevisions   int
}

// RunIterativeDebate debates, revises and re-debates until the target
// consensus is reached or iterations are exhausted. The plan file is
// overwritten with each accepted revision. Zero targetConsensus or
// maxIterations fall back to the configured values.
func (e *Engine) RunIterativeDebate(ctx context.Context, topic, filePath string, focusAreas []string, targetConsensus, maxIterations int) (*Result, error) {
	start := time.Now()

	if targetConsensus <= 0 {
		targetConsensus = e.cfg.TargetConsensus
	}
	if maxIterations <= 0 {
		maxIterations = e.cfg.MaxRounds
	}

	state := &run{}

	// Iteration 1 is always a full debate.
	iterStart := time.Now()
	debate, err := e.debater.RunDebate(ctx, topic, filePath, focusAreas)
	if err != nil {
		return nil, err
	}
	consensus := debate.DebateResult.ConsensusScore

	state.iterations = append(state.iterations, &Iteration{
		Iteration:      1,
		Type:           "full_debate",
		ConsensusScore: consensus,
		TimeSeconds:    time.Since(iterStart).Seconds(),
		IsBest:         true,
	})
	state.bestResult = debate.DebateResult
	state.bestConsensus = consensus
	state.bestIteration = 1

	e.saveDebateForDelta(state, filePath, debate.DebateResult)

	if consensus >= targetConsensus {
		return e.formatResult(state, targetConsensus, time.Since(start).Seconds(), filePath), nil
	}

	previousConsensus := consensus
	noImprovementCount := 0
	lastResult := debate.DebateResult

	for iteration := 2; iteration <= maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		iterStart = time.Now()

		revised := e.reviser.RevisePlan(ctx, filePath, lastResult, targetConsensus)
		if !revised.Success {
			state.warnings = append(state.warnings,
				fmt.Sprintf("Iteration %d: Revision failed - %s", iteration, revised.Err))
			continue
		}

		if err := os.WriteFile(filePath, []byte(revised.RevisedContent), 0o644); err != nil {
			state.warnings = append(state.warnings,
				fmt.Sprintf("Iteration %d: File write failed - %v", iteration, err))
			continue
		}
		state.totalRevisions++

		debateType := "full_debate"
		changeInfo, err := e.delta.DetectChanges(filePath, state.previousDebateID)
		if err != nil {
			e.log.WithError(err).Warn("Change detection failed, falling back to full debate")
		} else if changeInfo.HasChanges && revision.ShouldUseDeltaMode(changeInfo) {
			debateType = "delta_debate"
		}

		debate, err = e.debater.RunDebate(ctx, topic, filePath, focusAreas)
		if err != nil {
			return nil, err
		}
		consensus = debate.DebateResult.ConsensusScore
		lastResult = debate.DebateResult

		isBest := false
		if consensus > state.bestConsensus {
			state.bestResult = debate.DebateResult
			state.bestConsensus = consensus
			state.bestIteration = iteration
			for _, record := range state.iterations {
				record.IsBest = false
			}
			isBest = true
		}

		state.iterations = append(state.iterations, &Iteration{
			Iteration:       iteration,
			Type:            debateType,
			ConsensusScore:  consensus,
			IssuesAddressed: revised.IssuesAddressed,
			RevisionSummary: revised.Summary,
			TimeSeconds:     time.Since(iterStart).Seconds(),
			IsBest:          isBest,
		})

		e.saveDebateForDelta(state, filePath, debate.DebateResult)

		if consensus >= targetConsensus {
			break
		}

		if consensus-previousConsensus < e.cfg.MinImprovement {
			noImprovementCount++
			if noImprovementCount >= 2 {
				state.warnings = append(state.warnings,
					fmt.Sprintf("No significant improvement in 2 consecutive iterations (iterations %d-%d)",
						iteration-1, iteration))
			}
		} else {
			noImprovementCount = 0
		}

		if consensus < previousConsensus-e.cfg.MaxRegression {
			state.warnings = append(state.warnings,
				fmt.Sprintf("Iteration %d: Regression detected (%d → %d, -%d points)",
					iteration, previousConsensus, consensus, previousConsensus-consensus))
		}

		previousConsensus = consensus
	}

	finalConsensus := 0
	if len(state.iterations) > 0 {
		finalConsensus = state.iterations[len(state.iterations)-1].ConsensusScore
	}
	if finalConsensus < targetConsensus {
		state.warnings = append(state.warnings,
			fmt.Sprintf("Target consensus %d not reached after %d iteration(s) (best: %d)",
				targetConsensus, len(state.iterations), state.bestConsensus))
	}

	return e.formatResult(state, targetConsensus, time.Since(start).Seconds(), filePath), nil
}

// saveDebateForDelta archives the debate snapshot for the next iteration's
// delta comparison. Failures degrade to full debates.
func (e *Engine) saveDebateForDelta(state *run, filePath string, result *models.DebateResult) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		e.log.WithError(err).Debug("plan unreadable, skipping delta snapshot")
		return
	}
	id, err := e.delta.SaveDebateResult(filePath, result, string(content), false)
	if err != nil {
		e.log.WithError(err).Warn("Failed to save delta snapshot")
		return
	}
	state.previousDebateID = id
}

func (e *Engine) formatResult(state *run, targetConsensus int, totalTime float64, filePath string) *Result {
	finalConsensus := 0
	if len(state.iterations) > 0 {
		finalConsensus = state.iterations[len(state.iterations)-1].ConsensusScore
	}
	if state.warnings == nil {
		state.warnings = []string{}
	}

	return &Result{
		BestResult:      state.bestResult,
		BestConsensus:   state.bestConsensus,
		BestIteration:   state.bestIteration,
		FinalConsensus:  finalConsensus,
		TotalIterations: len(state.iterations),
		Iterations:      state.iterations,
		TargetConsensus: targetConsensus,
		TargetReached:   finalConsensus >= targetConsensus,
		TotalTime:       totalTime,
		Warnings:        state.warnings,
		PlanFilePath:    filePath,
		FinalPlanHash:   planHash(filePath),
		TotalRevisions:  state.totalRevisions,
	}
}

// planHash fingerprints the plan's final content, "unknown" when unreadable.
func planHash(filePath string) string {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "unknown"
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])[:8]
}
