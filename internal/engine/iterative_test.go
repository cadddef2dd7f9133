package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.debate/internal/llm"
	"dev.helix.debate/internal/models"
	"dev.helix.debate/internal/orchestrator"
	"dev.helix.debate/internal/revision"
)

// scriptedDebater replays a fixed consensus score sequence.
type scriptedDebater struct {
	scores []int
	calls  int
}

func (d *scriptedDebater) RunDebate(ctx context.Context, request, filePath string, focusAreas []string) (*orchestrator.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	score := d.scores[len(d.scores)-1]
	if d.calls < len(d.scores) {
		score = d.scores[d.calls]
	}
	d.calls++

	result := &models.DebateResult{
		Request:        request,
		ConsensusScore: score,
		Recommendation: "[CAUTION] Address key concerns first",
		Issues: []models.Issue{
			{Title: "Missing tests", Severity: "high", PriorityScore: 80, Fix: "Add integration tests"},
		},
	}
	return &orchestrator.Result{DebateResult: result}, nil
}

// revisingInvoker returns the base plan with one more line tweaked per call,
// so every revision is a small valid edit over the current file.
type revisingInvoker struct {
	base  []string
	calls int
	fail  bool
}

func (r *revisingInvoker) Invoke(ctx context.Context, prompt string) *llm.Response {
	r.calls++
	if r.fail {
		return &llm.Response{Success: false, Err: "revision backend down"}
	}
	lines := append([]string(nil), r.base...)
	for i := 1; i <= r.calls && 4+i < len(lines); i++ {
		lines[4+i] = fmt.Sprintf("Step %d: revised in pass %d to address review feedback.", 4+i, i)
	}
	return &llm.Response{Success: true, Text: strings.Join(lines, "\n")}
}

func (r *revisingInvoker) IsAvailable() bool     { return true }
func (r *revisingInvoker) Name() string          { return "stub" }
func (r *revisingInvoker) Vendor() string        { return "test" }
func (r *revisingInvoker) GetStatus() llm.Status { return llm.Status{Available: true} }

func basePlan() []string {
	lines := make([]string, 20)
	lines[0] = "# Payment Refactoring Plan"
	for i := 1; i < 20; i++ {
		lines[i] = fmt.Sprintf("Step %d: validate the payment flow and record audit events.", i)
	}
	return lines
}

func newTestEngine(t *testing.T, debater Debater, invoker llm.Provider) (*Engine, string) {
	t.Helper()

	plan := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(plan, []byte(strings.Join(basePlan(), "\n")), 0o644))

	delta, err := revision.NewDeltaTracker(filepath.Join(t.TempDir(), "delta"), nil)
	require.NoError(t, err)

	engine := New(debater, revision.NewReviser(invoker, nil), delta, nil, nil)
	return engine, plan
}

func TestTargetReachedOnFirstIteration(t *testing.T) {
	debater := &scriptedDebater{scores: []int{92}}
	invoker := &revisingInvoker{base: basePlan()}
	engine, plan := newTestEngine(t, debater, invoker)

	result, err := engine.RunIterativeDebate(context.Background(), "refactor payments", plan, nil, 90, 5)
	require.NoError(t, err)

	assert.True(t, result.TargetReached)
	assert.Equal(t, 92, result.BestConsensus)
	assert.Equal(t, 1, result.BestIteration)
	assert.Equal(t, 1, result.TotalIterations)
	assert.Equal(t, 0, result.TotalRevisions)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 0, invoker.calls)
	assert.Len(t, result.FinalPlanHash, 8)
}

func TestIterativeImprovementReachesTarget(t *testing.T) {
	debater := &scriptedDebater{scores: []int{70, 80, 91}}
	invoker := &revisingInvoker{base: basePlan()}
	engine, plan := newTestEngine(t, debater, invoker)

	result, err := engine.RunIterativeDebate(context.Background(), "refactor payments", plan, nil, 90, 5)
	require.NoError(t, err)

	assert.True(t, result.TargetReached)
	assert.Equal(t, 91, result.BestConsensus)
	assert.Equal(t, 3, result.BestIteration)
	assert.Equal(t, 3, result.TotalIterations)
	assert.Equal(t, 2, result.TotalRevisions)
	assert.Equal(t, 91, result.FinalConsensus)

	require.Len(t, result.Iterations, 3)
	assert.Equal(t, "full_debate", result.Iterations[0].Type)
	assert.Equal(t, "delta_debate", result.Iterations[1].Type)
	assert.Equal(t, "delta_debate", result.Iterations[2].Type)

	// Only the best iteration keeps the flag.
	assert.False(t, result.Iterations[0].IsBest)
	assert.False(t, result.Iterations[1].IsBest)
	assert.True(t, result.Iterations[2].IsBest)

	assert.NotEmpty(t, result.Iterations[1].RevisionSummary)
	assert.NotEmpty(t, result.Iterations[1].IssuesAddressed)

	// The plan file carries the final revision.
	content, err := os.ReadFile(plan)
	require.NoError(t, err)
	assert.Contains(t, string(content), "revised in pass 2")
}

func TestRevisionFailureSkipsIteration(t *testing.T) {
	debater := &scriptedDebater{scores: []int{70}}
	invoker := &revisingInvoker{base: basePlan(), fail: true}
	engine, plan := newTestEngine(t, debater, invoker)

	result, err := engine.RunIterativeDebate(context.Background(), "refactor payments", plan, nil, 90, 3)
	require.NoError(t, err)

	assert.False(t, result.TargetReached)
	assert.Equal(t, 1, result.TotalIterations)
	assert.Equal(t, 0, result.TotalRevisions)
	assert.Equal(t, 1, debater.calls)

	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "Iteration 2: Revision failed - Adapter invocation failed: revision backend down")
	assert.Contains(t, result.Warnings[len(result.Warnings)-1],
		"Target consensus 90 not reached after 1 iteration(s) (best: 70)")
}

func TestNoImprovementWarning(t *testing.T) {
	debater := &scriptedDebater{scores: []int{70, 71, 72, 72}}
	invoker := &revisingInvoker{base: basePlan()}
	engine, plan := newTestEngine(t, debater, invoker)

	result, err := engine.RunIterativeDebate(context.Background(), "refactor payments", plan, nil, 90, 4)
	require.NoError(t, err)

	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "No significant improvement in 2 consecutive iterations") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", result.Warnings)
}

func TestRegressionWarning(t *testing.T) {
	debater := &scriptedDebater{scores: []int{70, 50}}
	invoker := &revisingInvoker{base: basePlan()}
	engine, plan := newTestEngine(t, debater, invoker)

	result, err := engine.RunIterativeDebate(context.Background(), "refactor payments", plan, nil, 90, 2)
	require.NoError(t, err)

	found := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "Iteration 2: Regression detected (70 → 50, -20 points)") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", result.Warnings)

	// The first iteration stays the best despite the regression.
	assert.Equal(t, 70, result.BestConsensus)
	assert.Equal(t, 1, result.BestIteration)
	assert.Equal(t, 50, result.FinalConsensus)
}

// debateAdapter serves both review and revision prompts: reviews raise a
// concern until the plan has been revised, then approve it.
type debateAdapter struct {
	name    string
	revised atomic.Bool
}

func (a *debateAdapter) Invoke(ctx context.Context, prompt string) *llm.Response {
	if strings.Contains(prompt, "BEGIN REVISED PLAN:") {
		lines := basePlan()
		lines[5] = "Step 5: add integration tests around the payment flow before refactoring."
		lines[6] = "Step 6: define rollback criteria for every migration step."
		a.revised.Store(true)
		return &llm.Response{Success: true, Text: strings.Join(lines, "\n")}
	}
	if a.revised.Load() {
		return &llm.Response{Success: true, Text: "The revised plan is well-designed and I agree with the approach. Score: 92/100"}
	}
	return &llm.Response{Success: true, Text: "There is a concern about missing integration tests for the payment flow. Score: 70/100"}
}

func (a *debateAdapter) IsAvailable() bool     { return true }
func (a *debateAdapter) Name() string          { return a.name }
func (a *debateAdapter) Vendor() string        { return "test" }
func (a *debateAdapter) GetStatus() llm.Status { return llm.Status{Available: true} }

// The full loop over the real orchestrator: the first debate's concern must
// surface as a prioritized issue, drive one revision, and lift the consensus
// past the target on the re-debate.
func TestIterativeDebateThroughOrchestrator(t *testing.T) {
	adapter := &debateAdapter{name: "codex-cli"}

	orch, err := orchestrator.New(orchestrator.DefaultConfig(t.TempDir()), adapter, adapter, nil)
	require.NoError(t, err)

	plan := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(plan, []byte(strings.Join(basePlan(), "\n")), 0o644))

	delta, err := revision.NewDeltaTracker(filepath.Join(t.TempDir(), "delta"), nil)
	require.NoError(t, err)
	engine := New(orch, revision.NewReviser(adapter, nil), delta, nil, nil)

	result, err := engine.RunIterativeDebate(context.Background(), "refactor the payment service", plan, nil, 90, 4)
	require.NoError(t, err)

	assert.True(t, result.TargetReached)
	assert.Equal(t, 92, result.BestConsensus)
	assert.Equal(t, 1, result.TotalRevisions)
	assert.Empty(t, result.Warnings)

	require.Len(t, result.Iterations, 2)
	require.NotEmpty(t, result.Iterations[1].IssuesAddressed)
	assert.GreaterOrEqual(t, result.Iterations[1].IssuesAddressed[0].PriorityScore, 65)
	assert.NotEmpty(t, result.Iterations[1].RevisionSummary)

	// The plan file carries the accepted revision.
	content, err := os.ReadFile(plan)
	require.NoError(t, err)
	assert.Contains(t, string(content), "add integration tests")
}

func TestCancellationAborts(t *testing.T) {
	debater := &scriptedDebater{scores: []int{70}}
	invoker := &revisingInvoker{base: basePlan()}
	engine, plan := newTestEngine(t, debater, invoker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.RunIterativeDebate(ctx, "refactor payments", plan, nil, 90, 3)
	require.Error(t, err)
	assert.Nil(t, result)
}
