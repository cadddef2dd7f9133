package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKeyTermsDropsStopwords(t *testing.T) {
	terms := ExtractKeyTerms("We should use the repository pattern for the database layer")

	assert.True(t, terms["repository"])
	assert.True(t, terms["pattern"])
	assert.True(t, terms["database"])
	assert.True(t, terms["layer"])

	assert.False(t, terms["the"], "stopword kept")
	assert.False(t, terms["use"], "stopword kept")
	assert.False(t, terms["we"], "short token kept")
}

func TestTermOverlapJaccard(t *testing.T) {
	a := map[string]bool{"cache": true, "queue": true, "worker": true}
	b := map[string]bool{"cache": true, "queue": true, "scheduler": true}

	// Intersection 2, union 4.
	assert.InDelta(t, 0.5, termOverlap(a, b), 1e-9)

	assert.Zero(t, termOverlap(nil, b))
	assert.Zero(t, termOverlap(a, map[string]bool{}))
}

func TestStructureSimilarity(t *testing.T) {
	text := "- one\n- two\n\n1. first\n2. second"
	assert.InDelta(t, 1.0, structureSimilarity(text, text), 1e-9)

	// Bullets vs none: the bullet ratio drops to zero.
	withBullets := "- one\n- two"
	noBullets := "one\ntwo"
	sim := structureSimilarity(withBullets, noBullets)
	assert.Less(t, sim, 1.0)
	assert.Greater(t, sim, 0.0)
}

func TestDetectConflictsWithContext(t *testing.T) {
	a := NewRuleBasedAnalyzer()

	conflicts := a.detectConflicts(
		"I think we should use Postgres here.",
		"I disagree, SQLite is plenty for a local tool.",
	)
	require.NotEmpty(t, conflicts)
	assert.Contains(t, strings.ToLower(conflicts[0]), "i disagree")

	assert.Empty(t, a.detectConflicts("Fine plan.", "Fine plan indeed."))
}

func TestLengthRatio(t *testing.T) {
	assert.InDelta(t, 2.0, lengthRatio("ab", "abcd"), 1e-9)
	assert.InDelta(t, 1.0, lengthRatio("", ""), 1e-9)
	assert.True(t, math.IsInf(lengthRatio("", "x"), 1))
}

func TestConsensusScoreFormula(t *testing.T) {
	// Full overlap, identical structure, no conflicts, balanced length.
	assert.Equal(t, 100, consensusScore(1.0, 1.0, 0, 1.0))

	// Three conflicts cap the conflict bonus at zero.
	assert.Equal(t, 70, consensusScore(1.0, 1.0, 3, 1.0))
	assert.Equal(t, 70, consensusScore(1.0, 1.0, 9, 1.0))

	// Length mismatch outside [0.5, 2.0] costs ten.
	assert.Equal(t, 90, consensusScore(1.0, 1.0, 0, 3.0))

	// Nothing in common.
	assert.Equal(t, 30, consensusScore(0, 0, 0, 1.0))
	assert.Equal(t, 0, consensusScore(0, 0, 3, 3.0))
}

func TestAnalyzeIdenticalProposals(t *testing.T) {
	a := NewRuleBasedAnalyzer()
	text := "Use the repository pattern.\n\n- extract the service layer\n- add migration scripts"

	result := a.Analyze(text, text)

	assert.Equal(t, 1.0, result.KeyTermOverlap)
	assert.Equal(t, 1.0, result.StructureSimilarity)
	assert.Empty(t, result.ConflictsFound)
	assert.GreaterOrEqual(t, result.ConsensusScore, 90)
}

func TestAnalyzeConflictingProposals(t *testing.T) {
	a := NewRuleBasedAnalyzer()

	result := a.Analyze(
		"Adopt a microservice architecture with an event queue.",
		"I disagree. Avoid microservices; a different approach with a monolith is not recommended to split yet.",
	)

	assert.NotEmpty(t, result.ConflictsFound)
	assert.Less(t, result.ConsensusScore, 70)
}
