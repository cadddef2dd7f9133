// Package gate enforces debate consensus before execution: a complexity
// heuristic decides whether a change needs a debate at all, and the session
// gate blocks execution until consensus is reached or the user overrides.
package gate

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"dev.helix.debate/internal/config"
	"dev.helix.debate/internal/models"
	"dev.helix.debate/internal/session"
)

// architecturalKeywords each add 12 complexity points, capped at 50.
var architecturalKeywords = []string{
	"refactor", "redesign", "migrate", "architecture", "authentication",
	"authorization", "security", "database", "api", "schema", "jwt", "token",
	"caching", "cache", "workflow", "approval", "integration", "service",
	"infrastructure", "deployment",
}

// scopeKeywords each add 12 points, capped at 25.
var scopeKeywords = []string{
	"system-wide", "all", "entire", "multiple", "cross-cutting",
	"implement", "new feature", "add new",
}

// simpleKeywords knock 30 points off when any is present.
var simpleKeywords = []string{"typo", "fix", "comment", "documentation", "readme"}

// Requirement is the verdict of the pre-debate complexity check.
type Requirement struct {
	Required        bool   `json:"required"`
	ComplexityScore int    `json:"complexity_score"`
	Reason          string `json:"reason"`
}

// DecisionPack carries the escalation context handed to the user when
// execution is blocked.
type DecisionPack struct {
	Summary        string `json:"summary"`
	Rounds         int    `json:"rounds,omitempty"`
	ConsensusScore int    `json:"consensus_score,omitempty"`
	Request        string `json:"request,omitempty"`
	ClaudeApproach string `json:"claude_approach,omitempty"`
	CodexApproach  string `json:"codex_approach,omitempty"`
	CurrentRound   int    `json:"current_round,omitempty"`
	MaxRounds      int    `json:"max_rounds,omitempty"`
}

// Verdict is the execution gate's decision for one session.
type Verdict struct {
	CanExecute     bool          `json:"can_execute"`
	ConsensusScore *int          `json:"consensus_score"`
	UserOverride   bool          `json:"user_override"`
	DecisionPack   *DecisionPack `json:"decision_pack,omitempty"`
	Err            string        `json:"error,omitempty"`
}

// Gate checks sessions against the configured consensus policy.
type Gate struct {
	cfg      *config.Config
	sessions *session.Store
	log      *logrus.Logger
}

// New builds a gate over the given session store.
func New(cfg *config.Config, sessions *session.Store, log *logrus.Logger) *Gate {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gate{cfg: cfg, sessions: sessions, log: log}
}

// CheckDebateRequired scores a change request's complexity against the
// configured threshold.
func CheckDebateRequired(cfg *config.Config, request string, filePaths []string) *Requirement {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if !cfg.Enabled {
		return &Requirement{Reason: "AI debate system is disabled"}
	}

	score := ComplexityScore(request, filePaths)
	required := score >= cfg.ComplexityThreshold

	comparison := "<"
	if required {
		comparison = ">="
	}
	return &Requirement{
		Required:        required,
		ComplexityScore: score,
		Reason:          fmt.Sprintf("Complexity score %d %s threshold %d", score, comparison, cfg.ComplexityThreshold),
	}
}

// ComplexityScore estimates change complexity from the request wording and
// the touched file count, in [0, 100].
func ComplexityScore(request string, filePaths []string) int {
	score := 0

	switch n := len(filePaths); {
	case n == 0:
		score += 5
	case n == 1:
		score += 10
	case n <= 3:
		score += 15
	default:
		score += 20
	}

	requestLower := strings.ToLower(request)

	archMatches := 0
	for _, keyword := range architecturalKeywords {
		if strings.Contains(requestLower, keyword) {
			archMatches++
		}
	}
	score += minInt(archMatches*12, 50)

	scopeMatches := 0
	for _, keyword := range scopeKeywords {
		if strings.Contains(requestLower, keyword) {
			scopeMatches++
		}
	}
	score += minInt(scopeMatches*12, 25)

	// "add caching layer" style requests carry architectural weight even
	// when phrased casually.
	if strings.Contains(requestLower, "add ") {
		for _, keyword := range architecturalKeywords {
			if strings.Contains(requestLower, keyword) {
				score += 5
				break
			}
		}
	}

	for _, keyword := range simpleKeywords {
		if strings.Contains(requestLower, keyword) {
			score -= 30
			if score < 0 {
				score = 0
			}
			break
		}
	}

	return minInt(score, 100)
}

// CheckExecution decides whether a session's change may be executed.
// CONSENSUS allows execution; ESCALATION blocks unless the user overrode;
// every other state blocks with a progress summary.
func (g *Gate) CheckExecution(sessionID string) *Verdict {
	if !g.cfg.Enabled {
		return &Verdict{CanExecute: true}
	}

	dir, err := g.sessions.SessionDir(sessionID)
	if err != nil {
		return &Verdict{Err: fmt.Sprintf("Failed to check consensus: %v", err)}
	}
	if _, err := os.Stat(dir); err != nil {
		return &Verdict{Err: fmt.Sprintf("Session not found: %s", sessionID)}
	}

	meta, err := g.sessions.ReadMetadata(sessionID)
	if err != nil {
		return &Verdict{Err: fmt.Sprintf("Failed to check consensus: %v", err)}
	}

	state := meta.State
	if state == "" {
		state = models.StateIdle
	}

	switch {
	case state == models.StateConsensus:
		return &Verdict{CanExecute: true, ConsensusScore: meta.ConsensusScore}

	case state == models.StateEscalation && meta.UserOverride:
		return &Verdict{CanExecute: true, ConsensusScore: meta.ConsensusScore, UserOverride: true}

	case state == models.StateEscalation:
		return &Verdict{
			ConsensusScore: meta.ConsensusScore,
			DecisionPack:   g.escalationPack(sessionID, meta),
		}

	default:
		return &Verdict{
			ConsensusScore: meta.ConsensusScore,
			DecisionPack: &DecisionPack{
				Summary:      fmt.Sprintf("Debate in progress (state: %s)", state),
				CurrentRound: meta.CurrentRound,
				MaxRounds:    g.cfg.MaxRounds,
			},
		}
	}
}

// escalationPack assembles the failed-consensus decision pack with both
// final proposals.
func (g *Gate) escalationPack(sessionID string, meta *session.Metadata) *DecisionPack {
	round := meta.CurrentRound
	if round == 0 {
		round = 1
	}

	consensus := 0
	if meta.ConsensusScore != nil {
		consensus = *meta.ConsensusScore
	}
	return &DecisionPack{
		Summary:        "AIs could not reach consensus",
		Rounds:         meta.CurrentRound,
		ConsensusScore: consensus,
		Request:        meta.Request,
		ClaudeApproach: g.readProposalOrDefault(sessionID, "claude", round),
		CodexApproach:  g.readProposalOrDefault(sessionID, "codex", round),
	}
}

func (g *Gate) readProposalOrDefault(sessionID, participant string, round int) string {
	content, err := g.sessions.ReadProposal(sessionID, participant, round)
	if err != nil {
		return "Not available"
	}
	return content
}

// MarkUserOverride records an explicit user override on the session so a
// blocked ESCALATION state allows execution.
func (g *Gate) MarkUserOverride(sessionID string) error {
	meta, err := g.sessions.ReadMetadata(sessionID)
	if err != nil {
		return fmt.Errorf("mark override: %w", err)
	}

	meta.UserOverride = true
	meta.Outcome = models.OutcomeUserOverride
	if err := g.sessions.WriteMetadata(sessionID, meta); err != nil {
		return fmt.Errorf("mark override: %w", err)
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
