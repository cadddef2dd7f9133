package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Consensus thresholds for the two analysis methods. The LLM understands
// semantics, so a lower bar is acceptable; the rule-based score is noisier.
const (
	LLMConsensusThreshold  = 65
	RuleConsensusThreshold = 70
)

const analysisPrompt = `You are analyzing two AI proposals for technical consensus.

FIRST PROPOSAL:
%s

SECOND PROPOSAL:
%s

Analyze these proposals and respond with ONLY a JSON object (no other text):

{
  "semantic_similarity": 0.0-1.0,
  "approach_agreement": 0.0-1.0,
  "conflicts": ["list of specific conflicts found"],
  "key_agreements": ["list of key points both agree on"],
  "recommendation": "execute" or "review" or "reject",
  "reasoning": "brief explanation of your analysis"
}

Guidelines:
- semantic_similarity: How similar are the underlying meanings? (0.0 = completely different, 1.0 = identical meaning)
- approach_agreement: Do they agree on the implementation approach? (0.0 = opposite, 1.0 = same)
- conflicts: Specific technical disagreements (empty list if none)
- key_agreements: What do both proposals agree on?
- recommendation: "execute" (high consensus), "review" (medium), "reject" (low)
- reasoning: Why did you reach this conclusion?

Respond ONLY with the JSON object. No markdown, no explanation outside JSON.`

// LLMConfig locates the local model endpoint.
type LLMConfig struct {
	Endpoint    string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// DefaultLLMConfig targets a local Ollama instance.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Endpoint:    "http://localhost:11434/api/generate",
		Model:       "llama2",
		Timeout:     30 * time.Second,
		Temperature: 0.1,
	}
}

// LLMResult is the model's structured verdict plus the derived score.
type LLMResult struct {
	ConsensusScore     int      `json:"consensus_score"`
	SemanticSimilarity float64  `json:"semantic_similarity"`
	ApproachAgreement  float64  `json:"approach_agreement"`
	Conflicts          []string `json:"conflicts"`
	KeyAgreements      []string `json:"key_agreements"`
	Recommendation     string   `json:"recommendation"`
	Reasoning          string   `json:"reasoning"`
}

// LLMAnalyzer asks a local model for a semantic consensus verdict. All
// failure modes return nil so callers can fall back to the rule-based path.
type LLMAnalyzer struct {
	config LLMConfig
	client *http.Client
	log    *logrus.Logger

	mu        sync.Mutex
	available *bool
}

// NewLLMAnalyzer builds an analyzer for the given endpoint.
func NewLLMAnalyzer(config LLMConfig, log *logrus.Logger) *LLMAnalyzer {
	if config.Endpoint == "" {
		config = DefaultLLMConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.New()
	}
	return &LLMAnalyzer{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		log:    log,
	}
}

// IsAvailable probes the model endpoint once and caches the answer.
func (a *LLMAnalyzer) IsAvailable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.available != nil {
		return *a.available
	}

	probeURL := strings.Replace(a.config.Endpoint, "/api/generate", "/api/tags", 1)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(probeURL)
	ok := false
	if err == nil {
		ok = resp.StatusCode == http.StatusOK
		resp.Body.Close()
	}
	a.available = &ok
	return ok
}

// Analyze returns the model verdict, or nil when the model is unreachable,
// returns a non-JSON answer, or omits required fields.
func (a *LLMAnalyzer) Analyze(first, second string) *LLMResult {
	if !a.IsAvailable() {
		return nil
	}

	raw, err := a.callModel(fmt.Sprintf(analysisPrompt, first, second))
	if err != nil {
		a.log.WithError(err).Warn("LLM analysis failed")
		return nil
	}

	verdict, err := parseModelVerdict(raw)
	if err != nil {
		a.log.WithError(err).Warn("Failed to parse LLM response")
		return nil
	}

	return &LLMResult{
		ConsensusScore:     llmConsensusScore(verdict),
		SemanticSimilarity: verdict.SemanticSimilarity,
		ApproachAgreement:  verdict.ApproachAgreement,
		Conflicts:          verdict.Conflicts,
		KeyAgreements:      verdict.KeyAgreements,
		Recommendation:     verdict.Recommendation,
		Reasoning:          verdict.Reasoning,
	}
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (a *LLMAnalyzer) callModel(prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:       a.config.Model,
		Prompt:      prompt,
		Temperature: a.config.Temperature,
	})
	if err != nil {
		return "", err
	}

	resp, err := a.client.Post(a.config.Endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model endpoint returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Response == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return out.Response, nil
}

type modelVerdict struct {
	SemanticSimilarity float64  `json:"semantic_similarity"`
	ApproachAgreement  float64  `json:"approach_agreement"`
	Conflicts          []string `json:"conflicts"`
	KeyAgreements      []string `json:"key_agreements"`
	Recommendation     string   `json:"recommendation"`
	Reasoning          string   `json:"reasoning"`
}

// parseModelVerdict extracts the first JSON object from a possibly chatty
// model response and validates the closed recommendation vocabulary.
func parseModelVerdict(response string) (*modelVerdict, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, err
	}

	required := []string{
		"semantic_similarity", "approach_agreement",
		"conflicts", "key_agreements", "recommendation", "reasoning",
	}
	for _, field := range required {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("missing field %q", field)
		}
	}

	var v modelVerdict
	if err := json.Unmarshal([]byte(response[start:end+1]), &v); err != nil {
		return nil, err
	}
	switch v.Recommendation {
	case "execute", "review", "reject":
	default:
		return nil, fmt.Errorf("invalid recommendation %q", v.Recommendation)
	}
	if v.Conflicts == nil || v.KeyAgreements == nil {
		return nil, fmt.Errorf("conflicts and key_agreements must be lists")
	}
	return &v, nil
}

// llmConsensusScore weighs similarity 50%, approach 40%, minus five per
// conflict capped at 30. Clamped to [0, 100].
func llmConsensusScore(v *modelVerdict) int {
	base := v.SemanticSimilarity*50 + v.ApproachAgreement*40

	penalty := float64(len(v.Conflicts) * 5)
	if penalty > 30 {
		penalty = 30
	}

	score := int(base - penalty)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Verdict is the hybrid analyzer output: whichever method ran, plus the
// threshold that applies to its score.
type Verdict struct {
	Method         string `json:"analysis_method"`
	ConsensusScore int    `json:"consensus_score"`
	Threshold      int    `json:"threshold"`
	Sufficient     bool   `json:"sufficient"`

	LLM  *LLMResult  `json:"llm,omitempty"`
	Rule *RuleResult `json:"rule,omitempty"`
}

// HybridAnalyzer prefers the LLM and falls back to rules on any failure.
type HybridAnalyzer struct {
	llm  *LLMAnalyzer
	rule *RuleBasedAnalyzer
}

// NewHybridAnalyzer wires the two methods together. llm may be nil to force
// the rule-based path.
func NewHybridAnalyzer(llm *LLMAnalyzer, rule *RuleBasedAnalyzer) *HybridAnalyzer {
	if rule == nil {
		rule = NewRuleBasedAnalyzer()
	}
	return &HybridAnalyzer{llm: llm, rule: rule}
}

// Analyze runs the LLM when available and valid, else the rule-based
// analyzer. The verdict records which method produced the score.
func (h *HybridAnalyzer) Analyze(first, second string) *Verdict {
	if h.llm != nil {
		if result := h.llm.Analyze(first, second); result != nil {
			return &Verdict{
				Method:         "llm",
				ConsensusScore: result.ConsensusScore,
				Threshold:      LLMConsensusThreshold,
				Sufficient:     result.ConsensusScore >= LLMConsensusThreshold,
				LLM:            result,
			}
		}
	}

	result := h.rule.Analyze(first, second)
	return &Verdict{
		Method:         "rule_based",
		ConsensusScore: result.ConsensusScore,
		Threshold:      RuleConsensusThreshold,
		Sufficient:     result.ConsensusScore >= RuleConsensusThreshold,
		Rule:           result,
	}
}
