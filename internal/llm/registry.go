package llm

import (
	"github.com/sirupsen/logrus"
)

// Registry assembles the ordered list of available adapters for debates.
type Registry struct {
	candidates []Provider
	log        *logrus.Logger
}

// NewRegistry builds a registry over an explicit candidate list, in
// priority order.
func NewRegistry(log *logrus.Logger, candidates ...Provider) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{candidates: candidates, log: log}
}

// NewDefaultRegistry returns the reference candidate set: Codex CLI, Gemini
// CLI, then the Copilot bridge.
func NewDefaultRegistry(log *logrus.Logger) *Registry {
	return NewRegistry(log,
		NewCodexProvider(log),
		NewGeminiProvider(log),
		NewCopilotProvider(log),
	)
}

// AvailableProviders returns every available adapter in priority order,
// guaranteeing at least two entries by duplicating the single available one
// (same model, independent invocation slots). With nothing available, the
// first candidate is returned twice so invocation fails gracefully.
func (r *Registry) AvailableProviders() []Provider {
	var available []Provider
	for _, p := range r.candidates {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}

	if len(available) >= 2 {
		return available
	}
	if len(available) == 1 {
		r.log.WithField("adapter", available[0].Name()).
			Info("single adapter available, using dual perspective mode")
		return []Provider{available[0], available[0]}
	}
	if len(r.candidates) > 0 {
		r.log.Warn("no adapters available, invocations will fail gracefully")
		return []Provider{r.candidates[0], r.candidates[0]}
	}
	return nil
}

// Pair returns the primary and counter adapters for one debate.
func (r *Registry) Pair() (Provider, Provider) {
	providers := r.AvailableProviders()
	if len(providers) >= 2 {
		return providers[0], providers[1]
	}
	if len(providers) == 1 {
		return providers[0], providers[0]
	}
	return nil, nil
}

// RegistryStatus is the availability report across candidates.
type RegistryStatus struct {
	Providers     map[string]Status `json:"providers"`
	Active        []string          `json:"active_providers"`
	ProviderCount int               `json:"provider_count"`
	MultiVendor   bool              `json:"multi_vendor"`
}

// GetStatus reports per-candidate status plus the active roster.
func (r *Registry) GetStatus() RegistryStatus {
	status := RegistryStatus{Providers: make(map[string]Status)}

	for _, p := range r.candidates {
		status.Providers[p.Name()] = p.GetStatus()
	}

	active := r.AvailableProviders()
	vendors := make(map[string]bool)
	for _, p := range active {
		status.Active = append(status.Active, p.Name())
		vendors[p.Vendor()] = true
	}
	status.ProviderCount = len(active)
	status.MultiVendor = len(vendors) > 1
	return status
}
