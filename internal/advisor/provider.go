// Package advisor generates the short list of recommended actions that
// accompanies an indicator record. It wraps a set of hosted text-generation
// providers behind one interface; when no provider is reachable the advisor
// degrades to a static message, never an error.
package advisor

import "context"

// Provider is the interface to a text-generation backend.
type Provider interface {
	// Name returns the provider name (e.g. "claude", "ollama").
	Name() string

	// Available reports whether the provider is configured and ready.
	Available() bool

	// Generate sends a prompt and returns the completion.
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a single completion request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Response is a provider's completion.
type Response struct {
	Content string
	Model   string
}

// Manager holds the configured providers and picks one per call.
type Manager struct {
	providers []Provider
	preferred string
}

// NewManager creates a manager over the given providers.
func NewManager(providers ...Provider) *Manager {
	return &Manager{providers: providers}
}

// SetPreferred names the provider to try first.
func (m *Manager) SetPreferred(name string) {
	m.preferred = name
}

// Pick returns the preferred provider if it is available, otherwise the
// first available one, otherwise nil.
func (m *Manager) Pick() Provider {
	if m.preferred != "" {
		for _, p := range m.providers {
			if p.Name() == m.preferred && p.Available() {
				return p
			}
		}
	}
	for _, p := range m.providers {
		if p.Available() {
			return p
		}
	}
	return nil
}

// Available returns the names of all reachable providers.
func (m *Manager) Available() []string {
	var names []string
	for _, p := range m.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}
