// Package providers maps provider identifiers to their descriptors, resolves
// credentials, and constructs per-request invokers. It also owns the error
// classifier that folds heterogeneous upstream failures into the gateway's
// error taxonomy.
package providers

import (
	"fmt"
	"sync"

	"modelgate/internal/core"
	"modelgate/internal/providers/deepseek"
	"modelgate/internal/providers/gemini"
	"modelgate/internal/providers/openai"
)

// Descriptor describes one supported backend. Descriptors are defined at
// process start and never mutated; concurrent reads need no synchronization.
type Descriptor struct {
	ID               string
	DisplayName      string
	CredentialEnvKey string
	// Models is the ordered list of valid model identifiers, enumerated in
	// error messages when a caller asks for a model the provider lacks.
	Models []string
	// BaseURL overrides the provider default when non-empty.
	BaseURL string
}

// HasModel reports whether the descriptor exposes the given model.
func (d *Descriptor) HasModel(model string) bool {
	for _, m := range d.Models {
		if m == model {
			return true
		}
	}
	return false
}

// defaultDescriptors is the closed set of supported backends.
func defaultDescriptors() []*Descriptor {
	return []*Descriptor{
		{
			ID:               core.ProviderOpenAI,
			DisplayName:      "OpenAI",
			CredentialEnvKey: "OPENAI_API_KEY",
			Models:           []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o3-mini"},
		},
		{
			ID:               core.ProviderDeepSeek,
			DisplayName:      "DeepSeek",
			CredentialEnvKey: "DEEPSEEK_API_KEY",
			Models:           []string{"deepseek-chat", "deepseek-reasoner"},
		},
		{
			ID:               core.ProviderGemini,
			DisplayName:      "Gemini",
			CredentialEnvKey: "GEMINI_API_KEY",
			Models:           []string{"gemini-2.0-flash", "gemini-2.0-flash-lite", "gemini-2.5-pro-preview"},
		},
	}
}

// CredentialSource resolves a named credential from process configuration.
// The gateway's own tests inject fakes; production uses config.Credentials.
type CredentialSource interface {
	Lookup(envKey string) string
}

// CredentialFunc adapts a function to the CredentialSource interface.
type CredentialFunc func(envKey string) string

func (f CredentialFunc) Lookup(envKey string) string { return f(envKey) }

// Override adjusts one provider's static descriptor from configuration.
type Override struct {
	BaseURL string
	Models  []string
}

// Registry owns the descriptor set and builds per-request invokers. After
// construction it is read-only apart from the credential cache, which is its
// own lock; the registry is safe for concurrent use.
type Registry struct {
	creds       CredentialSource
	order       []string
	descriptors map[string]*Descriptor

	mu    sync.Mutex
	cache map[string]string // resolved credentials, present values only
}

// NewRegistry builds the registry from the static descriptor set, applying
// any configuration overrides for base URLs and model lists.
func NewRegistry(creds CredentialSource, overrides map[string]Override) *Registry {
	r := &Registry{
		creds:       creds,
		descriptors: make(map[string]*Descriptor),
		cache:       make(map[string]string),
	}
	for _, d := range defaultDescriptors() {
		if o, ok := overrides[d.ID]; ok {
			if o.BaseURL != "" {
				d.BaseURL = o.BaseURL
			}
			if len(o.Models) > 0 {
				d.Models = o.Models
			}
		}
		r.order = append(r.order, d.ID)
		r.descriptors[d.ID] = d
	}
	return r
}

// DescriptorFor returns the descriptor for a provider identifier.
// Unknown identifiers are a caller error.
func (r *Registry) DescriptorFor(providerID string) (*Descriptor, error) {
	d, ok := r.descriptors[providerID]
	if !ok {
		return nil, core.NewBadRequestError("unsupported provider: " + providerID)
	}
	return d, nil
}

// IsValidModel reports whether the provider exposes the given model.
func (r *Registry) IsValidModel(providerID, model string) bool {
	d, ok := r.descriptors[providerID]
	return ok && d.HasModel(model)
}

// Providers lists the supported backends in declaration order.
func (r *Registry) Providers() []core.ProviderInfo {
	out := make([]core.ProviderInfo, 0, len(r.order))
	for _, id := range r.order {
		d := r.descriptors[id]
		out = append(out, core.ProviderInfo{ID: d.ID, DisplayName: d.DisplayName})
	}
	return out
}

// Models lists the valid models of one provider.
func (r *Registry) Models(providerID string) ([]core.ModelInfo, error) {
	d, err := r.DescriptorFor(providerID)
	if err != nil {
		return nil, err
	}
	out := make([]core.ModelInfo, 0, len(d.Models))
	for _, m := range d.Models {
		out = append(out, core.ModelInfo{ID: m, DisplayName: m})
	}
	return out, nil
}

// resolveCredential looks up the provider's secret. Present values are cached
// for the process lifetime; a missing value is never cached, so a later call
// can succeed after configuration is reloaded.
func (r *Registry) resolveCredential(d *Descriptor) (string, error) {
	r.mu.Lock()
	if key, ok := r.cache[d.CredentialEnvKey]; ok {
		r.mu.Unlock()
		return key, nil
	}
	r.mu.Unlock()

	key := r.creds.Lookup(d.CredentialEnvKey)
	if key == "" {
		// An operator error, not a caller error: the provider was selected
		// validly but the process has no secret for it.
		return "", core.NewInternalError(d.ID,
			fmt.Sprintf("missing credential for %s: set %s", d.ID, d.CredentialEnvKey), nil)
	}

	r.mu.Lock()
	r.cache[d.CredentialEnvKey] = key
	r.mu.Unlock()
	return key, nil
}

// CreateInvoker resolves the provider's credential and constructs a fresh
// invoker for one generation call. This is the single point where a missing
// credential surfaces, as an Internal error.
func (r *Registry) CreateInvoker(providerID string) (core.Invoker, *Descriptor, error) {
	d, err := r.DescriptorFor(providerID)
	if err != nil {
		return nil, nil, err
	}

	key, err := r.resolveCredential(d)
	if err != nil {
		return nil, nil, err
	}

	var inv core.Invoker
	switch d.ID {
	case core.ProviderOpenAI:
		inv = openai.New(key, d.BaseURL)
	case core.ProviderDeepSeek:
		inv = deepseek.New(key, d.BaseURL)
	case core.ProviderGemini:
		inv = gemini.New(key, d.BaseURL)
	default:
		return nil, nil, core.NewInternalError(d.ID, "no invoker constructor for provider "+d.ID, nil)
	}
	return inv, d, nil
}
