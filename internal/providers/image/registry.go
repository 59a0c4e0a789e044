package image

import (
	"fmt"
	"sort"
	"strings"

	"thumbgen/internal/domain"
)

// Registry holds the configured adapters and resolves a provider preference
// to one of them. Resolution is static: the chosen adapter never changes
// mid-job and there is no fallback chain.
type Registry struct {
	adapters    map[string]Adapter
	aliases     map[string]string
	defaultName string
}

// NewRegistry builds an empty registry whose Resolve("") returns the adapter
// registered under defaultName.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		adapters:    make(map[string]Adapter),
		aliases:     make(map[string]string),
		defaultName: strings.ToLower(defaultName),
	}
}

// Register adds an adapter under its canonical name plus any aliases.
func (r *Registry) Register(adapter Adapter, aliases ...string) {
	name := strings.ToLower(adapter.Name())
	r.adapters[name] = adapter
	for _, alias := range aliases {
		r.aliases[strings.ToLower(alias)] = name
	}
}

// Resolve maps a caller preference to an adapter. An empty preference picks
// the default. Unknown names and adapters missing credentials fail fast,
// before anything is submitted.
func (r *Registry) Resolve(preference string) (Adapter, error) {
	name := strings.ToLower(strings.TrimSpace(preference))
	if name == "" {
		name = r.defaultName
	}
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}

	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("image: provider %q: %w", preference, domain.ErrUnknownProvider)
	}
	if !adapter.Configured() {
		return nil, fmt.Errorf("image: provider %q: %w", adapter.Name(), domain.ErrProviderNotConfigured)
	}

	return adapter, nil
}

// Names lists registered canonical provider names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
