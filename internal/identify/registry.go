package identify

import (
	"fmt"
	"sort"
	"sync"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/services"
)

// Registry maps jurisdiction codes to identifiers. It is populated at
// startup and read concurrently afterwards.
type Registry struct {
	mu          sync.RWMutex
	identifiers map[string]Identifier
}

// NewRegistry returns a registry holding the built-in matchers.
func NewRegistry() *Registry {
	r := &Registry{identifiers: make(map[string]Identifier)}
	for _, id := range []Identifier{Namibia(), Botswana()} {
		_ = r.Register(id)
	}
	return r
}

// FromConfig builds the registry and adds any definitions from
// identify.definitions_path.
func FromConfig(cfg *config.Config) (*Registry, error) {
	r := NewRegistry()
	if cfg == nil || cfg.Identify.DefinitionsPath == "" {
		return r, nil
	}
	defs, err := LoadDefinitions(cfg.Identify.DefinitionsPath)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds id under its normalized code. Codes must be unique.
func (r *Registry) Register(id Identifier) error {
	code := gazette.NormalizeJurisdiction(id.Code())
	if code == "" {
		return services.Wrap(services.ErrConfiguration, "identify", "register", "identifier has no jurisdiction code", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.identifiers[code]; exists {
		return services.Wrap(services.ErrConfiguration, "identify", "register", fmt.Sprintf("jurisdiction %q already registered", code), nil)
	}
	r.identifiers[code] = id
	return nil
}

// Lookup returns the identifier for code, ignoring case.
func (r *Registry) Lookup(code string) (Identifier, error) {
	normalized := gazette.NormalizeJurisdiction(code)
	r.mu.RLock()
	id, ok := r.identifiers[normalized]
	r.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "identify", "lookup", fmt.Sprintf("no identifier for jurisdiction %q", code), nil)
	}
	return id, nil
}

// Codes lists the registered jurisdictions in sorted order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.identifiers))
	for code := range r.identifiers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
