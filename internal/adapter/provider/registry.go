package provider

import (
	"sort"
	"strings"

	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
)

// Registry selects a payment provider by name.
type Registry struct {
	providers map[string]ports.PaymentProvider
}

// NewRegistry indexes providers by their lower-cased Name.
func NewRegistry(providers ...ports.PaymentProvider) *Registry {
	r := &Registry{providers: make(map[string]ports.PaymentProvider, len(providers))}
	for _, p := range providers {
		r.providers[strings.ToLower(p.Name())] = p
	}
	return r
}

// Get returns the named provider or an UnsupportedProvider error.
func (r *Registry) Get(name string) (ports.PaymentProvider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, apperror.ErrUnsupportedProvider(name)
	}
	return p, nil
}

// Names lists the registered providers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
