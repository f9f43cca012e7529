package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"SLRAutomation/internal/domain"
)

// Request carries all parameters required to execute a scan.
type Request struct {
	Query      string
	MaxRecords int
	Options    map[string]string
}

// Scanner captures a single review database implementation (Cochrane, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) (domain.RecordSet, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[strings.ToLower(scanner.Name())] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[strings.ToLower(name)]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered (known: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists registered scanners in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
