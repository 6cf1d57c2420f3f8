package coordinator

import (
	"fmt"
	"sync"

	"github.com/steveyegge/clewcrew/internal/experts"
)

// Registry holds experts by name and remembers registration order,
// which is also the reporting order.
type Registry struct {
	mu      sync.RWMutex
	experts map[string]experts.Expert
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{experts: make(map[string]experts.Expert)}
}

// Register adds an expert to the registry.
func (r *Registry) Register(e experts.Expert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if name == "" {
		return fmt.Errorf("expert has no name")
	}
	if _, exists := r.experts[name]; exists {
		return fmt.Errorf("expert %q already registered", name)
	}

	r.experts[name] = e
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered expert by name.
func (r *Registry) Get(name string) (experts.Expert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.experts[name]
	return e, exists
}

// Names returns registered expert names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// List returns registered experts in registration order.
func (r *Registry) List() []experts.Expert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]experts.Expert, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.experts[name])
	}
	return out
}
