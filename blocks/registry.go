package blocks

import (
	"sort"
	"sync"

	"github.com/jpalmerr/pageblocks/page"
)

// Factory creates a decorator. It runs at most once per [Registry], the first
// time a block of that name is loaded.
type Factory func() page.Decorator

type entry struct {
	factory   Factory
	once      sync.Once
	decorator page.Decorator
}

// Registry maps block names to lazily created decorators.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{factory: f}
}

// RegisterFunc registers a decorator that needs no construction.
func (r *Registry) RegisterFunc(name string, d page.Decorator) {
	r.Register(name, func() page.Decorator { return d })
}

// Decorator returns the decorator for name, creating it on first use.
func (r *Registry) Decorator(name string) (page.Decorator, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.once.Do(func() { e.decorator = e.factory() })
	return e.decorator, e.decorator != nil
}

// Names returns the registered block names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry with every built-in decorator.
func Default() *Registry {
	r := NewRegistry()
	r.RegisterFunc("article-header", ArticleHeader)
	r.RegisterFunc("footer", Footer)
	r.RegisterFunc("gnav", Gnav)
	r.RegisterFunc("additional-materials", AdditionalMaterials)
	r.RegisterFunc("images", Images)
	return r
}
