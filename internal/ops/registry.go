package ops

import "sort"

// Registry maps source operator kinds to translation functions. New
// mappings register without touching the traversal logic, and each mapping
// tests in isolation.
type Registry struct {
	translators map[string]Translator
}

// NewRegistry creates a registry with every built-in operator family.
func NewRegistry() *Registry {
	r := &Registry{translators: make(map[string]Translator)}
	r.registerMath()
	r.registerReduce()
	r.registerArray()
	r.registerWindow()
	r.registerSource()
	r.registerControl()
	return r
}

// Register adds or overrides one operator mapping.
func (r *Registry) Register(kind string, t Translator) {
	r.translators[kind] = t
}

// Get returns the translator for an operator kind.
func (r *Registry) Get(kind string) (Translator, bool) {
	t, ok := r.translators[kind]
	return t, ok
}

// SupportedKinds returns every registered operator kind, sorted.
func (r *Registry) SupportedKinds() []string {
	kinds := make([]string, 0, len(r.translators))
	for k := range r.translators {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
