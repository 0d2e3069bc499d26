package agent

import (
	"sort"
	"sync"

	"github.com/vincentdeneuf/agentine/llm"
)

// Index is a named registry of agents with an optional default. The default
// is tracked by name, so it always refers to whatever agent currently holds
// that name.
type Index struct {
	mu          sync.RWMutex
	agents      map[string]*Agent
	defaultName string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{agents: make(map[string]*Agent)}
}

// Add registers an agent under name. The last add wins when names collide.
// When makeDefault is true the default moves to this entry.
func (idx *Index) Add(name string, a *Agent, makeDefault bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.agents[name] = a
	if makeDefault {
		idx.defaultName = name
	}
}

// Remove deletes the named entry. Removing the default leaves the index
// without a default.
func (idx *Index) Remove(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.agents[name]; !ok {
		return llm.NewNotFoundError("agent %q not found in the index", name)
	}
	if idx.defaultName == name {
		idx.defaultName = ""
	}
	delete(idx.agents, name)
	return nil
}

// SetDefault makes the named entry the default.
func (idx *Index) SetDefault(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.agents[name]; !ok {
		return llm.NewNotFoundError("agent %q not found in the index", name)
	}
	idx.defaultName = name
	return nil
}

// Default returns the default agent, if one is set.
func (idx *Index) Default() (*Agent, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.defaultName == "" {
		return nil, false
	}
	a, ok := idx.agents[idx.defaultName]
	return a, ok
}

// Get returns the named agent.
func (idx *Index) Get(name string) (*Agent, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	a, ok := idx.agents[name]
	return a, ok
}

// Names returns the registered names in sorted order.
func (idx *Index) Names() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	names := make([]string, 0, len(idx.agents))
	for name := range idx.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered agents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.agents)
}

// Find resolves names in input order, silently skipping unknown ones.
// Duplicate names yield duplicate entries.
func (idx *Index) Find(names []string) []*Agent {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	agents := make([]*Agent, 0, len(names))
	for _, name := range names {
		if a, ok := idx.agents[name]; ok {
			agents = append(agents, a)
		}
	}
	return agents
}
