package registry

import "sort"

// The dependency graph is derived, never stored: it is recomputed from the
// descriptors' dependency sets on every call. Edges may reference names that
// are not registered yet; those count for cycle detection (the declared edge
// set must stay acyclic) but are skipped by the start order until the
// dependency actually registers.

// detectCycle reports whether adding candidate with the given dependency
// edges would introduce a cycle. It returns the offending path (candidate
// first) or nil. Must be called with r.mu held.
func (r *Registry) detectCycle(candidate string, deps []string) []string {
	edges := make(map[string][]string, len(r.services)+1)
	for name, e := range r.services {
		edges[name] = e.desc.Dependencies
	}
	edges[candidate] = deps

	// A new cycle must pass through the candidate, so one DFS from it is
	// enough.
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(edges))

	var path []string
	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			path = append(path, name)
			return true
		case done:
			return false
		}
		state[name] = visiting
		for _, dep := range edges[name] {
			if visit(dep) {
				path = append(path, name)
				return true
			}
		}
		state[name] = done
		return false
	}

	if visit(candidate) {
		// Reverse so the path reads candidate -> ... -> candidate.
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		return path
	}
	return nil
}

// StartOrder returns a topological ordering of the registered services, ties
// broken by registration order. Dependencies on names that are not registered
// yet do not gate the order; the external supervisor can only launch what
// exists.
func (r *Registry) StartOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Kahn's algorithm over registered services only.
	indegree := make(map[string]int, len(r.services))
	dependents := make(map[string][]string, len(r.services))

	for name, e := range r.services {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range e.desc.Dependencies {
			if _, registered := r.services[dep]; !registered {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	order := make([]string, 0, len(r.services))
	ready := r.readyByIndex(indegree)

	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertByIndex(ready, dependent, r.services)
			}
		}
	}

	return order
}

// readyByIndex returns the zero-indegree services sorted by registration order.
func (r *Registry) readyByIndex(indegree map[string]int) []string {
	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return r.services[ready[i]].index < r.services[ready[j]].index
	})
	return ready
}

// insertByIndex inserts name into the ready queue keeping it sorted by
// registration order, so ties keep breaking stably as nodes free up.
func insertByIndex(ready []string, name string, services map[string]*entry) []string {
	idx := services[name].index
	pos := sort.Search(len(ready), func(i int) bool {
		return services[ready[i]].index > idx
	})
	ready = append(ready, "")
	copy(ready[pos+1:], ready[pos:])
	ready[pos] = name
	return ready
}

// sortedEntries returns entries ordered by registration sequence.
// Must be called with r.mu held (read or write).
func (r *Registry) sortedEntries() []*entry {
	out := make([]*entry, 0, len(r.services))
	for _, e := range r.services {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}
