package resolve

// BoundedWalk guards recursive graph traversals with a visited set and a
// hard depth bound. Cyclic graphs (mutually re-exporting files, recursive
// imports) terminate on the visited set; pathological acyclic chains
// terminate on the depth bound. Either bound being hit means "stop", never
// an error.
type BoundedWalk struct {
	visited  map[string]bool
	maxDepth int
}

// NewBoundedWalk creates a walk bounded to maxDepth levels of descent.
func NewBoundedWalk(maxDepth int) *BoundedWalk {
	return &BoundedWalk{
		visited:  make(map[string]bool),
		maxDepth: maxDepth,
	}
}

// Enter records a visit to key at the given depth. It returns false when the
// key was already visited or the depth bound is exceeded; callers must not
// descend in that case.
func (w *BoundedWalk) Enter(key string, depth int) bool {
	if depth > w.maxDepth {
		return false
	}
	if w.visited[key] {
		return false
	}
	w.visited[key] = true
	return true
}

// Visited reports whether key has been entered.
func (w *BoundedWalk) Visited(key string) bool {
	return w.visited[key]
}
