package graph

import (
	"sort"
)

// FindCycles returns the strongly connected components of size > 1 among
// definitions lacking metadata for the given aspect. Singleton components
// are not cycles. Used to find annotation-order deadlocks: groups of symbols
// none of which can be described before the others.
func (r *Repository) FindCycles(aspect string) ([][]int64, error) {
	annotated, err := r.metadata.AnnotatedIDs(aspect)
	if err != nil {
		return nil, err
	}

	g, err := BuildCallGraph(r.db, r.includeJSX)
	if err != nil {
		return nil, err
	}

	// Adjacency restricted to the unannotated vertex set only; edges into or
	// out of annotated definitions do not participate.
	adjacency := make(map[int64][]int64)
	var vertices []int64
	for _, id := range g.Vertices() {
		if annotated[id] {
			continue
		}
		vertices = append(vertices, id)
		for _, to := range g.Forward[id] {
			if !annotated[to] {
				adjacency[id] = append(adjacency[id], to)
			}
		}
	}

	components := stronglyConnected(vertices, adjacency)

	var cycles [][]int64
	for _, comp := range components {
		if len(comp) > 1 {
			sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
			cycles = append(cycles, comp)
		}
	}
	return cycles, nil
}

// stronglyConnected runs Tarjan's algorithm iteratively. The explicit frame
// stack keeps deep graphs from overflowing the goroutine stack.
func stronglyConnected(vertices []int64, adjacency map[int64][]int64) [][]int64 {
	index := 0
	indices := make(map[int64]int)
	lowlink := make(map[int64]int)
	onStack := make(map[int64]bool)
	var stack []int64
	var components [][]int64

	type frame struct {
		v     int64
		child int // next adjacency index to visit
	}

	for _, root := range vertices {
		if _, visited := indices[root]; visited {
			continue
		}

		frames := []frame{{v: root}}
		indices[root] = index
		lowlink[root] = index
		index++
		stack = append(stack, root)
		onStack[root] = true

		for len(frames) > 0 {
			top := &frames[len(frames)-1]
			v := top.v
			advanced := false

			for top.child < len(adjacency[v]) {
				w := adjacency[v][top.child]
				top.child++

				if _, visited := indices[w]; !visited {
					indices[w] = index
					lowlink[w] = index
					index++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{v: w})
					advanced = true
					break
				} else if onStack[w] {
					if indices[w] < lowlink[v] {
						lowlink[v] = indices[w]
					}
				}
			}
			if advanced {
				continue
			}

			// v is finished; pop its component if it is a root.
			if lowlink[v] == indices[v] {
				var comp []int64
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				components = append(components, comp)
			}

			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].v
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}
		}
	}
	return components
}
