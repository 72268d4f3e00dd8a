package graph

import (
	"sort"

	"codegraph/internal/storage"
)

// NeighborhoodNode is one definition in a neighborhood, enriched with its
// record and distance from the start.
type NeighborhoodNode struct {
	Definition *storage.DefinitionRecord
	Depth      int
	// Annotated reports whether any relationship annotation touches the
	// definition.
	Annotated bool
}

// Neighborhood is the bounded bidirectional closure around one definition.
type Neighborhood struct {
	Nodes []NeighborhoodNode
	// Edges contains only pairs where both endpoints made it into Nodes.
	Edges []Edge
	// Truncated is set when maxNodes stopped the traversal early.
	Truncated bool
}

// GetNeighborhood runs a bidirectional BFS (forward call edges and reverse
// incoming edges together) from startID, bounded by maxDepth and a hard cap
// of maxNodes visited nodes.
func (r *Repository) GetNeighborhood(startID int64, maxDepth, maxNodes int) (*Neighborhood, error) {
	g, err := BuildCallGraph(r.db, r.includeJSX)
	if err != nil {
		return nil, err
	}

	depths := map[int64]int{startID: 0}
	queue := []int64{startID}
	truncated := false

	for len(queue) > 0 && !truncated {
		id := queue[0]
		queue = queue[1:]
		depth := depths[id]
		if depth >= maxDepth {
			continue
		}

		for _, next := range append(append([]int64{}, g.Forward[id]...), g.Reverse[id]...) {
			if _, seen := depths[next]; seen {
				continue
			}
			if len(depths) >= maxNodes {
				truncated = true
				break
			}
			depths[next] = depth + 1
			queue = append(queue, next)
		}
	}

	ids := make([]int64, 0, len(depths))
	for id := range depths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	neighborhood := &Neighborhood{Truncated: truncated}
	for _, id := range ids {
		def, err := r.definitions.GetByID(id)
		if err != nil {
			return nil, err
		}
		if def == nil {
			// Edge to a definition deleted since the graph was built.
			continue
		}
		annotations, err := r.annotations.GetForDefinition(id)
		if err != nil {
			return nil, err
		}
		neighborhood.Nodes = append(neighborhood.Nodes, NeighborhoodNode{
			Definition: def,
			Depth:      depths[id],
			Annotated:  len(annotations) > 0,
		})
	}

	inSet := make(map[int64]bool, len(neighborhood.Nodes))
	for _, node := range neighborhood.Nodes {
		inSet[node.Definition.ID] = true
	}
	for _, edge := range g.Edges {
		if inSet[edge.FromID] && inSet[edge.ToID] {
			neighborhood.Edges = append(neighborhood.Edges, edge)
		}
	}
	return neighborhood, nil
}
