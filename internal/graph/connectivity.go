package graph

import (
	"sort"

	"codegraph/internal/storage"
)

// ConnectedSymbol is one definition ranked by call-graph degree.
type ConnectedSymbol struct {
	Definition *storage.DefinitionRecord
	InDegree   int
	OutDegree  int
}

// GetHighConnectivitySymbols returns definitions whose in-degree and
// out-degree meet the given minimums, optionally filtered by export status,
// sorted descending by total degree and capped to limit.
func (r *Repository) GetHighConnectivitySymbols(minIn, minOut int, exported *bool, limit int) ([]ConnectedSymbol, error) {
	g, err := BuildCallGraph(r.db, r.includeJSX)
	if err != nil {
		return nil, err
	}

	inDegree := make(map[int64]int)
	outDegree := make(map[int64]int)
	for _, edge := range g.Edges {
		outDegree[edge.FromID]++
		inDegree[edge.ToID]++
	}

	var symbols []ConnectedSymbol
	for _, id := range g.Vertices() {
		in, out := inDegree[id], outDegree[id]
		if in < minIn || out < minOut {
			continue
		}
		def, err := r.definitions.GetByID(id)
		if err != nil {
			return nil, err
		}
		if def == nil {
			continue
		}
		if exported != nil && def.IsExported != *exported {
			continue
		}
		symbols = append(symbols, ConnectedSymbol{Definition: def, InDegree: in, OutDegree: out})
	}

	sort.Slice(symbols, func(i, j int) bool {
		ti := symbols[i].InDegree + symbols[i].OutDegree
		tj := symbols[j].InDegree + symbols[j].OutDegree
		if ti != tj {
			return ti > tj
		}
		return symbols[i].Definition.ID < symbols[j].Definition.ID
	})

	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}
	return symbols, nil
}
