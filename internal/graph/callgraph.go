// Package graph builds and analyzes the definition-level call graph.
package graph

import (
	"fmt"
	"sort"

	"codegraph/internal/storage"
)

// Edge is one directed, weighted call-graph edge between definitions.
// MinUsageLine is 1-indexed.
type Edge struct {
	FromID       int64
	ToID         int64
	Weight       int
	MinUsageLine int
}

// CallGraph is the full definition-level call graph with adjacency both ways.
type CallGraph struct {
	Edges    []Edge
	Forward  map[int64][]int64
	Reverse  map[int64][]int64
	edgeSet  map[[2]int64]*Edge
	vertices map[int64]bool
}

// EdgeExists reports whether a call edge links the pair.
func (g *CallGraph) EdgeExists(fromID, toID int64) bool {
	_, ok := g.edgeSet[[2]int64{fromID, toID}]
	return ok
}

// Vertices returns every definition id appearing on an edge.
func (g *CallGraph) Vertices() []int64 {
	ids := make([]int64, 0, len(g.vertices))
	for id := range g.vertices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// callContexts are the usage contexts that constitute a call edge. JSX
// element usage joins the set only when the caller asks for UI-invocation
// edges.
var callContexts = []string{"call_expression", "new_expression", "member_expression"}

// BuildCallGraph unions two edge sources: usages whose symbol resolved
// within the same file, and usages on symbols linked through an import from
// the caller's file. In both, the usage line must fall inside the caller
// definition's line range, and self-loops are dropped. Duplicate pairs merge:
// weights sum, the minimum usage line wins.
func BuildCallGraph(db *storage.DB, includeJSX bool) (*CallGraph, error) {
	contexts := callContexts
	if includeJSX {
		contexts = append(append([]string{}, callContexts...), "jsx_element")
	}
	placeholders := ""
	args := make([]interface{}, len(contexts))
	for i, c := range contexts {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = c
	}

	intraFile := `
		SELECT caller.id, s.definition_id, u.row
		FROM usages u
		JOIN symbols s ON s.id = u.symbol_id
		JOIN definitions caller ON caller.file_id = s.file_id
		WHERE s.file_id IS NOT NULL
		  AND s.definition_id IS NOT NULL
		  AND u.row BETWEEN caller.start_row AND caller.end_row
		  AND u.context IN (` + placeholders + `)`

	importLinked := `
		SELECT caller.id, s.definition_id, u.row
		FROM usages u
		JOIN symbols s ON s.id = u.symbol_id
		JOIN imports i ON i.id = s.reference_id
		JOIN definitions caller ON caller.file_id = i.file_id
		WHERE s.definition_id IS NOT NULL
		  AND u.row BETWEEN caller.start_row AND caller.end_row
		  AND u.context IN (` + placeholders + `)`

	graph := &CallGraph{
		Forward:  make(map[int64][]int64),
		Reverse:  make(map[int64][]int64),
		edgeSet:  make(map[[2]int64]*Edge),
		vertices: make(map[int64]bool),
	}

	for _, query := range []string{intraFile, importLinked} {
		if err := accumulateEdges(db, graph, query, args); err != nil {
			return nil, err
		}
	}

	for key, edge := range graph.edgeSet {
		graph.Edges = append(graph.Edges, *edge)
		graph.Forward[key[0]] = append(graph.Forward[key[0]], key[1])
		graph.Reverse[key[1]] = append(graph.Reverse[key[1]], key[0])
		graph.vertices[key[0]] = true
		graph.vertices[key[1]] = true
	}
	sort.Slice(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].FromID != graph.Edges[j].FromID {
			return graph.Edges[i].FromID < graph.Edges[j].FromID
		}
		return graph.Edges[i].ToID < graph.Edges[j].ToID
	})
	return graph, nil
}

func accumulateEdges(db *storage.DB, graph *CallGraph, query string, args []interface{}) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("failed to query call edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fromID, toID int64
		var row int
		if err := rows.Scan(&fromID, &toID, &row); err != nil {
			return fmt.Errorf("failed to scan call edge: %w", err)
		}
		if fromID == toID {
			continue
		}

		key := [2]int64{fromID, toID}
		line := row + 1
		if edge, ok := graph.edgeSet[key]; ok {
			edge.Weight++
			if line < edge.MinUsageLine {
				edge.MinUsageLine = line
			}
		} else {
			graph.edgeSet[key] = &Edge{
				FromID: fromID, ToID: toID,
				Weight: 1, MinUsageLine: line,
			}
		}
	}
	return rows.Err()
}
