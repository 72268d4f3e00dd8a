package graph

import (
	"database/sql"
	"fmt"

	"codegraph/internal/resolve"
	"codegraph/internal/storage"
)

// maxImportHops bounds the file-reachability walk used for inheritance
// disambiguation.
const maxImportHops = 32

// CreateInheritanceRelationships infers extends/implements edges from the
// heritage clauses captured at extraction time. Each clause name resolves to
// a single target definition; when several definitions share the name, the
// candidate whose file is import-reachable from the source file wins, with a
// deterministic first-candidate fallback. New edges are written as PENDING
// relationship rows in one transaction; existing pairs are never duplicated.
// Returns the number of relationships created.
func (r *Repository) CreateInheritanceRelationships() (int, error) {
	heritage, err := r.definitions.WithHeritage()
	if err != nil {
		return 0, err
	}
	if len(heritage) == 0 {
		return 0, nil
	}

	fileImports, err := r.fileImportAdjacency()
	if err != nil {
		return 0, err
	}

	type edge struct {
		fromID, toID int64
		kind         string
	}
	var edges []edge
	seen := make(map[edge]bool)

	for _, def := range heritage {
		clauses := heritageClauses(def)
		for _, clause := range clauses {
			target, err := r.resolveHeritageName(clause.name, def, fileImports)
			if err != nil {
				return 0, err
			}
			if target == 0 {
				continue
			}
			e := edge{fromID: def.ID, toID: target, kind: clause.kind}
			if !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
	}

	created := 0
	err = r.db.WithTx(func(tx *sql.Tx) error {
		for _, e := range edges {
			exists, err := r.annotations.ExistsTx(tx, e.fromID, e.toID, e.kind)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := r.annotations.InsertTx(tx, e.fromID, e.toID, e.kind, storage.PendingDescription); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Debug("inheritance inference complete",
		"definitions", len(heritage), "created", created)
	return created, nil
}

type heritageClause struct {
	name string
	kind string
}

func heritageClauses(def *storage.DefinitionRecord) []heritageClause {
	var clauses []heritageClause
	if def.Extends != "" {
		clauses = append(clauses, heritageClause{name: def.Extends, kind: "extends"})
	}
	for _, name := range def.ExtendsAll {
		clauses = append(clauses, heritageClause{name: name, kind: "extends"})
	}
	for _, name := range def.Implements {
		clauses = append(clauses, heritageClause{name: name, kind: "implements"})
	}
	return clauses
}

// resolveHeritageName picks the target definition for one clause name.
// Returns 0 when no candidate exists.
func (r *Repository) resolveHeritageName(name string, source *storage.DefinitionRecord, fileImports map[int64][]int64) (int64, error) {
	candidates, err := r.definitions.GetByName(name)
	if err != nil {
		return 0, err
	}

	var filtered []*storage.DefinitionRecord
	for _, c := range candidates {
		if c.ID != source.ID {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return 0, nil
	}
	if len(filtered) == 1 {
		return filtered[0].ID, nil
	}

	// Ambiguous name: prefer the candidate whose file the source file can
	// reach through its imports (or is the source file itself). More than
	// one reachable candidate, or none, falls back to the first candidate.
	var reachableMatches []*storage.DefinitionRecord
	for _, c := range filtered {
		if c.FileID == source.FileID || importReachable(source.FileID, c.FileID, fileImports) {
			reachableMatches = append(reachableMatches, c)
		}
	}
	if len(reachableMatches) == 1 {
		return reachableMatches[0].ID, nil
	}
	return filtered[0].ID, nil
}

// importReachable walks the file-level import graph from fromFile looking
// for toFile, bounded by a visited set and a depth cap.
func importReachable(fromFile, toFile int64, fileImports map[int64][]int64) bool {
	walk := resolve.NewBoundedWalk(maxImportHops)

	type entry struct {
		file  int64
		depth int
	}
	queue := []entry{{file: fromFile, depth: 0}}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if !walk.Enter(fmt.Sprintf("%d", e.file), e.depth) {
			continue
		}
		if e.file == toFile {
			return true
		}
		for _, next := range fileImports[e.file] {
			queue = append(queue, entry{file: next, depth: e.depth + 1})
		}
	}
	return false
}

// fileImportAdjacency maps each file id to the file ids its imports resolve
// to.
func (r *Repository) fileImportAdjacency() (map[int64][]int64, error) {
	rows, err := r.db.Query(`
		SELECT i.file_id, f.id
		FROM imports i
		JOIN files f ON f.path = i.resolved_path
		WHERE i.resolved_path IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read import adjacency: %w", err)
	}
	defer rows.Close()

	adjacency := make(map[int64][]int64)
	for rows.Next() {
		var from, to int64
		if err := rows.Scan(&from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan import adjacency: %w", err)
		}
		adjacency[from] = append(adjacency[from], to)
	}
	return adjacency, rows.Err()
}
