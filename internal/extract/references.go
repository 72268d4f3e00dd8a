package extract

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// References lists the imports, dynamic imports, requires, and re-exports of
// a parsed file, each with its symbols and every usage site in the file.
func References(root *sitter.Node, source []byte) []Reference {
	if root == nil {
		return nil
	}

	var refs []Reference

	// Static imports and re-exports are module-level statements.
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt == nil {
			continue
		}
		switch stmt.Type() {
		case "import_statement":
			if ref := importReference(stmt, source); ref != nil {
				refs = append(refs, *ref)
			}
		case "export_statement":
			if stmt.ChildByFieldName("source") == nil {
				continue
			}
			if ref := reExportReference(stmt, source); ref != nil {
				refs = append(refs, *ref)
			}
		}
	}

	// require() and import() calls can appear anywhere.
	visit(root, func(node *sitter.Node) bool {
		if node.Type() != "call_expression" {
			return true
		}
		if ref := callReference(node, source); ref != nil {
			refs = append(refs, *ref)
		}
		return true
	})

	attachUsages(root, source, refs)
	return refs
}

// importReference builds a Reference from an ES import statement.
func importReference(stmt *sitter.Node, source []byte) *Reference {
	src := stmt.ChildByFieldName("source")
	if src == nil {
		return nil
	}

	ref := &Reference{
		Kind:       RefImport,
		Source:     stringLiteral(src, source),
		IsTypeOnly: hasChildToken(stmt, "type"),
		Pos:        startPoint(stmt),
	}

	clause := childOfType(stmt, "import_clause")
	if clause == nil {
		// `import "./side-effect"`.
		ref.Symbols = append(ref.Symbols, ImportedSymbol{Kind: ImportSideEffect})
		return ref
	}

	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "identifier":
			// Default import binding.
			alias := nodeText(child, source)
			ref.Symbols = append(ref.Symbols, ImportedSymbol{
				Name: "default", Alias: alias, Kind: ImportDefault,
			})
		case "named_imports":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec == nil || spec.Type() != "import_specifier" {
					continue
				}
				name := nodeText(spec.ChildByFieldName("name"), source)
				alias := nodeText(spec.ChildByFieldName("alias"), source)
				if alias == "" {
					alias = name
				}
				if name == "" {
					continue
				}
				ref.Symbols = append(ref.Symbols, ImportedSymbol{
					Name: name, Alias: alias, Kind: ImportNamed,
				})
			}
		case "namespace_import":
			// import * as ns from "x"
			if ident := childOfType(child, "identifier"); ident != nil {
				ref.Symbols = append(ref.Symbols, ImportedSymbol{
					Name: "*", Alias: nodeText(ident, source), Kind: ImportNamespace,
				})
			}
		}
	}
	return ref
}

// reExportReference builds a Reference from `export ... from "x"`.
// Each re-exported symbol gets a synthesized usage at the statement position
// so the dependency edge exists even though no call occurs.
func reExportReference(stmt *sitter.Node, source []byte) *Reference {
	src := stmt.ChildByFieldName("source")
	ref := &Reference{
		Source:     stringLiteral(src, source),
		IsTypeOnly: hasChildToken(stmt, "type"),
		Pos:        startPoint(stmt),
	}
	reExportUsage := Usage{Pos: ref.Pos, Context: ContextReExport}

	if clause := childOfType(stmt, "export_clause"); clause != nil {
		ref.Kind = RefReExport
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			spec := clause.NamedChild(i)
			if spec == nil || spec.Type() != "export_specifier" {
				continue
			}
			name := nodeText(spec.ChildByFieldName("name"), source)
			alias := nodeText(spec.ChildByFieldName("alias"), source)
			if alias == "" {
				alias = name
			}
			if name == "" {
				continue
			}
			ref.Symbols = append(ref.Symbols, ImportedSymbol{
				Name: name, Alias: alias, Kind: ImportNamed,
				Usages: []Usage{reExportUsage},
			})
		}
		return ref
	}

	// `export * from "x"` or `export * as ns from "x"`.
	ref.Kind = RefExportAll
	alias := "*"
	if nsExport := childOfType(stmt, "namespace_export"); nsExport != nil {
		if ident := nsExport.NamedChild(0); ident != nil {
			alias = nodeText(ident, source)
		}
	}
	ref.Symbols = append(ref.Symbols, ImportedSymbol{
		Name: "*", Alias: alias, Kind: ImportNamespace,
		Usages: []Usage{reExportUsage},
	})
	return ref
}

// callReference builds a Reference from require("x") or import("x") calls.
func callReference(call *sitter.Node, source []byte) *Reference {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return nil
	}

	var kind ReferenceKind
	switch {
	case fn.Type() == "import":
		kind = RefDynamicImport
	case fn.Type() == "identifier" && nodeText(fn, source) == "require":
		kind = RefRequire
	default:
		return nil
	}

	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	first := args.NamedChild(0)
	if first == nil || first.Type() != "string" {
		// Dynamic specifier expression: unresolvable, skip.
		return nil
	}

	ref := &Reference{
		Kind:   kind,
		Source: stringLiteral(first, source),
		Pos:    startPoint(call),
	}

	if kind == RefRequire {
		ref.Symbols = requireBindings(call, source)
	}
	return ref
}

// requireBindings extracts local bindings from `const x = require(...)` and
// `const {a, b} = require(...)` forms.
func requireBindings(call *sitter.Node, source []byte) []ImportedSymbol {
	parent := call.Parent()
	if parent == nil || parent.Type() != "variable_declarator" {
		return nil
	}
	name := parent.ChildByFieldName("name")
	if name == nil {
		return nil
	}

	switch name.Type() {
	case "identifier":
		return []ImportedSymbol{{
			Name: "*", Alias: nodeText(name, source), Kind: ImportNamespace,
		}}
	case "object_pattern":
		var symbols []ImportedSymbol
		for i := 0; i < int(name.NamedChildCount()); i++ {
			prop := name.NamedChild(i)
			if prop == nil || prop.Type() != "shorthand_property_identifier_pattern" {
				continue
			}
			text := nodeText(prop, source)
			symbols = append(symbols, ImportedSymbol{
				Name: text, Alias: text, Kind: ImportNamed,
			})
		}
		return symbols
	}
	return nil
}

// attachUsages collects usage sites for every local alias across all
// references in one pass and assigns them to the owning symbols.
func attachUsages(root *sitter.Node, source []byte, refs []Reference) {
	tracked := make(map[string]bool)
	for _, ref := range refs {
		for _, sym := range ref.Symbols {
			if sym.Alias != "" && sym.Alias != "*" {
				tracked[sym.Alias] = true
			}
		}
	}

	found := collectUsages(root, source, tracked)
	for ri := range refs {
		for si := range refs[ri].Symbols {
			sym := &refs[ri].Symbols[si]
			if sym.Alias == "" || sym.Alias == "*" {
				continue
			}
			if usages := found[sym.Alias]; len(usages) > 0 {
				sym.Usages = append(sym.Usages, usages...)
			}
		}
	}
}
