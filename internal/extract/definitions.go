package extract

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// exportBinding records how a name is exported by a standalone export clause.
type exportBinding struct {
	isDefault bool
}

// Definitions lists the top-level declarations of a parsed file in source
// order. Only module-level statements are visited: nested scopes are not
// indexable entry points for cross-file references.
func Definitions(root *sitter.Node, source []byte) []Definition {
	if root == nil {
		return nil
	}

	bindings := collectExportBindings(root, source)

	var defs []Definition
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt == nil {
			continue
		}

		exported, isDefault := false, false
		decl := stmt

		switch stmt.Type() {
		case "export_statement":
			// `export {a} from "x"` is a reference, not a declaration.
			if stmt.ChildByFieldName("source") != nil {
				continue
			}
			inner := stmt.ChildByFieldName("declaration")
			if inner == nil {
				continue
			}
			exported = true
			isDefault = hasChildToken(stmt, "default")
			decl = inner
		case "ambient_declaration":
			inner := firstDeclarationChild(stmt)
			if inner == nil {
				continue
			}
			decl = inner
		}

		for _, def := range declarationDefs(decl, source) {
			if !exported {
				if b, ok := bindings[def.Name]; ok {
					def.IsExported = true
					def.IsDefault = b.isDefault
				}
			} else {
				def.IsExported = true
				def.IsDefault = isDefault
			}
			defs = append(defs, def)
		}
	}
	return defs
}

// collectExportBindings pre-collects `export { a, b as c }` and
// `export default <identifier>` clauses so declarations exported indirectly
// are still marked exported.
func collectExportBindings(root *sitter.Node, source []byte) map[string]exportBinding {
	bindings := make(map[string]exportBinding)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt == nil || stmt.Type() != "export_statement" {
			continue
		}
		if stmt.ChildByFieldName("source") != nil {
			continue // re-export, handled by the reference extractor
		}

		if clause := childOfType(stmt, "export_clause"); clause != nil {
			for j := 0; j < int(clause.NamedChildCount()); j++ {
				spec := clause.NamedChild(j)
				if spec == nil || spec.Type() != "export_specifier" {
					continue
				}
				name := nodeText(spec.ChildByFieldName("name"), source)
				alias := nodeText(spec.ChildByFieldName("alias"), source)
				if name == "" {
					continue
				}
				bindings[name] = exportBinding{isDefault: alias == "default"}
			}
			continue
		}

		// `export default foo` where foo is a plain identifier.
		if hasChildToken(stmt, "default") {
			if value := stmt.ChildByFieldName("value"); value != nil && value.Type() == "identifier" {
				bindings[nodeText(value, source)] = exportBinding{isDefault: true}
			}
		}
	}
	return bindings
}

// declarationDefs expands one declaration statement into definitions.
// Variable declarations yield one definition per declarator; destructuring
// patterns are intentionally not extracted as named definitions.
func declarationDefs(decl *sitter.Node, source []byte) []Definition {
	switch decl.Type() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		if name := nodeText(decl.ChildByFieldName("name"), source); name != "" {
			return []Definition{{Name: name, Kind: KindFunction, Range: nodeRange(decl)}}
		}

	case "class_declaration", "abstract_class_declaration":
		name := nodeText(decl.ChildByFieldName("name"), source)
		if name == "" {
			return nil
		}
		def := Definition{Name: name, Kind: KindClass, Range: nodeRange(decl)}
		def.Extends, def.Implements = classHeritage(decl, source)
		return []Definition{def}

	case "interface_declaration":
		name := nodeText(decl.ChildByFieldName("name"), source)
		if name == "" {
			return nil
		}
		def := Definition{Name: name, Kind: KindInterface, Range: nodeRange(decl)}
		def.ExtendsAll = interfaceExtends(decl, source)
		return []Definition{def}

	case "type_alias_declaration":
		if name := nodeText(decl.ChildByFieldName("name"), source); name != "" {
			return []Definition{{Name: name, Kind: KindType, Range: nodeRange(decl)}}
		}

	case "enum_declaration":
		if name := nodeText(decl.ChildByFieldName("name"), source); name != "" {
			return []Definition{{Name: name, Kind: KindEnum, Range: nodeRange(decl)}}
		}

	case "lexical_declaration", "variable_declaration":
		kind := KindVariable
		if hasChildToken(decl, "const") {
			kind = KindConst
		}
		var defs []Definition
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			d := decl.NamedChild(i)
			if d == nil || d.Type() != "variable_declarator" {
				continue
			}
			name := d.ChildByFieldName("name")
			if name == nil || name.Type() != "identifier" {
				continue // destructuring pattern, skip
			}
			defs = append(defs, Definition{
				Name:  nodeText(name, source),
				Kind:  kind,
				Range: nodeRange(decl),
			})
		}
		return defs
	}
	return nil
}

// classHeritage extracts the extends name and implements list of a class.
// The TypeScript grammar nests extends_clause/implements_clause under
// class_heritage; the JavaScript grammar puts the extends value directly in
// class_heritage.
func classHeritage(decl *sitter.Node, source []byte) (extends string, implements []string) {
	heritage := childOfType(decl, "class_heritage")
	if heritage == nil {
		return "", nil
	}

	if ext := childOfType(heritage, "extends_clause"); ext != nil {
		if value := ext.ChildByFieldName("value"); value != nil {
			extends = nodeText(value, source)
		} else if first := ext.NamedChild(0); first != nil {
			extends = nodeText(first, source)
		}
	} else if first := heritage.NamedChild(0); first != nil {
		// JavaScript grammar: class_heritage -> "extends" expression.
		extends = nodeText(first, source)
	}

	if impl := childOfType(heritage, "implements_clause"); impl != nil {
		for i := 0; i < int(impl.NamedChildCount()); i++ {
			if t := impl.NamedChild(i); t != nil {
				implements = append(implements, nodeText(t, source))
			}
		}
	}
	return extends, implements
}

// interfaceExtends extracts interface multi-extends names.
func interfaceExtends(decl *sitter.Node, source []byte) []string {
	clause := childOfType(decl, "extends_type_clause")
	if clause == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		if t := clause.NamedChild(i); t != nil {
			names = append(names, nodeText(t, source))
		}
	}
	return names
}

// firstDeclarationChild finds the declaration wrapped by an ambient statement.
func firstDeclarationChild(stmt *sitter.Node) *sitter.Node {
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_declaration", "function_signature", "class_declaration",
			"abstract_class_declaration", "interface_declaration",
			"type_alias_declaration", "enum_declaration",
			"lexical_declaration", "variable_declaration":
			return child
		}
	}
	return nil
}
