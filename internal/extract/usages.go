package extract

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// identifier node types whose text can be a use of a tracked symbol.
// Property keys and member-access properties are property_identifier nodes
// and thus excluded structurally; shorthand object properties do use the
// binding and are included.
var usageNodeTypes = map[string]bool{
	"identifier":                    true,
	"type_identifier":               true,
	"shorthand_property_identifier": true,
}

// parents whose "name" field is a declaration, not a use.
var declarationParents = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function_signature":             true,
	"class_declaration":              true,
	"abstract_class_declaration":     true,
	"interface_declaration":          true,
	"type_alias_declaration":         true,
	"enum_declaration":               true,
	"variable_declarator":            true,
	"method_definition":              true,
	"function_expression":            true,
}

// parents whose identifier children are parameter bindings.
var parameterParents = map[string]bool{
	"required_parameter": true,
	"optional_parameter": true,
	"formal_parameters":  true,
}

// parents that are import/export specifier machinery; identifiers inside them
// are bindings, not uses.
var specifierParents = map[string]bool{
	"import_specifier": true,
	"export_specifier": true,
	"namespace_import": true,
	"import_clause":    true,
	"named_imports":    true,
}

// collectUsages finds every usage site of the tracked names anywhere in the
// tree and classifies each by its surrounding syntax.
func collectUsages(root *sitter.Node, source []byte, tracked map[string]bool) map[string][]Usage {
	usages := make(map[string][]Usage)
	if len(tracked) == 0 {
		return usages
	}

	visit(root, func(node *sitter.Node) bool {
		if !usageNodeTypes[node.Type()] {
			return true
		}
		name := nodeText(node, source)
		if !tracked[name] {
			return true
		}
		if isNonUsage(node) {
			return true
		}
		usages[name] = append(usages[name], classifyUsage(node, source))
		return true
	})

	return usages
}

// isNonUsage reports whether an identifier occurrence is a declaration name,
// an object-literal property key, or part of an import/export specifier list.
func isNonUsage(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return true
	}

	if specifierParents[parent.Type()] || parameterParents[parent.Type()] {
		return true
	}
	if declarationParents[parent.Type()] && sameNode(node, parent.ChildByFieldName("name")) {
		return true
	}
	// Non-shorthand property key: { foo: bar } — foo is not a use.
	if parent.Type() == "pair" && sameNode(node, parent.ChildByFieldName("key")) {
		return true
	}
	return false
}

// classifyUsage determines the usage context and call-site metadata.
// A bare call foo() tracks foo with call info; a method call obj.foo()
// tracks the receiver obj with isMethodCall and the receiver name; a
// constructor call new Foo() tracks Foo with the constructor flag.
func classifyUsage(node *sitter.Node, source []byte) Usage {
	usage := Usage{Pos: startPoint(node), Context: ContextIdentifier}

	parent := node.Parent()
	if parent == nil {
		return usage
	}

	switch parent.Type() {
	case "call_expression":
		if sameNode(node, parent.ChildByFieldName("function")) {
			usage.Context = ContextCall
			usage.Call = &CallInfo{ArgCount: argumentCount(parent)}
		}

	case "new_expression":
		if sameNode(node, parent.ChildByFieldName("constructor")) {
			usage.Context = ContextNew
			usage.Call = &CallInfo{ArgCount: argumentCount(parent), IsConstructor: true}
		}

	case "member_expression":
		if !sameNode(node, parent.ChildByFieldName("object")) {
			break
		}
		usage.Context = ContextMember
		grandparent := parent.Parent()
		if grandparent != nil && grandparent.Type() == "call_expression" &&
			sameNode(parent, grandparent.ChildByFieldName("function")) {
			usage.Context = ContextCall
			usage.Call = &CallInfo{
				ArgCount:     argumentCount(grandparent),
				IsMethodCall: true,
				ReceiverName: nodeText(node, source),
			}
		}

	case "jsx_opening_element", "jsx_self_closing_element":
		if sameNode(node, parent.ChildByFieldName("name")) {
			usage.Context = ContextJSXElement
		}
	}

	return usage
}

// argumentCount counts the named arguments of a call or new expression.
func argumentCount(call *sitter.Node) int {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return 0
	}
	return int(args.NamedChildCount())
}

// LocalUsages tracks intra-file usages of the file's own top-level
// definitions. These become file-owned symbols feeding the intra-file branch
// of the call graph.
func LocalUsages(root *sitter.Node, source []byte, defs []Definition) []LocalSymbol {
	if root == nil || len(defs) == 0 {
		return nil
	}

	tracked := make(map[string]bool, len(defs))
	order := make([]string, 0, len(defs))
	for _, def := range defs {
		if !tracked[def.Name] {
			tracked[def.Name] = true
			order = append(order, def.Name)
		}
	}

	found := collectUsages(root, source, tracked)

	var locals []LocalSymbol
	for _, name := range order {
		if usages := found[name]; len(usages) > 0 {
			locals = append(locals, LocalSymbol{Name: name, Usages: usages})
		}
	}
	return locals
}
