// Package extract walks parsed syntax trees and produces the definitions,
// references, and usage sites that feed the symbol graph.
package extract

// DefinitionKind classifies a top-level declaration.
type DefinitionKind string

const (
	KindFunction  DefinitionKind = "function"
	KindClass     DefinitionKind = "class"
	KindVariable  DefinitionKind = "variable"
	KindConst     DefinitionKind = "const"
	KindType      DefinitionKind = "type"
	KindInterface DefinitionKind = "interface"
	KindEnum      DefinitionKind = "enum"
)

// ReferenceKind classifies how a file pulls in or re-exposes symbols.
type ReferenceKind string

const (
	RefImport        ReferenceKind = "import"
	RefDynamicImport ReferenceKind = "dynamic-import"
	RefRequire       ReferenceKind = "require"
	RefReExport      ReferenceKind = "re-export"
	RefExportAll     ReferenceKind = "export-all"
)

// ImportKind classifies the binding shape of an imported symbol.
type ImportKind string

const (
	ImportNamed      ImportKind = "named"
	ImportDefault    ImportKind = "default"
	ImportNamespace  ImportKind = "namespace"
	ImportSideEffect ImportKind = "side-effect"
)

// UsageContext tags the syntax surrounding a usage site.
type UsageContext string

const (
	ContextCall       UsageContext = "call_expression"
	ContextNew        UsageContext = "new_expression"
	ContextMember     UsageContext = "member_expression"
	ContextJSXElement UsageContext = "jsx_element"
	ContextReExport   UsageContext = "re_export"
	ContextIdentifier UsageContext = "identifier"
)

// Point is a zero-indexed row/column position in a source file.
type Point struct {
	Row    int
	Column int
}

// Range is a half-open source span from Start to End.
type Range struct {
	Start Point
	End   Point
}

// Definition is a named top-level declaration in one file.
type Definition struct {
	Name       string
	Kind       DefinitionKind
	IsExported bool
	IsDefault  bool
	Range      Range

	// Extends is the single extends name for classes.
	Extends string
	// Implements lists implemented interface names for classes.
	Implements []string
	// ExtendsAll lists the extends names for interfaces (multi-extends).
	ExtendsAll []string
}

// CallInfo carries call-site metadata for usages that are calls.
type CallInfo struct {
	ArgCount      int
	IsMethodCall  bool
	IsConstructor bool
	ReceiverName  string
}

// Usage is one syntactic occurrence of a symbol name.
type Usage struct {
	Pos     Point
	Context UsageContext
	// Call is nil for non-call usages.
	Call *CallInfo
}

// ImportedSymbol is one symbol brought in (or re-exported) by a Reference.
type ImportedSymbol struct {
	// Name is the original exported name ("default" for default imports,
	// "*" for namespace imports, empty for side-effect imports).
	Name string
	// Alias is the local binding name; equals Name when not renamed.
	Alias  string
	Kind   ImportKind
	Usages []Usage
}

// Reference is an import/require/re-export statement and its symbols.
type Reference struct {
	Kind ReferenceKind
	// Source is the raw import specifier string.
	Source string
	// IsTypeOnly marks TypeScript `import type` statements.
	IsTypeOnly bool
	Pos        Point
	Symbols    []ImportedSymbol
}

// LocalSymbol tracks intra-file usages of a top-level definition.
type LocalSymbol struct {
	Name   string
	Usages []Usage
}
