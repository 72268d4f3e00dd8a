package extract

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/require"

	"codegraph/internal/lang"
)

func parseTS(t *testing.T, source string) (*sitter.Node, []byte) {
	t.Helper()
	root, err := lang.NewParser().Parse(context.Background(), []byte(source), lang.LangTypeScript)
	require.NoError(t, err)
	return root, []byte(source)
}

func parseTSX(t *testing.T, source string) (*sitter.Node, []byte) {
	t.Helper()
	root, err := lang.NewParser().Parse(context.Background(), []byte(source), lang.LangTSX)
	require.NoError(t, err)
	return root, []byte(source)
}

func TestDefinitionsKinds(t *testing.T) {
	src := `
export function fetchUser(id: string) { return id; }
export default class UserService {}
const limit = 10;
let counter = 0;
type UserId = string;
interface Repo {}
enum Color { Red, Green }
`
	root, source := parseTS(t, src)
	defs := Definitions(root, source)

	byName := make(map[string]Definition)
	for _, d := range defs {
		byName[d.Name] = d
	}

	require.Len(t, defs, 7)
	require.Equal(t, KindFunction, byName["fetchUser"].Kind)
	require.True(t, byName["fetchUser"].IsExported)
	require.Equal(t, KindClass, byName["UserService"].Kind)
	require.True(t, byName["UserService"].IsDefault)
	require.Equal(t, KindConst, byName["limit"].Kind)
	require.False(t, byName["limit"].IsExported)
	require.Equal(t, KindVariable, byName["counter"].Kind)
	require.Equal(t, KindType, byName["UserId"].Kind)
	require.Equal(t, KindInterface, byName["Repo"].Kind)
	require.Equal(t, KindEnum, byName["Color"].Kind)
}

func TestDefinitionsIndirectExport(t *testing.T) {
	src := `
function helper() {}
function internal() {}
const value = 1;
export { helper, value as default };
`
	root, source := parseTS(t, src)
	defs := Definitions(root, source)

	byName := make(map[string]Definition)
	for _, d := range defs {
		byName[d.Name] = d
	}

	require.True(t, byName["helper"].IsExported)
	require.False(t, byName["helper"].IsDefault)
	require.True(t, byName["value"].IsExported)
	require.True(t, byName["value"].IsDefault)
	require.False(t, byName["internal"].IsExported)
}

func TestDefinitionsExportDefaultIdentifier(t *testing.T) {
	src := `
function main() {}
export default main;
`
	root, source := parseTS(t, src)
	defs := Definitions(root, source)

	require.Len(t, defs, 1)
	require.True(t, defs[0].IsExported)
	require.True(t, defs[0].IsDefault)
}

func TestDefinitionsVariableExpansion(t *testing.T) {
	src := `const a = 1, b = 2;
const { x, y } = point;`
	root, source := parseTS(t, src)
	defs := Definitions(root, source)

	// Destructuring patterns are not extracted as named definitions.
	require.Len(t, defs, 2)
	require.Equal(t, "a", defs[0].Name)
	require.Equal(t, "b", defs[1].Name)
}

func TestDefinitionsNoNestedScopes(t *testing.T) {
	src := `
function outer() {
  function inner() {}
  const local = 1;
}
`
	root, source := parseTS(t, src)
	defs := Definitions(root, source)

	require.Len(t, defs, 1)
	require.Equal(t, "outer", defs[0].Name)
}

func TestDefinitionsHeritage(t *testing.T) {
	src := `
class Child extends Base implements Serializable, Comparable {}
interface Combined extends A, B {}
`
	root, source := parseTS(t, src)
	defs := Definitions(root, source)
	require.Len(t, defs, 2)

	require.Equal(t, "Base", defs[0].Extends)
	require.Equal(t, []string{"Serializable", "Comparable"}, defs[0].Implements)
	require.Equal(t, []string{"A", "B"}, defs[1].ExtendsAll)
}

func TestReferencesImportShapes(t *testing.T) {
	src := `
import fs from "fs";
import { readFile, join as pathJoin } from "./util";
import * as helpers from "../helpers";
import "./side-effect";
import type { Config } from "./config";
`
	root, source := parseTS(t, src)
	refs := References(root, source)
	require.Len(t, refs, 5)

	require.Equal(t, RefImport, refs[0].Kind)
	require.Equal(t, "fs", refs[0].Source)
	require.Equal(t, ImportDefault, refs[0].Symbols[0].Kind)
	require.Equal(t, "default", refs[0].Symbols[0].Name)
	require.Equal(t, "fs", refs[0].Symbols[0].Alias)

	require.Len(t, refs[1].Symbols, 2)
	require.Equal(t, "readFile", refs[1].Symbols[0].Name)
	require.Equal(t, "readFile", refs[1].Symbols[0].Alias)
	require.Equal(t, "join", refs[1].Symbols[1].Name)
	require.Equal(t, "pathJoin", refs[1].Symbols[1].Alias)

	require.Equal(t, ImportNamespace, refs[2].Symbols[0].Kind)
	require.Equal(t, "helpers", refs[2].Symbols[0].Alias)

	require.Equal(t, ImportSideEffect, refs[3].Symbols[0].Kind)

	require.True(t, refs[4].IsTypeOnly)
}

func TestReferencesRequireAndDynamicImport(t *testing.T) {
	src := `
const path = require("path");
const { one, two } = require("./pair");
async function load() {
  const mod = await import("./lazy");
}
`
	root, source := parseTS(t, src)
	refs := References(root, source)
	require.Len(t, refs, 3)

	require.Equal(t, RefRequire, refs[0].Kind)
	require.Equal(t, "path", refs[0].Source)
	require.Equal(t, ImportNamespace, refs[0].Symbols[0].Kind)
	require.Equal(t, "path", refs[0].Symbols[0].Alias)

	require.Equal(t, RefRequire, refs[1].Kind)
	require.Len(t, refs[1].Symbols, 2)
	require.Equal(t, "one", refs[1].Symbols[0].Name)

	require.Equal(t, RefDynamicImport, refs[2].Kind)
	require.Equal(t, "./lazy", refs[2].Source)
}

func TestReferencesReExports(t *testing.T) {
	src := `export { parse, format as fmt } from "./codec";
export * from "./types";`
	root, source := parseTS(t, src)
	refs := References(root, source)
	require.Len(t, refs, 2)

	require.Equal(t, RefReExport, refs[0].Kind)
	require.Len(t, refs[0].Symbols, 2)
	require.Equal(t, "format", refs[0].Symbols[1].Name)
	require.Equal(t, "fmt", refs[0].Symbols[1].Alias)
	// Re-exports synthesize a usage at the statement position.
	require.Len(t, refs[0].Symbols[0].Usages, 1)
	require.Equal(t, ContextReExport, refs[0].Symbols[0].Usages[0].Context)

	require.Equal(t, RefExportAll, refs[1].Kind)
	require.Len(t, refs[1].Symbols, 1)
	require.Equal(t, "*", refs[1].Symbols[0].Name)
}

func TestUsageClassification(t *testing.T) {
	src := `
import { compute, logger } from "./lib";
import { Widget } from "./widget";

function run() {
  compute(1, 2);
  logger.info("hi");
  const w = new Widget();
  const fn = compute;
}
`
	root, source := parseTS(t, src)
	refs := References(root, source)
	require.Len(t, refs, 2)

	symbols := make(map[string]ImportedSymbol)
	for _, ref := range refs {
		for _, sym := range ref.Symbols {
			symbols[sym.Alias] = sym
		}
	}

	compute := symbols["compute"]
	require.Len(t, compute.Usages, 2)
	require.Equal(t, ContextCall, compute.Usages[0].Context)
	require.NotNil(t, compute.Usages[0].Call)
	require.Equal(t, 2, compute.Usages[0].Call.ArgCount)
	require.False(t, compute.Usages[0].Call.IsMethodCall)
	require.Equal(t, ContextIdentifier, compute.Usages[1].Context)

	logger := symbols["logger"]
	require.Len(t, logger.Usages, 1)
	require.Equal(t, ContextCall, logger.Usages[0].Context)
	require.True(t, logger.Usages[0].Call.IsMethodCall)
	require.Equal(t, "logger", logger.Usages[0].Call.ReceiverName)
	require.Equal(t, 1, logger.Usages[0].Call.ArgCount)

	widget := symbols["Widget"]
	require.Len(t, widget.Usages, 1)
	require.Equal(t, ContextNew, widget.Usages[0].Context)
	require.True(t, widget.Usages[0].Call.IsConstructor)
}

func TestUsageExclusions(t *testing.T) {
	src := `
import { value } from "./mod";

const value2 = { value: 1 };      // property key: not a use
const shorthand = { value };      // shorthand: is a use
function value3(value: number) {} // parameter declaration: not a use
export { value };                 // export specifier: not a use
`
	root, source := parseTS(t, src)
	refs := References(root, source)
	require.Len(t, refs, 1)

	usages := refs[0].Symbols[0].Usages
	require.Len(t, usages, 1)
	require.Equal(t, ContextIdentifier, usages[0].Context)
}

func TestJSXUsage(t *testing.T) {
	src := `
import { Button } from "./button";

export function App() {
  return <Button label="ok" />;
}
`
	root, source := parseTSX(t, src)
	refs := References(root, source)
	require.Len(t, refs, 1)

	usages := refs[0].Symbols[0].Usages
	require.Len(t, usages, 1)
	require.Equal(t, ContextJSXElement, usages[0].Context)
}

func TestLocalUsages(t *testing.T) {
	src := `
function helper() {}
function main() {
  helper();
  helper();
}
`
	root, source := parseTS(t, src)
	defs := Definitions(root, source)
	locals := LocalUsages(root, source, defs)

	require.Len(t, locals, 1)
	require.Equal(t, "helper", locals[0].Name)
	require.Len(t, locals[0].Usages, 2)
	require.Equal(t, ContextCall, locals[0].Usages[0].Context)
}
