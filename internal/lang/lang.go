// Package lang wraps tree-sitter parsing for the supported source languages.
package lang

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a parseable source language.
type Language string

const (
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
)

// SourceExtensions lists the file extensions the indexer considers source
// files, in the order the path resolver probes them.
var SourceExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

// FromPath maps a file path to its Language by extension.
func FromPath(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	case ".js", ".mjs", ".cjs":
		return LangJavaScript, true
	case ".jsx":
		// The TSX grammar is a superset of JSX.
		return LangTSX, true
	default:
		return "", false
	}
}

// IsSourceFile reports whether the path has an indexable extension.
func IsSourceFile(path string) bool {
	_, ok := FromPath(path)
	return ok
}

// Parser parses source files into tree-sitter syntax trees.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a parser. A Parser is not safe for concurrent use.
func NewParser() *Parser {
	return &Parser{parser: sitter.NewParser()}
}

// Parse parses source and returns the syntax tree root.
func (p *Parser) Parse(ctx context.Context, source []byte, language Language) (*sitter.Node, error) {
	tsLang, err := grammar(language)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return tree.RootNode(), nil
}

// ParseFile parses a file's contents, picking the grammar from its extension.
func (p *Parser) ParseFile(ctx context.Context, path string, source []byte) (*sitter.Node, error) {
	language, ok := FromPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	return p.Parse(ctx, source, language)
}

func grammar(language Language) (*sitter.Language, error) {
	switch language {
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
}
