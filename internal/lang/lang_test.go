package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"src/app.ts", LangTypeScript, true},
		{"src/App.TSX", LangTSX, true},
		{"lib/index.js", LangJavaScript, true},
		{"lib/widget.jsx", LangTSX, true},
		{"mod.mts", LangTypeScript, true},
		{"mod.cjs", LangJavaScript, true},
		{"README.md", "", false},
		{"styles.css", "", false},
		{"Makefile", "", false},
	}

	for _, tt := range tests {
		got, ok := FromPath(tt.path)
		require.Equal(t, tt.ok, ok, tt.path)
		require.Equal(t, tt.want, got, tt.path)
	}
}

func TestParseTypeScript(t *testing.T) {
	p := NewParser()
	root, err := p.Parse(context.Background(), []byte("export function f() {}\n"), LangTypeScript)
	require.NoError(t, err)
	require.Equal(t, "program", root.Type())
	require.Greater(t, int(root.NamedChildCount()), 0)
}

func TestParseFilePicksGrammar(t *testing.T) {
	p := NewParser()

	root, err := p.ParseFile(context.Background(), "view.tsx", []byte("const V = () => <div/>\n"))
	require.NoError(t, err)
	require.Equal(t, "program", root.Type())

	_, err = p.ParseFile(context.Background(), "notes.txt", []byte("hello"))
	require.Error(t, err)
}
