// Package static runs syntax checks and external analysis tools over
// source files and normalizes their findings into one deduplicated list.
package static

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// language binds one grammar to the extensions it parses.
type language struct {
	name       string
	extensions []string
	grammar    func() *sitter.Language

	once sync.Once
	lang *sitter.Language
	pool *parserPool
}

func (l *language) load() (*sitter.Language, *parserPool) {
	l.once.Do(func() {
		l.lang = l.grammar()
		l.pool = newParserPool(l.lang)
	})
	return l.lang, l.pool
}

var languages = []*language{
	{name: "css", extensions: []string{".css"}, grammar: func() *sitter.Language {
		return sitter.NewLanguage(tree_sitter_css.Language())
	}},
	{name: "go", extensions: []string{".go"}, grammar: func() *sitter.Language {
		return sitter.NewLanguage(tree_sitter_go.Language())
	}},
	{name: "html", extensions: []string{".html", ".htm"}, grammar: func() *sitter.Language {
		return sitter.NewLanguage(tree_sitter_html.Language())
	}},
	{name: "java", extensions: []string{".java"}, grammar: func() *sitter.Language {
		return sitter.NewLanguage(tree_sitter_java.Language())
	}},
	{name: "javascript", extensions: []string{".js", ".cjs", ".mjs"}, grammar: func() *sitter.Language {
		return sitter.NewLanguage(tree_sitter_javascript.Language())
	}},
	{name: "python", extensions: []string{".py"}, grammar: func() *sitter.Language {
		return sitter.NewLanguage(tree_sitter_python.Language())
	}},
	{name: "rust", extensions: []string{".rs"}, grammar: func() *sitter.Language {
		return sitter.NewLanguage(tree_sitter_rust.Language())
	}},
	{name: "typescript", extensions: []string{".ts"}, grammar: func() *sitter.Language {
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	}},
	{name: "tsx", extensions: []string{".tsx"}, grammar: func() *sitter.Language {
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	}},
}

// languageForPath returns the grammar binding for a file path, or nil for
// unsupported extensions. Grammars load lazily on first use.
func languageForPath(path string) *language {
	ext := strings.ToLower(filepath.Ext(path))
	for _, l := range languages {
		for _, e := range l.extensions {
			if e == ext {
				return l
			}
		}
	}
	return nil
}

// IsSupportedPath reports whether a grammar exists for the file.
func IsSupportedPath(path string) bool {
	return languageForPath(path) != nil
}

// parserPool recycles tree-sitter parser instances to avoid the per-file
// allocation overhead of sitter.NewParser() / parser.Close().
// Safe for use by multiple goroutines simultaneously.
type parserPool struct {
	lang *sitter.Language
	pool sync.Pool
}

func newParserPool(lang *sitter.Language) *parserPool {
	p := &parserPool{lang: lang}
	p.pool = sync.Pool{
		New: func() any {
			sp := sitter.NewParser()
			sp.SetLanguage(lang)
			return sp
		},
	}
	return p
}

func (p *parserPool) get() *sitter.Parser {
	sp := p.pool.Get().(*sitter.Parser)
	sp.SetLanguage(p.lang)
	return sp
}

func (p *parserPool) put(sp *sitter.Parser) {
	p.pool.Put(sp)
}
