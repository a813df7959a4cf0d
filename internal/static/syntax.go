package static

import (
	"fmt"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"mend/internal/diag"
	"mend/internal/shared/observability"
)

const syntaxSource = "tree-sitter"

// checkSyntax parses content with the file's grammar and returns exactly
// one syntax_error finding when the tree contains an error, or nil for
// clean (or unsupported) files.
func checkSyntax(path string, content []byte) *diag.ErrorInfo {
	lang := languageForPath(path)
	if lang == nil {
		return nil
	}

	start := time.Now()
	_, pool := lang.load()
	parser := pool.get()
	defer pool.put(parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()
	observability.SyntaxCheckDuration.WithLabelValues(lang.name).Observe(time.Since(start).Seconds())

	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil
	}

	line, column := 1, 1
	msg := "invalid syntax"
	if node := firstErrorNode(root); node != nil {
		line = int(node.StartPosition().Row) + 1
		column = int(node.StartPosition().Column) + 1
		if node.IsMissing() {
			msg = fmt.Sprintf("invalid syntax: missing %s", node.Kind())
		}
	}

	return &diag.ErrorInfo{
		FilePath:  path,
		Line:      line,
		Column:    column,
		Severity:  diag.SeverityError,
		Message:   msg,
		Source:    syntaxSource,
		ErrorType: diag.TypeSyntaxError,
	}
}

// firstErrorNode walks the tree depth-first and returns the first ERROR
// or missing node in document order.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.IsError() || child.IsMissing() || child.HasError() {
			if found := firstErrorNode(child); found != nil {
				return found
			}
		}
	}
	// The tree reports an error but no child carries it; fall back to
	// the node itself.
	return node
}
