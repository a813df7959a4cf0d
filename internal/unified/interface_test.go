package unified

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mend/internal/config"
	"mend/internal/diag"
	"mend/internal/ports"
)

type stubRuntime struct{ records []diag.RuntimeError }

func (s *stubRuntime) RuntimeErrors() []diag.RuntimeError { return s.records }

type stubStatic struct{ findings []diag.ErrorInfo }

func (s *stubStatic) Errors() []diag.ErrorInfo { return s.findings }

type stubGraph struct {
	diagnostics []diag.UnifiedError
	symbols     ports.SymbolContext
	actions     []ports.CodeAction
	applyOK     bool
}

func (g *stubGraph) GetCodeActions(ctx context.Context, file string, line, character int) ([]ports.CodeAction, error) {
	return g.actions, nil
}

func (g *stubGraph) ApplyCodeAction(ctx context.Context, action ports.CodeAction) (ports.ActionResult, error) {
	return ports.ActionResult{Success: g.applyOK, Changes: []string{file(action)}}, nil
}

func file(a ports.CodeAction) string {
	if s, ok := a.Data.(string); ok {
		return s
	}
	return "unknown"
}

func (g *stubGraph) SymbolContext(ctx context.Context, file string, line, character int) (ports.SymbolContext, error) {
	return g.symbols, nil
}

func (g *stubGraph) Diagnostics(ctx context.Context) ([]diag.UnifiedError, error) {
	return g.diagnostics, nil
}

func importFinding(path string) diag.ErrorInfo {
	return diag.ErrorInfo{
		FilePath: path, Line: 1, Column: 1,
		Severity: diag.SeverityError, Source: "flake8", Code: "F401",
		Message:   "unable to import 'missing_module'",
		ErrorType: diag.TypeUnusedImport,
	}
}

func TestErrorsMergesAllSources(t *testing.T) {
	rt := &stubRuntime{records: []diag.RuntimeError{{
		FilePath: "b.py", Line: 4, Message: "TypeError: boom", Severity: diag.SeverityError,
	}}}
	st := &stubStatic{findings: []diag.ErrorInfo{importFinding("a.py")}}
	graph := &stubGraph{diagnostics: []diag.UnifiedError{{
		ID: "c.py:9:1", FilePath: "c.py", Line: 9, Character: 1,
		Message: "protocol diagnostic", Severity: diag.SeverityWarning, Source: "lsp",
	}}}

	iface := New(t.TempDir(), rt, st, graph, config.Fix{})
	errs := iface.Errors(context.Background())

	require.Len(t, errs, 3)
	assert.Equal(t, "a.py:1:1", errs[0].ID)
	assert.Equal(t, "b.py:4:0", errs[1].ID)
	assert.Equal(t, "c.py:9:1", errs[2].ID)
	assert.True(t, errs[0].HasFix, "import error matches a heuristic")
	assert.False(t, errs[2].HasFix, "protocol message matches no heuristic")
}

func TestErrorsDeduplicatesAcrossSources(t *testing.T) {
	root := t.TempDir()

	// Scans hand the detector absolute paths while the collector records
	// repo-relative ones; both must normalize to the same id.
	st := &stubStatic{findings: []diag.ErrorInfo{importFinding(filepath.Join(root, "a.py"))}}
	rt := &stubRuntime{records: []diag.RuntimeError{{
		FilePath: "a.py", Line: 1, Character: 1, Message: "ImportError: duplicate location",
	}}}

	iface := New(root, rt, st, nil, config.Fix{})
	errs := iface.Errors(context.Background())

	require.Len(t, errs, 1)
	assert.Equal(t, "a.py:1:1", errs[0].ID)
	assert.Equal(t, "a.py", errs[0].FilePath)
	assert.Equal(t, "flake8", errs[0].Source, "static finding wins on shared location")
}

func TestErrorsWithNoSources(t *testing.T) {
	iface := New(t.TempDir(), nil, nil, nil, config.Fix{})
	assert.Empty(t, iface.Errors(context.Background()))
}

func TestFullErrorContextUnknownID(t *testing.T) {
	iface := New(t.TempDir(), nil, &stubStatic{}, nil, config.Fix{})
	assert.Nil(t, iface.FullErrorContext(context.Background(), "nope:1:1"))
}

func TestFullErrorContextEnrichment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("import missing_module\nx = 1\ny = 2\n"), 0o644))

	st := &stubStatic{findings: []diag.ErrorInfo{importFinding(path)}}
	graph := &stubGraph{symbols: ports.SymbolContext{
		CallingFunctions: []string{"main"},
		DependencyChain:  []string{"a", "missing_module"},
	}}

	iface := New(dir, nil, st, graph, config.Fix{})
	errCtx := iface.FullErrorContext(context.Background(), "a.py:1:1")

	require.NotNil(t, errCtx)
	assert.Equal(t, "a.py", errCtx.Error.FilePath, "absolute finding path is rewritten repo-relative")
	assert.Equal(t, []string{"main"}, errCtx.CallingFunctions)
	assert.Equal(t, []string{"a", "missing_module"}, errCtx.DependencyChain)
	assert.NotEmpty(t, errCtx.CodeContext)
	assert.Contains(t, errCtx.CodeContext, "import missing_module")
	assert.True(t, errCtx.HasFix)
	assert.NotEmpty(t, errCtx.FixSuggestions, "has_fix implies at least one suggestion")
}

func TestResolveErrorNotFound(t *testing.T) {
	iface := New(t.TempDir(), nil, &stubStatic{}, nil, config.Fix{})
	result := iface.ResolveError(context.Background(), "nonexistent-id")

	assert.False(t, result.Success)
	assert.Equal(t, "Error not found", result.Error)
	assert.Equal(t, "nonexistent-id", result.ErrorID)
}

func TestResolveErrorNoFixAvailable(t *testing.T) {
	st := &stubStatic{findings: []diag.ErrorInfo{{
		FilePath: "a.py", Line: 2, Column: 3,
		Severity: diag.SeverityInfo, Source: "flake8",
		Message: "nothing heuristics understand", ErrorType: diag.TypeUnknown,
	}}}
	iface := New(t.TempDir(), nil, st, nil, config.Fix{})

	result := iface.ResolveError(context.Background(), "a.py:2:3")
	assert.False(t, result.Success)
	assert.Equal(t, "No automatic fix available", result.Error)
}

func TestResolveErrorViaHeuristic(t *testing.T) {
	st := &stubStatic{findings: []diag.ErrorInfo{importFinding("a.py")}}
	iface := New(t.TempDir(), nil, st, nil, config.Fix{})

	result := iface.ResolveError(context.Background(), "a.py:1:1")
	require.True(t, result.Success)
	assert.Contains(t, result.FixApplied, "missing-import")
	assert.Equal(t, []string{"a.py"}, result.ChangesMade)
}

func TestResolveErrorsDefaultsToFixable(t *testing.T) {
	st := &stubStatic{findings: []diag.ErrorInfo{
		importFinding("a.py"),
		{FilePath: "b.py", Line: 5, Column: 1, Severity: diag.SeverityInfo, Source: "flake8", Message: "opaque", ErrorType: diag.TypeUnknown},
	}}
	iface := New(t.TempDir(), nil, st, nil, config.Fix{ResolveWorkers: 2})

	bulk := iface.ResolveErrors(context.Background())
	assert.Equal(t, 1, bulk.TotalErrors, "only the fixable error is attempted by default")
	assert.Equal(t, 1, bulk.AttemptedFixes)
	assert.Equal(t, 1, bulk.SuccessfulFixes)
	assert.Equal(t, 0, bulk.FailedFixes)
	require.Len(t, bulk.Results, 1)
	assert.Equal(t, "a.py:1:1", bulk.Results[0].ErrorID)
}

func TestResolveErrorsZeroFixable(t *testing.T) {
	iface := New(t.TempDir(), nil, &stubStatic{}, nil, config.Fix{})
	bulk := iface.ResolveErrors(context.Background())

	assert.Equal(t, diag.BulkResolutionResult{
		TotalErrors: 0, AttemptedFixes: 0, SuccessfulFixes: 0, FailedFixes: 0,
		Results: []diag.ResolutionResult{},
	}, bulk)
}

func TestResolveErrorsPreservesInputOrder(t *testing.T) {
	st := &stubStatic{findings: []diag.ErrorInfo{
		importFinding("a.py"),
		{FilePath: "b.py", Line: 2, Column: 1, Severity: diag.SeverityError, Source: "flake8", Message: "undefined name 'q'", ErrorType: diag.TypeUndefinedName},
	}}
	iface := New(t.TempDir(), nil, st, nil, config.Fix{ResolveWorkers: 4})

	ids := []string{"b.py:2:1", "missing:0:0", "a.py:1:1"}
	bulk := iface.ResolveErrors(context.Background(), ids...)

	require.Len(t, bulk.Results, 3)
	for i, id := range ids {
		assert.Equal(t, id, bulk.Results[i].ErrorID)
	}
	assert.Equal(t, 3, bulk.AttemptedFixes)
	assert.Equal(t, 2, bulk.SuccessfulFixes)
	assert.Equal(t, 1, bulk.FailedFixes)
	assert.Equal(t, "Error not found", bulk.Results[1].Error)
}

func TestResolveErrorPrefersCodeAction(t *testing.T) {
	st := &stubStatic{findings: []diag.ErrorInfo{importFinding("a.py")}}
	graph := &stubGraph{
		actions: []ports.CodeAction{{Title: "add missing import", Data: "a.py"}},
		applyOK: true,
	}
	iface := New(t.TempDir(), nil, st, graph, config.Fix{ActionTimeout: time.Second})

	result := iface.ResolveError(context.Background(), "a.py:1:1")
	require.True(t, result.Success)
	assert.Contains(t, result.FixApplied, "add missing import")
}
