// Package unified exposes the single façade callers use to query
// aggregated diagnostics, enrich individual errors and drive the fix
// strategy chain.
package unified

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"mend/internal/config"
	"mend/internal/diag"
	"mend/internal/fix"
	"mend/internal/ports"
	"mend/internal/shared/observability"
)

const contextLines = 3

// Interface aggregates both error sources, enriches context and resolves
// errors through the fix chain. The underlying analyzer is constructed
// lazily on first use; missing sources degrade to empty results rather
// than failures.
type Interface struct {
	repoRoot string
	runtime  RuntimeSource
	static   StaticSource
	graph    ports.CodeGraph
	fixCfg   config.Fix

	once     sync.Once
	analyzer *analyzer
	chain    *fix.Chain
}

// New wires the façade. runtime, static and graph may each be nil.
func New(repoRoot string, runtime RuntimeSource, static StaticSource, graph ports.CodeGraph, fixCfg config.Fix) *Interface {
	if fixCfg.ResolveWorkers <= 0 {
		fixCfg.ResolveWorkers = 4
	}
	return &Interface{
		repoRoot: repoRoot,
		runtime:  runtime,
		static:   static,
		graph:    graph,
		fixCfg:   fixCfg,
	}
}

func (i *Interface) init() {
	i.once.Do(func() {
		i.analyzer = &analyzer{repoRoot: i.repoRoot, runtime: i.runtime, static: i.static, graph: i.graph}
		i.chain = fix.NewChain(i.graph, i.fixCfg.ActionTimeout)
	})
}

// Errors returns every currently known diagnostic with has_fix computed
// per error.
func (i *Interface) Errors(ctx context.Context) []diag.UnifiedError {
	i.init()
	errs := i.analyzer.unifiedErrors(ctx)
	for idx := range errs {
		errs[idx].HasFix = i.chain.CanFix(errs[idx])
	}
	return errs
}

// FullErrorContext returns the enriched view of one error, or nil when
// the id is unknown. Enrichment failures degrade to empty fields.
func (i *Interface) FullErrorContext(ctx context.Context, errorID string) *diag.ErrorContext {
	i.init()

	var found *diag.UnifiedError
	for _, e := range i.Errors(ctx) {
		if e.ID == errorID {
			e := e
			found = &e
			break
		}
	}
	if found == nil {
		return nil
	}

	out := &diag.ErrorContext{
		Error:            *found,
		CallingFunctions: []string{},
		CalledFunctions:  []string{},
		ParameterIssues:  []string{},
		DependencyChain:  []string{},
		RelatedSymbols:   []string{},
		FixSuggestions:   i.chain.Suggestions(*found),
		HasFix:           found.HasFix,
	}
	if out.FixSuggestions == nil {
		out.FixSuggestions = []string{}
	}

	if i.graph != nil {
		symbols, err := i.graph.SymbolContext(ctx, found.FilePath, found.Line, found.Character)
		if err == nil {
			if symbols.CallingFunctions != nil {
				out.CallingFunctions = symbols.CallingFunctions
			}
			if symbols.CalledFunctions != nil {
				out.CalledFunctions = symbols.CalledFunctions
			}
			if symbols.ParameterIssues != nil {
				out.ParameterIssues = symbols.ParameterIssues
			}
			if symbols.DependencyChain != nil {
				out.DependencyChain = symbols.DependencyChain
			}
			if symbols.RelatedSymbols != nil {
				out.RelatedSymbols = symbols.RelatedSymbols
			}
		}
	}

	out.CodeContext = snippetAround(i.resolvePath(found.FilePath), found.Line)
	return out
}

// resolvePath anchors repo-relative error paths at the repo root so file
// reads do not depend on the process working directory.
func (i *Interface) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(i.repoRoot, path)
}

// snippetAround reads the surrounding source lines; failures yield an
// empty snippet.
func snippetAround(path string, line int) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(content), "\n")
	start := line - 1 - contextLines
	if start < 0 {
		start = 0
	}
	end := line + contextLines
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	var b strings.Builder
	for n := start; n < end; n++ {
		fmt.Fprintf(&b, "%4d | %s\n", n+1, lines[n])
	}
	return b.String()
}

// ResolveError attempts to fix one error, reporting the outcome in-band.
func (i *Interface) ResolveError(ctx context.Context, errorID string) diag.ResolutionResult {
	i.init()
	ctx, span := observability.Tracer.Start(ctx, "unified.ResolveError")
	defer span.End()

	errCtx := i.FullErrorContext(ctx, errorID)
	if errCtx == nil {
		return diag.ResolutionResult{
			Success: false, ErrorID: errorID,
			Error: "Error not found", ChangesMade: []string{},
		}
	}
	if !errCtx.HasFix {
		return diag.ResolutionResult{
			Success: false, ErrorID: errorID,
			Error: "No automatic fix available", ChangesMade: []string{},
		}
	}

	return i.resolveGuarded(ctx, errCtx.Error)
}

// resolveGuarded contains truly unexpected chain faults so batch
// operations can continue with the remaining ids.
func (i *Interface) resolveGuarded(ctx context.Context, err diag.UnifiedError) (result diag.ResolutionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = diag.ResolutionResult{
				Success: false, ErrorID: err.ID,
				Error:       fmt.Sprintf("internal fault while resolving %s: %v", err.ID, r),
				ChangesMade: []string{},
			}
		}
	}()
	return i.chain.Resolve(ctx, err)
}

// ResolveErrors attempts to fix each id independently, never aborting
// early on individual failure. With no ids given, every currently known
// fixable error is attempted. Result order follows input id order.
func (i *Interface) ResolveErrors(ctx context.Context, errorIDs ...string) diag.BulkResolutionResult {
	i.init()
	ctx, span := observability.Tracer.Start(ctx, "unified.ResolveErrors")
	defer span.End()

	if errorIDs == nil {
		for _, e := range i.Errors(ctx) {
			if e.HasFix {
				errorIDs = append(errorIDs, e.ID)
			}
		}
	}

	bulk := diag.BulkResolutionResult{
		TotalErrors: len(errorIDs),
		Results:     []diag.ResolutionResult{},
	}
	if len(errorIDs) == 0 {
		return bulk
	}

	results := make([]diag.ResolutionResult, len(errorIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.fixCfg.ResolveWorkers)
	for idx, id := range errorIDs {
		idx, id := idx, id
		g.Go(func() error {
			results[idx] = i.ResolveError(gctx, id)
			return nil
		})
	}
	// Workers never return errors; failures stay in-band per result.
	_ = g.Wait()

	for _, r := range results {
		bulk.AttemptedFixes++
		if r.Success {
			bulk.SuccessfulFixes++
		} else {
			bulk.FailedFixes++
		}
	}
	bulk.Results = results
	return bulk
}
