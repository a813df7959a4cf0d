package unified

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"

	"mend/internal/diag"
	"mend/internal/ports"
	"mend/internal/shared/observability"
	"mend/internal/shared/util"
)

// RuntimeSource is the slice of the runtime collector the analyzer needs.
type RuntimeSource interface {
	RuntimeErrors() []diag.RuntimeError
}

// StaticSource is the slice of the static detector the analyzer needs.
type StaticSource interface {
	Errors() []diag.ErrorInfo
}

// analyzer merges the static detector, the runtime collector and any
// protocol-sourced collaborator diagnostics into one deduplicated list.
// Either source may be nil; the analyzer degrades to what remains.
type analyzer struct {
	repoRoot string
	runtime  RuntimeSource
	static   StaticSource
	graph    ports.CodeGraph
}

// normalize rewrites the path repo-relative and recomputes the id, so
// every source shares one id scheme regardless of how it was invoked.
// Paths outside the repo stay absolute.
func (a *analyzer) normalize(e *diag.UnifiedError) {
	if filepath.IsAbs(e.FilePath) {
		e.FilePath = util.RepoRelPath(a.repoRoot, e.FilePath)
	}
	e.ID = diag.ErrorID(e.FilePath, e.Line, e.Character)
}

// unifiedErrors returns the merged list ordered by (file, line, column).
// Duplicated ids keep the first occurrence; static findings win over
// runtime records, which win over protocol diagnostics.
func (a *analyzer) unifiedErrors(ctx context.Context) []diag.UnifiedError {
	var merged []diag.UnifiedError

	if a.static != nil {
		for _, info := range a.static.Errors() {
			merged = append(merged, info.Unified())
		}
	}
	if a.runtime != nil {
		for _, record := range a.runtime.RuntimeErrors() {
			merged = append(merged, record.Unified())
		}
	}
	if a.graph != nil {
		protocol, err := a.graph.Diagnostics(ctx)
		if err != nil {
			slog.Warn("collaborator diagnostics unavailable", "error", err)
		} else {
			merged = append(merged, protocol...)
		}
	}

	for idx := range merged {
		a.normalize(&merged[idx])
	}

	seen := make(map[string]bool, len(merged))
	out := merged[:0]
	for _, e := range merged {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Character < out[j].Character
	})

	observability.UnifiedErrors.Set(float64(len(out)))
	return out
}
