package static

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"mend/internal/config"
	"mend/internal/diag"
	"mend/internal/shared/util"
)

// Detector runs the syntax check and the configured external tools over
// files and caches the normalized, deduplicated findings.
type Detector struct {
	repoRoot string
	tools    []ToolRunner

	mu    sync.Mutex
	cache map[string][]diag.ErrorInfo

	workers  int
	excludes config.Exclude
}

// NewDetector builds a detector from configuration. Tool subprocess
// launches are rate limited per tool.
func NewDetector(repoRoot string, cfg config.Detector, excludes config.Exclude) *Detector {
	limiters := util.NewLimiterRegistry(cfg.LaunchRate, cfg.LaunchBurst)
	tools := make([]ToolRunner, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		tools = append(tools, NewSubprocessTool(t.Name, t.Args, cfg.ToolTimeout, limiters.Get(t.Name)))
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Detector{
		repoRoot: repoRoot,
		tools:    tools,
		cache:    make(map[string][]diag.ErrorInfo),
		workers:  workers,
		excludes: excludes,
	}
}

// NewDetectorWithTools builds a detector over explicit runners.
func NewDetectorWithTools(repoRoot string, tools []ToolRunner, workers int) *Detector {
	if workers <= 0 {
		workers = 4
	}
	return &Detector{
		repoRoot: repoRoot,
		tools:    tools,
		cache:    make(map[string][]diag.ErrorInfo),
		workers:  workers,
	}
}

// DetectSyntaxErrors parses the file with its grammar and returns at most
// one syntax_error finding.
func (d *Detector) DetectSyntaxErrors(file string) []diag.ErrorInfo {
	content, err := os.ReadFile(file)
	if err != nil {
		slog.Warn("unreadable file, skipping syntax check", "file", file, "error", err)
		return nil
	}
	if info := checkSyntax(file, content); info != nil {
		return []diag.ErrorInfo{*info}
	}
	return nil
}

// DetectAllErrors runs the syntax check and then every configured tool
// against one file, returning the deduplicated union. A syntax error
// short-circuits the tools: they cannot meaningfully analyze unparsable
// source.
func (d *Detector) DetectAllErrors(ctx context.Context, file string) []diag.ErrorInfo {
	findings := d.detect(ctx, file)
	d.mu.Lock()
	d.cache[file] = findings
	d.mu.Unlock()
	return append([]diag.ErrorInfo(nil), findings...)
}

func (d *Detector) detect(ctx context.Context, file string) []diag.ErrorInfo {
	if syntax := d.DetectSyntaxErrors(file); len(syntax) > 0 {
		return syntax
	}

	// Tools run concurrently; results are merged in tool order so
	// deduplication is deterministic.
	perTool := make([][]diag.ErrorInfo, len(d.tools))
	var wg sync.WaitGroup
	for i, tool := range d.tools {
		wg.Add(1)
		go func(i int, tool ToolRunner) {
			defer wg.Done()
			perTool[i] = tool.Run(ctx, file)
		}(i, tool)
	}
	wg.Wait()

	var merged []diag.ErrorInfo
	for _, findings := range perTool {
		merged = append(merged, findings...)
	}
	return dedupe(merged)
}

// dedupe drops findings that share (file, line, column) with an earlier
// one, keeping the first.
func dedupe(findings []diag.ErrorInfo) []diag.ErrorInfo {
	if len(findings) < 2 {
		return findings
	}
	seen := make(map[string]bool, len(findings))
	out := findings[:0]
	for _, f := range findings {
		key := diag.ErrorID(f.FilePath, f.Line, f.Column)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

// Errors returns every cached finding across all scanned files.
func (d *Detector) Errors() []diag.ErrorInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []diag.ErrorInfo
	for _, key := range util.SortedStringKeys(d.cache) {
		out = append(out, d.cache[key]...)
	}
	return out
}

// FileErrors returns the cached findings for one file.
func (d *Detector) FileErrors(path string) []diag.ErrorInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]diag.ErrorInfo(nil), d.cache[path]...)
}

// Invalidate drops the cached findings for one file, e.g. after it was
// deleted on disk.
func (d *Detector) Invalidate(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cache, path)
}

// ClearCache drops all cached findings.
func (d *Detector) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = make(map[string][]diag.ErrorInfo)
}
