package static

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"mend/internal/diag"
	"mend/internal/shared/observability"
)

// ScanResult summarizes one directory scan.
type ScanResult struct {
	ScanID   string
	Root     string
	Files    int
	Findings []diag.ErrorInfo
	Duration time.Duration
}

const progressEvery = 25

// ScanDirectory recursively detects errors in every supported file under
// dir, fanning out across a bounded worker pool. Cancellation is honored
// between files. Results are cached for Errors / FileErrors.
func (d *Detector) ScanDirectory(ctx context.Context, dir string) (ScanResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "static.ScanDirectory", trace.WithAttributes())
	defer span.End()

	start := time.Now()
	result := ScanResult{ScanID: uuid.NewString(), Root: dir}

	files, err := d.enumerate(dir)
	if err != nil {
		return result, err
	}
	result.Files = len(files)
	slog.Info("directory scan started", "scan_id", result.ScanID, "root", dir, "files", len(files))

	var mu sync.Mutex
	var done int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, file := range files {
		if err := gctx.Err(); err != nil {
			break
		}
		file := file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			findings := d.DetectAllErrors(gctx, file)
			observability.ScanFilesTotal.Inc()

			mu.Lock()
			result.Findings = append(result.Findings, findings...)
			done++
			if done%progressEvery == 0 {
				slog.Info("scan progress", "scan_id", result.ScanID, "done", done, "total", len(files))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	observability.ScanDuration.Observe(result.Duration.Seconds())
	slog.Info("directory scan finished",
		"scan_id", result.ScanID, "files", result.Files,
		"findings", len(result.Findings), "duration", result.Duration)
	return result, nil
}

// enumerate walks dir and returns supported, non-excluded source files.
func (d *Detector) enumerate(dir string) ([]string, error) {
	dirGlobs, err := compileGlobs(d.excludes.Dirs)
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(d.excludes.Files)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if entry.IsDir() {
			for _, g := range dirGlobs {
				if g.Match(base) {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !IsSupportedPath(path) {
			return nil
		}
		for _, g := range fileGlobs {
			if g.Match(base) {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
	}
	return globs, nil
}
