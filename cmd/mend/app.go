package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mend/internal/config"
	"mend/internal/data/history"
	"mend/internal/diag"
	"mend/internal/registry"
	"mend/internal/runtime"
	"mend/internal/static"
	"mend/internal/unified"
	"mend/internal/watcher"
)

// App wires the collector, detector, unified interface and optional
// history store for one repository.
type App struct {
	Config    *config.Config
	Registry  *registry.Registry
	Collector *runtime.Collector
	Detector  *static.Detector
	Unified   *unified.Interface
	History   *history.Store

	watcher    *watcher.Watcher
	teaProgram *tea.Program
	lastScan   static.ScanResult
}

func NewApp(cfg *config.Config) (*App, error) {
	reg := registry.New(cfg)
	collector := reg.RuntimeCollector(cfg.RepoPath)
	detector := reg.StaticDetector(cfg.RepoPath)

	app := &App{
		Config:    cfg,
		Registry:  reg,
		Collector: collector,
		Detector:  detector,
		Unified:   unified.New(cfg.RepoPath, collector, detector, nil, cfg.Fix),
	}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		app.History = store
	}

	return app, nil
}

// InitialScan walks the repository once and records the result.
func (a *App) InitialScan(ctx context.Context) error {
	result, err := a.Detector.ScanDirectory(ctx, a.Config.RepoPath)
	if err != nil {
		return err
	}
	a.lastScan = result

	if a.History != nil {
		if err := a.History.RecordScan(result); err != nil {
			slog.Warn("failed to record scan", "scan_id", result.ScanID, "error", err)
		}
	}
	return nil
}

// HandleChanges re-detects the changed files and pushes the refreshed
// unified view to the TUI when one is attached.
func (a *App) HandleChanges(paths []string) {
	slog.Info("detected changes", "count", len(paths))
	start := time.Now()
	ctx := context.Background()

	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			a.Detector.Invalidate(path)
			continue
		}
		a.Detector.DetectAllErrors(ctx, path)
	}

	errs := a.Unified.Errors(ctx)
	slog.Info("refreshed diagnostics",
		"changed", len(paths),
		"errors", len(errs),
		"duration", time.Since(start))

	if a.teaProgram != nil {
		a.teaProgram.Send(updateMsg{
			errors:    errs,
			fileCount: a.lastScan.Files,
		})
	} else {
		a.PrintSummary(errs)
	}
}

func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		a.HandleChanges,
	)
	if err != nil {
		return err
	}
	a.watcher = w
	return w.Watch([]string{a.Config.RepoPath})
}

func (a *App) RunUI(ctx context.Context) error {
	m := initialModel(
		func() tea.Msg {
			return resolvedMsg{result: a.Unified.ResolveErrors(ctx)}
		},
		func() tea.Msg {
			a.Collector.ClearRuntimeErrors()
			return updateMsg{errors: a.Unified.Errors(ctx), fileCount: a.lastScan.Files}
		},
	)
	p := tea.NewProgram(m, tea.WithAltScreen())
	a.teaProgram = p

	go func() {
		p.Send(updateMsg{
			errors:    a.Unified.Errors(ctx),
			fileCount: a.lastScan.Files,
		})
	}()

	_, err := p.Run()
	return err
}

func (a *App) PrintSummary(errs []diag.UnifiedError) {
	var errors, warnings, fixable int
	for _, e := range errs {
		switch e.Severity {
		case diag.SeverityError:
			errors++
		case diag.SeverityWarning:
			warnings++
		}
		if e.HasFix {
			fixable++
		}
	}
	fmt.Printf("%d findings (%d errors, %d warnings, %d fixable) across %d files\n",
		len(errs), errors, warnings, fixable, a.lastScan.Files)
}

func (a *App) Close(ctx context.Context) {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			slog.Warn("failed to close watcher", "error", err)
		}
	}
	a.Registry.ShutdownAll()
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			slog.Warn("failed to close history store", "error", err)
		}
	}
}
