package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mend/internal/config"
	"mend/internal/output"
	"mend/internal/shared/observability"
)

var (
	configPath  = flag.String("config", "./mend.toml", "Path to config file")
	scan        = flag.Bool("scan", false, "Run a single scan and print diagnostics")
	format      = flag.String("format", "json", "Output format for -scan: json or sarif")
	watch       = flag.Bool("watch", false, "Scan, then watch the repository for changes")
	ui          = flag.Bool("ui", false, "Enable terminal UI mode")
	historyN    = flag.Int("history", 0, "Print the N most recent scans and exit")
	serveAddr   = flag.String("serve-addr", "", "Listen address for metrics and health endpoints")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mend v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	logOutput := os.Stderr
	if *ui {
		// In UI mode, avoid terminal logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
			logOutput = f
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath != "./mend.toml" {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	if flag.NArg() > 0 {
		cfg.RepoPath = flag.Arg(0)
	}
	if *serveAddr != "" {
		cfg.Observability.ListenAddr = *serveAddr
	}

	ctx := context.Background()

	if cfg.Observability.OTLPEndpoint != "" {
		shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
		if err != nil {
			slog.Warn("failed to set up tracing", "error", err)
		} else {
			defer func() {
				if err := shutdown(ctx); err != nil {
					slog.Warn("failed to shut down tracing", "error", err)
				}
			}()
		}
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer app.Close(ctx)

	if *historyN > 0 {
		if err := printHistory(app, *historyN); err != nil {
			slog.Error("failed to read scan history", "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.Observability.ListenAddr != "" {
		srv := observability.NewServer(cfg.Observability.ListenAddr, func(context.Context) observability.HealthStatus {
			return observability.HealthStatus{Status: "ok"}
		})
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("observability server failed", "error", err)
			}
		}()
		defer func() {
			if err := srv.Stop(ctx); err != nil {
				slog.Warn("failed to stop observability server", "error", err)
			}
		}()
	}

	if err := app.InitialScan(ctx); err != nil {
		slog.Error("initial scan failed", "error", err)
		os.Exit(1)
	}

	if !*watch && !*ui {
		if *scan {
			if err := printErrors(ctx, app); err != nil {
				slog.Error("failed to write diagnostics", "error", err)
				os.Exit(1)
			}
		} else {
			app.PrintSummary(app.Unified.Errors(ctx))
		}
		return
	}

	// Long-running mode: intercept this process's uncaught failures too.
	app.Registry.StartRuntimeCollection(cfg.RepoPath)

	if err := app.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	if *ui {
		if err := app.RunUI(ctx); err != nil {
			slog.Error("failed to run UI", "error", err)
			os.Exit(1)
		}
	} else {
		select {}
	}
}

func printErrors(ctx context.Context, app *App) error {
	errs := app.Unified.Errors(ctx)

	switch *format {
	case "sarif":
		data, err := output.GenerateSARIF(app.Config.RepoPath, errs)
		if err != nil {
			return err
		}
		_, err = fmt.Println(string(data))
		return err
	case "json":
		return output.WriteErrorsJSON(os.Stdout, errs)
	default:
		return fmt.Errorf("unknown output format %q", *format)
	}
}

func printHistory(app *App, limit int) error {
	if app.History == nil {
		return fmt.Errorf("no history store configured; set history.path in %s", *configPath)
	}
	records, err := app.History.RecentScans(limit)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("%s  %s  files=%d findings=%d errors=%d warnings=%d syntax=%d duration=%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.ScanID,
			r.FileCount, r.FindingCount, r.ErrorCount, r.WarningCount, r.SyntaxErrorCount,
			r.Duration)
	}
	return nil
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "mend", "mend.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "mend", "mend.log")
	}

	return "mend.log"
}
