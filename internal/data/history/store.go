// Package history persists per-scan diagnostics snapshots to a local
// sqlite database so trends survive process restarts.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"mend/internal/diag"
	"mend/internal/static"
)

const driverName = "sqlite"

// ScanRecord is one persisted scan summary.
type ScanRecord struct {
	ScanID           string
	Timestamp        time.Time
	Root             string
	FileCount        int
	FindingCount     int
	ErrorCount       int
	WarningCount     int
	SyntaxErrorCount int
	Duration         time.Duration
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// RecordScan persists one scan result and its findings in a single
// transaction.
func (s *Store) RecordScan(result static.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("history store is closed")
	}

	var errorCount, warningCount, syntaxCount int
	for _, f := range result.Findings {
		switch f.Severity {
		case diag.SeverityError:
			errorCount++
		case diag.SeverityWarning:
			warningCount++
		}
		if f.ErrorType == diag.TypeSyntaxError {
			syntaxCount++
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin scan insert: %w", err)
	}

	_, err = tx.Exec(`
INSERT INTO scans (scan_id, ts_utc, root, file_count, finding_count, error_count, warning_count, syntax_error_count, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ScanID,
		time.Now().UTC().Format(time.RFC3339Nano),
		result.Root,
		result.Files,
		len(result.Findings),
		errorCount,
		warningCount,
		syntaxCount,
		result.Duration.Milliseconds(),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert scan row: %w", err)
	}

	for _, f := range result.Findings {
		if _, err := tx.Exec(`
INSERT INTO findings (scan_id, file_path, line, col, severity, code, source, error_type, message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ScanID, f.FilePath, f.Line, f.Column,
			string(f.Severity), f.Code, f.Source, string(f.ErrorType), f.Message,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert finding row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scan insert: %w", err)
	}
	return nil
}

// RecentScans returns up to limit scans, newest first.
func (s *Store) RecentScans(limit int) ([]ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("history store is closed")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
SELECT scan_id, ts_utc, root, file_count, finding_count, error_count, warning_count, syntax_error_count, duration_ms
FROM scans ORDER BY ts_utc DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		var ts string
		var durationMS int64
		if err := rows.Scan(&rec.ScanID, &ts, &rec.Root, &rec.FileCount, &rec.FindingCount,
			&rec.ErrorCount, &rec.WarningCount, &rec.SyntaxErrorCount, &durationMS); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ScanFindings returns the persisted findings for one scan.
func (s *Store) ScanFindings(scanID string) ([]diag.ErrorInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("history store is closed")
	}

	rows, err := s.db.Query(`
SELECT file_path, line, col, severity, code, source, error_type, message
FROM findings WHERE scan_id = ? ORDER BY file_path, line, col`, scanID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []diag.ErrorInfo
	for rows.Next() {
		var f diag.ErrorInfo
		var severity, errType string
		if err := rows.Scan(&f.FilePath, &f.Line, &f.Column, &severity, &f.Code, &f.Source, &errType, &f.Message); err != nil {
			return nil, fmt.Errorf("finding row: %w", err)
		}
		f.Severity = diag.Severity(severity)
		f.ErrorType = diag.ErrorType(errType)
		out = append(out, f)
	}
	return out, rows.Err()
}
