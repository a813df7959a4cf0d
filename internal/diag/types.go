// Package diag defines the unified error model shared by the runtime
// collector, the static detector and the diagnostics facade.
package diag

import (
	"fmt"
	"time"
)

// Severity of a diagnostic, ordered from most to least severe.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// ErrorType classifies a static finding by its origin.
type ErrorType string

const (
	TypeSyntaxError   ErrorType = "syntax_error"
	TypeLintError     ErrorType = "lint_error"
	TypeUndefinedName ErrorType = "undefined_name"
	TypeUnusedImport  ErrorType = "unused_import"
	TypeRedefinition  ErrorType = "redefinition"
	TypePyflakesError ErrorType = "pyflakes_error"
	TypeUnknown       ErrorType = "unknown"
)

// ErrorID derives the stable identity of a diagnostic from its location.
// Repeated scans of an unchanged file must produce identical ids.
func ErrorID(filePath string, line, column int) string {
	return fmt.Sprintf("%s:%d:%d", filePath, line, column)
}

// RuntimeContext is the execution snapshot captured alongside a runtime
// failure. It is immutable once constructed.
type RuntimeContext struct {
	ExceptionType   string            `json:"exception_type"`
	StackTrace      []string          `json:"stack_trace"`
	LocalVariables  map[string]string `json:"local_variables,omitempty"`
	GlobalVariables map[string]string `json:"global_variables,omitempty"`
	ExecutionPath   []string          `json:"execution_path"`
	Timestamp       time.Time         `json:"timestamp"`
	ThreadID        string            `json:"thread_id"`
	ProcessID       int               `json:"process_id"`
}

// RuntimeError is one captured runtime failure. Records are created once
// at capture time and read-only afterward.
type RuntimeError struct {
	RecordID  string         `json:"record_id"`
	FilePath  string         `json:"file_path"`
	Line      int            `json:"line"`
	Character int            `json:"character"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Context   RuntimeContext `json:"context"`
	Timestamp time.Time      `json:"timestamp"`
}

// ErrorInfo is one normalized static finding from a syntax check or an
// external tool run.
type ErrorInfo struct {
	FilePath  string    `json:"file_path"`
	Line      int       `json:"line"`
	Column    int       `json:"column"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Source    string    `json:"source"`
	ErrorType ErrorType `json:"error_type"`
}

// UnifiedError is the interface-facing shape both sources normalize into.
type UnifiedError struct {
	ID        string   `json:"id"`
	FilePath  string   `json:"file_path"`
	Line      int      `json:"line"`
	Character int      `json:"character"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Code      string   `json:"code,omitempty"`
	Source    string   `json:"source"`
	HasFix    bool     `json:"has_fix"`
}

// ErrorContext is the enriched view of a single unified error. Symbol and
// dependency fields are supplied by the code-graph collaborator and empty
// when no collaborator is wired.
type ErrorContext struct {
	Error            UnifiedError `json:"error"`
	CallingFunctions []string     `json:"calling_functions"`
	CalledFunctions  []string     `json:"called_functions"`
	ParameterIssues  []string     `json:"parameter_issues"`
	DependencyChain  []string     `json:"dependency_chain"`
	RelatedSymbols   []string     `json:"related_symbols"`
	CodeContext      string       `json:"code_context"`
	FixSuggestions   []string     `json:"fix_suggestions"`
	HasFix           bool         `json:"has_fix"`
}

// ResolutionResult reports one fix attempt. Exactly one of FixApplied and
// Error is populated, keyed on Success.
type ResolutionResult struct {
	Success     bool     `json:"success"`
	ErrorID     string   `json:"error_id"`
	FixApplied  string   `json:"fix_applied,omitempty"`
	Error       string   `json:"error,omitempty"`
	ChangesMade []string `json:"changes_made"`
}

// BulkResolutionResult aggregates independent per-error fix attempts.
// Results preserve the order the ids were requested in.
type BulkResolutionResult struct {
	TotalErrors     int                `json:"total_errors"`
	AttemptedFixes  int                `json:"attempted_fixes"`
	SuccessfulFixes int                `json:"successful_fixes"`
	FailedFixes     int                `json:"failed_fixes"`
	Results         []ResolutionResult `json:"results"`
}

// ErrorSummary aggregates the collector's current state.
type ErrorSummary struct {
	Total           int            `json:"total"`
	ByExceptionType map[string]int `json:"by_exception_type"`
	ByFile          map[string]int `json:"by_file"`
	CollectionOn    bool           `json:"collection_active"`
}

// Unified converts a static finding to the interface-facing shape.
func (e ErrorInfo) Unified() UnifiedError {
	return UnifiedError{
		ID:        ErrorID(e.FilePath, e.Line, e.Column),
		FilePath:  e.FilePath,
		Line:      e.Line,
		Character: e.Column,
		Message:   e.Message,
		Severity:  e.Severity,
		Code:      e.Code,
		Source:    e.Source,
	}
}

// Unified converts a runtime record to the interface-facing shape.
func (e RuntimeError) Unified() UnifiedError {
	return UnifiedError{
		ID:        ErrorID(e.FilePath, e.Line, e.Character),
		FilePath:  e.FilePath,
		Line:      e.Line,
		Character: e.Character,
		Message:   e.Message,
		Severity:  e.Severity,
		Source:    "runtime",
	}
}
