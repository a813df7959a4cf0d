package static

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mend/internal/diag"
	"mend/internal/shared/observability"
	"mend/internal/shared/util"
)

// ToolRunner is the adapter contract for one external analysis tool.
// Implementations must never fail the overall scan: collection-time
// problems (missing executable, timeout, unparsable output) degrade to
// zero findings.
type ToolRunner interface {
	Name() string
	Run(ctx context.Context, file string) []diag.ErrorInfo
}

// SubprocessTool invokes a line-oriented lint tool as a subprocess and
// parses its structured output.
type SubprocessTool struct {
	name    string
	args    []string
	timeout time.Duration
	limiter *util.Limiter
}

// NewSubprocessTool builds a runner for `name <args> <file>`. A nil
// limiter disables launch rate limiting.
func NewSubprocessTool(name string, args []string, timeout time.Duration, limiter *util.Limiter) *SubprocessTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SubprocessTool{name: name, args: args, timeout: timeout, limiter: limiter}
}

func (t *SubprocessTool) Name() string { return t.name }

// Run executes the tool against one file with an independent timeout.
func (t *SubprocessTool) Run(ctx context.Context, file string) []diag.ErrorInfo {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx, 1); err != nil {
			return nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	args := append(append([]string(nil), t.args...), file)
	cmd := exec.CommandContext(runCtx, t.name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	observability.ToolRunDuration.WithLabelValues(t.name).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, exec.ErrNotFound):
		observability.ToolRunsTotal.WithLabelValues(t.name, "missing").Inc()
		slog.Debug("tool executable not found", "tool", t.name)
		return nil
	case runCtx.Err() != nil:
		observability.ToolRunsTotal.WithLabelValues(t.name, "timeout").Inc()
		slog.Warn("tool timed out", "tool", t.name, "file", file, "timeout", t.timeout)
		return nil
	}
	// Lint tools exit non-zero when they report findings; any stdout is
	// treated as output worth parsing.
	if err != nil && stdout.Len() == 0 {
		observability.ToolRunsTotal.WithLabelValues(t.name, "error").Inc()
		slog.Warn("tool failed", "tool", t.name, "file", file, "error", err)
		return nil
	}
	observability.ToolRunsTotal.WithLabelValues(t.name, "ok").Inc()

	var findings []diag.ErrorInfo
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		info, ok := parseToolLine(t.name, line)
		if !ok {
			slog.Warn("skipping unparsable tool output line", "tool", t.name, "line", line)
			continue
		}
		findings = append(findings, info)
	}
	return findings
}

// parseToolLine parses one structured output line. Supported shapes:
//
//	path:row:col:code:message
//	path:line:col: message
//	path:line: message
func parseToolLine(tool, line string) (diag.ErrorInfo, bool) {
	parts := strings.SplitN(line, ":", 5)
	if len(parts) < 3 {
		return diag.ErrorInfo{}, false
	}

	row, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || row < 1 {
		return diag.ErrorInfo{}, false
	}

	info := diag.ErrorInfo{
		FilePath: parts[0],
		Line:     row,
		Column:   1,
		Source:   tool,
	}

	rest := parts[2:]
	if col, err := strconv.Atoi(strings.TrimSpace(rest[0])); err == nil && col >= 1 {
		info.Column = col
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return diag.ErrorInfo{}, false
	}
	if len(rest) == 2 && looksLikeRuleCode(rest[0]) {
		info.Code = strings.TrimSpace(rest[0])
		info.Message = strings.TrimSpace(rest[1])
	} else {
		info.Message = strings.TrimSpace(strings.Join(rest, ":"))
		// Default tool output may lead the message with the rule id:
		// "E501 line too long".
		if code, msg, ok := splitLeadingCode(info.Message); ok {
			info.Code = code
			info.Message = msg
		}
	}
	if info.Message == "" {
		return diag.ErrorInfo{}, false
	}

	info.ErrorType = classifyCode(tool, info.Code, info.Message)
	info.Severity = severityForCode(info.Code, info.ErrorType)
	return info, true
}

// looksLikeRuleCode matches tool rule ids such as E501, W291, F821, C901.
func looksLikeRuleCode(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) > 8 {
		return false
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func splitLeadingCode(msg string) (string, string, bool) {
	head, tail, found := strings.Cut(msg, " ")
	if !found || !looksLikeRuleCode(head) {
		return "", "", false
	}
	return head, strings.TrimSpace(tail), true
}

// classifyCode maps tool rule ids (and, for tools without ids, message
// content) to an ErrorType.
func classifyCode(tool, code, message string) diag.ErrorType {
	switch {
	case code == "E999":
		return diag.TypeSyntaxError
	case code == "F401":
		return diag.TypeUnusedImport
	case code == "F811":
		return diag.TypeRedefinition
	case code == "F821":
		return diag.TypeUndefinedName
	case strings.HasPrefix(code, "F"):
		return diag.TypePyflakesError
	case strings.HasPrefix(code, "E"), strings.HasPrefix(code, "W"), strings.HasPrefix(code, "C"):
		return diag.TypeLintError
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "undefined name"):
		return diag.TypeUndefinedName
	case strings.Contains(lower, "imported but unused"):
		return diag.TypeUnusedImport
	case strings.Contains(lower, "redefinition"):
		return diag.TypeRedefinition
	case strings.Contains(lower, "invalid syntax"), strings.Contains(lower, "syntax error"):
		return diag.TypeSyntaxError
	case tool == "pyflakes":
		return diag.TypePyflakesError
	}
	return diag.TypeUnknown
}

// severityForCode maps fatal/syntax-class codes to error and
// warning/style-class codes to warning.
func severityForCode(code string, errType diag.ErrorType) diag.Severity {
	switch errType {
	case diag.TypeSyntaxError, diag.TypeUndefinedName:
		return diag.SeverityError
	case diag.TypeUnusedImport, diag.TypeRedefinition, diag.TypeLintError:
		return diag.SeverityWarning
	}
	if strings.HasPrefix(code, "E9") {
		return diag.SeverityError
	}
	if strings.HasPrefix(code, "W") || strings.HasPrefix(code, "C") || strings.HasPrefix(code, "E") {
		return diag.SeverityWarning
	}
	return diag.SeverityError
}
