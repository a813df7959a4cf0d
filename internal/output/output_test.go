package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"mend/internal/diag"
)

func sampleErrors() []diag.UnifiedError {
	return []diag.UnifiedError{
		{
			ID: "src/a.py:1:1", FilePath: "src/a.py", Line: 1, Character: 1,
			Message: "invalid syntax", Severity: diag.SeverityError,
			Source: "tree-sitter", HasFix: true,
		},
		{
			ID: "src/b.py:4:2", FilePath: "src/b.py", Line: 4, Character: 2,
			Message: "'os' imported but unused", Severity: diag.SeverityWarning,
			Code: "F401", Source: "flake8", HasFix: true,
		},
	}
}

func TestWriteErrorsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteErrorsJSON(&buf, sampleErrors()); err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Errors []map[string]any `json:"errors"`
		Total  int              `json:"total"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Total != 2 || len(decoded.Errors) != 2 {
		t.Fatalf("unexpected envelope: %+v", decoded)
	}
	first := decoded.Errors[0]
	for _, key := range []string{"id", "file_path", "line", "character", "message", "severity", "source", "has_fix"} {
		if _, ok := first[key]; !ok {
			t.Errorf("list view missing key %q", key)
		}
	}
}

func TestWriteErrorsJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteErrorsJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"errors": []`) {
		t.Errorf("empty list must serialize as [], got %s", buf.String())
	}
}

func TestGenerateSARIF(t *testing.T) {
	data, err := GenerateSARIF("", sampleErrors())
	if err != nil {
		t.Fatal(err)
	}

	var report map[string]any
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	if report["version"] != "2.1.0" {
		t.Errorf("expected SARIF 2.1.0, got %v", report["version"])
	}

	text := string(data)
	if !strings.Contains(text, `"flake8/F401"`) {
		t.Error("expected a rule id derived from source and code")
	}
	if !strings.Contains(text, `"tree-sitter"`) {
		t.Error("expected a rule for the syntax source")
	}
	if !strings.Contains(text, `"level": "warning"`) || !strings.Contains(text, `"level": "error"`) {
		t.Error("expected severity-mapped levels")
	}
}

func TestSARIFRelativizesPaths(t *testing.T) {
	errs := []diag.UnifiedError{{
		ID: "/repo/src/a.py:1:1", FilePath: "/repo/src/a.py", Line: 1, Character: 1,
		Message: "m", Severity: diag.SeverityError, Source: "flake8",
	}}
	data, err := GenerateSARIF("/repo", errs)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"uri": "src/a.py"`) {
		t.Errorf("expected relative uri, got %s", data)
	}
}

func TestWriteResolutionJSON(t *testing.T) {
	var buf bytes.Buffer
	bulk := diag.BulkResolutionResult{
		TotalErrors: 1, AttemptedFixes: 1, SuccessfulFixes: 1,
		Results: []diag.ResolutionResult{{
			Success: true, ErrorID: "a.py:1:1",
			FixApplied: "fixed", ChangesMade: []string{"a.py"},
		}},
	}
	if err := WriteResolutionJSON(&buf, bulk); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"total_errors", "attempted_fixes", "successful_fixes", "failed_fixes", "results", "changes_made"} {
		if !strings.Contains(buf.String(), key) {
			t.Errorf("resolution view missing key %q", key)
		}
	}
}
