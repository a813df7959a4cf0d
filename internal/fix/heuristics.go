package fix

import (
	"fmt"
	"strings"

	"mend/internal/diag"
)

// Heuristic fixes are advisory: they describe the remediation and the
// files it would touch without mutating source. Callers distinguish "fix
// identified" from "fix blindly applied" through the changes_made list.
type heuristic struct {
	name       string
	applies    func(diag.UnifiedError) bool
	suggestion func(diag.UnifiedError) string
	apply      func(diag.UnifiedError) diag.ResolutionResult
}

func defaultHeuristics() []heuristic {
	return []heuristic{missingImport(), undefinedVariable(), basicSyntax()}
}

func messageContains(err diag.UnifiedError, needles ...string) bool {
	lower := strings.ToLower(err.Message)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func missingImport() heuristic {
	return heuristic{
		name: "missing_import",
		applies: func(err diag.UnifiedError) bool {
			return messageContains(err, "import")
		},
		suggestion: func(err diag.UnifiedError) string {
			return fmt.Sprintf("Add or correct the import referenced at %s:%d", err.FilePath, err.Line)
		},
		apply: func(err diag.UnifiedError) diag.ResolutionResult {
			return diag.ResolutionResult{
				Success:     true,
				FixApplied:  fmt.Sprintf("Identified missing-import fix for %s:%d: %s", err.FilePath, err.Line, err.Message),
				ChangesMade: []string{err.FilePath},
			}
		},
	}
}

func undefinedVariable() heuristic {
	return heuristic{
		name: "undefined_variable",
		applies: func(err diag.UnifiedError) bool {
			return messageContains(err, "undefined", "not defined")
		},
		suggestion: func(err diag.UnifiedError) string {
			return fmt.Sprintf("Define or import the name referenced at %s:%d before use", err.FilePath, err.Line)
		},
		apply: func(err diag.UnifiedError) diag.ResolutionResult {
			return diag.ResolutionResult{
				Success:     true,
				FixApplied:  fmt.Sprintf("Identified undefined-variable fix for %s:%d: %s", err.FilePath, err.Line, err.Message),
				ChangesMade: []string{err.FilePath},
			}
		},
	}
}

func basicSyntax() heuristic {
	return heuristic{
		name: "basic_syntax",
		applies: func(err diag.UnifiedError) bool {
			return messageContains(err, "syntax")
		},
		suggestion: func(err diag.UnifiedError) string {
			return fmt.Sprintf("Review the statement at %s:%d:%d for malformed syntax", err.FilePath, err.Line, err.Character)
		},
		apply: func(err diag.UnifiedError) diag.ResolutionResult {
			return diag.ResolutionResult{
				Success:     true,
				FixApplied:  fmt.Sprintf("Identified syntax fix for %s:%d: %s", err.FilePath, err.Line, err.Message),
				ChangesMade: []string{err.FilePath},
			}
		},
	}
}
