// Package output serializes unified diagnostics for dashboards, CLIs
// and CI consumers.
package output

import (
	"encoding/json"
	"io"

	"mend/internal/diag"
)

// errorList is the list-view envelope.
type errorList struct {
	Errors []diag.UnifiedError `json:"errors"`
	Total  int                 `json:"total"`
}

// WriteErrorsJSON writes the unified error list view.
func WriteErrorsJSON(w io.Writer, errs []diag.UnifiedError) error {
	if errs == nil {
		errs = []diag.UnifiedError{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(errorList{Errors: errs, Total: len(errs)})
}

// WriteContextJSON writes the enriched context view for one error.
func WriteContextJSON(w io.Writer, ctx *diag.ErrorContext) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ctx)
}

// WriteResolutionJSON writes a bulk resolution result.
func WriteResolutionJSON(w io.Writer, result diag.BulkResolutionResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
