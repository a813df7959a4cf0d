// Package ports declares the boundaries toward external collaborators.
// The semantic code-graph engine lives behind CodeGraph; the diagnostics
// core consumes it but never implements it.
package ports

import (
	"context"

	"mend/internal/diag"
)

// CodeAction is a collaborator-supplied, location-scoped remediation.
type CodeAction struct {
	Title string `json:"title"`
	Kind  string `json:"kind,omitempty"`
	// Opaque payload the collaborator needs to apply the action.
	Data any `json:"data,omitempty"`
}

// ActionResult reports one code action application.
type ActionResult struct {
	Success bool     `json:"success"`
	Changes []string `json:"changes"`
}

// SymbolContext carries the enrichment data for one error location.
type SymbolContext struct {
	CallingFunctions []string
	CalledFunctions  []string
	ParameterIssues  []string
	DependencyChain  []string
	RelatedSymbols   []string
}

// CodeGraph is the semantic engine boundary. Every method takes a
// context so callers can bound collaborator latency. Implementations
// return empty results rather than errors for unknown locations.
type CodeGraph interface {
	// GetCodeActions returns remediations available at a location, in
	// preference order.
	GetCodeActions(ctx context.Context, file string, line, character int) ([]CodeAction, error)

	// ApplyCodeAction applies a previously returned action.
	ApplyCodeAction(ctx context.Context, action CodeAction) (ActionResult, error)

	// SymbolContext resolves symbol and dependency enrichment for a
	// location.
	SymbolContext(ctx context.Context, file string, line, character int) (SymbolContext, error)

	// Diagnostics returns protocol-sourced diagnostics the collaborator
	// already knows about (e.g. forwarded from a language server).
	Diagnostics(ctx context.Context) ([]diag.UnifiedError, error)
}
