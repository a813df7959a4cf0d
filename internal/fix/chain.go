// Package fix implements the ordered remediation chain: collaborator
// code actions first, built-in heuristic text fixes as fallback.
package fix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mend/internal/diag"
	"mend/internal/ports"
	"mend/internal/shared/observability"
)

// Chain tries strategies in order until one succeeds: the collaborator's
// code actions first, then the built-in heuristics.
type Chain struct {
	graph         ports.CodeGraph
	actionTimeout time.Duration
	heuristics    []heuristic
}

// NewChain builds the default chain. graph may be nil; the chain then
// consists of heuristics only.
func NewChain(graph ports.CodeGraph, actionTimeout time.Duration) *Chain {
	if actionTimeout <= 0 {
		actionTimeout = 10 * time.Second
	}
	return &Chain{
		graph:         graph,
		actionTimeout: actionTimeout,
		heuristics:    defaultHeuristics(),
	}
}

// CanFix reports whether at least one strategy claims applicability.
func (c *Chain) CanFix(err diag.UnifiedError) bool {
	for _, h := range c.heuristics {
		if h.applies(err) {
			return true
		}
	}
	return false
}

// Suggestions returns ordered human-readable remediation descriptions
// from every applicable heuristic.
func (c *Chain) Suggestions(err diag.UnifiedError) []string {
	var out []string
	for _, h := range c.heuristics {
		if h.applies(err) {
			out = append(out, h.suggestion(err))
		}
	}
	return out
}

// Resolve walks the chain for one error, stopping at the first success.
// The returned result always carries the error id; failures are reported
// in-band, never raised.
func (c *Chain) Resolve(ctx context.Context, err diag.UnifiedError) diag.ResolutionResult {
	if result, ok := c.tryCodeAction(ctx, err); ok {
		return result
	}

	for _, h := range c.heuristics {
		if !h.applies(err) {
			continue
		}
		result := h.apply(err)
		result.ErrorID = err.ID
		outcome := "failed"
		if result.Success {
			outcome = "success"
		}
		observability.FixAttemptsTotal.WithLabelValues(h.name, outcome).Inc()
		if result.Success {
			return result
		}
	}

	return diag.ResolutionResult{
		Success:     false,
		ErrorID:     err.ID,
		Error:       "No fix strategy applies to this error",
		ChangesMade: []string{},
	}
}

// tryCodeAction asks the collaborator for actions at the error's
// location and applies the first one. The bool reports whether the chain
// should stop here.
func (c *Chain) tryCodeAction(ctx context.Context, err diag.UnifiedError) (diag.ResolutionResult, bool) {
	if c.graph == nil {
		return diag.ResolutionResult{}, false
	}

	actionCtx, cancel := context.WithTimeout(ctx, c.actionTimeout)
	defer cancel()

	actions, lookupErr := c.graph.GetCodeActions(actionCtx, err.FilePath, err.Line, err.Character)
	if lookupErr != nil {
		slog.Warn("code action lookup failed", "error_id", err.ID, "error", lookupErr)
		observability.FixAttemptsTotal.WithLabelValues("code_action", "failed").Inc()
		return diag.ResolutionResult{}, false
	}
	if len(actions) == 0 {
		return diag.ResolutionResult{}, false
	}

	action := actions[0]
	applied, applyErr := c.graph.ApplyCodeAction(actionCtx, action)
	if applyErr != nil || !applied.Success {
		slog.Warn("code action application failed",
			"error_id", err.ID, "action", action.Title, "error", applyErr)
		observability.FixAttemptsTotal.WithLabelValues("code_action", "failed").Inc()
		return diag.ResolutionResult{}, false
	}

	observability.FixAttemptsTotal.WithLabelValues("code_action", "success").Inc()
	changes := applied.Changes
	if changes == nil {
		changes = []string{}
	}
	return diag.ResolutionResult{
		Success:     true,
		ErrorID:     err.ID,
		FixApplied:  fmt.Sprintf("Applied code action: %s", action.Title),
		ChangesMade: changes,
	}, true
}
