package runtime

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mend/internal/diag"
	"mend/internal/shared/observability"
	"mend/internal/shared/util"
)

// Options tunes a Collector. Zero values fall back to the defaults below.
type Options struct {
	MaxErrors         int
	MaxStackDepth     int
	CollectVariables  bool
	VariableMaxLength int
}

const (
	defaultMaxErrors         = 1000
	defaultMaxStackDepth     = 50
	defaultVariableMaxLength = 200

	// Replacement for variable values whose stringification panics.
	unrepresentable = "<unrepresentable>"
)

func (o Options) withDefaults() Options {
	if o.MaxErrors <= 0 {
		o.MaxErrors = defaultMaxErrors
	}
	if o.MaxStackDepth <= 0 {
		o.MaxStackDepth = defaultMaxStackDepth
	}
	if o.VariableMaxLength <= 0 {
		o.VariableMaxLength = defaultVariableMaxLength
	}
	return o
}

// DefaultOptions returns the collector defaults with variable capture on.
func DefaultOptions() Options {
	return Options{CollectVariables: true}.withDefaults()
}

// Handler observes new runtime records as they are captured. Handlers run
// synchronously on the reporting goroutine; a panicking handler is
// recovered and logged, never propagated.
type Handler func(diag.RuntimeError)

// Collector turns failures dispatched through the process hook into
// bounded, queryable RuntimeError records for one repository root.
type Collector struct {
	repoRoot string
	opts     Options

	// stateMu serializes the install/restore pair so concurrent
	// Start/Stop calls cannot interleave into an inconsistent chain.
	stateMu  sync.Mutex
	active   bool
	prevHook Hook

	mu          sync.Mutex
	errors      []diag.RuntimeError
	handlers    map[int]Handler
	nextHandler int
}

// NewCollector creates a collector for the given repository root.
func NewCollector(repoRoot string, opts Options) *Collector {
	return &Collector{
		repoRoot: repoRoot,
		opts:     opts.withDefaults(),
		handlers: make(map[int]Handler),
	}
}

// StartCollection installs the collector's hook, saving whatever hook was
// installed before. Idempotent: a second call while active is a no-op.
func (c *Collector) StartCollection() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.active {
		return
	}
	c.prevHook = swapHook(c.handle)
	c.active = true
	slog.Debug("runtime collection started", "repo", c.repoRoot)
}

// StopCollection restores the exact hook reference saved by
// StartCollection. Idempotent, and a no-op when never started, so the
// process hook is never left permanently altered.
func (c *Collector) StopCollection() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.active {
		return
	}
	restoreHook(c.prevHook)
	c.prevHook = nil
	c.active = false
	slog.Debug("runtime collection stopped", "repo", c.repoRoot)
}

// Active reports whether the collector's hook is currently installed.
func (c *Collector) Active() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.active
}

// handle is the installed hook. It records the failure, notifies
// handlers, then delegates to the displaced hook so default process
// behavior is preserved.
func (c *Collector) handle(f Failure) {
	record := c.buildRecord(f)

	c.mu.Lock()
	c.errors = append(c.errors, record)
	if over := len(c.errors) - c.opts.MaxErrors; over > 0 {
		// Keep the most recent MaxErrors records.
		c.errors = append([]diag.RuntimeError(nil), c.errors[over:]...)
		observability.RuntimeErrorsDroppedTotal.Add(float64(over))
	}
	handlers := make([]Handler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	observability.RuntimeErrorsTotal.Inc()

	for _, h := range handlers {
		c.notify(h, record)
	}

	c.stateMu.Lock()
	prev := c.prevHook
	c.stateMu.Unlock()
	if prev != nil {
		prev(f)
	}
}

func (c *Collector) notify(h Handler, record diag.RuntimeError) {
	defer func() {
		if r := recover(); r != nil {
			observability.HandlerPanicsTotal.Inc()
			slog.Warn("error handler panicked", "panic", fmt.Sprint(r))
		}
	}()
	h(record)
}

func (c *Collector) buildRecord(f Failure) diag.RuntimeError {
	frame := c.pickFrame(f.Frames)

	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	ctx := diag.RuntimeContext{
		ExceptionType: f.Type,
		StackTrace:    formatTrace(f.Frames, c.opts.MaxStackDepth),
		ExecutionPath: executionPath(f.Frames, c.opts.MaxStackDepth),
		Timestamp:     ts,
		ThreadID:      f.Goroutine,
		ProcessID:     os.Getpid(),
	}
	if c.opts.CollectVariables {
		ctx.LocalVariables = c.snapshotVars(f.Locals)
		ctx.GlobalVariables = c.snapshotVars(f.Globals)
	}

	filePath := ""
	line := 0
	if frame != nil {
		filePath = util.RepoRelPath(c.repoRoot, frame.File)
		line = frame.Line
	}

	return diag.RuntimeError{
		RecordID:  uuid.NewString(),
		FilePath:  filePath,
		Line:      line,
		Character: 0,
		Message:   fmt.Sprintf("%s: %s", f.Type, f.Value),
		Severity:  diag.SeverityError,
		Context:   ctx,
		Timestamp: ts,
	}
}

// pickFrame selects the deepest frame whose file lies under the repo
// root. Frames are innermost first, so the first match is the deepest;
// when nothing matches, the innermost frame is used.
func (c *Collector) pickFrame(frames []Frame) *Frame {
	if len(frames) == 0 {
		return nil
	}
	for i := range frames {
		if util.UnderRoot(c.repoRoot, frames[i].File) {
			return &frames[i]
		}
	}
	return &frames[0]
}

func formatTrace(frames []Frame, max int) []string {
	if len(frames) > max {
		frames = frames[:max]
	}
	out := make([]string, len(frames))
	for i, fr := range frames {
		out[i] = fmt.Sprintf("%s:%d in %s", fr.File, fr.Line, fr.Function)
	}
	return out
}

func executionPath(frames []Frame, max int) []string {
	if len(frames) > max {
		frames = frames[:max]
	}
	// Outermost first, mirroring call order.
	out := make([]string, 0, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		out = append(out, frames[i].Function)
	}
	return out
}

// snapshotVars stringifies and truncates a variable map, excluding
// internal names with a double-underscore prefix.
func (c *Collector) snapshotVars(vars map[string]any) map[string]string {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]string, len(vars))
	for name, value := range vars {
		if strings.HasPrefix(name, "__") {
			continue
		}
		out[name] = util.Truncate(stringify(value), c.opts.VariableMaxLength)
	}
	return out
}

func stringify(value any) (s string) {
	defer func() {
		if recover() != nil {
			s = unrepresentable
		}
	}()
	return fmt.Sprintf("%v", value)
}

// RuntimeErrors returns a copy of the current record sequence.
func (c *Collector) RuntimeErrors() []diag.RuntimeError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]diag.RuntimeError(nil), c.errors...)
}

// RuntimeErrorsForFile returns records whose file path matches exactly.
func (c *Collector) RuntimeErrorsForFile(path string) []diag.RuntimeError {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []diag.RuntimeError
	for _, e := range c.errors {
		if e.FilePath == path {
			out = append(out, e)
		}
	}
	return out
}

// ClearRuntimeErrors empties the record sequence.
func (c *Collector) ClearRuntimeErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = nil
}

// AddErrorHandler registers an observer and returns a token for removal.
func (c *Collector) AddErrorHandler(h Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := c.nextHandler
	c.nextHandler++
	c.handlers[token] = h
	return token
}

// RemoveErrorHandler unregisters the observer for the given token.
func (c *Collector) RemoveErrorHandler(token int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, token)
}

// ErrorSummary returns record counts by exception type and file.
func (c *Collector) ErrorSummary() diag.ErrorSummary {
	c.mu.Lock()
	byType := make(map[string]int)
	byFile := make(map[string]int)
	total := len(c.errors)
	for _, e := range c.errors {
		byType[e.Context.ExceptionType]++
		byFile[e.FilePath]++
	}
	c.mu.Unlock()

	return diag.ErrorSummary{
		Total:           total,
		ByExceptionType: byType,
		ByFile:          byFile,
		CollectionOn:    c.Active(),
	}
}
