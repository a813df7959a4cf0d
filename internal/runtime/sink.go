// Package runtime captures uncaught failures from instrumented code and
// turns them into structured, queryable records.
//
// The process keeps exactly one failure hook installed at a time. A
// collector installs its own hook on StartCollection, chains to the hook
// it displaced, and restores it on StopCollection. Call sites report into
// the hook either explicitly via Report or by running work under Guard /
// Go, which recover panics and preserve the capture contract (type,
// trace, variables, timestamp).
package runtime

import (
	"bytes"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"strconv"
	"sync"
	"time"
)

// Frame is one stack frame, innermost first in a Failure's Frames.
type Frame struct {
	File     string
	Line     int
	Function string
}

// Failure is one uncaught failure flowing through the hook chain.
type Failure struct {
	Type      string
	Value     string
	Frames    []Frame
	Locals    map[string]any
	Globals   map[string]any
	Goroutine string
	Timestamp time.Time
}

// Hook receives failures. Hooks must not panic; the dispatcher does not
// recover on their behalf.
type Hook func(Failure)

var (
	hookMu      sync.Mutex
	processHook Hook = defaultHook
)

func defaultHook(f Failure) {
	slog.Error("uncaught failure", "type", f.Type, "value", f.Value, "goroutine", f.Goroutine)
}

// swapHook installs h and returns the hook it displaced.
func swapHook(h Hook) Hook {
	hookMu.Lock()
	defer hookMu.Unlock()
	prev := processHook
	processHook = h
	return prev
}

// restoreHook puts back a previously saved hook reference.
func restoreHook(h Hook) {
	hookMu.Lock()
	defer hookMu.Unlock()
	processHook = h
}

func currentHook() Hook {
	hookMu.Lock()
	defer hookMu.Unlock()
	return processHook
}

// Dispatch delivers a failure to the currently installed hook.
func Dispatch(f Failure) {
	currentHook()(f)
}

// ReportOption attaches optional capture data to a reported failure.
type ReportOption func(*Failure)

// WithLocals attaches a local-variable snapshot.
func WithLocals(vars map[string]any) ReportOption {
	return func(f *Failure) { f.Locals = vars }
}

// WithGlobals attaches a global-variable snapshot.
func WithGlobals(vars map[string]any) ReportOption {
	return func(f *Failure) { f.Globals = vars }
}

// Report sends an error into the installed hook with the caller's stack.
func Report(err error, opts ...ReportOption) {
	if err == nil {
		return
	}
	f := newFailure(fmt.Sprintf("%T", err), err.Error(), 4)
	for _, opt := range opts {
		opt(&f)
	}
	Dispatch(f)
}

// Guard runs fn and converts a panic into a dispatched failure instead of
// unwinding further. The panic does not escape.
func Guard(fn func(), opts ...ReportOption) {
	defer func() {
		if r := recover(); r != nil {
			f := newFailure(fmt.Sprintf("%T", r), fmt.Sprint(r), 4)
			for _, opt := range opts {
				opt(&f)
			}
			Dispatch(f)
		}
	}()
	fn()
}

// Go runs fn on a new goroutine under Guard.
func Go(fn func(), opts ...ReportOption) {
	go Guard(fn, opts...)
}

func newFailure(typ, value string, skip int) Failure {
	return Failure{
		Type:      typ,
		Value:     value,
		Frames:    captureFrames(skip),
		Goroutine: goroutineID(),
		Timestamp: time.Now().UTC(),
	}
}

func captureFrames(skip int) []Frame {
	pcs := make([]uintptr, 128)
	n := goruntime.Callers(skip, pcs)
	if n == 0 {
		return nil
	}
	frames := goruntime.CallersFrames(pcs[:n])
	var out []Frame
	for {
		fr, more := frames.Next()
		out = append(out, Frame{File: fr.File, Line: fr.Line, Function: fr.Function})
		if !more {
			break
		}
	}
	return out
}

func goroutineID() string {
	buf := make([]byte, 64)
	buf = buf[:goruntime.Stack(buf, false)]
	// First line: "goroutine 123 [running]:"
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	if i := bytes.IndexByte(buf, ' '); i > 0 {
		if _, err := strconv.Atoi(string(buf[:i])); err == nil {
			return string(buf[:i])
		}
	}
	return "unknown"
}
