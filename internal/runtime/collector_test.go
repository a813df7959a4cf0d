package runtime

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"mend/internal/diag"
)

// withQuietHook installs a throwaway base hook for the duration of a test
// so captured failures do not reach the default logging hook.
func withQuietHook(t *testing.T) {
	t.Helper()
	prev := swapHook(func(Failure) {})
	t.Cleanup(func() { restoreHook(prev) })
}

func TestStartStopRestoresHook(t *testing.T) {
	var baseCalls int
	base := func(Failure) { baseCalls++ }
	prev := swapHook(base)
	defer restoreHook(prev)

	c := NewCollector(t.TempDir(), DefaultOptions())

	// Two full start/stop cycles must hand the chain back to base.
	c.StartCollection()
	c.StopCollection()
	c.StartCollection()
	c.StartCollection() // idempotent
	c.StopCollection()
	c.StopCollection() // idempotent, no-op

	Dispatch(Failure{Type: "probe"})
	if baseCalls != 1 {
		t.Fatalf("expected base hook to receive the dispatch after restore, got %d calls", baseCalls)
	}
	if len(c.RuntimeErrors()) != 0 {
		t.Fatal("stopped collector must not record dispatches")
	}
}

func TestStopWithoutStartIsNoOp(t *testing.T) {
	withQuietHook(t)

	c := NewCollector(t.TempDir(), DefaultOptions())
	c.StopCollection()

	Dispatch(Failure{Type: "probe"})
	if len(c.RuntimeErrors()) != 0 {
		t.Fatal("collector that never started must not capture")
	}
}

func TestChainsToPreviousHook(t *testing.T) {
	var prevGot []Failure
	prev := swapHook(func(f Failure) { prevGot = append(prevGot, f) })
	defer restoreHook(prev)

	c := NewCollector(t.TempDir(), DefaultOptions())
	c.StartCollection()
	defer c.StopCollection()

	Dispatch(Failure{Type: "boom", Value: "v"})

	if len(c.RuntimeErrors()) != 1 {
		t.Fatalf("expected 1 record, got %d", len(c.RuntimeErrors()))
	}
	if len(prevGot) != 1 || prevGot[0].Type != "boom" {
		t.Fatalf("expected delegation to the displaced hook, got %v", prevGot)
	}
}

func TestConcurrentCaptureLosesNothing(t *testing.T) {
	withQuietHook(t)

	c := NewCollector(t.TempDir(), DefaultOptions())
	c.StartCollection()
	defer c.StopCollection()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Guard(func() { panic(fmt.Sprintf("failure-%d", i)) })
		}(i)
	}
	wg.Wait()

	records := c.RuntimeErrors()
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}
	seen := make(map[string]bool, n)
	for _, r := range records {
		seen[r.Message] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct records, got %d", n, len(seen))
	}
}

func TestMaxErrorsKeepsNewest(t *testing.T) {
	withQuietHook(t)

	c := NewCollector(t.TempDir(), Options{MaxErrors: 5})
	c.StartCollection()
	defer c.StopCollection()

	for i := 0; i < 20; i++ {
		Dispatch(Failure{Type: "err", Value: fmt.Sprintf("v%02d", i)})
	}

	records := c.RuntimeErrors()
	if len(records) != 5 {
		t.Fatalf("expected 5 retained records, got %d", len(records))
	}
	for i, r := range records {
		want := fmt.Sprintf("v%02d", 15+i)
		if !strings.HasSuffix(r.Message, want) {
			t.Fatalf("record %d: expected suffix %q, got %q", i, want, r.Message)
		}
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	var prevCalls int
	prev := swapHook(func(Failure) { prevCalls++ })
	defer restoreHook(prev)

	c := NewCollector(t.TempDir(), DefaultOptions())
	c.StartCollection()
	defer c.StopCollection()

	var good int
	c.AddErrorHandler(func(diag.RuntimeError) { panic("misbehaving handler") })
	c.AddErrorHandler(func(diag.RuntimeError) { good++ })

	Dispatch(Failure{Type: "err", Value: "x"})

	if good != 1 {
		t.Fatalf("expected well-behaved handler to run, got %d calls", good)
	}
	if prevCalls != 1 {
		t.Fatal("handler panic must not prevent delegation to the previous hook")
	}
}

func TestRemoveErrorHandler(t *testing.T) {
	withQuietHook(t)

	c := NewCollector(t.TempDir(), DefaultOptions())
	c.StartCollection()
	defer c.StopCollection()

	var calls int
	token := c.AddErrorHandler(func(diag.RuntimeError) { calls++ })
	Dispatch(Failure{Type: "err"})
	c.RemoveErrorHandler(token)
	Dispatch(Failure{Type: "err"})

	if calls != 1 {
		t.Fatalf("expected 1 handler call after removal, got %d", calls)
	}
}

func TestVariableSnapshot(t *testing.T) {
	withQuietHook(t)

	c := NewCollector(t.TempDir(), Options{CollectVariables: true, VariableMaxLength: 10})
	c.StartCollection()
	defer c.StopCollection()

	Report(errors.New("bad state"), WithLocals(map[string]any{
		"count":      42,
		"payload":    strings.Repeat("x", 100),
		"__internal": "hidden",
	}))

	records := c.RuntimeErrors()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	locals := records[0].Context.LocalVariables
	if locals["count"] != "42" {
		t.Errorf("expected stringified count, got %q", locals["count"])
	}
	if got := locals["payload"]; len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncated payload, got %q", got)
	}
	if _, ok := locals["__internal"]; ok {
		t.Error("double-underscore names must be excluded")
	}
}

func TestVariablesDisabled(t *testing.T) {
	withQuietHook(t)

	c := NewCollector(t.TempDir(), Options{CollectVariables: false})
	c.StartCollection()
	defer c.StopCollection()

	Report(errors.New("bad"), WithLocals(map[string]any{"a": 1}))

	records := c.RuntimeErrors()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Context.LocalVariables != nil {
		t.Error("variable capture disabled, snapshot must be empty")
	}
}

func TestErrorSummaryAndClear(t *testing.T) {
	withQuietHook(t)

	c := NewCollector(t.TempDir(), DefaultOptions())
	c.StartCollection()
	defer c.StopCollection()

	Dispatch(Failure{Type: "TypeError"})
	Dispatch(Failure{Type: "TypeError"})
	Dispatch(Failure{Type: "ValueError"})

	summary := c.ErrorSummary()
	if summary.Total != 3 {
		t.Fatalf("expected total 3, got %d", summary.Total)
	}
	if summary.ByExceptionType["TypeError"] != 2 || summary.ByExceptionType["ValueError"] != 1 {
		t.Fatalf("unexpected type counts: %v", summary.ByExceptionType)
	}
	if !summary.CollectionOn {
		t.Error("summary must report active collection")
	}

	c.ClearRuntimeErrors()
	if c.ErrorSummary().Total != 0 {
		t.Error("clear must empty the sequence")
	}
}

func TestGuardPicksRepoFrame(t *testing.T) {
	withQuietHook(t)

	// The test binary's own source is not under the temp repo root, so
	// frame selection must fall back to the innermost frame.
	c := NewCollector(t.TempDir(), DefaultOptions())
	c.StartCollection()
	defer c.StopCollection()

	Guard(func() { panic("edge") })

	records := c.RuntimeErrors()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].FilePath == "" || records[0].Line == 0 {
		t.Fatalf("expected fallback frame location, got %q:%d", records[0].FilePath, records[0].Line)
	}
	if len(records[0].Context.StackTrace) == 0 {
		t.Error("expected a formatted stack trace")
	}
}
