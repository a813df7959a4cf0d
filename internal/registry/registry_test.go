package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSameCanonicalPathSharesInstances(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)

	c1 := r.RuntimeCollector(dir)
	c2 := r.RuntimeCollector(dir + string(os.PathSeparator) + "." + string(os.PathSeparator))
	if c1 != c2 {
		t.Error("equivalent paths must share one collector")
	}

	other := t.TempDir()
	if r.RuntimeCollector(other) == c1 {
		t.Error("distinct repositories must not share a collector")
	}

	if r.StaticDetector(dir) != r.StaticDetector(dir) {
		t.Error("detector must be shared per repository")
	}
}

func TestSymlinkResolvesToSameEntry(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(dir, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	r := New(nil)
	if r.RuntimeCollector(dir) != r.RuntimeCollector(link) {
		t.Error("symlinked path must resolve to the same collector")
	}
}

func TestConcurrentGet(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)

	var wg sync.WaitGroup
	collectors := make([]any, 16)
	for i := range collectors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			collectors[i] = r.RuntimeCollector(dir)
		}(i)
	}
	wg.Wait()

	for _, c := range collectors[1:] {
		if c != collectors[0] {
			t.Fatal("concurrent callers must receive the same collector")
		}
	}
}

func TestShutdownAll(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)

	c := r.RuntimeCollector(dir)
	r.StartRuntimeCollection(dir)
	if !c.Active() {
		t.Fatal("expected active collection")
	}

	r.ShutdownAll()
	if c.Active() {
		t.Error("shutdown must stop every collector")
	}

	// The registry is empty afterward: the next lookup builds fresh
	// instances.
	if r.RuntimeCollector(dir) == c {
		t.Error("shutdown must empty the registry")
	}
}

func TestConvenienceWrappers(t *testing.T) {
	dir := t.TempDir()
	r := New(nil)

	r.StartRuntimeCollection(dir)
	defer r.ShutdownAll()

	if got := r.RuntimeErrors(dir); len(got) != 0 {
		t.Fatalf("expected no records yet, got %d", len(got))
	}
	r.ClearRuntimeErrors(dir)
	r.StopRuntimeCollection(dir)
	if r.RuntimeCollector(dir).Active() {
		t.Error("stop wrapper must deactivate collection")
	}
}
