package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherBatchesChangedSourceFiles(t *testing.T) {
	tmpDir := t.TempDir()

	changed := make(chan []string, 4)
	w, err := NewWatcher(100*time.Millisecond, []string{"skipme"}, []string{"ignored_*"}, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	source := filepath.Join(tmpDir, "app.py")
	if err := os.WriteFile(source, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changed:
		found := false
		for _, p := range paths {
			if p == source {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %s in changed batch %v", source, paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}

	// Unsupported extensions never trigger a refresh.
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Neither do excluded file patterns.
	if err := os.WriteFile(filepath.Join(tmpDir, "ignored_gen.py"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changed:
		t.Errorf("unexpected batch for ignored files: %v", paths)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	changed := make(chan []string, 4)
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	subdir := filepath.Join(tmpDir, "pkg")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(subdir, "mod.py")
	if err := os.WriteFile(nested, []byte("y = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == nested {
					return
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for nested file event")
		}
	}
}
