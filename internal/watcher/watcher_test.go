package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("callback path = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for callback on %q", want)
	}
}

func TestWatcher_IngestOnDrop(t *testing.T) {
	dir := t.TempDir()
	ingested := make(chan string, 8)
	removed := make(chan string, 8)

	w := New([]string{dir}, []string{".png"}, false,
		func(path string) { ingested <- path },
		func(path string) { removed <- path },
		WithDebounce(20*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "drop.png")
	if err := os.WriteFile(path, []byte("fake png"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ingested, path)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, removed, path)
}

func TestWatcher_ExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	ingested := make(chan string, 8)

	w := New([]string{dir}, []string{".png"}, false,
		func(path string) { ingested <- path }, nil,
		WithDebounce(20*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	matching := filepath.Join(dir, "art.png")
	if err := os.WriteFile(matching, []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	// Only the png triggers; the txt never arrives.
	waitFor(t, ingested, matching)
	select {
	case extra := <-ingested:
		t.Errorf("unexpected ingest callback for %q", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_DebounceCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	ingested := make(chan string, 8)

	w := New([]string{dir}, nil, false,
		func(path string) { ingested <- path }, nil,
		WithDebounce(100*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "big.png")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte(i)}, 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	waitFor(t, ingested, path)
	select {
	case <-ingested:
		t.Error("rapid writes to one file should coalesce into one ingest")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_AddRemoveDirectory(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	ingested := make(chan string, 8)

	w := New([]string{first}, nil, false,
		func(path string) { ingested <- path }, nil,
		WithDebounce(20*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(second, false); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 2 {
		t.Fatalf("directories = %v", w.Directories())
	}

	path := filepath.Join(second, "late.png")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ingested, path)

	if err := w.RemoveDirectory(second); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 1 {
		t.Fatalf("directories after remove = %v", w.Directories())
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	preexisting := filepath.Join(dir, "already.png")
	if err := os.WriteFile(preexisting, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	ingested := make(chan string, 8)
	w := New([]string{dir}, []string{".png"}, false,
		func(path string) { ingested <- path }, nil,
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	waitFor(t, ingested, preexisting)
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "drops")
	w := New([]string{root}, nil, false, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()
	if _, err := os.Stat(root); err != nil {
		t.Errorf("missing drop folder should be created: %v", err)
	}
}
