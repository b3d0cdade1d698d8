package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/physicalai/tbrag/internal/storage"
)

type mockIngester struct {
	calls    atomic.Int32
	ingestFn func(name string) (Result, error)
}

func (m *mockIngester) IngestChapter(_ context.Context, name string, _ []byte) (Result, error) {
	m.calls.Add(1)
	if m.ingestFn != nil {
		return m.ingestFn(name)
	}
	return Result{Chunks: 3}, nil
}

func writeChapters(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("# T\n\n## S\n\ntext.\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// resetRunAfter sets run_after to now so the job is immediately claimable after FailJob backoff.
func resetRunAfter(t *testing.T, store *storage.Store) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := store.DB().Exec(`UPDATE jobs SET run_after = ?`, now); err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func TestEnqueueDir(t *testing.T) {
	store := openTestStore(t)
	dir := writeChapters(t, "chapter-1-intro.md", "chapter-2-mech.md", "README.md")
	w := NewWorker(store, &mockIngester{}, time.Millisecond, nil)

	n, err := w.EnqueueDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("EnqueueDir: %v", err)
	}
	if n != 2 {
		t.Errorf("enqueued %d, want 2", n)
	}
	counts, _ := store.CountJobs(context.Background())
	if counts["pending"] != 2 {
		t.Errorf("pending = %d, want 2", counts["pending"])
	}
}

func TestDrain_ProcessesAll(t *testing.T) {
	store := openTestStore(t)
	dir := writeChapters(t, "chapter-1-intro.md", "chapter-2-mech.md")
	ing := &mockIngester{}
	w := NewWorker(store, ing, time.Millisecond, nil)
	ctx := context.Background()

	if _, err := w.EnqueueDir(ctx, dir); err != nil {
		t.Fatal(err)
	}
	sum, err := w.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if sum.Completed != 2 || sum.Failed != 0 || sum.Chunks != 6 {
		t.Errorf("summary = %+v", sum)
	}
	counts, _ := store.CountJobs(ctx)
	if counts["completed"] != 2 {
		t.Errorf("completed = %d, want 2", counts["completed"])
	}
}

func TestRunOnce_NoJobs(t *testing.T) {
	w := NewWorker(openTestStore(t), &mockIngester{}, time.Millisecond, nil)
	done, err := w.RunOnce(context.Background())
	if err != nil || done {
		t.Errorf("RunOnce = %v, %v; want false, nil", done, err)
	}
}

func TestRunOnce_FailureRetriesThenFails(t *testing.T) {
	store := openTestStore(t)
	dir := writeChapters(t, "chapter-1-intro.md")
	ing := &mockIngester{ingestFn: func(string) (Result, error) { return Result{}, errors.New("embedding quota") }}
	w := NewWorker(store, ing, time.Millisecond, nil)
	ctx := context.Background()

	if _, err := w.EnqueueDir(ctx, dir); err != nil {
		t.Fatal(err)
	}
	for attempt := 1; attempt <= 3; attempt++ {
		done, err := w.RunOnce(ctx)
		if err != nil || !done {
			t.Fatalf("attempt %d: RunOnce = %v, %v", attempt, done, err)
		}
		resetRunAfter(t, store)
	}

	counts, _ := store.CountJobs(ctx)
	if counts["failed"] != 1 {
		t.Errorf("failed = %d, want 1 after max attempts (counts %v)", counts["failed"], counts)
	}
	if ing.calls.Load() != 3 {
		t.Errorf("ingest calls = %d, want 3", ing.calls.Load())
	}
}

func TestRunOnce_MissingFileFailsJob(t *testing.T) {
	store := openTestStore(t)
	ing := &mockIngester{}
	w := NewWorker(store, ing, time.Millisecond, nil)
	ctx := context.Background()

	if err := w.Enqueue(ctx, filepath.Join(t.TempDir(), "chapter-9-gone.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if ing.calls.Load() != 0 {
		t.Error("ingester called for a missing file")
	}
	counts, _ := store.CountJobs(ctx)
	if counts["pending"] != 1 {
		t.Errorf("counts = %v, want job rescheduled", counts)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	w := NewWorker(openTestStore(t), &mockIngester{}, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
