package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/physicalai/tbrag/internal/storage"
)

// JobTypeIngestChapter is the job type processed by Worker.
const JobTypeIngestChapter = "ingest_chapter"

// JobStore abstracts the job queue operations.
type JobStore interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
	CountJobs(ctx context.Context) (map[string]int, error)
}

// ChapterIngester indexes one chapter file. Implemented by Ingester.
type ChapterIngester interface {
	IngestChapter(ctx context.Context, name string, source []byte) (Result, error)
}

type chapterPayload struct {
	Path string `json:"path"`
}

// Summary counts the jobs a Drain processed.
type Summary struct {
	Completed int
	Failed    int
	Chunks    int
}

// Worker processes ingest_chapter jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	ingester ChapterIngester
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, ingester ChapterIngester, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:    store,
		ingester: ingester,
		poll:     pollInterval,
		logger:   logger,
	}
}

// EnqueueDir enqueues one job per chapter-*.md file in dir, in name order.
func (w *Worker) EnqueueDir(ctx context.Context, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "chapter-*.md"))
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		if err := w.Enqueue(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(paths), nil
}

// Enqueue adds an ingest_chapter job for the file at path.
func (w *Worker) Enqueue(ctx context.Context, path string) error {
	payload, err := json.Marshal(chapterPayload{Path: path})
	if err != nil {
		return err
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeIngestChapter,
		PayloadJSON: string(payload),
	}
	if err := w.store.EnqueueJob(ctx, job); err != nil {
		return fmt.Errorf("enqueueing %s: %w", path, err)
	}
	return nil
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// Drain processes jobs until none are pending, waiting out retry backoff.
func (w *Worker) Drain(ctx context.Context) (Summary, error) {
	var sum Summary
	for {
		job, err := w.store.ClaimNextJob(ctx, []string{JobTypeIngestChapter})
		if err != nil {
			return sum, fmt.Errorf("claiming job: %w", err)
		}
		if job != nil {
			res, err := w.process(ctx, job)
			if err != nil {
				sum.Failed++
				continue
			}
			sum.Completed++
			sum.Chunks += res.Chunks
			continue
		}

		counts, err := w.store.CountJobs(ctx)
		if err != nil {
			return sum, fmt.Errorf("counting jobs: %w", err)
		}
		if counts["pending"] == 0 && counts["running"] == 0 {
			return sum, nil
		}
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single ingest_chapter job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobTypeIngestChapter})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	_, err = w.process(ctx, job)
	if err != nil && !isJobError(err) {
		return true, err
	}
	return true, nil
}

// jobError marks a failure already recorded on the job.
type jobError struct{ err error }

func (e *jobError) Error() string { return e.err.Error() }
func (e *jobError) Unwrap() error { return e.err }

func isJobError(err error) bool {
	_, ok := err.(*jobError)
	return ok
}

func (w *Worker) process(ctx context.Context, job *storage.Job) (Result, error) {
	res, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return Result{}, &jobError{err: err}
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return res, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return res, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (Result, error) {
	var payload chapterPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return Result{}, fmt.Errorf("parsing payload: %w", err)
	}

	data, err := os.ReadFile(payload.Path)
	if err != nil {
		return Result{}, fmt.Errorf("reading chapter: %w", err)
	}
	return w.ingester.IngestChapter(ctx, payload.Path, data)
}
