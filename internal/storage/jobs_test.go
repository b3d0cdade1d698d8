package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueJob(ctx, Job{ID: "j1", Type: "ingest_chapter", PayloadJSON: `{"path":"a.md"}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob(ctx, []string{"ingest_chapter"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil || job.ID != "j1" {
		t.Fatalf("claimed %+v, want j1", job)
	}
	if job.Status != "running" || job.MaxAttempts != 3 {
		t.Errorf("job = %+v", job)
	}

	again, err := s.ClaimNextJob(ctx, []string{"ingest_chapter"})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("running job claimed twice: %+v", again)
	}
}

func TestClaimNextJob_FiltersType(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.EnqueueJob(ctx, Job{ID: "j1", Type: "other", PayloadJSON: "{}"})
	job, err := s.ClaimNextJob(ctx, []string{"ingest_chapter"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job != nil {
		t.Errorf("claimed job of wrong type: %+v", job)
	}
	if job, _ := s.ClaimNextJob(ctx, nil); job != nil {
		t.Error("expected nil for empty type list")
	}
}

func TestClaimNextJob_RespectsRunAfter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.EnqueueJob(ctx, Job{ID: "later", Type: "ingest_chapter", PayloadJSON: "{}", RunAfter: time.Now().Add(time.Hour)})
	job, err := s.ClaimNextJob(ctx, []string{"ingest_chapter"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job != nil {
		t.Errorf("claimed job before run_after: %+v", job)
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.EnqueueJob(ctx, Job{ID: "j1", Type: "ingest_chapter", PayloadJSON: "{}"})
	if err := s.CompleteJob(ctx, "j1"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	got, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "completed" {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if err := s.CompleteJob(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFailJob_BackoffThenFailed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.EnqueueJob(ctx, Job{ID: "j1", Type: "ingest_chapter", PayloadJSON: "{}", MaxAttempts: 2})

	before := time.Now().UTC()
	if err := s.FailJob(ctx, "j1", "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	got, _ := s.GetJob(ctx, "j1")
	if got.Status != "pending" || got.Attempts != 1 || got.LastError != "boom" {
		t.Errorf("after first failure: %+v", got)
	}
	if got.RunAfter.Before(before.Add(time.Second)) {
		t.Errorf("RunAfter %v not pushed back", got.RunAfter)
	}

	if err := s.FailJob(ctx, "j1", "boom again"); err != nil {
		t.Fatalf("second FailJob: %v", err)
	}
	got, _ = s.GetJob(ctx, "j1")
	if got.Status != "failed" || got.Attempts != 2 {
		t.Errorf("after second failure: %+v", got)
	}

	if err := s.FailJob(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCountJobs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.EnqueueJob(ctx, Job{ID: "a", Type: "ingest_chapter", PayloadJSON: "{}"})
	s.EnqueueJob(ctx, Job{ID: "b", Type: "ingest_chapter", PayloadJSON: "{}"})
	s.CompleteJob(ctx, "b")

	counts, err := s.CountJobs(ctx)
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if counts["pending"] != 1 || counts["completed"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
