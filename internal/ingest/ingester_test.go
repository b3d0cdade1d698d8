package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/physicalai/tbrag/internal/chunker"
	"github.com/physicalai/tbrag/internal/storage"
	"github.com/physicalai/tbrag/internal/vectorindex"
)

type mockEmbedder struct {
	mu      sync.Mutex
	batches int
	embedFn func(texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches++
	m.mu.Unlock()
	if m.embedFn != nil {
		return m.embedFn(texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const chapterTwo = `---
title: Humanoid Mechanics
---
# Humanoid Robot Mechanics

## Degrees of Freedom

A humanoid has many joints. Each joint adds a degree of freedom.

## Placeholder

## Actuators

Electric motors drive most joints. Hydraulic actuators deliver high force.
`

func TestBuildChunks_SkipsEmptySectionsKeepsIndex(t *testing.T) {
	in := New(&mockEmbedder{}, nil, nil, Options{})
	doc, err := chunker.ParseChapter("chapter-2-mechanics.md", []byte(chapterTwo))
	if err != nil {
		t.Fatal(err)
	}

	sections := in.BuildChunks(doc)
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if sections[0][0].SectionID != "2.1" || sections[1][0].SectionID != "2.3" {
		t.Errorf("section ids = %s, %s; want 2.1, 2.3", sections[0][0].SectionID, sections[1][0].SectionID)
	}
	c := sections[1][0]
	if c.SectionTitle != "Actuators" || c.ChunkIndex != 0 || c.ChapterID != 2 {
		t.Errorf("chunk = %+v", c)
	}
	if c.CharCount != len([]rune(c.Text)) || c.TokenCount != c.CharCount/4 || c.PreviewText != c.Text {
		t.Errorf("derived fields wrong: %+v", c)
	}
}

func TestChunkID_Stable(t *testing.T) {
	a := ChunkID(1, "1.2", 0)
	if a != ChunkID(1, "1.2", 0) {
		t.Error("ChunkID is not deterministic")
	}
	if a == ChunkID(1, "1.2", 1) || a == ChunkID(2, "1.2", 0) {
		t.Error("ChunkID collides across positions")
	}
}

func TestIngestChapter_IndexesChunks(t *testing.T) {
	store := openTestStore(t)
	idx := vectorindex.NewSQLite(store.DB())
	emb := &mockEmbedder{}
	in := New(emb, idx, store, Options{})
	ctx := context.Background()

	res, err := in.IngestChapter(ctx, "docs/chapter-2-mechanics.md", []byte(chapterTwo))
	if err != nil {
		t.Fatalf("IngestChapter: %v", err)
	}
	if res.ChapterID != 2 || res.Title != "Humanoid Robot Mechanics" || res.Sections != 2 || res.Chunks != 2 {
		t.Errorf("result = %+v", res)
	}
	if emb.batches != 2 {
		t.Errorf("embedded %d batches, want one per section", emb.batches)
	}

	if n, _ := store.CountChunks(ctx); n != 2 {
		t.Errorf("chunk rows = %d, want 2", n)
	}
	if n, _ := idx.Count(ctx); n != 2 {
		t.Errorf("vectors = %d, want 2", n)
	}

	id := ChunkID(2, "2.3", 0)
	rows, err := store.GetChunksByIDs(ctx, []string{id})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rows[id].Text, "Electric motors") {
		t.Errorf("stored text = %q", rows[id].Text)
	}
}

func TestIngestChapter_ReingestRemovesStale(t *testing.T) {
	store := openTestStore(t)
	idx := vectorindex.NewSQLite(store.DB())
	in := New(&mockEmbedder{}, idx, store, Options{})
	ctx := context.Background()

	if _, err := in.IngestChapter(ctx, "chapter-2-mechanics.md", []byte(chapterTwo)); err != nil {
		t.Fatal(err)
	}
	shorter := "# Humanoid Robot Mechanics\n\n## Degrees of Freedom\n\nJoints.\n"
	res, err := in.IngestChapter(ctx, "chapter-2-mechanics.md", []byte(shorter))
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 1 || res.Removed != 1 {
		t.Errorf("result = %+v, want 1 chunk and 1 removed", res)
	}
	if n, _ := store.CountChunks(ctx); n != 1 {
		t.Errorf("chunk rows = %d, want 1", n)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Errorf("vectors = %d, want 1", n)
	}
}

func TestIngestChapter_EmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	store := openTestStore(t)
	idx := vectorindex.NewSQLite(store.DB())
	ctx := context.Background()

	if _, err := New(&mockEmbedder{}, idx, store, Options{}).IngestChapter(ctx, "chapter-2-m.md", []byte(chapterTwo)); err != nil {
		t.Fatal(err)
	}
	failing := &mockEmbedder{embedFn: func([]string) ([][]float32, error) { return nil, errors.New("quota exceeded") }}
	if _, err := New(failing, idx, store, Options{}).IngestChapter(ctx, "chapter-2-m.md", []byte(chapterTwo)); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := store.CountChunks(ctx); n != 2 {
		t.Errorf("chunk rows = %d after failed re-ingest, want 2", n)
	}
}

func TestIngestChapter_CancelBeforeStoreKeepsOldChunks(t *testing.T) {
	store := openTestStore(t)
	idx := vectorindex.NewSQLite(store.DB())

	if _, err := New(&mockEmbedder{}, idx, store, Options{}).IngestChapter(context.Background(), "chapter-2-m.md", []byte(chapterTwo)); err != nil {
		t.Fatal(err)
	}
	before, _ := store.CountChunks(context.Background())

	// Shutdown arrives after embedding finished but before metadata is written.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelling := &mockEmbedder{embedFn: func(texts []string) ([][]float32, error) {
		cancel()
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	}}
	changed := strings.Replace(chapterTwo, "many joints", "dozens of joints", 1)
	if _, err := New(cancelling, idx, store, Options{}).IngestChapter(ctx, "chapter-2-m.md", []byte(changed)); err == nil {
		t.Fatal("expected error after cancellation")
	}

	if n, _ := store.CountChunks(context.Background()); n != before || n == 0 {
		t.Errorf("chunk rows = %d after interrupted re-ingest, want %d", n, before)
	}
}

func TestIngestChapter_RequiresChapterNumber(t *testing.T) {
	in := New(&mockEmbedder{}, nil, nil, Options{})
	if _, err := in.IngestChapter(context.Background(), "appendix.md", []byte("## A\n\ntext\n")); err == nil {
		t.Fatal("expected error for file without chapter number")
	}
}
