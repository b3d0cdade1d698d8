// Package ingest turns chapter markdown into indexed chunks: metadata rows in
// SQLite and vectors in the vector index.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/physicalai/tbrag/internal/chunker"
	"github.com/physicalai/tbrag/internal/storage"
	"github.com/physicalai/tbrag/internal/vectorindex"
)

// chunkNamespace scopes chunk ids so re-ingesting a chapter reuses them.
var chunkNamespace = uuid.MustParse("6f1c7d0e-3b0a-4f57-9a0e-2d6f0c9b8a41")

// BatchEmbedder embeds many texts in one call. Implemented by embedding.Embedder.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter persists chunk metadata. Implemented by storage.Store.
type ChunkWriter interface {
	ReplaceChapterChunks(ctx context.Context, chapterID int, chunks []storage.Chunk) ([]string, error)
}

// Options tune chunking and parallelism.
type Options struct {
	ChunkSize   int
	Overlap     int
	Concurrency int // sections embedded in parallel
	Logger      *slog.Logger
}

// Result summarizes one ingested chapter.
type Result struct {
	ChapterID int
	Title     string
	Sections  int
	Chunks    int
	Removed   int
}

// Ingester indexes chapters.
type Ingester struct {
	embedder    BatchEmbedder
	index       vectorindex.Index
	chunks      ChunkWriter
	chunkSize   int
	overlap     int
	concurrency int
	logger      *slog.Logger
}

// New creates an Ingester.
func New(embedder BatchEmbedder, index vectorindex.Index, chunks ChunkWriter, opts Options) *Ingester {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunker.DefaultChunkSize
		if opts.Overlap == 0 {
			opts.Overlap = chunker.DefaultOverlap
		}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Ingester{
		embedder:    embedder,
		index:       index,
		chunks:      chunks,
		chunkSize:   opts.ChunkSize,
		overlap:     opts.Overlap,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
}

// ChunkID returns the stable id of a chunk.
func ChunkID(chapterID int, sectionID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, fmt.Appendf(nil, "%d/%s/%d", chapterID, sectionID, index)).String()
}

// BuildChunks splits every non-empty section of doc into chunk rows.
// Empty sections are skipped but still consume their section index.
func (in *Ingester) BuildChunks(doc chunker.Document) [][]storage.Chunk {
	var out [][]storage.Chunk
	for _, sec := range doc.Sections {
		if strings.TrimSpace(sec.Content) == "" {
			continue
		}
		sectionID := sec.ID(doc.ChapterID)
		var rows []storage.Chunk
		for i, text := range chunker.Chunk(sec.Content, in.chunkSize, in.overlap) {
			rows = append(rows, storage.Chunk{
				ID:           ChunkID(doc.ChapterID, sectionID, i),
				ChapterID:    doc.ChapterID,
				SectionID:    sectionID,
				SectionTitle: sec.Title,
				ChunkIndex:   i,
				Text:         text,
				CharCount:    chunker.CharCount(text),
				TokenCount:   chunker.EstimateTokens(text),
				PreviewText:  chunker.Preview(text),
			})
		}
		if len(rows) > 0 {
			out = append(out, rows)
		}
	}
	return out
}

// IngestChapter parses, chunks, embeds and indexes one chapter file, then
// removes chunks a previous ingestion left behind.
func (in *Ingester) IngestChapter(ctx context.Context, name string, source []byte) (Result, error) {
	start := time.Now()
	doc, err := chunker.ParseChapter(name, source)
	if err != nil {
		return Result{}, err
	}
	if doc.ChapterID == 0 {
		return Result{}, fmt.Errorf("%s: no chapter number in file name", name)
	}
	log := in.logger.With("chapter_id", doc.ChapterID)

	sections := in.BuildChunks(doc)
	points := make([][]vectorindex.Point, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for i, rows := range sections {
		g.Go(func() error {
			texts := make([]string, len(rows))
			for j, r := range rows {
				texts[j] = r.Text
			}
			vecs, err := in.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embedding section %s: %w", rows[0].SectionID, err)
			}
			ps := make([]vectorindex.Point, len(rows))
			for j, r := range rows {
				ps[j] = vectorindex.Point{ID: r.ID, Vector: vecs[j], Payload: payload(r)}
			}
			points[i] = ps
			log.Debug("section embedded", "section_id", rows[0].SectionID, "chunks", len(rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var allRows []storage.Chunk
	var allPoints []vectorindex.Point
	for i := range sections {
		allRows = append(allRows, sections[i]...)
		allPoints = append(allPoints, points[i]...)
	}

	previous, err := in.chunks.ReplaceChapterChunks(ctx, doc.ChapterID, allRows)
	if err != nil {
		return Result{}, fmt.Errorf("storing chunk metadata of chapter %d: %w", doc.ChapterID, err)
	}
	if err := in.index.Upsert(ctx, allPoints); err != nil {
		return Result{}, fmt.Errorf("indexing chunks: %w", err)
	}

	stale := staleIDs(previous, allRows)
	if err := in.index.Delete(ctx, stale); err != nil {
		log.Warn("removing stale vectors failed", "count", len(stale), "error", err)
	}

	res := Result{
		ChapterID: doc.ChapterID,
		Title:     doc.Title,
		Sections:  len(sections),
		Chunks:    len(allRows),
		Removed:   len(stale),
	}
	log.Info("chapter indexed", "title", doc.Title, "sections", res.Sections, "chunks", res.Chunks,
		"removed", res.Removed, "elapsed", time.Since(start))
	return res, nil
}

func payload(c storage.Chunk) map[string]any {
	return map[string]any{
		"chapter_id":    c.ChapterID,
		"section_id":    c.SectionID,
		"section_title": c.SectionTitle,
		"chunk_index":   c.ChunkIndex,
		"text":          c.Text,
		"preview_text":  c.PreviewText,
	}
}

func staleIDs(previous []string, current []storage.Chunk) []string {
	keep := make(map[string]struct{}, len(current))
	for _, c := range current {
		keep[c.ID] = struct{}{}
	}
	var stale []string
	for _, id := range previous {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}
