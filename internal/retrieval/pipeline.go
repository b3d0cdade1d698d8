// Package retrieval answers questions from the indexed textbook: it embeds
// the question, searches the vector index, joins chunk metadata and hands the
// surviving passages to answer generation.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/physicalai/tbrag/internal/generation"
	"github.com/physicalai/tbrag/internal/profile"
	"github.com/physicalai/tbrag/internal/storage"
	"github.com/physicalai/tbrag/internal/vectorindex"
)

// DefaultTopK is the number of sources returned when the request leaves it unset.
const DefaultTopK = 5

// NoResultsAnswer is returned when the index holds nothing relevant.
const NoResultsAnswer = "I couldn't find relevant information in the textbook for that question. " +
	"Try asking about:\n" +
	"- Physical AI fundamentals\n" +
	"- Humanoid robot mechanics\n" +
	"- ROS 2 programming\n" +
	"- Robot simulation\n" +
	"- Vision-Language-Action models\n" +
	"- AI-robot integration"

// Embedder turns a question into a query vector. Implemented by embedding.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore resolves chunk metadata by id. Implemented by storage.Store.
type ChunkStore interface {
	GetChunksByIDs(ctx context.Context, ids []string) (map[string]storage.Chunk, error)
}

// AnswerGenerator writes the final answer. Implemented by generation.Orchestrator.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, req generation.AnswerRequest) (string, error)
}

// Request is a question, optionally scoped to a text selection.
type Request struct {
	Question     string
	TopK         int
	SelectedText string
	Profile      *profile.Profile
}

// Source cites one chunk used as answer context.
type Source struct {
	ChunkID        string  `json:"chunk_id"`
	ChapterID      int     `json:"chapter_id"`
	SectionID      string  `json:"section_id"`
	SectionTitle   string  `json:"section_title"`
	PreviewText    string  `json:"preview_text"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Response is an answer with its citations.
type Response struct {
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	QueryTimeMs int64    `json:"query_time_ms"`
}

// Pipeline runs retrieval-augmented question answering.
type Pipeline struct {
	embedder Embedder
	index    vectorindex.Index
	chunks   ChunkStore
	gen      AnswerGenerator
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(embedder Embedder, index vectorindex.Index, chunks ChunkStore, gen AnswerGenerator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{embedder: embedder, index: index, chunks: chunks, gen: gen, logger: logger}
}

// Query answers req. A non-empty SelectedText bypasses retrieval entirely.
func (p *Pipeline) Query(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	if req.SelectedText != "" {
		answer, err := p.gen.GenerateAnswer(ctx, generation.AnswerRequest{
			Question:     req.Question,
			SelectedText: req.SelectedText,
			Profile:      req.Profile,
		})
		if err != nil {
			return Response{}, err
		}
		return Response{Answer: answer, Sources: []Source{}, QueryTimeMs: time.Since(start).Milliseconds()}, nil
	}

	vec, err := p.embedder.Embed(ctx, req.Question)
	if err != nil {
		return Response{}, fmt.Errorf("embedding question: %w", err)
	}

	// Over-fetch so dropped matches still leave topK survivors.
	matches, err := p.index.Search(ctx, vec, topK*2)
	if err != nil {
		return Response{}, fmt.Errorf("searching index: %w", err)
	}
	if len(matches) == 0 {
		p.logger.Warn("no index matches", "question_chars", len(req.Question))
		return noResults(), nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	meta, err := p.chunks.GetChunksByIDs(ctx, ids)
	if err != nil {
		return Response{}, fmt.Errorf("loading chunk metadata: %w", err)
	}

	sources, contexts := p.join(matches, meta, topK)
	if len(sources) == 0 {
		p.logger.Warn("no index match has chunk metadata", "matches", len(matches))
		return noResults(), nil
	}

	answer, err := p.gen.GenerateAnswer(ctx, generation.AnswerRequest{
		Question: req.Question,
		Context:  contexts,
		Profile:  req.Profile,
	})
	if err != nil {
		return Response{}, err
	}

	elapsed := time.Since(start).Milliseconds()
	p.logger.Info("query answered", "sources", len(sources), "query_time_ms", elapsed)
	return Response{Answer: answer, Sources: sources, QueryTimeMs: elapsed}, nil
}

// join keeps matches, in index order, that have a metadata row and were not
// seen before, up to topK.
func (p *Pipeline) join(matches []vectorindex.Match, meta map[string]storage.Chunk, topK int) ([]Source, []generation.ContextChunk) {
	sources := make([]Source, 0, topK)
	var contexts []generation.ContextChunk
	seen := make(map[string]bool, len(matches))

	for _, m := range matches {
		if len(sources) == topK {
			break
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true

		c, ok := meta[m.ID]
		if !ok {
			p.logger.Warn("chunk metadata missing", "chunk_id", m.ID)
			continue
		}
		sources = append(sources, Source{
			ChunkID:        c.ID,
			ChapterID:      c.ChapterID,
			SectionID:      c.SectionID,
			SectionTitle:   c.SectionTitle,
			PreviewText:    c.PreviewText,
			RelevanceScore: roundScore(m.Score),
		})
		text := c.Text
		if text == "" {
			text = c.PreviewText
		}
		contexts = append(contexts, generation.ContextChunk{
			ChapterID:    c.ChapterID,
			SectionTitle: c.SectionTitle,
			Text:         text,
		})
	}
	return sources, contexts
}

func noResults() Response {
	return Response{Answer: NoResultsAnswer, Sources: []Source{}, QueryTimeMs: 0}
}

func roundScore(s float32) float64 {
	return math.Round(float64(s)*1000) / 1000
}
