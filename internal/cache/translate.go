package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/physicalai/tbrag/internal/generation"
	"github.com/physicalai/tbrag/internal/storage"
)

// TranslateResult is a translated chapter and how it was obtained.
type TranslateResult struct {
	ChapterID          int    `json:"chapter_id"`
	TranslatedMarkdown string `json:"translated_markdown"`
	TargetLang         string `json:"target_lang"`
	IsCached           bool   `json:"is_cached"`
	GenerationTimeMs   int64  `json:"generation_time_ms"`
}

// Translator is the cache-aside front of chapter translation. Translations
// are stored inline in the metadata store.
type Translator struct {
	chapters ChapterSource
	rows     TranslationStore
	gen      ChapterGenerator
	logger   *slog.Logger
}

// NewTranslator creates a Translator.
func NewTranslator(chapters ChapterSource, rows TranslationStore, gen ChapterGenerator, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{chapters: chapters, rows: rows, gen: gen, logger: logger}
}

// Translate returns chapterID in lang for the user. The source language
// returns the original text without touching the cache.
func (t *Translator) Translate(ctx context.Context, userID string, chapterID int, code string) (TranslateResult, error) {
	start := time.Now()

	lang, err := generation.ParseLanguage(code)
	if err != nil {
		return TranslateResult{}, err
	}
	result := TranslateResult{ChapterID: chapterID, TargetLang: string(lang)}

	if lang == generation.SourceLanguage {
		chapter, err := t.chapters.Read(chapterID)
		if err != nil {
			return TranslateResult{}, err
		}
		result.TranslatedMarkdown = chapter.Markdown
		result.IsCached = true
		return result, nil
	}

	log := t.logger.With("user_id", userID, "chapter_id", chapterID, "language", code)

	row, err := t.rows.GetTranslatedChapter(ctx, userID, chapterID, code)
	switch {
	case err == nil:
		result.TranslatedMarkdown = row.TranslatedContent
		result.IsCached = true
		result.GenerationTimeMs = elapsedMs(start)
		return result, nil
	case errors.Is(err, storage.ErrNotFound):
	default:
		log.Warn("translation cache lookup failed", "error", err)
	}

	chapter, err := t.chapters.Read(chapterID)
	if err != nil {
		return TranslateResult{}, err
	}
	translated, err := t.gen.TranslateChapter(ctx, chapter.Markdown, lang)
	if err != nil {
		return TranslateResult{}, fmt.Errorf("translating chapter %d: %w", chapterID, err)
	}

	genMs := elapsedMs(start)
	if err := t.rows.UpsertTranslatedChapter(ctx, storage.TranslatedChapter{
		UserID:            userID,
		ChapterID:         chapterID,
		TargetLanguage:    code,
		TranslatedContent: translated,
		GenerationTimeMs:  genMs,
	}); err != nil {
		log.Warn("recording translation failed", "error", err)
	}

	result.TranslatedMarkdown = translated
	result.GenerationTimeMs = genMs
	return result, nil
}
