package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/physicalai/tbrag/internal/blob"
	"github.com/physicalai/tbrag/internal/profile"
	"github.com/physicalai/tbrag/internal/storage"
)

// PersonalizeResult is a personalized chapter and how it was obtained.
type PersonalizeResult struct {
	ChapterID            int    `json:"chapter_id"`
	PersonalizedMarkdown string `json:"personalized_markdown"`
	IsCached             bool   `json:"is_cached"`
	GenerationTimeMs     int64  `json:"generation_time_ms"`
}

// Personalizer is the cache-aside front of chapter personalization.
// Content lives in the blob store; rows in the metadata store point at it.
type Personalizer struct {
	profiles ProfileSource
	chapters ChapterSource
	rows     PersonalizationStore
	blobs    blob.Store
	gen      ChapterGenerator
	logger   *slog.Logger
}

// NewPersonalizer creates a Personalizer.
func NewPersonalizer(profiles ProfileSource, chapters ChapterSource, rows PersonalizationStore, blobs blob.Store, gen ChapterGenerator, logger *slog.Logger) *Personalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Personalizer{profiles: profiles, chapters: chapters, rows: rows, blobs: blobs, gen: gen, logger: logger}
}

// Personalize returns chapterID rewritten for the user's current profile.
// Concurrent misses for the same key may both generate; the last upsert wins.
func (p *Personalizer) Personalize(ctx context.Context, userID string, chapterID int) (PersonalizeResult, error) {
	start := time.Now()

	stored, err := p.profiles.Get(ctx, userID)
	if errors.Is(err, profile.ErrNotFound) {
		return PersonalizeResult{}, ErrProfileNotFound
	}
	if err != nil {
		return PersonalizeResult{}, fmt.Errorf("loading profile: %w", err)
	}
	hash := stored.Hash
	log := p.logger.With("user_id", userID, "chapter_id", chapterID, "profile_hash", hash)

	if content, ok := p.lookup(ctx, log, userID, chapterID, hash); ok {
		return PersonalizeResult{
			ChapterID:            chapterID,
			PersonalizedMarkdown: content,
			IsCached:             true,
			GenerationTimeMs:     elapsedMs(start),
		}, nil
	}

	chapter, err := p.chapters.Read(chapterID)
	if err != nil {
		return PersonalizeResult{}, err
	}
	content, err := p.gen.GeneratePersonalizedChapter(ctx, chapter.Markdown, stored.Profile)
	if err != nil {
		return PersonalizeResult{}, err
	}

	key := PersonalizedKey(userID, chapterID, hash)
	genMs := elapsedMs(start)
	if err := p.blobs.Put(ctx, key, []byte(content)); err != nil {
		log.Warn("storing personalized chapter failed; not caching", "key", key, "error", err)
	} else if err := p.rows.UpsertPersonalizedChapter(ctx, storage.PersonalizedChapter{
		UserID:           userID,
		ChapterID:        chapterID,
		ProfileHash:      hash,
		StoragePath:      key,
		GenerationTimeMs: genMs,
	}); err != nil {
		log.Warn("recording personalized chapter failed", "key", key, "error", err)
	} else {
		log.Info("personalized chapter cached", "key", key, "generation_time_ms", genMs)
	}

	return PersonalizeResult{
		ChapterID:            chapterID,
		PersonalizedMarkdown: content,
		IsCached:             false,
		GenerationTimeMs:     genMs,
	}, nil
}

// lookup returns the cached content for the key, or false when the row or
// its blob is absent. Lookup failures degrade to a miss.
func (p *Personalizer) lookup(ctx context.Context, log *slog.Logger, userID string, chapterID int, hash string) (string, bool) {
	row, err := p.rows.GetPersonalizedChapter(ctx, userID, chapterID, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false
	}
	if err != nil {
		log.Warn("personalization cache lookup failed", "error", err)
		return "", false
	}

	data, err := p.blobs.Get(ctx, row.StoragePath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			log.Warn("cached personalization blob missing; regenerating", "key", row.StoragePath)
		} else {
			log.Warn("reading cached personalization failed; regenerating", "key", row.StoragePath, "error", err)
		}
		return "", false
	}
	return string(data), true
}
