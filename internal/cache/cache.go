// Package cache serves personalized and translated chapters, generating them
// only when no cached artifact exists for the content address.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/physicalai/tbrag/internal/generation"
	"github.com/physicalai/tbrag/internal/profile"
	"github.com/physicalai/tbrag/internal/storage"
	"github.com/physicalai/tbrag/internal/textbook"
)

var (
	// ErrProfileNotFound is returned when personalization is requested by a
	// user without a saved profile.
	ErrProfileNotFound = errors.New("student profile not found")

	// ErrUnsupportedLanguage is returned for a target language outside the fixed set.
	ErrUnsupportedLanguage = generation.ErrUnsupportedLanguage
)

// ProfileSource loads a user's stored profile. Implemented by profile.Manager.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (profile.Stored, error)
}

// ChapterSource reads original chapter markdown. Implemented by textbook.Source.
type ChapterSource interface {
	Read(chapterID int) (textbook.Chapter, error)
}

// PersonalizationStore persists personalization cache rows. Implemented by storage.Store.
type PersonalizationStore interface {
	GetPersonalizedChapter(ctx context.Context, userID string, chapterID int, profileHash string) (storage.PersonalizedChapter, error)
	UpsertPersonalizedChapter(ctx context.Context, pc storage.PersonalizedChapter) error
}

// TranslationStore persists translation cache rows. Implemented by storage.Store.
type TranslationStore interface {
	GetTranslatedChapter(ctx context.Context, userID string, chapterID int, lang string) (storage.TranslatedChapter, error)
	UpsertTranslatedChapter(ctx context.Context, tc storage.TranslatedChapter) error
}

// ChapterGenerator produces personalized and translated chapter text.
// Implemented by generation.Orchestrator.
type ChapterGenerator interface {
	GeneratePersonalizedChapter(ctx context.Context, chapter string, p profile.Profile) (string, error)
	TranslateChapter(ctx context.Context, chapter string, lang generation.Language) (string, error)
}

// PersonalizedKey is the blob key of a user's chapter personalized for a profile hash.
func PersonalizedKey(userID string, chapterID int, profileHash string) string {
	return fmt.Sprintf("personalized/%s/%d/%s.md", userID, chapterID, profileHash)
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
