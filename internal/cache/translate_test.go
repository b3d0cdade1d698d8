package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/physicalai/tbrag/internal/storage"
	"github.com/physicalai/tbrag/internal/textbook"
)

func (f *fixture) translator() *Translator {
	return NewTranslator(f.chapters, f.store, f.gen, nil)
}

// countingTranslations wraps a TranslationStore and counts calls.
type countingTranslations struct {
	TranslationStore
	gets    int
	upserts int
}

func (c *countingTranslations) GetTranslatedChapter(ctx context.Context, userID string, chapterID int, lang string) (storage.TranslatedChapter, error) {
	c.gets++
	return c.TranslationStore.GetTranslatedChapter(ctx, userID, chapterID, lang)
}

func (c *countingTranslations) UpsertTranslatedChapter(ctx context.Context, tc storage.TranslatedChapter) error {
	c.upserts++
	return c.TranslationStore.UpsertTranslatedChapter(ctx, tc)
}

func TestTranslate_SourceLanguageShortCircuits(t *testing.T) {
	f := newFixture(t)
	rows := &countingTranslations{TranslationStore: f.store}

	res, err := NewTranslator(f.chapters, rows, f.gen, nil).Translate(context.Background(), "u1", 1, "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.TranslatedMarkdown != chapterOne {
		t.Errorf("content = %q, want original chapter", res.TranslatedMarkdown)
	}
	if !res.IsCached || res.GenerationTimeMs != 0 {
		t.Errorf("cached=%v ms=%d, want true/0", res.IsCached, res.GenerationTimeMs)
	}
	if f.gen.translateN != 0 {
		t.Error("generation called for the source language")
	}
	if rows.gets != 0 || rows.upserts != 0 {
		t.Errorf("cache touched for the source language: %d lookups, %d upserts", rows.gets, rows.upserts)
	}
	if _, err := f.store.GetTranslatedChapter(context.Background(), "u1", 1, "en"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("source language result was persisted")
	}
}

func TestTranslate_MissThenHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.translator()

	first, err := tr.Translate(ctx, "u1", 1, "ur")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if first.IsCached || first.TranslatedMarkdown != "[ur] "+chapterOne || first.TargetLang != "ur" {
		t.Errorf("first = %+v", first)
	}

	second, err := tr.Translate(ctx, "u1", 1, "ur")
	if err != nil {
		t.Fatal(err)
	}
	if !second.IsCached || second.TranslatedMarkdown != first.TranslatedMarkdown {
		t.Errorf("second = %+v", second)
	}
	if f.gen.translateN != 1 {
		t.Errorf("translated %d times, want 1", f.gen.translateN)
	}

	if _, err := tr.Translate(ctx, "u1", 1, "de"); err != nil {
		t.Fatal(err)
	}
	if f.gen.translateN != 2 {
		t.Errorf("a different language did not miss")
	}
}

func TestTranslate_OtherLanguagesLookUpCache(t *testing.T) {
	f := newFixture(t)
	rows := &countingTranslations{TranslationStore: f.store}
	tr := NewTranslator(f.chapters, rows, f.gen, nil)

	for i := 0; i < 2; i++ {
		if _, err := tr.Translate(context.Background(), "u1", 1, "fr"); err != nil {
			t.Fatal(err)
		}
	}
	if rows.gets != 2 || rows.upserts != 1 {
		t.Errorf("lookups=%d upserts=%d, want 2 and 1", rows.gets, rows.upserts)
	}
}

func TestTranslate_Unsupported(t *testing.T) {
	f := newFixture(t)
	_, err := f.translator().Translate(context.Background(), "u1", 1, "es")
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("err = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestTranslate_ChapterMissing(t *testing.T) {
	f := newFixture(t)
	for _, lang := range []string{"en", "fr"} {
		_, err := f.translator().Translate(context.Background(), "u1", 4, lang)
		if !errors.Is(err, textbook.ErrChapterNotFound) {
			t.Errorf("%s: err = %v, want ErrChapterNotFound", lang, err)
		}
	}
}
