package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/physicalai/tbrag/internal/blob"
	"github.com/physicalai/tbrag/internal/generation"
	"github.com/physicalai/tbrag/internal/profile"
	"github.com/physicalai/tbrag/internal/storage"
	"github.com/physicalai/tbrag/internal/textbook"
)

const chapterOne = "# Introduction to Physical AI\n\n## Embodiment\n\nRobots act in the world with `actuators`.\n"

type mockGenerator struct {
	mu             sync.Mutex
	personalizeN   int
	translateN     int
	personalizeErr error
}

func (m *mockGenerator) GeneratePersonalizedChapter(_ context.Context, chapter string, p profile.Profile) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personalizeN++
	if m.personalizeErr != nil {
		return "", m.personalizeErr
	}
	return "personalized for " + p.SoftwareExperience.Python + ":\n" + chapter, nil
}

func (m *mockGenerator) TranslateChapter(_ context.Context, chapter string, lang generation.Language) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.translateN++
	return "[" + string(lang) + "] " + chapter, nil
}

// failingBlobs wraps a blob store and fails selected operations.
type failingBlobs struct {
	blob.Store
	failPut bool
	failGet bool
}

func (f *failingBlobs) Put(ctx context.Context, key string, data []byte) error {
	if f.failPut {
		return errors.New("bucket unavailable")
	}
	return f.Store.Put(ctx, key, data)
}

func (f *failingBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errors.New("read timeout")
	}
	return f.Store.Get(ctx, key)
}

type fixture struct {
	store    *storage.Store
	blobs    *blob.BadgerStore
	profiles *profile.Manager
	chapters *textbook.Source
	gen      *mockGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	blobs, err := blob.OpenBadger("")
	if err != nil {
		t.Fatalf("opening blobs: %v", err)
	}
	t.Cleanup(func() { blobs.Close() })

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chapter-1-intro.md"), []byte(chapterOne), 0o644); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		store:    store,
		blobs:    blobs,
		profiles: profile.NewManager(store),
		chapters: textbook.New(dir),
		gen:      &mockGenerator{},
	}
}

func (f *fixture) personalizer(b blob.Store) *Personalizer {
	if b == nil {
		b = f.blobs
	}
	return NewPersonalizer(f.profiles, f.chapters, f.store, b, f.gen, nil)
}

func (f *fixture) saveProfile(t *testing.T, userID, python string) string {
	t.Helper()
	hash, err := f.profiles.Save(context.Background(), userID, profile.Profile{
		SoftwareExperience: profile.SoftwareExperience{Python: python},
	})
	if err != nil {
		t.Fatalf("saving profile: %v", err)
	}
	return hash
}
