// Package textbook reads chapter markdown from the docs directory.
package textbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/physicalai/tbrag/internal/chunker"
)

// ErrChapterNotFound is returned when no markdown file exists for a chapter.
var ErrChapterNotFound = errors.New("chapter not found")

// Chapter is a chapter file with its raw markdown.
type Chapter struct {
	ID       int
	Title    string
	Path     string
	Markdown string
}

// Source locates chapter files under a docs directory.
type Source struct {
	dir string
}

// New returns a Source rooted at dir.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// Dir returns the docs directory.
func (s *Source) Dir() string { return s.dir }

// Path resolves the file for chapterID: the first "chapter-{id}-*.md" in the
// directory, falling back to "chapter{id}.md".
func (s *Source) Path(chapterID int) (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("chapter %d: %w", chapterID, ErrChapterNotFound)
		}
		return "", fmt.Errorf("reading docs directory: %w", err)
	}

	prefix := fmt.Sprintf("chapter-%d-", chapterID)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".md") {
			return filepath.Join(s.dir, name), nil
		}
	}

	fallback := filepath.Join(s.dir, fmt.Sprintf("chapter%d.md", chapterID))
	if _, err := os.Stat(fallback); err != nil {
		return "", fmt.Errorf("chapter %d: %w", chapterID, ErrChapterNotFound)
	}
	return fallback, nil
}

// Read returns the markdown of chapterID.
func (s *Source) Read(chapterID int) (Chapter, error) {
	path, err := s.Path(chapterID)
	if err != nil {
		return Chapter{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chapter{}, fmt.Errorf("chapter %d: %w", chapterID, ErrChapterNotFound)
		}
		return Chapter{}, fmt.Errorf("reading chapter %d: %w", chapterID, err)
	}
	ch := Chapter{ID: chapterID, Path: path, Markdown: string(data)}
	if doc, err := chunker.ParseChapter(path, data); err == nil {
		ch.Title = doc.Title
	}
	return ch, nil
}

// List returns every "chapter-*.md" file in the docs directory, sorted by name.
// Markdown is left empty.
func (s *Source) List() ([]Chapter, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "chapter-*.md"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	chapters := make([]Chapter, 0, len(paths))
	for _, p := range paths {
		ch := Chapter{ID: chunker.ChapterIDFromName(p), Path: p}
		if data, err := os.ReadFile(p); err == nil {
			if doc, err := chunker.ParseChapter(p, data); err == nil {
				ch.Title = doc.Title
			}
		}
		chapters = append(chapters, ch)
	}
	return chapters, nil
}
