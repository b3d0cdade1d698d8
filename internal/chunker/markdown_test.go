package chunker

import (
	"strings"
	"testing"
)

const chapterMD = `---
title: Front Matter Title
sidebar_position: 3
---
# Introduction to ROS 2

Intro text before any section is ignored.

## Nodes and Topics

A node is a process that performs computation.

### Publishers

Publishers send messages.

- first item
- second item

## Empty Section

## Services

` + "```python\nrclpy.init()\n```" + `

| Name | Kind |
|------|------|
| add  | srv  |
`

func TestParseChapter_TitleAndID(t *testing.T) {
	doc, err := ParseChapter("docs/chapter-3-ros2.md", []byte(chapterMD))
	if err != nil {
		t.Fatalf("ParseChapter: %v", err)
	}
	if doc.ChapterID != 3 {
		t.Errorf("ChapterID = %d, want 3", doc.ChapterID)
	}
	if doc.Title != "Introduction to ROS 2" {
		t.Errorf("Title = %q, want %q", doc.Title, "Introduction to ROS 2")
	}
}

func TestParseChapter_Sections(t *testing.T) {
	doc, err := ParseChapter("chapter-3-ros2.md", []byte(chapterMD))
	if err != nil {
		t.Fatalf("ParseChapter: %v", err)
	}
	if len(doc.Sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(doc.Sections))
	}

	first := doc.Sections[0]
	if first.Index != 1 || first.Title != "Nodes and Topics" {
		t.Errorf("section 0 = %d %q", first.Index, first.Title)
	}
	for _, want := range []string{"A node is a process", "Publishers", "Publishers send messages.", "first item", "second item"} {
		if !strings.Contains(first.Content, want) {
			t.Errorf("section 1 content missing %q:\n%s", want, first.Content)
		}
	}
	if strings.Contains(first.Content, "Intro text") {
		t.Errorf("content before the first h2 leaked into section 1")
	}

	empty := doc.Sections[1]
	if empty.Index != 2 || strings.TrimSpace(empty.Content) != "" {
		t.Errorf("section 1 = %d %q, want empty section with index 2", empty.Index, empty.Content)
	}

	services := doc.Sections[2]
	if services.Index != 3 {
		t.Errorf("services index = %d, want 3", services.Index)
	}
	if services.ID(doc.ChapterID) != "3.3" {
		t.Errorf("section id = %q, want 3.3", services.ID(doc.ChapterID))
	}
	if !strings.Contains(services.Content, "rclpy.init()") {
		t.Errorf("code block missing from services content:\n%s", services.Content)
	}
	if !strings.Contains(services.Content, "add | srv") {
		t.Errorf("table row missing from services content:\n%s", services.Content)
	}
}

func TestParseChapter_FrontMatterTitleFallback(t *testing.T) {
	src := "---\ntitle: Humanoid Mechanics\n---\n## Joints\n\nRevolute joints rotate.\n"
	doc, err := ParseChapter("chapter-2-mechanics.md", []byte(src))
	if err != nil {
		t.Fatalf("ParseChapter: %v", err)
	}
	if doc.Title != "Humanoid Mechanics" {
		t.Errorf("Title = %q, want front matter title", doc.Title)
	}
	if len(doc.Sections) != 1 || doc.Sections[0].Title != "Joints" {
		t.Errorf("unexpected sections: %+v", doc.Sections)
	}
}

func TestParseChapter_FilenameTitleFallback(t *testing.T) {
	doc, err := ParseChapter("notes.md", []byte("Just a paragraph.\n"))
	if err != nil {
		t.Fatalf("ParseChapter: %v", err)
	}
	if doc.Title != "notes" {
		t.Errorf("Title = %q, want %q", doc.Title, "notes")
	}
	if doc.ChapterID != 0 {
		t.Errorf("ChapterID = %d, want 0", doc.ChapterID)
	}
	if len(doc.Sections) != 0 {
		t.Errorf("got %d sections, want 0", len(doc.Sections))
	}
}

func TestParseChapter_InvalidFrontMatter(t *testing.T) {
	src := "---\ntitle: [unclosed\n---\n# T\n"
	if _, err := ParseChapter("chapter-1-x.md", []byte(src)); err == nil {
		t.Error("expected error for malformed front matter")
	}
}

func TestChapterIDFromName(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"chapter-1-intro.md", 1},
		{"/docs/chapter-12-vla.md", 12},
		{"chapter1.md", 0},
		{"appendix.md", 0},
	}
	for _, tt := range tests {
		if got := ChapterIDFromName(tt.name); got != tt.want {
			t.Errorf("ChapterIDFromName(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
