package chunker

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var chapterPattern = regexp.MustCompile(`chapter-(\d+)`)

// Section is the text found under one second-level heading.
// Index is 1-based and counts every section of the chapter, including
// sections that end up empty.
type Section struct {
	Index   int
	Title   string
	Content string
}

// ID returns the "{chapter}.{index}" section identifier.
func (s Section) ID(chapterID int) string {
	return fmt.Sprintf("%d.%d", chapterID, s.Index)
}

// Document is a parsed chapter file.
type Document struct {
	ChapterID int
	Title     string
	Sections  []Section
}

type frontMatter struct {
	Title string `yaml:"title"`
}

// ChapterIDFromName extracts N from a "chapter-N-..." file name, or 0.
func ChapterIDFromName(name string) int {
	m := chapterPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return id
}

// ParseChapter extracts the title and h2 sections of a chapter markdown file.
// name is the file name (or path) used for the chapter id and title fallback.
func ParseChapter(name string, source []byte) (Document, error) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	body, fm, err := splitFrontMatter(source)
	if err != nil {
		return Document{}, fmt.Errorf("parsing front matter of %s: %w", name, err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(body))

	p := &sectionParser{src: body}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		p.block(n)
	}
	p.flush()

	title := p.title
	if title == "" {
		title = fm.Title
	}
	if title == "" {
		title = stem
	}

	return Document{
		ChapterID: ChapterIDFromName(name),
		Title:     title,
		Sections:  p.sections,
	}, nil
}

func splitFrontMatter(src []byte) ([]byte, frontMatter, error) {
	var fm frontMatter
	normalized := bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return normalized, fm, nil
	}
	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return normalized, fm, nil
	}
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return nil, fm, err
	}
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return body, fm, nil
}

type sectionParser struct {
	src      []byte
	title    string
	sections []Section
	cur      *Section
	count    int
}

func (p *sectionParser) block(n ast.Node) {
	switch v := n.(type) {
	case *ast.Heading:
		t := inlineText(v, p.src)
		switch v.Level {
		case 1:
			if p.title == "" {
				p.title = t
			}
		case 2:
			p.flush()
			p.count++
			p.cur = &Section{Index: p.count, Title: t}
		default:
			p.add(t)
		}
	case *ast.Paragraph, *ast.TextBlock:
		p.add(inlineText(v, p.src))
	case *ast.List:
		p.add(listText(v, p.src))
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		p.add(linesText(v, p.src))
	case *ast.Blockquote:
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			p.block(c)
		}
	case *extast.Table:
		p.add(tableText(v, p.src))
	}
}

func (p *sectionParser) add(s string) {
	if p.cur == nil {
		return
	}
	p.cur.Content += s + "\n\n"
}

func (p *sectionParser) flush() {
	if p.cur != nil {
		p.sections = append(p.sections, *p.cur)
		p.cur = nil
	}
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func listText(list *ast.List, src []byte) string {
	var items []string
	for li := list.FirstChild(); li != nil; li = li.NextSibling() {
		var parts []string
		for c := li.FirstChild(); c != nil; c = c.NextSibling() {
			switch v := c.(type) {
			case *ast.List:
				parts = append(parts, listText(v, src))
			case *ast.FencedCodeBlock, *ast.CodeBlock:
				parts = append(parts, linesText(v, src))
			default:
				parts = append(parts, inlineText(v, src))
			}
		}
		items = append(items, strings.Join(parts, "\n"))
	}
	return strings.Join(items, "\n")
}

func linesText(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}

func tableText(t *extast.Table, src []byte) string {
	var rows []string
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, strings.TrimSpace(inlineText(c, src)))
		}
		rows = append(rows, strings.Join(cells, " | "))
	}
	return strings.Join(rows, "\n")
}
