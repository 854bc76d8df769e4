package publisher

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Caption formats. Raw posts the generated text unchanged; plain flattens
// Markdown first.
const (
	CaptionRaw   = "raw"
	CaptionPlain = "plain"
)

// FormatCaption prepares the generated post for Instagram. An empty format
// means raw.
func FormatCaption(post, format string) (string, error) {
	switch format {
	case "", CaptionRaw:
		return post, nil
	case CaptionPlain:
		return RenderCaption(post), nil
	default:
		return "", fmt.Errorf("caption format %s not supported", format)
	}
}

// RenderCaption parses md as Markdown and renders it as plain text:
// emphasis and links are reduced to their text, list items become
// "• item" lines and blocks are separated by a blank line. Hashtags,
// backslash escapes, intraword asterisks and inline HTML keep their text.
func RenderCaption(md string) string {
	source := []byte(md)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	r := captionRenderer{source: source}
	return strings.TrimSpace(strings.Join(r.blocks(doc), "\n\n"))
}

type captionRenderer struct {
	source []byte
}

func (r captionRenderer) blocks(parent ast.Node) []string {
	var out []string
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if s := r.block(n, 0); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r captionRenderer) block(n ast.Node, depth int) string {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		return strings.TrimSpace(r.inline(n))
	case *ast.List:
		return r.list(n, depth)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return strings.TrimRight(r.lines(n), "\n")
	case *ast.Blockquote:
		return strings.Join(r.blocks(n), "\n\n")
	case *ast.HTMLBlock:
		out := r.lines(n)
		if n.HasClosure() {
			out += string(n.ClosureLine.Value(r.source))
		}
		return strings.TrimRight(out, "\n")
	default:
		// thematic breaks have no caption text
		return ""
	}
}

func (r captionRenderer) list(l *ast.List, depth int) string {
	indent := strings.Repeat("  ", depth)
	num := l.Start
	var lines []string
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		bullet := "• "
		if l.IsOrdered() {
			bullet = strconv.Itoa(num) + ". "
			num++
		}
		var parts []string
		var nested []string
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = append(nested, r.list(sub, depth+1))
				continue
			}
			if s := r.block(c, depth); s != "" {
				parts = append(parts, s)
			}
		}
		lines = append(lines, indent+bullet+strings.Join(parts, " "))
		lines = append(lines, nested...)
	}
	return strings.Join(lines, "\n")
}

func (r captionRenderer) lines(n ast.Node) string {
	var sb strings.Builder
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		sb.Write(seg.Value(r.source))
	}
	return sb.String()
}

func (r captionRenderer) inline(parent ast.Node) string {
	var sb strings.Builder
	r.writeInline(&sb, parent)
	return sb.String()
}

func (r captionRenderer) writeInline(sb *strings.Builder, parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Text:
			sb.Write(util.UnescapePunctuations(n.Segment.Value(r.source)))
			if n.SoftLineBreak() || n.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(n.Value)
		case *ast.AutoLink:
			sb.Write(n.Label(r.source))
		case *ast.RawHTML:
			for i := 0; i < n.Segments.Len(); i++ {
				seg := n.Segments.At(i)
				sb.Write(seg.Value(r.source))
			}
		case *ast.Emphasis:
			r.writeEmphasis(sb, n)
		case *ast.Image:
		default:
			r.writeInline(sb, n)
		}
	}
}

// writeEmphasis drops the delimiters unless they sit inside a word, as in
// "5*3*2", where they are kept literally.
func (r captionRenderer) writeEmphasis(sb *strings.Builder, n *ast.Emphasis) {
	first, last := textSpan(n)
	if first == nil || first.Segment.Start == 0 || r.source[first.Segment.Start-1] != '*' {
		r.writeInline(sb, n)
		return
	}
	open := first.Segment.Start
	for open > 0 && r.source[open-1] == '*' {
		open--
	}
	closing := last.Segment.Stop
	for closing < len(r.source) && r.source[closing] == '*' {
		closing++
	}
	before, _ := utf8.DecodeLastRune(r.source[:open])
	after, _ := utf8.DecodeRune(r.source[closing:])
	if !isWordRune(before) && !isWordRune(after) {
		r.writeInline(sb, n)
		return
	}
	marker := strings.Repeat("*", n.Level)
	sb.WriteString(marker)
	r.writeInline(sb, n)
	sb.WriteString(marker)
}

func isWordRune(c rune) bool {
	return c != utf8.RuneError && (unicode.IsLetter(c) || unicode.IsDigit(c))
}

// textSpan returns the first and last text leaves below n.
func textSpan(n ast.Node) (first, last *ast.Text) {
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			if first == nil {
				first = t
			}
			last = t
		}
		return ast.WalkContinue, nil
	})
	return first, last
}
