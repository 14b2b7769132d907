package text

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

const fence = "```"

var md = goldmark.New()

// Parse reads markdown into content. Emphasis, inline code, inline links and
// fenced code blocks become styled spans; everything else, including
// unmatched markers, stays literal text. Each styled span remembers its
// markup as written, so Markdown(Parse(s)) == s for any NFC input.
//
// Input is normalized to NFC so that rune offsets do not depend on how the
// text was composed.
func Parse(s string) Content {
	s = norm.NFC.String(s)
	src := []byte(s)

	p := &parser{src: src}
	doc := md.Parser().Parse(gmtext.NewReader(src))
	_ = ast.Walk(doc, p.walk)
	p.literal(len(src))

	out := Normalize(p.out)
	if Markdown(out) != s {
		// Markup we could not place exactly; keep the source intact.
		return FromString(s)
	}
	return out
}

type parser struct {
	src []byte
	pos int // end of the last span taken from src
	out Content
}

func (p *parser) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	switch n := n.(type) {
	case *ast.FencedCodeBlock:
		if sp, start, end, ok := p.fenced(n); ok && start >= p.pos {
			p.literal(start)
			p.out = append(p.out, sp)
			p.pos = end
		}
		return ast.WalkSkipChildren, nil
	case *ast.Image:
		return ast.WalkSkipChildren, nil
	case *ast.Emphasis, *ast.CodeSpan, *ast.Link:
		spans, start, end, ok := p.inline(n, Plain)
		if !ok || start < p.pos {
			return ast.WalkContinue, nil
		}
		p.literal(start)
		p.out = append(p.out, spans...)
		p.pos = end
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

// literal takes src up to end as unstyled text.
func (p *parser) literal(end int) {
	if end > p.pos {
		p.out = append(p.out, Span{Text: string(p.src[p.pos:end])})
		p.pos = end
	}
}

// fenced returns a code block as one span whose markup is the fence lines.
func (p *parser) fenced(n *ast.FencedCodeBlock) (Span, int, int, bool) {
	lines := n.Lines()
	if lines.Len() == 0 {
		return Span{}, 0, 0, false
	}
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if seg.Padding != 0 || (i > 0 && seg.Start != lines.At(i-1).Stop) {
			return Span{}, 0, 0, false
		}
	}
	bodyStart, bodyEnd := lines.At(0).Start, lines.At(lines.Len()-1).Stop
	if bodyStart == 0 || p.src[bodyStart-1] != '\n' {
		return Span{}, 0, 0, false
	}
	start := bytes.LastIndexByte(p.src[:bodyStart-1], '\n') + 1
	opener := bytes.TrimLeft(p.src[start:bodyStart], " ")
	if len(opener) < 3 || (opener[0] != '`' && opener[0] != '~') {
		return Span{}, 0, 0, false
	}

	end := bodyEnd
	if end < len(p.src) {
		line := p.src[end:]
		if k := bytes.IndexByte(line, '\n'); k >= 0 {
			line = line[:k+1]
		}
		closer := bytes.TrimLeft(line, " ")
		if !bytes.HasPrefix(closer, bytes.Repeat(opener[:1], 3)) {
			return Span{}, 0, 0, false
		}
		end += len(line)
	}

	return Span{
		Text:  string(p.src[bodyStart:bodyEnd]),
		Style: Code,
		Open:  Markup{Text: string(p.src[start:bodyStart]), Styles: Code},
		Close: Markup{Text: string(p.src[bodyEnd:end]), Styles: Code},
	}, start, end, true
}

// inline returns the spans for an emphasis, code span or link, with style
// applied on top of their own, and the source range they cover.
func (p *parser) inline(n ast.Node, style Style) (Content, int, int, bool) {
	start, end, ok := p.extent(n)
	if !ok {
		return nil, 0, 0, false
	}
	cs, ce, _ := p.children(n)

	switch n := n.(type) {
	case *ast.CodeSpan:
		return Content{{
			Text:   string(p.src[cs:ce]),
			Style:  style | Code,
			Atomic: true,
			Open:   Markup{Text: string(p.src[start:cs]), Styles: Code},
			Close:  Markup{Text: string(p.src[ce:end]), Styles: Code},
		}}, start, end, true

	case *ast.Link:
		return Content{{
			Text:   string(p.src[cs:ce]),
			Style:  style | Link,
			Href:   string(n.Destination),
			Atomic: true,
			Open:   Markup{Text: string(p.src[start:cs]), Styles: Link},
			Close:  Markup{Text: string(p.src[ce:end]), Styles: Link},
		}}, start, end, true

	case *ast.Emphasis:
		em := Italic
		if n.Level > 1 {
			em = Bold
		}
		style |= em

		var out Content
		pos := cs
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch c.(type) {
			case *ast.Emphasis, *ast.CodeSpan, *ast.Link:
			default:
				continue
			}
			spans, s, e, ok := p.inline(c, style)
			if !ok || s < pos {
				continue
			}
			if s > pos {
				out = append(out, Span{Text: string(p.src[pos:s]), Style: style})
			}
			out = append(out, spans...)
			pos = e
		}
		if ce > pos {
			out = append(out, Span{Text: string(p.src[pos:ce]), Style: style})
		}
		if len(out) == 0 {
			return nil, 0, 0, false
		}

		first, last := &out[0], &out[len(out)-1]
		first.Open = Markup{Text: string(p.src[start:cs]) + first.Open.Text, Styles: first.Open.Styles | em}
		last.Close = Markup{Text: last.Close.Text + string(p.src[ce:end]), Styles: last.Close.Styles | em}
		return out, start, end, true
	}
	return nil, 0, 0, false
}

// children returns the source range covered by n's children.
func (p *parser) children(n ast.Node) (int, int, bool) {
	first, last := n.FirstChild(), n.LastChild()
	if first == nil {
		return 0, 0, false
	}
	start, _, ok := p.extent(first)
	if !ok {
		return 0, 0, false
	}
	_, end, ok := p.extent(last)
	if !ok || end < start {
		return 0, 0, false
	}
	return start, end, true
}

// extent returns the source range of an inline node, markup included.
func (p *parser) extent(n ast.Node) (int, int, bool) {
	src := p.src
	switch n := n.(type) {
	case *ast.Text:
		return n.Segment.Start, n.Segment.Stop, true

	case *ast.RawHTML:
		if n.Segments.Len() == 0 {
			return 0, 0, false
		}
		return n.Segments.At(0).Start, n.Segments.At(n.Segments.Len() - 1).Stop, true

	case *ast.Emphasis:
		cs, ce, ok := p.children(n)
		start, end := cs-n.Level, ce+n.Level
		if !ok || start < 0 || end > len(src) {
			return 0, 0, false
		}
		return start, end, isDelims(src[start:cs]) && isDelims(src[ce:end])

	case *ast.CodeSpan:
		cs, ce, ok := p.children(n)
		if !ok || cs == 0 || ce >= len(src) {
			return 0, 0, false
		}
		// A single space or newline on each side may have been trimmed.
		start, end := cs, ce
		if src[start-1] != '`' && src[end] != '`' {
			start, end = start-1, end+1
		}
		ticks := 0
		for start > 0 && src[start-1] == '`' {
			start--
			ticks++
		}
		for i := 0; i < ticks; i++ {
			if end >= len(src) || src[end] != '`' {
				return 0, 0, false
			}
			end++
		}
		return start, end, ticks > 0

	case *ast.Link:
		return p.linkExtent(n, 0)

	case *ast.Image:
		return p.linkExtent(n, 1)
	}
	return 0, 0, false
}

// linkExtent covers an inline link: the label in brackets followed by the
// destination and title in parentheses. Reference links are not placed.
func (p *parser) linkExtent(n ast.Node, bang int) (int, int, bool) {
	src := p.src
	cs, ce, ok := p.children(n)
	if !ok || cs-1-bang < 0 || src[cs-1] != '[' || ce+1 >= len(src) || src[ce] != ']' || src[ce+1] != '(' {
		return 0, 0, false
	}
	end, ok := closeParen(src, ce+2)
	return cs - 1 - bang, end, ok
}

// closeParen returns the offset just past the parenthesis closing a link
// destination that starts at i.
func closeParen(src []byte, i int) (int, bool) {
	depth := 1
	var quote byte
	for ; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\':
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '<':
			k := bytes.IndexByte(src[i:], '>')
			if k < 0 {
				return 0, false
			}
			i += k
		case (c == '"' || c == '\'') && src[i-1] == ' ':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func isDelims(b []byte) bool {
	for _, c := range b {
		if c != '*' && c != '_' {
			return false
		}
	}
	return len(b) > 0
}

// Markdown formats c as markdown. Spans keep the markup they were parsed
// with. Where a style starts or ends without its markup, as happens at a
// page boundary, default markers are written so that any slice of parsed
// content is well-formed markdown on its own.
func Markdown(c Content) string {
	var w mdWriter
	for _, s := range c {
		w.span(s)
	}
	w.close(w.open)
	w.flush()
	return w.b.String()
}

type mdWriter struct {
	b strings.Builder

	// whitespace held back so that closing markers hug the text
	pending string

	// styles whose opening marker was written and not yet closed
	open Style
}

// paired returns the styles of s written as an opening and closing marker
// around a run of spans.
func paired(s Span) Style {
	if s.Atomic {
		return s.Style & (Bold | Italic)
	}
	return s.Style & (Bold | Italic | Code)
}

func (w *mdWriter) span(s Span) {
	need := paired(s)
	if s.Open == (Markup{}) && s.Close == (Markup{}) && need&Code == 0 &&
		strings.TrimSpace(s.Text) == "" {
		w.pending += s.Text
		return
	}

	if extra := w.open &^ need; extra != 0 {
		w.close(extra)
	}

	txt := s.Text
	missing := need &^ w.open &^ s.Open.Styles
	if missing != 0 && s.Open == (Markup{}) && need&Code == 0 {
		trimmed := strings.TrimLeftFunc(txt, unicode.IsSpace)
		w.pending += txt[:len(txt)-len(trimmed)]
		txt = trimmed
	}
	w.flush()
	w.openStyles(missing)

	open, closing := s.Open.Text, s.Close.Text
	if s.Atomic {
		if s.Open == (Markup{}) {
			open = "`"
			if s.Style&Link != 0 {
				open = "["
			}
		}
		if s.Close == (Markup{}) {
			closing = "`"
			if s.Style&Link != 0 {
				closing = "](" + s.Href + ")"
			}
		}
	}

	w.b.WriteString(open)
	w.open |= s.Open.Styles & need

	if s.Style&Code != 0 || s.Atomic {
		w.b.WriteString(txt)
	} else {
		core := strings.TrimRightFunc(txt, unicode.IsSpace)
		w.b.WriteString(core)
		w.pending = txt[len(core):]
	}

	if closing != "" {
		w.flush()
		w.b.WriteString(closing)
	}
	w.open &^= s.Close.Styles
}

func (w *mdWriter) flush() {
	w.b.WriteString(w.pending)
	w.pending = ""
}

func (w *mdWriter) openStyles(st Style) {
	if st&Code != 0 {
		if w.b.Len() > 0 && !strings.HasSuffix(w.b.String(), "\n") {
			w.b.WriteByte('\n')
		}
		w.b.WriteString(fence + "\n")
	}
	if st&Bold != 0 {
		w.b.WriteString("**")
	}
	if st&Italic != 0 {
		w.b.WriteString("_")
	}
	w.open |= st
}

func (w *mdWriter) close(st Style) {
	if st&Code != 0 {
		w.flush()
		if !strings.HasSuffix(w.b.String(), "\n") {
			w.b.WriteByte('\n')
		}
		w.b.WriteString(fence + "\n")
	}
	if st&Italic != 0 {
		w.b.WriteString("_")
	}
	if st&Bold != 0 {
		w.b.WriteString("**")
	}
	w.open &^= st
}
