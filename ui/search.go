package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/quire/paginate"
	"github.com/sahilm/fuzzy"
)

const maxSearchResults = 5

// pageSource adapts pages to fuzzy.Source. Each page is matched on its
// normalized plain text.
type pageSource []string

func newPageSource(pages []paginate.PageView) pageSource {
	src := make(pageSource, len(pages))
	for i, p := range pages {
		s := p.Content.String()
		if n, err := normalize(s); err == nil {
			s = n
		}
		src[i] = strings.ToLower(s)
	}
	return src
}

func (s pageSource) String(i int) string { return s[i] }
func (s pageSource) Len() int            { return len(s) }

// findPages returns the pages matching query, best match first.
func findPages(pages []paginate.PageView, query string) fuzzy.Matches {
	q, err := normalize(query)
	if err != nil {
		q = query
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	return fuzzy.FindFrom(q, newPageSource(pages))
}

// snippet returns the part of a page around its first matched character.
func snippet(m fuzzy.Match, width int) string {
	r := []rune(strings.ReplaceAll(m.Str, "\n", " "))
	start := 0
	if len(m.MatchedIndexes) > 0 {
		idx := min(m.MatchedIndexes[0], len(m.Str))
		start = utf8.RuneCountInString(m.Str[:idx])
	}
	start = max(0, start-10)
	end := min(len(r), start+max(width, 1))
	return string(r[start:end])
}
