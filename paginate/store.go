package paginate

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/quire/text"
)

// ErrPageIndex is returned when a page index is out of range.
var ErrPageIndex = errors.New("page index out of range")

// page is one bounded slice of the document plus its cached height.
type page struct {
	content    text.Content
	height     float64
	measured   bool
	degenerate bool
}

func (p *page) set(c text.Content) {
	p.content = text.Normalize(c)
	p.measured = false
	p.degenerate = false
}

// PageView is a read-only copy of a page. Index is positional and only valid
// for the partition it was taken from.
type PageView struct {
	Index      int
	Content    text.Content
	Degenerate bool
}

// Store is the ordered sequence of pages. It always holds at least one page,
// and after every exported method returns, the concatenation of all pages is
// the whole document.
type Store struct {
	pages []*page

	// OnChange, when set, is called after every mutation with the lowest
	// page index whose content changed.
	OnChange func(first int)
}

// NewStore returns a store holding c on a single page.
func NewStore(c text.Content) *Store {
	s := &Store{}
	s.Reset(c)
	return s
}

func (s *Store) changed(first int) {
	if s.OnChange != nil {
		s.OnChange(first)
	}
}

func (s *Store) check(i int) error {
	if i < 0 || i >= len(s.pages) {
		return fmt.Errorf("%w: %d (have %d pages)", ErrPageIndex, i, len(s.pages))
	}
	return nil
}

// Len returns the number of pages.
func (s *Store) Len() int {
	return len(s.pages)
}

// Pages returns copies of all pages.
func (s *Store) Pages() []PageView {
	out := make([]PageView, len(s.pages))
	for i, p := range s.pages {
		out[i] = PageView{Index: i, Content: p.content.Clone(), Degenerate: p.degenerate}
	}
	return out
}

// Lengths returns the rune length of every page.
func (s *Store) Lengths() []int {
	out := make([]int, len(s.pages))
	for i, p := range s.pages {
		out[i] = p.content.Len()
	}
	return out
}

// Content returns the content of page i.
func (s *Store) Content(i int) (text.Content, error) {
	if err := s.check(i); err != nil {
		return nil, err
	}
	return s.pages[i].content, nil
}

// Concat returns the whole document.
func (s *Store) Concat() text.Content {
	parts := make([]text.Content, len(s.pages))
	for i, p := range s.pages {
		parts[i] = p.content
	}
	return text.Concat(parts...)
}

// Reset replaces the document with c on a single page and drops every
// cached height.
func (s *Store) Reset(c text.Content) {
	p := &page{}
	p.set(c)
	s.pages = []*page{p}
	s.changed(0)
}

// SetPageContent replaces the content of page i.
func (s *Store) SetPageContent(i int, c text.Content) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.pages[i].set(c)
	s.changed(i)
	return nil
}

// InsertPage inserts a page holding c before index i. i may equal Len to
// append.
func (s *Store) InsertPage(i int, c text.Content) error {
	if i < 0 || i > len(s.pages) {
		return fmt.Errorf("%w: %d (have %d pages)", ErrPageIndex, i, len(s.pages))
	}
	p := &page{}
	p.set(c)
	s.pages = append(s.pages, nil)
	copy(s.pages[i+1:], s.pages[i:])
	s.pages[i] = p
	s.changed(i)
	return nil
}

// RemovePage removes page i and shifts the following pages down. Removing
// the only page leaves a single empty page.
func (s *Store) RemovePage(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	if len(s.pages) == 1 {
		s.pages[0].set(nil)
		s.changed(0)
		return nil
	}
	s.pages = append(s.pages[:i], s.pages[i+1:]...)
	s.changed(min(i, len(s.pages)-1))
	return nil
}

// SplitAt keeps the first offset runes of page i and prepends the rest to
// page i+1, creating it when i is the last page.
func (s *Store) SplitAt(i, offset int) error {
	if err := s.check(i); err != nil {
		return err
	}
	head, tail := s.pages[i].content.SplitAt(offset)
	s.pages[i].set(head)
	if i == len(s.pages)-1 {
		s.pages = append(s.pages, &page{})
	}
	next := s.pages[i+1]
	next.set(text.Concat(tail, next.content))
	s.changed(i)
	return nil
}

// Merge appends page i to page i-1 and removes page i.
func (s *Store) Merge(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	if i == 0 {
		return fmt.Errorf("%w: cannot merge the first page backward", ErrPageIndex)
	}
	prev := s.pages[i-1]
	prev.set(text.Concat(prev.content, s.pages[i].content))
	s.pages = append(s.pages[:i], s.pages[i+1:]...)
	s.changed(i - 1)
	return nil
}

// Splice replaces document runes [start, end) with c and returns the index
// of the page that now holds the replacement. Offsets are clamped to the
// document. Pages fully covered by the range are removed.
func (s *Store) Splice(start, end int, c text.Content) int {
	total := 0
	for _, p := range s.pages {
		total += p.content.Len()
	}
	start = max(0, min(start, total))
	end = max(start, min(end, total))

	first, firstStart := s.locate(start, false)
	last, lastStart := first, firstStart
	if end > start {
		last, lastStart = s.locate(end, true)
	}

	head := s.pages[first].content.Slice(0, start-firstStart)
	tailPage := s.pages[last].content
	tail := tailPage.Slice(end-lastStart, tailPage.Len())

	s.pages[first].set(text.Concat(head, c, tail))
	if last > first {
		s.pages = append(s.pages[:first+1], s.pages[last+1:]...)
	}
	s.changed(first)
	return first
}

// locate returns the page holding document offset off and that page's start
// offset. With atEnd, an offset on a page boundary belongs to the page it
// ends; otherwise it belongs to the page it starts. An offset at the very end
// of the document always belongs to the last page.
func (s *Store) locate(off int, atEnd bool) (int, int) {
	pos := 0
	for i, p := range s.pages {
		n := p.content.Len()
		if (atEnd && off <= pos+n && off > pos) || (!atEnd && off < pos+n) {
			return i, pos
		}
		pos += n
	}
	last := len(s.pages) - 1
	return last, pos - s.pages[last].content.Len()
}

// Start returns the document offset at which page i begins.
func (s *Store) Start(i int) int {
	pos := 0
	for j := 0; j < i && j < len(s.pages); j++ {
		pos += s.pages[j].content.Len()
	}
	return pos
}

func (s *Store) page(i int) *page {
	return s.pages[i]
}
