// Package paginate splits one logical document into fixed-capacity pages and
// keeps that partition consistent while the document is edited.
//
// The Engine owns a Store of pages. Each edit lands on one page and starts a
// reflow pass:
//
//   - Overflow: a page taller than Capacity+Epsilon is cut at the longest
//     prefix that fits (FindSplit), moved back to a word or sentence break
//     (Snap), and the rest is pushed onto the next page, cascading forward.
//   - Underflow: a page that shrank merges into its predecessor when the two
//     fit together, and following pages are pulled back while they fit.
//
// When a pass converges the engine publishes the new partition, emits the
// whole document once through OnDocumentChanged, and relocates the caret
// through OnCursorRelocated.
//
// Measuring goes through a measure.Oracle. If the oracle fails, the engine
// keeps the document on a single page and retries on the next pass; content
// is never lost.
package paginate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/quire/measure"
	"github.com/charmbracelet/quire/text"
)

// ErrStaleEdit is returned for an edit made against a document that a pending
// SetDocumentContent is about to replace. The edit is dropped.
var ErrStaleEdit = errors.New("edit made against a replaced document")

// State is the reflow state of an Engine.
type State int

const (
	Idle State = iota
	Reflowing
)

// String returns a human-readable name, for logging.
func (s State) String() string {
	return [...]string{"idle", "reflowing"}[s]
}

// Stats describes the most recent pass.
type Stats struct {
	Passes   int // completed passes since the engine was created
	Pages    int
	Splits   int
	Merges   int
	Steps    int // store mutations
	Measures int // oracle calls
}

// splice replaces document runes [start, end) with content. The offsets are
// relative to the partition the caller saw; mark is the length of the
// engine's applied-edit log at that time.
type splice struct {
	start, end int
	content    text.Content
	mark       int
}

// job is the work of one pass.
type job struct {
	edits      []splice
	hydrate    *text.Content
	repaginate bool
	verify     bool
	cursor     *splice
}

type snapshot struct {
	pages    []PageView
	doc      text.Content
	cursor   Cursor
	mark     int
	stats    Stats
	degraded bool
}

// Engine paginates a document and keeps it paginated across edits.
//
// An Engine may be used from several goroutines. Only one pass runs at a
// time: edits that arrive while a pass is running, including edits made from
// the engine's own callbacks, are queued and applied together in a single
// follow-up pass.
type Engine struct {
	cfg     Config
	log     *log.Logger
	measure measure.Oracle

	mu         sync.Mutex
	state      State
	oracle     measure.Oracle
	queue      []splice
	hydrate    *text.Content
	repaginate bool
	verify     bool
	cursorReq  *splice
	published  snapshot

	// Owned by the goroutine running the current pass.
	store    *Store
	cursor   int
	degraded bool
	applied  []text.Edit
	stats    Stats
	active   measure.Oracle

	// lowest and highest page index changed since the current edit began
	low, high int
}

// NewEngine returns an engine holding an empty document.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:      cfg,
		log:      cfg.Logger,
		oracle:   cfg.Oracle,
		store:    NewStore(nil),
		degraded: cfg.Oracle == nil,
	}
	e.measure = measure.Func(e.measureContent)
	e.store.OnChange = func(i int) {
		e.stats.Steps++
		e.low, e.high = min(e.low, i), max(e.high, i+1)
	}
	e.published = snapshot{
		pages:    e.store.Pages(),
		degraded: e.degraded,
	}
	return e, nil
}

// SetDocumentContent replaces the whole document and repaginates it from
// scratch. Edits still queued against the previous document are dropped.
func (e *Engine) SetDocumentContent(c text.Content) {
	c = text.Normalize(c.Clone())

	e.mu.Lock()
	if e.state == Reflowing {
		if len(e.queue) > 0 {
			e.log.Debug("document replaced, dropping queued edits", "edits", len(e.queue))
		}
		e.queue = nil
		e.hydrate = &c
		e.mu.Unlock()
		return
	}
	e.state = Reflowing
	e.mu.Unlock()

	e.run(job{hydrate: &c})
}

// ApplyLocalEdit reports that the editing surface changed page to hold c.
// The page index refers to the partition most recently published. Content
// identical to the published page is treated as an echo and ignored.
func (e *Engine) ApplyLocalEdit(page int, c text.Content) error {
	c = text.Normalize(c.Clone())

	e.mu.Lock()
	pages := e.published.pages
	if page < 0 || page >= len(pages) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d (have %d pages)", ErrPageIndex, page, len(pages))
	}
	if text.Equal(pages[page].Content, c) {
		e.mu.Unlock()
		return nil
	}

	start := 0
	for _, p := range pages[:page] {
		start += p.Content.Len()
	}
	sp := splice{
		start:   start,
		end:     start + pages[page].Content.Len(),
		content: c,
		mark:    e.published.mark,
	}

	if e.state == Reflowing {
		if e.hydrate != nil {
			e.mu.Unlock()
			e.log.Debug("dropping edit made against a replaced document", "page", page)
			return ErrStaleEdit
		}
		e.queue = append(e.queue, sp)
		e.mu.Unlock()
		return nil
	}
	e.state = Reflowing
	e.mu.Unlock()

	e.run(job{edits: []splice{sp}})
	return nil
}

// RegisterOracle installs a new measurement oracle and repaginates the whole
// document with it.
func (e *Engine) RegisterOracle(o measure.Oracle) {
	e.mu.Lock()
	e.oracle = o
	if e.state == Reflowing {
		e.repaginate = true
		e.mu.Unlock()
		return
	}
	e.state = Reflowing
	e.mu.Unlock()

	e.run(job{repaginate: true})
}

// Reflow runs a verification pass over every page, splitting pages that do
// not fit and merging neighbors that do. On a converged partition it changes
// nothing.
func (e *Engine) Reflow() {
	e.mu.Lock()
	if e.state == Reflowing {
		e.verify = true
		e.mu.Unlock()
		return
	}
	e.state = Reflowing
	e.mu.Unlock()

	e.run(job{verify: true})
}

// SetCursor moves the caret to a position on the published partition.
func (e *Engine) SetCursor(page, local int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lengths := viewLengths(e.published.pages)
	off := unprojectLengths(lengths, page, local)
	if e.state == Reflowing {
		e.cursorReq = &splice{start: off, mark: e.published.mark}
		return
	}
	e.cursor = off
	p, l := projectLengths(lengths, off)
	e.published.cursor = Cursor{DocOffset: off, Page: p, Local: l}
}

// Pages returns the published partition.
func (e *Engine) Pages() []PageView {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]PageView, len(e.published.pages))
	for i, p := range e.published.pages {
		p.Content = p.Content.Clone()
		out[i] = p
	}
	return out
}

// Document returns the published document.
func (e *Engine) Document() text.Content {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published.doc.Clone()
}

// Cursor returns the caret as of the last published pass.
func (e *Engine) Cursor() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published.cursor
}

// State returns the current reflow state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Degraded reports whether the engine is in single-page mode because the
// oracle could not measure.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published.degraded
}

// Stats returns statistics for the last completed pass.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published.stats
}

// run executes j and then every follow-up job queued meanwhile, returning
// the engine to Idle once the queue is empty. A panicking callback leaves the
// engine idle with nothing queued.
func (e *Engine) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			e.mu.Lock()
			e.queue, e.hydrate, e.repaginate, e.verify, e.cursorReq = nil, nil, false, false, nil
			e.state = Idle
			e.mu.Unlock()
			panic(r)
		}
	}()

	for {
		e.execute(j)
		e.publish()

		e.mu.Lock()
		if len(e.queue) == 0 && e.hydrate == nil && !e.repaginate && !e.verify && e.cursorReq == nil {
			// Nothing refers to older partitions anymore.
			e.applied = e.applied[:0]
			e.published.mark = 0
			e.state = Idle
			e.mu.Unlock()
			return
		}
		j = job{
			edits:      e.queue,
			hydrate:    e.hydrate,
			repaginate: e.repaginate,
			verify:     e.verify,
			cursor:     e.cursorReq,
		}
		e.queue, e.hydrate, e.repaginate, e.verify, e.cursorReq = nil, nil, false, false, nil
		e.mu.Unlock()

		e.log.Debug("running follow-up pass", "edits", len(j.edits))
	}
}

func (e *Engine) execute(j job) {
	e.stats = Stats{Passes: e.stats.Passes}
	e.mu.Lock()
	e.active = e.oracle
	e.mu.Unlock()

	full := j.repaginate || e.degraded
	if j.hydrate != nil {
		e.replace(*j.hydrate)
		full = true
	}

	var err error
	for _, sp := range j.edits {
		e.low, e.high = e.store.Len(), -1
		first, shrank := e.applySplice(sp)
		if full || err != nil || first < 0 {
			continue
		}
		if err = e.reflowAt(first, shrank); err == nil {
			err = e.settle(e.low-1, e.high)
		}
	}
	if j.cursor != nil {
		e.cursor = e.mapOffset(j.cursor.start, j.cursor.mark, false)
	}

	if err == nil && full {
		err = e.repaginateAll()
	}
	if err == nil && j.verify {
		err = e.verifyAll()
	}

	switch {
	case err != nil:
		e.degrade(err)
	case e.degraded:
		e.degraded = false
		e.log.Info("measurement available again, document repaginated", "pages", e.store.Len())
	}

	e.cursor = max(0, min(e.cursor, e.store.Concat().Len()))
}

// replace swaps in a new document for hydration.
func (e *Engine) replace(c text.Content) {
	old := e.store.Concat().Len()
	e.store.Reset(c)
	e.applied = append(e.applied, text.Edit{Start: 0, OldEnd: old, NewEnd: c.Len()})
	e.cursor = min(e.cursor, c.Len())
}

// applySplice applies one edit to the store. It returns the page now holding
// the edit, or -1 if the edit changed nothing, and whether the document
// shrank.
func (e *Engine) applySplice(sp splice) (int, bool) {
	start := e.mapOffset(sp.start, sp.mark, false)
	end := e.mapOffset(sp.end, sp.mark, true)

	doc := e.store.Concat()
	start = max(0, min(start, doc.Len()))
	end = max(start, min(end, doc.Len()))

	old := doc.Slice(start, end)
	if text.Equal(old, sp.content) {
		return -1, false
	}

	first := e.store.Splice(start, end, sp.content)
	edit := text.Edit{Start: start, OldEnd: end, NewEnd: start + sp.content.Len()}
	e.applied = append(e.applied, edit)

	d := text.Diff(old, sp.content)
	e.cursor = text.TransformOffset(e.cursor, text.Edit{
		Start:  start + d.Start,
		OldEnd: start + d.OldEnd,
		NewEnd: start + d.NewEnd,
	})
	return first, edit.Delta() < 0
}

// mapOffset moves an offset taken when the applied log had mark entries
// through every edit applied since.
func (e *Engine) mapOffset(off, mark int, isEnd bool) int {
	if mark > len(e.applied) {
		mark = len(e.applied)
	}
	for _, a := range e.applied[mark:] {
		switch {
		case off >= a.OldEnd && off > a.Start:
			off += a.Delta()
		case off <= a.Start:
		case isEnd:
			off = a.NewEnd
		default:
			off = a.Start
		}
	}
	return off
}

// measureContent asks the active oracle for a height. An oracle that panics
// is treated as unavailable.
func (e *Engine) measureContent(c text.Content) (h float64, err error) {
	e.stats.Measures++
	if e.active == nil {
		return 0, measure.ErrUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			h, err = 0, fmt.Errorf("%w: oracle panicked: %v", measure.ErrUnavailable, r)
		}
	}()
	return e.active.Measure(c)
}

// height returns the cached height of page i, measuring it if needed.
func (e *Engine) height(i int) (float64, error) {
	p := e.store.page(i)
	if p.measured {
		return p.height, nil
	}
	h, err := e.measure.Measure(p.content)
	if err != nil {
		return 0, err
	}
	p.height, p.measured = h, true
	return h, nil
}

// reflowAt restores the capacity invariant after page i was edited.
func (e *Engine) reflowAt(i int, shrank bool) error {
	if err := e.overflow(i); err != nil {
		return err
	}
	if shrank {
		return e.underflow(i)
	}
	return nil
}

// overflow splits page i while it is too tall, pushing the remainder onto
// the following page and continuing there. It stops at the first page that
// fits; pages after it were not touched.
func (e *Engine) overflow(i int) error {
	s := e.store
	for ; i < s.Len(); i++ {
		p := s.page(i)
		if p.degenerate {
			return nil
		}
		h, err := e.height(i)
		if err != nil {
			return err
		}
		if h <= e.cfg.limit() {
			return nil
		}

		sp, err := FindSplit(e.measure, p.content, e.cfg.Capacity)
		if err != nil {
			return err
		}
		off := sp.Offset
		if !sp.Degenerate {
			off = Snap(p.content, off, e.cfg.SnapLookback)
		}
		if off <= 0 || off >= p.content.Len() {
			p.degenerate = true
			e.log.Debug("page holds one oversized unit", "page", i, "height", h)
			return nil
		}

		if err := s.SplitAt(i, off); err != nil {
			return err
		}
		head := s.page(i)
		head.degenerate = sp.Degenerate
		if sp.Measured && off == sp.Offset {
			head.height, head.measured = sp.Height, true
		}
		e.stats.Splits++
		e.log.Debug("split page", "page", i, "offset", off, "degenerate", sp.Degenerate)
	}
	return nil
}

// underflow consolidates around page i after it shrank: an empty page is
// dropped, the page merges into its predecessor when allowed, and following
// pages are pulled back while they fit.
func (e *Engine) underflow(i int) error {
	s := e.store
	if s.Len() > 1 && s.page(i).content.IsEmpty() {
		if err := s.RemovePage(i); err != nil {
			return err
		}
		e.stats.Merges++
		if i > 0 {
			i--
		}
	}

	if i > 0 {
		merged, err := e.mergeBackward(i)
		if err != nil {
			return err
		}
		if merged {
			i--
		}
	}

	for i+1 < s.Len() {
		ok, h, err := e.fits(i, i+1)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		e.merge(i+1, h)
	}

	e.dropTrailingEmpty()
	return nil
}

// mergeBackward merges page i into page i-1 when page i is nearly empty or
// the two fit together. A nearly-empty merge that does not fit is split
// again right away.
func (e *Engine) mergeBackward(i int) (bool, error) {
	s := e.store
	if s.page(i).content.Len() <= e.cfg.NearlyEmpty {
		if s.page(i).degenerate || s.page(i-1).degenerate {
			return false, nil
		}
		if err := s.Merge(i); err != nil {
			return false, err
		}
		e.stats.Merges++
		return true, e.overflow(i - 1)
	}

	ok, h, err := e.fits(i-1, i)
	if err != nil || !ok {
		return false, err
	}
	e.merge(i, h)
	return true, nil
}

// fits reports whether pages a and b fit on one page, and their combined
// height.
func (e *Engine) fits(a, b int) (bool, float64, error) {
	s := e.store
	if s.page(a).degenerate || s.page(b).degenerate {
		return false, 0, nil
	}
	h, err := e.measure.Measure(text.Concat(s.page(a).content, s.page(b).content))
	if err != nil {
		return false, 0, err
	}
	return h <= e.cfg.limit(), h, nil
}

// settle merges neighbors that fit together, checking every pair from page
// lo through page hi and stepping back after each merge. After a local
// reflow over the pages it changed, this leaves verifyAll nothing to merge.
func (e *Engine) settle(lo, hi int) error {
	s := e.store
	for i := max(lo, 0); i <= hi && i+1 < s.Len(); {
		if s.page(i).content.IsEmpty() {
			if err := s.RemovePage(i); err != nil {
				return err
			}
			hi = max(hi-1, i)
			i = max(i-1, 0)
			continue
		}
		ok, h, err := e.fits(i, i+1)
		if err != nil {
			return err
		}
		if !ok {
			i++
			continue
		}
		e.merge(i+1, h)
		hi = max(hi-1, i)
		i = max(i-1, 0)
	}
	e.dropTrailingEmpty()
	return nil
}

// merge folds page i into page i-1 whose combined height is already known.
func (e *Engine) merge(i int, h float64) {
	if err := e.store.Merge(i); err != nil {
		return
	}
	p := e.store.page(i - 1)
	p.height, p.measured = h, true
	e.stats.Merges++
	e.log.Debug("merged page", "page", i, "into", i-1)
}

func (e *Engine) dropTrailingEmpty() {
	s := e.store
	for s.Len() > 1 && s.page(s.Len()-1).content.IsEmpty() {
		_ = s.RemovePage(s.Len() - 1)
	}
}

// repaginateAll lays the whole document out again from a single page.
func (e *Engine) repaginateAll() error {
	e.store.Reset(e.store.Concat())
	return e.verifyAll()
}

// verifyAll checks every page against the capacity and merges neighbors
// that fit together. Its result is a fixed point: running it again changes
// nothing.
func (e *Engine) verifyAll() error {
	s := e.store
	for i := 0; i < s.Len(); i++ {
		if err := e.overflow(i); err != nil {
			return err
		}
	}
	for i := 0; i < s.Len() && s.Len() > 1; {
		if s.page(i).content.IsEmpty() {
			_ = s.RemovePage(i)
			continue
		}
		i++
	}
	for i := 0; i+1 < s.Len(); {
		ok, h, err := e.fits(i, i+1)
		if err != nil {
			return err
		}
		if !ok {
			i++
			continue
		}
		// Page i grew; its predecessor gets another look.
		e.merge(i+1, h)
		i = max(i-1, 0)
	}
	return nil
}

// degrade collapses the document onto a single page after a measurement
// failure. The document itself is untouched.
func (e *Engine) degrade(err error) {
	e.store.Reset(e.store.Concat())
	if !e.degraded {
		e.log.Warn("cannot measure, showing document unpaginated", "err", err)
	}
	e.degraded = true
}

// publish makes the converged partition visible and fires the callbacks.
func (e *Engine) publish() {
	pages := e.store.Pages()
	doc := e.store.Concat()
	page, local := projectLengths(e.store.Lengths(), e.cursor)

	e.stats.Passes++
	e.stats.Pages = len(pages)
	e.log.Debug("reflow pass complete",
		"pages", e.stats.Pages,
		"splits", e.stats.Splits,
		"merges", e.stats.Merges,
		"measures", e.stats.Measures,
	)

	e.mu.Lock()
	e.published = snapshot{
		pages:    pages,
		doc:      doc,
		cursor:   Cursor{DocOffset: e.cursor, Page: page, Local: local},
		mark:     len(e.applied),
		stats:    e.stats,
		degraded: e.degraded,
	}
	onDoc, onCursor := e.cfg.OnDocumentChanged, e.cfg.OnCursorRelocated
	e.mu.Unlock()

	if onDoc != nil {
		onDoc(doc.Clone())
	}
	if onCursor != nil {
		onCursor(page, local)
	}
}
