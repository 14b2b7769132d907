package paginate

import (
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/quire/measure"
	"github.com/charmbracelet/quire/text"
	"github.com/google/go-cmp/cmp"
)

// flaky measures one unit per rune until it is switched off.
type flaky struct {
	down atomic.Bool
}

func (f *flaky) Measure(c text.Content) (float64, error) {
	if f.down.Load() {
		return 0, measure.ErrUnavailable
	}
	return float64(c.Len()), nil
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// words returns n space-separated words of four letters.
func words(n int) string {
	return strings.Repeat("abcd ", n)
}

func texts(pages []PageView) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Content.String()
	}
	return out
}

// checkInvariants verifies conservation and capacity for the published
// partition.
func checkInvariants(t *testing.T, e *Engine, o measure.Oracle, limit float64) {
	t.Helper()
	pages := e.Pages()
	parts := make([]text.Content, len(pages))
	for i, p := range pages {
		parts[i] = p.Content
		if p.Degenerate {
			continue
		}
		h, err := o.Measure(p.Content)
		if err != nil {
			t.Fatal(err)
		}
		if h > limit {
			t.Errorf("page %d measures %v, over the limit %v", i, h, limit)
		}
	}
	if !text.Equal(text.Concat(parts...), e.Document()) {
		t.Errorf("pages do not concatenate to the document:\npages: %q\ndoc:   %q",
			texts(pages), e.Document().String())
	}
	if len(pages) > 1 && pages[len(pages)-1].Content.IsEmpty() {
		t.Error("trailing empty page")
	}
}

func TestNewEngineValidates(t *testing.T) {
	for _, cfg := range []Config{
		{Capacity: 0},
		{Capacity: 10, Epsilon: -1},
		{Capacity: 10, SnapLookback: -1},
		{Capacity: 10, NearlyEmpty: -3},
	} {
		if _, err := NewEngine(cfg); err == nil {
			t.Errorf("NewEngine(%+v) should fail", cfg)
		}
	}
}

func TestEmptyDocumentIsOnePage(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 10, Oracle: runes})
	e.SetDocumentContent(nil)

	pages := e.Pages()
	if len(pages) != 1 || !pages[0].Content.IsEmpty() {
		t.Errorf("got pages %q, want a single empty page", texts(pages))
	}
	if e.State() != Idle {
		t.Errorf("state = %v, want idle", e.State())
	}
}

func TestTypingPastCapacitySplits(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 100, Oracle: runes})
	original := words(18) // 90 runes
	e.SetDocumentContent(text.FromString(original))
	if n := len(e.Pages()); n != 1 {
		t.Fatalf("got %d pages before typing, want 1", n)
	}

	typed := words(8) // 40 more runes, 130 in total
	if err := e.ApplyLocalEdit(0, text.FromString(original+typed)); err != nil {
		t.Fatal(err)
	}

	pages := e.Pages()
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2: %q", len(pages), texts(pages))
	}
	if n := pages[0].Content.Len(); n > 100 {
		t.Errorf("page 0 holds %d runes, want at most 100", n)
	}
	if got := e.Document().String(); got != original+typed {
		t.Errorf("document = %q, want original plus typed text", got)
	}
	checkInvariants(t, e, runes, 100)
}

func TestDeletingMergesBackward(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 50, Oracle: runes})
	e.SetDocumentContent(text.FromString("First paragraph.\n\n" + words(30)))
	before := e.Pages()
	if len(before) < 3 {
		t.Fatalf("want at least 3 pages to start with, got %q", texts(before))
	}

	// Leave a few runes on page 1; page 0 has room for them.
	if err := e.ApplyLocalEdit(1, text.FromString("abc ")); err != nil {
		t.Fatal(err)
	}

	after := e.Pages()
	if len(after) != len(before)-1 {
		t.Fatalf("got %d pages, want %d: %q", len(after), len(before)-1, texts(after))
	}
	if got, want := after[0].Content.String(), before[0].Content.String()+"abc "; got != want {
		t.Errorf("page 0 = %q, want %q", got, want)
	}
	if diff := cmp.Diff(texts(before[2:]), texts(after[1:])); diff != "" {
		t.Errorf("trailing pages did not shift down (-want +got):\n%s", diff)
	}
	checkInvariants(t, e, runes, 50)
}

func TestHydrationPaginates(t *testing.T) {
	counter := measure.NewCounter(runes)
	e := newTestEngine(t, Config{Capacity: 1000, Oracle: counter})

	doc := words(1000) // 5000 runes
	e.SetDocumentContent(text.FromString(doc))

	pages := e.Pages()
	if len(pages) != 5 {
		t.Errorf("got %d pages, want 5", len(pages))
	}
	checkInvariants(t, e, runes, 1000)

	if got := e.Stats().Measures; int64(got) != counter.Calls() {
		t.Errorf("stats report %d measures, oracle saw %d", got, counter.Calls())
	}

	t.Run("caret resolves to its page", func(t *testing.T) {
		page, local := ToPageLocal(pages, 450)
		if page != 0 || local != 450 {
			t.Errorf("offset 450 resolved to (%d, %d), want (0, 450)", page, local)
		}
		e.SetCursor(0, 450)
		if got := e.Cursor(); got != (Cursor{DocOffset: 450, Page: 0, Local: 450}) {
			t.Errorf("Cursor() = %+v", got)
		}
	})
}

func TestOracleFailureKeepsContent(t *testing.T) {
	o := &flaky{}
	e := newTestEngine(t, Config{Capacity: 20, Oracle: o})
	e.SetDocumentContent(text.FromString(words(10)))
	if len(e.Pages()) < 2 {
		t.Fatal("want a paginated document to start with")
	}

	o.down.Store(true)
	pages := e.Pages()
	last := len(pages) - 1
	if err := e.ApplyLocalEdit(last, text.FromString(pages[last].Content.String()+"more words")); err != nil {
		t.Fatal(err)
	}

	want := words(10) + "more words"
	if got := e.Document().String(); got != want {
		t.Errorf("document = %q, want %q", got, want)
	}
	if !e.Degraded() || len(e.Pages()) != 1 {
		t.Errorf("want a single degraded page, got %d pages (degraded %v)", len(e.Pages()), e.Degraded())
	}
	if e.State() != Idle {
		t.Errorf("state = %v, want idle", e.State())
	}

	// Edits keep working while degraded.
	if err := e.ApplyLocalEdit(0, text.FromString("short")); err != nil {
		t.Fatal(err)
	}
	if got := e.Document().String(); got != "short" {
		t.Errorf("document = %q, want %q", got, "short")
	}

	t.Run("recovers with a full repagination", func(t *testing.T) {
		e.SetDocumentContent(text.FromString(words(10)))
		o.down.Store(false)
		e.RegisterOracle(o)
		if e.Degraded() {
			t.Error("still degraded after the oracle came back")
		}
		if len(e.Pages()) < 2 {
			t.Errorf("document was not repaginated: %q", texts(e.Pages()))
		}
		checkInvariants(t, e, o, 20)
	})
}

func TestNilOracleStartsDegraded(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 10})
	e.SetDocumentContent(text.FromString(words(10)))
	if !e.Degraded() || len(e.Pages()) != 1 {
		t.Fatalf("want one degraded page, got %q", texts(e.Pages()))
	}

	e.RegisterOracle(runes)
	if e.Degraded() {
		t.Error("still degraded after registering an oracle")
	}
	checkInvariants(t, e, runes, 10)
}

func TestDegenerateContent(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 10, Oracle: runes})
	e.SetDocumentContent(text.Content{
		{Text: strings.Repeat("x", 50), Atomic: true},
		{Text: "abc"},
	})

	pages := e.Pages()
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2: %q", len(pages), texts(pages))
	}
	if !pages[0].Degenerate || pages[1].Degenerate {
		t.Errorf("only page 0 should be degenerate: %+v", pages)
	}
	checkInvariants(t, e, runes, 10)

	// Growing the page after the oversized one still reflows normally.
	if err := e.ApplyLocalEdit(1, text.FromString("abc "+words(4))); err != nil {
		t.Fatal(err)
	}
	checkInvariants(t, e, runes, 10)
	if !e.Pages()[0].Degenerate {
		t.Error("degenerate page lost its flag")
	}
}

func TestReflowIsIdempotent(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 37, Epsilon: 2, Oracle: runes})
	e.SetDocumentContent(text.Parse("A **bold** start. " + words(30) + "\n\nThe [end](https://example.com) of it."))
	before := e.Pages()

	e.Reflow()
	if diff := cmp.Diff(before, e.Pages()); diff != "" {
		t.Errorf("Reflow changed a converged partition (-want +got):\n%s", diff)
	}
	e.Reflow()
	if diff := cmp.Diff(before, e.Pages()); diff != "" {
		t.Errorf("second Reflow changed the partition (-want +got):\n%s", diff)
	}
}

func TestSplitsPreferWordBoundaries(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 33, Oracle: runes})
	e.SetDocumentContent(text.FromString(
		"Pagination keeps whole words together whenever there is a space close " +
			"enough to the point where the page runs out of room, and only breaks " +
			"a word when nothing better is available nearby.",
	))

	pages := e.Pages()
	for i, p := range pages[:len(pages)-1] {
		r := p.Content.Runes()
		if last := r[len(r)-1]; last != ' ' {
			t.Errorf("page %d ends mid-word: %q", i, p.Content.String())
		}
	}
	checkInvariants(t, e, runes, 33)
}

func TestCaretStaysWithItsText(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 40, Oracle: runes})
	e.SetDocumentContent(text.FromString(words(30)))

	e.SetCursor(2, 7)
	before := e.Cursor()
	anchor := e.Document().Runes()[before.DocOffset:]

	page0 := e.Pages()[0].Content.String()
	if err := e.ApplyLocalEdit(0, text.FromString("wxyz "+page0)); err != nil {
		t.Fatal(err)
	}

	after := e.Cursor()
	if after.DocOffset != before.DocOffset+5 {
		t.Errorf("caret moved from %d to %d, want a shift of 5", before.DocOffset, after.DocOffset)
	}
	if got := string(e.Document().Runes()[after.DocOffset:]); got != string(anchor) {
		t.Errorf("caret no longer precedes the same text")
	}
	if got := ToDocOffset(e.Pages(), after.Page, after.Local); got != after.DocOffset {
		t.Errorf("projection (%d, %d) does not resolve back to %d", after.Page, after.Local, after.DocOffset)
	}
}

func TestCaretInsideEditedText(t *testing.T) {
	var relocated [][2]int
	e := newTestEngine(t, Config{
		Capacity: 100,
		Oracle:   runes,
		OnCursorRelocated: func(page, local int) {
			relocated = append(relocated, [2]int{page, local})
		},
	})
	e.SetDocumentContent(text.FromString("hello world"))
	e.SetCursor(0, 5)

	if err := e.ApplyLocalEdit(0, text.FromString("hello, big world")); err != nil {
		t.Fatal(err)
	}
	// The insertion starts right at the caret, which ends up after it.
	if got := e.Cursor().DocOffset; got != 10 {
		t.Errorf("caret at %d, want 10", got)
	}
	if diff := cmp.Diff([][2]int{{0, 0}, {0, 10}}, relocated); diff != "" {
		t.Errorf("OnCursorRelocated calls (-want +got):\n%s", diff)
	}
}

func TestBoundedConvergence(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 25, Oracle: runes})
	e.SetDocumentContent(text.FromString(words(40)))
	k := len(e.Pages())

	page0 := e.Pages()[0].Content.String()
	if err := e.ApplyLocalEdit(0, text.FromString(page0+words(3))); err != nil {
		t.Fatal(err)
	}

	st := e.Stats()
	if st.Splits+st.Merges > st.Pages || st.Pages > k+1 {
		t.Errorf("pass took %d splits and %d merges for %d pages (was %d)",
			st.Splits, st.Merges, st.Pages, k)
	}
	checkInvariants(t, e, runes, 25)
}

func TestEditSequenceConservesContent(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 30, Epsilon: 1, Oracle: runes})
	e.SetDocumentContent(text.FromString(words(20)))

	edits := []struct {
		page int
		f    func(string) string
	}{
		{0, func(s string) string { return s + "inserted words go here " }},
		{1, func(string) string { return "" }},
		{0, func(s string) string { return "Lead. " + s }},
		{-1, func(s string) string { return s[:len(s)/2] }},
		{1, func(s string) string { return strings.ToUpper(s) + s }},
		{0, func(s string) string { return s[2:] }},
		{-1, func(string) string { return "" }},
	}

	for i, ed := range edits {
		pages := e.Pages()
		page := ed.page
		if page < 0 {
			page = len(pages) - 1
		}
		if page >= len(pages) {
			page = len(pages) - 1
		}

		var want strings.Builder
		for j, p := range pages {
			if j == page {
				want.WriteString(ed.f(p.Content.String()))
				continue
			}
			want.WriteString(p.Content.String())
		}

		if err := e.ApplyLocalEdit(page, text.FromString(ed.f(pages[page].Content.String()))); err != nil {
			t.Fatalf("edit %d: %v", i, err)
		}
		if got := e.Document().String(); got != want.String() {
			t.Fatalf("edit %d: document = %q, want %q", i, got, want.String())
		}
		checkInvariants(t, e, runes, 31)
	}
}

func TestEchoedEditIsIgnored(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 20, Oracle: runes})
	e.SetDocumentContent(text.FromString(words(10)))
	passes := e.Stats().Passes

	if err := e.ApplyLocalEdit(1, e.Pages()[1].Content); err != nil {
		t.Fatal(err)
	}
	if got := e.Stats().Passes; got != passes {
		t.Errorf("echoed content ran %d passes", got-passes)
	}
}

func TestApplyLocalEditRejectsBadPage(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 20, Oracle: runes})
	for _, page := range []int{-1, 1} {
		if err := e.ApplyLocalEdit(page, text.FromString("x")); !errors.Is(err, ErrPageIndex) {
			t.Errorf("ApplyLocalEdit(%d) = %v, want ErrPageIndex", page, err)
		}
	}
}

func TestEditsFromCallbacksAreQueued(t *testing.T) {
	var (
		e       *Engine
		changes []string
		states  []State
	)
	e = newTestEngine(t, Config{
		Capacity: 20,
		Oracle:   runes,
		OnDocumentChanged: func(doc text.Content) {
			changes = append(changes, doc.String())
			states = append(states, e.State())
			if len(changes) != 2 {
				return
			}
			// Two edits to the same page from inside a pass: both are
			// queued and the last one wins in a single follow-up pass.
			page0 := e.Pages()[0].Content.String()
			_ = e.ApplyLocalEdit(0, text.FromString("first "+page0))
			_ = e.ApplyLocalEdit(0, text.FromString("second "+page0))
			_ = e.ApplyLocalEdit(1, text.FromString("tail "))
		},
	})

	e.SetDocumentContent(text.FromString(words(4)))
	e.SetDocumentContent(text.FromString(words(12)))

	if len(changes) != 3 {
		t.Fatalf("got %d document changes, want 3: %q", len(changes), changes)
	}
	for i, s := range states {
		if s != Reflowing {
			t.Errorf("callback %d ran in state %v", i, s)
		}
	}
	if e.State() != Idle {
		t.Errorf("state = %v, want idle", e.State())
	}

	want := "second " + words(4) + "tail " + words(12)[40:]
	if got := changes[2]; got != want {
		t.Errorf("document = %q, want %q", got, want)
	}
	checkInvariants(t, e, runes, 20)
}

func TestHydrationDropsQueuedEdits(t *testing.T) {
	var (
		e     *Engine
		stale error
	)
	calls := 0
	e = newTestEngine(t, Config{
		Capacity: 20,
		Oracle:   runes,
		OnDocumentChanged: func(text.Content) {
			calls++
			if calls != 1 {
				return
			}
			_ = e.ApplyLocalEdit(0, text.FromString("lost edit"))
			e.SetDocumentContent(text.FromString("replacement"))
			stale = e.ApplyLocalEdit(0, text.FromString("also lost"))
		},
	})

	e.SetDocumentContent(text.FromString("original"))
	if !errors.Is(stale, ErrStaleEdit) {
		t.Errorf("edit after a pending replacement returned %v, want ErrStaleEdit", stale)
	}
	if got := e.Document().String(); got != "replacement" {
		t.Errorf("document = %q, want %q", got, "replacement")
	}
	if calls != 2 {
		t.Errorf("got %d passes, want 2", calls)
	}
}

func TestSetCursorDuringPass(t *testing.T) {
	var e *Engine
	calls := 0
	e = newTestEngine(t, Config{
		Capacity: 20,
		Oracle:   runes,
		OnDocumentChanged: func(text.Content) {
			calls++
			if calls != 1 {
				return
			}
			e.SetCursor(1, 3)
			page0 := e.Pages()[0].Content.String()
			_ = e.ApplyLocalEdit(0, text.FromString("ab "+page0))
		},
	})

	e.SetDocumentContent(text.FromString(words(8)))
	// Page 1 started at 20; the caret was 23 and moves with the insertion.
	if got := e.Cursor().DocOffset; got != 26 {
		t.Errorf("caret at %d, want 26", got)
	}
}

func TestCallbackPanicResetsState(t *testing.T) {
	e := newTestEngine(t, Config{
		Capacity:          20,
		Oracle:            runes,
		OnDocumentChanged: func(text.Content) { panic("boom") },
	})

	func() {
		defer func() { _ = recover() }()
		e.SetDocumentContent(text.FromString("hello"))
	}()
	if e.State() != Idle {
		t.Errorf("state = %v after a panicking callback, want idle", e.State())
	}
}

func TestCallbackPanicDropsQueuedWork(t *testing.T) {
	var e *Engine
	calls := 0
	e = newTestEngine(t, Config{
		Capacity: 20,
		Oracle:   runes,
		OnDocumentChanged: func(text.Content) {
			calls++
			if calls != 1 {
				return
			}
			_ = e.ApplyLocalEdit(0, text.FromString("queued"))
			e.Reflow()
			e.SetCursor(0, 1)
			panic("boom")
		},
	})

	func() {
		defer func() { _ = recover() }()
		e.SetDocumentContent(text.FromString("hello"))
	}()

	e.SetCursor(0, 2)
	if calls != 1 {
		t.Fatalf("got %d passes, want 1", calls)
	}
	if got := e.Document().String(); got != "hello" {
		t.Errorf("document = %q, want %q", got, "hello")
	}

	// The next pass runs only its own work.
	if err := e.ApplyLocalEdit(0, text.FromString("hello there")); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("got %d passes, want 2", calls)
	}
	if got := e.Document().String(); got != "hello there" {
		t.Errorf("document = %q, want %q", got, "hello there")
	}
}

// panicky measures one unit per rune and panics on content longer than max.
type panicky struct{ max int }

func (p panicky) Measure(c text.Content) (float64, error) {
	if c.Len() > p.max {
		panic("layout engine crashed")
	}
	return float64(c.Len()), nil
}

func TestOraclePanicDegrades(t *testing.T) {
	e := newTestEngine(t, Config{Capacity: 10, Oracle: panicky{max: 20}})

	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("oracle panic reached the caller: %v", r)
			}
		}()
		e.SetDocumentContent(text.FromString(words(10)))
	}()

	if got := e.Document().String(); got != words(10) {
		t.Errorf("document = %q, want %q", got, words(10))
	}
	if !e.Degraded() || len(e.Pages()) != 1 {
		t.Errorf("want a single degraded page, got %d pages (degraded %v)", len(e.Pages()), e.Degraded())
	}
	if e.State() != Idle {
		t.Errorf("state = %v, want idle", e.State())
	}

	e.RegisterOracle(runes)
	if e.Degraded() {
		t.Error("still degraded with a working oracle")
	}
	checkInvariants(t, e, runes, 10)
}

// randomEdit inserts or deletes a few runes somewhere on page i.
func randomEdit(rnd *rand.Rand, pages []PageView, i int) text.Content {
	r := pages[i].Content.Runes()
	at := rnd.Intn(len(r) + 1)
	if len(r) == 0 || rnd.Intn(2) == 0 {
		ins := []rune(fragments[rnd.Intn(len(fragments))])
		return text.FromString(string(r[:at]) + string(ins) + string(r[at:]))
	}
	end := at + rnd.Intn(len(r)-at+1)
	return text.FromString(string(r[:at]) + string(r[end:]))
}

var fragments = []string{"dddd ", "bb", "dddd bbdddd ", ". ", "ff? ", "\n\n", " "}

func randomText(rnd *rand.Rand, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(fragments[rnd.Intn(len(fragments))])
	}
	return b.String()
}

func TestReflowAfterLocalEditsChangesNothing(t *testing.T) {
	tests := []struct {
		name     string
		oracle   measure.Oracle
		capacity float64
	}{
		{"runes", runes, 40},
		{"wrap", measure.Wrap{Width: 12}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rnd := rand.New(rand.NewSource(42))
			for run := 0; run < 100; run++ {
				e := newTestEngine(t, Config{Capacity: tt.capacity, Oracle: tt.oracle})
				e.SetDocumentContent(text.FromString(randomText(rnd, 20)))

				for k := 0; k < 6; k++ {
					pages := e.Pages()
					i := rnd.Intn(len(pages))
					if err := e.ApplyLocalEdit(i, randomEdit(rnd, pages, i)); err != nil {
						t.Fatal(err)
					}
					checkInvariants(t, e, tt.oracle, tt.capacity)

					settled := e.Pages()
					e.Reflow()
					if diff := cmp.Diff(texts(settled), texts(e.Pages())); diff != "" {
						t.Fatalf("run %d, edit %d: Reflow repartitioned the pages (-want +got):\n%s", run, k, diff)
					}
				}
			}
		})
	}
}

func TestConcurrentEdits(t *testing.T) {
	const limit = 30
	e := newTestEngine(t, Config{Capacity: limit, Oracle: runes})
	e.SetDocumentContent(text.FromString(words(40)))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for k := 0; k < 50; k++ {
				pages := e.Pages()
				i := rnd.Intn(len(pages))
				err := e.ApplyLocalEdit(i, randomEdit(rnd, pages, i))
				if err != nil && !errors.Is(err, ErrPageIndex) {
					errs <- err
					return
				}
				e.SetCursor(i, rnd.Intn(5))
				_ = e.Cursor()
			}
		}(int64(g))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if e.State() != Idle {
		t.Errorf("state = %v, want idle", e.State())
	}
	checkInvariants(t, e, runes, limit)
	c := e.Cursor()
	if got := ToDocOffset(e.Pages(), c.Page, c.Local); got != c.DocOffset {
		t.Errorf("caret projection (%d, %d) resolves to %d, want %d", c.Page, c.Local, got, c.DocOffset)
	}
}
