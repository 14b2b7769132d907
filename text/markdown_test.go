package text

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Content
	}{
		{
			name:  "plain",
			input: "just text",
			want:  Content{{Text: "just text"}},
		},
		{
			name:  "bold and italic",
			input: "a **b** _c_ d",
			want: Content{
				{Text: "a "},
				{Text: "b", Style: Bold},
				{Text: " "},
				{Text: "c", Style: Italic},
				{Text: " d"},
			},
		},
		{
			name:  "nested emphasis",
			input: "**a _b_ c**",
			want: Content{
				{Text: "a ", Style: Bold},
				{Text: "b", Style: Bold | Italic},
				{Text: " c", Style: Bold},
			},
		},
		{
			name:  "inline code is atomic",
			input: "run `go test` now",
			want: Content{
				{Text: "run "},
				{Text: "go test", Style: Code, Atomic: true},
				{Text: " now"},
			},
		},
		{
			name:  "link",
			input: "see [the docs](https://charm.sh).",
			want: Content{
				{Text: "see "},
				{Text: "the docs", Style: Link, Href: "https://charm.sh", Atomic: true},
				{Text: "."},
			},
		},
		{
			name:  "snake case stays plain",
			input: "some_var_name",
			want:  Content{{Text: "some_var_name"}},
		},
		{
			name:  "unterminated markers are literal",
			input: "**open and `tick",
			want:  Content{{Text: "**open and `tick"}},
		},
		{
			name:  "spaced asterisks are literal",
			input: "Compute 2 ** 10 ** 2 in Python.",
			want:  Content{{Text: "Compute 2 ** 10 ** 2 in Python."}},
		},
		{
			name:  "fenced code block",
			input: "intro\n```go\nfmt.Println()\n```\nafter",
			want: Content{
				{Text: "intro\n"},
				{Text: "fmt.Println()\n", Style: Code},
				{Text: "after"},
			},
		},
		{
			name:  "decomposed input is normalized",
			input: "e\u0301",
			want:  Content{{Text: "\u00e9"}},
		},
	}

	ignoreMarkup := cmpopts.IgnoreFields(Span{}, "Open", "Close")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Parse(tt.input), ignoreMarkup); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseKeepsMarkup(t *testing.T) {
	got := Parse("__b__ and\n~~~sh\nls\n~~~\n")
	want := Content{
		{Text: "b", Style: Bold, Open: Markup{"__", Bold}, Close: Markup{"__", Bold}},
		{Text: " and\n"},
		{Text: "ls\n", Style: Code, Open: Markup{"~~~sh\n", Code}, Close: Markup{"~~~\n", Code}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkdownRoundTrip(t *testing.T) {
	inputs := []string{
		"a **b** _c_ d",
		"a *b* __c__ d",
		"***both*** and **a _b_ c**",
		"run `go test` now, or `` a ` tick ``",
		"see [the docs](https://charm.sh \"Charm\").",
		"intro\n```\nfmt.Println()\n```\nafter",
		"~~~\nunclosed fence",
		"# Title\n\n- one **two**\n- three\n\n> quoted _text_\n",
		"Compute 2 ** 10 ** 2 in Python.",
		"Bold: ** not closed\n\nnext ** para",
		"** **, _ _ and ` `",
		"[ref][x] and ![image](a.png) and <https://charm.sh>\n\n[x]: https://charm.sh",
	}
	for _, in := range inputs {
		if got := Markdown(Parse(in)); got != in {
			t.Errorf("round trip of %q produced %q", in, got)
		}
	}
}

func TestMarkdownRoundTripRandom(t *testing.T) {
	const alphabet = "ab  **__``[]()!~#>-\n"
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		b := make([]byte, rnd.Intn(40))
		for j := range b {
			b[j] = alphabet[rnd.Intn(len(alphabet))]
		}
		in := string(b)
		if got := Markdown(Parse(in)); got != in {
			t.Fatalf("round trip of %q produced %q", in, got)
		}
	}
}

func TestMarkdownOfSlices(t *testing.T) {
	c := Parse("say **one two** now")
	tests := []struct {
		name       string
		start, end int
		want       string
	}{
		{"whole", 0, c.Len(), "say **one two** now"},
		{"cut after opening", 0, 8, "say **one** "},
		{"cut before closing", 8, c.Len(), "**two** now"},
		{"inside", 5, 10, "**ne tw**"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Markdown(c.Slice(tt.start, tt.end)); got != tt.want {
				t.Errorf("Markdown = %q, want %q", got, tt.want)
			}
		})
	}

	head, tail := c.SplitAt(8)
	if got := Markdown(Concat(head, tail)); got != "say **one two** now" {
		t.Errorf("rejoined slices produced %q", got)
	}
}

func TestKeepMarkup(t *testing.T) {
	_, tail := Parse("**one two** three").SplitAt(4)
	edited := KeepMarkup(tail, Parse(Markdown(tail)+" four"))

	want := Content{
		{Text: "two", Style: Bold, Close: Markup{"**", Bold}},
		{Text: " three four"},
	}
	if diff := cmp.Diff(want, edited); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if !Equivalent(edited, Content{{Text: "two", Style: Bold}, {Text: " three four"}}) {
		t.Error("edited content lost its formatting")
	}
}

func TestEmphasisKeepsWhitespaceOutside(t *testing.T) {
	c := Content{{Text: " loud ", Style: Bold | Italic}}
	if got, want := Markdown(c), " **_loud_** "; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBoundaries(t *testing.T) {
	c := Content{
		{Text: "ab"},
		{Text: "xyz", Style: Code, Atomic: true},
		{Text: "e\u0301!"}, // e + combining acute is one cluster
	}
	want := []int{0, 1, 2, 5, 7, 8}
	if diff := cmp.Diff(want, c.Boundaries()); diff != "" {
		t.Errorf("Boundaries mismatch (-want +got):\n%s", diff)
	}
	if c.IsBoundary(3) {
		t.Error("offset inside an atomic span must not be a boundary")
	}
	if c.IsBoundary(6) {
		t.Error("offset inside a grapheme cluster must not be a boundary")
	}
}

func TestInside(t *testing.T) {
	c := Parse("one **two three** four")
	// "one " is 4 runes, the bold span covers [4, 13).
	for _, tt := range []struct {
		offset int
		want   bool
	}{
		{2, false},
		{4, false},
		{8, true},
		{13, false},
		{15, false},
	} {
		if got := c.Inside(tt.offset); got != tt.want {
			t.Errorf("Inside(%d) = %v, want %v", tt.offset, got, tt.want)
		}
	}
}

func TestDiffAndTransform(t *testing.T) {
	old := FromString("hello world")
	ins := FromString("hello big world")

	e := Diff(old, ins)
	if e != (Edit{Start: 6, OldEnd: 6, NewEnd: 10}) {
		t.Fatalf("unexpected edit %+v", e)
	}

	tests := []struct {
		name   string
		offset int
		want   int
	}{
		{"before edit", 2, 2},
		{"at insertion point", 6, 10},
		{"after edit", 8, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TransformOffset(tt.offset, e); got != tt.want {
				t.Errorf("TransformOffset(%d) = %d, want %d", tt.offset, got, tt.want)
			}
		})
	}

	del := Diff(FromString("hello big world"), FromString("hello world"))
	if got := TransformOffset(8, del); got != 6 {
		t.Errorf("caret inside deleted text should land at the edit, got %d", got)
	}
}
