package text

// Edit describes a replacement of runes [Start, OldEnd) of the old content
// with runes [Start, NewEnd) of the new content.
type Edit struct {
	Start  int
	OldEnd int
	NewEnd int
}

// Delta is the change in length caused by the edit.
func (e Edit) Delta() int {
	return (e.NewEnd - e.Start) - (e.OldEnd - e.Start)
}

// Empty reports whether the edit changes nothing.
func (e Edit) Empty() bool {
	return e.Start == e.OldEnd && e.Start == e.NewEnd
}

// Diff finds the smallest single edit turning old into new by trimming their
// common prefix and suffix.
func Diff(old, new Content) Edit {
	a, b := old.Runes(), new.Runes()

	p := 0
	for p < len(a) && p < len(b) && a[p] == b[p] {
		p++
	}
	s := 0
	for s < len(a)-p && s < len(b)-p && a[len(a)-1-s] == b[len(b)-1-s] {
		s++
	}
	return Edit{Start: p, OldEnd: len(a) - s, NewEnd: len(b) - s}
}

// TransformOffset moves an offset through an edit. An edit entirely before
// the offset shifts it by the edit's delta, an edit at or after it leaves it
// alone, and an edit spanning it moves it to the end of the inserted text.
// Text inserted exactly at the offset pushes it forward, as typing does.
func TransformOffset(offset int, e Edit) int {
	if e.Empty() {
		return offset
	}
	if e.OldEnd <= offset && e.Start < offset {
		return offset + e.Delta()
	}
	if e.Start == offset && e.OldEnd == offset {
		return e.NewEnd
	}
	if e.Start >= offset {
		return offset
	}
	return e.NewEnd
}
