package paginate

// Cursor is the caret position. DocOffset is the ground truth; Page and
// Local are its projection onto the current partition.
type Cursor struct {
	DocOffset int
	Page      int
	Local     int
}

// ToPageLocal projects a document offset onto pages. Pages are walked while
// accumulating their lengths until the running total exceeds the offset, so
// an offset on a page boundary belongs to the page that starts there. The
// document end belongs to the end of the last page. Offsets out of range are
// clamped.
func ToPageLocal(pages []PageView, docOffset int) (page, local int) {
	return projectLengths(viewLengths(pages), docOffset)
}

// ToDocOffset is the inverse of ToPageLocal. A page index out of range is
// clamped, as is a local offset outside its page.
func ToDocOffset(pages []PageView, page, local int) int {
	return unprojectLengths(viewLengths(pages), page, local)
}

func viewLengths(pages []PageView) []int {
	out := make([]int, len(pages))
	for i, p := range pages {
		out[i] = p.Content.Len()
	}
	return out
}

func projectLengths(lengths []int, docOffset int) (int, int) {
	if len(lengths) == 0 {
		return 0, 0
	}
	docOffset = max(docOffset, 0)

	before := 0
	for i, n := range lengths {
		if before+n > docOffset {
			return i, docOffset - before
		}
		before += n
	}
	last := len(lengths) - 1
	return last, lengths[last]
}

func unprojectLengths(lengths []int, page, local int) int {
	if len(lengths) == 0 {
		return 0
	}
	page = max(0, min(page, len(lengths)-1))

	before := 0
	for _, n := range lengths[:page] {
		before += n
	}
	return before + max(0, min(local, lengths[page]))
}
