package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
)

// Edit replaces source[Start:End] with Replacement.
//
// Offsets always refer to the original source, never to a partially edited one.
// Everything outside the edited ranges is copied byte-for-byte, which is what keeps
// a rewritten document identical to its input wherever nothing changed.
type Edit struct {
	Start       int
	End         int
	Replacement []byte
}

// ErrOverlappingEdits is returned when two edits touch the same bytes.
var ErrOverlappingEdits = errors.New("invalid edits: overlapping ranges")

// ApplyEdits applies non-overlapping edits to source and returns the new content.
// Two insertions at the same offset are applied in the order given.
func ApplyEdits(source []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return source, nil
	}

	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b Edit) int { return a.Start - b.Start })

	prevEnd := 0
	grow := 0
	for i, e := range sorted {
		switch {
		case e.Start < 0 || e.End < 0:
			return nil, fmt.Errorf("invalid edit[%d]: negative range", i)
		case e.End < e.Start:
			return nil, fmt.Errorf("invalid edit[%d]: end before start", i)
		case e.End > len(source):
			return nil, fmt.Errorf("invalid edit[%d]: range out of bounds", i)
		case e.Start < prevEnd:
			return nil, ErrOverlappingEdits
		}
		prevEnd = e.End
		grow += len(e.Replacement) - (e.End - e.Start)
	}

	var buf bytes.Buffer
	buf.Grow(len(source) + max(grow, 0))

	cursor := 0
	for _, e := range sorted {
		buf.Write(source[cursor:e.Start])
		buf.Write(e.Replacement)
		cursor = e.End
	}
	buf.Write(source[cursor:])

	return buf.Bytes(), nil
}
