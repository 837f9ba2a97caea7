package docmodel

import (
	"strings"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/markdown"
)

// BoundaryMessage is the message of the error CheckContent returns.
const BoundaryMessage = "output would terminate the enclosing block"

// CheckContent fails when content written into b would change the block
// structure on the next parse: a line that closes the fence of a fenced block,
// or, in a region, the region's own end marker or a fence left open.
func (b *Block) CheckContent(content string) error {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	switch b.Kind {
	case KindRegion:
		s := regionScan{name: b.RegionID}
		for i, l := range lines {
			if s.closes(l) {
				return boundaryError(b, i+1)
			}
		}
		if s.open != nil {
			return boundaryError(b, len(lines))
		}
	case KindContent, KindExecutable, KindOutput:
		for i, l := range lines {
			if b.fence.closedBy(l) {
				return boundaryError(b, i+1)
			}
		}
	}
	return nil
}

func boundaryError(b *Block, line int) error {
	return errors.ValidationError(BoundaryMessage).
		WithContext("id", b.ID()).
		WithContext("line", b.Line).
		WithContext("content_line", line).
		Build()
}

// EditFor returns the edit that sets the interior of b to content. It reports
// false when b has no interior or the content is unchanged.
func (d *Document) EditFor(b *Block, content string) (markdown.Edit, bool) {
	if !b.HasContent() || b.Content(d.Source) == content {
		return markdown.Edit{}, false
	}
	return markdown.Edit{
		Start:       b.ContentStart,
		End:         b.ContentEnd,
		Replacement: []byte(b.Replacement(content)),
	}, true
}

// Apply serialises the document with edits applied to the original source.
// Spans not covered by an edit are emitted byte-for-byte.
func (d *Document) Apply(edits []markdown.Edit) (string, error) {
	if len(edits) == 0 {
		return d.Source, nil
	}
	out, err := markdown.ApplyEdits([]byte(d.Source), edits)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "failed to rewrite document").Build()
	}
	return string(out), nil
}
