package markdown

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is an ATX or setext heading found in a document body.
type Heading struct {
	Level  int
	Title  string
	Offset int
}

// Outline lists the headings of a document in source order.
type Outline []Heading

// ParseOutline parses a Markdown body (frontmatter already removed) and collects
// its headings. base is added to every offset so positions refer to the full document.
//
// Headings inside fenced code are not headings; Goldmark takes care of that.
func ParseOutline(body []byte, base int) Outline {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	var out Outline
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}

		offset := 0
		if lines := h.Lines(); lines.Len() > 0 {
			offset = lines.At(0).Start
		}
		out = append(out, Heading{
			Level:  h.Level,
			Title:  headingText(h, body),
			Offset: base + offset,
		})
		return gmast.WalkSkipChildren, nil
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// SectionAt returns the title of the closest heading before offset, or "".
func (o Outline) SectionAt(offset int) string {
	idx := sort.Search(len(o), func(i int) bool { return o[i].Offset > offset })
	if idx == 0 {
		return ""
	}
	return o[idx-1].Title
}

func headingText(h *gmast.Heading, source []byte) string {
	var sb strings.Builder
	_ = gmast.Walk(h, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Text:
			sb.Write(node.Segment.Value(source))
			if node.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *gmast.String:
			sb.Write(node.Value)
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
