package docmodel

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/mdexec/internal/frontmatter"
)

// Document is the ordered sequence of blocks parsed from one source text.
// The blocks partition Source: concatenating their spans reproduces it exactly.
type Document struct {
	Source      string
	Blocks      []*Block
	Frontmatter frontmatter.Section
}

// Executables returns the executable blocks in source order.
func (d *Document) Executables() []*Block {
	var out []*Block
	for _, b := range d.Blocks {
		if b.Kind == KindExecutable {
			out = append(out, b)
		}
	}
	return out
}

// Identified returns every block carrying an identifier, in source order.
func (d *Document) Identified() []*Block {
	var out []*Block
	for _, b := range d.Blocks {
		if b.ID() != "" {
			out = append(out, b)
		}
	}
	return out
}

// Content returns the current source content of b.
func (d *Document) Content(b *Block) string {
	return b.Content(d.Source)
}

type line struct {
	start int // offset of the first byte
	end   int // offset just past the terminator
	text  string
}

func splitLines(src string) []line {
	var lines []line
	start := 0
	for start < len(src) {
		idx := strings.IndexByte(src[start:], '\n')
		end := len(src)
		if idx >= 0 {
			end = start + idx + 1
		}
		text := strings.TrimSuffix(strings.TrimSuffix(src[start:end], "\n"), "\r")
		lines = append(lines, line{start: start, end: end, text: text})
		start = end
	}
	return lines
}

func terminator(src string, l line) string {
	return src[l.start+len(l.text) : l.end]
}

type fence struct {
	indent string
	char   byte
	width  int
	info   string
}

func openFence(text string) (fence, bool) {
	trimmed := strings.TrimLeft(text, " \t")
	if trimmed == "" {
		return fence{}, false
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return fence{}, false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return fence{}, false
	}
	info := strings.TrimSpace(trimmed[n:])
	if c == '`' && strings.ContainsRune(info, '`') {
		// ```foo``` on one line is inline code, not a fence.
		return fence{}, false
	}
	return fence{indent: text[:len(text)-len(trimmed)], char: c, width: n, info: info}, true
}

func (f fence) closedBy(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < f.width {
		return false
	}
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != f.char {
			return false
		}
	}
	return true
}

// Parse scans source into an ordered list of blocks in a single left-to-right pass.
//
// Malformed structure (a fence or region that is never closed, a region end marker
// without an opener) is a fatal error: no partial document is returned.
//
// A leading `---` only opens frontmatter when it is closed and the text between
// the delimiters is a YAML mapping. Otherwise it is a thematic break and stays
// plain text.
func Parse(source string) (*Document, error) {
	doc := &Document{Source: source}

	fm, err := frontmatter.Locate(source)
	if err != nil || (fm.Had && !frontmatter.IsMapping(fm.Raw)) {
		fm = frontmatter.Section{Newline: fm.Newline}
	}
	doc.Frontmatter = fm

	lines := splitLines(source)

	plainStart := 0
	plainLine := 1
	i := 0
	if fm.Had {
		doc.Blocks = append(doc.Blocks, &Block{Kind: KindFrontmatter, Start: 0, End: fm.End, Line: 1})
		plainStart = fm.End
		for i < len(lines) && lines[i].start < fm.End {
			i++
		}
		plainLine = i + 1
	}

	flushPlain := func(upTo int) {
		if upTo > plainStart {
			doc.Blocks = append(doc.Blocks, &Block{Kind: KindPlain, Start: plainStart, End: upTo, Line: plainLine})
		}
	}

	for i < len(lines) {
		l := lines[i]

		if f, ok := openFence(l.text); ok {
			j := i + 1
			for j < len(lines) && !f.closedBy(lines[j].text) {
				j++
			}
			if j >= len(lines) {
				return nil, parseError(ErrUnterminatedFence, i+1,
					fmt.Sprintf("fence %q opened at line %d is never closed", strings.Repeat(string(f.char), f.width), i+1))
			}

			flushPlain(l.start)
			doc.Blocks = append(doc.Blocks, fencedBlock(source, lines, i, j, f))
			i = j + 1
			plainStart, plainLine = lines[j].end, i+1
			continue
		}

		if name, closing, ok := parseMarker(l.text); ok {
			if closing {
				return nil, parseError(ErrUnmatchedRegionEnd, i+1,
					fmt.Sprintf("region end marker for %q at line %d has no start marker", name, i+1))
			}

			j, found := findRegionEnd(lines, i+1, name)
			if !found {
				return nil, parseError(ErrUnterminatedRegion, i+1,
					fmt.Sprintf("region %q opened at line %d is never closed", name, i+1))
			}

			flushPlain(l.start)
			b := interiorBlock(source, lines, i, j)
			b.Kind = KindRegion
			b.RegionID = name
			doc.Blocks = append(doc.Blocks, b)
			i = j + 1
			plainStart, plainLine = lines[j].end, i+1
			continue
		}

		i++
	}
	flushPlain(len(source))

	return doc, nil
}

// findRegionEnd looks for the closing marker of name, skipping lines inside fences.
func findRegionEnd(lines []line, from int, name string) (int, bool) {
	s := regionScan{name: name}
	for k := from; k < len(lines); k++ {
		if s.closes(lines[k].text) {
			return k, true
		}
	}
	return 0, false
}

// regionScan walks the interior of a region line by line.
type regionScan struct {
	name string
	open *fence
}

// closes reports whether text is the region's closing marker. Markers inside
// fences do not count.
func (s *regionScan) closes(text string) bool {
	if s.open != nil {
		if s.open.closedBy(text) {
			s.open = nil
		}
		return false
	}
	if f, ok := openFence(text); ok {
		s.open = &f
		return false
	}
	n, closing, ok := parseMarker(text)
	return ok && closing && n == s.name
}

func fencedBlock(src string, lines []line, open, closing int, f fence) *Block {
	b := interiorBlock(src, lines, open, closing)
	b.Info = ParseInfo(f.info)
	b.Indent = f.indent
	b.fence = f
	switch {
	case b.Info.Exec:
		b.Kind = KindExecutable
	case b.Info.Lang == "output":
		b.Kind = KindOutput
	default:
		b.Kind = KindContent
	}
	return b
}

// interiorBlock builds the spans shared by fenced and region blocks.
func interiorBlock(src string, lines []line, open, closing int) *Block {
	b := &Block{
		Start:        lines[open].start,
		End:          lines[closing].end,
		Line:         open + 1,
		Newline:      terminator(src, lines[open]),
		ContentStart: lines[open].end,
	}
	if b.Newline == "" {
		b.Newline = "\n"
	}
	if closing == open+1 {
		b.ContentEnd = b.ContentStart
		b.emptyBody = true
	} else {
		last := lines[closing-1]
		b.ContentEnd = last.start + len(last.text)
	}
	return b
}
