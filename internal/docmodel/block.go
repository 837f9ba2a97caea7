package docmodel

import "strings"

// Kind classifies a block of the document.
type Kind int

const (
	// KindPlain is unannotated prose, passed through unchanged.
	KindPlain Kind = iota
	// KindFrontmatter is the leading YAML frontmatter section.
	KindFrontmatter
	// KindContent is a fenced block holding literal data (csv, json, ...).
	KindContent
	// KindExecutable is a fenced block marked `exec`.
	KindExecutable
	// KindOutput is a fenced block with type `output` that receives captured output.
	KindOutput
	// KindRegion is the content between `<!-- id:X -->` and `<!-- /id:X -->` markers.
	KindRegion
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindFrontmatter:
		return "frontmatter"
	case KindContent:
		return "content"
	case KindExecutable:
		return "executable"
	case KindOutput:
		return "output"
	case KindRegion:
		return "region"
	default:
		return "unknown"
	}
}

// IsTarget reports whether blocks of this kind may receive dispatcher output.
func (k Kind) IsTarget() bool {
	return k == KindOutput || k == KindRegion
}

// Block is a contiguous span of the source text.
//
// Start and End delimit the whole block, delimiters included. ContentStart and
// ContentEnd delimit the interior: the lines between the opening and closing
// delimiter lines, without the terminator of the last interior line.
type Block struct {
	Kind Kind
	Info Info

	// RegionID is set for KindRegion blocks.
	RegionID string

	Start, End               int
	ContentStart, ContentEnd int

	// Line is the 1-based line of the opening delimiter (or first line for plain blocks).
	Line int

	// Indent is the leading whitespace of the opening fence line.
	Indent string
	// Newline is the line terminator used by the opening delimiter line.
	Newline string

	// emptyBody is true when nothing sits between the delimiter lines.
	emptyBody bool

	// fence is the opening fence of a fenced block.
	fence fence
}

// ID returns the block identifier: the `id` attribute of a fenced block or the
// name of a region. Plain blocks have no identifier.
func (b *Block) ID() string {
	if b.Kind == KindRegion {
		return b.RegionID
	}
	return b.Info.ID()
}

// Lang returns the declared language or type of a fenced block.
func (b *Block) Lang() string {
	return b.Info.Lang
}

// OutputID returns the identifier of the block that receives this block's output.
func (b *Block) OutputID() string {
	return b.Info.OutputID()
}

// HasContent reports whether the block has delimiters with an interior.
func (b *Block) HasContent() bool {
	switch b.Kind {
	case KindContent, KindExecutable, KindOutput, KindRegion:
		return true
	default:
		return false
	}
}

// Text returns the block's full span from src.
func (b *Block) Text(src string) string {
	return src[b.Start:b.End]
}

// Content returns the block interior from src with CRLF normalised to LF and
// the fence indentation removed.
func (b *Block) Content(src string) string {
	if !b.HasContent() {
		return src[b.Start:b.End]
	}
	raw := src[b.ContentStart:b.ContentEnd]
	if raw == "" {
		return ""
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if b.Indent == "" {
		return raw
	}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripIndent(line, len(b.Indent))
	}
	return strings.Join(lines, "\n")
}

// Replacement returns the text that replaces src[ContentStart:ContentEnd] when
// the block content is set to content. Delimiter lines are never part of it.
func (b *Block) Replacement(content string) string {
	nl := b.Newline
	if nl == "" {
		nl = "\n"
	}

	if content == "" {
		return ""
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = b.Indent + line
		}
	}
	out := strings.Join(lines, nl)
	if b.emptyBody {
		// The closing delimiter starts right at ContentStart.
		out += nl
	}
	return out
}

func stripIndent(line string, width int) string {
	n := 0
	for n < width && n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return line[n:]
}
