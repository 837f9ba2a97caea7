package tables

import (
	"strings"
)

// Align is the alignment of a table column.
type Align int

const (
	// AlignNone has no colon in the separator (`---`) and pads like AlignLeft.
	AlignNone Align = iota
	AlignLeft
	AlignRight
	AlignCenter
)

func (a Align) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignRight:
		return "right"
	case AlignCenter:
		return "center"
	default:
		return "none"
	}
}

// ParseAlign maps "left", "right", "center" to an Align; anything else is AlignNone.
func ParseAlign(s string) Align {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return AlignLeft
	case "right", "r":
		return AlignRight
	case "center", "centre", "c":
		return AlignCenter
	default:
		return AlignNone
	}
}

func (a Align) marker(w int) string {
	switch a {
	case AlignLeft:
		return ":" + strings.Repeat("-", w-1)
	case AlignRight:
		return strings.Repeat("-", w-1) + ":"
	case AlignCenter:
		return ":" + strings.Repeat("-", w-2) + ":"
	default:
		return strings.Repeat("-", w)
	}
}

// row is one table line split into trimmed cells.
type row struct {
	indent   string
	leading  bool
	trailing bool
	cells    []string
}

// splitRow splits a table line on unescaped pipes. It reports false for lines
// that contain no unescaped pipe.
func splitRow(line string) (row, bool) {
	trimmed := strings.TrimSpace(line)
	if indexPipe(trimmed) < 0 {
		return row{}, false
	}

	r := row{indent: line[:len(line)-len(strings.TrimLeft(line, " \t"))]}
	if strings.HasPrefix(trimmed, "|") {
		r.leading = true
		trimmed = trimmed[1:]
	}
	if strings.HasSuffix(trimmed, "|") && !strings.HasSuffix(trimmed, `\|`) {
		r.trailing = true
		trimmed = trimmed[:len(trimmed)-1]
	}

	for {
		idx := indexPipe(trimmed)
		if idx < 0 {
			r.cells = append(r.cells, strings.TrimSpace(trimmed))
			break
		}
		r.cells = append(r.cells, strings.TrimSpace(trimmed[:idx]))
		trimmed = trimmed[idx+1:]
	}
	return r, true
}

// indexPipe returns the index of the first pipe not preceded by a backslash.
func indexPipe(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '|':
			return i
		}
	}
	return -1
}

// separatorAligns returns the column alignments if r is a delimiter row.
func separatorAligns(r row) ([]Align, bool) {
	aligns := make([]Align, len(r.cells))
	for i, c := range r.cells {
		left := strings.HasPrefix(c, ":")
		right := strings.HasSuffix(c, ":") && len(c) > 1
		dashes := strings.TrimSuffix(strings.TrimPrefix(c, ":"), ":")
		if dashes == "" || strings.Trim(dashes, "-") != "" {
			return nil, false
		}
		switch {
		case left && right:
			aligns[i] = AlignCenter
		case left:
			aligns[i] = AlignLeft
		case right:
			aligns[i] = AlignRight
		}
	}
	return aligns, true
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '|' && (i == 0 || s[i-1] != '\\') {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return strings.TrimSpace(sb.String())
}

func unescapeCell(s string) string {
	return strings.ReplaceAll(s, `\|`, "|")
}
