package tables

import (
	"strings"
)

const minColumnWidth = 3

type line struct {
	text string
	nl   string
}

func splitLines(text string) []line {
	var out []line
	for text != "" {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			out = append(out, line{text: text})
			break
		}
		l := line{text: text[:idx], nl: "\n"}
		if strings.HasSuffix(l.text, "\r") {
			l.text = l.text[:len(l.text)-1]
			l.nl = "\r\n"
		}
		out = append(out, l)
		text = text[idx+1:]
	}
	return out
}

// fenceOf returns the fence run that opens a fenced code block on this line.
func fenceOf(text string) string {
	trimmed := strings.TrimLeft(text, " \t")
	for _, c := range []string{"`", "~"} {
		n := len(trimmed) - len(strings.TrimLeft(trimmed, c))
		if n < 3 || (c == "`" && strings.Contains(trimmed[n:], "`")) {
			continue
		}
		return trimmed[:n]
	}
	return ""
}

// Format re-pads every pipe table in text. A table is a header row followed by a
// delimiter row with the same number of cells, then any number of body rows.
// Lines outside tables, and tables inside fenced code, are returned unchanged.
func Format(text string) string {
	lines := splitLines(text)
	var sb strings.Builder
	sb.Grow(len(text))

	fence := ""
	for i := 0; i < len(lines); {
		l := lines[i]

		if fence != "" {
			trimmed := strings.TrimSpace(l.text)
			if strings.HasPrefix(trimmed, fence) && strings.Trim(trimmed, fence[:1]) == "" {
				fence = ""
			}
			sb.WriteString(l.text + l.nl)
			i++
			continue
		}
		if f := fenceOf(l.text); f != "" {
			fence = f
			sb.WriteString(l.text + l.nl)
			i++
			continue
		}

		t, end, ok := tableAt(lines, i)
		if !ok {
			sb.WriteString(l.text + l.nl)
			i++
			continue
		}
		rendered := t.render()
		for k, text := range rendered {
			sb.WriteString(text + lines[i+k].nl)
		}
		i = end
	}
	return sb.String()
}

type table struct {
	header row
	sep    row
	aligns []Align
	body   []row
}

// tableAt recognises a table starting at lines[i] and returns it along with the
// index of the first line after it.
func tableAt(lines []line, i int) (table, int, bool) {
	if i+1 >= len(lines) {
		return table{}, 0, false
	}
	header, ok := splitRow(lines[i].text)
	if !ok {
		return table{}, 0, false
	}
	sep, ok := splitRow(lines[i+1].text)
	if !ok || len(sep.cells) != len(header.cells) {
		return table{}, 0, false
	}
	aligns, ok := separatorAligns(sep)
	if !ok {
		return table{}, 0, false
	}

	t := table{header: header, sep: sep, aligns: aligns}
	j := i + 2
	for ; j < len(lines); j++ {
		if strings.TrimSpace(lines[j].text) == "" {
			break
		}
		r, ok := splitRow(lines[j].text)
		if !ok {
			break
		}
		t.body = append(t.body, r)
	}
	return t, j, true
}

// render pads every row to the header's columns. Body cells past the last
// header column have no width or alignment and are kept as written.
func (t table) render() []string {
	cols := len(t.header.cells)

	widths := make([]int, cols)
	for c := range widths {
		widths[c] = minColumnWidth
	}
	for _, r := range append([]row{t.header}, t.body...) {
		for c, cell := range r.cells[:min(cols, len(r.cells))] {
			widths[c] = max(widths[c], displayWidth(cell))
		}
	}

	aligns := make([]Align, cols)
	copy(aligns, t.aligns)

	out := make([]string, 0, len(t.body)+2)
	out = append(out, renderRow(t.header, widths, func(c int) string { return cell(t.header, c) }, aligns, nil))
	out = append(out, renderRow(t.sep, widths, func(c int) string { return aligns[c].marker(widths[c]) }, nil, nil))
	for _, r := range t.body {
		var extra []string
		if len(r.cells) > cols {
			extra = r.cells[cols:]
		}
		out = append(out, renderRow(r, widths, func(c int) string { return cell(r, c) }, aligns, extra))
	}
	return out
}

func cell(r row, c int) string {
	if c < len(r.cells) {
		return r.cells[c]
	}
	return ""
}

func renderRow(r row, widths []int, value func(int) string, aligns []Align, extra []string) string {
	cells := make([]string, len(widths), len(widths)+len(extra))
	for c := range widths {
		v := value(c)
		if aligns != nil {
			v = pad(v, widths[c], aligns[c])
		}
		cells[c] = v
	}
	cells = append(cells, extra...)

	// Without an outer pipe an empty edge cell would vanish on the next pass.
	leading := r.leading || strings.TrimSpace(cells[0]) == ""
	trailing := r.trailing || strings.TrimSpace(cells[len(cells)-1]) == ""

	var sb strings.Builder
	sb.WriteString(r.indent)
	if leading {
		sb.WriteString("| ")
	}
	sb.WriteString(strings.Join(cells, " | "))
	if trailing {
		sb.WriteString(" |")
		return sb.String()
	}
	return strings.TrimRight(sb.String(), " ")
}
