package tables

import "strings"

// Parse reads the rows of a pipe table, header first. Delimiter rows and blank
// lines are skipped and `\|` is unescaped. Lines without pipes become one-cell rows.
func Parse(text string) [][]string {
	var rows [][]string
	for _, l := range splitLines(text) {
		trimmed := strings.TrimSpace(l.text)
		if trimmed == "" {
			continue
		}
		r, ok := splitRow(trimmed)
		if !ok {
			rows = append(rows, []string{unescapeCell(trimmed)})
			continue
		}
		if _, isSep := separatorAligns(r); isSep {
			continue
		}
		cells := make([]string, len(r.cells))
		for i, c := range r.cells {
			cells[i] = unescapeCell(c)
		}
		rows = append(rows, cells)
	}
	return rows
}

// Dicts reads a pipe table into one map per body row keyed by the header.
// Missing cells map to "".
func Dicts(text string) []map[string]string {
	rows := Parse(text)
	if len(rows) < 2 {
		return nil
	}

	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, r := range rows[1:] {
		rec := make(map[string]string, len(header))
		for i, h := range header {
			rec[h] = ""
			if i < len(r) {
				rec[h] = r[i]
			}
		}
		out = append(out, rec)
	}
	return out
}
