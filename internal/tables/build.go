package tables

import (
	"encoding/csv"
	"io"
	"regexp"
	"slices"
	"strings"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
)

var numericCell = regexp.MustCompile(`^[-+]?\d*\.?\d+$`)

// Options controls how FromRows lays out a table.
type Options struct {
	// Alignments sets the alignment per column. Columns beyond the list get
	// AlignNone. When nil, alignments are inferred from the data.
	Alignments []Align
	// NoNumericAlign disables inference: every column gets AlignNone.
	NoNumericAlign bool
}

// FromRows renders rows as a formatted pipe table. The first row is the header.
// Numeric columns are right-aligned unless opts says otherwise.
func FromRows(rows [][]string, opts Options) string {
	if len(rows) == 0 {
		return ""
	}

	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}

	aligns := make([]Align, cols)
	switch {
	case opts.Alignments != nil:
		copy(aligns, opts.Alignments)
	case !opts.NoNumericAlign:
		aligns = inferAligns(rows, cols)
	}

	markers := make([]string, cols)
	for c, a := range aligns {
		markers[c] = a.marker(minColumnWidth)
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, rawRow(rows[0], cols))
	lines = append(lines, "| "+strings.Join(markers, " | ")+" |")
	for _, r := range rows[1:] {
		lines = append(lines, rawRow(r, cols))
	}
	return Format(strings.Join(lines, "\n"))
}

func rawRow(cells []string, cols int) string {
	escaped := make([]string, cols)
	for c := range escaped {
		if c < len(cells) {
			escaped[c] = escapeCell(cells[c])
		}
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

// inferAligns right-aligns columns whose non-empty body cells are all numeric.
func inferAligns(rows [][]string, cols int) []Align {
	aligns := make([]Align, cols)
	for c := range aligns {
		aligns[c] = AlignLeft
		if len(rows) < 2 {
			continue
		}
		seen := false
		numeric := true
		for _, r := range rows[1:] {
			if c >= len(r) || strings.TrimSpace(r[c]) == "" {
				continue
			}
			seen = true
			if !numericCell.MatchString(strings.TrimSpace(r[c])) {
				numeric = false
				break
			}
		}
		if seen && numeric {
			aligns[c] = AlignRight
		}
	}
	return aligns
}

// FromRecords renders a table from maps. fields sets the column order; when nil
// the sorted union of keys is used.
func FromRecords(records []map[string]string, fields []string, opts Options) string {
	if len(records) == 0 {
		return ""
	}
	if fields == nil {
		set := map[string]struct{}{}
		for _, rec := range records {
			for k := range rec {
				set[k] = struct{}{}
			}
		}
		for k := range set {
			fields = append(fields, k)
		}
		slices.Sort(fields)
	}

	rows := [][]string{fields}
	for _, rec := range records {
		r := make([]string, len(fields))
		for i, f := range fields {
			r[i] = rec[f]
		}
		rows = append(rows, r)
	}
	return FromRows(rows, opts)
}

// ReadCSV parses CSV text into rows. Records may have differing lengths.
func ReadCSV(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryValidation, "invalid CSV").Build()
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// FromCSV renders CSV text (first record is the header) as a formatted table.
func FromCSV(text string, opts Options) (string, error) {
	rows, err := ReadCSV(text)
	if err != nil {
		return "", err
	}
	return FromRows(rows, opts), nil
}
