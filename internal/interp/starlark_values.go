package interp

import (
	"fmt"
	"iter"
	"slices"

	"go.starlark.net/starlark"

	"git.home.luguber.info/inful/mdexec/internal/registry"
	"git.home.luguber.info/inful/mdexec/internal/tables"
)

// blockValue exposes a registry handle to Starlark. The content attribute is
// assignable; assigning it replaces the block content in the document.
type blockValue struct {
	h *registry.Handle
}

var (
	_ starlark.HasAttrs    = blockValue{}
	_ starlark.HasSetField = blockValue{}
)

func (b blockValue) String() string        { return fmt.Sprintf("<block %s>", b.h.ID()) }
func (b blockValue) Type() string          { return "block" }
func (b blockValue) Freeze()               {}
func (b blockValue) Truth() starlark.Bool  { return starlark.True }
func (b blockValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: block") }

func (b blockValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "id":
		return starlark.String(b.h.ID()), nil
	case "lang":
		return starlark.String(b.h.Lang()), nil
	case "kind":
		return starlark.String(b.h.Kind().String()), nil
	case "line":
		return starlark.MakeInt(b.h.Line()), nil
	case "content":
		return starlark.String(b.h.Content()), nil
	}
	return nil, nil
}

func (b blockValue) AttrNames() []string {
	return []string{"content", "id", "kind", "lang", "line"}
}

func (b blockValue) SetField(name string, val starlark.Value) error {
	if name != "content" {
		return starlark.NoSuchAttrError(fmt.Sprintf("block has no assignable field .%s", name))
	}
	s, ok := starlark.AsString(val)
	if !ok {
		return fmt.Errorf("block.content must be a string, got %s", val.Type())
	}
	if err := b.h.SetContent(s); err != nil {
		return plainError{err}
	}
	return nil
}

// queryValue is the lazy result of query_blocks. Each iteration re-runs the query.
type queryValue struct {
	id  string
	seq iter.Seq[*registry.Handle]
}

var _ starlark.Iterable = queryValue{}

func (q queryValue) String() string        { return fmt.Sprintf("<query %q>", q.id) }
func (q queryValue) Type() string          { return "query" }
func (q queryValue) Freeze()               {}
func (q queryValue) Truth() starlark.Bool  { return starlark.True }
func (q queryValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: query") }

func (q queryValue) Iterate() starlark.Iterator {
	next, stop := iter.Pull(q.seq)
	return &queryIterator{next: next, stop: stop}
}

type queryIterator struct {
	next func() (*registry.Handle, bool)
	stop func()
}

func (it *queryIterator) Next(p *starlark.Value) bool {
	h, ok := it.next()
	if !ok {
		return false
	}
	*p = blockValue{h: h}
	return true
}

func (it *queryIterator) Done() { it.stop() }

func getBlockBuiltin(ectx *Context) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var id string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id", &id); err != nil {
			return nil, err
		}
		h, err := ectx.Registry.Get(id)
		if err != nil {
			return nil, plainError{err}
		}
		return blockValue{h: h}, nil
	}
}

func queryBlocksBuiltin(ectx *Context) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var id starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "id?", &id); err != nil {
			return nil, err
		}
		key := ""
		if id != starlark.None {
			s, ok := starlark.AsString(id)
			if !ok {
				return nil, fmt.Errorf("%s: id must be a string or None, got %s", b.Name(), id.Type())
			}
			key = s
		}
		return queryValue{id: key, seq: ectx.Registry.Query(key)}, nil
	}
}

func formatTableBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	return starlark.String(tables.Format(text)), nil
}

func parseTableBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	return rowsValue(tables.Parse(text)), nil
}

func tableDictsBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	rows := tables.Parse(text)
	if len(rows) < 2 {
		return starlark.NewList(nil), nil
	}

	header := rows[0]
	out := make([]starlark.Value, 0, len(rows)-1)
	for _, r := range rows[1:] {
		d := starlark.NewDict(len(header))
		for i, h := range header {
			v := ""
			if i < len(r) {
				v = r[i]
			}
			if err := d.SetKey(starlark.String(h), starlark.String(v)); err != nil {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return starlark.NewList(out), nil
}

func parseCSVBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}
	rows, err := tables.ReadCSV(text)
	if err != nil {
		return nil, plainError{err}
	}
	return rowsValue(rows), nil
}

// toTableBuiltin renders a list of rows (lists or tuples, header first) or a
// list of dicts as a formatted pipe table.
func toTableBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		rows  starlark.Iterable
		align starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "rows", &rows, "align?", &align); err != nil {
		return nil, err
	}

	var opts tables.Options
	if align != starlark.None {
		names, err := stringList(align)
		if err != nil {
			return nil, fmt.Errorf("%s: align: %w", b.Name(), err)
		}
		for _, n := range names {
			opts.Alignments = append(opts.Alignments, tables.ParseAlign(n))
		}
	}

	var (
		grid    [][]string
		records []map[string]string
		fields  []string
	)
	it := rows.Iterate()
	defer it.Done()
	var item starlark.Value
	for it.Next(&item) {
		if d, ok := item.(*starlark.Dict); ok {
			rec := make(map[string]string, d.Len())
			for _, kv := range d.Items() {
				k := cellString(kv[0])
				if len(records) == 0 {
					fields = append(fields, k)
				}
				rec[k] = cellString(kv[1])
			}
			records = append(records, rec)
			continue
		}
		cells, err := stringList(item)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", b.Name(), len(grid), err)
		}
		grid = append(grid, cells)
	}

	if len(records) > 0 {
		if len(grid) > 0 {
			return nil, fmt.Errorf("%s: rows mix dicts and sequences", b.Name())
		}
		return starlark.String(tables.FromRecords(records, fields, opts)), nil
	}
	return starlark.String(tables.FromRows(grid, opts)), nil
}

func stringList(v starlark.Value) ([]string, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("got %s, want list", v.Type())
	}
	var out []string
	it := iterable.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		out = append(out, cellString(x))
	}
	return out, nil
}

func cellString(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	if v == starlark.None {
		return ""
	}
	return v.String()
}

func rowsValue(rows [][]string) *starlark.List {
	out := make([]starlark.Value, 0, len(rows))
	for _, r := range rows {
		cells := make([]starlark.Value, 0, len(r))
		for _, c := range r {
			cells = append(cells, starlark.String(c))
		}
		out = append(out, starlark.NewList(cells))
	}
	return starlark.NewList(slices.Clip(out))
}
