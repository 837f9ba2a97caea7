package registry

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdexec/internal/docmodel"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
)

const src = "```csv id=data\na,b\n```\n\n" +
	"```python exec id=calc output-id=out\nprint(1)\n```\n\n" +
	"```output id=out\n```\n\n" +
	"<!-- id:dup -->\none\n<!-- /id:dup -->\n\n" +
	"<!-- id:dup -->\ntwo\n<!-- /id:dup -->\n"

func newRegistry(t *testing.T, text string) *Registry {
	t.Helper()
	doc, err := docmodel.Parse(text)
	require.NoError(t, err)
	return New(doc)
}

func ids(seq func(func(*Handle) bool)) []string {
	var out []string
	for h := range seq {
		out = append(out, h.ID())
	}
	return out
}

func TestGet(t *testing.T) {
	reg := newRegistry(t, src)

	h, err := reg.Get("data")
	require.NoError(t, err)
	require.Equal(t, "a,b", h.Content())
	require.Equal(t, docmodel.KindContent, h.Kind())
	require.Equal(t, "csv", h.Lang())
	require.Equal(t, 1, h.Line())
}

func TestGet_NotFound(t *testing.T) {
	reg := newRegistry(t, src)

	_, err := reg.Get("missing")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryNotFound))
	require.Contains(t, errors.MessageOf(err), `"missing"`)
}

func TestGet_NotUnique(t *testing.T) {
	reg := newRegistry(t, src)

	_, err := reg.Get("dup")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryNotUnique))
}

func TestQuery(t *testing.T) {
	reg := newRegistry(t, src)

	require.Equal(t, []string{"dup", "dup"}, ids(reg.Query("dup")))
	require.Empty(t, ids(reg.Query("missing")))
	require.Equal(t, []string{"data", "calc", "out", "dup", "dup"}, ids(reg.Query("")))
	require.Equal(t, 5, reg.Len())

	var contents []string
	for h := range reg.Query("dup") {
		contents = append(contents, h.Content())
	}
	require.Equal(t, []string{"one", "two"}, contents)
}

func TestQuery_LazyAndRestartable(t *testing.T) {
	reg := newRegistry(t, src)
	seq := reg.Query("")

	first := ""
	for h := range seq {
		first = h.ID()
		break
	}
	require.Equal(t, "data", first)

	require.Len(t, slices.Collect(seq), 5)
	require.Len(t, slices.Collect(seq), 5)
}

func TestSetContent_VisibleAndRendered(t *testing.T) {
	reg := newRegistry(t, src)

	out, err := reg.Get("out")
	require.NoError(t, err)
	require.False(t, out.Dirty())

	require.NoError(t, out.SetContent("1"))
	require.True(t, out.Dirty())

	again, err := reg.Get("out")
	require.NoError(t, err)
	require.Equal(t, "1", again.Content())

	text, err := reg.Render()
	require.NoError(t, err)
	require.Contains(t, text, "```output id=out\n1\n```\n")
}

func TestSetContent_RejectsBlockTerminators(t *testing.T) {
	reg := newRegistry(t, src+"<!-- id:r -->\n<!-- /id:r -->\n")

	out, err := reg.Get("out")
	require.NoError(t, err)
	err = out.SetContent("```\nx")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))
	require.Equal(t, docmodel.BoundaryMessage, errors.MessageOf(err))
	require.False(t, out.Dirty())
	require.Empty(t, out.Content())

	r, err := reg.Get("r")
	require.NoError(t, err)
	require.Error(t, r.SetContent("a\n<!-- /id:r -->\nb"))
	require.Error(t, r.SetContent("```sh\nunclosed"))
	require.NoError(t, r.SetContent("```\nfenced\n```"))

	text, err := reg.Render()
	require.NoError(t, err)
	_, err = docmodel.Parse(text)
	require.NoError(t, err)
}

func TestEdits_UnchangedContentProducesNoEdit(t *testing.T) {
	reg := newRegistry(t, src)

	h, err := reg.Get("data")
	require.NoError(t, err)
	require.NoError(t, h.SetContent("a,b"))

	require.Empty(t, reg.Edits())
	text, err := reg.Render()
	require.NoError(t, err)
	require.Equal(t, src, text)
}

func TestHandleFor(t *testing.T) {
	reg := newRegistry(t, src)
	doc := reg.Document()

	exec := doc.Executables()[0]
	h, ok := reg.HandleFor(exec)
	require.True(t, ok)
	require.Equal(t, "calc", h.ID())
	require.Same(t, exec, h.Block())

	for _, b := range doc.Blocks {
		if b.Kind == docmodel.KindPlain {
			_, ok = reg.HandleFor(b)
			require.False(t, ok, "plain blocks have no handle")
		}
	}
}
