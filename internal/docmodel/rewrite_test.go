package docmodel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/markdown"
)

func rewrite(t *testing.T, src string, content map[string]string) string {
	t.Helper()
	doc, err := Parse(src)
	require.NoError(t, err)

	var edits []markdown.Edit
	for _, b := range doc.Blocks {
		c, ok := content[b.ID()]
		if !ok || b.ID() == "" {
			continue
		}
		if e, changed := doc.EditFor(b, c); changed {
			edits = append(edits, e)
		}
	}
	out, err := doc.Apply(edits)
	require.NoError(t, err)
	return out
}

func TestRewrite_ReplacesInteriorOnly(t *testing.T) {
	out := rewrite(t, notebook, map[string]string{"out": "1"})
	require.Equal(t, "# Title\n\n```python exec id=calc output-id=out\nprint(1)\n```\n\n```output id=out\n1\n```\n", out)
}

func TestRewrite_NoChangesIsIdentity(t *testing.T) {
	out := rewrite(t, notebook, map[string]string{"out": "old"})
	require.Equal(t, notebook, out)
}

func TestRewrite_EmptyBody(t *testing.T) {
	src := "```output id=o\n```\n"
	out := rewrite(t, src, map[string]string{"o": "a\nb"})
	require.Equal(t, "```output id=o\na\nb\n```\n", out)

	// Re-parsing the result yields the content back.
	doc, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, "a\nb", doc.Content(doc.Blocks[0]))
}

func TestRewrite_ClearContent(t *testing.T) {
	out := rewrite(t, "```output id=o\nold\n```\n", map[string]string{"o": ""})
	require.Equal(t, "```output id=o\n\n```\n", out)

	again := rewrite(t, out, map[string]string{"o": ""})
	require.Equal(t, out, again)
}

func TestRewrite_PreservesIndentAndCRLF(t *testing.T) {
	src := "  ```output id=o\r\n  old\r\n  ```\r\n"
	out := rewrite(t, src, map[string]string{"o": "a\n\nb"})
	require.Equal(t, "  ```output id=o\r\n  a\r\n\r\n  b\r\n  ```\r\n", out)
}

func TestRewrite_Region(t *testing.T) {
	src := "<!-- id:r -->\nold\n<!-- /id:r -->\n"
	out := rewrite(t, src, map[string]string{"r": "| a |\n| --- |"})
	require.Equal(t, "<!-- id:r -->\n| a |\n| --- |\n<!-- /id:r -->\n", out)
}

func TestRewrite_Idempotent(t *testing.T) {
	first := rewrite(t, notebook, map[string]string{"out": "result"})
	second := rewrite(t, first, map[string]string{"out": "result"})
	require.Equal(t, first, second)
}

func TestCheckContent(t *testing.T) {
	src := "````output id=wide\n````\n" +
		"~~~output id=tilde\n~~~\n" +
		"  ```output id=indented\n  ```\n" +
		"<!-- id:r -->\n<!-- /id:r -->\n"
	doc, err := Parse(src)
	require.NoError(t, err)

	byID := map[string]*Block{}
	for _, b := range doc.Identified() {
		byID[b.ID()] = b
	}

	tests := []struct {
		id      string
		content string
		ok      bool
	}{
		{"wide", "```\nshorter run is content", true},
		{"wide", "a\n````", false},
		{"wide", "`````", false},
		{"tilde", "```\n```", true},
		{"tilde", "~~~~", false},
		{"indented", "    ```", false},
		{"r", "<!-- id:r -->", true},
		{"r", "```\n<!-- /id:r -->\n```", true},
		{"r", "<!-- /id:other -->", true},
		{"r", "<!-- /id:r -->", false},
		{"r", "~~~ sh\nopen", false},
	}
	for _, tt := range tests {
		t.Run(tt.id+" "+tt.content, func(t *testing.T) {
			err := byID[tt.id].CheckContent(tt.content)
			if tt.ok {
				require.NoError(t, err)
				out := rewrite(t, src, map[string]string{tt.id: tt.content})
				_, err = Parse(out)
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.HasCategory(err, errors.CategoryValidation))
			require.Equal(t, BoundaryMessage, errors.MessageOf(err))
		})
	}
}
