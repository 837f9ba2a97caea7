package engine

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdexec/internal/dispatch"
	"git.home.luguber.info/inful/mdexec/internal/docmodel"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/metrics"
)

func quietEngine(opts ...Option) *Engine {
	return New(append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)...)
}

const mycsv = "# Data\n\n" +
	"```csv id=mycsv\n" +
	"aaa,bb,cc\n" +
	"111,22,33\n" +
	"xxx,yy,zz\n" +
	"```\n\n" +
	"## Copy\n\n" +
	"```starlark exec output-id=result\n" +
	"print(get_block(id='mycsv').content)\n" +
	"```\n\n" +
	"```output id=result\n" +
	"```\n"

func TestRun_CopiesBlockContent(t *testing.T) {
	res, err := quietEngine().Run(context.Background(), mycsv)
	require.NoError(t, err)

	want := strings.Replace(mycsv, "```output id=result\n```\n",
		"```output id=result\naaa,bb,cc\n111,22,33\nxxx,yy,zz\n```\n", 1)
	require.Equal(t, want, res.Text)
	require.True(t, res.Changed(mycsv))
	require.NotEmpty(t, res.RunID)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "Copy", res.Outcomes[0].Section)
	assert.Equal(t, dispatch.Summary{Total: 1, Succeeded: 1}, res.Summary())
}

func TestRun_Idempotent(t *testing.T) {
	e := quietEngine()
	first, err := e.Run(context.Background(), mycsv)
	require.NoError(t, err)

	second, err := e.Run(context.Background(), first.Text)
	require.NoError(t, err)
	require.Equal(t, first.Text, second.Text)
	require.False(t, second.Changed(first.Text))
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_IdempotentWhenOutputHoldsBlockDelimiters(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "fence line into output block",
			text: "```starlark exec output-id=r\nprint(\"```\")\nprint(\"x\")\n```\n\n```output id=r\n```\n",
			want: "```output id=r\n❌ starlark error: output would terminate the enclosing block\n```\n",
		},
		{
			name: "end marker into region",
			text: "```starlark exec output-id=n\nprint(\"<!-- /id:n -->\")\n```\n\n<!-- id:n -->\n<!-- /id:n -->\n",
			want: "<!-- id:n -->\n❌ starlark error: output would terminate the enclosing block\n<!-- /id:n -->\n",
		},
		{
			name: "unclosed fence into region",
			text: "```starlark exec output-id=n\nprint(\"~~~\")\n```\n\n<!-- id:n -->\n<!-- /id:n -->\n",
			want: "<!-- id:n -->\n❌ starlark error: output would terminate the enclosing block\n<!-- /id:n -->\n",
		},
		{
			name: "balanced fence into region",
			text: "```starlark exec output-id=n\nprint(\"```\\ncode\\n```\")\n```\n\n<!-- id:n -->\n<!-- /id:n -->\n",
			want: "<!-- id:n -->\n```\ncode\n```\n<!-- /id:n -->\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := Run(tt.text)
			require.NoError(t, err)
			require.Contains(t, first, tt.want)

			second, err := Run(first)
			require.NoError(t, err)
			require.Equal(t, first, second)
		})
	}
}

func TestRun_LeadingThematicBreakIsPlainText(t *testing.T) {
	text := "---\n\n# Title\n\nSome prose.\n"
	out, err := Run(text)
	require.NoError(t, err)
	require.Equal(t, text, out)

	text = "---\nIntro paragraph.\n---\n\n```starlark exec output-id=o\nprint(1)\n```\n```output id=o\n```\n"
	out, err = Run(text)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "---\nIntro paragraph.\n---\n"))
	require.Contains(t, out, "```output id=o\n1\n```\n")
}

func TestRun_IsolatesFailure(t *testing.T) {
	text := "```starlark exec output-id=a\nprint('ok')\n```\n" +
		"```output id=a\n```\n" +
		"```starlark exec output-id=b\nfail('nope')\n```\n" +
		"```output id=b\n```\n" +
		"```starlark exec output-id=c\nprint(1 + 1)\n```\n" +
		"<!-- id:c -->\n<!-- /id:c -->\n"

	res, err := quietEngine().Run(context.Background(), text)
	require.NoError(t, err)

	require.Equal(t, "```starlark exec output-id=a\nprint('ok')\n```\n"+
		"```output id=a\nok\n```\n"+
		"```starlark exec output-id=b\nfail('nope')\n```\n"+
		"```output id=b\n❌ starlark error: fail: nope\n```\n"+
		"```starlark exec output-id=c\nprint(1 + 1)\n```\n"+
		"<!-- id:c -->\n2\n<!-- /id:c -->\n", res.Text)
	require.Equal(t, 1, strings.Count(res.Text, "❌"))
	require.Equal(t, dispatch.Summary{Total: 3, Succeeded: 2, Failed: 1}, res.Summary())
}

func TestRun_QueryBlocksWithoutID(t *testing.T) {
	text := "<!-- id:x -->\none\n<!-- /id:x -->\n" +
		"```starlark exec output-id=out\nprint([b.id for b in query_blocks()])\n```\n" +
		"```output id=out\n```\n"

	out, err := Run(text)
	require.NoError(t, err)
	require.Contains(t, out, "```output id=out\n[\"x\", \"out\"]\n```")
}

func TestRun_ParseErrorIsFatal(t *testing.T) {
	rec := &outcomeRecorder{}
	_, err := quietEngine(WithRecorder(rec)).Run(context.Background(), "```python exec\nprint(1)\n")
	require.Error(t, err)
	require.ErrorIs(t, err, docmodel.ErrUnterminatedFence)
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))
	require.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeFailed}, rec.outcomes)

	out, err := Run("<!-- /id:x -->\n")
	require.Error(t, err)
	require.Empty(t, out)
}

func TestRun_RecordsOutcome(t *testing.T) {
	rec := &outcomeRecorder{}
	e := quietEngine(WithRecorder(rec))

	_, err := e.Run(context.Background(), mycsv)
	require.NoError(t, err)
	_, err = e.Run(context.Background(), "```starlark exec\nfail('x')\n```\n")
	require.NoError(t, err)

	require.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeSuccess, metrics.OutcomePartial}, rec.outcomes)
	require.Equal(t, 2, rec.runs)
}

func TestRun_FrontmatterOverrides(t *testing.T) {
	requireBinary(t, "sh")

	text := "---\ntitle: Demo\nmdexec:\n  timeout: 50ms\n  env:\n    GREETING: hello\n---\n" +
		"```sh exec output-id=env\nprintf '%s' \"$GREETING\"\n```\n" +
		"```output id=env\n```\n" +
		"```sh exec output-id=slow\nsleep 5\n```\n" +
		"```output id=slow\n```\n"

	res, err := quietEngine(WithTimeout(time.Minute)).Run(context.Background(), text)
	require.NoError(t, err)
	require.Contains(t, res.Text, "```output id=env\nhello\n```")
	require.Contains(t, res.Text, "```output id=slow\n❌ sh error: execution timed out after 50ms\n```")
	require.True(t, strings.HasPrefix(res.Text, "---\ntitle: Demo\n"))
}

func TestRun_InvalidFrontmatterSettings(t *testing.T) {
	_, err := quietEngine().Run(context.Background(), "---\nmdexec:\n  timeout: soon\n---\ntext\n")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))

	_, err = quietEngine().Run(context.Background(), "---\nmdexec: [1, 2]\n---\ntext\n")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestRun_EngineEnv(t *testing.T) {
	requireBinary(t, "sh")

	text := "```sh exec output-id=out\necho \"$A-$B\"\n```\n```output id=out\n```\n"
	res, err := quietEngine(WithEnv("A=1"), WithEnv("B=2")).Run(context.Background(), text)
	require.NoError(t, err)
	require.Contains(t, res.Text, "```output id=out\n1-2\n```")
}

func TestRun_PythonPrelude(t *testing.T) {
	requireBinary(t, "python3")

	text := "```csv id=data\nname,qty\napple,2\npear,10\n```\n\n" +
		"```python exec output-id=table\n" +
		"rows = parse_csv(get_block('data').content)\n" +
		"print(to_table(rows))\n" +
		"b = get_block('note')\n" +
		"b.content = 'rewritten by python'\n" +
		"```\n\n" +
		"```output id=table\n```\n\n" +
		"<!-- id:note -->\nold\n<!-- /id:note -->\n"

	res, err := quietEngine(WithTimeout(30*time.Second)).Run(context.Background(), text)
	require.NoError(t, err)
	require.Equal(t, dispatch.Summary{Total: 1, Succeeded: 1}, res.Summary(), "%+v", res.Outcomes)
	require.Contains(t, res.Text, "```output id=table\n| name  | qty |\n| :---- | --: |\n| apple |   2 |\n| pear  |  10 |\n```")
	require.Contains(t, res.Text, "<!-- id:note -->\nrewritten by python\n<!-- /id:note -->")

	text = "<!-- id:n -->\none\n<!-- /id:n -->\n<!-- id:n -->\ntwo\n<!-- /id:n -->\n" +
		"```python exec output-id=count\n" +
		"q = query_blocks('n')\n" +
		"print(len(list(q)), len(list(q)))\n" +
		"```\n" +
		"```output id=count\n```\n"

	res, err = quietEngine(WithTimeout(30*time.Second)).Run(context.Background(), text)
	require.NoError(t, err)
	require.Contains(t, res.Text, "```output id=count\n2 2\n```")
}

func TestRun_PythonLookupError(t *testing.T) {
	requireBinary(t, "python3")

	text := "```python exec output-id=out\nget_block('missing')\n```\n```output id=out\n```\n"
	res, err := quietEngine(WithTimeout(30*time.Second)).Run(context.Background(), text)
	require.NoError(t, err)
	require.Contains(t, res.Text, "❌ python error: LookupError: get_block: no block with id \"missing\"")
}

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

type outcomeRecorder struct {
	metrics.NoopRecorder
	outcomes []metrics.OutcomeLabel
	runs     int
}

func (r *outcomeRecorder) ObserveRunDuration(time.Duration) { r.runs++ }

func (r *outcomeRecorder) IncRunOutcome(o metrics.OutcomeLabel) {
	r.outcomes = append(r.outcomes, o)
}
