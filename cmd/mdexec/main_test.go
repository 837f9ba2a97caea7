package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdexec/internal/blockserver"
	"git.home.luguber.info/inful/mdexec/internal/docmodel"
	"git.home.luguber.info/inful/mdexec/internal/interp"
	"git.home.luguber.info/inful/mdexec/internal/registry"
)

// envActAsCLI makes the test binary behave as mdexec, so that shell helpers
// calling "$MDEXEC_BIN" reach the real command line.
const envActAsCLI = "MDEXEC_TEST_ACT_AS_CLI"

func TestMain(m *testing.M) {
	if os.Getenv(envActAsCLI) == "1" {
		os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// inTempDir moves the test into an empty directory so no stray config is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil))) })
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

const notebook = "# Notebook\n\n" +
	"```starlark exec output-id=out\nprint(to_table([['n', 'sq'], [2, 4], [3, 9]]))\n```\n\n" +
	"```output id=out\n```\n"

const executed = "# Notebook\n\n" +
	"```starlark exec output-id=out\nprint(to_table([['n', 'sq'], [2, 4], [3, 9]]))\n```\n\n" +
	"```output id=out\n|   n |  sq |\n| --: | --: |\n|   2 |   4 |\n|   3 |   9 |\n```\n"

func TestRun_InPlace(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "nb.md")
	writeFile(t, path, notebook)

	r := runCLI(t, "", "run", path)
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, executed, readFile(t, path))
}

func TestRun_Check(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "nb.md")
	writeFile(t, path, notebook)

	r := runCLI(t, "", "run", "--check", path)
	require.Equal(t, 1, r.code)
	require.Equal(t, notebook, readFile(t, path), "--check must not write")

	writeFile(t, path, executed)
	r = runCLI(t, "", "run", "--check", path)
	require.Equal(t, 0, r.code, r.stderr)
}

func TestRun_StdinToStdout(t *testing.T) {
	inTempDir(t)

	r := runCLI(t, notebook, "run", "-")
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, executed, r.stdout)
}

func TestRun_UndeliverableOutputIsReported(t *testing.T) {
	inTempDir(t)
	text := "```starlark exec output-id=missing\nprint(1)\n```\n"

	r := runCLI(t, text, "run", "-")
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, text, r.stdout)
	require.Contains(t, r.stderr, "❌ starlark error: output-id \"missing\" matches no block\n")
}

func TestRun_OutputFile(t *testing.T) {
	dir := inTempDir(t)
	in := filepath.Join(dir, "nb.md")
	out := filepath.Join(dir, "out.md")
	writeFile(t, in, notebook)

	r := runCLI(t, "", "run", in, "-o", out)
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, notebook, readFile(t, in))
	require.Equal(t, executed, readFile(t, out))
}

func TestRun_ParseErrorExitCode(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "bad.md")
	writeFile(t, path, "text\n```starlark exec\nprint(1)\n")

	r := runCLI(t, "", "run", path)
	require.Equal(t, 2, r.code)
	require.Contains(t, r.stderr, "Error: fence \"```\" opened at line 2 is never closed")
	require.Contains(t, r.stderr, "(line 2)")
}

func TestRun_MissingFile(t *testing.T) {
	dir := inTempDir(t)
	r := runCLI(t, "", "run", filepath.Join(dir, "missing.md"))
	require.Equal(t, 11, r.code)
}

func TestRun_MetricsFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "nb.md")
	prom := filepath.Join(dir, "mdexec.prom")
	writeFile(t, path, notebook)

	r := runCLI(t, "", "run", "--metrics-file", prom, path)
	require.Equal(t, 0, r.code, r.stderr)
	metrics := readFile(t, prom)
	assert.Contains(t, metrics, `mdexec_block_results_total{language="starlark",result="succeeded"} 1`)
	assert.Contains(t, metrics, `mdexec_run_outcomes_total{outcome="success"} 1`)
}

func TestRun_ConfigFile(t *testing.T) {
	if _, err := exec.LookPath("sed"); err != nil {
		t.Skip("sed not available")
	}
	dir := inTempDir(t)
	writeFile(t, filepath.Join(dir, ".mdexec.yaml"),
		"interpreters:\n  upper:\n    command: [sed, -e, y/abcdefghijklmnopqrstuvwxyz/ABCDEFGHIJKLMNOPQRSTUVWXYZ/]\n")
	path := filepath.Join(dir, "nb.md")
	writeFile(t, path, "```upper exec output-id=out\nshout\n```\n```output id=out\n```\n")

	r := runCLI(t, "", "run", path)
	require.Equal(t, 0, r.code, r.stderr)
	require.Contains(t, readFile(t, path), "```output id=out\nSHOUT\n```")
}

func TestRun_MissingExplicitConfig(t *testing.T) {
	dir := inTempDir(t)
	r := runCLI(t, notebook, "-c", filepath.Join(dir, "nope.yaml"), "run", "-")
	require.Equal(t, 7, r.code)
	require.Contains(t, r.stderr, "configuration file not found")
}

func TestRun_ShellPreludeEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := inTempDir(t)
	t.Setenv(envActAsCLI, "1")

	path := filepath.Join(dir, "nb.md")
	writeFile(t, path, "```csv id=data\na,b\n1,2\n```\n\n"+
		"```sh exec output-id=out\nget_block data | csv_table\nset_block note \"from shell\"\n```\n\n"+
		"```output id=out\n```\n\n"+
		"<!-- id:note -->\n<!-- /id:note -->\n")

	r := runCLI(t, "", "run", path)
	require.Equal(t, 0, r.code, r.stderr)

	got := readFile(t, path)
	require.Contains(t, got, "```output id=out\n|   a |   b |\n| --: | --: |\n|   1 |   2 |\n```")
	require.Contains(t, got, "<!-- id:note -->\nfrom shell\n<!-- /id:note -->")
}

func TestBlocks(t *testing.T) {
	inTempDir(t)

	r := runCLI(t, notebook, "blocks", "-")
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, "| line | kind       | id  | lang     | output-id |\n"+
		"| ---: | :--------- | :-- | :------- | :-------- |\n"+
		"|    3 | executable |     | starlark | out       |\n"+
		"|    7 | output     | out | output   |           |\n", r.stdout)

	r = runCLI(t, notebook, "blocks", "--json", "-")
	require.Equal(t, 0, r.code, r.stderr)
	var infos []blockInfo
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &infos))
	require.Equal(t, []blockInfo{
		{Line: 3, Kind: "executable", Lang: "starlark", OutputID: "out"},
		{Line: 7, Kind: "output", ID: "out", Lang: "output"},
	}, infos)
}

func TestTableFormat(t *testing.T) {
	inTempDir(t)

	r := runCLI(t, "intro\n\n|a|b|\n|-|:-:|\n|long cell|x|\n", "table", "format")
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, "intro\n\n| a         |  b  |\n| --------- | :-: |\n| long cell |  x  |\n", r.stdout)
}

func TestTableCSV(t *testing.T) {
	inTempDir(t)

	r := runCLI(t, "name,qty\napple,2\npear,10\n", "table", "csv")
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, "| name  | qty |\n| :---- | --: |\n| apple |   2 |\n| pear  |  10 |\n", r.stdout)

	r = runCLI(t, "a,\"b\n", "table", "csv")
	require.Equal(t, 2, r.code)
}

func TestBlockCommands(t *testing.T) {
	inTempDir(t)

	doc, err := docmodel.Parse("```csv id=data\nx,y\n```\n<!-- id:note -->\nold\n<!-- /id:note -->\n<!-- id:note -->\n<!-- /id:note -->\n")
	require.NoError(t, err)
	reg := registry.New(doc)
	srv := blockserver.New(reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sock, err := srv.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close(context.Background()) })
	t.Setenv(interp.EnvSocket, sock)

	r := runCLI(t, "", "block", "get", "data")
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, "x,y\n", r.stdout)

	r = runCLI(t, "", "block", "get", "note")
	require.Equal(t, 3, r.code)
	require.Contains(t, r.stderr, `id "note" matches 2 blocks`)

	r = runCLI(t, "", "block", "get", "missing")
	require.Equal(t, 3, r.code)

	r = runCLI(t, "new\ncontent\n", "block", "set", "data")
	require.Equal(t, 0, r.code, r.stderr)
	h, err := reg.Get("data")
	require.NoError(t, err)
	require.Equal(t, "new\ncontent", h.Content())

	r = runCLI(t, "", "block", "set", "data", "inline", "value")
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, "inline value", h.Content())

	r = runCLI(t, "", "block", "query", "note")
	require.Equal(t, 0, r.code, r.stderr)
	require.Equal(t, "note\tregion\t\t4\nnote\tregion\t\t7\n", r.stdout)

	r = runCLI(t, "", "block", "query", "--json")
	require.Equal(t, 0, r.code, r.stderr)
	var blocks []blockserver.Block
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &blocks))
	require.Len(t, blocks, 3)
}

func TestBlockCommands_OutsideRun(t *testing.T) {
	inTempDir(t)
	t.Setenv(interp.EnvSocket, "")

	r := runCLI(t, "", "block", "get", "x")
	require.Equal(t, 7, r.code)
	require.Contains(t, r.stderr, "only work inside a running block")
}

func TestUsageError(t *testing.T) {
	inTempDir(t)
	r := runCLI(t, "", "run")
	require.Equal(t, 2, r.code)
}
