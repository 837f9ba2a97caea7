package tables

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromRows_InfersNumericAlignment(t *testing.T) {
	out := FromRows([][]string{{"Name", "Age"}, {"Alice", "30"}, {"Bob", "9"}}, Options{})
	require.Equal(t, "| Name  | Age |\n| :---- | --: |\n| Alice |  30 |\n| Bob   |   9 |", out)
	require.Equal(t, out, Format(out))
}

func TestFromRows_ExplicitAlignments(t *testing.T) {
	out := FromRows([][]string{{"A", "B", "C"}, {"1", "2", "3"}}, Options{Alignments: []Align{AlignCenter}})
	require.Equal(t, "|  A  | B   | C   |\n| :-: | --- | --- |\n|  1  | 2   | 3   |", out)
}

func TestFromRows_NoNumericAlign(t *testing.T) {
	out := FromRows([][]string{{"A"}, {"1"}}, Options{NoNumericAlign: true})
	require.Equal(t, "| A   |\n| --- |\n| 1   |", out)
}

func TestFromRows_EscapesPipes(t *testing.T) {
	out := FromRows([][]string{{"expr"}, {"a|b"}}, Options{})
	require.Equal(t, [][]string{{"expr"}, {"a|b"}}, Parse(out))
}

func TestFromRows_Empty(t *testing.T) {
	require.Equal(t, "", FromRows(nil, Options{}))
}

func TestInferAligns(t *testing.T) {
	rows := [][]string{{"Name", "Age", "Score"}, {"Alice", "30", "98.5"}, {"Bob", "9", ""}}
	require.Equal(t, []Align{AlignLeft, AlignRight, AlignRight}, inferAligns(rows, 3))
	require.Equal(t, []Align{AlignLeft, AlignLeft}, inferAligns([][]string{{"a", "b"}}, 2))
}

func TestFromRecords(t *testing.T) {
	out := FromRecords([]map[string]string{
		{"name": "Alice", "age": "30"},
		{"name": "Bob"},
	}, []string{"name", "age"}, Options{})
	require.Equal(t, "| name  | age |\n| :---- | --: |\n| Alice |  30 |\n| Bob   |     |", out)

	sorted := FromRecords([]map[string]string{{"b": "x", "a": "y"}}, nil, Options{})
	require.Equal(t, [][]string{{"a", "b"}, {"y", "x"}}, Parse(sorted))
}

func TestFromCSV(t *testing.T) {
	out, err := FromCSV("name,qty\napple,2\n", Options{})
	require.NoError(t, err)
	require.Equal(t, "| name  | qty |\n| :---- | --: |\n| apple |   2 |", out)

	_, err = FromCSV("a,\"b\n", Options{})
	require.Error(t, err)
}

func TestParseAlign(t *testing.T) {
	require.Equal(t, AlignRight, ParseAlign("Right"))
	require.Equal(t, AlignCenter, ParseAlign("center"))
	require.Equal(t, AlignLeft, ParseAlign("l"))
	require.Equal(t, AlignNone, ParseAlign("?"))
	require.Equal(t, "center", AlignCenter.String())
}
