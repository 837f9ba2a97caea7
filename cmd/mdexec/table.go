package main

import (
	"fmt"
	"io"

	"git.home.luguber.info/inful/mdexec/internal/tables"
)

// TableCmd groups the pipe-table utilities. Both read FILE, or stdin when it
// is omitted, and write to stdout.
type TableCmd struct {
	Format TableFormatCmd `cmd:"" help:"Re-pad every pipe table in the input"`
	CSV    TableCSVCmd    `cmd:"" name:"csv" help:"Render CSV (header first) as a pipe table"`
}

// TableFormatCmd implements 'table format'.
type TableFormatCmd struct {
	File string `arg:"" optional:"" help:"Input file (default stdin)"`
}

func (c *TableFormatCmd) Run(g *Global) error {
	text, err := g.readInput(c.File)
	if err != nil {
		return err
	}
	_, err = io.WriteString(g.Stdout, tables.Format(text))
	return err
}

// TableCSVCmd implements 'table csv'.
type TableCSVCmd struct {
	File    string   `arg:"" optional:"" help:"Input file (default stdin)"`
	Align   []string `help:"Column alignments (left, right, center, none); inferred when omitted"`
	NoInfer bool     `name:"no-infer" help:"Do not right-align numeric columns"`
}

func (c *TableCSVCmd) Run(g *Global) error {
	text, err := g.readInput(c.File)
	if err != nil {
		return err
	}

	opts := tables.Options{NoNumericAlign: c.NoInfer}
	for _, a := range c.Align {
		opts.Alignments = append(opts.Alignments, tables.ParseAlign(a))
	}

	out, err := tables.FromCSV(text, opts)
	if err != nil {
		return err
	}
	if out == "" {
		return nil
	}
	_, err = fmt.Fprintln(g.Stdout, out)
	return err
}
