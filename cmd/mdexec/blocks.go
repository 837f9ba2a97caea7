package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"git.home.luguber.info/inful/mdexec/internal/docmodel"
	"git.home.luguber.info/inful/mdexec/internal/tables"
)

// BlocksCmd implements the 'blocks' command.
type BlocksCmd struct {
	File string `arg:"" help:"Markdown document to inspect ('-' for stdin)"`
	JSON bool   `help:"Print JSON instead of a table"`
}

type blockInfo struct {
	Line     int    `json:"line"`
	Kind     string `json:"kind"`
	ID       string `json:"id,omitempty"`
	Lang     string `json:"lang,omitempty"`
	OutputID string `json:"output_id,omitempty"`
}

func (b *BlocksCmd) Run(g *Global) error {
	text, err := g.readInput(b.File)
	if err != nil {
		return err
	}
	doc, err := docmodel.Parse(text)
	if err != nil {
		return err
	}

	var infos []blockInfo
	for _, blk := range doc.Blocks {
		if blk.Kind == docmodel.KindPlain {
			continue
		}
		infos = append(infos, blockInfo{
			Line:     blk.Line,
			Kind:     blk.Kind.String(),
			ID:       blk.ID(),
			Lang:     blk.Lang(),
			OutputID: blk.OutputID(),
		})
	}

	if b.JSON {
		enc := json.NewEncoder(g.Stdout)
		enc.SetIndent("", "  ")
		if infos == nil {
			infos = []blockInfo{}
		}
		return enc.Encode(infos)
	}

	rows := [][]string{{"line", "kind", "id", "lang", "output-id"}}
	for _, i := range infos {
		rows = append(rows, []string{strconv.Itoa(i.Line), i.Kind, i.ID, i.Lang, i.OutputID})
	}
	_, err = fmt.Fprintln(g.Stdout, tables.FromRows(rows, tables.Options{}))
	return err
}
