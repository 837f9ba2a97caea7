package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"git.home.luguber.info/inful/mdexec/internal/blockclient"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
)

// BlockCmd groups the commands that talk to the block server of a running
// document. They are what the shell helpers `get_block`, `set_block` and
// `query_blocks` call.
type BlockCmd struct {
	Get   BlockGetCmd   `cmd:"" help:"Print the content of the block with ID"`
	Set   BlockSetCmd   `cmd:"" help:"Replace the content of the block with ID"`
	Query BlockQueryCmd `cmd:"" help:"List blocks with ID, or every identified block"`
}

// BlockGetCmd implements 'block get'.
type BlockGetCmd struct {
	ID string `arg:"" help:"Block identifier"`
}

func (c *BlockGetCmd) Run(g *Global) error {
	client, err := blockclient.FromEnv()
	if err != nil {
		return err
	}
	b, err := client.Get(g.Ctx, c.ID)
	if err != nil {
		return err
	}
	return printContent(g.Stdout, b.Content)
}

// BlockSetCmd implements 'block set'.
type BlockSetCmd struct {
	ID      string   `arg:"" help:"Block identifier"`
	Content []string `arg:"" optional:"" help:"New content, joined with spaces; read from stdin when omitted"`
}

func (c *BlockSetCmd) Run(g *Global) error {
	client, err := blockclient.FromEnv()
	if err != nil {
		return err
	}

	var content string
	if len(c.Content) > 0 {
		content = strings.Join(c.Content, " ")
	} else {
		data, err := io.ReadAll(g.Stdin)
		if err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to read stdin").Build()
		}
		content = strings.TrimRight(string(data), "\r\n")
	}

	_, err = client.Set(g.Ctx, c.ID, content)
	return err
}

// BlockQueryCmd implements 'block query'.
type BlockQueryCmd struct {
	ID   string `arg:"" optional:"" help:"Block identifier; omit to list every identified block"`
	JSON bool   `help:"Print the blocks, content included, as JSON"`
}

func (c *BlockQueryCmd) Run(g *Global) error {
	client, err := blockclient.FromEnv()
	if err != nil {
		return err
	}
	blocks, err := client.Query(g.Ctx, c.ID)
	if err != nil {
		return err
	}

	if c.JSON {
		return json.NewEncoder(g.Stdout).Encode(blocks)
	}
	for _, b := range blocks {
		if _, err := fmt.Fprintf(g.Stdout, "%s\t%s\t%s\t%d\n", b.ID, b.Kind, b.Lang, b.Line); err != nil {
			return err
		}
	}
	return nil
}

func printContent(w io.Writer, content string) error {
	if content == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, content)
	return err
}
