package blockserver

// Block is the wire form of a registry handle.
type Block struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Lang    string `json:"lang,omitempty"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// BlocksResponse is returned by GET /blocks.
type BlocksResponse struct {
	Blocks []Block `json:"blocks"`
}

// SetBlockRequest is the body of PUT /blocks/{id}.
type SetBlockRequest struct {
	Content *string `json:"content"`
}

// TextRequest carries Markdown or CSV text.
type TextRequest struct {
	Text string `json:"text"`
}

// TextResponse carries rendered Markdown.
type TextResponse struct {
	Text string `json:"text"`
}

// RowsResponse carries parsed table rows, header first.
type RowsResponse struct {
	Rows [][]string `json:"rows"`
}

// BuildRequest is the body of POST /tables/build. Either Rows (header first)
// or Records with Fields is set.
type BuildRequest struct {
	Rows    [][]any          `json:"rows,omitempty"`
	Records []map[string]any `json:"records,omitempty"`
	Fields  []string         `json:"fields,omitempty"`
	Align   []string         `json:"align,omitempty"`
}
