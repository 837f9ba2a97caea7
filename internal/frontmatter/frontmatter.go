package frontmatter

import (
	"errors"
	"strings"

	"gopkg.in/yaml.v3"
)

// Section describes a YAML frontmatter block at the start of a document.
//
// Raw is the YAML text without delimiters. End is the byte offset just past the
// closing delimiter line, so content[:End] is the whole frontmatter block and
// content[End:] is the Markdown body.
type Section struct {
	Raw     string
	End     int
	Had     bool
	Newline string
}

// Locate finds YAML frontmatter (`---` delimited) at the start of content.
//
// If the document does not start with a frontmatter delimiter, Had is false and End is 0.
func Locate(content string) (Section, error) {
	nl := detectNewline(content)
	open := "---" + nl
	if !strings.HasPrefix(content, open) {
		return Section{Newline: nl}, nil
	}

	start := len(open)
	closeLine := "---" + nl
	if strings.HasPrefix(content[start:], closeLine) {
		return Section{End: start + len(closeLine), Had: true, Newline: nl}, nil
	}

	closeSeq := nl + "---" + nl
	idx := strings.Index(content[start:], closeSeq)
	if idx < 0 {
		// A closing delimiter on the very last line has no trailing newline.
		if strings.HasSuffix(content, nl+"---") {
			rawEnd := len(content) - len("---")
			return Section{Raw: content[start:rawEnd], End: len(content), Had: true, Newline: nl}, nil
		}
		return Section{Newline: nl}, ErrMissingClosingDelimiter
	}

	rawEnd := start + idx + len(nl)
	return Section{
		Raw:     content[start:rawEnd],
		End:     start + idx + len(closeSeq),
		Had:     true,
		Newline: nl,
	}, nil
}

// ParseYAML parses raw YAML frontmatter (without --- delimiters) into a map.
func ParseYAML(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// IsMapping reports whether raw is empty or holds a single YAML mapping.
// Prose or a bare scalar between two `---` lines is not frontmatter.
func IsMapping(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return true
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return false
	}
	return node.Kind == yaml.DocumentNode && len(node.Content) == 1 && node.Content[0].Kind == yaml.MappingNode
}

// DecodeKey decodes the value stored under a top-level key into out.
//
// It reports false when the key is absent; out is left untouched in that case.
func DecodeKey(raw, key string, out any) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return false, nil
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return false, err
	}
	node, ok := doc[key]
	if !ok {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return true, err
	}
	return true, nil
}

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

func detectNewline(content string) string {
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			if i > 0 && content[i-1] == '\r' {
				return "\r\n"
			}
			return "\n"
		}
	}
	return "\n"
}
