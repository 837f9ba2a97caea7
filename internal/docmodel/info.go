package docmodel

import (
	"strings"
	"time"
)

// Info is the parsed info string of a fenced block, e.g. `python exec id=foo output-id=bar`.
type Info struct {
	Raw   string
	Lang  string
	Exec  bool
	Attrs map[string]string
	Flags []string
}

// ID returns the `id` attribute.
func (i Info) ID() string {
	return i.Attr("id")
}

// OutputID returns the `output-id` attribute (`output_id` is accepted too).
func (i Info) OutputID() string {
	return i.Attr("output-id")
}

// Attr looks up an attribute; `-` and `_` are interchangeable in keys.
func (i Info) Attr(key string) string {
	if v, ok := i.Attrs[key]; ok {
		return v
	}
	if v, ok := i.Attrs[strings.ReplaceAll(key, "-", "_")]; ok {
		return v
	}
	return i.Attrs[strings.ReplaceAll(key, "_", "-")]
}

// HasFlag reports whether a bare flag was present.
func (i Info) HasFlag(flag string) bool {
	for _, f := range i.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Timeout returns the per-block `timeout` attribute, if set and valid.
func (i Info) Timeout() (time.Duration, bool) {
	raw := i.Attr("timeout")
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// ParseInfo parses a fence info string.
//
// The first token is the language or type. `exec` (or `mdexec`) marks the block
// executable, `key=value` tokens become attributes with surrounding quotes removed,
// and any other token is kept as a flag. Tokens are split like a shell would, so
// `title="two words"` stays one attribute.
func ParseInfo(raw string) Info {
	info := Info{Raw: raw, Attrs: map[string]string{}}

	parts := splitInfo(raw)
	if len(parts) == 0 {
		return info
	}

	info.Lang = parts[0]
	for _, part := range parts[1:] {
		if part == "exec" || part == "mdexec" {
			info.Exec = true
			continue
		}
		if key, value, ok := strings.Cut(part, "="); ok && key != "" {
			info.Attrs[key] = strings.Trim(value, `"'`)
			continue
		}
		info.Flags = append(info.Flags, part)
	}
	return info
}

// splitInfo tokenises an info string with shell-like quoting. Unbalanced quotes
// fall back to plain whitespace splitting.
func splitInfo(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		inToken bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inToken = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			if inToken {
				out = append(out, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 || escaped {
		return strings.Fields(s)
	}
	if inToken {
		out = append(out, cur.String())
	}
	return out
}
