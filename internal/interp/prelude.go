package interp

import (
	_ "embed"
	"strings"
)

// Prelude selects the helper functions injected ahead of a subprocess script.
type Prelude string

const (
	PreludeNone   Prelude = "none"
	PreludeShell  Prelude = "shell"
	PreludePython Prelude = "python"
)

var (
	//go:embed prelude/shell.sh
	shellPrelude string
	//go:embed prelude/python.py
	pythonPrelude string
)

// ParsePrelude maps a configuration value to a Prelude. Unknown values report false.
func ParsePrelude(s string) (Prelude, bool) {
	switch Prelude(strings.ToLower(strings.TrimSpace(s))) {
	case "", PreludeNone:
		return PreludeNone, true
	case PreludeShell:
		return PreludeShell, true
	case PreludePython:
		return PreludePython, true
	default:
		return PreludeNone, false
	}
}

// Source returns the helper code, or "" for PreludeNone.
func (p Prelude) Source() string {
	switch p {
	case PreludeShell:
		return shellPrelude
	case PreludePython:
		return pythonPrelude
	default:
		return ""
	}
}

// Extension returns the script file extension the interpreter expects.
func (p Prelude) Extension() string {
	switch p {
	case PreludeShell:
		return ".sh"
	case PreludePython:
		return ".py"
	default:
		return ""
	}
}
