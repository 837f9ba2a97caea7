package interp

import (
	"slices"
	"strings"
	"sync"
)

// Languages maps declared block languages to interpreters.
// Lookups are case-insensitive and resolve aliases.
type Languages struct {
	mu     sync.RWMutex
	byName map[string]Interpreter
}

// NewLanguages returns an empty language table.
func NewLanguages() *Languages {
	return &Languages{byName: make(map[string]Interpreter)}
}

// DefaultLanguages returns the built-in table: Starlark in-process, and bash,
// sh and python as subprocesses.
func DefaultLanguages() *Languages {
	l := NewLanguages()
	l.Register(NewStarlark(), "star")
	l.Register(NewSubprocess("bash", []string{"bash"}, PreludeShell))
	l.Register(NewSubprocess("sh", []string{"sh"}, PreludeShell))
	l.Register(NewSubprocess("python", []string{"python3"}, PreludePython), "py", "python3")
	return l
}

// Register adds in under its name and aliases, replacing earlier entries.
func (l *Languages) Register(in Interpreter, aliases ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byName[strings.ToLower(in.Name())] = in
	for _, a := range aliases {
		l.byName[strings.ToLower(a)] = in
	}
}

// Lookup returns the interpreter for a declared language.
func (l *Languages) Lookup(lang string) (Interpreter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	in, ok := l.byName[strings.ToLower(strings.TrimSpace(lang))]
	return in, ok
}

// Names returns every registered name and alias, sorted.
func (l *Languages) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.byName))
	for n := range l.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
