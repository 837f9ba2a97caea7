package config

import (
	"fmt"
	"slices"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/interp"
)

func (in Interpreter) prelude(name string) (interp.Prelude, error) {
	if in.Prelude == "" {
		return interp.PreludeNone, nil
	}
	p, ok := interp.ParsePrelude(in.Prelude)
	if !ok {
		return "", errors.ConfigError(fmt.Sprintf("interpreter %q: unknown prelude %q", name, in.Prelude)).
			WithContext("interpreter", name).
			Build()
	}
	return p, nil
}

// Languages returns the built-in language table extended with the configured
// interpreters. A configured name or alias replaces a built-in one.
func (c *Config) Languages() (*interp.Languages, error) {
	langs := interp.DefaultLanguages()

	names := make([]string, 0, len(c.Interpreters))
	for name := range c.Interpreters {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		in := c.Interpreters[name]
		p, err := in.prelude(name)
		if err != nil {
			return nil, err
		}
		langs.Register(interp.NewSubprocess(name, slices.Clone(in.Command), p), in.Aliases...)
	}
	return langs, nil
}
