package config

import (
	"os"
	"slices"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
)

// Environment returns the KEY=VALUE pairs every block receives on top of the
// process environment: variables from EnvFiles first, then Env.
//
// Variables already set in the process environment are not overridden by
// EnvFiles. Env entries always apply. Later files win over earlier ones.
func (c *Config) Environment() ([]string, error) {
	vars := map[string]string{}
	for _, f := range c.EnvFiles {
		path := c.resolve(f)
		fileVars, err := godotenv.Read(path)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read env file").
				WithContext("path", path).
				Build()
		}
		for k, v := range fileVars {
			if _, set := os.LookupEnv(k); set {
				continue
			}
			vars[k] = v
		}
	}
	for k, v := range c.Env {
		vars[k] = v
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}
