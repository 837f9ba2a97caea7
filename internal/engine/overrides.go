package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/frontmatter"
)

// FrontmatterKey is the top-level frontmatter key holding per-document settings.
const FrontmatterKey = "mdexec"

// documentSettings mirrors the `mdexec:` frontmatter map.
//
//	mdexec:
//	  timeout: 30s
//	  env:
//	    REGION: eu-north-1
type documentSettings struct {
	Timeout string            `yaml:"timeout"`
	Env     map[string]string `yaml:"env"`
}

type overrides struct {
	timeout time.Duration
	env     []string
}

func readOverrides(raw string) (overrides, error) {
	var s documentSettings
	found, err := frontmatter.DecodeKey(raw, FrontmatterKey, &s)
	if err != nil {
		return overrides{}, errors.WrapError(err, errors.CategoryConfig, "invalid frontmatter settings").
			WithContext("key", FrontmatterKey).
			Fatal().
			Build()
	}
	if !found {
		return overrides{}, nil
	}

	var ov overrides
	if s.Timeout != "" {
		d, err := time.ParseDuration(strings.TrimSpace(s.Timeout))
		if err != nil || d <= 0 {
			return overrides{}, errors.ConfigError(fmt.Sprintf("invalid frontmatter timeout %q", s.Timeout)).
				WithContext("key", FrontmatterKey+".timeout").
				Build()
		}
		ov.timeout = d
	}

	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		ov.env = append(ov.env, k+"="+s.Env[k])
	}
	return ov, nil
}
