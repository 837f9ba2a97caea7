// Package config loads the optional .mdexec.yaml configuration.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = ".mdexec.yaml"

// Config represents the application configuration.
type Config struct {
	// Timeout is the default per-block execution budget, e.g. "30s". Empty means none.
	Timeout      string                 `yaml:"timeout,omitempty"`
	Interpreters map[string]Interpreter `yaml:"interpreters,omitempty"`
	// EnvFiles are dotenv files whose variables are passed to every block.
	// Relative paths resolve against the config file's directory.
	EnvFiles []string          `yaml:"env_files,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Logging  Logging           `yaml:"logging"`
	Metrics  Metrics           `yaml:"metrics"`

	dir string
}

// Interpreter configures one language.
type Interpreter struct {
	Command []string `yaml:"command"`
	Prelude string   `yaml:"prelude,omitempty"` // none | shell | python
	Aliases []string `yaml:"aliases,omitempty"`
}

// Logging represents logging configuration.
type Logging struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Metrics represents metrics export configuration.
type Metrics struct {
	// Textfile is written after every run in the node-exporter textfile format.
	Textfile string `yaml:"textfile,omitempty"`
	// Listen is the address `watch` serves /metrics on, e.g. ":9464".
	Listen string `yaml:"listen,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: Logging{Level: LogLevelInfo, Format: LogFormatText},
		dir:     ".",
	}
}

// Load loads configuration from path.
//
// A missing file is an error unless path is DefaultFile, in which case the
// defaults are returned. Environment variables in the file are expanded.
func Load(path string) (*Config, error) {
	explicit := path != "" && path != DefaultFile
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) && !explicit {
			return Default(), nil
		}
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
				WithContext("path", path).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read config file").
			WithContext("path", path).
			Fatal().
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes, normalises and validates configuration YAML.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").
			Fatal().
			Build()
	}

	if err := cfg.Logging.validate(); err != nil {
		return nil, err
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	for name, in := range c.Interpreters {
		if strings.TrimSpace(name) == "" {
			return errors.ConfigError("interpreter name must not be empty").Build()
		}
		if len(in.Command) == 0 || strings.TrimSpace(in.Command[0]) == "" {
			return errors.ConfigError(fmt.Sprintf("interpreter %q: command must not be empty", name)).
				WithContext("interpreter", name).
				Build()
		}
		if _, err := in.prelude(name); err != nil {
			return err
		}
	}
	return nil
}

// TimeoutDuration parses Timeout. Zero means no timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(c.Timeout))
	if err != nil || d < 0 {
		return 0, errors.ConfigError(fmt.Sprintf("invalid timeout %q", c.Timeout)).
			WithContext("field", "timeout").
			Build()
	}
	return d, nil
}

// Dir returns the directory relative paths in the configuration resolve against.
func (c *Config) Dir() string {
	if c.dir == "" {
		return "."
	}
	return c.dir
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}
