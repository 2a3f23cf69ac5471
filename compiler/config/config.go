// Package config loads the optional cem.yaml project file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
)

type Config struct {
	// Entry is the word the program starts from.
	Entry string `yaml:"entry,omitempty"`

	// Runtime is the runtime library to link with.
	// Relative paths are resolved against the config directory.
	Runtime string `yaml:"runtime,omitempty"`

	CC     string   `yaml:"cc,omitempty"`
	CCArgs []string `yaml:"cc_args,omitempty"`

	// Output is the executable path. Derived from the input name if empty.
	Output string `yaml:"output,omitempty"`

	Debug   bool `yaml:"debug,omitempty"`
	Strands bool `yaml:"strands,omitempty"`
	EmitIR  bool `yaml:"emit_ir,omitempty"`

	// Path is the file the config was loaded from.
	Path string `yaml:"-"`
}

var Names = []string{"cem.yaml", "cem.yml"}

const (
	DefaultEntry = "main"
	DefaultCC    = "clang"
)

// Default returns the config used when no file is found.
func Default() *Config {
	var c Config

	c.setDefaults()

	return &c
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	return Parse(data, path)
}

// Parse parses config content. path is used for errors and relative paths.
func Parse(data []byte, path string) (*Config, error) {
	var c Config

	err := yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, errors.Wrap(err, "parse %v", path)
	}

	c.Path = path

	err = c.validate()
	if err != nil {
		return nil, errors.Wrap(err, "%v", path)
	}

	c.setDefaults()

	return &c, nil
}

// Find searches dir and its parents for a config file.
// It returns an empty path and no error if there is none.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, "resolve dir")
	}

	for {
		for _, n := range Names {
			p := filepath.Join(dir, n)

			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}

		dir = parent
	}
}

// LoadFor loads the config governing the input file or the default one.
func LoadFor(input string) (*Config, error) {
	p, err := Find(filepath.Dir(input))
	if err != nil {
		return nil, err
	}

	if p == "" {
		return Default(), nil
	}

	return Load(p)
}

func (c *Config) validate() error {
	if strings.ContainsAny(c.Entry, " \t\r\n()[]|\"#") {
		return errors.New("entry: invalid word name: %q", c.Entry)
	}

	if c.EmitIR && c.Runtime != "" {
		return errors.New("runtime is not used with emit_ir")
	}

	for i, a := range c.CCArgs {
		if strings.TrimSpace(a) == "" {
			return errors.New("cc_args[%d]: empty argument", i)
		}
	}

	return nil
}

func (c *Config) setDefaults() {
	if c.Entry == "" {
		c.Entry = DefaultEntry
	}

	if c.CC == "" {
		c.CC = DefaultCC
	}

	if c.Runtime != "" && c.Path != "" && !filepath.IsAbs(c.Runtime) {
		c.Runtime = filepath.Join(filepath.Dir(c.Path), c.Runtime)
	}
}

// OutputFor returns the executable or IR path for the input file.
func (c *Config) OutputFor(input string) string {
	if c.Output != "" {
		return c.Output
	}

	base := strings.TrimSuffix(input, filepath.Ext(input))

	if c.EmitIR {
		return base + ".ll"
	}

	return base
}
