package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/reoring/goplist"
)

// fileConfig is the YAML document accepted by --config.
type fileConfig struct {
	Format        string `yaml:"format"`
	Prettify      *bool  `yaml:"prettify"`
	MaxDepth      int    `yaml:"max_depth"`
	DuplicateKeys string `yaml:"duplicate_keys"`
	JSONComments  bool   `yaml:"json_comments"`
	Color         string `yaml:"color"`
}

// loadConfig reads a YAML config file. Unknown keys are rejected.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// commonFlags are the flags shared by every subcommand.
type commonFlags struct {
	configPath    string
	verbose       bool
	maxDepth      int
	duplicateKeys string
	jsonComments  bool

	format   string
	prettify bool
	color    string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML config file")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log decode and encode steps to stderr")
	fs.IntVar(&c.maxDepth, "max-depth", 0, "maximum container nesting (0 uses the library default)")
	fs.StringVar(&c.duplicateKeys, "duplicate-keys", "last", "duplicate dictionary keys: last, first or error")
	fs.BoolVar(&c.jsonComments, "json-comments", false, "accept // and /* */ comments in JSON input")
}

func (c *commonFlags) registerOutput(fs *pflag.FlagSet) {
	fs.StringVarP(&c.format, "format", "f", "", "output format: xml, binary, json or openstep")
	fs.BoolVarP(&c.prettify, "prettify", "p", false, "indent JSON and OpenStep output")
}

// settings is the merged result of the config file and the flags.
type settings struct {
	format      goplist.Format
	decodeOpt   goplist.DecodeOpt
	encodeOpt   goplist.EncodeOpt
	color       string
	prettifySet bool
}

// resolve merges the config file with flags; flags given on the command
// line win.
func (c *commonFlags) resolve(fs *pflag.FlagSet) (settings, error) {
	var file fileConfig
	if c.configPath != "" {
		var err error
		if file, err = loadConfig(c.configPath); err != nil {
			return settings{}, err
		}
	}

	format := file.Format
	if fs.Changed("format") || format == "" {
		format = c.format
	}
	dup := file.DuplicateKeys
	if fs.Changed("duplicate-keys") || dup == "" {
		dup = c.duplicateKeys
	}
	maxDepth := file.MaxDepth
	if fs.Changed("max-depth") || maxDepth == 0 {
		maxDepth = c.maxDepth
	}
	color := file.Color
	if fs.Changed("color") || color == "" {
		color = c.color
	}

	var s settings
	if format != "" {
		f, err := goplist.ParseFormat(format)
		if err != nil {
			return settings{}, fmt.Errorf("%w: %v", errUsage, err)
		}
		s.format = f
	}
	policy, err := parseDuplicatePolicy(dup)
	if err != nil {
		return settings{}, err
	}
	if maxDepth < 0 {
		return settings{}, fmt.Errorf("%w: --max-depth must not be negative", errUsage)
	}
	switch color {
	case "", "auto", "always", "never":
	default:
		return settings{}, fmt.Errorf("%w: --color must be auto, always or never", errUsage)
	}

	s.decodeOpt = goplist.DecodeOpt{
		MaxDepth:          maxDepth,
		OnDuplicateKey:    policy,
		AllowJSONComments: c.jsonComments || file.JSONComments,
	}
	s.encodeOpt = goplist.EncodeOpt{MaxDepth: maxDepth, Prettify: c.prettify}
	if !fs.Changed("prettify") && file.Prettify != nil {
		s.encodeOpt.Prettify = *file.Prettify
		s.prettifySet = true
	}
	s.color = color
	return s, nil
}

func parseDuplicatePolicy(name string) (goplist.DuplicatePolicy, error) {
	switch name {
	case "", "last":
		return goplist.LastWins, nil
	case "first":
		return goplist.FirstWins, nil
	case "error":
		return goplist.RejectDuplicates, nil
	}
	return 0, fmt.Errorf("%w: unknown duplicate key policy %q", errUsage, name)
}
