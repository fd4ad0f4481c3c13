// Package config holds interpreter constants and the optional per-directory
// settings file.
//
// A lox.yaml in the working directory tunes debug output and the REPL:
//
//	print_code: true        # disassemble each compiled function
//	trace_execution: false  # disassemble each instruction as it executes
//	prompt: "lox> "
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level lox.yaml configuration.
type Config struct {
	// PrintCode disassembles each function as its compilation finishes.
	PrintCode bool `yaml:"print_code,omitempty"`

	// TraceExecution disassembles each instruction as it executes.
	TraceExecution bool `yaml:"trace_execution,omitempty"`

	// Prompt is the REPL prompt. Defaults to "> ".
	Prompt string `yaml:"prompt,omitempty"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{Prompt: DefaultPrompt}
}

// Load reads the configuration at path. A missing file is not an error: the
// defaults are returned. A file that exists but does not parse is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	return cfg, nil
}
