// Package config loads the optional application config used by watch mode
// and as defaults for one-shot scans.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration loaded from evfind.yaml.
type Config struct {
	Roots         []string `yaml:"roots"`
	CalendarFiles []string `yaml:"calendar_files"`
	MailboxFiles  []string `yaml:"mailbox_files"`
	RulesPath     string   `yaml:"rules_path"`
	OutDir        string   `yaml:"out_dir"`
	Schedule      string   `yaml:"schedule"`
	MaxBytes      int64    `yaml:"max_bytes"`
	Workers       Workers  `yaml:"workers"`
	LogLevel      string   `yaml:"log_level"`
}

// Workers holds concurrency knobs for the scan pipeline.
type Workers struct {
	Walk    int `yaml:"walk"`
	Process int `yaml:"process"`
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.RulesPath == "" {
		c.RulesPath = "config/rules.yml"
	}
	if c.OutDir == "" {
		c.OutDir = "out"
	}
	if c.Schedule == "" {
		c.Schedule = "0 2 * * 0"
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = 50_000_000
	}
	if c.Workers.Walk == 0 {
		c.Workers.Walk = 4
	}
	if c.Workers.Process == 0 {
		c.Workers.Process = 4
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so one-shot
// scans work without any config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		var cfg Config
		cfg.applyDefaults()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
