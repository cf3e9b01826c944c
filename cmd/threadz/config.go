package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/zoobzio/threadz"
)

type fileConfig struct {
	Name     string `toml:"name"`
	CPUs     []int  `toml:"cpus"`
	Nice     int    `toml:"nice"`
	LogLevel string `toml:"log_level"`
	Repeat   int    `toml:"repeat"`
}

// demoConfig is what the demos and benchmarks run with.
type demoConfig struct {
	Attr     threadz.Attr
	LogLevel zerolog.Level
	Repeat   int
}

func defaultConfig() demoConfig {
	return demoConfig{
		Attr:     threadz.Attr{Name: "demo"},
		LogLevel: zerolog.InfoLevel,
		Repeat:   1,
	}
}

func loadConfig(path string) (demoConfig, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return demoConfig{}, fmt.Errorf("load threadz config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return demoConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Attr.Name = strings.TrimSpace(raw.Name)
	}

	if meta.IsDefined("cpus") {
		cfg.Attr.CPUs = append([]int(nil), raw.CPUs...)
	}

	if meta.IsDefined("nice") {
		cfg.Attr.Nice = threadz.NiceValue(raw.Nice)
	}

	if meta.IsDefined("log_level") {
		level, err := zerolog.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return demoConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = level
	}

	if meta.IsDefined("repeat") {
		if raw.Repeat < 1 {
			return demoConfig{}, fmt.Errorf("repeat must be at least 1, got %d", raw.Repeat)
		}
		cfg.Repeat = raw.Repeat
	}

	if err := cfg.Attr.Validate(); err != nil {
		return demoConfig{}, fmt.Errorf("validate thread attributes: %w", err)
	}
	return cfg, nil
}

// attr returns a fresh copy of the configured attributes, since a handle
// holds on to the pointer it is given.
func (c demoConfig) attr() *threadz.Attr {
	a := c.Attr
	a.CPUs = append([]int(nil), c.Attr.CPUs...)
	return &a
}
