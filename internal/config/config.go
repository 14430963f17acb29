package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// RemoteEngine describes an external language server that serves one
// dialect.
type RemoteEngine struct {
	Dialect    string   `json:"dialect"`
	Command    string   `json:"command"`
	Args       []string `json:"args"`
	Extensions []string `json:"extensions"`
	// LanguageID sent in didOpen. Defaults to the dialect.
	LanguageID string `json:"language_id"`
}

type Config struct {
	Root string `json:"root"` // only for check and dump
	// IndexPath is the sqlite file of the workspace index. Empty means
	// "<state dir>/<root hash>/index.sqlite", ":memory:" keeps it in memory.
	IndexPath           string            `json:"index_path"`
	ScanIntervalMinutes int               `json:"scan_interval_minutes"`
	Extensions          map[string]string `json:"extensions"`
	Remote              []RemoteEngine    `json:"remote"`
	// Settings seeds the settings tree until the client sends its own.
	Settings map[string]any `json:"settings"`
}

var defaultConfig = Config{
	Root:                ".",
	ScanIntervalMinutes: 5,
}

func Load(v any) (Config, error) {
	cfg := defaultConfig

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}

	// only fields present in src will overwrite.
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}

	return cfg, nil
}

// LoadFromJSON reads JSON from r into a Config.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := defaultConfig

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFile reads a YAML, TOML or JSON config file, picked by extension.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return Load(raw)
	case ".toml":
		var raw map[string]any
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return Load(raw)
	case ".json":
		return LoadFromJSON(bytes.NewReader(data))
	}
	return Config{}, fmt.Errorf("unsupported config format: %s", path)
}

// Overlay applies the fields of v (usually initializationOptions) on top of
// an already loaded config.
func (c Config) Overlay(v any) (Config, error) {
	if v == nil {
		return c, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}
	c.Extensions = maps.Clone(c.Extensions)
	c.Settings = maps.Clone(c.Settings)
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}
	return c, nil
}
