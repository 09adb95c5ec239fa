package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type LogCfg struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Engine holds the process-level runtime options.
type Engine struct {
	StorePath   string `koanf:"store_path"`
	WorkerYml   string `koanf:"worker_yml"`
	MetricsPort int    `koanf:"metrics_port"`
	Log         LogCfg `koanf:"log"`
}

// LoadEngine merges YAML (if present) with env-vars
// (prefix `KLITE__`, delimiter `__`).
func LoadEngine(path string) (Engine, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Engine{}, err
		}
	}
	_ = k.Load(env.Provider("KLITE__", "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "KLITE__"))
	}), nil)

	var cfg Engine
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(c *Engine) {
	if c.StorePath == "" {
		c.StorePath = "klite.db"
	}
	if c.WorkerYml == "" {
		c.WorkerYml = "worker.yml"
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9100
	}
}
