// Package config loads the optional site2ts.yaml configuration file.
// Every field has a default: a project with no config file at all is
// fully usable.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/site2ts/internal/layout"
)

// DefaultFile is looked for in the working directory when no --config
// flag is given.
const DefaultFile = "site2ts.yaml"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is the full server configuration.
type Config struct {
	// Root is the project-relative state directory.
	Root string `yaml:"root"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`

	Worker WorkerConfig `yaml:"worker"`
	API    APIConfig    `yaml:"api"`
}

// WorkerConfig describes how the worker subprocess is launched.
type WorkerConfig struct {
	// Command is the argv used to start the worker.
	Command []string `yaml:"command"`
}

// APIConfig controls the optional read-only inspection server.
type APIConfig struct {
	// Listen enables the HTTP server when non-empty, e.g. "127.0.0.1:7333".
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Root:     layout.DefaultRootName,
		LogLevel: "INFO",
		Worker: WorkerConfig{
			Command: []string{"node", "node/site2ts-worker/dist/index.js"},
		},
	}
}

// Load reads configuration from path. An empty path falls back to
// DefaultFile if it exists, else to Default(). Values of the form
// ${NAME} are expanded from the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return Default(), nil
		}
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Root == "" {
		return fmt.Errorf("root must not be empty")
	}
	if len(c.Worker.Command) == 0 {
		return fmt.Errorf("worker.command must not be empty")
	}
	return nil
}

// expandEnv substitutes ${NAME} references. Unset variables expand to
// the empty string.
func expandEnv(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}
