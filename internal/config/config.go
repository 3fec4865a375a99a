package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Project struct {
		Root    string   `yaml:"root"`
		Include []string `yaml:"include"`
		Exclude []string `yaml:"exclude"`
	} `yaml:"project"`
	Cache struct {
		ContentEntries   int  `yaml:"content_entries"`
		ExistenceEntries int  `yaml:"existence_entries"`
		Watch            bool `yaml:"watch"`
	} `yaml:"cache"`
	Batch struct {
		MaxParallel int    `yaml:"max_parallel"`
		Ordering    string `yaml:"ordering"` // graph or conservative
	} `yaml:"batch"`
	Journal struct {
		Path string `yaml:"path"` // empty disables the journal
	} `yaml:"journal"`
	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Project.Root = "."
	cfg.Project.Include = []string{"**/*.{ts,tsx,mts,cts,js,jsx,mjs,cjs}"}
	cfg.Project.Exclude = []string{"**/node_modules/**", "**/.git/**", "**/dist/**", "**/build/**", "**/*.d.ts"}
	cfg.Cache.ContentEntries = 100
	cfg.Cache.ExistenceEntries = 200
	cfg.Batch.MaxParallel = 4
	cfg.Batch.Ordering = "graph"
	cfg.Logging.Level = "info"
	return &cfg
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error. RESHAPE_* environment variables, optionally from .env, override
// the file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	// 3. Override with Environment Variables if present
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("RESHAPE_ROOT"); v != "" {
		cfg.Project.Root = v
	}
	if v := os.Getenv("RESHAPE_INCLUDE"); v != "" {
		cfg.Project.Include = splitList(v)
	}
	if v := os.Getenv("RESHAPE_EXCLUDE"); v != "" {
		cfg.Project.Exclude = splitList(v)
	}
	if v := os.Getenv("RESHAPE_JOURNAL"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("RESHAPE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RESHAPE_BATCH_ORDERING"); v != "" {
		cfg.Batch.Ordering = v
	}
	if v := os.Getenv("RESHAPE_MAX_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RESHAPE_MAX_PARALLEL: %w", err)
		}
		cfg.Batch.MaxParallel = n
	}
	if v := os.Getenv("RESHAPE_WATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RESHAPE_WATCH: %w", err)
		}
		cfg.Cache.Watch = b
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Batch.Ordering != "graph" && c.Batch.Ordering != "conservative" {
		return fmt.Errorf("batch.ordering must be graph or conservative, got %q", c.Batch.Ordering)
	}
	if c.Batch.MaxParallel < 1 {
		return fmt.Errorf("batch.max_parallel must be positive, got %d", c.Batch.MaxParallel)
	}
	if len(c.Project.Include) == 0 {
		return errors.New("project.include must not be empty")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
