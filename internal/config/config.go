// internal/config/config.go
//
// This package handles configuration and the .modmigrate directory structure.
// Every project that is migrated gets a .modmigrate/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".modmigrate"

	defaultCloneSuffix   = "_cloned"
	defaultLoaderWorkers = 4

	envCloneSuffix   = "MODMIGRATE_CLONE_SUFFIX"
	envLoaderWorkers = "MODMIGRATE_LOADER_WORKERS"
)

const defaultProjectConfigYAML = `# modmigrate project configuration
version: 1

# Suffix of the disposable name a module copy carries until it is renamed back.
clone_suffix: _cloned

loader:
  # How many module descriptors are loaded concurrently.
  workers: 4

template:
  # Extra gitignore-style patterns skipped when mining module descriptors.
  ignore: []

report:
  # Persist a summary of the last run to .modmigrate/state/last-run.json.
  keep: true
`

// LoaderConfig tunes the module loader.
type LoaderConfig struct {
	Workers int `yaml:"workers"`
}

// TemplateConfig tunes module descriptor mining.
type TemplateConfig struct {
	Ignore []string `yaml:"ignore,omitempty"`
}

// ReportConfig controls the persisted run summary.
type ReportConfig struct {
	Keep bool `yaml:"keep"`
}

// ProjectConfig models .modmigrate/config.yaml.
type ProjectConfig struct {
	Version     int            `yaml:"version"`
	CloneSuffix string         `yaml:"clone_suffix"`
	Loader      LoaderConfig   `yaml:"loader"`
	Template    TemplateConfig `yaml:"template"`
	Report      ReportConfig   `yaml:"report"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the root of the project being migrated
	ProjectDir string

	// StateDir is ProjectDir/.modmigrate
	StateDir string

	Project ProjectConfig
}

// InitDir creates the .modmigrate directory structure in the given project directory.
//
// Structure created:
// .modmigrate/
// ├── config.yaml
// ├── logs/     <- migrate.log
// └── state/    <- last-run.json
func InitDir(projectDir string) error {
	root := filepath.Join(projectDir, Dir)
	for _, dir := range []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig loads the project configuration, then applies overrides from the
// project's .env file and from the process environment (in that order).
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, Dir),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogPath returns the run log location.
func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir, "logs", "migrate.log")
}

// ReportPath returns the persisted run summary location.
func (c *Config) ReportPath() string {
	return filepath.Join(c.StateDir, "state", "last-run.json")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// CloneSuffix returns the suffix appended to temporary module names.
func (c *Config) CloneSuffix() string {
	return c.Project.CloneSuffix
}

// LoaderWorkers returns the loader concurrency.
func (c *Config) LoaderWorkers() int {
	return c.Project.Loader.Workers
}

// IgnorePatterns returns extra ignore patterns for descriptor mining.
func (c *Config) IgnorePatterns() []string {
	return append([]string(nil), c.Project.Template.Ignore...)
}

// KeepReport reports whether run summaries are persisted.
func (c *Config) KeepReport() bool {
	return c.Project.Report.Keep
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func (c *Config) applyEnv() error {
	values := map[string]string{}
	dotenv := filepath.Join(c.ProjectDir, ".env")
	if fileValues, err := godotenv.Read(dotenv); err == nil {
		for k, v := range fileValues {
			values[k] = v
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: read %s: %w", dotenv, err)
	}
	for _, key := range []string{envCloneSuffix, envLoaderWorkers} {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}
	if v := strings.TrimSpace(values[envCloneSuffix]); v != "" {
		c.Project.CloneSuffix = v
	}
	if v := strings.TrimSpace(values[envLoaderWorkers]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", envLoaderWorkers, err)
		}
		c.Project.Loader.Workers = n
	}
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:     1,
		CloneSuffix: defaultCloneSuffix,
		Loader:      LoaderConfig{Workers: defaultLoaderWorkers},
		Report:      ReportConfig{Keep: true},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Loader.Workers == 0 {
		pc.Loader.Workers = defaultLoaderWorkers
	}
}

func (pc *ProjectConfig) normalize() {
	pc.CloneSuffix = strings.TrimSpace(pc.CloneSuffix)
	if pc.CloneSuffix == "" {
		pc.CloneSuffix = defaultCloneSuffix
	}
	patterns := pc.Template.Ignore[:0]
	for _, pattern := range pc.Template.Ignore {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	pc.Template.Ignore = patterns
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if strings.ContainsAny(pc.CloneSuffix, `/\`) {
		return fmt.Errorf("clone_suffix %q must not contain path separators", pc.CloneSuffix)
	}
	if pc.Loader.Workers < 1 {
		return fmt.Errorf("loader.workers must be >= 1")
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
