package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitDirWritesDefaultConfig(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	for _, dir := range []string{"logs", "state"} {
		if info, err := os.Stat(filepath.Join(projectDir, Dir, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s dir: %v", dir, err)
		}
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.CloneSuffix() != "_cloned" {
		t.Fatalf("expected default suffix, got %q", cfg.CloneSuffix())
	}
	if cfg.LoaderWorkers() != 4 || !cfg.KeepReport() {
		t.Fatalf("unexpected defaults %+v", cfg.Project)
	}
	if !strings.HasPrefix(cfg.LogPath(), filepath.Join(projectDir, Dir)) {
		t.Fatalf("log path outside state dir: %s", cfg.LogPath())
	}
}

func TestLoadProjectConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c := &Config{ProjectDir: projectDir, StateDir: filepath.Join(projectDir, Dir), Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
clone_suffix: "  _tmp "
loader:
  workers: 2
template:
  ignore:
    - sandbox/
    - "  "
report:
  keep: false
`)
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c := &Config{ProjectDir: projectDir, StateDir: stateDir, Project: defaultProjectConfig()}
	if err := c.loadProjectConfig(); err != nil {
		t.Fatalf("loadProjectConfig returned error: %v", err)
	}
	if c.CloneSuffix() != "_tmp" {
		t.Fatalf("expected trimmed suffix, got %q", c.CloneSuffix())
	}
	if c.LoaderWorkers() != 2 || c.KeepReport() {
		t.Fatalf("unexpected values %+v", c.Project)
	}
	if got := c.IgnorePatterns(); len(got) != 1 || got[0] != "sandbox/" {
		t.Fatalf("unexpected ignore patterns %v", got)
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{
		"separator": "clone_suffix: a/b\n",
		"workers":   "loader:\n  workers: -1\n",
	} {
		if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		c := &Config{ProjectDir: projectDir, StateDir: stateDir, Project: defaultProjectConfig()}
		if err := c.loadProjectConfig(); err == nil {
			t.Fatalf("%s: expected validation error but got none", name)
		}
	}
}

func TestDotEnvAndEnvironmentOverrides(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatal(err)
	}
	dotenv := "MODMIGRATE_CLONE_SUFFIX=_fromfile\nMODMIGRATE_LOADER_WORKERS=3\n"
	if err := os.WriteFile(filepath.Join(projectDir, ".env"), []byte(dotenv), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(envLoaderWorkers, "7")
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.CloneSuffix() != "_fromfile" {
		t.Fatalf("expected .env suffix, got %q", cfg.CloneSuffix())
	}
	if cfg.LoaderWorkers() != 7 {
		t.Fatalf("expected process env to win, got %d", cfg.LoaderWorkers())
	}

	t.Setenv(envLoaderWorkers, "many")
	if _, err := NewConfig(projectDir); err == nil {
		t.Fatalf("expected invalid worker count to fail")
	}
}
