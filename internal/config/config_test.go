package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Workflows.CacheTTL != 60*time.Second {
		t.Errorf("expected cache ttl 60s, got %v", cfg.Workflows.CacheTTL)
	}
	if cfg.Workflows.RetryBackoff != 2*time.Second {
		t.Errorf("expected retry backoff 2s, got %v", cfg.Workflows.RetryBackoff)
	}
	if !cfg.History.Enabled {
		t.Error("expected history to be enabled")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %q", cfg.Logging.Level)
	}
}

func TestLoadFromDefaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := LoadFrom(t.TempDir(), "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	want := Default()
	if cfg.Workflows != want.Workflows || cfg.History != want.History || cfg.Logging != want.Logging {
		t.Errorf("defaults = %+v, want %+v", cfg, want)
	}
	if cfg.Anthropic.Model != want.Anthropic.Model {
		t.Errorf("model = %q, want %q", cfg.Anthropic.Model, want.Anthropic.Model)
	}
}

func TestLoadFromUserAndProject(t *testing.T) {
	clearKeyEnv(t)
	userDir := t.TempDir()
	writeFile(t, filepath.Join(userDir, "config.yaml"), `
anthropic:
  api_key: sk-ant-user
  model: claude-haiku
workflows:
  cache_ttl: 30s
  max_parallel: 4
history:
  path: /tmp/runs.db
logging:
  level: debug
`)
	project := filepath.Join(t.TempDir(), ProjectConfigName)
	writeFile(t, project, `
anthropic:
  model: claude-opus
workflows:
  max_parallel: 2
  retry_backoff: 500ms
`)

	cfg, err := LoadFrom(userDir, project)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-ant-user" {
		t.Errorf("api key = %q", cfg.Anthropic.APIKey)
	}
	if cfg.Anthropic.Model != "claude-opus" {
		t.Errorf("project should override model, got %q", cfg.Anthropic.Model)
	}
	if cfg.Workflows.CacheTTL != 30*time.Second {
		t.Errorf("cache ttl = %v, want 30s", cfg.Workflows.CacheTTL)
	}
	if cfg.Workflows.MaxParallel != 2 {
		t.Errorf("max parallel = %d, want 2", cfg.Workflows.MaxParallel)
	}
	if cfg.Workflows.RetryBackoff != 500*time.Millisecond {
		t.Errorf("retry backoff = %v, want 500ms", cfg.Workflows.RetryBackoff)
	}
	if cfg.History.Path != "/tmp/runs.db" || cfg.Logging.Level != "debug" {
		t.Errorf("history/logging = %+v %+v", cfg.History, cfg.Logging)
	}

	p := cfg.Policy()
	if p.Scheduling.MaxParallel != 2 || p.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("policy = %+v", p)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("FORAGEN_WORKFLOWS_MAX_PARALLEL", "7")
	t.Setenv("FORAGEN_LOGGING_LEVEL", "warn")

	cfg, err := LoadFrom(t.TempDir(), "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-env" {
		t.Errorf("api key = %q, want env value", cfg.Anthropic.APIKey)
	}
	if cfg.Workflows.MaxParallel != 7 {
		t.Errorf("max parallel = %d, want 7", cfg.Workflows.MaxParallel)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadFromRejectsInvalid(t *testing.T) {
	clearKeyEnv(t)
	userDir := t.TempDir()
	writeFile(t, filepath.Join(userDir, "config.yaml"), "workflows:\n  max_parallel: -1\n")

	if _, err := LoadFrom(userDir, ""); err == nil {
		t.Error("expected error for negative max_parallel")
	}
}

func TestLoadFromMissingProjectFile(t *testing.T) {
	if _, err := LoadFrom(t.TempDir(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for an explicit project config that does not exist")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()

	cfg := Default()
	cfg.Anthropic.Bedrock = true
	cfg.Anthropic.AWSRegion = "us-west-2"
	cfg.Workflows.MaxParallel = 3
	cfg.Workflows.Watch = true

	if err := SaveTo(dir, cfg); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	loaded, err := LoadFrom(dir, "")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !loaded.Anthropic.Bedrock || loaded.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("anthropic = %+v", loaded.Anthropic)
	}
	if loaded.Workflows != cfg.Workflows {
		t.Errorf("workflows = %+v, want %+v", loaded.Workflows, cfg.Workflows)
	}
}

func TestUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := UserConfigDir(); got != filepath.Join("/xdg", "foragen") {
		t.Errorf("UserConfigDir() = %q", got)
	}
}

func TestProjectRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".foragen"), 0755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	got, _ := filepath.EvalSymlinks(ProjectRoot())
	want, _ := filepath.EvalSymlinks(root)
	if got != want {
		t.Errorf("ProjectRoot() = %q, want %q", got, want)
	}
}

func TestLoadUserFileIgnoresEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "anthropic:\n  model: claude-file\n")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-REDACTED")
	t.Setenv("FORAGEN_ANTHROPIC_MODEL", "claude-env")

	cfg, err := LoadUserFile(dir)
	if err != nil {
		t.Fatalf("LoadUserFile: %v", err)
	}
	if cfg.Anthropic.Model != "claude-file" {
		t.Errorf("model = %q, want claude-file", cfg.Anthropic.Model)
	}
	if cfg.Anthropic.APIKey != "" {
		t.Errorf("api key = %q, want empty", cfg.Anthropic.APIKey)
	}
	if cfg.Workflows.CacheTTL != 60*time.Second {
		t.Errorf("cache ttl = %v, want default 60s", cfg.Workflows.CacheTTL)
	}
}
