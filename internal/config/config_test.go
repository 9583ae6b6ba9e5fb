package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"visuallab/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("VISUALLAB_BACKEND_URL", "")
	t.Setenv("VISUALLAB_API_TOKEN", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "visuallab")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Service.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected base url: %q", cfg.Service.BaseURL)
	}
	if cfg.Artifact.FileName != "model.pkl" {
		t.Fatalf("unexpected artifact file name: %q", cfg.Artifact.FileName)
	}
	if cfg.Workflow.PreviewLimit != 5 {
		t.Fatalf("unexpected preview limit: %d", cfg.Workflow.PreviewLimit)
	}
	if cfg.OperationTimeout() != 0 {
		t.Fatalf("expected no operation timeout by default, got %s", cfg.OperationTimeout())
	}
	if cfg.Control.Bind != "127.0.0.1:7488" {
		t.Fatalf("unexpected control bind: %q", cfg.Control.Bind)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if got := cfg.JournalPath(); got != filepath.Join(wantState, "journal.db") {
		t.Fatalf("unexpected journal path %q", got)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "visuallab.toml")

	type payload struct {
		Service struct {
			BaseURL string `toml:"base_url"`
		} `toml:"service"`
		Artifact struct {
			FileName string `toml:"file_name"`
		} `toml:"artifact"`
		Workflow struct {
			PreviewLimit     int `toml:"preview_limit"`
			OperationTimeout int `toml:"operation_timeout"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Service.BaseURL = "https://ml.example.com/api/"
	custom.Artifact.FileName = "forest.pkl"
	custom.Workflow.PreviewLimit = 10
	custom.Workflow.OperationTimeout = 30
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}
	t.Setenv("VISUALLAB_BACKEND_URL", "")

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Service.BaseURL != "https://ml.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Service.BaseURL)
	}
	if cfg.Artifact.FileName != "forest.pkl" {
		t.Fatalf("unexpected artifact name %q", cfg.Artifact.FileName)
	}
	if cfg.Workflow.PreviewLimit != 10 {
		t.Fatalf("unexpected preview limit %d", cfg.Workflow.PreviewLimit)
	}
	if cfg.OperationTimeout().Seconds() != 30 {
		t.Fatalf("unexpected operation timeout %s", cfg.OperationTimeout())
	}
}

func TestEnvVarFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VISUALLAB_BACKEND_URL", "http://10.0.0.5:9000/")
	t.Setenv("VISUALLAB_API_TOKEN", "env-token")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Service.BaseURL != "http://10.0.0.5:9000" {
		t.Errorf("expected base url from env, got %q", cfg.Service.BaseURL)
	}
	if cfg.Control.Token != "env-token" {
		t.Errorf("expected control token from env, got %q", cfg.Control.Token)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "model.pkl") {
		t.Fatalf("sample config missing artifact name: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Service.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected sample base url %q", cfg.Service.BaseURL)
	}
}

func TestEncodeRedactsToken(t *testing.T) {
	cfg := config.Default()
	cfg.Control.Token = "secret"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Fatalf("token leaked in encoded config: %s", data)
	}
	if cfg.Control.Token != "secret" {
		t.Fatal("Encode must not mutate the receiver")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Service.BaseURL = "ftp://example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http base url")
	}

	cfg = config.Default()
	cfg.Service.BaseURL = "http://"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for base url without host")
	}

	cfg = config.Default()
	cfg.Workflow.OperationTimeout = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative operation timeout")
	}

	cfg = config.Default()
	cfg.Workflow.PreviewLimit = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for oversized preview limit")
	}

	cfg = config.Default()
	cfg.Artifact.FileName = "../model.pkl"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for artifact name with path separators")
	}

	cfg = config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}
