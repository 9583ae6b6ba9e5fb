package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Service contains the remote processing service connection settings.
type Service struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
	MaxResponseMiB int    `toml:"max_response_mib"`
	UserAgent      string `toml:"user_agent"`
}

// Paths contains directory configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	LogDir      string `toml:"log_dir"`
}

// Artifact controls how downloaded models are persisted.
type Artifact struct {
	FileName          string `toml:"file_name"`
	OverwriteExisting bool   `toml:"overwrite_existing"`
}

// Control contains the daemon control API settings.
type Control struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Workflow contains orchestration tuning.
type Workflow struct {
	// PreviewLimit caps the dataset preview rows kept in state.
	PreviewLimit int `toml:"preview_limit"`
	// OperationTimeout bounds each in-flight backend call in seconds. Zero
	// leaves calls unbounded.
	OperationTimeout int `toml:"operation_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for visuallab.
//
// Configuration sections by subsystem:
//   - Service: backend base URL and transport limits
//   - Paths: state, artifact, and log directories
//   - Artifact: downloaded model file naming
//   - Control: daemon control API bind address and token
//   - Workflow: preview cap and operation timeout
//   - Logging: log format and level
type Config struct {
	Service  Service  `toml:"service"`
	Paths    Paths    `toml:"paths"`
	Artifact Artifact `toml:"artifact"`
	Control  Control  `toml:"control"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("visuallab.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The artifact
// directory is created lazily on first download.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JournalPath returns the SQLite operation journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LockPath returns the daemon session lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "visuallab.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "visuallab.log")
}

// RequestTimeout returns the per-request HTTP timeout; zero means none.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Service.RequestTimeout) * time.Second
}

// OperationTimeout returns the per-operation deadline; zero means none.
func (c *Config) OperationTimeout() time.Duration {
	return time.Duration(c.Workflow.OperationTimeout) * time.Second
}

// MaxResponseBytes returns the backend response body cap.
func (c *Config) MaxResponseBytes() int64 {
	return int64(c.Service.MaxResponseMiB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML. The control token is
// redacted.
func (c *Config) Encode() ([]byte, error) {
	clone := *c
	if clone.Control.Token != "" {
		clone.Control.Token = "<redacted>"
	}
	data, err := toml.Marshal(clone)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
